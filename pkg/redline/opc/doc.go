// Package opc implements the raw package store for OOXML (OPC) containers.
//
// A DOCX file is a ZIP archive of named parts. This package decodes such an
// archive fully into memory, offers CRUD access to parts by normalized path,
// classifies parts (xml, rels, media), and re-encodes the archive
// deterministically so that identical part content always yields identical
// package bytes.
//
// A Package instance is scoped to one open -> mutate -> export cycle and is
// not safe for concurrent use.
package opc
