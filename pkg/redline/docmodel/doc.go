// Package docmodel defines the simplified document model the patch engine
// diffs: a tree of blocks (paragraphs, tables, structured containers) plus
// relationships, header/footer content, notes and section references. Models
// are produced by an external OOXML parser; this engine only reads them.
//
// The Serializer interface is the contract with the editor's deterministic
// per-entity serializers (same logical content always yields the identical
// string). WMLSerializer is a reference implementation covering the model's
// vocabulary so the engine is testable and usable stand-alone.
package docmodel
