// Package redline compiles minimal-diff OOXML patches and applies them
// transactionally to DOCX packages.
//
// Given a baseline package and an edited document model, BuildPlan computes
// the smallest ordered list of package operations that brings the package in
// line with the edit, preserving byte-for-byte any XML the model does not
// represent (tracked-change markup, vendor extensions, embedded objects).
// Apply executes such a list against package bytes under strict or
// best-effort failure semantics and produces the final package plus an
// auditable per-operation report.
//
// The flow is one-way:
//
//	models + baseline bytes -> BuildPlan -> *Plan -> Apply -> final bytes
//
// Targeted patching is conservative by design: any ambiguity while locating
// a paragraph or note span makes the planner fall back to full
// serialization, recorded in diagnostics, never a best-guess edit.
package redline
