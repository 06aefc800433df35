// Package oxml provides byte-exact helpers for working with raw OOXML part
// text: locating element spans by tag and identifying attribute, finding
// insertion points, escaping, well-formedness checks, and XPath queries.
//
// Span location matters because the patch builders replace exact substrings
// of baseline XML; every byte outside a located span must survive untouched.
// The scanner walks real XML tokens with byte offsets rather than matching
// text patterns, so attribute order, comments, CDATA sections and nested
// elements cannot produce a wrong span. Any ambiguity is reported as an
// error, never resolved by guessing.
package oxml
