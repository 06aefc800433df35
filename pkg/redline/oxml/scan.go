package oxml

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrSpanNotFound reports that no element matched the requested tag and
// attribute value.
var ErrSpanNotFound = errors.New("element span not found")

// ErrSpanAmbiguous reports that more than one element matched; callers treat
// this the same as not found and fall back rather than pick one.
var ErrSpanAmbiguous = errors.New("element span is ambiguous")

// Span is a half-open byte range [Start, End) into the source text.
type Span struct {
	Start int
	End   int
}

// Cut returns the text covered by the span.
func (s Span) Cut(src string) string {
	return src[s.Start:s.End]
}

// FindElementSpan locates the unique element whose local tag name is tag and
// which carries an attribute with local name attr equal to value. Namespace
// prefixes are ignored on both tag and attribute, so the scan works whether
// or not the fragment declares them. The returned span covers the element
// from the opening '<' through the closing '>' of its end tag (or the whole
// tag for a self-closing element).
func FindElementSpan(src string, tag, attr, value string) (Span, error) {
	return findElementSpan(src, tag, attr, func(v string) bool { return v == value })
}

// FindElementSpanFold is FindElementSpan with case-insensitive attribute
// value comparison, used for extension-keyed content-type defaults.
func FindElementSpanFold(src string, tag, attr, value string) (Span, error) {
	return findElementSpan(src, tag, attr, func(v string) bool { return strings.EqualFold(v, value) })
}

func findElementSpan(src string, tag, attr string, match func(string) bool) (Span, error) {
	dec := newDecoder(src)

	var found []Span
	for {
		start := int(dec.InputOffset())
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Span{}, fmt.Errorf("scanning for <%s %s=...>: %w", tag, attr, err)
		}

		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != tag {
			continue
		}
		if !hasAttr(se, attr, match) {
			continue
		}

		end, err := skipToElementEnd(dec)
		if err != nil {
			return Span{}, fmt.Errorf("scanning for <%s %s=...>: %w", tag, attr, err)
		}
		found = append(found, Span{Start: start, End: end})
		if len(found) > 1 {
			return Span{}, ErrSpanAmbiguous
		}
	}

	if len(found) == 0 {
		return Span{}, ErrSpanNotFound
	}
	return found[0], nil
}

// skipToElementEnd consumes tokens until the element whose StartElement was
// just returned is closed, and returns the byte offset just past its end tag.
func skipToElementEnd(dec *xml.Decoder) (int, error) {
	depth := 1
	for depth > 0 {
		tok, err := dec.Token()
		if err != nil {
			return 0, err
		}
		switch tok.(type) {
		case xml.StartElement:
			depth++
		case xml.EndElement:
			depth--
		}
	}
	return int(dec.InputOffset()), nil
}

func hasAttr(se xml.StartElement, local string, match func(string) bool) bool {
	for _, a := range se.Attr {
		if a.Name.Local == local && match(a.Value) {
			return true
		}
	}
	return false
}

// RootCloseStart returns the byte offset at which the root element's closing
// tag begins, so new children can be spliced in immediately before it. The
// root's local name must equal rootTag. A self-closing root has no separate
// closing tag and is reported as not found.
func RootCloseStart(src string, rootTag string) (int, error) {
	dec := newDecoder(src)

	depth := 0
	sawRoot := false
	for {
		start := int(dec.InputOffset())
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("scanning for </%s>: %w", rootTag, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if !sawRoot {
				if t.Name.Local != rootTag {
					return 0, fmt.Errorf("root element is <%s>, want <%s>", t.Name.Local, rootTag)
				}
				sawRoot = true
			}
			depth++
		case xml.EndElement:
			depth--
			if sawRoot && depth == 0 {
				// A synthesized end token for a self-closing root starts at
				// the same offset it ends; there is no "</" to splice before.
				if !strings.HasPrefix(src[start:], "</") {
					return 0, ErrSpanNotFound
				}
				return start, nil
			}
		}
	}

	return 0, ErrSpanNotFound
}

// Edit is one pending splice against source text.
type Edit struct {
	Span        Span
	Replacement string
}

// Splice applies edits to src. Edits are applied back to front so earlier
// offsets stay valid; spans must not overlap.
func Splice(src string, edits []Edit) string {
	if len(edits) == 0 {
		return src
	}

	ordered := make([]Edit, len(edits))
	copy(ordered, edits)
	for i := 1; i < len(ordered); i++ {
		for j := i; j > 0 && ordered[j].Span.Start > ordered[j-1].Span.Start; j-- {
			ordered[j], ordered[j-1] = ordered[j-1], ordered[j]
		}
	}

	out := src
	for _, e := range ordered {
		out = out[:e.Span.Start] + e.Replacement + out[e.Span.End:]
	}
	return out
}

func newDecoder(src string) *xml.Decoder {
	dec := xml.NewDecoder(strings.NewReader(src))
	// Reject custom entities instead of expanding them; OOXML parts only use
	// the predefined five, and external entities must never be fetched.
	dec.Entity = map[string]string{}
	return dec
}
