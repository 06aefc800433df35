package oxml

import (
	"fmt"
	"io"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"
)

// Validate checks that data is well-formed XML. Entity expansion is disabled
// beyond the predefined five, so external-entity payloads fail instead of
// being fetched or expanded.
func Validate(data []byte) error {
	dec := newDecoder(string(data))
	for {
		_, err := dec.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("malformed xml: %w", err)
		}
	}
}

// Query runs an XPath expression over an XML part and returns the matching
// nodes. Intended for inspection surfaces (CLI, tests), not for the patch
// path, which must work on raw byte spans.
func Query(data []byte, expr string) ([]*xmlquery.Node, error) {
	if _, err := xpath.Compile(expr); err != nil {
		return nil, fmt.Errorf("invalid xpath %q: %w", expr, err)
	}

	doc, err := xmlquery.Parse(strings.NewReader(string(data)))
	if err != nil {
		return nil, fmt.Errorf("parsing xml: %w", err)
	}

	nodes, err := xmlquery.QueryAll(doc, expr)
	if err != nil {
		return nil, fmt.Errorf("xpath query failed: %w", err)
	}
	return nodes, nil
}

// QueryFirst runs an XPath expression and returns the first match, or nil.
func QueryFirst(data []byte, expr string) (*xmlquery.Node, error) {
	nodes, err := Query(data, expr)
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, nil
	}
	return nodes[0], nil
}
