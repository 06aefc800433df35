package redline

import (
	"errors"
	"fmt"
	"sort"

	"github.com/benjaminschreck/go-redline/pkg/redline/docmodel"
	"github.com/benjaminschreck/go-redline/pkg/redline/oxml"
)

// ParagraphPatch is a minimal rewrite of body XML: the baseline text with
// only the changed paragraph spans replaced.
type ParagraphPatch struct {
	XML                 string
	ChangedParagraphIDs []string
}

// BuildParagraphPatch diffs the two models at paragraph granularity and
// splices the changed paragraphs into the raw baseline XML. A nil patch with
// a nil error means "no patch": either nothing changed, or the edit is
// structural (paragraph inserted/removed) or un-anchorable, and the caller
// must fall back to full serialization. The hint set, when non-empty,
// restricts which paragraphs are inspected for changes.
//
// Every byte outside a changed paragraph's span is carried over verbatim,
// including markup the model cannot represent.
func BuildParagraphPatch(baseline, current *docmodel.Document, baselineXML string, hints []string, ser docmodel.Serializer) (*ParagraphPatch, error) {
	baselineSnapshots, err := docmodel.ParagraphSnapshots(baseline, ser)
	if err != nil {
		return nil, NewStructuralMismatchError("body", fmt.Sprintf("baseline snapshot failed: %v", err))
	}
	currentSnapshots, err := docmodel.ParagraphSnapshots(current, ser)
	if err != nil {
		return nil, NewStructuralMismatchError("body", fmt.Sprintf("current snapshot failed: %v", err))
	}

	// A differing id set means a paragraph was inserted or deleted; that is
	// not representable at this granularity.
	if len(baselineSnapshots) != len(currentSnapshots) {
		return nil, nil
	}
	for id := range currentSnapshots {
		if _, ok := baselineSnapshots[id]; !ok {
			return nil, nil
		}
	}

	inspect := make([]string, 0, len(currentSnapshots))
	if len(hints) > 0 {
		seen := make(map[string]bool, len(hints))
		for _, id := range hints {
			if seen[id] {
				continue
			}
			seen[id] = true
			if _, ok := currentSnapshots[id]; ok {
				inspect = append(inspect, id)
			}
		}
	} else {
		for id := range currentSnapshots {
			inspect = append(inspect, id)
		}
	}
	sort.Strings(inspect)

	var changed []string
	for _, id := range inspect {
		if baselineSnapshots[id] != currentSnapshots[id] {
			changed = append(changed, id)
		}
	}
	if len(changed) == 0 {
		return nil, nil
	}

	edits := make([]oxml.Edit, 0, len(changed))
	for _, id := range changed {
		span, err := oxml.FindElementSpan(baselineXML, "p", "paraId", id)
		if err != nil {
			if errors.Is(err, oxml.ErrSpanNotFound) || errors.Is(err, oxml.ErrSpanAmbiguous) {
				// Never guess at an anchor; let the caller fall back.
				return nil, nil
			}
			return nil, fmt.Errorf("failed to locate paragraph %s: %w", id, err)
		}
		edits = append(edits, oxml.Edit{Span: span, Replacement: currentSnapshots[id]})
	}

	return &ParagraphPatch{
		XML:                 oxml.Splice(baselineXML, edits),
		ChangedParagraphIDs: changed,
	}, nil
}
