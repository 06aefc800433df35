package redline

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/benjaminschreck/go-redline/pkg/redline/docmodel"
	"github.com/benjaminschreck/go-redline/pkg/redline/oxml"
)

// NotesPatch is a minimal rewrite of a footnotes or endnotes part: changed
// notes replaced in place, removed notes cut, new notes appended before the
// container close tag. Separator and continuation notes are never touched.
type NotesPatch struct {
	XML            string
	ChangedNoteIDs []int
	AddedNoteIDs   []int
	RemovedNoteIDs []int
}

// BuildNotesPatch diffs two note lists by numeric id against the raw
// baseline part text. A nil patch with a nil error means "no patch": either
// nothing changed or an anchor could not be located, and the caller falls
// back to full serialization.
func BuildNotesPatch(baselineNotes, currentNotes []docmodel.Note, baselineXML string, kind docmodel.NoteKind, ser docmodel.Serializer) (*NotesPatch, error) {
	baselineSnapshots, err := docmodel.NoteSnapshots(baselineNotes, kind, ser)
	if err != nil {
		return nil, NewStructuralMismatchError(string(kind), fmt.Sprintf("baseline snapshot failed: %v", err))
	}
	currentSnapshots, err := docmodel.NoteSnapshots(currentNotes, kind, ser)
	if err != nil {
		return nil, NewStructuralMismatchError(string(kind), fmt.Sprintf("current snapshot failed: %v", err))
	}

	var changed, added, removed []int
	for id, currentXML := range currentSnapshots {
		priorXML, ok := baselineSnapshots[id]
		if !ok {
			added = append(added, id)
			continue
		}
		if priorXML != currentXML {
			changed = append(changed, id)
		}
	}
	for id := range baselineSnapshots {
		if _, ok := currentSnapshots[id]; !ok {
			removed = append(removed, id)
		}
	}
	sort.Ints(changed)
	sort.Ints(added)
	sort.Ints(removed)

	if len(changed) == 0 && len(added) == 0 && len(removed) == 0 {
		return nil, nil
	}

	tag := "footnote"
	root := "footnotes"
	if kind == docmodel.KindEndnotes {
		tag = "endnote"
		root = "endnotes"
	}

	var edits []oxml.Edit
	for _, id := range changed {
		span, ok, err := findNoteSpan(baselineXML, tag, id)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, nil
		}
		edits = append(edits, oxml.Edit{Span: span, Replacement: currentSnapshots[id]})
	}
	for _, id := range removed {
		span, ok, err := findNoteSpan(baselineXML, tag, id)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, nil
		}
		edits = append(edits, oxml.Edit{Span: span})
	}

	if len(added) > 0 {
		insertAt, err := oxml.RootCloseStart(baselineXML, root)
		if err != nil {
			if errors.Is(err, oxml.ErrSpanNotFound) {
				return nil, nil
			}
			return nil, fmt.Errorf("failed to locate </w:%s>: %w", root, err)
		}
		var b strings.Builder
		for _, id := range added {
			b.WriteString(currentSnapshots[id])
		}
		edits = append(edits, oxml.Edit{Span: oxml.Span{Start: insertAt, End: insertAt}, Replacement: b.String()})
	}

	return &NotesPatch{
		XML:            oxml.Splice(baselineXML, edits),
		ChangedNoteIDs: changed,
		AddedNoteIDs:   added,
		RemovedNoteIDs: removed,
	}, nil
}

func findNoteSpan(src, tag string, id int) (oxml.Span, bool, error) {
	span, err := oxml.FindElementSpan(src, tag, "id", strconv.Itoa(id))
	if err != nil {
		if errors.Is(err, oxml.ErrSpanNotFound) || errors.Is(err, oxml.ErrSpanAmbiguous) {
			return oxml.Span{}, false, nil
		}
		return oxml.Span{}, false, fmt.Errorf("failed to locate %s %d: %w", tag, id, err)
	}
	return span, true, nil
}
