package docmodel

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Relationship is one entry of a part's .rels file as the model sees it.
// Target is stored as written in the XML, relative to the owning part's
// directory unless it starts with a slash.
type Relationship struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	Target     string `json:"target"`
	TargetMode string `json:"targetMode,omitempty"`
}

// HeaderFooterRefType distinguishes the three reference slots a section has
// for each of headers and footers.
type HeaderFooterRefType string

const (
	RefDefault HeaderFooterRefType = "default"
	RefFirst   HeaderFooterRefType = "first"
	RefEven    HeaderFooterRefType = "even"
)

// refTypeOrder fixes iteration order over a section's reference map so that
// everything derived from it is deterministic.
var refTypeOrder = []HeaderFooterRefType{RefDefault, RefFirst, RefEven}

// Section carries one section's header and footer references, keyed by
// reference type, with relationship ids as values.
type Section struct {
	Headers map[HeaderFooterRefType]string `json:"headers,omitempty"`
	Footers map[HeaderFooterRefType]string `json:"footers,omitempty"`
}

// HeaderFooter is the content of one header or footer part.
type HeaderFooter struct {
	Blocks []Block `json:"blocks"`
}

// NoteType classifies footnote/endnote elements. Only normal notes carry
// document content; the other three are rendering furniture Word maintains.
type NoteType string

const (
	NoteNormal                NoteType = "normal"
	NoteSeparator             NoteType = "separator"
	NoteContinuationSeparator NoteType = "continuationSeparator"
	NoteContinuationNotice    NoteType = "continuationNotice"
)

// IsSpecial reports whether the note is separator furniture rather than
// content. Special notes are preserved verbatim and never diffed.
func (t NoteType) IsSpecial() bool {
	return t != NoteNormal && t != ""
}

// Note is one footnote or endnote.
type Note struct {
	ID     int      `json:"id"`
	Type   NoteType `json:"type,omitempty"`
	Blocks []Block  `json:"blocks"`
}

// Document is one immutable snapshot of the document model: the baseline
// taken at load/save time, or the current state of the editor.
type Document struct {
	Body          []Block
	Relationships map[string]Relationship
	Headers       map[string]*HeaderFooter
	Footers       map[string]*HeaderFooter
	Footnotes     []Note
	Endnotes      []Note
	Sections      []Section
}

// Block is any element that can appear in a body, table cell, container,
// header/footer or note. The set is closed.
type Block interface {
	isBlock()
}

// Run is a span of text with uniform formatting.
type Run struct {
	Text   string `json:"text"`
	Bold   bool   `json:"bold,omitempty"`
	Italic bool   `json:"italic,omitempty"`
}

// Paragraph is a block of runs with a stable identity. ParaID survives
// round-trips through the package (the w14:paraId attribute) and keys the
// targeted diff.
type Paragraph struct {
	ParaID string `json:"paraId"`
	Style  string `json:"style,omitempty"`
	Runs   []Run  `json:"runs"`
}

func (Paragraph) isBlock() {}

// TableCell holds nested blocks.
type TableCell struct {
	Blocks []Block `json:"blocks"`
}

// TableRow is one row of cells.
type TableRow struct {
	Cells []TableCell `json:"cells"`
}

// Table is a grid of rows; paragraphs inside cells participate in the
// targeted diff like any other.
type Table struct {
	Rows []TableRow `json:"rows"`
}

func (Table) isBlock() {}

// Container is a structured document tag (content control) wrapping nested
// blocks.
type Container struct {
	Blocks []Block `json:"blocks"`
}

func (Container) isBlock() {}

// NewParaID returns a fresh paragraph id in the 8-hex-digit form Word uses
// for w14:paraId.
func NewParaID() string {
	id := uuid.New()
	return strings.ToUpper(fmt.Sprintf("%02X%02X%02X%02X", id[0], id[1], id[2], id[3]))
}

// DuplicateParaIDError reports a paragraph id appearing more than once in a
// single document snapshot, which makes id-keyed diffing unsound.
type DuplicateParaIDError struct {
	ParaID string
}

func (e *DuplicateParaIDError) Error() string {
	return fmt.Sprintf("duplicate paragraph id %q in document snapshot", e.ParaID)
}

// ParagraphSnapshots walks the document body recursively (descending into
// tables and containers) and returns paraId -> serialized XML for every
// paragraph. A duplicate id yields a DuplicateParaIDError.
func ParagraphSnapshots(doc *Document, ser Serializer) (map[string]string, error) {
	snapshots := make(map[string]string)
	if err := collectParagraphs(doc.Body, ser, snapshots); err != nil {
		return nil, err
	}
	return snapshots, nil
}

func collectParagraphs(blocks []Block, ser Serializer, out map[string]string) error {
	for _, block := range blocks {
		switch b := block.(type) {
		case Paragraph:
			if _, ok := out[b.ParaID]; ok {
				return &DuplicateParaIDError{ParaID: b.ParaID}
			}
			xml, err := ser.SerializeParagraph(&b)
			if err != nil {
				return fmt.Errorf("failed to serialize paragraph %s: %w", b.ParaID, err)
			}
			out[b.ParaID] = xml
		case Table:
			for _, row := range b.Rows {
				for _, cell := range row.Cells {
					if err := collectParagraphs(cell.Blocks, ser, out); err != nil {
						return err
					}
				}
			}
		case Container:
			if err := collectParagraphs(b.Blocks, ser, out); err != nil {
				return err
			}
		}
	}
	return nil
}

// NoteSnapshots returns note id -> serialized XML for every normal note.
// Special notes (separators, continuation furniture) are excluded.
func NoteSnapshots(notes []Note, kind NoteKind, ser Serializer) (map[int]string, error) {
	snapshots := make(map[int]string)
	for i := range notes {
		note := &notes[i]
		if note.Type.IsSpecial() {
			continue
		}
		xml, err := ser.SerializeNote(note, kind)
		if err != nil {
			return nil, fmt.Errorf("failed to serialize note %d: %w", note.ID, err)
		}
		snapshots[note.ID] = xml
	}
	return snapshots, nil
}
