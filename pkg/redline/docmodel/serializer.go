package docmodel

import (
	"fmt"
	"sort"
	"strings"

	"github.com/benjaminschreck/go-redline/pkg/redline/oxml"
)

// HeaderFooterKind selects the root element of a header/footer part.
type HeaderFooterKind string

const (
	KindHeader HeaderFooterKind = "header"
	KindFooter HeaderFooterKind = "footer"
)

// NoteKind selects the footnotes or endnotes vocabulary.
type NoteKind string

const (
	KindFootnotes NoteKind = "footnotes"
	KindEndnotes  NoteKind = "endnotes"
)

// Serializer is the contract with the editor's per-entity serializers. Every
// method must be deterministic: the same logical content yields the
// byte-identical string, because the engine decides "changed or not" by
// string comparison.
type Serializer interface {
	SerializeBody(doc *Document) (string, error)
	SerializeParagraph(p *Paragraph) (string, error)
	SerializeHeaderFooter(hf *HeaderFooter, kind HeaderFooterKind) (string, error)
	SerializeNotes(notes []Note, kind NoteKind) (string, error)
	SerializeNote(note *Note, kind NoteKind) (string, error)
}

// WordprocessingML namespace declarations emitted on part roots.
const (
	nsW   = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"
	nsW14 = "http://schemas.microsoft.com/office/word/2010/wordml"
	nsR   = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"
)

const rootNamespaces = ` xmlns:w="` + nsW + `" xmlns:w14="` + nsW14 + `" xmlns:r="` + nsR + `" mc:Ignorable="w14" xmlns:mc="http://schemas.openxmlformats.org/markup-compatibility/2006"`

// WMLSerializer is the reference WordprocessingML serializer for the model.
// Output is deterministic by construction: elements and attributes are
// emitted in a fixed order with no discretionary whitespace.
type WMLSerializer struct{}

var _ Serializer = WMLSerializer{}

// SerializeBody emits a complete word/document.xml part. The final section's
// header and footer references are rendered in the trailing sectPr.
func (s WMLSerializer) SerializeBody(doc *Document) (string, error) {
	var b strings.Builder
	b.WriteString(oxml.Declaration)
	b.WriteString("<w:document")
	b.WriteString(rootNamespaces)
	b.WriteString("><w:body>")
	if err := s.writeBlocks(&b, doc.Body); err != nil {
		return "", err
	}
	if len(doc.Sections) > 0 {
		s.writeSectPr(&b, doc.Sections[len(doc.Sections)-1])
	}
	b.WriteString("</w:body></w:document>")
	return b.String(), nil
}

// SerializeParagraph emits one <w:p> element with its w14:paraId.
func (s WMLSerializer) SerializeParagraph(p *Paragraph) (string, error) {
	var b strings.Builder
	s.writeParagraph(&b, p)
	return b.String(), nil
}

// SerializeHeaderFooter emits a complete header or footer part.
func (s WMLSerializer) SerializeHeaderFooter(hf *HeaderFooter, kind HeaderFooterKind) (string, error) {
	root := "w:hdr"
	if kind == KindFooter {
		root = "w:ftr"
	}
	var b strings.Builder
	b.WriteString(oxml.Declaration)
	b.WriteString("<" + root)
	b.WriteString(rootNamespaces)
	b.WriteString(">")
	if err := s.writeBlocks(&b, hf.Blocks); err != nil {
		return "", err
	}
	b.WriteString("</" + root + ">")
	return b.String(), nil
}

// SerializeNotes emits a complete footnotes or endnotes part. Notes are
// ordered by id so output does not depend on model slice order.
func (s WMLSerializer) SerializeNotes(notes []Note, kind NoteKind) (string, error) {
	root := "w:footnotes"
	if kind == KindEndnotes {
		root = "w:endnotes"
	}

	ordered := make([]*Note, 0, len(notes))
	for i := range notes {
		ordered = append(ordered, &notes[i])
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })

	var b strings.Builder
	b.WriteString(oxml.Declaration)
	b.WriteString("<" + root)
	b.WriteString(rootNamespaces)
	b.WriteString(">")
	for _, note := range ordered {
		noteXML, err := s.SerializeNote(note, kind)
		if err != nil {
			return "", err
		}
		b.WriteString(noteXML)
	}
	b.WriteString("</" + root + ">")
	return b.String(), nil
}

// SerializeNote emits one <w:footnote> or <w:endnote> element.
func (s WMLSerializer) SerializeNote(note *Note, kind NoteKind) (string, error) {
	tag := "w:footnote"
	if kind == KindEndnotes {
		tag = "w:endnote"
	}
	var b strings.Builder
	b.WriteString("<" + tag)
	if note.Type.IsSpecial() {
		b.WriteString(` w:type="` + oxml.EscapeAttr(string(note.Type)) + `"`)
	}
	fmt.Fprintf(&b, ` w:id="%d">`, note.ID)
	if err := s.writeBlocks(&b, note.Blocks); err != nil {
		return "", err
	}
	b.WriteString("</" + tag + ">")
	return b.String(), nil
}

func (s WMLSerializer) writeBlocks(b *strings.Builder, blocks []Block) error {
	for _, block := range blocks {
		switch blk := block.(type) {
		case Paragraph:
			s.writeParagraph(b, &blk)
		case Table:
			s.writeTable(b, &blk)
		case Container:
			b.WriteString("<w:sdt><w:sdtContent>")
			if err := s.writeBlocks(b, blk.Blocks); err != nil {
				return err
			}
			b.WriteString("</w:sdtContent></w:sdt>")
		default:
			return fmt.Errorf("unsupported block type %T", block)
		}
	}
	return nil
}

func (s WMLSerializer) writeParagraph(b *strings.Builder, p *Paragraph) {
	b.WriteString(`<w:p w14:paraId="` + oxml.EscapeAttr(p.ParaID) + `">`)
	if p.Style != "" {
		b.WriteString(`<w:pPr><w:pStyle w:val="` + oxml.EscapeAttr(p.Style) + `"/></w:pPr>`)
	}
	for _, run := range p.Runs {
		s.writeRun(b, &run)
	}
	b.WriteString("</w:p>")
}

func (s WMLSerializer) writeRun(b *strings.Builder, r *Run) {
	b.WriteString("<w:r>")
	if r.Bold || r.Italic {
		b.WriteString("<w:rPr>")
		if r.Bold {
			b.WriteString("<w:b/>")
		}
		if r.Italic {
			b.WriteString("<w:i/>")
		}
		b.WriteString("</w:rPr>")
	}
	b.WriteString(`<w:t xml:space="preserve">` + oxml.EscapeText(r.Text) + `</w:t></w:r>`)
}

func (s WMLSerializer) writeTable(b *strings.Builder, t *Table) {
	b.WriteString("<w:tbl>")
	for _, row := range t.Rows {
		b.WriteString("<w:tr>")
		for _, cell := range row.Cells {
			b.WriteString("<w:tc>")
			// Cell content is restricted to the model's own block set, so
			// writeBlocks cannot fail here.
			_ = s.writeBlocks(b, cell.Blocks)
			b.WriteString("</w:tc>")
		}
		b.WriteString("</w:tr>")
	}
	b.WriteString("</w:tbl>")
}

func (s WMLSerializer) writeSectPr(b *strings.Builder, sect Section) {
	if len(sect.Headers) == 0 && len(sect.Footers) == 0 {
		return
	}
	b.WriteString("<w:sectPr>")
	for _, refType := range refTypeOrder {
		if id, ok := sect.Headers[refType]; ok {
			b.WriteString(`<w:headerReference w:type="` + string(refType) + `" r:id="` + oxml.EscapeAttr(id) + `"/>`)
		}
	}
	for _, refType := range refTypeOrder {
		if id, ok := sect.Footers[refType]; ok {
			b.WriteString(`<w:footerReference w:type="` + string(refType) + `" r:id="` + oxml.EscapeAttr(id) + `"/>`)
		}
	}
	b.WriteString("</w:sectPr>")
}
