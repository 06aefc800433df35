package redline

import (
	"reflect"
	"strings"
	"testing"

	"github.com/benjaminschreck/go-redline/pkg/redline/docmodel"
)

func noteWithText(id int, paraID, text string) docmodel.Note {
	return docmodel.Note{ID: id, Blocks: []docmodel.Block{textParagraph(paraID, text)}}
}

func serializeNotesOrFatal(t *testing.T, notes []docmodel.Note, kind docmodel.NoteKind) string {
	t.Helper()
	xml, err := docmodel.WMLSerializer{}.SerializeNotes(notes, kind)
	if err != nil {
		t.Fatalf("SerializeNotes() error: %v", err)
	}
	return xml
}

func TestBuildNotesPatchNoChanges(t *testing.T) {
	ser := docmodel.WMLSerializer{}
	notes := []docmodel.Note{
		{ID: 0, Type: docmodel.NoteSeparator},
		noteWithText(1, "AAAA1111", "a note"),
	}
	baselineXML := serializeNotesOrFatal(t, notes, docmodel.KindFootnotes)

	patch, err := BuildNotesPatch(notes, notes, baselineXML, docmodel.KindFootnotes, ser)
	if err != nil {
		t.Fatalf("BuildNotesPatch() error: %v", err)
	}
	if patch != nil {
		t.Errorf("expected no patch for identical notes, got %+v", patch)
	}
}

func TestBuildNotesPatchChangedNote(t *testing.T) {
	ser := docmodel.WMLSerializer{}
	baseline := []docmodel.Note{
		{ID: 0, Type: docmodel.NoteSeparator},
		noteWithText(1, "AAAA1111", "old note"),
		noteWithText(2, "BBBB2222", "stable note"),
	}
	current := []docmodel.Note{
		{ID: 0, Type: docmodel.NoteSeparator},
		noteWithText(1, "AAAA1111", "new note"),
		noteWithText(2, "BBBB2222", "stable note"),
	}
	baselineXML := serializeNotesOrFatal(t, baseline, docmodel.KindFootnotes)

	patch, err := BuildNotesPatch(baseline, current, baselineXML, docmodel.KindFootnotes, ser)
	if err != nil {
		t.Fatalf("BuildNotesPatch() error: %v", err)
	}
	if patch == nil {
		t.Fatal("expected a patch")
	}
	if !reflect.DeepEqual(patch.ChangedNoteIDs, []int{1}) {
		t.Errorf("ChangedNoteIDs = %v, want [1]", patch.ChangedNoteIDs)
	}
	if len(patch.AddedNoteIDs) != 0 || len(patch.RemovedNoteIDs) != 0 {
		t.Errorf("unexpected add/remove sets: %v / %v", patch.AddedNoteIDs, patch.RemovedNoteIDs)
	}
	if !strings.Contains(patch.XML, "new note") || strings.Contains(patch.XML, "old note") {
		t.Error("changed note was not rewritten")
	}
	if !strings.Contains(patch.XML, `w:type="separator"`) {
		t.Error("separator note must survive the patch")
	}
}

func TestBuildNotesPatchSpecialNotesPreservedVerbatim(t *testing.T) {
	ser := docmodel.WMLSerializer{}

	// The baseline separator carries extra attributes a parser might not
	// model; its bytes must survive untouched even though the current model
	// renders it differently.
	baselineXML := `<w:footnotes xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">` +
		`<w:footnote w:type="separator" w:id="-1"><w:p><w:r><w:separator/></w:r></w:p></w:footnote>` +
		`<w:footnote w:id="1"><w:p w14:paraId="AAAA1111" xmlns:w14="http://schemas.microsoft.com/office/word/2010/wordml"><w:r><w:t>old</w:t></w:r></w:p></w:footnote>` +
		`</w:footnotes>`

	baseline := []docmodel.Note{
		{ID: -1, Type: docmodel.NoteSeparator},
		noteWithText(1, "AAAA1111", "old"),
	}
	current := []docmodel.Note{
		{ID: -1, Type: docmodel.NoteSeparator, Blocks: []docmodel.Block{textParagraph("ZZZZ9999", "ignored edit")}},
		noteWithText(1, "AAAA1111", "new"),
	}

	patch, err := BuildNotesPatch(baseline, current, baselineXML, docmodel.KindFootnotes, ser)
	if err != nil {
		t.Fatalf("BuildNotesPatch() error: %v", err)
	}
	if patch == nil {
		t.Fatal("expected a patch")
	}
	if !strings.Contains(patch.XML, `<w:footnote w:type="separator" w:id="-1"><w:p><w:r><w:separator/></w:r></w:p></w:footnote>`) {
		t.Error("separator note bytes were modified")
	}
	if strings.Contains(patch.XML, "ignored edit") {
		t.Error("model edits to special notes must be ignored")
	}
}

func TestBuildNotesPatchAddAndRemove(t *testing.T) {
	ser := docmodel.WMLSerializer{}
	baseline := []docmodel.Note{
		noteWithText(1, "AAAA1111", "kept"),
		noteWithText(2, "BBBB2222", "doomed"),
	}
	current := []docmodel.Note{
		noteWithText(1, "AAAA1111", "kept"),
		noteWithText(3, "CCCC3333", "brand new"),
	}
	baselineXML := serializeNotesOrFatal(t, baseline, docmodel.KindEndnotes)

	patch, err := BuildNotesPatch(baseline, current, baselineXML, docmodel.KindEndnotes, ser)
	if err != nil {
		t.Fatalf("BuildNotesPatch() error: %v", err)
	}
	if patch == nil {
		t.Fatal("expected a patch")
	}
	if !reflect.DeepEqual(patch.AddedNoteIDs, []int{3}) {
		t.Errorf("AddedNoteIDs = %v, want [3]", patch.AddedNoteIDs)
	}
	if !reflect.DeepEqual(patch.RemovedNoteIDs, []int{2}) {
		t.Errorf("RemovedNoteIDs = %v, want [2]", patch.RemovedNoteIDs)
	}
	if strings.Contains(patch.XML, "doomed") {
		t.Error("removed note still present")
	}
	if !strings.Contains(patch.XML, "brand new") {
		t.Error("added note missing")
	}
	if !strings.HasSuffix(patch.XML, "</w:endnotes>") {
		t.Errorf("new notes must land before the container close tag, got suffix %q", patch.XML[len(patch.XML)-30:])
	}
}

func TestBuildNotesPatchAnchorNotFound(t *testing.T) {
	ser := docmodel.WMLSerializer{}
	baseline := []docmodel.Note{noteWithText(7, "AAAA1111", "old")}
	current := []docmodel.Note{noteWithText(7, "AAAA1111", "new")}

	// Raw baseline has no note 7 to anchor on.
	baselineXML := `<w:footnotes><w:footnote w:id="1"><w:p/></w:footnote></w:footnotes>`

	patch, err := BuildNotesPatch(baseline, current, baselineXML, docmodel.KindFootnotes, ser)
	if err != nil {
		t.Fatalf("BuildNotesPatch() error: %v", err)
	}
	if patch != nil {
		t.Errorf("expected no patch when the note anchor is missing, got %+v", patch)
	}
}
