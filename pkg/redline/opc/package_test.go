package opc

import (
	"archive/zip"
	"bytes"
	"compress/flate"
	"io"
	"testing"
)

func buildZip(t *testing.T, entries map[string]string, order []string) []byte {
	t.Helper()

	buf := new(bytes.Buffer)
	w := zip.NewWriter(buf)
	for _, name := range order {
		fw, err := w.Create(name)
		if err != nil {
			t.Fatalf("failed to create zip entry %s: %v", name, err)
		}
		if _, err := fw.Write([]byte(entries[name])); err != nil {
			t.Fatalf("failed to write zip entry %s: %v", name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("failed to close zip writer: %v", err)
	}
	return buf.Bytes()
}

func TestOpenPackage(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		wantErr bool
		check   func(t *testing.T, pkg *Package)
	}{
		{
			name: "open valid archive",
			data: buildZip(t, map[string]string{
				"[Content_Types].xml": "<Types/>",
				"word/document.xml":   "<w:document/>",
			}, []string{"[Content_Types].xml", "word/document.xml"}),
			check: func(t *testing.T, pkg *Package) {
				if !pkg.Has("word/document.xml") {
					t.Error("expected word/document.xml to exist")
				}
				if got := pkg.Size("word/document.xml"); got != len("<w:document/>") {
					t.Errorf("Size() = %d, want %d", got, len("<w:document/>"))
				}
			},
		},
		{
			name:    "open non-zip bytes",
			data:    []byte("not a zip archive"),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pkg, err := OpenPackage(tt.data)
			if (err != nil) != tt.wantErr {
				t.Errorf("OpenPackage() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && tt.check != nil {
				tt.check(t, pkg)
			}
		})
	}
}

func TestPackage_ReadWriteRemove(t *testing.T) {
	pkg := NewPackage()
	pkg.WriteText("word/document.xml", "<w:document/>")
	pkg.Write("word/media/image1.png", []byte{0x89, 0x50})

	text, err := pkg.ReadText("word/document.xml")
	if err != nil {
		t.Fatalf("ReadText() error = %v", err)
	}
	if text != "<w:document/>" {
		t.Errorf("ReadText() = %q, want %q", text, "<w:document/>")
	}

	if _, err := pkg.Read("word/missing.xml"); err == nil {
		t.Error("expected error reading missing part")
	}

	// Overwrite keeps a single entry.
	pkg.WriteText("word/document.xml", "<w:document>v2</w:document>")
	if got := len(pkg.Paths()); got != 2 {
		t.Errorf("expected 2 parts after overwrite, got %d", got)
	}

	if !pkg.Remove("word/media/image1.png") {
		t.Error("Remove() = false, want true for existing part")
	}
	if pkg.Remove("word/media/image1.png") {
		t.Error("Remove() = true, want false for missing part")
	}
	if pkg.Has("word/media/image1.png") {
		t.Error("expected part to be gone after Remove")
	}
}

func TestPackage_PathsPreserveOrder(t *testing.T) {
	order := []string{"[Content_Types].xml", "_rels/.rels", "word/document.xml", "word/styles.xml"}
	data := buildZip(t, map[string]string{
		"[Content_Types].xml": "<Types/>",
		"_rels/.rels":         "<Relationships/>",
		"word/document.xml":   "<w:document/>",
		"word/styles.xml":     "<w:styles/>",
	}, order)

	pkg, err := OpenPackage(data)
	if err != nil {
		t.Fatalf("OpenPackage() error = %v", err)
	}

	paths := pkg.Paths()
	if len(paths) != len(order) {
		t.Fatalf("Paths() returned %d entries, want %d", len(paths), len(order))
	}
	for i, want := range order {
		if paths[i] != want {
			t.Errorf("Paths()[%d] = %q, want %q", i, paths[i], want)
		}
	}

	// New parts are appended at the end.
	pkg.WriteText("word/footer1.xml", "<w:ftr/>")
	paths = pkg.Paths()
	if paths[len(paths)-1] != "word/footer1.xml" {
		t.Errorf("expected appended part last, got %q", paths[len(paths)-1])
	}
}

func TestPackage_EncodeDeterministic(t *testing.T) {
	pkg := NewPackage()
	pkg.WriteText("[Content_Types].xml", "<Types/>")
	pkg.WriteText("word/document.xml", "<w:document>content</w:document>")

	first, err := pkg.Encode(flate.DefaultCompression)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	second, err := pkg.Encode(flate.DefaultCompression)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Error("Encode() is not deterministic for identical content")
	}

	// Round-trip preserves content.
	reader, err := zip.NewReader(bytes.NewReader(first), int64(len(first)))
	if err != nil {
		t.Fatalf("failed to re-read encoded package: %v", err)
	}
	found := false
	for _, file := range reader.File {
		if file.Name != "word/document.xml" {
			continue
		}
		found = true
		rc, err := file.Open()
		if err != nil {
			t.Fatalf("failed to open entry: %v", err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("failed to read entry: %v", err)
		}
		if string(content) != "<w:document>content</w:document>" {
			t.Errorf("round-tripped content = %q", content)
		}
	}
	if !found {
		t.Error("encoded package is missing word/document.xml")
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		path string
		want PartKind
	}{
		{"word/document.xml", PartKindXML},
		{"[Content_Types].xml", PartKindXML},
		{"word/_rels/document.xml.rels", PartKindRels},
		{"_rels/.rels", PartKindRels},
		{"word/media/image1.png", PartKindMedia},
		{"word/embeddings/object1.bin", PartKindMedia},
	}

	for _, tt := range tests {
		if got := KindOf(tt.path); got != tt.want {
			t.Errorf("KindOf(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestRelsPathFor(t *testing.T) {
	tests := []struct {
		part string
		want string
	}{
		{"word/document.xml", "word/_rels/document.xml.rels"},
		{"word/footnotes.xml", "word/_rels/footnotes.xml.rels"},
		{"document.xml", "_rels/document.xml.rels"},
		{"", "_rels/.rels"},
	}

	for _, tt := range tests {
		if got := RelsPathFor(tt.part); got != tt.want {
			t.Errorf("RelsPathFor(%q) = %q, want %q", tt.part, got, tt.want)
		}
	}
}

func TestResolveRelTarget(t *testing.T) {
	tests := []struct {
		owner  string
		target string
		want   string
	}{
		{"word/document.xml", "header1.xml", "word/header1.xml"},
		{"word/document.xml", "media/image1.png", "word/media/image1.png"},
		{"word/document.xml", "/word/header1.xml", "word/header1.xml"},
		{"_rels-owner", "word/document.xml", "word/document.xml"},
	}

	for _, tt := range tests {
		owner := tt.owner
		if owner == "_rels-owner" {
			owner = ""
		}
		if got := ResolveRelTarget(owner, tt.target); got != tt.want {
			t.Errorf("ResolveRelTarget(%q, %q) = %q, want %q", owner, tt.target, got, tt.want)
		}
	}
}

func TestNormalization(t *testing.T) {
	if got := NormalizePartPath("/word/document.xml"); got != "word/document.xml" {
		t.Errorf("NormalizePartPath() = %q", got)
	}
	if got := PartName("word/header1.xml"); got != "/word/header1.xml" {
		t.Errorf("PartName() = %q", got)
	}
	if got := NormalizeExtension(".PNG"); got != "png" {
		t.Errorf("NormalizeExtension() = %q", got)
	}
	if got := NormalizeExtension("Rels"); got != "rels" {
		t.Errorf("NormalizeExtension() = %q", got)
	}
}

func TestParseRelationships(t *testing.T) {
	data := []byte(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
  <Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/header" Target="header1.xml"/>
  <Relationship Id="rId2" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/hyperlink" Target="https://example.com" TargetMode="External"/>
</Relationships>`)

	rels, err := ParseRelationships(data)
	if err != nil {
		t.Fatalf("ParseRelationships() error = %v", err)
	}
	if len(rels) != 2 {
		t.Fatalf("expected 2 relationships, got %d", len(rels))
	}
	if rels[0].ID != "rId1" || rels[0].Target != "header1.xml" {
		t.Errorf("unexpected first relationship: %+v", rels[0])
	}
	if rels[1].TargetMode != "External" {
		t.Errorf("expected TargetMode External, got %q", rels[1].TargetMode)
	}
}

func TestFingerprint(t *testing.T) {
	a := Fingerprint([]byte("alpha"))
	b := Fingerprint([]byte("alpha"))
	c := Fingerprint([]byte("beta"))

	if a != b {
		t.Error("Fingerprint() differs for identical content")
	}
	if a == c {
		t.Error("Fingerprint() collides for different content")
	}
	if len(a) != 64 {
		t.Errorf("Fingerprint() length = %d, want 64 hex chars", len(a))
	}
}
