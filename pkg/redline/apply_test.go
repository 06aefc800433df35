package redline

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/benjaminschreck/go-redline/pkg/redline/opc"
)

func strictOptions() ApplyOptions {
	return ApplyOptions{Strict: true, ValidatePayloads: true}
}

func readPart(t *testing.T, data []byte, path string) string {
	t.Helper()
	pkg, err := opc.OpenPackage(data)
	if err != nil {
		t.Fatalf("failed to open result package: %v", err)
	}
	text, err := pkg.ReadText(path)
	if err != nil {
		t.Fatalf("failed to read %s: %v", path, err)
	}
	return text
}

func TestApplySetAndRemovePart(t *testing.T) {
	baseline := buildTestPackage(testPackageSpec{
		ExtraParts: map[string]string{"word/media/image1.png": "pngbytes"},
	})

	result, err := Apply(baseline, []Operation{
		SetXML{Path: "word/header1.xml", XML: "<w:hdr/>"},
		SetText{Path: "docProps/custom.txt", Text: "plain"},
		SetBinary{Path: "word/media/image2.png", Data: []byte{1, 2, 3}},
		RemovePart{Path: "word/media/image1.png"},
	}, strictOptions())
	if err != nil {
		t.Fatalf("Apply() error: %v", err)
	}

	pkg, err := opc.OpenPackage(result.Bytes)
	if err != nil {
		t.Fatalf("failed to reopen result: %v", err)
	}
	if !pkg.Has("word/header1.xml") || !pkg.Has("docProps/custom.txt") || !pkg.Has("word/media/image2.png") {
		t.Error("written parts missing from result package")
	}
	if pkg.Has("word/media/image1.png") {
		t.Error("removed part still present")
	}

	wantModified := []string{"docProps/custom.txt", "word/header1.xml", "word/media/image1.png", "word/media/image2.png"}
	if len(result.ModifiedParts) != len(wantModified) {
		t.Fatalf("ModifiedParts = %v, want %v", result.ModifiedParts, wantModified)
	}
	for i, path := range wantModified {
		if result.ModifiedParts[i] != path {
			t.Errorf("ModifiedParts[%d] = %s, want %s", i, result.ModifiedParts[i], path)
		}
	}

	// Removed parts have no surviving content to fingerprint.
	if _, ok := result.Fingerprints["word/media/image1.png"]; ok {
		t.Error("removed part must not carry a fingerprint")
	}
	if result.ApplyID == "" {
		t.Error("ApplyID must be set")
	}
}

func TestApplyStrictAbortOnMissingPart(t *testing.T) {
	baseline := buildTestPackage(testPackageSpec{})

	_, err := Apply(baseline, []Operation{
		RemovePart{Path: "word/nonexistent.xml"},
	}, strictOptions())
	if err == nil {
		t.Fatal("expected strict apply to fail on a missing part")
	}
	if !IsPartNotFoundError(err) {
		t.Errorf("expected PartNotFoundError, got %v", err)
	}

	var opErr *OperationError
	if !errors.As(err, &opErr) {
		t.Fatalf("expected OperationError wrapper, got %T", err)
	}
	if opErr.Index != 0 || opErr.Kind != OpRemovePart {
		t.Errorf("OperationError context = %d/%s, want 0/%s", opErr.Index, opErr.Kind, OpRemovePart)
	}
}

func TestApplyBestEffortSkipsMissingTargets(t *testing.T) {
	baseline := buildTestPackage(testPackageSpec{})

	result, err := Apply(baseline, []Operation{
		RemovePart{Path: "word/nonexistent.xml"},
		RemoveRelationship{Owner: "word/document.xml", ID: "rIdGhost"},
		SetXML{Path: "word/header1.xml", XML: "<w:hdr/>"},
	}, ApplyOptions{Strict: false, ValidatePayloads: true})
	if err != nil {
		t.Fatalf("best-effort Apply() error: %v", err)
	}

	if got := result.Reports[0].Effect; got != EffectSkipped {
		t.Errorf("report[0].Effect = %s, want %s", got, EffectSkipped)
	}
	if got := result.Reports[1].Effect; got != EffectSkipped {
		t.Errorf("report[1].Effect = %s, want %s", got, EffectSkipped)
	}
	if got := result.Reports[2].Effect; got != EffectCreated {
		t.Errorf("report[2].Effect = %s, want %s", got, EffectCreated)
	}
}

func TestApplyReplaceXMLTextFirstOccurrence(t *testing.T) {
	baseline := buildTestPackage(testPackageSpec{
		DocumentXML: `<w:document><w:body>` +
			`<w:p><w:r><w:t>Alpha</w:t></w:r></w:p>` +
			`<w:p><w:r><w:t>Alpha</w:t></w:r></w:p>` +
			`</w:body></w:document>`,
	})

	expected := 1
	result, err := Apply(baseline, []Operation{
		ReplaceXMLText{
			Path:                 "word/document.xml",
			Find:                 "<w:t>Alpha</w:t>",
			Replace:              "<w:t>Beta</w:t>",
			Occurrence:           OccurrenceFirst,
			ExpectedReplacements: &expected,
		},
	}, strictOptions())
	if err != nil {
		t.Fatalf("Apply() error: %v", err)
	}

	doc := readPart(t, result.Bytes, "word/document.xml")
	if got := strings.Count(doc, "<w:t>Alpha</w:t>"); got != 1 {
		t.Errorf("Alpha occurrences = %d, want 1", got)
	}
	if got := strings.Count(doc, "<w:t>Beta</w:t>"); got != 1 {
		t.Errorf("Beta occurrences = %d, want 1", got)
	}
	if result.Reports[0].Replacements == nil || *result.Reports[0].Replacements != 1 {
		t.Errorf("report replacements = %v, want 1", result.Reports[0].Replacements)
	}
}

func TestApplyReplaceXMLTextCountMismatchFatalInBothModes(t *testing.T) {
	baseline := buildTestPackage(testPackageSpec{
		DocumentXML: `<w:document><w:body><w:p><w:r><w:t>Alpha</w:t></w:r></w:p></w:body></w:document>`,
	})

	expected := 2
	op := ReplaceXMLText{
		Path:                 "word/document.xml",
		Find:                 "<w:t>Alpha</w:t>",
		Replace:              "<w:t>Beta</w:t>",
		Occurrence:           OccurrenceAll,
		ExpectedReplacements: &expected,
	}

	for _, strict := range []bool{true, false} {
		_, err := Apply(baseline, []Operation{op}, ApplyOptions{Strict: strict, ValidatePayloads: true})
		if !IsExpectedCountMismatchError(err) {
			t.Errorf("strict=%v: expected ExpectedCountMismatchError, got %v", strict, err)
		}
	}
}

func TestApplyUpsertRelationshipCreatesRelsPart(t *testing.T) {
	baseline := buildTestPackage(testPackageSpec{
		ExtraParts: map[string]string{"word/header1.xml": "<w:hdr/>"},
	})

	result, err := Apply(baseline, []Operation{
		UpsertRelationship{
			Owner:  "word/header1.xml",
			ID:     "rId1",
			Type:   "http://schemas.openxmlformats.org/officeDocument/2006/relationships/image",
			Target: "media/image1.png",
		},
	}, strictOptions())
	if err != nil {
		t.Fatalf("Apply() error: %v", err)
	}

	rels := readPart(t, result.Bytes, "word/_rels/header1.xml.rels")
	if !strings.Contains(rels, `xmlns="`+opc.RelationshipsNamespace+`"`) {
		t.Error("created .rels part missing the relationships namespace")
	}
	parsed, err := opc.ParseRelationships([]byte(rels))
	if err != nil {
		t.Fatalf("created .rels part does not parse: %v", err)
	}
	if len(parsed) != 1 || parsed[0].ID != "rId1" || parsed[0].Target != "media/image1.png" {
		t.Errorf("unexpected relationships: %+v", parsed)
	}
}

func TestApplyUpsertRelationshipIsIdempotentPerID(t *testing.T) {
	baseline := buildTestPackage(testPackageSpec{
		DocumentRels: []opc.Relationship{
			{ID: "rId5", Type: relTypeHeader, Target: "header1.xml"},
		},
	})

	// Three upserts with the same id, the last one winning, must leave
	// exactly one matching entry.
	ops := []Operation{
		UpsertRelationship{Owner: "word/document.xml", ID: "rId5", Type: relTypeHeader, Target: "header1.xml"},
		UpsertRelationship{Owner: "word/document.xml", ID: "rId5", Type: relTypeHeader, Target: "header2.xml"},
		UpsertRelationship{Owner: "word/document.xml", ID: "rId5", Type: relTypeHeader, Target: "header3.xml"},
	}
	result, err := Apply(baseline, ops, strictOptions())
	if err != nil {
		t.Fatalf("Apply() error: %v", err)
	}

	rels := readPart(t, result.Bytes, "word/_rels/document.xml.rels")
	if got := strings.Count(rels, `Id="rId5"`); got != 1 {
		t.Errorf("rId5 entries = %d, want exactly 1\n%s", got, rels)
	}
	if !strings.Contains(rels, `Target="header3.xml"`) {
		t.Error("last upsert did not win")
	}
}

func TestApplyRemoveRelationship(t *testing.T) {
	baseline := buildTestPackage(testPackageSpec{
		DocumentRels: []opc.Relationship{
			{ID: "rIdHdr1", Type: relTypeHeader, Target: "header1.xml"},
			{ID: "rIdKeep", Type: relTypeFooter, Target: "footer1.xml"},
		},
	})

	result, err := Apply(baseline, []Operation{
		RemoveRelationship{Owner: "word/document.xml", ID: "rIdHdr1"},
	}, strictOptions())
	if err != nil {
		t.Fatalf("Apply() error: %v", err)
	}

	rels := readPart(t, result.Bytes, "word/_rels/document.xml.rels")
	if strings.Contains(rels, "rIdHdr1") {
		t.Error("removed relationship still present")
	}
	if !strings.Contains(rels, "rIdKeep") {
		t.Error("sibling relationship was damaged")
	}
}

func TestApplyContentTypeOverrides(t *testing.T) {
	baseline := buildTestPackage(testPackageSpec{})

	result, err := Apply(baseline, []Operation{
		EnsureContentTypeOverride{PartName: "/word/header1.xml", ContentType: contentTypeHeader},
		EnsureContentTypeOverride{PartName: "/word/header1.xml", ContentType: contentTypeHeader},
		EnsureContentTypeDefault{Extension: ".PNG", ContentType: "image/png"},
	}, strictOptions())
	if err != nil {
		t.Fatalf("Apply() error: %v", err)
	}

	types := readPart(t, result.Bytes, "[Content_Types].xml")
	if got := strings.Count(types, `PartName="/word/header1.xml"`); got != 1 {
		t.Errorf("override entries = %d, want exactly 1", got)
	}
	if !strings.Contains(types, `Extension="png"`) {
		t.Error("default extension was not normalized to lower case without dot")
	}
	if result.Reports[1].Effect != EffectNoop {
		t.Errorf("repeated ensure effect = %s, want %s", result.Reports[1].Effect, EffectNoop)
	}

	// Removal of an absent entry is fatal in strict mode unless allowed.
	_, err = Apply(baseline, []Operation{
		RemoveContentTypeOverride{PartName: "/word/ghost.xml"},
	}, strictOptions())
	if !IsOverrideNotFoundError(err) {
		t.Errorf("expected OverrideNotFoundError, got %v", err)
	}

	_, err = Apply(baseline, []Operation{
		RemoveContentTypeDefault{Extension: "zip"},
	}, strictOptions())
	if !IsDefaultNotFoundError(err) {
		t.Errorf("expected DefaultNotFoundError, got %v", err)
	}
}

func TestApplyMalformedPayloadRejected(t *testing.T) {
	baseline := buildTestPackage(testPackageSpec{})

	_, err := Apply(baseline, []Operation{
		SetXML{Path: "word/header1.xml", XML: "<w:hdr><unclosed></w:hdr>"},
	}, strictOptions())
	if !IsMalformedPayloadError(err) {
		t.Errorf("expected MalformedPayloadError, got %v", err)
	}

	// With validation off the same payload is written as-is.
	result, err := Apply(baseline, []Operation{
		SetText{Path: "word/header1.xml", Text: "<w:hdr><unclosed></w:hdr>"},
	}, ApplyOptions{Strict: true})
	if err != nil {
		t.Fatalf("Apply() without validation error: %v", err)
	}
	if got := readPart(t, result.Bytes, "word/header1.xml"); got != "<w:hdr><unclosed></w:hdr>" {
		t.Errorf("payload rewritten: %s", got)
	}
}

func TestApplyIdempotence(t *testing.T) {
	baseline := buildTestPackage(testPackageSpec{
		DocumentRels: []opc.Relationship{
			{ID: "rIdHdr1", Type: relTypeHeader, Target: "header1.xml"},
		},
		ExtraParts: map[string]string{"word/header1.xml": "<w:hdr/>"},
	})

	ops := []Operation{
		SetXML{Path: "word/header1.xml", XML: "<w:hdr><w:p/></w:hdr>"},
		UpsertRelationship{Owner: "word/document.xml", ID: "rIdHdr1", Type: relTypeHeader, Target: "header1.xml"},
		EnsureContentTypeOverride{PartName: "/word/header1.xml", ContentType: contentTypeHeader},
	}

	first, err := Apply(baseline, ops, strictOptions())
	if err != nil {
		t.Fatalf("first Apply() error: %v", err)
	}
	second, err := Apply(baseline, ops, strictOptions())
	if err != nil {
		t.Fatalf("second Apply() error: %v", err)
	}
	if !bytes.Equal(first.Bytes, second.Bytes) {
		t.Error("applying the same plan to the same baseline twice produced different bytes")
	}
}

func TestApplyUnknownOperationKind(t *testing.T) {
	baseline := buildTestPackage(testPackageSpec{})

	_, err := Apply(baseline, []Operation{bogusOperation{}}, strictOptions())
	if !IsUnknownOperationError(err) {
		t.Errorf("expected UnknownOperationError, got %v", err)
	}
}

// bogusOperation simulates an operation kind added without an applier
// handler.
type bogusOperation struct{}

func (bogusOperation) isOperation()        {}
func (bogusOperation) Kind() OperationKind { return "bogus" }
func (bogusOperation) TargetPath() string  { return "" }
