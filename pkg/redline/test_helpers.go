// test_helpers.go contains fixture builders that are exposed only for
// testing purposes. These should not be used in production code.

package redline

import (
	"github.com/benjaminschreck/go-redline/pkg/redline/docmodel"
	"github.com/benjaminschreck/go-redline/pkg/redline/opc"
	"github.com/benjaminschreck/go-redline/pkg/redline/oxml"
)

// testPackageSpec describes the extra parts a fixture package carries beyond
// the fixed container scaffolding.
type testPackageSpec struct {
	DocumentXML  string
	DocumentRels []opc.Relationship
	ExtraParts   map[string]string
	Overrides    map[string]string
}

// buildTestPackage builds a minimal DOCX package in memory.
func buildTestPackage(spec testPackageSpec) []byte {
	pkg := opc.NewPackage()

	pkg.WriteText("[Content_Types].xml", buildContentTypesXML(spec.Overrides))

	pkg.WriteText("_rels/.rels", oxml.Declaration+
		`<Relationships xmlns="`+opc.RelationshipsNamespace+`">`+
		`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>`+
		`</Relationships>`)

	docRels := oxml.Declaration + `<Relationships xmlns="` + opc.RelationshipsNamespace + `">`
	for _, rel := range spec.DocumentRels {
		docRels += `<Relationship Id="` + rel.ID + `" Type="` + rel.Type + `" Target="` + rel.Target + `"`
		if rel.TargetMode != "" {
			docRels += ` TargetMode="` + rel.TargetMode + `"`
		}
		docRels += `/>`
	}
	docRels += `</Relationships>`
	pkg.WriteText("word/_rels/document.xml.rels", docRels)

	documentXML := spec.DocumentXML
	if documentXML == "" {
		documentXML = oxml.Declaration +
			`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body></w:body></w:document>`
	}
	pkg.WriteText("word/document.xml", documentXML)

	for path, content := range spec.ExtraParts {
		pkg.WriteText(path, content)
	}

	data, err := pkg.Encode(-1)
	if err != nil {
		panic("buildTestPackage: " + err.Error())
	}
	return data
}

func buildContentTypesXML(overrides map[string]string) string {
	xml := oxml.Declaration + `<Types xmlns="` + opc.ContentTypesNamespace + `">` +
		`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>` +
		`<Default Extension="xml" ContentType="application/xml"/>` +
		`<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>`
	for partName, contentType := range overrides {
		xml += `<Override PartName="` + partName + `" ContentType="` + contentType + `"/>`
	}
	return xml + `</Types>`
}

// textParagraph builds a single-run paragraph block.
func textParagraph(paraID, text string) docmodel.Paragraph {
	return docmodel.Paragraph{ParaID: paraID, Runs: []docmodel.Run{{Text: text}}}
}

// serializeBodyOrPanic is a fixture shortcut for building baseline bytes
// that match a model exactly.
func serializeBodyOrPanic(doc *docmodel.Document) string {
	xml, err := docmodel.WMLSerializer{}.SerializeBody(doc)
	if err != nil {
		panic("serializeBodyOrPanic: " + err.Error())
	}
	return xml
}
