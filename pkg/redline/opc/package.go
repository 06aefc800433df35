package opc

import (
	"archive/zip"
	"bytes"
	"compress/flate"
	"encoding/hex"
	"encoding/xml"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/zeebo/blake3"
)

// PartKind classifies a package part by its role in the container.
type PartKind string

const (
	PartKindXML   PartKind = "xml"
	PartKindRels  PartKind = "rels"
	PartKindMedia PartKind = "media"
)

// Relationship represents a single entry of a .rels part.
type Relationship struct {
	ID         string `xml:"Id,attr" json:"id"`
	Type       string `xml:"Type,attr" json:"type"`
	Target     string `xml:"Target,attr" json:"target"`
	TargetMode string `xml:"TargetMode,attr,omitempty" json:"targetMode,omitempty"`
}

// Relationships represents the collection stored in a .rels part.
type Relationships struct {
	XMLName      xml.Name       `xml:"Relationships"`
	Namespace    string         `xml:"xmlns,attr"`
	Relationship []Relationship `xml:"Relationship"`
}

// RelationshipsNamespace is the xmlns of every .rels part.
const RelationshipsNamespace = "http://schemas.openxmlformats.org/package/2006/relationships"

// ContentTypesNamespace is the xmlns of [Content_Types].xml.
const ContentTypesNamespace = "http://schemas.openxmlformats.org/package/2006/content-types"

// Package is an in-memory OOXML container. Part order from the source
// archive is preserved; parts written after open are appended.
type Package struct {
	order []string
	parts map[string][]byte
}

// NewPackage creates an empty package.
func NewPackage() *Package {
	return &Package{
		parts: make(map[string][]byte),
	}
}

// OpenPackage decodes ZIP archive bytes into a Package.
func OpenPackage(data []byte) (*Package, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to read zip archive: %w", err)
	}

	pkg := NewPackage()
	for _, file := range reader.File {
		if strings.HasSuffix(file.Name, "/") {
			continue
		}

		rc, err := file.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open part %s: %w", file.Name, err)
		}

		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read part %s: %w", file.Name, err)
		}

		pkg.Write(NormalizePartPath(file.Name), content)
	}

	return pkg, nil
}

// Has reports whether a part exists at the given path.
func (p *Package) Has(partPath string) bool {
	_, ok := p.parts[NormalizePartPath(partPath)]
	return ok
}

// Read returns the raw bytes of a part. The returned slice is the stored
// buffer and must not be modified by the caller.
func (p *Package) Read(partPath string) ([]byte, error) {
	content, ok := p.parts[NormalizePartPath(partPath)]
	if !ok {
		return nil, fmt.Errorf("part %s not found", partPath)
	}
	return content, nil
}

// ReadText returns the content of a part as a string.
func (p *Package) ReadText(partPath string) (string, error) {
	content, err := p.Read(partPath)
	if err != nil {
		return "", err
	}
	return string(content), nil
}

// Write stores a part, overwriting any existing content at the path.
func (p *Package) Write(partPath string, content []byte) {
	normalized := NormalizePartPath(partPath)
	if _, ok := p.parts[normalized]; !ok {
		p.order = append(p.order, normalized)
	}
	p.parts[normalized] = content
}

// WriteText stores a part from string content.
func (p *Package) WriteText(partPath string, text string) {
	p.Write(partPath, []byte(text))
}

// Remove deletes a part and reports whether it existed.
func (p *Package) Remove(partPath string) bool {
	normalized := NormalizePartPath(partPath)
	if _, ok := p.parts[normalized]; !ok {
		return false
	}
	delete(p.parts, normalized)
	for i, name := range p.order {
		if name == normalized {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
	return true
}

// Paths returns all part paths in package order.
func (p *Package) Paths() []string {
	paths := make([]string, len(p.order))
	copy(paths, p.order)
	return paths
}

// Size returns the byte length of a part, or 0 if it does not exist.
func (p *Package) Size(partPath string) int {
	return len(p.parts[NormalizePartPath(partPath)])
}

// Encode re-encodes the package as ZIP bytes. Entries are written in
// package order with no timestamps, so identical content always encodes to
// identical bytes. The compression level follows compress/flate
// (flate.DefaultCompression for the zero-configuration case).
func (p *Package) Encode(compressionLevel int) ([]byte, error) {
	buf := new(bytes.Buffer)
	w := zip.NewWriter(buf)
	w.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, compressionLevel)
	})

	for _, name := range p.order {
		fw, err := w.CreateHeader(&zip.FileHeader{
			Name:   name,
			Method: zip.Deflate,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create entry %s: %w", name, err)
		}
		if _, err := fw.Write(p.parts[name]); err != nil {
			return nil, fmt.Errorf("failed to write entry %s: %w", name, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to close zip writer: %w", err)
	}
	return buf.Bytes(), nil
}

// KindOf classifies a part path.
func KindOf(partPath string) PartKind {
	normalized := NormalizePartPath(partPath)
	if strings.HasSuffix(normalized, ".rels") {
		return PartKindRels
	}
	if strings.HasSuffix(strings.ToLower(normalized), ".xml") {
		return PartKindXML
	}
	return PartKindMedia
}

// NormalizePartPath converts a part reference to the internal form: forward
// slashes, no leading slash.
func NormalizePartPath(partPath string) string {
	normalized := strings.ReplaceAll(partPath, "\\", "/")
	return strings.TrimPrefix(normalized, "/")
}

// PartName converts a part path to the content-type "PartName" form with a
// leading slash.
func PartName(partPath string) string {
	return "/" + NormalizePartPath(partPath)
}

// NormalizeExtension lowercases an extension and strips any leading dot, so
// ".PNG", "png" and "Png" all normalize to "png".
func NormalizeExtension(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}

// RelsPathFor returns the path of the .rels part that owns relationships for
// the given part, e.g. "word/document.xml" -> "word/_rels/document.xml.rels".
// The package root relationships live at "_rels/.rels".
func RelsPathFor(partPath string) string {
	normalized := NormalizePartPath(partPath)
	if normalized == "" {
		return "_rels/.rels"
	}

	dir := ""
	base := normalized
	if idx := strings.LastIndex(normalized, "/"); idx != -1 {
		dir = normalized[:idx]
		base = normalized[idx+1:]
	}

	if dir == "" {
		return fmt.Sprintf("_rels/%s.rels", base)
	}
	return fmt.Sprintf("%s/_rels/%s.rels", dir, base)
}

// ResolveRelTarget resolves a relationship target against the directory of
// the part that declared it. A target with a leading slash is taken as
// package-absolute.
func ResolveRelTarget(ownerPart string, target string) string {
	if strings.HasPrefix(target, "/") {
		return NormalizePartPath(target)
	}
	dir := path.Dir(NormalizePartPath(ownerPart))
	if dir == "." {
		dir = ""
	}
	return NormalizePartPath(path.Join(dir, target))
}

// ParseRelationships decodes a .rels part.
func ParseRelationships(data []byte) ([]Relationship, error) {
	var rels Relationships
	if err := xml.Unmarshal(data, &rels); err != nil {
		return nil, fmt.Errorf("failed to parse relationships: %w", err)
	}
	return rels.Relationship, nil
}

// Fingerprint returns the blake3 digest of part content as a hex string.
func Fingerprint(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}
