package redline

import (
	"compress/flate"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/benjaminschreck/go-redline/pkg/redline/opc"
	"github.com/benjaminschreck/go-redline/pkg/redline/oxml"
)

// ApplyOptions controls one apply call.
type ApplyOptions struct {
	// Strict aborts the whole call on a missing operation target. Best-effort
	// mode (Strict=false) degrades such operations to zero-effect report
	// entries; replacement-count mismatches stay fatal either way.
	Strict bool `json:"strict"`
	// CompressionLevel is the DEFLATE level for re-encoding. Zero selects the
	// compress/flate default.
	CompressionLevel int `json:"compressionLevel,omitempty"`
	// ValidatePayloads gates set-xml payloads and spliced registry parts on
	// well-formedness.
	ValidatePayloads bool `json:"validatePayloads"`
}

// DefaultApplyOptions returns the strict-by-default options.
func DefaultApplyOptions() ApplyOptions {
	config := GetGlobalConfig()
	return ApplyOptions{
		Strict:           config.Strict,
		CompressionLevel: config.CompressionLevel,
		ValidatePayloads: config.ValidatePayloads,
	}
}

// Report entry effects.
const (
	EffectCreated  = "created"
	EffectUpdated  = "updated"
	EffectRemoved  = "removed"
	EffectReplaced = "replaced"
	EffectNoop     = "noop"
	EffectSkipped  = "skipped"
)

// OperationReport describes what one operation did.
type OperationReport struct {
	Index        int           `json:"index"`
	Type         OperationKind `json:"type"`
	Path         string        `json:"path"`
	Replacements *int          `json:"replacements,omitempty"`
	Effect       string        `json:"effect"`
}

// ApplyResult is the outcome of one successful apply call: the re-encoded
// package, the set of part paths the plan touched (removed paths included),
// a per-operation report, and blake3 fingerprints of the surviving modified
// parts. ApplyID correlates the result with logs and audits.
type ApplyResult struct {
	ApplyID       string            `json:"applyId"`
	Bytes         []byte            `json:"-"`
	ModifiedParts []string          `json:"modifiedParts"`
	Reports       []OperationReport `json:"reports"`
	Fingerprints  map[string]string `json:"fingerprints"`
}

// Apply executes the operation list strictly in order against one in-memory
// package and re-encodes it. Operations either all complete or the call
// errors before any bytes are produced; no partial package is observable.
func Apply(packageBytes []byte, ops []Operation, opts ApplyOptions) (*ApplyResult, error) {
	pkg, err := opc.OpenPackage(packageBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to open package: %w", err)
	}

	a := &applier{
		pkg:      pkg,
		opts:     opts,
		modified: make(map[string]bool),
	}

	log := GetLogger().WithField("operations", len(ops))
	log.Debug("apply: starting")

	for i, op := range ops {
		report, err := a.applyOne(i, op)
		if err != nil {
			return nil, &OperationError{Index: i, Kind: op.Kind(), Path: op.TargetPath(), Cause: err}
		}
		a.reports = append(a.reports, report)
	}

	level := opts.CompressionLevel
	if level == 0 {
		level = flate.DefaultCompression
	}
	encoded, err := pkg.Encode(level)
	if err != nil {
		return nil, fmt.Errorf("failed to encode package: %w", err)
	}

	result := &ApplyResult{
		ApplyID:      uuid.NewString(),
		Bytes:        encoded,
		Reports:      a.reports,
		Fingerprints: make(map[string]string),
	}
	for path := range a.modified {
		result.ModifiedParts = append(result.ModifiedParts, path)
		if content, err := pkg.Read(path); err == nil {
			result.Fingerprints[path] = opc.Fingerprint(content)
		}
	}
	sort.Strings(result.ModifiedParts)

	log.WithField("applyId", result.ApplyID).Debug("apply: done, %d part(s) modified", len(result.ModifiedParts))
	return result, nil
}

// ApplyPlan is Apply over a plan's operation list.
func ApplyPlan(packageBytes []byte, plan *Plan, opts ApplyOptions) (*ApplyResult, error) {
	return Apply(packageBytes, plan.Operations, opts)
}

type applier struct {
	pkg      *opc.Package
	opts     ApplyOptions
	modified map[string]bool
	reports  []OperationReport
}

// applyOne dispatches one operation. The switch is exhaustive over the
// sealed union; the default arm catches any kind added without a handler.
func (a *applier) applyOne(index int, op Operation) (OperationReport, error) {
	report := OperationReport{Index: index, Type: op.Kind(), Path: op.TargetPath()}

	var effect string
	var err error
	switch o := op.(type) {
	case SetXML:
		effect, err = a.setXML(o)
	case SetText:
		effect, err = a.setPart(o.Path, []byte(o.Text))
	case SetBinary:
		effect, err = a.setPart(o.Path, o.Data)
	case RemovePart:
		effect, err = a.removePart(o)
	case ReplaceXMLText:
		effect, err = a.replaceXMLText(o, &report)
	case UpsertRelationship:
		effect, err = a.upsertRelationship(o)
	case RemoveRelationship:
		effect, err = a.removeRelationship(o)
	case EnsureContentTypeOverride:
		effect, err = a.ensureOverride(o)
	case RemoveContentTypeOverride:
		effect, err = a.removeOverride(o)
	case EnsureContentTypeDefault:
		effect, err = a.ensureDefault(o)
	case RemoveContentTypeDefault:
		effect, err = a.removeDefault(o)
	default:
		err = NewUnknownOperationError(string(op.Kind()))
	}
	if err != nil {
		return report, err
	}

	report.Effect = effect
	return report, nil
}

// skipOrFail implements the strict contract for a missing operation target:
// strict mode raises targetErr, best-effort mode degrades to a skipped
// report entry. An explicit allow flag skips in both modes.
func (a *applier) skipOrFail(allowed bool, targetErr error) (string, error) {
	if allowed || !a.opts.Strict {
		return EffectSkipped, nil
	}
	return "", targetErr
}

func (a *applier) setXML(op SetXML) (string, error) {
	if a.opts.ValidatePayloads {
		if err := oxml.Validate([]byte(op.XML)); err != nil {
			return "", NewMalformedPayloadError(op.Path, err)
		}
	}
	return a.setPart(op.Path, []byte(op.XML))
}

func (a *applier) setPart(path string, content []byte) (string, error) {
	normalized := opc.NormalizePartPath(path)
	existed := a.pkg.Has(normalized)
	if existed {
		if prior, err := a.pkg.Read(normalized); err == nil && string(prior) == string(content) {
			return EffectNoop, nil
		}
	}
	a.pkg.Write(normalized, content)
	a.modified[normalized] = true
	if existed {
		return EffectUpdated, nil
	}
	return EffectCreated, nil
}

func (a *applier) removePart(op RemovePart) (string, error) {
	normalized := opc.NormalizePartPath(op.Path)
	if !a.pkg.Has(normalized) {
		return a.skipOrFail(op.AllowMissing, NewPartNotFoundError(normalized))
	}
	a.pkg.Remove(normalized)
	a.modified[normalized] = true
	return EffectRemoved, nil
}

func (a *applier) replaceXMLText(op ReplaceXMLText, report *OperationReport) (string, error) {
	if op.Find == "" {
		return "", fmt.Errorf("replace-xml-text requires a non-empty find string")
	}

	normalized := opc.NormalizePartPath(op.Path)
	text, err := a.pkg.ReadText(normalized)
	if err != nil {
		return a.skipOrFail(false, NewPartNotFoundError(normalized))
	}

	matches := strings.Count(text, op.Find)
	replaced := matches
	if op.Occurrence == "" || op.Occurrence == OccurrenceFirst {
		if matches > 1 {
			replaced = 1
		}
	} else if op.Occurrence != OccurrenceAll {
		return "", fmt.Errorf("invalid occurrence %q", op.Occurrence)
	}

	// The count assertion is a plan precondition; a mismatch is fatal even
	// in best-effort mode.
	if op.ExpectedReplacements != nil && replaced != *op.ExpectedReplacements {
		return "", NewExpectedCountMismatchError(normalized, *op.ExpectedReplacements, replaced)
	}

	if replaced == 0 {
		zero := 0
		report.Replacements = &zero
		if op.AllowNoMatch {
			return EffectNoop, nil
		}
		return a.skipOrFail(false, NewAnchorNotFoundError("find text", op.Find))
	}

	limit := -1
	if replaced == 1 && matches >= 1 && (op.Occurrence == "" || op.Occurrence == OccurrenceFirst) {
		limit = 1
	}
	a.pkg.WriteText(normalized, strings.Replace(text, op.Find, op.Replace, limit))
	a.modified[normalized] = true
	report.Replacements = &replaced
	return EffectReplaced, nil
}

func relationshipEntryXML(id, relType, target, targetMode string) string {
	var b strings.Builder
	b.WriteString(`<Relationship Id="` + oxml.EscapeAttr(id) + `" Type="` + oxml.EscapeAttr(relType) + `" Target="` + oxml.EscapeAttr(target) + `"`)
	if targetMode != "" {
		b.WriteString(` TargetMode="` + oxml.EscapeAttr(targetMode) + `"`)
	}
	b.WriteString("/>")
	return b.String()
}

func (a *applier) upsertRelationship(op UpsertRelationship) (string, error) {
	relsPath := relsPathForOwner(op.Owner)
	entry := relationshipEntryXML(op.ID, op.Type, op.Target, op.TargetMode)

	if !a.pkg.Has(relsPath) {
		text := oxml.Declaration + `<Relationships xmlns="` + opc.RelationshipsNamespace + `">` + entry + `</Relationships>`
		a.pkg.WriteText(relsPath, text)
		a.modified[relsPath] = true
		return EffectCreated, nil
	}

	text, err := a.pkg.ReadText(relsPath)
	if err != nil {
		return "", err
	}

	span, err := oxml.FindElementSpan(text, "Relationship", "Id", op.ID)
	switch {
	case err == nil:
		if span.Cut(text) == entry {
			return EffectNoop, nil
		}
		return a.spliceRegistryPart(relsPath, text, []oxml.Edit{{Span: span, Replacement: entry}}, EffectUpdated)
	case errors.Is(err, oxml.ErrSpanNotFound):
		return a.insertBeforeRootClose(relsPath, text, "Relationships", opc.RelationshipsNamespace, entry)
	case errors.Is(err, oxml.ErrSpanAmbiguous):
		return "", fmt.Errorf("relationship id %q appears more than once in %s", op.ID, relsPath)
	default:
		return "", err
	}
}

func (a *applier) removeRelationship(op RemoveRelationship) (string, error) {
	relsPath := relsPathForOwner(op.Owner)
	missing := NewRelationshipNotFoundError(relsPath, op.ID)

	text, err := a.pkg.ReadText(relsPath)
	if err != nil {
		return a.skipOrFail(op.AllowMissing, missing)
	}

	span, err := oxml.FindElementSpan(text, "Relationship", "Id", op.ID)
	if err != nil {
		if errors.Is(err, oxml.ErrSpanNotFound) {
			return a.skipOrFail(op.AllowMissing, missing)
		}
		return "", err
	}

	return a.spliceRegistryPart(relsPath, text, []oxml.Edit{{Span: widenOverWhitespace(text, span)}}, EffectRemoved)
}

func overrideEntryXML(partName, contentType string) string {
	return `<Override PartName="` + oxml.EscapeAttr(partName) + `" ContentType="` + oxml.EscapeAttr(contentType) + `"/>`
}

func defaultEntryXML(extension, contentType string) string {
	return `<Default Extension="` + oxml.EscapeAttr(extension) + `" ContentType="` + oxml.EscapeAttr(contentType) + `"/>`
}

func (a *applier) ensureOverride(op EnsureContentTypeOverride) (string, error) {
	partName := opc.PartName(op.PartName)
	entry := overrideEntryXML(partName, op.ContentType)
	return a.ensureContentTypeEntry(entry, func(text string) (oxml.Span, error) {
		return oxml.FindElementSpan(text, "Override", "PartName", partName)
	})
}

func (a *applier) removeOverride(op RemoveContentTypeOverride) (string, error) {
	partName := opc.PartName(op.PartName)
	return a.removeContentTypeEntry(op.AllowMissing, NewOverrideNotFoundError(partName), func(text string) (oxml.Span, error) {
		return oxml.FindElementSpan(text, "Override", "PartName", partName)
	})
}

func (a *applier) ensureDefault(op EnsureContentTypeDefault) (string, error) {
	ext := opc.NormalizeExtension(op.Extension)
	entry := defaultEntryXML(ext, op.ContentType)
	return a.ensureContentTypeEntry(entry, func(text string) (oxml.Span, error) {
		return oxml.FindElementSpanFold(text, "Default", "Extension", ext)
	})
}

func (a *applier) removeDefault(op RemoveContentTypeDefault) (string, error) {
	ext := opc.NormalizeExtension(op.Extension)
	return a.removeContentTypeEntry(op.AllowMissing, NewDefaultNotFoundError(ext), func(text string) (oxml.Span, error) {
		return oxml.FindElementSpanFold(text, "Default", "Extension", ext)
	})
}

func (a *applier) ensureContentTypeEntry(entry string, find func(string) (oxml.Span, error)) (string, error) {
	// "Ensure" is idempotent establishment: a package without the registry
	// part gets one created around the single new entry.
	if !a.pkg.Has(contentTypesPath) {
		text := oxml.Declaration + `<Types xmlns="` + opc.ContentTypesNamespace + `">` + entry + `</Types>`
		a.pkg.WriteText(contentTypesPath, text)
		a.modified[contentTypesPath] = true
		return EffectCreated, nil
	}

	text, err := a.pkg.ReadText(contentTypesPath)
	if err != nil {
		return "", err
	}

	span, err := find(text)
	switch {
	case err == nil:
		if span.Cut(text) == entry {
			return EffectNoop, nil
		}
		return a.spliceRegistryPart(contentTypesPath, text, []oxml.Edit{{Span: span, Replacement: entry}}, EffectUpdated)
	case errors.Is(err, oxml.ErrSpanNotFound):
		return a.insertBeforeRootClose(contentTypesPath, text, "Types", opc.ContentTypesNamespace, entry)
	case errors.Is(err, oxml.ErrSpanAmbiguous):
		return "", fmt.Errorf("duplicate content-type entry in %s", contentTypesPath)
	default:
		return "", err
	}
}

func (a *applier) removeContentTypeEntry(allowMissing bool, missing error, find func(string) (oxml.Span, error)) (string, error) {
	text, err := a.pkg.ReadText(contentTypesPath)
	if err != nil {
		return a.skipOrFail(allowMissing, missing)
	}

	span, err := find(text)
	if err != nil {
		if errors.Is(err, oxml.ErrSpanNotFound) {
			return a.skipOrFail(allowMissing, missing)
		}
		return "", err
	}

	return a.spliceRegistryPart(contentTypesPath, text, []oxml.Edit{{Span: widenOverWhitespace(text, span)}}, EffectRemoved)
}

// insertBeforeRootClose splices a new entry just before the root's closing
// tag. A self-closing root holds no entries, so the part is rebuilt around
// the new one.
func (a *applier) insertBeforeRootClose(path, text, rootTag, namespace, entry string) (string, error) {
	at, err := oxml.RootCloseStart(text, rootTag)
	if err != nil {
		if errors.Is(err, oxml.ErrSpanNotFound) {
			rebuilt := oxml.Declaration + "<" + rootTag + ` xmlns="` + namespace + `">` + entry + "</" + rootTag + ">"
			a.pkg.WriteText(path, rebuilt)
			a.modified[path] = true
			return EffectUpdated, nil
		}
		return "", err
	}
	return a.spliceRegistryPart(path, text, []oxml.Edit{{Span: oxml.Span{Start: at, End: at}, Replacement: entry}}, EffectUpdated)
}

// spliceRegistryPart applies edits to a .rels or content-types part,
// preserving untouched sibling bytes, and re-validates the result.
func (a *applier) spliceRegistryPart(path, text string, edits []oxml.Edit, effect string) (string, error) {
	spliced := oxml.Splice(text, edits)
	if a.opts.ValidatePayloads {
		if err := oxml.Validate([]byte(spliced)); err != nil {
			return "", NewMalformedPayloadError(path, err)
		}
	}
	a.pkg.WriteText(path, spliced)
	a.modified[path] = true
	return effect, nil
}

// widenOverWhitespace extends a span's start backwards over indentation so a
// removed entry does not leave a blank line behind.
func widenOverWhitespace(src string, span oxml.Span) oxml.Span {
	start := span.Start
	for start > 0 {
		c := src[start-1]
		if c != ' ' && c != '\t' && c != '\r' && c != '\n' {
			break
		}
		start--
	}
	return oxml.Span{Start: start, End: span.End}
}
