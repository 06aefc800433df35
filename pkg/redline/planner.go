package redline

import (
	"fmt"
	"sort"

	"github.com/benjaminschreck/go-redline/pkg/redline/docmodel"
	"github.com/benjaminschreck/go-redline/pkg/redline/opc"
)

// Relationship type URIs and content types for the parts the planner
// manages.
const (
	relTypeHeader    = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/header"
	relTypeFooter    = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/footer"
	relTypeFootnotes = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/footnotes"
	relTypeEndnotes  = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/endnotes"

	contentTypeHeader    = "application/vnd.openxmlformats-officedocument.wordprocessingml.header+xml"
	contentTypeFooter    = "application/vnd.openxmlformats-officedocument.wordprocessingml.footer+xml"
	contentTypeFootnotes = "application/vnd.openxmlformats-officedocument.wordprocessingml.footnotes+xml"
	contentTypeEndnotes  = "application/vnd.openxmlformats-officedocument.wordprocessingml.endnotes+xml"
)

const documentPart = "word/document.xml"

// relIDProbeCap bounds numeric-suffix probing when allocating a relationship
// id; exhausting it fails plan building instead of looping forever.
const relIDProbeCap = 10000

// Fallback reasons recorded in diagnostics when the targeted patch path is
// abandoned.
const (
	fallbackPatchNull     = "targeted-patch-returned-null"
	fallbackPatchErrorFmt = "targeted-patch-error:%v"
	fallbackMissingBuffer = "missing-baseline-buffer"
)

// PlanInput carries everything one plan-building call reads: the two model
// snapshots, the baseline package bytes, the injected serializer, and an
// optional hint set narrowing which paragraphs are inspected.
type PlanInput struct {
	Baseline       *docmodel.Document
	Current        *docmodel.Document
	BaselineBytes  []byte
	Serializer     docmodel.Serializer
	ParagraphHints []string
}

// BuildPlan walks current against baseline and emits the minimal ordered
// operation list that brings the baseline package in line with the current
// model: body first, then headers, footers, footnotes, endnotes. Targeted
// patch failures are recovered internally by falling back to full
// serialization; only relationship-id exhaustion or a serializer failure
// aborts planning.
func BuildPlan(in PlanInput) (*Plan, error) {
	if in.Serializer == nil {
		in.Serializer = docmodel.WMLSerializer{}
	}

	ctx := &planContext{
		in:           in,
		seenParts:    make(map[string]bool),
		removedParts: make(map[string]bool),
		seenRels:     make(map[string]bool),
		removedRels:  make(map[string]bool),
	}

	if err := ctx.planBody(); err != nil {
		return nil, err
	}
	if err := ctx.planHeaderFooter(docmodel.KindHeader); err != nil {
		return nil, err
	}
	if err := ctx.planHeaderFooter(docmodel.KindFooter); err != nil {
		return nil, err
	}
	if err := ctx.planNotes(docmodel.KindFootnotes); err != nil {
		return nil, err
	}
	if err := ctx.planNotes(docmodel.KindEndnotes); err != nil {
		return nil, err
	}

	ctx.diag.OperationCount = len(ctx.ops)
	ctx.diag.OperationPaths = make([]string, 0, len(ctx.ops))
	for _, op := range ctx.ops {
		ctx.diag.OperationPaths = append(ctx.diag.OperationPaths, op.TargetPath())
	}

	return &Plan{Operations: ctx.ops, Diagnostics: ctx.diag}, nil
}

// planContext is the mutable state threaded through one plan-building pass:
// the operation list under construction, diagnostics, the lazily opened
// baseline package, and the seen/removed tracking sets that prevent
// duplicate or conflicting operations. It lives for exactly one BuildPlan
// call.
type planContext struct {
	in   PlanInput
	ops  []Operation
	diag Diagnostics

	pkg       *opc.Package
	pkgErr    error
	pkgOpened bool

	seenParts    map[string]bool
	removedParts map[string]bool
	seenRels     map[string]bool
	removedRels  map[string]bool
}

func (ctx *planContext) emit(op Operation) {
	ctx.ops = append(ctx.ops, op)
}

// baselinePackage opens the baseline bytes at most once per plan.
func (ctx *planContext) baselinePackage() (*opc.Package, error) {
	if !ctx.pkgOpened {
		ctx.pkgOpened = true
		if len(ctx.in.BaselineBytes) == 0 {
			ctx.pkgErr = fmt.Errorf("no baseline package bytes")
		} else {
			ctx.pkg, ctx.pkgErr = opc.OpenPackage(ctx.in.BaselineBytes)
		}
	}
	return ctx.pkg, ctx.pkgErr
}

// baselineText reads a baseline part's raw text, or reports it unavailable.
func (ctx *planContext) baselineText(path string) (string, bool) {
	pkg, err := ctx.baselinePackage()
	if err != nil {
		return "", false
	}
	text, err := pkg.ReadText(path)
	if err != nil {
		return "", false
	}
	return text, true
}

func (ctx *planContext) planBody() error {
	ser := ctx.in.Serializer
	currentXML, err := ser.SerializeBody(ctx.in.Current)
	if err != nil {
		return fmt.Errorf("failed to serialize current body: %w", err)
	}
	baselineXML, err := ser.SerializeBody(ctx.in.Baseline)
	if err != nil {
		return fmt.Errorf("failed to serialize baseline body: %w", err)
	}
	if currentXML == baselineXML {
		GetLogger().Debug("plan: body unchanged")
		return nil
	}

	raw, ok := ctx.baselineText(documentPart)
	if !ok {
		ctx.bodyFallback(fallbackMissingBuffer, currentXML)
		return nil
	}

	patch, err := BuildParagraphPatch(ctx.in.Baseline, ctx.in.Current, raw, ctx.in.ParagraphHints, ser)
	if err != nil {
		ctx.bodyFallback(fmt.Sprintf(fallbackPatchErrorFmt, err), currentXML)
		return nil
	}
	if patch == nil {
		ctx.bodyFallback(fallbackPatchNull, currentXML)
		return nil
	}

	GetLogger().Debug("plan: targeted body patch, %d paragraph(s) changed", len(patch.ChangedParagraphIDs))
	ctx.diag.TargetedPatchUsed = true
	ctx.diag.ChangedParagraphCount = len(patch.ChangedParagraphIDs)
	ctx.diag.ChangedParagraphIDs = patch.ChangedParagraphIDs
	ctx.seenParts[documentPart] = true
	ctx.emit(SetXML{Path: documentPart, XML: patch.XML})
	return nil
}

func (ctx *planContext) bodyFallback(reason, currentXML string) {
	GetLogger().Info("plan: body fallback to full serialization (%s)", reason)
	ctx.diag.FallbackReason = reason
	ctx.seenParts[documentPart] = true
	ctx.emit(SetXML{Path: documentPart, XML: currentXML})
}

// gatherHeaderFooterRefs returns the relationship ids every section of the
// document references for the given kind, in section order and de-duplicated.
func gatherHeaderFooterRefs(doc *docmodel.Document, kind docmodel.HeaderFooterKind) []string {
	var ids []string
	seen := make(map[string]bool)
	for _, sect := range doc.Sections {
		refs := sect.Headers
		if kind == docmodel.KindFooter {
			refs = sect.Footers
		}
		for _, refType := range []docmodel.HeaderFooterRefType{docmodel.RefDefault, docmodel.RefFirst, docmodel.RefEven} {
			id, ok := refs[refType]
			if !ok || seen[id] {
				continue
			}
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids
}

func headerFooterContent(doc *docmodel.Document, kind docmodel.HeaderFooterKind, relID string) *docmodel.HeaderFooter {
	if kind == docmodel.KindFooter {
		return doc.Footers[relID]
	}
	return doc.Headers[relID]
}

func (ctx *planContext) planHeaderFooter(kind docmodel.HeaderFooterKind) error {
	relType := relTypeHeader
	contentType := contentTypeHeader
	baseName := "header"
	if kind == docmodel.KindFooter {
		relType = relTypeFooter
		contentType = contentTypeFooter
		baseName = "footer"
	}

	currentRefs := gatherHeaderFooterRefs(ctx.in.Current, kind)
	baselineRefs := gatherHeaderFooterRefs(ctx.in.Baseline, kind)

	currentSet := make(map[string]bool, len(currentRefs))
	for _, id := range currentRefs {
		currentSet[id] = true
	}

	for _, id := range currentRefs {
		currentRel, hasCurrentRel := ctx.in.Current.Relationships[id]
		baselineRel, hasBaselineRel := ctx.in.Baseline.Relationships[id]

		target := ""
		switch {
		case hasCurrentRel && currentRel.Target != "":
			target = currentRel.Target
		case hasBaselineRel && baselineRel.Target != "":
			target = baselineRel.Target
		default:
			target = ctx.allocatePartTarget(baseName)
		}
		partPath := opc.ResolveRelTarget(documentPart, target)

		baselinePath := ""
		if hasBaselineRel {
			baselinePath = opc.ResolveRelTarget(documentPart, baselineRel.Target)
		}
		partNew := !hasBaselineRel
		pathChanged := hasBaselineRel && baselinePath != partPath
		relChanged := !hasBaselineRel || baselineRel.Target != target || baselineRel.Type != relType

		ctx.seenRels[id] = true
		ctx.seenParts[partPath] = true

		if relChanged {
			ctx.emit(UpsertRelationship{Owner: documentPart, ID: id, Type: relType, Target: target})
		}
		if partNew || pathChanged {
			ctx.emit(EnsureContentTypeOverride{PartName: opc.PartName(partPath), ContentType: contentType})
		}

		currentContent := headerFooterContent(ctx.in.Current, kind, id)
		if currentContent == nil {
			currentContent = &docmodel.HeaderFooter{}
		}
		currentXML, err := ctx.in.Serializer.SerializeHeaderFooter(currentContent, kind)
		if err != nil {
			return fmt.Errorf("failed to serialize %s %s: %w", baseName, id, err)
		}

		contentChanged := true
		if baselineContent := headerFooterContent(ctx.in.Baseline, kind, id); baselineContent != nil {
			baselineXML, err := ctx.in.Serializer.SerializeHeaderFooter(baselineContent, kind)
			if err != nil {
				return fmt.Errorf("failed to serialize baseline %s %s: %w", baseName, id, err)
			}
			contentChanged = baselineXML != currentXML
		}

		if contentChanged || pathChanged || relChanged {
			ctx.emit(SetXML{Path: partPath, XML: currentXML})
		}
	}

	for _, id := range baselineRefs {
		if currentSet[id] || ctx.removedRels[id] {
			continue
		}
		baselineRel, ok := ctx.in.Baseline.Relationships[id]
		if !ok {
			continue
		}

		ctx.removedRels[id] = true
		ctx.emit(RemoveRelationship{Owner: documentPart, ID: id, AllowMissing: true})

		partPath := opc.ResolveRelTarget(documentPart, baselineRel.Target)
		if ctx.seenParts[partPath] || ctx.removedParts[partPath] {
			continue
		}
		ctx.removedParts[partPath] = true
		ctx.emit(RemovePart{Path: partPath})
		ctx.emit(RemoveContentTypeOverride{PartName: opc.PartName(partPath), AllowMissing: true})
	}

	return nil
}

// allocatePartTarget picks the first headerN.xml/footerN.xml target not used
// by any relationship of either snapshot nor claimed earlier in this plan.
func (ctx *planContext) allocatePartTarget(baseName string) string {
	taken := make(map[string]bool)
	for _, doc := range []*docmodel.Document{ctx.in.Current, ctx.in.Baseline} {
		for _, rel := range doc.Relationships {
			if rel.Target != "" {
				taken[opc.ResolveRelTarget(documentPart, rel.Target)] = true
			}
		}
	}
	for path := range ctx.seenParts {
		taken[path] = true
	}

	for n := 1; ; n++ {
		target := fmt.Sprintf("%s%d.xml", baseName, n)
		if !taken[opc.ResolveRelTarget(documentPart, target)] {
			return target
		}
	}
}

// findRelationshipByType returns the lexically first relationship of the
// given type, so resolution is deterministic even though the model stores
// relationships in a map.
func findRelationshipByType(rels map[string]docmodel.Relationship, relType string) (docmodel.Relationship, bool) {
	ids := make([]string, 0, len(rels))
	for id, rel := range rels {
		if rel.Type == relType {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return docmodel.Relationship{}, false
	}
	sort.Strings(ids)
	return rels[ids[0]], true
}

// allocateRelID returns preferred if free, else preferred with the smallest
// numeric suffix >= 2 that is free. Probing is capped; exhausting the cap
// fails plan building.
func (ctx *planContext) allocateRelID(preferred string) (string, error) {
	used := make(map[string]bool)
	for id := range ctx.in.Current.Relationships {
		used[id] = true
	}
	for id := range ctx.in.Baseline.Relationships {
		used[id] = true
	}
	for id := range ctx.seenRels {
		used[id] = true
	}

	if !used[preferred] {
		return preferred, nil
	}
	for n := 2; n <= relIDProbeCap; n++ {
		candidate := fmt.Sprintf("%s%d", preferred, n)
		if !used[candidate] {
			return candidate, nil
		}
	}
	return "", NewRelationshipIDSpaceError(preferred, relIDProbeCap)
}

func (ctx *planContext) planNotes(kind docmodel.NoteKind) error {
	relType := relTypeFootnotes
	contentType := contentTypeFootnotes
	preferredID := "rIdFootnotes"
	defaultTarget := "footnotes.xml"
	currentNotes := ctx.in.Current.Footnotes
	baselineNotes := ctx.in.Baseline.Footnotes
	if kind == docmodel.KindEndnotes {
		relType = relTypeEndnotes
		contentType = contentTypeEndnotes
		preferredID = "rIdEndnotes"
		defaultTarget = "endnotes.xml"
		currentNotes = ctx.in.Current.Endnotes
		baselineNotes = ctx.in.Baseline.Endnotes
	}

	currentRel, hasCurrentRel := findRelationshipByType(ctx.in.Current.Relationships, relType)
	baselineRel, hasBaselineRel := findRelationshipByType(ctx.in.Baseline.Relationships, relType)

	// No notes in the current model: tear down whatever the baseline had.
	if len(currentNotes) == 0 {
		if hasBaselineRel {
			partPath := opc.ResolveRelTarget(documentPart, baselineRel.Target)
			ctx.removedRels[baselineRel.ID] = true
			ctx.emit(RemoveRelationship{Owner: documentPart, ID: baselineRel.ID, AllowMissing: true})
			if !ctx.seenParts[partPath] && !ctx.removedParts[partPath] {
				ctx.removedParts[partPath] = true
				ctx.emit(RemovePart{Path: partPath})
				ctx.emit(RemoveContentTypeOverride{PartName: opc.PartName(partPath), AllowMissing: true})
			}
		}
		return nil
	}

	relID := ""
	target := ""
	switch {
	case hasCurrentRel:
		relID = currentRel.ID
		target = currentRel.Target
	case hasBaselineRel:
		relID = baselineRel.ID
		target = baselineRel.Target
	default:
		allocated, err := ctx.allocateRelID(preferredID)
		if err != nil {
			return err
		}
		relID = allocated
		target = defaultTarget
	}
	if target == "" {
		target = defaultTarget
	}
	partPath := opc.ResolveRelTarget(documentPart, target)

	baselinePath := ""
	if hasBaselineRel {
		baselinePath = opc.ResolveRelTarget(documentPart, baselineRel.Target)
	}
	partNew := !hasBaselineRel
	pathChanged := hasBaselineRel && baselinePath != partPath
	relChanged := !hasBaselineRel || baselineRel.ID != relID || baselineRel.Target != target

	ctx.seenRels[relID] = true
	ctx.seenParts[partPath] = true

	if hasBaselineRel && baselineRel.ID != relID && !ctx.removedRels[baselineRel.ID] {
		ctx.removedRels[baselineRel.ID] = true
		ctx.emit(RemoveRelationship{Owner: documentPart, ID: baselineRel.ID, AllowMissing: true})
	}
	if relChanged {
		ctx.emit(UpsertRelationship{Owner: documentPart, ID: relID, Type: relType, Target: target})
	}
	if pathChanged && !ctx.seenParts[baselinePath] && !ctx.removedParts[baselinePath] {
		ctx.removedParts[baselinePath] = true
		ctx.emit(RemovePart{Path: baselinePath})
		ctx.emit(RemoveContentTypeOverride{PartName: opc.PartName(baselinePath), AllowMissing: true})
	}
	if partNew || pathChanged {
		ctx.emit(EnsureContentTypeOverride{PartName: opc.PartName(partPath), ContentType: contentType})
	}

	currentXML, err := ctx.in.Serializer.SerializeNotes(currentNotes, kind)
	if err != nil {
		return fmt.Errorf("failed to serialize %s: %w", kind, err)
	}

	// A new or relocated part always gets the full current serialization.
	if partNew || pathChanged {
		ctx.emit(SetXML{Path: partPath, XML: currentXML})
		return nil
	}

	baselineXML, err := ctx.in.Serializer.SerializeNotes(baselineNotes, kind)
	if err != nil {
		return fmt.Errorf("failed to serialize baseline %s: %w", kind, err)
	}
	if baselineXML == currentXML {
		GetLogger().Debug("plan: %s unchanged", kind)
		return nil
	}

	raw, ok := ctx.baselineText(partPath)
	if !ok {
		ctx.notesFallback(kind, fallbackMissingBuffer)
		ctx.emit(SetXML{Path: partPath, XML: currentXML})
		return nil
	}

	patch, err := BuildNotesPatch(baselineNotes, currentNotes, raw, kind, ctx.in.Serializer)
	if err != nil {
		ctx.notesFallback(kind, fmt.Sprintf(fallbackPatchErrorFmt, err))
		ctx.emit(SetXML{Path: partPath, XML: currentXML})
		return nil
	}
	if patch == nil {
		ctx.notesFallback(kind, fallbackPatchNull)
		ctx.emit(SetXML{Path: partPath, XML: currentXML})
		return nil
	}

	GetLogger().Debug("plan: targeted %s patch (%d changed, %d added, %d removed)",
		kind, len(patch.ChangedNoteIDs), len(patch.AddedNoteIDs), len(patch.RemovedNoteIDs))
	delta := NoteDelta{
		ChangedNoteIDs: patch.ChangedNoteIDs,
		AddedNoteIDs:   patch.AddedNoteIDs,
		RemovedNoteIDs: patch.RemovedNoteIDs,
	}
	if kind == docmodel.KindEndnotes {
		ctx.diag.Endnotes = delta
	} else {
		ctx.diag.Footnotes = delta
	}
	ctx.emit(SetXML{Path: partPath, XML: patch.XML})
	return nil
}

func (ctx *planContext) notesFallback(kind docmodel.NoteKind, reason string) {
	GetLogger().Info("plan: %s fallback to full serialization (%s)", kind, reason)
	if kind == docmodel.KindEndnotes {
		ctx.diag.EndnotesFallbackReason = reason
	} else {
		ctx.diag.FootnotesFallbackReason = reason
	}
}
