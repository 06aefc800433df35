package redline

import "github.com/benjaminschreck/go-redline/pkg/redline/opc"

// contentTypesPath is the fixed location of the content-type registry.
const contentTypesPath = "[Content_Types].xml"

func relsPathForOwner(owner string) string {
	return opc.RelsPathFor(owner)
}

// NoteDelta records the note-id movements one notes part saw during
// planning.
type NoteDelta struct {
	ChangedNoteIDs []int `json:"changedNoteIds,omitempty"`
	AddedNoteIDs   []int `json:"addedNoteIds,omitempty"`
	RemovedNoteIDs []int `json:"removedNoteIds,omitempty"`
}

// Diagnostics describes how a plan was built: whether the targeted patch
// path was taken, what changed, and why any fallback happened. Diagnostics
// are advisory; they never affect the operations themselves.
type Diagnostics struct {
	TargetedPatchUsed       bool      `json:"targetedPatchUsed"`
	ChangedParagraphCount   int       `json:"changedParagraphCount"`
	ChangedParagraphIDs     []string  `json:"changedParagraphIds,omitempty"`
	FallbackReason          string    `json:"fallbackReason,omitempty"`
	OperationCount          int       `json:"operationCount"`
	OperationPaths          []string  `json:"operationPaths"`
	FootnotesFallbackReason string    `json:"footnotesFallbackReason,omitempty"`
	EndnotesFallbackReason  string    `json:"endnotesFallbackReason,omitempty"`
	Footnotes               NoteDelta `json:"footnotes,omitempty"`
	Endnotes                NoteDelta `json:"endnotes,omitempty"`
}

// Plan is an ordered operation list plus the diagnostics of its
// construction. Operations are evaluated strictly in slice order.
type Plan struct {
	Operations  []Operation
	Diagnostics Diagnostics
}
