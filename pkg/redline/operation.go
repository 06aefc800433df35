package redline

// OperationKind discriminates the closed operation union on the wire.
type OperationKind string

const (
	OpSetXML                    OperationKind = "set-xml"
	OpSetText                   OperationKind = "set-text"
	OpSetBinary                 OperationKind = "set-binary"
	OpRemovePart                OperationKind = "remove-part"
	OpReplaceXMLText            OperationKind = "replace-xml-text"
	OpUpsertRelationship        OperationKind = "upsert-relationship"
	OpRemoveRelationship        OperationKind = "remove-relationship"
	OpEnsureContentTypeOverride OperationKind = "ensure-content-type-override"
	OpRemoveContentTypeOverride OperationKind = "remove-content-type-override"
	OpEnsureContentTypeDefault  OperationKind = "ensure-content-type-default"
	OpRemoveContentTypeDefault  OperationKind = "remove-content-type-default"
)

// Occurrence selects how many matches a replace-xml-text operation rewrites.
type Occurrence string

const (
	OccurrenceFirst Occurrence = "first"
	OccurrenceAll   Occurrence = "all"
)

// Operation is one immutable package-mutation instruction. The union is
// sealed: only the types in this file implement it, and every dispatch
// switch carries a default arm raising UnknownOperationError so a new kind
// cannot be silently dropped.
type Operation interface {
	// Kind returns the wire discriminator.
	Kind() OperationKind
	// TargetPath names the part the operation touches, for reports and logs.
	TargetPath() string

	isOperation()
}

// SetXML writes (or overwrites) an XML part from text. The payload must be
// well-formed when payload validation is on.
type SetXML struct {
	Path string `json:"path"`
	XML  string `json:"xml"`
}

func (SetXML) isOperation()         {}
func (SetXML) Kind() OperationKind  { return OpSetXML }
func (o SetXML) TargetPath() string { return o.Path }

// SetText writes a part from text without the well-formedness gate.
type SetText struct {
	Path string `json:"path"`
	Text string `json:"text"`
}

func (SetText) isOperation()         {}
func (SetText) Kind() OperationKind  { return OpSetText }
func (o SetText) TargetPath() string { return o.Path }

// SetBinary writes a part from raw bytes (base64 in the JSON envelope).
type SetBinary struct {
	Path string `json:"path"`
	Data []byte `json:"data"`
}

func (SetBinary) isOperation()         {}
func (SetBinary) Kind() OperationKind  { return OpSetBinary }
func (o SetBinary) TargetPath() string { return o.Path }

// RemovePart deletes a part.
type RemovePart struct {
	Path         string `json:"path"`
	AllowMissing bool   `json:"allowMissing,omitempty"`
}

func (RemovePart) isOperation()         {}
func (RemovePart) Kind() OperationKind  { return OpRemovePart }
func (o RemovePart) TargetPath() string { return o.Path }

// ReplaceXMLText performs a literal substring replacement inside a part.
// ExpectedReplacements, when set, asserts the exact replacement count and is
// fatal on mismatch in every mode.
type ReplaceXMLText struct {
	Path                 string     `json:"path"`
	Find                 string     `json:"find"`
	Replace              string     `json:"replace"`
	Occurrence           Occurrence `json:"occurrence,omitempty"`
	ExpectedReplacements *int       `json:"expectedReplacements,omitempty"`
	AllowNoMatch         bool       `json:"allowNoMatch,omitempty"`
}

func (ReplaceXMLText) isOperation()         {}
func (ReplaceXMLText) Kind() OperationKind  { return OpReplaceXMLText }
func (o ReplaceXMLText) TargetPath() string { return o.Path }

// UpsertRelationship inserts or rewrites a <Relationship> entry in the .rels
// part owned by Owner (empty Owner addresses the package root). The .rels
// part is created from scratch when absent.
type UpsertRelationship struct {
	Owner      string `json:"owner,omitempty"`
	ID         string `json:"id"`
	Type       string `json:"type"`
	Target     string `json:"target"`
	TargetMode string `json:"targetMode,omitempty"`
}

func (UpsertRelationship) isOperation()        {}
func (UpsertRelationship) Kind() OperationKind { return OpUpsertRelationship }
func (o UpsertRelationship) TargetPath() string {
	return relsPathForOwner(o.Owner)
}

// RemoveRelationship deletes a <Relationship> entry by id.
type RemoveRelationship struct {
	Owner        string `json:"owner,omitempty"`
	ID           string `json:"id"`
	AllowMissing bool   `json:"allowMissing,omitempty"`
}

func (RemoveRelationship) isOperation()        {}
func (RemoveRelationship) Kind() OperationKind { return OpRemoveRelationship }
func (o RemoveRelationship) TargetPath() string {
	return relsPathForOwner(o.Owner)
}

// EnsureContentTypeOverride establishes an Override entry for an exact part
// name. Idempotent; [Content_Types].xml is created when absent.
type EnsureContentTypeOverride struct {
	PartName    string `json:"partName"`
	ContentType string `json:"contentType"`
}

func (EnsureContentTypeOverride) isOperation()         {}
func (EnsureContentTypeOverride) Kind() OperationKind  { return OpEnsureContentTypeOverride }
func (o EnsureContentTypeOverride) TargetPath() string { return contentTypesPath }

// RemoveContentTypeOverride deletes an Override entry by exact part name.
type RemoveContentTypeOverride struct {
	PartName     string `json:"partName"`
	AllowMissing bool   `json:"allowMissing,omitempty"`
}

func (RemoveContentTypeOverride) isOperation()         {}
func (RemoveContentTypeOverride) Kind() OperationKind  { return OpRemoveContentTypeOverride }
func (o RemoveContentTypeOverride) TargetPath() string { return contentTypesPath }

// EnsureContentTypeDefault establishes a Default entry for an extension
// (case-insensitive, leading dot ignored).
type EnsureContentTypeDefault struct {
	Extension   string `json:"extension"`
	ContentType string `json:"contentType"`
}

func (EnsureContentTypeDefault) isOperation()         {}
func (EnsureContentTypeDefault) Kind() OperationKind  { return OpEnsureContentTypeDefault }
func (o EnsureContentTypeDefault) TargetPath() string { return contentTypesPath }

// RemoveContentTypeDefault deletes a Default entry by extension.
type RemoveContentTypeDefault struct {
	Extension    string `json:"extension"`
	AllowMissing bool   `json:"allowMissing,omitempty"`
}

func (RemoveContentTypeDefault) isOperation()         {}
func (RemoveContentTypeDefault) Kind() OperationKind  { return OpRemoveContentTypeDefault }
func (o RemoveContentTypeDefault) TargetPath() string { return contentTypesPath }
