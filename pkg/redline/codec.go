package redline

import (
	"encoding/json"
	"fmt"

	"github.com/goccy/go-yaml"
)

// operationEnvelope is the wire form of one operation: the "op"
// discriminator plus the union of all per-kind fields.
type operationEnvelope struct {
	Op                   OperationKind `json:"op"`
	Path                 string        `json:"path,omitempty"`
	XML                  string        `json:"xml,omitempty"`
	Text                 string        `json:"text,omitempty"`
	Data                 []byte        `json:"data,omitempty"`
	Find                 string        `json:"find,omitempty"`
	Replace              string        `json:"replace,omitempty"`
	Occurrence           Occurrence    `json:"occurrence,omitempty"`
	ExpectedReplacements *int          `json:"expectedReplacements,omitempty"`
	AllowNoMatch         bool          `json:"allowNoMatch,omitempty"`
	AllowMissing         bool          `json:"allowMissing,omitempty"`
	Owner                string        `json:"owner,omitempty"`
	ID                   string        `json:"id,omitempty"`
	Type                 string        `json:"type,omitempty"`
	Target               string        `json:"target,omitempty"`
	TargetMode           string        `json:"targetMode,omitempty"`
	PartName             string        `json:"partName,omitempty"`
	ContentType          string        `json:"contentType,omitempty"`
	Extension            string        `json:"extension,omitempty"`
}

// planEnvelope is the wire form of a Plan.
type planEnvelope struct {
	Operations  []operationEnvelope `json:"operations"`
	Diagnostics Diagnostics         `json:"diagnostics"`
}

func encodeOperation(op Operation) (operationEnvelope, error) {
	switch o := op.(type) {
	case SetXML:
		return operationEnvelope{Op: OpSetXML, Path: o.Path, XML: o.XML}, nil
	case SetText:
		return operationEnvelope{Op: OpSetText, Path: o.Path, Text: o.Text}, nil
	case SetBinary:
		return operationEnvelope{Op: OpSetBinary, Path: o.Path, Data: o.Data}, nil
	case RemovePart:
		return operationEnvelope{Op: OpRemovePart, Path: o.Path, AllowMissing: o.AllowMissing}, nil
	case ReplaceXMLText:
		return operationEnvelope{
			Op:                   OpReplaceXMLText,
			Path:                 o.Path,
			Find:                 o.Find,
			Replace:              o.Replace,
			Occurrence:           o.Occurrence,
			ExpectedReplacements: o.ExpectedReplacements,
			AllowNoMatch:         o.AllowNoMatch,
		}, nil
	case UpsertRelationship:
		return operationEnvelope{
			Op:         OpUpsertRelationship,
			Owner:      o.Owner,
			ID:         o.ID,
			Type:       o.Type,
			Target:     o.Target,
			TargetMode: o.TargetMode,
		}, nil
	case RemoveRelationship:
		return operationEnvelope{Op: OpRemoveRelationship, Owner: o.Owner, ID: o.ID, AllowMissing: o.AllowMissing}, nil
	case EnsureContentTypeOverride:
		return operationEnvelope{Op: OpEnsureContentTypeOverride, PartName: o.PartName, ContentType: o.ContentType}, nil
	case RemoveContentTypeOverride:
		return operationEnvelope{Op: OpRemoveContentTypeOverride, PartName: o.PartName, AllowMissing: o.AllowMissing}, nil
	case EnsureContentTypeDefault:
		return operationEnvelope{Op: OpEnsureContentTypeDefault, Extension: o.Extension, ContentType: o.ContentType}, nil
	case RemoveContentTypeDefault:
		return operationEnvelope{Op: OpRemoveContentTypeDefault, Extension: o.Extension, AllowMissing: o.AllowMissing}, nil
	default:
		return operationEnvelope{}, NewUnknownOperationError(string(op.Kind()))
	}
}

func decodeOperation(env operationEnvelope) (Operation, error) {
	switch env.Op {
	case OpSetXML:
		return SetXML{Path: env.Path, XML: env.XML}, nil
	case OpSetText:
		return SetText{Path: env.Path, Text: env.Text}, nil
	case OpSetBinary:
		return SetBinary{Path: env.Path, Data: env.Data}, nil
	case OpRemovePart:
		return RemovePart{Path: env.Path, AllowMissing: env.AllowMissing}, nil
	case OpReplaceXMLText:
		return ReplaceXMLText{
			Path:                 env.Path,
			Find:                 env.Find,
			Replace:              env.Replace,
			Occurrence:           env.Occurrence,
			ExpectedReplacements: env.ExpectedReplacements,
			AllowNoMatch:         env.AllowNoMatch,
		}, nil
	case OpUpsertRelationship:
		return UpsertRelationship{
			Owner:      env.Owner,
			ID:         env.ID,
			Type:       env.Type,
			Target:     env.Target,
			TargetMode: env.TargetMode,
		}, nil
	case OpRemoveRelationship:
		return RemoveRelationship{Owner: env.Owner, ID: env.ID, AllowMissing: env.AllowMissing}, nil
	case OpEnsureContentTypeOverride:
		return EnsureContentTypeOverride{PartName: env.PartName, ContentType: env.ContentType}, nil
	case OpRemoveContentTypeOverride:
		return RemoveContentTypeOverride{PartName: env.PartName, AllowMissing: env.AllowMissing}, nil
	case OpEnsureContentTypeDefault:
		return EnsureContentTypeDefault{Extension: env.Extension, ContentType: env.ContentType}, nil
	case OpRemoveContentTypeDefault:
		return RemoveContentTypeDefault{Extension: env.Extension, AllowMissing: env.AllowMissing}, nil
	default:
		return nil, NewUnknownOperationError(string(env.Op))
	}
}

// EncodePlanJSON serializes a plan to its JSON wire form.
func EncodePlanJSON(plan *Plan) ([]byte, error) {
	envelope := planEnvelope{
		Operations:  make([]operationEnvelope, 0, len(plan.Operations)),
		Diagnostics: plan.Diagnostics,
	}
	for _, op := range plan.Operations {
		env, err := encodeOperation(op)
		if err != nil {
			return nil, err
		}
		envelope.Operations = append(envelope.Operations, env)
	}
	return json.MarshalIndent(envelope, "", "  ")
}

// DecodePlanJSON parses a plan from its JSON wire form. An operation kind
// outside the closed union fails with UnknownOperationError.
func DecodePlanJSON(data []byte) (*Plan, error) {
	var envelope planEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("failed to parse plan json: %w", err)
	}

	plan := &Plan{Diagnostics: envelope.Diagnostics}
	for _, env := range envelope.Operations {
		op, err := decodeOperation(env)
		if err != nil {
			return nil, err
		}
		plan.Operations = append(plan.Operations, op)
	}
	return plan, nil
}

// DecodePlanYAML parses a human-authored YAML plan file by converting it to
// JSON first, so both forms share one decoding path.
func DecodePlanYAML(data []byte) (*Plan, error) {
	jsonData, err := yaml.YAMLToJSON(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse plan yaml: %w", err)
	}
	return DecodePlanJSON(jsonData)
}
