package redline

import (
	"errors"
	"fmt"
)

// StructuralMismatchError reports that the baseline and current snapshots
// disagree structurally (id sets differ, or an id is duplicated), so an
// id-keyed targeted patch cannot be built. Always recovered locally via
// fallback to full serialization.
type StructuralMismatchError struct {
	Unit    string
	Message string
}

func (e *StructuralMismatchError) Error() string {
	return fmt.Sprintf("structural mismatch in %s: %s", e.Unit, e.Message)
}

// NewStructuralMismatchError creates a new structural mismatch error.
func NewStructuralMismatchError(unit, message string) error {
	return &StructuralMismatchError{Unit: unit, Message: message}
}

// AnchorNotFoundError reports that a changed unit's span could not be located
// (or was ambiguous) in the baseline XML.
type AnchorNotFoundError struct {
	Unit string
	Key  string
}

func (e *AnchorNotFoundError) Error() string {
	return fmt.Sprintf("anchor not found for %s %q in baseline xml", e.Unit, e.Key)
}

// NewAnchorNotFoundError creates a new anchor error.
func NewAnchorNotFoundError(unit, key string) error {
	return &AnchorNotFoundError{Unit: unit, Key: key}
}

// PartNotFoundError reports a strict-mode operation against a missing part.
type PartNotFoundError struct {
	Path string
}

func (e *PartNotFoundError) Error() string {
	return fmt.Sprintf("part %q not found", e.Path)
}

// NewPartNotFoundError creates a new part-not-found error.
func NewPartNotFoundError(path string) error {
	return &PartNotFoundError{Path: path}
}

// RelationshipNotFoundError reports a missing relationship entry.
type RelationshipNotFoundError struct {
	RelsPath string
	ID       string
}

func (e *RelationshipNotFoundError) Error() string {
	return fmt.Sprintf("relationship %q not found in %s", e.ID, e.RelsPath)
}

// NewRelationshipNotFoundError creates a new relationship-not-found error.
func NewRelationshipNotFoundError(relsPath, id string) error {
	return &RelationshipNotFoundError{RelsPath: relsPath, ID: id}
}

// OverrideNotFoundError reports a missing content-type Override entry.
type OverrideNotFoundError struct {
	PartName string
}

func (e *OverrideNotFoundError) Error() string {
	return fmt.Sprintf("content-type override for %q not found", e.PartName)
}

// NewOverrideNotFoundError creates a new override-not-found error.
func NewOverrideNotFoundError(partName string) error {
	return &OverrideNotFoundError{PartName: partName}
}

// DefaultNotFoundError reports a missing content-type Default entry.
type DefaultNotFoundError struct {
	Extension string
}

func (e *DefaultNotFoundError) Error() string {
	return fmt.Sprintf("content-type default for extension %q not found", e.Extension)
}

// NewDefaultNotFoundError creates a new default-not-found error.
func NewDefaultNotFoundError(extension string) error {
	return &DefaultNotFoundError{Extension: extension}
}

// ExpectedCountMismatchError reports that a replace-xml-text assertion
// failed: the number of replacements differs from what the plan demanded.
// Fatal in both strict and best-effort modes.
type ExpectedCountMismatchError struct {
	Path     string
	Expected int
	Actual   int
}

func (e *ExpectedCountMismatchError) Error() string {
	return fmt.Sprintf("replacement count mismatch in %q: expected %d, got %d", e.Path, e.Expected, e.Actual)
}

// NewExpectedCountMismatchError creates a new count mismatch error.
func NewExpectedCountMismatchError(path string, expected, actual int) error {
	return &ExpectedCountMismatchError{Path: path, Expected: expected, Actual: actual}
}

// UnknownOperationError reports an operation kind outside the closed union,
// either decoded from the wire or reaching a dispatch switch.
type UnknownOperationError struct {
	Kind string
}

func (e *UnknownOperationError) Error() string {
	return fmt.Sprintf("unknown operation kind %q", e.Kind)
}

// NewUnknownOperationError creates a new unknown-operation error.
func NewUnknownOperationError(kind string) error {
	return &UnknownOperationError{Kind: kind}
}

// RelationshipIDSpaceError reports that relationship-id suffix probing
// exhausted its cap without finding a free id.
type RelationshipIDSpaceError struct {
	Preferred string
	Cap       int
}

func (e *RelationshipIDSpaceError) Error() string {
	return fmt.Sprintf("no free relationship id derived from %q within %d candidates", e.Preferred, e.Cap)
}

// NewRelationshipIDSpaceError creates a new id-space error.
func NewRelationshipIDSpaceError(preferred string, limit int) error {
	return &RelationshipIDSpaceError{Preferred: preferred, Cap: limit}
}

// MalformedPayloadError reports that an XML payload or a spliced registry
// part failed the well-formedness gate.
type MalformedPayloadError struct {
	Path  string
	Cause error
}

func (e *MalformedPayloadError) Error() string {
	return fmt.Sprintf("malformed xml payload for %q: %v", e.Path, e.Cause)
}

func (e *MalformedPayloadError) Unwrap() error {
	return e.Cause
}

// NewMalformedPayloadError creates a new malformed-payload error.
func NewMalformedPayloadError(path string, cause error) error {
	return &MalformedPayloadError{Path: path, Cause: cause}
}

// OperationError wraps a failure with the position and identity of the
// operation that raised it, so an aborted apply names the culprit.
type OperationError struct {
	Index int
	Kind  OperationKind
	Path  string
	Cause error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("operation %d (%s) on %q failed: %v", e.Index, e.Kind, e.Path, e.Cause)
}

func (e *OperationError) Unwrap() error {
	return e.Cause
}

// IsStructuralMismatchError checks if an error is a structural mismatch.
func IsStructuralMismatchError(err error) bool {
	var target *StructuralMismatchError
	return errors.As(err, &target)
}

// IsAnchorNotFoundError checks if an error is an anchor-not-found error.
func IsAnchorNotFoundError(err error) bool {
	var target *AnchorNotFoundError
	return errors.As(err, &target)
}

// IsPartNotFoundError checks if an error is a part-not-found error.
func IsPartNotFoundError(err error) bool {
	var target *PartNotFoundError
	return errors.As(err, &target)
}

// IsRelationshipNotFoundError checks if an error is a relationship-not-found error.
func IsRelationshipNotFoundError(err error) bool {
	var target *RelationshipNotFoundError
	return errors.As(err, &target)
}

// IsOverrideNotFoundError checks if an error is an override-not-found error.
func IsOverrideNotFoundError(err error) bool {
	var target *OverrideNotFoundError
	return errors.As(err, &target)
}

// IsDefaultNotFoundError checks if an error is a default-not-found error.
func IsDefaultNotFoundError(err error) bool {
	var target *DefaultNotFoundError
	return errors.As(err, &target)
}

// IsExpectedCountMismatchError checks if an error is a count mismatch.
func IsExpectedCountMismatchError(err error) bool {
	var target *ExpectedCountMismatchError
	return errors.As(err, &target)
}

// IsUnknownOperationError checks if an error is an unknown-operation error.
func IsUnknownOperationError(err error) bool {
	var target *UnknownOperationError
	return errors.As(err, &target)
}

// IsRelationshipIDSpaceError checks if an error is an id-space error.
func IsRelationshipIDSpaceError(err error) bool {
	var target *RelationshipIDSpaceError
	return errors.As(err, &target)
}

// IsMalformedPayloadError checks if an error is a malformed-payload error.
func IsMalformedPayloadError(err error) bool {
	var target *MalformedPayloadError
	return errors.As(err, &target)
}
