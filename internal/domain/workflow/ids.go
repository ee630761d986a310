package workflow

import (
	"fmt"

	"github.com/google/uuid"
)

// Identifier types are distinct so a tenant id can never be passed where an
// instance id is expected.
type (
	TenantID     uuid.UUID
	UserID       uuid.UUID
	DefinitionID uuid.UUID
	InstanceID   uuid.UUID
	StepID       uuid.UUID
	CommentID    uuid.UUID
)

func NewTenantID() TenantID         { return TenantID(newUUID()) }
func NewUserID() UserID             { return UserID(newUUID()) }
func NewDefinitionID() DefinitionID { return DefinitionID(newUUID()) }
func NewInstanceID() InstanceID     { return InstanceID(newUUID()) }
func NewStepID() StepID             { return StepID(newUUID()) }
func NewCommentID() CommentID       { return CommentID(newUUID()) }

func (id TenantID) String() string     { return uuid.UUID(id).String() }
func (id UserID) String() string       { return uuid.UUID(id).String() }
func (id DefinitionID) String() string { return uuid.UUID(id).String() }
func (id InstanceID) String() string   { return uuid.UUID(id).String() }
func (id StepID) String() string       { return uuid.UUID(id).String() }
func (id CommentID) String() string    { return uuid.UUID(id).String() }

func (id TenantID) IsZero() bool   { return uuid.UUID(id) == uuid.Nil }
func (id UserID) IsZero() bool     { return uuid.UUID(id) == uuid.Nil }
func (id InstanceID) IsZero() bool { return uuid.UUID(id) == uuid.Nil }
func (id StepID) IsZero() bool     { return uuid.UUID(id) == uuid.Nil }

func ParseTenantID(s string) (TenantID, error)         { return parseID[TenantID]("tenant", s) }
func ParseUserID(s string) (UserID, error)             { return parseID[UserID]("user", s) }
func ParseDefinitionID(s string) (DefinitionID, error) { return parseID[DefinitionID]("definition", s) }
func ParseInstanceID(s string) (InstanceID, error)     { return parseID[InstanceID]("instance", s) }
func ParseStepID(s string) (StepID, error)             { return parseID[StepID]("step", s) }
func ParseCommentID(s string) (CommentID, error)       { return parseID[CommentID]("comment", s) }

func parseID[T ~[16]byte](kind, s string) (T, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("%w: invalid %s id %q", ErrValidation, kind, s)
	}
	return T(u), nil
}

// UUIDv7 keeps ids roughly time ordered
func newUUID() uuid.UUID {
	return uuid.Must(uuid.NewV7())
}
