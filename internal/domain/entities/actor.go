package entities

import "github.com/google/uuid"

// Actor is the single identity shape every engine operation is invoked as, replacing
// the duck-typed `req.user` of the original system with one explicit struct.
type Actor struct {
	UserID         uuid.UUID
	Email          string
	Role           string
	IsSystem       bool
	AssignedEvents []uuid.UUID
}

const (
	ActorRoleBuyer     = "buyer"
	ActorRoleValidator = "validator"
	ActorRoleOrganizer = "organizer"
	ActorRoleAdmin     = "admin"
)

// IsAssignedTo reports whether a validator actor may scan tickets for eventID.
func (a Actor) IsAssignedTo(eventID uuid.UUID) bool {
	for _, e := range a.AssignedEvents {
		if e == eventID {
			return true
		}
	}
	return false
}
