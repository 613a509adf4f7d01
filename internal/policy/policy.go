// Package policy holds the deployment switches that decide who may change an
// event, whether task capacity is enforced and who sees guest contacts.
package policy

import (
	"fmt"

	"ms-community/internal/apperrors"
	"ms-community/internal/config"
	"ms-community/internal/models"
)

type Ownership string

const (
	OwnerOrAdmin Ownership = config.OwnershipOwnerOrAdmin
	AnyOrganizer Ownership = config.OwnershipAnyOrganizer
)

// CanModify reports whether actor may edit or delete e.
func (p Ownership) CanModify(actor models.Actor, e *models.Event) bool {
	if !actor.IsOrganizerClass() {
		return false
	}
	switch p {
	case AnyOrganizer:
		return true
	default:
		return actor.IsAdmin() || actor.Owns(e)
	}
}

// Authorize is CanModify as an error.
func (p Ownership) Authorize(actor models.Actor, e *models.Event) error {
	if p.CanModify(actor, e) {
		return nil
	}
	return apperrors.Forbidden("actor %d (%s) may not modify event %d under %s", actor.UserID, actor.Role, e.EventID, p)
}

type Capacity string

const (
	// Unbounded accepts every sign-up, even past required_volunteers.
	Unbounded Capacity = config.CapacityUnbounded
	// Enforced refuses sign-ups once required_volunteers is reached.
	Enforced Capacity = config.CapacityEnforced
)

type ContactVisibility string

const (
	AllOrganizers     ContactVisibility = config.ContactAllOrganizers
	ContactOwnerAdmin ContactVisibility = config.ContactOwnerOrAdmin
)

// ShowContacts reports whether actor may see guest contact details on e.
func (v ContactVisibility) ShowContacts(actor models.Actor, e *models.Event) bool {
	if !actor.IsOrganizerClass() {
		return false
	}
	if v == ContactOwnerAdmin {
		return actor.IsAdmin() || actor.Owns(e)
	}
	return true
}

// Set bundles the policies chosen for a deployment.
type Set struct {
	Ownership         Ownership
	Capacity          Capacity
	ContactVisibility ContactVisibility
}

// FromConfig expects cfg to have passed config.Validate.
func FromConfig(cfg config.PolicyConfig) Set {
	return Set{
		Ownership:         Ownership(cfg.Ownership),
		Capacity:          Capacity(cfg.Capacity),
		ContactVisibility: ContactVisibility(cfg.ContactVisibility),
	}
}

func (s Set) String() string {
	return fmt.Sprintf("ownership=%s capacity=%s contacts=%s", s.Ownership, s.Capacity, s.ContactVisibility)
}

// RedactSignup blanks guest contact numbers, keeping the name.
func RedactSignup(s *models.VolunteerSignup) {
	s.GuestWhatsapp = ""
	s.GuestUkPhone = ""
}

// RedactRegistration blanks guest contact numbers, keeping the name.
func RedactRegistration(r *models.EventRegistration) {
	r.GuestWhatsapp = ""
	r.GuestUkPhone = ""
}
