// Package identity turns a sign-up or registration request into exactly one
// stored identity form: a registered user id or a guest contact triple.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"ms-community/internal/apperrors"
	"ms-community/internal/models"
)

// Placeholders written for on-site registrations that arrive without details.
const (
	OnSiteGuestName = "Guest (on-site)"
	OnSiteContact   = "On-site"
)

type UserLookup interface {
	GetUserByID(ctx context.Context, userID int64) (*models.User, error)
}

// Request is the raw identity part of a sign-up or registration. Contact is the
// guest's WhatsApp number and SecondaryContact the optional UK phone.
type Request struct {
	UserID           *int64
	Name             string
	Contact          string
	SecondaryContact string
	OnSite           bool
}

// Identity is either Guest or Registered.
type Identity interface {
	isIdentity()
	String() string
}

type Guest struct {
	Name             string
	Contact          string
	SecondaryContact string
}

type Registered struct {
	UserID      int64
	DisplayName string
	Contact     string
}

func (Guest) isIdentity()      {}
func (Registered) isIdentity() {}

func (g Guest) String() string {
	return fmt.Sprintf("guest %q", g.Name)
}

func (r Registered) String() string {
	return fmt.Sprintf("user %d", r.UserID)
}

type Reconciler struct {
	users UserLookup
}

func NewReconciler(users UserLookup) *Reconciler {
	return &Reconciler{users: users}
}

// Resolve picks the identity form for req. An authenticated request ignores any
// guest fields sent alongside it.
func (r *Reconciler) Resolve(ctx context.Context, req Request) (Identity, error) {
	if req.UserID != nil {
		return r.resolveRegistered(ctx, *req.UserID)
	}

	guest := Guest{
		Name:             strings.TrimSpace(req.Name),
		Contact:          strings.TrimSpace(req.Contact),
		SecondaryContact: strings.TrimSpace(req.SecondaryContact),
	}

	if req.OnSite {
		if guest.Name == "" {
			guest.Name = OnSiteGuestName
		}
		if guest.Contact == "" {
			guest.Contact = OnSiteContact
		}
		return guest, nil
	}

	if guest.Name == "" {
		return nil, apperrors.Validation("guest name is required")
	}
	if guest.Contact == "" {
		return nil, apperrors.Validation("guest contact is required")
	}
	return guest, nil
}

func (r *Reconciler) resolveRegistered(ctx context.Context, userID int64) (Identity, error) {
	if userID <= 0 {
		return nil, apperrors.Validation("invalid user id %d", userID)
	}
	if r.users == nil {
		return Registered{UserID: userID}, nil
	}

	user, err := r.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.Validation("user %d does not exist", userID)
		}
		return nil, fmt.Errorf("failed to look up user %d: %w", userID, err)
	}

	return Registered{
		UserID:      user.UserID,
		DisplayName: user.DisplayName(),
		Contact:     user.Whatsapp,
	}, nil
}

// ApplyToSignup writes id onto s, clearing the other identity form.
func ApplyToSignup(id Identity, s *models.VolunteerSignup) {
	s.UserID, s.GuestName, s.GuestWhatsapp, s.GuestUkPhone = columns(id)
}

// ApplyToRegistration writes id onto reg, clearing the other identity form.
func ApplyToRegistration(id Identity, reg *models.EventRegistration) {
	reg.UserID, reg.GuestName, reg.GuestWhatsapp, reg.GuestUkPhone = columns(id)
}

func columns(id Identity) (*int64, string, string, string) {
	switch v := id.(type) {
	case Registered:
		userID := v.UserID
		return &userID, "", "", ""
	case Guest:
		return nil, v.Name, v.Contact, v.SecondaryContact
	default:
		return nil, "", "", ""
	}
}
