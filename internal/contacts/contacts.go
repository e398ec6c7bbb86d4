// Package contacts manages contact requests and answers whether one user
// may see another.
package contacts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mmynk/fairkeep/internal/models"
	"github.com/mmynk/fairkeep/internal/storage"
)

var (
	ErrSelfRequest     = errors.New("cannot send a contact request to yourself")
	ErrUserNotFound    = errors.New("user not found")
	ErrRequestNotFound = errors.New("contact request not found")
	ErrNotRecipient    = errors.New("only the recipient can respond to a contact request")
	ErrNotPending      = errors.New("contact request is not pending")
)

// Store is the storage needed by Service.
type Store interface {
	storage.UserStore
	storage.ContactStore
}

// Service manages the contact graph.
type Service struct {
	store Store
}

// NewService creates a contacts service over store.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// Contacts is a user's view of the contact graph.
type Contacts struct {
	// Accepted are users with an accepted request in either direction.
	Accepted []*models.User
	// Incoming are pending requests sent to the user.
	Incoming []*models.ContactRequest
	// Outgoing are pending requests sent by the user.
	Outgoing []*models.ContactRequest
}

// CanSee reports whether viewerID may see userID: themselves, or an accepted contact.
func (s *Service) CanSee(ctx context.Context, viewerID, userID string) (bool, error) {
	if viewerID == userID {
		return true, nil
	}

	req, err := s.store.FindContactRequest(ctx, viewerID, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return req.Status == models.ContactAccepted, nil
}

// Send creates a contact request from fromID to toID.
// An existing request between the two is reused: a pending request from
// toID is accepted, and a rejected one is re-opened.
func (s *Service) Send(ctx context.Context, fromID, toID string) (*models.ContactRequest, error) {
	if fromID == toID {
		return nil, ErrSelfRequest
	}
	if _, err := s.store.GetUserByID(ctx, toID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	existing, err := s.store.FindContactRequest(ctx, fromID, toID)
	if errors.Is(err, storage.ErrNotFound) {
		req := &models.ContactRequest{FromUserID: fromID, ToUserID: toID, Status: models.ContactPending}
		if err := s.store.CreateContactRequest(ctx, req); err != nil {
			return nil, err
		}
		slog.Info("Contact request sent", "request_id", req.ID, "from", fromID, "to", toID)
		return req, nil
	}
	if err != nil {
		return nil, err
	}

	switch {
	case existing.Status == models.ContactAccepted:
		return existing, nil
	case existing.Status == models.ContactPending && existing.FromUserID == fromID:
		return existing, nil
	case existing.Status == models.ContactPending:
		existing.Status = models.ContactAccepted
	default:
		existing.FromUserID = fromID
		existing.ToUserID = toID
		existing.Status = models.ContactPending
	}

	if err := s.store.UpdateContactRequest(ctx, existing); err != nil {
		return nil, err
	}
	slog.Info("Contact request updated", "request_id", existing.ID, "status", existing.Status)
	return existing, nil
}

// Respond accepts or rejects a pending request addressed to userID.
func (s *Service) Respond(ctx context.Context, userID, requestID string, accept bool) (*models.ContactRequest, error) {
	req, err := s.store.GetContactRequest(ctx, requestID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrRequestNotFound
	}
	if err != nil {
		return nil, err
	}

	if !req.Involves(userID) {
		return nil, ErrRequestNotFound
	}
	if req.ToUserID != userID {
		return nil, ErrNotRecipient
	}
	if req.Status != models.ContactPending {
		return nil, ErrNotPending
	}

	req.Status = models.ContactRejected
	if accept {
		req.Status = models.ContactAccepted
	}
	if err := s.store.UpdateContactRequest(ctx, req); err != nil {
		return nil, err
	}

	slog.Info("Contact request answered", "request_id", req.ID, "status", req.Status)
	return req, nil
}

// List returns userID's accepted contacts and pending requests.
func (s *Service) List(ctx context.Context, userID string) (*Contacts, error) {
	requests, err := s.store.ListContactRequests(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list contact requests: %w", err)
	}

	out := &Contacts{}
	var acceptedIDs []string
	for _, req := range requests {
		switch req.Status {
		case models.ContactAccepted:
			acceptedIDs = append(acceptedIDs, req.Other(userID))
		case models.ContactPending:
			if req.ToUserID == userID {
				out.Incoming = append(out.Incoming, req)
			} else {
				out.Outgoing = append(out.Outgoing, req)
			}
		}
	}

	users, err := s.store.GetUsersByIDs(ctx, acceptedIDs)
	if err != nil {
		return nil, err
	}
	for _, id := range acceptedIDs {
		if u, ok := users[id]; ok {
			out.Accepted = append(out.Accepted, u)
		}
	}

	return out, nil
}
