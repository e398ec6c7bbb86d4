package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/fairkeep/internal/models"
	"github.com/mmynk/fairkeep/internal/storage"
)

const contactColumns = "id, from_user_id, to_user_id, status, created_at, updated_at"

func scanContactRequest(row scanner) (*models.ContactRequest, error) {
	req := &models.ContactRequest{}
	err := row.Scan(&req.ID, &req.FromUserID, &req.ToUserID, &req.Status, &req.CreatedAt, &req.UpdatedAt)
	return req, err
}

// CreateContactRequest inserts a new contact request.
func (s *Store) CreateContactRequest(ctx context.Context, req *models.ContactRequest) error {
	if req.ID == "" {
		req.ID = uuid.New().String()
	}
	now := time.Now().Unix()
	req.CreatedAt = now
	req.UpdatedAt = now

	_, err := s.exec(ctx,
		"INSERT INTO contact_requests ("+contactColumns+") VALUES (?, ?, ?, ?, ?, ?)",
		req.ID, req.FromUserID, req.ToUserID, req.Status, req.CreatedAt, req.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create contact request: %w", err)
	}
	return nil
}

// GetContactRequest retrieves a contact request by ID.
func (s *Store) GetContactRequest(ctx context.Context, id string) (*models.ContactRequest, error) {
	req, err := scanContactRequest(s.queryRow(ctx,
		"SELECT "+contactColumns+" FROM contact_requests WHERE id = ?", id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("contact request %s: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get contact request: %w", err)
	}
	return req, nil
}

// FindContactRequest returns the request between two users in either direction.
func (s *Store) FindContactRequest(ctx context.Context, userID, otherID string) (*models.ContactRequest, error) {
	req, err := scanContactRequest(s.queryRow(ctx, `
		SELECT `+contactColumns+` FROM contact_requests
		WHERE (from_user_id = ? AND to_user_id = ?) OR (from_user_id = ? AND to_user_id = ?)
		ORDER BY created_at
		LIMIT 1`,
		userID, otherID, otherID, userID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find contact request: %w", err)
	}
	return req, nil
}

// UpdateContactRequest stores a new status and direction for a request.
func (s *Store) UpdateContactRequest(ctx context.Context, req *models.ContactRequest) error {
	req.UpdatedAt = time.Now().Unix()
	result, err := s.exec(ctx,
		"UPDATE contact_requests SET from_user_id = ?, to_user_id = ?, status = ?, updated_at = ? WHERE id = ?",
		req.FromUserID, req.ToUserID, req.Status, req.UpdatedAt, req.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update contact request: %w", err)
	}
	return requireRow(result, "contact request", req.ID)
}

// ListContactRequests returns every request sent or received by userID.
func (s *Store) ListContactRequests(ctx context.Context, userID string) ([]*models.ContactRequest, error) {
	rows, err := s.query(ctx,
		"SELECT "+contactColumns+" FROM contact_requests WHERE from_user_id = ? OR to_user_id = ? ORDER BY created_at, id",
		userID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list contact requests: %w", err)
	}
	defer rows.Close()

	var requests []*models.ContactRequest
	for rows.Next() {
		req, err := scanContactRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan contact request: %w", err)
		}
		requests = append(requests, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate contact requests: %w", err)
	}
	return requests, nil
}
