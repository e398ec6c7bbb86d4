package service

import (
	"context"
	"errors"
	"log/slog"

	"connectrpc.com/connect"

	"github.com/mmynk/fairkeep/internal/auth"
	"github.com/mmynk/fairkeep/internal/contacts"
	"github.com/mmynk/fairkeep/internal/storage"
	"github.com/mmynk/fairkeep/pkg/api"
	"github.com/mmynk/fairkeep/pkg/api/apiconnect"
)

var _ apiconnect.ContactServiceHandler = (*ContactService)(nil)

// ContactService implements the ContactService RPC interface.
type ContactService struct {
	contacts *contacts.Service
	users    storage.UserStore
}

// NewContactService creates a ContactService.
func NewContactService(contactsSvc *contacts.Service, users storage.UserStore) *ContactService {
	return &ContactService{contacts: contactsSvc, users: users}
}

func contactError(err error) error {
	switch {
	case errors.Is(err, contacts.ErrUserNotFound), errors.Is(err, contacts.ErrRequestNotFound):
		return connect.NewError(connect.CodeNotFound, err)
	case errors.Is(err, contacts.ErrSelfRequest):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, contacts.ErrNotRecipient):
		return connect.NewError(connect.CodePermissionDenied, err)
	case errors.Is(err, contacts.ErrNotPending):
		return connect.NewError(connect.CodeFailedPrecondition, err)
	default:
		return connect.NewError(connect.CodeInternal, errInternal)
	}
}

// SendContactRequest asks another user, named by ID or email, to connect.
func (s *ContactService) SendContactRequest(ctx context.Context, req *connect.Request[api.SendContactRequestRequest]) (*connect.Response[api.SendContactRequestResponse], error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}

	toID := req.Msg.ToUserID
	if toID == "" && req.Msg.Email != "" {
		user, err := s.users.GetUserByEmail(ctx, auth.NormalizeEmail(req.Msg.Email))
		if errors.Is(err, storage.ErrNotFound) {
			return nil, connect.NewError(connect.CodeNotFound, contacts.ErrUserNotFound)
		}
		if err != nil {
			slog.Error("SendContactRequest lookup failed", "error", err)
			return nil, connect.NewError(connect.CodeInternal, errInternal)
		}
		toID = user.ID
	}
	if toID == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("to_user_id or email is required"))
	}

	request, err := s.contacts.Send(ctx, userID, toID)
	if err != nil {
		slog.Warn("SendContactRequest failed", "from", userID, "to", toID, "error", err)
		return nil, contactError(err)
	}

	return connect.NewResponse(&api.SendContactRequestResponse{Request: toAPIContactRequest(request)}), nil
}

// RespondContactRequest accepts or rejects a pending request sent to the caller.
func (s *ContactService) RespondContactRequest(ctx context.Context, req *connect.Request[api.RespondContactRequestRequest]) (*connect.Response[api.RespondContactRequestResponse], error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}

	request, err := s.contacts.Respond(ctx, userID, req.Msg.RequestID, req.Msg.Accept)
	if err != nil {
		slog.Warn("RespondContactRequest failed", "user_id", userID, "request_id", req.Msg.RequestID, "error", err)
		return nil, contactError(err)
	}

	return connect.NewResponse(&api.RespondContactRequestResponse{Request: toAPIContactRequest(request)}), nil
}

// ListContacts returns the caller's contacts and pending requests.
func (s *ContactService) ListContacts(ctx context.Context, req *connect.Request[api.ListContactsRequest]) (*connect.Response[api.ListContactsResponse], error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}

	list, err := s.contacts.List(ctx, userID)
	if err != nil {
		slog.Error("ListContacts failed", "user_id", userID, "error", err)
		return nil, connect.NewError(connect.CodeInternal, errInternal)
	}

	users := make([]*api.User, len(list.Accepted))
	for i, u := range list.Accepted {
		users[i] = &api.User{ID: u.ID, DisplayName: u.Name()}
	}

	return connect.NewResponse(&api.ListContactsResponse{
		Contacts: users,
		Incoming: toAPIContactRequests(list.Incoming),
		Outgoing: toAPIContactRequests(list.Outgoing),
	}), nil
}
