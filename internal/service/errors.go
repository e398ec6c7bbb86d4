package service

import (
	"context"
	"errors"

	"connectrpc.com/connect"

	"github.com/mmynk/fairkeep/internal/ledger"
	"github.com/mmynk/fairkeep/internal/middleware"
)

// Response metadata carrying the figures of a failed total check.
const (
	ExpectedTotalHeader = "Expected-Total"
	ComputedTotalHeader = "Computed-Total"
)

var (
	errAuthRequired = errors.New("authentication required")
	errInternal     = errors.New("internal error")
)

// requireUser returns the authenticated user ID from ctx.
func requireUser(ctx context.Context) (string, error) {
	userID := middleware.GetUserID(ctx)
	if userID == "" {
		return "", connect.NewError(connect.CodeUnauthenticated, errAuthRequired)
	}
	return userID, nil
}

// ledgerError maps ledger errors to Connect codes.
func ledgerError(err error) error {
	var (
		validation *ledger.ValidationError
		notFound   *ledger.NotFoundError
	)

	switch {
	case errors.As(err, &validation):
		connectErr := connect.NewError(connect.CodeInvalidArgument, validation)
		if validation.Expected != nil && validation.Computed != nil {
			connectErr.Meta().Set(ExpectedTotalHeader, validation.Expected.String())
			connectErr.Meta().Set(ComputedTotalHeader, validation.Computed.String())
		}
		return connectErr
	case errors.As(err, &notFound):
		return connect.NewError(connect.CodeNotFound, notFound)
	default:
		// Storage details stay in the logs.
		return connect.NewError(connect.CodeInternal, errInternal)
	}
}
