package auth

import (
	"context"

	"github.com/mmynk/fairkeep/internal/models"
)

// Authenticator defines the interface for authentication implementations.
// Services depend on it rather than on the password scheme, so another
// credential type can be added without touching them.
type Authenticator interface {
	// Register creates a new user account with the given email and credential.
	Register(ctx context.Context, email, displayName, credential string) (*models.User, error)

	// Authenticate verifies the user's credentials and returns the user if successful.
	Authenticate(ctx context.Context, email, credential string) (*models.User, error)

	// ChangeCredential replaces userID's credential after verifying the current one.
	ChangeCredential(ctx context.Context, userID, current, next string) error

	// ValidateCredential checks if the credential meets the implementation's requirements.
	ValidateCredential(credential string) error
}
