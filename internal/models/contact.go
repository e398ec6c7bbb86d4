package models

// ContactStatus is the state of a contact request.
type ContactStatus string

const (
	ContactPending  ContactStatus = "pending"
	ContactAccepted ContactStatus = "accepted"
	ContactRejected ContactStatus = "rejected"
)

// ContactRequest is an edge of the contact graph. Once accepted, both users
// can see each other regardless of who sent it.
type ContactRequest struct {
	ID         string
	FromUserID string
	ToUserID   string
	Status     ContactStatus
	CreatedAt  int64
	UpdatedAt  int64
}

// Involves reports whether userID is either end of the request.
func (r *ContactRequest) Involves(userID string) bool {
	return r.FromUserID == userID || r.ToUserID == userID
}

// Other returns the end of the request that is not userID.
func (r *ContactRequest) Other(userID string) string {
	if r.FromUserID == userID {
		return r.ToUserID
	}
	return r.FromUserID
}
