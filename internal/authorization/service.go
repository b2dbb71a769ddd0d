package authorization

import (
	"context"
	"errors"
)

// Subject is the caller being authorized. Role is the admin user's role at
// the time of the request.
type Subject struct {
	UserID string
	Role   string
}

type Service interface {
	Authorize(ctx context.Context, subject Subject, object string, action string) error
}

var (
	ErrInvalidActor  = errors.New("invalid_actor")
	ErrInvalidObject = errors.New("invalid_object")
	ErrInvalidAction = errors.New("invalid_action")
	ErrForbidden     = errors.New("forbidden")
)
