package firestore

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/glassworks/storefront/internal/repositories"
)

// WrapError classifies a Firestore failure by its gRPC status so services can tell a missing
// document from a lost transaction race. Cancellation passes through untouched.
func WrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var classified *repositories.Error
	if errors.As(err, &classified) {
		if classified.Op == "" {
			classified.Op = op
		}
		return classified
	}

	wrapped := &repositories.Error{Op: op, Err: err}
	switch status.Code(err) {
	case codes.Canceled:
		return context.Canceled
	case codes.NotFound:
		wrapped.NotFound = true
	// Aborted is a transaction that lost contention; AlreadyExists is a Create on a taken id.
	case codes.AlreadyExists, codes.Aborted, codes.FailedPrecondition:
		wrapped.Conflict = true
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted, codes.Internal:
		wrapped.Unavailable = true
	}
	return wrapped
}
