package service

import (
	"context"
	"errors"
	"time"

	"github.com/ymatsuda/bookmates-backend/internal/apperr"
	"github.com/ymatsuda/bookmates-backend/internal/repository"
)

const readRetryDelay = 100 * time.Millisecond

func isTransient(err error) bool {
	return errors.Is(err, repository.ErrDBNotReady)
}

// storeErr maps repository failures onto the service error taxonomy.
func storeErr(op string, err error) error {
	if isTransient(err) {
		return apperr.Unavailable("store not ready", err)
	}
	return apperr.Internal(op+" failed", err)
}

// withReadRetry runs fn and retries once after a short delay on a
// transient store failure. Reads only: writes are surfaced immediately
// so the caller can retry with its input intact.
func withReadRetry(ctx context.Context, fn func() error) error {
	err := fn()
	if err == nil || !isTransient(err) {
		return err
	}
	select {
	case <-ctx.Done():
		return err
	case <-time.After(readRetryDelay):
	}
	return fn()
}
