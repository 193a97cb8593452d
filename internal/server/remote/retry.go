package remote

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/gatekeeper/internal/common"
	"github.com/sethvargo/go-retry"
)

// RetryingGateway retries reads that failed with common.ErrRemoteUnavailable
// using exponential backoff. Writes and password checks pass through
// untouched. It is meant for background jobs; request paths use the
// plain gateway so users are not kept waiting.
type RetryingGateway struct {
	Gateway
	maxRetries uint64
	base       time.Duration
}

func WithRetry(g Gateway, maxRetries uint64, base time.Duration) *RetryingGateway {
	return &RetryingGateway{Gateway: g, maxRetries: maxRetries, base: base}
}

func (g *RetryingGateway) backoff() retry.Backoff {
	return retry.WithMaxRetries(g.maxRetries, retry.NewExponential(g.base))
}

func retryable(err error) error {
	if errors.Is(err, common.ErrRemoteUnavailable) {
		return retry.RetryableError(err)
	}
	return err
}

func (g *RetryingGateway) ListAccounts(ctx context.Context) ([]Account, error) {
	var out []Account
	err := retry.Do(ctx, g.backoff(), func(ctx context.Context) error {
		accounts, err := g.Gateway.ListAccounts(ctx)
		if err != nil {
			return retryable(err)
		}
		out = accounts
		return nil
	})
	return out, err
}

func (g *RetryingGateway) GetAccount(ctx context.Context, id string) (*Account, error) {
	var out *Account
	err := retry.Do(ctx, g.backoff(), func(ctx context.Context) error {
		a, err := g.Gateway.GetAccount(ctx, id)
		if err != nil {
			return retryable(err)
		}
		out = a
		return nil
	})
	return out, err
}

func (g *RetryingGateway) ListLibraryFolders(ctx context.Context) ([]Folder, error) {
	var out []Folder
	err := retry.Do(ctx, g.backoff(), func(ctx context.Context) error {
		folders, err := g.Gateway.ListLibraryFolders(ctx)
		if err != nil {
			return retryable(err)
		}
		out = folders
		return nil
	})
	return out, err
}
