package chunkstore

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"
)

// RetryConfig configures retry behavior for transient storage errors.
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	JitterFraction float64 // 0.0 to 1.0
}

// DefaultRetryConfig returns sensible retry defaults.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
		JitterFraction: 0.25,
	}
}

// RetryStore wraps a ChunkStore with automatic retry on transient errors.
// Corruption, missing documents, and cancellation are surfaced immediately;
// they are not transient faults.
type RetryStore struct {
	inner  ChunkStore
	config *RetryConfig
}

// NewRetryStore creates a RetryStore that wraps the given ChunkStore.
func NewRetryStore(inner ChunkStore, cfg *RetryConfig) *RetryStore {
	if cfg == nil {
		cfg = DefaultRetryConfig()
	}
	return &RetryStore{inner: inner, config: cfg}
}

// isTransient returns true for errors that are worth retrying.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrCorrupted) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true // I/O errors are transient
}

// backoff computes the delay for the given attempt with jitter.
func (rs *RetryStore) backoff(attempt int) time.Duration {
	base := float64(rs.config.InitialBackoff) * math.Pow(2, float64(attempt))
	if base > float64(rs.config.MaxBackoff) {
		base = float64(rs.config.MaxBackoff)
	}
	jitter := base * rs.config.JitterFraction * (rand.Float64()*2 - 1) // +/- jitter
	d := time.Duration(base + jitter)
	if d < 0 {
		d = 0
	}
	return d
}

// sleep waits for the given duration or until the context is cancelled.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// retry executes fn with retry logic. Only retries transient errors.
func (rs *RetryStore) retry(ctx context.Context, operation string, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= rs.config.MaxRetries; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !isTransient(lastErr) {
			return lastErr
		}
		if attempt < rs.config.MaxRetries {
			d := rs.backoff(attempt)
			if err := sleep(ctx, d); err != nil {
				return fmt.Errorf("%s: %w (retry cancelled)", operation, lastErr)
			}
		}
	}
	return fmt.Errorf("%s: %w (after %d retries)", operation, lastErr, rs.config.MaxRetries)
}

// --- Delegate all ChunkStore methods through retry logic ---

func (rs *RetryStore) Put(ctx context.Context, docID string, index int, payload []byte) error {
	return rs.retry(ctx, "put chunk", func() error {
		return rs.inner.Put(ctx, docID, index, payload)
	})
}

func (rs *RetryStore) Get(ctx context.Context, docID string) (chunks [][]byte, err error) {
	err = rs.retry(ctx, "get chunks", func() error {
		chunks, err = rs.inner.Get(ctx, docID)
		return err
	})
	return
}

func (rs *RetryStore) Count(ctx context.Context, docID string) (count int, err error) {
	err = rs.retry(ctx, "count chunks", func() error {
		count, err = rs.inner.Count(ctx, docID)
		return err
	})
	return
}

func (rs *RetryStore) Delete(ctx context.Context, docID string) error {
	return rs.retry(ctx, "delete chunks", func() error {
		return rs.inner.Delete(ctx, docID)
	})
}

func (rs *RetryStore) ListDocs(ctx context.Context) (ids []string, err error) {
	err = rs.retry(ctx, "list documents", func() error {
		ids, err = rs.inner.ListDocs(ctx)
		return err
	})
	return
}
