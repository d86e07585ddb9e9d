// Package redis implements blob.Store on a Redis-compatible server via
// rueidis. Intended for deployments without object storage; objects
// live as plain string values keyed by fingerprint.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/rueidis"

	"github.com/mdpress/presto/internal/blob"
)

var _ blob.Store = (*Store)(nil)

// Config holds connection parameters for a Redis store.
type Config struct {
	Addrs     []string
	Username  string
	Password  string
	DB        int
	KeyPrefix string
}

// Store implements blob.Store via rueidis.
type Store struct {
	client rueidis.Client
	prefix string
}

// NewStore creates a Redis-backed blob store.
func NewStore(cfg Config) (*Store, error) {
	if len(cfg.Addrs) == 0 {
		return nil, fmt.Errorf("addrs is required")
	}

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  cfg.Addrs,
		Username:     cfg.Username,
		Password:     cfg.Password,
		SelectDB:     cfg.DB,
		DisableCache: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	return &Store{client: client, prefix: cfg.KeyPrefix}, nil
}

// Get retrieves the bytes stored at key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	cmd := s.client.B().Get().Key(s.prefix + key).Build()
	data, err := s.client.Do(ctx, cmd).AsBytes()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return nil, blob.ErrKeyNotFound
		}
		return nil, &blob.Error{Op: blob.OpGet, Err: err}
	}
	return data, nil
}

// Put stores value at key.
func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	cmd := s.client.B().Set().Key(s.prefix + key).Value(rueidis.BinaryString(value)).Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return &blob.Error{Op: blob.OpPut, Err: err}
	}
	return nil
}

// Exists checks key presence.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	cmd := s.client.B().Exists().Key(s.prefix + key).Build()
	count, err := s.client.Do(ctx, cmd).AsInt64()
	if err != nil {
		return false, &blob.Error{Op: blob.OpExists, Err: err}
	}
	return count > 0, nil
}

// Delete removes a key.
func (s *Store) Delete(ctx context.Context, key string) error {
	cmd := s.client.B().Del().Key(s.prefix + key).Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return &blob.Error{Op: blob.OpDelete, Err: err}
	}
	return nil
}

// List returns keys with the given prefix, cursor-scanning until done.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	var cursor uint64

	for {
		cmd := s.client.B().Scan().Cursor(cursor).Match(s.prefix + prefix + "*").Count(100).Build()
		res, err := s.client.Do(ctx, cmd).AsScanEntry()
		if err != nil {
			return nil, &blob.Error{Op: blob.OpList, Err: err}
		}
		for _, k := range res.Elements {
			keys = append(keys, k[len(s.prefix):])
		}
		cursor = res.Cursor
		if cursor == 0 {
			break
		}
	}

	return keys, nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	cmd := s.client.B().Ping().Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Close shuts down the client.
func (s *Store) Close() {
	s.client.Close()
}

// WaitForReady polls Ping until the store responds or timeout expires.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for store: %w", ctx.Err())
		case <-ticker.C:
			if err := s.Ping(ctx); err == nil {
				return nil
			}
		}
	}
}
