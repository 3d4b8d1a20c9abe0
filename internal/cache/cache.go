package cache

import (
	"context"
	"errors"
	"time"
)

var (
	ErrCacheMiss = errors.New("cache: key not found")
)

// Service defines cache operations. Values are stored as JSON; Get decodes
// into dest.
type Service interface {
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Get(ctx context.Context, key string, dest any) error
	Delete(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, keys ...string) (bool, error)
	Close() error
}

// Nop is a Service that stores nothing.
type Nop struct{}

func (Nop) Set(context.Context, string, any, time.Duration) error { return nil }
func (Nop) Get(context.Context, string, any) error { return ErrCacheMiss }
func (Nop) Delete(context.Context, ...string) error { return nil }
func (Nop) Exists(context.Context, ...string) (bool, error) { return false, nil }
func (Nop) Close() error { return nil }
