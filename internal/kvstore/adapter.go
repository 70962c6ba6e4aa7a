package kvstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode"
)

// Identified is implemented by records that carry a string id.
type Identified interface {
	RecordID() string
	SetRecordID(id string)
}

// Named optionally supplies readable text for synthesised ids.
type Named interface {
	RecordName() string
}

// RecoveryFunc frees space after a capacity failure.
type RecoveryFunc func(ctx context.Context) error

// Adapter layers typed JSON access, tenancy namespacing and capacity recovery over a Store.
type Adapter struct {
	store         Store
	logger        *slog.Logger
	maxValueBytes int
	recover       RecoveryFunc
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithLogger sets the adapter logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Adapter) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithMaxValueBytes rejects serialised values above limit with ErrCapacityExceeded.
func WithMaxValueBytes(limit int) Option {
	return func(a *Adapter) {
		a.maxValueBytes = limit
	}
}

// NewAdapter builds an Adapter. A nil store yields an adapter that serves seeds and drops writes.
func NewAdapter(store Store, opts ...Option) *Adapter {
	a := &Adapter{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// SetCapacityRecovery installs the hook run once before retrying a write rejected for capacity.
func (a *Adapter) SetCapacityRecovery(fn RecoveryFunc) {
	a.recover = fn
}

// Available reports whether a backing store is configured.
func (a *Adapter) Available() bool {
	return a != nil && a.store != nil
}

// Store exposes the raw backend for maintenance tasks that bypass typing.
func (a *Adapter) Store() Store {
	if a == nil {
		return nil
	}
	return a.store
}

// Key returns the tenancy-scoped key for baseKey.
func Key(baseKey, userID string) string {
	if userID == "" {
		return baseKey
	}
	return baseKey + "_" + userID
}

// ReadCollection loads a JSON array stored under baseKey for userID.
// Missing or undecodable data yields a copy of seed. Records without an id get a deterministic one.
func ReadCollection[T any](ctx context.Context, a *Adapter, baseKey, userID string, seed []T) ([]T, error) {
	key := Key(baseKey, userID)
	items := append([]T(nil), seed...)
	if a.Available() {
		payload, err := a.store.Get(ctx, key)
		switch {
		case errors.Is(err, ErrKeyNotFound):
		case err != nil:
			return nil, fmt.Errorf("kvstore: read %s: %w", key, err)
		default:
			var decoded []T
			if err := json.Unmarshal(payload, &decoded); err != nil {
				a.logger.Warn("kvstore: discarding undecodable collection", slog.String("key", key), slog.Any("error", err))
			} else {
				items = decoded
			}
		}
	}
	if items == nil {
		items = []T{}
	}
	for i := range items {
		rec, ok := any(&items[i]).(Identified)
		if !ok || rec.RecordID() != "" {
			continue
		}
		name := ""
		if named, ok := any(&items[i]).(Named); ok {
			name = named.RecordName()
		}
		rec.SetRecordID(synthesizeID(baseKey, i, name))
	}
	return items, nil
}

// ReadObject loads a singleton JSON object. It returns nil when absent or undecodable.
func ReadObject[T any](ctx context.Context, a *Adapter, baseKey, userID string) (*T, error) {
	if !a.Available() {
		return nil, nil
	}
	key := Key(baseKey, userID)
	payload, err := a.store.Get(ctx, key)
	if errors.Is(err, ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("kvstore: read %s: %w", key, err)
	}
	var out T
	if err := json.Unmarshal(payload, &out); err != nil {
		a.logger.Warn("kvstore: discarding undecodable object", slog.String("key", key), slog.Any("error", err))
		return nil, nil
	}
	return &out, nil
}

// Write serialises data under baseKey for userID.
func Write[T any](ctx context.Context, a *Adapter, baseKey, userID string, data T) error {
	key := Key(baseKey, userID)
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("kvstore: encode %s: %w", key, err)
	}
	return a.put(ctx, key, payload)
}

// Remove deletes the value stored under baseKey for userID.
func (a *Adapter) Remove(ctx context.Context, baseKey, userID string) error {
	if !a.Available() {
		return nil
	}
	key := Key(baseKey, userID)
	if err := a.store.Delete(ctx, key); err != nil {
		return fmt.Errorf("kvstore: delete %s: %w", key, err)
	}
	return nil
}

func (a *Adapter) put(ctx context.Context, key string, payload []byte) error {
	if !a.Available() {
		a.logger.Warn("kvstore: storage unavailable, dropping write", slog.String("key", key))
		return nil
	}
	err := a.set(ctx, key, payload)
	if errors.Is(err, ErrCapacityExceeded) && a.recover != nil {
		a.logger.Warn("kvstore: capacity exceeded, running recovery", slog.String("key", key), slog.Int("bytes", len(payload)))
		if rerr := a.recover(ctx); rerr != nil {
			a.logger.Warn("kvstore: capacity recovery failed", slog.Any("error", rerr))
		}
		err = a.set(ctx, key, payload)
	}
	if err != nil {
		return fmt.Errorf("kvstore: write %s: %w", key, err)
	}
	return nil
}

func (a *Adapter) set(ctx context.Context, key string, payload []byte) error {
	if a.maxValueBytes > 0 && len(payload) > a.maxValueBytes {
		return fmt.Errorf("%w: %d bytes over limit %d", ErrCapacityExceeded, len(payload), a.maxValueBytes)
	}
	return a.store.Set(ctx, key, payload)
}

func synthesizeID(baseKey string, index int, name string) string {
	return fmt.Sprintf("%s-%d-%s", baseKey, index, slug(name))
}

func slug(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		if b.Len() >= 24 {
			break
		}
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	out := strings.Trim(b.String(), "-")
	if out == "" {
		return "item"
	}
	return out
}
