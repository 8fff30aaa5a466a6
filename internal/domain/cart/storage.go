package cart

import (
	"context"

	"github.com/go-faster/errors"
)

// StorageKey is the device-storage key holding the serialized cart.
const StorageKey = "cartItems"

// DeviceKey returns the storage key for a device. The empty device maps to
// StorageKey.
func DeviceKey(deviceID string) string {
	if deviceID == "" {
		return StorageKey
	}
	return StorageKey + ":" + deviceID
}

// LocalStore is the durable device copy of the cart.
type LocalStore interface {
	Load(ctx context.Context) ([]Line, error)
	Save(ctx context.Context, lines []Line) error
}

// KV is a byte-valued key-value store. Get reports ok=false for a missing key.
type KV interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// KVStorage stores the cart as a JSON array under a single key.
type KVStorage struct {
	kv  KV
	key string
}

var _ LocalStore = (*KVStorage)(nil)

// NewKVStorage returns a LocalStore persisting under key.
func NewKVStorage(kv KV, key string) *KVStorage {
	return &KVStorage{kv: kv, key: key}
}

// Load returns the stored lines, or nil when nothing is stored.
func (s *KVStorage) Load(ctx context.Context) ([]Line, error) {
	data, ok, err := s.kv.Get(ctx, s.key)
	if err != nil {
		return nil, errors.Wrapf(err, "get %q", s.key)
	}
	if !ok || len(data) == 0 {
		return nil, nil
	}
	lines, err := DecodeLines(data)
	if err != nil {
		return nil, errors.Wrapf(err, "decode %q", s.key)
	}
	return lines, nil
}

// Save replaces the stored lines. An empty cart deletes the key.
func (s *KVStorage) Save(ctx context.Context, lines []Line) error {
	if len(lines) == 0 {
		if err := s.kv.Delete(ctx, s.key); err != nil {
			return errors.Wrapf(err, "delete %q", s.key)
		}
		return nil
	}
	if err := s.kv.Put(ctx, s.key, EncodeLines(lines)); err != nil {
		return errors.Wrapf(err, "put %q", s.key)
	}
	return nil
}
