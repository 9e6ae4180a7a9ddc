package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// KV stores countdown state in a JetStream key-value bucket shared by
// all server processes.
type KV struct {
	kv jetstream.KeyValue
}

// NewKV opens the named bucket, creating it if it does not exist yet.
func NewKV(ctx context.Context, nc *nats.Conn, bucket string) (*KV, error) {
	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	kv, err := js.KeyValue(ctx, bucket)
	if errors.Is(err, jetstream.ErrBucketNotFound) {
		kv, err = js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
			Bucket:      bucket,
			Description: "room countdown state",
		})
	}
	if err != nil {
		return nil, fmt.Errorf("open bucket %s: %w", bucket, err)
	}

	return &KV{kv: kv}, nil
}

func (s *KV) Set(ctx context.Context, key string, seconds int) error {
	if _, err := s.kv.Put(ctx, key, []byte(strconv.Itoa(seconds))); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (s *KV) Get(ctx context.Context, key string) (int, bool, error) {
	entry, err := s.kv.Get(ctx, key)
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("get %s: %w", key, err)
	}

	seconds, err := strconv.Atoi(string(entry.Value()))
	if err != nil {
		return 0, false, fmt.Errorf("decode %s: %w", key, err)
	}
	return seconds, true, nil
}

func (s *KV) Delete(ctx context.Context, key string) error {
	err := s.kv.Delete(ctx, key)
	if err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}
