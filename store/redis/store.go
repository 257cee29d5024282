// Package redis stores registry records in Redis. Creation uses SETNX so concurrent
// creators of one address are arbitrated by the server.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hyperledger/fabric/common/flogging"
	"github.com/redis/go-redis/v9"

	"verification/registry"
)

var logger = flogging.MustGetLogger("verification.store.redis")

// DefaultPrefix namespaces record keys.
const DefaultPrefix = "verification:record:"

// Store is a registry.Store over plain string keys.
type Store struct {
	client redis.UniversalClient
	prefix string
}

// Connect parses url, pings the server and returns the client.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

// New returns a Store using prefix for its keys; an empty prefix means DefaultPrefix.
func New(client redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Store{client: client, prefix: prefix}
}

func (s *Store) key(addr registry.Address) string {
	return s.prefix + addr.String()
}

func (s *Store) Load(ctx context.Context, addr registry.Address) ([]byte, error) {
	data, err := s.client.Get(ctx, s.key(addr)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, registry.ErrRecordNotFound
		}
		return nil, fmt.Errorf("load record %s: %w", addr, err)
	}
	return data, nil
}

func (s *Store) Create(ctx context.Context, addr registry.Address, data []byte) error {
	created, err := s.client.SetNX(ctx, s.key(addr), data, 0).Result()
	if err != nil {
		return fmt.Errorf("create record %s: %w", addr, err)
	}
	if !created {
		return registry.ErrRecordAlreadyExists
	}
	return nil
}

func (s *Store) Save(ctx context.Context, addr registry.Address, data []byte) error {
	updated, err := s.client.SetXX(ctx, s.key(addr), data, 0).Result()
	if err != nil {
		return fmt.Errorf("save record %s: %w", addr, err)
	}
	if !updated {
		return registry.ErrRecordNotFound
	}
	return nil
}

// Scan walks the prefix with SCAN. Records created during the walk may or may not be seen.
func (s *Store) Scan(ctx context.Context, fn func(registry.Address, []byte) error) error {
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		addr, err := registry.ParseAddress(strings.TrimPrefix(key, s.prefix))
		if err != nil {
			logger.Warningf("Scan: skipping key with bad address '%s': %v", key, err)
			continue
		}
		data, err := s.Load(ctx, addr)
		if err != nil {
			if errors.Is(err, registry.ErrRecordNotFound) {
				continue
			}
			return err
		}
		if err := fn(addr, data); err != nil {
			return err
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan records: %w", err)
	}
	return nil
}
