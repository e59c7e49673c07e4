package cacheinfra

import (
	"context"

	"github.com/viccon/sturdyc"
)

// SturdycPort stores encoded snapshots in an in-process sturdyc client.
type SturdycPort struct {
	client *sturdyc.Client[[]byte]
}

// NewSturdycPort validates cfg and builds the sturdyc client.
//
// Version compatibility note: This implementation assumes sturdyc v1.x API.
func NewSturdycPort(cfg Config) (*SturdycPort, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client := sturdyc.New[[]byte](
		cfg.Capacity,
		cfg.NumShards,
		cfg.TTL,
		cfg.EvictionPercentage,
		cfg.ToSturdycOptions()...,
	)
	return &SturdycPort{client: client}, nil
}

// Get returns the snapshot stored under key.
func (s *SturdycPort) Get(_ context.Context, key string) ([]byte, bool, error) {
	value, ok := s.client.Get(key)
	if !ok {
		return nil, false, nil
	}
	return value, true, nil
}

// Set stores value under key.
func (s *SturdycPort) Set(_ context.Context, key string, value []byte) error {
	s.client.Set(key, value)
	return nil
}

// Delete removes a single entry.
func (s *SturdycPort) Delete(_ context.Context, key string) error {
	s.client.Delete(key)
	return nil
}

// DeleteNamespace removes every entry whose key belongs to namespace.
func (s *SturdycPort) DeleteNamespace(_ context.Context, namespace string) error {
	for _, key := range s.client.ScanKeys() {
		if inNamespace(key, namespace) {
			s.client.Delete(key)
		}
	}
	return nil
}

// Size returns the number of stored entries.
func (s *SturdycPort) Size() int {
	return s.client.Size()
}
