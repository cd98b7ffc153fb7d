package settings

import (
	"context"
	"fmt"
	"strconv"
	"sync"
)

// Store is the persistent side of the settings service.
type Store interface {
	GetSetting(ctx context.Context, key string) (string, bool, error)
	SetSetting(ctx context.Context, key, value string) error
	AllSettings(ctx context.Context) (map[string]string, error)
}

// Service is a typed read/write layer over the settings table with an
// in-process cache. Writes go to the store first; the cache only changes
// after the store accepted the value, so a failed write leaves settings
// unchanged.
type Service struct {
	mu    sync.RWMutex
	cache map[string]string
	store Store
}

func New(store Store) *Service {
	return &Service{cache: make(map[string]string), store: store}
}

// Load warms the cache from the store. Call once at startup.
func (s *Service) Load(ctx context.Context) error {
	all, err := s.store.AllSettings(ctx)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	s.mu.Lock()
	s.cache = all
	s.mu.Unlock()
	return nil
}

func (s *Service) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.cache[key]
	return v, ok
}

func (s *Service) Set(ctx context.Context, key, value string) error {
	if err := s.store.SetSetting(ctx, key, value); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	s.mu.Lock()
	s.cache[key] = value
	s.mu.Unlock()
	return nil
}

func (s *Service) String(key, def string) string {
	if v, ok := s.Get(key); ok {
		return v
	}
	return def
}

func (s *Service) Bool(key string, def bool) bool {
	v, ok := s.Get(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func (s *Service) Int(key string, def int) int {
	v, ok := s.Get(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// All returns a copy of the current settings map.
func (s *Service) All() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.cache))
	for k, v := range s.cache {
		out[k] = v
	}
	return out
}
