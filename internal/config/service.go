package config

import (
	"sync"
)

// Service holds the current Settings and notifies observers when they
// change. Observers are called synchronously, outside the service's lock.
type Service struct {
	mu       sync.RWMutex
	settings Settings
	subs     map[uint64]func(Settings)
	nextID   uint64
}

// NewService creates a Service with the given initial settings.
func NewService(s Settings) *Service {
	return &Service{
		settings: s,
		subs:     make(map[uint64]func(Settings)),
	}
}

// Settings returns the current settings value.
func (s *Service) Settings() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// Subscribe registers an observer for settings changes and returns an
// unsubscribe function.
func (s *Service) Subscribe(fn func(Settings)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// Update replaces the current settings and notifies observers.
func (s *Service) Update(settings Settings) {
	s.mu.Lock()
	s.settings = settings
	handlers := make([]func(Settings), 0, len(s.subs))
	for _, fn := range s.subs {
		handlers = append(handlers, fn)
	}
	s.mu.Unlock()

	for _, fn := range handlers {
		fn(settings)
	}
}

// ReloadFrom loads settings from a file and applies them.
func (s *Service) ReloadFrom(path string) error {
	settings, err := Load(path)
	if err != nil {
		return err
	}
	s.Update(settings)
	return nil
}
