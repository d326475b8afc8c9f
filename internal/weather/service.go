package weather

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"taskdash/internal/models"
)

var (
	ErrLocationRequired = errors.New("location is required")
	ErrLocationTooShort = errors.New("location must be at least 2 characters")
)

type State struct {
	Loading bool                    `json:"loading"`
	Error   string                  `json:"error,omitempty"`
	Data    *models.WeatherSnapshot `json:"data"`
}

// Service holds the one weather snapshot shown next to the task list. Every
// fetch goes to the provider; nothing is cached or deduplicated.
type Service struct {
	provider        Provider
	defaultLocation string
	now             func() time.Time

	mu       sync.RWMutex
	inflight int
	state    State
}

func NewService(provider Provider, defaultLocation string) *Service {
	return &Service{
		provider:        provider,
		defaultLocation: defaultLocation,
		now:             time.Now,
	}
}

func (s *Service) Fetch(ctx context.Context, location string) (*models.WeatherSnapshot, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return nil, s.reject(ErrLocationRequired)
	}
	if len([]rune(location)) < 2 {
		return nil, s.reject(ErrLocationTooShort)
	}

	s.begin()

	snapshot, err := s.provider.Current(context.WithoutCancel(ctx), location)
	if err != nil {
		log.Printf("[weather] Fetch for %q failed: %v", location, err)
		s.finish(nil, err)
		return nil, err
	}

	snapshot.LastUpdated = s.now().UTC()
	s.finish(snapshot, nil)

	out := *snapshot
	return &out, nil
}

// Refresh re-fetches the held location, or the default one when nothing
// has been fetched yet.
func (s *Service) Refresh(ctx context.Context) (*models.WeatherSnapshot, error) {
	location := s.defaultLocation
	if current := s.Snapshot(); current != nil && current.Location != "" {
		location = current.Location
	}
	return s.Fetch(ctx, location)
}

func (s *Service) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Data = nil
	s.state.Error = ""
}

func (s *Service) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state := s.state
	if state.Data != nil {
		data := *state.Data
		state.Data = &data
	}
	return state
}

// Snapshot returns a copy of the held reading or nil.
func (s *Service) Snapshot() *models.WeatherSnapshot {
	return s.State().Data
}

func (s *Service) DefaultLocation() string {
	return s.defaultLocation
}

func (s *Service) begin() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inflight++
	s.state.Loading = true
	s.state.Error = ""
}

// finish keeps the previous reading when the fetch failed.
func (s *Service) finish(snapshot *models.WeatherSnapshot, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inflight--
	s.state.Loading = s.inflight > 0
	if err != nil {
		s.state.Error = err.Error()
		return
	}
	s.state.Data = snapshot
	s.state.Error = ""
}

func (s *Service) reject(err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Error = err.Error()
	return err
}
