package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"taskdash/internal/config"
	"taskdash/internal/models"
	"taskdash/internal/storage"

	"golang.org/x/crypto/bcrypt"
)

// SessionKey is the store slot holding the signed-in identity.
const SessionKey = "user"

// bcrypt ignores everything past 72 bytes, so longer secrets would compare
// equal to their prefix.
const maxSecretBytes = 72

var ErrInvalidCredentials = errors.New("invalid credentials")

// TaskClearer empties the task collection. Logging out discards every task.
type TaskClearer interface {
	ClearTasks(ctx context.Context) error
}

type Session struct {
	User            *models.User `json:"user"`
	IsAuthenticated bool         `json:"isAuthenticated"`
	Loading         bool         `json:"loading"`
	Error           string       `json:"error,omitempty"`
}

// Gate owns the single local session. A session marker in the store is the
// only proof of being signed in; it carries no expiry.
type Gate struct {
	kv       storage.KeyValueStore
	tasks    TaskClearer
	cfg      config.AuthConfig
	demoHash []byte

	// opMu spans each marker read or write and the session update that
	// follows it, so the session always agrees with the stored marker.
	opMu sync.Mutex

	mu      sync.RWMutex
	session Session
}

func NewGate(kv storage.KeyValueStore, tasks TaskClearer, cfg config.AuthConfig) (*Gate, error) {
	cost := cfg.BCryptCost
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.DemoPassword), cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash demo credentials: %w", err)
	}

	return &Gate{
		kv:       kv,
		tasks:    tasks,
		cfg:      cfg,
		demoHash: hash,
		session:  Session{Loading: true},
	}, nil
}

// CheckStatus restores the session from the stored marker. An unreadable
// marker counts as signed out.
func (g *Gate) CheckStatus(ctx context.Context) (*models.User, error) {
	g.begin()
	wait(g.cfg.CheckLatency)

	g.opMu.Lock()
	defer g.opMu.Unlock()

	data, err := g.kv.Get(ctx, SessionKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			g.signOut()
			return nil, nil
		}
		log.Printf("[auth] Error reading session marker: %v", err)
		g.fail(err)
		return nil, fmt.Errorf("failed to read session: %w", err)
	}

	var user models.User
	if err := json.Unmarshal(data, &user); err != nil || user.Email == "" {
		log.Printf("[auth] Ignoring unreadable session marker")
		g.signOut()
		return nil, nil
	}

	g.signIn(&user)
	return &user, nil
}

// Login accepts only the configured demo identity.
func (g *Gate) Login(ctx context.Context, email, password string) (*models.User, error) {
	g.begin()
	wait(g.cfg.LoginLatency)

	if !g.matchesDemo(email, password) {
		g.fail(ErrInvalidCredentials)
		return nil, ErrInvalidCredentials
	}

	g.opMu.Lock()
	defer g.opMu.Unlock()

	user := &models.User{Email: g.cfg.DemoEmail, Name: g.cfg.DemoName}
	if err := g.persist(ctx, user); err != nil {
		g.fail(err)
		return nil, err
	}

	log.Printf("[auth] %s signed in", user.Email)
	g.signIn(user)
	return user, nil
}

// Register always succeeds; there is no account list to check against.
func (g *Gate) Register(ctx context.Context, name, email, _ string) (*models.User, error) {
	g.begin()
	wait(g.cfg.LoginLatency)

	g.opMu.Lock()
	defer g.opMu.Unlock()

	user := &models.User{Email: email, Name: name}
	if err := g.persist(ctx, user); err != nil {
		g.fail(err)
		return nil, err
	}

	log.Printf("[auth] %s registered", user.Email)
	g.signIn(user)
	return user, nil
}

// Logout removes the session marker and discards the task collection.
func (g *Gate) Logout(ctx context.Context) error {
	g.opMu.Lock()
	defer g.opMu.Unlock()

	var errs []error

	if err := g.kv.Delete(ctx, SessionKey); err != nil && !errors.Is(err, storage.ErrNotFound) {
		errs = append(errs, fmt.Errorf("failed to clear session: %w", err))
	}

	if g.tasks != nil {
		if err := g.tasks.ClearTasks(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to clear tasks: %w", err))
		}
	}

	g.signOut()
	if err := errors.Join(errs...); err != nil {
		log.Printf("[auth] Logout finished with errors: %v", err)
		return err
	}
	return nil
}

func (g *Gate) ClearError() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.session.Error = ""
}

func (g *Gate) Session() Session {
	g.mu.RLock()
	defer g.mu.RUnlock()

	s := g.session
	if s.User != nil {
		u := *s.User
		s.User = &u
	}
	return s
}

// Current returns the signed-in identity, if any.
func (g *Gate) Current() (*models.User, bool) {
	s := g.Session()
	return s.User, s.IsAuthenticated
}

func (g *Gate) matchesDemo(email, password string) bool {
	if email != g.cfg.DemoEmail || len(password) > maxSecretBytes {
		return false
	}
	return bcrypt.CompareHashAndPassword(g.demoHash, []byte(password)) == nil
}

func (g *Gate) persist(ctx context.Context, user *models.User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to serialize session: %w", err)
	}
	if err := g.kv.Set(ctx, SessionKey, data); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (g *Gate) begin() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.session.Loading = true
	g.session.Error = ""
}

func (g *Gate) signIn(user *models.User) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.session = Session{User: user, IsAuthenticated: true}
}

func (g *Gate) signOut() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.session = Session{}
}

// fail keeps the current identity; a rejected login does not sign anyone out.
func (g *Gate) fail(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.session.Loading = false
	g.session.Error = err.Error()
}

func wait(d time.Duration) {
	if d > 0 {
		time.Sleep(d)
	}
}
