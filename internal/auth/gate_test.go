package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"taskdash/internal/config"
	"taskdash/internal/models"
	"taskdash/internal/storage"
	"taskdash/internal/tasks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func testAuthConfig() config.AuthConfig {
	return config.AuthConfig{
		JWTSecret:    "test-secret",
		BCryptCost:   bcrypt.MinCost,
		DemoEmail:    "demo@example.com",
		DemoPassword: "password",
		DemoName:     "Demo User",
		TokenIssuer:  "taskdash",
	}
}

type recordingClearer struct {
	calls int
	err   error
}

func (r *recordingClearer) ClearTasks(context.Context) error {
	r.calls++
	return r.err
}

func setupGate(t *testing.T) (*Gate, *storage.MemoryStore, *recordingClearer) {
	kv := storage.NewMemoryStore()
	clearer := &recordingClearer{}
	gate, err := NewGate(kv, clearer, testAuthConfig())
	require.NoError(t, err)
	return gate, kv, clearer
}

func TestGate_StartsLoading(t *testing.T) {
	gate, _, _ := setupGate(t)

	session := gate.Session()
	assert.True(t, session.Loading)
	assert.False(t, session.IsAuthenticated)
	assert.Nil(t, session.User)
}

func TestGate_LoginWithDemoCredentials(t *testing.T) {
	ctx := context.Background()
	gate, kv, _ := setupGate(t)

	user, err := gate.Login(ctx, "demo@example.com", "password")
	require.NoError(t, err)
	assert.Equal(t, &models.User{Email: "demo@example.com", Name: "Demo User"}, user)

	session := gate.Session()
	assert.True(t, session.IsAuthenticated)
	assert.False(t, session.Loading)
	assert.Empty(t, session.Error)

	data, err := kv.Get(ctx, SessionKey)
	require.NoError(t, err)
	assert.JSONEq(t, `{"email":"demo@example.com","name":"Demo User"}`, string(data))
}

func TestGate_LoginRejectsOtherCredentials(t *testing.T) {
	tests := []struct {
		name     string
		email    string
		password string
	}{
		{name: "unknown user", email: "x@x.com", password: "wrong"},
		{name: "wrong password", email: "demo@example.com", password: "wrong"},
		{name: "case differs", email: "Demo@example.com", password: "password"},
		{name: "password prefix beyond bcrypt limit", email: "demo@example.com", password: "password" + strings.Repeat("x", 80)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			gate, kv, _ := setupGate(t)

			user, err := gate.Login(ctx, tt.email, tt.password)
			assert.ErrorIs(t, err, ErrInvalidCredentials)
			assert.Nil(t, user)

			session := gate.Session()
			assert.False(t, session.IsAuthenticated)
			assert.Equal(t, "invalid credentials", session.Error)

			_, err = kv.Get(ctx, SessionKey)
			assert.ErrorIs(t, err, storage.ErrNotFound)
		})
	}
}

func TestGate_ClearError(t *testing.T) {
	gate, _, _ := setupGate(t)

	_, _ = gate.Login(context.Background(), "x@x.com", "wrong")
	require.NotEmpty(t, gate.Session().Error)

	gate.ClearError()
	assert.Empty(t, gate.Session().Error)
}

func TestGate_RegisterAlwaysSucceeds(t *testing.T) {
	ctx := context.Background()
	gate, _, _ := setupGate(t)

	first, err := gate.Register(ctx, "Ada", "ada@example.com", "anything")
	require.NoError(t, err)
	assert.Equal(t, "Ada", first.Name)

	again, err := gate.Register(ctx, "Ada Again", "ada@example.com", "other")
	require.NoError(t, err)
	assert.Equal(t, "Ada Again", again.Name)

	current, ok := gate.Current()
	assert.True(t, ok)
	assert.Equal(t, "ada@example.com", current.Email)
}

func TestGate_CheckStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("no marker", func(t *testing.T) {
		gate, _, _ := setupGate(t)

		user, err := gate.CheckStatus(ctx)
		require.NoError(t, err)
		assert.Nil(t, user)
		assert.False(t, gate.Session().Loading)
		assert.False(t, gate.Session().IsAuthenticated)
	})

	t.Run("marker present", func(t *testing.T) {
		gate, kv, _ := setupGate(t)
		require.NoError(t, kv.Set(ctx, SessionKey, []byte(`{"email":"a@b.c","name":"A"}`)))

		user, err := gate.CheckStatus(ctx)
		require.NoError(t, err)
		require.NotNil(t, user)
		assert.Equal(t, "a@b.c", user.Email)
		assert.True(t, gate.Session().IsAuthenticated)
	})

	t.Run("corrupt marker", func(t *testing.T) {
		gate, kv, _ := setupGate(t)
		require.NoError(t, kv.Set(ctx, SessionKey, []byte("garbage")))

		user, err := gate.CheckStatus(ctx)
		require.NoError(t, err)
		assert.Nil(t, user)
		assert.False(t, gate.Session().IsAuthenticated)
	})

	t.Run("store unavailable", func(t *testing.T) {
		gate, kv, _ := setupGate(t)
		require.NoError(t, kv.Close())

		_, err := gate.CheckStatus(ctx)
		assert.ErrorIs(t, err, storage.ErrStoreClosed)
		assert.NotEmpty(t, gate.Session().Error)
		assert.False(t, gate.Session().Loading)
	})
}

func TestGate_LogoutClearsSessionAndTasks(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryStore()
	pipeline := tasks.NewPipeline(ctx, tasks.NewStore(kv), tasks.Options{})

	_, err := pipeline.AddTask(ctx, tasks.AddTaskInput{Text: "Buy milk"})
	require.NoError(t, err)

	gate, err := NewGate(kv, pipeline, testAuthConfig())
	require.NoError(t, err)
	_, err = gate.Login(ctx, "demo@example.com", "password")
	require.NoError(t, err)

	require.NoError(t, gate.Logout(ctx))

	_, err = kv.Get(ctx, SessionKey)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	assert.Empty(t, tasks.NewStore(kv).Load(ctx).Tasks)
	assert.Empty(t, pipeline.Tasks())
	assert.False(t, gate.Session().IsAuthenticated)
}

func TestGate_LogoutReportsClearFailure(t *testing.T) {
	gate, _, clearer := setupGate(t)
	clearer.err = errors.New("disk full")

	_, err := gate.Login(context.Background(), "demo@example.com", "password")
	require.NoError(t, err)

	err = gate.Logout(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 1, clearer.calls)
	assert.False(t, gate.Session().IsAuthenticated)
}

func TestGate_SessionReturnsCopy(t *testing.T) {
	gate, _, _ := setupGate(t)
	_, err := gate.Login(context.Background(), "demo@example.com", "password")
	require.NoError(t, err)

	session := gate.Session()
	session.User.Name = "changed"

	assert.Equal(t, "Demo User", gate.Session().User.Name)
}

// pausingStore holds every Get after it has read the value until release is
// closed.
type pausingStore struct {
	*storage.MemoryStore
	reading chan struct{}
	release chan struct{}
}

func (p *pausingStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := p.MemoryStore.Get(ctx, key)
	close(p.reading)
	<-p.release
	return data, err
}

func TestGate_LogoutDuringCheckStatusLeavesSignedOut(t *testing.T) {
	ctx := context.Background()
	kv := &pausingStore{
		MemoryStore: storage.NewMemoryStore(),
		reading:     make(chan struct{}),
		release:     make(chan struct{}),
	}
	require.NoError(t, kv.Set(ctx, SessionKey, []byte(`{"email":"demo@example.com","name":"Demo User"}`)))

	gate, err := NewGate(kv, &recordingClearer{}, testAuthConfig())
	require.NoError(t, err)

	checked := make(chan struct{})
	go func() {
		defer close(checked)
		_, _ = gate.CheckStatus(ctx)
	}()
	<-kv.reading

	loggedOut := make(chan error, 1)
	go func() { loggedOut <- gate.Logout(ctx) }()

	select {
	case <-loggedOut:
		t.Fatal("Logout finished while CheckStatus was still restoring the session")
	case <-time.After(50 * time.Millisecond):
	}

	close(kv.release)
	<-checked
	require.NoError(t, <-loggedOut)

	_, err = kv.MemoryStore.Get(ctx, SessionKey)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.False(t, gate.Session().IsAuthenticated)
	_, ok := gate.Current()
	assert.False(t, ok)
}
