package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	gosync "sync"

	"github.com/nhle/claims-inbox/internal/credential"
	"github.com/nhle/claims-inbox/internal/gateway"
	"github.com/nhle/claims-inbox/internal/model"
)

// userKey is the keyring entry holding the signed-in user document.
const userKey = "session-user"

// Vault persists the session between runs. credential.Keyring satisfies it.
type Vault interface {
	Get(key string) (string, error)
	Set(key string, value string) error
	Delete(key string) error
}

// Manager owns the signed-in identity. Every change is broadcast to the
// OnChange listeners, which is how the sync engine learns about it.
type Manager struct {
	auth   gateway.Authenticator
	vault  Vault
	logger *slog.Logger

	mu        gosync.RWMutex
	user      *model.User
	listeners []func(*model.User)
}

// New creates a Manager with nobody signed in.
func New(auth gateway.Authenticator, vault Vault, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		auth:   auth,
		vault:  vault,
		logger: logger.With("component", "session"),
	}
}

// OnChange registers fn to run after every sign-in and sign-out. fn gets
// nil on sign-out.
func (m *Manager) OnChange(fn func(*model.User)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// Current returns a copy of the signed-in user, or nil.
func (m *Manager) Current() *model.User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.user == nil {
		return nil
	}
	u := *m.user
	return &u
}

// UserID returns the username every platform call is keyed by, or "".
func (m *Manager) UserID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.user == nil {
		return ""
	}
	return m.user.Name
}

// SignIn authenticates against the platform and remembers the user.
// A failure to persist the session is logged; the sign-in still holds
// for this run.
func (m *Manager) SignIn(ctx context.Context, username, company, password string) (*model.User, error) {
	user, err := m.auth.Login(ctx, username, company, password)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(user)
	if err != nil {
		return nil, fmt.Errorf("encoding session: %w", err)
	}
	if err := m.vault.Set(userKey, string(data)); err != nil {
		m.logger.Warn("persisting session", "user", user.Name, "error", err)
	}

	m.logger.Info("signed in", "user", user.Name, "role", user.Role)
	m.set(user)
	return m.Current(), nil
}

// Restore loads the session saved by a previous SignIn. It returns nil
// without error when there is none.
func (m *Manager) Restore() (*model.User, error) {
	data, err := m.vault.Get(userKey)
	if errors.Is(err, credential.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading session: %w", err)
	}

	var user model.User
	if err := json.Unmarshal([]byte(data), &user); err != nil {
		return nil, fmt.Errorf("decoding session: %w", err)
	}
	if user.Name == "" {
		return nil, nil
	}

	m.logger.Info("session restored", "user", user.Name)
	m.set(&user)
	return m.Current(), nil
}

// SignOut forgets the user here and in the vault.
func (m *Manager) SignOut() error {
	m.mu.RLock()
	had := m.user != nil
	m.mu.RUnlock()

	err := m.vault.Delete(userKey)
	if had {
		m.logger.Info("signed out")
		m.set(nil)
	}
	if err != nil {
		return fmt.Errorf("clearing session: %w", err)
	}
	return nil
}

func (m *Manager) set(user *model.User) {
	m.mu.Lock()
	m.user = user
	listeners := append([]func(*model.User){}, m.listeners...)
	m.mu.Unlock()

	for _, fn := range listeners {
		if user == nil {
			fn(nil)
			continue
		}
		u := *user
		fn(&u)
	}
}
