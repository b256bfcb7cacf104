package service

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/rl1809/cart-sync/internal/port"
)

const authKey = "storefront-auth"

// AuthState gates everything the cart does beyond in-memory bookkeeping.
type AuthState interface {
	IsAuthenticated() bool
}

type Tokens struct {
	AccessToken      string `json:"accessToken"`
	RefreshToken     string `json:"refreshToken"`
	ExpiresIn        int    `json:"expiresIn"`
	RefreshExpiresIn int    `json:"refreshExpiresIn"`
}

// Session holds the bearer tokens of the signed-in shopper and mirrors them
// in the local store so a restart stays signed in.
type Session struct {
	mu     sync.RWMutex
	tokens *Tokens
	store  port.LocalStore
	logger *zap.Logger
}

func NewSession(store port.LocalStore, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{store: store, logger: logger}
}

// Restore loads previously stored tokens and reports whether any were found.
func (s *Session) Restore(ctx context.Context) bool {
	if s.store == nil {
		return false
	}

	raw, ok, err := s.store.Get(ctx, authKey)
	if err != nil {
		s.logger.Warn("stored tokens not readable", zap.Error(err))
		return false
	}
	if !ok {
		return false
	}

	var t Tokens
	if err := json.Unmarshal([]byte(raw), &t); err != nil || t.AccessToken == "" {
		s.logger.Warn("stored tokens discarded", zap.Error(err))
		return false
	}

	s.mu.Lock()
	s.tokens = &t
	s.mu.Unlock()
	return true
}

func (s *Session) SetTokens(ctx context.Context, t Tokens) {
	s.mu.Lock()
	s.tokens = &t
	s.mu.Unlock()

	if s.store == nil {
		return
	}
	b, err := json.Marshal(t)
	if err != nil {
		s.logger.Warn("tokens not stored", zap.Error(err))
		return
	}
	if err := s.store.Set(ctx, authKey, string(b)); err != nil {
		s.logger.Warn("tokens not stored", zap.Error(err))
	}
}

func (s *Session) Logout(ctx context.Context) {
	s.mu.Lock()
	s.tokens = nil
	s.mu.Unlock()

	if s.store == nil {
		return
	}
	if err := s.store.Remove(ctx, authKey); err != nil {
		s.logger.Warn("stored tokens not removed", zap.Error(err))
	}
}

func (s *Session) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tokens != nil && s.tokens.AccessToken != ""
}

// AccessToken returns "" when nobody is signed in.
func (s *Session) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.tokens == nil {
		return ""
	}
	return s.tokens.AccessToken
}
