// Package auth holds the session's bearer token and builds the implicit-grant login redirect.
package auth

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"muze/internal/core"
)

const (
	responseTypeToken = "token"
	tokenTypeBearer   = "Bearer"
)

// Store is the token store. The token lives in memory only and is set at most once.
type Store struct {
	config *core.SpotifyConfig
	logger *zap.Logger
	auth   *spotifyauth.Authenticator
	state  string

	mu        sync.RWMutex
	token     *oauth2.Token
	ready     chan struct{}
	readyOnce sync.Once
}

func NewStore(config *core.SpotifyConfig, logger *zap.Logger) *Store {
	auth := spotifyauth.New(
		spotifyauth.WithClientID(config.ClientID),
		spotifyauth.WithRedirectURL(config.RedirectURL),
		spotifyauth.WithScopes(config.Scopes...),
	)

	s := &Store{
		config: config,
		logger: logger,
		auth:   auth,
		state:  uuid.NewString(),
		ready:  make(chan struct{}),
	}

	if config.Token != "" {
		s.setToken(&oauth2.Token{AccessToken: config.Token, TokenType: tokenTypeBearer})
		logger.Info("Using pre-seeded bearer token")
	}

	return s
}

// GetToken returns the bearer token, or false when the listener has not logged in yet.
func (s *Store) GetToken() (core.BearerToken, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.token == nil || s.token.AccessToken == "" {
		return "", false
	}
	return core.BearerToken(s.token.AccessToken), true
}

// LoginURL is the authorization redirect for an absent token.
func (s *Store) LoginURL() string {
	return s.auth.AuthURL(s.state,
		oauth2.SetAuthURLParam("response_type", responseTypeToken),
		oauth2.SetAuthURLParam("show_dialog", "true"),
	)
}

// State is the anti-forgery value embedded in LoginURL.
func (s *Store) State() string {
	return s.state
}

// Ready is closed once a token is present.
func (s *Store) Ready() <-chan struct{} {
	return s.ready
}

// AcceptFragment parses the redirect fragment handed back by the callback page.
// Only the first valid fragment is accepted.
func (s *Store) AcceptFragment(fragment string) error {
	values, err := url.ParseQuery(strings.TrimPrefix(fragment, "#"))
	if err != nil {
		return fmt.Errorf("failed to parse fragment: %w", err)
	}

	if errParam := values.Get("error"); errParam != "" {
		return fmt.Errorf("authorization failed: %s", errParam)
	}

	if values.Get("state") != s.state {
		return core.ErrInvalidOAuthState
	}

	accessToken := values.Get("access_token")
	if accessToken == "" {
		return fmt.Errorf("fragment has no access_token")
	}

	token := &oauth2.Token{
		AccessToken: accessToken,
		TokenType:   values.Get("token_type"),
	}
	if token.TokenType == "" {
		token.TokenType = tokenTypeBearer
	}
	if expiresIn, convErr := strconv.Atoi(values.Get("expires_in")); convErr == nil && expiresIn > 0 {
		token.Expiry = time.Now().Add(time.Duration(expiresIn) * time.Second)
	}

	if !s.setToken(token) {
		return core.ErrTokenAlreadySet
	}

	s.logger.Info("Bearer token received",
		zap.Time("expiry", token.Expiry),
		zap.Stringer("token", core.BearerToken(accessToken)))
	return nil
}

// Token makes the store an oauth2.TokenSource.
func (s *Store) Token() (*oauth2.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.token == nil {
		return nil, core.ErrTokenAbsent
	}
	token := *s.token
	return &token, nil
}

func (s *Store) setToken(token *oauth2.Token) bool {
	s.mu.Lock()
	if s.token != nil {
		s.mu.Unlock()
		return false
	}
	s.token = token
	s.mu.Unlock()

	s.readyOnce.Do(func() {
		close(s.ready)
	})
	return true
}
