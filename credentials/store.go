package credentials

import (
	"sync"

	"golang.org/x/oauth2"

	apperrors "github.com/jrsteele09/admin-session/internal/errors"
)

var _ oauth2.TokenSource = (*Store)(nil)

// Store holds the current access token in memory for the life of the process.
// Many goroutines read it synchronously; only the session and the refresh path write it.
type Store struct {
	mu       sync.RWMutex
	token    string
	observer func(token string)
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{}
}

// Get returns the current token, or "" when none is held.
func (s *Store) Get() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Set replaces the token and notifies the registered observer outside the lock.
func (s *Store) Set(token string) {
	s.mu.Lock()
	s.token = token
	observer := s.observer
	s.mu.Unlock()

	if observer != nil {
		observer(token)
	}
}

// Clear drops the token. The observer is not notified; the clearing path owns its own state.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
}

// OnSet registers the single observer called after every Set. A later call replaces it.
func (s *Store) OnSet(observer func(token string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observer = observer
}

// Token implements oauth2.TokenSource over the held access token.
func (s *Store) Token() (*oauth2.Token, error) {
	token := s.Get()
	if token == "" {
		return nil, apperrors.ErrNoToken
	}
	return &oauth2.Token{AccessToken: token, TokenType: "Bearer"}, nil
}
