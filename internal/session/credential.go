package session

import (
	"context"
	"sync"
)

// Credential is the access/refresh token pair issued by the backend.
type Credential struct {
	AccessToken  string
	RefreshToken string
}

// Empty reports whether the pair carries no token at all.
func (c Credential) Empty() bool {
	return c.AccessToken == "" && c.RefreshToken == ""
}

// Store persists the credential pair between runs.
type Store interface {
	LoadCredential(ctx context.Context) (Credential, error)
	SaveCredential(ctx context.Context, cred Credential) error
	ClearCredential(ctx context.Context) error
}

// Refresher exchanges a refresh token for a new pair.
// An empty RefreshToken in the result means the backend did not rotate it.
type Refresher interface {
	RefreshToken(ctx context.Context, refreshToken string) (Credential, error)
}

// MemoryStore keeps the credential in process memory only.
type MemoryStore struct {
	mu   sync.Mutex
	cred Credential
}

func NewMemoryStore(cred Credential) *MemoryStore {
	return &MemoryStore{cred: cred}
}

func (m *MemoryStore) LoadCredential(context.Context) (Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cred, nil
}

func (m *MemoryStore) SaveCredential(_ context.Context, cred Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cred = cred
	return nil
}

func (m *MemoryStore) ClearCredential(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cred = Credential{}
	return nil
}
