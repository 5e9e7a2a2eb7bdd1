package testutil

import (
	"context"
	"sync"

	"aliada/ms_informes_qbo/internal/core/credential"
)

// MockStore is an in-memory credential.Store for testing. Its zero value is
// an empty (disconnected) store.
type MockStore struct {
	mu   sync.Mutex
	cred *credential.Credential

	LoadCalls int
	SaveCalls int
	SwapCalls int

	// ForceSwapFailure makes every CompareAndSwap report a lost race.
	ForceSwapFailure bool
}

// NewMockStore creates a store pre-loaded with the given credential.
func NewMockStore(cred *credential.Credential) *MockStore {
	return &MockStore{cred: cred}
}

func (m *MockStore) Load(ctx context.Context) (*credential.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LoadCalls++

	if m.cred == nil {
		return nil, credential.ErrNotConnected
	}
	copied := *m.cred
	return &copied, nil
}

func (m *MockStore) Save(ctx context.Context, cred credential.Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SaveCalls++

	m.cred = &cred
	return nil
}

func (m *MockStore) CompareAndSwap(ctx context.Context, oldRefreshToken string, next credential.Credential) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SwapCalls++

	if m.ForceSwapFailure {
		return false, nil
	}
	if m.cred == nil || m.cred.RefreshToken != oldRefreshToken {
		return false, nil
	}
	m.cred = &next
	return true, nil
}

// Current returns the stored credential without counting a Load call.
func (m *MockStore) Current() *credential.Credential {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cred == nil {
		return nil
	}
	copied := *m.cred
	return &copied
}
