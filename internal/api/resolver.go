package api

import (
	"context"
	"sync"

	"github.com/ledgerbank/corebank/internal/bulk"
)

// DirectoryResolver is a minimal stand-in for the user/KYC directory spec §1
// names as an external collaborator: a process-local map from national ID
// to a resolved checking account, seeded by whoever wires up cmd/api. The
// core never owns this state; ProcessBulk only consumes bulk.Resolver.
type DirectoryResolver struct {
	mu      sync.RWMutex
	entries map[string]bulk.ResolvedAccount
}

// NewDirectoryResolver builds an empty resolver.
func NewDirectoryResolver() *DirectoryResolver {
	return &DirectoryResolver{entries: make(map[string]bulk.ResolvedAccount)}
}

// Put registers a national ID's resolved account. Call this from wherever
// the real directory/KYC/account-lookup integration would live.
func (r *DirectoryResolver) Put(nationalID string, account bulk.ResolvedAccount) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[nationalID] = account
}

// Resolve implements bulk.Resolver.
func (r *DirectoryResolver) Resolve(ctx context.Context, nationalID string) (*bulk.ResolvedAccount, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	acc, ok := r.entries[nationalID]
	if !ok {
		return nil, bulk.ErrUserNotFound
	}
	return &acc, nil
}
