// Package token resolves the best available bearer token for the current
// caller from a prioritized list of named providers.
package token

import (
	"context"

	"github.com/admitio/portalclient/storage"
)

// Default storage slot names for the portal's credential material, in
// resolution priority order: the authenticated-session token, the
// evaluator-role token, then the federated identity-provider token.
const (
	SlotSessionToken  = "session_token"
	SlotRoleToken     = "role_token"
	SlotProviderToken = "idp_token"
)

// Provider yields a token from one named source, or reports not-found.
type Provider interface {
	// Name identifies the source for logs and tests.
	Name() string
	// Token returns the token and whether one was found. Lookup failures
	// count as not-found.
	Token() (string, bool)
}

// Renewer performs the identity-provider refresh round trip. The renewed
// token lands back in storage; the client never writes tokens itself.
type Renewer interface {
	Renew(ctx context.Context) error
}

// StoreProvider reads a token from one storage slot.
type StoreProvider struct {
	name  string
	store storage.Store
	slot  string
}

// NewStoreProvider creates a Provider backed by the given storage slot.
func NewStoreProvider(name string, store storage.Store, slot string) *StoreProvider {
	return &StoreProvider{name: name, store: store, slot: slot}
}

// Name returns the provider name.
func (p *StoreProvider) Name() string { return p.name }

// Token reads the slot. A nil store degrades to not-found.
func (p *StoreProvider) Token() (string, bool) {
	if p.store == nil {
		return "", false
	}
	return p.store.Get(p.slot)
}

// ChainResolver consults providers in order and returns the first token found.
type ChainResolver struct {
	providers []Provider
}

// NewChainResolver creates a resolver over the given providers. Order is
// priority order.
func NewChainResolver(providers ...Provider) *ChainResolver {
	return &ChainResolver{providers: providers}
}

// NewDefaultResolver wires the portal's standard three-slot priority chain
// against the given store.
func NewDefaultResolver(store storage.Store) *ChainResolver {
	return NewChainResolver(
		NewStoreProvider("session", store, SlotSessionToken),
		NewStoreProvider("role", store, SlotRoleToken),
		NewStoreProvider("identity-provider", store, SlotProviderToken),
	)
}

// Resolve returns the highest-priority available token, or false when no
// provider has one.
func (r *ChainResolver) Resolve() (string, bool) {
	for _, p := range r.providers {
		if tok, ok := p.Token(); ok {
			return tok, true
		}
	}
	return "", false
}

// Slots returns the storage slot names of the default chain. The client's
// forced-logout path clears exactly these.
func Slots() []string {
	return []string{SlotSessionToken, SlotRoleToken, SlotProviderToken}
}
