// Package gateway is a thin facade over the external identity provider and
// the document store. It adds no business logic: every operation passes
// straight through to the configured backend.
package gateway

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	ErrNotFound         = errors.New("record not found")
	ErrIdentityConflict = errors.New("email or phone number already registered")
)

// Identity is the provider's view of a user.
type Identity struct {
	ID          string
	Email       string
	PhoneNumber string
	DisplayName string
}

// NewIdentity carries the fields needed to create a provider record.
// Password is the raw secret; the provider keeps its own credential store.
type NewIdentity struct {
	Email       string
	Password    string
	PhoneNumber string
	DisplayName string
}

// IdentityUpdate is a partial update; nil fields are left untouched.
type IdentityUpdate struct {
	Email       *string
	PhoneNumber *string
}

func (u IdentityUpdate) IsEmpty() bool {
	return u.Email == nil && u.PhoneNumber == nil
}

// NormalizeEmail is the stored and compared form of an email address.
// Providers treat addresses case-insensitively, as Firebase does.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Document is a schemaless record returned by a DocumentStore.
type Document struct {
	ID     string
	Fields map[string]any
}

type IdentityProvider interface {
	CreateIdentity(ctx context.Context, in NewIdentity) (*Identity, error)
	GetIdentityByEmail(ctx context.Context, email string) (*Identity, error)
	GetIdentityByID(ctx context.Context, id string) (*Identity, error)
	UpdateIdentity(ctx context.Context, id string, update IdentityUpdate) error
}

type DocumentStore interface {
	PutDocument(ctx context.Context, collection, id string, fields map[string]any) error
	GetDocument(ctx context.Context, collection, id string) (*Document, error)
	UpdateDocument(ctx context.Context, collection, id string, fields map[string]any) error
	QueryByField(ctx context.Context, collection, field string, value any) ([]Document, error)
}

// Pinger is implemented by backends that can report their connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Gateway bundles the identity provider and document store handed to the
// orchestration layer at startup.
type Gateway struct {
	IdentityProvider
	DocumentStore
}

func New(identities IdentityProvider, documents DocumentStore) *Gateway {
	return &Gateway{IdentityProvider: identities, DocumentStore: documents}
}

// Ping probes both backends. A backend without a Pinger is reported healthy.
func (g *Gateway) Ping(ctx context.Context) map[string]error {
	return map[string]error{
		"identity_provider": ping(ctx, g.IdentityProvider),
		"document_store":    ping(ctx, g.DocumentStore),
	}
}

func ping(ctx context.Context, backend any) error {
	p, ok := backend.(Pinger)
	if !ok {
		return nil
	}
	return p.Ping(ctx)
}

type serverTimestamp struct{}

// ServerTimestamp is a placeholder field value that each store replaces with
// its own notion of the current server time.
var ServerTimestamp any = serverTimestamp{}

// resolveTimestamps returns a shallow copy of fields with ServerTimestamp
// replaced by now().
func resolveTimestamps(fields map[string]any, now func() any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		if _, ok := v.(serverTimestamp); ok {
			out[k] = now()
			continue
		}
		out[k] = v
	}
	return out
}

func utcNow() any {
	return time.Now().UTC()
}
