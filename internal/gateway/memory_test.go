package gateway

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newMemoryIdentities(t *testing.T) *MemoryIdentityProvider {
	t.Helper()
	p, err := NewMemoryIdentityProvider(bcrypt.MinCost)
	require.NoError(t, err)
	return p
}

func newMemoryDocuments(t *testing.T) *MemoryDocumentStore {
	t.Helper()
	s, err := NewMemoryDocumentStore()
	require.NoError(t, err)
	return s
}

func strPtr(s string) *string { return &s }

func TestMemoryIdentityProvider(t *testing.T) {
	ctx := context.Background()

	t.Run("create and look up", func(t *testing.T) {
		p := newMemoryIdentities(t)

		created, err := p.CreateIdentity(ctx, NewIdentity{
			Email: "ann@x.com", Password: "longenough", PhoneNumber: "+12345678901", DisplayName: "Ann",
		})
		require.NoError(t, err)
		assert.NotEmpty(t, created.ID)

		byEmail, err := p.GetIdentityByEmail(ctx, "ANN@x.com")
		require.NoError(t, err)
		assert.Equal(t, created, byEmail)

		byID, err := p.GetIdentityByID(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, "+12345678901", byID.PhoneNumber)
		assert.Equal(t, "Ann", byID.DisplayName)
	})

	t.Run("duplicate email or phone conflicts", func(t *testing.T) {
		p := newMemoryIdentities(t)
		_, err := p.CreateIdentity(ctx, NewIdentity{Email: "a@x.com", Password: "pw", PhoneNumber: "+11111111111"})
		require.NoError(t, err)

		_, err = p.CreateIdentity(ctx, NewIdentity{Email: "a@x.com", Password: "pw", PhoneNumber: "+22222222222"})
		assert.ErrorIs(t, err, ErrIdentityConflict)

		_, err = p.CreateIdentity(ctx, NewIdentity{Email: "b@x.com", Password: "pw", PhoneNumber: "+11111111111"})
		assert.ErrorIs(t, err, ErrIdentityConflict)
	})

	t.Run("missing identity", func(t *testing.T) {
		p := newMemoryIdentities(t)
		_, err := p.GetIdentityByEmail(ctx, "nobody@x.com")
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = p.GetIdentityByID(ctx, "nope")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, p.UpdateIdentity(ctx, "nope", IdentityUpdate{Email: strPtr("x@x.com")}), ErrNotFound)
	})

	t.Run("partial update keeps untouched fields", func(t *testing.T) {
		p := newMemoryIdentities(t)
		created, err := p.CreateIdentity(ctx, NewIdentity{Email: "a@x.com", Password: "pw", PhoneNumber: "+11111111111"})
		require.NoError(t, err)

		require.NoError(t, p.UpdateIdentity(ctx, created.ID, IdentityUpdate{Email: strPtr("new@x.com")}))

		got, err := p.GetIdentityByID(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, "new@x.com", got.Email)
		assert.Equal(t, "+11111111111", got.PhoneNumber)

		_, err = p.GetIdentityByEmail(ctx, "a@x.com")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("update into another identity's email conflicts", func(t *testing.T) {
		p := newMemoryIdentities(t)
		a, err := p.CreateIdentity(ctx, NewIdentity{Email: "a@x.com", Password: "pw", PhoneNumber: "+11111111111"})
		require.NoError(t, err)
		_, err = p.CreateIdentity(ctx, NewIdentity{Email: "b@x.com", Password: "pw", PhoneNumber: "+22222222222"})
		require.NoError(t, err)

		err = p.UpdateIdentity(ctx, a.ID, IdentityUpdate{Email: strPtr("b@x.com")})
		assert.ErrorIs(t, err, ErrIdentityConflict)
	})
}

func TestMemoryDocumentStore(t *testing.T) {
	ctx := context.Background()

	t.Run("put resolves server timestamps", func(t *testing.T) {
		s := newMemoryDocuments(t)
		require.NoError(t, s.PutDocument(ctx, "Users", "u1", map[string]any{
			"name":       "Ann",
			"created_at": ServerTimestamp,
		}))

		doc, err := s.GetDocument(ctx, "Users", "u1")
		require.NoError(t, err)
		assert.Equal(t, "u1", doc.ID)
		assert.Equal(t, "Ann", doc.Fields["name"])
		assert.IsType(t, time.Time{}, doc.Fields["created_at"])
	})

	t.Run("collections are isolated", func(t *testing.T) {
		s := newMemoryDocuments(t)
		require.NoError(t, s.PutDocument(ctx, "Users", "u1", map[string]any{"name": "Ann"}))

		_, err := s.GetDocument(ctx, "Other", "u1")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("update merges fields", func(t *testing.T) {
		s := newMemoryDocuments(t)
		require.NoError(t, s.PutDocument(ctx, "Users", "u1", map[string]any{
			"name":        "Ann",
			"status":      "Active",
			"preferences": map[string]any{"language": "English"},
		}))

		require.NoError(t, s.UpdateDocument(ctx, "Users", "u1", map[string]any{"name": "Anne"}))

		doc, err := s.GetDocument(ctx, "Users", "u1")
		require.NoError(t, err)
		assert.Equal(t, "Anne", doc.Fields["name"])
		assert.Equal(t, "Active", doc.Fields["status"])
		assert.Equal(t, map[string]any{"language": "English"}, doc.Fields["preferences"])
	})

	t.Run("update of a missing document", func(t *testing.T) {
		s := newMemoryDocuments(t)
		err := s.UpdateDocument(ctx, "Users", "ghost", map[string]any{"name": "x"})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("returned documents do not alias storage", func(t *testing.T) {
		s := newMemoryDocuments(t)
		require.NoError(t, s.PutDocument(ctx, "Users", "u1", map[string]any{"name": "Ann"}))

		doc, err := s.GetDocument(ctx, "Users", "u1")
		require.NoError(t, err)
		doc.Fields["name"] = "mutated"

		again, err := s.GetDocument(ctx, "Users", "u1")
		require.NoError(t, err)
		assert.Equal(t, "Ann", again.Fields["name"])
	})

	t.Run("query by field", func(t *testing.T) {
		s := newMemoryDocuments(t)
		require.NoError(t, s.PutDocument(ctx, "Users", "u1", map[string]any{"email": "a@x.com"}))
		require.NoError(t, s.PutDocument(ctx, "Users", "u2", map[string]any{"email": "b@x.com"}))
		require.NoError(t, s.PutDocument(ctx, "Other", "u3", map[string]any{"email": "a@x.com"}))

		docs, err := s.QueryByField(ctx, "Users", "email", "a@x.com")
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, "u1", docs[0].ID)

		docs, err = s.QueryByField(ctx, "Users", "email", "c@x.com")
		require.NoError(t, err)
		assert.Empty(t, docs)
	})
}

func TestGatewayPing(t *testing.T) {
	g := New(newMemoryIdentities(t), newMemoryDocuments(t))
	for backend, err := range g.Ping(context.Background()) {
		assert.NoError(t, err, backend)
	}
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "ann@x.com", NormalizeEmail("  Ann@X.com "))
	assert.Equal(t, "ann@x.com", NormalizeEmail("ann@x.com"))
}

func TestMemoryIdentityEmailIsCaseInsensitive(t *testing.T) {
	ctx := context.Background()
	p := newMemoryIdentities(t)

	created, err := p.CreateIdentity(ctx, NewIdentity{Email: "Ann@X.com", Password: "pw", PhoneNumber: "+11111111111"})
	require.NoError(t, err)
	assert.Equal(t, "ann@x.com", created.Email)

	_, err = p.CreateIdentity(ctx, NewIdentity{Email: "ann@x.com", Password: "pw", PhoneNumber: "+22222222222"})
	assert.ErrorIs(t, err, ErrIdentityConflict)

	got, err := p.GetIdentityByEmail(ctx, "ANN@x.COM")
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
}
