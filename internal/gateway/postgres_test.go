package gateway

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ahmetcoskunkizilkaya/identity-profile-api/internal/models"
)

// openTestPostgres connects to POSTGRES_TEST_DSN and skips when it is unset.
func openTestPostgres(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_TEST_DSN not set")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Discard,
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Identity{}, &models.Document{}))

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// uniqueContacts returns an email local part and phone number no other run uses.
func uniqueContacts() (string, string) {
	id := uuid.New()
	digits := ""
	for _, b := range id[:6] {
		digits += string(rune('0' + b%10))
	}
	return "user-" + id.String(), "+1555" + digits
}

func TestPostgresIdentityProvider(t *testing.T) {
	db := openTestPostgres(t)
	ctx := context.Background()
	p := NewPostgresIdentityProvider(db, bcrypt.MinCost)

	t.Run("email differing only in case conflicts", func(t *testing.T) {
		local, phone := uniqueContacts()
		_, otherPhone := uniqueContacts()

		created, err := p.CreateIdentity(ctx, NewIdentity{
			Email: local + "@x.com", Password: "longenough", PhoneNumber: phone, DisplayName: "Ann",
		})
		require.NoError(t, err)
		t.Cleanup(func() { db.Delete(&models.Identity{}, "id = ?", created.ID) })

		_, err = p.CreateIdentity(ctx, NewIdentity{
			Email: "Ann-" + local + "@X.com", Password: "longenough", PhoneNumber: otherPhone,
		})
		require.NoError(t, err)
		t.Cleanup(func() { db.Delete(&models.Identity{}, "email = ?", NormalizeEmail("Ann-"+local+"@X.com")) })

		_, err = p.CreateIdentity(ctx, NewIdentity{
			Email: local + "@X.COM", Password: "longenough", PhoneNumber: otherPhone + "9",
		})
		assert.ErrorIs(t, err, ErrIdentityConflict)

		got, err := p.GetIdentityByEmail(ctx, local+"@X.com")
		require.NoError(t, err)
		assert.Equal(t, created.ID, got.ID)
	})

	t.Run("update stores the normalized email", func(t *testing.T) {
		local, phone := uniqueContacts()
		created, err := p.CreateIdentity(ctx, NewIdentity{Email: local + "@x.com", Password: "pw", PhoneNumber: phone})
		require.NoError(t, err)
		t.Cleanup(func() { db.Delete(&models.Identity{}, "id = ?", created.ID) })

		newEmail := "New-" + local + "@X.com"
		require.NoError(t, p.UpdateIdentity(ctx, created.ID, IdentityUpdate{Email: &newEmail}))

		got, err := p.GetIdentityByID(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, NormalizeEmail(newEmail), got.Email)
		assert.Equal(t, phone, got.PhoneNumber)
	})

	t.Run("missing identity", func(t *testing.T) {
		_, err := p.GetIdentityByID(ctx, "not-a-uuid")
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = p.GetIdentityByID(ctx, uuid.NewString())
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = p.GetIdentityByEmail(ctx, "nobody-"+uuid.NewString()+"@x.com")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestPostgresDocumentStore(t *testing.T) {
	db := openTestPostgres(t)
	ctx := context.Background()
	s := NewPostgresDocumentStore(db)
	collection := "test_" + uuid.NewString()
	t.Cleanup(func() { db.Delete(&models.Document{}, "collection = ?", collection) })

	require.NoError(t, s.PutDocument(ctx, collection, "u1", map[string]any{
		"name":  "Ann",
		"email": "ann@x.com",
	}))
	require.NoError(t, s.UpdateDocument(ctx, collection, "u1", map[string]any{"name": "Anne"}))

	doc, err := s.GetDocument(ctx, collection, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Anne", doc.Fields["name"])
	assert.Equal(t, "ann@x.com", doc.Fields["email"])

	docs, err := s.QueryByField(ctx, collection, "email", "ann@x.com")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "u1", docs[0].ID)

	assert.ErrorIs(t, s.UpdateDocument(ctx, collection, "ghost", map[string]any{"name": "x"}), ErrNotFound)
}
