package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ahmetcoskunkizilkaya/identity-profile-api/internal/models"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PostgresIdentityProvider keeps identities in the identities table. Email
// and phone uniqueness come from unique indexes, so emails are stored
// normalized. The connection must be opened with TranslateError so
// violations surface as gorm.ErrDuplicatedKey.
type PostgresIdentityProvider struct {
	db   *gorm.DB
	cost int
}

func NewPostgresIdentityProvider(db *gorm.DB, cost int) *PostgresIdentityProvider {
	return &PostgresIdentityProvider{db: db, cost: cost}
}

func (p *PostgresIdentityProvider) CreateIdentity(ctx context.Context, in NewIdentity) (*Identity, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), p.cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash provider credential: %w", err)
	}

	rec := models.Identity{
		ID:           uuid.New(),
		Email:        NormalizeEmail(in.Email),
		PhoneNumber:  in.PhoneNumber,
		DisplayName:  in.DisplayName,
		PasswordHash: string(hash),
	}
	if err := p.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrIdentityConflict
		}
		return nil, fmt.Errorf("failed to create identity: %w", err)
	}
	return toIdentity(&rec), nil
}

func (p *PostgresIdentityProvider) GetIdentityByEmail(ctx context.Context, email string) (*Identity, error) {
	var rec models.Identity
	if err := p.db.WithContext(ctx).Where("email = ?", NormalizeEmail(email)).First(&rec).Error; err != nil {
		return nil, notFoundOr(err, "failed to get identity by email")
	}
	return toIdentity(&rec), nil
}

func (p *PostgresIdentityProvider) GetIdentityByID(ctx context.Context, id string) (*Identity, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrNotFound
	}
	var rec models.Identity
	if err := p.db.WithContext(ctx).First(&rec, "id = ?", uid).Error; err != nil {
		return nil, notFoundOr(err, "failed to get identity")
	}
	return toIdentity(&rec), nil
}

func (p *PostgresIdentityProvider) UpdateIdentity(ctx context.Context, id string, update IdentityUpdate) error {
	uid, err := uuid.Parse(id)
	if err != nil {
		return ErrNotFound
	}

	changes := map[string]interface{}{}
	if update.Email != nil {
		changes["email"] = NormalizeEmail(*update.Email)
	}
	if update.PhoneNumber != nil {
		changes["phone_number"] = *update.PhoneNumber
	}
	if len(changes) == 0 {
		return nil
	}

	result := p.db.WithContext(ctx).Model(&models.Identity{}).Where("id = ?", uid).Updates(changes)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return ErrIdentityConflict
		}
		return fmt.Errorf("failed to update identity: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresIdentityProvider) Ping(ctx context.Context) error {
	return pingGorm(ctx, p.db)
}

func toIdentity(rec *models.Identity) *Identity {
	return &Identity{
		ID:          rec.ID.String(),
		Email:       rec.Email,
		PhoneNumber: rec.PhoneNumber,
		DisplayName: rec.DisplayName,
	}
}

// PostgresDocumentStore keeps schemaless documents as JSONB rows keyed by
// (collection, id).
type PostgresDocumentStore struct {
	db *gorm.DB
}

func NewPostgresDocumentStore(db *gorm.DB) *PostgresDocumentStore {
	return &PostgresDocumentStore{db: db}
}

func (s *PostgresDocumentStore) PutDocument(ctx context.Context, collection, id string, fields map[string]any) error {
	doc := models.Document{
		Collection: collection,
		ID:         id,
		Data:       datatypes.JSONMap(resolveTimestamps(fields, utcNow)),
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "collection"}, {Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"data", "updated_at"}),
		}).
		Create(&doc).Error
	if err != nil {
		return fmt.Errorf("failed to put document: %w", err)
	}
	return nil
}

func (s *PostgresDocumentStore) GetDocument(ctx context.Context, collection, id string) (*Document, error) {
	var doc models.Document
	if err := s.db.WithContext(ctx).First(&doc, "collection = ? AND id = ?", collection, id).Error; err != nil {
		return nil, notFoundOr(err, "failed to get document")
	}
	return &Document{ID: doc.ID, Fields: map[string]any(doc.Data)}, nil
}

func (s *PostgresDocumentStore) UpdateDocument(ctx context.Context, collection, id string, fields map[string]any) error {
	patch, err := json.Marshal(resolveTimestamps(fields, utcNow))
	if err != nil {
		return fmt.Errorf("failed to encode document patch: %w", err)
	}

	result := s.db.WithContext(ctx).
		Model(&models.Document{}).
		Where("collection = ? AND id = ?", collection, id).
		Update("data", gorm.Expr("data || ?::jsonb", string(patch)))
	if result.Error != nil {
		return fmt.Errorf("failed to update document: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresDocumentStore) QueryByField(ctx context.Context, collection, field string, value any) ([]Document, error) {
	var rows []models.Document
	err := s.db.WithContext(ctx).
		Where("collection = ?", collection).
		Where(datatypes.JSONQuery("data").Equals(value, field)).
		Order("id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}

	docs := make([]Document, 0, len(rows))
	for _, row := range rows {
		docs = append(docs, Document{ID: row.ID, Fields: map[string]any(row.Data)})
	}
	return docs, nil
}

func (s *PostgresDocumentStore) Ping(ctx context.Context) error {
	return pingGorm(ctx, s.db)
}

func notFoundOr(err error, msg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return fmt.Errorf("%s: %w", msg, err)
}

func pingGorm(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
