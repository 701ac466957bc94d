package gateway

import (
	"context"
	"fmt"
	"reflect"

	"github.com/google/uuid"
	"github.com/hashicorp/go-memdb"
	"golang.org/x/crypto/bcrypt"
)

const (
	memIdentityTable = "identities"
	memDocumentTable = "documents"
)

type memIdentity struct {
	ID           string
	Email        string
	PhoneNumber  string
	DisplayName  string
	PasswordHash string
}

type memDocument struct {
	Collection string
	ID         string
	Fields     map[string]any
}

func identitySchema() *memdb.DBSchema {
	return &memdb.DBSchema{
		Tables: map[string]*memdb.TableSchema{
			memIdentityTable: {
				Name: memIdentityTable,
				Indexes: map[string]*memdb.IndexSchema{
					"id": {
						Name:    "id",
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "ID"},
					},
					"email": {
						Name:    "email",
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "Email", Lowercase: true},
					},
					"phone": {
						Name:         "phone",
						Unique:       true,
						AllowMissing: true,
						Indexer:      &memdb.StringFieldIndex{Field: "PhoneNumber"},
					},
				},
			},
		},
	}
}

func documentSchema() *memdb.DBSchema {
	return &memdb.DBSchema{
		Tables: map[string]*memdb.TableSchema{
			memDocumentTable: {
				Name: memDocumentTable,
				Indexes: map[string]*memdb.IndexSchema{
					"id": {
						Name:   "id",
						Unique: true,
						Indexer: &memdb.CompoundIndex{
							Indexes: []memdb.Indexer{
								&memdb.StringFieldIndex{Field: "Collection"},
								&memdb.StringFieldIndex{Field: "ID"},
							},
						},
					},
					"collection": {
						Name:    "collection",
						Indexer: &memdb.StringFieldIndex{Field: "Collection"},
					},
				},
			},
		},
	}
}

// MemoryIdentityProvider is an in-process identity provider backed by go-memdb.
// Email and phone uniqueness are enforced inside the write transaction.
type MemoryIdentityProvider struct {
	db   *memdb.MemDB
	cost int
}

func NewMemoryIdentityProvider(cost int) (*MemoryIdentityProvider, error) {
	db, err := memdb.NewMemDB(identitySchema())
	if err != nil {
		return nil, fmt.Errorf("failed to create identity memdb: %w", err)
	}
	return &MemoryIdentityProvider{db: db, cost: cost}, nil
}

func (p *MemoryIdentityProvider) CreateIdentity(_ context.Context, in NewIdentity) (*Identity, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), p.cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash provider credential: %w", err)
	}

	txn := p.db.Txn(true)
	defer txn.Abort()

	email := NormalizeEmail(in.Email)
	if err := checkContactsFree(txn, "", email, in.PhoneNumber); err != nil {
		return nil, err
	}

	rec := &memIdentity{
		ID:           uuid.NewString(),
		Email:        email,
		PhoneNumber:  in.PhoneNumber,
		DisplayName:  in.DisplayName,
		PasswordHash: string(hash),
	}
	if err := txn.Insert(memIdentityTable, rec); err != nil {
		return nil, fmt.Errorf("failed to insert identity: %w", err)
	}
	txn.Commit()

	return rec.identity(), nil
}

func (p *MemoryIdentityProvider) GetIdentityByEmail(_ context.Context, email string) (*Identity, error) {
	return p.first("email", NormalizeEmail(email))
}

func (p *MemoryIdentityProvider) GetIdentityByID(_ context.Context, id string) (*Identity, error) {
	return p.first("id", id)
}

func (p *MemoryIdentityProvider) UpdateIdentity(_ context.Context, id string, update IdentityUpdate) error {
	txn := p.db.Txn(true)
	defer txn.Abort()

	raw, err := txn.First(memIdentityTable, "id", id)
	if err != nil {
		return fmt.Errorf("failed to load identity: %w", err)
	}
	if raw == nil {
		return ErrNotFound
	}

	// Stored objects are immutable; write a modified copy.
	rec := *raw.(*memIdentity)
	var email, phone string
	if update.Email != nil {
		rec.Email = NormalizeEmail(*update.Email)
		email = rec.Email
	}
	if update.PhoneNumber != nil {
		rec.PhoneNumber = *update.PhoneNumber
		phone = rec.PhoneNumber
	}
	if err := checkContactsFree(txn, id, email, phone); err != nil {
		return err
	}

	if err := txn.Insert(memIdentityTable, &rec); err != nil {
		return fmt.Errorf("failed to update identity: %w", err)
	}
	txn.Commit()
	return nil
}

func (p *MemoryIdentityProvider) first(index, value string) (*Identity, error) {
	txn := p.db.Txn(false)
	defer txn.Abort()

	raw, err := txn.First(memIdentityTable, index, value)
	if err != nil {
		return nil, fmt.Errorf("failed to load identity: %w", err)
	}
	if raw == nil {
		return nil, ErrNotFound
	}
	return raw.(*memIdentity).identity(), nil
}

// checkContactsFree fails when email or phone belong to an identity other than selfID.
func checkContactsFree(txn *memdb.Txn, selfID, email, phone string) error {
	lookups := []struct{ index, value string }{
		{"email", email},
		{"phone", phone},
	}
	for _, l := range lookups {
		if l.value == "" {
			continue
		}
		raw, err := txn.First(memIdentityTable, l.index, l.value)
		if err != nil {
			return fmt.Errorf("failed to check %s: %w", l.index, err)
		}
		if raw != nil && raw.(*memIdentity).ID != selfID {
			return ErrIdentityConflict
		}
	}
	return nil
}

func (r *memIdentity) identity() *Identity {
	return &Identity{
		ID:          r.ID,
		Email:       r.Email,
		PhoneNumber: r.PhoneNumber,
		DisplayName: r.DisplayName,
	}
}

// MemoryDocumentStore is an in-process document store backed by go-memdb.
type MemoryDocumentStore struct {
	db *memdb.MemDB
}

func NewMemoryDocumentStore() (*MemoryDocumentStore, error) {
	db, err := memdb.NewMemDB(documentSchema())
	if err != nil {
		return nil, fmt.Errorf("failed to create document memdb: %w", err)
	}
	return &MemoryDocumentStore{db: db}, nil
}

func (s *MemoryDocumentStore) PutDocument(_ context.Context, collection, id string, fields map[string]any) error {
	txn := s.db.Txn(true)
	defer txn.Abort()

	doc := &memDocument{
		Collection: collection,
		ID:         id,
		Fields:     copyFields(resolveTimestamps(fields, utcNow)),
	}
	if err := txn.Insert(memDocumentTable, doc); err != nil {
		return fmt.Errorf("failed to put document: %w", err)
	}
	txn.Commit()
	return nil
}

func (s *MemoryDocumentStore) GetDocument(_ context.Context, collection, id string) (*Document, error) {
	txn := s.db.Txn(false)
	defer txn.Abort()

	raw, err := txn.First(memDocumentTable, "id", collection, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	if raw == nil {
		return nil, ErrNotFound
	}
	doc := raw.(*memDocument)
	return &Document{ID: doc.ID, Fields: copyFields(doc.Fields)}, nil
}

func (s *MemoryDocumentStore) UpdateDocument(_ context.Context, collection, id string, fields map[string]any) error {
	txn := s.db.Txn(true)
	defer txn.Abort()

	raw, err := txn.First(memDocumentTable, "id", collection, id)
	if err != nil {
		return fmt.Errorf("failed to get document: %w", err)
	}
	if raw == nil {
		return ErrNotFound
	}

	merged := copyFields(raw.(*memDocument).Fields)
	for k, v := range copyFields(resolveTimestamps(fields, utcNow)) {
		merged[k] = v
	}
	doc := &memDocument{Collection: collection, ID: id, Fields: merged}
	if err := txn.Insert(memDocumentTable, doc); err != nil {
		return fmt.Errorf("failed to update document: %w", err)
	}
	txn.Commit()
	return nil
}

func (s *MemoryDocumentStore) QueryByField(_ context.Context, collection, field string, value any) ([]Document, error) {
	txn := s.db.Txn(false)
	defer txn.Abort()

	it, err := txn.Get(memDocumentTable, "collection", collection)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}

	var docs []Document
	for obj := it.Next(); obj != nil; obj = it.Next() {
		doc := obj.(*memDocument)
		v, ok := doc.Fields[field]
		if !ok || !reflect.DeepEqual(v, value) {
			continue
		}
		docs = append(docs, Document{ID: doc.ID, Fields: copyFields(doc.Fields)})
	}
	return docs, nil
}

func copyFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		if nested, ok := v.(map[string]any); ok {
			out[k] = copyFields(nested)
			continue
		}
		out[k] = v
	}
	return out
}
