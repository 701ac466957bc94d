package gateway

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"firebase.google.com/go/v4/auth"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirebaseIdentityProvider delegates identity lifecycle to Firebase Authentication.
type FirebaseIdentityProvider struct {
	client *auth.Client
}

func NewFirebaseIdentityProvider(client *auth.Client) *FirebaseIdentityProvider {
	return &FirebaseIdentityProvider{client: client}
}

func (p *FirebaseIdentityProvider) CreateIdentity(ctx context.Context, in NewIdentity) (*Identity, error) {
	params := (&auth.UserToCreate{}).
		Email(in.Email).
		Password(in.Password).
		PhoneNumber(in.PhoneNumber).
		DisplayName(in.DisplayName)

	rec, err := p.client.CreateUser(ctx, params)
	if err != nil {
		if auth.IsEmailAlreadyExists(err) || auth.IsPhoneNumberAlreadyExists(err) || auth.IsUIDAlreadyExists(err) {
			return nil, ErrIdentityConflict
		}
		return nil, fmt.Errorf("failed to create firebase user: %w", err)
	}
	return fromUserRecord(rec), nil
}

func (p *FirebaseIdentityProvider) GetIdentityByEmail(ctx context.Context, email string) (*Identity, error) {
	rec, err := p.client.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, firebaseNotFoundOr(err, "failed to get firebase user by email")
	}
	return fromUserRecord(rec), nil
}

func (p *FirebaseIdentityProvider) GetIdentityByID(ctx context.Context, id string) (*Identity, error) {
	rec, err := p.client.GetUser(ctx, id)
	if err != nil {
		return nil, firebaseNotFoundOr(err, "failed to get firebase user")
	}
	return fromUserRecord(rec), nil
}

func (p *FirebaseIdentityProvider) UpdateIdentity(ctx context.Context, id string, update IdentityUpdate) error {
	if update.IsEmpty() {
		return nil
	}

	params := &auth.UserToUpdate{}
	if update.Email != nil {
		params = params.Email(*update.Email)
	}
	if update.PhoneNumber != nil {
		params = params.PhoneNumber(*update.PhoneNumber)
	}

	if _, err := p.client.UpdateUser(ctx, id, params); err != nil {
		if auth.IsEmailAlreadyExists(err) || auth.IsPhoneNumberAlreadyExists(err) {
			return ErrIdentityConflict
		}
		return firebaseNotFoundOr(err, "failed to update firebase user")
	}
	return nil
}

// healthCheckUID is looked up by Ping; not-found proves the API answered.
const healthCheckUID = "health-check"

func (p *FirebaseIdentityProvider) Ping(ctx context.Context) error {
	if _, err := p.client.GetUser(ctx, healthCheckUID); err != nil && !auth.IsUserNotFound(err) {
		return fmt.Errorf("firebase auth unreachable: %w", err)
	}
	return nil
}

func firebaseNotFoundOr(err error, msg string) error {
	if auth.IsUserNotFound(err) {
		return ErrNotFound
	}
	return fmt.Errorf("%s: %w", msg, err)
}

func fromUserRecord(rec *auth.UserRecord) *Identity {
	return &Identity{
		ID:          rec.UID,
		Email:       rec.Email,
		PhoneNumber: rec.PhoneNumber,
		DisplayName: rec.DisplayName,
	}
}

// FirestoreDocumentStore persists documents in Cloud Firestore.
type FirestoreDocumentStore struct {
	client *firestore.Client
}

func NewFirestoreDocumentStore(client *firestore.Client) *FirestoreDocumentStore {
	return &FirestoreDocumentStore{client: client}
}

func firestoreTimestamp() any {
	return firestore.ServerTimestamp
}

func (s *FirestoreDocumentStore) PutDocument(ctx context.Context, collection, id string, fields map[string]any) error {
	if _, err := s.client.Collection(collection).Doc(id).Set(ctx, resolveTimestamps(fields, firestoreTimestamp)); err != nil {
		return fmt.Errorf("failed to put document: %w", err)
	}
	return nil
}

func (s *FirestoreDocumentStore) GetDocument(ctx context.Context, collection, id string) (*Document, error) {
	snap, err := s.client.Collection(collection).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return &Document{ID: snap.Ref.ID, Fields: snap.Data()}, nil
}

func (s *FirestoreDocumentStore) UpdateDocument(ctx context.Context, collection, id string, fields map[string]any) error {
	resolved := resolveTimestamps(fields, firestoreTimestamp)
	updates := make([]firestore.Update, 0, len(resolved))
	for k, v := range resolved {
		updates = append(updates, firestore.Update{Path: k, Value: v})
	}

	if _, err := s.client.Collection(collection).Doc(id).Update(ctx, updates); err != nil {
		if status.Code(err) == codes.NotFound {
			return ErrNotFound
		}
		return fmt.Errorf("failed to update document: %w", err)
	}
	return nil
}

func (s *FirestoreDocumentStore) Ping(ctx context.Context) error {
	iter := s.client.Collections(ctx)
	if _, err := iter.Next(); err != nil && !errors.Is(err, iterator.Done) {
		return fmt.Errorf("firestore unreachable: %w", err)
	}
	return nil
}

func (s *FirestoreDocumentStore) QueryByField(ctx context.Context, collection, field string, value any) ([]Document, error) {
	iter := s.client.Collection(collection).Where(field, "==", value).Documents(ctx)
	defer iter.Stop()

	var docs []Document
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to query documents: %w", err)
		}
		docs = append(docs, Document{ID: snap.Ref.ID, Fields: snap.Data()})
	}
	return docs, nil
}
