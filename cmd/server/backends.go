package main

import (
	"context"
	"fmt"
	"log/slog"

	firebase "firebase.google.com/go/v4"
	"github.com/ahmetcoskunkizilkaya/identity-profile-api/internal/config"
	"github.com/ahmetcoskunkizilkaya/identity-profile-api/internal/database"
	"github.com/ahmetcoskunkizilkaya/identity-profile-api/internal/gateway"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"gorm.io/gorm"
)

// backends holds the connections opened for the configured gateway so they
// can be closed on shutdown.
type backends struct {
	db       *gorm.DB
	firebase *firebase.App
	mongo    *mongo.Client
	closers  []func(context.Context) error
}

func (b *backends) close(ctx context.Context) {
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](ctx); err != nil {
			slog.Error("backend close error", "error", err)
		}
	}
}

// openBackends connects only what IDENTITY_PROVIDER and DOCUMENT_STORE select.
func openBackends(ctx context.Context, cfg *config.Config) (*backends, error) {
	b := &backends{}

	if cfg.UsesPostgres() {
		db, err := database.Connect(cfg)
		if err != nil {
			return b, err
		}
		b.db = db
		b.closers = append(b.closers, func(context.Context) error { return database.Close(db) })

		if err := database.Migrate(db); err != nil {
			return b, fmt.Errorf("migration failed: %w", err)
		}
	}

	if cfg.UsesFirebase() {
		app, err := database.ConnectFirebase(ctx, cfg)
		if err != nil {
			return b, err
		}
		b.firebase = app
	}

	if cfg.DocumentStore == config.BackendMongo {
		client, err := database.ConnectMongo(ctx, cfg)
		if err != nil {
			return b, err
		}
		b.mongo = client
		b.closers = append(b.closers, client.Disconnect)
	}

	return b, nil
}

func (b *backends) gateway(ctx context.Context, cfg *config.Config) (*gateway.Gateway, error) {
	var identities gateway.IdentityProvider
	switch cfg.IdentityProvider {
	case config.BackendPostgres:
		identities = gateway.NewPostgresIdentityProvider(b.db, cfg.BcryptCost)
	case config.BackendFirebase:
		client, err := b.firebase.Auth(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create firebase auth client: %w", err)
		}
		identities = gateway.NewFirebaseIdentityProvider(client)
	case config.BackendMemory:
		p, err := gateway.NewMemoryIdentityProvider(cfg.BcryptCost)
		if err != nil {
			return nil, err
		}
		identities = p
	default:
		return nil, fmt.Errorf("unknown identity provider %q", cfg.IdentityProvider)
	}

	var documents gateway.DocumentStore
	switch cfg.DocumentStore {
	case config.BackendPostgres:
		documents = gateway.NewPostgresDocumentStore(b.db)
	case config.BackendFirestore:
		client, err := b.firebase.Firestore(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create firestore client: %w", err)
		}
		b.closers = append(b.closers, func(context.Context) error { return client.Close() })
		documents = gateway.NewFirestoreDocumentStore(client)
	case config.BackendMongo:
		documents = gateway.NewMongoDocumentStore(b.mongo.Database(cfg.MongoDatabase))
	case config.BackendMemory:
		s, err := gateway.NewMemoryDocumentStore()
		if err != nil {
			return nil, err
		}
		documents = s
	default:
		return nil, fmt.Errorf("unknown document store %q", cfg.DocumentStore)
	}

	slog.Info("gateway configured",
		"identity_provider", cfg.IdentityProvider,
		"document_store", cfg.DocumentStore,
	)
	return gateway.New(identities, documents), nil
}
