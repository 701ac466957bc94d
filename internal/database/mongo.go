package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ahmetcoskunkizilkaya/identity-profile-api/internal/config"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

var ErrMongoNotReady = errors.New("mongo is not reachable")

// ConnectMongo connects and pings, retrying a few times while the server
// comes up.
func ConnectMongo(ctx context.Context, cfg *config.Config) (*mongo.Client, error) {
	opts := options.Client().
		ApplyURI(cfg.MongoURL).
		SetConnectTimeout(cfg.MongoConnectTimeout)

	var lastErr error
	for attempt := 1; attempt <= max(cfg.MongoRetryAttempts, 1); attempt++ {
		client, err := mongo.Connect(opts)
		if err == nil {
			pingCtx, cancel := context.WithTimeout(ctx, cfg.MongoConnectTimeout)
			err = client.Ping(pingCtx, nil)
			cancel()
			if err == nil {
				slog.Info("mongo connected", "database", cfg.MongoDatabase)
				return client, nil
			}
			_ = client.Disconnect(context.Background())
		}
		lastErr = err
		slog.Warn("mongo connection attempt failed", "attempt", attempt, "error", err)

		select {
		case <-ctx.Done():
			return nil, errors.Join(ErrMongoNotReady, ctx.Err())
		case <-time.After(cfg.MongoRetryInterval):
		}
	}
	return nil, fmt.Errorf("%w: %w", ErrMongoNotReady, lastErr)
}
