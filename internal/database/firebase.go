package database

import (
	"context"
	"fmt"
	"log/slog"

	firebase "firebase.google.com/go/v4"
	"github.com/ahmetcoskunkizilkaya/identity-profile-api/internal/config"
	"google.golang.org/api/option"
)

// ConnectFirebase initialises the Firebase app from a service account file.
// Auth and Firestore clients are derived from it by the caller.
func ConnectFirebase(ctx context.Context, cfg *config.Config) (*firebase.App, error) {
	fbCfg := &firebase.Config{
		ProjectID:   cfg.FirebaseProjectID,
		DatabaseURL: cfg.FirebaseDatabaseURL,
	}
	app, err := firebase.NewApp(ctx, fbCfg, option.WithCredentialsFile(cfg.FirebaseCredentialsFile))
	if err != nil {
		return nil, fmt.Errorf("failed to initialise firebase: %w", err)
	}

	slog.Info("firebase initialised", "project_id", cfg.FirebaseProjectID)
	return app, nil
}
