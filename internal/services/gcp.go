package services

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/storage"
	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/option"

	"github.com/desertthunder/marquee/internal/shared"
)

// ClientOptions returns the Google client options for cfg. Without a credentials
// file the clients fall back to application default credentials.
func ClientOptions(cfg shared.FirebaseConfig) []option.ClientOption {
	if cfg.CredentialsFile == "" {
		return nil
	}
	return []option.ClientOption{option.WithCredentialsFile(cfg.CredentialsFile)}
}

// NewFirestoreClient connects to the project's default Firestore database.
// FIRESTORE_EMULATOR_HOST is honoured by the client library.
func NewFirestoreClient(ctx context.Context, cfg shared.FirebaseConfig) (*firestore.Client, error) {
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("%w: firebase project_id", shared.ErrMissingCredentials)
	}
	client, err := firestore.NewClient(ctx, cfg.ProjectID, ClientOptions(cfg)...)
	if err != nil {
		return nil, fmt.Errorf("firestore client (project=%s): %w", cfg.ProjectID, err)
	}
	return client, nil
}

// NewStorageClient creates a Cloud Storage client for library archives.
func NewStorageClient(ctx context.Context, cfg shared.FirebaseConfig) (*storage.Client, error) {
	client, err := storage.NewClient(ctx, ClientOptions(cfg)...)
	if err != nil {
		return nil, fmt.Errorf("storage client: %w", err)
	}
	return client, nil
}

// NewSecretManagerClient creates a Secret Manager client.
func NewSecretManagerClient(ctx context.Context, cfg shared.FirebaseConfig) (*secretmanager.Client, error) {
	client, err := secretmanager.NewClient(ctx, ClientOptions(cfg)...)
	if err != nil {
		return nil, fmt.Errorf("secret manager client: %w", err)
	}
	return client, nil
}

// NewFirebaseApp initializes the Firebase Admin SDK for the project.
func NewFirebaseApp(ctx context.Context, cfg shared.FirebaseConfig) (*firebase.App, error) {
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("%w: firebase project_id", shared.ErrMissingCredentials)
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID}, ClientOptions(cfg)...)
	if err != nil {
		return nil, fmt.Errorf("firebase app: %w", err)
	}
	return app, nil
}
