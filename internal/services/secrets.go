package services

import (
	"context"
	"fmt"
	"strings"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	secretmanagerpb "cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"

	"github.com/desertthunder/marquee/internal/shared"
)

// SecretAccessor reads the payload of a secret version.
type SecretAccessor interface {
	Access(ctx context.Context, name string) (string, error)
}

// SecretManager reads secrets from Google Secret Manager.
type SecretManager struct {
	client *secretmanager.Client
}

func NewSecretManager(client *secretmanager.Client) *SecretManager {
	return &SecretManager{client: client}
}

// Access returns the trimmed payload of name (projects/<p>/secrets/<s>/versions/<v>).
func (s *SecretManager) Access(ctx context.Context, name string) (string, error) {
	resp, err := s.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{Name: name})
	if err != nil {
		return "", fmt.Errorf("access secret %s: %w", name, err)
	}
	if resp == nil || resp.Payload == nil {
		return "", fmt.Errorf("secret %s has an empty payload", name)
	}
	return strings.TrimSpace(string(resp.Payload.Data)), nil
}

// SecretName expands a bare secret id into a full version name in project.
func SecretName(project, secret string) string {
	if strings.HasPrefix(secret, "projects/") {
		return secret
	}
	secret, version, ok := strings.Cut(secret, "@")
	if !ok || version == "" {
		version = "latest"
	}
	return fmt.Sprintf("projects/%s/secrets/%s/versions/%s", project, secret, version)
}

// ResolveTMDBKey fills cfg's TMDB api key from Secret Manager when only the
// secret name is configured.
func ResolveTMDBKey(ctx context.Context, cfg *shared.Config, secrets SecretAccessor) error {
	tmdb := &cfg.Credentials.TMDB
	if tmdb.APIKey != "" || tmdb.APIKeySecret == "" {
		return nil
	}
	if secrets == nil {
		return fmt.Errorf("%w: tmdb api_key_secret set but no secret manager", shared.ErrMissingCredentials)
	}
	key, err := secrets.Access(ctx, SecretName(cfg.Credentials.Firebase.ProjectID, tmdb.APIKeySecret))
	if err != nil {
		return err
	}
	if key == "" {
		return fmt.Errorf("%w: tmdb secret is empty", shared.ErrMissingCredentials)
	}
	tmdb.APIKey = key
	return nil
}
