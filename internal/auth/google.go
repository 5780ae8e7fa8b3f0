package auth

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/sawti/sawti-server/domain/repositories"
)

const cloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"

// GoogleCredentials supplies bearer tokens for Vertex AI from Application
// Default Credentials (service account file, gcloud login, or metadata
// server).
type GoogleCredentials struct {
	tokenSource oauth2.TokenSource
	projectID   string
}

// NewGoogleCredentials resolves Application Default Credentials.
func NewGoogleCredentials(ctx context.Context) (*GoogleCredentials, error) {
	creds, err := google.FindDefaultCredentials(ctx, cloudPlatformScope)
	if err != nil {
		return nil, &repositories.AuthError{Err: fmt.Errorf("resolve default credentials: %w", err)}
	}
	return &GoogleCredentials{
		tokenSource: creds.TokenSource,
		projectID:   creds.ProjectID,
	}, nil
}

// AccessToken returns a valid bearer token, refreshing as needed.
func (g *GoogleCredentials) AccessToken(ctx context.Context) (string, error) {
	token, err := g.tokenSource.Token()
	if err != nil {
		return "", &repositories.AuthError{Err: fmt.Errorf("fetch access token: %w", err)}
	}
	return token.AccessToken, nil
}

// ProjectID returns the project the credentials belong to, when known.
func (g *GoogleCredentials) ProjectID() string {
	return g.projectID
}
