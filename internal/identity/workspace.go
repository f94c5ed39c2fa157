package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2/google"
	admin "google.golang.org/api/admin/directory/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// WorkspaceDirectory reads display names from the Google Workspace Admin
// Directory API. Actor IDs are Google account IDs or primary emails.
type WorkspaceDirectory struct {
	service *admin.Service
}

// NewWorkspaceDirectory creates a WorkspaceDirectory from service-account
// credentials with domain-wide delegation. subject is the admin user the
// service account impersonates.
func NewWorkspaceDirectory(ctx context.Context, credentialsJSON []byte, subject string) (*WorkspaceDirectory, error) {
	conf, err := google.JWTConfigFromJSON(credentialsJSON, admin.AdminDirectoryUserReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse workspace credentials: %v", err)
	}
	conf.Subject = subject

	return newWorkspaceDirectory(ctx, option.WithTokenSource(conf.TokenSource(ctx)))
}

// NewWorkspaceDirectoryWithClient creates a WorkspaceDirectory using an
// already authenticated client. endpoint may be empty.
func NewWorkspaceDirectoryWithClient(ctx context.Context, client *http.Client, endpoint string) (*WorkspaceDirectory, error) {
	opts := []option.ClientOption{option.WithHTTPClient(client)}
	if endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint))
	}
	return newWorkspaceDirectory(ctx, opts...)
}

func newWorkspaceDirectory(ctx context.Context, opts ...option.ClientOption) (*WorkspaceDirectory, error) {
	srv, err := admin.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve Directory client: %v", err)
	}
	return &WorkspaceDirectory{service: srv}, nil
}

func (d *WorkspaceDirectory) DisplayName(ctx context.Context, actorID string) (string, error) {
	u, err := d.service.Users.Get(actorID).
		Fields(googleapi.Field("id, primaryEmail, name(fullName)")).
		Context(ctx).
		Do()
	if err != nil {
		var gErr *googleapi.Error
		if errors.As(err, &gErr) && gErr.Code == http.StatusNotFound {
			return "", ErrUnknownActor
		}
		return "", fmt.Errorf("unable to get directory user: %w", err)
	}

	if u.Name != nil && u.Name.FullName != "" {
		return u.Name.FullName, nil
	}
	if u.PrimaryEmail != "" {
		return u.PrimaryEmail, nil
	}
	return "", ErrUnknownActor
}
