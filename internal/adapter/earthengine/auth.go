package earthengine

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"google.golang.org/api/option"
	htransport "google.golang.org/api/transport/http"

	"github.com/couchcryptid/burn-severity-service/internal/domain"
)

// Scopes requested for service-account and user credentials.
var Scopes = []string{
	"https://www.googleapis.com/auth/earthengine",
	"https://www.googleapis.com/auth/cloud-platform",
}

// Credentials selects how the client authenticates. With neither field set,
// application default credentials are used.
type Credentials struct {
	JSON []byte
	File string
}

func (c Credentials) options() []option.ClientOption {
	opts := []option.ClientOption{option.WithScopes(Scopes...)}
	switch {
	case len(c.JSON) > 0:
		opts = append(opts, option.WithCredentialsJSON(c.JSON))
	case c.File != "":
		opts = append(opts, option.WithCredentialsFile(c.File))
	}
	return opts
}

// NewAuthenticatedHTTPClient returns an HTTP client that attaches OAuth2
// tokens to every request. Credential problems are reported as
// domain.ErrUnauthorized.
func NewAuthenticatedHTTPClient(ctx context.Context, creds Credentials, timeout time.Duration) (*http.Client, error) {
	client, _, err := htransport.NewClient(ctx, creds.options()...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrUnauthorized, err)
	}
	client.Timeout = timeout
	return client, nil
}
