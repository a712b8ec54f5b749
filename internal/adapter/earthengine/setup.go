package earthengine

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/burn-severity-service/internal/config"
	"github.com/couchcryptid/burn-severity-service/internal/observability"
)

// Connect builds an authenticated, cached engine from configuration. store
// may be nil to keep the cache in-process only.
func Connect(ctx context.Context, cfg *config.Config, store Store, metrics *observability.Metrics, logger *slog.Logger) (*CachedEngine, error) {
	creds := Credentials{JSON: cfg.EngineCredentialsJSON, File: cfg.EngineCredentialsFile}
	httpClient, err := NewAuthenticatedHTTPClient(ctx, creds, cfg.EngineTimeout)
	if err != nil {
		return nil, err
	}
	client := NewClient(httpClient, cfg.EngineBaseURL, cfg.EngineProject, metrics, logger)
	return NewCachedEngine(client, cfg.CacheSize, cfg.CacheTTL, store, metrics, logger), nil
}
