// Package earthengine calls the Earth Engine REST API.
package earthengine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/auth"
	"golang.org/x/oauth2"

	"github.com/couchcryptid/burn-severity-service/internal/adapter/earthengine/expr"
	"github.com/couchcryptid/burn-severity-service/internal/domain"
	"github.com/couchcryptid/burn-severity-service/internal/observability"
)

// DefaultBaseURL is the public Earth Engine endpoint.
const DefaultBaseURL = "https://earthengine.googleapis.com"

const (
	opCompute = "compute"
	opMap     = "map"
)

// RemoteError is a non-2xx response from the engine.
type RemoteError struct {
	Status  int
	Code    string
	Message string
}

func (e *RemoteError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("earth engine: status %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("earth engine: status %d: %s", e.Status, e.Message)
}

// Unwrap classifies the error for errors.Is against domain sentinels.
func (e *RemoteError) Unwrap() error {
	if e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden {
		return domain.ErrUnauthorized
	}
	return domain.ErrRemote
}

// Client evaluates computation graphs and registers map tiles.
type Client struct {
	project    string
	httpClient *http.Client
	baseURL    string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates an engine client. httpClient must already attach
// credentials; see NewAuthenticatedHTTPClient.
func NewClient(httpClient *http.Client, baseURL, project string, metrics *observability.Metrics, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		project:    project,
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		metrics:    metrics,
		logger:     logger,
	}
}

type computeRequest struct {
	Expression expr.Expression `json:"expression"`
}

type computeResponse struct {
	Result json.RawMessage `json:"result"`
}

// ComputeValue evaluates a graph and returns the JSON result.
func (c *Client) ComputeValue(ctx context.Context, n *expr.Node) (json.RawMessage, error) {
	u := fmt.Sprintf("%s/v1/projects/%s/value:compute", c.baseURL, c.project)

	var resp computeResponse
	if err := c.doRequest(ctx, opCompute, u, computeRequest{Expression: expr.Marshal(n)}, &resp); err != nil {
		return nil, err
	}
	return resp.Result, nil
}

type mapRequest struct {
	Expression expr.Expression `json:"expression"`
	FileFormat string          `json:"fileFormat"`
}

type mapResponse struct {
	Name string `json:"name"`
}

// MapTiles registers a visualised image and returns an XYZ tile URL
// template with {z}/{x}/{y} placeholders.
func (c *Client) MapTiles(ctx context.Context, n *expr.Node) (string, error) {
	u := fmt.Sprintf("%s/v1/projects/%s/maps", c.baseURL, c.project)

	var resp mapResponse
	if err := c.doRequest(ctx, opMap, u, mapRequest{Expression: expr.Marshal(n), FileFormat: "AUTO_JPEG_PNG"}, &resp); err != nil {
		return "", err
	}
	if resp.Name == "" {
		return "", fmt.Errorf("%w: map response has no name", domain.ErrRemote)
	}
	return fmt.Sprintf("%s/v1/%s/tiles/{z}/{x}/{y}", c.baseURL, resp.Name), nil
}

type errorEnvelope struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

func (c *Client) doRequest(ctx context.Context, op, fullURL string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fullURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.EngineDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		if ctx.Err() != nil {
			c.metrics.EngineRequests.WithLabelValues(op, "error").Inc()
			return ctx.Err()
		}
		if isTokenError(err) {
			c.metrics.EngineRequests.WithLabelValues(op, "unauthorized").Inc()
			c.logger.Warn("earth engine token refresh failed", "operation", op, "error", err)
			return fmt.Errorf("%w: %s request: %w", domain.ErrUnauthorized, op, err)
		}
		c.metrics.EngineRequests.WithLabelValues(op, "error").Inc()
		return fmt.Errorf("%w: %s request: %w", domain.ErrRemote, op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		remote := decodeError(resp)
		outcome := "error"
		if errors.Is(remote, domain.ErrUnauthorized) {
			outcome = "unauthorized"
		}
		c.metrics.EngineRequests.WithLabelValues(op, outcome).Inc()
		c.logger.Warn("earth engine request failed", "operation", op, "status", remote.Status, "error", remote.Message)
		return remote
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		c.metrics.EngineRequests.WithLabelValues(op, "error").Inc()
		return fmt.Errorf("%w: decode %s response: %w", domain.ErrRemote, op, err)
	}
	c.metrics.EngineRequests.WithLabelValues(op, "success").Inc()
	return nil
}

// isTokenError reports whether err came from fetching an access token, with
// either the oauth2 or the cloud auth transport.
func isTokenError(err error) bool {
	var retrieve *oauth2.RetrieveError
	var authErr *auth.Error
	return errors.As(err, &retrieve) || errors.As(err, &authErr)
}

func decodeError(resp *http.Response) *RemoteError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	remote := &RemoteError{Status: resp.StatusCode, Message: strings.TrimSpace(string(body))}

	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err == nil && env.Error.Message != "" {
		remote.Message = env.Error.Message
		remote.Code = env.Error.Status
	}
	return remote
}
