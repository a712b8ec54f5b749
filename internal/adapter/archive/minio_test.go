package archive

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/burn-severity-service/internal/config"
	"github.com/couchcryptid/burn-severity-service/internal/domain"
)

func TestObjectKey(t *testing.T) {
	r := &domain.Report{
		ID:          "0b7f6c1e",
		GeneratedAt: time.Date(2024, 3, 9, 23, 30, 0, 0, time.FixedZone("UTC-2", -2*3600)),
	}
	assert.Equal(t, "reports/2024/03/0b7f6c1e.json", ObjectKey(r))
}

// fakeS3 records bucket creation and object uploads using path-style requests.
type fakeS3 struct {
	mu            sync.Mutex
	bucketExists  bool
	bucketCreated bool
	objects       map[string]string
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := strings.Trim(r.URL.Path, "/")
	switch {
	case r.URL.Query().Has("location"):
		w.Header().Set("Content-Type", "application/xml")
		_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><LocationConstraint xmlns="http://s3.amazonaws.com/doc/2006-03-01/">us-east-1</LocationConstraint>`)
	case r.Method == http.MethodHead && !strings.Contains(path, "/"):
		if !f.bucketExists {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodPut && !strings.Contains(path, "/"):
		f.bucketExists = true
		f.bucketCreated = true
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		f.objects[path] = string(body)
		w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
		w.WriteHeader(http.StatusOK)
	default:
		w.WriteHeader(http.StatusNotImplemented)
	}
}

func testConfig(endpoint string) *config.Config {
	return &config.Config{
		MinioEndpoint:  strings.TrimPrefix(endpoint, "http://"),
		MinioAccessKey: "minioadmin",
		MinioSecretKey: "minioadmin",
		ArchiveBucket:  "burn-severity-reports",
	}
}

func TestMinioArchiver_CreatesBucketAndUploads(t *testing.T) {
	s3 := &fakeS3{objects: make(map[string]string)}
	srv := httptest.NewServer(s3)
	defer srv.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	a, err := NewMinioArchiver(context.Background(), testConfig(srv.URL), logger)
	require.NoError(t, err)
	assert.True(t, s3.bucketCreated)

	r := domain.NewReport(domain.DefaultAnalysisRequest(), domain.Palettes()[0])
	require.NoError(t, a.Deliver(context.Background(), r))

	s3.mu.Lock()
	defer s3.mu.Unlock()
	body, ok := s3.objects["burn-severity-reports/"+ObjectKey(r)]
	require.True(t, ok, "object stored under the report key")
	assert.Contains(t, body, `"id":"`+r.ID+`"`)
}
