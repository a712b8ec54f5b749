package main

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/burn-severity-service/internal/domain"
)

func TestParseFlags_Defaults(t *testing.T) {
	o, err := parseFlags(nil, io.Discard)
	require.NoError(t, err)

	req, err := buildRequest(o)
	require.NoError(t, err)
	assert.Empty(t, req.RegionWarnings)
	assert.Equal(t, domain.DefaultAnalysisRequest().Fingerprint(), req.Fingerprint())
	assert.True(t, req.Region.Default)
}

func TestParseFlags_AOIListsAccumulate(t *testing.T) {
	o, err := parseFlags([]string{"-aoi", "a.geojson,b.geojson", "-aoi", "c.geojson", "-cloud", "40"}, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, fileList{"a.geojson", "b.geojson", "c.geojson"}, o.aoi)
	assert.Equal(t, 40, o.cloud)
}

func TestParseFlags_UnknownFlag(t *testing.T) {
	_, err := parseFlags([]string{"-nope"}, io.Discard)
	require.Error(t, err)
}

func TestBuildRequest_ReadsAOIFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fire.geojson")
	doc := `{"type":"FeatureCollection","features":[
		{"type":"Feature","geometry":{"type":"Polygon","coordinates":[[[27.9,36.0],[28.0,36.0],[28.0,36.1],[27.9,36.0]]]}},
		{"type":"Feature","geometry":{"type":"LineString","coordinates":[[0,0],[1,1]]}}
	]}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	o, err := parseFlags([]string{"-aoi", path, "-palette", "Tritanopia"}, io.Discard)
	require.NoError(t, err)

	req, err := buildRequest(o)
	require.NoError(t, err)
	assert.False(t, req.Region.Default)
	assert.Equal(t, 1, req.Region.NumPolygons())
	require.Len(t, req.RegionWarnings, 1)
	assert.Contains(t, req.RegionWarnings[0], "file 1 feature 2")
	assert.Equal(t, domain.PaletteName("Tritanopia"), req.Palette)
}

func TestBuildRequest_Errors(t *testing.T) {
	o, err := parseFlags([]string{"-pre-start", "July 5"}, io.Discard)
	require.NoError(t, err)
	_, err = buildRequest(o)
	require.ErrorIs(t, err, domain.ErrInvalidRequest)

	o, err = parseFlags([]string{"-aoi", filepath.Join(t.TempDir(), "missing.geojson")}, io.Discard)
	require.NoError(t, err)
	_, err = buildRequest(o)
	require.ErrorContains(t, err, "read aoi")
}

func TestWriteReport(t *testing.T) {
	req := domain.DefaultAnalysisRequest()
	report := domain.NewReport(req, domain.Palettes()[0])

	t.Run("file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "report.json")
		require.NoError(t, writeReport(path, io.Discard, report))

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), report.ID)
	})

	t.Run("stdout", func(t *testing.T) {
		var buf strings.Builder
		require.NoError(t, writeReport("", &buf, report))
		assert.Contains(t, buf.String(), report.Fingerprint)
	})

	t.Run("unwritable path", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "missing", "report.json")
		require.ErrorContains(t, writeReport(path, io.Discard, report), "create output file")
	})

	t.Run("device full", func(t *testing.T) {
		if _, err := os.Stat("/dev/full"); err != nil {
			t.Skip("/dev/full not available")
		}
		require.Error(t, writeReport("/dev/full", io.Discard, report))
	})
}
