package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func freezeClock(t *testing.T, at time.Time) {
	t.Helper()
	SetClock(clockwork.NewFakeClockAt(at))
	t.Cleanup(func() { SetClock(nil) })
}

func TestAnalysisRequest_Validate(t *testing.T) {
	freezeClock(t, time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC))

	t.Run("defaults are valid", func(t *testing.T) {
		warnings, err := DefaultAnalysisRequest().Validate()
		require.NoError(t, err)
		assert.Empty(t, warnings)
	})

	tests := []struct {
		name   string
		mutate func(r *AnalysisRequest)
		errMsg string
	}{
		{
			name:   "pre-fire ends on post-fire start",
			mutate: func(r *AnalysisRequest) { r.PreFire.End = r.PostFire.Start },
			errMsg: "pre-fire date range must end before post-fire date range starts",
		},
		{
			name:   "pre-fire ends after post-fire start",
			mutate: func(r *AnalysisRequest) { r.PreFire.End = r.PostFire.Start.AddDate(0, 0, 2) },
			errMsg: "pre-fire date range must end before",
		},
		{
			name:   "inverted pre-fire window",
			mutate: func(r *AnalysisRequest) { r.PreFire.Start, r.PreFire.End = r.PreFire.End, r.PreFire.Start },
			errMsg: "pre-fire start date must not be after end date",
		},
		{
			name:   "inverted post-fire window",
			mutate: func(r *AnalysisRequest) { r.PostFire.Start, r.PostFire.End = r.PostFire.End, r.PostFire.Start },
			errMsg: "post-fire start date must not be after end date",
		},
		{
			name:   "before Sentinel-2",
			mutate: func(r *AnalysisRequest) { r.PreFire.Start = date(2015, 6, 22) },
			errMsg: "before Sentinel-2 availability",
		},
		{
			name:   "future end date",
			mutate: func(r *AnalysisRequest) { r.PostFire.End = date(2024, 1, 16) },
			errMsg: "is in the future",
		},
		{
			name:   "cloud threshold too low",
			mutate: func(r *AnalysisRequest) { r.CloudThreshold = 0 },
			errMsg: "cloud threshold 0 outside 5-100",
		},
		{
			name:   "cloud threshold too high",
			mutate: func(r *AnalysisRequest) { r.CloudThreshold = 101 },
			errMsg: "cloud threshold 101 outside 5-100",
		},
		{
			name:   "unknown palette",
			mutate: func(r *AnalysisRequest) { r.Palette = "Sepia" },
			errMsg: `unknown palette "Sepia"`,
		},
		{
			name:   "missing region",
			mutate: func(r *AnalysisRequest) { r.Region = Region{} },
			errMsg: "region is required",
		},
		{
			name:   "missing window",
			mutate: func(r *AnalysisRequest) { r.PostFire = DateWindow{} },
			errMsg: "post-fire date range is required",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := DefaultAnalysisRequest()
			tt.mutate(&req)
			_, err := req.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidRequest)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}

	t.Run("end date today is allowed", func(t *testing.T) {
		req := DefaultAnalysisRequest()
		req.PostFire.End = date(2024, 1, 15)
		_, err := req.Validate()
		require.NoError(t, err)
	})

	t.Run("long window warns", func(t *testing.T) {
		req := DefaultAnalysisRequest()
		req.PreFire.Start = date(2023, 5, 1)
		warnings, err := req.Validate()
		require.NoError(t, err)
		require.Len(t, warnings, 1)
		assert.Contains(t, warnings[0], "longer than 30 days")
	})
}

func TestAnalysisRequest_ClimateWindow(t *testing.T) {
	req := DefaultAnalysisRequest()
	req.PostFire = DateWindow{Start: date(2023, 7, 20), End: date(2023, 8, 10)}

	w := req.ClimateWindow()
	assert.Equal(t, "2023-07-01", w.StartString())
	assert.Equal(t, "2023-08-31", w.EndString())
	assert.Equal(t, "2023-09-01", w.ExclusiveEnd().Format(DateLayout))
}

func TestAnalysisRequest_WindowsCannotShareStart(t *testing.T) {
	req := DefaultAnalysisRequest()
	req.PostFire.Start = req.PreFire.Start

	_, err := req.Validate()
	require.ErrorIs(t, err, ErrInvalidRequest)
	assert.Contains(t, err.Error(), "pre-fire date range must end before post-fire date range starts")
}

func TestAnalysisRequest_Fingerprint(t *testing.T) {
	a := DefaultAnalysisRequest()
	b := DefaultAnalysisRequest()
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
	assert.Len(t, a.Fingerprint(), 32)

	b.CloudThreshold = 50
	assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())

	c := DefaultAnalysisRequest()
	c.Palette = "normal"
	assert.Equal(t, a.Fingerprint(), c.Fingerprint(), "palette name is case-insensitive")

	c.RegionWarnings = []string{"file 1 feature 1: missing geometry"}
	assert.Equal(t, a.Fingerprint(), c.Fingerprint(), "skipped features do not change the fingerprint")
}

func TestDateWindow_JSON(t *testing.T) {
	var w DateWindow
	require.NoError(t, json.Unmarshal([]byte(`{"start":"2023-07-05","end":"2023-07-12"}`), &w))
	assert.Equal(t, date(2023, 7, 5), w.Start)
	assert.Equal(t, 7, w.Days())

	out, err := json.Marshal(w)
	require.NoError(t, err)
	assert.JSONEq(t, `{"start":"2023-07-05","end":"2023-07-12"}`, string(out))

	err = json.Unmarshal([]byte(`{"start":"07/05/2023","end":"2023-07-12"}`), &w)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidRequest)
}
