package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// Cloud threshold bounds, in percent of cloudy pixels per scene.
const (
	MinCloudThreshold     = 5
	MaxCloudThreshold     = 100
	DefaultCloudThreshold = 75
)

// LongWindowDays is the window length above which a run is flagged as slow.
const LongWindowDays = 30

// SentinelStart is the first day Sentinel-2 imagery is available.
var SentinelStart = time.Date(2015, 6, 23, 0, 0, 0, 0, time.UTC)

// DateWindow is an inclusive range of calendar days.
type DateWindow struct {
	Start time.Time
	End   time.Time
}

// NewDateWindow parses two YYYY-MM-DD strings.
func NewDateWindow(start, end string) (DateWindow, error) {
	s, err := ParseDate(start)
	if err != nil {
		return DateWindow{}, err
	}
	e, err := ParseDate(end)
	if err != nil {
		return DateWindow{}, err
	}
	return DateWindow{Start: s, End: e}, nil
}

// ParseDate parses a YYYY-MM-DD string as midnight UTC.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q: expected YYYY-MM-DD", ErrInvalidRequest, s)
	}
	return t, nil
}

// Days returns the number of days between start and end.
func (w DateWindow) Days() int {
	return int(w.End.Sub(w.Start).Hours() / 24)
}

// StartString formats the window start as YYYY-MM-DD.
func (w DateWindow) StartString() string { return w.Start.Format(DateLayout) }

// EndString formats the window end as YYYY-MM-DD.
func (w DateWindow) EndString() string { return w.End.Format(DateLayout) }

// ExclusiveEnd returns the day after End, for remote filters whose upper
// bound is exclusive.
func (w DateWindow) ExclusiveEnd() time.Time {
	return w.End.AddDate(0, 0, 1)
}

type dateWindowJSON struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

func (w DateWindow) MarshalJSON() ([]byte, error) {
	return json.Marshal(dateWindowJSON{Start: w.StartString(), End: w.EndString()})
}

func (w *DateWindow) UnmarshalJSON(data []byte) error {
	var raw dateWindowJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := NewDateWindow(raw.Start, raw.End)
	if err != nil {
		return err
	}
	*w = parsed
	return nil
}

// AnalysisRequest carries every user input for one burn-severity run.
type AnalysisRequest struct {
	Region         Region
	PreFire        DateWindow
	PostFire       DateWindow
	CloudThreshold int
	Palette        PaletteName

	// RegionWarnings lists AOI features skipped while building Region. They
	// lead the report's warnings and do not affect the fingerprint.
	RegionWarnings []string
}

// DefaultAnalysisRequest returns the inputs shown when nothing is selected.
func DefaultAnalysisRequest() AnalysisRequest {
	return AnalysisRequest{
		Region: DefaultRegion(),
		PreFire: DateWindow{
			Start: time.Date(2023, 7, 5, 0, 0, 0, 0, time.UTC),
			End:   time.Date(2023, 7, 12, 0, 0, 0, 0, time.UTC),
		},
		PostFire: DateWindow{
			Start: time.Date(2023, 7, 20, 0, 0, 0, 0, time.UTC),
			End:   time.Date(2023, 7, 27, 0, 0, 0, 0, time.UTC),
		},
		CloudThreshold: DefaultCloudThreshold,
		Palette:        PaletteNormal,
	}
}

// Validate checks the request and returns non-fatal warnings. Every error
// wraps ErrInvalidRequest.
func (r AnalysisRequest) Validate() ([]string, error) {
	var errs []error

	if r.CloudThreshold < MinCloudThreshold || r.CloudThreshold > MaxCloudThreshold {
		errs = append(errs, fmt.Errorf("cloud threshold %d outside %d-%d", r.CloudThreshold, MinCloudThreshold, MaxCloudThreshold))
	}
	if _, ok := LookupPalette(string(r.Palette)); !ok {
		errs = append(errs, fmt.Errorf("unknown palette %q", r.Palette))
	}
	if r.Region.Geometry == nil {
		errs = append(errs, errors.New("region is required"))
	}

	today := clock.Now().UTC().Truncate(24 * time.Hour)
	errs = append(errs, validateWindow("pre-fire", r.PreFire, today)...)
	errs = append(errs, validateWindow("post-fire", r.PostFire, today)...)

	if !r.PreFire.End.Before(r.PostFire.Start) {
		errs = append(errs, errors.New("pre-fire date range must end before post-fire date range starts"))
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, errors.Join(errs...))
	}

	var warnings []string
	if r.PreFire.Days() > LongWindowDays || r.PostFire.Days() > LongWindowDays {
		warnings = append(warnings, "date ranges longer than 30 days may slow down processing; consider narrowing the range")
	}
	return warnings, nil
}

func validateWindow(name string, w DateWindow, today time.Time) []error {
	var errs []error
	if w.Start.IsZero() || w.End.IsZero() {
		return []error{fmt.Errorf("%s date range is required", name)}
	}
	if w.Start.After(w.End) {
		errs = append(errs, fmt.Errorf("%s start date must not be after end date", name))
	}
	if w.Start.Before(SentinelStart) {
		errs = append(errs, fmt.Errorf("%s start date %s is before Sentinel-2 availability (%s)", name, w.StartString(), SentinelStart.Format(DateLayout)))
	}
	if w.End.After(today) {
		errs = append(errs, fmt.Errorf("%s end date %s is in the future", name, w.EndString()))
	}
	return errs
}

// ClimateWindow returns the full calendar months covering both windows.
func (r AnalysisRequest) ClimateWindow() DateWindow {
	start, end := MonthSpan(r.PreFire.Start, r.PostFire.End)
	return DateWindow{Start: start, End: end}
}

// Fingerprint is a deterministic SHA-256 of the normalised request. Identical
// inputs always map to the same fingerprint, which makes it usable as a
// cache and idempotency key.
func (r AnalysisRequest) Fingerprint() string {
	input := fmt.Sprintf("%s|%s|%s|%s|%s|%d|%s",
		r.Region.WKT(),
		r.PreFire.StartString(), r.PreFire.EndString(),
		r.PostFire.StartString(), r.PostFire.EndString(),
		r.CloudThreshold, strings.ToLower(string(r.Palette)))
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:16])
}
