package domain

import (
	"time"
)

// Platform constants.
const (
	PlatformGoogle      = "google"
	PlatformYelp        = "yelp"
	PlatformFacebook    = "facebook"
	PlatformTripAdvisor = "tripadvisor"
	PlatformOther       = "other"
)

// Sync frequency constants.
const (
	SyncHourly = "hourly"
	SyncDaily  = "daily"
	SyncWeekly = "weekly"
	SyncNever  = "never"
)

// Sync status values shown as the per-source indicator.
const (
	SyncStatusOK     = "ok"
	SyncStatusFailed = "failed"
)

// ReviewSource is one external review channel.
type ReviewSource struct {
	ID             string            `json:"id"`
	Name           string            `json:"name"`
	Slug           string            `json:"slug"`
	Platform       string            `json:"platform"`
	URL            string            `json:"url"`
	Enabled        bool              `json:"enabled"`
	SyncFrequency  string            `json:"sync_frequency"`
	Credentials    map[string]string `json:"-"`
	LastSyncTime   *time.Time        `json:"last_sync_time"`
	LastSyncStatus string            `json:"last_sync_status,omitempty"`
	LastSyncError  string            `json:"last_sync_error,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// ValidPlatforms returns the set of valid platform types.
func ValidPlatforms() []string {
	return []string{PlatformGoogle, PlatformYelp, PlatformFacebook, PlatformTripAdvisor, PlatformOther}
}

// IsValidPlatform checks whether p is a known platform type.
func IsValidPlatform(p string) bool {
	for _, v := range ValidPlatforms() {
		if v == p {
			return true
		}
	}
	return false
}

// ValidSyncFrequencies returns the set of valid sync frequencies.
func ValidSyncFrequencies() []string {
	return []string{SyncHourly, SyncDaily, SyncWeekly, SyncNever}
}

// IsValidSyncFrequency checks whether f is a known sync frequency.
func IsValidSyncFrequency(f string) bool {
	for _, v := range ValidSyncFrequencies() {
		if v == f {
			return true
		}
	}
	return false
}

// SyncInterval returns the interval for a frequency. Ok is false for
// "never" and unknown values.
func SyncInterval(frequency string) (time.Duration, bool) {
	switch frequency {
	case SyncHourly:
		return time.Hour, true
	case SyncDaily:
		return 24 * time.Hour, true
	case SyncWeekly:
		return 7 * 24 * time.Hour, true
	default:
		return 0, false
	}
}

// NextDue returns when the source should next be synced. A source that has
// never been synced is due at the zero time. Ok is false when the frequency
// is "never".
func (s *ReviewSource) NextDue() (time.Time, bool) {
	interval, ok := SyncInterval(s.SyncFrequency)
	if !ok {
		return time.Time{}, false
	}
	if s.LastSyncTime == nil {
		return time.Time{}, true
	}
	return s.LastSyncTime.Add(interval), true
}

// IsDue reports whether an enabled source should be synced at now.
func (s *ReviewSource) IsDue(now time.Time) bool {
	if !s.Enabled {
		return false
	}
	due, ok := s.NextDue()
	return ok && !due.After(now)
}
