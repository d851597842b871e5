package models

import "time"

// DefaultDismissTTL is how long a locally dismissed outlier warning stays hidden.
const DefaultDismissTTL = 21 * 24 * time.Hour

// OutlierRecord is the persisted dismissal state of one outlier warning.
// Expiry is epoch milliseconds.
type OutlierRecord struct {
	Hidden bool  `json:"hidden"`
	Expiry int64 `json:"expiry"`
}

// NewOutlierRecord returns a hidden record expiring ttl after now.
func NewOutlierRecord(now time.Time, ttl time.Duration) OutlierRecord {
	return OutlierRecord{Hidden: true, Expiry: now.Add(ttl).UnixMilli()}
}

// Expired reports whether the record is no longer valid at now.
func (r OutlierRecord) Expired(now time.Time) bool {
	return r.Expiry <= now.UnixMilli()
}

// Honored reports whether the dismissal should still hide the warning at now.
func (r OutlierRecord) Honored(now time.Time) bool {
	return r.Hidden && !r.Expired(now)
}

// Remaining returns the time left before expiry, zero once expired.
func (r OutlierRecord) Remaining(now time.Time) time.Duration {
	if r.Expired(now) {
		return 0
	}
	return time.UnixMilli(r.Expiry).Sub(now)
}

// DismissResult is the body returned by the server-side dismiss endpoint.
type DismissResult struct {
	Success bool `json:"success"`
}
