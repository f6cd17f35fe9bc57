// Package models holds the rate limiter's domain types: endpoint classes,
// limit rules, check results, and key derivation.
package models

import "time"

// Class categorizes endpoints for differentiated rate limiting.
type Class string

const (
	// ClassGeneral: default API traffic (100 req/min).
	ClassGeneral Class = "general"
	// ClassAuth: login and other credential endpoints (5 req/min).
	ClassAuth Class = "auth"
	// ClassAdmin: administrative endpoints (30 req/min).
	ClassAdmin Class = "admin"
	// ClassUpload: file and bulk uploads (10 req/min).
	ClassUpload Class = "upload"
)

// IsValid checks if the class is one of the supported enum values.
func (c Class) IsValid() bool {
	switch c {
	case ClassGeneral, ClassAuth, ClassAdmin, ClassUpload:
		return true
	}
	return false
}

// String returns the string representation.
func (c Class) String() string {
	return string(c)
}

// Rule is one fixed-window limit: at most MaxRequests per Window.
type Rule struct {
	MaxRequests int
	Window      time.Duration
}

// Result is the outcome of a rate limit check. TotalHits keeps counting past
// MaxRequests, so it can exceed the limit on rejected requests.
type Result struct {
	Allowed    bool      `json:"allowed"`
	Limit      int       `json:"limit"`
	Remaining  int       `json:"remaining"`
	ResetAt    time.Time `json:"reset_at"`
	RetryAfter int       `json:"retry_after,omitempty"` // seconds, only set when not allowed
	TotalHits  int64     `json:"total_hits"`
}
