package models

import (
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// SanitizeKeySegment escapes delimiter characters in rate limit key segments
// to prevent key collision attacks where user-controlled identifiers
// containing ':' could manipulate adjacent rate limit buckets.
func SanitizeKeySegment(s string) string {
	return strings.ReplaceAll(s, ":", "_")
}

// GeneralKey buckets default traffic per client IP.
func GeneralKey(ip string) string {
	return "general:" + SanitizeKeySegment(ip)
}

// AuthKey buckets credential endpoints per client IP. Deliberately ignores
// the user agent so rotating agents does not widen the login budget.
func AuthKey(ip string) string {
	return "auth:" + SanitizeKeySegment(ip)
}

// AdminKey buckets administrative traffic per IP and user agent, so a shared
// office IP does not lock every administrator out at once.
func AdminKey(ip, userAgent string) string {
	return "admin:" + SanitizeKeySegment(ip) + ":" + hashUserAgent(userAgent)
}

// UploadKey buckets uploads per IP and request path.
func UploadKey(ip, path string) string {
	return "upload:" + SanitizeKeySegment(ip) + ":" + SanitizeKeySegment(path)
}

// hashUserAgent collapses arbitrary user agent strings into a short fixed
// token. Raw agents are long and attacker-controlled; hashing keeps keys
// bounded and delimiter-free.
func hashUserAgent(userAgent string) string {
	sum := blake2b.Sum256([]byte(userAgent))
	return hex.EncodeToString(sum[:8])
}
