// Package suspicion holds the stateless request heuristics that run beside
// the rate limiter. Findings are advisory: callers decide whether to block,
// log, or escalate.
package suspicion

import (
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/mssola/useragent"

	"kopguard/internal/audit"
)

// Finding is the outcome of scanning one request.
type Finding struct {
	Suspicious bool
	Reason     string
	Severity   audit.Severity
}

// botSignatures matches scripted clients by user agent fragment. Browser
// parsing via the useragent library runs first; this list catches tools the
// library does not classify as bots.
var botSignatures = regexp.MustCompile(`(?i)(curl|wget|python-requests|python-urllib|go-http-client|scrapy|httpclient|libwww|nikto|sqlmap|masscan|nmap|zgrab)`)

// sqlInjectionPatterns matches classic SQLi fragments in query strings.
var sqlInjectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bunion\b[\s/*]+\bselect\b`),
	regexp.MustCompile(`(?i)\b(select|insert|update|delete|drop|truncate)\b[\s/*]+.*\b(from|into|table)\b`),
	regexp.MustCompile(`(?i)('|%27)\s*(or|and)\s*('|%27)?\d`),
	regexp.MustCompile(`(?i);\s*(drop|delete|truncate)\b`),
	regexp.MustCompile(`(?i)\bor\b\s+\d+\s*=\s*\d+`),
}

// xssPatterns matches script-injection fragments in query strings.
var xssPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)<\s*script`),
	regexp.MustCompile(`(?i)javascript\s*:`),
	regexp.MustCompile(`(?i)on(load|error|click|mouseover|focus)\s*=`),
	regexp.MustCompile(`(?i)<\s*(iframe|object|embed)`),
}

// traversalPatterns matches path traversal in raw and percent-encoded form.
var traversalPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\.\.[/\\]`),
	regexp.MustCompile(`(?i)(%2e%2e|\.%2e|%2e\.|\.\.)(%2f|%5c)`),
	regexp.MustCompile(`(?i)(%2e%2e|\.%2e|%2e\.)[/\\]`),
	regexp.MustCompile(`(?i)%252e%252e`),
}

// CheckSuspiciousActivity scans the request's user agent, query string, and
// path against fixed heuristics. First match wins. Injection patterns run
// against the decoded query; traversal patterns also run against the raw
// form to catch double encoding.
func CheckSuspiciousActivity(r *http.Request) Finding {
	if reason, bad := scanUserAgent(r.UserAgent()); bad {
		return Finding{Suspicious: true, Reason: reason, Severity: audit.SeverityLow}
	}

	rawQuery := r.URL.RawQuery
	query := decoded(rawQuery)
	for _, p := range sqlInjectionPatterns {
		if p.MatchString(query) {
			return Finding{Suspicious: true, Reason: "sql injection pattern in query", Severity: audit.SeverityHigh}
		}
	}
	for _, p := range xssPatterns {
		if p.MatchString(query) {
			return Finding{Suspicious: true, Reason: "xss pattern in query", Severity: audit.SeverityHigh}
		}
	}

	targets := []string{
		r.URL.EscapedPath() + "?" + rawQuery,
		r.URL.Path + "?" + query,
	}
	for _, target := range targets {
		for _, p := range traversalPatterns {
			if p.MatchString(target) {
				return Finding{Suspicious: true, Reason: "path traversal attempt", Severity: audit.SeverityHigh}
			}
		}
	}

	return Finding{}
}

// decoded unescapes one percent-encoding layer, falling back to the raw
// string when the encoding is malformed.
func decoded(s string) string {
	out, err := url.QueryUnescape(s)
	if err != nil {
		return s
	}
	return out
}

func scanUserAgent(ua string) (string, bool) {
	trimmed := strings.TrimSpace(ua)
	if trimmed == "" {
		return "empty user agent", true
	}
	if botSignatures.MatchString(trimmed) {
		return "bot user agent signature", true
	}
	if parsed := useragent.New(trimmed); parsed.Bot() {
		return "crawler user agent", true
	}
	return "", false
}
