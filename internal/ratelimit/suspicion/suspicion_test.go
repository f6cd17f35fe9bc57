package suspicion

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"kopguard/internal/audit"
)

const browserUA = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0 Safari/537.36"

func TestCleanBrowserRequestIsNotSuspicious(t *testing.T) {
	req := httptest.NewRequest("GET", "/api/v1/savings?page=2&per_page=20", nil)
	req.Header.Set("User-Agent", browserUA)

	finding := CheckSuspiciousActivity(req)
	assert.False(t, finding.Suspicious)
	assert.Empty(t, finding.Reason)
}

func TestBotUserAgents(t *testing.T) {
	tests := []struct {
		name string
		ua   string
	}{
		{name: "curl", ua: "curl/8.5.0"},
		{name: "python requests", ua: "python-requests/2.31.0"},
		{name: "sqlmap", ua: "sqlmap/1.7"},
		{name: "googlebot", ua: "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)"},
		{name: "empty", ua: ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/v1/products", nil)
			if tc.ua != "" {
				req.Header.Set("User-Agent", tc.ua)
			}

			finding := CheckSuspiciousActivity(req)
			assert.True(t, finding.Suspicious)
			assert.Equal(t, audit.SeverityLow, finding.Severity)
		})
	}
}

func TestSQLInjectionInQuery(t *testing.T) {
	targets := []string{
		"/api/v1/members?q=1%27%20OR%20%271%27=%271",
		"/api/v1/members?q=1+UNION+SELECT+password+FROM+members",
		"/api/v1/members?q=x;DROP+TABLE+members",
		"/api/v1/members?id=1+OR+1=1",
	}
	for _, target := range targets {
		req := httptest.NewRequest("GET", target, nil)
		req.Header.Set("User-Agent", browserUA)

		finding := CheckSuspiciousActivity(req)
		assert.True(t, finding.Suspicious, "target %s", target)
		assert.Equal(t, "sql injection pattern in query", finding.Reason, "target %s", target)
		assert.Equal(t, audit.SeverityHigh, finding.Severity)
	}
}

func TestXSSInQuery(t *testing.T) {
	targets := []string{
		"/search?q=%3Cscript%3Ealert(1)%3C/script%3E",
		"/search?q=javascript:alert(1)",
		"/search?q=%3Cimg%20onerror=alert(1)%3E",
	}
	for _, target := range targets {
		req := httptest.NewRequest("GET", target, nil)
		req.Header.Set("User-Agent", browserUA)

		finding := CheckSuspiciousActivity(req)
		assert.True(t, finding.Suspicious, "target %s", target)
		assert.Equal(t, "xss pattern in query", finding.Reason, "target %s", target)
	}
}

func TestPathTraversal(t *testing.T) {
	targets := []string{
		"/files?name=../../etc/passwd",
		"/files?name=..%2f..%2fetc%2fpasswd",
		"/files?name=%2e%2e%2fetc%2fpasswd",
	}
	for _, target := range targets {
		req := httptest.NewRequest("GET", target, nil)
		req.Header.Set("User-Agent", browserUA)

		finding := CheckSuspiciousActivity(req)
		assert.True(t, finding.Suspicious, "target %s", target)
		assert.Equal(t, "path traversal attempt", finding.Reason, "target %s", target)
		assert.Equal(t, audit.SeverityHigh, finding.Severity)
	}
}
