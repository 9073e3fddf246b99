package security

import (
	"net/http"
	"strings"
	"sync/atomic"

	"corredo/internal/log"
)

var suspiciousPatterns = []string{
	"../", "..\\", ".env", "wp-admin", "phpmyadmin",
	"admin.php", "config.php", ".git", ".ssh",
	"eval(", "javascript:", "<script", "union select",
	"etc/passwd", "cmd.exe",
}

var suspiciousAgents = []string{"sqlmap", "nmap", "nikto", "gobuster", "dirb"}

const maxURLLength = 2048

// Detector rejects requests that look like scans or injection attempts.
type Detector struct {
	resolver *ClientIPResolver
	logger   *log.Logger
	rejected atomic.Int64
}

func NewDetector(resolver *ClientIPResolver, logger *log.Logger) *Detector {
	if logger == nil {
		logger = log.Discard()
	}
	return &Detector{resolver: resolver, logger: logger.WithComponent(log.ComponentHTTP)}
}

// Suspicious reports whether r matches a known attack pattern.
func (d *Detector) Suspicious(r *http.Request) bool {
	if len(r.URL.String()) > maxURLLength {
		return true
	}
	switch r.Method {
	case "TRACE", "TRACK", "DEBUG", "CONNECT":
		return true
	}
	path := strings.ToLower(r.URL.Path)
	query := strings.ToLower(r.URL.RawQuery)
	for _, p := range suspiciousPatterns {
		if strings.Contains(path, p) || strings.Contains(query, p) {
			return true
		}
	}
	agent := strings.ToLower(r.UserAgent())
	for _, a := range suspiciousAgents {
		if strings.Contains(agent, a) {
			return true
		}
	}
	return false
}

// Rejected returns how many requests the middleware turned away.
func (d *Detector) Rejected() int64 {
	return d.rejected.Load()
}

// Middleware answers suspicious requests with 404 without reaching the router.
func (d *Detector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if d.Suspicious(r) {
			d.rejected.Add(1)
			d.logger.Warn("Rejected suspicious request",
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path,
				log.FieldClientIP, d.resolver.ClientIP(r),
				log.FieldUserAgent, r.UserAgent())
			http.NotFound(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}
