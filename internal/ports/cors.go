package ports

import (
	"fmt"
	"net/http"
	"strings"
)

// Browser origins allowed to call the API: https on a listed domain or any of
// its subdomains
type AllowedOrigins struct {
	domains []string
}

func NewAllowedOrigins(domains ...string) (*AllowedOrigins, error) {
	for _, domain := range domains {
		if domain == "" {
			return nil, fmt.Errorf("allowed domain must not be empty")
		}
		if strings.HasPrefix(domain, ".") {
			return nil, fmt.Errorf("allowed domain %s should not start with a dot", domain)
		}
		if strings.Contains(domain, "://") {
			return nil, fmt.Errorf("allowed domain %s should not contain a scheme", domain)
		}
	}
	return &AllowedOrigins{domains: domains}, nil
}

func (a *AllowedOrigins) Allows(origin string) bool {
	host, ok := strings.CutPrefix(origin, "https://")
	if !ok {
		return false
	}

	for _, domain := range a.domains {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	return false
}

func BuildCORSMiddleware(allowedOrigins *AllowedOrigins) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if !allowedOrigins.Allows(origin) {
				next(w, r)
				return
			}

			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Add("Vary", "Origin")

			if r.Method == http.MethodOptions {
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
				w.Header().Set("Access-Control-Max-Age", "600")
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next(w, r)
		}
	}
}

// Answers preflight requests
func BuildCORSHandler(allowedOrigins *AllowedOrigins) http.HandlerFunc {
	return BuildCORSMiddleware(allowedOrigins)(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
}
