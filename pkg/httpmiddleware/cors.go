package httpmiddleware

import (
	"net/http"
	"strconv"
	"strings"
)

// CORSConfig configures the CORS middleware behaviour.
type CORSConfig struct {
	// AllowOrigins lists origins allowed to make cross-origin requests. An
	// empty list or "*" allows all. An entry may wildcard one leading
	// subdomain label, e.g. "https://*.example.com".
	AllowOrigins []string

	// AllowMethods defaults to "GET, POST, PUT, PATCH, DELETE, OPTIONS".
	AllowMethods []string

	// AllowHeaders lists the request headers clients may use. If empty, the
	// preflight's Access-Control-Request-Headers is echoed.
	AllowHeaders []string

	// ExposeHeaders lists response headers scripts may read. Defaults to
	// DefaultExposeHeaders.
	ExposeHeaders []string

	// AllowCredentials never sends the "*" origin; the request origin is
	// echoed instead.
	AllowCredentials bool

	// MaxAge is the preflight cache lifetime in seconds. Zero omits the
	// header; a negative value sends "0".
	MaxAge int
}

// DefaultExposeHeaders are the response headers the storefront clients read:
// the new cart location, tracing id, replay marker and throttling state.
var DefaultExposeHeaders = []string{
	"Location",
	"X-Request-ID",
	"Idempotent-Replayed",
	"Retry-After",
	"X-RateLimit-Limit",
	"X-RateLimit-Remaining",
	"X-RateLimit-Reset",
}

// originMatcher resolves the Access-Control-Allow-Origin value for a request
// origin. Exact entries match case-insensitively and are echoed in their
// configured case.
type originMatcher struct {
	any      bool
	exact    map[string]string // lowercase -> configured
	suffixes []wildcardOrigin
}

type wildcardOrigin struct {
	scheme string // "https://"
	suffix string // ".example.com"
}

func newOriginMatcher(origins []string, credentials bool) originMatcher {
	m := originMatcher{any: len(origins) == 0, exact: make(map[string]string, len(origins))}
	for _, o := range origins {
		switch {
		case o == "*":
			m.any = true
		case strings.Contains(o, "://*."):
			scheme, host, _ := strings.Cut(strings.ToLower(o), "*")
			m.suffixes = append(m.suffixes, wildcardOrigin{scheme: scheme, suffix: host})
		default:
			m.exact[strings.ToLower(o)] = o
		}
	}
	// Browsers reject "*" with credentials; fall back to echoing listed origins.
	if credentials {
		m.any = false
	}
	return m
}

// match returns "" when origin is not allowed.
func (m originMatcher) match(origin string) string {
	if m.any {
		return "*"
	}
	lower := strings.ToLower(origin)
	if o, ok := m.exact[lower]; ok {
		return o
	}
	for _, w := range m.suffixes {
		rest, ok := strings.CutPrefix(lower, w.scheme)
		if !ok {
			continue
		}
		label, found := strings.CutSuffix(rest, w.suffix)
		if found && label != "" && !strings.ContainsAny(label, "./:") {
			return origin
		}
	}
	return ""
}

// CORS handles Cross-Origin Resource Sharing for the storefront frontend and
// admin panel. Preflight requests are answered with 204 and never reach the
// router.
func CORS(cfg CORSConfig) Middleware {
	origins := newOriginMatcher(cfg.AllowOrigins, cfg.AllowCredentials)

	allowMethods := strings.Join(cfg.AllowMethods, ", ")
	if allowMethods == "" {
		allowMethods = "GET, POST, PUT, PATCH, DELETE, OPTIONS"
	}
	allowHeaders := strings.Join(cfg.AllowHeaders, ", ")
	expose := cfg.ExposeHeaders
	if expose == nil {
		expose = DefaultExposeHeaders
	}
	exposeHeaders := strings.Join(expose, ", ")

	var maxAge string
	switch {
	case cfg.MaxAge > 0:
		maxAge = strconv.Itoa(cfg.MaxAge)
	case cfg.MaxAge < 0:
		maxAge = "0"
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			origin := r.Header.Get("Origin")
			if !origins.any {
				h.Add("Vary", "Origin")
			}
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}
			allowOrigin := origins.match(origin)

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				if origins.any {
					h.Add("Vary", "Origin")
				}
				h.Add("Vary", "Access-Control-Request-Method")
				h.Add("Vary", "Access-Control-Request-Headers")

				if allowOrigin != "" {
					h.Set("Access-Control-Allow-Origin", allowOrigin)
					h.Set("Access-Control-Allow-Methods", allowMethods)
					if allowHeaders != "" {
						h.Set("Access-Control-Allow-Headers", allowHeaders)
					} else if rh := r.Header.Get("Access-Control-Request-Headers"); rh != "" {
						h.Set("Access-Control-Allow-Headers", rh)
					}
					if cfg.AllowCredentials {
						h.Set("Access-Control-Allow-Credentials", "true")
					}
					if maxAge != "" {
						h.Set("Access-Control-Max-Age", maxAge)
					}
				}
				w.WriteHeader(http.StatusNoContent)
				return
			}

			if allowOrigin != "" {
				h.Set("Access-Control-Allow-Origin", allowOrigin)
				if cfg.AllowCredentials {
					h.Set("Access-Control-Allow-Credentials", "true")
				}
				if exposeHeaders != "" {
					h.Set("Access-Control-Expose-Headers", exposeHeaders)
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
