package mw

import (
	"net/http"
	"strings"

	"dexanalytics/internal/config"
)

type CORSMiddleware struct {
	origins map[string]struct{}
	any     bool
	methods string
	headers string
}

// NewCORS returns nil when CORS is disabled; Handler of nil passes through
func NewCORS(cfg *config.CORSConfig) *CORSMiddleware {
	if cfg == nil || !cfg.Enabled {
		return nil
	}

	c := &CORSMiddleware{
		origins: make(map[string]struct{}, len(cfg.Origins)),
		methods: joinOrDefault(cfg.Methods, "GET, OPTIONS"),
		headers: joinOrDefault(cfg.Headers, "Authorization, Content-Type"),
	}
	for _, o := range cfg.Origins {
		if o == "*" {
			c.any = true
		}
		c.origins[strings.TrimSuffix(o, "/")] = struct{}{}
	}
	if len(cfg.Origins) == 0 {
		c.any = true
	}
	return c
}

func (c *CORSMiddleware) Handler(next http.Handler) http.Handler {
	if c == nil {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		w.Header().Add("Vary", "Origin")

		if origin != "" && c.allowed(origin) {
			if c.any {
				w.Header().Set("Access-Control-Allow-Origin", "*")
			} else {
				w.Header().Set("Access-Control-Allow-Origin", origin)
			}
			w.Header().Set("Access-Control-Allow-Methods", c.methods)
			w.Header().Set("Access-Control-Allow-Headers", c.headers)
		}

		// preflight
		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (c *CORSMiddleware) allowed(origin string) bool {
	if c.any {
		return true
	}
	_, ok := c.origins[origin]
	return ok
}

func joinOrDefault(v []string, def string) string {
	out := make([]string, 0, len(v))
	for _, s := range v {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return def
	}
	return strings.Join(out, ", ")
}
