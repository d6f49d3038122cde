package httpmiddleware

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CORSConfig is the subset of CORS settings exposed in configuration.
type CORSConfig struct {
	// AllowOrigins is the origin allow list. Empty or "*" allows any origin.
	AllowOrigins     []string
	AllowHeaders     []string
	ExposeHeaders    []string
	AllowCredentials bool
	MaxAge           time.Duration
}

// CORS answers preflight requests and sets CORS headers. Credentials are
// never combined with a wildcard origin: the request origin is echoed
// instead.
func CORS(cfg CORSConfig) gin.HandlerFunc {
	c := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     cfg.AllowHeaders,
		ExposeHeaders:    cfg.ExposeHeaders,
		AllowCredentials: cfg.AllowCredentials,
		MaxAge:           cfg.MaxAge,
	}

	allowAll := len(cfg.AllowOrigins) == 0
	for _, o := range cfg.AllowOrigins {
		if o == "*" {
			allowAll = true
		}
	}
	switch {
	case allowAll && cfg.AllowCredentials:
		c.AllowOriginFunc = func(string) bool { return true }
	case allowAll:
		c.AllowAllOrigins = true
	default:
		c.AllowOrigins = cfg.AllowOrigins
	}
	return cors.New(c)
}
