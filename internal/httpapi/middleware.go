package httpapi

import (
	"crypto/subtle"
	"regexp"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/limiter"
	"github.com/google/uuid"
)

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
)

var validRequestIDPattern = regexp.MustCompile(`^[0-9a-zA-Z-]{1,64}$`)

// requestID mirrors stronghold's middleware.RequestID: trusts a
// client-supplied X-Request-ID only if it matches the safe pattern,
// otherwise mints a UUID, and stamps both Locals and the response header.
func requestID() fiber.Handler {
	return func(c fiber.Ctx) error {
		id := c.Get(requestIDHeader)
		if id == "" || !validRequestIDPattern.MatchString(id) {
			id = uuid.New().String()
		}
		c.Locals(requestIDKey, id)
		c.Set(requestIDHeader, id)
		return c.Next()
	}
}

// rateLimit is the general limiter, keyed by IP, exempting /healthz and
// /readyz the way stronghold's RateLimitMiddleware exempts /health*
// (Supplement A).
func rateLimit(maxRequests int, windowSeconds int) fiber.Handler {
	if maxRequests <= 0 {
		return func(c fiber.Ctx) error { return c.Next() }
	}
	return limiter.New(limiter.Config{
		Max:          maxRequests,
		Expiration:   time.Duration(windowSeconds) * time.Second,
		KeyGenerator: func(c fiber.Ctx) string { return c.IP() },
		LimitReached: func(c fiber.Ctx) error {
			return errJSON(c, fiber.StatusTooManyRequests, ecBankSoftExceptionGeneric, "rate limit exceeded")
		},
		Next: func(c fiber.Ctx) bool {
			return strings.HasPrefix(c.Path(), "/healthz") || strings.HasPrefix(c.Path(), "/readyz")
		},
	})
}

// bearerAuth enforces nexus-httpd.auth_method (spec §4.9): "none" skips
// the check entirely; "bearer-token+<token>" requires a matching
// Authorization: Bearer header, compared in constant time. Spec §4.9
// distinguishes three failure shapes: the header absent entirely (401
// GENERIC_PARAMETER_MISSING), present but not a "Bearer <token>" scheme
// (400 GENERIC_HTTP_HEADERS_MALFORMED), and present, well-formed, but
// wrong (401 generic unauthorized).
func bearerAuth(token string, enabled bool) fiber.Handler {
	return func(c fiber.Ctx) error {
		if !enabled {
			return c.Next()
		}
		if strings.HasPrefix(c.Path(), "/healthz") || strings.HasPrefix(c.Path(), "/readyz") {
			return c.Next()
		}

		header := c.Get("Authorization")
		if header == "" {
			return errJSON(c, fiber.StatusUnauthorized, ecGenericParameterMissing, "missing Authorization header")
		}
		const prefix = "Bearer "
		if !strings.HasPrefix(header, prefix) {
			return errJSON(c, fiber.StatusBadRequest, ecGenericHTTPHeadersMalformed, "Authorization header is not a Bearer token")
		}
		presented := strings.TrimPrefix(header, prefix)
		if subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
			return errJSON(c, fiber.StatusUnauthorized, ecGenericUnauthorized, "invalid bearer token")
		}
		return c.Next()
	}
}
