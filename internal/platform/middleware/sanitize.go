package middleware

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

const maxHeaderValueSize = 8 << 10

var scriptPattern = regexp.MustCompile(`(?i)(<script|javascript\s*:|on\w+\s*=)`)

// Sanitize rejects requests carrying path traversal, null bytes, header
// injection or script fragments in query parameters. Search text is echoed
// back in the recent-search list, so script fragments are refused up front.
func Sanitize(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			path := req.URL.Path
			raw := req.URL.RawPath
			if raw == "" {
				raw = path
			}

			if containsPathTraversal(path) || containsPathTraversal(raw) {
				return reject(logger, c, "path traversal detected")
			}
			if containsNullByte(path) || containsNullByte(raw) {
				return reject(logger, c, "null byte in path")
			}
			for name, values := range req.Header {
				for _, v := range values {
					if len(v) > maxHeaderValueSize {
						return reject(logger, c, "header value too large: "+name)
					}
					if strings.ContainsAny(v, "\r\n") {
						return reject(logger, c, "header injection detected: "+name)
					}
				}
			}
			for key, values := range req.URL.Query() {
				for _, v := range values {
					if containsNullByte(key) || containsNullByte(v) {
						return reject(logger, c, "null byte in query parameter")
					}
					if scriptPattern.MatchString(key) || scriptPattern.MatchString(v) {
						return reject(logger, c, "script content in query parameter")
					}
				}
			}
			return next(c)
		}
	}
}

func reject(logger zerolog.Logger, c echo.Context, reason string) error {
	logger.Warn().
		Str("path", c.Request().URL.Path).
		Str("remote_ip", c.RealIP()).
		Str("reason", reason).
		Msg("request rejected")
	return echo.NewHTTPError(http.StatusBadRequest, reason)
}

func containsPathTraversal(s string) bool {
	lower := strings.ToLower(s)
	return strings.Contains(s, "..") || strings.Contains(lower, "%2e%2e") || strings.Contains(lower, "%252e")
}

func containsNullByte(s string) bool {
	return strings.ContainsRune(s, '\x00') || strings.Contains(strings.ToLower(s), "%00")
}
