package middlewares

import (
	"net"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// TrustedHost rejects requests whose Host header is not in allowed.
// "*" or an empty list allows any host; "*.example.com" allows subdomains.
func TrustedHost(allowed []string) gin.HandlerFunc {
	allowAll := len(allowed) == 0
	exact := make(map[string]struct{}, len(allowed))
	var suffixes []string

	for _, h := range allowed {
		h = strings.ToLower(strings.TrimSpace(h))

		switch {
		case h == "*":
			allowAll = true
		case strings.HasPrefix(h, "*."):
			suffixes = append(suffixes, h[1:])
		case h != "":
			exact[h] = struct{}{}
		}
	}

	return func(c *gin.Context) {
		if allowAll {
			c.Next()
			return
		}

		host := hostOnly(c.Request.Host)

		if _, ok := exact[host]; ok {
			c.Next()
			return
		}

		for _, s := range suffixes {
			if strings.HasSuffix(host, s) {
				c.Next()
				return
			}
		}

		abortWithError(c, http.StatusBadRequest, "invalid_host", "Invalid host header")
	}
}

func hostOnly(hostport string) string {
	hostport = strings.ToLower(hostport)

	if h, _, err := net.SplitHostPort(hostport); err == nil {
		return strings.Trim(h, "[]")
	}

	return strings.Trim(hostport, "[]")
}
