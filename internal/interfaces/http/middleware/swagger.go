package middleware

import (
	"fmt"
	"net/netip"
	"strings"

	"github.com/erp/ordersync/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// SwaggerConfig controls who may read the API documentation
type SwaggerConfig struct {
	Enabled    bool
	AllowedIPs []string // IPs or CIDRs, empty allows every client
}

// SwaggerAccess gates the documentation routes. Disabled docs answer 404 and
// clients outside AllowedIPs get 403. Operator authentication, when wanted,
// is chained after it on the route.
func SwaggerAccess(cfg SwaggerConfig) (gin.HandlerFunc, error) {
	allowlist, err := parseAllowlist(cfg.AllowedIPs)
	if err != nil {
		return nil, err
	}

	return func(c *gin.Context) {
		if !cfg.Enabled {
			abortWithError(c, dto.ErrCodeNotFound, "API documentation is not available")
			return
		}
		if len(allowlist) > 0 && !allowlisted(allowlist, c.ClientIP()) {
			abortWithError(c, dto.ErrCodeForbidden, "access to API documentation is restricted")
			return
		}
		c.Next()
	}, nil
}

func parseAllowlist(entries []string) ([]netip.Prefix, error) {
	out := make([]netip.Prefix, 0, len(entries))
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if strings.Contains(entry, "/") {
			prefix, err := netip.ParsePrefix(entry)
			if err != nil {
				return nil, fmt.Errorf("swagger allowed ip %q: %w", entry, err)
			}
			out = append(out, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(entry)
		if err != nil {
			return nil, fmt.Errorf("swagger allowed ip %q: %w", entry, err)
		}
		addr = addr.Unmap()
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out, nil
}

func allowlisted(allowlist []netip.Prefix, clientIP string) bool {
	addr, err := netip.ParseAddr(clientIP)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, prefix := range allowlist {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}
