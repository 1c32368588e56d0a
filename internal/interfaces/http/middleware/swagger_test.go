package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func docsRouter(t *testing.T, cfg SwaggerConfig) *gin.Engine {
	t.Helper()
	guard, err := SwaggerAccess(cfg)
	require.NoError(t, err)

	router := gin.New()
	router.GET("/swagger/*any", guard, okHandler)
	return router
}

func docsRequest(remoteAddr string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/swagger/index.html", nil)
	req.RemoteAddr = remoteAddr
	return req
}

func TestSwaggerAccess(t *testing.T) {
	tests := []struct {
		name       string
		cfg        SwaggerConfig
		remoteAddr string
		expected   int
	}{
		{"disabled", SwaggerConfig{Enabled: false}, "127.0.0.1:5000", http.StatusNotFound},
		{"enabled without allowlist", SwaggerConfig{Enabled: true}, "203.0.113.9:5000", http.StatusOK},
		{"exact ip allowed", SwaggerConfig{Enabled: true, AllowedIPs: []string{"127.0.0.1"}}, "127.0.0.1:5000", http.StatusOK},
		{"cidr allowed", SwaggerConfig{Enabled: true, AllowedIPs: []string{"10.0.0.0/8"}}, "10.20.30.40:5000", http.StatusOK},
		{"ipv6 cidr allowed", SwaggerConfig{Enabled: true, AllowedIPs: []string{"fd00::/8"}}, "[fd12::1]:5000", http.StatusOK},
		{"outside allowlist", SwaggerConfig{Enabled: true, AllowedIPs: []string{"10.0.0.0/8", "127.0.0.1"}}, "192.168.1.7:5000", http.StatusForbidden},
		{"blank entries allow all", SwaggerConfig{Enabled: true, AllowedIPs: []string{" "}}, "192.168.1.7:5000", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(docsRouter(t, tt.cfg), docsRequest(tt.remoteAddr))
			assert.Equal(t, tt.expected, w.Code)
			if tt.expected != http.StatusOK {
				assert.Contains(t, w.Body.String(), `"success":false`)
			}
		})
	}
}

func TestSwaggerAccess_RejectsInvalidEntries(t *testing.T) {
	for _, entry := range []string{"10.0.0.0/33", "not-an-ip"} {
		_, err := SwaggerAccess(SwaggerConfig{Enabled: true, AllowedIPs: []string{entry}})
		assert.Error(t, err, entry)
	}
}
