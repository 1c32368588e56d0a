package ecommerce

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"time"
)

const (
	// ShopeeProductionAPIURL is the production API endpoint
	ShopeeProductionAPIURL = "https://partner.shopeemobile.com"
	// ShopeeSandboxAPIURL is the sandbox API endpoint
	ShopeeSandboxAPIURL = "https://partner.test-stable.shopeemobile.com"

	// DefaultShopeeTimeout is the HTTP timeout applied when none is configured
	DefaultShopeeTimeout = 20 * time.Second
)

// Errors for Shopee configuration
var (
	ErrShopeeConfigMissingPartnerID  = errors.New("shopee: partner id is required")
	ErrShopeeConfigMissingPartnerKey = errors.New("shopee: partner key is required")
)

// ShopeeConfig holds the partner credentials of the Shopee open platform
type ShopeeConfig struct {
	// BaseURL is the API host, without a trailing slash
	BaseURL string
	// PartnerID identifies the partner application
	PartnerID int64
	// PartnerKey is the HMAC key used to sign every request
	PartnerKey string
	// Timeout is the HTTP request timeout
	Timeout time.Duration
}

// NewShopeeConfig creates a production configuration with defaults
func NewShopeeConfig(partnerID int64, partnerKey string) *ShopeeConfig {
	return &ShopeeConfig{
		BaseURL:    ShopeeProductionAPIURL,
		PartnerID:  partnerID,
		PartnerKey: partnerKey,
		Timeout:    DefaultShopeeTimeout,
	}
}

// Validate validates the configuration and fills in defaults
func (c *ShopeeConfig) Validate() error {
	if c.PartnerID <= 0 {
		return ErrShopeeConfigMissingPartnerID
	}
	if c.PartnerKey == "" {
		return ErrShopeeConfigMissingPartnerKey
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.BaseURL == "" {
		c.BaseURL = ShopeeProductionAPIURL
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultShopeeTimeout
	}
	return nil
}

// Sign computes the request signature of a shop-level API call:
// hex(HMAC-SHA256(partnerKey, partnerID + path + timestamp + accessToken + shopID))
func (c *ShopeeConfig) Sign(path string, timestamp int64, accessToken string, shopID int64) string {
	var base strings.Builder
	base.WriteString(strconv.FormatInt(c.PartnerID, 10))
	base.WriteString(path)
	base.WriteString(strconv.FormatInt(timestamp, 10))
	base.WriteString(accessToken)
	base.WriteString(strconv.FormatInt(shopID, 10))

	mac := hmac.New(sha256.New, []byte(c.PartnerKey))
	mac.Write([]byte(base.String()))
	return hex.EncodeToString(mac.Sum(nil))
}
