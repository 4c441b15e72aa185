package config

import "time"

// Marketplace hosts per environment
const (
	ProductionAPIURL = "https://partner.shopeemobile.com"
	SandboxAPIURL    = "https://partner.test-stable.shopeemobile.com"
)

// ShopeeConfig holds marketplace credentials and environment
type ShopeeConfig struct {
	// Base URL; empty means derive from IsSandbox
	APIURL string `mapstructure:"api_url" validate:"omitempty,url"`

	// Developer identity used to sign every request
	PartnerID  int64  `mapstructure:"partner_id"`
	PartnerKey string `mapstructure:"partner_key"`

	// Process-level sandbox flag; a shop's company column overrides it
	IsSandbox bool `mapstructure:"is_sandbox"`

	// Request timeout for marketplace calls
	Timeout time.Duration `mapstructure:"timeout"`

	// Client-side rate limiting
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

// RateLimitConfig holds token-bucket rate limiting configuration
type RateLimitConfig struct {
	// Maximum requests per second
	Requests int `mapstructure:"requests" validate:"omitempty,min=1"`

	// Burst size for the token bucket
	Burst int `mapstructure:"burst" validate:"omitempty,min=1"`
}

// BaseURL resolves the marketplace host for the given sandbox setting
func (c *ShopeeConfig) BaseURL(sandbox bool) string {
	if c.APIURL != "" {
		return c.APIURL
	}
	if sandbox {
		return SandboxAPIURL
	}
	return ProductionAPIURL
}
