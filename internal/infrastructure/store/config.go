package store

import (
	"errors"
	"net/url"
	"time"
)

// defaultMaxResponseBytes caps how much of a store response is read (5MB)
const defaultMaxResponseBytes = 5 * 1024 * 1024

// defaultTimeout bounds every store API call
const defaultTimeout = 30 * time.Second

// Config holds the WooCommerce REST API connection settings
type Config struct {
	// BaseURL is the site root, e.g. "https://shop.example.com"
	BaseURL string
	// ConsumerKey and ConsumerSecret are the REST API credentials
	ConsumerKey    string
	ConsumerSecret string
	// Timeout bounds each API call
	Timeout time.Duration
	// MaxResponseBytes caps how much of a response body is read
	MaxResponseBytes int64
}

// Validate checks the configuration and fills in defaults
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return errors.New("store: base URL is required")
	}
	parsed, err := url.Parse(c.BaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return errors.New("store: base URL must be an absolute URL")
	}
	if c.ConsumerKey == "" || c.ConsumerSecret == "" {
		return errors.New("store: consumer key and secret are required")
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.MaxResponseBytes <= 0 {
		c.MaxResponseBytes = defaultMaxResponseBytes
	}
	return nil
}
