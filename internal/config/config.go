// Package config handles loading and validation of service configuration.
// Supports both development (env vars) and production (Secret Manager) modes.
package config

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"

	"cart-proxy/internal/model"
)

// Defaults for the tuning knobs. The debounce windows and staleness window
// mirror what the storefront shipped with.
const (
	DefaultAddDebounce    = 300 * time.Millisecond
	DefaultUpdateDebounce = 500 * time.Millisecond
	DefaultCacheStaleness = 5 * time.Minute
)

// Config holds all service configuration.
// Environment determines whether store credentials load from env vars
// (development) or Secret Manager (production).
type Config struct {
	// Server settings
	Port        string
	Environment string // "development" or "production"
	LogLevel    string // "debug", "info", "warn", "error"

	// GCP settings (required in production)
	GCPProject string
	StoreID    string // secret name holding the store config

	// Store-specific configuration (loaded from secrets in production)
	Store StoreConfig

	// Cart engine tuning
	Cart CartConfig
}

// StoreConfig points the proxy at one upstream retail API.
type StoreConfig struct {
	// APIURL is the upstream REST base URL exposing /carts/, /products/,
	// /users/oauth/.
	APIURL string `json:"api_url"`

	// BrowserFingerprint enables the Chrome TLS fingerprint on upstream
	// calls. Needed when the store sits behind a fingerprinting CDN.
	BrowserFingerprint bool `json:"browser_fingerprint,omitempty"`

	// DeliveryOptions offered during checkout. Falls back to a standard
	// set when empty.
	DeliveryOptions []model.DeliveryOption `json:"delivery_options,omitempty"`
}

// CartConfig tunes the cart subsystem.
type CartConfig struct {
	// DataDir is where the slot store keeps guest carts and tokens.
	DataDir string `json:"data_dir"`

	// CacheBackend selects the cart read cache: "memory" (default) or
	// "redis" for multi-replica deployments.
	CacheBackend string `json:"cache_backend,omitempty"`
	RedisAddr    string `json:"redis_addr,omitempty"`

	// Debounce windows for the optimistic engine, in milliseconds in JSON.
	AddDebounceMS    int `json:"add_debounce_ms,omitempty"`
	UpdateDebounceMS int `json:"update_debounce_ms,omitempty"`

	// CacheStalenessMS bounds how long a cached cart read stays fresh.
	CacheStalenessMS int `json:"cache_staleness_ms,omitempty"`

	// MinClientVersion gates storefront clients by semver; empty disables
	// the gate.
	MinClientVersion string `json:"min_client_version,omitempty"`
}

// AddDebounce returns the add window as a duration.
func (c CartConfig) AddDebounce() time.Duration {
	if c.AddDebounceMS <= 0 {
		return DefaultAddDebounce
	}
	return time.Duration(c.AddDebounceMS) * time.Millisecond
}

// UpdateDebounce returns the update/remove window as a duration.
func (c CartConfig) UpdateDebounce() time.Duration {
	if c.UpdateDebounceMS <= 0 {
		return DefaultUpdateDebounce
	}
	return time.Duration(c.UpdateDebounceMS) * time.Millisecond
}

// CacheStaleness returns the cache freshness window as a duration.
func (c CartConfig) CacheStaleness() time.Duration {
	if c.CacheStalenessMS <= 0 {
		return DefaultCacheStaleness
	}
	return time.Duration(c.CacheStalenessMS) * time.Millisecond
}

// Load reads configuration from file, environment, or Secret Manager.
// Priority: CONFIG_FILE (if set) → ENV vars / Secret Manager.
// Validates all required fields and returns an error if any are missing.
func Load(ctx context.Context) (*Config, error) {
	// If CONFIG_FILE is set, load everything from the JSON file
	if configPath := os.Getenv("CONFIG_FILE"); configPath != "" {
		return loadFromFile(configPath)
	}

	cfg := &Config{
		Port:        envOrDefault("PORT", "8080"),
		Environment: envOrDefault("ENVIRONMENT", "development"),
		LogLevel:    envOrDefault("LOG_LEVEL", "info"),
		GCPProject:  os.Getenv("GCP_PROJECT"),
		StoreID:     os.Getenv("STORE_ID"),
	}

	var err error
	if cfg.Environment == "production" {
		if cfg.GCPProject == "" {
			return nil, fmt.Errorf("GCP_PROJECT required in production environment")
		}
		if cfg.StoreID == "" {
			return nil, fmt.Errorf("STORE_ID required in production environment")
		}
		err = cfg.loadFromSecretManager(ctx)
	} else {
		err = cfg.loadFromEnv()
	}
	if err != nil {
		return nil, fmt.Errorf("loading store config: %w", err)
	}

	cfg.Cart = cartConfigFromEnv()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFromFile reads all configuration from a JSON file.
// Used for local development to avoid multiple ENV vars.
func loadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var fileConfig struct {
		Port        string      `json:"port"`
		Environment string      `json:"environment"`
		LogLevel    string      `json:"log_level"`
		StoreID     string      `json:"store_id"`
		Store       StoreConfig `json:"store"`
		Cart        CartConfig  `json:"cart"`
	}
	if err := json.Unmarshal(data, &fileConfig); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg := &Config{
		Port:        withDefault(fileConfig.Port, "8080"),
		Environment: withDefault(fileConfig.Environment, "development"),
		LogLevel:    withDefault(fileConfig.LogLevel, "info"),
		StoreID:     fileConfig.StoreID,
		Store:       fileConfig.Store,
		Cart:        fileConfig.Cart,
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFromSecretManager fetches the store config from GCP Secret Manager.
// Secret name format: projects/{project}/secrets/{store_id}/versions/latest
func (c *Config) loadFromSecretManager(ctx context.Context) error {
	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("creating secret manager client: %w", err)
	}
	defer client.Close()

	secretName := fmt.Sprintf("projects/%s/secrets/%s/versions/latest",
		c.GCPProject, c.StoreID)

	result, err := client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: secretName,
	})
	if err != nil {
		return fmt.Errorf("accessing secret %s: %w", secretName, err)
	}

	if err := json.Unmarshal(result.Payload.Data, &c.Store); err != nil {
		return fmt.Errorf("parsing secret JSON: %w", err)
	}
	return nil
}

// loadFromEnv reads the store config from individual environment variables.
// Used in development mode for local testing.
func (c *Config) loadFromEnv() error {
	c.Store = StoreConfig{
		APIURL:             os.Getenv("STORE_API_URL"),
		BrowserFingerprint: os.Getenv("STORE_BROWSER_FINGERPRINT") == "true",
	}

	if optsJSON := os.Getenv("DELIVERY_OPTIONS"); optsJSON != "" {
		if err := json.Unmarshal([]byte(optsJSON), &c.Store.DeliveryOptions); err != nil {
			return fmt.Errorf("parsing DELIVERY_OPTIONS JSON: %w", err)
		}
	}
	return nil
}

// cartConfigFromEnv reads cart tuning from env vars, leaving zero values
// for the duration accessors to replace with defaults.
func cartConfigFromEnv() CartConfig {
	return CartConfig{
		DataDir:          envOrDefault("CART_DATA_DIR", "./data"),
		CacheBackend:     envOrDefault("CART_CACHE_BACKEND", "memory"),
		RedisAddr:        os.Getenv("CART_REDIS_ADDR"),
		AddDebounceMS:    envInt("CART_ADD_DEBOUNCE_MS"),
		UpdateDebounceMS: envInt("CART_UPDATE_DEBOUNCE_MS"),
		CacheStalenessMS: envInt("CART_CACHE_STALENESS_MS"),
		MinClientVersion: os.Getenv("MIN_CLIENT_VERSION"),
	}
}

// validate checks that all required configuration fields are present.
func (c *Config) validate() error {
	if c.Store.APIURL == "" {
		return fmt.Errorf("store api_url is required")
	}
	if _, err := url.Parse(c.Store.APIURL); err != nil {
		return fmt.Errorf("invalid store api_url: %w", err)
	}

	switch c.Cart.CacheBackend {
	case "", "memory":
	case "redis":
		if c.Cart.RedisAddr == "" {
			return fmt.Errorf("redis_addr is required for the redis cache backend")
		}
	default:
		return fmt.Errorf("unsupported cache backend: %s", c.Cart.CacheBackend)
	}

	if c.Cart.DataDir == "" {
		return fmt.Errorf("cart data_dir is required")
	}
	return nil
}

// DeliveryOptions returns the configured delivery options, or the standard
// fallback set when the store config leaves them out.
func (c *Config) DeliveryOptions() []model.DeliveryOption {
	if len(c.Store.DeliveryOptions) > 0 {
		return c.Store.DeliveryOptions
	}
	return []model.DeliveryOption{
		{ID: "standard", Name: "Standard shipping", Price: 499, Description: "3-5 business days"},
		{ID: "express", Name: "Express shipping", Price: 999, Description: "1-2 business days"},
		{ID: "pickup", Name: "Store pickup", Price: 0, Description: "Ready within 24 hours"},
	}
}

// withDefault returns val if non-empty, otherwise defaultVal.
func withDefault(val, defaultVal string) string {
	if val != "" {
		return val
	}
	return defaultVal
}

// envOrDefault returns the environment variable value or the default if not set.
func envOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// envInt parses an integer env var, returning 0 when unset or malformed.
func envInt(key string) int {
	val := os.Getenv(key)
	if val == "" {
		return 0
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0
	}
	return n
}
