package config

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	defaultEnvFile          = ".env"
	defaultPort             = "8080"
	defaultReadTimeout      = 15 * time.Second
	defaultWriteTimeout     = 30 * time.Second
	defaultIdleTimeout      = 120 * time.Second
	defaultShutdownTimeout  = 10 * time.Second
	defaultCMSTimeout       = 10 * time.Second
	defaultMerchantCurrency = "UAH"
	defaultMerchantLanguage = "UA"
	defaultPayURL           = "https://secure.wayforpay.com/pay?behavior=offline"
	defaultStatusURL        = "https://api.wayforpay.com/api"
	defaultGatewayTimeout   = 15 * time.Second
	defaultStatusRetryDelay = 500 * time.Millisecond
	defaultMailTimeout      = 10 * time.Second
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server   ServerConfig
	CMS      CMSConfig
	Merchant MerchantConfig
	Mail     MailConfig
	Security SecurityConfig
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// CMSConfig points the API at the headless CMS that owns catalog, order and
// user records.
type CMSConfig struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// MerchantConfig holds the payment gateway merchant identity and endpoints.
type MerchantConfig struct {
	Account          string
	Domain           string
	Secret           string
	Currency         string
	Language         string
	ReturnURL        string
	PayURL           string
	StatusURL        string
	Timeout          time.Duration
	StatusRetryDelay time.Duration
}

// MailConfig configures the outbound transactional mail relay.
type MailConfig struct {
	Endpoint string
	Token    string
	Sender   string
	Timeout  time.Duration
}

// SecurityConfig groups request authentication settings.
type SecurityConfig struct {
	JWTSecret string
}

// SecretResolver resolves references to external secrets (e.g. Secret Manager URIs).
type SecretResolver interface {
	ResolveSecret(ctx context.Context, ref string) (string, error)
}

// SecretResolverFunc adapts ordinary functions to SecretResolver.
type SecretResolverFunc func(context.Context, string) (string, error)

// ResolveSecret resolves the secret using the wrapped function.
func (f SecretResolverFunc) ResolveSecret(ctx context.Context, ref string) (string, error) {
	return f(ctx, ref)
}

// ValidationError is returned when required configuration fields are missing or invalid.
type ValidationError struct {
	fields []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the missing/invalid field list.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

// SecretError describes failures while resolving a secret reference.
type SecretError struct {
	Ref string
	Err error
}

// Error implements the error interface.
func (e *SecretError) Error() string {
	return fmt.Sprintf("secret resolution failed for ref %q: %v", e.Ref, e.Err)
}

// Unwrap exposes the underlying error.
func (e *SecretError) Unwrap() error { return e.Err }

var errSecretResolverNotConfigured = errors.New("secret resolver not configured")

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile      string
	envMap       map[string]string
	useSystemEnv bool
	secret       SecretResolver
}

// WithEnvFile overrides the .env file path used for local overrides.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) {
		o.envFile = path
	}
}

// WithEnvMap injects an explicit key/value map for environment lookups. Values in the map
// take precedence over system environment variables.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) {
		o.envMap = values
	}
}

// WithoutSystemEnv disables reading from os.Getenv, relying only on provided maps and .env files.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) {
		o.useSystemEnv = false
	}
}

// WithSecretResolver sets a custom secret resolver used for secret:// references.
func WithSecretResolver(resolver SecretResolver) Option {
	return func(o *loaderOptions) {
		o.secret = resolver
	}
}

// Load assembles the application configuration by combining defaults, .env overrides,
// environment variables, and optional secret manager lookups.
func Load(ctx context.Context, opts ...Option) (Config, error) {
	options := loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
		secret: SecretResolverFunc(func(ctx context.Context, ref string) (string, error) {
			return "", &SecretError{Ref: ref, Err: errSecretResolverNotConfigured}
		}),
	}

	for _, opt := range opts {
		opt(&options)
	}

	dotEnvValues, err := loadDotEnv(options.envFile)
	if err != nil {
		return Config{}, err
	}

	lookup := func(key string) (string, bool) {
		if options.envMap != nil {
			if value, ok := options.envMap[key]; ok {
				return value, true
			}
		}
		if options.useSystemEnv {
			if value, ok := os.LookupEnv(key); ok {
				return value, true
			}
		}
		if dotEnvValues != nil {
			if value, ok := dotEnvValues[key]; ok {
				return value, true
			}
		}
		return "", false
	}

	cfg := Config{
		Server: ServerConfig{
			Port:            stringWithDefault(lookup, "API_SERVER_PORT", defaultPort),
			ReadTimeout:     durationWithDefault(lookup, "API_SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout:    durationWithDefault(lookup, "API_SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:     durationWithDefault(lookup, "API_SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
			ShutdownTimeout: durationWithDefault(lookup, "API_SERVER_SHUTDOWN_TIMEOUT", defaultShutdownTimeout),
		},
		CMS: CMSConfig{
			BaseURL: strings.TrimRight(stringWithDefault(lookup, "API_CMS_BASE_URL", ""), "/"),
			Token:   stringWithDefault(lookup, "API_CMS_TOKEN", ""),
			Timeout: durationWithDefault(lookup, "API_CMS_TIMEOUT", defaultCMSTimeout),
		},
		Merchant: MerchantConfig{
			Account:          stringWithDefault(lookup, "API_MERCHANT_ACCOUNT", ""),
			Domain:           stringWithDefault(lookup, "API_MERCHANT_DOMAIN", ""),
			Secret:           stringWithDefault(lookup, "API_MERCHANT_SECRET", ""),
			Currency:         stringWithDefault(lookup, "API_MERCHANT_CURRENCY", defaultMerchantCurrency),
			Language:         stringWithDefault(lookup, "API_MERCHANT_LANGUAGE", defaultMerchantLanguage),
			ReturnURL:        stringWithDefault(lookup, "API_MERCHANT_RETURN_URL", ""),
			PayURL:           stringWithDefault(lookup, "API_MERCHANT_PAY_URL", defaultPayURL),
			StatusURL:        stringWithDefault(lookup, "API_MERCHANT_STATUS_URL", defaultStatusURL),
			Timeout:          durationWithDefault(lookup, "API_MERCHANT_TIMEOUT", defaultGatewayTimeout),
			StatusRetryDelay: durationWithDefault(lookup, "API_MERCHANT_STATUS_RETRY_DELAY", defaultStatusRetryDelay),
		},
		Mail: MailConfig{
			Endpoint: stringWithDefault(lookup, "API_MAIL_ENDPOINT", ""),
			Token:    stringWithDefault(lookup, "API_MAIL_TOKEN", ""),
			Sender:   stringWithDefault(lookup, "API_MAIL_SENDER", ""),
			Timeout:  durationWithDefault(lookup, "API_MAIL_TIMEOUT", defaultMailTimeout),
		},
		Security: SecurityConfig{
			JWTSecret: stringWithDefault(lookup, "API_SECURITY_JWT_SECRET", ""),
		},
	}

	// Resolve secrets when values reference Secret Manager.
	secretFields := []struct {
		name  string
		field *string
	}{
		{"CMS.Token", &cfg.CMS.Token},
		{"Merchant.Secret", &cfg.Merchant.Secret},
		{"Mail.Token", &cfg.Mail.Token},
		{"Security.JWTSecret", &cfg.Security.JWTSecret},
	}
	for _, target := range secretFields {
		resolved, err := resolveSecret(ctx, *target.field, options.secret)
		if err != nil {
			return Config{}, err
		}
		*target.field = resolved
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func resolveSecret(ctx context.Context, value string, resolver SecretResolver) (string, error) {
	if value == "" || !isSecretReference(value) {
		return value, nil
	}
	normalized := normalizeSecretReference(value)
	if resolver == nil {
		return "", &SecretError{Ref: normalized, Err: errSecretResolverNotConfigured}
	}
	secret, err := resolver.ResolveSecret(ctx, normalized)
	if err != nil {
		return "", &SecretError{Ref: normalized, Err: err}
	}
	return secret, nil
}

func validateConfig(cfg Config) error {
	var missing []string

	if cfg.Server.Port == "" {
		missing = append(missing, "Server.Port")
	}
	if cfg.CMS.BaseURL == "" {
		missing = append(missing, "CMS.BaseURL")
	}
	if cfg.CMS.Token == "" {
		missing = append(missing, "CMS.Token")
	}
	if cfg.Merchant.Account == "" {
		missing = append(missing, "Merchant.Account")
	}
	if cfg.Merchant.Domain == "" {
		missing = append(missing, "Merchant.Domain")
	}
	if cfg.Merchant.Secret == "" {
		missing = append(missing, "Merchant.Secret")
	}
	if cfg.Merchant.ReturnURL == "" {
		missing = append(missing, "Merchant.ReturnURL")
	}
	if cfg.Mail.Endpoint == "" {
		missing = append(missing, "Mail.Endpoint")
	}
	if cfg.Mail.Sender == "" {
		missing = append(missing, "Mail.Sender")
	}
	if cfg.Security.JWTSecret == "" {
		missing = append(missing, "Security.JWTSecret")
	}

	if len(missing) > 0 {
		return &ValidationError{fields: missing}
	}
	return nil
}

func isSecretReference(value string) bool {
	trimmed := strings.TrimSpace(value)
	return strings.HasPrefix(trimmed, "secret://") || strings.HasPrefix(trimmed, "sm://")
}

func normalizeSecretReference(value string) string {
	trimmed := strings.TrimSpace(value)
	if strings.HasPrefix(trimmed, "sm://") {
		return "secret://" + strings.TrimPrefix(trimmed, "sm://")
	}
	return trimmed
}

func loadDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}

	file, err := os.Open(absPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: unable to read %s: %w", absPath, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	values := make(map[string]string)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "export ") {
			line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if key == "" {
			continue
		}
		value = strings.Trim(value, "\"'")
		values[key] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: failed parsing %s: %w", absPath, err)
	}
	return values, nil
}

func stringWithDefault(lookup func(string) (string, bool), key, fallback string) string {
	if value, ok := lookup(key); ok && value != "" {
		return value
	}
	return fallback
}

func durationWithDefault(lookup func(string) (string, bool), key string, fallback time.Duration) time.Duration {
	if value, ok := lookup(key); ok && value != "" {
		d, err := time.ParseDuration(value)
		if err == nil {
			return d
		}
	}
	return fallback
}
