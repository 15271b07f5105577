// Package config handles configuration loading for a secured endpoint.
//
// Configuration is loaded from a YAML file with support for environment
// variable expansion (${VAR} or $VAR syntax). This allows keystore
// passwords and store credentials to be injected at runtime.
//
// # Configuration Sections
//
//   - endpoint: whether the endpoint initiates exchanges
//   - security: usernames, password callback, timestamp lifetime
//   - signatureCrypto, encryptionCrypto: keystore providers
//   - trust: certificate roots and OCSP checking
//   - tokenStore: where negotiated tokens live (memory, mongodb or redis)
//   - policy: path to the YAML policy document
//   - logging: log level
//
// # Example Configuration
//
//	endpoint:
//	  requestor: true
//
//	security:
//	  username: alice
//	  callback: keystore
//	  timestampTTL: 5m
//
//	signatureCrypto:
//	  provider: pkcs12
//	  file: /etc/wsp/alice.p12
//	  password: ${KEYSTORE_PASSWORD}
//
//	tokenStore:
//	  type: redis
//	  redis:
//	    addr: localhost:6379
//
//	policy: /etc/wsp/policy.yaml
//
// See [Load] for loading configuration from a file and [Open] for building
// an endpoint from it.
package config

import (
	"context"
	"crypto/x509"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sirosfoundation/go-wspolicy/pkg/binding"
	"github.com/sirosfoundation/go-wspolicy/pkg/keystore"
	"github.com/sirosfoundation/go-wspolicy/pkg/policy"
	"github.com/sirosfoundation/go-wspolicy/pkg/security"
	"github.com/sirosfoundation/go-wspolicy/pkg/tokenstore"
	"github.com/sirosfoundation/go-wspolicy/pkg/tokenstore/mongodb"
	"github.com/sirosfoundation/go-wspolicy/pkg/tokenstore/redisstore"
)

// Token store types
const (
	StoreMemory  = "memory"
	StoreMongoDB = "mongodb"
	StoreRedis   = "redis"
)

// Config is the root configuration structure
type Config struct {
	Endpoint         EndpointConfig       `yaml:"endpoint"`
	Security         SecurityConfig       `yaml:"security"`
	SignatureCrypto  *keystore.Properties `yaml:"signatureCrypto"`
	EncryptionCrypto *keystore.Properties `yaml:"encryptionCrypto"`
	Trust            TrustConfig          `yaml:"trust"`
	TokenStore       TokenStoreConfig     `yaml:"tokenStore"`
	Policy           string               `yaml:"policy"`
	Logging          LoggingConfig        `yaml:"logging"`
}

// EndpointConfig holds the endpoint role
type EndpointConfig struct {
	Requestor bool `yaml:"requestor"`
}

// SecurityConfig holds the identities and options used when composing
// security headers
type SecurityConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	// Callback names a password callback registered with the
	// binding.CallbackRegistry passed to Open.
	Callback string `yaml:"callback"`

	SignatureUser  string `yaml:"signatureUser"`
	EncryptionUser string `yaml:"encryptionUser"`

	TimestampTTL time.Duration `yaml:"timestampTTL"`
	// AlwaysEncryptUsernameToken defaults to true.
	AlwaysEncryptUsernameToken *bool `yaml:"alwaysEncryptUsernameToken"`

	SAML SAMLConfig `yaml:"saml"`
}

// SAMLConfig enables a built-in issuer of bearer assertions for SamlToken
// requirements. It is used when Issuer is set.
type SAMLConfig struct {
	Issuer  string        `yaml:"issuer"`
	Subject string        `yaml:"subject"`
	TTL     time.Duration `yaml:"ttl"`
}

// TrustConfig holds certificate validation settings
type TrustConfig struct {
	// RootsFile is a PEM bundle of trusted roots. Certificates are not
	// validated when it is empty.
	RootsFile string `yaml:"rootsFile"`
	OCSP      struct {
		Enabled bool          `yaml:"enabled"`
		Strict  bool          `yaml:"strict"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"ocsp"`
}

// TokenStoreConfig selects and configures the token store
type TokenStoreConfig struct {
	Type       string            `yaml:"type"`
	DefaultTTL time.Duration     `yaml:"defaultTTL"`
	MongoDB    mongodb.Config    `yaml:"mongodb"`
	Redis      redisstore.Config `yaml:"redis"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse reads configuration from YAML data
func Parse(data []byte) (*Config, error) {
	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Security.TimestampTTL == 0 {
		c.Security.TimestampTTL = security.DefaultTimestampTTL
	}
	if c.Security.AlwaysEncryptUsernameToken == nil {
		always := true
		c.Security.AlwaysEncryptUsernameToken = &always
	}
	if c.Security.SAML.TTL == 0 {
		c.Security.SAML.TTL = 5 * time.Minute
	}
	if c.Security.SAML.Subject == "" {
		c.Security.SAML.Subject = c.Security.Username
	}
	if c.TokenStore.Type == "" {
		c.TokenStore.Type = StoreMemory
	}
	if c.TokenStore.MongoDB.Database == "" {
		c.TokenStore.MongoDB.Database = "wspolicy"
	}
	if c.TokenStore.Redis.DefaultTTL == 0 {
		c.TokenStore.Redis.DefaultTTL = c.TokenStore.DefaultTTL
	}
	if c.Trust.OCSP.Timeout == 0 {
		c.Trust.OCSP.Timeout = 10 * time.Second
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

func (c *Config) validate() error {
	if c.Policy == "" {
		return fmt.Errorf("policy is required")
	}
	if c.Security.TimestampTTL < 0 {
		return fmt.Errorf("security.timestampTTL must not be negative")
	}

	for name, props := range map[string]*keystore.Properties{
		"signatureCrypto":  c.SignatureCrypto,
		"encryptionCrypto": c.EncryptionCrypto,
	} {
		if err := validateCrypto(name, props); err != nil {
			return err
		}
	}

	switch c.TokenStore.Type {
	case StoreMemory:
	case StoreMongoDB:
		if c.TokenStore.MongoDB.URI == "" {
			return fmt.Errorf("tokenStore.mongodb.uri is required when type is 'mongodb'")
		}
	case StoreRedis:
		if c.TokenStore.Redis.Addr == "" {
			return fmt.Errorf("tokenStore.redis.addr is required when type is 'redis'")
		}
	default:
		return fmt.Errorf("tokenStore.type must be 'memory', 'mongodb', or 'redis', got '%s'", c.TokenStore.Type)
	}

	if c.Trust.OCSP.Enabled && c.Trust.RootsFile == "" {
		return fmt.Errorf("trust.rootsFile is required when OCSP is enabled")
	}

	if _, err := parseLevel(c.Logging.Level); err != nil {
		return err
	}
	return nil
}

func validateCrypto(name string, props *keystore.Properties) error {
	if props == nil {
		return nil
	}
	switch props.Provider {
	case keystore.ProviderFile:
		if props.Dir == "" {
			return fmt.Errorf("%s.dir is required when provider is 'file'", name)
		}
	case keystore.ProviderPKCS12:
		if props.File == "" {
			return fmt.Errorf("%s.file is required when provider is 'pkcs12'", name)
		}
	case keystore.ProviderPKCS11:
		if props.PKCS11.ModulePath == "" {
			return fmt.Errorf("%s.pkcs11.modulePath is required when provider is 'pkcs11'", name)
		}
	default:
		return fmt.Errorf("%s.provider must be 'file', 'pkcs12', or 'pkcs11', got '%s'", name, props.Provider)
	}
	return nil
}

func parseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("logging.level must be 'debug', 'info', 'warn', or 'error', got '%s'", level)
	}
}

// Logger returns a text logger writing to stderr at the configured level.
func (c *Config) Logger() *slog.Logger {
	level, err := parseLevel(c.Logging.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// CertificateValidator builds the validator described by the trust
// section, or returns nil when no roots are configured.
func (c *Config) CertificateValidator() (keystore.CertificateValidator, error) {
	if c.Trust.RootsFile == "" {
		return nil, nil
	}
	data, err := os.ReadFile(c.Trust.RootsFile)
	if err != nil {
		return nil, fmt.Errorf("reading trust roots: %w", err)
	}
	roots := x509.NewCertPool()
	if !roots.AppendCertsFromPEM(data) {
		return nil, fmt.Errorf("no certificates found in %s", c.Trust.RootsFile)
	}

	var v keystore.CertificateValidator = keystore.NewPKIValidator(roots)
	if c.Trust.OCSP.Enabled {
		v = keystore.NewRevocationValidator(v, keystore.OCSPConfig{
			Timeout:    c.Trust.OCSP.Timeout,
			StrictMode: c.Trust.OCSP.Strict,
		})
	}
	return v, nil
}

// OpenTokenStore connects the configured token store. The returned close
// function releases it.
func (c *Config) OpenTokenStore(ctx context.Context) (tokenstore.Store, func(context.Context) error, error) {
	switch c.TokenStore.Type {
	case StoreMongoDB:
		s, err := mongodb.NewStore(ctx, &c.TokenStore.MongoDB)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case StoreRedis:
		s, err := redisstore.NewStore(ctx, &c.TokenStore.Redis)
		if err != nil {
			return nil, nil, err
		}
		return s, func(context.Context) error { return s.Close() }, nil
	default:
		return tokenstore.NewMemoryStore(c.TokenStore.DefaultTTL), func(context.Context) error { return nil }, nil
	}
}

// EndpointOptions translates the configuration into endpoint options.
// Keystores are obtained from resolver; the password callback is looked up
// in registry by name.
func (c *Config) EndpointOptions(resolver *keystore.Resolver, registry *binding.CallbackRegistry) ([]binding.Option, error) {
	s := c.Security
	opts := []binding.Option{
		binding.WithRequestor(c.Endpoint.Requestor),
		binding.WithUsername(s.Username),
		binding.WithPassword(s.Password),
		binding.WithTimestampTTL(s.TimestampTTL),
	}
	if s.AlwaysEncryptUsernameToken != nil {
		opts = append(opts, binding.WithAlwaysEncryptUsernameToken(*s.AlwaysEncryptUsernameToken))
	}

	if s.Callback != "" {
		if registry == nil {
			return nil, fmt.Errorf("password callback %q configured but no registry given", s.Callback)
		}
		cb, ok := registry.Lookup(s.Callback)
		if !ok {
			return nil, fmt.Errorf("unknown password callback %q", s.Callback)
		}
		opts = append(opts, binding.WithPasswordCallback(cb))
	}

	if c.SignatureCrypto != nil {
		crypto, err := resolver.Resolve(*c.SignatureCrypto)
		if err != nil {
			return nil, fmt.Errorf("signature keystore: %w", err)
		}
		opts = append(opts, binding.WithSignatureCrypto(crypto, s.SignatureUser))
	}
	switch {
	case c.EncryptionCrypto != nil:
		crypto, err := resolver.Resolve(*c.EncryptionCrypto)
		if err != nil {
			return nil, fmt.Errorf("encryption keystore: %w", err)
		}
		opts = append(opts, binding.WithEncryptionCrypto(crypto, s.EncryptionUser))
	case s.EncryptionUser == binding.UseReqSigCert:
		opts = append(opts, binding.WithEncryptionCrypto(nil, s.EncryptionUser))
	}

	if s.SAML.Issuer != "" {
		opts = append(opts, binding.WithSAMLCallback(binding.NewSAMLIssuer(s.SAML.Issuer, s.SAML.Subject, s.SAML.TTL)))
	}

	v, err := c.CertificateValidator()
	if err != nil {
		return nil, err
	}
	if v != nil {
		opts = append(opts, binding.WithCertificateValidator(v))
	}
	return opts, nil
}

// Runtime is an endpoint assembled from a Config together with the
// resources it holds.
type Runtime struct {
	Endpoint *binding.Endpoint
	Policy   *policy.Policy
	Logger   *slog.Logger

	resolver   *keystore.Resolver
	closeStore func(context.Context) error
}

// Open loads the policy, connects the token store and builds the endpoint.
// registry may be nil when no password callback is configured.
func Open(ctx context.Context, cfg *Config, registry *binding.CallbackRegistry) (*Runtime, error) {
	logger := cfg.Logger()

	p, err := policy.Load(cfg.Policy)
	if err != nil {
		return nil, err
	}

	resolver := keystore.NewResolver(keystore.WithLogger(logger))
	opts, err := cfg.EndpointOptions(resolver, registry)
	if err != nil {
		resolver.Close()
		return nil, err
	}

	store, closeStore, err := cfg.OpenTokenStore(ctx)
	if err != nil {
		resolver.Close()
		return nil, fmt.Errorf("opening token store: %w", err)
	}
	opts = append(opts, binding.WithTokenStore(store), binding.WithLogger(logger))

	logger.Info("endpoint configured",
		"requestor", cfg.Endpoint.Requestor,
		"tokenStore", cfg.TokenStore.Type,
		"policy", cfg.Policy)

	return &Runtime{
		Endpoint:   binding.NewEndpoint(opts...),
		Policy:     p,
		Logger:     logger,
		resolver:   resolver,
		closeStore: closeStore,
	}, nil
}

// Handler returns a handler applying the runtime's policy.
func (r *Runtime) Handler() *binding.Handler {
	return binding.NewHandler(r.Endpoint, r.Policy)
}

// Close releases the keystores and the token store.
func (r *Runtime) Close(ctx context.Context) error {
	storeErr := r.closeStore(ctx)
	if err := r.resolver.Close(); err != nil {
		return err
	}
	return storeErr
}
