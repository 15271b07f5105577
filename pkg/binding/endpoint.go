package binding

import (
	"context"
	"crypto/x509"
	"log/slog"
	"sync"
	"time"

	"github.com/beevik/etree"

	"github.com/sirosfoundation/go-wspolicy/pkg/keystore"
	"github.com/sirosfoundation/go-wspolicy/pkg/policy"
	"github.com/sirosfoundation/go-wspolicy/pkg/security"
	"github.com/sirosfoundation/go-wspolicy/pkg/tokenstore"
)

// UseReqSigCert as the encryption user encrypts to the certificate that
// signed the inbound request.
const UseReqSigCert = "useReqSigCert"

// Usage tells a PasswordCallback what the password is needed for.
type Usage int

const (
	UsageUsernameToken Usage = iota + 1
	UsageSignature
	UsageDecrypt
)

func (u Usage) String() string {
	switch u {
	case UsageUsernameToken:
		return "username_token"
	case UsageSignature:
		return "signature"
	case UsageDecrypt:
		return "decrypt"
	default:
		return "unknown"
	}
}

// PasswordCallback resolves the password for an identifier. An empty
// password with a nil error means none is available.
type PasswordCallback interface {
	Password(ctx context.Context, identifier string, usage Usage) (string, error)
}

// PasswordFunc adapts a function to PasswordCallback.
type PasswordFunc func(ctx context.Context, identifier string, usage Usage) (string, error)

func (f PasswordFunc) Password(ctx context.Context, identifier string, usage Usage) (string, error) {
	return f(ctx, identifier, usage)
}

// StaticPasswords is a PasswordCallback backed by a fixed map.
type StaticPasswords map[string]string

func (s StaticPasswords) Password(_ context.Context, identifier string, _ Usage) (string, error) {
	return s[identifier], nil
}

// CallbackRegistry holds named password callbacks so that configuration can
// refer to them by name.
type CallbackRegistry struct {
	mu        sync.RWMutex
	callbacks map[string]PasswordCallback
}

// NewCallbackRegistry returns an empty registry.
func NewCallbackRegistry() *CallbackRegistry {
	return &CallbackRegistry{callbacks: make(map[string]PasswordCallback)}
}

// Register adds or replaces the callback for name.
func (r *CallbackRegistry) Register(name string, cb PasswordCallback) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.callbacks[name] = cb
}

// Lookup returns the callback registered under name.
func (r *CallbackRegistry) Lookup(name string) (PasswordCallback, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cb, ok := r.callbacks[name]
	return cb, ok
}

// SAMLCallback issues the SAML assertion for a SamlToken requirement.
// version is 1 for SAML 1.1 and 2 for SAML 2.0.
type SAMLCallback interface {
	Assertion(ctx context.Context, version int) (*etree.Element, error)
}

// SAMLFunc adapts a function to SAMLCallback.
type SAMLFunc func(ctx context.Context, version int) (*etree.Element, error)

func (f SAMLFunc) Assertion(ctx context.Context, version int) (*etree.Element, error) {
	return f(ctx, version)
}

// TokenStrategy obtains tokens the binding does not build itself, such as
// Kerberos tickets.
type TokenStrategy interface {
	BuildToken(ctx context.Context, req *policy.Token) (*tokenstore.SecurityToken, error)
}

// Endpoint holds the configuration shared by every pass of a Handler.
type Endpoint struct {
	requestor bool

	username string
	password string

	callback     PasswordCallback
	samlCallback SAMLCallback
	strategies   map[policy.TokenKind]TokenStrategy

	signatureCrypto  keystore.Crypto
	signatureUser    string
	encryptionCrypto keystore.Crypto
	encryptionUser   string
	certValidator    keystore.CertificateValidator
	tokenStore       tokenstore.Store
	timestampTTL     time.Duration
	alwaysEncryptUT  bool

	logger *slog.Logger
	now    func() time.Time
}

// Option configures an Endpoint.
type Option func(*Endpoint)

// WithRequestor marks the endpoint as the initiator of the exchange.
func WithRequestor(requestor bool) Option {
	return func(e *Endpoint) { e.requestor = requestor }
}

// WithUsername sets the username of UsernameTokens.
func WithUsername(username string) Option {
	return func(e *Endpoint) { e.username = username }
}

// WithPassword sets the password of UsernameTokens. The password callback is
// consulted when it is empty.
func WithPassword(password string) Option {
	return func(e *Endpoint) { e.password = password }
}

// WithPasswordCallback sets the callback consulted for passwords.
func WithPasswordCallback(cb PasswordCallback) Option {
	return func(e *Endpoint) { e.callback = cb }
}

// WithSAMLCallback sets the callback that issues SAML assertions.
func WithSAMLCallback(cb SAMLCallback) Option {
	return func(e *Endpoint) { e.samlCallback = cb }
}

// WithTokenStrategy registers a strategy for a token kind.
func WithTokenStrategy(kind policy.TokenKind, s TokenStrategy) Option {
	return func(e *Endpoint) { e.strategies[kind] = s }
}

// WithSignatureCrypto sets the key material and alias used to sign. An
// empty user selects the provider's default identifier.
func WithSignatureCrypto(c keystore.Crypto, user string) Option {
	return func(e *Endpoint) {
		e.signatureCrypto = c
		e.signatureUser = user
	}
}

// WithEncryptionCrypto sets the key material and alias of the recipient
// certificate. A user of UseReqSigCert encrypts to the inbound signer.
func WithEncryptionCrypto(c keystore.Crypto, user string) Option {
	return func(e *Endpoint) {
		e.encryptionCrypto = c
		e.encryptionUser = user
	}
}

// WithCertificateValidator checks signing and recipient certificates before
// they are used.
func WithCertificateValidator(v keystore.CertificateValidator) Option {
	return func(e *Endpoint) { e.certValidator = v }
}

// WithTokenStore sets the store issued and negotiated tokens are read from.
func WithTokenStore(s tokenstore.Store) Option {
	return func(e *Endpoint) { e.tokenStore = s }
}

// WithTimestampTTL sets the lifetime of generated timestamps.
func WithTimestampTTL(ttl time.Duration) Option {
	return func(e *Endpoint) { e.timestampTTL = ttl }
}

// WithAlwaysEncryptUsernameToken controls whether UsernameTokens are
// encrypted whenever the message is, regardless of category. Defaults to
// true.
func WithAlwaysEncryptUsernameToken(always bool) Option {
	return func(e *Endpoint) { e.alwaysEncryptUT = always }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Endpoint) { e.logger = logger }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Endpoint) { e.now = now }
}

// NewEndpoint creates an endpoint.
func NewEndpoint(opts ...Option) *Endpoint {
	e := &Endpoint{
		strategies:      make(map[policy.TokenKind]TokenStrategy),
		timestampTTL:    security.DefaultTimestampTTL,
		alwaysEncryptUT: true,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.tokenStore == nil {
		e.tokenStore = tokenstore.NewMemoryStore(0)
	}
	return e
}

// IsRequestor reports whether the endpoint initiates exchanges.
func (e *Endpoint) IsRequestor() bool { return e.requestor }

// TokenStore returns the endpoint's token store.
func (e *Endpoint) TokenStore() tokenstore.Store { return e.tokenStore }

// Action identifies what a security engine found while processing an
// inbound message.
type Action int

const (
	ActionSign Action = iota + 1
	ActionSTSigned
	ActionSTUnsigned
	ActionUTSign
	ActionUT
	ActionUTNoPassword
	ActionBST
	ActionEncrypt
	ActionTimestamp
	ActionSCT
	ActionKerberos
)

// EngineResult is one result of processing the inbound security header.
type EngineResult struct {
	Action Action

	// ID is the wsu:Id of the processed element.
	ID string

	// SignatureValue is set for signature actions.
	SignatureValue []byte
	// Certificates holds the signer's certificate and chain, or the
	// certificate carried by a BinarySecurityToken.
	Certificates []*x509.Certificate

	// Signed, Encrypted and Endorsing describe how the token was protected
	// in the inbound message. DerivedKey is set when the token's key was
	// used through a DerivedKeyToken.
	Signed     bool
	Encrypted  bool
	Endorsing  bool
	DerivedKey bool
}

// HandlerResult groups the results produced for one actor.
type HandlerResult struct {
	Actor   string
	Results []*EngineResult
}

// Exchange is the per-message state a pass reads and writes.
type Exchange struct {
	// Inbound holds the results of processing the request when composing
	// the response.
	Inbound []*HandlerResult

	// Token is the negotiated or issued token for this exchange. When nil,
	// TokenID is looked up in the token store.
	Token   *tokenstore.SecurityToken
	TokenID string

	// TokenStore overrides the endpoint's store for this exchange.
	TokenStore tokenstore.Store

	// SentSignatureValues collects the values of every signature the pass
	// computed, for later signature confirmation checks.
	SentSignatureValues [][]byte
}

// resultsFor returns the inbound results with one of the given actions, in
// order.
func (x *Exchange) resultsFor(actions ...Action) []*EngineResult {
	var out []*EngineResult
	for _, hr := range x.Inbound {
		for _, r := range hr.Results {
			for _, a := range actions {
				if r.Action == a {
					out = append(out, r)
					break
				}
			}
		}
	}
	return out
}

// NewSAMLIssuer returns a SAMLCallback issuing unsigned bearer assertions
// for subject, valid for ttl.
func NewSAMLIssuer(issuer, subject string, ttl time.Duration) SAMLCallback {
	return SAMLFunc(func(_ context.Context, version int) (*etree.Element, error) {
		return security.BuildSAMLAssertion(version, issuer, subject, time.Now(), ttl), nil
	})
}
