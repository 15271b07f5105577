package binding

import (
	"context"
	"log/slog"
	"strings"

	"github.com/beevik/etree"

	"github.com/sirosfoundation/go-wspolicy/pkg/policy"
	"github.com/sirosfoundation/go-wspolicy/pkg/security"
)

// Handler secures outbound envelopes for an endpoint according to a policy.
// A Handler is safe for concurrent use; each call to Secure runs its own
// pass with its own ledger and cursors.
type Handler struct {
	endpoint *Endpoint
	policy   *policy.Policy
	logger   *slog.Logger
}

// NewHandler returns a handler applying p on behalf of ep.
func NewHandler(ep *Endpoint, p *policy.Policy) *Handler {
	return &Handler{
		endpoint: ep,
		policy:   p,
		logger:   ep.logger.With("component", "binding"),
	}
}

// Result is the outcome of a successful pass.
type Result struct {
	// Ledger records which assertions the pass satisfied.
	Ledger *policy.Ledger
	// SignatureValues are the raw values of every signature computed, in
	// order.
	SignatureValues [][]byte
}

// Secure adds the security header required by the policy to env. It
// returns an error wrapping policy.ErrPolicyNotSatisfied when a required
// assertion cannot be met; the envelope is then left partially secured and
// must be discarded.
func (h *Handler) Secure(ctx context.Context, env *security.Envelope, ex *Exchange) (*Result, error) {
	if ex == nil {
		ex = &Exchange{}
	}
	p, err := h.newPass(ctx, env, ex)
	if err != nil {
		return nil, err
	}
	if err := p.run(); err != nil {
		return nil, err
	}

	ex.SentSignatureValues = append(ex.SentSignatureValues, p.sigValues...)
	h.logger.Debug("security header composed",
		"requestor", h.endpoint.requestor,
		"signatures", len(p.sigValues),
		"unsatisfied", len(p.ledger.Unsatisfied()))
	return &Result{Ledger: p.ledger, SignatureValues: p.sigValues}, nil
}

// pass holds the state of securing one message.
type pass struct {
	ctx      context.Context
	ep       *Endpoint
	policy   *policy.Policy
	binding  *policy.Binding
	suite    *policy.AlgorithmSuite
	env      *security.Envelope
	ex       *Exchange
	ledger   *policy.Ledger
	composer *Composer
	log      *slog.Logger

	signSel *Selector
	encSel  *Selector

	timestamp *security.Timestamp
	mainSig   *etree.Element
	mainSigID string

	encryptedTokens []*security.EncryptionPart
	encryptedIDs    map[string]struct{}
	sigValues       [][]byte
}

func (h *Handler) newPass(ctx context.Context, env *security.Envelope, ex *Exchange) (*pass, error) {
	p := &pass{
		ctx:          ctx,
		ep:           h.endpoint,
		policy:       h.policy,
		binding:      h.policy.Binding(),
		env:          env,
		ex:           ex,
		ledger:       policy.NewLedger(h.policy),
		composer:     NewComposer(env.SecurityHeader()),
		log:          h.logger,
		signSel:      NewSelector(env),
		encSel:       NewSelector(env),
		encryptedIDs: make(map[string]struct{}),
	}
	if p.binding != nil && p.binding.AlgorithmSuite != nil {
		p.suite = p.binding.AlgorithmSuite
	} else {
		suite, err := policy.LookupAlgorithmSuite(policy.DefaultAlgorithmSuite)
		if err != nil {
			return nil, err
		}
		p.suite = suite
	}
	return p, nil
}

func (p *pass) run() error {
	b := p.binding
	switch {
	case b == nil || b.Type == policy.BindingTransport:
		return p.transport()
	case b.Type == policy.BindingAsymmetric:
		return p.asymmetric()
	default:
		return p.deny(b, "SymmetricBinding is not supported")
	}
}

// deny records reason against a and logs it. The returned error is nil for
// optional assertions.
func (p *pass) deny(a policy.Assertion, reason string) error {
	p.log.Warn("policy assertion not satisfied",
		"assertion", a.Name().Local,
		"reason", reason,
		"optional", a.IsOptional())
	return p.ledger.Deny(a, reason)
}

// fail denies a because of err. Failures are always fatal.
func (p *pass) fail(a policy.Assertion, err error) error {
	p.log.Error("policy assertion failed", "assertion", a.Name().Local, "error", err)
	return p.ledger.Fail(a, err)
}

// addEncryptedToken queues a token element for encryption. Each id is
// queued once.
func (p *pass) addEncryptedToken(part *security.EncryptionPart) {
	id := strings.TrimPrefix(part.ID, "#")
	if _, ok := p.encryptedIDs[id]; ok {
		return
	}
	p.encryptedIDs[id] = struct{}{}
	p.encryptedTokens = append(p.encryptedTokens, part)
}

func (p *pass) addSignatureValue(v []byte) {
	p.sigValues = append(p.sigValues, v)
}

// addTimestamp creates the timestamp and places it according to the
// layout: last in the header under LaxTimestampLast, first otherwise.
func (p *pass) addTimestamp() error {
	b := p.binding
	var layout *policy.Layout
	if b != nil {
		layout = b.Layout
	}

	if b != nil && b.IncludeTimestamp != nil {
		ttl := p.ep.timestampTTL
		if ttl <= 0 {
			ttl = security.DefaultTimestampTTL
		}
		p.timestamp = security.NewTimestamp(p.ep.now(), ttl)
		p.ledger.Assert(b.IncludeTimestamp)
	}

	if layout == nil {
		if p.timestamp != nil {
			p.composer.InsertTopDown(p.timestamp.Element())
		}
		return nil
	}

	p.ledger.Assert(layout)
	switch {
	case layout.Type == policy.LayoutLaxTimestampLast && p.timestamp == nil:
		return p.deny(layout, "LaxTimestampLast requires a timestamp")
	case layout.Type == policy.LayoutLaxTimestampFirst && p.timestamp == nil:
		return p.deny(layout, "LaxTimestampFirst requires a timestamp")
	case p.timestamp == nil:
		return nil
	case layout.Type == policy.LayoutLaxTimestampLast:
		p.composer.InsertBottomUp(p.timestamp.Element())
	default:
		p.composer.InsertTopDown(p.timestamp.Element())
	}
	return nil
}

func (p *pass) timestampPart() *security.EncryptionPart {
	part := security.NewPart(p.timestamp.ID, security.ModifierElement)
	part.Element = p.timestamp.Element()
	return part
}

// supportingSet groups the built supporting tokens by what the primary
// signature and the endorsing signatures do with them.
type supportingSet struct {
	signed          []*BuiltToken
	endorsing       []*BuiltToken
	signedEndorsing []*BuiltToken

	signedParts    []*security.EncryptionPart
	encryptedParts []*security.EncryptionPart
}

func (s *supportingSet) hasEndorsing() bool {
	return len(s.endorsing) > 0 || len(s.signedEndorsing) > 0
}

// supportingTokens builds every supporting category in policy order. The
// encrypted categories are folded into their unencrypted counterparts; the
// encryption itself is tracked through the encrypted token queue.
func (p *pass) supportingTokens() (*supportingSet, error) {
	set := &supportingSet{}
	for _, st := range p.policy.SupportingTokens() {
		built, err := p.handleSupportingTokens(st)
		if err != nil {
			return nil, err
		}

		c := st.Category
		switch {
		case c.IsSigned() && c.IsEndorsing():
			set.signedEndorsing = append(set.signedEndorsing, built...)
		case c.IsEndorsing():
			set.endorsing = append(set.endorsing, built...)
		case c.IsSigned():
			set.signed = append(set.signed, built...)
		}

		if err := p.categoryParts(st, set); err != nil {
			return nil, err
		}
	}
	return set, nil
}

// categoryParts adds the parts a supporting tokens assertion names itself
// to the parts protected by the primary signature and encryption.
func (p *pass) categoryParts(st *policy.SupportingTokens, set *supportingSet) error {
	if st.SignedParts != nil || st.SignedElements != nil {
		var (
			body    bool
			headers []policy.Header
			xpaths  []policy.XPath
		)
		if st.SignedParts != nil {
			body, headers = st.SignedParts.Body, st.SignedParts.Headers
			p.ledger.Assert(st.SignedParts)
		}
		if st.SignedElements != nil {
			xpaths = st.SignedElements.XPaths
			p.ledger.Assert(st.SignedElements)
		}
		parts, err := p.signSel.Select(true, body, headers, xpaths, nil)
		if err != nil {
			return p.fail(st, err)
		}
		set.signedParts = append(set.signedParts, parts...)
	}

	if st.EncryptedParts != nil || st.EncryptedElements != nil {
		var (
			body    bool
			headers []policy.Header
			xpaths  []policy.XPath
		)
		if st.EncryptedParts != nil {
			body, headers = st.EncryptedParts.Body, st.EncryptedParts.Headers
			p.ledger.Assert(st.EncryptedParts)
		}
		if st.EncryptedElements != nil {
			xpaths = st.EncryptedElements.XPaths
			p.ledger.Assert(st.EncryptedElements)
		}
		parts, err := p.encSel.Select(false, body, headers, xpaths, nil)
		if err != nil {
			return p.fail(st, err)
		}
		set.encryptedParts = append(set.encryptedParts, parts...)
	}
	return nil
}

// transport handles the transport binding and policies without a binding:
// the channel protects the message, so only the timestamp and supporting
// tokens are added. Endorsing tokens sign the timestamp.
func (p *pass) transport() error {
	if p.binding != nil {
		p.ledger.Assert(p.binding)
		if p.binding.AlgorithmSuite != nil {
			p.ledger.Assert(p.binding.AlgorithmSuite)
		}
	}
	if err := p.addTimestamp(); err != nil {
		return err
	}

	set, err := p.supportingTokens()
	if err != nil {
		return err
	}
	if len(p.encryptedTokens) > 0 {
		p.log.Debug("transport binding: leaving supporting tokens unencrypted", "tokens", len(p.encryptedTokens))
	}
	if !set.hasEndorsing() {
		return nil
	}

	if p.timestamp == nil {
		var a policy.Assertion = set.firstEndorsing().Requirement
		if p.binding != nil {
			a = p.binding
		}
		return p.deny(a, "Endorsing supporting tokens require a timestamp")
	}
	endorsing := append(append([]*BuiltToken{}, set.endorsing...), set.signedEndorsing...)
	return p.doEndorsedSignatures(endorsing, p.timestampPart(), false, false)
}

func (s *supportingSet) firstEndorsing() *BuiltToken {
	if len(s.endorsing) > 0 {
		return s.endorsing[0]
	}
	return s.signedEndorsing[0]
}

// asymmetric handles the asymmetric binding. The initiator signs with the
// initiator token and encrypts for the recipient token; the recipient uses
// them the other way around.
func (p *pass) asymmetric() error {
	b := p.binding
	p.ledger.Assert(b)
	if b.AlgorithmSuite != nil {
		p.ledger.Assert(b.AlgorithmSuite)
	}

	sigToken, encToken := b.InitiatorToken, b.RecipientToken
	if !p.ep.requestor {
		sigToken, encToken = encToken, sigToken
	}

	if err := p.addTimestamp(); err != nil {
		return err
	}
	set, err := p.supportingTokens()
	if err != nil {
		return err
	}

	var sigParts []*security.EncryptionPart
	if p.timestamp != nil {
		sigParts = append(sigParts, p.timestampPart())
	}
	parts, err := p.signSel.SignedParts(p.policy, p.ledger)
	if err != nil {
		return p.fail(b, err)
	}
	sigParts = append(sigParts, parts...)
	sigParts = append(sigParts, set.signedParts...)
	sigParts, err = p.addSignatureParts(append(append([]*BuiltToken{}, set.signed...), set.signedEndorsing...), sigParts)
	if err != nil {
		return err
	}
	if !p.ep.requestor {
		sigParts = p.addSignatureConfirmation(sigParts)
	}

	encParts, err := p.encSel.EncryptedParts(p.policy, p.ledger)
	if err != nil {
		return p.fail(b, err)
	}
	encParts = append(encParts, set.encryptedParts...)

	var ek *security.EncryptedKey
	if b.EncryptBeforeSigning {
		ek, err = p.encrypt(encToken, nil, encParts)
		if err != nil {
			return err
		}
		sigParts, err = HandleEncryptedSignedHeaders(append(encParts, p.encryptedTokens...), sigParts)
		if err != nil {
			return p.fail(b, err)
		}
	}

	if err := p.primarySignature(sigToken, sigParts); err != nil {
		return err
	}

	if set.hasEndorsing() {
		if p.mainSig == nil {
			return p.deny(b, "Endorsing supporting tokens require a primary signature")
		}
		target := security.NewPart(p.mainSigID, security.ModifierElement)
		target.Element = p.mainSig
		if err := p.doEndorsedSignatures(set.endorsing, target, b.ProtectTokens, b.EncryptSignature); err != nil {
			return err
		}
		if err := p.doEndorsedSignatures(set.signedEndorsing, target, b.ProtectTokens, b.EncryptSignature); err != nil {
			return err
		}
	}

	if b.EncryptSignature && p.mainSig != nil {
		p.addEncryptedToken(ConvertToEncryptionPart(p.mainSig))
		p.ledger.AssertQName(policy.QNameEncryptSignature)
	}
	if b.ProtectTokens {
		p.ledger.AssertQName(policy.QNameProtectTokens)
	}

	if b.EncryptBeforeSigning {
		_, err = p.encrypt(encToken, ek, nil)
		return err
	}
	_, err = p.encrypt(encToken, nil, encParts)
	return err
}

// primarySignature signs parts with the signature token. Nothing is signed
// when there are no parts.
func (p *pass) primarySignature(tok *policy.Token, parts []*security.EncryptionPart) error {
	if tok == nil {
		return nil
	}
	p.ledger.Assert(tok)
	if len(parts) == 0 {
		p.log.Debug("no parts to sign, skipping primary signature")
		return nil
	}
	if tok.Kind != policy.KindX509 && tok.Kind != policy.KindKeyValue {
		return p.deny(tok, "Unsupported signature token: "+tok.Kind.String())
	}

	sig, err := p.signatureBuilder(tok)
	if err != nil || sig == nil {
		return err
	}
	if bst := sig.BinarySecurityToken(); bst != nil {
		p.composer.InsertTopDown(bst.Element())
		if p.binding.ProtectTokens {
			part := security.NewPart(bst.ID, security.ModifierElement)
			part.Element = bst.Element()
			parts = append(parts, part)
		}
	}
	if err := sig.AddReferences(parts); err != nil {
		return p.fail(tok, err)
	}
	value, err := sig.Compute()
	if err != nil {
		return p.fail(tok, err)
	}
	p.composer.InsertBottomUp(sig.Element())
	p.addSignatureValue(value)
	p.mainSig = sig.Element()
	p.mainSigID = sig.ID()
	return nil
}

// encrypt encrypts parts followed by the queued token elements not yet
// encrypted. A nil key is created from the encryption token and placed in
// the header; the key used is returned so that later parts can reuse it.
func (p *pass) encrypt(tok *policy.Token, ek *security.EncryptedKey, parts []*security.EncryptionPart) (*security.EncryptedKey, error) {
	todo := make([]*security.EncryptionPart, 0, len(parts)+len(p.encryptedTokens))
	seen := make(map[string]struct{})
	for _, part := range parts {
		seen[strings.TrimPrefix(part.ID, "#")] = struct{}{}
		if part.EncID == "" {
			todo = append(todo, part)
		}
	}
	for _, part := range p.encryptedTokens {
		if _, ok := seen[strings.TrimPrefix(part.ID, "#")]; ok || part.EncID != "" {
			continue
		}
		todo = append(todo, part)
	}
	if len(todo) == 0 {
		return ek, nil
	}

	if tok == nil {
		if len(parts) == 0 {
			p.log.Debug("no encryption token, leaving supporting tokens unencrypted", "tokens", len(todo))
			return ek, nil
		}
		return ek, p.deny(p.binding, "No encryption token available for the encrypted parts")
	}

	if ek == nil {
		p.ledger.Assert(tok)
		var err error
		ek, err = p.encryptedKeyBuilder(tok)
		if err != nil || ek == nil {
			return nil, err
		}
		if bst := ek.BinarySecurityToken(); bst != nil {
			p.composer.InsertEncryptedKey(bst.Element())
		}
		p.composer.InsertEncryptedKey(ek.Element())
	}

	if err := ek.EncryptParts(todo); err != nil {
		return ek, p.fail(tok, err)
	}
	return ek, nil
}
