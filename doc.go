// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

/*
Package gowspolicy composes WS-Security headers for outbound SOAP messages
as a WS-SecurityPolicy demands.

# Overview

A policy names a security binding, the parts of the message that must be
signed and encrypted, and the supporting tokens that must travel with it.
go-wspolicy turns such a policy into a wsse:Security header: timestamp,
binary security tokens, encrypted keys, derived keys, supporting tokens and
signatures, placed in the order receivers expect. Every assertion the
outbound pass satisfies is recorded in a ledger, and every assertion it
cannot satisfy is recorded with the reason.

# Specifications Implemented

  - WS-SecurityPolicy 1.2: https://docs.oasis-open.org/ws-sx/ws-securitypolicy/v1.2/
  - WS-Security 1.1.1: https://docs.oasis-open.org/wss/v1.1/
  - WS-SecureConversation 1.3 (derived keys): https://docs.oasis-open.org/ws-sx/ws-secureconversation/v1.3/
  - XML Signature Syntax and Processing: https://www.w3.org/TR/xmldsig-core1/
  - XML Encryption Syntax and Processing: https://www.w3.org/TR/xmlenc-core1/

# Package Structure

	github.com/sirosfoundation/go-wspolicy/pkg/policy     - Policy assertions, YAML loader and assertion ledger
	github.com/sirosfoundation/go-wspolicy/pkg/binding    - Header composer, supporting tokens, endorsing signatures
	github.com/sirosfoundation/go-wspolicy/pkg/security   - Envelope, tokens, signatures and encryption
	github.com/sirosfoundation/go-wspolicy/pkg/keystore   - File, PKCS#12 and PKCS#11 key material, certificate trust
	github.com/sirosfoundation/go-wspolicy/pkg/tokenstore - Negotiated token storage (memory, MongoDB, Redis)

# Quick Start

	p, _ := policy.Load("policy.yaml")
	ks, _ := keystore.New(keystore.Properties{Provider: "pkcs12", File: "alice.p12", Password: pw})

	ep := binding.NewEndpoint(
	    binding.WithRequestor(true),
	    binding.WithSignatureCrypto(ks, "alice"),
	    binding.WithEncryptionCrypto(ks, "bob"),
	)
	env, _ := security.ParseEnvelope(msg)
	res, err := binding.NewHandler(ep, p).Secure(ctx, env, nil)

A Handler is safe for concurrent use. Each call to Secure runs its own pass;
a failed pass leaves the envelope partially secured and it must be
discarded.

# License

BSD-2-Clause License
*/
package gowspolicy
