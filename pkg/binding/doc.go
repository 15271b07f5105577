// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

/*
Package binding composes the wsse:Security header of an outbound SOAP
message from a negotiated security policy.

A Handler runs one pass per message. It reads the policy alternative,
builds the tokens, signatures and encrypted keys the alternative asks for,
places them in the security header and records in a policy.Ledger which
assertions it could satisfy.

# Endpoints

An Endpoint carries the configuration shared by every pass: credentials,
key material, callbacks and the token store.

	ep := binding.NewEndpoint(
		binding.WithRequestor(true),
		binding.WithUsername("alice"),
		binding.WithPasswordCallback(callbacks),
		binding.WithSignatureCrypto(signing, "client"),
		binding.WithEncryptionCrypto(trusted, "server"),
	)

	h := binding.NewHandler(ep, pol)
	res, err := h.Secure(ctx, env, &binding.Exchange{})

A fatal error from Secure is a *policy.NotSatisfiedError naming the first
assertion that could not be satisfied. Cryptographic failures additionally
match security.ErrCryptographic.

# Header order

Elements enter the security header through a Composer, which keeps five
cursors and inserts relative to them. Whatever order the builders run in,
the header reads: top-down elements in insertion order, encrypted keys,
derived keys, supporting elements, then bottom-up elements in reverse
insertion order.

# Supporting tokens

Supporting tokens are built per category. Signed categories add the token
to the primary signature; endorsing categories sign the primary signature
with the token's key; encrypted categories add the token to the parts
encrypted for the recipient.
*/
package binding
