// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

/*
Package policy models WS-SecurityPolicy 1.2 assertions and tracks, per
processing pass, which of them a secured message actually satisfies.

# Assertions

Every assertion implements [Assertion]: it has a qualified name and an
optional flag. The concrete types cover the assertions a message-level
binding needs:

  - [Binding]: the asymmetric (or symmetric) binding with its algorithm
    suite, layout and protection flags
  - [SupportingTokens]: one of the eight supporting token categories,
    each holding one or more [Token] requirements
  - [Parts] and [Elements]: SignedParts, EncryptedParts, SignedElements,
    EncryptedElements and ContentEncryptedElements
  - [Wss]: Wss10 / Wss11 reference and signature confirmation options
  - [Layout], [IncludeTimestamp] and [Marker] assertions

A [Policy] is one normalized policy alternative, a flat list of top-level
assertions. Policies are usually loaded from YAML documents with [Load]:

	binding:
	  type: asymmetric
	  includeTimestamp: true
	  layout: LaxTimestampFirst
	  protectTokens: true
	  initiatorToken:
	    kind: X509Token
	    inclusion: AlwaysToRecipient
	supportingTokens:
	  - category: SignedSupportingTokens
	    tokens:
	      - kind: UsernameToken
	        hashPassword: true
	signedParts:
	  body: true
	wss11:
	  requireSignatureConfirmation: true

# Ledger

A [Ledger] is created per processing pass from a policy. Components call
[Ledger.Assert] when they satisfy an assertion and [Ledger.Deny] when they
cannot. Denying a non-optional assertion returns a [*NotSatisfiedError]
that aborts the pass; denying an optional one only records the reason.
*/
package policy
