// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

/*
Package security provides the WS-Security 1.1 primitives a policy binding
composes into a wsse:Security header.

Every primitive builds its element detached from the envelope. The caller
decides where in the security header each element goes, which keeps the
relative order of header children under the control of the binding.

# Envelope

	env, err := security.ParseEnvelope(data)
	sec := env.SecurityHeader()
	id := security.EnsureID(env.Body(), "id-")

EnsureID is idempotent: an element that already carries a wsu:Id (or Id)
keeps it.

# Signatures

	sig := &security.Signature{
		SignatureAlgorithm: security.AlgorithmRSASHA256,
		DigestAlgorithm:    security.AlgorithmSHA256,
		KeyIdentifierType:  security.KeyIDBSTDirectReference,
		Certificates:       certs,
		Signer:             key,
	}
	err := sig.Prepare(env)
	// place sig.BinarySecurityToken() and sig.Element() in the header
	err = sig.AddReferences(parts)
	value, err := sig.Compute()

References are digested with Exclusive XML Canonicalization (signedxml).
HMAC signatures use Secret instead of Signer; DerivedKeySignature derives
the HMAC key from a base token secret using P_SHA-1 and emits a
wsc:DerivedKeyToken.

# Encryption

PrepareEncryptedKey generates a content encryption key sized for the
algorithm suite, wraps it with RSA-OAEP (or RSA 1.5) for the recipient
certificate and builds an xenc:EncryptedKey. EncryptParts then replaces each
part with AES-GCM xenc:EncryptedData, wrapping whole header blocks in
wsse11:EncryptedHeader, and lists them in the key's ReferenceList.

# Errors

Failures of the cryptographic steps are reported as *CryptoError and match
ErrCryptographic with errors.Is.
*/
package security
