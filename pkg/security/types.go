package security

import (
	"crypto/rand"
	"encoding/hex"
)

// Algorithm URIs for XML signature and encryption
const (
	// Signature algorithms
	AlgorithmRSASHA1     = "http://www.w3.org/2000/09/xmldsig#rsa-sha1"
	AlgorithmRSASHA256   = "http://www.w3.org/2001/04/xmldsig-more#rsa-sha256"
	AlgorithmRSASHA384   = "http://www.w3.org/2001/04/xmldsig-more#rsa-sha384"
	AlgorithmRSASHA512   = "http://www.w3.org/2001/04/xmldsig-more#rsa-sha512"
	AlgorithmECDSASHA256 = "http://www.w3.org/2001/04/xmldsig-more#ecdsa-sha256"
	AlgorithmHMACSHA1    = "http://www.w3.org/2000/09/xmldsig#hmac-sha1"
	AlgorithmHMACSHA256  = "http://www.w3.org/2001/04/xmldsig-more#hmac-sha256"

	// Digest algorithms
	AlgorithmSHA1   = "http://www.w3.org/2000/09/xmldsig#sha1"
	AlgorithmSHA256 = "http://www.w3.org/2001/04/xmlenc#sha256"
	AlgorithmSHA384 = "http://www.w3.org/2001/04/xmldsig-more#sha384"
	AlgorithmSHA512 = "http://www.w3.org/2001/04/xmlenc#sha512"

	// Canonicalization and transforms
	AlgorithmC14N         = "http://www.w3.org/2001/10/xml-exc-c14n#"
	AlgorithmSTRTransform = "http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-soap-message-security-1.0#STR-Transform"

	// Encryption algorithms
	AlgorithmAES128GCM  = "http://www.w3.org/2009/xmlenc11#aes128-gcm"
	AlgorithmAES256GCM  = "http://www.w3.org/2009/xmlenc11#aes256-gcm"
	AlgorithmAES128CBC  = "http://www.w3.org/2001/04/xmlenc#aes128-cbc"
	AlgorithmAES192CBC  = "http://www.w3.org/2001/04/xmlenc#aes192-cbc"
	AlgorithmAES256CBC  = "http://www.w3.org/2001/04/xmlenc#aes256-cbc"
	AlgorithmRSAOAEP    = "http://www.w3.org/2001/04/xmlenc#rsa-oaep-mgf1p"
	AlgorithmRSAOAEP11  = "http://www.w3.org/2009/xmlenc11#rsa-oaep"
	AlgorithmRSA15      = "http://www.w3.org/2001/04/xmlenc#rsa-1_5"
	AlgorithmMGF1SHA256 = "http://www.w3.org/2009/xmlenc11#mgf1sha256"

	// Key derivation
	AlgorithmPSHA1 = "http://docs.oasis-open.org/ws-sx/ws-secureconversation/200512/dk/p_sha1"
)

// Namespaces
const (
	NSSecurityExt   = "http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-wssecurity-secext-1.0.xsd"
	NSSecurityExt11 = "http://docs.oasis-open.org/wss/oasis-wss-wssecurity-secext-1.1.xsd"
	NSSecurityUtil  = "http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-wssecurity-utility-1.0.xsd"
	NSXMLDSig       = "http://www.w3.org/2000/09/xmldsig#"
	NSXMLEnc        = "http://www.w3.org/2001/04/xmlenc#"
	NSXMLEnc11      = "http://www.w3.org/2009/xmlenc11#"
	NSSecureConv    = "http://docs.oasis-open.org/ws-sx/ws-secureconversation/200512"
	NSSOAP11        = "http://schemas.xmlsoap.org/soap/envelope/"
	NSSOAP12        = "http://www.w3.org/2003/05/soap-envelope"
	NSSAML1         = "urn:oasis:names:tc:SAML:1.0:assertion"
	NSSAML2         = "urn:oasis:names:tc:SAML:2.0:assertion"
	NSExcC14N       = "http://www.w3.org/2001/10/xml-exc-c14n#"
)

// Token profile value and encoding types
const (
	EncodingBase64Binary = "http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-soap-message-security-1.0#Base64Binary"

	ValueTypeX509v3      = "http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-x509-token-profile-1.0#X509v3"
	ValueTypeX509PKIPath = "http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-x509-token-profile-1.0#X509PKIPathv1"
	ValueTypeSKI         = "http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-x509-token-profile-1.0#X509SubjectKeyIdentifier"
	ValueTypeThumbprint  = "http://docs.oasis-open.org/wss/oasis-wss-soap-message-security-1.1#ThumbprintSHA1"

	ValueTypeEncryptedKey     = "http://docs.oasis-open.org/wss/oasis-wss-soap-message-security-1.1#EncryptedKey"
	ValueTypeEncryptedKeySHA1 = "http://docs.oasis-open.org/wss/oasis-wss-soap-message-security-1.1#EncryptedKeySHA1"
	ValueTypeDerivedKey       = "http://docs.oasis-open.org/ws-sx/ws-secureconversation/200512/dk"
	ValueTypeSCT              = "http://docs.oasis-open.org/ws-sx/ws-secureconversation/200512/sct"
	ValueTypeUsernameToken    = "http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-username-token-profile-1.0#UsernameToken"

	ValueTypeSAML11KeyIdentifier = "http://docs.oasis-open.org/wss/oasis-wss-saml-token-profile-1.0#SAMLAssertionID"
	ValueTypeSAML20KeyIdentifier = "http://docs.oasis-open.org/wss/oasis-wss-saml-token-profile-1.1#SAMLID"
	TokenTypeSAML11              = "http://docs.oasis-open.org/wss/oasis-wss-saml-token-profile-1.1#SAMLV1.1"
	TokenTypeSAML20              = "http://docs.oasis-open.org/wss/oasis-wss-saml-token-profile-1.1#SAMLV2.0"

	PasswordTypeText   = "http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-username-token-profile-1.0#PasswordText"
	PasswordTypeDigest = "http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-username-token-profile-1.0#PasswordDigest"

	EncryptionTypeElement = "http://www.w3.org/2001/04/xmlenc#Element"
	EncryptionTypeContent = "http://www.w3.org/2001/04/xmlenc#Content"
)

// timeFormat is the xsd:dateTime layout used for wsu:Created and wsu:Expires.
const timeFormat = "2006-01-02T15:04:05.000Z"

// generateID generates a random ID for XML elements using hex encoding
// to avoid special characters like '=' that may cause issues with XPointer
func generateID() string {
	b := make([]byte, 16)
	rand.Read(b)
	return hex.EncodeToString(b)
}
