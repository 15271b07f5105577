package security

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/beevik/etree"
	"github.com/leifj/signedxml/xmlenc"
)

// EncryptedKey transports a freshly generated content encryption key to the
// recipient and encrypts envelope parts with it.
type EncryptedKey struct {
	KeyWrapAlgorithm    string
	EncryptionAlgorithm string
	KeyIdentifierType   KeyIdentifierType

	// Certificate is the recipient certificate whose public key wraps the key.
	Certificate *x509.Certificate

	env     *Envelope
	id      string
	key     []byte
	bst     *BinarySecurityToken
	model   *xmlenc.EncryptedKey
	element *etree.Element
	refList *etree.Element
}

// PrepareEncryptedKey generates and wraps a content encryption key for cert.
func PrepareEncryptedKey(env *Envelope, cert *x509.Certificate, kit KeyIdentifierType, keyWrap, encryption string) (*EncryptedKey, error) {
	ek := &EncryptedKey{
		KeyWrapAlgorithm:    keyWrap,
		EncryptionAlgorithm: encryption,
		KeyIdentifierType:   kit,
		Certificate:         cert,
	}
	if err := ek.Prepare(env); err != nil {
		return nil, err
	}
	return ek, nil
}

// Prepare generates the content encryption key, wraps it and builds the
// xenc:EncryptedKey element.
func (k *EncryptedKey) Prepare(env *Envelope) error {
	if k.Certificate == nil {
		return cryptoErrorf("prepare encrypted key", "no recipient certificate")
	}
	pub, ok := k.Certificate.PublicKey.(*rsa.PublicKey)
	if !ok {
		return cryptoErrorf("prepare encrypted key", "unsupported recipient key type %T", k.Certificate.PublicKey)
	}
	if k.KeyWrapAlgorithm == "" {
		k.KeyWrapAlgorithm = AlgorithmRSAOAEP
	}
	if k.EncryptionAlgorithm == "" {
		k.EncryptionAlgorithm = AlgorithmAES128GCM
	}

	keySize := xmlenc.KeySize(k.EncryptionAlgorithm)
	if keySize == 0 || !(xmlenc.IsGCM(k.EncryptionAlgorithm) || isAESCBC(k.EncryptionAlgorithm)) {
		return cryptoErrorf("prepare encrypted key", "unsupported content encryption algorithm: %s", k.EncryptionAlgorithm)
	}
	cek := make([]byte, keySize)
	if _, err := rand.Read(cek); err != nil {
		return cryptoError("prepare encrypted key", fmt.Errorf("failed to generate CEK: %w", err))
	}

	wrapped, err := wrapKey(k.KeyWrapAlgorithm, pub, cek)
	if err != nil {
		return cryptoError("prepare encrypted key", err)
	}

	ref := &TokenReference{Type: k.KeyIdentifierType, Certificate: k.Certificate}
	if k.KeyIdentifierType == KeyIDUnset || k.KeyIdentifierType == KeyIDBSTDirectReference {
		bst, err := NewBinarySecurityToken([]*x509.Certificate{k.Certificate}, false)
		if err != nil {
			return cryptoError("prepare encrypted key", err)
		}
		k.bst = bst
		ref.Type = KeyIDBSTDirectReference
		ref.TokenID = bst.ID
	}
	refElem, err := ref.Element()
	if err != nil {
		return cryptoError("prepare encrypted key", err)
	}

	k.env = env
	k.id = "EK-" + generateID()
	k.key = cek
	k.model = &xmlenc.EncryptedKey{
		EncryptionMethod: &xmlenc.EncryptionMethod{Algorithm: k.KeyWrapAlgorithm},
		CipherData:       &xmlenc.CipherData{CipherValue: wrapped},
	}
	k.element = encryptedKeyToElement(k.model, k.id, refElem)
	return nil
}

func wrapKey(alg string, pub *rsa.PublicKey, cek []byte) ([]byte, error) {
	var (
		wrapped []byte
		err     error
	)
	switch alg {
	case AlgorithmRSAOAEP:
		wrapped, err = rsa.EncryptOAEP(sha1.New(), rand.Reader, pub, cek, nil)
	case AlgorithmRSAOAEP11:
		wrapped, err = rsa.EncryptOAEP(sha256.New(), rand.Reader, pub, cek, nil)
	case AlgorithmRSA15:
		wrapped, err = rsa.EncryptPKCS1v15(rand.Reader, pub, cek)
	default:
		return nil, fmt.Errorf("unsupported key wrap algorithm: %s", alg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to wrap CEK: %w", err)
	}
	return wrapped, nil
}

// encryptedKeyToElement converts an xmlenc.EncryptedKey to an etree.Element
// whose KeyInfo holds the given token reference.
func encryptedKeyToElement(ek *xmlenc.EncryptedKey, id string, ref *etree.Element) *etree.Element {
	encKeyElem := etree.NewElement("xenc:EncryptedKey")
	encKeyElem.CreateAttr("xmlns:xenc", NSXMLEnc)
	encKeyElem.CreateAttr("Id", id)

	encMethod := encKeyElem.CreateElement("xenc:EncryptionMethod")
	encMethod.CreateAttr("Algorithm", ek.EncryptionMethod.Algorithm)
	switch ek.EncryptionMethod.Algorithm {
	case AlgorithmRSAOAEP:
		digestMethod := encMethod.CreateElement("ds:DigestMethod")
		digestMethod.CreateAttr("xmlns:ds", NSXMLDSig)
		digestMethod.CreateAttr("Algorithm", AlgorithmSHA1)
	case AlgorithmRSAOAEP11:
		digestMethod := encMethod.CreateElement("ds:DigestMethod")
		digestMethod.CreateAttr("xmlns:ds", NSXMLDSig)
		digestMethod.CreateAttr("Algorithm", AlgorithmSHA256)
		mgf := encMethod.CreateElement("xenc11:MGF")
		mgf.CreateAttr("xmlns:xenc11", NSXMLEnc11)
		mgf.CreateAttr("Algorithm", AlgorithmMGF1SHA256)
	}

	keyInfo := encKeyElem.CreateElement("ds:KeyInfo")
	keyInfo.CreateAttr("xmlns:ds", NSXMLDSig)
	keyInfo.AddChild(ref)

	cipherData := encKeyElem.CreateElement("xenc:CipherData")
	cipherData.CreateElement("xenc:CipherValue").SetText(base64.StdEncoding.EncodeToString(ek.CipherData.CipherValue))

	if len(ek.ReferenceList) > 0 {
		refList := encKeyElem.CreateElement("xenc:ReferenceList")
		for _, r := range ek.ReferenceList {
			refList.CreateElement("xenc:DataReference").CreateAttr("URI", r.URI)
		}
	}
	return encKeyElem
}

// ID returns the id of the EncryptedKey element.
func (k *EncryptedKey) ID() string { return k.id }

// Element returns the xenc:EncryptedKey element.
func (k *EncryptedKey) Element() *etree.Element { return k.element }

// Key returns the unwrapped content encryption key.
func (k *EncryptedKey) Key() []byte { return k.key }

// BinarySecurityToken returns the token created for a direct reference, or nil.
func (k *EncryptedKey) BinarySecurityToken() *BinarySecurityToken { return k.bst }

// SHA1 returns the EncryptedKeySHA1 identifier of the wrapped key.
func (k *EncryptedKey) SHA1() string {
	sum := sha1.Sum(k.model.CipherData.CipherValue)
	return base64.StdEncoding.EncodeToString(sum[:])
}

// DataReferences returns the URIs of the EncryptedData elements the key
// protects.
func (k *EncryptedKey) DataReferences() []string {
	uris := make([]string, 0, len(k.model.ReferenceList))
	for _, r := range k.model.ReferenceList {
		uris = append(uris, r.URI)
	}
	return uris
}

// EncryptParts replaces each part with an xenc:EncryptedData and lists it in
// the key's ReferenceList. Header blocks encrypted as a whole are wrapped in
// a wsse11:EncryptedHeader. The id of the replacing element is recorded in
// the part's EncID.
func (k *EncryptedKey) EncryptParts(parts []*EncryptionPart) error {
	if k.element == nil {
		return cryptoErrorf("encrypt parts", "encrypted key not prepared")
	}
	for _, part := range parts {
		el := part.Element
		if el == nil {
			el = k.env.ElementByID(part.ID)
		}
		if el == nil {
			return cryptoErrorf("encrypt parts", "no element found for part %q", partLabel(part))
		}
		edID, err := k.encryptElement(part, el)
		if err != nil {
			return cryptoError("encrypt parts", fmt.Errorf("part %s: %w", partLabel(part), err))
		}
		k.addDataReference("#" + edID)
	}
	return nil
}

func (k *EncryptedKey) encryptElement(part *EncryptionPart, el *etree.Element) (string, error) {
	parent := el.Parent()
	if parent == nil {
		return "", fmt.Errorf("element %s is detached", el.FullTag())
	}
	inScope := namespaceDecls(el)

	edID := "ED-" + generateID()
	var plaintext []byte
	var err error
	encType := EncryptionTypeElement
	if part.Modifier == ModifierContent {
		encType = EncryptionTypeContent
		plaintext, err = k.detachContent(el, inScope)
	} else {
		idx := el.Index()
		parent.RemoveChildAt(idx)
		for key, uri := range inScope {
			if el.SelectAttr(key) == nil {
				el.CreateAttr(key, uri)
			}
		}
		doc := etree.NewDocument()
		doc.SetRoot(el)
		plaintext, err = doc.WriteToBytes()

		replacement := k.encryptedData(edID, encType)
		part.EncID = edID
		if parent.Tag == "Header" && parent.NamespaceURI() == k.env.SOAPNamespace() {
			eh := etree.NewElement("wsse11:EncryptedHeader")
			eh.CreateAttr("xmlns:wsse11", NSSecurityExt11)
			eh.CreateAttr("xmlns:wsu", NSSecurityUtil)
			part.EncID = "EH-" + generateID()
			eh.CreateAttr("wsu:Id", part.EncID)
			eh.AddChild(replacement)
			replacement = eh
		}
		parent.InsertChildAt(idx, replacement)
		if err != nil {
			return "", err
		}
		return edID, k.fillCipherValue(replacement, plaintext)
	}
	if err != nil {
		return "", err
	}

	ed := k.encryptedData(edID, encType)
	el.AddChild(ed)
	part.EncID = edID
	return edID, k.fillCipherValue(ed, plaintext)
}

// detachContent moves the children of el into a standalone document and
// serializes them.
func (k *EncryptedKey) detachContent(el *etree.Element, inScope map[string]string) ([]byte, error) {
	for key, uri := range namespaceDeclsOf(el) {
		inScope[key] = uri
	}
	doc := etree.NewDocument()
	for len(el.Child) > 0 {
		tok := el.Child[0]
		el.RemoveChildAt(0)
		if child, ok := tok.(*etree.Element); ok {
			for key, uri := range inScope {
				if child.SelectAttr(key) == nil {
					child.CreateAttr(key, uri)
				}
			}
		}
		doc.AddChild(tok)
	}
	return doc.WriteToBytes()
}

func (k *EncryptedKey) encryptedData(id, encType string) *etree.Element {
	ed := etree.NewElement("xenc:EncryptedData")
	ed.CreateAttr("xmlns:xenc", NSXMLEnc)
	ed.CreateAttr("Id", id)
	ed.CreateAttr("Type", encType)
	ed.CreateElement("xenc:EncryptionMethod").CreateAttr("Algorithm", k.EncryptionAlgorithm)

	keyInfo := ed.CreateElement("ds:KeyInfo")
	keyInfo.CreateAttr("xmlns:ds", NSXMLDSig)
	str := keyInfo.CreateElement("wsse:SecurityTokenReference")
	str.CreateAttr("xmlns:wsse", NSSecurityExt)
	str.CreateAttr("xmlns:wsse11", NSSecurityExt11)
	str.CreateAttr("wsse11:TokenType", ValueTypeEncryptedKey)
	str.CreateElement("wsse:Reference").CreateAttr("URI", "#"+k.id)

	ed.CreateElement("xenc:CipherData").CreateElement("xenc:CipherValue")
	return ed
}

func (k *EncryptedKey) fillCipherValue(replacement *etree.Element, plaintext []byte) error {
	var (
		ciphertext []byte
		err        error
	)
	// Both prepend the nonce or IV to the ciphertext
	if xmlenc.IsGCM(k.EncryptionAlgorithm) {
		ciphertext, err = xmlenc.AESGCMEncrypt(k.key, plaintext, nil)
	} else {
		ciphertext, err = xmlenc.AESCBCEncrypt(k.key, plaintext)
	}
	if err != nil {
		return fmt.Errorf("failed to encrypt: %w", err)
	}
	cv := replacement.FindElement(".//CipherValue")
	if cv == nil {
		return fmt.Errorf("EncryptedData has no CipherValue")
	}
	cv.SetText(base64.StdEncoding.EncodeToString(ciphertext))
	return nil
}

func isAESCBC(alg string) bool {
	switch alg {
	case AlgorithmAES128CBC, AlgorithmAES192CBC, AlgorithmAES256CBC:
		return true
	}
	return false
}

func (k *EncryptedKey) addDataReference(uri string) {
	k.model.ReferenceList = append(k.model.ReferenceList, xmlenc.DataReference{URI: uri})
	if k.refList == nil {
		k.refList = k.element.SelectElement("ReferenceList")
	}
	if k.refList == nil {
		k.refList = k.element.CreateElement("xenc:ReferenceList")
	}
	k.refList.CreateElement("xenc:DataReference").CreateAttr("URI", uri)
}

// namespaceDecls collects the namespace declarations in scope at el that
// are declared on its ancestors.
func namespaceDecls(el *etree.Element) map[string]string {
	decls := make(map[string]string)
	for p := el.Parent(); p != nil; p = p.Parent() {
		for key, uri := range namespaceDeclsOf(p) {
			if _, ok := decls[key]; !ok {
				decls[key] = uri
			}
		}
	}
	return decls
}

func namespaceDeclsOf(el *etree.Element) map[string]string {
	decls := make(map[string]string)
	for _, attr := range el.Attr {
		if attr.Space == "xmlns" || (attr.Space == "" && attr.Key == "xmlns") {
			decls[strings.TrimPrefix(attr.FullKey(), ":")] = attr.Value
		}
	}
	return decls
}
