// Package signer produces JSF-style digital signatures over a
// canonicalized CycloneDX document: RS256/384/512, ES256/384/512,
// and Ed25519, with the raw signature base64url-encoded (no padding) and
// embedded as a top-level "signature" object. The signing primitives are
// the JWS methods from golang-jwt, which already produce the JOSE wire
// form (PKCS#1 v1.5 for RS*, fixed-width r||s for ES*).
package signer

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"os"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/xerrors"

	"github.com/heimdall-sbom/heimdall/internal/model"
)

// ErrKeyError mirrors the root sentinel, translated at the Core API
// boundary.
var ErrKeyError = xerrors.New("signing key error")

// signingMethods maps the supported algorithm names onto golang-jwt's method
// table. "Ed25519" is JOSE's EdDSA restricted to the Ed25519 curve, which
// is the only curve golang-jwt implements for it.
var signingMethods = map[string]jwt.SigningMethod{
	"RS256":   jwt.SigningMethodRS256,
	"RS384":   jwt.SigningMethodRS384,
	"RS512":   jwt.SigningMethodRS512,
	"ES256":   jwt.SigningMethodES256,
	"ES384":   jwt.SigningMethodES384,
	"ES512":   jwt.SigningMethodES512,
	"Ed25519": jwt.SigningMethodEdDSA,
}

// Signer holds one loaded private key bound to one algorithm.
type Signer struct {
	algorithm string
	method    jwt.SigningMethod
	private   any
	public    any
	keyID     string
	certChain []byte
}

// New loads a PEM private key from keyPath and binds it to algorithm,
// verifying the key type matches. The PEM bytes read from disk are
// zeroized before New returns; key material is never logged.
func New(keyPath, algorithm, keyID, certPath string) (*Signer, error) {
	method, ok := signingMethods[algorithm]
	if !ok {
		return nil, xerrors.Errorf("signer: algorithm %q: %w", algorithm, ErrKeyError)
	}

	pemBytes, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, xerrors.Errorf("signer: read key %s: %w", keyPath, ErrKeyError)
	}
	private, err := parsePrivateKey(pemBytes)
	zeroize(pemBytes)
	if err != nil {
		return nil, xerrors.Errorf("signer: parse key %s: %w", keyPath, err)
	}

	public, err := publicOf(private)
	if err != nil {
		return nil, err
	}
	if err := checkKeyMatchesAlgorithm(private, algorithm); err != nil {
		return nil, err
	}

	s := &Signer{
		algorithm: algorithm,
		method:    method,
		private:   private,
		public:    public,
		keyID:     keyID,
	}

	if certPath != "" {
		chain, err := os.ReadFile(certPath)
		if err != nil {
			return nil, xerrors.Errorf("signer: read certificate %s: %w", certPath, ErrKeyError)
		}
		s.certChain = chain
	}
	return s, nil
}

// Sign signs the canonical bytes, returning the signature envelope to
// embed: algorithm, public key as JWK, and the unpadded base64url value.
func (s *Signer) Sign(canonical []byte) (*model.SignatureInfo, error) {
	sig, err := s.method.Sign(string(canonical), s.private)
	if err != nil {
		return nil, xerrors.Errorf("signer: sign: %v: %w", err, ErrKeyError)
	}

	jwk, err := publicJWK(s.public)
	if err != nil {
		return nil, err
	}
	return &model.SignatureInfo{
		Algorithm:        s.algorithm,
		KeyID:            s.keyID,
		Value:            base64.RawURLEncoding.EncodeToString(sig),
		PublicKey:        jwk,
		CertificateChain: s.certChain,
	}, nil
}

// Verify checks a base64url signature value over canonical bytes against
// a public key, the inverse of Sign.
func Verify(canonical []byte, algorithm, value string, public any) error {
	method, ok := signingMethods[algorithm]
	if !ok {
		return xerrors.Errorf("signer: algorithm %q: %w", algorithm, ErrKeyError)
	}
	sig, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return xerrors.Errorf("signer: decode signature: %w", err)
	}
	if err := method.Verify(string(canonical), sig, public); err != nil {
		return xerrors.Errorf("signer: verify: %w", err)
	}
	return nil
}

// parsePrivateKey accepts PKCS#8, PKCS#1 (RSA), and SEC 1 (EC) PEM
// blocks.
func parsePrivateKey(pemBytes []byte) (any, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, xerrors.Errorf("no PEM block found: %w", ErrKeyError)
	}
	if key, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	if key, err := x509.ParseECPrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	return nil, xerrors.Errorf("unsupported private key encoding: %w", ErrKeyError)
}

func publicOf(private any) (any, error) {
	switch k := private.(type) {
	case *rsa.PrivateKey:
		return &k.PublicKey, nil
	case *ecdsa.PrivateKey:
		return &k.PublicKey, nil
	case ed25519.PrivateKey:
		return k.Public().(ed25519.PublicKey), nil
	default:
		return nil, xerrors.Errorf("unsupported private key type: %w", ErrKeyError)
	}
}

// checkKeyMatchesAlgorithm rejects an algorithm/key mismatch up front
// as a KeyError instead of failing inside the signing method.
func checkKeyMatchesAlgorithm(private any, algorithm string) error {
	var ok bool
	switch private.(type) {
	case *rsa.PrivateKey:
		ok = algorithm == "RS256" || algorithm == "RS384" || algorithm == "RS512"
	case *ecdsa.PrivateKey:
		ok = algorithm == "ES256" || algorithm == "ES384" || algorithm == "ES512"
	case ed25519.PrivateKey:
		ok = algorithm == "Ed25519"
	}
	if !ok {
		return xerrors.Errorf("key type does not match algorithm %s: %w", algorithm, ErrKeyError)
	}
	return nil
}

// publicJWK renders the public half as the minimal JWK field set the
// signature envelope carries.
func publicJWK(public any) (*model.JWK, error) {
	switch k := public.(type) {
	case *rsa.PublicKey:
		e := big64(int64(k.E))
		return &model.JWK{
			Kty: "RSA",
			N:   base64.RawURLEncoding.EncodeToString(k.N.Bytes()),
			E:   base64.RawURLEncoding.EncodeToString(e),
		}, nil
	case *ecdsa.PublicKey:
		crv, err := curveName(k)
		if err != nil {
			return nil, err
		}
		size := (k.Curve.Params().BitSize + 7) / 8
		return &model.JWK{
			Kty: "EC",
			Crv: crv,
			X:   base64.RawURLEncoding.EncodeToString(k.X.FillBytes(make([]byte, size))),
			Y:   base64.RawURLEncoding.EncodeToString(k.Y.FillBytes(make([]byte, size))),
		}, nil
	case ed25519.PublicKey:
		return &model.JWK{
			Kty: "OKP",
			Crv: "Ed25519",
			X:   base64.RawURLEncoding.EncodeToString(k),
		}, nil
	default:
		return nil, xerrors.Errorf("unsupported public key type: %w", ErrKeyError)
	}
}

func curveName(k *ecdsa.PublicKey) (string, error) {
	switch k.Curve {
	case elliptic.P256():
		return "P-256", nil
	case elliptic.P384():
		return "P-384", nil
	case elliptic.P521():
		return "P-521", nil
	default:
		return "", xerrors.Errorf("unsupported curve: %w", ErrKeyError)
	}
}

// big64 renders a small integer big-endian with no leading zeros, the JWK
// form for RSA exponents.
func big64(v int64) []byte {
	var out []byte
	for v > 0 {
		out = append([]byte{byte(v & 0xff)}, out...)
		v >>= 8
	}
	if len(out) == 0 {
		out = []byte{0}
	}
	return out
}

func zeroize(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
