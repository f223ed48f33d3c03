package signer

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rsa"
	"encoding/base64"
	"math/big"

	"golang.org/x/xerrors"
)

// publicKey reconstructs the crypto public key a JWK describes, for
// verification of an embedded signature.
func (j *jwkJSON) publicKey() (any, error) {
	if j == nil {
		return nil, xerrors.Errorf("signer: signature carries no public key: %w", ErrKeyError)
	}
	switch j.Kty {
	case "RSA":
		n, err := base64.RawURLEncoding.DecodeString(j.N)
		if err != nil {
			return nil, xerrors.Errorf("signer: jwk n: %w", ErrKeyError)
		}
		e, err := base64.RawURLEncoding.DecodeString(j.E)
		if err != nil {
			return nil, xerrors.Errorf("signer: jwk e: %w", ErrKeyError)
		}
		return &rsa.PublicKey{
			N: new(big.Int).SetBytes(n),
			E: int(new(big.Int).SetBytes(e).Int64()),
		}, nil
	case "EC":
		curve, err := curveByName(j.Crv)
		if err != nil {
			return nil, err
		}
		x, err := base64.RawURLEncoding.DecodeString(j.X)
		if err != nil {
			return nil, xerrors.Errorf("signer: jwk x: %w", ErrKeyError)
		}
		y, err := base64.RawURLEncoding.DecodeString(j.Y)
		if err != nil {
			return nil, xerrors.Errorf("signer: jwk y: %w", ErrKeyError)
		}
		return &ecdsa.PublicKey{
			Curve: curve,
			X:     new(big.Int).SetBytes(x),
			Y:     new(big.Int).SetBytes(y),
		}, nil
	case "OKP":
		x, err := base64.RawURLEncoding.DecodeString(j.X)
		if err != nil || len(x) != ed25519.PublicKeySize {
			return nil, xerrors.Errorf("signer: jwk okp x: %w", ErrKeyError)
		}
		return ed25519.PublicKey(x), nil
	default:
		return nil, xerrors.Errorf("signer: jwk kty %q: %w", j.Kty, ErrKeyError)
	}
}

func curveByName(crv string) (elliptic.Curve, error) {
	switch crv {
	case "P-256":
		return elliptic.P256(), nil
	case "P-384":
		return elliptic.P384(), nil
	case "P-521":
		return elliptic.P521(), nil
	default:
		return nil, xerrors.Errorf("signer: jwk curve %q: %w", crv, ErrKeyError)
	}
}
