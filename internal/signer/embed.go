package signer

import (
	"encoding/json"

	"golang.org/x/xerrors"

	"github.com/heimdall-sbom/heimdall/internal/canon"
	"github.com/heimdall-sbom/heimdall/internal/model"
)

// SignDocument canonicalizes an emitted CycloneDX JSON document, signs
// the canonical bytes, and returns the document with the signature
// embedded as a top-level sibling of components. Any pre-existing
// signature is replaced.
func SignDocument(docJSON []byte, s *Signer) ([]byte, *model.SignatureInfo, error) {
	canonical, err := canon.Canonicalize(docJSON)
	if err != nil {
		return nil, nil, err
	}
	info, err := s.Sign(canonical)
	if err != nil {
		return nil, nil, err
	}
	signed, err := embed(docJSON, info)
	if err != nil {
		return nil, nil, err
	}
	return signed, info, nil
}

// VerifyDocument strips the embedded signature, re-canonicalizes, and
// checks the signature value against the embedded public key — the
// inverse of SignDocument.
func VerifyDocument(signedJSON []byte) error {
	var doc struct {
		Signature *signatureJSON `json:"signature"`
	}
	if err := json.Unmarshal(signedJSON, &doc); err != nil {
		return xerrors.Errorf("signer: parse signed document: %w", err)
	}
	if doc.Signature == nil {
		return xerrors.Errorf("signer: document carries no signature: %w", ErrKeyError)
	}

	public, err := doc.Signature.PublicKey.publicKey()
	if err != nil {
		return err
	}
	canonical, err := canon.Canonicalize(signedJSON)
	if err != nil {
		return err
	}
	return Verify(canonical, doc.Signature.Algorithm, doc.Signature.Value, public)
}

// signatureJSON is the JSF envelope's on-disk shape.
type signatureJSON struct {
	Algorithm string   `json:"algorithm"`
	KeyID     string   `json:"keyId,omitempty"`
	PublicKey *jwkJSON `json:"publicKey"`
	Value     string   `json:"value"`
}

type jwkJSON struct {
	Kty string `json:"kty"`
	Crv string `json:"crv,omitempty"`
	X   string `json:"x,omitempty"`
	Y   string `json:"y,omitempty"`
	N   string `json:"n,omitempty"`
	E   string `json:"e,omitempty"`
}

func embed(docJSON []byte, info *model.SignatureInfo) ([]byte, error) {
	var m map[string]any
	if err := json.Unmarshal(docJSON, &m); err != nil {
		return nil, xerrors.Errorf("signer: parse document: %w", err)
	}

	sig := signatureJSON{
		Algorithm: info.Algorithm,
		KeyID:     info.KeyID,
		Value:     info.Value,
	}
	if info.PublicKey != nil {
		sig.PublicKey = &jwkJSON{
			Kty: info.PublicKey.Kty,
			Crv: info.PublicKey.Crv,
			X:   info.PublicKey.X,
			Y:   info.PublicKey.Y,
			N:   info.PublicKey.N,
			E:   info.PublicKey.E,
		}
	}

	// Round-trip through any so the signature lands in the same generic
	// tree as the rest of the document before re-marshaling.
	raw, err := json.Marshal(sig)
	if err != nil {
		return nil, xerrors.Errorf("signer: marshal signature: %w", err)
	}
	var sigTree any
	if err := json.Unmarshal(raw, &sigTree); err != nil {
		return nil, xerrors.Errorf("signer: reshape signature: %w", err)
	}
	m[canon.SignatureField] = sigTree

	return json.MarshalIndent(m, "", "  ")
}
