// Package hashio computes content digests and performs the single
// size-capped read every extraction strategy shares.
package hashio

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"hash"
	"io"
	"os"

	"golang.org/x/xerrors"

	"github.com/heimdall-sbom/heimdall/internal/model"
)

// DefaultMaxSize is the default file-size cap: files larger than
// this fail with ErrTooLarge rather than being read.
const DefaultMaxSize = 2 << 30 // 2 GiB

// ErrTooLarge and ErrIoError mirror the root package's sentinels without
// importing it (internal packages stay below the root to avoid an import
// cycle); the orchestrator translates these into the root sentinels at the
// boundary.
var (
	ErrTooLarge = xerrors.New("file exceeds configured size cap")
	ErrIoError  = xerrors.New("io error")
)

func newHasher(algo model.HashAlgorithm) hash.Hash {
	switch algo {
	case model.HashMD5:
		return md5.New()
	case model.HashSHA1:
		return sha1.New()
	case model.HashSHA256:
		return sha256.New()
	case model.HashSHA512:
		return sha512.New()
	default:
		return nil
	}
}

// ComputeHashes reads path once, feeding every requested algorithm from
// the same stream via io.MultiWriter. Returns hex-lowercase digests keyed
// by algorithm.
func ComputeHashes(path string, algos []model.HashAlgorithm, maxSize int64) (map[model.HashAlgorithm]string, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, xerrors.Errorf("hashio: open %s: %w", path, ErrIoError)
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return nil, xerrors.Errorf("hashio: stat %s: %w", path, ErrIoError)
	}
	if info.Size() > maxSize {
		return nil, xerrors.Errorf("hashio: %s is %d bytes (cap %d): %w", path, info.Size(), maxSize, ErrTooLarge)
	}

	hashers := make(map[model.HashAlgorithm]hash.Hash, len(algos))
	writers := make([]io.Writer, 0, len(algos))
	for _, a := range algos {
		h := newHasher(a)
		if h == nil {
			continue
		}
		hashers[a] = h
		writers = append(writers, h)
	}

	mw := io.MultiWriter(writers...)
	if _, err := io.Copy(mw, f); err != nil {
		return nil, xerrors.Errorf("hashio: read %s: %w", path, ErrIoError)
	}

	out := make(map[model.HashAlgorithm]string, len(hashers))
	for a, h := range hashers {
		out[a] = hex.EncodeToString(h.Sum(nil))
	}
	return out, nil
}

// ReadAll reads the full contents of path into memory, enforcing the same
// size cap as ComputeHashes. Object-format decoders and the archive
// walker operate on this buffered region rather than re-opening the
// file.
func ReadAll(path string, maxSize int64) ([]byte, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, xerrors.Errorf("hashio: open %s: %w", path, ErrIoError)
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return nil, xerrors.Errorf("hashio: stat %s: %w", path, ErrIoError)
	}
	if info.Size() > maxSize {
		return nil, xerrors.Errorf("hashio: %s is %d bytes (cap %d): %w", path, info.Size(), maxSize, ErrTooLarge)
	}

	buf := make([]byte, info.Size())
	if _, err := io.ReadFull(f, buf); err != nil {
		return nil, xerrors.Errorf("hashio: read %s: %w", path, ErrIoError)
	}
	return buf, nil
}

// AllAlgorithms is the default algorithm set; SHA-256 is mandatory and
// allows the rest for.
var AllAlgorithms = []model.HashAlgorithm{model.HashMD5, model.HashSHA1, model.HashSHA256, model.HashSHA512}
