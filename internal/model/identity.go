package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// MaxIDComponentLength bounds a sanitized identifier segment. No SBOM
// format mandates a maximum, but some downstream tools impose practical
// limits, so segments are truncated to stay portable.
const MaxIDComponentLength = 128

// GenerateComponentID builds a component's stable identifier:
// "<name>-<version>-<hash[0:16]>" when a SHA-256 is known, else
// "<name>-<version>", else "<name>-<path-hash>" keyed off the file path.
// Two artifacts that hash identically therefore collide on id by
// construction, which is what document-level dedup relies on.
func GenerateComponentID(name, version, sha256Hex, filePath string) string {
	name = sanitizeIDSegment(name)
	switch {
	case sha256Hex != "":
		n := sha256Hex
		if len(n) > 16 {
			n = n[:16]
		}
		return fmt.Sprintf("%s-%s-%s", name, sanitizeIDSegment(version), n)
	case version != "":
		return fmt.Sprintf("%s-%s", name, sanitizeIDSegment(version))
	default:
		return fmt.Sprintf("%s-%s", name, pathHash(filePath))
	}
}

// pathHash derives a short stable suffix from a file path, for components
// whose name and version are both unknown (e.g. an unidentified object
// file reached only by path).
func pathHash(filePath string) string {
	sum := sha256.Sum256([]byte(filePath))
	return hex.EncodeToString(sum[:])[:16]
}

// sanitizeIDSegment restricts a name/version segment to characters safe in
// both SPDX and CycloneDX identifiers ([a-zA-Z0-9.-_]), replacing anything
// else with a hyphen, and truncates to MaxIDComponentLength. Empty input
// becomes "unknown" so a zero-length segment never produces a malformed id.
func sanitizeIDSegment(s string) string {
	if s == "" {
		return "unknown"
	}

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if isValidIDChar(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune('-')
		}
	}

	out := b.String()
	if len(out) > MaxIDComponentLength {
		out = out[:MaxIDComponentLength]
	}
	return out
}

func isValidIDChar(r rune) bool {
	return (r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9') ||
		r == '.' || r == '-' || r == '_'
}

// ComponentSHA256 returns c's SHA-256 digest if computed, else "".
func (c *Component) ComponentSHA256() string {
	return c.Hashes[HashSHA256]
}
