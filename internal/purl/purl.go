// Package purl builds Package URL (PURL) strings for components discovered
// by the package-manager probe.
// See: https://github.com/package-url/purl-spec
package purl

import (
	"net/url"
	"sort"
	"strings"
)

// Type represents the package ecosystem in a PURL.
type Type string

// PURL type constants for the package-manager ecosystems the probe supports.
const (
	TypeDebian   Type = "deb"     // dpkg / apt
	TypeRPM      Type = "rpm"     // rpm / dnf / yum
	TypePacman   Type = "alpm"    // Arch Linux pacman
	TypeHomebrew Type = "brew"    // Homebrew formulae/casks
	TypeGolang   Type = "golang"  // Go module buildinfo
	TypeGeneric  Type = "generic" // fallback when no ecosystem is known
)

// PURL represents a package URL and its components.
type PURL struct {
	Type       Type
	Namespace  string // distro/vendor namespace, e.g. "debian", "fedora"
	Name       string
	Version    string
	Qualifiers map[string]string
	Subpath    string
}

// String formats the PURL as a standard purl-spec string. Returns "" when
// Type or Name is missing, since a purl without those is meaningless.
func (p *PURL) String() string {
	if p == nil || p.Type == "" || p.Name == "" {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("pkg:")
	sb.WriteString(string(p.Type))
	sb.WriteRune('/')

	if p.Namespace != "" {
		sb.WriteString(url.PathEscape(p.Namespace))
		sb.WriteRune('/')
	}

	sb.WriteString(url.PathEscape(p.Name))

	if p.Version != "" {
		sb.WriteRune('@')
		sb.WriteString(url.PathEscape(p.Version))
	}

	if len(p.Qualifiers) > 0 {
		sb.WriteRune('?')
		keys := make([]string, 0, len(p.Qualifiers))
		for k := range p.Qualifiers {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for i, k := range keys {
			if i > 0 {
				sb.WriteRune('&')
			}
			sb.WriteString(url.QueryEscape(k))
			sb.WriteRune('=')
			sb.WriteString(url.QueryEscape(p.Qualifiers[k]))
		}
	}

	if p.Subpath != "" {
		sb.WriteRune('#')
		sb.WriteString(p.Subpath)
	}

	return sb.String()
}

// FromPackageProbe builds a PURL from the result of a package-manager probe
// match. distro is the namespace (e.g. "debian", "ubuntu", "fedora");
// it may be empty for ecosystems that don't carry one (Homebrew, Go).
func FromPackageProbe(ecosystem Type, distro, name, version string) *PURL {
	if name == "" {
		return nil
	}
	return &PURL{
		Type:      ecosystem,
		Namespace: distro,
		Name:      name,
		Version:   version,
	}
}
