// Package supplier derives a component's supplier/organization string from
// the metadata a package-manager probe turns up: a dpkg Maintainer
// field, an RPM vendor tag, a Homebrew tap, or a pacman repository name.
package supplier

import "strings"

// Org identifies the organization or distro repository that published a
// component, independent of which package manager reported it.
type Org string

// Known organizations the probe can recognize by name or homepage host.
const (
	OrgDebian   Org = "debian"
	OrgUbuntu   Org = "ubuntu"
	OrgFedora   Org = "fedora"
	OrgRHEL     Org = "redhat"
	OrgArch     Org = "archlinux"
	OrgHomebrew Org = "homebrew"
	OrgUnknown  Org = ""
)

// knownOrgs maps exact distro/tap identifiers, as they appear in
// package-manager metadata, to a canonical Org.
var knownOrgs = map[string]Org{
	"debian":   OrgDebian,
	"ubuntu":   OrgUbuntu,
	"fedora":   OrgFedora,
	"rhel":     OrgRHEL,
	"redhat":   OrgRHEL,
	"centos":   OrgRHEL,
	"arch":     OrgArch,
	"archlinux": OrgArch,
	"homebrew": OrgHomebrew,
}

// hostSuffixes maps a homepage/maintainer-email host suffix to a canonical
// Org, for probes that only have a URL or email to go on.
var hostSuffixes = []struct {
	suffix string
	org    Org
}{
	{"debian.org", OrgDebian},
	{"ubuntu.com", OrgUbuntu},
	{"fedoraproject.org", OrgFedora},
	{"redhat.com", OrgRHEL},
	{"archlinux.org", OrgArch},
	{"brew.sh", OrgHomebrew},
}

// Info is the result of identifying a supplier from probe metadata.
type Info struct {
	Org        Org
	Maintainer string // raw Maintainer/Vendor string as reported by the package manager, if any
}

// FromDistro resolves a canonical Org from a distro/tap identifier such as
// "debian", "ubuntu", or "homebrew" as reported directly by the probe.
func FromDistro(distro string) Org {
	if org, ok := knownOrgs[strings.ToLower(strings.TrimSpace(distro))]; ok {
		return org
	}
	return OrgUnknown
}

// FromHomepage resolves a canonical Org from a package's homepage or
// maintainer-email host, using suffix matching since distro homepages
// commonly live under subdomains (e.g. "packages.debian.org").
func FromHomepage(host string) Org {
	host = strings.ToLower(strings.TrimSpace(host))
	if host == "" {
		return OrgUnknown
	}
	for _, h := range hostSuffixes {
		if host == h.suffix || strings.HasSuffix(host, "."+h.suffix) {
			return h.org
		}
	}
	return OrgUnknown
}

// Resolve builds supplier Info from whatever the probe managed to collect.
// distro takes priority over homepage since it is the more direct signal;
// maintainer is carried through unchanged for display in SBOM output.
func Resolve(distro, homepage, maintainer string) Info {
	org := FromDistro(distro)
	if org == OrgUnknown {
		org = FromHomepage(homepage)
	}
	return Info{Org: org, Maintainer: strings.TrimSpace(maintainer)}
}

// IsKnown reports whether org is one this package can recognize by name,
// as opposed to an arbitrary third-party tap or repository.
func IsKnown(org Org) bool {
	return org != OrgUnknown
}

// String renders the supplier for SBOM output: the maintainer string when
// present (it already carries a name and/or email), falling back to the
// canonical org name.
func (i Info) String() string {
	if i.Maintainer != "" {
		return i.Maintainer
	}
	return string(i.Org)
}
