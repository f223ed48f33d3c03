package langadapter

import (
	"bytes"
	"debug/buildinfo"

	"github.com/heimdall-sbom/heimdall/internal/model"
)

// GoBuildInfoAdapter recovers a Go binary's module list and toolchain
// version from its embedded build info, via the standard library's
// debug/buildinfo — an exact stdlib fit for this one adapter.
type GoBuildInfoAdapter struct{}

func (a *GoBuildInfoAdapter) Name() string { return "go-buildinfo" }

// Recognize reports whether data carries a Go build-info blob, by
// attempting the same read buildinfo.Read itself does; an error just
// means "doesn't apply", not a failure worth propagating.
func (a *GoBuildInfoAdapter) Recognize(path string, data []byte) bool {
	_, err := buildinfo.Read(bytes.NewReader(data))
	return err == nil
}

// Enrich reads the Go module list out of the binary and records the main
// module's path/version on c, plus each dependency module as a
// "go.dep.<path>" property — the Go-module dependency graph sits
// alongside, not inside, the shared-library Needed[] the object decoders
// populate, since the two are resolved by different mechanisms.
func (a *GoBuildInfoAdapter) Enrich(c *model.Component, ctx Context) error {
	bi, err := buildinfo.Read(bytes.NewReader(ctx.Data))
	if err != nil {
		return nil // not a Go binary: a no-op, not a failure
	}

	if c.Name == "" && bi.Path != "" {
		c.Name = bi.Path
	}
	if c.Version == "" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		c.Version = bi.Main.Version
	}
	c.SetProperty("go.runtime", bi.GoVersion)
	for _, dep := range bi.Deps {
		v := dep.Version
		if dep.Replace != nil {
			v = dep.Replace.Version
		}
		c.SetProperty("go.dep."+dep.Path, v)
	}
	return nil
}
