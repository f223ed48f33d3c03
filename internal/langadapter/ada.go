package langadapter

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/heimdall-sbom/heimdall/internal/model"
)

// AliUnit is one GNAT unit recovered from a .ali file: its name, defining
// source file, and the units it withs (imports).
type AliUnit struct {
	Name       string
	SourceFile string
	Imports    []string
}

// AdaAdapter recognizes GNAT .ali library information files and, given a
// companion directory (Context.AliDir), recovers unit names, source
// files, and import relationships.
type AdaAdapter struct{}

func (a *AdaAdapter) Name() string { return "ada" }

// Recognize matches either a ".ali" extension or the GNAT version-banner
// line ("V \"GNAT ...\"") that every .ali file opens with.
func (a *AdaAdapter) Recognize(path string, data []byte) bool {
	if strings.HasSuffix(path, ".ali") {
		return true
	}
	return bytes.HasPrefix(bytes.TrimSpace(data), []byte(`V "GNAT`))
}

// Enrich records how many Ada units the companion directory yielded as a
// provenance property; the units themselves become their own Source
// Components in the graph builder, which calls ParseAliDir and
// UnitsToComponents directly rather than folding units into the binary's
// own Component.
func (a *AdaAdapter) Enrich(c *model.Component, ctx Context) error {
	if ctx.AliDir == "" {
		return nil
	}
	units, err := ParseAliDir(ctx.AliDir)
	if err != nil {
		return err
	}
	if len(units) > 0 {
		c.SetProperty("ada.units", fmt.Sprintf("%d", len(units)))
	}
	return nil
}

// ParseAliDir parses every ".ali" file in dir and returns the recovered
// units. A directory that doesn't exist or contains no .ali files yields
// an empty, non-error result.
func ParseAliDir(dir string) ([]AliUnit, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil //nolint:nilerr // missing companion directory is not fatal
	}

	var units []AliUnit
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".ali") {
			continue
		}
		data, rerr := os.ReadFile(filepath.Join(dir, e.Name()))
		if rerr != nil {
			continue
		}
		u, perr := ParseAli(data)
		if perr != nil {
			continue
		}
		units = append(units, u)
	}
	return units, nil
}

// ParseAli parses one GNAT .ali file's text format, recovering the unit
// name (from the "U " line), its defining source file, and the units it
// withs (from "W " lines).
func ParseAli(data []byte) (AliUnit, error) {
	var unit AliUnit

	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := sc.Text()
		if len(line) < 2 {
			continue
		}
		switch {
		case strings.HasPrefix(line, "U "):
			fields := strings.Fields(line)
			if len(fields) >= 3 {
				unit.Name = stripUnitKind(fields[1])
				unit.SourceFile = fields[2]
			}
		case strings.HasPrefix(line, "W "):
			fields := strings.Fields(line)
			if len(fields) >= 2 {
				unit.Imports = append(unit.Imports, stripUnitKind(fields[1]))
			}
		}
	}

	if unit.Name == "" {
		return unit, fmt.Errorf("langadapter: ada: no U line found")
	}
	return unit, nil
}

// stripUnitKind removes GNAT's "%b" (body) / "%s" (spec) unit-kind suffix
// from a unit name field.
func stripUnitKind(field string) string {
	if idx := strings.IndexByte(field, '%'); idx >= 0 {
		return field[:idx]
	}
	return field
}

// UnitsToComponents converts parsed Ada units into Source Components, one
// per unit, of kind Source, for the graph builder to add to the
// document.
func UnitsToComponents(units []AliUnit) []*model.Component {
	out := make([]*model.Component, 0, len(units))
	for _, u := range units {
		c := model.NewComponent()
		c.Name = u.Name
		c.Kind = model.KindSource
		if u.SourceFile != "" {
			c.SourceFiles = []string{u.SourceFile}
		}
		c.CompileUnits = []model.CompileUnit{{Name: u.Name, Language: "Ada"}}
		for _, imp := range u.Imports {
			c.SetProperty("ada.with."+imp, "true")
		}
		out = append(out, c)
	}
	return out
}
