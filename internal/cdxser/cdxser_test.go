package cdxser

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/heimdall-sbom/heimdall/internal/model"
)

func testDocument(t *testing.T) *model.Document {
	t.Helper()

	doc := model.NewDocument(model.SpecCycloneDX, "1.6", "urn:uuid:f81d4fae-7dec-11d0-a765-00a0c91e6bf6",
		time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	primary := model.NewComponent()
	primary.ID = "app-1.0-aabbccdd00112233"
	primary.Name = "app"
	primary.Version = "1.0"
	primary.Kind = model.KindExecutable
	primary.Hashes[model.HashSHA256] = strings.Repeat("ab", 32)
	primary.PackagePURL = "pkg:deb/debian/app@1.0"

	lib := model.NewComponent()
	lib.ID = "libfoo-2.1-ddeeff0011223344"
	lib.Name = "libfoo"
	lib.Version = "2.1"
	lib.Kind = model.KindSharedLibrary
	lib.Hashes[model.HashSHA256] = strings.Repeat("cd", 32)

	doc.PrimaryComponent = primary.ID
	doc.AddComponent(primary)
	doc.AddComponent(lib)
	doc.AddEdge(primary.ID, lib.ID)
	doc.Freeze()
	return doc
}

func emit(t *testing.T, doc *model.Document, version string) map[string]any {
	t.Helper()

	var buf bytes.Buffer
	if err := NewWriter(&buf, version).Write(doc); err != nil {
		t.Fatalf("Write %s: %v", version, err)
	}
	var out map[string]any
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	return out
}

func TestWrite_RequiredTopLevel(t *testing.T) {
	out := emit(t, testDocument(t), "1.6")

	if out["bomFormat"] != "CycloneDX" {
		t.Errorf("bomFormat = %v", out["bomFormat"])
	}
	if out["specVersion"] != "1.6" {
		t.Errorf("specVersion = %v", out["specVersion"])
	}
	if out["serialNumber"] != "urn:uuid:f81d4fae-7dec-11d0-a765-00a0c91e6bf6" {
		t.Errorf("serialNumber = %v", out["serialNumber"])
	}
	if out["version"] != float64(1) {
		t.Errorf("version = %v", out["version"])
	}
	meta := out["metadata"].(map[string]any)
	if meta["timestamp"] != "2026-03-01T12:00:00+00:00" {
		t.Errorf("timestamp = %v", meta["timestamp"])
	}
}

func TestWrite_VersionDifferences(t *testing.T) {
	doc := testDocument(t)

	for _, tc := range []struct {
		version       string
		wantLifecycle bool
	}{
		{"1.4", false},
		{"1.5", true},
		{"1.6", true},
	} {
		t.Run(tc.version, func(t *testing.T) {
			out := emit(t, doc, tc.version)
			meta := out["metadata"].(map[string]any)

			_, hasLifecycles := meta["lifecycles"]
			if hasLifecycles != tc.wantLifecycle {
				t.Errorf("lifecycles present = %v, want %v", hasLifecycles, tc.wantLifecycle)
			}

			components := out["components"].([]any)
			first := components[0].(map[string]any)
			_, hasEvidence := first["evidence"]
			if hasEvidence != tc.wantLifecycle {
				t.Errorf("evidence present = %v, want %v", hasEvidence, tc.wantLifecycle)
			}
			if tc.wantLifecycle {
				identity := first["evidence"].(map[string]any)["identity"].(map[string]any)
				if identity["field"] == "" {
					t.Error("evidence.identity.field missing")
				}
			}
		})
	}
}

func TestWrite_ToolsShape(t *testing.T) {
	doc := testDocument(t)

	out15 := emit(t, doc, "1.5")
	tools15 := out15["metadata"].(map[string]any)["tools"].(map[string]any)
	if _, ok := tools15["components"]; !ok {
		t.Error("1.5 tools should use tools.components[]")
	}

	out14 := emit(t, doc, "1.4")
	tools14, ok := out14["metadata"].(map[string]any)["tools"].([]any)
	if !ok {
		t.Fatalf("1.4 tools should be a flat array, got %T", out14["metadata"].(map[string]any)["tools"])
	}
	tool := tools14[0].(map[string]any)
	if tool["name"] != "Heimdall" {
		t.Errorf("tool name = %v", tool["name"])
	}
}

func TestWrite_DependencyReferenceIntegrity(t *testing.T) {
	out := emit(t, testDocument(t), "1.6")

	refs := map[string]bool{}
	for _, c := range out["components"].([]any) {
		refs[c.(map[string]any)["bom-ref"].(string)] = true
	}

	for _, d := range out["dependencies"].([]any) {
		dep := d.(map[string]any)
		if !refs[dep["ref"].(string)] {
			t.Errorf("dependency ref %v not in components", dep["ref"])
		}
		for _, target := range dep["dependsOn"].([]any) {
			if !refs[target.(string)] {
				t.Errorf("dependsOn %v not in components", target)
			}
		}
	}
}

func TestWrite_DanglingReference(t *testing.T) {
	doc := testDocument(t)
	doc.Edges = append(doc.Edges, model.Edge{From: doc.PrimaryComponent, To: "no-such-component"})

	var buf bytes.Buffer
	err := NewWriter(&buf, "1.6").Write(doc)
	if !errors.Is(err, ErrDanglingReference) {
		t.Fatalf("err = %v, want ErrDanglingReference", err)
	}
	if buf.Len() != 0 {
		t.Errorf("bytes were written before the integrity failure: %q", buf.String())
	}
}

func TestWrite_InvalidHashRejected(t *testing.T) {
	doc := testDocument(t)
	doc.Components[doc.PrimaryComponent].Hashes[model.HashSHA256] = "not-hex!"

	var buf bytes.Buffer
	err := NewWriter(&buf, "1.6").Write(doc)
	if !errors.Is(err, ErrInvalidHash) {
		t.Fatalf("err = %v, want ErrInvalidHash", err)
	}
}

func TestWrite_HashLowercased(t *testing.T) {
	doc := testDocument(t)
	doc.Components[doc.PrimaryComponent].Hashes[model.HashSHA256] = strings.ToUpper(strings.Repeat("ab", 32))

	out := emit(t, doc, "1.6")
	for _, c := range out["components"].([]any) {
		comp := c.(map[string]any)
		hashes, ok := comp["hashes"].([]any)
		if !ok {
			continue
		}
		for _, h := range hashes {
			value := h.(map[string]any)["content"].(string)
			if value != strings.ToLower(value) {
				t.Errorf("digest not lowercased: %s", value)
			}
		}
	}
}

func TestWrite_UnknownVersion(t *testing.T) {
	var buf bytes.Buffer
	if err := NewWriter(&buf, "9.9").Write(testDocument(t)); err == nil {
		t.Fatal("expected unsupported version error")
	}
}
