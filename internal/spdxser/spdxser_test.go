package spdxser

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

	doc := model.NewDocument(model.SpecSPDX, "2.3", "urn:uuid:f81d4fae-7dec-11d0-a765-00a0c91e6bf6",
		time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	primary := model.NewComponent()
	primary.ID = "app-1.0-aabbccdd00112233"
	primary.Name = "app"
	primary.Version = "1.0"
	primary.Kind = model.KindExecutable
	primary.Hashes[model.HashSHA256] = strings.Repeat("ab", 32)
	primary.Supplier = "Debian"

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

func TestWrite23_JSON(t *testing.T) {
	var buf bytes.Buffer
	if err := NewWriter(&buf, "2.3", FormJSON).Write(testDocument(t)); err != nil {
		t.Fatalf("Write: %v", err)
	}

	var out map[string]any
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}

	if out["spdxVersion"] != "SPDX-2.3" {
		t.Errorf("spdxVersion = %v", out["spdxVersion"])
	}
	if out["dataLicense"] != "CC0-1.0" {
		t.Errorf("dataLicense = %v", out["dataLicense"])
	}
	if !strings.HasPrefix(out["documentNamespace"].(string), NamespaceBase) {
		t.Errorf("documentNamespace = %v", out["documentNamespace"])
	}

	packages := out["packages"].([]any)
	if len(packages) != 2 {
		t.Fatalf("packages = %d, want 2", len(packages))
	}
	first := packages[0].(map[string]any)
	if first["name"] != "app" {
		t.Errorf("first package = %v, want primary first", first["name"])
	}
	if first["licenseConcluded"] != "NOASSERTION" {
		t.Errorf("licenseConcluded = %v", first["licenseConcluded"])
	}

	creators := out["creationInfo"].(map[string]any)["creators"].([]any)
	foundTool := false
	for _, c := range creators {
		if strings.HasPrefix(c.(string), "Tool: Heimdall-") {
			foundTool = true
		}
	}
	if !foundTool {
		t.Errorf("no Heimdall tool creator in %v", creators)
	}
}

func TestWrite23_RelationshipIntegrity(t *testing.T) {
	var buf bytes.Buffer
	if err := NewWriter(&buf, "2.3", FormJSON).Write(testDocument(t)); err != nil {
		t.Fatalf("Write: %v", err)
	}

	var out map[string]any
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatal(err)
	}

	defined := map[string]bool{"SPDXRef-DOCUMENT": true}
	for _, p := range out["packages"].([]any) {
		defined[p.(map[string]any)["SPDXID"].(string)] = true
	}
	if files, ok := out["files"].([]any); ok {
		for _, f := range files {
			defined[f.(map[string]any)["SPDXID"].(string)] = true
		}
	}

	sawDependsOn := false
	for _, r := range out["relationships"].([]any) {
		rel := r.(map[string]any)
		if !defined[rel["spdxElementId"].(string)] {
			t.Errorf("relationship refA %v undefined", rel["spdxElementId"])
		}
		if !defined[rel["relatedSpdxElement"].(string)] {
			t.Errorf("relationship refB %v undefined", rel["relatedSpdxElement"])
		}
		if rel["relationshipType"] == "DEPENDS_ON" {
			sawDependsOn = true
		}
	}
	if !sawDependsOn {
		t.Error("no DEPENDS_ON relationship emitted")
	}
}

func TestWrite23_TagValue(t *testing.T) {
	var buf bytes.Buffer
	if err := NewWriter(&buf, "2.3", FormTagValue).Write(testDocument(t)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"SPDXVersion: SPDX-2.3",
		"DataLicense: CC0-1.0",
		"PackageName: app",
		"PackageVersion: 1.0",
		"Relationship:",
		"DEPENDS_ON",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("tag-value output missing %q", want)
		}
	}
}

func TestWrite30_VersionsDistinct(t *testing.T) {
	for _, tc := range []struct {
		version string
		context string
	}{
		{"3.0", "https://spdx.org/rdf/3.0/spdx-context.jsonld"},
		{"3.0.1", "https://spdx.org/rdf/3.0.1/spdx-context.jsonld"},
	} {
		t.Run(tc.version, func(t *testing.T) {
			var buf bytes.Buffer
			if err := NewWriter(&buf, tc.version, FormJSON).Write(testDocument(t)); err != nil {
				t.Fatalf("Write: %v", err)
			}

			var out map[string]any
			if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
				t.Fatal(err)
			}
			if out["@context"] != tc.context {
				t.Errorf("@context = %v, want %v", out["@context"], tc.context)
			}

			graph := out["@graph"].([]any)
			if len(graph) == 0 {
				t.Fatal("empty @graph")
			}
			ci := graph[0].(map[string]any)
			if ci["type"] != "CreationInfo" || ci["specVersion"] != tc.version {
				t.Errorf("creation info = %v", ci)
			}

			sawDocument, sawPackage, sawDependsOn := false, false, false
			for _, n := range graph {
				node := n.(map[string]any)
				switch node["type"] {
				case "SpdxDocument":
					sawDocument = true
				case "software_Package":
					sawPackage = true
				case "Relationship":
					if node["relationshipType"] == "dependsOn" {
						sawDependsOn = true
					}
				}
			}
			if !sawDocument || !sawPackage || !sawDependsOn {
				t.Errorf("graph missing nodes: document=%v package=%v dependsOn=%v",
					sawDocument, sawPackage, sawDependsOn)
			}
		})
	}
}

func TestWrite_DanglingReference(t *testing.T) {
	doc := testDocument(t)
	doc.Edges = append(doc.Edges, model.Edge{From: "ghost", To: doc.PrimaryComponent})

	var buf bytes.Buffer
	err := NewWriter(&buf, "2.3", FormJSON).Write(doc)
	if !errors.Is(err, ErrDanglingReference) {
		t.Fatalf("err = %v, want ErrDanglingReference", err)
	}
	if buf.Len() != 0 {
		t.Errorf("bytes written despite integrity failure")
	}
}

func TestWrite_UnknownVersion(t *testing.T) {
	var buf bytes.Buffer
	if err := NewWriter(&buf, "4.5", FormJSON).Write(testDocument(t)); err == nil {
		t.Fatal("expected unsupported version error")
	}
}
