package spdxser

import (
	"encoding/json"
	"strconv"

	"golang.org/x/xerrors"

	"github.com/heimdall-sbom/heimdall/internal/model"
	"github.com/heimdall-sbom/heimdall/internal/version"
)

// SPDX 3.x is JSON-LD: a @context URI plus a flat @graph of typed nodes.
// tools-golang has no 3.x writer, so the node shapes are emitted directly
// with struct tags. 3.0 and 3.0.1 differ only in specVersion and context
// URI; they are never merged.

type ldDocument struct {
	Context string `json:"@context"`
	Graph   []any  `json:"@graph"`
}

type ldCreationInfo struct {
	Type        string   `json:"type"`
	ID          string   `json:"@id"`
	SpecVersion string   `json:"specVersion"`
	Created     string   `json:"created"`
	CreatedBy   []string `json:"createdBy"`
}

type ldAgent struct {
	Type         string `json:"type"`
	SpdxID       string `json:"spdxId"`
	Name         string `json:"name"`
	CreationInfo string `json:"creationInfo"`
}

type ldSpdxDocument struct {
	Type               string   `json:"type"`
	SpdxID             string   `json:"spdxId"`
	Name               string   `json:"name"`
	ProfileConformance []string `json:"profileConformance"`
	RootElement        []string `json:"rootElement"`
	CreationInfo       string   `json:"creationInfo"`
}

type ldHash struct {
	Type      string `json:"type"`
	Algorithm string `json:"algorithm"`
	HashValue string `json:"hashValue"`
}

type ldPackage struct {
	Type             string   `json:"type"`
	SpdxID           string   `json:"spdxId"`
	Name             string   `json:"name"`
	PackageVersion   string   `json:"software_packageVersion,omitempty"`
	DownloadLocation string   `json:"software_downloadLocation,omitempty"`
	HomePage         string   `json:"software_homePage,omitempty"`
	PackageURL       string   `json:"software_packageUrl,omitempty"`
	CopyrightText    string   `json:"software_copyrightText"`
	SuppliedBy       string   `json:"suppliedBy,omitempty"`
	VerifiedUsing    []ldHash `json:"verifiedUsing,omitempty"`
	CreationInfo     string   `json:"creationInfo"`
}

type ldFile struct {
	Type         string `json:"type"`
	SpdxID       string `json:"spdxId"`
	Name         string `json:"name"`
	CreationInfo string `json:"creationInfo"`
}

type ldRelationship struct {
	Type             string   `json:"type"`
	SpdxID           string   `json:"spdxId"`
	RelationshipType string   `json:"relationshipType"`
	From             string   `json:"from"`
	To               []string `json:"to"`
	CreationInfo     string   `json:"creationInfo"`
}

// hashAlgos30 uses SPDX 3.x's lowercase algorithm vocabulary.
var hashAlgos30 = map[model.HashAlgorithm]string{
	model.HashMD5:    "md5",
	model.HashSHA1:   "sha1",
	model.HashSHA256: "sha256",
	model.HashSHA512: "sha512",
}

const creationInfoID = "_:creationinfo"

// write30 emits the document as SPDX 3.0 or 3.0.1 JSON-LD.
func (w Writer) write30(doc *model.Document, specVersion string) error {
	contextURI := "https://spdx.org/rdf/" + specVersion + "/spdx-context.jsonld"
	ns := namespaceFor(doc) + "#"

	toolID := ns + "Agent-heimdall"
	docID := ns + "SpdxDocument-" + documentUUID(doc)

	graph := []any{
		ldCreationInfo{
			Type:        "CreationInfo",
			ID:          creationInfoID,
			SpecVersion: specVersion,
			Created:     doc.CreatedAt.UTC().Format(timeLayout),
			CreatedBy:   []string{toolID},
		},
		ldAgent{
			Type:         "Tool",
			SpdxID:       toolID,
			Name:         version.ToolID(),
			CreationInfo: creationInfoID,
		},
	}

	for _, c := range doc.Creators {
		switch c.Kind {
		case model.CreatorOrganization:
			graph = append(graph, ldAgent{
				Type: "Organization", SpdxID: ns + "Agent-" + model.GenerateComponentID(c.Name, "", "", c.Name),
				Name: c.Name, CreationInfo: creationInfoID,
			})
		case model.CreatorPerson:
			graph = append(graph, ldAgent{
				Type: "Person", SpdxID: ns + "Agent-" + model.GenerateComponentID(c.Name, "", "", c.Name),
				Name: c.Name, CreationInfo: creationInfoID,
			})
		}
	}

	var rootElement []string
	if primary, ok := doc.Components[doc.PrimaryComponent]; ok {
		rootElement = []string{ns + packageID(primary)}
	}
	graph = append(graph, ldSpdxDocument{
		Type:               "SpdxDocument",
		SpdxID:             docID,
		Name:               documentName(doc) + "-sbom",
		ProfileConformance: []string{"core", "software"},
		RootElement:        rootElement,
		CreationInfo:       creationInfoID,
	})

	for _, c := range doc.SortedComponents() {
		graph = append(graph, convertPackage30(c, ns))
		for i, path := range c.SourceFiles {
			graph = append(graph, ldFile{
				Type:         "software_File",
				SpdxID:       ns + fileID23(c, i),
				Name:         path,
				CreationInfo: creationInfoID,
			})
			graph = append(graph, ldRelationship{
				Type:             "Relationship",
				SpdxID:           ns + "Relationship-contains-" + fileID23(c, i),
				RelationshipType: "contains",
				From:             ns + packageID(c),
				To:               []string{ns + fileID23(c, i)},
				CreationInfo:     creationInfoID,
			})
		}
	}

	for i, e := range doc.SortedEdges() {
		graph = append(graph, ldRelationship{
			Type:             "Relationship",
			SpdxID:           ns + "Relationship-dependsOn-" + strconv.Itoa(i),
			RelationshipType: "dependsOn",
			From:             ns + packageID(doc.Components[e.From]),
			To:               []string{ns + packageID(doc.Components[e.To])},
			CreationInfo:     creationInfoID,
		})
	}

	enc := json.NewEncoder(w.output)
	enc.SetIndent("", "  ")
	if err := enc.Encode(ldDocument{Context: contextURI, Graph: graph}); err != nil {
		return xerrors.Errorf("spdxser: write json-ld: %w", err)
	}
	return nil
}

func convertPackage30(c *model.Component, ns string) ldPackage {
	download := c.DownloadLocation
	if download == "" {
		download = "NOASSERTION"
	}

	pkg := ldPackage{
		Type:             "software_Package",
		SpdxID:           ns + packageID(c),
		Name:             c.Name,
		PackageVersion:   c.Version,
		DownloadLocation: download,
		HomePage:         c.Homepage,
		PackageURL:       c.PackagePURL,
		CopyrightText:    "NOASSERTION",
		CreationInfo:     creationInfoID,
	}
	if c.Supplier != "" && c.Supplier != model.NoAssertion {
		pkg.SuppliedBy = ns + "Agent-" + model.GenerateComponentID(c.Supplier, "", "", c.Supplier)
	}
	for _, algo := range []model.HashAlgorithm{model.HashMD5, model.HashSHA1, model.HashSHA256, model.HashSHA512} {
		if digest, ok := c.Hashes[algo]; ok {
			pkg.VerifiedUsing = append(pkg.VerifiedUsing, ldHash{
				Type:      "Hash",
				Algorithm: hashAlgos30[algo],
				HashValue: digest,
			})
		}
	}
	return pkg
}
