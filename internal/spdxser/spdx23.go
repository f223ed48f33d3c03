package spdxser

import (
	"os"
	"strconv"

	spdxjson "github.com/spdx/tools-golang/json"
	"github.com/spdx/tools-golang/spdx"
	"github.com/spdx/tools-golang/spdx/v2/common"
	spdx23 "github.com/spdx/tools-golang/spdx/v2/v2_3"
	"github.com/spdx/tools-golang/tagvalue"
	"golang.org/x/xerrors"

	"github.com/heimdall-sbom/heimdall/internal/hashio"
	"github.com/heimdall-sbom/heimdall/internal/model"
	"github.com/heimdall-sbom/heimdall/internal/version"
)

// timeLayout is SPDX's creation-info timestamp form (UTC, seconds).
const timeLayout = "2006-01-02T15:04:05Z"

// checksumAlgos maps model algorithms to SPDX spellings (MD5, SHA1,
// SHA256, SHA512 — no hyphens).
var checksumAlgos = map[model.HashAlgorithm]common.ChecksumAlgorithm{
	model.HashMD5:    common.MD5,
	model.HashSHA1:   common.SHA1,
	model.HashSHA256: common.SHA256,
	model.HashSHA512: common.SHA512,
}

// write23 emits SPDX 2.3, tag-value or JSON, through spdx/tools-golang's
// own writers so field names and ordering follow the library's published
// struct tags.
func (w Writer) write23(doc *model.Document) error {
	sdoc, err := convert23(doc)
	if err != nil {
		return err
	}

	switch w.form {
	case FormTagValue:
		if err := tagvalue.Write(sdoc, w.output); err != nil {
			return xerrors.Errorf("spdxser: write tag-value: %w", err)
		}
	default:
		if err := spdxjson.Write(sdoc, w.output); err != nil {
			return xerrors.Errorf("spdxser: write json: %w", err)
		}
	}
	return nil
}

func convert23(doc *model.Document) (*spdx23.Document, error) {
	sdoc := &spdx23.Document{
		SPDXVersion:       spdx.Version,
		DataLicense:       spdx.DataLicense,
		SPDXIdentifier:    common.ElementID("DOCUMENT"),
		DocumentName:      documentName(doc) + "-sbom",
		DocumentNamespace: namespaceFor(doc),
		CreationInfo: &spdx23.CreationInfo{
			Created:  doc.CreatedAt.UTC().Format(timeLayout),
			Creators: creators23(doc),
		},
	}

	for _, c := range doc.SortedComponents() {
		pkg := convertPackage23(c)
		sdoc.Packages = append(sdoc.Packages, pkg)

		if c.ID == doc.PrimaryComponent {
			sdoc.Relationships = append(sdoc.Relationships, &spdx23.Relationship{
				RefA:         common.MakeDocElementID("", "DOCUMENT"),
				RefB:         common.MakeDocElementID("", packageID(c)),
				Relationship: "DESCRIBES",
			})
		}

		files, fileRels := convertFiles23(c)
		sdoc.Files = append(sdoc.Files, files...)
		sdoc.Relationships = append(sdoc.Relationships, fileRels...)
	}

	for _, e := range doc.SortedEdges() {
		sdoc.Relationships = append(sdoc.Relationships, &spdx23.Relationship{
			RefA:         common.MakeDocElementID("", packageID(doc.Components[e.From])),
			RefB:         common.MakeDocElementID("", packageID(doc.Components[e.To])),
			Relationship: "DEPENDS_ON",
		})
	}

	return sdoc, nil
}

func creators23(doc *model.Document) []common.Creator {
	creators := []common.Creator{
		{CreatorType: "Tool", Creator: version.ToolID()},
	}
	for _, c := range doc.Creators {
		switch c.Kind {
		case model.CreatorOrganization, model.CreatorPerson:
			name := c.Name
			if c.Email != "" {
				name += " (" + c.Email + ")"
			}
			creators = append(creators, common.Creator{CreatorType: string(c.Kind), Creator: name})
		}
	}
	return creators
}

// packageID returns the component's SPDX element id, without the
// "SPDXRef-" prefix the library adds during serialization.
func packageID(c *model.Component) string {
	return "Package-" + c.ID
}

func convertPackage23(c *model.Component) *spdx23.Package {
	download := c.DownloadLocation
	if download == "" {
		download = "NOASSERTION"
	}
	license := c.License
	if license == "" {
		license = "NOASSERTION"
	}

	pkg := &spdx23.Package{
		PackageName:             c.Name,
		PackageSPDXIdentifier:   common.ElementID(packageID(c)),
		PackageVersion:          c.Version,
		PackageFileName:         c.FilePath,
		PackageDownloadLocation: download,
		FilesAnalyzed:           false,
		PackageLicenseConcluded: license,
		PackageLicenseDeclared:  license,
		PackageCopyrightText:    "NOASSERTION",
		PackageHomePage:         c.Homepage,
	}

	if c.Supplier != "" && c.Supplier != model.NoAssertion {
		pkg.PackageSupplier = &common.Supplier{
			Supplier:     c.Supplier,
			SupplierType: "Organization",
		}
	}

	for _, algo := range []model.HashAlgorithm{model.HashMD5, model.HashSHA1, model.HashSHA256, model.HashSHA512} {
		if digest, ok := c.Hashes[algo]; ok {
			pkg.PackageChecksums = append(pkg.PackageChecksums, common.Checksum{
				Algorithm: checksumAlgos[algo],
				Value:     digest,
			})
		}
	}

	if c.PackagePURL != "" {
		pkg.PackageExternalReferences = []*spdx23.PackageExternalReference{
			{
				Category: common.CategoryPackageManager,
				RefType:  "purl",
				Locator:  c.PackagePURL,
			},
		}
	}

	return pkg
}

// convertFiles23 emits the component's discovered source files as SPDX
// File entries. SPDX requires a SHA1 per file, so only files still
// readable on disk are emitted; a source path recovered from DWARF for a
// build tree that no longer exists is silently skipped.
func convertFiles23(c *model.Component) ([]*spdx23.File, []*spdx23.Relationship) {
	var files []*spdx23.File
	var rels []*spdx23.Relationship

	for i, path := range c.SourceFiles {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		sums, err := hashio.ComputeHashes(path, []model.HashAlgorithm{model.HashSHA1}, 0)
		if err != nil {
			continue
		}

		fileID := common.ElementID(fileID23(c, i))
		files = append(files, &spdx23.File{
			FileName:           path,
			FileSPDXIdentifier: fileID,
			Checksums: []common.Checksum{
				{Algorithm: common.SHA1, Value: sums[model.HashSHA1]},
			},
			LicenseInfoInFiles: []string{"NOASSERTION"},
			FileCopyrightText:  "NOASSERTION",
		})
		rels = append(rels, &spdx23.Relationship{
			RefA:         common.MakeDocElementID("", packageID(c)),
			RefB:         common.MakeDocElementID("", string(fileID)),
			Relationship: "CONTAINS",
		})
	}
	return files, rels
}

func fileID23(c *model.Component, i int) string {
	return "File-" + c.ID + "-" + strconv.Itoa(i)
}
