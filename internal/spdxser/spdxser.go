// Package spdxser serializes a frozen Document as SPDX: version
// 2.3 in tag-value or JSON form through spdx/tools-golang, and versions
// 3.0 / 3.0.1 as hand-shaped JSON-LD (tools-golang has no 3.0 writer).
package spdxser

import (
	"io"
	"strings"

	"golang.org/x/xerrors"

	"github.com/heimdall-sbom/heimdall/internal/model"
)

// Sentinels mirrored from the root package to avoid an import cycle.
var (
	ErrDanglingReference = xerrors.New("dangling dependency reference")
	ErrUnsupportedFormat = xerrors.New("unsupported object format")
)

// Form selects the on-disk shape for SPDX 2.3; 3.0 and 3.0.1 are always
// JSON-LD regardless of the requested form.
type Form string

const (
	FormTagValue Form = "tag-value"
	FormJSON     Form = "json"
)

// NamespaceBase is the default base URI for document namespaces,
// combined with the document name and UUID.
const NamespaceBase = "https://spdx.org/spdxdocs"

// Writer emits one Document per Write call.
type Writer struct {
	output  io.Writer
	version string
	form    Form
}

// NewWriter returns a Writer targeting the given SPDX version ("2.3",
// "3.0", or "3.0.1") and form.
func NewWriter(output io.Writer, version string, form Form) Writer {
	if form == "" {
		form = FormJSON
	}
	return Writer{output: output, version: version, form: form}
}

// Write validates doc's reference integrity, then emits it at the
// Writer's SPDX version. The document transitions to Emitted on success.
func (w Writer) Write(doc *model.Document) error {
	if err := validateReferences(doc); err != nil {
		return err
	}

	var err error
	switch w.version {
	case "2.3":
		err = w.write23(doc)
	case "3.0", "3.0.1":
		err = w.write30(doc, w.version)
	default:
		return xerrors.Errorf("spdxser: spec version %q: %w", w.version, ErrUnsupportedFormat)
	}
	if err != nil {
		return err
	}
	doc.MarkEmitted()
	return nil
}

// validateReferences checks every relationship endpoint resolves to a
// defined component before any bytes are written, so a dangling
// relationship can never reach disk.
func validateReferences(doc *model.Document) error {
	for _, e := range doc.Edges {
		if _, ok := doc.Components[e.From]; !ok {
			return xerrors.Errorf("spdxser: relationship from %q: %w", e.From, ErrDanglingReference)
		}
		if _, ok := doc.Components[e.To]; !ok {
			return xerrors.Errorf("spdxser: relationship to %q: %w", e.To, ErrDanglingReference)
		}
	}
	return nil
}

// namespaceFor derives the document namespace from the tool, the
// document name, and the document UUID.
func namespaceFor(doc *model.Document) string {
	return NamespaceBase + "/heimdall/" + documentName(doc) + "/" + documentUUID(doc)
}

// documentUUID strips the urn:uuid: prefix off the document id.
func documentUUID(doc *model.Document) string {
	return strings.TrimPrefix(doc.DocumentID, "urn:uuid:")
}

func documentName(doc *model.Document) string {
	if primary, ok := doc.Components[doc.PrimaryComponent]; ok && primary.Name != "" {
		return primary.Name
	}
	return "sbom"
}
