package heimdall

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/xerrors"
	"k8s.io/utils/clock"

	"github.com/heimdall-sbom/heimdall/internal/archive"
	"github.com/heimdall-sbom/heimdall/internal/cdxser"
	"github.com/heimdall-sbom/heimdall/internal/dwarfinfo"
	"github.com/heimdall-sbom/heimdall/internal/extract"
	"github.com/heimdall-sbom/heimdall/internal/graph"
	"github.com/heimdall-sbom/heimdall/internal/hashio"
	"github.com/heimdall-sbom/heimdall/internal/model"
	"github.com/heimdall-sbom/heimdall/internal/objfile"
	"github.com/heimdall-sbom/heimdall/internal/pkgprobe"
	"github.com/heimdall-sbom/heimdall/internal/signer"
	"github.com/heimdall-sbom/heimdall/internal/spdxser"
)

// Format names accepted by SetFormat. "spdx" selects the JSON form;
// "spdx-tag-value" the 2.3 tag-value form.
const (
	FormatSPDX         = "spdx"
	FormatSPDXTagValue = "spdx-tag-value"
	FormatCycloneDX    = "cyclonedx"
)

var spdxVersions = map[string]bool{"2.3": true, "3.0": true, "3.0.1": true}
var cdxVersions = map[string]bool{"1.4": true, "1.5": true, "1.6": true}

// Handle is one SBOM-generation session: configure, process an
// input, finalize to disk, optionally sign. Methods return a status code;
// the last failure is queryable via LastError.
type Handle struct {
	mu sync.Mutex

	cfg    Config
	clk    clock.Clock
	prober *pkgprobe.Prober

	format      string
	specVersion string
	outputPath  string
	transitive  bool
	aliDir      string

	ctx    context.Context
	cancel context.CancelFunc

	doc     *model.Document
	lastErr error
}

// Init creates a Handle with defaults applied. It never fails; invalid
// settings surface on the call that uses them.
func Init(cfg Config) *Handle {
	clk := cfg.Clock
	if clk == nil {
		clk = clock.RealClock{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Handle{
		cfg:         cfg,
		clk:         clk,
		prober:      pkgprobe.New(cfg.PackageDBRoot),
		format:      FormatCycloneDX,
		specVersion: "1.6",
		transitive:  cfg.transitive(),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Cancel fires the handle's cancellation token: in-flight extraction
// and BFS stop at their next checkpoint and the pending call returns
// StatusCancelled.
func (h *Handle) Cancel() { h.cancel() }

// SetFormat selects the output spec and version.
func (h *Handle) SetFormat(format, version string) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	format = strings.ToLower(format)
	valid := false
	switch format {
	case FormatSPDX:
		valid = spdxVersions[version]
	case FormatSPDXTagValue:
		valid = version == "2.3"
	case FormatCycloneDX:
		valid = cdxVersions[version]
	}
	if !valid {
		return h.fail(xerrors.Errorf("set format %s/%s: %w", format, version, ErrUnsupportedFormat))
	}
	h.format = format
	h.specVersion = version
	return StatusOK
}

// SetOutputPath sets where Finalize writes the document.
func (h *Handle) SetOutputPath(path string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if path == "" {
		return h.fail(xerrors.Errorf("set output path: empty: %w", ErrIoError))
	}
	h.outputPath = path
	return StatusOK
}

// SetTransitive controls whether the dependency closure is resolved
// past depth 1.
func (h *Handle) SetTransitive(transitive bool) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.transitive = transitive
	return StatusOK
}

// SetAliFilePath points the Ada adapter at its companion .ali
// directory.
func (h *Handle) SetAliFilePath(path string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.aliDir = path
	return StatusOK
}

// ProcessInputFile extracts the artifact at path and builds the component
// graph. A root-extraction failure is fatal; dependency failures are
// recorded as properties instead.
func (h *Handle) ProcessInputFile(path string) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	spec := model.SpecCycloneDX
	if h.format != FormatCycloneDX {
		spec = model.SpecSPDX
	}

	doc, err := graph.Build(h.ctx, path, graph.Options{
		Spec:        spec,
		SpecVersion: h.specVersion,
		DocumentID:  "urn:uuid:" + uuid.New().String(),
		Clock:       h.clk,
		Transitive:  h.transitive,
		SearchPaths: h.cfg.SearchPaths,
		MaxWorkers:  h.cfg.MaxWorkers,
		Extract: extract.Options{
			MaxFileSize:     h.cfg.MaxFileSize,
			HeuristicWindow: h.cfg.HeuristicWindow,
			DisableDWARF:    h.cfg.DisableDWARF,
			Timeout:         h.cfg.Timeout,
			AliDir:          h.aliDir,
			Prober:          h.prober,
		},
	})
	if err != nil {
		return h.fail(translateErr(err))
	}

	doc.Creators = h.creators()
	h.doc = doc
	return StatusOK
}

// Finalize serializes the built document to the configured output
// path. Serializer errors are fatal; nothing is written on a
// validation failure.
func (h *Handle) Finalize() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.doc == nil {
		return h.failStatus(xerrors.New("finalize: no input processed"), StatusNotInitialized)
	}
	if h.outputPath == "" {
		return h.fail(xerrors.Errorf("finalize: no output path set: %w", ErrIoError))
	}

	var buf bytes.Buffer
	var err error
	switch h.format {
	case FormatCycloneDX:
		err = cdxser.NewWriter(&buf, h.specVersion).Write(h.doc)
	case FormatSPDXTagValue:
		err = spdxser.NewWriter(&buf, h.specVersion, spdxser.FormTagValue).Write(h.doc)
	default:
		err = spdxser.NewWriter(&buf, h.specVersion, spdxser.FormJSON).Write(h.doc)
	}
	if err != nil {
		return h.fail(translateErr(err))
	}

	if err := os.WriteFile(h.outputPath, buf.Bytes(), 0o644); err != nil {
		return h.fail(xerrors.Errorf("finalize: write %s: %w", h.outputPath, ErrIoError))
	}
	return StatusOK
}

// Sign signs the finalized document in place: the output file is
// overwritten with its signed form. CycloneDX only; signing never
// produces an unsigned fallback once requested.
func (h *Handle) Sign(keyPath, algorithm, keyID, certPath string) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.format != FormatCycloneDX {
		return h.fail(xerrors.Errorf("sign: %s documents cannot carry an embedded signature: %w", h.format, ErrUnsupportedFormat))
	}
	if h.doc == nil || h.doc.State() == model.StateDraft || h.doc.State() == model.StateFrozen {
		return h.failStatus(xerrors.New("sign: document not finalized"), StatusNotInitialized)
	}

	docJSON, err := os.ReadFile(h.outputPath)
	if err != nil {
		return h.fail(xerrors.Errorf("sign: read %s: %w", h.outputPath, ErrIoError))
	}

	s, err := signer.New(keyPath, algorithm, keyID, certPath)
	if err != nil {
		return h.fail(translateErr(err))
	}
	signed, info, err := signer.SignDocument(docJSON, s)
	if err != nil {
		return h.fail(translateErr(err))
	}
	if err := os.WriteFile(h.outputPath, signed, 0o644); err != nil {
		return h.fail(xerrors.Errorf("sign: write %s: %w", h.outputPath, ErrIoError))
	}

	h.doc.Signature = info
	h.doc.MarkCanonicalized()
	h.doc.MarkSigned()
	return StatusOK
}

// LastError returns the error behind the most recent non-zero status, or
// nil.
func (h *Handle) LastError() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastErr
}

// LastErrorKind returns the stable kind string for the last error, or
// "OK".
func (h *Handle) LastErrorKind() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return errorKind(h.lastErr)
}

func (h *Handle) fail(err error) int {
	h.lastErr = err
	return statusForError(err)
}

func (h *Handle) failStatus(err error, status int) int {
	h.lastErr = err
	return status
}

func (h *Handle) creators() []model.Creator {
	var creators []model.Creator
	if h.cfg.Organization != "" {
		creators = append(creators, model.Creator{Kind: model.CreatorOrganization, Name: h.cfg.Organization})
	}
	if h.cfg.Person != "" {
		creators = append(creators, model.Creator{Kind: model.CreatorPerson, Name: h.cfg.Person, Email: h.cfg.PersonEmail})
	}
	return creators
}

// translateErr maps the internal packages' mirrored sentinels onto the
// root kinds, so statusForError and LastErrorKind see one vocabulary.
func translateErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, hashio.ErrTooLarge):
		return xerrors.Errorf("%v: %w", err, ErrTooLarge)
	case errors.Is(err, extract.ErrIoError), errors.Is(err, hashio.ErrIoError):
		return xerrors.Errorf("%v: %w", err, ErrIoError)
	case errors.Is(err, extract.ErrUnsupportedFormat), errors.Is(err, objfile.ErrUnsupportedFormat),
		errors.Is(err, cdxser.ErrUnsupportedFormat), errors.Is(err, spdxser.ErrUnsupportedFormat):
		return xerrors.Errorf("%v: %w", err, ErrUnsupportedFormat)
	case errors.Is(err, objfile.ErrTruncated), errors.Is(err, dwarfinfo.ErrTruncated), errors.Is(err, archive.ErrTruncated):
		return xerrors.Errorf("%v: %w", err, ErrTruncated)
	case errors.Is(err, extract.ErrCancelled), errors.Is(err, graph.ErrCancelled),
		errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return xerrors.Errorf("%v: %w", err, ErrCancelled)
	case errors.Is(err, cdxser.ErrDanglingReference), errors.Is(err, spdxser.ErrDanglingReference):
		return xerrors.Errorf("%v: %w", err, ErrDanglingReference)
	case errors.Is(err, cdxser.ErrInvalidHash):
		return xerrors.Errorf("%v: %w", err, ErrInvalidHash)
	case errors.Is(err, signer.ErrKeyError):
		return xerrors.Errorf("%v: %w", err, ErrKeyError)
	default:
		return err
	}
}

// errorKind maps an error to its stable kind string.
func errorKind(err error) string {
	switch {
	case err == nil:
		return "OK"
	case isErr(err, ErrIoError):
		return "IoError"
	case isErr(err, ErrUnsupportedFormat):
		return "UnsupportedFormat"
	case isErr(err, ErrTruncated):
		return "Truncated"
	case isErr(err, ErrDanglingReference):
		return "DanglingReference"
	case isErr(err, ErrCancelled):
		return "Cancelled"
	case isErr(err, ErrTooLarge):
		return "TooLarge"
	case isErr(err, ErrKeyError):
		return "KeyError"
	case isErr(err, ErrInvalidHash):
		return "InvalidHash"
	default:
		return "GeneralError"
	}
}
