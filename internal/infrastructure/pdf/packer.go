package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	appfx "github.com/jhoicas/facture-electronique/internal/application/facturx"
	"github.com/jhoicas/facture-electronique/internal/domain"
	"github.com/jhoicas/facture-electronique/internal/facturx"
	"github.com/jhoicas/facture-electronique/pkg/logger"
)

// AttachmentName is the file name a Factur-X reader looks for.
const AttachmentName = "factur-x.xml"

// FlavorFacturX is the only flavor this packer produces.
const FlavorFacturX = "factur-x"

// XSDChecker validates a document against the XSD of a profile.
type XSDChecker interface {
	CheckXSD(ctx context.Context, xml []byte, p facturx.Profile) error
}

// AttachmentPacker embeds the XML into a PDF/A with pdfcpu.
type AttachmentPacker struct {
	xsd     XSDChecker
	tempDir string
	log     *logger.Logger
}

// NewAttachmentPacker builds a packer. xsd may be nil when no schema check is wanted.
func NewAttachmentPacker(xsd XSDChecker, tempDir string, log *logger.Logger) *AttachmentPacker {
	if log == nil {
		log = logger.Nop()
	}
	return &AttachmentPacker{xsd: xsd, tempDir: tempDir, log: log}
}

// Pack checks the XML when asked, then writes pdfa with factur-x.xml attached to out.
// The output catalog carries the Factur-X XMP metadata and an /AF entry
// pointing at the attachment with AFRelationship /Data.
func (p *AttachmentPacker) Pack(ctx context.Context, pdfa, out string, xml []byte, opts appfx.PackOptions) error {
	if opts.Flavor != "" && opts.Flavor != FlavorFacturX {
		return fmt.Errorf("%w: flavor %q", domain.ErrInvalidInput, opts.Flavor)
	}
	if !opts.Profile.Valid() {
		return fmt.Errorf("%w: %d", domain.ErrUnknownProfile, int(opts.Profile))
	}
	if opts.CheckXSD {
		if p.xsd == nil {
			return fmt.Errorf("packer: xsd check requested without a checker")
		}
		if err := p.xsd.CheckXSD(ctx, xml, opts.Profile); err != nil {
			return err
		}
	}

	dir, err := os.MkdirTemp(p.tempDir, "facturx-attach-*")
	if err != nil {
		return fmt.Errorf("packer: temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	xmlPath := filepath.Join(dir, AttachmentName)
	if err := os.WriteFile(xmlPath, xml, 0o600); err != nil {
		return fmt.Errorf("packer: write xml: %w", err)
	}

	attached := filepath.Join(dir, "attached.pdf")
	conf := model.NewDefaultConfiguration()
	if err := api.AddAttachmentsFile(pdfa, attached, []string{xmlPath}, false, conf); err != nil {
		return &domain.ExternalError{Collaborator: "pdfcpu", Err: err}
	}
	if err := declareFacturX(attached, out, opts.Profile, conf); err != nil {
		return err
	}
	p.log.Debug().
		Str("profile", opts.Profile.String()).
		Str("out", out).
		Msg("factur-x xml attached")
	return nil
}

// declareFacturX marks the factur-x.xml file spec as an associated file of the
// document and replaces the catalog metadata with the Factur-X XMP packet.
func declareFacturX(in, out string, profile facturx.Profile, conf *model.Configuration) error {
	f, err := os.Open(in)
	if err != nil {
		return fmt.Errorf("packer: %w", err)
	}
	defer f.Close()

	pctx, err := api.ReadValidateAndOptimize(f, conf)
	if err != nil {
		return &domain.ExternalError{Collaborator: "pdfcpu", Err: err}
	}
	root, err := pctx.Catalog()
	if err != nil {
		return &domain.ExternalError{Collaborator: "pdfcpu", Err: err}
	}

	spec, err := attachmentFileSpec(pctx, root)
	if err != nil {
		return err
	}
	fs, err := pctx.DereferenceDict(*spec)
	if err != nil {
		return &domain.ExternalError{Collaborator: "pdfcpu", Err: err}
	}
	fs["AFRelationship"] = types.Name("Data")
	fs["Desc"] = types.StringLiteral("Factur-X Invoice")
	if ef, err := pctx.DereferenceDict(fs["EF"]); err == nil && ef != nil {
		if ir, ok := ef["F"].(types.IndirectRef); ok {
			if entry, found := pctx.FindTableEntryForIndRef(&ir); found {
				if sd, ok := entry.Object.(types.StreamDict); ok {
					sd.Dict["Subtype"] = types.Name("text/xml")
				}
			}
		}
	}
	root["AF"] = types.Array{*spec}

	xmp, err := FacturXMetadata(profile, time.Now())
	if err != nil {
		return fmt.Errorf("packer: xmp: %w", err)
	}
	sd := types.NewStreamDict(types.Dict{
		"Type":    types.Name("Metadata"),
		"Subtype": types.Name("XML"),
	}, 0, nil, nil, nil)
	sd.Content = xmp
	if err := sd.Encode(); err != nil {
		return &domain.ExternalError{Collaborator: "pdfcpu", Err: err}
	}
	meta, err := pctx.IndRefForNewObject(sd)
	if err != nil {
		return &domain.ExternalError{Collaborator: "pdfcpu", Err: err}
	}
	root["Metadata"] = *meta

	w, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("packer: %w", err)
	}
	if err := api.WriteContext(pctx, w); err != nil {
		w.Close()
		os.Remove(out)
		return &domain.ExternalError{Collaborator: "pdfcpu", Err: err}
	}
	return w.Close()
}

// attachmentFileSpec walks the EmbeddedFiles name tree for the factur-x.xml
// file spec and returns an indirect reference to it.
func attachmentFileSpec(pctx *model.Context, root types.Dict) (*types.IndirectRef, error) {
	names, err := pctx.DereferenceDict(root["Names"])
	if err != nil || names == nil {
		return nil, fmt.Errorf("%w: embedded files tree", domain.ErrNotFound)
	}
	var found *types.IndirectRef
	var walk func(o types.Object) error
	walk = func(o types.Object) error {
		node, err := pctx.DereferenceDict(o)
		if err != nil || node == nil {
			return err
		}
		if arr, err := pctx.DereferenceArray(node["Names"]); err == nil {
			for i := 0; i+1 < len(arr); i += 2 {
				if !strings.Contains(literal(arr[i]), AttachmentName) {
					continue
				}
				if ir, ok := arr[i+1].(types.IndirectRef); ok {
					found = &ir
					return nil
				}
				ir, err := pctx.IndRefForNewObject(arr[i+1])
				if err != nil {
					return err
				}
				arr[i+1] = *ir
				found = ir
				return nil
			}
		}
		kids, err := pctx.DereferenceArray(node["Kids"])
		if err != nil {
			return err
		}
		for _, kid := range kids {
			if err := walk(kid); err != nil || found != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(names["EmbeddedFiles"]); err != nil {
		return nil, &domain.ExternalError{Collaborator: "pdfcpu", Err: err}
	}
	if found == nil {
		return nil, fmt.Errorf("%w: %s file spec", domain.ErrNotFound, AttachmentName)
	}
	return found, nil
}

func literal(o types.Object) string {
	switch v := o.(type) {
	case types.StringLiteral:
		return v.Value()
	case types.HexLiteral:
		b, err := v.Bytes()
		if err != nil {
			return ""
		}
		return string(b)
	}
	return ""
}

// ExtractXML returns the factur-x.xml attachment of a PDF.
func ExtractXML(pdf io.ReadSeeker) ([]byte, error) {
	conf := model.NewDefaultConfiguration()
	atts, err := api.ExtractAttachmentsRaw(pdf, "", []string{AttachmentName}, conf)
	if err != nil {
		return nil, &domain.ExternalError{Collaborator: "pdfcpu", Err: err}
	}
	for _, a := range atts {
		if a.FileName == AttachmentName && a.Reader != nil {
			return io.ReadAll(a.Reader)
		}
	}
	return nil, fmt.Errorf("%w: %s attachment", domain.ErrNotFound, AttachmentName)
}

// XmllintChecker validates with `xmllint --schema`. The schema directory must hold
// the profile XSD next to the schemas it imports.
type XmllintChecker struct {
	path      string
	schemaDir string
	tempDir   string
}

// NewXmllintChecker uses the given binary ("xmllint" when empty).
func NewXmllintChecker(path, schemaDir, tempDir string) *XmllintChecker {
	if path == "" {
		path = "xmllint"
	}
	return &XmllintChecker{path: path, schemaDir: schemaDir, tempDir: tempDir}
}

// CheckXSD returns nil when the document is schema-valid. Schema violations are
// reported as *domain.InvalidDataFacturxError.
func (c *XmllintChecker) CheckXSD(ctx context.Context, xml []byte, p facturx.Profile) error {
	schema := filepath.Join(c.schemaDir, p.Config().XSDResource)
	if _, err := os.Stat(schema); err != nil {
		cause := err
		if errors.Is(err, os.ErrNotExist) {
			cause = domain.ErrResourceNotFound
		}
		return &domain.ResourceError{Kind: "xsd schema", Path: schema, Err: cause}
	}

	f, err := os.CreateTemp(c.tempDir, "facturx-*.xml")
	if err != nil {
		return fmt.Errorf("xsd: temp file: %w", err)
	}
	defer os.Remove(f.Name())
	if _, err := f.Write(xml); err != nil {
		f.Close()
		return fmt.Errorf("xsd: write: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("xsd: write: %w", err)
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, c.path, "--noout", "--nonet", "--schema", schema, f.Name())
	cmd.Stderr = &stderr
	err = cmd.Run()
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	// xmllint exits with 3 or 4 when the document does not validate.
	if errors.As(err, &exitErr) && (exitErr.ExitCode() == 3 || exitErr.ExitCode() == 4) {
		return &domain.InvalidDataFacturxError{
			Profile: p.String(),
			Field:   "xml",
			Reason:  "xsd: " + strings.TrimSpace(stderr.String()),
		}
	}
	return &domain.ExternalError{Collaborator: "xmllint", Err: fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String()))}
}
