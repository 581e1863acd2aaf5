package facturx

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jhoicas/facture-electronique/internal/domain/entity"
	fx "github.com/jhoicas/facture-electronique/internal/facturx"
)

// Service is the entry point used by the CLI and the HTTP API.
type Service struct {
	deps     Deps
	renderer Renderer
}

// NewService wires the pipeline. renderer may be nil when callers always supply
// a source PDF.
func NewService(deps Deps, renderer Renderer) *Service {
	return &Service{deps: deps, renderer: renderer}
}

// GenerateXML returns the Factur-X XML of f and its canonical digest.
func (s *Service) GenerateXML(f *entity.Facture, p fx.Profile) ([]byte, string, error) {
	xml, err := s.deps.Generator.Generate(f, p)
	if err != nil {
		return nil, "", err
	}
	digest, err := fx.Digest(xml)
	if err != nil {
		return nil, "", err
	}
	return xml, digest, nil
}

// ValidateXML runs the Schematron of p over an existing document.
func (s *Service) ValidateXML(ctx context.Context, xml []byte, p fx.Profile) error {
	return s.deps.Validator.Validate(ctx, xml, p)
}

// BuildRequest describes a full build.
type BuildRequest struct {
	Facture   *entity.Facture
	Profile   fx.Profile
	SourcePDF string       // rendered from the invoice when empty
	Sign      *SignRequest // no signature when nil
	Output    string
}

// BuildPDF runs generate, validate, embed, optionally sign, and save.
func (s *Service) BuildPDF(ctx context.Context, req BuildRequest) (*SaveResult, error) {
	if req.Output == "" {
		return nil, fmt.Errorf("build: output path is required")
	}
	sess, err := NewSession(req.Facture, req.Profile, s.deps)
	if err != nil {
		return nil, err
	}
	defer sess.Close()

	if err := sess.Validate(ctx); err != nil {
		return nil, err
	}

	src := req.SourcePDF
	if src == "" {
		rendered, cleanup, err := s.renderSource(ctx, req.Facture)
		if err != nil {
			return nil, err
		}
		defer cleanup()
		src = rendered
	}

	if err := sess.EmbedIntoPDFA(ctx, src); err != nil {
		return nil, err
	}
	if req.Sign != nil {
		if err := sess.Sign(ctx, *req.Sign); err != nil {
			return nil, err
		}
	}
	return sess.SaveAs(req.Output)
}

func (s *Service) renderSource(ctx context.Context, f *entity.Facture) (string, func(), error) {
	if s.renderer == nil {
		return "", nil, fmt.Errorf("build: no source pdf and no renderer configured")
	}
	b, err := s.renderer.Render(ctx, f)
	if err != nil {
		return "", nil, err
	}
	dir, err := os.MkdirTemp(s.deps.TempDir, "facturx-src-*")
	if err != nil {
		return "", nil, fmt.Errorf("build: temp dir: %w", err)
	}
	cleanup := func() { os.RemoveAll(dir) }
	path := filepath.Join(dir, "source.pdf")
	if err := os.WriteFile(path, b, 0o600); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("build: write source: %w", err)
	}
	return path, cleanup, nil
}

// BuildPDFBytes runs BuildPDF into a scratch directory and returns the
// resulting file content. The scratch copy is removed before returning.
func (s *Service) BuildPDFBytes(ctx context.Context, f *entity.Facture, p fx.Profile) ([]byte, *SaveResult, error) {
	dir, err := os.MkdirTemp(s.deps.TempDir, "facturx-out-*")
	if err != nil {
		return nil, nil, fmt.Errorf("build: temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	res, err := s.BuildPDF(ctx, BuildRequest{
		Facture: f,
		Profile: p,
		Output:  filepath.Join(dir, "factur-x.pdf"),
	})
	if err != nil {
		return nil, nil, err
	}
	b, err := os.ReadFile(res.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("build: read output: %w", err)
	}
	return b, res, nil
}
