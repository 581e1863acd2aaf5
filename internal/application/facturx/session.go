// Package facturx orchestrates the production of a Factur-X document: XML
// generation, Schematron validation, PDF/A embedding, signature and delivery.
package facturx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/jhoicas/facture-electronique/internal/domain"
	"github.com/jhoicas/facture-electronique/internal/domain/entity"
	fx "github.com/jhoicas/facture-electronique/internal/facturx"
	"github.com/jhoicas/facture-electronique/pkg/logger"
)

// State is a step of the session lifecycle. States only move forward.
type State int

const (
	StateCreated State = iota
	StateValidated
	StatePDFGenerated
	StateSigned
	StateSaved
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateValidated:
		return "validated"
	case StatePDFGenerated:
		return "pdf_generated"
	case StateSigned:
		return "signed"
	case StateSaved:
		return "saved"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// XMLGenerator builds and serializes the Factur-X XML of an invoice.
type XMLGenerator interface {
	Generate(f *entity.Facture, p fx.Profile) ([]byte, error)
}

// Deps are the collaborators of a session. Signer may be nil when no
// signature is ever requested.
type Deps struct {
	Generator XMLGenerator
	Validator Validator
	Converter PDFAConverter
	Packer    Packer
	Signer    Signer
	TempDir   string
	Log       *logger.Logger
}

// SaveResult describes the delivered file.
type SaveResult struct {
	Path    string `json:"path"`
	Profile string `json:"profile"`
	Digest  string `json:"digest"`
}

// Session carries one invoice through the pipeline. It owns every temporary
// file it creates; callers must `defer sess.Close()`. Not safe for concurrent use.
type Session struct {
	id      string
	profile fx.Profile
	deps    Deps
	log     *logger.Logger

	xml    []byte
	digest string

	state   State
	closed  bool
	current string
	temps   []string
}

// NewSession generates the XML of f for profile p. No file is created yet.
func NewSession(f *entity.Facture, p fx.Profile, deps Deps) (*Session, error) {
	if deps.Generator == nil {
		return nil, fmt.Errorf("session: nil xml generator")
	}
	xml, err := deps.Generator.Generate(f, p)
	if err != nil {
		return nil, err
	}
	digest, err := fx.Digest(xml)
	if err != nil {
		return nil, err
	}

	base := deps.Log
	if base == nil {
		base = logger.Nop()
	}
	id := uuid.NewString()
	return &Session{
		id:      id,
		profile: p,
		deps:    deps,
		log: base.Child(map[string]any{
			"session_id": id,
			"profile":    p.String(),
			"invoice":    f.NumeroFacture,
		}),
		xml:    xml,
		digest: digest,
		state:  StateCreated,
	}, nil
}

func (s *Session) ID() string          { return s.id }
func (s *Session) Profile() fx.Profile { return s.profile }
func (s *Session) State() State        { return s.state }
func (s *Session) Digest() string      { return s.digest }

// XML returns a copy of the generated document.
func (s *Session) XML() []byte {
	return append([]byte(nil), s.xml...)
}

// CurrentPDF is the path of the latest PDF produced, empty before embedding.
func (s *Session) CurrentPDF() string { return s.current }

func (s *Session) usable() error {
	if s.closed || s.state == StateSaved {
		return domain.ErrSessionClosed
	}
	return nil
}

// Validate runs the Schematron of the profile. Validating again is a no-op.
func (s *Session) Validate(ctx context.Context) error {
	if err := s.usable(); err != nil {
		return err
	}
	if s.state >= StateValidated {
		return nil
	}
	if err := s.deps.Validator.Validate(ctx, s.xml, s.profile); err != nil {
		s.log.Warn().Err(err).Msg("factur-x validation failed")
		return err
	}
	s.state = StateValidated
	s.log.Info().Msg("factur-x xml validated")
	return nil
}

// EmbedIntoPDFA converts src to PDF/A-3 and attaches the XML. On failure the
// files created by this step are already removed.
func (s *Session) EmbedIntoPDFA(ctx context.Context, src string) (err error) {
	if err := s.usable(); err != nil {
		return err
	}
	switch {
	case s.state < StateValidated:
		return domain.ErrNotValidated
	case s.state > StateValidated:
		return domain.ErrAlreadyEmbedded
	}

	pdfa, err := s.tempFile(".pdfa.pdf")
	if err != nil {
		return err
	}
	out, err := s.tempFile("." + s.profile.Config().Level + ".pdf")
	if err != nil {
		s.discard(pdfa)
		return err
	}
	defer func() {
		if err != nil {
			s.discard(pdfa, out)
		}
	}()

	if err = s.deps.Converter.ConvertToPDFA(ctx, src, pdfa); err != nil {
		return err
	}
	err = s.deps.Packer.Pack(ctx, pdfa, out, s.xml, PackOptions{
		Flavor:   "factur-x",
		Profile:  s.profile,
		CheckXSD: true,
	})
	if err != nil {
		return err
	}

	s.current = out
	s.state = StatePDFGenerated
	s.log.Info().Str("pdf", out).Msg("factur-x xml embedded into pdf/a-3")
	return nil
}

// Sign applies a digital signature to the current PDF. Signing twice adds a
// second signature.
func (s *Session) Sign(ctx context.Context, req SignRequest) error {
	if err := s.usable(); err != nil {
		return err
	}
	if s.current == "" {
		return domain.ErrNoPDF
	}
	if s.deps.Signer == nil {
		return fmt.Errorf("session: no signer configured")
	}

	out, err := s.tempFile(".signed.pdf")
	if err != nil {
		return err
	}
	if err := s.deps.Signer.Sign(ctx, s.current, out, req); err != nil {
		s.discard(out)
		return err
	}

	s.log.Warn().Msg("digital signature may invalidate PDF/A conformance")
	s.current = out
	s.state = StateSigned
	return nil
}

// SaveAs moves the current PDF to dest, creating parent directories, and
// releases every temporary file.
func (s *Session) SaveAs(dest string) (*SaveResult, error) {
	if err := s.usable(); err != nil {
		return nil, err
	}
	if s.current == "" {
		return nil, domain.ErrNoPDF
	}
	defer s.Close()

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return nil, fmt.Errorf("save: %w", err)
	}
	if err := moveFile(s.current, dest); err != nil {
		return nil, fmt.Errorf("save: %w", err)
	}
	s.untrack(s.current)
	s.current = dest
	s.state = StateSaved

	s.log.Info().Str("path", dest).Msg("factur-x pdf saved")
	return &SaveResult{Path: dest, Profile: s.profile.String(), Digest: s.digest}, nil
}

// Close removes every tracked temporary file. Missing files are ignored and
// calling Close again does nothing.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.discard(s.temps...)
	return nil
}

func (s *Session) tempFile(suffix string) (string, error) {
	f, err := os.CreateTemp(s.deps.TempDir, "facturx-*"+suffix)
	if err != nil {
		return "", fmt.Errorf("session: temp file: %w", err)
	}
	name := f.Name()
	if err := f.Close(); err != nil {
		os.Remove(name)
		return "", fmt.Errorf("session: temp file: %w", err)
	}
	s.temps = append(s.temps, name)
	return name, nil
}

// discard removes the given temp files and stops tracking them.
func (s *Session) discard(paths ...string) {
	for _, p := range append([]string(nil), paths...) {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.log.Debug().Err(err).Str("path", p).Msg("temp file not removed")
		}
		s.untrack(p)
	}
}

func (s *Session) untrack(path string) {
	for i, p := range s.temps {
		if p == path {
			s.temps = append(s.temps[:i], s.temps[i+1:]...)
			return
		}
	}
}

// moveFile renames src to dst, copying across filesystems.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}
