package facturx_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appfx "github.com/jhoicas/facture-electronique/internal/application/facturx"
	"github.com/jhoicas/facture-electronique/internal/domain"
	"github.com/jhoicas/facture-electronique/internal/facturx"
	"github.com/jhoicas/facture-electronique/internal/infrastructure/cii"
	"github.com/jhoicas/facture-electronique/internal/testutil"
	"github.com/jhoicas/facture-electronique/pkg/logger"
)

// ──────────────────────────────────────────────────────────────────────────────
// Fakes
// ──────────────────────────────────────────────────────────────────────────────

type fakeValidator struct {
	err   error
	calls int
}

func (v *fakeValidator) Validate(context.Context, []byte, facturx.Profile) error {
	v.calls++
	return v.err
}

type fakeConverter struct{ err error }

func (c *fakeConverter) ConvertToPDFA(_ context.Context, src, dst string) error {
	if c.err != nil {
		return c.err
	}
	b, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, append([]byte("PDFA:"), b...), 0o600)
}

type fakePacker struct {
	err  error
	opts appfx.PackOptions
	xml  []byte
}

func (p *fakePacker) Pack(_ context.Context, pdfa, out string, xml []byte, opts appfx.PackOptions) error {
	p.opts, p.xml = opts, xml
	if p.err != nil {
		return p.err
	}
	b, err := os.ReadFile(pdfa)
	if err != nil {
		return err
	}
	return os.WriteFile(out, append(b, []byte("+XML")...), 0o600)
}

type fakeSigner struct {
	err error
	req appfx.SignRequest
}

func (s *fakeSigner) Sign(_ context.Context, in, out string, req appfx.SignRequest) error {
	s.req = req
	if s.err != nil {
		return s.err
	}
	b, err := os.ReadFile(in)
	if err != nil {
		return err
	}
	return os.WriteFile(out, append(b, []byte("+SIG")...), 0o600)
}

type fixture struct {
	deps      appfx.Deps
	validator *fakeValidator
	converter *fakeConverter
	packer    *fakePacker
	signer    *fakeSigner
	logs      *bytes.Buffer
	tempDir   string
	src       string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	fx := &fixture{
		validator: &fakeValidator{},
		converter: &fakeConverter{},
		packer:    &fakePacker{},
		signer:    &fakeSigner{},
		logs:      &bytes.Buffer{},
		tempDir:   t.TempDir(),
	}
	fx.src = filepath.Join(t.TempDir(), "source.pdf")
	require.NoError(t, os.WriteFile(fx.src, []byte("SRC"), 0o600))

	fx.deps = appfx.Deps{
		Generator: cii.NewGenerator(cii.NewXMLBuilder()),
		Validator: fx.validator,
		Converter: fx.converter,
		Packer:    fx.packer,
		Signer:    fx.signer,
		TempDir:   fx.tempDir,
		Log:       logger.New(logger.Config{Env: "production", Level: "debug", Out: fx.logs}),
	}
	return fx
}

func (fx *fixture) tempFiles(t *testing.T) []string {
	t.Helper()
	entries, err := os.ReadDir(fx.tempDir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func (fx *fixture) session(t *testing.T, p facturx.Profile) *appfx.Session {
	t.Helper()
	sess, err := appfx.NewSession(testutil.SampleFacture(), p, fx.deps)
	require.NoError(t, err)
	t.Cleanup(func() { sess.Close() })
	return sess
}

// ──────────────────────────────────────────────────────────────────────────────
// Full pipeline
// ──────────────────────────────────────────────────────────────────────────────

func TestSession_FullPipeline(t *testing.T) {
	fx := newFixture(t)
	sess := fx.session(t, facturx.ProfileEN16931)
	ctx := context.Background()

	assert.Equal(t, appfx.StateCreated, sess.State())
	assert.Contains(t, string(sess.XML()), "<ram:GrandTotalAmount>1200.00</ram:GrandTotalAmount>")
	assert.Len(t, sess.Digest(), 64)
	assert.Empty(t, fx.tempFiles(t), "construction creates no files")

	require.NoError(t, sess.Validate(ctx))
	assert.Equal(t, appfx.StateValidated, sess.State())

	require.NoError(t, sess.EmbedIntoPDFA(ctx, fx.src))
	assert.Equal(t, appfx.StatePDFGenerated, sess.State())
	assert.Equal(t, "factur-x", fx.packer.opts.Flavor)
	assert.Equal(t, facturx.ProfileEN16931, fx.packer.opts.Profile)
	assert.True(t, fx.packer.opts.CheckXSD)
	assert.Equal(t, sess.XML(), fx.packer.xml)

	names := fx.tempFiles(t)
	require.Len(t, names, 2)
	var suffixes []string
	for _, n := range names {
		suffixes = append(suffixes, n[strings.Index(n, "."):])
	}
	assert.ElementsMatch(t, []string{".pdfa.pdf", ".en16931.pdf"}, suffixes)

	req := appfx.SignRequest{Key: "key.pem", Cert: "cert.pem", Chain: []string{"ca.pem"}}
	require.NoError(t, sess.Sign(ctx, req))
	assert.Equal(t, appfx.StateSigned, sess.State())
	assert.Equal(t, req, fx.signer.req)
	assert.Contains(t, fx.logs.String(), "digital signature may invalidate PDF/A conformance")
	assert.Contains(t, fx.logs.String(), `"session_id":"`+sess.ID()+`"`)

	dest := filepath.Join(t.TempDir(), "out", "nested", "FA-2024-001.pdf")
	res, err := sess.SaveAs(dest)
	require.NoError(t, err)
	assert.Equal(t, dest, res.Path)
	assert.Equal(t, "EN16931", res.Profile)
	assert.Equal(t, sess.Digest(), res.Digest)
	assert.Equal(t, appfx.StateSaved, sess.State())

	b, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "PDFA:SRC+XML+SIG", string(b))
	assert.Empty(t, fx.tempFiles(t), "every temp file is released")

	assert.ErrorIs(t, sess.Validate(ctx), domain.ErrSessionClosed)
	assert.ErrorIs(t, sess.Sign(ctx, req), domain.ErrSessionClosed)
	_, err = sess.SaveAs(dest)
	assert.ErrorIs(t, err, domain.ErrSessionClosed)
}

func TestSession_SaveWithoutSignature(t *testing.T) {
	fx := newFixture(t)
	sess := fx.session(t, facturx.ProfileBasic)
	ctx := context.Background()

	require.NoError(t, sess.Validate(ctx))
	require.NoError(t, sess.EmbedIntoPDFA(ctx, fx.src))
	res, err := sess.SaveAs(filepath.Join(t.TempDir(), "f.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "BASIC", res.Profile)
	assert.NotContains(t, fx.logs.String(), "digital signature")
}

// ──────────────────────────────────────────────────────────────────────────────
// Preconditions
// ──────────────────────────────────────────────────────────────────────────────

func TestSession_EmbedBeforeValidate(t *testing.T) {
	fx := newFixture(t)
	sess := fx.session(t, facturx.ProfileBasic)

	err := sess.EmbedIntoPDFA(context.Background(), fx.src)
	assert.ErrorIs(t, err, domain.ErrNotValidated)
	assert.Equal(t, appfx.StateCreated, sess.State())
	assert.Empty(t, fx.tempFiles(t))
}

func TestSession_SignOrSaveBeforeEmbed(t *testing.T) {
	fx := newFixture(t)
	sess := fx.session(t, facturx.ProfileBasic)
	require.NoError(t, sess.Validate(context.Background()))

	assert.ErrorIs(t, sess.Sign(context.Background(), appfx.SignRequest{}), domain.ErrNoPDF)
	_, err := sess.SaveAs(filepath.Join(t.TempDir(), "x.pdf"))
	assert.ErrorIs(t, err, domain.ErrNoPDF)
	assert.Equal(t, appfx.StateValidated, sess.State())
}

func TestSession_EmbedTwice(t *testing.T) {
	fx := newFixture(t)
	sess := fx.session(t, facturx.ProfileBasic)
	ctx := context.Background()
	require.NoError(t, sess.Validate(ctx))
	require.NoError(t, sess.EmbedIntoPDFA(ctx, fx.src))

	assert.ErrorIs(t, sess.EmbedIntoPDFA(ctx, fx.src), domain.ErrAlreadyEmbedded)
	assert.Len(t, fx.tempFiles(t), 2)
}

func TestSession_ValidateTwiceRunsOnce(t *testing.T) {
	fx := newFixture(t)
	sess := fx.session(t, facturx.ProfileBasic)
	require.NoError(t, sess.Validate(context.Background()))
	require.NoError(t, sess.Validate(context.Background()))
	assert.Equal(t, 1, fx.validator.calls)
}

// ──────────────────────────────────────────────────────────────────────────────
// Failures and cleanup
// ──────────────────────────────────────────────────────────────────────────────

func TestSession_ValidationFailureKeepsState(t *testing.T) {
	fx := newFixture(t)
	verr := &domain.XSLTValidationError{Profile: "BASIC", Asserts: []domain.FailedAssert{{ID: "BR-02"}}}
	fx.validator.err = verr
	sess := fx.session(t, facturx.ProfileBasic)

	err := sess.Validate(context.Background())
	var got *domain.XSLTValidationError
	require.ErrorAs(t, err, &got)
	assert.Same(t, verr, got)
	assert.Equal(t, appfx.StateCreated, sess.State())
}

func TestSession_EmbedFailureLeavesNoTempFiles(t *testing.T) {
	cases := map[string]func(*fixture){
		"converter": func(fx *fixture) { fx.converter.err = &domain.ExternalError{Collaborator: "ghostscript", Err: errors.New("exit 1")} },
		"packer":    func(fx *fixture) { fx.packer.err = errors.New("pdfcpu broke") },
	}
	for name, breakIt := range cases {
		t.Run(name, func(t *testing.T) {
			fx := newFixture(t)
			breakIt(fx)
			sess, err := appfx.NewSession(testutil.SampleFacture(), facturx.ProfileBasic, fx.deps)
			require.NoError(t, err)
			require.NoError(t, sess.Validate(context.Background()))

			require.Error(t, sess.EmbedIntoPDFA(context.Background(), fx.src))
			assert.Empty(t, fx.tempFiles(t), "no temp file survives a failed embed, even without Close")
			assert.Equal(t, appfx.StateValidated, sess.State())
			assert.Empty(t, sess.CurrentPDF())
		})
	}
}

func TestSession_SignFailureKeepsPreviousPDF(t *testing.T) {
	fx := newFixture(t)
	fx.signer.err = errors.New("bad key")
	sess := fx.session(t, facturx.ProfileBasic)
	ctx := context.Background()
	require.NoError(t, sess.Validate(ctx))
	require.NoError(t, sess.EmbedIntoPDFA(ctx, fx.src))
	before := sess.CurrentPDF()

	require.Error(t, sess.Sign(ctx, appfx.SignRequest{}))
	assert.Equal(t, before, sess.CurrentPDF())
	assert.Equal(t, appfx.StatePDFGenerated, sess.State())
	assert.Len(t, fx.tempFiles(t), 2)
}

func TestSession_CloseIsIdempotent(t *testing.T) {
	fx := newFixture(t)
	sess := fx.session(t, facturx.ProfileBasic)
	ctx := context.Background()
	require.NoError(t, sess.Validate(ctx))
	require.NoError(t, sess.EmbedIntoPDFA(ctx, fx.src))
	require.Len(t, fx.tempFiles(t), 2)

	// A file removed behind the session's back is not an error.
	require.NoError(t, os.Remove(sess.CurrentPDF()))

	assert.NoError(t, sess.Close())
	assert.NoError(t, sess.Close())
	assert.Empty(t, fx.tempFiles(t))
	assert.ErrorIs(t, sess.Validate(ctx), domain.ErrSessionClosed)
}

func TestNewSession_GenerationErrorCreatesNothing(t *testing.T) {
	fx := newFixture(t)
	f := testutil.SampleFacture()
	f.MontantTotal.MontantRemiseGlobaleTTC = testutil.DecPtr("1")

	_, err := appfx.NewSession(f, facturx.ProfileBasic, fx.deps)
	var invalid *domain.InvalidDataFacturxError
	assert.ErrorAs(t, err, &invalid)
	assert.Empty(t, fx.tempFiles(t))
}

func TestSessions_AreIndependent(t *testing.T) {
	fx := newFixture(t)
	other := testutil.SampleFacture()
	other.NumeroFacture = "FA-2024-002"

	a := fx.session(t, facturx.ProfileBasic)
	b, err := appfx.NewSession(other, facturx.ProfileBasic, fx.deps)
	require.NoError(t, err)
	defer b.Close()

	assert.NotEqual(t, a.ID(), b.ID())
	assert.NotEqual(t, a.Digest(), b.Digest())

	ctx := context.Background()
	require.NoError(t, a.Validate(ctx))
	require.NoError(t, a.EmbedIntoPDFA(ctx, fx.src))
	require.NoError(t, b.Close())
	assert.FileExists(t, a.CurrentPDF(), "closing one session leaves the other's files alone")
}
