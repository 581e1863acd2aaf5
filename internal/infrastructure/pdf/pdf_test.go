package pdf_test

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"math/big"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/beevik/etree"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appfx "github.com/jhoicas/facture-electronique/internal/application/facturx"
	"github.com/jhoicas/facture-electronique/internal/domain"
	"github.com/jhoicas/facture-electronique/internal/facturx"
	"github.com/jhoicas/facture-electronique/internal/infrastructure/pdf"
	"github.com/jhoicas/facture-electronique/internal/testutil"
)

// ──────────────────────────────────────────────────────────────────────────────
// Rendering and attachment
// ──────────────────────────────────────────────────────────────────────────────

func renderSample(t *testing.T) string {
	t.Helper()
	b, err := pdf.NewMarotoRenderer().Render(context.Background(), testutil.SampleFacture())
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(b, []byte("%PDF")), "renderer must produce a PDF")

	path := filepath.Join(t.TempDir(), "source.pdf")
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func TestMarotoRenderer_ManyLines(t *testing.T) {
	f := testutil.WithLines(testutil.SampleFacture(), 60)
	b, err := pdf.NewMarotoRenderer().Render(context.Background(), f)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(b, []byte("%PDF")))
}

func TestAttachmentPacker_RoundTrip(t *testing.T) {
	src := renderSample(t)
	out := filepath.Join(t.TempDir(), "facturx.pdf")
	xml := []byte(`<?xml version="1.0" encoding="UTF-8"?><rsm:CrossIndustryInvoice xmlns:rsm="urn:x"/>`)

	p := pdf.NewAttachmentPacker(nil, t.TempDir(), nil)
	require.NoError(t, p.Pack(context.Background(), src, out, xml, appfx.PackOptions{
		Flavor:  pdf.FlavorFacturX,
		Profile: facturx.ProfileBasic,
	}))

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	got, err := pdf.ExtractXML(f)
	require.NoError(t, err)
	assert.Equal(t, xml, got)
}

func TestAttachmentPacker_DeclaresFacturXInCatalog(t *testing.T) {
	src := renderSample(t)
	out := filepath.Join(t.TempDir(), "facturx.pdf")
	xml := []byte(`<?xml version="1.0" encoding="UTF-8"?><rsm:CrossIndustryInvoice xmlns:rsm="urn:x"/>`)

	require.NoError(t, pdf.NewAttachmentPacker(nil, t.TempDir(), nil).Pack(context.Background(), src, out, xml, appfx.PackOptions{
		Flavor:  pdf.FlavorFacturX,
		Profile: facturx.ProfileEN16931,
	}))

	pctx, err := api.ReadContextFile(out)
	require.NoError(t, err)
	root, err := pctx.Catalog()
	require.NoError(t, err)

	af, err := pctx.DereferenceArray(root["AF"])
	require.NoError(t, err)
	require.Len(t, af, 1)
	spec, err := pctx.DereferenceDict(af[0])
	require.NoError(t, err)
	assert.Equal(t, types.Name("Data"), spec["AFRelationship"])

	ir, ok := root["Metadata"].(types.IndirectRef)
	require.True(t, ok, "catalog /Metadata must be an indirect stream")
	entry, found := pctx.FindTableEntryForIndRef(&ir)
	require.True(t, found)
	sd, ok := entry.Object.(types.StreamDict)
	require.True(t, ok)
	require.NoError(t, sd.Decode())

	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(sd.Content))
	level := doc.FindElement("//fx:ConformanceLevel")
	require.NotNil(t, level)
	assert.Equal(t, "EN 16931", level.Text())
	assert.Equal(t, pdf.AttachmentName, doc.FindElement("//fx:DocumentFileName").Text())
}

func TestFacturXMetadata_Levels(t *testing.T) {
	cases := map[facturx.Profile]string{
		facturx.ProfileMinimum:  "MINIMUM",
		facturx.ProfileBasic:    "BASIC",
		facturx.ProfileEN16931:  "EN 16931",
		facturx.ProfileExtended: "EXTENDED",
	}
	for p, want := range cases {
		b, err := pdf.FacturXMetadata(p, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
		require.NoError(t, err)

		doc := etree.NewDocument()
		require.NoError(t, doc.ReadFromBytes(b), p.String())
		assert.Equal(t, want, doc.FindElement("//fx:ConformanceLevel").Text(), p.String())
		assert.Equal(t, "INVOICE", doc.FindElement("//fx:DocumentType").Text())
		assert.Equal(t, "1.0", doc.FindElement("//fx:Version").Text())
		assert.Equal(t, "3", doc.FindElement("//pdfaid:part").Text())
		assert.Equal(t, "2026-01-02T03:04:05Z", doc.FindElement("//xmp:MetadataDate").Text())
		assert.Len(t, doc.FindElements("//pdfaSchema:property/rdf:Seq/rdf:li"), 4)
	}
}

type failingXSD struct{ calls int }

func (f *failingXSD) CheckXSD(context.Context, []byte, facturx.Profile) error {
	f.calls++
	return &domain.InvalidDataFacturxError{Profile: "BASIC", Field: "xml", Reason: "xsd: boom"}
}

func TestAttachmentPacker_XSDFailureStopsPacking(t *testing.T) {
	src := renderSample(t)
	out := filepath.Join(t.TempDir(), "facturx.pdf")
	checker := &failingXSD{}

	err := pdf.NewAttachmentPacker(checker, t.TempDir(), nil).
		Pack(context.Background(), src, out, []byte("<x/>"), appfx.PackOptions{Profile: facturx.ProfileBasic, CheckXSD: true})

	var invalid *domain.InvalidDataFacturxError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, 1, checker.calls)
	assert.NoFileExists(t, out)
}

func TestAttachmentPacker_RejectsOtherFlavors(t *testing.T) {
	err := pdf.NewAttachmentPacker(nil, "", nil).
		Pack(context.Background(), "in.pdf", "out.pdf", nil, appfx.PackOptions{Flavor: "zugferd", Profile: facturx.ProfileBasic})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestXmllintChecker_MissingSchema(t *testing.T) {
	err := pdf.NewXmllintChecker("", t.TempDir(), t.TempDir()).CheckXSD(context.Background(), []byte("<x/>"), facturx.ProfileEN16931)
	assert.ErrorIs(t, err, domain.ErrResourceNotFound)

	var res *domain.ResourceError
	require.ErrorAs(t, err, &res)
	assert.Equal(t, "FACTUR-X_EN16931.xsd", filepath.Base(res.Path))
}

// ──────────────────────────────────────────────────────────────────────────────
// External tools
// ──────────────────────────────────────────────────────────────────────────────

func TestGhostscriptArgs(t *testing.T) {
	assert.Equal(t, []string{
		"-dPDFA=3", "-dBATCH", "-dNOPAUSE", "-dNOOUTERSAVE",
		"-sColorConversionStrategy=UseDeviceIndependentColor",
		"-sDEVICE=pdfwrite", "-dPDFACompatibilityPolicy=1",
		"-sOutputFile=/tmp/out.pdf", "/tmp/in.pdf",
	}, pdf.GhostscriptArgs("/tmp/in.pdf", "/tmp/out.pdf"))
}

func TestGhostscriptConverter_Failure(t *testing.T) {
	bin, err := exec.LookPath("false")
	if err != nil {
		t.Skip("false not available")
	}
	src := renderSample(t)
	err = pdf.NewGhostscriptConverter(bin, nil).ConvertToPDFA(context.Background(), src, filepath.Join(t.TempDir(), "out.pdf"))

	var ext *domain.ExternalError
	require.ErrorAs(t, err, &ext)
	assert.Equal(t, "ghostscript", ext.Collaborator)
}

func TestGhostscriptConverter_MissingSource(t *testing.T) {
	err := pdf.NewGhostscriptConverter("", nil).ConvertToPDFA(context.Background(), filepath.Join(t.TempDir(), "nope.pdf"), "out.pdf")
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestPyhankoArgs(t *testing.T) {
	creds := &pdf.Credentials{KeyPEM: "k.pem", CertPEM: "c.pem", Chain: []string{"ca1.pem", "ca2.pem"}}
	assert.Equal(t, []string{
		"sign", "addsig", "--field", "1/0,0,200,60/Signature", "pemder",
		"--key", "k.pem", "--cert", "c.pem", "--chain", "ca1.pem", "--chain", "ca2.pem",
		"--no-pass", "in.pdf", "out.pdf",
	}, pdf.PyhankoArgs("in.pdf", "out.pdf", creds, ""))

	args := pdf.PyhankoArgs("in.pdf", "out.pdf", &pdf.Credentials{KeyPEM: "k", CertPEM: "c"}, "/tmp/pass")
	assert.Contains(t, args, "--passfile")
	assert.NotContains(t, args, "--no-pass")
}

// ──────────────────────────────────────────────────────────────────────────────
// Credentials
// ──────────────────────────────────────────────────────────────────────────────

func writeSelfSigned(t *testing.T, dir, cn string) (keyPath, certPath string) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: cn},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	keyDER, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)

	keyPath = filepath.Join(dir, cn+"-key.pem")
	certPath = filepath.Join(dir, cn+"-cert.pem")
	require.NoError(t, os.WriteFile(keyPath, pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: keyDER}), 0o600))
	require.NoError(t, os.WriteFile(certPath, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0o600))
	return keyPath, certPath
}

func TestLoadCredentials_PEM(t *testing.T) {
	dir := t.TempDir()
	key, cert := writeSelfSigned(t, dir, "vendeur")

	creds, err := pdf.LoadCredentials(appfx.SignRequest{Key: key, Cert: cert}, dir)
	require.NoError(t, err)
	assert.Equal(t, "vendeur", creds.Leaf.Subject.CommonName)
	assert.Equal(t, key, creds.KeyPEM)
}

func TestLoadCredentials_MismatchedPair(t *testing.T) {
	dir := t.TempDir()
	key, _ := writeSelfSigned(t, dir, "a")
	_, cert := writeSelfSigned(t, dir, "b")

	_, err := pdf.LoadCredentials(appfx.SignRequest{Key: key, Cert: cert}, dir)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestLoadCredentials_MissingFile(t *testing.T) {
	dir := t.TempDir()
	_, cert := writeSelfSigned(t, dir, "a")

	_, err := pdf.LoadCredentials(appfx.SignRequest{Key: filepath.Join(dir, "absent.pem"), Cert: cert}, dir)
	assert.ErrorIs(t, err, domain.ErrResourceNotFound)
}
