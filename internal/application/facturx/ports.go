package facturx

import (
	"context"

	"github.com/jhoicas/facture-electronique/internal/domain/entity"
	fx "github.com/jhoicas/facture-electronique/internal/facturx"
)

// Validator checks a Factur-X document against the Schematron of a profile.
type Validator interface {
	Validate(ctx context.Context, xml []byte, p fx.Profile) error
}

// PDFAConverter converts the PDF at src into a PDF/A-3 file at dst.
type PDFAConverter interface {
	ConvertToPDFA(ctx context.Context, src, dst string) error
}

// PackOptions controls how the XML is attached to the PDF/A.
type PackOptions struct {
	Flavor   string // always "factur-x"
	Profile  fx.Profile
	CheckXSD bool
}

// Packer attaches the Factur-X XML to a PDF/A and writes the result to out.
type Packer interface {
	Pack(ctx context.Context, pdfa, out string, xml []byte, opts PackOptions) error
}

// SignRequest names the signing material. Key and Cert are file paths (PEM,
// or a single PKCS#12 bundle in Key with Cert empty).
type SignRequest struct {
	Key        string
	Cert       string
	Chain      []string
	Passphrase []byte
}

// Signer applies a visible digital signature to the PDF at in and writes out.
type Signer interface {
	Sign(ctx context.Context, in, out string, req SignRequest) error
}

// Renderer produces a human-readable source PDF for an invoice.
type Renderer interface {
	Render(ctx context.Context, f *entity.Facture) ([]byte, error)
}
