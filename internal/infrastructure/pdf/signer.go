package pdf

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	appfx "github.com/jhoicas/facture-electronique/internal/application/facturx"
	"github.com/jhoicas/facture-electronique/internal/domain"
	"github.com/jhoicas/facture-electronique/pkg/logger"
)

// SignatureField is the visible signature box: page 1, 200x60 at the origin.
const SignatureField = "1/0,0,200,60/Signature"

// PyhankoSigner signs PDFs with the pyHanko command line.
type PyhankoSigner struct {
	path    string
	tempDir string
	log     *logger.Logger
}

// NewPyhankoSigner uses the given binary ("pyhanko" when empty).
func NewPyhankoSigner(path, tempDir string, log *logger.Logger) *PyhankoSigner {
	if path == "" {
		path = "pyhanko"
	}
	if log == nil {
		log = logger.Nop()
	}
	return &PyhankoSigner{path: path, tempDir: tempDir, log: log}
}

// PyhankoArgs is the argument list for a PEM signature of in into out.
func PyhankoArgs(in, out string, c *Credentials, passfile string) []string {
	args := []string{"sign", "addsig", "--field", SignatureField, "pemder",
		"--key", c.KeyPEM, "--cert", c.CertPEM}
	for _, ca := range c.Chain {
		args = append(args, "--chain", ca)
	}
	if passfile != "" {
		args = append(args, "--passfile", passfile)
	} else {
		args = append(args, "--no-pass")
	}
	return append(args, in, out)
}

// Sign checks the credentials, then runs pyHanko.
func (s *PyhankoSigner) Sign(ctx context.Context, in, out string, req appfx.SignRequest) error {
	dir, err := os.MkdirTemp(s.tempDir, "facturx-sign-*")
	if err != nil {
		return fmt.Errorf("signer: temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	creds, err := LoadCredentials(req, dir)
	if err != nil {
		return err
	}

	passfile := ""
	// A decoded PKCS#12 key is written unencrypted.
	if len(req.Passphrase) > 0 && !IsPKCS12(req.Key) {
		passfile = filepath.Join(dir, "passphrase")
		if err := os.WriteFile(passfile, req.Passphrase, 0o600); err != nil {
			return fmt.Errorf("signer: passfile: %w", err)
		}
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, s.path, PyhankoArgs(in, out, creds, passfile)...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			err = fmt.Errorf("%w: %s", err, msg)
		}
		return &domain.ExternalError{Collaborator: "pyhanko", Err: err}
	}
	s.log.Debug().
		Str("subject", creds.Leaf.Subject.CommonName).
		Str("out", out).
		Msg("pdf signed")
	return nil
}
