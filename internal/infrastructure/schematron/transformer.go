package schematron

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/jhoicas/facture-electronique/internal/domain"
)

// Transformer applies an XSLT stylesheet to a document and returns the output.
type Transformer interface {
	Transform(ctx context.Context, stylesheet, doc []byte) ([]byte, error)
}

// XsltprocTransformer runs the libxslt command line tool.
type XsltprocTransformer struct {
	Path    string // binary, "xsltproc" when empty
	TempDir string // os.TempDir() when empty
}

// NewXsltprocTransformer returns a transformer using the given binary.
func NewXsltprocTransformer(path, tempDir string) *XsltprocTransformer {
	return &XsltprocTransformer{Path: path, TempDir: tempDir}
}

// Transform writes both inputs to a private directory and runs
// `xsltproc stylesheet doc`. Failed assertions are part of the output, so a
// non-zero exit always means the engine itself failed.
func (t *XsltprocTransformer) Transform(ctx context.Context, stylesheet, doc []byte) ([]byte, error) {
	dir, err := os.MkdirTemp(t.TempDir, "xslt-*")
	if err != nil {
		return nil, fmt.Errorf("xsltproc: temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	xslPath := filepath.Join(dir, "stylesheet.xslt")
	docPath := filepath.Join(dir, "document.xml")
	if err := os.WriteFile(xslPath, stylesheet, 0o600); err != nil {
		return nil, fmt.Errorf("xsltproc: write stylesheet: %w", err)
	}
	if err := os.WriteFile(docPath, doc, 0o600); err != nil {
		return nil, fmt.Errorf("xsltproc: write document: %w", err)
	}

	bin := t.Path
	if bin == "" {
		bin = "xsltproc"
	}
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, "--nonet", xslPath, docPath)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			err = fmt.Errorf("%w: %s", err, msg)
		}
		return nil, &domain.ExternalError{Collaborator: "xsltproc", Err: err}
	}
	return stdout.Bytes(), nil
}
