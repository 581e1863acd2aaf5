package pdf

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/jhoicas/facture-electronique/internal/domain"
	"github.com/jhoicas/facture-electronique/pkg/logger"
)

// GhostscriptConverter produces PDF/A-3B files with the gs binary.
type GhostscriptConverter struct {
	path string
	log  *logger.Logger
}

// NewGhostscriptConverter uses the given gs binary ("gs" when empty).
func NewGhostscriptConverter(path string, log *logger.Logger) *GhostscriptConverter {
	if path == "" {
		path = "gs"
	}
	if log == nil {
		log = logger.Nop()
	}
	return &GhostscriptConverter{path: path, log: log}
}

// GhostscriptArgs is the argument list for converting src into dst.
func GhostscriptArgs(src, dst string) []string {
	return []string{
		"-dPDFA=3",
		"-dBATCH",
		"-dNOPAUSE",
		"-dNOOUTERSAVE",
		"-sColorConversionStrategy=UseDeviceIndependentColor",
		"-sDEVICE=pdfwrite",
		"-dPDFACompatibilityPolicy=1",
		"-sOutputFile=" + dst,
		src,
	}
}

// ConvertToPDFA converts src into dst. dst is overwritten.
func (c *GhostscriptConverter) ConvertToPDFA(ctx context.Context, src, dst string) error {
	if _, err := os.Stat(src); err != nil {
		return fmt.Errorf("pdfa: source pdf: %w", err)
	}
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, c.path, GhostscriptArgs(src, dst)...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			err = fmt.Errorf("%w: %s", err, msg)
		}
		return &domain.ExternalError{Collaborator: "ghostscript", Err: err}
	}
	c.log.Debug().Str("src", src).Str("dst", dst).Msg("pdf/a-3 conversion done")
	return nil
}
