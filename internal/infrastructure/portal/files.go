package portal

import (
	"encoding/base64"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
)

// MaxAttachmentSize is the Chorus Pro limit for one attachment (10 MB).
const MaxAttachmentSize = 10 << 20

// Attachment is a file ready for /transverses/v1/ajouter/fichier.
type Attachment struct {
	Content   string // base64
	Name      string
	MimeType  string
	Extension string // upper case, no dot
}

// AttachmentFromFile reads path and fills every field of an Attachment.
func AttachmentFromFile(path string) (*Attachment, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("attachment: %w", err)
	}
	if len(b) > MaxAttachmentSize {
		return nil, fmt.Errorf("attachment %s: %d bytes exceeds the 10 MB limit", filepath.Base(path), len(b))
	}
	return &Attachment{
		Content:   base64.StdEncoding.EncodeToString(b),
		Name:      filepath.Base(path),
		MimeType:  GuessMimeType(path),
		Extension: FileExtension(path),
	}, nil
}

// GuessMimeType returns the MIME type for the file extension, without parameters.
func GuessMimeType(path string) string {
	t := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if t == "" {
		return "application/octet-stream"
	}
	if i := strings.Index(t, ";"); i >= 0 {
		t = t[:i]
	}
	return t
}

// FileExtension returns the extension in upper case without the dot ("PDF").
func FileExtension(path string) string {
	return strings.ToUpper(strings.TrimPrefix(filepath.Ext(path), "."))
}
