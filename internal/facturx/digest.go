package facturx

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/xml"
	"fmt"

	"github.com/ucarion/c14n"
)

// Digest is the hex SHA-256 of the canonical (C14N) form of an XML document.
func Digest(xmlBytes []byte) (string, error) {
	body := bytes.TrimSpace(xmlBytes)
	if bytes.HasPrefix(body, []byte("<?xml")) {
		end := bytes.Index(body, []byte("?>"))
		if end < 0 {
			return "", fmt.Errorf("digest: unterminated xml declaration")
		}
		body = bytes.TrimSpace(body[end+2:])
	}
	dec := xml.NewDecoder(bytes.NewReader(body))
	dec.Entity = map[string]string{}
	canonical, err := c14n.Canonicalize(dec)
	if err != nil {
		return "", fmt.Errorf("digest: canonicalize: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}
