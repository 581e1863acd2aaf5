package pdf

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/pkcs12"

	appfx "github.com/jhoicas/facture-electronique/internal/application/facturx"
	"github.com/jhoicas/facture-electronique/internal/domain"
)

// Credentials is signing material checked before the signer runs.
type Credentials struct {
	Leaf    *x509.Certificate
	KeyPEM  string   // path of a PEM private key
	CertPEM string   // path of the PEM certificate
	Chain   []string // extra PEM certificates
}

// IsPKCS12 reports whether path names a PKCS#12 bundle.
func IsPKCS12(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".p12" || ext == ".pfx"
}

// LoadCredentials checks that the key and certificate of req are readable and
// match. A PKCS#12 bundle in req.Key is decoded and written as PEM files under
// dir so the external signer can use it.
func LoadCredentials(req appfx.SignRequest, dir string) (*Credentials, error) {
	for _, p := range append([]string{req.Key, req.Cert}, req.Chain...) {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err != nil {
			cause := err
			if errors.Is(err, os.ErrNotExist) {
				cause = domain.ErrResourceNotFound
			}
			return nil, &domain.ResourceError{Kind: "signing material", Path: p, Err: cause}
		}
	}
	if req.Key == "" {
		return nil, fmt.Errorf("%w: signing key is required", domain.ErrInvalidInput)
	}

	if IsPKCS12(req.Key) {
		return fromPKCS12(req, dir)
	}
	if req.Cert == "" {
		return nil, fmt.Errorf("%w: certificate is required with a PEM key", domain.ErrInvalidInput)
	}
	return fromPEM(req)
}

func fromPKCS12(req appfx.SignRequest, dir string) (*Credentials, error) {
	data, err := os.ReadFile(req.Key)
	if err != nil {
		return nil, fmt.Errorf("read p12: %w", err)
	}
	priv, cert, err := pkcs12.Decode(data, string(req.Passphrase))
	if err != nil {
		return nil, fmt.Errorf("%w: decode p12: %v", domain.ErrInvalidInput, err)
	}
	keyDER, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return nil, fmt.Errorf("encode p12 key: %w", err)
	}

	keyPath := filepath.Join(dir, "signing-key.pem")
	certPath := filepath.Join(dir, "signing-cert.pem")
	if err := writePEM(keyPath, "PRIVATE KEY", keyDER); err != nil {
		return nil, err
	}
	if err := writePEM(certPath, "CERTIFICATE", cert.Raw); err != nil {
		return nil, err
	}
	return &Credentials{Leaf: cert, KeyPEM: keyPath, CertPEM: certPath, Chain: req.Chain}, nil
}

func fromPEM(req appfx.SignRequest) (*Credentials, error) {
	certPEM, err := os.ReadFile(req.Cert)
	if err != nil {
		return nil, fmt.Errorf("read certificate: %w", err)
	}
	keyPEM, err := os.ReadFile(req.Key)
	if err != nil {
		return nil, fmt.Errorf("read key: %w", err)
	}

	var pair tls.Certificate
	if len(req.Passphrase) == 0 {
		pair, err = tls.X509KeyPair(certPEM, keyPEM)
		if err != nil {
			return nil, fmt.Errorf("%w: key and certificate: %v", domain.ErrInvalidInput, err)
		}
	} else {
		// Encrypted keys are checked by the signer itself; only the certificate is parsed here.
		block, _ := pem.Decode(certPEM)
		if block == nil {
			return nil, fmt.Errorf("%w: certificate is not PEM", domain.ErrInvalidInput)
		}
		pair.Certificate = [][]byte{block.Bytes}
	}

	leaf, err := x509.ParseCertificate(pair.Certificate[0])
	if err != nil {
		return nil, fmt.Errorf("%w: parse certificate: %v", domain.ErrInvalidInput, err)
	}
	return &Credentials{Leaf: leaf, KeyPEM: req.Key, CertPEM: req.Cert, Chain: req.Chain}, nil
}

func writePEM(path, kind string, der []byte) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("write %s: %w", kind, err)
	}
	if err := pem.Encode(f, &pem.Block{Type: kind, Bytes: der}); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", kind, err)
	}
	return f.Close()
}
