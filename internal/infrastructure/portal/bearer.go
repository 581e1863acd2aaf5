package portal

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jhoicas/facture-electronique/internal/domain/entity"
	"github.com/jhoicas/facture-electronique/pkg/logger"
)

// Portal names for the bearer-token platforms.
const (
	PennylaneName = "pennylane"
	SAGEName      = "sage"
)

// BearerPortal posts invoices to /factures with a static bearer token. Pennylane
// and SAGE share this contract.
type BearerPortal struct {
	api *jsonClient
	log *logger.Logger
}

// NewPennylane builds the Pennylane client.
func NewPennylane(baseURL, token string, base *http.Client, log *logger.Logger) *BearerPortal {
	return newBearerPortal(PennylaneName, baseURL, token, base, log)
}

// NewSAGE builds the SAGE client.
func NewSAGE(baseURL, token string, base *http.Client, log *logger.Logger) *BearerPortal {
	return newBearerPortal(SAGEName, baseURL, token, base, log)
}

func newBearerPortal(name, baseURL, token string, base *http.Client, log *logger.Logger) *BearerPortal {
	if log == nil {
		log = logger.Nop()
	}
	return &BearerPortal{
		api: &jsonClient{
			name:    name,
			baseURL: baseURL,
			http:    httpClientOrDefault(base),
			headers: func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) },
		},
		log: log,
	}
}

// Name implements the submission portal contract.
func (p *BearerPortal) Name() string { return p.api.name }

// SendInvoice posts the invoice model as JSON and returns the decoded answer.
func (p *BearerPortal) SendInvoice(ctx context.Context, f *entity.Facture) (map[string]any, error) {
	out := map[string]any{}
	if err := p.api.post(ctx, "/factures", f, &out); err != nil {
		return nil, err
	}
	p.log.Info().Str("portal", p.api.name).Str("invoice", f.NumeroFacture).Msg("invoice sent")
	return out, nil
}

// Submit sends f. The portal id is the "id" of the answer when present.
func (p *BearerPortal) Submit(ctx context.Context, f *entity.Facture) (string, string, error) {
	out, err := p.SendInvoice(ctx, f)
	if err != nil {
		return "", "", err
	}
	id := ""
	if v, ok := out["id"]; ok && v != nil {
		id = fmt.Sprint(v)
	}
	status, _ := out["status"].(string)
	return id, status, nil
}
