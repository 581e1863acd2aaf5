package portal

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strconv"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/jhoicas/facture-electronique/internal/domain"
	"github.com/jhoicas/facture-electronique/internal/domain/entity"
	"github.com/jhoicas/facture-electronique/pkg/logger"
)

// ChorusProName identifies the portal in logs, errors and the ledger.
const ChorusProName = "chorus-pro"

// ChorusProConfig holds the PISTE credentials and the Chorus Pro account.
type ChorusProConfig struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	BaseURL      string
	Login        string
	Password     string
}

// ChorusPro is a client of the Chorus Pro API behind the PISTE gateway.
type ChorusPro struct {
	api     *jsonClient
	account string
	cache   StructureCache
	log     *logger.Logger
}

// NewChorusPro builds a client. Tokens are fetched with the OAuth2 client
// credentials grant (scope openid) and refreshed on expiry. base is the HTTP
// client used for both the token and the API calls; nil uses a default.
func NewChorusPro(cfg ChorusProConfig, base *http.Client, cache StructureCache, log *logger.Logger) *ChorusPro {
	if log == nil {
		log = logger.Nop()
	}
	cc := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
		Scopes:       []string{"openid"},
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	base = httpClientOrDefault(base)
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
	authed := cc.Client(ctx)
	authed.Timeout = base.Timeout

	c := &ChorusPro{
		account: CproAccount(cfg.Login, cfg.Password),
		cache:   cache,
		log:     log,
	}
	c.api = &jsonClient{
		name:    ChorusProName,
		baseURL: cfg.BaseURL,
		http:    authed,
		headers: func(r *http.Request) { r.Header.Set("cpro-account", c.account) },
	}
	return c
}

// CproAccount encodes "login:password" in base64 for the cpro-account header.
func CproAccount(login, password string) string {
	return base64.StdEncoding.EncodeToString([]byte(login + ":" + password))
}

// Name implements the submission portal contract.
func (c *ChorusPro) Name() string { return ChorusProName }

// SubmitResponse is the answer of /factures/v1/soumettre.
type SubmitResponse struct {
	CodeRetour            int    `json:"codeRetour"`
	Libelle               string `json:"libelle"`
	IdentifiantFactureCPP int64  `json:"identifiantFactureCPP"`
	NumeroFacture         string `json:"numeroFacture"`
	DateDepot             string `json:"dateDepot"`
	StatutFacture         string `json:"statutFacture"`
}

// SubmitInvoice posts the invoice built by ChorusPayload.
func (c *ChorusPro) SubmitInvoice(ctx context.Context, f *entity.Facture) (*SubmitResponse, error) {
	var out SubmitResponse
	if err := c.api.post(ctx, "/factures/v1/soumettre", ChorusPayload(f), &out); err != nil {
		return nil, err
	}
	if out.CodeRetour != 0 {
		return nil, c.rejected("soumettre", out.CodeRetour, out.Libelle)
	}
	c.log.Info().
		Str("invoice", f.NumeroFacture).
		Int64("id_facture_cpp", out.IdentifiantFactureCPP).
		Msg("invoice submitted to chorus pro")
	return &out, nil
}

// Submit sends f and returns the portal id and initial status.
func (c *ChorusPro) Submit(ctx context.Context, f *entity.Facture) (string, string, error) {
	resp, err := c.SubmitInvoice(ctx, f)
	if err != nil {
		return "", "", err
	}
	return strconv.FormatInt(resp.IdentifiantFactureCPP, 10), resp.StatutFacture, nil
}

// StatusResponse is the answer of /factures/v1/consulter/fournisseur.
type StatusResponse struct {
	CodeRetour    int    `json:"codeRetour"`
	Libelle       string `json:"libelle"`
	NumeroFacture string `json:"numeroFacture"`
	StatutFacture string `json:"statutFacture"`
	Facture       *struct {
		NumeroFacture string `json:"numeroFacture"`
		Statut        string `json:"statut"`
	} `json:"facture,omitempty"`
}

// Status returns the current status code, wherever the API placed it.
func (r *StatusResponse) Status() string {
	if r.StatutFacture != "" {
		return r.StatutFacture
	}
	if r.Facture != nil {
		return r.Facture.Statut
	}
	return ""
}

// InvoiceStatus consults an invoice by its Chorus Pro id.
func (c *ChorusPro) InvoiceStatus(ctx context.Context, id int64) (*StatusResponse, error) {
	var out StatusResponse
	if err := c.api.post(ctx, "/factures/v1/consulter/fournisseur", map[string]any{"identifiantFactureCPP": id}, &out); err != nil {
		return nil, err
	}
	if out.CodeRetour != 0 {
		return nil, c.rejected("consulter", out.CodeRetour, out.Libelle)
	}
	return &out, nil
}

// Status implements the submission status contract.
func (c *ChorusPro) Status(ctx context.Context, portalID string) (string, error) {
	id, err := strconv.ParseInt(portalID, 10, 64)
	if err != nil {
		return "", fmt.Errorf("%w: chorus pro id %q", domain.ErrInvalidInput, portalID)
	}
	resp, err := c.InvoiceStatus(ctx, id)
	if err != nil {
		return "", err
	}
	return resp.Status(), nil
}

// AddFileResponse carries the technical id of an uploaded attachment.
type AddFileResponse struct {
	CodeRetour    int    `json:"codeRetour"`
	Libelle       string `json:"libelle"`
	PieceJointeID int64  `json:"pieceJointeId"`
}

// AddFile uploads an attachment to the current account.
func (c *ChorusPro) AddFile(ctx context.Context, a *Attachment) (*AddFileResponse, error) {
	body := map[string]string{
		"pieceJointeFichier":   a.Content,
		"pieceJointeNom":       a.Name,
		"pieceJointeTypeMime":  a.MimeType,
		"pieceJointeExtension": a.Extension,
	}
	var out AddFileResponse
	if err := c.api.post(ctx, "/transverses/v1/ajouter/fichier", body, &out); err != nil {
		return nil, err
	}
	if out.CodeRetour != 0 {
		return nil, c.rejected("ajouter fichier", out.CodeRetour, out.Libelle)
	}
	return &out, nil
}

// GetStructure returns the raw description of a structure.
func (c *ChorusPro) GetStructure(ctx context.Context, id int64) (map[string]any, error) {
	out := map[string]any{}
	err := c.api.post(ctx, "/structures/v1/consulter", map[string]any{"codeLangue": "fr", "idStructureCPP": id}, &out)
	return out, err
}

// StructureSearch is the body of /structures/v1/rechercher.
type StructureSearch struct {
	RestreindreStructuresPrivees bool            `json:"restreindreStructuresPrivees"`
	Structure                    StructureFilter `json:"structure"`
}

// StructureFilter selects structures by identifier.
type StructureFilter struct {
	IdentifiantStructure     string `json:"identifiantStructure,omitempty"`
	TypeIdentifiantStructure string `json:"typeIdentifiantStructure,omitempty"`
}

// StructureSearchResult is the answer of /structures/v1/rechercher.
type StructureSearchResult struct {
	CodeRetour       int `json:"codeRetour"`
	ParametresRetour struct {
		Total int `json:"total"`
	} `json:"parametresRetour"`
	ListeStructures []struct {
		IDStructureCPP           int64  `json:"idStructureCPP"`
		IdentifiantStructure     string `json:"identifiantStructure"`
		DesignationStructure     string `json:"designationStructure"`
		TypeIdentifiantStructure string `json:"typeIdentifiantStructure"`
	} `json:"listeStructures"`
}

// SearchStructures runs a structure search.
func (c *ChorusPro) SearchStructures(ctx context.Context, q StructureSearch) (*StructureSearchResult, error) {
	var out StructureSearchResult
	if err := c.api.post(ctx, "/structures/v1/rechercher", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SearchServices lists the services of a structure.
func (c *ChorusPro) SearchServices(ctx context.Context, structureID int64) (map[string]any, error) {
	out := map[string]any{}
	err := c.api.post(ctx, "/structures/v1/rechercher/services", map[string]any{"idStructure": structureID}, &out)
	return out, err
}

// GetService describes one service of a structure.
func (c *ChorusPro) GetService(ctx context.Context, structureID, serviceID int64) (map[string]any, error) {
	out := map[string]any{}
	err := c.api.post(ctx, "/structures/v1/consulter/service", map[string]any{"idStructure": structureID, "idService": serviceID}, &out)
	return out, err
}

// StructureIDFromSIRET resolves a SIRET (or another identifier type, "SIRET"
// when empty) to its Chorus Pro id. It returns 0 unless exactly one structure
// matches. Positive answers are cached.
func (c *ChorusPro) StructureIDFromSIRET(ctx context.Context, siret, idType string) (int64, error) {
	if idType == "" {
		idType = "SIRET"
	}
	cacheKey := idType + ":" + siret
	if c.cache != nil {
		id, ok, err := c.cache.Get(ctx, cacheKey)
		if err != nil {
			c.log.Warn().Err(err).Msg("structure cache unavailable")
		} else if ok {
			return id, nil
		}
	}

	res, err := c.SearchStructures(ctx, StructureSearch{
		RestreindreStructuresPrivees: false,
		Structure: StructureFilter{
			IdentifiantStructure:     siret,
			TypeIdentifiantStructure: idType,
		},
	})
	if err != nil {
		return 0, err
	}
	if res.ParametresRetour.Total != 1 || len(res.ListeStructures) == 0 {
		return 0, nil
	}
	id := res.ListeStructures[0].IDStructureCPP
	if c.cache != nil {
		if err := c.cache.Set(ctx, cacheKey, id); err != nil {
			c.log.Warn().Err(err).Msg("structure cache write failed")
		}
	}
	return id, nil
}

func (c *ChorusPro) rejected(op string, code int, label string) error {
	return &domain.ExternalError{
		Collaborator: ChorusProName,
		Err:          fmt.Errorf("%s rejected: code %d: %s", op, code, label),
	}
}
