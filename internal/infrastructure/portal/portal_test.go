package portal_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/facture-electronique/internal/domain"
	"github.com/jhoicas/facture-electronique/internal/domain/entity"
	"github.com/jhoicas/facture-electronique/internal/infrastructure/portal"
	"github.com/jhoicas/facture-electronique/internal/testutil"
)

// chorusServer fakes both the PISTE token endpoint and the Chorus Pro API.
type chorusServer struct {
	*httptest.Server
	tokenCalls atomic.Int32

	mu       sync.Mutex
	requests map[string]map[string]any
	headers  map[string]http.Header
	answers  map[string]any
}

func newChorusServer(t *testing.T) *chorusServer {
	t.Helper()
	s := &chorusServer{
		requests: map[string]map[string]any{},
		headers:  map[string]http.Header{},
		answers:  map[string]any{},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		s.tokenCalls.Add(1)
		_ = r.ParseForm()
		if r.PostForm.Get("client_id") != "cid" || r.PostForm.Get("client_secret") != "secret" {
			http.Error(w, "bad client", http.StatusUnauthorized)
			return
		}
		if r.PostForm.Get("scope") != "openid" {
			http.Error(w, "bad scope", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"access_token":"tok-1","token_type":"Bearer","expires_in":3600}`)
	})
	mux.HandleFunc("/cpro/", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok-1" {
			http.Error(w, "no token", http.StatusUnauthorized)
			return
		}
		body := map[string]any{}
		_ = json.NewDecoder(r.Body).Decode(&body)
		s.mu.Lock()
		s.requests[r.URL.Path] = body
		s.headers[r.URL.Path] = r.Header.Clone()
		answer, ok := s.answers[r.URL.Path]
		s.mu.Unlock()
		if !ok {
			http.Error(w, "unexpected path", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(answer)
	})
	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

func (s *chorusServer) answer(path string, v any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.answers["/cpro"+path] = v
}

func (s *chorusServer) request(path string) map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests["/cpro"+path]
}

func (s *chorusServer) client(cache portal.StructureCache) *portal.ChorusPro {
	return portal.NewChorusPro(portal.ChorusProConfig{
		ClientID:     "cid",
		ClientSecret: "secret",
		TokenURL:     s.URL + "/oauth/token",
		BaseURL:      s.URL + "/cpro",
		Login:        "user@example.fr",
		Password:     "pw",
	}, s.Server.Client(), cache, nil)
}

type memCache struct {
	mu   sync.Mutex
	data map[string]int64
	gets int
}

func (c *memCache) Get(_ context.Context, key string) (int64, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	id, ok := c.data[key]
	return id, ok, nil
}

func (c *memCache) Set(_ context.Context, key string, id int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.data == nil {
		c.data = map[string]int64{}
	}
	c.data[key] = id
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Chorus Pro
// ──────────────────────────────────────────────────────────────────────────────

func TestChorusPro_SubmitInvoice(t *testing.T) {
	srv := newChorusServer(t)
	srv.answer("/factures/v1/soumettre", map[string]any{
		"codeRetour":            0,
		"libelle":               "GCU_MSG_01_000",
		"identifiantFactureCPP": 4242,
		"numeroFacture":         "FA-2024-001",
		"statutFacture":         "DEPOSEE",
	})
	c := srv.client(nil)

	id, status, err := c.Submit(context.Background(), testutil.SampleFacture())
	require.NoError(t, err)
	assert.Equal(t, "4242", id)
	assert.Equal(t, "DEPOSEE", status)
	assert.Equal(t, portal.ChorusProName, c.Name())

	body := srv.request("/factures/v1/soumettre")
	require.NotNil(t, body)
	assert.Equal(t, "FA-2024-001", body["numeroFactureSaisi"])
	assert.Equal(t, "DEPOT_PDF_API", body["modeDepot"])

	srv.mu.Lock()
	hdr := srv.headers["/cpro/factures/v1/soumettre"]
	srv.mu.Unlock()
	assert.Equal(t, portal.CproAccount("user@example.fr", "pw"), hdr.Get("cpro-account"))
}

func TestChorusPro_TokenIsReused(t *testing.T) {
	srv := newChorusServer(t)
	srv.answer("/factures/v1/consulter/fournisseur", map[string]any{"codeRetour": 0, "statutFacture": "MISE_A_DISPOSITION"})
	c := srv.client(nil)

	for i := 0; i < 3; i++ {
		status, err := c.Status(context.Background(), "17")
		require.NoError(t, err)
		assert.Equal(t, "MISE_A_DISPOSITION", status)
	}
	assert.EqualValues(t, 1, srv.tokenCalls.Load())
	assert.EqualValues(t, 17, srv.request("/factures/v1/consulter/fournisseur")["identifiantFactureCPP"])
}

func TestChorusPro_RejectedSubmission(t *testing.T) {
	srv := newChorusServer(t)
	srv.answer("/factures/v1/soumettre", map[string]any{"codeRetour": 20001, "libelle": "destinataire inconnu"})

	_, err := srv.client(nil).SubmitInvoice(context.Background(), testutil.SampleFacture())
	require.Error(t, err)

	var ext *domain.ExternalError
	require.ErrorAs(t, err, &ext)
	assert.Equal(t, portal.ChorusProName, ext.Collaborator)
	assert.Contains(t, err.Error(), "20001")
}

func TestChorusPro_HTTPErrorIsExternal(t *testing.T) {
	srv := newChorusServer(t)
	// no answer registered: the fake replies 404

	_, err := srv.client(nil).InvoiceStatus(context.Background(), 1)
	var status *portal.HTTPStatusError
	require.ErrorAs(t, err, &status)
	assert.Equal(t, http.StatusNotFound, status.StatusCode)
}

func TestChorusPro_StatusRejectsNonNumericID(t *testing.T) {
	srv := newChorusServer(t)
	_, err := srv.client(nil).Status(context.Background(), "abc")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestChorusPro_StructureIDFromSIRET(t *testing.T) {
	srv := newChorusServer(t)
	srv.answer("/structures/v1/rechercher", map[string]any{
		"codeRetour":       0,
		"parametresRetour": map[string]any{"total": 1},
		"listeStructures":  []map[string]any{{"idStructureCPP": 26300989, "identifiantStructure": "12345678901234"}},
	})
	cache := &memCache{}
	c := srv.client(cache)

	id, err := c.StructureIDFromSIRET(context.Background(), "12345678901234", "")
	require.NoError(t, err)
	assert.EqualValues(t, 26300989, id)

	body := srv.request("/structures/v1/rechercher")
	assert.Equal(t, false, body["restreindreStructuresPrivees"])
	assert.Equal(t, map[string]any{
		"identifiantStructure":     "12345678901234",
		"typeIdentifiantStructure": "SIRET",
	}, body["structure"])

	// second lookup is served from the cache
	srv.answer("/structures/v1/rechercher", map[string]any{"codeRetour": 0, "parametresRetour": map[string]any{"total": 0}})
	id, err = c.StructureIDFromSIRET(context.Background(), "12345678901234", "SIRET")
	require.NoError(t, err)
	assert.EqualValues(t, 26300989, id)
}

func TestChorusPro_StructureIDFromSIRET_Ambiguous(t *testing.T) {
	srv := newChorusServer(t)
	srv.answer("/structures/v1/rechercher", map[string]any{
		"codeRetour":       0,
		"parametresRetour": map[string]any{"total": 2},
		"listeStructures":  []map[string]any{{"idStructureCPP": 1}, {"idStructureCPP": 2}},
	})
	cache := &memCache{}

	id, err := srv.client(cache).StructureIDFromSIRET(context.Background(), "999", "")
	require.NoError(t, err)
	assert.Zero(t, id)
	assert.Empty(t, cache.data)
}

func TestChorusPro_StructureQueries(t *testing.T) {
	srv := newChorusServer(t)
	srv.answer("/structures/v1/consulter", map[string]any{"codeRetour": 0, "raisonSociale": "MAIRIE"})
	srv.answer("/structures/v1/rechercher/services", map[string]any{"codeRetour": 0, "listeServices": []any{}})
	srv.answer("/structures/v1/consulter/service", map[string]any{"codeRetour": 0, "libelleService": "Compta"})
	c := srv.client(nil)
	ctx := context.Background()

	s, err := c.GetStructure(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "MAIRIE", s["raisonSociale"])
	assert.Equal(t, "fr", srv.request("/structures/v1/consulter")["codeLangue"])
	assert.EqualValues(t, 7, srv.request("/structures/v1/consulter")["idStructureCPP"])

	_, err = c.SearchServices(ctx, 7)
	require.NoError(t, err)
	assert.EqualValues(t, 7, srv.request("/structures/v1/rechercher/services")["idStructure"])

	svc, err := c.GetService(ctx, 7, 8)
	require.NoError(t, err)
	assert.Equal(t, "Compta", svc["libelleService"])
	assert.EqualValues(t, 8, srv.request("/structures/v1/consulter/service")["idService"])
}

func TestChorusPro_AddFile(t *testing.T) {
	srv := newChorusServer(t)
	srv.answer("/transverses/v1/ajouter/fichier", map[string]any{"codeRetour": 0, "pieceJointeId": 99})

	path := filepath.Join(t.TempDir(), "annexe.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.7"), 0o600))
	att, err := portal.AttachmentFromFile(path)
	require.NoError(t, err)

	resp, err := srv.client(nil).AddFile(context.Background(), att)
	require.NoError(t, err)
	assert.EqualValues(t, 99, resp.PieceJointeID)

	body := srv.request("/transverses/v1/ajouter/fichier")
	assert.Equal(t, "JVBERi0xLjc=", body["pieceJointeFichier"])
	assert.Equal(t, "annexe.pdf", body["pieceJointeNom"])
	assert.Equal(t, "application/pdf", body["pieceJointeTypeMime"])
	assert.Equal(t, "PDF", body["pieceJointeExtension"])
}

func TestChorusPro_BadCredentials(t *testing.T) {
	srv := newChorusServer(t)
	c := portal.NewChorusPro(portal.ChorusProConfig{
		ClientID:     "cid",
		ClientSecret: "wrong",
		TokenURL:     srv.URL + "/oauth/token",
		BaseURL:      srv.URL + "/cpro",
	}, srv.Server.Client(), nil, nil)

	_, err := c.InvoiceStatus(context.Background(), 1)
	require.Error(t, err)
	var ext *domain.ExternalError
	assert.ErrorAs(t, err, &ext)
}

// ──────────────────────────────────────────────────────────────────────────────
// Payload
// ──────────────────────────────────────────────────────────────────────────────

func TestChorusPayload(t *testing.T) {
	f := testutil.SampleFacture()
	raw, err := json.Marshal(portal.ChorusPayload(f))
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(raw, &got))

	assert.Equal(t, "FA-2024-001", got["numeroFactureSaisi"])
	assert.Equal(t, "2024-10-26", got["dateFacture"])
	assert.Equal(t, 1200.0, got["montantTotal"].(map[string]any)["montantAPayer"])

	dest := got["destinataire"].(map[string]any)
	assert.Equal(t, "12345678901234", dest["codeDestinataire"])
	assert.NotContains(t, dest, "nom")
	assert.NotContains(t, dest, "adressePostale")

	four := got["fournisseur"].(map[string]any)
	assert.EqualValues(t, 123, four["idFournisseur"])
	assert.NotContains(t, four, "siret")
	assert.NotContains(t, four, "nom")

	lines := got["lignePoste"].([]any)
	require.Len(t, lines, 1)
	assert.Equal(t, 10.0, lines[0].(map[string]any)["lignePosteQuantite"])
}

func TestChorusPayload_SaisieAPI(t *testing.T) {
	f := testutil.SampleFacture()
	f.ModeDepot = entity.ModeDepotSaisieAPI

	raw, err := json.Marshal(portal.ChorusPayload(f))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "numeroFactureSaisi")
	assert.NotContains(t, string(raw), "dateFacture")
}

// ──────────────────────────────────────────────────────────────────────────────
// Pennylane / SAGE
// ──────────────────────────────────────────────────────────────────────────────

func TestBearerPortals(t *testing.T) {
	tests := []struct {
		name  string
		build func(url string, c *http.Client) *portal.BearerPortal
	}{
		{portal.PennylaneName, func(url string, c *http.Client) *portal.BearerPortal { return portal.NewPennylane(url, "pl-token", c, nil) }},
		{portal.SAGEName, func(url string, c *http.Client) *portal.BearerPortal { return portal.NewSAGE(url, "pl-token", c, nil) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got map[string]any
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "/factures", r.URL.Path)
				assert.Equal(t, "Bearer pl-token", r.Header.Get("Authorization"))
				_ = json.NewDecoder(r.Body).Decode(&got)
				_, _ = io.WriteString(w, `{"id": 314, "status": "received"}`)
			}))
			defer srv.Close()

			p := tt.build(srv.URL, srv.Client())
			id, status, err := p.Submit(context.Background(), testutil.SampleFacture())
			require.NoError(t, err)
			assert.Equal(t, "314", id)
			assert.Equal(t, "received", status)
			assert.Equal(t, tt.name, p.Name())
			assert.Equal(t, "FA-2024-001", got["numero_facture"])
		})
	}
}

func TestBearerPortal_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := portal.NewPennylane(srv.URL, "t", srv.Client(), nil).SendInvoice(context.Background(), testutil.SampleFacture())
	var status *portal.HTTPStatusError
	require.ErrorAs(t, err, &status)
	assert.Equal(t, http.StatusInternalServerError, status.StatusCode)
	assert.Equal(t, "boom", status.Body)
}

func TestBearerPortal_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := portal.NewSAGE(srv.URL, "t", srv.Client(), nil).SendInvoice(ctx, testutil.SampleFacture())
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

// ──────────────────────────────────────────────────────────────────────────────
// Files
// ──────────────────────────────────────────────────────────────────────────────

func TestFileHelpers(t *testing.T) {
	assert.Equal(t, "PDF", portal.FileExtension("/tmp/facture.pdf"))
	assert.Equal(t, "XML", portal.FileExtension("factur-x.XML"))
	assert.Equal(t, "", portal.FileExtension("README"))

	assert.Equal(t, "application/pdf", portal.GuessMimeType("a.PDF"))
	assert.Equal(t, "application/octet-stream", portal.GuessMimeType("a.unknownext"))
}

func TestAttachmentFromFile_Missing(t *testing.T) {
	_, err := portal.AttachmentFromFile(filepath.Join(t.TempDir(), "nope.pdf"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

// ──────────────────────────────────────────────────────────────────────────────
// Redis cache (integration, needs REDIS_URL)
// ──────────────────────────────────────────────────────────────────────────────

func TestRedisStructureCache(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	cache, err := portal.NewRedisStructureCache(url, time.Minute)
	require.NoError(t, err)
	defer cache.Close()

	ctx := context.Background()
	key := "SIRET:test-" + time.Now().Format("150405.000000")
	_, ok, err := cache.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.Set(ctx, key, 77))
	id, ok, err := cache.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.EqualValues(t, 77, id)
}
