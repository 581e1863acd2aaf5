// Package bootstrap wires configuration into the use cases shared by the CLI
// and the HTTP server.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	appfx "github.com/jhoicas/facture-electronique/internal/application/facturx"
	"github.com/jhoicas/facture-electronique/internal/application/submission"
	"github.com/jhoicas/facture-electronique/internal/domain"
	"github.com/jhoicas/facture-electronique/internal/domain/entity"
	"github.com/jhoicas/facture-electronique/internal/domain/repository"
	"github.com/jhoicas/facture-electronique/internal/facturx"
	"github.com/jhoicas/facture-electronique/internal/infrastructure/cii"
	"github.com/jhoicas/facture-electronique/internal/infrastructure/pdf"
	"github.com/jhoicas/facture-electronique/internal/infrastructure/portal"
	"github.com/jhoicas/facture-electronique/internal/infrastructure/postgres"
	"github.com/jhoicas/facture-electronique/internal/infrastructure/schematron"
	"github.com/jhoicas/facture-electronique/pkg/config"
	"github.com/jhoicas/facture-electronique/pkg/logger"
)

// App holds the wired use cases and the resources to release on shutdown.
type App struct {
	Config      *config.Config
	Log         *logger.Logger
	FacturX     *appfx.Service
	Submissions *submission.UseCase

	closers []func()
}

// Close releases pools and connections.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// Options selects the optional parts of the wiring.
type Options struct {
	Ledger  bool // open the postgres ledger when configured
	Portals bool // build portal clients for every configured portal
}

// New builds the application from cfg.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger, opts Options) (*App, error) {
	if log == nil {
		log = logger.Nop()
	}
	a := &App{Config: cfg, Log: log}

	fxc := cfg.FacturX
	gen := cii.NewGenerator(cii.NewXMLBuilder())
	deps := appfx.Deps{
		Generator: gen,
		Validator: newValidator(fxc, log),
		Converter: pdf.NewGhostscriptConverter(fxc.GhostscriptPath, log),
		Packer:    pdf.NewAttachmentPacker(pdf.NewXmllintChecker(fxc.XmllintPath, fxc.XSDDir, fxc.TempDir), fxc.TempDir, log),
		Signer:    pdf.NewPyhankoSigner(fxc.PyhankoPath, fxc.TempDir, log),
		TempDir:   fxc.TempDir,
		Log:       log,
	}
	a.FacturX = appfx.NewService(deps, pdf.NewMarotoRenderer())

	var repo repository.SubmissionRepository
	if opts.Ledger && cfg.DB.Enabled() {
		pool, err := openLedger(ctx, cfg.DB)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, pool.Close)
		repo = postgres.NewSubmissionRepository(pool)
	}

	var portals []submission.Portal
	if opts.Portals {
		var err error
		portals, err = a.buildPortals()
		if err != nil {
			a.Close()
			return nil, err
		}
	}
	digest := func(f *entity.Facture) (string, error) {
		xml, err := gen.Generate(f, facturx.ProfileEN16931)
		if err != nil {
			return "", err
		}
		return facturx.Digest(xml)
	}
	a.Submissions = submission.NewUseCase(repo, digest, log, portals...)
	return a, nil
}

func openLedger(ctx context.Context, db config.DBConfig) (*pgxpool.Pool, error) {
	pool, err := postgres.NewPool(ctx, db)
	if err != nil {
		return nil, fmt.Errorf("ledger: %w", err)
	}
	if err := postgres.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ledger: %w", err)
	}
	return pool, nil
}

func (a *App) buildPortals() ([]submission.Portal, error) {
	cfg := a.Config
	var portals []submission.Portal

	if cfg.ChorusPro.Enabled() {
		if err := cfg.Require("CHORUS_PRO_LOGIN", "CHORUS_PRO_PASSWORD"); err != nil {
			return nil, err
		}
		var cache portal.StructureCache
		if cfg.Redis.URL != "" {
			rc, err := portal.NewRedisStructureCache(cfg.Redis.URL, time.Duration(cfg.Redis.TTLMinutes)*time.Minute)
			if err != nil {
				a.Log.Warn().Err(err).Msg("structure cache disabled")
			} else {
				cache = rc
				a.closers = append(a.closers, func() { _ = rc.Close() })
			}
		}
		portals = append(portals, portal.NewChorusPro(portal.ChorusProConfig{
			ClientID:     cfg.ChorusPro.PisteClientID,
			ClientSecret: cfg.ChorusPro.PisteClientSecret,
			TokenURL:     cfg.ChorusPro.TokenURL(),
			BaseURL:      cfg.ChorusPro.APIURL(),
			Login:        cfg.ChorusPro.Login,
			Password:     cfg.ChorusPro.Password,
		}, nil, cache, a.Log))
	}
	if cfg.Pennylane.Enabled() {
		portals = append(portals, portal.NewPennylane(cfg.Pennylane.APIURL(), cfg.Pennylane.APIKey, nil, a.Log))
	}
	if cfg.SAGE.Enabled() {
		portals = append(portals, portal.NewSAGE(cfg.SAGE.APIURL(), cfg.SAGE.APIKey, nil, a.Log))
	}
	return portals, nil
}

func newValidator(c config.FacturXConfig, log *logger.Logger) appfx.Validator {
	if c.SchematronDir == "" {
		return unconfiguredValidator{setting: "FACTURX_SCHEMATRON_DIR"}
	}
	return schematron.NewValidator(os.DirFS(c.SchematronDir), schematron.NewXsltprocTransformer(c.XsltprocPath, c.TempDir), log)
}

// unconfiguredValidator fails every validation with a ConfigError naming the
// missing setting.
type unconfiguredValidator struct {
	setting string
}

func (v unconfiguredValidator) Validate(context.Context, []byte, facturx.Profile) error {
	return config.NewConfigError(v.setting)
}

// IsDeployment reports errors that point at the installation, not the data.
func IsDeployment(err error) bool {
	var (
		cfgErr *config.ConfigError
		resErr *domain.ResourceError
	)
	return errors.As(err, &cfgErr) || errors.As(err, &resErr)
}
