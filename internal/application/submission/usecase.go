// Package submission sends invoices to the invoicing portals and keeps a
// ledger of what was sent.
package submission

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jhoicas/facture-electronique/internal/domain"
	"github.com/jhoicas/facture-electronique/internal/domain/entity"
	"github.com/jhoicas/facture-electronique/internal/domain/facture"
	"github.com/jhoicas/facture-electronique/internal/domain/repository"
	"github.com/jhoicas/facture-electronique/pkg/logger"
)

// ErrStatusUnsupported is returned by Status for portals without a status endpoint.
var ErrStatusUnsupported = errors.New("portal has no status endpoint")

// Portal submits an invoice and returns the portal's id and initial status.
type Portal interface {
	Name() string
	Submit(ctx context.Context, f *entity.Facture) (portalID, status string, err error)
}

// StatusChecker is implemented by portals that can report an invoice status.
type StatusChecker interface {
	Status(ctx context.Context, portalID string) (string, error)
}

// DigestFunc returns the Factur-X digest recorded with a submission. Optional.
type DigestFunc func(f *entity.Facture) (string, error)

// UseCase routes invoices to the registered portals.
type UseCase struct {
	portals map[string]Portal
	repo    repository.SubmissionRepository
	digest  DigestFunc
	now     func() time.Time
	log     *logger.Logger
}

// NewUseCase registers portals by their Name. repo may be nil: nothing is recorded then.
func NewUseCase(repo repository.SubmissionRepository, digest DigestFunc, log *logger.Logger, portals ...Portal) *UseCase {
	if log == nil {
		log = logger.Nop()
	}
	uc := &UseCase{
		portals: make(map[string]Portal, len(portals)),
		repo:    repo,
		digest:  digest,
		now:     func() time.Time { return time.Now().UTC() },
		log:     log,
	}
	for _, p := range portals {
		uc.portals[p.Name()] = p
	}
	return uc
}

// Portals lists the registered portal names, sorted.
func (uc *UseCase) Portals() []string {
	names := make([]string, 0, len(uc.portals))
	for n := range uc.portals {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Submit checks f, sends it to the named portal and records the outcome.
// A failed portal call is recorded as FAILED and its error returned.
func (uc *UseCase) Submit(ctx context.Context, portalName string, f *entity.Facture) (*entity.Submission, error) {
	p, ok := uc.portals[portalName]
	if !ok {
		return nil, fmt.Errorf("%w: unknown portal %q", domain.ErrInvalidInput, portalName)
	}
	if err := facture.Validate(f); err != nil {
		return nil, err
	}

	s := &entity.Submission{
		Portal:        portalName,
		NumeroFacture: f.NumeroFacture,
		DateFacture:   f.DateFacture,
		MontantTTC:    f.MontantTotal.MontantTTCTotal,
		MontantAPayer: f.MontantTotal.MontantAPayer,
		CreatedAt:     uc.now(),
	}
	if uc.digest != nil {
		d, err := uc.digest(f)
		if err != nil {
			return nil, err
		}
		s.Digest = d
	}

	log := uc.log.Child(map[string]any{"portal": portalName, "invoice": f.NumeroFacture})
	portalID, status, sendErr := p.Submit(ctx, f)
	s.UpdatedAt = uc.now()
	if sendErr != nil {
		s.Status = entity.SubmissionStatusFailed
		s.Error = sendErr.Error()
		log.Error().Err(sendErr).Msg("submission failed")
	} else {
		s.Status = entity.SubmissionStatusSent
		s.PortalID = portalID
		s.PortalStatus = status
		log.Info().Str("portal_id", portalID).Msg("invoice submitted")
	}

	if uc.repo != nil {
		if err := uc.repo.Create(ctx, s); err != nil {
			return nil, errors.Join(sendErr, fmt.Errorf("record submission: %w", err))
		}
	}
	if sendErr != nil {
		return s, sendErr
	}
	return s, nil
}

// Status asks the portal for the current status of a recorded submission and
// stores the answer.
func (uc *UseCase) Status(ctx context.Context, id string) (*entity.Submission, error) {
	if uc.repo == nil {
		return nil, fmt.Errorf("%w: no submission ledger configured", domain.ErrNotFound)
	}
	s, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, fmt.Errorf("%w: submission %s", domain.ErrNotFound, id)
	}
	if s.PortalID == "" {
		return s, nil
	}
	p, ok := uc.portals[s.Portal]
	if !ok {
		return nil, fmt.Errorf("%w: portal %q is not configured", domain.ErrInvalidInput, s.Portal)
	}
	checker, ok := p.(StatusChecker)
	if !ok {
		return nil, fmt.Errorf("%s: %w", s.Portal, ErrStatusUnsupported)
	}

	status, err := checker.Status(ctx, s.PortalID)
	if err != nil {
		return nil, err
	}
	s.PortalStatus = status
	s.Status = entity.SubmissionStatusUpdated
	s.UpdatedAt = uc.now()
	if err := uc.repo.UpdateStatus(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}
