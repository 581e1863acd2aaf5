package repository

import (
	"context"

	"github.com/jhoicas/facture-electronique/internal/domain/entity"
)

// SubmissionRepository is the persistence port of the submission ledger.
type SubmissionRepository interface {
	Create(ctx context.Context, s *entity.Submission) error
	// UpdateStatus writes PortalStatus, Status, Error and UpdatedAt.
	UpdateStatus(ctx context.Context, s *entity.Submission) error
	// GetByID returns nil, nil when the row does not exist.
	GetByID(ctx context.Context, id string) (*entity.Submission, error)
	ListByInvoice(ctx context.Context, numeroFacture string) ([]*entity.Submission, error)
}
