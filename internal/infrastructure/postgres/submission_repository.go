package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/facture-electronique/internal/domain/entity"
	"github.com/jhoicas/facture-electronique/internal/domain/repository"
)

var _ repository.SubmissionRepository = (*SubmissionRepo)(nil)

// SubmissionRepo stores the submission ledger. It works with a pool or a tx.
type SubmissionRepo struct {
	q Querier
}

// NewSubmissionRepository builds the adapter.
func NewSubmissionRepository(q Querier) *SubmissionRepo {
	return &SubmissionRepo{q: q}
}

const submissionColumns = `
	id, portal, portal_id, numero_facture, date_facture,
	montant_ttc, montant_a_payer, digest, status, portal_status, error,
	created_at, updated_at`

// Create inserts s, assigning an id and timestamps when missing.
func (r *SubmissionRepo) Create(ctx context.Context, s *entity.Submission) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = s.CreatedAt
	}
	query := `INSERT INTO facturx_submissions (` + submissionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	_, err := r.q.Exec(ctx, query,
		s.ID, s.Portal, nullIfEmpty(s.PortalID), s.NumeroFacture, nullIfEmpty(s.DateFacture),
		s.MontantTTC, s.MontantAPayer, nullIfEmpty(s.Digest), s.Status,
		nullIfEmpty(s.PortalStatus), nullIfEmpty(s.Error),
		s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("submission already recorded: %w", err)
		}
		return fmt.Errorf("insert submission: %w", err)
	}
	return nil
}

// UpdateStatus refreshes the status fields of an existing row.
func (r *SubmissionRepo) UpdateStatus(ctx context.Context, s *entity.Submission) error {
	query := `
		UPDATE facturx_submissions
		SET status        = $2,
		    portal_status = COALESCE($3, portal_status),
		    error         = $4,
		    updated_at    = $5
		WHERE id = $1`
	tag, err := r.q.Exec(ctx, query, s.ID, s.Status, nullIfEmpty(s.PortalStatus), nullIfEmpty(s.Error), s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update submission: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update submission %s: no such row", s.ID)
	}
	return nil
}

// GetByID returns nil, nil when no row matches.
func (r *SubmissionRepo) GetByID(ctx context.Context, id string) (*entity.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM facturx_submissions WHERE id = $1`
	s, err := scanSubmission(r.q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get submission: %w", err)
	}
	return s, nil
}

// ListByInvoice returns every submission of an invoice number, oldest first.
func (r *SubmissionRepo) ListByInvoice(ctx context.Context, numeroFacture string) ([]*entity.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM facturx_submissions
		WHERE numero_facture = $1 ORDER BY created_at`
	rows, err := r.q.Query(ctx, query, numeroFacture)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	defer rows.Close()

	var list []*entity.Submission
	for rows.Next() {
		s, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		list = append(list, s)
	}
	return list, rows.Err()
}

func scanSubmission(row pgx.Row) (*entity.Submission, error) {
	var s entity.Submission
	var portalID, date, digest, portalStatus, errMsg *string
	err := row.Scan(
		&s.ID, &s.Portal, &portalID, &s.NumeroFacture, &date,
		&s.MontantTTC, &s.MontantAPayer, &digest, &s.Status, &portalStatus, &errMsg,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	s.PortalID = derefStr(portalID)
	s.DateFacture = derefStr(date)
	s.Digest = derefStr(digest)
	s.PortalStatus = derefStr(portalStatus)
	s.Error = derefStr(errMsg)
	return &s, nil
}
