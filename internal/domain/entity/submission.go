package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Submission states recorded in the ledger.
const (
	SubmissionStatusSent    = "SENT"    // accepted by the portal, id assigned
	SubmissionStatusFailed  = "FAILED"  // the portal call failed
	SubmissionStatusUpdated = "UPDATED" // status refreshed from the portal
)

// Submission is one invoice sent to a portal.
type Submission struct {
	ID            string          `json:"id"`
	Portal        string          `json:"portal"`
	PortalID      string          `json:"portal_id,omitempty"`
	NumeroFacture string          `json:"numero_facture"`
	DateFacture   string          `json:"date_facture,omitempty"`
	MontantTTC    decimal.Decimal `json:"montant_ttc"`
	MontantAPayer decimal.Decimal `json:"montant_a_payer"`
	Digest        string          `json:"digest,omitempty"`
	Status        string          `json:"status"`
	PortalStatus  string          `json:"portal_status,omitempty"`
	Error         string          `json:"error,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}
