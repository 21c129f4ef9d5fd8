package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ericfisherdev/leadinbox/internal/domain/model"
	"github.com/ericfisherdev/leadinbox/internal/domain/port/driven"
)

var _ driven.ChargeStore = (*ChargeRepo)(nil)

// ChargeRepo is the PostgreSQL implementation of ChargeStore.
type ChargeRepo struct {
	db *sql.DB
}

// NewChargeRepo creates a ChargeRepo on db.
func NewChargeRepo(db *sql.DB) *ChargeRepo {
	return &ChargeRepo{db: db}
}

const chargeColumns = `id, company_id, agent_id, external_id, event, status, amount_cents, due_date, paid_at,
	customer_name, customer_email, customer_document, raw_payload, created_at, updated_at`

// Upsert inserts the charge or updates the row with the same external id when
// it belongs to the same company. A foreign row yields driven.ErrAlreadyExists.
func (r *ChargeRepo) Upsert(ctx context.Context, charge model.Charge) (model.Charge, error) {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO charges (`+chargeColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (external_id) DO UPDATE SET
			agent_id = EXCLUDED.agent_id,
			event = EXCLUDED.event,
			status = EXCLUDED.status,
			amount_cents = EXCLUDED.amount_cents,
			due_date = COALESCE(EXCLUDED.due_date, charges.due_date),
			paid_at = COALESCE(EXCLUDED.paid_at, charges.paid_at),
			customer_name = EXCLUDED.customer_name,
			customer_email = EXCLUDED.customer_email,
			customer_document = EXCLUDED.customer_document,
			raw_payload = EXCLUDED.raw_payload,
			updated_at = EXCLUDED.updated_at
		WHERE charges.company_id = EXCLUDED.company_id
		RETURNING id, created_at`,
		charge.ID, charge.CompanyID, charge.AgentID, charge.ExternalID, charge.Event, string(charge.Status),
		charge.AmountCents, nullTime(charge.DueDate), nullTime(charge.PaidAt),
		charge.Customer.Name, charge.Customer.Email, charge.Customer.CPFCNPJ, charge.RawPayload,
		charge.CreatedAt.UTC(), charge.UpdatedAt.UTC(),
	).Scan(&charge.ID, &charge.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Charge{}, fmt.Errorf("upsert charge %s: owned by another company: %w", charge.ExternalID, driven.ErrAlreadyExists)
	}
	if err != nil {
		return model.Charge{}, fmt.Errorf("upsert charge %s: %w", charge.ExternalID, err)
	}
	charge.CreatedAt = charge.CreatedAt.UTC()
	return charge, nil
}

func (r *ChargeRepo) GetByExternalID(ctx context.Context, companyID, externalID string) (*model.Charge, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+chargeColumns+` FROM charges
		WHERE company_id = $1 AND external_id = $2`, companyID, externalID)
	charge, err := scanCharge(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get charge %s: %w", externalID, err)
	}
	return &charge, nil
}

func (r *ChargeRepo) ListByAgent(ctx context.Context, companyID, agentID string) ([]model.Charge, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+chargeColumns+` FROM charges
		WHERE company_id = $1 AND agent_id = $2
		ORDER BY updated_at DESC, id`, companyID, agentID)
	if err != nil {
		return nil, fmt.Errorf("list charges: %w", err)
	}
	defer rows.Close()

	var charges []model.Charge
	for rows.Next() {
		charge, err := scanCharge(rows)
		if err != nil {
			return nil, fmt.Errorf("scan charge: %w", err)
		}
		charges = append(charges, charge)
	}
	return charges, rows.Err()
}

func (r *ChargeRepo) CountByExternalID(ctx context.Context, externalID string) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM charges WHERE external_id = $1`, externalID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count charges %s: %w", externalID, err)
	}
	return n, nil
}

func scanCharge(s rowScanner) (model.Charge, error) {
	var (
		c               model.Charge
		status          string
		dueDate, paidAt sql.NullTime
	)
	if err := s.Scan(&c.ID, &c.CompanyID, &c.AgentID, &c.ExternalID, &c.Event, &status, &c.AmountCents,
		&dueDate, &paidAt, &c.Customer.Name, &c.Customer.Email, &c.Customer.CPFCNPJ, &c.RawPayload,
		&c.CreatedAt, &c.UpdatedAt); err != nil {
		return model.Charge{}, err
	}
	c.Status = model.ChargeStatus(status)
	c.DueDate = timePtr(dueDate)
	c.PaidAt = timePtr(paidAt)
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()
	return c, nil
}
