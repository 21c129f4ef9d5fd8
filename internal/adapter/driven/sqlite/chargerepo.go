package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ericfisherdev/leadinbox/internal/domain/model"
	"github.com/ericfisherdev/leadinbox/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.ChargeStore = (*ChargeRepo)(nil)

// ChargeRepo is the SQLite implementation of the ChargeStore port interface.
type ChargeRepo struct {
	db *DB
}

// NewChargeRepo creates a new ChargeRepo backed by the given DB.
func NewChargeRepo(db *DB) *ChargeRepo {
	return &ChargeRepo{db: db}
}

const chargeColumns = `id, company_id, agent_id, external_id, event, status, amount_cents, due_date, paid_at,
	customer_name, customer_email, customer_document, raw_payload, created_at, updated_at`

// Upsert inserts the charge or updates the row holding the same external id.
// The unique constraint on external_id makes concurrent duplicate deliveries
// converge on one row. A row owned by another company is never modified; that
// case is reported as driven.ErrAlreadyExists.
func (r *ChargeRepo) Upsert(ctx context.Context, charge model.Charge) (model.Charge, error) {
	const query = `
		INSERT INTO charges (` + chargeColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(external_id) DO UPDATE SET
			agent_id = excluded.agent_id,
			event = excluded.event,
			status = excluded.status,
			amount_cents = excluded.amount_cents,
			due_date = COALESCE(excluded.due_date, charges.due_date),
			paid_at = COALESCE(excluded.paid_at, charges.paid_at),
			customer_name = excluded.customer_name,
			customer_email = excluded.customer_email,
			customer_document = excluded.customer_document,
			raw_payload = excluded.raw_payload,
			updated_at = excluded.updated_at
		WHERE charges.company_id = excluded.company_id
		RETURNING id, created_at
	`

	var createdAt string
	err := r.db.Writer.QueryRowContext(ctx, query,
		charge.ID, charge.CompanyID, charge.AgentID, charge.ExternalID, charge.Event, string(charge.Status),
		charge.AmountCents, formatNullTime(charge.DueDate), formatNullTime(charge.PaidAt),
		charge.Customer.Name, charge.Customer.Email, charge.Customer.CPFCNPJ, charge.RawPayload,
		formatTime(charge.CreatedAt), formatTime(charge.UpdatedAt),
	).Scan(&charge.ID, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Charge{}, fmt.Errorf("upsert charge %s: owned by another company: %w", charge.ExternalID, driven.ErrAlreadyExists)
	}
	if err != nil {
		return model.Charge{}, fmt.Errorf("upsert charge %s: %w", charge.ExternalID, err)
	}

	if charge.CreatedAt, err = parseTime(createdAt); err != nil {
		return model.Charge{}, fmt.Errorf("parse created_at: %w", err)
	}
	return charge, nil
}

// GetByExternalID returns the charge owned by companyID, or (nil, nil).
func (r *ChargeRepo) GetByExternalID(ctx context.Context, companyID, externalID string) (*model.Charge, error) {
	const query = `SELECT ` + chargeColumns + ` FROM charges WHERE company_id = ? AND external_id = ?`

	charge, err := scanCharge(r.db.Reader.QueryRowContext(ctx, query, companyID, externalID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get charge %s: %w", externalID, err)
	}
	return &charge, nil
}

// ListByAgent returns the charges received through one agent, most recently updated first.
func (r *ChargeRepo) ListByAgent(ctx context.Context, companyID, agentID string) ([]model.Charge, error) {
	const query = `SELECT ` + chargeColumns + ` FROM charges
		WHERE company_id = ? AND agent_id = ?
		ORDER BY updated_at DESC, id`

	rows, err := r.db.Reader.QueryContext(ctx, query, companyID, agentID)
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
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate charges: %w", err)
	}
	return charges, nil
}

// CountByExternalID returns how many rows hold externalID (0 or 1).
func (r *ChargeRepo) CountByExternalID(ctx context.Context, externalID string) (int, error) {
	const query = `SELECT COUNT(*) FROM charges WHERE external_id = ?`

	var n int
	if err := r.db.Reader.QueryRowContext(ctx, query, externalID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count charges %s: %w", externalID, err)
	}
	return n, nil
}

func scanCharge(s rowScanner) (model.Charge, error) {
	var (
		c                    model.Charge
		status               string
		dueDate, paidAt      sql.NullString
		createdAt, updatedAt string
	)
	if err := s.Scan(&c.ID, &c.CompanyID, &c.AgentID, &c.ExternalID, &c.Event, &status, &c.AmountCents,
		&dueDate, &paidAt, &c.Customer.Name, &c.Customer.Email, &c.Customer.CPFCNPJ, &c.RawPayload,
		&createdAt, &updatedAt); err != nil {
		return model.Charge{}, err
	}
	c.Status = model.ChargeStatus(status)

	var err error
	if c.DueDate, err = parseNullTime(dueDate); err != nil {
		return model.Charge{}, fmt.Errorf("parse due_date: %w", err)
	}
	if c.PaidAt, err = parseNullTime(paidAt); err != nil {
		return model.Charge{}, fmt.Errorf("parse paid_at: %w", err)
	}
	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return model.Charge{}, fmt.Errorf("parse created_at: %w", err)
	}
	if c.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return model.Charge{}, fmt.Errorf("parse updated_at: %w", err)
	}
	return c, nil
}
