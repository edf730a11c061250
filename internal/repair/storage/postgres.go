// Package storage provides the repair registry implementations: a
// PostgreSQL store for production and an in-memory store with identical
// conditional-update semantics for tests.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/fixmate/repair-be/internal/repair"
	"github.com/fixmate/repair-be/internal/repair/domain"
	"github.com/fixmate/repair-be/shared/postgresql"
)

const repairColumns = `
		repair_id, customer_id, technician_id, device_model, issue_id,
		description, address, status, steps_progress,
		customer_confirmed_handover, technician_confirmed_handover,
		payment_method, payment_status, amount, paid_at,
		rating, rating_note, version, created_at, updated_at`

// Postgres stores repairs in a single table. Every mutation is one
// conditional UPDATE with the precondition in the WHERE clause; a miss
// maps to the guard's domain error.
type Postgres struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewPostgres creates a Postgres store on the shared client.
func NewPostgres(pg *postgresql.Client, logger *slog.Logger) *Postgres {
	return &Postgres{
		db:     pg.GetDB(),
		logger: logger,
	}
}

// repairRow mirrors the repairs table for scanning.
type repairRow struct {
	RepairID                    string          `db:"repair_id"`
	CustomerID                  string          `db:"customer_id"`
	TechnicianID                sql.NullString  `db:"technician_id"`
	DeviceModel                 string          `db:"device_model"`
	IssueID                     string          `db:"issue_id"`
	Description                 string          `db:"description"`
	Address                     string          `db:"address"`
	Status                      string          `db:"status"`
	StepsProgress               []byte          `db:"steps_progress"`
	CustomerConfirmedHandover   bool            `db:"customer_confirmed_handover"`
	TechnicianConfirmedHandover bool            `db:"technician_confirmed_handover"`
	PaymentMethod               sql.NullString  `db:"payment_method"`
	PaymentStatus               string          `db:"payment_status"`
	Amount                      float64         `db:"amount"`
	PaidAt                      sql.NullTime    `db:"paid_at"`
	Rating                      sql.NullInt64   `db:"rating"`
	RatingNote                  sql.NullString  `db:"rating_note"`
	Version                     int             `db:"version"`
	CreatedAt                   time.Time       `db:"created_at"`
	UpdatedAt                   time.Time       `db:"updated_at"`
}

func (row *repairRow) toDomain() (*domain.Repair, error) {
	var steps []domain.Step
	if len(row.StepsProgress) > 0 {
		if err := json.Unmarshal(row.StepsProgress, &steps); err != nil {
			return nil, fmt.Errorf("failed to decode steps snapshot: %w", err)
		}
	}

	r := &domain.Repair{
		ID:                          row.RepairID,
		CustomerID:                  row.CustomerID,
		DeviceModel:                 row.DeviceModel,
		IssueID:                     row.IssueID,
		Description:                 row.Description,
		Address:                     row.Address,
		Status:                      domain.Status(row.Status),
		Steps:                       steps,
		CustomerConfirmedHandover:   row.CustomerConfirmedHandover,
		TechnicianConfirmedHandover: row.TechnicianConfirmedHandover,
		PaymentStatus:               domain.PaymentStatus(row.PaymentStatus),
		Amount:                      row.Amount,
		Version:                     row.Version,
		CreatedAt:                   row.CreatedAt,
		UpdatedAt:                   row.UpdatedAt,
	}
	if row.TechnicianID.Valid {
		r.TechnicianID = row.TechnicianID.String
	}
	if row.PaymentMethod.Valid {
		r.PaymentMethod = domain.PaymentMethod(row.PaymentMethod.String)
	}
	if row.PaidAt.Valid {
		ts := row.PaidAt.Time
		r.PaidAt = &ts
	}
	if row.Rating.Valid {
		r.Rating = int(row.Rating.Int64)
	}
	if row.RatingNote.Valid {
		r.RatingNote = row.RatingNote.String
	}
	return r, nil
}

func encodeSteps(steps []domain.Step) ([]byte, error) {
	if steps == nil {
		steps = []domain.Step{}
	}
	data, err := json.Marshal(steps)
	if err != nil {
		return nil, fmt.Errorf("failed to encode steps snapshot: %w", err)
	}
	return data, nil
}

// Create inserts a new repair.
func (s *Postgres) Create(ctx context.Context, r *domain.Repair) error {
	stepsJSON, err := encodeSteps(r.Steps)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO repairs (
			repair_id, customer_id, device_model, issue_id, description,
			address, status, steps_progress, payment_status, version,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10,
			$11, $12
		)
	`

	_, err = s.db.ExecContext(
		ctx,
		query,
		r.ID,
		r.CustomerID,
		r.DeviceModel,
		r.IssueID,
		r.Description,
		r.Address,
		r.Status,
		stepsJSON,
		r.PaymentStatus,
		r.Version,
		r.CreatedAt,
		r.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create repair: %w", err)
	}

	return nil
}

// GetByID retrieves a repair by its id.
func (s *Postgres) GetByID(ctx context.Context, id string) (*domain.Repair, error) {
	query := `SELECT` + repairColumns + `
		FROM repairs
		WHERE repair_id = $1
	`

	var row repairRow
	if err := s.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get repair: %w", err)
	}

	return row.toDomain()
}

// List returns up to PageSize+1 matching repairs, newest first.
func (s *Postgres) List(ctx context.Context, filter repair.ListFilter) ([]domain.Repair, error) {
	query := `SELECT` + repairColumns + `
		FROM repairs
		WHERE 1=1
	`
	args := []interface{}{}
	argIdx := 1

	if filter.CustomerID != "" {
		query += fmt.Sprintf(" AND customer_id = $%d", argIdx)
		args = append(args, filter.CustomerID)
		argIdx++
	}

	if filter.TechnicianID != "" {
		if filter.IncludePending {
			query += fmt.Sprintf(" AND (technician_id = $%d OR status = $%d)", argIdx, argIdx+1)
			args = append(args, filter.TechnicianID, domain.StatusPending)
			argIdx += 2
		} else {
			query += fmt.Sprintf(" AND technician_id = $%d", argIdx)
			args = append(args, filter.TechnicianID)
			argIdx++
		}
	}

	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, filter.Status)
		argIdx++
	}

	if filter.Cursor != nil {
		query += fmt.Sprintf(" AND (created_at, repair_id) < ($%d, $%d)", argIdx, argIdx+1)
		args = append(args, filter.Cursor.CreatedAt, filter.Cursor.ID)
		argIdx += 2
	}

	// Order by created_at DESC, repair_id DESC for consistent pagination
	query += " ORDER BY created_at DESC, repair_id DESC"

	// Fetch one extra to determine if there are more results. A
	// non-positive page size means no limit.
	if filter.PageSize > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, filter.PageSize+1)
	}

	var rows []repairRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list repairs: %w", err)
	}

	out := make([]domain.Repair, 0, len(rows))
	for i := range rows {
		r, err := rows[i].toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, nil
}

// Claim attempts the single-winner assignment. The WHERE clause is the
// race arbiter: compare status and assignment, then set, in one
// statement. A miss means another technician already holds the repair
// or it is gone.
func (s *Postgres) Claim(ctx context.Context, id, technicianID string) (*domain.Repair, error) {
	query := `
		UPDATE repairs
		SET status = $1,
		    technician_id = $2,
		    version = version + 1,
		    updated_at = NOW()
		WHERE repair_id = $3
		  AND status = $4
		  AND technician_id IS NULL
		RETURNING` + repairColumns

	row, err := s.queryRow(ctx, query, domain.StatusAccepted, technicianID, id, domain.StatusPending)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("failed to claim repair - already claimed or not found",
				slog.String("repair_id", id),
				slog.String("technician_id", technicianID),
			)
			return nil, domain.ErrAlreadyClaimed
		}
		return nil, fmt.Errorf("failed to claim repair: %w", err)
	}

	s.logger.Info("repair claimed",
		slog.String("repair_id", id),
		slog.String("technician_id", technicianID),
	)

	return row.toDomain()
}

// UpdateStatus advances the status iff the repair currently holds
// `from` and is assigned to the technician.
func (s *Postgres) UpdateStatus(ctx context.Context, id, technicianID string, from, to domain.Status) (*domain.Repair, error) {
	query := `
		UPDATE repairs
		SET status = $1,
		    version = version + 1,
		    updated_at = NOW()
		WHERE repair_id = $2
		  AND status = $3
		  AND technician_id = $4
		RETURNING` + repairColumns

	row, err := s.queryRow(ctx, query, to, id, from, technicianID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrInvalidTransition
		}
		return nil, fmt.Errorf("failed to update repair status: %w", err)
	}

	return row.toDomain()
}

// SaveSteps replaces the step snapshot guarded by the version column.
func (s *Postgres) SaveSteps(ctx context.Context, id string, version int, steps []domain.Step) (*domain.Repair, error) {
	stepsJSON, err := encodeSteps(steps)
	if err != nil {
		return nil, err
	}

	query := `
		UPDATE repairs
		SET steps_progress = $1,
		    version = version + 1,
		    updated_at = NOW()
		WHERE repair_id = $2
		  AND version = $3
		RETURNING` + repairColumns

	row, err := s.queryRow(ctx, query, stepsJSON, id, version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrVersionConflict
		}
		return nil, fmt.Errorf("failed to save steps: %w", err)
	}

	return row.toDomain()
}

// SetHandover sets one party's confirmation flag iff not terminal.
func (s *Postgres) SetHandover(ctx context.Context, id string, party domain.Role) (*domain.Repair, error) {
	column := "customer_confirmed_handover"
	if party == domain.RoleTechnician {
		column = "technician_confirmed_handover"
	}

	query := `
		UPDATE repairs
		SET ` + column + ` = TRUE,
		    version = version + 1,
		    updated_at = NOW()
		WHERE repair_id = $1
		  AND status <> $2
		RETURNING` + repairColumns

	row, err := s.queryRow(ctx, query, id, domain.StatusCompleted)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrInvalidTransition
		}
		return nil, fmt.Errorf("failed to set handover flag: %w", err)
	}

	return row.toDomain()
}

// RecordPayment writes the settlement fields in one conditional update.
func (s *Postgres) RecordPayment(ctx context.Context, id, customerID string, rec repair.PaymentRecord) (*domain.Repair, error) {
	query := `
		UPDATE repairs
		SET payment_method = $1,
		    amount = $2,
		    payment_status = $3,
		    status = $4,
		    paid_at = $5,
		    version = version + 1,
		    updated_at = NOW()
		WHERE repair_id = $6
		  AND customer_id = $7
		  AND status = $8
		  AND payment_status = $9
		RETURNING` + repairColumns

	row, err := s.queryRow(ctx, query,
		rec.Method, rec.Amount, rec.PaymentStatus, rec.Status, rec.PaidAt,
		id, customerID, domain.StatusAwaitingPayment, domain.PaymentStatusPending,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrInvalidTransition
		}
		return nil, fmt.Errorf("failed to record payment: %w", err)
	}

	s.logger.Info("payment recorded",
		slog.String("repair_id", id),
		slog.String("method", string(rec.Method)),
	)

	return row.toDomain()
}

// ConfirmCashPayment completes a pending cash settlement.
func (s *Postgres) ConfirmCashPayment(ctx context.Context, id, technicianID string, paidAt time.Time) (*domain.Repair, error) {
	query := `
		UPDATE repairs
		SET payment_status = $1,
		    status = $2,
		    paid_at = $3,
		    version = version + 1,
		    updated_at = NOW()
		WHERE repair_id = $4
		  AND technician_id = $5
		  AND payment_method = $6
		  AND payment_status = $7
		RETURNING` + repairColumns

	row, err := s.queryRow(ctx, query,
		domain.PaymentStatusPaid, domain.StatusPaid, paidAt,
		id, technicianID, domain.PaymentMethodCOD, domain.PaymentStatusAwaitingPayment,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrInvalidTransition
		}
		return nil, fmt.Errorf("failed to confirm cash payment: %w", err)
	}

	return row.toDomain()
}

// SetRating records the customer's rating; overwriting is allowed.
func (s *Postgres) SetRating(ctx context.Context, id, customerID string, rating int, note string) (*domain.Repair, error) {
	query := `
		UPDATE repairs
		SET rating = $1,
		    rating_note = $2,
		    version = version + 1,
		    updated_at = NOW()
		WHERE repair_id = $3
		  AND customer_id = $4
		  AND status IN ($5, $6)
		RETURNING` + repairColumns

	row, err := s.queryRow(ctx, query,
		rating, note, id, customerID, domain.StatusPaid, domain.StatusCompleted,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrInvalidTransition
		}
		return nil, fmt.Errorf("failed to set rating: %w", err)
	}

	return row.toDomain()
}

// queryRow runs a RETURNING statement and scans the single result row.
func (s *Postgres) queryRow(ctx context.Context, query string, args ...interface{}) (*repairRow, error) {
	var row repairRow
	if err := s.db.QueryRowxContext(ctx, query, args...).StructScan(&row); err != nil {
		return nil, err
	}
	return &row, nil
}
