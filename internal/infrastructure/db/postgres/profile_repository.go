package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ree-portal/agent-onboarding/internal/core/domain"
)

const profileColumns = `id, name, phone_number, career, role, status, payment_receipt_url, created_at, updated_at`

type ProfileRepository struct {
	db DBTX
}

func NewProfileRepository(db DBTX) *ProfileRepository {
	return &ProfileRepository{db: db}
}

func (r *ProfileRepository) Create(ctx context.Context, p *domain.Profile) error {
	query := `
		INSERT INTO profiles (` + profileColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.db.Exec(ctx, query,
		p.ID,
		p.Name,
		p.PhoneNumber,
		p.Career,
		string(p.Role),
		string(p.Status),
		p.PaymentReceiptURL,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrUserExists
		}
		return fmt.Errorf("insert profile: %w", err)
	}
	return nil
}

func (r *ProfileRepository) FindByID(ctx context.Context, id string) (*domain.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE id = $1`

	p, err := scanProfile(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrProfileNotFound
		}
		return nil, fmt.Errorf("find profile: %w", err)
	}
	return p, nil
}

func (r *ProfileRepository) Update(ctx context.Context, id string, update domain.ProfileUpdate, now time.Time) error {
	sets, args := updateAssignments(update)
	args = append(args, now, id)
	sets = append(sets, fmt.Sprintf("updated_at = $%d", len(args)-1))

	query := `UPDATE profiles SET ` + strings.Join(sets, ", ") + fmt.Sprintf(` WHERE id = $%d`, len(args))

	ct, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrProfileNotFound
	}
	return nil
}

func (r *ProfileRepository) List(ctx context.Context, filter domain.ProfileFilter) ([]domain.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles`
	var args []any
	if filter.Role != "" {
		query += ` WHERE role = $1`
		args = append(args, string(filter.Role))
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	out := []domain.Profile{}
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate profiles: %w", err)
	}
	return out, nil
}

func scanProfile(row pgx.Row) (*domain.Profile, error) {
	var (
		p            domain.Profile
		role, status string
	)
	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.PhoneNumber,
		&p.Career,
		&role,
		&status,
		&p.PaymentReceiptURL,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Role = domain.Role(role)
	p.Status = domain.Status(status)
	return &p, nil
}

func updateAssignments(u domain.ProfileUpdate) ([]string, []any) {
	var (
		sets []string
		args []any
	)
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if u.Name != nil {
		add("name", *u.Name)
	}
	if u.PhoneNumber != nil {
		add("phone_number", *u.PhoneNumber)
	}
	if u.Career != nil {
		add("career", *u.Career)
	}
	if u.PaymentReceiptURL != nil {
		add("payment_receipt_url", *u.PaymentReceiptURL)
	}
	if u.Status != nil {
		add("status", string(*u.Status))
	}
	return sets, args
}
