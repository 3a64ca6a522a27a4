package portalmock

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/wolfman30/careportal-chat/internal/portalapi"
)

const (
	patientColumns = `id, name, phone, email, date_of_birth, age, gender, linked_accounts`
	selectPatient  = `SELECT ` + patientColumns + ` FROM patients WHERE id = $1`
)

// PostgresDirectory is a Directory backed by the patients and family_links
// tables.
type PostgresDirectory struct {
	db *sql.DB
}

// NewPostgresDirectory wraps db.
func NewPostgresDirectory(db *sql.DB) *PostgresDirectory {
	return &PostgresDirectory{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPatient(row rowScanner, extra ...any) (*Patient, error) {
	var p Patient
	dest := append([]any{&p.ID, &p.Name, &p.Phone, &p.Email, &p.DateOfBirth, &p.Age, &p.Gender,
		pq.Array(&p.LinkedAccounts)}, extra...)
	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (d *PostgresDirectory) Get(ctx context.Context, id string) (*Patient, error) {
	p, err := scanPatient(d.db.QueryRowContext(ctx, selectPatient, strings.ToUpper(id)))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("portalmock: get patient: %w", err)
	}
	return p, err
}

func (d *PostgresDirectory) Find(ctx context.Context, searchType portalapi.SearchType, value string) (*Patient, error) {
	var query string
	switch searchType {
	case portalapi.SearchPatientID:
		return d.Get(ctx, value)
	case portalapi.SearchPhone:
		query = `SELECT ` + patientColumns + ` FROM patients WHERE phone = $1 ORDER BY created_at LIMIT 1`
	case portalapi.SearchEmail:
		query = `SELECT ` + patientColumns + ` FROM patients WHERE lower(email) = lower($1) ORDER BY created_at LIMIT 1`
	default:
		return nil, fmt.Errorf("portalmock: unsupported search type %q", searchType)
	}
	p, err := scanPatient(d.db.QueryRowContext(ctx, query, value))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("portalmock: find patient: %w", err)
	}
	return p, err
}

func (d *PostgresDirectory) Family(ctx context.Context, accountID string) ([]Member, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT p.id, p.name, p.phone, p.email, p.date_of_birth, p.age, p.gender, p.linked_accounts, l.relationship
		FROM family_links l
		JOIN patients p ON p.id = l.patient_id
		WHERE l.account_id = $1
		ORDER BY l.created_at, p.id`, accountID)
	if err != nil {
		return nil, fmt.Errorf("portalmock: list family: %w", err)
	}
	defer rows.Close()

	var out []Member
	for rows.Next() {
		var rel string
		p, err := scanPatient(rows, &rel)
		if err != nil {
			return nil, fmt.Errorf("portalmock: scan family member: %w", err)
		}
		out = append(out, Member{Patient: *p, Relationship: rel})
	}
	return out, rows.Err()
}

func (d *PostgresDirectory) Link(ctx context.Context, accountID, patientID, relationship string) (*Member, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("portalmock: begin link: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	p, err := scanPatient(tx.QueryRowContext(ctx, `
		UPDATE patients SET linked_accounts = array_append(linked_accounts, $1)
		WHERE id = $2 AND NOT ($1 = ANY(linked_accounts))
		RETURNING `+patientColumns, accountID, strings.ToUpper(patientID)))
	if errors.Is(err, ErrNotFound) {
		if _, getErr := scanPatient(tx.QueryRowContext(ctx, selectPatient, strings.ToUpper(patientID))); getErr == nil {
			return nil, ErrAlreadyLinked
		}
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("portalmock: link patient: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO family_links (account_id, patient_id, relationship) VALUES ($1, $2, $3)`,
		accountID, p.ID, relationship); err != nil {
		return nil, fmt.Errorf("portalmock: insert family link: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("portalmock: commit link: %w", err)
	}
	return &Member{Patient: *p, Relationship: relationship}, nil
}

func (d *PostgresDirectory) Create(ctx context.Context, accountID string, p Patient, relationship string) (*Member, error) {
	if strings.TrimSpace(p.Name) == "" {
		return nil, fmt.Errorf("portalmock: create patient: name is required")
	}
	if p.ID == "" {
		p.ID = NewPatientID()
	}
	p.LinkedAccounts = []string{accountID}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("portalmock: begin create: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO patients (`+patientColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		p.ID, p.Name, p.Phone, p.Email, p.DateOfBirth, p.Age, p.Gender, pq.Array(p.LinkedAccounts)); err != nil {
		return nil, fmt.Errorf("portalmock: insert patient: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO family_links (account_id, patient_id, relationship) VALUES ($1, $2, $3)`,
		accountID, p.ID, relationship); err != nil {
		return nil, fmt.Errorf("portalmock: insert family link: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("portalmock: commit create: %w", err)
	}
	return &Member{Patient: p, Relationship: relationship}, nil
}
