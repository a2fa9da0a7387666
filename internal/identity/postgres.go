package identity

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"accesslab.dev/internal/ids"
)

var _ Store = (*PGStore)(nil)
var _ ResourceStore = (*PGResourceStore)(nil)

// PGStore implements Store using PostgreSQL.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

const identityColumns = `id, name, email, password_hash, role, clearance_level,
	department, status, login_attempts, lock_until, mfa_secret, mfa_enabled,
	created_at, updated_at`

func (s *PGStore) Create(ctx context.Context, id *Identity) error {
	if id.ID == "" {
		id.ID = ids.New()
	}
	_, err := s.db.ExecContext(ctx,
		`insert into identities(id, name, email, password_hash, role, clearance_level,
			department, status, login_attempts, mfa_secret, mfa_enabled)
		 values($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		id.ID, id.Name, strings.ToLower(id.Email), id.PasswordHash, string(id.Role),
		id.ClearanceLevel, id.Department, id.Status, id.LoginAttempts,
		id.MFASecret, id.MFAEnabled,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrAlreadyExists
		}
		return storeErr(err)
	}
	return nil
}

func (s *PGStore) FindByID(ctx context.Context, id string) (*Identity, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+identityColumns+` from identities where id=$1`, id)
	return scanIdentity(row)
}

func (s *PGStore) FindByEmail(ctx context.Context, email string) (*Identity, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+identityColumns+` from identities where email=$1`,
		strings.ToLower(strings.TrimSpace(email)))
	return scanIdentity(row)
}

// Save persists the full mutable field set in one write. The login path uses
// it for counter/lock bookkeeping and must see a persist failure before
// reporting a verdict to the caller.
func (s *PGStore) Save(ctx context.Context, id *Identity) error {
	res, err := s.db.ExecContext(ctx,
		`update identities set name=$2, password_hash=$3, role=$4, clearance_level=$5,
			department=$6, status=$7, login_attempts=$8, lock_until=$9,
			mfa_secret=$10, mfa_enabled=$11, updated_at=now()
		 where id=$1`,
		id.ID, id.Name, id.PasswordHash, string(id.Role), id.ClearanceLevel,
		id.Department, id.Status, id.LoginAttempts, id.LockUntil,
		id.MFASecret, id.MFAEnabled,
	)
	if err != nil {
		return storeErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storeErr(err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIdentity(row rowScanner) (*Identity, error) {
	var (
		id        Identity
		role      string
		lockUntil sql.NullTime
		mfaSecret sql.NullString
	)
	err := row.Scan(&id.ID, &id.Name, &id.Email, &id.PasswordHash, &role,
		&id.ClearanceLevel, &id.Department, &id.Status, &id.LoginAttempts,
		&lockUntil, &mfaSecret, &id.MFAEnabled, &id.CreatedAt, &id.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, storeErr(err)
	}
	id.Role = Role(role)
	if lockUntil.Valid {
		t := lockUntil.Time
		id.LockUntil = &t
	}
	if mfaSecret.Valid {
		id.MFASecret = mfaSecret.String
	}
	return &id, nil
}

// PGResourceStore implements ResourceStore using PostgreSQL.
// shared_with is stored as a JSONB array of identity IDs.
type PGResourceStore struct {
	db *sql.DB
}

func NewPGResourceStore(db *sql.DB) *PGResourceStore {
	return &PGResourceStore{db: db}
}

func (s *PGResourceStore) FindByID(ctx context.Context, id string) (*Resource, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, name, sensitivity_level, owner_id, shared_with, created_at
		 from resources where id=$1`, id)
	return scanResource(row)
}

func (s *PGResourceStore) List(ctx context.Context) ([]*Resource, error) {
	rows, err := s.db.QueryContext(ctx,
		`select id, name, sensitivity_level, owner_id, shared_with, created_at
		 from resources order by created_at asc`)
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()

	var res []*Resource
	for rows.Next() {
		r, err := scanResource(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, r)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(err)
	}
	return res, nil
}

func scanResource(row rowScanner) (*Resource, error) {
	var (
		r          Resource
		label      string
		ownerID    sql.NullString
		sharedWith []byte
	)
	err := row.Scan(&r.ID, &r.Name, &label, &ownerID, &sharedWith, &r.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, storeErr(err)
	}
	r.Sensitivity = Sensitivity(label)
	if ownerID.Valid {
		r.OwnerID = ownerID.String
	}
	if len(sharedWith) > 0 {
		_ = json.Unmarshal(sharedWith, &r.SharedWith)
	}
	return &r, nil
}

func storeErr(err error) error {
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
