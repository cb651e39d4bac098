package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Skryldev/identity-registry/db"
	"github.com/Skryldev/identity-registry/models"
)

// ─────────────────────────────────────────────────────────────────────────────
// UserRepository interface
// ─────────────────────────────────────────────────────────────────────────────

// UserRepository defines the persistence operations on user records.
// Records are only ever created; nothing in the service updates or deletes them.
type UserRepository interface {
	// FindByToken returns the record whose column for kind equals value.
	// Returns db.ErrNotFound when no record matches.
	FindByToken(ctx context.Context, kind models.TokenKind, value string) (*models.User, error)
	// InsertToken creates a record holding only value in the column for kind
	// and returns its surrogate id. Returns db.ErrDuplicateKey when the value
	// is already taken.
	InsertToken(ctx context.Context, kind models.TokenKind, value string) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.User, error)
	CountByToken(ctx context.Context, kind models.TokenKind, value string) (int64, error)
	Count(ctx context.Context) (int64, error)
}

// userRepo is the production implementation backed by a db.Querier.
type userRepo struct {
	q db.Querier
}

// NewUserRepo returns a UserRepository backed by q.
// q can be a *db.DB or *db.Tx.
func NewUserRepo(q db.Querier) UserRepository {
	return &userRepo{q: q}
}

// ─────────────────────────────────────────────────────────────────────────────
// SQL
// ─────────────────────────────────────────────────────────────────────────────

// Statements use '?' placeholders and are rebound per dialect. %s is the
// token column, taken from models.TokenKind.Column.
const (
	userColumns = `id, face_token, fingerprint_token, first_name, last_name, created_at`

	sqlFindUserByToken = `
		SELECT ` + userColumns + `
		FROM   users
		WHERE  %s = ?
		LIMIT  1`

	sqlGetUserByID = `
		SELECT ` + userColumns + `
		FROM   users
		WHERE  id = ?
		LIMIT  1`

	sqlInsertToken = `
		INSERT INTO users (%s, created_at)
		VALUES (?, ?)`

	sqlCountByToken = `
		SELECT COUNT(*) FROM users WHERE %s = ?`

	sqlCountUsers = `
		SELECT COUNT(*) FROM users`
)

func (r *userRepo) FindByToken(ctx context.Context, kind models.TokenKind, value string) (*models.User, error) {
	col, err := kind.Column()
	if err != nil {
		return nil, fmt.Errorf("repo/user: %w", err)
	}
	row := r.q.QueryRow(ctx, r.bind(sqlFindUserByToken, col), value)
	return scanUser(row)
}

func (r *userRepo) InsertToken(ctx context.Context, kind models.TokenKind, value string) (int64, error) {
	col, err := kind.Column()
	if err != nil {
		return 0, fmt.Errorf("repo/user: %w", err)
	}
	query := fmt.Sprintf(sqlInsertToken, col)
	now := time.Now().UTC()

	if r.q.Dialect().Returning() {
		var id int64
		err := r.q.QueryRow(ctx, r.q.Dialect().Rebind(query+` RETURNING id`), value, now).Scan(&id)
		if err != nil {
			return 0, fmt.Errorf("repo/user: insert %s: %w", kind, err)
		}
		return id, nil
	}

	res, err := r.q.Exec(ctx, r.q.Dialect().Rebind(query), value, now)
	if err != nil {
		return 0, fmt.Errorf("repo/user: insert %s: %w", kind, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("repo/user: last insert id: %w", err)
	}
	return id, nil
}

// GetByID returns a single user by primary key.
// Returns db.ErrNotFound when no record matches.
func (r *userRepo) GetByID(ctx context.Context, id int64) (*models.User, error) {
	row := r.q.QueryRow(ctx, r.q.Dialect().Rebind(sqlGetUserByID), id)
	return scanUser(row)
}

// CountByToken returns how many records hold value for kind: 0 or 1 while the
// unique constraints are in place.
func (r *userRepo) CountByToken(ctx context.Context, kind models.TokenKind, value string) (int64, error) {
	col, err := kind.Column()
	if err != nil {
		return 0, fmt.Errorf("repo/user: %w", err)
	}
	var n int64
	if err := r.q.QueryRow(ctx, r.bind(sqlCountByToken, col), value).Scan(&n); err != nil {
		return 0, fmt.Errorf("repo/user: count: %w", err)
	}
	return n, nil
}

// Count returns the total number of users.
func (r *userRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.q.QueryRow(ctx, sqlCountUsers).Scan(&n); err != nil {
		return 0, fmt.Errorf("repo/user: count: %w", err)
	}
	return n, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// helpers
// ─────────────────────────────────────────────────────────────────────────────

func (r *userRepo) bind(format, col string) string {
	return r.q.Dialect().Rebind(fmt.Sprintf(format, col))
}

// scanUser scans a single user row in userColumns order.
func scanUser(row *db.Row) (*models.User, error) {
	u := &models.User{}
	err := row.Scan(&u.ID, &u.FaceToken, &u.FingerprintToken, &u.FirstName, &u.LastName, &u.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("repo/user: %w", err)
	}
	return u, nil
}

var _ UserRepository = (*userRepo)(nil)
