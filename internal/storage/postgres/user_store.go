package postgres

import (
	"context"
	"database/sql"
	"strings"
	"time"

	interfaces "github.com/sheikh-saqib/p2p-balance-ledger/internal/interfaces"
	"github.com/sheikh-saqib/p2p-balance-ledger/internal/models"
)

type PostgresUserStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewPostgresUserStore(db *sql.DB) *PostgresUserStore {
	return &PostgresUserStore{db: db, now: time.Now}
}

const userColumns = `id, username, password_hash, first_name, last_name, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.FirstName, &u.LastName, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

func (p *PostgresUserStore) CreateUser(ctx context.Context, user models.User) error {
	const query = `INSERT INTO users (` + userColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7)`

	now := p.now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	if user.UpdatedAt.IsZero() {
		user.UpdatedAt = now
	}
	_, err := p.db.ExecContext(ctx, query,
		user.ID, user.Username, user.PasswordHash, user.FirstName, user.LastName,
		user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return models.ErrUserExists
		}
		return mapError(err)
	}
	return nil
}

func (p *PostgresUserStore) getOne(ctx context.Context, where string, arg any) (models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + where
	u, err := scanUser(p.db.QueryRowContext(ctx, query, arg))
	if err == sql.ErrNoRows {
		return models.User{}, models.ErrUserNotFound
	}
	if err != nil {
		return models.User{}, mapError(err)
	}
	return u, nil
}

func (p *PostgresUserStore) GetUser(ctx context.Context, id string) (models.User, error) {
	return p.getOne(ctx, "id = $1", id)
}

func (p *PostgresUserStore) GetUserByUsername(ctx context.Context, username string) (models.User, error) {
	return p.getOne(ctx, "username = $1", username)
}

func (p *PostgresUserStore) UpdateUser(ctx context.Context, id string, update models.UserUpdate) error {
	const query = `UPDATE users SET
		password_hash = COALESCE($2, password_hash),
		first_name = COALESCE($3, first_name),
		last_name = COALESCE($4, last_name),
		updated_at = $5
	WHERE id = $1`

	res, err := p.db.ExecContext(ctx, query, id,
		nullable(update.PasswordHash), nullable(update.FirstName), nullable(update.LastName),
		p.now().UTC(),
	)
	if err != nil {
		return mapError(err)
	}
	return requireOneRow(res)
}

func (p *PostgresUserStore) DeleteUser(ctx context.Context, id string) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return mapError(err)
	}
	return requireOneRow(res)
}

func (p *PostgresUserStore) SearchUsers(ctx context.Context, filter string) ([]models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users
	WHERE first_name ILIKE $1 ESCAPE '\' OR last_name ILIKE $1 ESCAPE '\'
	ORDER BY username`

	rows, err := p.db.QueryContext(ctx, query, "%"+escapeLike(filter)+"%")
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	users := make([]models.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, mapError(err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return users, nil
}

func nullable(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func requireOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return mapError(err)
	}
	if n == 0 {
		return models.ErrUserNotFound
	}
	return nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

var _ interfaces.UserStore = (*PostgresUserStore)(nil)
