package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"userhub.org/internal/auth"
)

const userColumns = `id, name, email, type, language, theme, password_hash, reset_token, reset_token_expires, created_at, updated_at`

func (s *Store) CreateUser(ctx context.Context, u auth.User) (auth.User, error) {
	if s.db == nil {
		return auth.User{}, errors.New("database connection unavailable")
	}
	row := s.db.QueryRowContext(ctx, `
		insert into users (name, email, type, language, theme, password_hash)
		values ($1, $2, $3, $4, $5, $6)
		returning `+userColumns+`
	`, u.Name, u.Email, u.Type, u.Language, u.Theme, u.PasswordHash)
	created, err := scanUser(row)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return auth.User{}, auth.ErrDuplicateEmail
		}
		return auth.User{}, err
	}
	return created, nil
}

func (s *Store) GetUser(ctx context.Context, id int64) (auth.User, error) {
	if s.db == nil {
		return auth.User{}, errors.New("database connection unavailable")
	}
	row := s.db.QueryRowContext(ctx, `select `+userColumns+` from users where id = $1`, id)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.User{}, auth.ErrUserNotFound
	}
	if err != nil {
		return auth.User{}, err
	}
	return u, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (auth.User, error) {
	if s.db == nil {
		return auth.User{}, errors.New("database connection unavailable")
	}
	row := s.db.QueryRowContext(ctx, `select `+userColumns+` from users where email = $1`, email)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.User{}, auth.ErrUserNotFound
	}
	if err != nil {
		return auth.User{}, err
	}
	return u, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]auth.User, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	rows, err := s.db.QueryContext(ctx, `select `+userColumns+` from users order by id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []auth.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) UpdateUser(ctx context.Context, id int64, upd auth.UserUpdate) (auth.User, error) {
	if s.db == nil {
		return auth.User{}, errors.New("database connection unavailable")
	}

	var (
		setClauses []string
		args       []any
		idx        = 1
	)
	appendSet := func(column string, value any) {
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", column, idx))
		args = append(args, value)
		idx++
	}
	if upd.Name != nil {
		appendSet("name", *upd.Name)
	}
	if upd.Email != nil {
		appendSet("email", *upd.Email)
	}
	if upd.Type != nil {
		appendSet("type", *upd.Type)
	}
	if upd.Language != nil {
		appendSet("language", *upd.Language)
	}
	if upd.Theme != nil {
		appendSet("theme", *upd.Theme)
	}
	if upd.Password != nil {
		appendSet("password_hash", *upd.Password)
	}
	if len(setClauses) == 0 {
		return s.GetUser(ctx, id)
	}
	setClauses = append(setClauses, "updated_at = now()")
	args = append(args, id)

	query := fmt.Sprintf(`update users set %s where id = $%d returning %s`,
		strings.Join(setClauses, ", "), idx, userColumns)
	row := s.db.QueryRowContext(ctx, query, args...)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.User{}, auth.ErrUserNotFound
	}
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return auth.User{}, auth.ErrDuplicateEmail
		}
		return auth.User{}, err
	}
	return u, nil
}

func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	res, err := s.db.ExecContext(ctx, `delete from users where id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return auth.ErrUserNotFound
	}
	return nil
}

func (s *Store) SetResetToken(ctx context.Context, userID int64, token string, expires time.Time) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	res, err := s.db.ExecContext(ctx, `
		update users
		set reset_token = $1, reset_token_expires = $2, updated_at = now()
		where id = $3
	`, token, expires, userID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return auth.ErrUserNotFound
	}
	return nil
}

// ConsumeResetToken sets the new password hash and clears the token state in
// a single statement, so a token can never be redeemed twice. The expiry
// check rides in the predicate: expired and unknown tokens match nothing.
func (s *Store) ConsumeResetToken(ctx context.Context, token, passwordHash string, now time.Time) (auth.User, error) {
	if s.db == nil {
		return auth.User{}, errors.New("database connection unavailable")
	}
	row := s.db.QueryRowContext(ctx, `
		update users
		set password_hash = $1, reset_token = null, reset_token_expires = null, updated_at = now()
		where reset_token = $2 and reset_token_expires > $3
		returning `+userColumns+`
	`, passwordHash, token, now)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.User{}, auth.ErrInvalidToken
	}
	if err != nil {
		return auth.User{}, err
	}
	return u, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (auth.User, error) {
	var u auth.User
	err := row.Scan(
		&u.ID, &u.Name, &u.Email, &u.Type, &u.Language, &u.Theme,
		&u.PasswordHash, &u.ResetToken, &u.ResetTokenExpires,
		&u.CreatedAt, &u.UpdatedAt,
	)
	return u, err
}
