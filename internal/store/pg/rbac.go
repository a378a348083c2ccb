package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"userhub.org/internal/auth"
)

func (s *Store) RoleCodes(ctx context.Context, userID int64) ([]string, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	rows, err := s.db.QueryContext(ctx, `
		select r.code
		from user_roles ur
		join roles r on r.id = ur.role_id
		where ur.user_id = $1
		order by r.code
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectStrings(rows)
}

// EffectivePermissions is the union of role-derived permissions and direct
// grants, deduplicated in SQL.
func (s *Store) EffectivePermissions(ctx context.Context, userID int64) ([]string, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	rows, err := s.db.QueryContext(ctx, `
		select p.code
		from permissions p
		join role_permissions rp on rp.permission_id = p.id
		join user_roles ur on ur.role_id = rp.role_id
		where ur.user_id = $1
		union
		select p.code
		from permissions p
		join user_permissions up on up.permission_id = p.id
		where up.user_id = $1
		order by 1
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectStrings(rows)
}

func (s *Store) DirectPermissions(ctx context.Context, userID int64) ([]string, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	rows, err := s.db.QueryContext(ctx, `
		select p.code
		from permissions p
		join user_permissions up on up.permission_id = p.id
		where up.user_id = $1
		order by p.code
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectStrings(rows)
}

func (s *Store) AssignRole(ctx context.Context, userID int64, roleCode string) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	roleID, err := s.roleID(ctx, roleCode)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		insert into user_roles (user_id, role_id)
		values ($1, $2)
		on conflict (user_id, role_id) do nothing
	`, userID, roleID)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return auth.ErrUserNotFound
		}
		return err
	}
	return nil
}

func (s *Store) RevokeRole(ctx context.Context, userID int64, roleCode string) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	roleID, err := s.roleID(ctx, roleCode)
	if err != nil {
		return err
	}
	// Revoking an unheld role is a no-op.
	_, err = s.db.ExecContext(ctx, `
		delete from user_roles where user_id = $1 and role_id = $2
	`, userID, roleID)
	return err
}

func (s *Store) AssignPermission(ctx context.Context, userID int64, code string) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	permID, err := s.permissionID(ctx, code)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		insert into user_permissions (user_id, permission_id)
		values ($1, $2)
		on conflict (user_id, permission_id) do nothing
	`, userID, permID)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return auth.ErrUserNotFound
		}
		return err
	}
	return nil
}

func (s *Store) RevokePermission(ctx context.Context, userID int64, code string) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	permID, err := s.permissionID(ctx, code)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		delete from user_permissions where user_id = $1 and permission_id = $2
	`, userID, permID)
	return err
}

// ReplaceDirectPermissions swaps the user's entire direct-grant set inside a
// transaction. Every code is resolved before any row is touched; an unknown
// code rolls the whole replacement back and the prior grants survive.
func (s *Store) ReplaceDirectPermissions(ctx context.Context, userID int64, codes []string) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	permIDs := make([]int64, 0, len(codes))
	for _, code := range codes {
		var id int64
		err := tx.QueryRowContext(ctx, `select id from permissions where code = $1`, code).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s", auth.ErrPermissionNotFound, code)
		}
		if err != nil {
			return err
		}
		permIDs = append(permIDs, id)
	}

	if _, err := tx.ExecContext(ctx, `delete from user_permissions where user_id = $1`, userID); err != nil {
		return err
	}
	for _, permID := range permIDs {
		if _, err := tx.ExecContext(ctx, `
			insert into user_permissions (user_id, permission_id)
			values ($1, $2)
			on conflict (user_id, permission_id) do nothing
		`, userID, permID); err != nil {
			if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
				return auth.ErrUserNotFound
			}
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) ListRoles(ctx context.Context) ([]auth.Role, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	rows, err := s.db.QueryContext(ctx, `
		select id, code, name, coalesce(description, '')
		from roles
		order by code
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []auth.Role
	for rows.Next() {
		var r auth.Role
		if err := rows.Scan(&r.ID, &r.Code, &r.Name, &r.Description); err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) ListPermissions(ctx context.Context) ([]auth.Permission, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	rows, err := s.db.QueryContext(ctx, `
		select id, code, name, coalesce(description, '')
		from permissions
		order by code
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []auth.Permission
	for rows.Next() {
		var p auth.Permission
		if err := rows.Scan(&p.ID, &p.Code, &p.Name, &p.Description); err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// EnsureCatalog seeds permissions, roles and role-permission links. All
// inserts use "on conflict do nothing", so reruns and concurrent starts are
// harmless.
func (s *Store) EnsureCatalog(ctx context.Context, perms []auth.Permission, roles []auth.Role, rolePerms map[string][]string) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, p := range perms {
		if _, err := tx.ExecContext(ctx, `
			insert into permissions (code, name, description)
			values ($1, $2, $3)
			on conflict (code) do nothing
		`, p.Code, p.Name, p.Description); err != nil {
			return err
		}
	}
	for _, r := range roles {
		if _, err := tx.ExecContext(ctx, `
			insert into roles (code, name, description)
			values ($1, $2, $3)
			on conflict (code) do nothing
		`, r.Code, r.Name, r.Description); err != nil {
			return err
		}
	}
	for roleCode, permCodes := range rolePerms {
		for _, permCode := range permCodes {
			if _, err := tx.ExecContext(ctx, `
				insert into role_permissions (role_id, permission_id)
				select r.id, p.id
				from roles r, permissions p
				where r.code = $1 and p.code = $2
				on conflict (role_id, permission_id) do nothing
			`, roleCode, permCode); err != nil {
				return err
			}
		}
	}
	return tx.Commit()
}

func (s *Store) roleID(ctx context.Context, code string) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `select id from roles where code = $1`, code).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, auth.ErrRoleNotFound
	}
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (s *Store) permissionID(ctx context.Context, code string) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `select id from permissions where code = $1`, code).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, auth.ErrPermissionNotFound
	}
	if err != nil {
		return 0, err
	}
	return id, nil
}

func collectStrings(rows *sql.Rows) ([]string, error) {
	var result []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		result = append(result, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
