package roles

import (
	"context"
	"database/sql"
	"fmt"

	"seaprocure/internal/auth"
	"seaprocure/internal/models"
)

// SQLStore keeps roles in the role_permissions table, one row per flag.
type SQLStore struct {
	DB *sql.DB
	// Perms, when set, is refreshed after every write so RBAC sees changes.
	Perms *auth.PermCache
}

func (s *SQLStore) ListRoles(ctx context.Context, portal string) ([]models.Role, error) {
	rows, err := s.DB.QueryContext(ctx,
		"SELECT role, permission, granted FROM role_permissions WHERE portal = ? ORDER BY role, permission", portal)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Role
	byName := map[string]int{}
	for rows.Next() {
		var name, perm string
		var granted int
		if err := rows.Scan(&name, &perm, &granted); err != nil {
			return nil, err
		}
		i, ok := byName[name]
		if !ok {
			i = len(out)
			byName[name] = i
			out = append(out, models.Role{Name: name, Portal: portal, Permissions: map[string]bool{}})
		}
		out[i].Permissions[perm] = granted == 1
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		out[i] = normalize(portal, out[i])
	}
	return out, nil
}

func (s *SQLStore) SaveRole(ctx context.Context, role models.Role) error {
	role, err := validate(role)
	if err != nil {
		return err
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := writeFlags(ctx, tx, role); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	return s.refresh()
}

// RenameRole moves the role from to role.Name, rewriting its flags and
// reassigning every user that held it.
func (s *SQLStore) RenameRole(ctx context.Context, from string, role models.Role) error {
	role, err := validate(role)
	if err != nil {
		return err
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var taken int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM role_permissions WHERE portal = ? AND role = ?",
		role.Portal, role.Name).Scan(&taken); err != nil {
		return err
	}
	if taken > 0 {
		return fmt.Errorf("%w: %s", ErrDuplicateRole, role.Name)
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM role_permissions WHERE portal = ? AND role = ?", role.Portal, from)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrRoleNotFound, from)
	}
	if err := writeFlags(ctx, tx, role); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "UPDATE users SET role = ? WHERE portal = ? AND role = ?",
		role.Name, role.Portal, from); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	return s.refresh()
}

func validate(role models.Role) (models.Role, error) {
	if role.Name == "" {
		return role, ErrInvalidName
	}
	for perm := range role.Permissions {
		if !auth.IsPortalPermission(role.Portal, perm) {
			return role, fmt.Errorf("%w %q for portal %s", ErrUnknownPermission, perm, role.Portal)
		}
	}
	return normalize(role.Portal, role), nil
}

func writeFlags(ctx context.Context, tx *sql.Tx, role models.Role) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM role_permissions WHERE portal = ? AND role = ?", role.Portal, role.Name); err != nil {
		return err
	}
	for perm, granted := range role.Permissions {
		g := 0
		if granted {
			g = 1
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO role_permissions (portal, role, permission, granted) VALUES (?, ?, ?, ?)",
			role.Portal, role.Name, perm, g); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLStore) DeleteRole(ctx context.Context, portal, name string) error {
	res, err := s.DB.ExecContext(ctx, "DELETE FROM role_permissions WHERE portal = ? AND role = ?", portal, name)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrRoleNotFound, name)
	}
	return s.refresh()
}

func (s *SQLStore) refresh() error {
	if s.Perms == nil {
		return nil
	}
	return s.Perms.Refresh(s.DB)
}
