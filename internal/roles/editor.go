// Package roles edits named roles and their permission flags for one portal.
//
// Edits happen on a Draft, a full copy of the role, and only replace the
// stored role on Commit. Persistence is optional through a Store.
package roles

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"seaprocure/internal/auth"
	"seaprocure/internal/models"
)

var (
	ErrRoleNotFound      = errors.New("role not found")
	ErrDuplicateRole     = errors.New("role already exists")
	ErrUnknownPermission = errors.New("unknown permission")
	ErrInvalidName       = errors.New("role name is required")
)

// Store persists roles. Implementations: SQLStore on the server, the API
// client in the CLI.
type Store interface {
	ListRoles(ctx context.Context, portal string) ([]models.Role, error)
	SaveRole(ctx context.Context, role models.Role) error
	DeleteRole(ctx context.Context, portal, name string) error
}

// Renamer is implemented by stores that can rename a role in one step,
// carrying its users over to the new name.
type Renamer interface {
	RenameRole(ctx context.Context, from string, role models.Role) error
}

// Permissions returns the permission vocabulary of portal.
func Permissions(portal string) []string {
	return append([]string(nil), auth.PortalPermissions[portal]...)
}

// Editor holds the role list of a single portal.
type Editor struct {
	mu     sync.Mutex
	portal string
	roles  []models.Role
	store  Store
}

// NewEditor creates an editor for portal. store may be nil.
func NewEditor(portal string, store Store) *Editor {
	return &Editor{portal: portal, store: store}
}

// Load replaces the in-memory list with the store's contents.
func (e *Editor) Load(ctx context.Context) error {
	if e.store == nil {
		return nil
	}
	list, err := e.store.ListRoles(ctx, e.portal)
	if err != nil {
		return fmt.Errorf("loading %s roles: %w", e.portal, err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.roles = e.roles[:0]
	for _, r := range list {
		e.roles = append(e.roles, normalize(e.portal, r))
	}
	return nil
}

// Roles returns a copy of the current list sorted by name.
func (e *Editor) Roles() []models.Role {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]models.Role, len(e.roles))
	for i, r := range e.roles {
		out[i] = clone(r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Get returns a copy of the named role.
func (e *Editor) Get(name string) (models.Role, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	i := e.index(name)
	if i < 0 {
		return models.Role{}, fmt.Errorf("%w: %s", ErrRoleNotFound, name)
	}
	return clone(e.roles[i]), nil
}

// Add creates a role with every permission flag false.
func (e *Editor) Add(ctx context.Context, name string) (models.Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Role{}, ErrInvalidName
	}

	e.mu.Lock()
	if e.index(name) >= 0 {
		e.mu.Unlock()
		return models.Role{}, fmt.Errorf("%w: %s", ErrDuplicateRole, name)
	}
	e.mu.Unlock()

	role := normalize(e.portal, models.Role{Name: name})
	if e.store != nil {
		if err := e.store.SaveRole(ctx, role); err != nil {
			return models.Role{}, err
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.index(name) >= 0 {
		return models.Role{}, fmt.Errorf("%w: %s", ErrDuplicateRole, name)
	}
	e.roles = append(e.roles, role)
	return clone(role), nil
}

// Edit begins editing the named role.
func (e *Editor) Edit(name string) (*Draft, error) {
	role, err := e.Get(name)
	if err != nil {
		return nil, err
	}
	return &Draft{original: role.Name, role: role}, nil
}

// Commit replaces the role the draft was taken from. A renamed draft
// fails with ErrDuplicateRole if another role already has the new name.
func (e *Editor) Commit(ctx context.Context, d *Draft) error {
	role := clone(d.role)
	renamed := role.Name != d.original

	e.mu.Lock()
	err := e.checkCommit(d.original, role.Name, renamed)
	e.mu.Unlock()
	if err != nil {
		return err
	}

	if e.store != nil {
		if err := e.persist(ctx, d.original, role, renamed); err != nil {
			return err
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.checkCommit(d.original, role.Name, renamed); err != nil {
		return err
	}
	e.roles[e.index(d.original)] = role
	d.original = role.Name
	return nil
}

func (e *Editor) checkCommit(original, name string, renamed bool) error {
	if e.index(original) < 0 {
		return fmt.Errorf("%w: %s", ErrRoleNotFound, original)
	}
	if renamed && e.index(name) >= 0 {
		return fmt.Errorf("%w: %s", ErrDuplicateRole, name)
	}
	return nil
}

func (e *Editor) persist(ctx context.Context, original string, role models.Role, renamed bool) error {
	if !renamed {
		return e.store.SaveRole(ctx, role)
	}
	if rn, ok := e.store.(Renamer); ok {
		return rn.RenameRole(ctx, original, role)
	}
	if err := e.store.SaveRole(ctx, role); err != nil {
		return err
	}
	if err := e.store.DeleteRole(ctx, e.portal, original); err != nil {
		// Undo the copy so the store keeps a single role.
		_ = e.store.DeleteRole(ctx, e.portal, role.Name)
		return err
	}
	return nil
}

// Delete removes the named role.
func (e *Editor) Delete(ctx context.Context, name string) error {
	e.mu.Lock()
	exists := e.index(name) >= 0
	e.mu.Unlock()
	if !exists {
		return fmt.Errorf("%w: %s", ErrRoleNotFound, name)
	}

	if e.store != nil {
		if err := e.store.DeleteRole(ctx, e.portal, name); err != nil {
			return err
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if i := e.index(name); i >= 0 {
		e.roles = append(e.roles[:i], e.roles[i+1:]...)
	}
	return nil
}

func (e *Editor) index(name string) int {
	for i, r := range e.roles {
		if r.Name == name {
			return i
		}
	}
	return -1
}

// Draft is an uncommitted copy of a role.
type Draft struct {
	original string
	role     models.Role
}

// Set changes one permission flag on the draft.
func (d *Draft) Set(perm string, granted bool) error {
	if _, ok := d.role.Permissions[perm]; !ok {
		return fmt.Errorf("%w %q for portal %s", ErrUnknownPermission, perm, d.role.Portal)
	}
	d.role.Permissions[perm] = granted
	return nil
}

// Rename gives the role a new name, applied on Commit.
func (d *Draft) Rename(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrInvalidName
	}
	d.role.Name = name
	return nil
}

// Role returns a copy of the draft's current state.
func (d *Draft) Role() models.Role { return clone(d.role) }

// normalize fills the portal's vocabulary, dropping flags it does not own.
func normalize(portal string, r models.Role) models.Role {
	out := models.Role{Name: r.Name, Portal: portal, Permissions: make(map[string]bool)}
	for _, p := range auth.PortalPermissions[portal] {
		out.Permissions[p] = r.Permissions[p]
	}
	return out
}

func clone(r models.Role) models.Role {
	perms := make(map[string]bool, len(r.Permissions))
	for k, v := range r.Permissions {
		perms[k] = v
	}
	r.Permissions = perms
	return r
}
