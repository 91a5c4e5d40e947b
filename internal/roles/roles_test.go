package roles

import (
	"context"
	"testing"

	"seaprocure/internal/auth"
	"seaprocure/internal/database"
	"seaprocure/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddStartsWithAllFlagsFalse(t *testing.T) {
	e := NewEditor("vendor", nil)
	role, err := e.Add(context.Background(), "dispatcher")
	require.NoError(t, err)

	assert.Equal(t, "vendor", role.Portal)
	assert.Len(t, role.Permissions, len(auth.PortalPermissions["vendor"]))
	for perm, granted := range role.Permissions {
		assert.False(t, granted, perm)
	}

	_, err = e.Add(context.Background(), "dispatcher")
	assert.ErrorIs(t, err, ErrDuplicateRole)
	_, err = e.Add(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrInvalidName)
}

func TestDraftIsIsolatedUntilCommit(t *testing.T) {
	ctx := context.Background()
	e := NewEditor("customer", nil)
	_, err := e.Add(ctx, "buyer")
	require.NoError(t, err)

	d, err := e.Edit("buyer")
	require.NoError(t, err)
	require.NoError(t, d.Set(auth.PermUploadPaymentProof, true))

	before, _ := e.Get("buyer")
	assert.False(t, before.Permissions[auth.PermUploadPaymentProof], "draft leaked into list")

	require.NoError(t, e.Commit(ctx, d))
	after, _ := e.Get("buyer")
	assert.True(t, after.Permissions[auth.PermUploadPaymentProof])

	// Mutating a returned copy never touches the editor.
	after.Permissions[auth.PermSelectShipping] = true
	again, _ := e.Get("buyer")
	assert.False(t, again.Permissions[auth.PermSelectShipping])
}

func TestDraftRejectsForeignPermission(t *testing.T) {
	e := NewEditor("customer", nil)
	_, err := e.Add(context.Background(), "buyer")
	require.NoError(t, err)
	d, _ := e.Edit("buyer")

	assert.ErrorIs(t, d.Set(auth.PermManageRoles, true), ErrUnknownPermission)
}

func TestCommitAfterDeleteFails(t *testing.T) {
	ctx := context.Background()
	e := NewEditor("tech", nil)
	_, _ = e.Add(ctx, "auditor")
	d, _ := e.Edit("auditor")
	require.NoError(t, e.Delete(ctx, "auditor"))

	assert.ErrorIs(t, e.Commit(ctx, d), ErrRoleNotFound)
	assert.ErrorIs(t, e.Delete(ctx, "auditor"), ErrRoleNotFound)
	_, err := e.Edit("auditor")
	assert.ErrorIs(t, err, ErrRoleNotFound)
}

func TestDraftRename(t *testing.T) {
	ctx := context.Background()
	e := NewEditor("vendor", nil)
	_, _ = e.Add(ctx, "clerk")
	_, _ = e.Add(ctx, "shipper")

	d, err := e.Edit("clerk")
	require.NoError(t, err)
	assert.ErrorIs(t, d.Rename("  "), ErrInvalidName)

	require.NoError(t, d.Rename("shipper"))
	assert.ErrorIs(t, e.Commit(ctx, d), ErrDuplicateRole)

	require.NoError(t, d.Rename("dispatcher"))
	require.NoError(t, d.Set(auth.PermViewRFQs, true))
	require.NoError(t, e.Commit(ctx, d))

	_, err = e.Get("clerk")
	assert.ErrorIs(t, err, ErrRoleNotFound)
	got, err := e.Get("dispatcher")
	require.NoError(t, err)
	assert.True(t, got.Permissions[auth.PermViewRFQs])
	assert.Len(t, e.Roles(), 2)

	// The draft follows its committed name.
	require.NoError(t, d.Set(auth.PermViewRFQs, false))
	require.NoError(t, e.Commit(ctx, d))
	got, _ = e.Get("dispatcher")
	assert.False(t, got.Permissions[auth.PermViewRFQs])
}

func TestEditorWithSQLStore(t *testing.T) {
	ctx := context.Background()
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	defer db.Close()

	pc := auth.NewPermCache()
	store := &SQLStore{DB: db, Perms: pc}

	e := NewEditor("vendor", store)
	require.NoError(t, e.Load(ctx))
	assert.Empty(t, e.Roles())

	_, err = e.Add(ctx, "shipper")
	require.NoError(t, err)
	d, _ := e.Edit("shipper")
	require.NoError(t, d.Set(auth.PermManageShipping, true))
	require.NoError(t, e.Commit(ctx, d))

	assert.True(t, pc.HasPermission("vendor", "shipper", auth.PermManageShipping))
	assert.False(t, pc.HasPermission("vendor", "shipper", auth.PermManageBanking))

	fresh := NewEditor("vendor", store)
	require.NoError(t, fresh.Load(ctx))
	got, err := fresh.Get("shipper")
	require.NoError(t, err)
	assert.True(t, got.Permissions[auth.PermManageShipping])
	assert.Len(t, got.Permissions, len(auth.PortalPermissions["vendor"]))

	require.NoError(t, fresh.Delete(ctx, "shipper"))
	assert.False(t, pc.HasPermission("vendor", "shipper", auth.PermManageShipping))
	assert.ErrorIs(t, store.DeleteRole(ctx, "vendor", "shipper"), ErrRoleNotFound)
}

func TestSQLStoreRenameKeepsUsers(t *testing.T) {
	ctx := context.Background()
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	defer db.Close()
	_, err = db.Exec(`INSERT INTO users (username, password_hash, portal, role) VALUES ('deckhand', 'x', 'vendor', 'clerk')`)
	require.NoError(t, err)

	pc := auth.NewPermCache()
	e := NewEditor("vendor", &SQLStore{DB: db, Perms: pc})
	require.NoError(t, e.Load(ctx))
	_, err = e.Add(ctx, "clerk")
	require.NoError(t, err)
	_, err = e.Add(ctx, "purser")
	require.NoError(t, err)

	d, _ := e.Edit("clerk")
	require.NoError(t, d.Rename("storekeeper"))
	require.NoError(t, d.Set(auth.PermManageShipping, true))
	require.NoError(t, e.Commit(ctx, d))

	var role string
	require.NoError(t, db.QueryRow("SELECT role FROM users WHERE username = 'deckhand'").Scan(&role))
	assert.Equal(t, "storekeeper", role)
	assert.True(t, pc.HasPermission("vendor", "storekeeper", auth.PermManageShipping))

	fresh := NewEditor("vendor", &SQLStore{DB: db})
	require.NoError(t, fresh.Load(ctx))
	names := []string{}
	for _, r := range fresh.Roles() {
		names = append(names, r.Name)
	}
	assert.Equal(t, []string{"purser", "storekeeper"}, names)

	store := &SQLStore{DB: db}
	purser, _ := fresh.Get("purser")
	purser.Name = "storekeeper"
	assert.ErrorIs(t, store.RenameRole(ctx, "purser", purser), ErrDuplicateRole)
	purser.Name = "bosun"
	assert.ErrorIs(t, store.RenameRole(ctx, "ghost", purser), ErrRoleNotFound)
}

// mapStore is a Store without RenameRole.
type mapStore map[string]models.Role

func (m mapStore) ListRoles(_ context.Context, portal string) ([]models.Role, error) {
	var out []models.Role
	for _, r := range m {
		out = append(out, r)
	}
	return out, nil
}

func (m mapStore) SaveRole(_ context.Context, role models.Role) error {
	m[role.Name] = role
	return nil
}

func (m mapStore) DeleteRole(_ context.Context, _, name string) error {
	if _, ok := m[name]; !ok {
		return ErrRoleNotFound
	}
	delete(m, name)
	return nil
}

func TestRenameWithPlainStore(t *testing.T) {
	ctx := context.Background()
	store := mapStore{}
	e := NewEditor("customer", store)
	_, err := e.Add(ctx, "buyer")
	require.NoError(t, err)

	d, _ := e.Edit("buyer")
	require.NoError(t, d.Rename("superintendent"))
	require.NoError(t, e.Commit(ctx, d))

	assert.NotContains(t, store, "buyer")
	require.Contains(t, store, "superintendent")
	assert.Equal(t, "customer", store["superintendent"].Portal)
}
