package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/servimarket/api/models"
)

func TestResolveRootCompany(t *testing.T) {
	db, dir, _ := newTestServices(t)

	seedUser(t, db, 9, models.RoleCompany, nil)
	seedUser(t, db, 7, models.RoleCompanyEmployee, uintPtr(9))
	seedUser(t, db, 5, models.RoleCompany, uintPtr(9)) // child company
	seedUser(t, db, 42, models.RoleClient, nil)
	seedUser(t, db, 13, models.RoleCompanyEmployee, nil) // broken link

	t.Run("root company resolves to itself", func(t *testing.T) {
		root, err := dir.ResolveRootCompany(9)
		require.NoError(t, err)
		assert.Equal(t, uint(9), root)
	})

	t.Run("employee resolves to parent", func(t *testing.T) {
		root, err := dir.ResolveRootCompany(7)
		require.NoError(t, err)
		assert.Equal(t, uint(9), root)
	})

	t.Run("child company resolves to parent", func(t *testing.T) {
		root, err := dir.ResolveRootCompany(5)
		require.NoError(t, err)
		assert.Equal(t, uint(9), root)
	})

	t.Run("unlinked employee fails", func(t *testing.T) {
		_, err := dir.ResolveRootCompany(13)
		assert.ErrorIs(t, err, ErrUnlinkedCompany)
	})

	t.Run("client is not company-side", func(t *testing.T) {
		_, err := dir.ResolveRootCompany(42)
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("missing user", func(t *testing.T) {
		_, err := dir.ResolveRootCompany(999)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestListEmployees(t *testing.T) {
	db, dir, _ := newTestServices(t)

	seedUser(t, db, 9, models.RoleCompany, nil)
	seedUser(t, db, 7, models.RoleCompanyEmployee, uintPtr(9))
	seedUser(t, db, 8, models.RoleCompanyEmployee, uintPtr(9))
	seedUser(t, db, 5, models.RoleCompany, uintPtr(9)) // child company, not an employee
	seedUser(t, db, 20, models.RoleCompany, nil)       // unrelated company
	seedUser(t, db, 21, models.RoleCompanyEmployee, uintPtr(20))

	ids, err := dir.ListEmployees(9)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint{7, 8}, ids)

	ids, err = dir.ListEmployees(5)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestListCompanyTree(t *testing.T) {
	db, dir, _ := newTestServices(t)

	seedUser(t, db, 1, models.RoleCompany, nil)
	seedUser(t, db, 2, models.RoleCompany, uintPtr(1))
	seedUser(t, db, 3, models.RoleCompany, uintPtr(2))
	seedUser(t, db, 4, models.RoleCompanyEmployee, uintPtr(1)) // employees are not part of the tree

	ids, err := dir.ListCompanyTree(1)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint{1, 2, 3}, ids)
}

func TestListCompanyTreeCycleGuard(t *testing.T) {
	db, dir, _ := newTestServices(t)

	seedUser(t, db, 1, models.RoleCompany, nil)
	seedUser(t, db, 2, models.RoleCompany, uintPtr(1))
	// corrupt legacy data: the root now points back at its own child
	require.NoError(t, db.Model(&models.User{}).Where("id = ?", 1).
		Update("parent_company_id", 2).Error)

	ids, err := dir.ListCompanyTree(1)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint{1, 2}, ids)
}
