package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/servimarket/api/models"
)

func TestCanConverse(t *testing.T) {
	roles := []models.Role{
		models.RoleClient,
		models.RoleCompany,
		models.RoleCompanyEmployee,
		models.RoleAdmin,
	}

	allowed := map[models.Role]map[models.Role]bool{
		models.RoleAdmin: {
			models.RoleClient:          true,
			models.RoleCompany:         true,
			models.RoleCompanyEmployee: true,
			models.RoleAdmin:           true,
		},
		models.RoleClient: {
			models.RoleCompany:         true,
			models.RoleCompanyEmployee: true,
		},
		models.RoleCompany: {
			models.RoleClient: true,
		},
		models.RoleCompanyEmployee: {
			models.RoleClient: true,
		},
	}

	for _, sender := range roles {
		for _, counterpart := range roles {
			want := allowed[sender][counterpart]
			got := CanConverse(sender, counterpart)
			assert.Equal(t, want, got, "sender=%s counterpart=%s", sender, counterpart)
		}
	}
}

func TestParseRole(t *testing.T) {
	for _, s := range []string{"client", "company", "company-employee", "admin"} {
		role, err := models.ParseRole(s)
		assert.NoError(t, err)
		assert.Equal(t, s, role.String())
	}

	_, err := models.ParseRole("supplier")
	assert.Error(t, err)
	_, err = models.ParseRole("")
	assert.Error(t, err)
}
