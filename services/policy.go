package services

import "github.com/servimarket/api/models"

// CanConverse applies the pairing policy: admins may talk to anyone,
// clients talk to the company side, the company side talks to clients.
// Everything else, including two clients or two company accounts, is
// rejected.
func CanConverse(sender, counterpart models.Role) bool {
	switch sender {
	case models.RoleAdmin:
		return true
	case models.RoleClient:
		return counterpart == models.RoleCompany || counterpart == models.RoleCompanyEmployee
	case models.RoleCompany, models.RoleCompanyEmployee:
		return counterpart == models.RoleClient
	}
	return false
}
