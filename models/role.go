package models

import "fmt"

// Role is the closed set of account kinds. Every switch over a Role
// handles all four values explicitly.
type Role string

const (
	RoleClient          Role = "client"
	RoleCompany         Role = "company"
	RoleCompanyEmployee Role = "company-employee"
	RoleAdmin           Role = "admin"
)

// ParseRole maps a wire string onto a Role, rejecting anything outside
// the known set.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleClient, RoleCompany, RoleCompanyEmployee, RoleAdmin:
		return Role(s), nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

func (r Role) String() string { return string(r) }

// CompanySide reports whether the role acts on the company side of a
// conversation (root companies, subsidiaries and their employees).
func (r Role) CompanySide() bool {
	return r == RoleCompany || r == RoleCompanyEmployee
}
