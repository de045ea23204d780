package services

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/servimarket/api/models"
)

// DirectoryService answers identity questions about the company
// hierarchy: which root company an account belongs to and who works
// under it.
type DirectoryService struct {
	db  *gorm.DB
	log zerolog.Logger
}

func NewDirectoryService(db *gorm.DB, log zerolog.Logger) *DirectoryService {
	return &DirectoryService{db: db, log: log}
}

func (s *DirectoryService) GetUser(id uint) (models.User, error) {
	var user models.User
	if err := s.db.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.User{}, fmt.Errorf("user %d: %w", id, ErrNotFound)
		}
		return models.User{}, err
	}
	return user, nil
}

// ResolveRootCompany maps a company-side account to its root company
// id. A root company resolves to itself; employees and child companies
// resolve through their parent link in a single hop.
func (s *DirectoryService) ResolveRootCompany(userID uint) (uint, error) {
	user, err := s.GetUser(userID)
	if err != nil {
		return 0, err
	}
	return RootCompanyOf(user)
}

// RootCompanyOf resolves an already-loaded user. Split out so callers
// holding a user row avoid a second lookup.
func RootCompanyOf(user models.User) (uint, error) {
	switch user.Role {
	case models.RoleCompany:
		if user.ParentCompanyID != nil {
			return *user.ParentCompanyID, nil
		}
		return user.ID, nil
	case models.RoleCompanyEmployee:
		if user.ParentCompanyID == nil {
			return 0, fmt.Errorf("employee %d: %w", user.ID, ErrUnlinkedCompany)
		}
		return *user.ParentCompanyID, nil
	case models.RoleClient, models.RoleAdmin:
		return 0, fmt.Errorf("user %d has role %s: %w", user.ID, user.Role, ErrInvalidInput)
	}
	return 0, fmt.Errorf("user %d has role %s: %w", user.ID, user.Role, ErrInvalidInput)
}

// ListEmployees returns every employee account attached to the root
// company. Fan-out is the only consumer.
func (s *DirectoryService) ListEmployees(rootCompanyID uint) ([]uint, error) {
	var ids []uint
	err := s.db.Model(&models.User{}).
		Where("role = ? AND parent_company_id = ?", models.RoleCompanyEmployee, rootCompanyID).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// ListCompanyTree returns the company plus every transitive child
// company. Legacy rows can carry parent loops, so the traversal keeps a
// visited set instead of trusting the data.
func (s *DirectoryService) ListCompanyTree(companyID uint) ([]uint, error) {
	visited := make(map[uint]bool)
	return s.walkCompanyTree(companyID, visited)
}

func (s *DirectoryService) walkCompanyTree(companyID uint, visited map[uint]bool) ([]uint, error) {
	if visited[companyID] {
		s.log.Warn().Uint("company_id", companyID).Msg("cycle in company hierarchy, skipping revisit")
		return nil, nil
	}
	visited[companyID] = true

	ids := []uint{companyID}

	var children []uint
	err := s.db.Model(&models.User{}).
		Where("role = ? AND parent_company_id = ?", models.RoleCompany, companyID).
		Pluck("id", &children).Error
	if err != nil {
		return nil, err
	}
	for _, child := range children {
		sub, err := s.walkCompanyTree(child, visited)
		if err != nil {
			return nil, err
		}
		ids = append(ids, sub...)
	}
	return ids, nil
}
