package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/servimarket/api/models"
	"github.com/servimarket/api/services"
)

type DirectoryHandler struct {
	dir *services.DirectoryService
}

func NewDirectoryHandler(dir *services.DirectoryService) *DirectoryHandler {
	return &DirectoryHandler{dir: dir}
}

// CompanyTree returns a company's transitive subsidiaries plus the
// employees attached to it. Admin only.
func (h *DirectoryHandler) CompanyTree(c *fiber.Ctx) error {
	companyID, err := parseUintParam(c, "companyId")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	user, err := h.dir.GetUser(companyID)
	if err != nil {
		return errorResponse(c, err)
	}
	if user.Role != models.RoleCompany {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Account is not a company"})
	}

	companies, err := h.dir.ListCompanyTree(companyID)
	if err != nil {
		return errorResponse(c, err)
	}
	employees, err := h.dir.ListEmployees(companyID)
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(fiber.Map{
		"company_id": companyID,
		"companies":  companies,
		"employees":  employees,
	})
}
