package services

import (
	"fmt"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/servimarket/api/models"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Conversation{}, &models.Message{}))
	return db
}

func newTestServices(t *testing.T) (*gorm.DB, *DirectoryService, *ChatService) {
	t.Helper()
	db := openTestDB(t)
	dir := NewDirectoryService(db, zerolog.Nop())
	chat := NewChatService(db, dir, zerolog.Nop())
	return db, dir, chat
}

func seedUser(t *testing.T, db *gorm.DB, id uint, role models.Role, parent *uint) models.User {
	t.Helper()
	user := models.User{
		ID:              id,
		Role:            role,
		Name:            fmt.Sprintf("user-%d", id),
		Email:           fmt.Sprintf("user%d@example.com", id),
		Phone:           "000",
		Password:        "irrelevant",
		ParentCompanyID: parent,
	}
	require.NoError(t, db.Create(&user).Error)
	return user
}

func uintPtr(v uint) *uint { return &v }
