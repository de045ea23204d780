package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	config "github.com/servimarket/api/configs"
	"github.com/servimarket/api/handlers"
	"github.com/servimarket/api/models"
	"github.com/servimarket/api/routes"
	"github.com/servimarket/api/services"
	chatws "github.com/servimarket/api/websocket"
)

const testJWTSecret = "test-secret-key-for-unit-tests"

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Conversation{}, &models.Message{}))
	return db
}

func buildTestApp(t *testing.T) (*fiber.App, *gorm.DB) {
	t.Helper()
	db := openTestDB(t)

	dir := services.NewDirectoryService(db, zerolog.Nop())
	chat := services.NewChatService(db, dir, zerolog.Nop())
	hub := chatws.NewHub(zerolog.Nop())

	app := fiber.New()
	routes.AuthRoutes(app, handlers.NewAuthHandler(db, config.JWTConfig{Secret: testJWTSecret, ExpiryHours: 1}))
	routes.MessagingRoutes(app, handlers.NewChatHandler(chat, dir, hub, testJWTSecret, zerolog.Nop()), testJWTSecret)
	routes.AdminRoutes(app, handlers.NewDirectoryHandler(dir), testJWTSecret)
	return app, db
}

func seedUser(t *testing.T, db *gorm.DB, id uint, role models.Role, parent *uint) models.User {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte("secret123"), bcrypt.MinCost)
	require.NoError(t, err)
	user := models.User{
		ID:              id,
		Role:            role,
		Name:            fmt.Sprintf("user-%d", id),
		Email:           fmt.Sprintf("user%d@example.com", id),
		Phone:           "000",
		Password:        string(hashed),
		ParentCompanyID: parent,
	}
	require.NoError(t, db.Create(&user).Error)
	return user
}

func uintPtr(v uint) *uint { return &v }

func seedMarketplace(t *testing.T, db *gorm.DB) {
	t.Helper()
	seedUser(t, db, 9, models.RoleCompany, nil)
	seedUser(t, db, 7, models.RoleCompanyEmployee, uintPtr(9))
	seedUser(t, db, 8, models.RoleCompanyEmployee, uintPtr(9))
	seedUser(t, db, 42, models.RoleClient, nil)
	seedUser(t, db, 43, models.RoleClient, nil)
}

func tokenFor(t *testing.T, id uint, role models.Role) string {
	t.Helper()
	claims := jwt.MapClaims{
		"user_id": id,
		"role":    role.String(),
		"exp":     time.Now().Add(time.Hour).Unix(),
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testJWTSecret))
	require.NoError(t, err)
	return "Bearer " + tok
}

func doJSON(t *testing.T, app *fiber.App, method, path, auth string, body interface{}) *http.Response {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func TestStartConversationNormalizesToRootCompany(t *testing.T) {
	app, db := buildTestApp(t)
	seedMarketplace(t, db)

	resp := doJSON(t, app, http.MethodPost, "/api/v1/conversations", tokenFor(t, 42, models.RoleClient),
		fiber.Map{"counterpart_id": 7})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body handlers.ConversationResponse
	decodeBody(t, resp, &body)
	assert.Equal(t, uint(42), body.Client.ID)
	assert.Equal(t, uint(9), body.Company.ID)

	// starting it again from the company side reuses the same thread
	resp = doJSON(t, app, http.MethodPost, "/api/v1/conversations", tokenFor(t, 9, models.RoleCompany),
		fiber.Map{"counterpart_id": 42})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var again handlers.ConversationResponse
	decodeBody(t, resp, &again)
	assert.Equal(t, body.ID, again.ID)
}

func TestStartConversationForbiddenPair(t *testing.T) {
	app, db := buildTestApp(t)
	seedMarketplace(t, db)

	resp := doJSON(t, app, http.MethodPost, "/api/v1/conversations", tokenFor(t, 42, models.RoleClient),
		fiber.Map{"counterpart_id": 43})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestStartConversationUnknownCounterpart(t *testing.T) {
	app, db := buildTestApp(t)
	seedMarketplace(t, db)

	resp := doJSON(t, app, http.MethodPost, "/api/v1/conversations", tokenFor(t, 42, models.RoleClient),
		fiber.Map{"counterpart_id": 999})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestListConversationsRequiresToken(t *testing.T) {
	app, _ := buildTestApp(t)

	resp := doJSON(t, app, http.MethodGet, "/api/v1/conversations", "", nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doJSON(t, app, http.MethodGet, "/api/v1/conversations", "Bearer not-a-token", nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestConversationAndMessageFlow(t *testing.T) {
	app, db := buildTestApp(t)
	seedMarketplace(t, db)

	resp := doJSON(t, app, http.MethodPost, "/api/v1/conversations", tokenFor(t, 42, models.RoleClient),
		fiber.Map{"counterpart_id": 9})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var conv handlers.ConversationResponse
	decodeBody(t, resp, &conv)

	msg := models.Message{ConversationID: conv.ID, SenderID: 42, Body: "oi", SentAt: time.Now()}
	require.NoError(t, db.Create(&msg).Error)

	// the client and the company's employee both see the thread
	for _, tok := range []string{tokenFor(t, 42, models.RoleClient), tokenFor(t, 7, models.RoleCompanyEmployee)} {
		resp = doJSON(t, app, http.MethodGet, "/api/v1/conversations", tok, nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		var convs []handlers.ConversationResponse
		decodeBody(t, resp, &convs)
		require.Len(t, convs, 1)
		assert.Equal(t, conv.ID, convs[0].ID)
	}

	path := fmt.Sprintf("/api/v1/conversations/%d/messages", conv.ID)
	resp = doJSON(t, app, http.MethodGet, path, tokenFor(t, 7, models.RoleCompanyEmployee), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var msgs []models.Message
	decodeBody(t, resp, &msgs)
	require.Len(t, msgs, 1)
	assert.Equal(t, "oi", msgs[0].Body)

	// a stranger to the thread is rejected
	resp = doJSON(t, app, http.MethodGet, path, tokenFor(t, 43, models.RoleClient), nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestMarkReadIdempotentOverHTTP(t *testing.T) {
	app, db := buildTestApp(t)
	seedMarketplace(t, db)

	conv := models.Conversation{ClientID: 42, CompanyID: 9, LastMessageAt: time.Now()}
	require.NoError(t, db.Create(&conv).Error)
	msg := models.Message{ConversationID: conv.ID, SenderID: 42, Body: "oi", SentAt: time.Now()}
	require.NoError(t, db.Create(&msg).Error)

	path := fmt.Sprintf("/api/v1/messages/%d/read", msg.ID)
	for i := 0; i < 2; i++ {
		resp := doJSON(t, app, http.MethodPut, path, tokenFor(t, 9, models.RoleCompany), nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		var out models.Message
		decodeBody(t, resp, &out)
		assert.True(t, out.Read)
	}

	resp := doJSON(t, app, http.MethodPut, path, tokenFor(t, 43, models.RoleClient), nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestCompanyTreeAdminOnly(t *testing.T) {
	app, db := buildTestApp(t)
	seedMarketplace(t, db)
	seedUser(t, db, 1, models.RoleAdmin, nil)
	seedUser(t, db, 5, models.RoleCompany, uintPtr(9))

	resp := doJSON(t, app, http.MethodGet, "/api/v1/admin/companies/9/tree", tokenFor(t, 42, models.RoleClient), nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = doJSON(t, app, http.MethodGet, "/api/v1/admin/companies/9/tree", tokenFor(t, 1, models.RoleAdmin), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		CompanyID uint   `json:"company_id"`
		Companies []uint `json:"companies"`
		Employees []uint `json:"employees"`
	}
	decodeBody(t, resp, &body)
	assert.Equal(t, uint(9), body.CompanyID)
	assert.ElementsMatch(t, []uint{9, 5}, body.Companies)
	assert.ElementsMatch(t, []uint{7, 8}, body.Employees)
}
