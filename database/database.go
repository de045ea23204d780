package database

import (
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	config "github.com/servimarket/api/configs"
	"github.com/servimarket/api/models"
)

var DB *gorm.DB

func Connect(cfg config.DBConfig) {
	var err error
	// TranslateError turns driver unique violations into
	// gorm.ErrDuplicatedKey, which the conversation get-or-create
	// race recovery depends on.
	DB, err = gorm.Open(postgres.Open(cfg.URL), &gorm.Config{
		TranslateError: true,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("🔥 Failed to connect to database")
	}
	log.Info().Msg("✅ Database connected successfully")
}

func Migrate() {
	err := DB.AutoMigrate(
		&models.User{},
		&models.Conversation{},
		&models.Message{},
	)
	if err != nil {
		log.Fatal().Err(err).Msg("🔥 Failed to migrate database")
	}
	log.Info().Msg("✅ Database migration successful")
}

func SeedAdmin(cfg config.SeedConfig) {
	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		log.Warn().Msg("Admin seed skipped: ADMIN_EMAIL or ADMIN_PASSWORD not set")
		return
	}

	var count int64
	if err := DB.Model(&models.User{}).Where("email = ?", cfg.AdminEmail).Count(&count).Error; err != nil {
		log.Fatal().Err(err).Msg("🔥 Failed to check for admin user")
	}
	if count > 0 {
		log.Info().Msg("Admin user already exists.")
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(cfg.AdminPassword), bcrypt.DefaultCost)
	if err != nil {
		log.Fatal().Err(err).Msg("🔥 Failed to hash admin password")
	}

	admin := models.User{
		Name:     cfg.AdminName,
		Email:    cfg.AdminEmail,
		Password: string(hashed),
		Role:     models.RoleAdmin,
	}
	if err := DB.Create(&admin).Error; err != nil {
		log.Fatal().Err(err).Msg("🔥 Failed to seed admin user")
	}
	log.Info().Msg("✅ Admin user seeded successfully")
}
