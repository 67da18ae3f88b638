package database

import (
	"fmt"

	"daochat_go_backend/internal/models"

	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var DB *gorm.DB

func InitDB(host, user, password, name, port string) {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
		host, user, password, name, port,
	)

	var err error
	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}

	// Auto Migrate the schema
	err = DB.AutoMigrate(
		&models.User{},
		&models.Conversation{},
		&models.Message{},
		&models.Subscription{},
		&models.UsageLog{},
		&models.DailyMessageCount{},
		&models.UserSession{},
	)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to auto migrate")
	}
}
