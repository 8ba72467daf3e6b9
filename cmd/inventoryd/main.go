package main

import (
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	mmysql "marketplace/internal/infra/mysql"
	"marketplace/internal/inventory"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Logger()

func main() {
	db, err := mmysql.NewMySQLFromEnv(&inventory.Product{})
	if err != nil {
		logger.Fatal().Err(err).Msg("db connect failed")
	}

	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetMaxIdleConns(20)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	handler := inventory.NewHandler(inventory.NewLedger(db))

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	handler.RegisterRoutes(r)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8081"
	}

	logger.Info().Str("port", port).Msg("starting inventory service")
	if err := r.Run(":" + port); err != nil {
		logger.Fatal().Err(err).Msg("server run failed")
	}
}
