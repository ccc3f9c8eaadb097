package main

import (
	"log"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/spigotlabs/spigot-api/internal/config"
	"github.com/spigotlabs/spigot-api/internal/logger"
	"github.com/spigotlabs/spigot-api/internal/server"
)

func main() {
	err := godotenv.Load()
	if err != nil {
		// A missing .env file is fine in environments that set variables
		// directly; log it and keep going.
		log.Printf("Warning: Error loading .env file: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Initialize logger first
	logger.InitLogger(cfg.Stage)
	defer logger.Sync()
	defer server.Close()

	r := gin.Default()
	server.InitializeHandlers(cfg)
	server.InitializeRoutes(r)

	log.Printf("Server starting on :%s", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatalf("Error starting server: %v", err)
	}
}
