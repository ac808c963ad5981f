package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"nebulalink/backend/internal/api/handler"
	"nebulalink/backend/internal/auth"
	"nebulalink/backend/internal/chathub"
	"nebulalink/backend/internal/config"
	"nebulalink/backend/internal/models"
	"nebulalink/backend/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupDependencies(cfg *config.Config) (*gorm.DB, *redis.Client) {
	db, err := gorm.Open(postgres.Open(cfg.DatabaseDSN), &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to connect PostgreSQL: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Fatalf("Failed to connect Redis: %v", err)
	}

	err = db.AutoMigrate(
		&models.User{},
		&models.ChatRoom{},
		&models.Message{},
	)
	if err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	log.Println("Database and Redis connections established, migrations complete.")
	return db, rdb
}

func main() {
	log.Println("Starting NebulaLink backend...")

	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Error loading .env file")
	}
	cfg := config.Load()

	db, rdb := setupDependencies(cfg)
	s := storage.NewStorageService(db, rdb)

	presence := chathub.NewPresenceTracker(s)
	rooms := chathub.NewRoomRegistry(s)
	matcher := chathub.NewMatcherService(s, rooms, presence)
	hub := chathub.NewManagerService(s, presence, rooms, matcher)

	matcher.RecoverQueue()

	ctx := context.Background()
	go matcher.Run(ctx, cfg.MatchSweepInterval)
	go func() {
		if err := hub.RunPubSub(ctx); err != nil {
			log.Fatalf("Pub/Sub listener failed: %v", err)
		}
	}()

	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL)

	r := gin.Default()
	h := handler.NewHandler(hub, matcher, s, tokens)
	h.RegisterRoutes(r)

	server := &http.Server{
		Addr:           ":" + cfg.Port,
		Handler:        r,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	log.Printf("Listening on :%s", cfg.Port)
	log.Fatal(server.ListenAndServe())
}
