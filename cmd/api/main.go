package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"english_lab_go_backend/cmd/api/config"
	"english_lab_go_backend/internal/api"
	"english_lab_go_backend/internal/auth"
	"english_lab_go_backend/internal/database"
	"english_lab_go_backend/internal/services"
	"english_lab_go_backend/internal/utils/broker"
	"english_lab_go_backend/internal/wsocket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/generative-ai-go/genai"
	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()

	if err := godotenv.Load(); err != nil {
		log.Info().Msg("No .env file found")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	zerolog.SetGlobalLevel(cfg.LogLevel)

	ctx := context.Background()

	dsn := cfg.DatabaseURL
	if dsn == "" {
		dsn = database.DSN(cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort)
	}
	database.InitDB(dsn)

	genaiClient, err := genai.NewClient(ctx, option.WithAPIKey(cfg.GenAIAPIKey))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create GenAI client")
	}
	defer genaiClient.Close()

	// Recordings are archived only when a bucket is configured.
	var archive *services.RecordingArchive
	if cfg.GCSBucketName != "" {
		gcsService, err := services.NewGCSService(ctx, cfg.GCSBucketName)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create GCS service")
		}
		defer gcsService.Close()
		archive = services.NewRecordingArchive(gcsService)
	}

	model := services.NewGenAIModel(genaiClient, cfg.ArticleModel, cfg.ChatModel)
	learningService := services.NewLearningService(model)
	sessionServiceDB := services.NewSessionServiceDB(database.DB)
	userService := services.NewUserService(database.DB)
	verifier := auth.NewTokenVerifier(cfg.AuthJWTSecret, cfg.AuthJWKSURL)
	messageBroker := broker.NewBroker()

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(api.RequestLogger(log.Logger))

	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	allowed := make(map[string]bool, len(cfg.AllowedOrigins))
	for _, o := range cfg.AllowedOrigins {
		allowed[o] = true
	}
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || allowed[origin]
		},
	}
	wsHandler := wsocket.NewHandler(learningService, sessionServiceDB, messageBroker, upgrader, log.Logger)

	api.SetupRoutes(r, learningService, sessionServiceDB, archive, messageBroker, verifier, userService)
	auth.SetupRoutes(r, verifier, userService)

	r.GET("/ws", auth.AuthMiddleware(verifier, userService), func(c *gin.Context) {
		user, _ := auth.CurrentUser(c)
		wsHandler.HandleWebSocket(c.Writer, c.Request, user)
	})

	log.Info().Str("port", cfg.Port).Msg("Server starting")
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatal().Err(err).Msg("Failed to start server")
	}
}
