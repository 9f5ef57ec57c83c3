package main

import (
	"context"
	"log"
	"os"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/24sk/anime/internal/admission"
	v1 "github.com/24sk/anime/internal/controller/http/v1"
	"github.com/24sk/anime/internal/domain/entity"
	"github.com/24sk/anime/internal/domain/usecase"
	"github.com/24sk/anime/internal/genai"
	"github.com/24sk/anime/internal/pipeline"
	"github.com/24sk/anime/internal/prompt"
	psqlRepo "github.com/24sk/anime/internal/repository/psql"
	redisRepo "github.com/24sk/anime/internal/repository/redis"
	s3Repo "github.com/24sk/anime/internal/repository/s3"
	"github.com/24sk/anime/pkg/client/psql"
	redisClientPkg "github.com/24sk/anime/pkg/client/redis"
	s3ClientPkg "github.com/24sk/anime/pkg/client/s3"
	"github.com/24sk/anime/pkg/logger"
	"github.com/24sk/anime/pkg/middleware"
)

type Config struct {
	RedisAddr string
	RedisDB   int

	PSQLHost     string
	PSQLPort     int
	PSQLUser     string
	PSQLPassword string
	PSQLDBName   string
	PSQLSSLMode  string

	S3Host      string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string
	S3Secure    bool

	GeminiAPIKey string
	FontPath     string

	Port        string
	Development bool
}

func main() {
	cfg := loadConfig()
	ctx := context.Background()

	zapLog, err := logger.New(cfg.Development)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer zapLog.Sync()

	if err := prompt.ValidateTables(); err != nil {
		log.Fatalf("prompt table check failed: %v", err)
	}

	var fontData []byte
	if cfg.FontPath != "" {
		fontData, err = os.ReadFile(cfg.FontPath)
		if err != nil {
			log.Fatalf("failed to read font %s: %v", cfg.FontPath, err)
		}
	}
	pipe, err := pipeline.New(fontData)
	if err != nil {
		log.Fatalf("failed to init pipeline: %v", err)
	}

	redisClient, err := redisClientPkg.NewRedisClient(ctx, redisClientPkg.Config{
		Addr: cfg.RedisAddr,
		DB:   cfg.RedisDB,
	})
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}

	db, err := psql.NewPostgresDB(psql.Config{
		Host:     cfg.PSQLHost,
		User:     cfg.PSQLUser,
		Password: cfg.PSQLPassword,
		DBName:   cfg.PSQLDBName,
		Port:     cfg.PSQLPort,
		SslMode:  cfg.PSQLSSLMode,
	})
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	if err := db.AutoMigrate(
		&entity.GenerationJob{},
		&entity.LineStampBatchJob{},
		&entity.RateLimitCounter{},
		&entity.DailyQuotaCounter{},
	); err != nil {
		log.Fatalf("migration failed: %v", err)
	}

	s3Client, err := s3ClientPkg.NewS3Client(cfg.S3Host, cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3Bucket, cfg.S3Secure)
	if err != nil {
		log.Fatalf("failed to connect to object storage: %v", err)
	}

	jobRepo := psqlRepo.NewGormJobRepo(db)
	stampRepo := psqlRepo.NewGormStampJobRepo(db)
	counterRepo := psqlRepo.NewCounterRepo(db)
	quotaRepo := psqlRepo.NewQuotaRepo(db)
	cache := redisRepo.NewRedisRepo(redisClient)
	storage := s3Repo.NewS3Repo(s3Client)
	generator := genai.NewClient(cfg.GeminiAPIKey)

	limiter := admission.NewRateLimiter(counterRepo, zapLog)
	quota := admission.NewQuotaChecker(quotaRepo, zapLog)

	generationUC := usecase.NewGenerationUseCase(jobRepo, cache, storage, generator, zapLog)
	stampUC := usecase.NewStampUseCase(stampRepo, cache, storage, generator, pipe, quota, zapLog)

	generationHandler := v1.NewGenerationHandler(generationUC)
	stampHandler := v1.NewStampHandler(stampUC)
	uploadHandler := v1.NewUploadHandler(storage)

	if !cfg.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.Default()
	r.Use(middleware.NewRateLimiter(middleware.RateLimiterConfig{Limiter: limiter}))

	v1Group := r.Group("/api/v1")
	{
		v1Group.POST("/uploads", uploadHandler.Upload)
		v1Group.POST("/generations", generationHandler.Submit)
		v1Group.GET("/generations/:job_id", generationHandler.GetStatus)
		v1Group.GET("/stamps/words", stampHandler.Words)
		v1Group.POST("/stamps", stampHandler.GenerateSingle)
		v1Group.POST("/stamps/batch", stampHandler.SubmitBatch)
		v1Group.GET("/stamps/batch/:job_id", stampHandler.GetBatchStatus)
	}

	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}

func loadConfig() Config {
	if err := godotenv.Load("./.env.local"); err != nil {
		log.Println("No .env file found. Falling back to OS environment variables.")
	}
	mustGetEnv := func(key string) string {
		val := os.Getenv(key)
		if val == "" {
			log.Fatalf("Environment variable %s is not set", key)
		}
		return val
	}

	redisDBStr := os.Getenv("REDIS_DB")
	if redisDBStr == "" {
		redisDBStr = "0"
	}
	redisDB, err := strconv.Atoi(redisDBStr)
	if err != nil {
		log.Fatalf("Invalid REDIS_DB value: %v", err)
	}

	psqlPort, err := strconv.Atoi(mustGetEnv("PSQL_PORT"))
	if err != nil {
		log.Fatalf("Invalid PSQL_PORT value: %v", err)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	return Config{
		RedisAddr: mustGetEnv("REDIS_HOST") + ":" + mustGetEnv("REDIS_PORT"),
		RedisDB:   redisDB,

		PSQLHost:     mustGetEnv("PSQL_HOST"),
		PSQLPort:     psqlPort,
		PSQLUser:     mustGetEnv("PSQL_USER"),
		PSQLPassword: mustGetEnv("PSQL_PASSWORD"),
		PSQLDBName:   mustGetEnv("PSQL_DB"),
		PSQLSSLMode:  mustGetEnv("PSQL_SSLMODE"),

		S3Host:      mustGetEnv("S3_HOST") + ":" + mustGetEnv("S3_PORT"),
		S3Bucket:    mustGetEnv("S3_BUCKET"),
		S3AccessKey: mustGetEnv("S3_ACCESS_KEY"),
		S3SecretKey: mustGetEnv("S3_SECRET_KEY"),
		S3Secure:    os.Getenv("S3_SECURE") == "true",

		GeminiAPIKey: mustGetEnv("GEMINI_API_KEY"),
		FontPath:     os.Getenv("FONT_PATH"),

		Port:        port,
		Development: os.Getenv("APP_ENV") != "production",
	}
}
