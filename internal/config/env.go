package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL      string
	VectorDBURL      string
	AwsAccessKey     string
	AwsSecretKey     string
	AwsRegion        string
	BucketName       string
	AIAPIKey         string
	EmbedModel       string
	GenModel         string
	DecomposeModel   string
	RetrieveModel    string
	JWTSecret        string
	TokenExpireMins  int
	TopK             int
	ChunkSize        int
	ChunkOverlap     int
	RetrievalWorkers int
	SearchProvider   string
	SearchAPIKey     string
	Port             string
}

// LoadConfig loads the environment variables and returns config
func LoadConfig() *Config {

	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL:      getEnv("DATABASE_URL", ""),
		VectorDBURL:      getEnv("VECTOR_DATABASE_URL", ""),
		AwsAccessKey:     getEnv("AWS_ACCESS_KEY", ""),
		AwsSecretKey:     getEnv("AWS_SECRET_KEY", ""),
		AwsRegion:        getEnv("AWS_REGION", "us-east-2"),
		BucketName:       getEnv("BUCKET_NAME", "citebase-docs"),
		AIAPIKey:         getEnv("GEMINI_API_KEY", ""),
		EmbedModel:       getEnv("EMBED_MODEL", "text-embedding-004"),
		GenModel:         getEnv("GEN_MODEL", "gemini-1.5-flash"),
		DecomposeModel:   getEnv("DECOMPOSE_MODEL", "gemini-1.5-flash"),
		RetrieveModel:    getEnv("RETRIEVE_MODEL", "gemini-1.5-flash"),
		JWTSecret:        getEnv("JWT_SECRET", ""),
		TokenExpireMins:  getEnvInt("ACCESS_TOKEN_EXPIRE_MINUTES", 30),
		TopK:             getEnvInt("TOP_K", 3),
		ChunkSize:        getEnvInt("CHUNK_SIZE", 1000),
		ChunkOverlap:     getEnvInt("CHUNK_OVERLAP", 100),
		RetrievalWorkers: getEnvInt("RETRIEVAL_WORKERS", 4),
		SearchProvider:   getEnv("SEARCH_PROVIDER", "tavily"),
		SearchAPIKey:     getEnv("SEARCH_API_KEY", ""),
		Port:             getEnv("PORT", "8080"),
	}

	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL not set")
	}
	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET not set")
	}
	// The vector store defaults to the same Postgres instance but is always
	// addressed through its own client handle.
	if cfg.VectorDBURL == "" {
		cfg.VectorDBURL = cfg.DatabaseURL
	}

	return cfg
}

// Helper to read environment variables with a default fallback
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, def int) int {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("WARN: %s=%q not an int, using default %d", key, v, def)
		return def
	}
	return n
}
