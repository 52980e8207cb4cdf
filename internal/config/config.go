package config

import (
	"log"
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	Port         string
	JWTSecret    string
	MongoURI     string
	DBName       string
	SkipAuth     bool
	Environment  string
	AppId        string
	ReportingDSN string // External SQL store for concluded-instance mirroring ("" = disabled)
	ReportingDB  string // "postgresql" or "mysql"
	SweepSpec    string // Cron spec for the stalled-approval sweep
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	} else {
		log.Println("Loaded .env file successfully")
	}

	return &Config{
		Port:         getEnv("PORT", "8080"),
		JWTSecret:    getEnv("JWT_SECRET", "secret"),
		MongoURI:     getEnv("MONGO_URI", "mongodb://localhost:27017"),
		DBName:       getEnv("DB_NAME", "go-estimate"),
		SkipAuth:     getEnv("SKIP_AUTH", "false") == "true",
		Environment:  getEnv("ENVIRONMENT", "development"),
		AppId:        getEnv("APP_ID", "go-estimate"),
		ReportingDSN: getEnv("REPORTING_DSN", ""),
		ReportingDB:  getEnv("REPORTING_DB", "postgresql"),
		SweepSpec:    getEnv("SWEEP_SPEC", "*/15 * * * *"),
	}, nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}
