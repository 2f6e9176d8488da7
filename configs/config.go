package configs

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBNameTest string
	RedisHost  string
	RedisPort  int
	RedisDB    int

	HTTPAddr           string
	RateLimitPerMinute int
	JWTSecret          string
	AccessTokenTTL     time.Duration
	RefreshTokenTTL    time.Duration

	UploadDir     string
	PublicBaseURL string
	MaxAvatarSize int64

	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	MailFrom     string
	SMTPTimeout  time.Duration

	WorkerConcurrency int
	JobResultTTL      time.Duration

	AdminUsername string
	AdminPassword string
	AdminEmail    string
}

func LoadConfig() Config {
	// Muat file .env
	if err := godotenv.Load(); err != nil {
		// Hanya log jika tidak dalam mode test
		if os.Getenv("GO_ENV") != "test" {
			log.Println("No .env file found, using default values")
		}
	}

	return Config{
		DBHost:     getString("DB_HOST", "localhost"),
		DBPort:     getInt("DB_PORT", 10501),
		DBUser:     os.Getenv("DB_USER"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     os.Getenv("DB_NAME"),
		DBNameTest: os.Getenv("DB_NAME_TEST"),
		RedisHost:  getString("REDIS_HOST", "localhost"),
		RedisPort:  getInt("REDIS_PORT", 6379),
		RedisDB:    getInt("REDIS_DB", 0),

		HTTPAddr:           getString("HTTP_ADDR", ":3004"),
		RateLimitPerMinute: getInt("RATE_LIMIT_PER_MINUTE", 100),
		JWTSecret:          getString("JWT_SECRET", "secret"),
		AccessTokenTTL:     getDuration("ACCESS_TOKEN_TTL", time.Hour),
		RefreshTokenTTL:    getDuration("REFRESH_TOKEN_TTL", 24*time.Hour),

		UploadDir:     getString("UPLOAD_DIR", "uploads"),
		PublicBaseURL: os.Getenv("PUBLIC_BASE_URL"),
		MaxAvatarSize: int64(getInt("MAX_AVATAR_SIZE", 5<<20)),

		SMTPHost:     getString("SMTP_HOST", "localhost"),
		SMTPPort:     getInt("SMTP_PORT", 25),
		SMTPUser:     os.Getenv("SMTP_USER"),
		SMTPPassword: os.Getenv("SMTP_PASSWORD"),
		MailFrom:     getString("MAIL_FROM", "noreply@task-manager.local"),
		SMTPTimeout:  getDuration("SMTP_TIMEOUT", 15*time.Second),

		WorkerConcurrency: getInt("WORKER_CONCURRENCY", 4),
		JobResultTTL:      getDuration("JOB_RESULT_TTL", 24*time.Hour),

		AdminUsername: os.Getenv("ADMIN_USERNAME"),
		AdminPassword: os.Getenv("ADMIN_PASSWORD"),
		AdminEmail:    os.Getenv("ADMIN_EMAIL"),
	}
}

func getString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

// getDuration accepts Go duration strings ("90s", "1h").
func getDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}
