// Package config собирает настройки приложения из окружения.
// Файл .env, если он есть, подхватывается перед чтением переменных.
package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
)

type Config struct {
	DBPath    string
	HTTPAddr  string
	LogLevel  string
	LogFormat string

	UsersFile    string
	RequestsFile string
	CommentsFile string

	BackupDir string
	ExportDir string

	BcryptCost int
}

// Load читает конфигурацию. Отсутствие .env не считается ошибкой.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		DBPath:       getEnv("DB_PATH", "repair_requests.db"),
		HTTPAddr:     getEnv("HTTP_ADDR", ":8080"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		LogFormat:    getEnv("LOG_FORMAT", "console"),
		UsersFile:    getEnv("USERS_FILE", "inputDataUsers.xlsx"),
		RequestsFile: getEnv("REQUESTS_FILE", "inputDataRequests.xlsx"),
		CommentsFile: getEnv("COMMENTS_FILE", "inputDataComments.xlsx"),
		BackupDir:    getEnv("BACKUP_DIR", "backups"),
		ExportDir:    getEnv("EXPORT_DIR", "exports"),
		BcryptCost:   getEnvInt("BCRYPT_COST", bcrypt.DefaultCost),
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
