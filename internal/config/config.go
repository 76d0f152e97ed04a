package config

import (
	"os"
	"strconv"
	"time"
)

// Config はアプリケーション設定を表す
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Booking  BookingConfig
}

// ServerConfig はサーバー設定
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DatabaseConfig はデータベース設定
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig はRedis設定
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// BookingConfig は予約処理の設定
type BookingConfig struct {
	// DedupTTL は重複予約キャッシュエントリの有効期限
	DedupTTL time.Duration
	// CacheTimeout はキャッシュ操作1回あたりのタイムアウト
	// 超過時はキャッシュミス扱いで予約処理を継続する
	CacheTimeout time.Duration
	// TxTimeout は予約トランザクション全体のタイムアウト
	TxTimeout time.Duration
	// CacheQueueSize は非同期キャッシュ書き込みキューの容量
	CacheQueueSize int
	// LockTTL はイベント単位のRedisロックの有効期限
	LockTTL time.Duration
	// LockRetries はロック取得のリトライ回数
	LockRetries int
	// LockRetryDelay はロック取得リトライの間隔
	LockRetryDelay time.Duration
}

// Load は環境変数から設定を読み込む
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			ReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "event_booking"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
		},
		Booking: BookingConfig{
			DedupTTL:       getDurationEnv("BOOKING_DEDUP_TTL", time.Hour),
			CacheTimeout:   getDurationEnv("BOOKING_CACHE_TIMEOUT", 200*time.Millisecond),
			TxTimeout:      getDurationEnv("BOOKING_TX_TIMEOUT", 5*time.Second),
			CacheQueueSize: getIntEnv("BOOKING_CACHE_QUEUE_SIZE", 1024),
			LockTTL:        getDurationEnv("BOOKING_LOCK_TTL", 5*time.Second),
			LockRetries:    getIntEnv("BOOKING_LOCK_RETRIES", 3),
			LockRetryDelay: getDurationEnv("BOOKING_LOCK_RETRY_DELAY", 50*time.Millisecond),
		},
	}
}

// DSN はPostgreSQL接続文字列を返す
func (c *DatabaseConfig) DSN() string {
	return "host=" + c.Host +
		" port=" + c.Port +
		" user=" + c.User +
		" password=" + c.Password +
		" dbname=" + c.DBName +
		" sslmode=" + c.SSLMode
}

// Addr はRedis接続アドレスを返す
func (c *RedisConfig) Addr() string {
	return c.Host + ":" + c.Port
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
