package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/zhouzirui/transit-voice/backend/internal/store"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server   ServerConfig
	Log      LogConfig
	Store    store.Settings
	Geo      GeoConfig
	Transit  TransitConfig
	Dialog   DialogConfig
	Identity IdentityConfig
	Session  SessionConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	storeSettings, err := loadStoreSettings()
	if err != nil {
		return nil, err
	}

	geo, err := loadGeoConfig()
	if err != nil {
		return nil, err
	}

	transit, err := loadTransitConfig()
	if err != nil {
		return nil, err
	}

	dialog, err := loadDialogConfig()
	if err != nil {
		return nil, err
	}

	identity, err := loadIdentityConfig()
	if err != nil {
		return nil, err
	}

	session, err := loadSessionConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:   server,
		Log:      loadLogConfig(),
		Store:    storeSettings,
		Geo:      geo,
		Transit:  transit,
		Dialog:   dialog,
		Identity: identity,
		Session:  session,
	}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr string
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// LogConfig 描述日志级别与输出格式。
type LogConfig struct {
	Level  string
	Format string
}

// Console 表示是否使用人类可读的控制台输出。
func (c LogConfig) Console() bool {
	return c.Format != "json"
}

func loadLogConfig() LogConfig {
	return LogConfig{
		Level:  strings.ToLower(getEnvOrDefault("LOG_LEVEL", "info")),
		Format: strings.ToLower(getEnvOrDefault("LOG_FORMAT", "console")),
	}
}

// loadStoreSettings 选择用户档案存储后端。
func loadStoreSettings() (store.Settings, error) {
	driver := strings.ToLower(getEnvOrDefault("STORE_DRIVER", store.DriverMemory))
	switch driver {
	case store.DriverMemory, store.DriverSQLite, store.DriverRedis, store.DriverBolt:
	default:
		return store.Settings{}, fmt.Errorf("invalid STORE_DRIVER value: %q", driver)
	}

	db, err := parseIntEnv("REDIS_DB", 0)
	if err != nil {
		return store.Settings{}, err
	}

	return store.Settings{
		Driver:     driver,
		SQLitePath: getEnvOrDefault("SQLITE_PATH", "data/profiles.db"),
		BoltPath:   getEnvOrDefault("BOLT_PATH", "data/profiles.bolt"),
		Redis: store.RedisSettings{
			Addr:     getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
			Password: strings.TrimSpace(os.Getenv("REDIS_PASSWORD")),
			DB:       db,
			Prefix:   getEnvOrDefault("REDIS_PREFIX", "transit-voice"),
		},
	}, nil
}

// GeoConfig 描述地理编码与区域目录配置。
type GeoConfig struct {
	APIKey            string
	BaseURL           string
	RegionsFile       string
	MaxDistanceMeters float64
	RetryMax          int
	Timeout           time.Duration
}

func loadGeoConfig() (GeoConfig, error) {
	maxDistance, err := parseOptionalFloatEnv("REGION_MAX_DISTANCE_METERS")
	if err != nil {
		return GeoConfig{}, err
	}
	distance := 160934.0 // 约 100 英里
	if maxDistance != nil {
		distance = *maxDistance
	}

	retryMax, timeout, err := loadHTTPPolicy()
	if err != nil {
		return GeoConfig{}, err
	}

	return GeoConfig{
		APIKey:            strings.TrimSpace(os.Getenv("GOOGLE_MAPS_API_KEY")),
		BaseURL:           getEnvOrDefault("GEOCODER_BASE_URL", "https://maps.googleapis.com"),
		RegionsFile:       strings.TrimSpace(os.Getenv("REGIONS_FILE")),
		MaxDistanceMeters: distance,
		RetryMax:          retryMax,
		Timeout:           timeout,
	}, nil
}

// TransitConfig 描述公交实时接口配置。
type TransitConfig struct {
	APIKey   string
	RetryMax int
	Timeout  time.Duration
}

func loadTransitConfig() (TransitConfig, error) {
	retryMax, timeout, err := loadHTTPPolicy()
	if err != nil {
		return TransitConfig{}, err
	}
	return TransitConfig{
		APIKey:   getEnvOrDefault("OBA_API_KEY", "TEST"),
		RetryMax: retryMax,
		Timeout:  timeout,
	}, nil
}

// loadHTTPPolicy 解析外部 HTTP 调用的重试次数和超时。
func loadHTTPPolicy() (int, time.Duration, error) {
	retryMax, err := parseIntEnv("HTTP_RETRY_MAX", 2)
	if err != nil {
		return 0, 0, err
	}
	timeoutSeconds, err := parseIntEnv("HTTP_TIMEOUT_SECONDS", 10)
	if err != nil {
		return 0, 0, err
	}
	if retryMax < 0 {
		retryMax = 0
	}
	return retryMax, time.Duration(timeoutSeconds) * time.Second, nil
}

// DialogConfig 描述对话引擎参数。
type DialogConfig struct {
	ArrivalsWindowMinutes  int
	StopSearchRadiusMeters int
	SpeakRegionList        bool
}

func loadDialogConfig() (DialogConfig, error) {
	window, err := parseIntEnv("ARRIVALS_WINDOW_MINUTES", 35)
	if err != nil {
		return DialogConfig{}, err
	}
	radius, err := parseIntEnv("STOP_SEARCH_RADIUS_METERS", 40000)
	if err != nil {
		return DialogConfig{}, err
	}
	speakRegions, err := parseBoolEnv("SPEAK_REGION_LIST", true)
	if err != nil {
		return DialogConfig{}, err
	}
	return DialogConfig{
		ArrivalsWindowMinutes:  window,
		StopSearchRadiusMeters: radius,
		SpeakRegionList:        speakRegions,
	}, nil
}

// IdentityConfig 描述身份关联后台任务的并发与超时。
type IdentityConfig struct {
	MaxInFlight int
	Timeout     time.Duration
}

func loadIdentityConfig() (IdentityConfig, error) {
	maxInFlight, err := parseIntEnv("BACKGROUND_MAX_INFLIGHT", 32)
	if err != nil {
		return IdentityConfig{}, err
	}
	timeoutSeconds, err := parseIntEnv("BACKGROUND_TIMEOUT_SECONDS", 5)
	if err != nil {
		return IdentityConfig{}, err
	}
	return IdentityConfig{
		MaxInFlight: maxInFlight,
		Timeout:     time.Duration(timeoutSeconds) * time.Second,
	}, nil
}

// SessionConfig 描述会话注册表的空闲回收策略。
type SessionConfig struct {
	Idle time.Duration
}

func loadSessionConfig() (SessionConfig, error) {
	minutes, err := parseIntEnv("SESSION_IDLE_MINUTES", 30)
	if err != nil {
		return SessionConfig{}, err
	}
	return SessionConfig{Idle: time.Duration(minutes) * time.Minute}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseIntEnv(key string, defaultValue int) (int, error) {
	val, err := parseOptionalIntEnv(key)
	if err != nil {
		return 0, err
	}
	if val == nil {
		return defaultValue, nil
	}
	return *val, nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
