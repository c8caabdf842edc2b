package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config — полная конфигурация проекта
type Config struct {
	Database  DBConfig
	RabbitMQ  MQConfig
	WebSocket WSConfig
	JWT       JWTConfig
	Tracking  TrackingConfig
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

type MQConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	VHost    string
}

type WSConfig struct {
	Port int
}

type JWTConfig struct {
	Secret        string
	ExpiryMinutes int
}

// TrackingConfig — пороги геозон и расписание фоновых задач.
// Значения подобраны под интервал GPS-сэмплов мобильных клиентов (секунды).
type TrackingConfig struct {
	BoardingRadiusMeters  float64       // радиус автоматического определения посадки
	AlightingRadiusMeters float64       // радиус автоматического определения высадки
	DetectionSamples      int           // подряд идущих сэмплов до фиксации события
	OriginRadiusMeters    float64       // допустимое удаление от первой остановки при старте
	EarlyStartAllowance   time.Duration // насколько раньше расписания можно начать рейс
	LocationTTL           time.Duration // свежесть кэша позиций
	PassengerIdleTTL      time.Duration // простой, после которого состояние пассажира забывается
	CacheSweepInterval    time.Duration // период чистки кэшей
	AutoCloseInterval     time.Duration // период автозакрытия брошенных рейсов
	AbandonAfter          time.Duration // отсутствие обновлений, после которого рейс считается брошенным
	GPSJumpMeters         float64       // фильтр GPS-скачков пассажирских сэмплов
	GPSJumpWindow         time.Duration // окно, в котором скачок считается недостоверным
}

// Load — загрузка из CONFIG_DIR (по умолчанию ./config) + ENV перекрывает
func Load() Config {
	configDir := getEnv("CONFIG_DIR", "./config")
	cfg := Config{}

	// db.yaml
	dbPath := filepath.Join(configDir, "db.yaml")
	if dbKV, err := parseYAML(dbPath); err == nil {
		cfg.Database.Host = getStrWithEnv("DB_HOST", dbKV, "host", "localhost")
		cfg.Database.Port = getIntWithEnv("DB_PORT", dbKV, "port", 5432)
		cfg.Database.User = getStrWithEnv("DB_USER", dbKV, "user", "bustracker_user")
		cfg.Database.Password = getStrWithEnv("DB_PASSWORD", dbKV, "password", "bustracker_pass")
		cfg.Database.Database = getStrWithEnv("DB_NAME", dbKV, "database", "bustracker_db")
		cfg.Database.SSLMode = getStrWithEnv("DB_SSLMODE", dbKV, "sslmode", "disable")
	} else {
		cfg.Database.Host = getEnv("DB_HOST", "localhost")
		cfg.Database.Port = getEnvInt("DB_PORT", 5432)
		cfg.Database.User = getEnv("DB_USER", "bustracker_user")
		cfg.Database.Password = getEnv("DB_PASSWORD", "bustracker_pass")
		cfg.Database.Database = getEnv("DB_NAME", "bustracker_db")
		cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	}

	// mq.yaml
	mqPath := filepath.Join(configDir, "mq.yaml")
	if mqKV, err := parseYAML(mqPath); err == nil {
		cfg.RabbitMQ.Host = getStrWithEnv("RABBITMQ_HOST", mqKV, "host", "localhost")
		cfg.RabbitMQ.Port = getIntWithEnv("RABBITMQ_PORT", mqKV, "port", 5672)
		cfg.RabbitMQ.User = getStrWithEnv("RABBITMQ_USER", mqKV, "user", "guest")
		cfg.RabbitMQ.Password = getStrWithEnv("RABBITMQ_PASSWORD", mqKV, "password", "guest")
		cfg.RabbitMQ.VHost = getStrWithEnv("RABBITMQ_VHOST", mqKV, "vhost", "/")
	} else {
		cfg.RabbitMQ.Host = getEnv("RABBITMQ_HOST", "localhost")
		cfg.RabbitMQ.Port = getEnvInt("RABBITMQ_PORT", 5672)
		cfg.RabbitMQ.User = getEnv("RABBITMQ_USER", "guest")
		cfg.RabbitMQ.Password = getEnv("RABBITMQ_PASSWORD", "guest")
		cfg.RabbitMQ.VHost = getEnv("RABBITMQ_VHOST", "/")
	}

	// ws.yaml
	wsPath := filepath.Join(configDir, "ws.yaml")
	if wsKV, err := parseYAML(wsPath); err == nil {
		cfg.WebSocket.Port = getIntWithEnv("WS_PORT", wsKV, "port", 8080)
	} else {
		cfg.WebSocket.Port = getEnvInt("WS_PORT", 8080)
	}

	// jwt.yaml
	jwtPath := filepath.Join(configDir, "jwt.yaml")
	if jwtKV, err := parseYAML(jwtPath); err == nil {
		if sec, ok := jwtKV["jwt"]; ok {
			cfg.JWT.Secret = getStrWithEnvNested("JWT_SECRET", sec, "secret", "dev_secret")
			cfg.JWT.ExpiryMinutes = getIntWithEnvNested("JWT_EXPIRY_MINUTES", sec, "expiry_minutes", 60)
		} else {
			cfg.JWT.Secret = getStrWithEnv("JWT_SECRET", jwtKV, "secret", "dev_secret")
			cfg.JWT.ExpiryMinutes = getIntWithEnv("JWT_EXPIRY_MINUTES", jwtKV, "expiry_minutes", 60)
		}
	} else {
		cfg.JWT.Secret = getEnv("JWT_SECRET", "dev_secret")
		cfg.JWT.ExpiryMinutes = getEnvInt("JWT_EXPIRY_MINUTES", 60)
	}

	// tracking.yaml
	cfg.Tracking = DefaultTrackingConfig()
	trkPath := filepath.Join(configDir, "tracking.yaml")
	if trkKV, err := parseYAML(trkPath); err == nil {
		cfg.Tracking.BoardingRadiusMeters = getFloatWithEnv("TRACKING_BOARDING_RADIUS_M", trkKV, "boarding_radius_m", cfg.Tracking.BoardingRadiusMeters)
		cfg.Tracking.AlightingRadiusMeters = getFloatWithEnv("TRACKING_ALIGHTING_RADIUS_M", trkKV, "alighting_radius_m", cfg.Tracking.AlightingRadiusMeters)
		cfg.Tracking.DetectionSamples = getIntWithEnv("TRACKING_DETECTION_SAMPLES", trkKV, "detection_samples", cfg.Tracking.DetectionSamples)
		cfg.Tracking.OriginRadiusMeters = getFloatWithEnv("TRACKING_ORIGIN_RADIUS_M", trkKV, "origin_radius_m", cfg.Tracking.OriginRadiusMeters)
		cfg.Tracking.EarlyStartAllowance = getDurWithEnv("TRACKING_EARLY_START", trkKV, "early_start", cfg.Tracking.EarlyStartAllowance)
		cfg.Tracking.LocationTTL = getDurWithEnv("TRACKING_LOCATION_TTL", trkKV, "location_ttl", cfg.Tracking.LocationTTL)
		cfg.Tracking.PassengerIdleTTL = getDurWithEnv("TRACKING_PASSENGER_IDLE_TTL", trkKV, "passenger_idle_ttl", cfg.Tracking.PassengerIdleTTL)
		cfg.Tracking.CacheSweepInterval = getDurWithEnv("TRACKING_CACHE_SWEEP", trkKV, "cache_sweep", cfg.Tracking.CacheSweepInterval)
		cfg.Tracking.AutoCloseInterval = getDurWithEnv("TRACKING_AUTO_CLOSE", trkKV, "auto_close", cfg.Tracking.AutoCloseInterval)
		cfg.Tracking.AbandonAfter = getDurWithEnv("TRACKING_ABANDON_AFTER", trkKV, "abandon_after", cfg.Tracking.AbandonAfter)
		cfg.Tracking.GPSJumpMeters = getFloatWithEnv("TRACKING_GPS_JUMP_M", trkKV, "gps_jump_m", cfg.Tracking.GPSJumpMeters)
		cfg.Tracking.GPSJumpWindow = getDurWithEnv("TRACKING_GPS_JUMP_WINDOW", trkKV, "gps_jump_window", cfg.Tracking.GPSJumpWindow)
	}

	return cfg
}

// DefaultTrackingConfig — пороги по умолчанию
func DefaultTrackingConfig() TrackingConfig {
	return TrackingConfig{
		BoardingRadiusMeters:  25,
		AlightingRadiusMeters: 50,
		DetectionSamples:      3,
		OriginRadiusMeters:    50,
		EarlyStartAllowance:   10 * time.Minute,
		LocationTTL:           10 * time.Minute,
		PassengerIdleTTL:      10 * time.Minute,
		CacheSweepInterval:    10 * time.Minute,
		AutoCloseInterval:     time.Hour,
		AbandonAfter:          2 * time.Hour,
		GPSJumpMeters:         500,
		GPSJumpWindow:         time.Minute,
	}
}

// parseYAML — парсит простые YAML файлы без глубокой вложенности
// Формат: key: value (плоский) либо section: \n  key: value
func parseYAML(path string) (map[string]map[string]string, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	result := map[string]map[string]string{}
	section := ""

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Строка-секция: заканчивается на ':' и не содержит пробелов
		if strings.HasSuffix(line, ":") && !strings.Contains(line, " ") {
			section = strings.TrimSuffix(line, ":")
			if result[section] == nil {
				result[section] = map[string]string{}
			}
			continue
		}

		parts := strings.SplitN(line, ":", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		val := strings.TrimSpace(parts[1])
		val = strings.Trim(val, `"'`)

		if section != "" {
			if result[section] == nil {
				result[section] = map[string]string{}
			}
			result[section][key] = val
		} else {
			if result[""] == nil {
				result[""] = map[string]string{}
			}
			result[""][key] = val
		}
	}

	return result, sc.Err()
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getStrWithEnv(envKey string, yaml map[string]map[string]string, key, def string) string {
	if v := strings.TrimSpace(os.Getenv(envKey)); v != "" {
		return v
	}
	if val, ok := yaml[""][key]; ok && val != "" {
		return val
	}
	return def
}

func getIntWithEnv(envKey string, yaml map[string]map[string]string, key string, def int) int {
	if v := strings.TrimSpace(os.Getenv(envKey)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	if val, ok := yaml[""][key]; ok && val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return def
}

func getFloatWithEnv(envKey string, yaml map[string]map[string]string, key string, def float64) float64 {
	if v := strings.TrimSpace(os.Getenv(envKey)); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	if val, ok := yaml[""][key]; ok && val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return def
}

func getDurWithEnv(envKey string, yaml map[string]map[string]string, key string, def time.Duration) time.Duration {
	if v := strings.TrimSpace(os.Getenv(envKey)); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	if val, ok := yaml[""][key]; ok && val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return def
}

func getStrWithEnvNested(envKey string, section map[string]string, key, def string) string {
	if v := strings.TrimSpace(os.Getenv(envKey)); v != "" {
		return v
	}
	if val, ok := section[key]; ok && val != "" {
		return val
	}
	return def
}

func getIntWithEnvNested(envKey string, section map[string]string, key string, def int) int {
	if v := strings.TrimSpace(os.Getenv(envKey)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	if val, ok := section[key]; ok && val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return def
}

// DSN возвращает строку подключения к БД
func (c DBConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// AMQPURL возвращает URL подключения к RabbitMQ
func (c MQConfig) AMQPURL() string {
	return fmt.Sprintf(
		"amqp://%s:%s@%s:%d%s",
		c.User, c.Password, c.Host, c.Port, c.VHost,
	)
}
