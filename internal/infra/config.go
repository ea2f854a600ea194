package infra

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// APIV1Prefix — общий префикс публичного API.
const APIV1Prefix = "/api/v1"

// Config — корневая структура конфигурации сервиса токенов.
type Config struct {
	App         AppConfig         `mapstructure:"app"`
	Server      ServerConfig      `mapstructure:"server"`
	Auth        AuthConfig        `mapstructure:"auth"`
	UserService UserServiceConfig `mapstructure:"user_service"`
	Logger      LoggerConfig      `mapstructure:"logger"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
}

// AppConfig — метаданные, которые отдаются в /, /health и /info.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	Debug       bool   `mapstructure:"debug"`
}

// ServerConfig описывает настройки HTTP-сервера.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
}

// Addr возвращает адрес для net.Listen.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// AuthConfig — секрет и параметры подписи JWT. Алгоритм фиксирован на весь деплой.
type AuthConfig struct {
	JWTSecret        string `mapstructure:"jwt_secret"`
	JWTAlgorithm     string `mapstructure:"jwt_algorithm"`
	JWTExpireMinutes int    `mapstructure:"jwt_expire_minutes"`
}

// TokenTTL — время жизни выдаваемых токенов.
func (a AuthConfig) TokenTTL() time.Duration {
	return time.Duration(a.JWTExpireMinutes) * time.Minute
}

// UserServiceConfig описывает апстрим (сервис управления пользователями).
type UserServiceConfig struct {
	URL            string `mapstructure:"url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`

	// Контракт логина выбирается на деплой: путь и имя поля с логином.
	LoginPath  string `mapstructure:"login_path"`
	LoginField string `mapstructure:"login_field"` // email | username
	UsersPath  string `mapstructure:"users_path"`

	// Настройки Circuit Breaker для исходящих вызовов
	CBMaxRequests         uint32        `mapstructure:"cb_max_requests"`
	CBInterval            time.Duration `mapstructure:"cb_interval"`
	CBTimeout             time.Duration `mapstructure:"cb_timeout"`
	CBConsecutiveFailures uint32        `mapstructure:"cb_consecutive_failures"`
}

// Timeout — таймаут одного исходящего вызова.
func (u UserServiceConfig) Timeout() time.Duration {
	return time.Duration(u.TimeoutSeconds) * time.Second
}

// LoggerConfig настраивает поведение zap логгера.
type LoggerConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, console
}

// MetricsConfig — отдельный листенер для Prometheus. Пустой Addr отключает его.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// legacyEnv — плоские имена переменных окружения, которые уже используются в деплоях.
var legacyEnv = map[string]string{
	"auth.jwt_secret":              "JWT_SECRET",
	"auth.jwt_algorithm":           "JWT_ALGORITHM",
	"auth.jwt_expire_minutes":      "JWT_EXPIRE_MINUTES",
	"user_service.url":             "USER_SERVICE_URL",
	"user_service.timeout_seconds": "USER_SERVICE_TIMEOUT",
	"server.host":                  "HOST",
	"server.port":                  "PORT",
	"server.cors_origins":          "CORS_ORIGINS",
	"logger.level":                 "LOG_LEVEL",
	"app.environment":              "ENVIRONMENT",
	"app.debug":                    "DEBUG",
	"metrics.addr":                 "METRICS_ADDR",
}

// LoadConfig инициализирует конфигурацию, объединяя значения из файла и ENV.
func LoadConfig() (*Config, error) {
	v := viper.New()

	// 1. Настройка поиска файла
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")

	// 2. ENV: AUTH_JWT_SECRET перекроет auth.jwt_secret
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for key, env := range legacyEnv {
		nested := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, nested, env); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", env, err)
		}
	}

	// 3. Дефолты
	setDefaults(v)

	// 4. Чтение файла
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Если файла нет — работаем на ENV и дефолтах
	}

	// 5. Маппинг в структуру
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}
	cfg.Server.CORSOrigins = splitOrigins(cfg.Server.CORSOrigins)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "Auth Tokens Service")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.debug", false)

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 5*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("server.shutdown_timeout", 5*time.Second)
	v.SetDefault("server.cors_origins", []string{"*"})

	v.SetDefault("auth.jwt_algorithm", "HS256")
	v.SetDefault("auth.jwt_expire_minutes", 60*24)

	v.SetDefault("user_service.url", "http://localhost:8001")
	v.SetDefault("user_service.timeout_seconds", 30)
	v.SetDefault("user_service.login_path", "/api/v1/auth/login")
	v.SetDefault("user_service.login_field", "email")
	v.SetDefault("user_service.users_path", "/internal/v1/users")
	v.SetDefault("user_service.cb_max_requests", 3)
	v.SetDefault("user_service.cb_interval", 5*time.Second)
	v.SetDefault("user_service.cb_timeout", 30*time.Second)
	v.SetDefault("user_service.cb_consecutive_failures", 0) // 0 — предохранитель выключен

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")

	v.SetDefault("metrics.addr", ":9090")
}

// splitOrigins разбирает "a, b" из ENV, когда viper отдал одну строку.
func splitOrigins(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		for _, o := range strings.Split(item, ",") {
			if o = strings.TrimSpace(o); o != "" {
				out = append(out, o)
			}
		}
	}
	return out
}

// Validate проверяет, что конфигурация пригодна для старта.
func (c *Config) Validate() error {
	switch {
	case c.Auth.JWTSecret == "":
		return errors.New("config: auth.jwt_secret (JWT_SECRET) is required")
	case !isHMACAlgorithm(c.Auth.JWTAlgorithm):
		return fmt.Errorf("config: unsupported jwt algorithm %q", c.Auth.JWTAlgorithm)
	case c.Auth.JWTExpireMinutes <= 0:
		return errors.New("config: auth.jwt_expire_minutes must be positive")
	case c.UserService.TimeoutSeconds <= 0:
		return errors.New("config: user_service.timeout_seconds must be positive")
	case c.UserService.LoginField != "email" && c.UserService.LoginField != "username":
		return fmt.Errorf("config: user_service.login_field must be email or username, got %q", c.UserService.LoginField)
	}

	u, err := url.Parse(c.UserService.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("config: invalid user_service.url %q", c.UserService.URL)
	}
	return nil
}

func isHMACAlgorithm(alg string) bool {
	switch alg {
	case "HS256", "HS384", "HS512":
		return true
	}
	return false
}
