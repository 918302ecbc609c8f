package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config centraliza a configuração carregada do ambiente.
type Config struct {
	Port                int
	GRPCPort            int
	DBDSN               string
	RedisURL            string
	JWTAccessTTL        time.Duration
	JWTRefreshTTL       time.Duration
	JWTSecret           string
	AllowOrigins        []string
	RateLimitPublic     RateLimitConfig
	RateLimitAuth       RateLimitConfig
	InstitutionalDomain string
	TotemAPIKey         string
	TotemTokenTTL       time.Duration
	CheckinSimulacao    bool
	Storage             StorageConfig
	Notify              NotifyConfig
}

// RateLimitConfig representa limites simples para throttling.
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// StorageConfig aponta o bucket S3/R2 dos anexos. Endpoint vazio desativa o upload.
type StorageConfig struct {
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	PublicBaseURL   string
}

// Enabled indica se há bucket configurado.
func (s StorageConfig) Enabled() bool {
	return s.Endpoint != "" && s.Bucket != "" && s.AccessKeyID != "" && s.SecretAccessKey != ""
}

// NotifyConfig configura a fila e os canais de notificação.
type NotifyConfig struct {
	Workers         int
	SlackWebhookURL string
	SMTPHost        string
	SMTPPort        int
	SMTPUser        string
	SMTPPassword    string
	SMTPFrom        string
}

// SMTPEnabled indica se o envio de e-mail está configurado.
func (n NotifyConfig) SMTPEnabled() bool {
	return n.SMTPHost != "" && n.SMTPFrom != ""
}

// Load carrega variáveis de ambiente e aplica defaults seguros.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	port, err := parseIntEnv("PORT", 8080)
	if err != nil || port <= 0 {
		return nil, errors.New("PORT inválida")
	}
	cfg.Port = port

	grpcPort, err := parseIntEnv("GRPC_PORT", 9090)
	if err != nil || grpcPort < 0 {
		return nil, errors.New("GRPC_PORT inválida")
	}
	cfg.GRPCPort = grpcPort

	cfg.DBDSN = getEnv("DB_DSN", "")
	if cfg.DBDSN == "" {
		return nil, errors.New("DB_DSN obrigatório")
	}

	cfg.RedisURL = getEnv("REDIS_URL", "")
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL obrigatório")
	}

	cfg.JWTSecret = strings.TrimSpace(getEnv("JWT_SECRET", ""))
	if len(cfg.JWTSecret) < 32 {
		return nil, errors.New("JWT_SECRET deve ter pelo menos 32 caracteres")
	}

	accessTTL, err := parseDurationEnv("JWT_ACCESS_TTL", 15*time.Minute)
	if err != nil {
		return nil, err
	}
	cfg.JWTAccessTTL = accessTTL

	refreshTTL, err := parseDurationEnv("JWT_REFRESH_TTL", 30*24*time.Hour)
	if err != nil {
		return nil, err
	}
	cfg.JWTRefreshTTL = refreshTTL

	cfg.AllowOrigins = splitList(getEnv("ALLOW_ORIGINS", ""))

	cfg.RateLimitPublic = RateLimitConfig{RequestsPerSecond: 10, Burst: 20}
	cfg.RateLimitAuth = RateLimitConfig{RequestsPerSecond: 10, Burst: 40}

	cfg.InstitutionalDomain = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(getEnv("INSTITUTIONAL_DOMAIN", "ifce.edu.br")), "@"))
	if cfg.InstitutionalDomain == "" {
		return nil, errors.New("INSTITUTIONAL_DOMAIN inválido")
	}

	cfg.TotemAPIKey = strings.TrimSpace(getEnv("TOTEM_API_KEY", ""))
	totemTTL, err := parseDurationEnv("TOTEM_TOKEN_TTL", 60*time.Second)
	if err != nil {
		return nil, err
	}
	cfg.TotemTokenTTL = totemTTL

	simulacao, err := parseBoolEnv("CHECKIN_SIMULACAO", false)
	if err != nil {
		return nil, err
	}
	cfg.CheckinSimulacao = simulacao

	cfg.Storage = StorageConfig{
		Endpoint:        strings.TrimRight(strings.TrimSpace(getEnv("STORAGE_ENDPOINT", "")), "/"),
		Region:          getEnv("STORAGE_REGION", "auto"),
		Bucket:          strings.TrimSpace(getEnv("STORAGE_BUCKET", "")),
		AccessKeyID:     strings.TrimSpace(getEnv("STORAGE_ACCESS_KEY_ID", "")),
		SecretAccessKey: strings.TrimSpace(getEnv("STORAGE_SECRET_ACCESS_KEY", "")),
		PublicBaseURL:   strings.TrimRight(strings.TrimSpace(getEnv("STORAGE_PUBLIC_BASE_URL", "")), "/"),
	}

	workers, err := parseIntEnv("NOTIFY_WORKERS", 2)
	if err != nil || workers < 0 {
		return nil, errors.New("NOTIFY_WORKERS inválido")
	}
	smtpPort, err := parseIntEnv("SMTP_PORT", 587)
	if err != nil || smtpPort <= 0 {
		return nil, errors.New("SMTP_PORT inválida")
	}
	cfg.Notify = NotifyConfig{
		Workers:         workers,
		SlackWebhookURL: strings.TrimSpace(getEnv("SLACK_WEBHOOK_URL", "")),
		SMTPHost:        strings.TrimSpace(getEnv("SMTP_HOST", "")),
		SMTPPort:        smtpPort,
		SMTPUser:        getEnv("SMTP_USER", ""),
		SMTPPassword:    getEnv("SMTP_PASSWORD", ""),
		SMTPFrom:        strings.TrimSpace(getEnv("SMTP_FROM", "")),
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return def
}

func parseIntEnv(key string, def int) (int, error) {
	val := strings.TrimSpace(getEnv(key, ""))
	if val == "" {
		return def, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, errors.New(key + " inválido")
	}
	return n, nil
}

func parseBoolEnv(key string, def bool) (bool, error) {
	val := strings.TrimSpace(getEnv(key, ""))
	if val == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, errors.New(key + " inválido")
	}
	return b, nil
}

func parseDurationEnv(key string, def time.Duration) (time.Duration, error) {
	val := getEnv(key, "")
	if val == "" {
		return def, nil
	}
	dur, err := time.ParseDuration(val)
	if err != nil {
		return 0, errors.New(key + " inválido")
	}
	return dur, nil
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}
