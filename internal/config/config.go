package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server        ServerConfig        `yaml:"server" json:"server"`
	Video         VideoConfig         `yaml:"video" json:"video"`
	Recognition   RecognitionConfig   `yaml:"recognition" json:"recognition"`
	Database      DatabaseConfig      `yaml:"database" json:"database"`
	Storage       StorageConfig       `yaml:"storage" json:"storage"`
	Notifications NotificationsConfig `yaml:"notifications" json:"notifications"`
	Logging       LoggingConfig       `yaml:"logging" json:"logging"`
}

type ServerConfig struct {
	Port        int    `yaml:"port" json:"port"`
	MetricsPort int    `yaml:"metrics_port" json:"metrics_port"`
	APIKey      string `yaml:"api_key" json:"api_key,omitempty"`
}

type VideoConfig struct {
	Backend  string `yaml:"backend" json:"backend"`
	URL      string `yaml:"url" json:"url,omitempty"`
	IP       string `yaml:"ip" json:"ip"`
	Port     int    `yaml:"port" json:"port"`
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password,omitempty"`
	Channel  int    `yaml:"channel" json:"channel"`
	// Subtype 0 is the main stream, 1 the sub stream.
	Subtype                int `yaml:"subtype" json:"subtype"`
	MaxReconnectAttempts   int `yaml:"max_reconnect_attempts" json:"max_reconnect_attempts"`
	ReconnectDelaySeconds  int `yaml:"reconnect_delay_seconds" json:"reconnect_delay_seconds"`
	MaxConsecutiveFailures int `yaml:"max_consecutive_failures" json:"max_consecutive_failures"`
}

func (v VideoConfig) ReconnectDelay() time.Duration {
	return time.Duration(v.ReconnectDelaySeconds) * time.Second
}

type RecognitionConfig struct {
	Backend                string  `yaml:"backend" json:"backend"`
	ModelsDir              string  `yaml:"models_dir" json:"models_dir"`
	ONNXLibPath            string  `yaml:"onnx_lib_path" json:"onnx_lib_path"`
	DetectionThreshold     float64 `yaml:"detection_threshold" json:"detection_threshold"`
	Tolerance              float64 `yaml:"tolerance" json:"tolerance"`
	ProcessEveryNFrames    int     `yaml:"process_every_n_frames" json:"process_every_n_frames"`
	Scale                  float64 `yaml:"scale" json:"scale"`
	KnownCooldownSeconds   int     `yaml:"known_cooldown_seconds" json:"known_cooldown_seconds"`
	UnknownCooldownSeconds int     `yaml:"unknown_cooldown_seconds" json:"unknown_cooldown_seconds"`
	ReloadIntervalSeconds  int     `yaml:"reload_interval_seconds" json:"reload_interval_seconds"`
}

func (r RecognitionConfig) KnownCooldown() time.Duration {
	return time.Duration(r.KnownCooldownSeconds) * time.Second
}

func (r RecognitionConfig) UnknownCooldown() time.Duration {
	return time.Duration(r.UnknownCooldownSeconds) * time.Second
}

func (r RecognitionConfig) ReloadInterval() time.Duration {
	return time.Duration(r.ReloadIntervalSeconds) * time.Second
}

type DatabaseConfig struct {
	Driver   string `yaml:"driver" json:"driver"`
	Path     string `yaml:"path" json:"path"`
	Host     string `yaml:"host" json:"host,omitempty"`
	Port     int    `yaml:"port" json:"port,omitempty"`
	Name     string `yaml:"name" json:"name,omitempty"`
	User     string `yaml:"user" json:"user,omitempty"`
	Password string `yaml:"password" json:"password,omitempty"`
	MaxConns int    `yaml:"max_conns" json:"max_conns,omitempty"`
}

func (d DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:     "/" + d.Name,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

type StorageConfig struct {
	Backend      string      `yaml:"backend" json:"backend"`
	ImagesDir    string      `yaml:"images_dir" json:"images_dir"`
	FeedPath     string      `yaml:"feed_path" json:"feed_path"`
	FeedCapacity int         `yaml:"feed_capacity" json:"feed_capacity"`
	MinIO        MinIOConfig `yaml:"minio" json:"minio"`
}

type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint" json:"endpoint"`
	AccessKey string `yaml:"access_key" json:"access_key"`
	SecretKey string `yaml:"secret_key" json:"secret_key,omitempty"`
	Bucket    string `yaml:"bucket" json:"bucket"`
	UseSSL    bool   `yaml:"use_ssl" json:"use_ssl"`
}

type NotificationsConfig struct {
	Enabled        bool           `yaml:"enabled" json:"enabled"`
	TimeoutSeconds int            `yaml:"timeout_seconds" json:"timeout_seconds"`
	Email          EmailConfig    `yaml:"email" json:"email"`
	Telegram       TelegramConfig `yaml:"telegram" json:"telegram"`
	Shoutrrr       ShoutrrrConfig `yaml:"shoutrrr" json:"shoutrrr"`
	NATS           NATSConfig     `yaml:"nats" json:"nats"`
	MQTT           MQTTConfig     `yaml:"mqtt" json:"mqtt"`
}

func (n NotificationsConfig) Timeout() time.Duration {
	return time.Duration(n.TimeoutSeconds) * time.Second
}

type EmailConfig struct {
	Enabled        bool   `yaml:"enabled" json:"enabled"`
	SendGridAPIKey string `yaml:"sendgrid_api_key" json:"sendgrid_api_key,omitempty"`
	FromEmail      string `yaml:"from_email" json:"from_email"`
	ToEmail        string `yaml:"to_email" json:"to_email"`
}

type TelegramConfig struct {
	Enabled  bool   `yaml:"enabled" json:"enabled"`
	BotToken string `yaml:"bot_token" json:"bot_token,omitempty"`
	ChatID   string `yaml:"chat_id" json:"chat_id"`
}

type ShoutrrrConfig struct {
	Enabled bool     `yaml:"enabled" json:"enabled"`
	URLs    []string `yaml:"urls" json:"urls,omitempty"`
}

type NATSConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	URL     string `yaml:"url" json:"url"`
}

type MQTTConfig struct {
	Enabled  bool   `yaml:"enabled" json:"enabled"`
	Broker   string `yaml:"broker" json:"broker"`
	Topic    string `yaml:"topic" json:"topic"`
	ClientID string `yaml:"client_id" json:"client_id"`
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password,omitempty"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

// Load reads config from YAML file and applies environment variable overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	applyEnvOverrides(cfg)
	setDefaults(cfg)

	return cfg, nil
}

// Parse decodes a YAML (or JSON, which is valid YAML) document without
// applying env overrides or defaults.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Save writes cfg to path atomically. The previous document is replaced in full.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	tmp := path + "." + uuid.NewString() + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace config: %w", err)
	}
	return nil
}

func setDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.MetricsPort == 0 {
		cfg.Server.MetricsPort = 8082
	}

	if cfg.Video.Backend == "" {
		cfg.Video.Backend = "ffmpeg"
	}
	if cfg.Video.Port == 0 {
		cfg.Video.Port = 554
	}
	if cfg.Video.Username == "" {
		cfg.Video.Username = "admin"
	}
	if cfg.Video.Channel == 0 {
		cfg.Video.Channel = 1
	}
	if cfg.Video.MaxReconnectAttempts == 0 {
		cfg.Video.MaxReconnectAttempts = 5
	}
	if cfg.Video.ReconnectDelaySeconds == 0 {
		cfg.Video.ReconnectDelaySeconds = 3
	}

	if cfg.Recognition.Backend == "" {
		cfg.Recognition.Backend = "onnx"
	}
	if cfg.Recognition.ModelsDir == "" {
		cfg.Recognition.ModelsDir = "models"
	}
	if cfg.Recognition.DetectionThreshold == 0 {
		cfg.Recognition.DetectionThreshold = 0.5
	}
	if cfg.Recognition.Tolerance == 0 {
		// dlib descriptors and normalized ArcFace vectors live on different scales.
		if cfg.Recognition.Backend == "dlib" {
			cfg.Recognition.Tolerance = 0.6
		} else {
			cfg.Recognition.Tolerance = 1.0
		}
	}
	if cfg.Recognition.ProcessEveryNFrames == 0 {
		cfg.Recognition.ProcessEveryNFrames = 6
	}
	if cfg.Recognition.Scale == 0 {
		cfg.Recognition.Scale = 0.25
	}
	if cfg.Recognition.KnownCooldownSeconds == 0 {
		cfg.Recognition.KnownCooldownSeconds = 300
	}
	if cfg.Recognition.UnknownCooldownSeconds == 0 {
		cfg.Recognition.UnknownCooldownSeconds = 60
	}
	if cfg.Recognition.ReloadIntervalSeconds == 0 {
		cfg.Recognition.ReloadIntervalSeconds = 30
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "data/faces.db"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = 10
	}

	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = "disk"
	}
	if cfg.Storage.ImagesDir == "" {
		cfg.Storage.ImagesDir = "data/images"
	}
	if cfg.Storage.FeedPath == "" {
		cfg.Storage.FeedPath = "data/notifications.json"
	}
	if cfg.Storage.FeedCapacity == 0 {
		cfg.Storage.FeedCapacity = 100
	}
	if cfg.Storage.MinIO.Bucket == "" {
		cfg.Storage.MinIO.Bucket = "facewatch"
	}

	if cfg.Notifications.TimeoutSeconds == 0 {
		cfg.Notifications.TimeoutSeconds = 10
	}
	if cfg.Notifications.MQTT.Topic == "" {
		cfg.Notifications.MQTT.Topic = "facewatch/notifications"
	}
	if cfg.Notifications.MQTT.ClientID == "" {
		cfg.Notifications.MQTT.ClientID = "facewatch-monitor"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("FACEWATCH_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("FACEWATCH_API_KEY"); v != "" {
		cfg.Server.APIKey = v
	}
	if v := os.Getenv("FACEWATCH_VIDEO_URL"); v != "" {
		cfg.Video.URL = v
	}
	if v := os.Getenv("FACEWATCH_DVR_IP"); v != "" {
		cfg.Video.IP = v
	}
	if v := os.Getenv("FACEWATCH_DVR_USERNAME"); v != "" {
		cfg.Video.Username = v
	}
	if v := os.Getenv("FACEWATCH_DVR_PASSWORD"); v != "" {
		cfg.Video.Password = v
	}
	if v := os.Getenv("FACEWATCH_MODELS_DIR"); v != "" {
		cfg.Recognition.ModelsDir = v
	}
	if v := os.Getenv("FACEWATCH_TOLERANCE"); v != "" {
		if t, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Recognition.Tolerance = t
		}
	}
	if v := os.Getenv("FACEWATCH_DB_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("FACEWATCH_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("FACEWATCH_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("FACEWATCH_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("FACEWATCH_MINIO_SECRET_KEY"); v != "" {
		cfg.Storage.MinIO.SecretKey = v
	}
	if v := os.Getenv("FACEWATCH_SENDGRID_API_KEY"); v != "" {
		cfg.Notifications.Email.SendGridAPIKey = v
	}
	if v := os.Getenv("FACEWATCH_TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Notifications.Telegram.BotToken = v
	}
	if v := os.Getenv("FACEWATCH_SHOUTRRR_URLS"); v != "" {
		cfg.Notifications.Shoutrrr.URLs = strings.Split(v, ",")
	}
	if v := os.Getenv("FACEWATCH_NATS_URL"); v != "" {
		cfg.Notifications.NATS.URL = v
	}
	if v := os.Getenv("FACEWATCH_MQTT_PASSWORD"); v != "" {
		cfg.Notifications.MQTT.Password = v
	}
	if v := os.Getenv("FACEWATCH_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}
