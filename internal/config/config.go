package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	ServerURL     string `json:"server_url" yaml:"server_url"`
	DBPath        string `json:"db_path" yaml:"db_path"`
	AttachmentDir string `json:"attachment_dir" yaml:"attachment_dir"`
	ServeEnabled  bool   `json:"serve_enabled" yaml:"serve_enabled"`
	APIPort       int    `json:"api_port" yaml:"api_port"`
	WebEnabled    bool   `json:"web_enabled" yaml:"web_enabled"`
	WebPort       int    `json:"web_port" yaml:"web_port"`
	LogPath       string `json:"log_path" yaml:"log_path"`
	LogLevel      string `json:"log_level" yaml:"log_level"`
	// RequestTimeout is in seconds.
	RequestTimeout int `json:"request_timeout" yaml:"request_timeout"`
}

func Default() Config {
	return Config{
		ServerURL:      "http://localhost:5000",
		APIPort:        5000,
		WebPort:        8080,
		LogLevel:       "info",
		RequestTimeout: 10,
	}
}

func (c Config) Timeout() time.Duration {
	if c.RequestTimeout <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.RequestTimeout) * time.Second
}

func DefaultConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "taskdeck", "config.json"), nil
}

func EnsureDir(path string) error {
	dir := filepath.Dir(path)
	return os.MkdirAll(dir, 0o755)
}

func Load(path string) (Config, error) {
	config := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return config, nil
		}
		return Config{}, err
	}

	if isYAML(path) {
		if err := yaml.Unmarshal(data, &config); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
		return config, nil
	}

	if err := json.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return config, nil
}

func Save(path string, cfg Config) error {
	if err := EnsureDir(path); err != nil {
		return err
	}

	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(cfg)
	} else {
		data, err = json.MarshalIndent(cfg, "", "  ")
	}
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o644)
}

// ApplyEnv loads envFile (missing files are ignored) and overrides cfg with
// any TASKDECK_* variables that are set.
func ApplyEnv(cfg Config, envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return cfg, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	if value, ok := os.LookupEnv("TASKDECK_SERVER_URL"); ok {
		cfg.ServerURL = value
	}
	if value, ok := os.LookupEnv("TASKDECK_DB_PATH"); ok {
		cfg.DBPath = value
	}
	if value, ok := os.LookupEnv("TASKDECK_ATTACHMENT_DIR"); ok {
		cfg.AttachmentDir = value
	}
	if value, ok := os.LookupEnv("TASKDECK_LOG_PATH"); ok {
		cfg.LogPath = value
	}
	if value, ok := os.LookupEnv("TASKDECK_LOG_LEVEL"); ok {
		cfg.LogLevel = value
	}

	ints := map[string]*int{
		"TASKDECK_API_PORT":        &cfg.APIPort,
		"TASKDECK_WEB_PORT":        &cfg.WebPort,
		"TASKDECK_REQUEST_TIMEOUT": &cfg.RequestTimeout,
	}
	for key, target := range ints {
		value, ok := os.LookupEnv(key)
		if !ok {
			continue
		}
		parsed, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return cfg, fmt.Errorf("parse %s: %w", key, err)
		}
		*target = parsed
	}

	return cfg, nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}
