package config

import (
	"fmt"

	"github.com/spf13/viper"
)

type Config struct {
	Server  ServerConfig  `mapstructure:"Server"`
	Storage StorageConfig `mapstructure:"Storage"`
	Auth    AuthConfig    `mapstructure:"Auth"`
	Editor  EditorConfig  `mapstructure:"Editor"`
}

type ServerConfig struct {
	Port    string `mapstructure:"Port"`
	BaseURL string `mapstructure:"BaseURL"`
}

// StorageConfig описывает, где живут метаданные и файлы изображений.
// Backend выбирает реализацию хранилища файлов: local или s3.
type StorageConfig struct {
	DataDir   string `mapstructure:"DataDir"`
	AssetsDir string `mapstructure:"AssetsDir"`
	Backend   string `mapstructure:"Backend"`
}

type AuthConfig struct {
	AccessCode string `mapstructure:"AccessCode"`
}

// EditorConfig — параметры внешнего сервиса правки изображений
type EditorConfig struct {
	Endpoint       string `mapstructure:"Endpoint"`
	APIKey         string `mapstructure:"APIKey"`
	TimeoutSeconds int    `mapstructure:"TimeoutSeconds"`
}

func NewConfig(path string) (*Config, error) {
	v := viper.New()

	// Устанавливаем файл конфигурации
	v.SetConfigFile(path)

	// Привязываем переменные окружения
	v.BindEnv("Server.Port", "HTTP_PORT")
	v.BindEnv("Server.BaseURL", "BASE_URL")
	v.BindEnv("Storage.DataDir", "DATA_DIR")
	v.BindEnv("Storage.AssetsDir", "ASSETS_DIR")
	v.BindEnv("Storage.Backend", "STORAGE_BACKEND")
	v.BindEnv("Auth.AccessCode", "ACCESS_CODE")
	v.BindEnv("Editor.Endpoint", "EDITOR_ENDPOINT")
	v.BindEnv("Editor.APIKey", "EDITOR_API_KEY")
	v.BindEnv("Editor.TimeoutSeconds", "EDITOR_TIMEOUT_SECONDS")

	// Читаем конфигурацию из файла
	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("Warning: using only environment variables: %v\n", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Значения по умолчанию
	if cfg.Server.Port == "" {
		cfg.Server.Port = "8080"
	}
	if cfg.Server.BaseURL == "" {
		cfg.Server.BaseURL = fmt.Sprintf("http://localhost:%s", cfg.Server.Port)
	}
	if cfg.Storage.DataDir == "" {
		cfg.Storage.DataDir = "./data"
	}
	if cfg.Storage.AssetsDir == "" {
		cfg.Storage.AssetsDir = "./data/assets"
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = "local"
	}
	if cfg.Storage.Backend != "local" && cfg.Storage.Backend != "s3" {
		return nil, fmt.Errorf("unknown storage backend %q, expected local or s3", cfg.Storage.Backend)
	}
	if cfg.Editor.TimeoutSeconds <= 0 {
		cfg.Editor.TimeoutSeconds = 120
	}

	return &cfg, nil
}
