package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigPath is used when --config is not provided.
	DefaultConfigPath = "config.yml"

	defaultPort        = 2480
	defaultEnv         = "development"
	defaultDBHost      = "127.0.0.1"
	defaultDBPort      = 3306
	defaultDBUser      = "root"
	defaultDBPassword  = "password"
	defaultDBName      = "contentkit"
	defaultDBCharset   = "utf8mb4"
	defaultDBLoc       = "Local"
	defaultIDPrefix    = "ck_id_"
	defaultAttPrefix   = "ck_attachment_"
	defaultFeaturedKey = "_featured_image"
	defaultLogTable    = "import_logs"
)

// AppConfig holds runtime startup configuration loaded from YAML.
type AppConfig struct {
	Port           int            `yaml:"port"`
	Env            string         `yaml:"env"` // "development" | "production"
	Database       DatabaseConfig `yaml:"database"`
	RedisURL       string         `yaml:"redis_url"`
	AllowedOrigins []string       `yaml:"allowed_origins"`
	Import         ImportConfig   `yaml:"import"`
	Locale         LocaleConfig   `yaml:"locale"`
	Storage        StorageConfig  `yaml:"storage"`
}

// DatabaseConfig describes the MySQL connection.
type DatabaseConfig struct {
	DSN      string `yaml:"dsn"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	Charset  string `yaml:"charset"`
	Loc      string `yaml:"loc"`
}

// ImportConfig carries the importer-specific knobs. It is constructed once
// at startup and passed by reference into every component that needs it.
type ImportConfig struct {
	IDPrefix         string   `yaml:"id_prefix"`
	AttachmentPrefix string   `yaml:"attachment_prefix"`
	FeaturedMetaKey  string   `yaml:"featured_meta_key"`
	LogTable         string   `yaml:"log_table"`
	HiddenStatus     string   `yaml:"hidden_status"`
	TrashStatus      string   `yaml:"trash_status"`
	LogErrors        bool     `yaml:"log_errors"`
	Statuses         []string `yaml:"statuses"`
	Types            []string `yaml:"types"`
	Taxonomies       []string `yaml:"taxonomies"`
	CommentPolicies  []string `yaml:"comment_policies"`
}

// LocaleConfig selects the translation linking provider. Selection happens
// once at startup; nothing detects providers at call time.
type LocaleConfig struct {
	Provider  string   `yaml:"provider"` // "translations" | "none"
	Languages []string `yaml:"languages"`
}

// StorageConfig selects where fetched attachment binaries land.
type StorageConfig struct {
	Provider  string   `yaml:"provider"` // "local" | "s3"
	StaticDir string   `yaml:"static_dir"`
	S3        S3Config `yaml:"s3"`
}

// S3Config holds credentials for an S3-compatible object store.
type S3Config struct {
	Endpoint        string `yaml:"endpoint"`
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	CustomDomain    string `yaml:"custom_domain"`
	PathStyleAccess bool   `yaml:"path_style_access"`
}

// Load reads and validates the YAML config file at path. A missing file is
// not an error; defaults apply.
func Load(configPath string) (*AppConfig, error) {
	path := strings.TrimSpace(configPath)
	if path == "" {
		path = DefaultConfigPath
	}

	cfg := defaultAppConfig()

	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &cfg, nil
		}
		return nil, fmt.Errorf("read config file %q: %w", path, err)
	}

	decoder := yaml.NewDecoder(bytes.NewReader(content))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse config file %q: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config file %q: %w", path, err)
	}
	return &cfg, nil
}

func defaultAppConfig() AppConfig {
	return AppConfig{
		Port: defaultPort,
		Env:  defaultEnv,
		Database: DatabaseConfig{
			Host:     defaultDBHost,
			Port:     defaultDBPort,
			User:     defaultDBUser,
			Password: defaultDBPassword,
			Name:     defaultDBName,
			Charset:  defaultDBCharset,
			Loc:      defaultDBLoc,
		},
		Import: ImportConfig{
			IDPrefix:         defaultIDPrefix,
			AttachmentPrefix: defaultAttPrefix,
			FeaturedMetaKey:  defaultFeaturedKey,
			LogTable:         defaultLogTable,
			HiddenStatus:     "draft",
			TrashStatus:      "trash",
			Statuses:         []string{"publish", "draft", "pending", "private", "future", "trash"},
			Types:            []string{"post", "page", "attachment"},
			Taxonomies:       []string{"category", "tag"},
			CommentPolicies:  []string{"open", "closed"},
		},
		Locale: LocaleConfig{
			Provider: "none",
		},
		Storage: StorageConfig{
			Provider:  "local",
			StaticDir: "static",
		},
	}
}

func (c *AppConfig) validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d, expected 1-65535", c.Port)
	}
	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("invalid database.port %d, expected 1-65535", c.Database.Port)
	}
	if strings.TrimSpace(c.Import.IDPrefix) == "" {
		return fmt.Errorf("import.id_prefix must not be empty")
	}
	if strings.TrimSpace(c.Import.AttachmentPrefix) == "" {
		return fmt.Errorf("import.attachment_prefix must not be empty")
	}
	if c.Import.IDPrefix == c.Import.AttachmentPrefix {
		return fmt.Errorf("import.id_prefix and import.attachment_prefix must differ")
	}
	if strings.TrimSpace(c.Import.LogTable) == "" {
		return fmt.Errorf("import.log_table must not be empty")
	}
	switch c.Locale.Provider {
	case "", "none", "translations":
	default:
		return fmt.Errorf("unknown locale.provider %q", c.Locale.Provider)
	}
	switch c.Storage.Provider {
	case "", "local":
	case "s3":
		s3 := c.Storage.S3
		if s3.Bucket == "" || s3.Region == "" || s3.AccessKeyID == "" || s3.SecretAccessKey == "" {
			return fmt.Errorf("storage.s3 requires bucket, region, access_key_id and secret_access_key")
		}
	default:
		return fmt.Errorf("unknown storage.provider %q", c.Storage.Provider)
	}
	return nil
}

// IsDev reports whether the app runs in development mode.
func (c *AppConfig) IsDev() bool {
	return strings.EqualFold(strings.TrimSpace(c.Env), "development")
}
