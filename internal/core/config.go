package core

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/jo-hoe/designcase/internal/backend/commands"
	"github.com/jo-hoe/designcase/internal/backend/commandstructure"
	"github.com/jo-hoe/designcase/internal/backend/thumbnail"
	"github.com/jo-hoe/designcase/internal/backend/validation"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// CommandConfig represents a generic command configuration
type CommandConfig = commandstructure.CommandConfig

type Database struct {
	Type             string `yaml:"type"`
	ConnectionString string `yaml:"connectionString"`
}

type Storage struct {
	Type          string `yaml:"type"`
	Bucket        string `yaml:"bucket"`
	Endpoint      string `yaml:"endpoint"`
	Region        string `yaml:"region"`
	AccessKey     string `yaml:"accessKey"`
	SecretKey     string `yaml:"secretKey"`
	UseSSL        bool   `yaml:"useSSL"`
	UsePathStyle  bool   `yaml:"usePathStyle"`
	PublicBaseURL string `yaml:"publicBaseUrl"`
	BaseDir       string `yaml:"baseDir"`
	SigningKey    string `yaml:"signingKey"`
}

type Cache struct {
	Type     string `yaml:"type"`
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Size     int    `yaml:"size"`
}

type Auth struct {
	JWTSecret  string `yaml:"jwtSecret"`
	UserHeader string `yaml:"userHeader"`
}

type Thumbnail struct {
	Commands []CommandConfig `yaml:"commands"`
}

type Optimizer struct {
	PNGCompression string `yaml:"pngCompression"`
	JPEGQuality    int    `yaml:"jpegQuality"`
	WebPQuality    int    `yaml:"webpQuality"`
	MaxPixels      int64  `yaml:"maxPixels"`
}

type Telemetry struct {
	OTLPEndpoint string  `yaml:"otlpEndpoint"`
	Insecure     bool    `yaml:"insecure"`
	ServiceName  string  `yaml:"serviceName"`
	SampleRate   float64 `yaml:"sampleRate"`
	MetricsPath  string  `yaml:"metricsPath"`
}

type CORS struct {
	AllowedOrigins []string `yaml:"allowedOrigins"`
}

type ServiceConfig struct {
	Port           int       `yaml:"port"`
	LogLevel       string    `yaml:"logLevel"`
	LogFormat      string    `yaml:"logFormat"`
	PublicBaseURL  string    `yaml:"publicBaseUrl"`
	MaxUploadBytes int64     `yaml:"maxUploadBytes"`
	Database       Database  `yaml:"database"`
	Storage        Storage   `yaml:"storage"`
	Cache          Cache     `yaml:"cache"`
	Auth           Auth      `yaml:"auth"`
	Thumbnail      Thumbnail `yaml:"thumbnail"`
	Optimizer      Optimizer `yaml:"optimizer"`
	Telemetry      Telemetry `yaml:"telemetry"`
	CORS           CORS      `yaml:"cors"`
}

// LoadConfig loads configuration from the specified YAML file. A .env file in the working
// directory is loaded first and ${VAR} / ${VAR:-default} references are expanded.
func LoadConfig(configPath string) (*ServiceConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	config, err := ParseConfig(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
	}
	return config, nil
}

// ParseConfig expands environment references, applies defaults and validates.
// References are expanded inside scalar values only, so the document structure is fixed
// before any environment value is seen.
func ParseConfig(data []byte) (*ServiceConfig, error) {
	var document yaml.Node
	if err := yaml.Unmarshal(data, &document); err != nil {
		return nil, err
	}

	var config ServiceConfig
	if document.Kind != 0 {
		expandScalars(&document)
		if err := document.Decode(&config); err != nil {
			return nil, err
		}
	}

	config.applyDefaults()

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &config, nil
}

const quotedStyles = yaml.DoubleQuotedStyle | yaml.SingleQuotedStyle | yaml.LiteralStyle | yaml.FoldedStyle

func expandScalars(node *yaml.Node) {
	if node.Kind == yaml.ScalarNode {
		expanded := os.Expand(node.Value, lookupEnv)
		if expanded != node.Value {
			node.Value = expanded
			if node.Style&quotedStyles == 0 {
				// let the expanded plain value resolve to int or bool again
				node.Tag = ""
			}
		}
		return
	}
	for _, child := range node.Content {
		expandScalars(child)
	}
}

// lookupEnv resolves NAME and NAME:-default references
func lookupEnv(reference string) string {
	name, fallback, _ := strings.Cut(reference, ":-")
	if v, ok := os.LookupEnv(name); ok && v != "" {
		return v
	}
	return fallback
}

func (c *ServiceConfig) applyDefaults() {
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "text"
	}
	if c.PublicBaseURL == "" {
		c.PublicBaseURL = fmt.Sprintf("http://localhost:%d", c.Port)
	}
	c.PublicBaseURL = strings.TrimRight(c.PublicBaseURL, "/")
	if c.MaxUploadBytes == 0 {
		c.MaxUploadBytes = validation.DefaultMaxFileSize
	}
	if c.Database.Type == "" {
		c.Database.Type = "sqlite"
	}
	if c.Database.Type == "sqlite" && c.Database.ConnectionString == "" {
		c.Database.ConnectionString = "designcase.db"
	}
	if c.Storage.Type == "" {
		c.Storage.Type = "filesystem"
	}
	if c.Storage.Type == "filesystem" {
		if c.Storage.BaseDir == "" {
			c.Storage.BaseDir = "data/objects"
		}
		if c.Storage.PublicBaseURL == "" {
			c.Storage.PublicBaseURL = c.PublicBaseURL + FilesRoutePrefix
		}
	}
	if c.Storage.Bucket == "" {
		c.Storage.Bucket = "design-files"
	}
	if c.Cache.Type == "" {
		c.Cache.Type = "memory"
	}
	if c.Auth.UserHeader == "" {
		c.Auth.UserHeader = "X-User-Id"
	}
	if len(c.Thumbnail.Commands) == 0 {
		c.Thumbnail.Commands = thumbnail.DefaultCommands()
	}
	if c.Optimizer.JPEGQuality == 0 {
		c.Optimizer.JPEGQuality = 90
	}
	if c.Optimizer.WebPQuality == 0 {
		c.Optimizer.WebPQuality = 90
	}
	if c.Optimizer.MaxPixels == 0 {
		c.Optimizer.MaxPixels = commands.DefaultMaxPixels
	}
	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = "designcase"
	}
	if c.Telemetry.MetricsPath == "" {
		c.Telemetry.MetricsPath = "/metrics"
	}
}

func (c *ServiceConfig) validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.MaxUploadBytes < 0 {
		return fmt.Errorf("maxUploadBytes must be positive")
	}
	if err := oneOf("logLevel", strings.ToLower(c.LogLevel), "debug", "info", "warn", "error"); err != nil {
		return err
	}
	if err := oneOf("logFormat", c.LogFormat, "text", "json"); err != nil {
		return err
	}
	if err := oneOf("database.type", c.Database.Type, "sqlite", "postgres"); err != nil {
		return err
	}
	if c.Database.Type == "postgres" && c.Database.ConnectionString == "" {
		return fmt.Errorf("database.connectionString is required for postgres")
	}
	if err := oneOf("storage.type", c.Storage.Type, "filesystem", "minio", "s3"); err != nil {
		return err
	}
	if c.Storage.Type == "minio" && c.Storage.Endpoint == "" {
		return fmt.Errorf("storage.endpoint is required for minio")
	}
	if err := oneOf("cache.type", c.Cache.Type, "memory", "redis", "none"); err != nil {
		return err
	}
	if c.Cache.Type == "redis" && c.Cache.Address == "" {
		return fmt.Errorf("cache.address is required for redis")
	}
	for name, q := range map[string]int{"optimizer.jpegQuality": c.Optimizer.JPEGQuality, "optimizer.webpQuality": c.Optimizer.WebPQuality} {
		if q < 1 || q > 100 {
			return fmt.Errorf("%s must be between 1 and 100, got %d", name, q)
		}
	}
	if c.Optimizer.MaxPixels < 0 {
		return fmt.Errorf("optimizer.maxPixels must be positive")
	}
	if err := validateCommands(c.Thumbnail.Commands); err != nil {
		return fmt.Errorf("invalid thumbnail command configuration: %w", err)
	}
	return nil
}

func oneOf(field, value string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("unsupported %s %q (allowed: %s)", field, value, strings.Join(allowed, ", "))
}

// validateCommands ensures all command configurations have required fields
func validateCommands(commands []CommandConfig) error {
	seenNames := make(map[string]bool)

	for i, cmd := range commands {
		if cmd.Name == "" {
			return fmt.Errorf("command at index %d has empty name", i)
		}
		if seenNames[cmd.Name] {
			return fmt.Errorf("duplicate command name: %s", cmd.Name)
		}
		seenNames[cmd.Name] = true

		if !commandstructure.DefaultRegistry.IsRegistered(cmd.Name) {
			return fmt.Errorf("unknown command: %s", cmd.Name)
		}
	}

	return nil
}
