package profile

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Profile is the configuration of a vectorbase process.
type Profile struct {
	// Embedding configuration (OpenAI-compatible protocol)
	EmbeddingProvider string  // siliconflow, openai, ollama, dashscope
	EmbeddingModel    string  // BAAI/bge-m3, text-embedding-3-small, ...
	EmbeddingAPIKey   string  // not needed for ollama
	EmbeddingBaseURL  string  // defaults per provider
	EmbeddingRPS      float64 // requests per second, 0 = unlimited

	Mode        string // demo, dev, prod
	Driver      string // memory, postgres, sqlite
	DSN         string
	Data        string
	Index       string
	MetricsAddr string
	Version     string
	Dimensions  int
}

// Provider defaults for embeddings.
// Used when the base URL, model or dimensions are not explicitly set.
var embeddingProviderDefaults = map[string]struct {
	BaseURL    string
	Model      string
	Dimensions int
}{
	"siliconflow": {
		BaseURL:    "https://api.siliconflow.cn/v1",
		Model:      "BAAI/bge-m3",
		Dimensions: 1024,
	},
	"openai": {
		BaseURL:    "https://api.openai.com/v1",
		Model:      "text-embedding-3-small",
		Dimensions: 1536,
	},
	"dashscope": {
		BaseURL:    "https://dashscope.aliyuncs.com/compatible-mode/v1",
		Model:      "text-embedding-v3",
		Dimensions: 1024,
	},
	"ollama": {
		BaseURL:    "http://localhost:11434/v1",
		Model:      "nomic-embed-text",
		Dimensions: 768,
	},
}

const (
	DefaultDriver = "memory"
	DefaultIndex  = "vectorbase"
)

// IsPersistent reports whether entries outlive the process.
func (p *Profile) IsPersistent() bool {
	return p.Driver == "postgres" || p.Driver == "sqlite"
}

// getEnvOrDefault returns environment variable value or default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvOrDefaultFloat returns environment variable value as float64 or default value.
func getEnvOrDefaultFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
		slog.Warn("Ignoring malformed number", "key", key, "value", value)
	}
	return defaultValue
}

// FromEnv loads the embedding configuration from environment variables and
// fills provider defaults for whatever is left unset.
func (p *Profile) FromEnv() {
	p.EmbeddingProvider = getEnvOrDefault("VECTORBASE_EMBEDDING_PROVIDER", "siliconflow")
	p.EmbeddingModel = getEnvOrDefault("VECTORBASE_EMBEDDING_MODEL", "")
	p.EmbeddingAPIKey = getEnvOrDefault("VECTORBASE_EMBEDDING_API_KEY", "")
	p.EmbeddingBaseURL = getEnvOrDefault("VECTORBASE_EMBEDDING_BASE_URL", "")
	p.EmbeddingRPS = getEnvOrDefaultFloat("VECTORBASE_EMBEDDING_RPS", 0)

	if _, ok := embeddingProviderDefaults[p.EmbeddingProvider]; !ok {
		slog.Warn("Unknown embedding provider, using default: siliconflow", "provider", p.EmbeddingProvider)
		p.EmbeddingProvider = "siliconflow"
	}
	defaults := embeddingProviderDefaults[p.EmbeddingProvider]
	if p.EmbeddingBaseURL == "" {
		p.EmbeddingBaseURL = defaults.BaseURL
	}
	if p.EmbeddingModel == "" {
		p.EmbeddingModel = defaults.Model
		// The default dimensions only describe the default model.
		if p.Dimensions == 0 {
			p.Dimensions = defaults.Dimensions
		}
	}
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		absDir, err := filepath.Abs(dataDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	// Trim trailing \ or / in case user supplies
	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}
	if p.Driver == "" {
		p.Driver = DefaultDriver
	}
	if p.Index == "" {
		p.Index = DefaultIndex
	}
	if p.Dimensions < 0 {
		return errors.Errorf("dimensions must not be negative, got %d", p.Dimensions)
	}

	switch p.Driver {
	case "memory":
		return nil
	case "postgres":
		if p.DSN == "" {
			return errors.New("dsn is required for the postgres driver")
		}
		return nil
	case "sqlite":
	default:
		return errors.Errorf("unsupported driver %q", p.Driver)
	}

	if p.DSN != "" {
		return nil
	}
	if p.Data == "" {
		switch {
		case p.Mode != "prod":
			p.Data = "."
		case runtime.GOOS == "windows":
			p.Data = filepath.Join(os.Getenv("ProgramData"), "vectorbase")
		default:
			p.Data = "/var/opt/vectorbase"
		}
	}
	if p.Mode == "prod" {
		if _, err := os.Stat(p.Data); os.IsNotExist(err) {
			if err := os.MkdirAll(p.Data, 0770); err != nil {
				slog.Error("failed to create data directory", slog.String("data", p.Data), slog.String("error", err.Error()))
				return err
			}
		}
	}

	dataDir, err := checkDataDir(p.Data)
	if err != nil {
		slog.Error("failed to check dsn", slog.String("data", p.Data), slog.String("error", err.Error()))
		return err
	}
	p.Data = dataDir
	p.DSN = filepath.Join(dataDir, fmt.Sprintf("vectorbase_%s.db", p.Mode))
	return nil
}
