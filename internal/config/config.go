package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

var singleConfig *Config = nil

type Config struct {
	Database *dbConfig
	Service  *svcConfig
	Storage  *storageConfig
	AI       *aiConfig
	Projects *projectsConfig
	Pipeline *PipelineConfig
}

type dbConfig struct {
	Type     string `envconfig:"DB_TYPE" default:"pgsql"`
	Hostname string `envconfig:"DB_HOST" default:"localhost"`
	Port     int    `envconfig:"DB_PORT" default:"5432"`
	Name     string `envconfig:"DB_NAME" default:"flashreports"`
	User     string `envconfig:"DB_USER" default:"admin"`
	Password string `envconfig:"DB_PASS" default:"adminpass"`
}

type svcConfig struct {
	Address         string `envconfig:"FLASH_REPORTS_ADDRESS" default:":8080"`
	BaseUrl         string `envconfig:"FLASH_REPORTS_BASE_URL" default:"http://localhost:8080"`
	LogLevel        string `envconfig:"FLASH_REPORTS_LOG_LEVEL" default:"info"`
	QueueType       string `envconfig:"FLASH_REPORTS_QUEUE" default:"river"`
	QueueWorkers    int    `envconfig:"FLASH_REPORTS_QUEUE_WORKERS" default:"4"`
	MigrationFolder string `envconfig:"FLASH_REPORTS_MIGRATIONS_FOLDER" default:""`
}

type storageConfig struct {
	Endpoint  string `envconfig:"FLASH_REPORTS_S3_ENDPOINT" default:"localhost:9000"`
	Bucket    string `envconfig:"FLASH_REPORTS_S3_BUCKET" default:"outputs"`
	AccessKey string `envconfig:"FLASH_REPORTS_S3_ACCESS_KEY" default:""`
	SecretKey string `envconfig:"FLASH_REPORTS_S3_SECRET_KEY" default:""`
	UseSSL    bool   `envconfig:"FLASH_REPORTS_S3_USE_SSL" default:"false"`
}

type aiConfig struct {
	APIKey          string        `envconfig:"FLASH_REPORTS_AI_API_KEY" default:""`
	BaseURL         string        `envconfig:"FLASH_REPORTS_AI_BASE_URL" default:""`
	GenerationModel string        `envconfig:"FLASH_REPORTS_AI_GENERATION_MODEL" default:"gpt-4o"`
	EvaluationModel string        `envconfig:"FLASH_REPORTS_AI_EVALUATION_MODEL" default:"gpt-4o-mini"`
	RequestTimeout  time.Duration `envconfig:"FLASH_REPORTS_AI_REQUEST_TIMEOUT" default:"5m"`
}

type projectsConfig struct {
	APIKey   string        `envconfig:"FLASH_REPORTS_PROJECTS_API_KEY" default:""`
	BaseURL  string        `envconfig:"FLASH_REPORTS_PROJECTS_BASE_URL" default:"https://api.airsaas.io/v1"`
	MaxPages int           `envconfig:"FLASH_REPORTS_PROJECTS_MAX_PAGES" default:"5"`
	Timeout  time.Duration `envconfig:"FLASH_REPORTS_PROJECTS_TIMEOUT" default:"30s"`
	CacheTTL time.Duration `envconfig:"FLASH_REPORTS_PROJECTS_CACHE_TTL" default:"5m"`
}

// PipelineConfig exposes the tunable pipeline thresholds.
type PipelineConfig struct {
	TokenBudget        int           `envconfig:"FLASH_REPORTS_TOKEN_BUDGET" default:"12000"`
	LongTextLimit      int           `envconfig:"FLASH_REPORTS_LONG_TEXT_LIMIT" default:"200"`
	EscalatedTextLimit int           `envconfig:"FLASH_REPORTS_ESCALATED_TEXT_LIMIT" default:"30"`
	RecordFloor        int           `envconfig:"FLASH_REPORTS_RECORD_FLOOR" default:"3"`
	RecordSafetyCap    int           `envconfig:"FLASH_REPORTS_RECORD_SAFETY_CAP" default:"4"`
	EvalThreshold      int           `envconfig:"FLASH_REPORTS_EVAL_THRESHOLD" default:"65"`
	MaxIterations      int           `envconfig:"FLASH_REPORTS_MAX_ITERATIONS" default:"2"`
	PollInterval       time.Duration `envconfig:"FLASH_REPORTS_POLL_INTERVAL" default:"2s"`
	MaxWait            time.Duration `envconfig:"FLASH_REPORTS_MAX_WAIT" default:"10m"`
}

func New() (*Config, error) {
	if singleConfig == nil {
		singleConfig = new(Config)
		if err := envconfig.Process("", singleConfig); err != nil {
			return nil, err
		}
	}
	return singleConfig, nil
}

// NewDefault returns a config without reading the environment.
// Used by tests that need a throwaway sqlite store.
func NewDefault() *Config {
	return &Config{
		Database: &dbConfig{Type: "sqlite", Name: "file::memory:?cache=shared&_busy_timeout=5000"},
		Service:  &svcConfig{Address: ":8080", LogLevel: "info", QueueType: "memory", QueueWorkers: 2},
		Storage:  &storageConfig{Bucket: "outputs"},
		AI:       &aiConfig{GenerationModel: "gpt-4o", EvaluationModel: "gpt-4o-mini", RequestTimeout: 5 * time.Minute},
		Projects: &projectsConfig{BaseURL: "https://api.airsaas.io/v1", MaxPages: 5, Timeout: 30 * time.Second, CacheTTL: 5 * time.Minute},
		Pipeline: DefaultPipeline(),
	}
}

func DefaultPipeline() *PipelineConfig {
	return &PipelineConfig{
		TokenBudget:        12000,
		LongTextLimit:      200,
		EscalatedTextLimit: 30,
		RecordFloor:        3,
		RecordSafetyCap:    4,
		EvalThreshold:      65,
		MaxIterations:      2,
		PollInterval:       2 * time.Second,
		MaxWait:            10 * time.Minute,
	}
}
