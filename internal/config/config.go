package config

import (
	"errors"
	"fmt"
	"os"
	"time"
	_ "time/tzdata"

	"github.com/cuongbtq/billing-inspector/shared/database"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

const (
	// MinPort is the minimum valid port number
	MinPort = 1
	// MaxPort is the maximum valid port number
	MaxPort = 65535

	// DefaultTimezone is the zone every cron trigger and date calculation runs in
	DefaultTimezone = "Asia/Shanghai"
	// DefaultHTTPTimeout bounds every SMS and XXL-Job request
	DefaultHTTPTimeout = 10 * time.Second
)

var (
	// ErrJobNotConfigured is returned when the jobs section has no entry for a job
	ErrJobNotConfigured = errors.New("job not configured")

	// ErrDatabaseNotConfigured is returned when the database section has no entry for a branch
	ErrDatabaseNotConfigured = errors.New("database not configured")
)

// Config represents the complete application configuration
type Config struct {
	App         AppConfig                 `yaml:"app"`
	Logging     LoggingConfig             `yaml:"logging"`
	Database    map[string]DatabaseConfig `yaml:"database"`
	SMSAPI      string                    `yaml:"sms_api"`
	HTTPTimeout time.Duration             `yaml:"http_timeout"`
	Jobs        map[string]JobConfig      `yaml:"jobs"`
	XXLJob      XXLJobConfig              `yaml:"xxl_job"`
	Audits      []AuditCategory           `yaml:"audits"`
	Report      ReportConfig              `yaml:"report"`
	Scheduler   SchedulerConfig           `yaml:"scheduler"`
	RunStore    RunStoreConfig            `yaml:"run_store"`
	RabbitMQ    RabbitMQConfig            `yaml:"rabbitmq"`
	Server      ServerConfig              `yaml:"server"`
}

// DatabaseConfig holds one branch database. An empty type means postgres.
type DatabaseConfig struct {
	Type     string `yaml:"type"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"sslmode"`
}

// JobConfig holds the per-job settings
type JobConfig struct {
	Phones    []string `yaml:"phones"`
	SQL       string   `yaml:"sql"`
	Companies []string `yaml:"companies"`
}

// XXLJobConfig points at the XXL-Job admin console
type XXLJobConfig struct {
	LoginURL   string `yaml:"login_url"`
	PageURL    string `yaml:"page_url"`
	Username   string `yaml:"username"`
	Password   string `yaml:"password"`
	PageLength int    `yaml:"page_length"`
}

// AuditCategory is one group of XXL-Job tasks checked together
type AuditCategory struct {
	Key      string        `yaml:"key"`
	Title    string        `yaml:"title"`
	JobGroup int           `yaml:"job_group"`
	JobDesc  string        `yaml:"job_desc"`
	Jobs     []ExpectedJob `yaml:"jobs"`
}

// ExpectedJob is the registration an XXL-Job task must have
type ExpectedJob struct {
	JobID         int      `yaml:"job_id"`
	JobDesc       string   `yaml:"job_desc"`
	ExpectedCron  string   `yaml:"expected_cron"`
	ExpectedParam string   `yaml:"expected_param"`
	Companies     []string `yaml:"companies"`
}

// ReportConfig holds the Excel report locations
type ReportConfig struct {
	TemplatePath string `yaml:"template_path"`
	OutputPath   string `yaml:"output_path"`
}

// SchedulerConfig holds the scheduler service settings
type SchedulerConfig struct {
	Timezone        string           `yaml:"timezone"`
	Concurrency     int              `yaml:"concurrency"`
	JobTimeout      time.Duration    `yaml:"job_timeout"`
	QueryTimeout    time.Duration    `yaml:"query_timeout"`
	ShutdownTimeout time.Duration    `yaml:"shutdown_timeout"`
	Pipelines       []PipelineConfig `yaml:"pipelines"`
}

// PipelineConfig describes a runnable pipeline and its cron triggers
type PipelineConfig struct {
	ID          string          `yaml:"id"`
	Description string          `yaml:"description"`
	Triggers    []TriggerConfig `yaml:"triggers"`
}

// TriggerConfig is one cron trigger of a pipeline
type TriggerConfig struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Schedule    string `yaml:"schedule"`
}

// RunStoreConfig holds the PostgreSQL connection used for run history
type RunStoreConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
}

// RabbitMQConfig holds the broker used for manual run requests
type RabbitMQConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Host          string        `yaml:"host"`
	Port          int           `yaml:"port"`
	User          string        `yaml:"user"`
	Password      string        `yaml:"password"`
	VHost         string        `yaml:"vhost"`
	Exchange      string        `yaml:"exchange"`
	ExchangeType  string        `yaml:"exchange_type"`
	Queue         string        `yaml:"queue"`
	RoutingKey    string        `yaml:"routing_key"`
	RetryAttempts int           `yaml:"retry_attempts"`
	RetryInterval time.Duration `yaml:"retry_interval"`
	Heartbeat     time.Duration `yaml:"heartbeat"`
	PrefetchCount int           `yaml:"prefetch_count"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level        string `yaml:"level"`
	Format       string `yaml:"format"`
	Output       string `yaml:"output"`
	EnableCaller bool   `yaml:"enable_caller"`
}

// AppConfig holds application metadata
type AppConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"`
}

// Load reads and parses the configuration file
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.applyDefaults()

	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = DefaultHTTPTimeout
	}
	if c.Scheduler.Timezone == "" {
		c.Scheduler.Timezone = DefaultTimezone
	}
	if c.Scheduler.Concurrency == 0 {
		c.Scheduler.Concurrency = 1
	}
	if c.Scheduler.JobTimeout == 0 {
		c.Scheduler.JobTimeout = 10 * time.Minute
	}
	if c.Scheduler.ShutdownTimeout == 0 {
		c.Scheduler.ShutdownTimeout = 30 * time.Second
	}
	if len(c.Scheduler.Pipelines) == 0 {
		c.Scheduler.Pipelines = DefaultPipelines()
	}
	if len(c.Audits) == 0 {
		c.Audits = DefaultAuditCategories()
	}
	if c.XXLJob.PageLength == 0 {
		c.XXLJob.PageLength = 200
	}
	if c.Report.TemplatePath == "" {
		c.Report.TemplatePath = DefaultReportTemplatePath
	}
	if c.Report.OutputPath == "" {
		c.Report.OutputPath = DefaultReportOutputPath
	}
	if c.RunStore.SSLMode == "" {
		c.RunStore.SSLMode = "disable"
	}
	if c.RunStore.MaxOpenConns == 0 {
		c.RunStore.MaxOpenConns = 5
	}
	if c.RunStore.MaxIdleConns == 0 {
		c.RunStore.MaxIdleConns = 2
	}
	if c.RabbitMQ.ExchangeType == "" {
		c.RabbitMQ.ExchangeType = "direct"
	}
	if c.RabbitMQ.RetryAttempts == 0 {
		c.RabbitMQ.RetryAttempts = 5
	}
	if c.RabbitMQ.RetryInterval == 0 {
		c.RabbitMQ.RetryInterval = 2 * time.Second
	}
	if c.RabbitMQ.Heartbeat == 0 {
		c.RabbitMQ.Heartbeat = 10 * time.Second
	}
	if c.RabbitMQ.PrefetchCount == 0 {
		c.RabbitMQ.PrefetchCount = 1
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 15 * time.Second
	}
}

// GetJob returns the settings of a named job
func (c *Config) GetJob(name string) (JobConfig, error) {
	job, ok := c.Jobs[name]
	if !ok {
		return JobConfig{}, fmt.Errorf("%w: %s", ErrJobNotConfigured, name)
	}
	return job, nil
}

// GetDatabase returns the connection parameters of a branch database
func (c *Config) GetDatabase(company string) (database.Config, error) {
	db, ok := c.Database[company]
	if !ok {
		return database.Config{}, fmt.Errorf("%w: %s", ErrDatabaseNotConfigured, company)
	}
	return database.Config{
		Type:     db.Type,
		Host:     db.Host,
		Port:     db.Port,
		User:     db.User,
		Password: db.Password,
		Name:     db.Name,
		SSLMode:  db.SSLMode,
	}, nil
}

// Pipeline returns the pipeline with the given id
func (c *Config) Pipeline(id string) (PipelineConfig, bool) {
	for _, p := range c.Scheduler.Pipelines {
		if p.ID == id {
			return p, true
		}
	}
	return PipelineConfig{}, false
}

// Location resolves the scheduler time zone
func (c *Config) Location() (*time.Location, error) {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = DefaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid scheduler timezone %q: %w", tz, err)
	}
	return loc, nil
}

// ValidateSchedulerConfig checks the settings the scheduler service needs
func (c *Config) ValidateSchedulerConfig() error {
	if c.SMSAPI == "" {
		return fmt.Errorf("sms_api is required")
	}

	if _, err := c.Location(); err != nil {
		return err
	}

	if c.Scheduler.Concurrency <= 0 {
		return fmt.Errorf("scheduler concurrency must be greater than 0")
	}

	if err := c.validatePipelines(); err != nil {
		return err
	}

	if err := c.validateAudits(); err != nil {
		return err
	}

	if c.RunStore.Enabled {
		if err := c.validateRunStore(); err != nil {
			return err
		}
	}

	if c.RabbitMQ.Enabled {
		if err := c.validateRabbitMQ(); err != nil {
			return err
		}
	}

	return nil
}

// ValidateAPIConfig checks the settings the API service needs
func (c *Config) ValidateAPIConfig() error {
	if c.Server.Port < MinPort || c.Server.Port > MaxPort {
		return fmt.Errorf("invalid server port: %d (must be between %d and %d)", c.Server.Port, MinPort, MaxPort)
	}

	if !c.RunStore.Enabled {
		return fmt.Errorf("run_store must be enabled for the api service")
	}
	if err := c.validateRunStore(); err != nil {
		return err
	}

	if !c.RabbitMQ.Enabled {
		return fmt.Errorf("rabbitmq must be enabled for the api service")
	}
	if err := c.validateRabbitMQ(); err != nil {
		return err
	}

	return c.validatePipelines()
}

func (c *Config) validatePipelines() error {
	seen := make(map[string]bool)
	for _, p := range c.Scheduler.Pipelines {
		if p.ID == "" {
			return fmt.Errorf("pipeline id is required")
		}
		if seen[p.ID] {
			return fmt.Errorf("duplicate pipeline id: %s", p.ID)
		}
		seen[p.ID] = true

		for _, trig := range p.Triggers {
			if _, err := cron.ParseStandard(trig.Schedule); err != nil {
				return fmt.Errorf("invalid schedule %q for pipeline %s: %w", trig.Schedule, p.ID, err)
			}
		}
	}
	return nil
}

func (c *Config) validateAudits() error {
	for _, category := range c.Audits {
		if category.Key == "" {
			return fmt.Errorf("audit category key is required")
		}
		ids := make(map[int]bool, len(category.Jobs))
		for _, job := range category.Jobs {
			if ids[job.JobID] {
				return fmt.Errorf("duplicate job_id %d in audit category %s", job.JobID, category.Key)
			}
			ids[job.JobID] = true
		}
	}
	return nil
}

func (c *Config) validateRunStore() error {
	if c.RunStore.Host == "" {
		return fmt.Errorf("run_store host is required")
	}

	if c.RunStore.Port < MinPort || c.RunStore.Port > MaxPort {
		return fmt.Errorf("invalid run_store port: %d (must be between %d and %d)", c.RunStore.Port, MinPort, MaxPort)
	}

	if c.RunStore.Database == "" {
		return fmt.Errorf("run_store database name is required")
	}

	return nil
}

func (c *Config) validateRabbitMQ() error {
	if c.RabbitMQ.Host == "" {
		return fmt.Errorf("rabbitmq host is required")
	}

	if c.RabbitMQ.Port < MinPort || c.RabbitMQ.Port > MaxPort {
		return fmt.Errorf("invalid rabbitmq port: %d (must be between %d and %d)", c.RabbitMQ.Port, MinPort, MaxPort)
	}

	if c.RabbitMQ.Exchange == "" {
		return fmt.Errorf("rabbitmq exchange name is required")
	}

	if c.RabbitMQ.Queue == "" {
		return fmt.Errorf("rabbitmq queue name is required")
	}

	return nil
}
