// Package config loads the INI-style configuration file described in the
// system's external interfaces and layers environment variable overrides
// on top of it, the way the rest of this codebase always prefers an
// explicit file with env escape hatches over env-only configuration.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/go-ini/ini"
)

type Config struct {
	Postgres PostgresConfig
	MQ       MQConfig
	Redis    RedisConfig
	MinIO    MinIOConfig
	Crawl    CrawlConfig
}

type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
}

func (c PostgresConfig) DSN() string {
	return fmt.Sprintf("postgresql://%s:%s@%s:%d/%s", c.User, c.Password, c.Host, c.Port, c.Database)
}

type MQConfig struct {
	Host           string
	Port           int
	WorkerQueue    string
	ProcessorQueue string
}

func (c MQConfig) URL() string {
	return fmt.Sprintf("amqp://%s:%d", c.Host, c.Port)
}

type RedisConfig struct {
	Host string
	Port int
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

type CrawlConfig struct {
	// AccessDayDifference is the re-crawl window in days. It has no
	// implicit default: 0 means the deployment never set it, and callers
	// must treat that as a startup misconfiguration rather than silently
	// crawling on every pass.
	AccessDayDifference int
	SleeperHours        int
	ProxyAddr           string
	ProxyControlAddr    string
	TrainerThreads      int
}

const (
	defaultPostgresHost = "localhost"
	defaultPostgresPort = 5432
	defaultPostgresUser = "crawler"
	defaultPostgresDB   = "crawler"

	defaultMQHost         = "localhost"
	defaultMQPort         = 5672
	defaultWorkerQueue    = "worker_q"
	defaultProcessorQueue = "processor_q"

	defaultRedisHost = "localhost"
	defaultRedisPort = 6379

	defaultMinIOEndpoint = "localhost:9000"

	defaultSleeperHours     = 1
	defaultProxyAddr        = "127.0.0.1:8118"
	defaultProxyControlAddr = "127.0.0.1:9051"
	defaultTrainerThreads   = 12
)

// Path returns the active config file path: config.conf inside a
// container, config_local.conf otherwise.
func Path() string {
	if os.Getenv("AM_I_IN_A_DOCKER_CONTAINER") == "true" {
		return "config.conf"
	}
	return "config_local.conf"
}

// LoadFromEnv builds a Config from defaults and environment overrides only,
// skipping the file entirely. Used when no config file is present.
func LoadFromEnv() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	cfg.applyEnvOverrides()
	return cfg
}

// Load reads and parses the INI file at path. Defaults fill whatever the
// file doesn't set, and env overrides are applied last, over both.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	cfg.applyDefaults()

	file, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	pg := file.Section("POSTGRES")
	if v := pg.Key("postgresql_host").String(); v != "" {
		cfg.Postgres.Host = v
	}
	if v := pg.Key("postgresql_port").String(); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = p
		}
	}
	if v := pg.Key("postgresql_user").String(); v != "" {
		cfg.Postgres.User = v
	}
	if v := pg.Key("postgresql_pass").String(); v != "" {
		cfg.Postgres.Password = v
	}
	if v := pg.Key("postgresql_db").String(); v != "" {
		cfg.Postgres.Database = v
	}

	mq := file.Section("MQ")
	if v := mq.Key("mq_host").String(); v != "" {
		cfg.MQ.Host = v
	}
	if v := mq.Key("mq_port").String(); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.MQ.Port = p
		}
	}
	if v := mq.Key("mq_worker_queue").String(); v != "" {
		cfg.MQ.WorkerQueue = v
	}
	if v := mq.Key("mq_processor_queue").String(); v != "" {
		cfg.MQ.ProcessorQueue = v
	}

	crawl := file.Section("CRAWL")
	if v := crawl.Key("access_day_difference").String(); v != "" {
		if d, err := strconv.Atoi(v); err == nil {
			cfg.Crawl.AccessDayDifference = d
		}
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	c.Postgres.Host = defaultPostgresHost
	c.Postgres.Port = defaultPostgresPort
	c.Postgres.User = defaultPostgresUser
	c.Postgres.Database = defaultPostgresDB

	c.MQ.Host = defaultMQHost
	c.MQ.Port = defaultMQPort
	c.MQ.WorkerQueue = defaultWorkerQueue
	c.MQ.ProcessorQueue = defaultProcessorQueue

	c.Redis.Host = defaultRedisHost
	c.Redis.Port = defaultRedisPort

	c.MinIO.Endpoint = defaultMinIOEndpoint

	// AccessDayDifference is deliberately left at its zero value here: the
	// crawler's re-crawl window has no sane implicit default, and
	// defaulting it silently would hide a missing CRAWL section instead
	// of surfacing it at startup. Callers must treat 0 as "unset".
	c.Crawl.SleeperHours = defaultSleeperHours
	c.Crawl.ProxyAddr = defaultProxyAddr
	c.Crawl.ProxyControlAddr = defaultProxyControlAddr
	c.Crawl.TrainerThreads = defaultTrainerThreads
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("POSTGRES_HOST"); v != "" {
		c.Postgres.Host = v
	}
	if v := os.Getenv("POSTGRES_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Postgres.Port = p
		}
	}
	if v := os.Getenv("POSTGRES_USER"); v != "" {
		c.Postgres.User = v
	}
	if v := os.Getenv("POSTGRES_PASS"); v != "" {
		c.Postgres.Password = v
	}
	if v := os.Getenv("POSTGRES_DB"); v != "" {
		c.Postgres.Database = v
	}
	if v := os.Getenv("MQ_HOST"); v != "" {
		c.MQ.Host = v
	}
	if v := os.Getenv("MQ_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.MQ.Port = p
		}
	}
	if v := os.Getenv("REDIS_HOST"); v != "" {
		c.Redis.Host = v
	}
	if v := os.Getenv("REDIS_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Redis.Port = p
		}
	}
	if v := os.Getenv("MINIO_ENDPOINT"); v != "" {
		c.MinIO.Endpoint = v
	}
	if v := os.Getenv("MINIO_ACCESS_KEY"); v != "" {
		c.MinIO.AccessKey = v
	}
	if v := os.Getenv("MINIO_SECRET_KEY"); v != "" {
		c.MinIO.SecretKey = v
	}
	if v := os.Getenv("ACCESS_DAY_DIFFERENCE"); v != "" {
		if d, err := strconv.Atoi(v); err == nil {
			c.Crawl.AccessDayDifference = d
		}
	}
	if v := os.Getenv("TRAINER_THREADS"); v != "" {
		if t, err := strconv.Atoi(v); err == nil {
			c.Crawl.TrainerThreads = t
		}
	}
}

// UplinkConfig holds the Analyzer's remote-call bridge credentials.
type UplinkConfig struct {
	URL string
	Key string
}

// LoadUplink reads UPLINK/UPLINK_KEY. Either missing is a startup error
// the caller should treat as exit code 1.
func LoadUplink() (UplinkConfig, error) {
	url := os.Getenv("UPLINK")
	key := os.Getenv("UPLINK_KEY")
	if url == "" || key == "" {
		return UplinkConfig{}, fmt.Errorf("UPLINK and UPLINK_KEY must both be set")
	}
	return UplinkConfig{URL: url, Key: key}, nil
}
