package conf

import "time"

// Config is application config
type Config struct {
	Server   *ServerConfig   `json:"server" yaml:"server"`
	Bench    *BenchConfig    `json:"bench" yaml:"bench"`
	Database *DatabaseConfig `json:"database" yaml:"database"`
	Cache    *CacheConfig    `json:"cache" yaml:"cache"`
	Logging  *LoggingConfig  `json:"logging" yaml:"logging"`
}

// ServerConfig configures the service under test.
type ServerConfig struct {
	Host         string `json:"host" yaml:"host"`
	Port         string `json:"port" yaml:"port"`
	Workers      int    `json:"workers" yaml:"workers"`
	DatabasePath string `json:"databasePath" yaml:"databasePath"`
	Cert         string `json:"cert" yaml:"cert"`
	Key          string `json:"key" yaml:"key"`
	TLS          bool   `json:"tls" yaml:"tls"`
}

// BenchConfig drives the orchestrator: which binary to spawn, where it
// listens, and the load matrix to sweep.
type BenchConfig struct {
	Host      string         `json:"host" yaml:"host"`
	Port      int            `json:"port" yaml:"port"`
	Binary    string         `json:"binary" yaml:"binary"`
	Rates     []int          `json:"rates" yaml:"rates"`
	Duration  *time.Duration `json:"duration" yaml:"duration"`
	Filter    string         `json:"filter" yaml:"filter"`
	Endpoints []string       `json:"endpoints" yaml:"endpoints"`
	OutputDir string         `json:"outputDir" yaml:"outputDir"`
	Workers   int            `json:"workers" yaml:"workers"`
	Archive   bool           `json:"archive" yaml:"archive"`
}

// DatabaseConfig configures the optional postgres run archive.
type DatabaseConfig struct {
	Host         string `json:"host" yaml:"host"`
	Port         int    `json:"port" yaml:"port"`
	User         string `json:"user" yaml:"user"`
	Password     string `json:"password" yaml:"password"`
	DatabaseName string `json:"databaseName" yaml:"databaseName"`
	SslMode      string `json:"sslMode" yaml:"sslMode"`
	SslFactory   string `json:"sslFactory" yaml:"sslFactory"`
}

type CacheConfig struct {
	Size   int            `json:"size" yaml:"size"` // cache size in bytes
	Expiry *time.Duration `json:"expiry" yaml:"expiry"`
}

type LoggingConfig struct {
	Level string `json:"level" yaml:"level"`
}

// SaneDefaults provides base config for testing
func SaneDefaults() *Config {
	testDuration := time.Second * 10
	cacheExpiry := time.Second * 30
	var config = &Config{
		Server: &ServerConfig{
			Host:         "localhost",
			Port:         "8000",
			Workers:      4,
			DatabasePath: "cleanbench.db",
			Cert:         "certs/cert.crt",
			Key:          "certs/cert.key",
			TLS:          false,
		},
		Bench: &BenchConfig{
			Host:      "localhost",
			Port:      8000,
			Binary:    "cleanbench",
			Rates:     []int{50, 100, 200, 300, 500, 750, 1000},
			Duration:  &testDuration,
			OutputDir: "results",
			Workers:   4,
			Archive:   false,
		},
		Database: &DatabaseConfig{
			Host:         "127.0.0.1",
			Port:         5432,
			User:         "user",
			Password:     "password",
			DatabaseName: "test",
			SslMode:      "disable",
			SslFactory:   "org.postgresql.ssl.NonValidatingFactory",
		},
		Cache: &CacheConfig{
			Size:   1000 * 1000,
			Expiry: &cacheExpiry,
		},
		Logging: &LoggingConfig{
			Level: "INFO",
		},
	}

	return config
}
