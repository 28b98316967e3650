package config

import "time"

// Config holds all configuration for the crawler.
type Config struct {
	Logging      LoggingConfig      `yaml:"logging"`
	HTTPClient   HTTPClientConfig   `yaml:"http_client"`
	SpiderFilter SpiderFilterConfig `yaml:"spider_filter"`
	SpiderConfig SpiderRunConfig    `yaml:"spider_config"`
	ProxyPool    ProxyPoolConfig    `yaml:"proxy_pool"`
	IdPool       IdPoolConfig       `yaml:"idpool"`
	Server       ServerConfig       `yaml:"server"`
	Engineering  EngineeringConfig  `yaml:"engineering"`
}

// ServerConfig controls the status/health HTTP surface, not the crawl
// engine itself (which makes outbound calls only).
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// HTTPClientConfig controls the behaviour of the JSON fetch client.
type HTTPClientConfig struct {
	DNSServer  []string      `yaml:"dns_server"`
	RetryTimes int           `yaml:"retry_times"`
	Timeout    TimeoutConfig `yaml:"timeout"`
}

// TimeoutConfig splits total request budget from connect budget.
type TimeoutConfig struct {
	Total   time.Duration `yaml:"total"`
	Connect time.Duration `yaml:"connect"`
}

// SpiderFilterConfig holds the popularity gate applied after the Relation fetch.
type SpiderFilterConfig struct {
	MinFollower int `yaml:"min_follower"`
}

// SpiderRunConfig holds dispatcher and sink settings.
type SpiderRunConfig struct {
	SavePath        string `yaml:"save_path"`
	SeedPath        string `yaml:"seed_path"`
	ParallelCoTasks int    `yaml:"parallel_co_tasks"`
}

// ProxyPoolConfig selects and tunes the outbound proxy source.
type ProxyPoolConfig struct {
	Type    string             `yaml:"type"` // file|zhima|juliang
	File    FileSourceConfig   `yaml:"file"`
	Zhima   VendorSourceConfig `yaml:"zhima"`
	Juliang VendorSourceConfig `yaml:"juliang"`
	Enable  bool               `yaml:"enable"`
}

// FileSourceConfig loads a static host:port list.
type FileSourceConfig struct {
	Path string `yaml:"path"`
}

// VendorSourceConfig configures a proxy-vending HTTP API.
type VendorSourceConfig struct {
	API      string `yaml:"api"`
	PoolSize int    `yaml:"pool_size"`
}

// IdPoolConfig controls persistence and retry cadence of the identifier pool.
type IdPoolConfig struct {
	SnapshotPath  string        `yaml:"snapshot_path"`
	RetryInterval time.Duration `yaml:"retry_interval"`
	// FrontierCap bounds the To-process set; 0 means unbounded.
	FrontierCap int `yaml:"frontier_cap"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Theme      string `yaml:"theme"`
	LogDir     string `yaml:"log_dir"`
	FileOutput bool   `yaml:"file_output"`
	PrettyLogs bool   `yaml:"pretty_logs"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
}

// EngineeringConfig holds development/debugging toggles.
type EngineeringConfig struct {
	ShowNerdStats  bool   `yaml:"show_nerdstats"`
	EnableProfiler bool   `yaml:"enable_profiler"`
	ProfilerAddr   string `yaml:"profiler_addr"`
}
