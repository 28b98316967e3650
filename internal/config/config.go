package config

import (
	"fmt"
	"github.com/fsnotify/fsnotify"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// DefaultFileWriteDelay gives the editor/orchestrator time to finish
// writing the config file before we re-read it; some platforms fire the
// watch event mid-write.
const DefaultFileWriteDelay = 150 * time.Millisecond

var (
	lastReload  time.Time
	reloadMutex sync.Mutex
)

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		HTTPClient: HTTPClientConfig{
			RetryTimes: 5,
			Timeout: TimeoutConfig{
				Total:   10 * time.Second,
				Connect: 3 * time.Second,
			},
		},
		SpiderFilter: SpiderFilterConfig{
			MinFollower: 1000,
		},
		SpiderConfig: SpiderRunConfig{
			SavePath:        "./data/records.jsonl",
			SeedPath:        "./data/seeds.txt",
			ParallelCoTasks: 300,
		},
		ProxyPool: ProxyPoolConfig{
			Type:   "file",
			Enable: true,
			File: FileSourceConfig{
				Path: "./data/proxies.txt",
			},
			Zhima: VendorSourceConfig{
				PoolSize: 20,
			},
			Juliang: VendorSourceConfig{
				PoolSize: 20,
			},
		},
		IdPool: IdPoolConfig{
			SnapshotPath:  "./data/idpool.snapshot",
			RetryInterval: 10 * time.Second,
			FrontierCap:   0,
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Theme:      "default",
			LogDir:     "./logs",
			FileOutput: false,
			PrettyLogs: true,
			MaxSize:    100,
			MaxBackups: 3,
			MaxAge:     28,
		},
		Engineering: EngineeringConfig{
			ShowNerdStats:  true,
			EnableProfiler: false,
		},
	}
}

// Load loads configuration from file and environment variables
func Load(onConfigChange func()) (*Config, error) {
	config := DefaultConfig()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	viper.SetEnvPrefix("SPIDER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Register every default under its yaml key so AutomaticEnv can
	// override keys that no config file mentions.
	var defaults map[string]interface{}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{TagName: "yaml", Result: &defaults})
	if err != nil {
		return nil, fmt.Errorf("unable to prepare config defaults: %w", err)
	}
	if err := dec.Decode(config); err != nil {
		return nil, fmt.Errorf("unable to prepare config defaults: %w", err)
	}
	for key, value := range defaults {
		viper.SetDefault(key, value)
	}

	// A missing config file is fine (defaults + env vars carry the run);
	// anything else, a parse error say, is fatal.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		if configFile := os.Getenv("SPIDER_CONFIG_FILE"); configFile != "" {
			viper.SetConfigFile(configFile)
			if err := viper.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
			}
		}
	}

	useYAMLTags := func(dc *mapstructure.DecoderConfig) { dc.TagName = "yaml" }
	if err := viper.Unmarshal(config, useYAMLTags); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	viper.WatchConfig()

	if onConfigChange != nil {
		viper.OnConfigChange(func(e fsnotify.Event) {
			reloadMutex.Lock()
			defer reloadMutex.Unlock()

			// Editors that write-then-rename fire several events per save;
			// collapse them into one reload.
			now := time.Now()
			if now.Sub(lastReload) < 500*time.Millisecond {
				return
			}
			lastReload = now

			time.Sleep(DefaultFileWriteDelay)
			onConfigChange()
		})
	}
	return config, nil
}
