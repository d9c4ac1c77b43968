package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/angas/solarforecast-go/forecast"
	"github.com/angas/solarforecast-go/logging"
	"github.com/spf13/viper"
)

type AppConfigApi struct {
	Address string
	Port    int16
	// If not assigned, the server will serve embedded files.
	// If assigned, the server will serve files from the directory,
	// that must contain a "static" and "templates" directory.
	// This is useful for development.
	WwwDir *string `mapstructure:"www_dir"`
	// Key used to sign the session cookie, a random key is used when empty
	// which means sessions don't survive a restart.
	SessionKey string `mapstructure:"session_key"`
	// Max size of an uploaded CSV file in MB, default: 32
	MaxUploadMB *int `mapstructure:"max_upload_mb"`
}

func (a AppConfigApi) GetMaxUploadBytes() int64 {
	if a.MaxUploadMB == nil {
		return 32 << 20
	}
	return int64(*a.MaxUploadMB) << 20
}

type AppConfigDatabase struct {
	Path string
	// How many days daily backup files should be stored before they gets deleted
	BackupRetentionDays *int `mapstructure:"backup_retention_days"`
	// How many uploaded datasets to keep, at least 1, default: 10
	DatasetRetention *int `mapstructure:"dataset_retention"`
}

func (d AppConfigDatabase) GetBackupRetentionDays() int {
	if d.BackupRetentionDays == nil {
		return 90
	}
	return *d.BackupRetentionDays
}

func (d AppConfigDatabase) GetDatasetRetention() int {
	if d.DatasetRetention == nil {
		return 10
	}
	if *d.DatasetRetention < 1 {
		return 1
	}
	return *d.DatasetRetention
}

type AppConfigDataset struct {
	// CSV file loaded at startup, optional when data is uploaded from the GUI
	Path string
	// Reload the dataset when the file changes
	Watch bool
	// Cron spec for reloading the dataset, empty disables it
	ReloadAt string `mapstructure:"reload_at"`
}

type AppConfigForecast struct {
	// Days beyond the last observation to forecast, default: 365
	HorizonDays *int `mapstructure:"horizon_days"`
	// Initial window for the predicted energy summary, 1-365, default: 30
	DefaultWindowDays *int `mapstructure:"default_window_days"`
	// Uncertainty interval width between 0 and 1, default: 0.8
	IntervalWidth *float64 `mapstructure:"interval_width"`
	Daily         *bool
	Weekly        *bool
	Yearly        *bool
}

func (f AppConfigForecast) GetHorizonDays() int {
	if f.HorizonDays == nil || *f.HorizonDays < 1 {
		return forecast.DefaultHorizonDays
	}
	return *f.HorizonDays
}

func (f AppConfigForecast) GetDefaultWindowDays() int {
	if f.DefaultWindowDays == nil || forecast.ValidateWindow(*f.DefaultWindowDays) != nil {
		return forecast.DefaultWindowDays
	}
	return *f.DefaultWindowDays
}

func (f AppConfigForecast) AdditiveOptions() forecast.AdditiveOptions {
	opts := forecast.DefaultAdditiveOptions()
	if f.IntervalWidth != nil {
		opts.IntervalWidth = *f.IntervalWidth
	}
	if f.Daily != nil {
		opts.Daily = *f.Daily
	}
	if f.Weekly != nil {
		opts.Weekly = *f.Weekly
	}
	if f.Yearly != nil {
		opts.Yearly = *f.Yearly
	}
	return opts
}

type CacheBackend string

const (
	CacheBackendSQLite CacheBackend = "sqlite"
	CacheBackendFile   CacheBackend = "file"
	CacheBackendMemory CacheBackend = "memory"
)

type AppConfigCache struct {
	// "sqlite", "file" or "memory", default: "sqlite"
	Backend *string
	// Directory for the "file" backend, default: "models"
	Dir *string
	// Key the fitted model is stored under
	Key string
}

func (c AppConfigCache) GetBackend() (CacheBackend, error) {
	if c.Backend == nil {
		return CacheBackendSQLite, nil
	}
	switch b := CacheBackend(strings.ToLower(*c.Backend)); b {
	case CacheBackendSQLite, CacheBackendFile, CacheBackendMemory:
		return b, nil
	default:
		return "", fmt.Errorf("unknown cache backend %q", *c.Backend)
	}
}

func (c AppConfigCache) GetDir() string {
	if c.Dir == nil {
		return "models"
	}
	return *c.Dir
}

type AppConfigMqtt struct {
	Enabled  bool
	Host     string
	Port     int16
	Username string
	Password string
	// Topic the forecast summary is published to, default: "solarforecast/summary"
	Topic *string
}

func (m AppConfigMqtt) GetTopic() string {
	if m.Topic == nil {
		return "solarforecast/summary"
	}
	return *m.Topic
}

type AppConfigGui struct {
	// Timezone for displaying times in the GUI, default: UTC
	Timezone *string `mapstructure:"timezone"`
}

func (g AppConfigGui) GetTimezone() string {
	if g.Timezone == nil {
		return "UTC"
	}
	return *g.Timezone
}

type AppConfigLogging struct {
	// Min log level for database : "DEBUG", "INFO", "WARN", "ERROR", default: "INFO"
	DbLevel *string `mapstructure:"db_level"`
	// Log attributes format: "TEXT", "JSON", default: "JSON"
	DbAttrsFormat *string `mapstructure:"db_attrs_format"`
	// Maximum number of log entries in the database, default: 10000
	DbMaxEntries *int `mapstructure:"db_max_entries"`
	// Min log level for database console: "DEBUG", "INFO", "WARN", "ERROR", default: "INFO"
	ConsoleLevel *string `mapstructure:"console_level"`
}

func (l AppConfigLogging) GetDbLevel() slog.Level {
	return logging.LevelFromString(l.DbLevel)
}

func (l AppConfigLogging) GetDbAttrsFormat() logging.LogAttrFormat {
	if l.DbAttrsFormat != nil && strings.EqualFold(*l.DbAttrsFormat, "text") {
		return logging.LogAttrFormatText
	}
	return logging.LogAttrFormatJSON
}

func (l AppConfigLogging) GetDbMaxEntries() int {
	if l.DbMaxEntries == nil {
		return 10000
	}
	return *l.DbMaxEntries
}

func (l AppConfigLogging) GetConsoleLevel() slog.Level {
	return logging.LevelFromString(l.ConsoleLevel)
}

type AppConfig struct {
	Api      AppConfigApi
	Database AppConfigDatabase
	Dataset  AppConfigDataset  `mapstructure:"dataset"`
	Forecast AppConfigForecast `mapstructure:"forecast"`
	Cache    AppConfigCache    `mapstructure:"cache"`
	Mqtt     AppConfigMqtt     `mapstructure:"mqtt"`
	Gui      AppConfigGui      `mapstructure:"gui"`
	Logging  AppConfigLogging  `mapstructure:"logging"`
}

// Load reads the config file, environment variables override file values,
// e.g. FORECAST_HORIZON_DAYS for forecast.horizon_days.
func Load(path string) (*AppConfig, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath("config")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("api.address", "")
	v.SetDefault("api.port", 8080)
	v.SetDefault("database.path", "solarforecast.db")
	v.SetDefault("cache.key", "solar_forecast")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("unable to read config file: %w", err)
	}

	var c AppConfig
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unable to unmarshal config file: %w", err)
	}

	if _, err := c.Cache.GetBackend(); err != nil {
		return nil, err
	}

	return &c, nil
}
