package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/trackfit/autobone/internal/autobone"
	"github.com/trackfit/autobone/internal/database"
)

// ConfigFileName is the name of the JSON config file inside the config dir.
const ConfigFileName = "autobone.cfg.json"

// JSONFileConfig holds settings for the JSON file recording store.
type JSONFileConfig struct {
	SaveDir  string `json:"saveDir" mapstructure:"saveDir"`
	LoadDir  string `json:"loadDir" mapstructure:"loadDir"`
	Compress bool   `json:"compress" mapstructure:"compress"`
}

// SQLiteConfig holds settings for the SQLite recording store.
type SQLiteConfig struct {
	Path         string        `json:"path" mapstructure:"path"`
	DumpPath     string        `json:"dumpPath" mapstructure:"dumpPath"`
	DumpInterval time.Duration `json:"dumpInterval" mapstructure:"dumpInterval"`
}

// StorageConfig selects and configures the recording store.
type StorageConfig struct {
	Type     string                  `json:"type" mapstructure:"type"`
	JSONFile JSONFileConfig          `json:"jsonfile" mapstructure:"jsonfile"`
	SQLite   SQLiteConfig            `json:"sqlite" mapstructure:"sqlite"`
	Postgres database.PostgresConfig `json:"postgres" mapstructure:"postgres"`
}

// OtelConfig holds OpenTelemetry settings.
type OtelConfig struct {
	Enabled      bool          `json:"enabled" mapstructure:"enabled"`
	ServiceName  string        `json:"serviceName" mapstructure:"serviceName"`
	BatchTimeout time.Duration `json:"batchTimeout" mapstructure:"batchTimeout"`
	Endpoint     string        `json:"endpoint" mapstructure:"endpoint"`
	Insecure     bool          `json:"insecure" mapstructure:"insecure"`
}

// InfluxConfig holds settings for the InfluxDB epoch metrics sink.
type InfluxConfig struct {
	Enabled  bool   `json:"enabled" mapstructure:"enabled"`
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	Protocol string `json:"protocol" mapstructure:"protocol"`
	Token    string `json:"token" mapstructure:"token"`
	Org      string `json:"org" mapstructure:"org"`
	Bucket   string `json:"bucket" mapstructure:"bucket"`
	Backup   string `json:"backupPath" mapstructure:"backupPath"`
}

// LoggingConfig holds log level and destination.
type LoggingConfig struct {
	Level   string `json:"logLevel" mapstructure:"logLevel"`
	LogsDir string `json:"logsDir" mapstructure:"logsDir"`
}

// ReportConfig controls the epoch error chart.
type ReportConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Dir     string `json:"dir" mapstructure:"dir"`
}

func setDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./logs")

	def := autobone.DefaultConfig()
	viper.SetDefault("autobone.sampleCount", def.SampleCount)
	viper.SetDefault("autobone.sampleRateMs", def.SampleRateMs)
	viper.SetDefault("autobone.calcInitError", def.CalcInitError)
	viper.SetDefault("autobone.randomizeFrameOrder", def.RandomizeFrameOrder)
	viper.SetDefault("autobone.saveRecordings", def.SaveRecordings)
	viper.SetDefault("autobone.numEpochs", def.NumEpochs)
	viper.SetDefault("autobone.printEveryNumEpochs", def.PrintEveryNumEpochs)
	viper.SetDefault("autobone.initialAdjustRate", def.InitialAdjustRate)
	viper.SetDefault("autobone.adjustRateMultiplier", def.AdjustRateMultiplier)
	viper.SetDefault("autobone.slideErrorFactor", def.SlideErrorFactor)
	viper.SetDefault("autobone.heightErrorFactor", def.HeightErrorFactor)
	viper.SetDefault("autobone.minDataDistance", def.MinDataDistance)
	viper.SetDefault("autobone.maxDataDistance", def.MaxDataDistance)
	viper.SetDefault("autobone.cursorIncrement", def.CursorIncrement)
	viper.SetDefault("autobone.positionScale", def.PositionScale)
	viper.SetDefault("autobone.randomSeed", def.RandomSeed)
	viper.SetDefault("autobone.targetHmdHeight", def.TargetHmdHeight)
	viper.SetDefault("autobone.useSkeletonHeight", def.UseSkeletonHeight)
	viper.SetDefault("autobone.computeContributions", def.ComputeContributions)
	viper.SetDefault("autobone.exportDir", def.ExportDir)

	viper.SetDefault("storage.type", "jsonfile")
	viper.SetDefault("storage.jsonfile.saveDir", "AutoBone Recordings")
	viper.SetDefault("storage.jsonfile.loadDir", "Load AutoBone Recordings")
	viper.SetDefault("storage.jsonfile.compress", false)
	viper.SetDefault("storage.sqlite.path", "")
	viper.SetDefault("storage.sqlite.dumpPath", "autobone.db")
	viper.SetDefault("storage.sqlite.dumpInterval", "1m")
	viper.SetDefault("storage.postgres.host", "localhost")
	viper.SetDefault("storage.postgres.port", "5432")
	viper.SetDefault("storage.postgres.username", "postgres")
	viper.SetDefault("storage.postgres.password", "postgres")
	viper.SetDefault("storage.postgres.database", "autobone")
	viper.SetDefault("storage.postgres.sslMode", "disable")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "autobone")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "autobone")
	viper.SetDefault("influx.bucket", "autobone")
	viper.SetDefault("influx.backupPath", "")

	viper.SetDefault("report.enabled", false)
	viper.SetDefault("report.dir", "reports")
}

// Load sets default values and reads the JSON config file from configDir.
// A missing file is not an error; defaults apply and the file is created
// on the first save.
func Load(configDir string) error {
	setDefaults()

	viper.SetConfigName(ConfigFileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	if errors.As(err, &notFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}
	return nil
}

// FilePath returns the config file in use, or where it would be created.
func FilePath(configDir string) string {
	if used := viper.ConfigFileUsed(); used != "" {
		return used
	}
	return filepath.Join(configDir, ConfigFileName)
}

// BindFlags binds command line flags to config keys of the same name.
func BindFlags(flags *pflag.FlagSet) error {
	return viper.BindPFlags(flags)
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// settings mirrors the whole config tree. viper.Unmarshal merges defaults,
// file values and flags key by key, which UnmarshalKey on a section does not.
type settings struct {
	AutoBone autobone.Config `mapstructure:"autobone"`
	Storage  StorageConfig   `mapstructure:"storage"`
	Otel     OtelConfig      `mapstructure:"otel"`
	Influx   InfluxConfig    `mapstructure:"influx"`
	Report   ReportConfig    `mapstructure:"report"`
}

func current() settings {
	var s settings
	if err := viper.Unmarshal(&s); err != nil {
		return settings{}
	}
	return s
}

// GetAutoBoneConfig returns the recording and optimization settings.
func GetAutoBoneConfig() autobone.Config {
	return current().AutoBone
}

// GetStorageConfig returns the recording store settings.
func GetStorageConfig() StorageConfig {
	return current().Storage
}

// GetOtelConfig returns the OpenTelemetry settings.
func GetOtelConfig() OtelConfig {
	return current().Otel
}

// GetInfluxConfig returns the InfluxDB settings.
func GetInfluxConfig() InfluxConfig {
	return current().Influx
}

// GetReportConfig returns the chart settings.
func GetReportConfig() ReportConfig {
	return current().Report
}

// GetLoggingConfig returns the log settings.
func GetLoggingConfig() LoggingConfig {
	return LoggingConfig{
		Level:   viper.GetString("logLevel"),
		LogsDir: viper.GetString("logsDir"),
	}
}
