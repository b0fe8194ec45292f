package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

const (
	defaultLogLevel       = "info"
	defaultLogFormat      = FormatJSON
	defaultEngineCommand  = "pdf2zh-pipeline"
	defaultQPS            = 4
	defaultThreads        = 4
	defaultReportInterval = 1.0
	defaultJobTTL         = time.Hour
	defaultSweepInterval  = time.Minute
	defaultDBPath         = ":memory:"

	envLogDir        = "PDF2ZH_LOG_DIR"
	envLogLevel      = "PDF2ZH_LOG_LEVEL"
	envLogFormat     = "PDF2ZH_LOG_FORMAT"
	envEngineCommand = "PDF2ZH_ENGINE_COMMAND"
	envAssetUpstream = "PDF2ZH_ASSET_UPSTREAM"
	envJobTTL        = "PDF2ZH_JOB_TTL"
	envDBPath        = "PDF2ZH_HISTORY_DB"
	envCORSOrigins   = "PDF2ZH_CORS_ORIGINS"
)

// Log output formats.
const (
	FormatJSON = "json"
	FormatText = "text"
	FormatAuto = "auto"
)

// assetUpstreams are the model/font mirrors the pipeline can be pinned to.
var assetUpstreams = map[string]bool{
	"modelscope":  true,
	"huggingface": true,
	"github":      true,
}

// Config holds application configuration. Values are layered: defaults, then
// the TOML file, then PDF2ZH_* environment variables, then CLI flags.
type Config struct {
	Port      int     `toml:"port"`
	PPID      int     `toml:"ppid"`
	LogDir    string  `toml:"log_dir"`
	LogLevel  string  `toml:"log_level"`
	LogFormat string  `toml:"log_format"`
	Server    Server  `toml:"server"`
	Engine    Engine  `toml:"engine"`
	Jobs      Jobs    `toml:"jobs"`
	History   History `toml:"history"`
}

// Server configures the HTTP surface.
type Server struct {
	// CORSOrigins lists the browser origins allowed to call the API. Empty
	// disables CORS entirely.
	CORSOrigins []string `toml:"cors_origins"`
}

// Engine configures the external translation pipeline.
type Engine struct {
	// Command is the adapter program followed by its fixed arguments.
	Command        []string `toml:"command"`
	QPS            int      `toml:"qps"`
	Threads        int      `toml:"threads"`
	ReportInterval float64  `toml:"report_interval"`
	IgnoreCache    bool     `toml:"ignore_cache"`
	Pages          string   `toml:"pages"`
	// AssetUpstream pins the mirror the pipeline downloads assets from.
	AssetUpstream string `toml:"asset_upstream"`
}

// Jobs configures in-memory job retention.
type Jobs struct {
	TTL           Duration `toml:"ttl"`
	SweepInterval Duration `toml:"sweep_interval"`
}

// History configures the job history database.
type History struct {
	DBPath string `toml:"db_path"`
}

// Duration is a time.Duration written as a Go duration string ("90s", "1h").
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		LogLevel:  defaultLogLevel,
		LogFormat: defaultLogFormat,
		Engine: Engine{
			Command:        []string{defaultEngineCommand},
			QPS:            defaultQPS,
			Threads:        defaultThreads,
			ReportInterval: defaultReportInterval,
		},
		Jobs: Jobs{
			TTL:           Duration{defaultJobTTL},
			SweepInterval: Duration{defaultSweepInterval},
		},
		History: History{DBPath: defaultDBPath},
	}
}

// Load builds the configuration from the defaults, the TOML file at path
// (skipped when path is empty) and the environment. Flags are applied by the
// caller, followed by Validate.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		file, err := os.Open(path)
		if err != nil {
			return Config{}, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv(envLogDir); v != "" {
		c.LogDir = v
	}
	if v := os.Getenv(envLogLevel); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv(envLogFormat); v != "" {
		c.LogFormat = v
	}
	if v := os.Getenv(envEngineCommand); v != "" {
		c.Engine.Command = strings.Fields(v)
	}
	if v := os.Getenv(envAssetUpstream); v != "" {
		c.Engine.AssetUpstream = v
	}
	if v := os.Getenv(envCORSOrigins); v != "" {
		c.Server.CORSOrigins = splitList(v)
	}
	if v := os.Getenv(envDBPath); v != "" {
		c.History.DBPath = v
	}
	if v := os.Getenv(envJobTTL); v != "" {
		ttl, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", envJobTTL, err)
		}
		c.Jobs.TTL = Duration{ttl}
	}
	return nil
}

// Validate checks the final configuration and normalizes case-insensitive
// values.
func (c *Config) Validate() error {
	var errs []error

	if c.Port < 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}

	c.LogFormat = strings.ToLower(strings.TrimSpace(c.LogFormat))
	switch c.LogFormat {
	case FormatJSON, FormatText, FormatAuto:
	default:
		errs = append(errs, fmt.Errorf("log_format %q must be json, text or auto", c.LogFormat))
	}

	for _, origin := range c.Server.CORSOrigins {
		if strings.TrimSpace(origin) == "" {
			errs = append(errs, errors.New("server.cors_origins must not contain empty entries"))
			break
		}
	}

	if len(c.Engine.Command) == 0 || c.Engine.Command[0] == "" {
		errs = append(errs, errors.New("engine.command must not be empty"))
	}
	if c.Engine.QPS <= 0 {
		errs = append(errs, fmt.Errorf("engine.qps must be positive, got %d", c.Engine.QPS))
	}
	if c.Engine.Threads <= 0 {
		errs = append(errs, fmt.Errorf("engine.threads must be positive, got %d", c.Engine.Threads))
	}
	if c.Engine.ReportInterval <= 0 {
		errs = append(errs, fmt.Errorf("engine.report_interval must be positive, got %s",
			strconv.FormatFloat(c.Engine.ReportInterval, 'g', -1, 64)))
	}

	c.Engine.AssetUpstream = strings.ToLower(strings.TrimSpace(c.Engine.AssetUpstream))
	if c.Engine.AssetUpstream != "" && !assetUpstreams[c.Engine.AssetUpstream] {
		errs = append(errs, fmt.Errorf("engine.asset_upstream %q must be modelscope, huggingface or github", c.Engine.AssetUpstream))
	}

	if c.Jobs.TTL.Duration < 0 {
		errs = append(errs, errors.New("jobs.ttl must not be negative"))
	}
	if c.Jobs.SweepInterval.Duration < 0 {
		errs = append(errs, errors.New("jobs.sweep_interval must not be negative"))
	}
	if c.History.DBPath == "" {
		errs = append(errs, errors.New("history.db_path must not be empty"))
	}

	return errors.Join(errs...)
}

// Level returns the configured slog level.
func (c Config) Level() slog.Level {
	return parseLogLevel(c.LogLevel)
}

// EngineEnv returns the extra environment passed to the pipeline process.
func (c Config) EngineEnv() []string {
	if c.Engine.AssetUpstream == "" {
		return nil
	}
	return []string{envAssetUpstream + "=" + c.Engine.AssetUpstream}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
