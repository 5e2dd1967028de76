package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/couchcryptid/precip-bench/internal/domain"
	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// DefaultDatasets is the dataset list used when neither DATASETS nor a
// config file provides one.
const DefaultDatasets = "QM (all)=era5_qm_all.h5,QM (point-to-point)=era5_qm_point.h5,CombiPrecip=cpc.h5,WRF=wrf.h5"

// Config holds all benchmark settings, populated from environment variables
// and an optional TOML file.
type Config struct {
	DataDir   string
	Datasets  []domain.DatasetSource
	Reference string
	Times     domain.TimeRange
	CropNX    int
	CropNY    int
	PlotTime  int
	Unit      string
	FigsDir   string

	PSDFloor          float64
	SpectrumCacheSize int

	HTTPAddr         string
	ShutdownTimeout  time.Duration
	KafkaBrokers     []string
	KafkaReportTopic string
	PushgatewayURL   string
	LogLevel         string
	LogFormat        string
}

// fileConfig mirrors the benchmark settings a CONFIG_FILE may carry.
// Environment variables take precedence over it.
type fileConfig struct {
	DataDir           string                 `toml:"data_dir"`
	Datasets          []domain.DatasetSource `toml:"datasets"`
	Reference         string                 `toml:"reference"`
	TimeStart         *int                   `toml:"time_start"`
	TimeEnd           *int                   `toml:"time_end"`
	CropNX            *int                   `toml:"crop_nx"`
	CropNY            *int                   `toml:"crop_ny"`
	PlotTime          *int                   `toml:"plot_time"`
	Unit              string                 `toml:"unit"`
	FigsDir           string                 `toml:"figs_dir"`
	PSDMinThreshold   *float64               `toml:"psd_min_threshold"`
	SpectrumCacheSize *int                   `toml:"spectrum_cache_size"`
}

// Defaults returns the built-in configuration without consulting the
// environment or a config file.
func Defaults() *Config {
	datasets, _ := parseDatasets(DefaultDatasets)
	return &Config{
		DataDir:           "data",
		Datasets:          datasets,
		Reference:         "CombiPrecip",
		Times:             domain.TimeRange{Start: 0, End: 48},
		CropNX:            336,
		CropNY:            224,
		PlotTime:          -10,
		Unit:              "mm/h",
		FigsDir:           "figs",
		PSDFloor:          1e-10,
		SpectrumCacheSize: 32,
		ShutdownTimeout:   10 * time.Second,
		KafkaReportTopic:  "precip-benchmark-scores",
		LogLevel:          "info",
		LogFormat:         "json",
	}
}

// Load reads configuration from environment variables, applying values from
// CONFIG_FILE and then defaults where unset.
func Load() (*Config, error) {
	var file fileConfig
	if path := sharedcfg.EnvOrDefault("CONFIG_FILE", ""); path != "" {
		md, err := toml.DecodeFile(path, &file)
		if err != nil {
			return nil, fmt.Errorf("invalid CONFIG_FILE %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("invalid CONFIG_FILE %s: unknown key %q", path, undecoded[0].String())
		}
	}

	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	datasets := file.Datasets
	if raw := sharedcfg.EnvOrDefault("DATASETS", ""); raw != "" || len(datasets) == 0 {
		datasets, err = parseDatasets(or(raw, DefaultDatasets))
		if err != nil {
			return nil, err
		}
	}
	if err := checkDatasets(datasets); err != nil {
		return nil, err
	}

	cfg := &Config{
		DataDir:          sharedcfg.EnvOrDefault("DATA_DIR", or(file.DataDir, "data")),
		Datasets:         datasets,
		Reference:        sharedcfg.EnvOrDefault("REFERENCE", or(file.Reference, "CombiPrecip")),
		Unit:             sharedcfg.EnvOrDefault("UNIT", or(file.Unit, "mm/h")),
		FigsDir:          sharedcfg.EnvOrDefault("FIGS_DIR", or(file.FigsDir, "figs")),
		HTTPAddr:         sharedcfg.EnvOrDefault("HTTP_ADDR", ""),
		ShutdownTimeout:  shutdownTimeout,
		KafkaReportTopic: sharedcfg.EnvOrDefault("KAFKA_REPORT_TOPIC", "precip-benchmark-scores"),
		PushgatewayURL:   sharedcfg.EnvOrDefault("PUSHGATEWAY_URL", ""),
		LogLevel:         sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:        sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
	}
	if brokers := sharedcfg.EnvOrDefault("KAFKA_BROKERS", ""); brokers != "" {
		cfg.KafkaBrokers = sharedcfg.ParseBrokers(brokers)
	}

	ints := []struct {
		key  string
		file *int
		def  int
		dst  *int
	}{
		{"TIME_START", file.TimeStart, 0, &cfg.Times.Start},
		{"TIME_END", file.TimeEnd, 48, &cfg.Times.End},
		{"CROP_NX", file.CropNX, 336, &cfg.CropNX},
		{"CROP_NY", file.CropNY, 224, &cfg.CropNY},
		{"PLOT_TIME", file.PlotTime, -10, &cfg.PlotTime},
		{"SPECTRUM_CACHE_SIZE", file.SpectrumCacheSize, 32, &cfg.SpectrumCacheSize},
	}
	for _, s := range ints {
		def := s.def
		if s.file != nil {
			def = *s.file
		}
		if *s.dst, err = parseInt(s.key, def); err != nil {
			return nil, err
		}
	}

	floor := 1e-10
	if file.PSDMinThreshold != nil {
		floor = *file.PSDMinThreshold
	}
	raw := sharedcfg.EnvOrDefault("PSD_MIN_THRESHOLD", strconv.FormatFloat(floor, 'g', -1, 64))
	cfg.PSDFloor, err = strconv.ParseFloat(raw, 64)
	if err != nil || cfg.PSDFloor <= 0 {
		return nil, errors.New("invalid PSD_MIN_THRESHOLD: must be a positive number")
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if len(c.Datasets) == 0 {
		return errors.New("DATASETS is required")
	}
	if !slices.Contains(c.Labels(), c.Reference) {
		return fmt.Errorf("REFERENCE %q is not one of the DATASETS labels", c.Reference)
	}
	if c.Times.Start < 0 || c.Times.End <= c.Times.Start {
		return fmt.Errorf("invalid TIME_START/TIME_END: need 0 <= %d < %d", c.Times.Start, c.Times.End)
	}
	if c.CropNX <= 0 {
		return errors.New("invalid CROP_NX: must be positive")
	}
	if c.CropNY <= 0 {
		return errors.New("invalid CROP_NY: must be positive")
	}
	if c.SpectrumCacheSize <= 0 {
		return errors.New("invalid SPECTRUM_CACHE_SIZE: must be positive")
	}
	if len(c.KafkaBrokers) > 0 && c.KafkaReportTopic == "" {
		return errors.New("KAFKA_REPORT_TOPIC is required when KAFKA_BROKERS is set")
	}
	return nil
}

// Labels returns the dataset labels in configured order.
func (c *Config) Labels() []string {
	out := make([]string, len(c.Datasets))
	for i, d := range c.Datasets {
		out[i] = d.Label
	}
	return out
}

// DatasetPath resolves a source file against DataDir. Absolute paths are
// used unchanged.
func (c *Config) DatasetPath(src domain.DatasetSource) string {
	if filepath.IsAbs(src.File) {
		return src.File
	}
	return filepath.Join(c.DataDir, src.File)
}

// parseDatasets parses a comma-separated list of label=file pairs.
func parseDatasets(s string) ([]domain.DatasetSource, error) {
	var out []domain.DatasetSource
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		label, file, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("invalid DATASETS entry %q: want label=file", part)
		}
		out = append(out, domain.DatasetSource{Label: strings.TrimSpace(label), File: strings.TrimSpace(file)})
	}
	return out, nil
}

func checkDatasets(ds []domain.DatasetSource) error {
	seen := make(map[string]bool, len(ds))
	for _, d := range ds {
		if d.Label == "" || d.File == "" {
			return fmt.Errorf("invalid DATASETS entry %q=%q: label and file are required", d.Label, d.File)
		}
		if seen[d.Label] {
			return fmt.Errorf("invalid DATASETS: duplicate label %q", d.Label)
		}
		seen[d.Label] = true
	}
	return nil
}

func parseInt(key string, def int) (int, error) {
	raw := sharedcfg.EnvOrDefault(key, strconv.Itoa(def))
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q is not an integer", key, raw)
	}
	return n, nil
}

func or(v, def string) string {
	if v != "" {
		return v
	}
	return def
}
