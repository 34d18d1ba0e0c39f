package handlers

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"batchflow/runtime"
)

// Config mirrors the settings file a deployment ships next to its flows: the
// directories assets live in, the release label, and per-format output
// toggles.
type Config struct {
	ProjectPath   string `yaml:"project_path" default:"."`
	InputDir      string `yaml:"input_dir" default:"data/input"`
	OutputDir     string `yaml:"output_dir" default:"data/output"`
	DictionaryDir string `yaml:"dictionary_dir" default:"data/dictionaries"`

	// ReleaseSpec labels the data release being processed. Flows log it and
	// jobs pivot on it to publish different versions of the same data.
	ReleaseSpec string `yaml:"release_spec" validate:"required"`

	// OutputCSVs gates the "csv" output format.
	OutputCSVs bool `yaml:"output_csvs" default:"true"`

	// OutputSQL gates the "sql" output format. When enabled SQL.DSN is
	// required.
	OutputSQL bool      `yaml:"output_sql"`
	SQL       SQLConfig `yaml:"sql"`
}

type SQLConfig struct {
	DSN      string `yaml:"dsn"`
	Truncate bool   `yaml:"truncate" default:"true"`
}

var validate = validator.New()

// LoadConfig reads a YAML settings file, applying defaults first and
// validating the merged result, the same defaults-merge-validate order the
// step manifests go through.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("applying defaults: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading settings file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing settings file: %w", err)
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	if cfg.OutputSQL && cfg.SQL.DSN == "" {
		return nil, fmt.Errorf("invalid settings: output_sql requires sql.dsn")
	}
	return cfg, nil
}

// InputPath returns the configured input directory rooted at the project.
func (c *Config) InputPath() string {
	return filepath.Join(c.ProjectPath, c.InputDir)
}

// OutputPath returns the configured output directory rooted at the project.
func (c *Config) OutputPath() string {
	return filepath.Join(c.ProjectPath, c.OutputDir)
}

// DictionaryPath returns the configured dictionary directory rooted at the
// project.
func (c *Config) DictionaryPath() string {
	return filepath.Join(c.ProjectPath, c.DictionaryDir)
}

// FileSettings is the standard settings binding: assets load from local
// files (or HTTP roots), and outputs fan out to CSV and JSON files plus an
// optional Postgres destination for the "sql" format.
type FileSettings struct {
	cfg     *Config
	fetcher *HTTPFetcher
	pg      *PostgresWriter
}

// NewFileSettings builds the binding around a loaded config.
func NewFileSettings(cfg *Config) *FileSettings {
	return &FileSettings{
		cfg:     cfg,
		fetcher: NewHTTPFetcher(),
	}
}

// ConnectSQL opens the Postgres destination when the config enables the
// "sql" format. A no-op otherwise.
func (s *FileSettings) ConnectSQL(ctx context.Context) error {
	if !s.cfg.OutputSQL {
		return nil
	}
	pg, err := NewPostgresWriter(ctx, s.cfg.SQL.DSN)
	if err != nil {
		return err
	}
	if err := pg.Ping(ctx); err != nil {
		pg.Close()
		return fmt.Errorf("postgres destination unreachable: %w", err)
	}
	s.pg = pg
	return nil
}

// Close releases the SQL destination, if any.
func (s *FileSettings) Close() {
	if s.pg != nil {
		s.pg.Close()
	}
}

// ReleaseSpec implements runtime.ReleaseSpecifier.
func (s *FileSettings) ReleaseSpec() string {
	return s.cfg.ReleaseSpec
}

// AssetExists implements runtime.AssetLocator, probing HTTP groups with a
// HEAD request and everything else with a stat.
func (s *FileSettings) AssetExists(group, file string) bool {
	if isRemoteGroup(group) {
		return s.fetcher.Exists(group, file)
	}
	info, err := os.Stat(filepath.Join(group, file))
	return err == nil && !info.IsDir()
}

// InputHandler loads one asset, dispatching on the group's scheme and the
// file extension: .csv and .tsv/.txt become Tables, .json becomes a gabs
// container, anything else the raw string.
func (s *FileSettings) InputHandler(group, file string) (any, error) {
	if isRemoteGroup(group) {
		return s.fetcher.Fetch(group, file)
	}

	path := filepath.Join(group, file)
	switch strings.ToLower(filepath.Ext(file)) {
	case ".csv":
		return ReadTableFile(path, ',')
	case ".tsv", ".txt":
		return ReadTableFile(path, '\t')
	case ".json":
		return ReadJSONFile(path)
	default:
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		return string(data), nil
	}
}

// OutputHandler writes one asset in one format. Recognized options:
// "sep" (string, csv delimiter), "table" (string, sql destination table).
func (s *FileSettings) OutputHandler(group, key, format string, payload any, opts map[string]any) error {
	switch format {
	case "csv":
		if !s.cfg.OutputCSVs {
			return nil
		}
		return s.outputCSV(group, key, payload, opts)
	case "json":
		return WriteJSONFile(filepath.Join(group, key+".json"), payload)
	case "sql":
		if !s.cfg.OutputSQL {
			return nil
		}
		return s.outputSQL(key, payload, opts)
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}

// outputCSV writes a Table to group/key.csv. A map payload (from a pattern
// or list reference) becomes one file per entry under group/key/.
func (s *FileSettings) outputCSV(group, key string, payload any, opts map[string]any) error {
	sep := optRune(opts, "sep", ',')

	switch v := payload.(type) {
	case *Table:
		return v.WriteTableFile(filepath.Join(group, key+".csv"), sep)
	case map[string]any:
		dir := filepath.Join(group, key)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
		for name, item := range v {
			t, ok := item.(*Table)
			if !ok {
				return fmt.Errorf("csv output %s/%s: unsupported payload type %T", key, name, item)
			}
			if err := t.WriteTableFile(filepath.Join(dir, name+".csv"), sep); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("csv output %s: unsupported payload type %T", key, payload)
	}
}

// outputSQL copies a Table payload into the Postgres destination. A map
// payload becomes one destination table per entry.
func (s *FileSettings) outputSQL(key string, payload any, opts map[string]any) error {
	if s.pg == nil {
		return fmt.Errorf("sql output %s: destination not connected, call ConnectSQL first", key)
	}

	name := optString(opts, "table", key)
	ctx := context.Background()

	switch v := payload.(type) {
	case *Table:
		return s.pg.WriteTable(ctx, name, v, s.cfg.SQL.Truncate)
	case map[string]any:
		for entry, item := range v {
			t, ok := item.(*Table)
			if !ok {
				return fmt.Errorf("sql output %s/%s: unsupported payload type %T", key, entry, item)
			}
			if err := s.pg.WriteTable(ctx, entry, t, s.cfg.SQL.Truncate); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("sql output %s: unsupported payload type %T", key, payload)
	}
}

// AnalyzeAsset implements runtime.AssetAnalyzer: asset messages carry a
// truncated checksum and, for Tables, the dataset shape.
func (s *FileSettings) AnalyzeAsset(group, name, format string, payload any, duration string, op runtime.Operation) string {
	switch op {
	case runtime.OpInput:
		if isRemoteGroup(group) {
			return fmt.Sprintf("Loaded asset %s %s%s", name, duration, payloadShape(payload))
		}
		sum, err := Checksum(filepath.Join(group, name))
		if err != nil {
			return ""
		}
		return fmt.Sprintf("Loaded asset %s %s %s%s", name, duration, sum, payloadShape(payload))
	case runtime.OpOutput:
		if format == "sql" && !s.cfg.OutputSQL {
			return "SQL output is disabled. No related assets were created."
		}
		if format == "csv" && !s.cfg.OutputCSVs {
			return "CSV output is disabled. No related assets were created."
		}
		out := fmt.Sprintf("Finished output: %s.%s %s", name, format, duration)
		if format == "csv" {
			if sum, err := Checksum(filepath.Join(group, name+".csv")); err == nil {
				out += " " + sum
			}
		}
		return out + payloadShape(payload)
	}
	return ""
}

// payloadShape renders a Table's shape suffix, or nothing for other payloads.
func payloadShape(payload any) string {
	if t, ok := payload.(*Table); ok {
		return " " + t.Shape()
	}
	return ""
}

func optString(opts map[string]any, key, def string) string {
	if v, ok := opts[key].(string); ok && v != "" {
		return v
	}
	return def
}

func optRune(opts map[string]any, key string, def rune) rune {
	if v, ok := opts[key].(string); ok && v != "" {
		return []rune(v)[0]
	}
	return def
}
