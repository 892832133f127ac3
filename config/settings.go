package config

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gofhir/gen3dict/pkg/logger"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. GEN3DICT_CACHE_DIR.
const EnvPrefix = "GEN3DICT"

// Settings are the process-level options of the generator.
type Settings struct {
	CacheDir    string           `mapstructure:"cache_dir"`
	OutputDir   string           `mapstructure:"output_dir"`
	ProfilesDir string           `mapstructure:"profiles_dir"`
	MaxConcepts int              `mapstructure:"max_concepts"`
	ValueSets   ValueSetSettings `mapstructure:"valuesets"`
	HTTP        HTTPSettings     `mapstructure:"http"`
	Log         LogSettings      `mapstructure:"log"`
}

// ValueSetSettings locate the value-set store and its inputs.
type ValueSetSettings struct {
	Path        string `mapstructure:"path"`
	DatabaseURL string `mapstructure:"database_url"`
	Curated     bool   `mapstructure:"curated"`
}

// HTTPSettings tune profile fetching.
type HTTPSettings struct {
	Timeout time.Duration `mapstructure:"timeout"`
	BaseURL string        `mapstructure:"base_url"`
}

// LogSettings select level and encoding.
type LogSettings struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

var settingKeys = []string{
	"cache_dir",
	"output_dir",
	"profiles_dir",
	"max_concepts",
	"valuesets.path",
	"valuesets.database_url",
	"valuesets.curated",
	"http.timeout",
	"http.base_url",
	"log.level",
	"log.format",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("cache_dir", "cache")
	v.SetDefault("output_dir", "schemas")
	v.SetDefault("profiles_dir", "")
	v.SetDefault("max_concepts", 1000)
	v.SetDefault("valuesets.path", "data/valuesets.json")
	v.SetDefault("valuesets.database_url", "")
	v.SetDefault("valuesets.curated", false)
	v.SetDefault("http.timeout", 30*time.Second)
	v.SetDefault("http.base_url", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// LoadSettings reads settings from defaults, an optional settings file and
// GEN3DICT_ environment variables, in increasing precedence. An empty file
// looks for gen3dict.yaml in the working directory and tolerates its absence;
// a named file must exist.
func LoadSettings(file string) (*Settings, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range settingKeys {
		_ = v.BindEnv(key)
	}

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read settings %s: %w", file, err)
		}
	} else {
		v.SetConfigName("gen3dict")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read settings: %w", err)
			}
		}
	}

	s := &Settings{}
	if err := v.Unmarshal(s); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}
	if s.MaxConcepts <= 0 {
		return nil, fmt.Errorf("%w: max_concepts must be positive, got %d", ErrInvalid, s.MaxConcepts)
	}
	return s, nil
}

// Logger builds the logger described by the log settings.
func (s *Settings) Logger(w io.Writer) *logger.Logger {
	level := logger.ParseLevel(s.Log.Level)
	if strings.EqualFold(s.Log.Format, string(logger.FormatJSON)) {
		return logger.New(w, level)
	}
	return logger.NewConsole(w, level)
}
