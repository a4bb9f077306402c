package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Engines   EnginesConfig   `yaml:"engines" mapstructure:"engines"`
	Quality   QualityConfig   `yaml:"quality" mapstructure:"quality"`
	Fidelity  FidelityConfig  `yaml:"fidelity" mapstructure:"fidelity"`
	Sections  SectionsConfig  `yaml:"sections" mapstructure:"sections"`
	Citations CitationsConfig `yaml:"citations" mapstructure:"citations"`
	Pipeline  PipelineConfig  `yaml:"pipeline" mapstructure:"pipeline"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the document registry backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key            string  `yaml:"key" mapstructure:"key"`
	VisionModel    string  `yaml:"vision_model" mapstructure:"vision_model"`
	SynthesisModel string  `yaml:"synthesis_model" mapstructure:"synthesis_model"`
	MaxTokens      int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	RequestsPerMin float64 `yaml:"requests_per_min" mapstructure:"requests_per_min"`
}

// EnginesConfig configures the local extraction binaries.
type EnginesConfig struct {
	PdfToTextPath  string `yaml:"pdftotext_path" mapstructure:"pdftotext_path"`
	TesseractPath  string `yaml:"tesseract_path" mapstructure:"tesseract_path"`
	PdfToPpmPath   string `yaml:"pdftoppm_path" mapstructure:"pdftoppm_path"`
	RenderDPI      int    `yaml:"render_dpi" mapstructure:"render_dpi"`
	TimeoutSecs    int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxVisionPages int    `yaml:"max_vision_pages" mapstructure:"max_vision_pages"`
}

// QualityConfig holds scoring weights and escalation thresholds.
type QualityConfig struct {
	DictionaryPath   string  `yaml:"dictionary_path" mapstructure:"dictionary_path"`
	EscalateBelow    float64 `yaml:"escalate_below" mapstructure:"escalate_below"`
	EscalateYear     int     `yaml:"escalate_year" mapstructure:"escalate_year"`
	MinWordsPerPage  float64 `yaml:"min_words_per_page" mapstructure:"min_words_per_page"`
	MinAlphaRatio    float64 `yaml:"min_alpha_ratio" mapstructure:"min_alpha_ratio"`
	MaxGarbageWords  int     `yaml:"max_garbage_words" mapstructure:"max_garbage_words"`
	DensityGateBelow float64 `yaml:"density_gate_below" mapstructure:"density_gate_below"`
}

// FidelityConfig holds canary-score tier boundaries.
type FidelityConfig struct {
	CriticalBelow float64 `yaml:"critical_below" mapstructure:"critical_below"`
	HighBelow     float64 `yaml:"high_below" mapstructure:"high_below"`
	MediumBelow   float64 `yaml:"medium_below" mapstructure:"medium_below"`
	MaxWords      int     `yaml:"max_words" mapstructure:"max_words"`
}

// SectionsConfig configures structural section parsing.
type SectionsConfig struct {
	MinSectionWords   int     `yaml:"min_section_words" mapstructure:"min_section_words"`
	SynthesizeBelow   float64 `yaml:"synthesize_below" mapstructure:"synthesize_below"`
	SynthesisEnabled  bool    `yaml:"synthesis_enabled" mapstructure:"synthesis_enabled"`
	SynthesisMaxChars int     `yaml:"synthesis_max_chars" mapstructure:"synthesis_max_chars"`
}

// CitationsConfig configures citation extraction and self-filtering.
type CitationsConfig struct {
	CoRecipientWindow int `yaml:"co_recipient_window" mapstructure:"co_recipient_window"`
}

// PipelineConfig configures batch extraction behavior.
type PipelineConfig struct {
	Concurrency    int     `yaml:"concurrency" mapstructure:"concurrency"`
	CostCeilingUSD float64 `yaml:"cost_ceiling_usd" mapstructure:"cost_ceiling_usd"`
	MaxAttempts    int     `yaml:"max_attempts" mapstructure:"max_attempts"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("FPPC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "fppc.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("anthropic.vision_model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.synthesis_model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 8192)
	v.SetDefault("anthropic.requests_per_min", 50)
	v.SetDefault("engines.pdftotext_path", "pdftotext")
	v.SetDefault("engines.tesseract_path", "tesseract")
	v.SetDefault("engines.pdftoppm_path", "pdftoppm")
	v.SetDefault("engines.render_dpi", 200)
	v.SetDefault("engines.timeout_secs", 120)
	v.SetDefault("engines.max_vision_pages", 30)
	v.SetDefault("quality.escalate_below", 0.5)
	v.SetDefault("quality.escalate_year", 1990)
	v.SetDefault("quality.min_words_per_page", 80)
	v.SetDefault("quality.min_alpha_ratio", 0.70)
	v.SetDefault("quality.max_garbage_words", 5)
	v.SetDefault("quality.density_gate_below", 0.20)
	v.SetDefault("fidelity.critical_below", 0.30)
	v.SetDefault("fidelity.high_below", 0.50)
	v.SetDefault("fidelity.medium_below", 0.70)
	v.SetDefault("fidelity.max_words", 20000)
	v.SetDefault("sections.min_section_words", 1)
	v.SetDefault("sections.synthesize_below", 0.5)
	v.SetDefault("sections.synthesis_enabled", true)
	v.SetDefault("sections.synthesis_max_chars", 24000)
	v.SetDefault("citations.co_recipient_window", 3)
	v.SetDefault("pipeline.concurrency", 4)
	v.SetDefault("pipeline.cost_ceiling_usd", 0)
	v.SetDefault("pipeline.max_attempts", 3)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks configuration required for the given command mode.
// Modes: "extract", "verify", "graph", "stats".
func (c *Config) Validate(mode string) error {
	var missing []string

	check := func() {
		if c.Pipeline.Concurrency < 1 || c.Pipeline.Concurrency > 50 {
			missing = append(missing, "pipeline.concurrency must be between 1 and 50")
		}
		if c.Quality.EscalateBelow < 0 || c.Quality.EscalateBelow > 1 {
			missing = append(missing, "quality.escalate_below must be between 0 and 1")
		}
		if !(c.Fidelity.CriticalBelow < c.Fidelity.HighBelow && c.Fidelity.HighBelow < c.Fidelity.MediumBelow) {
			missing = append(missing, "fidelity tier boundaries must be strictly increasing")
		}
		if c.Store.Driver == "postgres" && c.Store.DatabaseURL == "" {
			missing = append(missing, "store.database_url is required for the postgres driver")
		}
		if c.Store.Driver == "sqlite" && c.Store.Path == "" {
			missing = append(missing, "store.path is required for the sqlite driver")
		}
	}

	switch mode {
	case "extract", "verify":
		check()
		if c.Anthropic.Key == "" {
			missing = append(missing, "anthropic.key is required")
		}
	case "graph", "stats":
		check()
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(missing) > 0 {
		return eris.Errorf("config: invalid configuration: %s", strings.Join(missing, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
