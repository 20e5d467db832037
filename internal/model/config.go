package model

import "time"

// Config holds every tunable of a run. Field tags double as viper keys.
type Config struct {
	Paths       PathsConfig       `yaml:"paths" mapstructure:"paths"`
	Match       MatchConfig       `yaml:"match" mapstructure:"match"`
	Ledger      LedgerConfig      `yaml:"ledger" mapstructure:"ledger"`
	HAL         HALConfig         `yaml:"hal" mapstructure:"hal"`
	HTTP        HTTPConfig        `yaml:"http" mapstructure:"http"`
	Cache       CacheConfig       `yaml:"cache" mapstructure:"cache"`
	Concurrency ConcurrencyConfig `yaml:"concurrency" mapstructure:"concurrency"`
	Output      OutputConfig      `yaml:"output" mapstructure:"output"`
}

// PathsConfig locates inputs and outputs
type PathsConfig struct {
	TextDir        string `yaml:"text_dir" mapstructure:"text_dir"`
	AbstractDir    string `yaml:"abstract_dir" mapstructure:"abstract_dir"`
	OtherAbstracts string `yaml:"other_abstracts,omitempty" mapstructure:"other_abstracts"` // JSONL of other-language abstracts
	ImageDir       string `yaml:"img_dir,omitempty" mapstructure:"img_dir"`
	OutputTextDir  string `yaml:"output_text_dir" mapstructure:"output_text_dir"`
	OutputImageDir string `yaml:"output_img_dir,omitempty" mapstructure:"output_img_dir"`
}

// MatchConfig tunes abstract localization
type MatchConfig struct {
	MaxEdits       int  `yaml:"max_edits" mapstructure:"max_edits"`             // fuzzy tier budget
	ApproxEdits    int  `yaml:"approx_edits" mapstructure:"approx_edits"`       // approximate tier budget
	CaseSensitive  bool `yaml:"case_sensitive" mapstructure:"case_sensitive"`   // skip lower-casing
	AbstractThresh int  `yaml:"abstract_thresh" mapstructure:"abstract_thresh"` // skip abstracts shorter than this many words (<=0 disables)
	OtherLanguages bool `yaml:"other_languages" mapstructure:"other_languages"` // multi-abstract mode
}

// LedgerConfig locates the completion logs
type LedgerConfig struct {
	FoundLog  string `yaml:"found_log" mapstructure:"found_log"`
	FailedLog string `yaml:"failed_log" mapstructure:"failed_log"`
}

// HALConfig configures the HAL metadata API
type HALConfig struct {
	Enabled  bool   `yaml:"enabled" mapstructure:"enabled"`
	BaseURL  string `yaml:"base_url" mapstructure:"base_url"`
	MainLang string `yaml:"main_lang" mapstructure:"main_lang"`
}

// HTTPConfig configures outbound requests
type HTTPConfig struct {
	Timeout    time.Duration `yaml:"timeout" mapstructure:"timeout"`
	UserAgent  string        `yaml:"user_agent" mapstructure:"user_agent"`
	HTTPProxy  string        `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy string        `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	NoProxy    string        `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`
	Robots     bool          `yaml:"respect_robots" mapstructure:"respect_robots"`
	RatePerSec float64       `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	Burst      int           `yaml:"burst" mapstructure:"burst"`
}

// CacheConfig configures the metadata response cache
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir       string        `yaml:"dir" mapstructure:"dir"`
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	DiskTTL   time.Duration `yaml:"disk_ttl" mapstructure:"disk_ttl"`
}

// ConcurrencyConfig sets the number of documents processed at once
type ConcurrencyConfig struct {
	Workers int `yaml:"workers" mapstructure:"workers"`
}

// OutputConfig controls what a run writes besides the redacted corpus
type OutputConfig struct {
	Limit      int    `yaml:"limit" mapstructure:"limit"` // <=0 processes everything
	Resume     bool   `yaml:"resume" mapstructure:"resume"`
	Overwrite  bool   `yaml:"overwrite" mapstructure:"overwrite"`
	ReportPath string `yaml:"report,omitempty" mapstructure:"report"`
	Verbose    bool   `yaml:"verbose" mapstructure:"verbose"`
}

// DefaultConfig returns the configuration used when nothing overrides it
func DefaultConfig() *Config {
	return &Config{
		Match: MatchConfig{
			MaxEdits:       15,
			ApproxEdits:    5,
			AbstractThresh: -1,
		},
		Ledger: LedgerConfig{
			FoundLog:  "./found_abstract.log",
			FailedLog: "./no_abstract.log",
		},
		HAL: HALConfig{
			BaseURL: "https://api.archives-ouvertes.fr/search/",
		},
		HTTP: HTTPConfig{
			Timeout:    30 * time.Second,
			UserAgent:  "absredact/0.1 (+https://github.com/ppiankov/absredact)",
			Robots:     true,
			RatePerSec: 1,
			Burst:      1,
		},
		Cache: CacheConfig{
			Enabled:   true,
			Dir:       ".absredact-cache",
			MemoryTTL: time.Hour,
			DiskTTL:   7 * 24 * time.Hour,
		},
		Concurrency: ConcurrencyConfig{
			Workers: 1,
		},
	}
}
