// Package config defines the overall structure of the dmscout
// configuration. Values are taken from a config yml file or environment
// variables or both.
package config

import (
	"github.com/ilyakaznacheev/cleanenv"
)

// WriterConfig defines the necessary parameters to make a new writer
// which is responsible for writing the detected reel records to a
// specific output, eg. stdout.
type WriterConfig struct {
	Type     string `yaml:"type" env:"WRITER_TYPE" env-default:"stdout"`
	FilePath string `yaml:"filepath" env:"WRITER_FILEPATH"`
}

// ScrollConfig tunes the pacing of synthetic scroll gestures. All
// durations are milliseconds, amounts are pixels.
type ScrollConfig struct {
	MinAmount     int    `yaml:"min_amount" env:"SCROLL_MIN_AMOUNT" env-default:"400"`
	MaxAmount     int    `yaml:"max_amount" env:"SCROLL_MAX_AMOUNT" env-default:"900"`
	MinDurationMS int    `yaml:"min_duration_ms" env:"SCROLL_MIN_DURATION_MS" env-default:"600"`
	MaxDurationMS int    `yaml:"max_duration_ms" env:"SCROLL_MAX_DURATION_MS" env-default:"1400"`
	MinPauseMS    int    `yaml:"min_pause_ms" env:"SCROLL_MIN_PAUSE_MS" env-default:"800"`
	MaxPauseMS    int    `yaml:"max_pause_ms" env:"SCROLL_MAX_PAUSE_MS" env-default:"2500"`
	MaxScrolls    int    `yaml:"max_scrolls" env:"SCROLL_MAX_SCROLLS" env-default:"120"`
	StuckPx       int    `yaml:"stuck_px" env:"SCROLL_STUCK_PX" env-default:"10"`
	LoadMoreWait  int    `yaml:"load_more_wait_ms" env:"SCROLL_LOAD_MORE_WAIT_MS" env-default:"4000"`
	Direction     string `yaml:"direction" env:"SCROLL_DIRECTION" env-default:"up"`
}

// StoreConfig configures the sqlite persistence.
type StoreConfig struct {
	Path     string `yaml:"path" env:"STORE_PATH" env-default:"dmscout.db"`
	MaxReels int    `yaml:"max_reels" env:"STORE_MAX_REELS" env-default:"500"`
}

// ControlConfig configures the local control API.
type ControlConfig struct {
	Addr string `yaml:"addr" env:"CONTROL_ADDR" env-default:"127.0.0.1:8632"`
}

// Config is the top level configuration.
type Config struct {
	// Host is the expected host of the DM page. Control requests that
	// target a tab on another host are rejected.
	Host            string        `yaml:"host" env:"DMSCOUT_HOST" env-default:"www.instagram.com"`
	ConversationURL string        `yaml:"conversation_url" env:"DMSCOUT_CONVERSATION_URL"`
	UserAgent       string        `yaml:"user_agent" env:"DMSCOUT_USER_AGENT"`
	Headless        bool          `yaml:"headless" env:"DMSCOUT_HEADLESS" env-default:"true"`
	DateLanguage    string        `yaml:"date_language" env:"DMSCOUT_DATE_LANGUAGE" env-default:"en_US"`
	DateLocation    string        `yaml:"date_location" env:"DMSCOUT_DATE_LOCATION" env-default:"UTC"`
	StrategyFile    string        `yaml:"strategy_file" env:"DMSCOUT_STRATEGY_FILE"`
	Scroll          ScrollConfig  `yaml:"scroll"`
	Store           StoreConfig   `yaml:"store"`
	Control         ControlConfig `yaml:"control"`
	Writer          WriterConfig  `yaml:"writer"`
}

func NewConfig(configPath string) (*Config, error) {
	var config Config
	if configPath == "" {
		if err := cleanenv.ReadEnv(&config); err != nil {
			return nil, err
		}
		return &config, nil
	}
	if err := cleanenv.ReadConfig(configPath, &config); err != nil {
		return nil, err
	}
	return &config, nil
}
