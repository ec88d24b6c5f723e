package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"optionwatch/internal/observ"
)

type Connection struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	ClientID int    `yaml:"client_id"`
}

type Strategy struct {
	DeltaUpper      float64 `yaml:"delta_upper"`       // short positions alert at |delta| >= this
	DeltaLower      float64 `yaml:"delta_lower"`       // long positions alert at |delta| <= this
	ProfitTarget    float64 `yaml:"profit_target"`     // fraction of reference premium
	ProfitShortOnly *bool   `yaml:"profit_short_only"` // default true
	MinDTE          int     `yaml:"min_dte"`
	GapThreshold    float64 `yaml:"gap_threshold"` // fraction vs prior close
}

type Intervals struct {
	CheckSeconds           int `yaml:"check_seconds"`
	ClosedMultiplier       int `yaml:"closed_multiplier"`
	PositionRefreshMinutes int `yaml:"position_refresh_minutes"`
}

type Session struct {
	ReferenceSymbol     string `yaml:"reference_symbol"`
	StickyGraceMinutes  int    `yaml:"sticky_grace_minutes"`
	CloseDebounceMinute int    `yaml:"close_debounce_minutes"`
}

type Journal struct {
	Path string `yaml:"path"` // empty disables the alert journal
}

type Notify struct {
	Endpoint   string `yaml:"endpoint"`
	Token      string `yaml:"-"` // LINE_CHANNEL_ACCESS_TOKEN, never from the file
	MaxTextLen int    `yaml:"max_text_len"`
}

type Root struct {
	Connection Connection    `yaml:"connection"`
	Strategy   Strategy      `yaml:"strategy"`
	Intervals  Intervals     `yaml:"intervals"`
	Session    Session       `yaml:"session"`
	Journal    Journal       `yaml:"journal"`
	Notify     Notify        `yaml:"notify"`
	Logging    observ.Config `yaml:"logging"`
}

// Load reads the YAML config at path and fills defaults. The notification
// token always comes from the environment so it never lands in a file.
func Load(path string) (Root, error) {
	var c Root
	b, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return c, err
	}

	if c.Connection.Host == "" {
		c.Connection.Host = "127.0.0.1"
	}
	if c.Connection.Port == 0 {
		c.Connection.Port = 7497
	}
	if c.Connection.ClientID == 0 {
		c.Connection.ClientID = 17
	}

	if c.Strategy.DeltaUpper == 0 {
		c.Strategy.DeltaUpper = 0.30
	}
	if c.Strategy.DeltaLower == 0 {
		c.Strategy.DeltaLower = 0.10
	}
	if c.Strategy.ProfitTarget == 0 {
		c.Strategy.ProfitTarget = 0.50
	}
	if c.Strategy.MinDTE == 0 {
		c.Strategy.MinDTE = 21
	}
	if c.Strategy.GapThreshold == 0 {
		c.Strategy.GapThreshold = 0.03
	}

	if c.Intervals.CheckSeconds == 0 {
		c.Intervals.CheckSeconds = 60
	}
	if c.Intervals.ClosedMultiplier == 0 {
		c.Intervals.ClosedMultiplier = 5
	}
	if c.Intervals.PositionRefreshMinutes == 0 {
		c.Intervals.PositionRefreshMinutes = 10
	}

	if c.Session.ReferenceSymbol == "" {
		c.Session.ReferenceSymbol = "SPY"
	}
	if c.Session.StickyGraceMinutes == 0 {
		c.Session.StickyGraceMinutes = 15
	}
	if c.Session.CloseDebounceMinute == 0 {
		c.Session.CloseDebounceMinute = 5
	}

	c.Notify.Token = os.Getenv("LINE_CHANNEL_ACCESS_TOKEN")
	if c.Notify.MaxTextLen == 0 {
		c.Notify.MaxTextLen = 1000
	}

	return c, nil
}

// ProfitShortOnlyValue resolves the tri-state flag; unset means true.
func (s Strategy) ProfitShortOnlyValue() bool {
	if s.ProfitShortOnly == nil {
		return true
	}
	return *s.ProfitShortOnly
}
