package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
)

const defaultEndpoint = "https://api.line.me/v2/bot/message/broadcast"

// Config for the push channel. Token empty means alerts are logged only.
type Config struct {
	Endpoint   string
	Token      string
	MaxTextLen int
	Timeout    time.Duration
}

type textMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type broadcast struct {
	Messages []textMessage `json:"messages"`
}

// Pusher broadcasts alert text through the LINE messaging channel. Every
// push is a single fire-and-forget HTTP call; delivery failures are the
// caller's to log, never retried here.
type Pusher struct {
	cfg    Config
	client *http.Client
	log    *logrus.Entry
}

// NewPusher builds a pusher; zero config fields take defaults.
func NewPusher(cfg Config, log *logrus.Entry) *Pusher {
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultEndpoint
	}
	if cfg.MaxTextLen == 0 {
		cfg.MaxTextLen = 1000
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &Pusher{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		log:    log,
	}
}

// Push broadcasts one text message, truncated to the configured maximum.
// Truncation lands on a rune boundary so multi-byte characters are never
// split.
func (p *Pusher) Push(text string) error {
	if len(text) > p.cfg.MaxTextLen {
		cut := p.cfg.MaxTextLen
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut]
	}
	if p.cfg.Token == "" {
		p.log.WithField("text", text).Warn("push token not configured, alert logged only")
		return nil
	}

	payload, err := json.Marshal(broadcast{Messages: []textMessage{{Type: "text", Text: text}}})
	if err != nil {
		return fmt.Errorf("notify: marshal: %w", err)
	}
	req, err := http.NewRequest(http.MethodPost, p.cfg.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("notify: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.cfg.Token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("notify: push: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		return fmt.Errorf("notify: push status %d: %s", resp.StatusCode, body)
	}
	return nil
}
