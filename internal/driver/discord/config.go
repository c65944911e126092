package discord

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	// DefaultWebhookName is the channel webhook identity used for impersonated
	// responses when configuration does not override it.
	DefaultWebhookName = "ReMark Snipe"

	defaultMessageCacheSize = 1000
)

// Config describes one Discord driver instance.
type Config struct {
	// Token is the bot token used for gateway and REST authentication.
	Token string `json:"token"`
	// WebhookName is the fixed name of the response webhook. Messages authored
	// by this webhook are never ingested.
	WebhookName string `json:"webhook_name"`
	// MessageCacheSize bounds the gateway state cache used to recover prior
	// message bodies for edit and delete events.
	MessageCacheSize int `json:"message_cache_size"`
}

// ParseConfig decodes and validates one driver JSON payload.
func ParseConfig(raw []byte) (Config, error) {
	var cfg Config
	if len(raw) > 0 {
		decoder := json.NewDecoder(strings.NewReader(string(raw)))
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return Config{}, fmt.Errorf("parse discord driver config: %w", err)
		}
	}

	if strings.TrimSpace(cfg.Token) == "" {
		return Config{}, fmt.Errorf("parse discord driver config: missing token")
	}
	if strings.TrimSpace(cfg.WebhookName) == "" {
		cfg.WebhookName = DefaultWebhookName
	}
	if cfg.MessageCacheSize <= 0 {
		cfg.MessageCacheSize = defaultMessageCacheSize
	}

	return cfg, nil
}
