package snipe

import (
	"fmt"
	"time"

	"remark-bot/pkg/remark"
)

const (
	defaultMaxAge        = 2 * time.Minute
	defaultPruneInterval = 3 * time.Second
)

// ResponseMode selects how a sniped message is rendered back to the channel.
type ResponseMode string

const (
	// ResponseModeEmbed replies in-channel with an embed of the sniped content.
	ResponseModeEmbed ResponseMode = "embed"
	// ResponseModeWebhook impersonates the sniped author through a channel webhook.
	ResponseModeWebhook ResponseMode = "webhook"
)

// Validate checks whether the response mode is one of the supported variants.
func (m ResponseMode) Validate() error {
	switch m {
	case ResponseModeEmbed, ResponseModeWebhook:
		return nil
	default:
		return fmt.Errorf("%w: %q is not one of [%s, %s]",
			remark.ErrInvalidResponseMode, string(m), ResponseModeEmbed, ResponseModeWebhook)
	}
}

// Settings configures snipe module behavior.
type Settings struct {
	// MaxAge bounds how long a recorded state stays snipeable.
	MaxAge time.Duration
	// PruneInterval is the background eviction loop period.
	PruneInterval time.Duration
	// ResponseMode selects embed or webhook rendering.
	ResponseMode ResponseMode
	// AllowEditSniping enables recording of edit mutations.
	AllowEditSniping bool
	// AllowDeletionSniping enables recording of delete mutations.
	AllowDeletionSniping bool
	// AllowSelfSnipe lets invokers snipe their own messages.
	AllowSelfSnipe bool
}

// DefaultSettings returns the settings a fresh deployment starts from.
func DefaultSettings() Settings {
	return Settings{
		MaxAge:               defaultMaxAge,
		PruneInterval:        defaultPruneInterval,
		ResponseMode:         ResponseModeEmbed,
		AllowEditSniping:     true,
		AllowDeletionSniping: true,
		AllowSelfSnipe:       true,
	}
}

// Validate checks settings coherence before the module accepts them.
func (s Settings) Validate() error {
	if s.MaxAge <= 0 {
		return fmt.Errorf("validate snipe settings: max_age must be positive, got %s", s.MaxAge)
	}
	if s.PruneInterval <= 0 {
		return fmt.Errorf("validate snipe settings: prune_interval must be positive, got %s", s.PruneInterval)
	}
	if err := s.ResponseMode.Validate(); err != nil {
		return fmt.Errorf("validate snipe settings: %w", err)
	}

	return nil
}
