// Package transcript turns a video identifier into transcript text through an
// ordered chain of providers. Providers are tried strictly in priority order;
// a provider without its credential is skipped outright, any other failure
// falls through to the next step. Only exhaustion of every step surfaces to
// the caller.
package transcript

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"tubeinsights/internal/logger"
)

// Provider is one transcript acquisition strategy.
type Provider interface {
	Name() string
	// Source tags the transcript with the provider that produced it.
	Source() string
	// Available reports whether this provider's credential is configured.
	// Checked once per chain run; unavailable providers are skipped, not failed.
	Available() bool
	Fetch(ctx context.Context, videoID string) (string, error)
}

// Result is the output of a successful chain run.
type Result struct {
	Text   string
	Source string
}

// Chain tries providers in the order given until one returns text.
type Chain struct {
	providers []Provider
	log       *logrus.Entry
}

func NewChain(log *logger.Logger, providers ...Provider) *Chain {
	return &Chain{providers: providers, log: log.Module("transcript")}
}

// Fetch runs the chain for one video. It returns the first provider's
// transcript, or an aggregate error naming every attempted provider when all
// steps are exhausted.
func (c *Chain) Fetch(ctx context.Context, videoID string) (*Result, error) {
	var attempts []string

	for _, p := range c.providers {
		if !p.Available() {
			c.log.WithFields(logrus.Fields{"provider": p.Name(), "video_id": videoID}).
				Debug("credential absent, skipping provider")
			continue
		}

		c.log.WithFields(logrus.Fields{"provider": p.Name(), "video_id": videoID}).
			Info("attempting transcript provider")

		text, err := c.attempt(ctx, p, videoID)
		if err != nil {
			c.log.WithFields(logrus.Fields{"provider": p.Name(), "video_id": videoID}).
				WithError(err).Warn("transcript provider failed, falling through")
			attempts = append(attempts, fmt.Sprintf("%s: %v", p.Name(), err))
			continue
		}
		if strings.TrimSpace(text) == "" {
			attempts = append(attempts, fmt.Sprintf("%s: empty transcript", p.Name()))
			continue
		}

		c.log.WithFields(logrus.Fields{
			"provider": p.Name(),
			"video_id": videoID,
			"chars":    len(text),
		}).Info("transcript acquired")
		return &Result{Text: text, Source: p.Source()}, nil
	}

	if len(attempts) == 0 {
		return nil, fmt.Errorf("no transcript extraction path available for %s: no provider credentials configured", videoID)
	}
	return nil, fmt.Errorf("all transcript providers exhausted for %s: %s", videoID, strings.Join(attempts, "; "))
}

// attempt isolates one provider call so a panicking provider counts as that
// provider's failure instead of killing the chain.
func (c *Chain) attempt(ctx context.Context, p Provider, videoID string) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("provider panic: %v", r)
		}
	}()
	return p.Fetch(ctx, videoID)
}

// WatchURL builds the canonical watch-page URL for a video ID.
func WatchURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + videoID
}
