package notifier

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mlopshq/pipeline-runner/config"
	"github.com/mlopshq/pipeline-runner/pkg/pipeline"
)

type fakeChannel struct {
	name       string
	configured bool
	err        error
	sent       int
}

func (c *fakeChannel) Name() string                                   { return c.name }
func (c *fakeChannel) IsConfigured(cfg config.PipelineConfig) bool    { return c.configured }
func (c *fakeChannel) Send(ctx context.Context, cfg config.PipelineConfig, outcome pipeline.Outcome) error {
	c.sent++
	return c.err
}

func TestNotify(t *testing.T) {

	t.Run("SendsToAllConfiguredChannels", func(t *testing.T) {

		first := &fakeChannel{name: "first", configured: true}
		second := &fakeChannel{name: "second", configured: true}
		third := &fakeChannel{name: "third", configured: true}
		notifier := NewNotifier(first, second, third)

		// act
		notifier.Notify(context.Background(), config.PipelineConfig{}, pipeline.Outcome{Status: pipeline.StatusSucceeded})

		assert.Equal(t, 1, first.sent)
		assert.Equal(t, 1, second.sent)
		assert.Equal(t, 1, third.sent)
	})

	t.Run("OneChannelFailureDoesNotPreventTheOthers", func(t *testing.T) {

		first := &fakeChannel{name: "first", configured: true}
		second := &fakeChannel{name: "second", configured: true, err: errors.New("webhook gone")}
		third := &fakeChannel{name: "third", configured: true}
		notifier := NewNotifier(first, second, third)

		// act
		notifier.Notify(context.Background(), config.PipelineConfig{}, pipeline.Outcome{Status: pipeline.StatusFailed})

		assert.Equal(t, 1, first.sent)
		assert.Equal(t, 1, second.sent)
		assert.Equal(t, 1, third.sent)
	})

	t.Run("SkipsUnconfiguredChannels", func(t *testing.T) {

		configured := &fakeChannel{name: "configured", configured: true}
		unconfigured := &fakeChannel{name: "unconfigured", configured: false}
		notifier := NewNotifier(configured, unconfigured)

		// act
		notifier.Notify(context.Background(), config.PipelineConfig{}, pipeline.Outcome{Status: pipeline.StatusSucceeded})

		assert.Equal(t, 1, configured.sent)
		assert.Equal(t, 0, unconfigured.sent)
	})
}
