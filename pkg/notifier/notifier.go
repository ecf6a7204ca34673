// Package notifier fans the final pipeline outcome out to the configured
// channels. Deliveries are independent and best effort: a channel failure is
// logged and never affects another channel or the pipeline status.
package notifier

import (
	"context"
	"net/http"
	"time"

	"github.com/opentracing-contrib/go-stdlib/nethttp"
	"github.com/rs/zerolog/log"
	"github.com/sethgrid/pester"
	"golang.org/x/sync/errgroup"

	"github.com/mlopshq/pipeline-runner/config"
	"github.com/mlopshq/pipeline-runner/pkg/pipeline"
)

// Channel delivers a formatted outcome message to one destination
type Channel interface {
	Name() string
	IsConfigured(cfg config.PipelineConfig) bool
	Send(ctx context.Context, cfg config.PipelineConfig, outcome pipeline.Outcome) error
}

// NewNotifier returns a pipeline.Notifier fanning out to the given channels
func NewNotifier(channels ...Channel) pipeline.Notifier {
	return &notifier{
		channels: channels,
	}
}

type notifier struct {
	channels []Channel
}

func (n *notifier) Notify(ctx context.Context, cfg config.PipelineConfig, outcome pipeline.Outcome) {

	g, ctx := errgroup.WithContext(ctx)

	for _, c := range n.channels {
		channel := c

		if !channel.IsConfigured(cfg) {
			continue
		}

		g.Go(func() error {
			if err := channel.Send(ctx, cfg, outcome); err != nil {
				// best effort, the other channels still get their attempt
				log.Warn().Err(err).Msgf("Sending %v notification failed", channel.Name())
			}
			return nil
		})
	}

	_ = g.Wait()
}

// newHTTPClient returns the single-attempt http client the webhook channels
// deliver with; no retries, the whole notifier is best effort
func newHTTPClient() *pester.Client {

	client := pester.NewExtendedClient(&http.Client{Transport: &nethttp.Transport{}})
	client.MaxRetries = 1
	client.Backoff = pester.DefaultBackoff
	client.Timeout = time.Second * 10

	return client
}

func statusColor(outcome pipeline.Outcome) string {
	if outcome.Succeeded() {
		return "good"
	}
	return "danger"
}

func statusText(outcome pipeline.Outcome) string {
	if outcome.Succeeded() {
		return "succeeded"
	}
	return "failed"
}
