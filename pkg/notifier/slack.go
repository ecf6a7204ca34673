package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/mlopshq/pipeline-runner/config"
	"github.com/mlopshq/pipeline-runner/pkg/pipeline"
)

// NewSlackChannel returns the channel posting the outcome to a slack incoming
// webhook
func NewSlackChannel() Channel {
	return &slackChannel{}
}

type slackChannel struct {
}

func (c *slackChannel) Name() string {
	return "slack"
}

func (c *slackChannel) IsConfigured(cfg config.PipelineConfig) bool {
	return cfg.SlackWebhook != ""
}

func (c *slackChannel) Send(ctx context.Context, cfg config.PipelineConfig, outcome pipeline.Outcome) (err error) {

	payload := map[string]interface{}{
		"channel": cfg.SlackChannel,
		"attachments": []map[string]interface{}{
			{
				"color": statusColor(outcome),
				"title": fmt.Sprintf("Pipeline for %v %v", cfg.ModelName, statusText(outcome)),
				"fields": []map[string]interface{}{
					{"title": "Branch", "value": outcome.BuildContext.Branch, "short": true},
					{"title": "Build", "value": outcome.BuildContext.BuildNumber, "short": true},
					{"title": "Duration", "value": fmt.Sprintf("%.0fs", outcome.Duration.Seconds()), "short": true},
					{"title": "Failed stage", "value": outcome.FailedStage, "short": true},
				},
				"title_link": outcome.BuildContext.BuildURL,
			},
		},
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed marshalling slack payload: %w", err)
	}

	request, err := http.NewRequest("POST", cfg.SlackWebhook, bytes.NewReader(data))
	if err != nil {
		return err
	}
	request = request.WithContext(ctx)
	request.Header.Add("Content-Type", "application/json")

	response, err := newHTTPClient().Do(request)
	if err != nil {
		return err
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return fmt.Errorf("slack webhook returned status %v", response.StatusCode)
	}

	return nil
}
