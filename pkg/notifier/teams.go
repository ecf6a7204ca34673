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

// NewTeamsChannel returns the channel posting a MessageCard to a microsoft
// teams incoming webhook
func NewTeamsChannel() Channel {
	return &teamsChannel{}
}

type teamsChannel struct {
}

func (c *teamsChannel) Name() string {
	return "teams"
}

func (c *teamsChannel) IsConfigured(cfg config.PipelineConfig) bool {
	return cfg.TeamsWebhook != ""
}

func (c *teamsChannel) Send(ctx context.Context, cfg config.PipelineConfig, outcome pipeline.Outcome) (err error) {

	themeColor := "2eb886"
	if !outcome.Succeeded() {
		themeColor = "a30200"
	}

	payload := map[string]interface{}{
		"@type":      "MessageCard",
		"@context":   "http://schema.org/extensions",
		"themeColor": themeColor,
		"summary":    fmt.Sprintf("Pipeline for %v %v", cfg.ModelName, statusText(outcome)),
		"title":      fmt.Sprintf("Pipeline for %v %v", cfg.ModelName, statusText(outcome)),
		"sections": []map[string]interface{}{
			{
				"facts": []map[string]string{
					{"name": "Branch", "value": outcome.BuildContext.Branch},
					{"name": "Build", "value": outcome.BuildContext.BuildNumber},
					{"name": "Commit", "value": outcome.BuildContext.Commit},
					{"name": "Duration", "value": fmt.Sprintf("%.0fs", outcome.Duration.Seconds())},
				},
			},
		},
		"potentialAction": []map[string]interface{}{
			{
				"@type":   "OpenUri",
				"name":    "View build",
				"targets": []map[string]string{{"os": "default", "uri": outcome.BuildContext.BuildURL}},
			},
		},
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed marshalling teams payload: %w", err)
	}

	request, err := http.NewRequest("POST", cfg.TeamsWebhook, bytes.NewReader(data))
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
		return fmt.Errorf("teams webhook returned status %v", response.StatusCode)
	}

	return nil
}
