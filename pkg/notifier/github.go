package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/mlopshq/pipeline-runner/clients/credential"
	"github.com/mlopshq/pipeline-runner/config"
	"github.com/mlopshq/pipeline-runner/pkg/pipeline"
)

// NewGitHubStatusChannel returns the channel setting the commit status through
// the github statuses api; the token is resolved by id at send time
func NewGitHubStatusChannel(credentialClient credential.Client) Channel {
	return &githubStatusChannel{
		credentialClient: credentialClient,
		apiBaseURL:       "https://api.github.com",
	}
}

type githubStatusChannel struct {
	credentialClient credential.Client
	apiBaseURL       string
}

func (c *githubStatusChannel) Name() string {
	return "github-status"
}

func (c *githubStatusChannel) IsConfigured(cfg config.PipelineConfig) bool {
	return cfg.UpdateGitHubStatus && cfg.GitHubRepo != "" && cfg.GitHubTokenID != ""
}

func (c *githubStatusChannel) Send(ctx context.Context, cfg config.PipelineConfig, outcome pipeline.Outcome) (err error) {

	if outcome.BuildContext.Commit == "" {
		return fmt.Errorf("no commit id to set a status on")
	}

	token, err := c.credentialClient.Resolve(cfg.GitHubTokenID)
	if err != nil {
		return fmt.Errorf("resolving github token failed: %w", err)
	}

	state := "success"
	description := "Pipeline succeeded"
	if !outcome.Succeeded() {
		state = "failure"
		description = fmt.Sprintf("Pipeline failed in stage %v", outcome.FailedStage)
	}

	payload := map[string]string{
		"state":       state,
		"description": description,
		"context":     "mlops/pipeline",
		"target_url":  outcome.BuildContext.BuildURL,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed marshalling github status payload: %w", err)
	}

	url := fmt.Sprintf("%v/repos/%v/statuses/%v", c.apiBaseURL, cfg.GitHubRepo, outcome.BuildContext.Commit)
	request, err := http.NewRequest("POST", url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	request = request.WithContext(ctx)
	request.Header.Add("Accept", "application/vnd.github+json")
	request.Header.Add("Authorization", fmt.Sprintf("Bearer %v", token))

	response, err := newHTTPClient().Do(request)
	if err != nil {
		return err
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusCreated {
		return fmt.Errorf("github statuses api returned status %v", response.StatusCode)
	}

	return nil
}
