package notifier

import (
	"context"
	"fmt"
	"net/smtp"
	"os"
	"strings"

	"github.com/mlopshq/pipeline-runner/config"
	"github.com/mlopshq/pipeline-runner/pkg/pipeline"
)

// NewEmailChannel returns the channel mailing the outcome to the configured
// recipients via the relay in SMTP_HOST (host:port, default localhost:25)
func NewEmailChannel() Channel {
	return &emailChannel{
		sendMail: smtp.SendMail,
	}
}

type emailChannel struct {
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func (c *emailChannel) Name() string {
	return "email"
}

func (c *emailChannel) IsConfigured(cfg config.PipelineConfig) bool {
	return cfg.EmailRecipients != ""
}

func (c *emailChannel) Send(ctx context.Context, cfg config.PipelineConfig, outcome pipeline.Outcome) (err error) {

	smtpHost := os.Getenv("SMTP_HOST")
	if smtpHost == "" {
		smtpHost = "localhost:25"
	}
	from := os.Getenv("SMTP_FROM")
	if from == "" {
		from = "mlops-pipeline@localhost"
	}

	recipients := strings.Split(cfg.EmailRecipients, ",")
	for i := range recipients {
		recipients[i] = strings.TrimSpace(recipients[i])
	}

	subject := fmt.Sprintf("Pipeline for %v %v (build %v)", cfg.ModelName, statusText(outcome), outcome.BuildContext.BuildNumber)

	body := fmt.Sprintf("Model: %v\nBranch: %v\nCommit: %v\nStatus: %v\nDuration: %.0fs\n",
		cfg.ModelName, outcome.BuildContext.Branch, outcome.BuildContext.Commit, statusText(outcome), outcome.Duration.Seconds())
	if !outcome.Succeeded() {
		body += fmt.Sprintf("Failed stage: %v\nReason: %v\n", outcome.FailedStage, outcome.Reason)
	}
	if outcome.BuildContext.BuildURL != "" {
		body += fmt.Sprintf("\n%v\n", outcome.BuildContext.BuildURL)
	}

	message := fmt.Sprintf("From: %v\r\nTo: %v\r\nSubject: %v\r\n\r\n%v", from, strings.Join(recipients, ", "), subject, body)

	if err = c.sendMail(smtpHost, nil, from, recipients, []byte(message)); err != nil {
		return fmt.Errorf("sending notification mail via %v failed: %w", smtpHost, err)
	}

	return nil
}
