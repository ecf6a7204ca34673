package pipeline

import (
	"fmt"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
)

// Outcome aggregates all stage results plus the overall status of the run;
// exactly one is produced per pipeline run and it drives the notifier and the
// final exit behavior
type Outcome struct {
	Status       Status
	StageResults []StageResult
	FailedStage  string
	Reason       string
	BuildContext BuildContext
	Duration     time.Duration
}

// Succeeded returns true when no fatal stage failure occurred
func (o Outcome) Succeeded() bool {
	return o.Status == StatusSucceeded
}

// ComputeOutcome derives the single pipeline outcome from the stage results
func ComputeOutcome(results []StageResult, buildContext BuildContext) Outcome {

	outcome := Outcome{
		Status:       StatusSucceeded,
		StageResults: results,
		BuildContext: buildContext,
		Duration:     time.Since(buildContext.StartedAt),
	}

	for _, r := range results {
		if r.Status == StatusFailed {
			outcome.Status = StatusFailed
			outcome.FailedStage = r.Stage
			outcome.Reason = r.Reason
			break
		}
	}

	return outcome
}

// RenderSummary prints the per-stage result table at the end of a run
func RenderSummary(outcome Outcome) {

	data := make([][]string, 0, len(outcome.StageResults))
	for _, r := range outcome.StageResults {
		data = append(data, []string{
			r.Stage,
			string(r.Status),
			fmt.Sprintf("%.0f", r.Duration.Seconds()),
			r.Reason,
		})
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Stage", "Status", "Duration (s)", "Reason"})
	table.SetFooter([]string{"", string(outcome.Status), fmt.Sprintf("%.0f", outcome.Duration.Seconds()), ""})
	table.SetBorder(false)
	table.AppendBulk(data)
	table.Render()
}

// HandleExit exits the process according to the pipeline outcome
func HandleExit(outcome Outcome) {

	if !outcome.Succeeded() {
		os.Exit(1)
	}

	os.Exit(0)
}
