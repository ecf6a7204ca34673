package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mlopshq/pipeline-runner/config"
)

type fakeStage struct {
	name     string
	gate     string
	policy   FailurePolicy
	err      error
	executed int
}

func (s *fakeStage) Name() string          { return s.name }
func (s *fakeStage) Gate() string          { return s.gate }
func (s *fakeStage) Policy() FailurePolicy { return s.policy }
func (s *fakeStage) Execute(ctx context.Context, cfg config.PipelineConfig, buildContext BuildContext) error {
	s.executed++
	return s.err
}

type fakeFinalizer struct {
	finalized int
}

func (f *fakeFinalizer) Finalize(ctx context.Context) { f.finalized++ }

type fakeNotifier struct {
	notified int
	outcome  Outcome
}

func (n *fakeNotifier) Notify(ctx context.Context, cfg config.PipelineConfig, outcome Outcome) {
	n.notified++
	n.outcome = outcome
}

func pipelineStages() (stages []*fakeStage) {
	return []*fakeStage{
		{name: "data-validation", gate: GateAlways, policy: PolicyFatal},
		{name: "model-training", gate: GateAlways, policy: PolicyFatal},
		{name: "model-validation", gate: GateAlways, policy: PolicyFatal},
		{name: "model-testing", gate: GateAlways, policy: PolicyFatal},
		{name: "model-packaging", gate: GateReleaseBranches, policy: PolicyFatal},
		{name: "model-deployment", gate: GateDeployBranches, policy: PolicyFatal},
		{name: "monitoring-setup", gate: GateDeployBranches, policy: PolicyNonFatal},
	}
}

func runPipeline(fakeStages []*fakeStage, branch string) (Outcome, *fakeFinalizer, *fakeNotifier) {

	finalizer := &fakeFinalizer{}
	notifier := &fakeNotifier{}
	orchestrator := NewOrchestrator(NewGateEvaluator(), finalizer, notifier)

	stages := make([]Stage, 0, len(fakeStages))
	for _, s := range fakeStages {
		stages = append(stages, s)
	}

	outcome := orchestrator.Run(context.Background(), stages, config.PipelineConfig{ModelName: "diabetes-prediction"}, BuildContext{Branch: branch, BuildNumber: "7"})

	return outcome, finalizer, notifier
}

func TestRun(t *testing.T) {

	t.Run("RunsAllStagesOnMain", func(t *testing.T) {

		fakeStages := pipelineStages()

		// act
		outcome, _, _ := runPipeline(fakeStages, "main")

		assert.Equal(t, StatusSucceeded, outcome.Status)
		for _, s := range fakeStages {
			assert.Equal(t, 1, s.executed, s.name)
		}
	})

	t.Run("SkipsGatedStagesOnFeatureBranch", func(t *testing.T) {

		fakeStages := pipelineStages()

		// act
		outcome, _, _ := runPipeline(fakeStages, "feature/new-features")

		assert.Equal(t, StatusSucceeded, outcome.Status)
		assert.Equal(t, 0, fakeStages[4].executed)
		assert.Equal(t, 0, fakeStages[5].executed)
		assert.Equal(t, 0, fakeStages[6].executed)
		assert.Equal(t, StatusSkipped, outcome.StageResults[4].Status)
		assert.Equal(t, StatusSkipped, outcome.StageResults[5].Status)
		assert.Equal(t, StatusSkipped, outcome.StageResults[6].Status)
	})

	t.Run("RunsPackagingButNotDeploymentOnDevelop", func(t *testing.T) {

		fakeStages := pipelineStages()

		// act
		outcome, _, _ := runPipeline(fakeStages, "develop")

		assert.Equal(t, StatusSucceeded, outcome.Status)
		assert.Equal(t, 1, fakeStages[4].executed)
		assert.Equal(t, 0, fakeStages[5].executed)
		assert.Equal(t, 0, fakeStages[6].executed)
	})

	t.Run("HaltsRemainingStagesWhenTrainingFails", func(t *testing.T) {

		fakeStages := pipelineStages()
		fakeStages[1].err = errors.New("loss diverged")

		// act
		outcome, _, _ := runPipeline(fakeStages, "main")

		assert.Equal(t, StatusFailed, outcome.Status)
		assert.Equal(t, "model-training", outcome.FailedStage)
		assert.Equal(t, 0, fakeStages[2].executed)
		assert.Equal(t, 0, fakeStages[3].executed)
		assert.Equal(t, 0, fakeStages[4].executed)
		assert.Equal(t, 0, fakeStages[5].executed)
		assert.Equal(t, StatusSkipped, outcome.StageResults[2].Status)
		assert.Equal(t, "pipeline halted by an earlier failure", outcome.StageResults[2].Reason)
	})

	t.Run("OverallStatusDependsOnlyOnCoreStagesOnFeatureBranch", func(t *testing.T) {

		fakeStages := pipelineStages()
		fakeStages[4].err = errors.New("never runs anyway")

		// act
		outcome, _, _ := runPipeline(fakeStages, "feature/drift")

		assert.Equal(t, StatusSucceeded, outcome.Status)
	})

	t.Run("MonitoringFailureDoesNotFailThePipeline", func(t *testing.T) {

		fakeStages := pipelineStages()
		fakeStages[6].err = errors.New("prometheus install failed")

		// act
		outcome, _, _ := runPipeline(fakeStages, "main")

		assert.Equal(t, StatusSucceeded, outcome.Status)
		assert.Equal(t, StatusSucceeded, outcome.StageResults[6].Status)
		assert.Contains(t, outcome.StageResults[6].Reason, "completed with warnings")
	})

	t.Run("FinalizesAndNotifiesExactlyOnceOnSuccess", func(t *testing.T) {

		fakeStages := pipelineStages()

		// act
		_, finalizer, notifier := runPipeline(fakeStages, "main")

		assert.Equal(t, 1, finalizer.finalized)
		assert.Equal(t, 1, notifier.notified)
		assert.Equal(t, StatusSucceeded, notifier.outcome.Status)
	})

	t.Run("FinalizesAndNotifiesExactlyOnceOnFailure", func(t *testing.T) {

		fakeStages := pipelineStages()
		fakeStages[0].err = errors.New("schema drift detected")

		// act
		_, finalizer, notifier := runPipeline(fakeStages, "main")

		assert.Equal(t, 1, finalizer.finalized)
		assert.Equal(t, 1, notifier.notified)
		assert.Equal(t, StatusFailed, notifier.outcome.Status)
	})

	t.Run("FailsStageWhenGateExpressionIsMalformed", func(t *testing.T) {

		fakeStages := pipelineStages()
		fakeStages[4].gate = "branch == 'main"

		// act
		outcome, _, _ := runPipeline(fakeStages, "main")

		assert.Equal(t, StatusFailed, outcome.Status)
		assert.Equal(t, "model-packaging", outcome.FailedStage)
	})
}

func TestComputeOutcome(t *testing.T) {

	t.Run("ReportsFirstFailedStage", func(t *testing.T) {

		results := []StageResult{
			{Stage: "data-validation", Status: StatusSucceeded},
			{Stage: "model-training", Status: StatusFailed, Reason: "loss diverged"},
			{Stage: "model-validation", Status: StatusSkipped},
		}

		// act
		outcome := ComputeOutcome(results, BuildContext{Branch: "main"})

		assert.Equal(t, StatusFailed, outcome.Status)
		assert.Equal(t, "model-training", outcome.FailedStage)
		assert.Equal(t, "loss diverged", outcome.Reason)
		assert.False(t, outcome.Succeeded())
	})

	t.Run("SkippedStagesDoNotFailTheRun", func(t *testing.T) {

		results := []StageResult{
			{Stage: "data-validation", Status: StatusSucceeded},
			{Stage: "model-packaging", Status: StatusSkipped},
		}

		// act
		outcome := ComputeOutcome(results, BuildContext{Branch: "feature/x"})

		assert.Equal(t, StatusSucceeded, outcome.Status)
		assert.True(t, outcome.Succeeded())
	})
}
