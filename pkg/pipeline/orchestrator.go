package pipeline

import (
	"context"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/rs/zerolog/log"

	"github.com/mlopshq/pipeline-runner/config"
)

// Notifier fans the final pipeline outcome out to the configured channels;
// implemented in pkg/notifier
type Notifier interface {
	Notify(ctx context.Context, cfg config.PipelineConfig, outcome Outcome)
}

// Orchestrator runs the stages of a pipeline in order, applies each stage's
// gate and failure policy, always runs finalization, and invokes the notifier
// exactly once with the aggregated outcome
type Orchestrator interface {
	Run(ctx context.Context, stages []Stage, cfg config.PipelineConfig, buildContext BuildContext) Outcome
}

// NewOrchestrator returns a new Orchestrator
func NewOrchestrator(gateEvaluator GateEvaluator, finalizer Finalizer, notifier Notifier) Orchestrator {
	return &orchestrator{
		gateEvaluator: gateEvaluator,
		finalizer:     finalizer,
		notifier:      notifier,
	}
}

type orchestrator struct {
	gateEvaluator GateEvaluator
	finalizer     Finalizer
	notifier      Notifier
}

func (o *orchestrator) Run(ctx context.Context, stages []Stage, cfg config.PipelineConfig, buildContext BuildContext) Outcome {

	span, ctx := opentracing.StartSpanFromContext(ctx, "RunPipeline")
	defer span.Finish()

	log.Info().Msgf("Running %v stages for model %v on branch %v", len(stages), cfg.ModelName, buildContext.Branch)

	results := make([]StageResult, 0, len(stages))
	halted := false

	for _, stage := range stages {

		if halted {
			results = append(results, StageResult{
				Stage:  stage.Name(),
				Status: StatusSkipped,
				Reason: "pipeline halted by an earlier failure",
			})
			continue
		}

		results = append(results, o.runStage(ctx, stage, cfg, buildContext))

		last := results[len(results)-1]
		if last.Status == StatusFailed {
			halted = true
		}
	}

	// cleanup runs whatever happened above
	o.finalizer.Finalize(ctx)

	outcome := ComputeOutcome(results, buildContext)

	RenderSummary(outcome)

	o.notifier.Notify(ctx, cfg, outcome)

	return outcome
}

func (o *orchestrator) runStage(ctx context.Context, stage Stage, cfg config.PipelineConfig, buildContext BuildContext) StageResult {

	span, ctx := opentracing.StartSpanFromContext(ctx, "RunStage")
	defer span.Finish()
	span.SetTag("stage", stage.Name())

	gateResult, err := o.gateEvaluator.Evaluate(stage.Name(), stage.Gate(), o.gateEvaluator.GetParameters(buildContext))
	if err != nil {
		log.Warn().Err(err).Msgf("[%v] Evaluating gate expression failed", stage.Name())
		return StageResult{
			Stage:  stage.Name(),
			Status: StatusFailed,
			Reason: err.Error(),
		}
	}

	if !gateResult {
		log.Info().Msgf("[%v] Stage skipped, branch %v does not trigger it", stage.Name(), buildContext.Branch)
		return StageResult{
			Stage:  stage.Name(),
			Status: StatusSkipped,
			Reason: "not triggered for branch " + buildContext.Branch,
		}
	}

	log.Info().Msgf("[%v] Starting stage", stage.Name())

	start := time.Now()
	err = stage.Execute(ctx, cfg, buildContext)
	duration := time.Since(start)

	if err != nil {
		if stage.Policy() == PolicyNonFatal {
			log.Warn().Err(err).Msgf("[%v] Stage completed with warnings", stage.Name())
			return StageResult{
				Stage:    stage.Name(),
				Status:   StatusSucceeded,
				Reason:   "completed with warnings: " + err.Error(),
				Duration: duration,
			}
		}

		log.Warn().Err(err).Msgf("[%v] Stage failed", stage.Name())
		return StageResult{
			Stage:    stage.Name(),
			Status:   StatusFailed,
			Reason:   err.Error(),
			Duration: duration,
		}
	}

	log.Info().Msgf("[%v] Stage succeeded", stage.Name())
	return StageResult{
		Stage:    stage.Name(),
		Status:   StatusSucceeded,
		Duration: duration,
	}
}
