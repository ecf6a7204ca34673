package pipeline

import (
	"context"
	"time"

	"github.com/mlopshq/pipeline-runner/config"
)

// Status is the final state of a stage or of the pipeline as a whole
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
)

// FailurePolicy declares how the orchestrator propagates a stage failure,
// making the propagation rule a visible table instead of buried control flow
type FailurePolicy string

const (
	// PolicyFatal halts the remaining stages on failure
	PolicyFatal FailurePolicy = "fatal"
	// PolicyNonFatal logs the failure and lets the pipeline continue as succeeded
	PolicyNonFatal FailurePolicy = "nonFatal"
)

// Gate expressions shared by the stage implementations; evaluated against the
// parameters from GateEvaluator.GetParameters
const (
	GateAlways          = "true"
	GateReleaseBranches = "branch == 'main' || branch == 'master' || branch == 'develop'"
	GateDeployBranches  = "branch == 'main' || branch == 'master'"
)

// Stage is a named unit of work; side effects are limited to the injected
// capabilities and the stage's own artifacts subdirectory
type Stage interface {
	Name() string
	Gate() string
	Policy() FailurePolicy
	Execute(ctx context.Context, cfg config.PipelineConfig, buildContext BuildContext) error
}

// StageResult is the outcome of a single stage, consumed immediately by the
// orchestrator to decide continuation
type StageResult struct {
	Stage    string
	Status   Status
	Reason   string
	Duration time.Duration
}
