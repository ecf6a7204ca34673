package stages

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/mlopshq/pipeline-runner/clients/shell"
	"github.com/mlopshq/pipeline-runner/config"
	"github.com/mlopshq/pipeline-runner/pkg/pipeline"
)

// NewModelValidationStage returns the stage that checks the freshly trained
// model against the quality gates; a nonzero exit from the validation script
// means a gate was missed
func NewModelValidationStage(shellClient shell.Client, artifactsRoot string) pipeline.Stage {
	return &modelValidationStage{
		shellClient:   shellClient,
		artifactsRoot: artifactsRoot,
	}
}

type modelValidationStage struct {
	shellClient   shell.Client
	artifactsRoot string
}

func (s *modelValidationStage) Name() string {
	return "model-validation"
}

func (s *modelValidationStage) Gate() string {
	return pipeline.GateAlways
}

func (s *modelValidationStage) Policy() pipeline.FailurePolicy {
	return pipeline.PolicyFatal
}

func (s *modelValidationStage) Execute(ctx context.Context, cfg config.PipelineConfig, buildContext pipeline.BuildContext) (err error) {

	validationDir, err := ensureArtifactDir(s.artifactsRoot, "model-validation")
	if err != nil {
		return err
	}

	python := fmt.Sprintf("python%v", cfg.PythonVersion)

	log.Info().Msgf("[%v] Validating model %v against quality gates", s.Name(), cfg.ModelName)

	_, err = s.shellClient.RunCommand(ctx, "", nil, python, "scripts/validate_model.py",
		"--model-name", cfg.ModelName,
		"--model-dir", filepath.Join(s.artifactsRoot, "models"),
		"--output", filepath.Join(validationDir, "metrics.json"))
	if err != nil {
		return fmt.Errorf("model quality gate failed: %w", err)
	}

	return nil
}
