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

// NewDataValidationStage returns the stage that checks the training data for
// schema violations and anomalies before anything else runs
func NewDataValidationStage(shellClient shell.Client, artifactsRoot string) pipeline.Stage {
	return &dataValidationStage{
		shellClient:   shellClient,
		artifactsRoot: artifactsRoot,
	}
}

type dataValidationStage struct {
	shellClient   shell.Client
	artifactsRoot string
}

func (s *dataValidationStage) Name() string {
	return "data-validation"
}

func (s *dataValidationStage) Gate() string {
	return pipeline.GateAlways
}

func (s *dataValidationStage) Policy() pipeline.FailurePolicy {
	return pipeline.PolicyFatal
}

func (s *dataValidationStage) Execute(ctx context.Context, cfg config.PipelineConfig, buildContext pipeline.BuildContext) (err error) {

	reportDir, err := ensureArtifactDir(s.artifactsRoot, "data-validation")
	if err != nil {
		return err
	}

	python := fmt.Sprintf("python%v", cfg.PythonVersion)

	// install the validation toolchain; pip flags follow the pip-based variant
	// of the original scripts
	_, err = s.shellClient.RunCommand(ctx, "", nil, python, "-m", "pip", "install", "--quiet", "--upgrade", "-r", "requirements.txt")
	if err != nil {
		return fmt.Errorf("installing validation dependencies failed: %w", err)
	}

	log.Info().Msgf("[%v] Validating input data for model %v", s.Name(), cfg.ModelName)

	_, err = s.shellClient.RunCommand(ctx, "", nil, python, "scripts/validate_data.py",
		"--model-name", cfg.ModelName,
		"--output", filepath.Join(reportDir, "validation-report.json"))
	if err != nil {
		return fmt.Errorf("data validation failed: %w", err)
	}

	return nil
}
