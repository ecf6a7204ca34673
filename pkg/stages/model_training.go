package stages

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/mlopshq/pipeline-runner/clients/shell"
	"github.com/mlopshq/pipeline-runner/config"
	"github.com/mlopshq/pipeline-runner/pkg/pipeline"
)

// NewModelTrainingStage returns the stage that trains the model and writes the
// model files and training metrics artifacts
func NewModelTrainingStage(shellClient shell.Client, artifactsRoot string) pipeline.Stage {
	return &modelTrainingStage{
		shellClient:   shellClient,
		artifactsRoot: artifactsRoot,
	}
}

type modelTrainingStage struct {
	shellClient   shell.Client
	artifactsRoot string
}

func (s *modelTrainingStage) Name() string {
	return "model-training"
}

func (s *modelTrainingStage) Gate() string {
	return pipeline.GateAlways
}

func (s *modelTrainingStage) Policy() pipeline.FailurePolicy {
	return pipeline.PolicyFatal
}

func (s *modelTrainingStage) Execute(ctx context.Context, cfg config.PipelineConfig, buildContext pipeline.BuildContext) (err error) {

	modelDir, err := ensureArtifactDir(s.artifactsRoot, "models")
	if err != nil {
		return err
	}
	metricsDir, err := ensureArtifactDir(s.artifactsRoot, "training-metrics")
	if err != nil {
		return err
	}

	python := fmt.Sprintf("python%v", cfg.PythonVersion)

	args := []string{"scripts/train_model.py",
		"--model-name", cfg.ModelName,
		"--model-version", buildContext.BuildNumber,
		"--output-dir", modelDir,
		"--metrics-dir", metricsDir,
	}
	if cfg.UseMlflow {
		args = append(args, "--track-mlflow")
	}

	log.Info().Msgf("[%v] Training model %v version %v", s.Name(), cfg.ModelName, buildContext.BuildNumber)

	_, err = s.shellClient.RunCommand(ctx, "", nil, python, args...)
	if err != nil {
		return fmt.Errorf("model training failed: %w", err)
	}

	return nil
}
