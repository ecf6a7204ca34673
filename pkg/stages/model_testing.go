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

// NewModelTestingStage returns the stage that runs the test suite against the
// trained model, plus the optional load test and security scan sub-steps
func NewModelTestingStage(shellClient shell.Client, artifactsRoot string) pipeline.Stage {
	return &modelTestingStage{
		shellClient:   shellClient,
		artifactsRoot: artifactsRoot,
	}
}

type modelTestingStage struct {
	shellClient   shell.Client
	artifactsRoot string
}

func (s *modelTestingStage) Name() string {
	return "model-testing"
}

func (s *modelTestingStage) Gate() string {
	return pipeline.GateAlways
}

func (s *modelTestingStage) Policy() pipeline.FailurePolicy {
	return pipeline.PolicyFatal
}

func (s *modelTestingStage) Execute(ctx context.Context, cfg config.PipelineConfig, buildContext pipeline.BuildContext) (err error) {

	logsDir, err := ensureArtifactDir(s.artifactsRoot, "logs")
	if err != nil {
		return err
	}

	python := fmt.Sprintf("python%v", cfg.PythonVersion)

	log.Info().Msgf("[%v] Running model test suite", s.Name())

	_, err = s.shellClient.RunCommand(ctx, "", nil, python, "-m", "pytest", "tests/",
		"--junitxml", filepath.Join(logsDir, "test-results.xml"))
	if err != nil {
		return fmt.Errorf("model tests failed: %w", err)
	}

	if cfg.RunLoadTests {
		log.Info().Msgf("[%v] Running load tests", s.Name())

		_, err = s.shellClient.RunCommand(ctx, "", nil, python, "-m", "locust",
			"--headless",
			"--locustfile", "tests/load/locustfile.py",
			"--csv", filepath.Join(logsDir, "load-test"))
		if err != nil {
			return fmt.Errorf("load tests failed: %w", err)
		}
	}

	if cfg.RunSecurityTests {
		log.Info().Msgf("[%v] Running security scan over the model code", s.Name())

		_, err = s.shellClient.RunCommand(ctx, "", nil, python, "-m", "bandit",
			"-r", "src/",
			"-f", "json",
			"-o", filepath.Join(logsDir, "bandit-report.json"))
		if err != nil {
			return fmt.Errorf("security scan failed: %w", err)
		}
	}

	return nil
}
