package stages

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mlopshq/pipeline-runner/clients/credential"
	"github.com/mlopshq/pipeline-runner/clients/shell"
	"github.com/mlopshq/pipeline-runner/config"
	"github.com/mlopshq/pipeline-runner/pkg/pipeline"
)

// NewMonitoringSetupStage returns the stage that installs the enabled
// monitoring components next to the deployed model. Component failures are
// written to a log artifact and never fail the pipeline; monitoring
// infrastructure problems should not block a model release.
func NewMonitoringSetupStage(shellClient shell.Client, credentialClient credential.Client, artifactsRoot string) pipeline.Stage {
	return &monitoringSetupStage{
		shellClient:      shellClient,
		credentialClient: credentialClient,
		artifactsRoot:    artifactsRoot,
	}
}

type monitoringSetupStage struct {
	shellClient      shell.Client
	credentialClient credential.Client
	artifactsRoot    string
}

func (s *monitoringSetupStage) Name() string {
	return "monitoring-setup"
}

func (s *monitoringSetupStage) Gate() string {
	return pipeline.GateDeployBranches
}

func (s *monitoringSetupStage) Policy() pipeline.FailurePolicy {
	return pipeline.PolicyNonFatal
}

func (s *monitoringSetupStage) Execute(ctx context.Context, cfg config.PipelineConfig, buildContext pipeline.BuildContext) (err error) {

	monitoringDir, err := ensureArtifactDir(s.artifactsRoot, "monitoring")
	if err != nil {
		return err
	}

	environment := pipeline.GetDeploymentEnvironment(buildContext.Branch)
	namespace := cfg.NamespaceFor(string(environment))

	kubeconfigPath, err := s.credentialClient.ResolvePath(cfg.KubeCredentialsID)
	if err != nil {
		return fmt.Errorf("resolving kubeconfig failed: %w", err)
	}
	kubeEnv := []string{fmt.Sprintf("KUBECONFIG=%v", kubeconfigPath)}

	failures := 0

	if cfg.EnablePrometheus {
		failures += s.runComponent(ctx, monitoringDir, "prometheus", func() error {
			_, err := s.shellClient.RunCommand(ctx, "", kubeEnv, "helm", "upgrade", "--install", "prometheus",
				"prometheus-community/prometheus",
				"--namespace", namespace,
				"--values", "monitoring/prometheus-values.yaml")
			return err
		})
	}

	if cfg.EnableGrafana {
		failures += s.runComponent(ctx, monitoringDir, "grafana", func() error {
			_, err := s.shellClient.RunCommand(ctx, "", kubeEnv, "helm", "upgrade", "--install", "grafana",
				"grafana/grafana",
				"--namespace", namespace,
				"--values", "monitoring/grafana-values.yaml")
			return err
		})
	}

	if cfg.EnableAlerting {
		failures += s.runComponent(ctx, monitoringDir, "alerting", func() error {
			_, err := s.shellClient.RunCommand(ctx, "", kubeEnv, "kubectl", "apply",
				"-f", "monitoring/alert-rules.yaml",
				"-n", namespace)
			return err
		})
	}

	if cfg.EnableLogging {
		failures += s.runComponent(ctx, monitoringDir, "logging", func() error {
			_, err := s.shellClient.RunCommand(ctx, "", kubeEnv, "kubectl", "apply",
				"-f", "monitoring/fluent-bit.yaml",
				"-n", namespace)
			return err
		})
	}

	if cfg.EnableExplainability || cfg.EnableABTesting {
		failures += s.runComponent(ctx, monitoringDir, "drift-detection", func() error {
			python := fmt.Sprintf("python%v", cfg.PythonVersion)
			args := []string{"scripts/setup_monitoring.py", "--model-name", cfg.ModelName, "--namespace", namespace}
			if cfg.EnableExplainability {
				args = append(args, "--explainability")
			}
			if cfg.EnableABTesting {
				args = append(args, "--ab-testing")
			}
			_, err := s.shellClient.RunCommand(ctx, "", kubeEnv, python, args...)
			return err
		})
	}

	if failures > 0 {
		log.Warn().Msgf("[%v] %v monitoring components failed to install, see %v", s.Name(), failures, filepath.Join(monitoringDir, "monitoring-errors.log"))
	}

	return nil
}

// runComponent runs one monitoring component install, appending any failure to
// the monitoring error log artifact; returns 1 on failure for the counter
func (s *monitoringSetupStage) runComponent(ctx context.Context, monitoringDir, component string, install func() error) int {

	log.Info().Msgf("[%v] Setting up %v", s.Name(), component)

	err := install()
	if err == nil {
		return 0
	}

	log.Warn().Err(err).Msgf("[%v] Setting up %v failed", s.Name(), component)

	logLine := fmt.Sprintf("%v %v: %v\n", time.Now().UTC().Format(time.RFC3339), component, err)
	f, openErr := os.OpenFile(filepath.Join(monitoringDir, "monitoring-errors.log"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if openErr != nil {
		log.Warn().Err(openErr).Msgf("[%v] Appending to monitoring error log failed", s.Name())
		return 1
	}
	defer f.Close()
	_, _ = f.WriteString(logLine)

	return 1
}
