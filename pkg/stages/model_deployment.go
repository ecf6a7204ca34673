package stages

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
	"github.com/sethgrid/pester"

	"github.com/mlopshq/pipeline-runner/clients/credential"
	"github.com/mlopshq/pipeline-runner/clients/shell"
	"github.com/mlopshq/pipeline-runner/config"
	"github.com/mlopshq/pipeline-runner/pkg/pipeline"
)

// ErrHealthCheckExhausted is returned when the deployed service never answered
// the liveness probe within the retry budget
var ErrHealthCheckExhausted = errors.New("health check retry budget exhausted")

const (
	defaultRolloutTimeout      = 5 * time.Minute
	defaultHealthCheckRetries  = 10
	defaultHealthCheckInterval = 30 * time.Second
	defaultTunnelWarmup        = 2 * time.Second
	defaultLocalPort           = 8080
)

// NewModelDeploymentStage returns the stage that rolls the packaged model out
// to the target environment, waits for the rollout, probes the service through
// a local tunnel and optionally rolls back on failure in production
func NewModelDeploymentStage(shellClient shell.Client, credentialClient credential.Client, artifactsRoot string) pipeline.Stage {
	return &modelDeploymentStage{
		shellClient:         shellClient,
		credentialClient:    credentialClient,
		artifactsRoot:       artifactsRoot,
		rolloutTimeout:      defaultRolloutTimeout,
		healthCheckRetries:  defaultHealthCheckRetries,
		healthCheckInterval: defaultHealthCheckInterval,
		tunnelWarmup:        defaultTunnelWarmup,
		localPort:           defaultLocalPort,
		probe:               probeLiveness,
	}
}

type modelDeploymentStage struct {
	shellClient      shell.Client
	credentialClient credential.Client
	artifactsRoot    string

	rolloutTimeout      time.Duration
	healthCheckRetries  int
	healthCheckInterval time.Duration
	tunnelWarmup        time.Duration
	localPort           int
	probe               func(ctx context.Context, url string) error
}

func (s *modelDeploymentStage) Name() string {
	return "model-deployment"
}

func (s *modelDeploymentStage) Gate() string {
	return pipeline.GateDeployBranches
}

func (s *modelDeploymentStage) Policy() pipeline.FailurePolicy {
	return pipeline.PolicyFatal
}

func (s *modelDeploymentStage) Execute(ctx context.Context, cfg config.PipelineConfig, buildContext pipeline.BuildContext) (err error) {

	environment := pipeline.GetDeploymentEnvironment(buildContext.Branch)
	namespace := cfg.NamespaceFor(string(environment))

	kubeconfigPath, err := s.credentialClient.ResolvePath(cfg.KubeCredentialsID)
	if err != nil {
		return fmt.Errorf("resolving kubeconfig failed: %w", err)
	}
	kubeEnv := []string{fmt.Sprintf("KUBECONFIG=%v", kubeconfigPath)}

	if _, err = ensureArtifactDir(s.artifactsRoot, "deployment"); err != nil {
		return err
	}

	log.Info().Msgf("[%v] Deploying model %v to %v (namespace %v)", s.Name(), cfg.ModelName, environment, namespace)

	err = s.apply(ctx, cfg, buildContext, namespace, environment, kubeEnv)
	if err == nil {
		err = s.waitForRollout(ctx, cfg, namespace, kubeEnv)
	}
	if err == nil {
		err = s.waitUntilHealthy(ctx, cfg, namespace, kubeEnv)
	}
	if err == nil && cfg.RunSmokeTests {
		err = s.runSmokeTests(ctx, cfg, namespace, kubeEnv)
	}

	if err != nil && environment == pipeline.EnvironmentProduction && cfg.AutoRollback {
		// best effort, the original failure is what gets reported
		s.rollback(ctx, cfg, namespace, kubeEnv)
	}

	if err == nil {
		s.writeDeploymentRecord(cfg, buildContext, namespace, environment)
	}

	return err
}

func (s *modelDeploymentStage) writeDeploymentRecord(cfg config.PipelineConfig, buildContext pipeline.BuildContext, namespace string, environment pipeline.DeploymentEnvironment) {

	record := map[string]string{
		"modelName":   cfg.ModelName,
		"image":       s.imageFromArtifacts(),
		"environment": string(environment),
		"namespace":   namespace,
		"buildNumber": buildContext.BuildNumber,
		"commit":      buildContext.Commit,
		"deployedAt":  time.Now().UTC().Format(time.RFC3339),
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err == nil {
		err = os.WriteFile(filepath.Join(s.artifactsRoot, "deployment", "deployment.json"), data, 0644)
	}
	if err != nil {
		log.Warn().Err(err).Msgf("[%v] Writing deployment record failed", s.Name())
	}
}

func (s *modelDeploymentStage) apply(ctx context.Context, cfg config.PipelineConfig, buildContext pipeline.BuildContext, namespace string, environment pipeline.DeploymentEnvironment, kubeEnv []string) (err error) {

	if cfg.UseHelm {
		chartPath := filepath.Join("helm", cfg.ModelName)
		if packaged, _ := filepath.Glob(filepath.Join(s.artifactsRoot, "helm-charts", "*.tgz")); len(packaged) > 0 {
			chartPath = packaged[0]
		}

		args := []string{"upgrade", "--install", cfg.ModelName, chartPath,
			"--namespace", namespace,
			"--create-namespace",
			"--set", fmt.Sprintf("image.tag=%v", buildContext.BuildNumber),
		}
		valuesFile := filepath.Join("helm", fmt.Sprintf("values-%v.yaml", environment))
		if _, statErr := os.Stat(valuesFile); statErr == nil {
			args = append(args, "--values", valuesFile)
		}

		_, err = s.shellClient.RunCommand(ctx, "", kubeEnv, "helm", args...)
		if err != nil {
			return fmt.Errorf("helm release failed: %w", err)
		}

		return nil
	}

	_, err = s.shellClient.RunCommand(ctx, "", kubeEnv, "kubectl", "apply",
		"-f", filepath.Join(s.artifactsRoot, "k8s-manifests"),
		"-n", namespace)
	if err != nil {
		return fmt.Errorf("applying kubernetes manifests failed: %w", err)
	}

	return nil
}

func (s *modelDeploymentStage) waitForRollout(ctx context.Context, cfg config.PipelineConfig, namespace string, kubeEnv []string) (err error) {

	_, err = s.shellClient.RunCommand(ctx, "", kubeEnv, "kubectl", "rollout", "status",
		fmt.Sprintf("deployment/%v", cfg.ModelName),
		"-n", namespace,
		"--timeout", s.rolloutTimeout.String())
	if err != nil {
		return fmt.Errorf("rollout did not complete within %v: %w", s.rolloutTimeout, err)
	}

	return nil
}

func (s *modelDeploymentStage) waitUntilHealthy(ctx context.Context, cfg config.PipelineConfig, namespace string, kubeEnv []string) (err error) {

	attempt := 0
	operation := func() error {
		attempt++

		probeErr := s.probeOnce(ctx, cfg, namespace, kubeEnv)
		if probeErr != nil {
			log.Warn().Err(probeErr).Msgf("[%v] Health check attempt %v/%v failed", s.Name(), attempt, s.healthCheckRetries)
			return probeErr
		}

		log.Info().Msgf("[%v] Health check succeeded on attempt %v", s.Name(), attempt)
		return nil
	}

	policy := backoff.WithMaxRetries(backoff.NewConstantBackOff(s.healthCheckInterval), uint64(s.healthCheckRetries-1))
	if err = backoff.Retry(operation, backoff.WithContext(policy, ctx)); err != nil {
		return fmt.Errorf("%w after %v attempts: %v", ErrHealthCheckExhausted, s.healthCheckRetries, err)
	}

	return nil
}

func (s *modelDeploymentStage) probeOnce(ctx context.Context, cfg config.PipelineConfig, namespace string, kubeEnv []string) (err error) {

	tunnel, err := s.openTunnel(ctx, cfg, namespace, kubeEnv)
	if err != nil {
		return err
	}
	defer func() {
		if stopErr := tunnel.Stop(); stopErr != nil {
			log.Warn().Err(stopErr).Msgf("[%v] Closing tunnel failed", s.Name())
		}
	}()

	return s.probe(ctx, fmt.Sprintf("http://localhost:%v/health", s.localPort))
}

func (s *modelDeploymentStage) runSmokeTests(ctx context.Context, cfg config.PipelineConfig, namespace string, kubeEnv []string) (err error) {

	tunnel, err := s.openTunnel(ctx, cfg, namespace, kubeEnv)
	if err != nil {
		return err
	}
	defer func() {
		_ = tunnel.Stop()
	}()

	log.Info().Msgf("[%v] Running smoke tests against the deployed service", s.Name())

	python := fmt.Sprintf("python%v", cfg.PythonVersion)
	_, err = s.shellClient.RunCommand(ctx, "", nil, python, "scripts/smoke_test.py",
		"--endpoint", fmt.Sprintf("http://localhost:%v", s.localPort))
	if err != nil {
		return fmt.Errorf("smoke tests failed: %w", err)
	}

	return nil
}

func (s *modelDeploymentStage) openTunnel(ctx context.Context, cfg config.PipelineConfig, namespace string, kubeEnv []string) (tunnel shell.RunningCommand, err error) {

	tunnel, err = s.shellClient.StartCommand(ctx, "", kubeEnv, "kubectl", "port-forward",
		fmt.Sprintf("service/%v", cfg.ModelName),
		fmt.Sprintf("%v:80", s.localPort),
		"-n", namespace)
	if err != nil {
		return nil, fmt.Errorf("opening tunnel to service %v failed: %w", cfg.ModelName, err)
	}

	// give the tunnel a moment to bind the local port
	time.Sleep(s.tunnelWarmup)

	return tunnel, nil
}

func (s *modelDeploymentStage) rollback(ctx context.Context, cfg config.PipelineConfig, namespace string, kubeEnv []string) {

	log.Warn().Msgf("[%v] Rolling %v back to the previous revision", s.Name(), cfg.ModelName)

	_, err := s.shellClient.RunCommand(ctx, "", kubeEnv, "kubectl", "rollout", "undo",
		fmt.Sprintf("deployment/%v", cfg.ModelName),
		"-n", namespace)
	if err != nil {
		log.Warn().Err(err).Msgf("[%v] Rollback failed", s.Name())
		return
	}

	_, err = s.shellClient.RunCommand(ctx, "", kubeEnv, "kubectl", "rollout", "status",
		fmt.Sprintf("deployment/%v", cfg.ModelName),
		"-n", namespace,
		"--timeout", s.rolloutTimeout.String())
	if err != nil {
		log.Warn().Err(err).Msgf("[%v] Waiting for rollback rollout failed", s.Name())
		return
	}

	log.Info().Msgf("[%v] Rollback to the previous revision completed", s.Name())
}

func probeLiveness(ctx context.Context, url string) (err error) {

	client := pester.New()
	client.MaxRetries = 1
	client.Timeout = 10 * time.Second

	request, err := http.NewRequest("GET", url, nil)
	if err != nil {
		return err
	}
	request = request.WithContext(ctx)

	response, err := client.Do(request)
	if err != nil {
		return err
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return fmt.Errorf("liveness probe against %v returned status %v", url, response.StatusCode)
	}

	return nil
}

// imageFromArtifacts reads the image reference the packaging stage wrote; the
// deploy descriptors reference it through their values, this is only used for
// the deployment record
func (s *modelDeploymentStage) imageFromArtifacts() string {

	data, err := os.ReadFile(filepath.Join(s.artifactsRoot, "docker-image.txt"))
	if err != nil {
		return ""
	}

	return strings.TrimSpace(string(data))
}
