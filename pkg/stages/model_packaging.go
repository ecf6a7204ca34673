package stages

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mlopshq/pipeline-runner/clients/credential"
	"github.com/mlopshq/pipeline-runner/clients/shell"
	"github.com/mlopshq/pipeline-runner/config"
	"github.com/mlopshq/pipeline-runner/pkg/pipeline"
)

// modelMetadata is written to model-metadata.json at the artifacts root so the
// deploy and monitoring stages, and anything downstream, know what was shipped
type modelMetadata struct {
	ModelName    string    `json:"modelName"`
	ModelVersion string    `json:"modelVersion"`
	Image        string    `json:"image"`
	Commit       string    `json:"commit"`
	Branch       string    `json:"branch"`
	PackagedAt   time.Time `json:"packagedAt"`
}

// NewModelPackagingStage returns the stage that bakes the model into a
// container image, pushes it and prepares the deployment descriptors
func NewModelPackagingStage(shellClient shell.Client, credentialClient credential.Client, artifactsRoot string) pipeline.Stage {
	return &modelPackagingStage{
		shellClient:      shellClient,
		credentialClient: credentialClient,
		artifactsRoot:    artifactsRoot,
	}
}

type modelPackagingStage struct {
	shellClient      shell.Client
	credentialClient credential.Client
	artifactsRoot    string
}

func (s *modelPackagingStage) Name() string {
	return "model-packaging"
}

func (s *modelPackagingStage) Gate() string {
	return pipeline.GateReleaseBranches
}

func (s *modelPackagingStage) Policy() pipeline.FailurePolicy {
	return pipeline.PolicyFatal
}

func (s *modelPackagingStage) Execute(ctx context.Context, cfg config.PipelineConfig, buildContext pipeline.BuildContext) (err error) {

	image := fmt.Sprintf("%v/%v:%v", cfg.DockerRegistry, cfg.ModelName, buildContext.BuildNumber)

	if err = s.dockerLogin(ctx, cfg); err != nil {
		return err
	}

	log.Info().Msgf("[%v] Building image %v", s.Name(), image)

	_, err = s.shellClient.RunCommand(ctx, "", nil, "docker", "build",
		"--build-arg", fmt.Sprintf("PYTHON_VERSION=%v", cfg.PythonVersion),
		"--build-arg", fmt.Sprintf("MODEL_DIR=%v", filepath.Join(s.artifactsRoot, "models")),
		"-t", image, ".")
	if err != nil {
		return fmt.Errorf("building model image failed: %w", err)
	}

	if cfg.RunSecurityTests {
		log.Info().Msgf("[%v] Scanning image %v for vulnerabilities", s.Name(), image)

		_, err = s.shellClient.RunCommand(ctx, "", nil, "trivy", "image",
			"--severity", "HIGH,CRITICAL",
			"--exit-code", "1",
			image)
		if err != nil {
			return fmt.Errorf("image vulnerability scan failed: %w", err)
		}
	}

	_, err = s.shellClient.RunCommand(ctx, "", nil, "docker", "push", image)
	if err != nil {
		return fmt.Errorf("pushing model image failed: %w", err)
	}

	if err = s.prepareDescriptors(ctx, cfg, buildContext); err != nil {
		return err
	}

	if cfg.UseMlflow {
		log.Info().Msgf("[%v] Registering model version %v in mlflow", s.Name(), buildContext.BuildNumber)

		python := fmt.Sprintf("python%v", cfg.PythonVersion)
		_, err = s.shellClient.RunCommand(ctx, "", nil, python, "scripts/register_model.py",
			"--model-name", cfg.ModelName,
			"--model-version", buildContext.BuildNumber,
			"--model-dir", filepath.Join(s.artifactsRoot, "models"))
		if err != nil {
			return fmt.Errorf("registering model in mlflow failed: %w", err)
		}
	}

	return s.writeMetadata(cfg, buildContext, image)
}

func (s *modelPackagingStage) dockerLogin(ctx context.Context, cfg config.PipelineConfig) (err error) {

	registryCredential, err := s.credentialClient.Resolve(cfg.DockerCredentialsID)
	if err != nil {
		return fmt.Errorf("resolving docker registry credentials failed: %w", err)
	}

	// credential files hold username:password
	parts := strings.SplitN(registryCredential, ":", 2)
	if len(parts) != 2 {
		return fmt.Errorf("docker registry credential %v is not in username:password form", cfg.DockerCredentialsID)
	}

	_, err = s.shellClient.RunCommand(ctx, "", []string{fmt.Sprintf("DOCKER_PASSWORD=%v", parts[1])},
		"sh", "-c", fmt.Sprintf("echo \"$DOCKER_PASSWORD\" | docker login %v --username %v --password-stdin", cfg.DockerRegistry, parts[0]))
	if err != nil {
		return fmt.Errorf("docker login to %v failed: %w", cfg.DockerRegistry, err)
	}

	return nil
}

func (s *modelPackagingStage) prepareDescriptors(ctx context.Context, cfg config.PipelineConfig, buildContext pipeline.BuildContext) (err error) {

	if cfg.UseHelm {
		chartsDir, err := ensureArtifactDir(s.artifactsRoot, "helm-charts")
		if err != nil {
			return err
		}

		_, err = s.shellClient.RunCommand(ctx, "", nil, "helm", "package",
			filepath.Join("helm", cfg.ModelName),
			"--app-version", buildContext.BuildNumber,
			"--destination", chartsDir)
		if err != nil {
			return fmt.Errorf("packaging helm chart failed: %w", err)
		}

		return nil
	}

	manifestsDir, err := ensureArtifactDir(s.artifactsRoot, "k8s-manifests")
	if err != nil {
		return err
	}

	_, err = s.shellClient.RunCommand(ctx, "", nil, "sh", "-c",
		fmt.Sprintf("cp k8s/*.yaml %v/", manifestsDir))
	if err != nil {
		return fmt.Errorf("staging kubernetes manifests failed: %w", err)
	}

	return nil
}

func (s *modelPackagingStage) writeMetadata(cfg config.PipelineConfig, buildContext pipeline.BuildContext, image string) (err error) {

	if err = os.WriteFile(filepath.Join(s.artifactsRoot, "docker-image.txt"), []byte(image+"\n"), 0644); err != nil {
		return fmt.Errorf("writing docker-image.txt failed: %w", err)
	}

	metadata := modelMetadata{
		ModelName:    cfg.ModelName,
		ModelVersion: buildContext.BuildNumber,
		Image:        image,
		Commit:       buildContext.Commit,
		Branch:       buildContext.Branch,
		PackagedAt:   time.Now().UTC(),
	}

	data, err := json.MarshalIndent(metadata, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling model metadata failed: %w", err)
	}

	if err = os.WriteFile(filepath.Join(s.artifactsRoot, "model-metadata.json"), data, 0644); err != nil {
		return fmt.Errorf("writing model-metadata.json failed: %w", err)
	}

	return nil
}
