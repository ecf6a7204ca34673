package main

import (
	"context"
	"io"
	"os"

	"github.com/alecthomas/kingpin"
	"github.com/opentracing/opentracing-go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/uber/jaeger-client-go"
	jaegercfg "github.com/uber/jaeger-client-go/config"

	"github.com/mlopshq/pipeline-runner/clients/credential"
	"github.com/mlopshq/pipeline-runner/clients/envvar"
	"github.com/mlopshq/pipeline-runner/clients/shell"
	"github.com/mlopshq/pipeline-runner/config"
	"github.com/mlopshq/pipeline-runner/pkg/notifier"
	"github.com/mlopshq/pipeline-runner/pkg/pipeline"
	"github.com/mlopshq/pipeline-runner/pkg/stages"
)

var (
	app     = "pipeline-runner"
	version = "dev"

	configPath     = kingpin.Flag("config", "Path to the pipeline configuration yaml.").Default("pipeline.yaml").Envar("PIPELINE_CONFIG_PATH").String()
	artifactsDir   = kingpin.Flag("artifacts-dir", "Root directory for stage artifacts.").Default("artifacts").Envar("PIPELINE_ARTIFACTS_DIR").String()
	credentialsDir = kingpin.Flag("credentials-dir", "Directory holding named credential files.").Default("/credentials").Envar("PIPELINE_CREDENTIALS_DIR").String()
)

func main() {

	kingpin.Version(version)
	kingpin.Parse()

	initLogging()

	closer := initJaeger(app)
	defer closer.Close()

	log.Info().Msgf("Starting %v version %v...", app, version)

	cfg, err := config.ReadConfigFromFile(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msgf("Reading pipeline configuration from %v failed", *configPath)
	}

	shellClient := shell.NewClient()
	credentialClient := credential.NewClient(*credentialsDir)
	envvarClient := envvar.NewClient()

	buildContext := pipeline.ResolveBuildContext(envvarClient)

	notifierService := notifier.NewNotifier(
		notifier.NewSlackChannel(),
		notifier.NewTeamsChannel(),
		notifier.NewEmailChannel(),
		notifier.NewGitHubStatusChannel(credentialClient),
	)

	orchestrator := pipeline.NewOrchestrator(
		pipeline.NewGateEvaluator(),
		pipeline.NewFinalizer(shellClient, *artifactsDir),
		notifierService,
	)

	pipelineStages := []pipeline.Stage{
		stages.NewDataValidationStage(shellClient, *artifactsDir),
		stages.NewModelTrainingStage(shellClient, *artifactsDir),
		stages.NewModelValidationStage(shellClient, *artifactsDir),
		stages.NewModelTestingStage(shellClient, *artifactsDir),
		stages.NewModelPackagingStage(shellClient, credentialClient, *artifactsDir),
		stages.NewModelDeploymentStage(shellClient, credentialClient, *artifactsDir),
		stages.NewMonitoringSetupStage(shellClient, credentialClient, *artifactsDir),
	}

	rootSpan := opentracing.StartSpan("RunPipeline")
	ctx := opentracing.ContextWithSpan(context.Background(), rootSpan)

	outcome := orchestrator.Run(ctx, pipelineStages, cfg, buildContext)

	rootSpan.Finish()
	closer.Close()

	pipeline.HandleExit(outcome)
}

func initLogging() {

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	if os.Getenv("LOG_FORMAT") == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

// initJaeger returns an instance of Jaeger Tracer that can be configured with environment variables
// https://github.com/jaegertracing/jaeger-client-go#environment-variables
func initJaeger(service string) io.Closer {

	cfg, err := jaegercfg.FromEnv()
	if err != nil {
		log.Fatal().Err(err).Msg("Generating Jaeger config from environment variables failed")
	}

	// disable jaeger if service name is empty
	if cfg.ServiceName == "" {
		cfg.Disabled = true
	}

	closer, err := cfg.InitGlobalTracer(service, jaegercfg.Logger(jaeger.StdLogger))
	if err != nil {
		log.Fatal().Err(err).Msg("Generating Jaeger tracer failed")
	}

	return closer
}
