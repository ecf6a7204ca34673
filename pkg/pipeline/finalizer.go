package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/mlopshq/pipeline-runner/clients/shell"
)

// Finalizer runs the cleanup actions that happen unconditionally at the end of
// every run, whatever the stage results were: artifact archiving, test result
// publication and workspace reset. Errors are logged, never propagated.
type Finalizer interface {
	Finalize(ctx context.Context)
}

// NewFinalizer returns a new Finalizer operating on the given artifacts root
func NewFinalizer(shellClient shell.Client, artifactsRoot string) Finalizer {
	return &finalizer{
		shellClient:   shellClient,
		artifactsRoot: artifactsRoot,
	}
}

type finalizer struct {
	shellClient   shell.Client
	artifactsRoot string
}

func (f *finalizer) Finalize(ctx context.Context) {

	f.archiveArtifacts(ctx)
	f.publishTestResults()
	f.resetWorkspace()
}

func (f *finalizer) archiveArtifacts(ctx context.Context) {

	if _, err := os.Stat(f.artifactsRoot); err != nil {
		log.Warn().Err(err).Msg("No artifacts directory to archive")
		return
	}

	archivePath := fmt.Sprintf("%v.tar.gz", filepath.Clean(f.artifactsRoot))
	_, err := f.shellClient.RunCommand(ctx, "", nil, "tar", "czf", archivePath, "-C", filepath.Dir(f.artifactsRoot), filepath.Base(f.artifactsRoot))
	if err != nil {
		log.Warn().Err(err).Msg("Archiving artifacts failed")
		return
	}

	log.Info().Msgf("Archived artifacts to %v", archivePath)
}

func (f *finalizer) publishTestResults() {

	resultsPath := filepath.Join(f.artifactsRoot, "logs", "test-results.xml")
	if _, err := os.Stat(resultsPath); err != nil {
		log.Debug().Msg("No test results to publish")
		return
	}

	publishedPath := filepath.Join(filepath.Dir(f.artifactsRoot), "test-results.xml")
	data, err := os.ReadFile(resultsPath)
	if err == nil {
		err = os.WriteFile(publishedPath, data, 0644)
	}
	if err != nil {
		log.Warn().Err(err).Msg("Publishing test results failed")
		return
	}

	log.Info().Msgf("Published test results to %v", publishedPath)
}

func (f *finalizer) resetWorkspace() {

	scratchDir := filepath.Join(f.artifactsRoot, "tmp")
	if err := os.RemoveAll(scratchDir); err != nil {
		log.Warn().Err(err).Msg("Resetting workspace scratch directory failed")
	}
}
