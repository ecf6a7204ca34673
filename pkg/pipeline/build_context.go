package pipeline

import (
	"time"

	"github.com/mlopshq/pipeline-runner/clients/envvar"
)

// BuildContext carries the read-only values the execution environment supplies
// for a run; it is resolved once at startup and passed explicitly into every
// stage instead of being read from process-wide globals
type BuildContext struct {
	BuildNumber string
	Branch      string
	Commit      string
	BuildURL    string
	StartedAt   time.Time
}

// ResolveBuildContext captures the build context from the CI environment
func ResolveBuildContext(envvarClient envvar.Client) BuildContext {
	return BuildContext{
		BuildNumber: envvarClient.GetBuildNumber(),
		Branch:      envvarClient.GetBranch(),
		Commit:      envvarClient.GetCommit(),
		BuildURL:    envvarClient.GetBuildURL(),
		StartedAt:   envvarClient.GetBuildStart(),
	}
}
