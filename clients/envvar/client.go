package envvar

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// Client is the interface for resolving build context values from the CI
// environment, with a git fallback for local runs
type Client interface {
	GetBuildNumber() string
	GetBranch() string
	GetCommit() string
	GetBuildURL() string
	GetBuildStart() time.Time
}

// NewClient returns a new envvar.Client
func NewClient() Client {
	return &client{}
}

type client struct {
}

func (c *client) GetBuildNumber() string {
	return firstNonEmpty(os.Getenv("BUILD_NUMBER"), os.Getenv("CI_BUILD_NUMBER"), "0")
}

func (c *client) GetBranch() string {

	branch := firstNonEmpty(os.Getenv("GIT_BRANCH"), os.Getenv("BRANCH_NAME"), os.Getenv("CI_COMMIT_BRANCH"))
	if branch != "" {
		// strip the remote prefix some CI systems include
		return strings.TrimPrefix(branch, "origin/")
	}

	branch, err := c.getCommandOutput("git", "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return ""
	}

	return branch
}

func (c *client) GetCommit() string {

	commit := firstNonEmpty(os.Getenv("GIT_COMMIT"), os.Getenv("CI_COMMIT_SHA"))
	if commit != "" {
		return commit
	}

	commit, err := c.getCommandOutput("git", "rev-parse", "HEAD")
	if err != nil {
		return ""
	}

	return commit
}

func (c *client) GetBuildURL() string {
	return firstNonEmpty(os.Getenv("BUILD_URL"), os.Getenv("CI_JOB_URL"))
}

func (c *client) GetBuildStart() time.Time {
	return time.Now().UTC()
}

func (c *client) getCommandOutput(name string, args ...string) (string, error) {

	output, err := exec.Command(name, args...).Output()
	if err != nil {
		return "", fmt.Errorf("failed running %v: %w", name, err)
	}

	return strings.TrimSpace(string(output)), nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
