package envvar

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetBuildNumber(t *testing.T) {

	t.Run("ReturnsBuildNumberFromEnvironment", func(t *testing.T) {

		t.Setenv("BUILD_NUMBER", "42")
		client := NewClient()

		// act
		assert.Equal(t, "42", client.GetBuildNumber())
	})

	t.Run("DefaultsToZeroWithoutEnvironment", func(t *testing.T) {

		t.Setenv("BUILD_NUMBER", "")
		t.Setenv("CI_BUILD_NUMBER", "")
		client := NewClient()

		// act
		assert.Equal(t, "0", client.GetBuildNumber())
	})
}

func TestGetBranch(t *testing.T) {

	t.Run("StripsRemotePrefix", func(t *testing.T) {

		t.Setenv("GIT_BRANCH", "origin/main")
		client := NewClient()

		// act
		assert.Equal(t, "main", client.GetBranch())
	})

	t.Run("FallsBackToBranchName", func(t *testing.T) {

		t.Setenv("GIT_BRANCH", "")
		t.Setenv("BRANCH_NAME", "develop")
		client := NewClient()

		// act
		assert.Equal(t, "develop", client.GetBranch())
	})
}

func TestGetCommit(t *testing.T) {

	t.Run("ReturnsCommitFromEnvironment", func(t *testing.T) {

		t.Setenv("GIT_COMMIT", "abc123")
		client := NewClient()

		// act
		assert.Equal(t, "abc123", client.GetCommit())
	})
}

func TestGetBuildURL(t *testing.T) {

	t.Run("ReturnsBuildURLFromEnvironment", func(t *testing.T) {

		t.Setenv("BUILD_URL", "https://ci.example.com/builds/42")
		client := NewClient()

		// act
		assert.Equal(t, "https://ci.example.com/builds/42", client.GetBuildURL())
	})
}
