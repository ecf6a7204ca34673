package credential

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolve(t *testing.T) {

	t.Run("ReadsCredentialFileAndTrimsWhitespace", func(t *testing.T) {

		dir := t.TempDir()
		assert.Nil(t, os.WriteFile(filepath.Join(dir, "docker-registry"), []byte("robot:hunter2\n"), 0600))
		client := NewClient(dir)

		// act
		value, err := client.Resolve("docker-registry")

		assert.Nil(t, err)
		assert.Equal(t, "robot:hunter2", value)
	})

	t.Run("EnvironmentVariableOverridesFile", func(t *testing.T) {

		dir := t.TempDir()
		assert.Nil(t, os.WriteFile(filepath.Join(dir, "docker-registry"), []byte("from-file"), 0600))
		t.Setenv("MLOPS_CREDENTIAL_DOCKER_REGISTRY", "from-env")
		client := NewClient(dir)

		// act
		value, err := client.Resolve("docker-registry")

		assert.Nil(t, err)
		assert.Equal(t, "from-env", value)
	})

	t.Run("ReturnsErrorForUnknownCredential", func(t *testing.T) {

		client := NewClient(t.TempDir())

		// act
		_, err := client.Resolve("nonexistent")

		assert.NotNil(t, err)
	})

	t.Run("ReturnsErrorForEmptyId", func(t *testing.T) {

		client := NewClient(t.TempDir())

		// act
		_, err := client.Resolve("")

		assert.NotNil(t, err)
	})
}

func TestResolvePath(t *testing.T) {

	t.Run("ReturnsPathToCredentialFile", func(t *testing.T) {

		dir := t.TempDir()
		assert.Nil(t, os.WriteFile(filepath.Join(dir, "kubeconfig"), []byte("apiVersion: v1"), 0600))
		client := NewClient(dir)

		// act
		path, err := client.ResolvePath("kubeconfig")

		assert.Nil(t, err)
		assert.Equal(t, filepath.Join(dir, "kubeconfig"), path)
	})

	t.Run("ReturnsErrorForMissingFile", func(t *testing.T) {

		client := NewClient(t.TempDir())

		// act
		_, err := client.ResolvePath("kubeconfig")

		assert.NotNil(t, err)
	})
}
