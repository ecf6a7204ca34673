package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetDeploymentEnvironment(t *testing.T) {

	t.Run("ReturnsProductionForMainAndMaster", func(t *testing.T) {

		// act
		assert.Equal(t, EnvironmentProduction, GetDeploymentEnvironment("main"))
		assert.Equal(t, EnvironmentProduction, GetDeploymentEnvironment("master"))
	})

	t.Run("ReturnsStagingForDevelopAndStaging", func(t *testing.T) {

		// act
		assert.Equal(t, EnvironmentStaging, GetDeploymentEnvironment("develop"))
		assert.Equal(t, EnvironmentStaging, GetDeploymentEnvironment("staging"))
	})

	t.Run("ReturnsDevelopmentForAnythingElse", func(t *testing.T) {

		// act
		assert.Equal(t, EnvironmentDevelopment, GetDeploymentEnvironment("feature/tunnel-probe"))
		assert.Equal(t, EnvironmentDevelopment, GetDeploymentEnvironment(""))
		assert.Equal(t, EnvironmentDevelopment, GetDeploymentEnvironment("MAIN"))
	})
}
