package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReadConfig(t *testing.T) {

	t.Run("ReturnsDefaultsForEmptyDocument", func(t *testing.T) {

		// act
		config, err := ReadConfig([]byte(""))

		assert.Nil(t, err)
		assert.Equal(t, "diabetes-prediction", config.ModelName)
		assert.Equal(t, "3.9", config.PythonVersion)
		assert.Equal(t, "docker.io", config.DockerRegistry)
		assert.Equal(t, "docker-registry", config.DockerCredentialsID)
		assert.False(t, config.UseHelm)
		assert.False(t, config.AutoRollback)
	})

	t.Run("ReturnsConfiguredValues", func(t *testing.T) {

		data := []byte(`
modelName: churn-prediction
dockerRegistry: registry.example.com
useHelm: true
autoRollback: true
slackWebhook: https://hooks.slack.com/services/xxx
emailRecipients: ml-team@example.com
`)

		// act
		config, err := ReadConfig(data)

		assert.Nil(t, err)
		assert.Equal(t, "churn-prediction", config.ModelName)
		assert.Equal(t, "registry.example.com", config.DockerRegistry)
		assert.True(t, config.UseHelm)
		assert.True(t, config.AutoRollback)
		assert.Equal(t, "https://hooks.slack.com/services/xxx", config.SlackWebhook)
	})

	t.Run("ReturnsErrorForUnknownKey", func(t *testing.T) {

		data := []byte(`
modelName: churn-prediction
useheml: true
`)

		// act
		_, err := ReadConfig(data)

		assert.NotNil(t, err)
	})

	t.Run("ReturnsErrorForWronglyTypedValue", func(t *testing.T) {

		data := []byte(`
useHelm: definitely
`)

		// act
		_, err := ReadConfig(data)

		assert.NotNil(t, err)
	})

	t.Run("ReturnsErrorForMalformedYaml", func(t *testing.T) {

		// act
		_, err := ReadConfig([]byte("modelName: [unclosed"))

		assert.NotNil(t, err)
	})
}

func TestNamespaceFor(t *testing.T) {

	t.Run("ReturnsConfiguredNamespace", func(t *testing.T) {

		config := PipelineConfig{Namespace: "ml-serving"}

		// act
		namespace := config.NamespaceFor("production")

		assert.Equal(t, "ml-serving", namespace)
	})

	t.Run("DefaultsToMlopsEnvironmentConvention", func(t *testing.T) {

		config := PipelineConfig{}

		// act
		namespace := config.NamespaceFor("staging")

		assert.Equal(t, "mlops-staging", namespace)
	})
}
