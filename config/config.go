package config

import (
	"fmt"
	"os"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

// PipelineConfig holds all caller-supplied settings for a single pipeline run.
// It is defaulted and validated once at pipeline entry and treated as read-only
// afterwards; stages receive it by value.
type PipelineConfig struct {
	ModelName           string `yaml:"modelName" json:"modelName"`
	PythonVersion       string `yaml:"pythonVersion" json:"pythonVersion"`
	DockerRegistry      string `yaml:"dockerRegistry" json:"dockerRegistry"`
	DockerCredentialsID string `yaml:"dockerCredentialsId" json:"dockerCredentialsId"`
	KubeCredentialsID   string `yaml:"kubeCredentialsId" json:"kubeCredentialsId"`
	Namespace           string `yaml:"namespace" json:"namespace"`

	UseHelm          bool `yaml:"useHelm" json:"useHelm"`
	UseMlflow        bool `yaml:"useMlflow" json:"useMlflow"`
	RunLoadTests     bool `yaml:"runLoadTests" json:"runLoadTests"`
	RunSecurityTests bool `yaml:"runSecurityTests" json:"runSecurityTests"`
	RunSmokeTests    bool `yaml:"runSmokeTests" json:"runSmokeTests"`
	AutoRollback     bool `yaml:"autoRollback" json:"autoRollback"`
	HasAPI           bool `yaml:"hasApi" json:"hasApi"`

	EnablePrometheus     bool `yaml:"enablePrometheus" json:"enablePrometheus"`
	EnableGrafana        bool `yaml:"enableGrafana" json:"enableGrafana"`
	EnableAlerting       bool `yaml:"enableAlerting" json:"enableAlerting"`
	EnableLogging        bool `yaml:"enableLogging" json:"enableLogging"`
	EnableExplainability bool `yaml:"enableExplainability" json:"enableExplainability"`
	EnableABTesting      bool `yaml:"enableABTesting" json:"enableABTesting"`

	SlackChannel       string `yaml:"slackChannel" json:"slackChannel"`
	SlackWebhook       string `yaml:"slackWebhook" json:"slackWebhook"`
	EmailRecipients    string `yaml:"emailRecipients" json:"emailRecipients"`
	TeamsWebhook       string `yaml:"teamsWebhook" json:"teamsWebhook"`
	UpdateGitHubStatus bool   `yaml:"updateGitHubStatus" json:"updateGitHubStatus"`
	GitHubRepo         string `yaml:"githubRepo" json:"githubRepo"`
	GitHubTokenID      string `yaml:"githubTokenId" json:"githubTokenId"`
}

// ReadConfigFromFile reads, validates and defaults the pipeline configuration yaml
func ReadConfigFromFile(path string) (config PipelineConfig, err error) {

	data, err := os.ReadFile(path)
	if err != nil {
		return config, fmt.Errorf("failed reading config file %v: %w", path, err)
	}

	return ReadConfig(data)
}

// ReadConfig validates and decodes a raw configuration yaml document and applies
// defaults for absent keys
func ReadConfig(data []byte) (config PipelineConfig, err error) {

	var document map[string]interface{}
	if err = yaml.Unmarshal(data, &document); err != nil {
		return config, fmt.Errorf("failed unmarshalling config: %w", err)
	}

	if err = validateDocument(document); err != nil {
		return
	}

	if err = yaml.Unmarshal(data, &config); err != nil {
		return config, fmt.Errorf("failed unmarshalling config: %w", err)
	}

	config.SetDefaults()

	return config, nil
}

// SetDefaults fills in the documented default for every absent key
func (c *PipelineConfig) SetDefaults() {

	if c.ModelName == "" {
		c.ModelName = "diabetes-prediction"
	}
	if c.PythonVersion == "" {
		c.PythonVersion = "3.9"
	}
	if c.DockerRegistry == "" {
		c.DockerRegistry = "docker.io"
	}
	if c.DockerCredentialsID == "" {
		c.DockerCredentialsID = "docker-registry"
	}
	if c.KubeCredentialsID == "" {
		c.KubeCredentialsID = "kubeconfig"
	}
}

// NamespaceFor returns the configured namespace, falling back to the
// mlops-<environment> convention when none is set
func (c *PipelineConfig) NamespaceFor(environment string) string {

	if c.Namespace != "" {
		return c.Namespace
	}

	return fmt.Sprintf("mlops-%v", environment)
}

func validateDocument(document map[string]interface{}) (err error) {

	if document == nil {
		return nil
	}

	schemaLoader := gojsonschema.NewStringLoader(configSchema)
	documentLoader := gojsonschema.NewGoLoader(document)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("failed validating config against schema: %w", err)
	}

	if !result.Valid() {
		errorMessage := ""
		for _, resultError := range result.Errors() {
			errorMessage += fmt.Sprintf("%v. ", resultError)
		}
		return fmt.Errorf("config is invalid: %v", errorMessage)
	}

	return nil
}
