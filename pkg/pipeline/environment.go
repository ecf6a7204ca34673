package pipeline

// DeploymentEnvironment is the target environment a branch deploys to
type DeploymentEnvironment string

const (
	EnvironmentProduction  DeploymentEnvironment = "production"
	EnvironmentStaging     DeploymentEnvironment = "staging"
	EnvironmentDevelopment DeploymentEnvironment = "development"
)

// GetDeploymentEnvironment maps a branch name to its deployment environment;
// it is total, anything unrecognized lands in development
func GetDeploymentEnvironment(branch string) DeploymentEnvironment {

	switch branch {
	case "main", "master":
		return EnvironmentProduction
	case "develop", "staging":
		return EnvironmentStaging
	default:
		return EnvironmentDevelopment
	}
}
