package credential

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Client is the interface for resolving named secrets into process-local
// material; ids map to files in the credentials directory, with an
// environment variable override for local runs
type Client interface {
	Resolve(credentialID string) (value string, err error)
	ResolvePath(credentialID string) (path string, err error)
}

// NewClient returns a new credential.Client reading from credentialsDir
func NewClient(credentialsDir string) Client {
	return &client{
		credentialsDir: credentialsDir,
	}
}

type client struct {
	credentialsDir string
}

func (c *client) Resolve(credentialID string) (value string, err error) {

	if credentialID == "" {
		return "", fmt.Errorf("credential id is empty")
	}

	if value, ok := os.LookupEnv(envvarNameForCredential(credentialID)); ok {
		return value, nil
	}

	data, err := os.ReadFile(filepath.Join(c.credentialsDir, credentialID))
	if err != nil {
		return "", fmt.Errorf("failed resolving credential %v: %w", credentialID, err)
	}

	return strings.TrimSpace(string(data)), nil
}

func (c *client) ResolvePath(credentialID string) (path string, err error) {

	if credentialID == "" {
		return "", fmt.Errorf("credential id is empty")
	}

	if value, ok := os.LookupEnv(envvarNameForCredential(credentialID)); ok {
		return value, nil
	}

	path = filepath.Join(c.credentialsDir, credentialID)
	if _, err = os.Stat(path); err != nil {
		return "", fmt.Errorf("failed resolving credential %v: %w", credentialID, err)
	}

	return path, nil
}

func envvarNameForCredential(credentialID string) string {
	name := regexp.MustCompile(`[^A-Z0-9]+`).ReplaceAllString(strings.ToUpper(credentialID), "_")
	return fmt.Sprintf("MLOPS_CREDENTIAL_%v", name)
}
