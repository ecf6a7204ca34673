// Package stages contains the seven recognized pipeline stages. Every stage
// performs its work through the injected shell and credential clients and
// writes artifacts under its own subdirectory of the artifacts root.
package stages

import (
	"fmt"
	"os"
	"path/filepath"
)

func ensureArtifactDir(artifactsRoot string, subdirs ...string) (dir string, err error) {

	dir = filepath.Join(append([]string{artifactsRoot}, subdirs...)...)
	if err = os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed creating artifact directory %v: %w", dir, err)
	}

	return dir, nil
}
