package state

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ArtifactRootEnv relocates the default database under a build or test
// artifact directory.
const ArtifactRootEnv = "DMFEED_ARTIFACT_ROOT"

var (
	artifactOnce sync.Once
	artifactRoot string
)

func ArtifactRoot() string {
	artifactOnce.Do(func() {
		c := strings.TrimSpace(os.Getenv(ArtifactRootEnv))
		if c == "" {
			return
		}
		if abs, err := filepath.Abs(c); err == nil {
			artifactRoot = abs
		} else {
			artifactRoot = c
		}
	})
	return artifactRoot
}

func ArtifactPath(elem ...string) string {
	root := ArtifactRoot()
	if root == "" {
		return ""
	}
	parts := append([]string{root}, elem...)
	return filepath.Join(parts...)
}
