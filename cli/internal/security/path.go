// Package security guards the paths the CLI reads from configuration.
package security

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ValidatePathWithinBoundary ensures that targetPath is within or equal to
// boundaryPath, so values such as workflows.dir cannot leave the project
// with "../" sequences. Relative paths are resolved against the working
// directory.
//
//	boundary := "/srv/bot"
//	target := "/srv/bot/workflows/greeting.yaml"  // accepted
//	target := "/srv/bot/../../etc/passwd"         // rejected
func ValidatePathWithinBoundary(boundaryPath, targetPath string) error {
	absBoundary, err := filepath.Abs(boundaryPath)
	if err != nil {
		return fmt.Errorf("failed to resolve boundary path %q: %w", boundaryPath, err)
	}

	absTarget, err := filepath.Abs(targetPath)
	if err != nil {
		return fmt.Errorf("failed to resolve target path %q: %w", targetPath, err)
	}

	rel, err := filepath.Rel(absBoundary, absTarget)
	if err != nil {
		return fmt.Errorf("invalid path relationship between %q and %q: %w", absBoundary, absTarget, err)
	}

	if rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return fmt.Errorf("path traversal detected: %q escapes boundary %q", targetPath, boundaryPath)
	}

	return nil
}

// ValidatePathsWithinBoundary validates several targets against one boundary
// and returns the first violation.
func ValidatePathsWithinBoundary(boundaryPath string, targetPaths ...string) error {
	for _, target := range targetPaths {
		if err := ValidatePathWithinBoundary(boundaryPath, target); err != nil {
			return err
		}
	}
	return nil
}
