// semver.go validates and orders project version labels.
package validation

import (
	"fmt"

	"github.com/hashicorp/go-version"
)

// ValidateSemver rejects version labels that do not parse as semantic
// versions. Parsing is lenient the way go-version is: "1.0" and "v1.4.0"
// are accepted.
func ValidateSemver(versionStr string) error {
	if _, err := version.NewVersion(versionStr); err != nil {
		return fmt.Errorf("invalid semantic version: %w", err)
	}
	return nil
}

// CompareSemver returns -1, 0, or 1 as v1 sorts before, equal to, or after v2.
func CompareSemver(v1Str, v2Str string) (int, error) {
	v1, err := version.NewVersion(v1Str)
	if err != nil {
		return 0, fmt.Errorf("invalid version v1: %w", err)
	}
	v2, err := version.NewVersion(v2Str)
	if err != nil {
		return 0, fmt.Errorf("invalid version v2: %w", err)
	}
	return v1.Compare(v2), nil
}
