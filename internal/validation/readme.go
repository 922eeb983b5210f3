// readme.go pulls the README out of an uploaded documentation bundle so the
// dashboard can show a summary without unpacking the archive again.
package validation

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"strings"
)

// readmeNames in preference order; matching is case-insensitive.
var readmeNames = []string{"README.md", "README", "README.txt"}

// maxReadmeSize caps how much README content is retained (1 MiB).
const maxReadmeSize = 1024 * 1024

// ExtractReadme scans a gzipped tarball for a root-level README and returns
// its content. Files in subdirectories are ignored. When several README
// variants exist, README.md wins over extensionless README, which wins over
// README.txt, regardless of archive entry order. Returns "" when the bundle
// has no README at all.
func ExtractReadme(archiveReader io.Reader) (string, error) {
	gzReader, err := gzip.NewReader(archiveReader)
	if err != nil {
		return "", fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gzReader.Close()

	tarReader := tar.NewReader(gzReader)

	best := len(readmeNames) // lower index wins
	var bestContent string

	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to read tar entry: %w", err)
		}
		if header.Typeflag == tar.TypeDir {
			continue
		}

		name := strings.TrimPrefix(header.Name, "./")
		if strings.Contains(name, "/") {
			continue
		}

		rank := readmeRank(name)
		if rank < 0 || rank >= best {
			continue
		}

		content, err := io.ReadAll(io.LimitReader(tarReader, maxReadmeSize))
		if err != nil {
			return "", fmt.Errorf("failed to read README content: %w", err)
		}
		best = rank
		bestContent = string(content)
		if best == 0 {
			break
		}
	}

	return bestContent, nil
}

func readmeRank(name string) int {
	for i, candidate := range readmeNames {
		if strings.EqualFold(name, candidate) {
			return i
		}
	}
	return -1
}
