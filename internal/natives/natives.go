// Package natives extracts platform-specific native library JARs into a
// flattened natives directory, resolving each library's "natives"
// classifier map against the running OS and architecture.
package natives

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mcdex/installcore/internal/manifest"
	"github.com/mcdex/installcore/internal/ziputil"
)

// Extract walks libs, finds each one carrying a natives classifier for the
// running OS, and extracts its contents into nativesDir, honoring that
// library's extract.exclude globs. Libraries without a natives entry for
// the current OS are skipped.
func Extract(libs []manifest.Library, librariesDir, nativesDir string) error {
	if err := os.MkdirAll(nativesDir, 0755); err != nil {
		return fmt.Errorf("natives: mkdir %s: %w", nativesDir, err)
	}

	for _, lib := range libs {
		classifierTemplate, ok := lib.Natives[manifest.CurrentOS()]
		if !ok {
			continue
		}
		classifier := strings.ReplaceAll(classifierTemplate, "${arch}", archSuffix())

		ref, ok := lib.Classifier[classifier]
		if !ok {
			// Some natives (Fabric, newer Forge) ship the native jar as the
			// library's own artifact rather than under downloads.classifiers.
			if lib.Artifact == nil {
				continue
			}
			ref = *lib.Artifact
		}

		jarPath := ref.Path
		if jarPath == "" {
			jarPath = lib.Coord.Path()
		}

		archive, err := ziputil.Open(filepath.Join(librariesDir, jarPath))
		if err != nil {
			return fmt.Errorf("natives: open %s: %w", lib.Name, err)
		}
		if err := archive.ExtractFlat(nativesDir, lib.Exclude); err != nil {
			return fmt.Errorf("natives: extract %s: %w", lib.Name, err)
		}
	}
	return nil
}

func archSuffix() string {
	switch manifest.CurrentArch() {
	case "x86_64":
		return "64"
	case "x86":
		return "32"
	default:
		return "64"
	}
}
