package evidence

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const timestampLayout = "20060102T150405Z"

// Filename builds the artifact name {service}_{resource}_{region}_{ts}.png.
// Empty parts are skipped so a service-level capture does not produce a
// double underscore.
func Filename(service, resource, region string, at time.Time) string {
	parts := make([]string, 0, 4)
	for _, p := range []string{service, resource, region} {
		if s := sanitize(p); s != "" {
			parts = append(parts, s)
		}
	}
	parts = append(parts, at.UTC().Format(timestampLayout))
	return strings.Join(parts, "_") + ".png"
}

// sanitize keeps filenames portable: letters, digits and hyphens pass
// through, anything else becomes a hyphen, runs collapse.
func sanitize(s string) string {
	var b strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}

// WriteArtifact stores the PNG bytes under dir with the given name and
// returns the full path.
func WriteArtifact(dir, name string, data []byte) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create evidence directory: %w", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write artifact: %w", err)
	}
	return path, nil
}
