package state

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"
)

const fingerprintHashLen = 12

// Fingerprint derives the deterministic state key for an input document.
// The key is the sanitized file stem plus a truncated sha256 of the cleaned
// absolute path, so repeated invocations on the same document resolve to the
// same record while same-named files in different directories do not collide.
func Fingerprint(inputPath string) (string, error) {
	abs, err := filepath.Abs(filepath.Clean(inputPath))
	if err != nil {
		return "", fmt.Errorf("resolve input path %q: %w", inputPath, err)
	}
	sum := sha256.Sum256([]byte(abs))
	digest := hex.EncodeToString(sum[:])[:fingerprintHashLen]

	stem := strings.TrimSuffix(filepath.Base(abs), filepath.Ext(abs))
	stem = sanitizeStem(stem)
	if stem == "" {
		return digest, nil
	}
	return stem + "-" + digest, nil
}

// sanitizeStem keeps state filenames portable: letters, digits, dash, and
// underscore survive; everything else becomes an underscore.
func sanitizeStem(stem string) string {
	var b strings.Builder
	for _, r := range stem {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	const maxStem = 64
	out := b.String()
	if len(out) > maxStem {
		out = out[:maxStem]
	}
	return out
}
