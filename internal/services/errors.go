package services

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel markers for pipeline failure classification. Phase code wraps
// collaborator errors with one of these so the runner and the CLI can match
// on failure class with errors.Is without parsing messages.
var (
	ErrExtraction      = errors.New("extraction error")
	ErrGeneration      = errors.New("generation error")
	ErrCombination     = errors.New("combination error")
	ErrStateCorruption = errors.New("state corruption")
	ErrTransient       = errors.New("transient failure")
)

// Wrap builds an error message that includes phase context while tagging it
// with the provided marker. The marker should be one of the exported
// sentinel errors above.
func Wrap(marker error, phase, operation, message string, err error) error {
	detail := buildDetail(phase, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

func buildDetail(phase, operation, message string) string {
	parts := make([]string, 0, 3)
	if phase = strings.TrimSpace(phase); phase != "" {
		parts = append(parts, phase)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
