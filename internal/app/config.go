package app

import (
	"errors"
	"time"
)

// Config holds runtime configuration for one build. The recipe file carries
// everything publication-specific; Config carries the operational knobs.
type Config struct {
	RecipePath string
	OutputPath string
	// PDFPath, when set, writes a PDF rendition next to the XHTML volume.
	PDFPath string

	UserAgent string
	// Timeout bounds each HTTP request.
	Timeout time.Duration

	Verbose bool
}

// ValidateConfig performs minimal schema validation for required settings.
func ValidateConfig(cfg Config) error {
	if cfg.RecipePath == "" {
		return errors.New("config: recipe path is required")
	}
	if cfg.OutputPath == "" {
		return errors.New("config: output path is required")
	}
	if cfg.Timeout < 0 {
		return errors.New("config: negative timeout is not allowed")
	}
	return nil
}
