// Package esbuildutil adapts esbuild results to Go errors.
package esbuildutil

import (
	"errors"
	"fmt"
	"strings"

	esbuild "github.com/evanw/esbuild/pkg/api"
)

// CollectErrors folds esbuild error messages into a single error, or nil.
func CollectErrors(msgs []esbuild.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	parts := make([]string, 0, len(msgs))
	for _, m := range msgs {
		parts = append(parts, FormatMessage(m))
	}
	return errors.New(strings.Join(parts, "; "))
}

// FormatMessage renders "file:line:col: text" when a location is known.
func FormatMessage(m esbuild.Message) string {
	if m.Location == nil {
		return m.Text
	}
	return fmt.Sprintf("%s:%d:%d: %s", m.Location.File, m.Location.Line, m.Location.Column, m.Text)
}
