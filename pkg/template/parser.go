// Package template implements the hot-reloadable query template registry.
// Template definition files are a fixed JSON schema (name, sql, template,
// parameters, role) parsed with the standard decoder and validated
// immediately after decode.
package template

import (
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/medrelay-io/medrelay-engine/pkg/models"
)

// ParseError describes a malformed template definition.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("parse template %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("parse template: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Parse deserializes a template definition. Pure function over bytes;
// the effective SQL is resolvable from the document alone.
func Parse(data []byte) (*models.QueryTemplate, error) {
	var tpl models.QueryTemplate
	if err := json.Unmarshal(data, &tpl); err != nil {
		return nil, &ParseError{Err: err}
	}
	if tpl.Role == "" {
		tpl.Role = models.RolePrimary
	}
	return &tpl, nil
}

// Validate checks structural completeness. Failures are reported as
// false + log rather than an error so a reload cycle can skip a bad
// file and keep going.
func Validate(tpl *models.QueryTemplate, logger *zap.Logger) bool {
	if tpl == nil {
		return false
	}
	if tpl.Name == "" {
		logger.Warn("template validation failed: empty query name", zap.String("path", tpl.Path))
		return false
	}
	if tpl.EffectiveSQL() == "" {
		logger.Warn("template validation failed: no effective SQL",
			zap.String("name", tpl.Name), zap.String("path", tpl.Path))
		return false
	}
	for i, p := range tpl.Parameters {
		if p.Name == "" || p.Type == "" {
			logger.Warn("template validation failed: parameter missing name or type",
				zap.String("name", tpl.Name), zap.Int("index", i))
			return false
		}
	}
	return true
}
