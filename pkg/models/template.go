package models

// QueryParameter declares one named parameter of a query template.
type QueryParameter struct {
	Name     string `json:"name"`
	Type     string `json:"type"` // "string", "int", "date", "datetime"
	Required bool   `json:"required"`
}

// QueryTemplate is an externally edited, hot-reloadable query definition.
// Either SQL (preferred, fully parameterized) or Template (legacy ${var}
// substitution) carries the statement text; EffectiveSQL() resolves the
// priority between them.
type QueryTemplate struct {
	Name       string           `json:"name"`
	SQL        string           `json:"sql"`
	Template   string           `json:"template"`
	Parameters []QueryParameter `json:"parameters"`
	Role       BackendRole      `json:"role"`

	// Path is the file this template was loaded from, recorded by the
	// registry so the entry can be reloaded after a file change.
	Path string `json:"-"`
}

// EffectiveSQL returns the statement to execute: the explicit sql field
// when present, otherwise the legacy variable template.
func (t *QueryTemplate) EffectiveSQL() string {
	if t.SQL != "" {
		return t.SQL
	}
	return t.Template
}
