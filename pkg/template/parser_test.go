package template

import (
	"testing"

	"go.uber.org/zap"

	"github.com/medrelay-io/medrelay-engine/pkg/models"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
		check   func(t *testing.T, tpl *models.QueryTemplate)
	}{
		{
			name:  "full definition with explicit sql",
			input: `{"name":"patient-query","sql":"SELECT * FROM pat_visit WHERE visit_id = :visit_id","parameters":[{"name":"visit_id","type":"string","required":true}],"role":"primary"}`,
			check: func(t *testing.T, tpl *models.QueryTemplate) {
				if tpl.Name != "patient-query" {
					t.Errorf("name = %q", tpl.Name)
				}
				if tpl.EffectiveSQL() != "SELECT * FROM pat_visit WHERE visit_id = :visit_id" {
					t.Errorf("effective sql = %q", tpl.EffectiveSQL())
				}
			},
		},
		{
			name:  "legacy template only",
			input: `{"name":"lab-query","template":"SELECT * FROM lab WHERE visit = '${visitId}'"}`,
			check: func(t *testing.T, tpl *models.QueryTemplate) {
				if tpl.EffectiveSQL() != "SELECT * FROM lab WHERE visit = '${visitId}'" {
					t.Errorf("effective sql = %q", tpl.EffectiveSQL())
				}
			},
		},
		{
			name:  "explicit sql wins over legacy template",
			input: `{"name":"q","sql":"SELECT 1","template":"SELECT 2"}`,
			check: func(t *testing.T, tpl *models.QueryTemplate) {
				if tpl.EffectiveSQL() != "SELECT 1" {
					t.Errorf("effective sql = %q", tpl.EffectiveSQL())
				}
			},
		},
		{
			name:  "role defaults to primary",
			input: `{"name":"q","sql":"SELECT 1"}`,
			check: func(t *testing.T, tpl *models.QueryTemplate) {
				if tpl.Role != models.RolePrimary {
					t.Errorf("role = %q", tpl.Role)
				}
			},
		},
		{
			name:    "malformed json",
			input:   `{"name":`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tpl, err := Parse([]byte(tt.input))
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected parse error")
				}
				if _, ok := err.(*ParseError); !ok {
					t.Errorf("expected *ParseError, got %T", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			tt.check(t, tpl)
		})
	}
}

func TestValidate(t *testing.T) {
	logger := zap.NewNop()
	tests := []struct {
		name string
		tpl  *models.QueryTemplate
		want bool
	}{
		{
			name: "valid",
			tpl: &models.QueryTemplate{
				Name: "q", SQL: "SELECT 1",
				Parameters: []models.QueryParameter{{Name: "visit_id", Type: "string"}},
			},
			want: true,
		},
		{name: "nil", tpl: nil, want: false},
		{name: "empty name", tpl: &models.QueryTemplate{SQL: "SELECT 1"}, want: false},
		{name: "no effective sql", tpl: &models.QueryTemplate{Name: "q"}, want: false},
		{
			name: "parameter without type",
			tpl: &models.QueryTemplate{
				Name: "q", SQL: "SELECT 1",
				Parameters: []models.QueryParameter{{Name: "visit_id"}},
			},
			want: false,
		},
		{
			name: "parameter without name",
			tpl: &models.QueryTemplate{
				Name: "q", SQL: "SELECT 1",
				Parameters: []models.QueryParameter{{Type: "string"}},
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Validate(tt.tpl, logger); got != tt.want {
				t.Errorf("Validate() = %v, want %v", got, tt.want)
			}
		})
	}
}
