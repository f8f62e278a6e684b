package errors

import (
	"testing"
)

func TestValidateFilenameStem(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"simple", "cover-630x500", false},
		{"underscores", "My_Game_630x500", false},
		{"unicode", "Café_630x500", false},

		{"empty", "", true},
		{"too long", string(make([]byte, 300)), true},
		{"slash", "a/b", true},
		{"backslash", `a\b`, true},
		{"traversal", "..cover", true},
		{"null byte", "foo\x00bar", true},
		{"newline", "foo\nbar", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFilenameStem(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateFilenameStem(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil && !Is(err, ErrCodeValidation) {
				t.Errorf("ValidateFilenameStem(%q) code = %v, want %v", tt.input, GetCode(err), ErrCodeValidation)
			}
		})
	}
}

func TestSanitizeTitle(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"CSV Cover 1", "CSV_Cover_1"},
		{"Space: The Game!", "Space_The_Game"},
		{"trailing   ", "trailing"},
		{"snake_case", "snake_case"},
		{"../../etc", "etc"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := SanitizeTitle(tt.input); got != tt.want {
			t.Errorf("SanitizeTitle(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
