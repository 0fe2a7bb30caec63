package textmatch

import "testing"

func TestIsExactSubstring(t *testing.T) {
	t.Parallel()

	document := "The quick brown fox\njumps over the lazy dog."

	tests := []struct {
		name      string
		candidate string
		want      bool
	}{
		{"verbatim span", "quick brown fox", true},
		{"spans a newline", "fox\njumps", true},
		{"whole document", document, true},
		{"case differs", "Quick Brown Fox", false},
		{"whitespace differs", "quick  brown fox", false},
		{"paraphrase", "the fast brown fox", false},
		{"empty candidate", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := IsExactSubstring(tt.candidate, document); got != tt.want {
				t.Errorf("IsExactSubstring(%q) = %v, want %v", tt.candidate, got, tt.want)
			}
		})
	}
}

func TestPosition(t *testing.T) {
	t.Parallel()

	document := "alpha beta gamma beta"

	if got := Position("beta", document); got != 6 {
		t.Errorf("Position(\"beta\") = %d, want 6", got)
	}
	if got := Position("delta", document); got != -1 {
		t.Errorf("Position(\"delta\") = %d, want -1", got)
	}
	if got := Position("", document); got != -1 {
		t.Errorf("Position(\"\") = %d, want -1", got)
	}
}
