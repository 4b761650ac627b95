package task

import "testing"

func TestSanitizeTitle(t *testing.T) {
	tests := []struct {
		name  string
		title string
		want  string
	}{
		{"simple", "Hello World", "hello-world"},
		{"already lowercase", "already lowercase", "already-lowercase"},
		{"punctuation stripped", "What?! Is This!!", "what-is-this"},
		{"unicode accents", "Café del Mar", "cafe-del-mar"},
		{"collapses dash runs", "a---b   c", "a-b-c"},
		{"empty becomes untitled", "!!!???", "untitled"},
		{"literal empty", "", "untitled"},
		{"caps at 100 chars", repeatA(150), repeatA(100)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SanitizeTitle(tt.title)
			if got != tt.want {
				t.Errorf("SanitizeTitle(%q) = %q, want %q", tt.title, got, tt.want)
			}
		})
	}
}

func repeatA(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = 'a'
	}
	return string(b)
}
