package strings

import "testing"

func TestTruncate(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		maxLen int
		want   string
	}{
		{"short string unchanged", "Pixel 8", 30, "Pixel 8"},
		{"exact length unchanged", "abcd", 4, "abcd"},
		{"long string truncated", "a very long device name indeed", 10, "a very ..."},
		{"newlines collapsed", "line one\nline two", 30, "line one line two"},
		{"repeated whitespace collapsed", "a   b\t\tc", 30, "a b c"},
		{"unicode not split", "ümläütdevice", 7, "ümlä..."},
		{"maxLen clamped", "abcdef", 1, "a..."},
		{"empty string", "", 10, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Truncate(tt.input, tt.maxLen); got != tt.want {
				t.Errorf("Truncate(%q, %d) = %q, want %q", tt.input, tt.maxLen, got, tt.want)
			}
		})
	}
}
