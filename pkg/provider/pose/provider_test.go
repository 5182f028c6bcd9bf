package pose

import (
	"slices"
	"testing"
)

func TestTokens(t *testing.T) {
	t.Parallel()

	cases := []struct {
		gloss string
		want  []string
	}{
		{"hello world", []string{"HELLO", "WORLD"}},
		{"  ME  NAME fs-sam ", []string{"ME", "NAME", "FS-SAM"}},
		{"", nil},
		{"   ", nil},
	}
	for _, tc := range cases {
		got := Tokens(tc.gloss)
		if len(got) == 0 && len(tc.want) == 0 {
			continue
		}
		if !slices.Equal(got, tc.want) {
			t.Errorf("Tokens(%q) = %v, want %v", tc.gloss, got, tc.want)
		}
	}
}
