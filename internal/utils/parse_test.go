package utils

import "testing"

func TestAtoiDefault(t *testing.T) {
	cases := []struct {
		in   string
		def  int
		want int
	}{
		{"42", 0, 42},
		{"", 10, 10},
		{"x", 5, 5},
		{"-3", 1, -3},
	}
	for _, tc := range cases {
		if got := AtoiDefault(tc.in, tc.def); got != tc.want {
			t.Errorf("AtoiDefault(%q, %d) = %d, want %d", tc.in, tc.def, got, tc.want)
		}
	}
}

func TestClampInt(t *testing.T) {
	if got := ClampInt(5, 1, 10); got != 5 {
		t.Fatalf("in-range = %d", got)
	}
	if got := ClampInt(-1, 1, 10); got != 1 {
		t.Fatalf("below = %d", got)
	}
	if got := ClampInt(99, 1, 10); got != 10 {
		t.Fatalf("above = %d", got)
	}
}
