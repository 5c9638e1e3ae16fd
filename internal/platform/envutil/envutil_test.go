package envutil

import "testing"

func TestString(t *testing.T) {
	t.Setenv("KB_TEST_STRING", "  value  ")
	if got := String("KB_TEST_STRING", "def"); got != "value" {
		t.Errorf("String = %q, want %q", got, "value")
	}
	if got := String("KB_TEST_STRING_MISSING", "def"); got != "def" {
		t.Errorf("String default = %q, want %q", got, "def")
	}
}

func TestInt(t *testing.T) {
	t.Setenv("KB_TEST_INT", "7")
	if got := Int("KB_TEST_INT", 3); got != 7 {
		t.Errorf("Int = %d, want 7", got)
	}
	t.Setenv("KB_TEST_INT", "not a number")
	if got := Int("KB_TEST_INT", 3); got != 3 {
		t.Errorf("Int on garbage = %d, want default 3", got)
	}
}

func TestFloat(t *testing.T) {
	t.Setenv("KB_TEST_FLOAT", "0.25")
	if got := Float("KB_TEST_FLOAT", 0.1); got != 0.25 {
		t.Errorf("Float = %v, want 0.25", got)
	}
	t.Setenv("KB_TEST_FLOAT", "garbage")
	if got := Float("KB_TEST_FLOAT", 0.1); got != 0.1 {
		t.Errorf("Float on garbage = %v, want default 0.1", got)
	}
}

func TestBool(t *testing.T) {
	cases := []struct {
		raw  string
		def  bool
		want bool
	}{
		{"1", false, true},
		{"true", false, true},
		{"YES", false, true},
		{"on", false, true},
		{"0", true, false},
		{"no", true, false},
		{"off", true, false},
		{"", true, true},
		{"maybe", false, false},
	}
	for _, tc := range cases {
		t.Setenv("KB_TEST_BOOL", tc.raw)
		if got := Bool("KB_TEST_BOOL", tc.def); got != tc.want {
			t.Errorf("Bool(%q, %v) = %v, want %v", tc.raw, tc.def, got, tc.want)
		}
	}
}
