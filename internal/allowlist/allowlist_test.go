package allowlist

import "testing"

func TestAllowed(t *testing.T) {
	l := New([]string{"Admin@Example.com", " second@example.com ", ""})

	cases := []struct {
		email string
		want  bool
	}{
		{"admin@example.com", true},
		{"ADMIN@EXAMPLE.COM", true},
		{" admin@example.com ", true},
		{"second@example.com", true},
		{"other@example.com", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := l.Allowed(tc.email); got != tc.want {
			t.Errorf("Allowed(%q) = %v, want %v", tc.email, got, tc.want)
		}
	}
}

func TestEmptyListAdmitsNoOne(t *testing.T) {
	l := New(nil)
	if !l.Empty() {
		t.Error("expected Empty to be true")
	}
	if l.Allowed("admin@example.com") {
		t.Error("empty allow-list must reject everyone")
	}

	var nilList *List
	if nilList.Allowed("admin@example.com") {
		t.Error("nil allow-list must reject everyone")
	}
}
