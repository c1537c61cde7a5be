package pathutil

import "testing"

func TestToRelative(t *testing.T) {
	cases := []struct {
		name, abs, root, want string
	}{
		{"nested", "/home/user/project/src/a.metal", "/home/user/project", "src/a.metal"},
		{"outside root", "/other/location/b.h", "/home/user/project", "/other/location/b.h"},
		{"already relative", "src/a.metal", "/home/user/project", "src/a.metal"},
		{"empty abs", "", "/home/user/project", ""},
		{"empty root", "/home/user/project/a.metal", "", "/home/user/project/a.metal"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := ToRelative(c.abs, c.root); got != c.want {
				t.Errorf("ToRelative(%q, %q) = %q, want %q", c.abs, c.root, got, c.want)
			}
		})
	}
}

func TestCanonicalizeIsIdempotent(t *testing.T) {
	p, err := Canonicalize("./a/../a/b.metal")
	if err != nil {
		t.Fatalf("Canonicalize: %v", err)
	}
	p2, err := Canonicalize(p)
	if err != nil {
		t.Fatalf("Canonicalize(Canonicalize(p)): %v", err)
	}
	if p != p2 {
		t.Errorf("Canonicalize not idempotent: %q != %q", p, p2)
	}
}