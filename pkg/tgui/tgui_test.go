package tgui

import "testing"

func TestTruncRunes(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   string
		n    int
		want string
	}{
		{name: "short passes through", in: "hello", n: 10, want: "hello"},
		{name: "exact length untouched", in: "hello", n: 5, want: "hello"},
		{name: "truncated gets ellipsis", in: "hello world", n: 5, want: "hello…"},
		{name: "multibyte counted as runes", in: "héllо wörld", n: 5, want: "héllо…"},
		{name: "zero budget", in: "hello", n: 0, want: ""},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if got := TruncRunes(tt.in, tt.n); got != tt.want {
				t.Fatalf("TruncRunes(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
			}
		})
	}
}

func TestEscAndLink(t *testing.T) {
	t.Parallel()
	if got := B("a<b>").String(); got != "<b>a&lt;b&gt;</b>" {
		t.Fatalf("B() = %q", got)
	}
	got := Link(`x"y`, `https://e.test/?a=1&b=2`).String()
	want := `<a href="https://e.test/?a=1&amp;b=2">x&#34;y</a>`
	if got != want {
		t.Fatalf("Link() = %q, want %q", got, want)
	}
}
