package complete

import (
	"reflect"
	"testing"
)

func runesToStrings(rs [][]rune) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = string(r)
	}
	return out
}

func newAdapter(cwd string) *ReadlineAdapter {
	st, _ := newState(cwd)
	return &ReadlineAdapter{
		Engine: NewEngine(testKinds),
		State:  func() State { return st },
	}
}

func TestReadlineAdapter_Suffixes(t *testing.T) {
	a := newAdapter("/")

	tests := []struct {
		buffer string
		want   []string
		length int
	}{
		{"cd /pho", []string{"tos/", "tos/..."}, 4},
		{"gr", []string{"ep "}, 2},
		{"cat no", []string{"tes.txt "}, 2},
		{"cat my", []string{"\\ docs/", "\\ docs/..."}, 2},
		{`cat "my d`, []string{"ocs/", "ocs/..."}, 5},
		{`cat "my docs/c`, []string{"v.pdf\" "}, 10},
		{"cat zzz", nil, 0},
	}
	for _, tt := range tests {
		line := []rune(tt.buffer)
		got, length := a.Do(line, len(line))
		var gotStrings []string
		if got != nil {
			gotStrings = runesToStrings(got)
		}
		if !reflect.DeepEqual(gotStrings, tt.want) || length != tt.length {
			t.Errorf("Do(%q) = %q, %d; want %q, %d", tt.buffer, gotStrings, length, tt.want, tt.length)
		}
	}
}

func TestReadlineAdapter_CursorInsideLine(t *testing.T) {
	a := newAdapter("/")
	line := []rune("cd /pho trailing")
	got, _ := a.Do(line, len("cd /pho"))
	if want := []string{"tos/", "tos/..."}; !reflect.DeepEqual(runesToStrings(got), want) {
		t.Errorf("Do = %q, want %q", runesToStrings(got), want)
	}
}

func TestLastWord(t *testing.T) {
	tests := []struct {
		in    string
		word  string
		quote rune
	}{
		{"cat a", "a", 0},
		{"cat ", "", 0},
		{`cat my\ d`, `my\ d`, 0},
		{`cat "my d`, `"my d`, '"'},
		{`cat 'x y' z`, "z", 0},
	}
	for _, tt := range tests {
		word, quote := lastWord(tt.in)
		if word != tt.word || quote != tt.quote {
			t.Errorf("lastWord(%q) = %q, %q; want %q, %q", tt.in, word, quote, tt.word, tt.quote)
		}
	}
}

func TestEscape(t *testing.T) {
	if got := escape("a b(1)&c"); got != `a\ b\(1\)\&c` {
		t.Errorf("escape = %q", got)
	}
	if got := escape("plain.txt"); got != "plain.txt" {
		t.Errorf("escape = %q", got)
	}
}
