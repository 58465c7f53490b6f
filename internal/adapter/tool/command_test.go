package tool

import (
	"reflect"
	"testing"
)

func TestSplitCommand(t *testing.T) {
	tests := []struct {
		line string
		want []string
	}{
		{"uvx ddgs-mcp", []string{"uvx", "ddgs-mcp"}},
		{"  npx   -y  pkg  ", []string{"npx", "-y", "pkg"}},
		{`npx -y server "/tmp/my dir"`, []string{"npx", "-y", "server", "/tmp/my dir"}},
		{`echo 'a "b" c'`, []string{"echo", `a "b" c`}},
		{`echo "say \"hi\""`, []string{"echo", `say "hi"`}},
		{`echo a\ b`, []string{"echo", "a b"}},
		{`echo ""`, []string{"echo", ""}},
		{`npx -y server /tmp/out # trailing note`, []string{"npx", "-y", "server", "/tmp/out"}},
		{"uvx\tddgs-mcp\n", []string{"uvx", "ddgs-mcp"}},
	}
	for _, tt := range tests {
		got, err := splitCommand(tt.line)
		if err != nil {
			t.Errorf("splitCommand(%q): %v", tt.line, err)
			continue
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("splitCommand(%q) = %q, want %q", tt.line, got, tt.want)
		}
	}
}

func TestSplitCommandErrors(t *testing.T) {
	for _, line := range []string{"", "   ", `echo "open`, `echo 'open`, `echo trailing\`} {
		if _, err := splitCommand(line); err == nil {
			t.Errorf("splitCommand(%q): expected error", line)
		}
	}
}

func TestEnvSliceSorted(t *testing.T) {
	got := envSlice(map[string]string{"B": "2", "A": "1"})
	want := []string{"A=1", "B=2"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("envSlice = %v, want %v", got, want)
	}
	if envSlice(nil) != nil {
		t.Error("envSlice(nil) should be nil")
	}
}
