package ui

import (
	"bytes"
	"strings"
	"testing"
)

func TestProgress_steps(t *testing.T) {
	SetStyled(false)
	var buf bytes.Buffer
	p := NewProgress(&buf, 3)

	p.Step("alpha")
	p.Step("beta")
	p.Step("gamma")

	out := buf.String()
	for _, want := range []string{"[1/3] alpha", "[2/3] beta", "[3/3] gamma"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing progress line %q in: %s", want, out)
		}
	}
}

func TestTreeHeader_plain(t *testing.T) {
	SetStyled(false)
	if got := TreeHeader("alpha", "/src/alpha", false); got != "# alpha" {
		t.Errorf("TreeHeader = %q, want %q", got, "# alpha")
	}
	if got := TreeHeader("alpha", "/src/alpha", true); got != "# alpha  /src/alpha" {
		t.Errorf("verbose TreeHeader = %q", got)
	}
}

func TestMissingTree_plain(t *testing.T) {
	SetStyled(false)
	if got := MissingTree("beta", "/src/beta", false); got != "# beta (skipped)" {
		t.Errorf("MissingTree = %q", got)
	}
}
