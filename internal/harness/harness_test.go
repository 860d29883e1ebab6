package harness

import (
	"strings"
	"testing"

	"github.com/gkampitakis/go-snaps/snaps"
	"golang.org/x/tools/txtar"
)

func loadArchive(t *testing.T) *txtar.Archive {
	t.Helper()
	archive, err := txtar.ParseFile("testdata/scenarios.txtar")
	if err != nil {
		t.Fatalf("parsing scenarios archive: %v", err)
	}
	return archive
}

// TestScenarioSnapshots runs every scenario in the archive and
// snapshots its rendered report.
func TestScenarioSnapshots(t *testing.T) {
	archive := loadArchive(t)
	for _, file := range archive.Files {
		t.Run(strings.TrimSuffix(file.Name, ".yaml"), func(t *testing.T) {
			scenario, err := Parse(file.Data, nil)
			if err != nil {
				t.Fatalf("building scenario: %v", err)
			}
			report, err := scenario.Run()
			if err != nil {
				t.Fatalf("running scenario: %v", err)
			}
			snaps.MatchSnapshot(t, report.Render())
		})
	}
}

func TestScenarioResults(t *testing.T) {
	archive := loadArchive(t)
	var data []byte
	for _, file := range archive.Files {
		if file.Name == "assign-and-narrow.yaml" {
			data = file.Data
		}
	}
	scenario, err := Parse(data, nil)
	if err != nil {
		t.Fatalf("building scenario: %v", err)
	}
	report, err := scenario.Run()
	if err != nil {
		t.Fatalf("running scenario: %v", err)
	}
	if report.RunID.String() == "00000000-0000-0000-0000-000000000000" {
		t.Errorf("run id should be assigned")
	}
	want := []string{`Literal["hello"]`, "int", "None"}
	if len(report.Results) != len(want) {
		t.Fatalf("got %d results, want %d", len(report.Results), len(want))
	}
	for i, w := range want {
		if report.Results[i].Type != w {
			t.Errorf("result %d = %s, want %s", i, report.Results[i].Type, w)
		}
	}
}

func TestParseRejectsBadScenarios(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"no nodes", "name: empty\nqueries: []\n"},
		{"unknown kind", "nodes:\n  - id: a\n    kind: warp\n"},
		{"unknown antecedent", "nodes:\n  - id: a\n    kind: annotation\n    antecedent: ghost\n"},
		{"label without antecedents", "nodes:\n  - id: a\n    kind: branch\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.src), nil); err == nil {
				t.Errorf("expected an error")
			}
		})
	}
}

func TestTypeParse(t *testing.T) {
	s := mustScenario(t)
	tests := []struct {
		src  string
		want string
	}{
		{"Never", "Never"},
		{"Unknown", "Unknown"},
		{"None", "None"},
		{"Unbound", "Unbound"},
		{"int", "int"},
		{"type[int]", "type[int]"},
		{"int | None", "int | None"},
		{`Literal["s"]`, `Literal["s"]`},
		{"Literal[7]", "Literal[7]"},
		{"Literal[True]", "Literal[True]"},
		{"() -> Never", "() -> Never"},
		{"TypeVar[T, int, str]", "T(int, str)"},
	}
	for _, tt := range tests {
		typ, err := s.parseType(tt.src)
		if err != nil {
			t.Errorf("parseType(%q) failed: %v", tt.src, err)
			continue
		}
		if got := typ.String(); got != tt.want {
			t.Errorf("parseType(%q) = %s, want %s", tt.src, got, tt.want)
		}
	}

	for _, bad := range []string{"", "int |", "Literal[?]", "3dog"} {
		if _, err := s.parseType(bad); err == nil {
			t.Errorf("parseType(%q) should fail", bad)
		}
	}
}

func TestExprParse(t *testing.T) {
	s := mustScenario(t)
	tests := []string{
		"x",
		"a.b.c",
		`d["k"]`,
		"d[3]",
		"f(x, 1)",
		"x is None",
		"x is not None",
		"not x",
		"isinstance(x, (int, str))",
		"await f()",
	}
	for _, src := range tests {
		expr, err := s.parseExpr(src)
		if err != nil {
			t.Errorf("parseExpr(%q) failed: %v", src, err)
			continue
		}
		// Interning: parsing the same source yields the same node.
		again, err := s.parseExpr(src)
		if err != nil || expr != again {
			t.Errorf("parseExpr(%q) not interned", src)
		}
	}

	for _, bad := range []string{"", "x +", "f(", `d["unterminated]`} {
		if _, err := s.parseExpr(bad); err == nil {
			t.Errorf("parseExpr(%q) should fail", bad)
		}
	}
}

func TestDescribeGraph(t *testing.T) {
	archive := loadArchive(t)
	for _, file := range archive.Files {
		if file.Name != "noreturn-call.yaml" {
			continue
		}
		scenario, err := Parse(file.Data, nil)
		if err != nil {
			t.Fatalf("building scenario: %v", err)
		}
		snaps.MatchSnapshot(t, scenario.DescribeGraph())
	}
}

// mustScenario builds a minimal scenario for parser-level tests.
func mustScenario(t *testing.T) *Scenario {
	t.Helper()
	s, err := Parse([]byte("name: parse\nnodes:\n  - id: start\n    kind: start\nqueries: []\n"), nil)
	if err != nil {
		t.Fatalf("building scenario: %v", err)
	}
	return s
}
