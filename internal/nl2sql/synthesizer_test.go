package nl2sql

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestStripMarkdownSQL(t *testing.T) {
	cases := map[string]string{
		"```sql\nSELECT 1;\n```":                "SELECT 1;",
		"```\nSELECT 1\n```":                    "SELECT 1",
		"```SQL\nSELECT 1\n```":                 "SELECT 1",
		"  SELECT 1  ":                          "SELECT 1",
		"```sql SELECT 1```":                    "SELECT 1",
		"```\nSELECT *\nFROM \"Advanced\"\n```": "SELECT *\nFROM \"Advanced\"",
		"```\n```":                              "",
	}
	for in, want := range cases {
		if got := stripMarkdownSQL(in); got != want {
			t.Fatalf("stripMarkdownSQL(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestBuildPromptContainsContextAndRules(t *testing.T) {
	prompt := BuildPrompt("sqlite", "Table: `Player Per Game`\nSchema: CREATE TABLE ...", "  Who led the league in scoring in 2006?  ")
	for _, want := range []string{
		"raw SQLite query",
		"Table: `Player Per Game`",
		"User question: Who led the league in scoring in 2006?\n",
		"team = '2TM'",
		"at least 50 games",
		"top 10",
		"Never use QUALIFY",
		"exactly ONE statement",
		"minutes played is null",
		"Return ONLY the single raw SQL query.",
	} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q", want)
		}
	}
	if !strings.Contains(BuildPrompt("duckdb", "s", "q"), "raw DuckDB query") {
		t.Fatal("expected DuckDB dialect name")
	}
}

func TestBuildPromptKeepsPercentSigns(t *testing.T) {
	prompt := BuildPrompt("postgres", "fg_percent 45%", "what is 100% shooting?")
	if !strings.Contains(prompt, "fg_percent 45%") || !strings.Contains(prompt, "what is 100% shooting?") {
		t.Fatal("prompt mangled percent signs")
	}
}

func TestSynthesizeStripsFences(t *testing.T) {
	generator := &fakeGenerator{output: "```sql\nSELECT player FROM \"Player Per Game\" LIMIT 10\n```"}
	synth, err := NewSynthesizer(generator, "sqlite", nil)
	if err != nil {
		t.Fatalf("NewSynthesizer() error = %v", err)
	}
	got, err := synth.Synthesize(context.Background(), "schema text", "Who scored the most?")
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if got != `SELECT player FROM "Player Per Game" LIMIT 10` {
		t.Fatalf("Synthesize() = %q", got)
	}
	if !strings.Contains(generator.lastPrompt, "schema text") || !strings.Contains(generator.lastPrompt, "Who scored the most?") {
		t.Fatal("prompt did not include schema and question")
	}
	if generator.calls != 1 {
		t.Fatalf("generator calls = %d", generator.calls)
	}
}

func TestSynthesizeErrors(t *testing.T) {
	synth, _ := NewSynthesizer(&fakeGenerator{output: "```sql\n```"}, "sqlite", nil)
	if _, err := synth.Synthesize(context.Background(), "s", "q"); !errors.Is(err, ErrEmptySQL) {
		t.Fatalf("Synthesize() error = %v, want ErrEmptySQL", err)
	}

	synth, _ = NewSynthesizer(&fakeGenerator{err: errors.New("503 from model")}, "sqlite", nil)
	if _, err := synth.Synthesize(context.Background(), "s", "q"); err == nil {
		t.Fatal("expected generator error")
	}

	if _, err := synth.Synthesize(context.Background(), "s", " "); err == nil {
		t.Fatal("expected empty question error")
	}
}

type fakeGenerator struct {
	output     string
	err        error
	lastPrompt string
	calls      int
}

func (f *fakeGenerator) Model() string { return "fake" }

func (f *fakeGenerator) Generate(_ context.Context, prompt string) (string, error) {
	f.calls++
	f.lastPrompt = prompt
	if f.err != nil {
		return "", f.err
	}
	return f.output, nil
}
