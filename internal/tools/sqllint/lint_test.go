package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLintSource(t *testing.T) {
	src := "package q\n\n" +
		"const QGood = `--sql 973369e1-61ab-4cdd-9004-39fd6dfd3ed5\nselect 1;\n`\n" +
		"const QMissing = `select job_id from job_statuses;`\n" +
		"const QDup = `--sql 973369e1-61ab-4cdd-9004-39fd6dfd3ed5\nselect 2;\n`\n" +
		"const Label = \"not a query\"\n"

	l := newLinter()
	if err := l.lintSource("q.go", []byte(src)); err != nil {
		t.Fatalf("lintSource: %v", err)
	}
	if len(l.violations) != 2 {
		t.Fatalf("expected 2 violations, got %v", l.violations)
	}
	if l.violations[0].name != "QMissing" || !strings.Contains(l.violations[0].message, "missing") {
		t.Fatalf("unexpected first violation: %v", l.violations[0])
	}
	if l.violations[1].name != "QDup" || !strings.Contains(l.violations[1].message, "QGood") {
		t.Fatalf("unexpected second violation: %v", l.violations[1])
	}
}

func TestInlineQueriesPass(t *testing.T) {
	dir := filepath.Join("..", "..", "sqlinline")
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read sqlinline: %v", err)
	}
	l := newLinter()
	for _, e := range entries {
		if filepath.Ext(e.Name()) != ".go" || strings.HasSuffix(e.Name(), "_test.go") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		src, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("read %s: %v", path, err)
		}
		if err := l.lintSource(path, src); err != nil {
			t.Fatalf("lint %s: %v", path, err)
		}
	}
	if len(l.violations) != 0 {
		t.Fatalf("unexpected violations: %v", l.violations)
	}
}
