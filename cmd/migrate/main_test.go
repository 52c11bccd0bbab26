package main

import (
	"strings"
	"testing"
)

func TestStatements(t *testing.T) {
	got := statements("-- header\ncreate table a (\n  id int\n);\n\ncreate index b on a (id);\nselect 1")
	if len(got) != 3 {
		t.Fatalf("len = %d: %q", len(got), got)
	}
	if !strings.HasPrefix(got[0], "create table a (") || !strings.HasSuffix(got[0], ");") {
		t.Fatalf("first = %q", got[0])
	}
	if got[2] != "select 1" {
		t.Fatalf("trailing = %q", got[2])
	}
}

func TestEmbeddedSchemaCoversQueries(t *testing.T) {
	stmts := statements(schema)
	if len(stmts) < 6 {
		t.Fatalf("schema statements = %d", len(stmts))
	}
	for _, want := range []string{"generation_jobs", "references_json", "result_json", "assets", "properties", "storage_key"} {
		if !strings.Contains(schema, want) {
			t.Fatalf("schema missing %q", want)
		}
	}
}
