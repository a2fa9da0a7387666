package migrate

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSplitStatementsKeepsDollarQuotedBodies(t *testing.T) {
	src := `create table t (id text);
create or replace function immutable_t() returns trigger as $$
begin
    raise exception 'rows are append-only; no exceptions';
end;
$$ language plpgsql;
create trigger trg before update on t for each row execute function immutable_t();`

	stmts := splitStatements(src)
	if len(stmts) != 3 {
		t.Fatalf("expected 3 statements, got %d: %#v", len(stmts), stmts)
	}
	if !strings.Contains(stmts[1], "raise exception") || !strings.Contains(stmts[1], "$$ language plpgsql") {
		t.Fatalf("function body was split: %q", stmts[1])
	}
}

func TestSplitStatementsRespectsStringLiterals(t *testing.T) {
	stmts := splitStatements(`insert into t values ('a;b'); insert into t values ('c');`)
	if len(stmts) != 2 {
		t.Fatalf("expected 2 statements, got %d: %#v", len(stmts), stmts)
	}
	if !strings.Contains(stmts[0], "'a;b'") {
		t.Fatalf("literal was split: %q", stmts[0])
	}
}

func TestListSQLOrdersAndFilters(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"0002_b.up.sql", "0001_a.up.sql", "0001_a.down.sql", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("select 1;"), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	files, err := listSQL(dir, ".up.sql")
	if err != nil {
		t.Fatalf("listSQL: %v", err)
	}
	want := []string{"0001_a.up.sql", "0002_b.up.sql"}
	if len(files) != len(want) {
		t.Fatalf("got %v, want %v", files, want)
	}
	for i := range want {
		if files[i] != want[i] {
			t.Fatalf("got %v, want %v", files, want)
		}
	}

	if files, err := listSQL(filepath.Join(dir, "missing"), ".sql"); err != nil || files != nil {
		t.Fatalf("missing dir should yield nothing, got %v, %v", files, err)
	}
}
