package rulemap

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

const testCSV = `rule,namespace,sha256List
RULE_A,./rules/pe/a.yara,"h1,h2"
RULE_A,./rules/elf/a.yara,"h2,h3"
RULE_B,./rules/pe/b.yara,h4
RULE_EMPTY,./rules/pe/e.yara,
`

func writeMapping(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "Rule_Hash_Mapping.csv")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write mapping file: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	m, err := Load(writeMapping(t, testCSV))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if m.Len() != 4 {
		t.Errorf("Expected 4 entries, got %d", m.Len())
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.csv"))
	if err == nil {
		t.Fatal("Load should fail for a missing file")
	}
}

func TestLoadMissingColumn(t *testing.T) {
	_, err := Load(writeMapping(t, "rule,namespace\nRULE_A,./a.yara\n"))
	if err == nil {
		t.Fatal("Load should fail when sha256List column is missing")
	}
	if !strings.Contains(err.Error(), "sha256List") {
		t.Errorf("Error should name the missing column, got: %v", err)
	}
}

func TestLoadDuplicateKey(t *testing.T) {
	_, err := Load(writeMapping(t, `rule,namespace,sha256List
RULE_A,./a.yara,h1
RULE_A,./a.yara,h2
`))
	if err == nil {
		t.Fatal("Load should reject a duplicate (rule, namespace) key")
	}
	if !strings.Contains(err.Error(), "duplicate") {
		t.Errorf("Error should mention the duplicate, got: %v", err)
	}
}

func TestQueryWithNamespace(t *testing.T) {
	m, err := Load(writeMapping(t, testCSV))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	results := m.Query("RULE_A", "./rules/pe/a.yara")
	if len(results) != 1 {
		t.Fatalf("Expected exactly 1 result, got %d", len(results))
	}
	if !reflect.DeepEqual(results[0].Hashes, []string{"h1", "h2"}) {
		t.Errorf("Unexpected hashes: %v", results[0].Hashes)
	}

	if results := m.Query("RULE_A", "./rules/unknown.yara"); len(results) != 0 {
		t.Errorf("Unknown namespace should match nothing, got %v", results)
	}
}

func TestQueryAllNamespaces(t *testing.T) {
	m, err := Load(writeMapping(t, testCSV))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	results := m.Query("RULE_A", "")
	if len(results) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(results))
	}

	namespaces := map[string]bool{}
	for _, r := range results {
		namespaces[r.Namespace] = true
	}
	if !namespaces["./rules/pe/a.yara"] || !namespaces["./rules/elf/a.yara"] {
		t.Errorf("Unexpected namespaces: %v", namespaces)
	}
}

func TestSHA256List(t *testing.T) {
	m, err := Load(writeMapping(t, testCSV))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	// h2 appears in two namespaces, it must be deduplicated
	hashes := m.SHA256List("RULE_A", "")
	want := map[string]bool{"h1": true, "h2": true, "h3": true}
	if len(hashes) != len(want) {
		t.Fatalf("Expected %d unique hashes, got %v", len(want), hashes)
	}
	for _, h := range hashes {
		if !want[h] {
			t.Errorf("Unexpected hash %q", h)
		}
	}
}

func TestSHA256ListUnknownRule(t *testing.T) {
	m, err := Load(writeMapping(t, testCSV))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if hashes := m.SHA256List("RULE_X", ""); len(hashes) != 0 {
		t.Errorf("Unknown rule should yield an empty list, got %v", hashes)
	}
}

func TestSHA256ListEmptyHashField(t *testing.T) {
	m, err := Load(writeMapping(t, testCSV))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if hashes := m.SHA256List("RULE_EMPTY", ""); len(hashes) != 0 {
		t.Errorf("Empty sha256List field should yield an empty list, got %v", hashes)
	}
}
