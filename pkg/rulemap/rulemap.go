// Package rulemap loads the CSV table mapping YARA rules to the SHA256
// hashes of the samples they matched, and answers lookup queries by rule
// name and namespace.
package rulemap

import (
	"encoding/csv"
	"fmt"
	"os"
	"sort"
	"strings"
)

// Key identifies one mapping entry: a rule name plus the namespace (the rule
// file path it was defined in)
type Key struct {
	Rule      string
	Namespace string
}

// Entry is one query match
type Entry struct {
	Rule      string
	Namespace string
	Hashes    []string
}

// Mapping is the in-memory rule-to-hash table. Loaded once, read-only
// afterwards.
type Mapping struct {
	path    string
	entries map[Key]string
	keys    []Key
}

// Load reads the full mapping CSV into memory. The file must have a header
// row with rule, namespace and sha256List columns. A missing file, a
// malformed row or a duplicate (rule, namespace) key is a hard error.
func Load(path string) (*Mapping, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open mapping file %s: %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse mapping file %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("mapping file %s is empty", path)
	}

	columns := map[string]int{}
	for i, name := range records[0] {
		columns[strings.TrimSpace(name)] = i
	}
	for _, required := range []string{"rule", "namespace", "sha256List"} {
		if _, ok := columns[required]; !ok {
			return nil, fmt.Errorf("mapping file %s is missing column %q", path, required)
		}
	}

	m := &Mapping{
		path:    path,
		entries: make(map[Key]string, len(records)-1),
	}
	for i, record := range records[1:] {
		key := Key{
			Rule:      record[columns["rule"]],
			Namespace: record[columns["namespace"]],
		}
		if _, exists := m.entries[key]; exists {
			return nil, fmt.Errorf("mapping file %s has duplicate entry for rule %q in namespace %q (row %d)",
				path, key.Rule, key.Namespace, i+2)
		}
		m.entries[key] = record[columns["sha256List"]]
		m.keys = append(m.keys, key)
	}
	return m, nil
}

// Path returns the file the mapping was loaded from
func (m *Mapping) Path() string {
	return m.path
}

// Len returns the number of mapping entries
func (m *Mapping) Len() int {
	return len(m.entries)
}

// Query returns the entries matching rule. With a namespace, it is an exact
// key lookup returning zero or one entry; without, every namespace defining
// the rule is returned.
func (m *Mapping) Query(rule, namespace string) []Entry {
	var results []Entry

	if namespace != "" {
		if raw, ok := m.entries[Key{Rule: rule, Namespace: namespace}]; ok {
			results = append(results, Entry{Rule: rule, Namespace: namespace, Hashes: splitHashes(raw)})
		}
		return results
	}

	for _, key := range m.keys {
		if key.Rule == rule {
			results = append(results, Entry{
				Rule:      key.Rule,
				Namespace: key.Namespace,
				Hashes:    splitHashes(m.entries[key]),
			})
		}
	}
	return results
}

// SHA256List flattens all entries matching rule into a deduplicated hash
// list. The result is sorted so callers get a stable order, but set
// semantics are the contract.
func (m *Mapping) SHA256List(rule, namespace string) []string {
	seen := map[string]struct{}{}
	var hashes []string
	for _, entry := range m.Query(rule, namespace) {
		for _, h := range entry.Hashes {
			if _, ok := seen[h]; !ok {
				seen[h] = struct{}{}
				hashes = append(hashes, h)
			}
		}
	}
	sort.Strings(hashes)
	return hashes
}

// splitHashes splits a comma-joined hash list, dropping empty fragments
func splitHashes(raw string) []string {
	var hashes []string
	for _, h := range strings.Split(raw, ",") {
		if h = strings.TrimSpace(h); h != "" {
			hashes = append(hashes, h)
		}
	}
	return hashes
}
