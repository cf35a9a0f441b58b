package sql

import (
	"regexp"
	"strings"
)

// TableUsage records that a statement touches a table with a given verb.
type TableUsage struct {
	Verb  string // SELECT, INSERT, UPDATE, EXEC
	Table string
}

var (
	insertPattern = regexp.MustCompile(`(?is)\binsert\s+into\s+((?:\[[^\]]+\]|"[^"]+"|[A-Za-z_][\w$]*)(?:\.(?:\[[^\]]+\]|"[^"]+"|[A-Za-z_][\w$]*))*)`)
	updatePattern = regexp.MustCompile(`(?is)\bupdate\s+((?:\[[^\]]+\]|"[^"]+"|[A-Za-z_][\w$]*)(?:\.(?:\[[^\]]+\]|"[^"]+"|[A-Za-z_][\w$]*))*)`)
	execPattern   = regexp.MustCompile(`(?is)\bexec(?:ute)?\s+((?:\[[^\]]+\]|"[^"]+"|[A-Za-z_][\w$]*)(?:\.(?:\[[^\]]+\]|"[^"]+"|[A-Za-z_][\w$]*))*)`)
)

// ExtractTableUsages lexically scans a statement for tables it reads or
// writes. FROM/JOIN references count as SELECT usage. The scan has no
// notion of statement validity; unmatched text contributes nothing.
func ExtractTableUsages(stmt string) []TableUsage {
	var usages []TableUsage
	seen := make(map[string]bool)
	add := func(verb, raw string) {
		name := unqualify(raw)
		if name == "" {
			return
		}
		key := verb + ":" + strings.ToLower(name)
		if seen[key] {
			return
		}
		seen[key] = true
		usages = append(usages, TableUsage{Verb: verb, Table: name})
	}

	for _, ref := range ExtractTableRefs(stmt) {
		add("SELECT", ref.Table)
	}
	for _, m := range insertPattern.FindAllStringSubmatch(stmt, -1) {
		add("INSERT", m[1])
	}
	for _, m := range updatePattern.FindAllStringSubmatch(stmt, -1) {
		add("UPDATE", m[1])
	}
	for _, m := range execPattern.FindAllStringSubmatch(stmt, -1) {
		add("EXEC", m[1])
	}
	return usages
}
