package sql

import (
	"regexp"
	"strings"
)

// TableRef is a table mentioned in a FROM or JOIN clause, with the
// alias it is referred to by in the rest of the statement. If no alias
// was declared the table name itself is the alias.
type TableRef struct {
	Alias string
	Table string
}

// JoinComparison is an equality between two alias-qualified columns
// found inside a JOIN ... ON or WHERE clause.
type JoinComparison struct {
	LeftAlias   string
	LeftColumn  string
	RightAlias  string
	RightColumn string
	Fragment    string // the matched text, kept for candidate reasons
}

// Keywords that must not be mistaken for table aliases.
var reservedAfterTable = map[string]bool{
	"on": true, "where": true, "join": true, "inner": true, "left": true,
	"right": true, "full": true, "outer": true, "cross": true, "group": true,
	"order": true, "having": true, "union": true, "set": true, "as": true,
	"and": true, "or": true, "limit": true, "when": true, "then": true,
	"else": true, "end": true, "values": true, "select": true,
}

var (
	// FROM/JOIN followed by a (possibly qualified, bracketed or quoted)
	// table name and an optional alias.
	tableRefPattern = regexp.MustCompile(
		`(?is)\b(?:from|join)\s+((?:\[[^\]]+\]|"[^"]+"|[A-Za-z_][\w$]*)(?:\.(?:\[[^\]]+\]|"[^"]+"|[A-Za-z_][\w$]*))*)` +
			`(?:\s+(?:as\s+)?([A-Za-z_][\w$]*))?`)

	// alias.column = alias.column comparisons.
	joinComparisonPattern = regexp.MustCompile(
		`(?i)\b([A-Za-z_][\w$]*)\.([A-Za-z_][\w$]*)\s*=\s*([A-Za-z_][\w$]*)\.([A-Za-z_][\w$]*)`)

	statementSeparator = regexp.MustCompile(`;`)
)

// SplitStatements breaks routine text into individual statements. The
// split is purely lexical; a semicolon inside a string literal will
// oversplit, which is acceptable because downstream matching simply
// finds nothing in the fragments.
func SplitStatements(text string) []string {
	parts := statementSeparator.Split(text, -1)
	var stmts []string
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			stmts = append(stmts, p)
		}
	}
	return stmts
}

// ExtractTableRefs finds the tables a statement reads from, with their
// aliases. Schema qualifiers and bracket/quote delimiters are stripped
// from the returned table names.
func ExtractTableRefs(stmt string) []TableRef {
	matches := tableRefPattern.FindAllStringSubmatch(stmt, -1)
	var refs []TableRef
	for _, m := range matches {
		table := unqualify(m[1])
		if table == "" {
			continue
		}
		alias := table
		if m[2] != "" && !reservedAfterTable[strings.ToLower(m[2])] {
			alias = m[2]
		}
		refs = append(refs, TableRef{Alias: alias, Table: table})
	}
	return refs
}

// ResolveAliases builds a case-insensitive alias-to-table lookup from
// the statement's table references. Later declarations win, matching
// how a reader scanning top to bottom would resolve them.
func ResolveAliases(stmt string) map[string]string {
	aliases := make(map[string]string)
	for _, ref := range ExtractTableRefs(stmt) {
		aliases[strings.ToLower(ref.Alias)] = ref.Table
	}
	return aliases
}

// ExtractJoinComparisons finds alias-qualified column equality
// comparisons in a statement. Malformed SQL yields no matches rather
// than an error; skipping is the caller's failure mode.
func ExtractJoinComparisons(stmt string) []JoinComparison {
	matches := joinComparisonPattern.FindAllStringSubmatch(stmt, -1)
	var comps []JoinComparison
	for _, m := range matches {
		comps = append(comps, JoinComparison{
			LeftAlias:   m[1],
			LeftColumn:  m[2],
			RightAlias:  m[3],
			RightColumn: m[4],
			Fragment:    strings.TrimSpace(m[0]),
		})
	}
	return comps
}

// unqualify strips schema qualifiers and delimiters from a table
// reference, returning the bare table name.
func unqualify(ref string) string {
	parts := strings.Split(ref, ".")
	last := parts[len(parts)-1]
	last = strings.Trim(last, `[]"`)
	return last
}
