// Package ddl derives column lists and primary keys from the CREATE TABLE
// text sqlite stores in sqlite_schema.sql. It is the external collaborator
// spec.md §1 and §4.G describe: "input a CREATE TABLE statement, output
// [(column_name, affinity, is_pk)]".
//
// Grounded on the teacher's column scraper (cell.go's ParseColumnMap),
// replaced with github.com/xwb1989/sqlparser for tokenization-grade column
// name/affinity extraction. xwb1989/sqlparser targets a MySQL-ish grammar,
// not SQLite's, so primary-key detection (which leans on SQLite-specific
// syntax like inline "INTEGER PRIMARY KEY" and "WITHOUT ROWID") is done with
// a small dedicated regex pass over the raw text rather than through the
// parser's key-option fields, and the whole parse falls back to the
// teacher's original heuristic column splitter when the statement doesn't
// parse as MySQL-ish DDL at all (e.g. AUTOINCREMENT, WITHOUT ROWID).
package ddl

import (
	"regexp"
	"strings"

	"github.com/xwb1989/sqlparser"
)

// Column is one column extracted from a CREATE TABLE statement.
type Column struct {
	Name       string
	Affinity   string
	PrimaryKey bool
}

// Table is the result of parsing one CREATE TABLE statement.
type Table struct {
	Columns    []Column
	PrimaryKey string // "" if the table has no single-column rowid alias
}

var (
	primaryKeyInlineRe = regexp.MustCompile(`(?is)"?\[?` + `([a-zA-Z_][a-zA-Z0-9_]*)` + `\]?"?\s+[a-zA-Z0-9_]+(?:\s*\([^)]*\))?\s+PRIMARY\s+KEY`)
	primaryKeyTableRe  = regexp.MustCompile(`(?is)PRIMARY\s+KEY\s*\(\s*"?\[?([a-zA-Z_][a-zA-Z0-9_]*)\]?"?\s*\)`)
	columnBlockRe      = regexp.MustCompile(`(?is)CREATE\s+TABLE\s+(?:IF\s+NOT\s+EXISTS\s+)?\S+\s*\((.*)\)\s*(?:WITHOUT\s+ROWID\s*)?;?\s*$`)
)

// ParseCreateTable extracts column names, declared affinities, and the
// rowid-aliasing primary key (if any) from sql.
func ParseCreateTable(sql string) (*Table, error) {
	table, ok := parseWithSQLParser(sql)
	if !ok {
		table, ok = parseHeuristically(sql)
		if !ok {
			return &Table{}, nil
		}
	}
	applyPrimaryKey(sql, table)
	return table, nil
}

func parseWithSQLParser(sql string) (*Table, bool) {
	stmt, err := sqlparser.Parse(sql)
	if err != nil {
		return nil, false
	}
	stmtDDL, ok := stmt.(*sqlparser.DDL)
	if !ok || stmtDDL.TableSpec == nil || len(stmtDDL.TableSpec.Columns) == 0 {
		return nil, false
	}
	t := &Table{}
	for _, col := range stmtDDL.TableSpec.Columns {
		t.Columns = append(t.Columns, Column{
			Name:     strings.ToLower(col.Name.String()),
			Affinity: strings.ToLower(col.Type.Type),
		})
	}
	return t, true
}

// parseHeuristically is the teacher's original regex-and-split column
// scraper (cell.go's ParseColumnMap), adapted into a standalone fallback
// for statements the MySQL-dialect parser above rejects outright.
func parseHeuristically(sql string) (*Table, bool) {
	m := columnBlockRe.FindStringSubmatch(sql)
	if m == nil {
		return nil, false
	}
	t := &Table{}
	depth := 0
	var cur strings.Builder
	var parts []string
	for _, r := range m[1] {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, cur.String())
				cur.Reset()
				continue
			}
		}
		cur.WriteRune(r)
	}
	if cur.Len() > 0 {
		parts = append(parts, cur.String())
	}
	for _, part := range parts {
		fields := strings.Fields(strings.TrimSpace(part))
		if len(fields) == 0 {
			continue
		}
		head := strings.ToUpper(fields[0])
		if head == "PRIMARY" || head == "FOREIGN" || head == "UNIQUE" || head == "CHECK" || head == "CONSTRAINT" {
			continue
		}
		name := strings.Trim(fields[0], `"'[]`+"`")
		affinity := ""
		if len(fields) > 1 {
			affinity = strings.ToLower(fields[1])
		}
		t.Columns = append(t.Columns, Column{Name: strings.ToLower(name), Affinity: affinity})
	}
	if len(t.Columns) == 0 {
		return nil, false
	}
	return t, true
}

func applyPrimaryKey(sql string, t *Table) {
	var pk string
	if m := primaryKeyInlineRe.FindStringSubmatch(sql); m != nil {
		pk = strings.ToLower(m[1])
	} else if m := primaryKeyTableRe.FindStringSubmatch(sql); m != nil {
		pk = strings.ToLower(m[1])
	}
	if pk == "" {
		return
	}
	for i := range t.Columns {
		if t.Columns[i].Name == pk {
			t.Columns[i].PrimaryKey = true
			// Only an INTEGER primary key is a rowid alias; a TEXT (or
			// other affinity) primary key is a real, independently stored
			// column, so Table.PrimaryKey stays "" for it.
			if t.Columns[i].Affinity == "integer" {
				t.PrimaryKey = pk
			}
			return
		}
	}
}
