package sqlite3

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/lindeneg/sqlite-forensics/sqlite3/internal/ddl"
)

// ColumnDesc describes one column of a table, derived from its CREATE
// TABLE text.
type ColumnDesc struct {
	Name       string
	Affinity   string
	PrimaryKey bool
}

// TableDescriptor is the schema-level description of one user table
// (spec.md §3's Table descriptor / §4.G).
type TableDescriptor struct {
	Name       string
	RootPage   int64
	Columns    []ColumnDesc
	PrimaryKey string // "" if the table has no single-column integer alias
}

func (t *TableDescriptor) columnIndex(name string) (int, bool) {
	for i, c := range t.Columns {
		if c.Name == name {
			return i, true
		}
	}
	return 0, false
}

// readSchema scans sqlite_schema (always rooted at page 1) and returns one
// TableDescriptor per `type = "table"` row, in cell-pointer (declaration)
// order. Grounded on the teacher's parseTablesAndIndices (file.go),
// replacing its ad-hoc cellMap/columnMap with ddl.ParseCreateTable.
func readSchema(pf pageFetcher, pageSize int64, reserved uint8, enc Encoding) ([]*TableDescriptor, error) {
	var tables []*TableDescriptor

	err := walkTable(pf, pageSize, reserved, schemaRootPage, func(c leafCell) error {
		_, values, err := decodeRecordFromBytes(c.Payload, enc)
		if err != nil {
			return fmt.Errorf("sqlite_schema row %d: %w", c.RowID, err)
		}
		if len(values) < 5 {
			return nil
		}
		kind := values[0]
		if kind.Kind != KindText || strings.ToLower(kind.Str) != "table" {
			return nil
		}
		name := values[1]
		rootPage := values[3]
		sqlText := values[4]
		if name.Kind != KindText || rootPage.Kind != KindInt || sqlText.Kind != KindText {
			return nil
		}

		parsed, err := ddl.ParseCreateTable(sqlText.Str)
		if err != nil {
			return fmt.Errorf("table %q: %w", name.Str, err)
		}

		td := &TableDescriptor{
			Name:       name.Str,
			RootPage:   rootPage.Int,
			PrimaryKey: parsed.PrimaryKey,
		}
		for _, col := range parsed.Columns {
			td.Columns = append(td.Columns, ColumnDesc{
				Name:       col.Name,
				Affinity:   col.Affinity,
				PrimaryKey: col.PrimaryKey,
			})
		}
		tables = append(tables, td)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tables, nil
}

func decodeRecordFromBytes(buf []byte, enc Encoding) ([]int64, []Value, error) {
	return DecodeRecord(bytes.NewReader(buf), enc)
}
