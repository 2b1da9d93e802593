package sqlite3

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPageSize = 4096

// placeCells writes cells into a page buffer back-to-front, the way sqlite
// itself packs a b-tree page, and returns their offsets in placement order
// (which becomes the cell pointer array, and therefore walk order).
func placeCells(page []byte, cells [][]byte) []uint16 {
	offsets := make([]uint16, len(cells))
	cursor := len(page)
	for i, cell := range cells {
		cursor -= len(cell)
		copy(page[cursor:], cell)
		offsets[i] = uint16(cursor)
	}
	return offsets
}

func writeLeafTableHeader(page []byte, headerOffset int, cellCount int, contentStart uint16) {
	page[headerOffset] = byte(pageTypeLeafTable)
	binary.BigEndian.PutUint16(page[headerOffset+1:headerOffset+3], 0) // first freeblock
	binary.BigEndian.PutUint16(page[headerOffset+3:headerOffset+5], uint16(cellCount))
	binary.BigEndian.PutUint16(page[headerOffset+5:headerOffset+7], contentStart)
	page[headerOffset+7] = 0 // fragmented bytes
}

func writeCellPointers(page []byte, arrayOffset int, offsets []uint16) {
	for i, off := range offsets {
		binary.BigEndian.PutUint16(page[arrayOffset+i*2:arrayOffset+i*2+2], off)
	}
}

func leafTableCell(rowID int64, record []byte) []byte {
	var out []byte
	out = append(out, EncodeVarint(int64(len(record)))...)
	out = append(out, EncodeVarint(rowID)...)
	out = append(out, record...)
	return out
}

// buildSyntheticDatabase assembles a two-page database image entirely in
// memory: page 1 is sqlite_schema describing one user table "items" rooted
// at page 2; page 2 holds two rows of that table. Binary .sqlite fixtures
// can't be authored without running sqlite itself, so this is the
// from-scratch equivalent spec.md §8's Scenarios describe.
func buildSyntheticDatabase(t *testing.T) []byte {
	t.Helper()

	buf := make([]byte, testPageSize*2)

	copy(buf[0:16], "SQLite format 3\x00")
	binary.BigEndian.PutUint16(buf[16:18], testPageSize)
	buf[20] = 0 // reserved space
	binary.BigEndian.PutUint32(buf[56:60], 1)

	page1 := buf[0:testPageSize]

	sqlText := "CREATE TABLE items (id INTEGER PRIMARY KEY, name TEXT)"
	schemaSerials := []int64{
		13 + 2*int64(len("table")),
		13 + 2*int64(len("items")),
		13 + 2*int64(len("items")),
		1,
		13 + 2*int64(len(sqlText)),
	}
	var schemaBody []byte
	schemaBody = append(schemaBody, []byte("table")...)
	schemaBody = append(schemaBody, []byte("items")...)
	schemaBody = append(schemaBody, []byte("items")...)
	schemaBody = append(schemaBody, byte(2)) // root page of "items" is page 2
	schemaBody = append(schemaBody, []byte(sqlText)...)
	schemaRecord := buildRecord(schemaSerials, schemaBody)
	schemaCell := leafTableCell(1, schemaRecord)

	offsets := placeCells(page1, [][]byte{schemaCell})
	writeLeafTableHeader(page1, HeaderSize, 1, offsets[0])
	writeCellPointers(page1, HeaderSize+8, offsets)

	page2 := buf[testPageSize : 2*testPageSize]

	rec1 := buildRecord([]int64{0, 13 + 2*int64(len("alice"))}, []byte("alice"))
	rec2 := buildRecord([]int64{0, 13 + 2*int64(len("bob"))}, []byte("bob"))
	cell1 := leafTableCell(1, rec1)
	cell2 := leafTableCell(2, rec2)

	pageOffsets := placeCells(page2, [][]byte{cell1, cell2})
	writeLeafTableHeader(page2, 0, 2, minUint16(pageOffsets))
	writeCellPointers(page2, 8, pageOffsets)

	return buf
}

func minUint16(vals []uint16) uint16 {
	m := vals[0]
	for _, v := range vals[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

func TestDatabaseOpenReaderReadsSchemaAndRows(t *testing.T) {
	buf := buildSyntheticDatabase(t)

	db, err := OpenReader(bytesSource(buf), nil)
	require.NoError(t, err)
	defer db.Close()

	assert.Equal(t, EncodingUTF8, db.Encoding())

	tables := db.Tables()
	require.Len(t, tables, 1)
	assert.Equal(t, "items", tables[0].Name())
	assert.Equal(t, "id", tables[0].PrimaryKey())

	table, err := db.Table("items")
	require.NoError(t, err)

	n, err := table.Len()
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	var got []string
	for row, err := range table.Rows() {
		require.NoError(t, err)
		name, ok := row.Get("name")
		require.True(t, ok)
		got = append(got, name.Str)

		id, ok := row.Get("id")
		require.True(t, ok)
		assert.Equal(t, row.RowID(), id.Int)
	}
	assert.Equal(t, []string{"alice", "bob"}, got)
}

func TestDatabaseTableNotFound(t *testing.T) {
	buf := buildSyntheticDatabase(t)
	db, err := OpenReader(bytesSource(buf), nil)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Table("nope")
	assert.ErrorIs(t, err, ErrNoSuchTable)
}

func TestDatabaseRowByIndex(t *testing.T) {
	buf := buildSyntheticDatabase(t)
	db, err := OpenReader(bytesSource(buf), nil)
	require.NoError(t, err)
	defer db.Close()

	table, err := db.Table("items")
	require.NoError(t, err)

	row, err := table.Row(1)
	require.NoError(t, err)
	name, _ := row.Get("name")
	assert.Equal(t, "bob", name.Str)

	_, err = table.Row(5)
	assert.Error(t, err)
}
