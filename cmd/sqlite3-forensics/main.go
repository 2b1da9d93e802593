// Command sqlite3-forensics inspects SQLite database files and their WAL
// sidecars without ever writing to them. It is the teacher's main.go
// (hand-parsed os.Args, a four-command switch) rebuilt on a real CLI
// library and the sqlite3 package's forensic reader.
package main

import (
	"fmt"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/lindeneg/sqlite-forensics/sqlite3"
)

type globals struct {
	DB              string `help:"Path to the main database file." required:""`
	WAL             string `help:"Path to the WAL sidecar, if present."`
	Checkpoint      int    `help:"WAL overlay depth: 0 selects the newest state, len(checkpoints) the base file only." default:"0"`
	VerifyChecksums bool   `help:"Verify WAL frame checksums while reading." name:"verify-checksums"`
	Encoding        string `help:"Override the header-declared text encoding (utf-8, utf-16le, utf-16be)."`
}

func (g *globals) open() (*sqlite3.Database, error) {
	opts := []sqlite3.Option{
		sqlite3.WithCheckpoint(g.Checkpoint),
		sqlite3.WithVerifyChecksums(g.VerifyChecksums),
	}
	if g.Encoding != "" {
		opts = append(opts, sqlite3.WithEncodingOverride(sqlite3.Encoding(g.Encoding)))
	}
	return sqlite3.Open(g.DB, g.WAL, opts...)
}

// dbinfoCmd prints the header summary, mirroring the teacher's ".dbinfo".
type dbinfoCmd struct{}

func (c *dbinfoCmd) Run(g *globals, log *logrus.Entry) error {
	db, err := g.open()
	if err != nil {
		return err
	}
	defer db.Close()

	tables := db.Tables()
	fmt.Printf("encoding: \t%s\n", db.Encoding())
	fmt.Printf("number of tables: \t%d\n", len(tables))
	log.WithField("tables", len(tables)).Info("dbinfo complete")
	return nil
}

// tablesCmd lists user table names, mirroring the teacher's ".tables".
type tablesCmd struct{}

func (c *tablesCmd) Run(g *globals, log *logrus.Entry) error {
	db, err := g.open()
	if err != nil {
		return err
	}
	defer db.Close()

	names := make([]string, 0)
	for t := range db.AllTables() {
		names = append(names, t.Name())
	}
	fmt.Println(strings.Join(names, " "))
	log.WithField("tables", len(names)).Info("tables listed")
	return nil
}

// dumpCmd prints rows of one table as tab-separated column values.
type dumpCmd struct {
	Table string `arg:"" help:"Table name to dump."`
	Limit int    `help:"Stop after this many rows (0 = unlimited)."`
}

func (c *dumpCmd) Run(g *globals, log *logrus.Entry) error {
	db, err := g.open()
	if err != nil {
		return err
	}
	defer db.Close()

	table, err := db.Table(c.Table)
	if err != nil {
		return err
	}

	n := 0
	for row, err := range table.Rows() {
		if err != nil {
			return err
		}
		cols := make([]string, 0, len(row.Pairs()))
		for _, pair := range row.Pairs() {
			cols = append(cols, pair.Value.String())
		}
		fmt.Println(strings.Join(cols, "\t"))
		n++
		if c.Limit > 0 && n >= c.Limit {
			break
		}
	}
	log.WithFields(logrus.Fields{"table": c.Table, "rows": n}).Info("dump complete")
	return nil
}

var cli struct {
	globals
	Dbinfo dbinfoCmd `cmd:"" help:"Print encoding and table-count summary."`
	Tables tablesCmd `cmd:"" help:"List user table names."`
	Dump   dumpCmd   `cmd:"" help:"Dump rows from one table, tab-separated."`
}

func main() {
	ctx := kong.Parse(&cli,
		kong.Name("sqlite3-forensics"),
		kong.Description("Read-only forensic inspection of SQLite database files and WAL sidecars."),
	)

	requestID := uuid.New()
	log := logrus.WithFields(logrus.Fields{
		"request": requestID.String(),
		"command": ctx.Command(),
	})
	log.Debug("invoked")

	err := ctx.Run(&cli.globals, log)
	if err != nil {
		log.WithError(err).Error("command failed")
	}
	ctx.FatalIfErrorf(err)
}
