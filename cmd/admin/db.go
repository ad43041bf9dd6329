package main

import (
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	levelID := fs.String("level", "", "level id (required unless -db)")
	dbPath := fs.String("db", "", "sqlite db path (optional)")
	limit := fs.Int("limit", 20, "result limit")
	_ = fs.Parse(args)

	q := "snapshots"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}

	path := strings.TrimSpace(*dbPath)
	if path == "" {
		if strings.TrimSpace(*levelID) == "" {
			fmt.Fprintln(os.Stderr, "missing -level or -db")
			os.Exit(2)
		}
		path = filepath.Join(*dataDir, "rounds", *levelID, "index", "round.sqlite")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer db.Close()

	rows, err := runQuery(db, q, *limit)
	if err != nil {
		fmt.Fprintln(os.Stderr, "query:", err)
		os.Exit(1)
	}
	enc := json.NewEncoder(os.Stdout)
	for _, r := range rows {
		_ = enc.Encode(r)
	}
}

var queries = map[string]string{
	"snapshots": `SELECT tick,path,seed,level_id,active_players,tokens,tuning_digest FROM snapshots ORDER BY tick DESC LIMIT ?`,
	"rounds":    `SELECT tick,kind,players,seed,level_id,recorded_at FROM rounds ORDER BY tick DESC LIMIT ?`,
	"catches":   `SELECT tick,caught,catcher,by_drop FROM catches ORDER BY tick DESC LIMIT ?`,
	"effects":   `SELECT tick,collector,effect,target,duration FROM effects ORDER BY tick DESC LIMIT ?`,
	// Slots ranked by how often they caught someone.
	"leaders": `SELECT catcher AS slot, COUNT(*) AS catches, SUM(by_drop) AS by_drop FROM catches GROUP BY catcher ORDER BY catches DESC, slot LIMIT ?`,
}

// runQuery runs a named query and returns each row as a column->value map.
func runQuery(db *sql.DB, name string, limit int) ([]map[string]any, error) {
	stmt, ok := queries[name]
	if !ok {
		return nil, fmt.Errorf("unknown query %q (snapshots|rounds|catches|effects|leaders)", name)
	}
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.Query(stmt, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out []map[string]any
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		m := make(map[string]any, len(cols))
		for i, c := range cols {
			if b, ok := vals[i].([]byte); ok {
				m[c] = string(b)
				continue
			}
			m[c] = vals[i]
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
