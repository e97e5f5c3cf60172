package main

import (
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	_ "modernc.org/sqlite"
)

func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dbPath := fs.String("db", "", "sqlite tick index path (the server's -index-db)")
	tick := fs.Uint64("tick", 0, "tick number (tick query; defaults to latest)")
	limit := fs.Int("limit", 20, "result limit")
	center := fs.String("center", "", "observer chunk filter: cx,cz (ticks query)")
	_ = fs.Parse(args)

	q := "runs"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}

	if strings.TrimSpace(*dbPath) == "" {
		fmt.Fprintln(os.Stderr, "missing -db")
		os.Exit(2)
	}

	db, err := sql.Open("sqlite", *dbPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer db.Close()

	if *limit <= 0 {
		*limit = 20
	}

	switch q {
	case "runs":
		rows, err := db.Query(`SELECT id,started_at,seed,mesh_mode,tick_rate_hz,render_distance,workers FROM runs ORDER BY id DESC LIMIT ?`, *limit)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				ID             int64  `json:"id"`
				StartedAt      string `json:"started_at"`
				Seed           int64  `json:"seed"`
				MeshMode       string `json:"mesh_mode"`
				TickRateHz     int    `json:"tick_rate_hz"`
				RenderDistance int    `json:"render_distance"`
				Workers        int    `json:"workers"`
			}
			if err := rows.Scan(&r.ID, &r.StartedAt, &r.Seed, &r.MeshMode, &r.TickRateHz, &r.RenderDistance, &r.Workers); err != nil {
				fmt.Fprintln(os.Stderr, "scan:", err)
				os.Exit(1)
			}
			printJSON(r)
		}
		if err := rows.Err(); err != nil {
			fmt.Fprintln(os.Stderr, "rows:", err)
			os.Exit(1)
		}

	case "ticks":
		query := `SELECT tick,digest,center_x,center_y,center_z,loaded,queued,spawned,despawned,gen_ns,mesh_ns FROM ticks ORDER BY tick DESC LIMIT ?`
		qargs := []any{*limit}
		if strings.TrimSpace(*center) != "" {
			cx, cz, err := parseCenter(*center)
			if err != nil {
				fmt.Fprintln(os.Stderr, "bad -center:", err)
				os.Exit(2)
			}
			query = `SELECT tick,digest,center_x,center_y,center_z,loaded,queued,spawned,despawned,gen_ns,mesh_ns FROM ticks WHERE center_x=? AND center_z=? ORDER BY tick DESC LIMIT ?`
			qargs = []any{cx, cz, *limit}
		}
		rows, err := db.Query(query, qargs...)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				Tick      int64  `json:"tick"`
				Digest    string `json:"digest"`
				CenterX   int    `json:"center_x"`
				CenterY   int    `json:"center_y"`
				CenterZ   int    `json:"center_z"`
				Loaded    int    `json:"loaded"`
				Queued    int    `json:"queued"`
				Spawned   int    `json:"spawned"`
				Despawned int    `json:"despawned"`
				GenNs     int64  `json:"gen_ns"`
				MeshNs    int64  `json:"mesh_ns"`
			}
			if err := rows.Scan(&r.Tick, &r.Digest, &r.CenterX, &r.CenterY, &r.CenterZ, &r.Loaded, &r.Queued, &r.Spawned, &r.Despawned, &r.GenNs, &r.MeshNs); err != nil {
				fmt.Fprintln(os.Stderr, "scan:", err)
				os.Exit(1)
			}
			printJSON(r)
		}
		if err := rows.Err(); err != nil {
			fmt.Fprintln(os.Stderr, "rows:", err)
			os.Exit(1)
		}

	case "tick":
		t := *tick
		if t == 0 {
			lt, err := latestTick(db)
			if err != nil {
				fmt.Fprintln(os.Stderr, "latest tick:", err)
				os.Exit(1)
			}
			t = lt
		}
		var raw string
		if err := db.QueryRow(`SELECT raw_json FROM ticks WHERE tick=?`, int64(t)).Scan(&raw); err != nil {
			fmt.Fprintln(os.Stderr, "scan:", err)
			os.Exit(1)
		}
		fmt.Println(raw)

	default:
		fmt.Fprintln(os.Stderr, "unknown query:", q)
		fmt.Fprintln(os.Stderr, "usage: admin db -db PATH [-tick T] [-center CX,CZ] [-limit N] runs|ticks|tick")
		os.Exit(2)
	}
}

func latestTick(db *sql.DB) (uint64, error) {
	if db == nil {
		return 0, fmt.Errorf("nil db")
	}
	var t int64
	if err := db.QueryRow(`SELECT COALESCE(MAX(tick),0) FROM ticks`).Scan(&t); err != nil {
		return 0, err
	}
	if t < 0 {
		return 0, nil
	}
	return uint64(t), nil
}

func parseCenter(s string) (cx, cz int, err error) {
	parts := strings.Split(strings.TrimSpace(s), ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("expected cx,cz")
	}
	cx, err = strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, err
	}
	cz, err = strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, err
	}
	return cx, cz, nil
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
