package store

import (
	"database/sql"
	"encoding/json"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

type DB struct {
	*sql.DB
}

func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	// Create events table
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS events(
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ts REAL,
		level TEXT,
		code TEXT,
		msg TEXT,
		meta TEXT
	)`); err != nil {
		return nil, err
	}

	// Create requests table, one append-only row per terminal request outcome
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS requests(
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ts REAL,
		req_id TEXT,
		source TEXT,
		client_host TEXT,
		user_agent TEXT,
		filename TEXT,
		content_type TEXT,
		size_bytes INTEGER,
		status INTEGER,
		dur_ms REAL,
		payload TEXT,
		error TEXT,
		ok INTEGER
	)`); err != nil {
		return nil, err
	}

	return &DB{db}, nil
}

func (db *DB) Event(level, code, msg string, meta map[string]interface{}) {
	m := ""
	if meta != nil {
		b, _ := json.Marshal(meta)
		m = string(b)
	}
	_, _ = db.Exec(`INSERT INTO events(ts,level,code,msg,meta) VALUES(?,?,?,?,?)`,
		float64(time.Now().UnixNano())/1e9, level, code, msg, m)
}

func (db *DB) Req(start time.Time, reqID, source, clientHost, userAgent, filename, contentType string,
	sizeBytes int64, status int, dur time.Duration, payload, errStr string, ok bool) error {
	_, err := db.Exec(`INSERT INTO requests(
		ts, req_id, source, client_host, user_agent, filename, content_type, size_bytes, status, dur_ms, payload, error, ok)
		VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		float64(start.UnixNano())/1e9, reqID, source, clientHost, userAgent, filename, contentType,
		sizeBytes, status, float64(dur.Milliseconds()), payload, errStr, boolToInt(ok))
	return err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
