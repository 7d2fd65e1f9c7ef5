// Package journal keeps a local SQLite record of the transactions this
// client submitted and of the games it saw finish. The ledger remains the
// source of truth; the journal only backs the history view.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

const (
	defaultDBFile        = "pxw.db"
	defaultBackupDirName = "backups"
	maxBusyTimeoutMs     = 5000
	defaultMaxBackups    = 10
)

// Transaction outcome values.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

var errNoBackups = errors.New("no journal backups available")

// TxRecord is one submitted transaction.
type TxRecord struct {
	ID        int64     `json:"id"`
	Digest    string    `json:"digest"`
	Kind      string    `json:"kind"`
	GameID    string    `json:"game_id"`
	Status    string    `json:"status"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// GameRecord is the final tally of a finished game.
type GameRecord struct {
	GameID     string    `json:"game_id"`
	GameNumber uint64    `json:"game_number"`
	Red        uint64    `json:"red"`
	Blue       uint64    `json:"blue"`
	PrizePool  uint64    `json:"prize_pool"`
	EndedAt    time.Time `json:"ended_at"`
}

// Journal is the SQLite-backed history store.
type Journal struct {
	mu        sync.RWMutex
	db        *sql.DB
	file      string
	backupDir string
	updates   chan struct{}
}

type backupInfo struct {
	path      string
	timestamp int64
}

// Open opens or creates the journal at filePath. A database that cannot be
// opened is replaced by the newest backup, or by an empty file.
func Open(filePath string) (*Journal, error) {
	if filePath == "" {
		filePath = defaultDBFile
	}

	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return nil, fmt.Errorf("resolve db path: %w", err)
	}

	j := &Journal{
		file:      absPath,
		backupDir: filepath.Join(filepath.Dir(absPath), defaultBackupDirName),
		updates:   make(chan struct{}, 1),
	}

	if err := j.tryOpenOrRecover(); err != nil {
		return nil, err
	}

	if err := j.ensureSchema(); err != nil {
		_ = j.closeDB()
		return nil, err
	}

	return j, nil
}

// Updates returns a channel that receives a value whenever the journal changes.
func (j *Journal) Updates() <-chan struct{} {
	return j.updates
}

func (j *Journal) notify() {
	select {
	case j.updates <- struct{}{}:
	default:
	}
}

// Close releases the underlying database connection.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.closeDB()
}

func (j *Journal) tryOpenOrRecover() error {
	if err := j.openDB(); err != nil {
		if recErr := j.recoverDatabase(err); recErr != nil {
			return recErr
		}
	}
	return nil
}

func (j *Journal) openDB() error {
	if err := os.MkdirAll(filepath.Dir(j.file), 0o755); err != nil {
		return fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s", filepath.Clean(j.file)))
	if err != nil {
		return fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return fmt.Errorf("ping sqlite: %w", err)
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d", maxBusyTimeoutMs)); err != nil {
		db.Close()
		return fmt.Errorf("set busy timeout: %w", err)
	}

	// A file that is not a database fails here rather than at Ping.
	var n int
	if err := db.QueryRow("SELECT count(*) FROM sqlite_master").Scan(&n); err != nil {
		db.Close()
		return fmt.Errorf("read schema: %w", err)
	}

	j.db = db
	return nil
}

func (j *Journal) recoverDatabase(openErr error) error {
	if err := j.restoreLatestBackup(); err != nil {
		if errors.Is(err, errNoBackups) {
			if cleanErr := j.resetDatabaseFiles(); cleanErr != nil {
				return fmt.Errorf("reset database after %v: %w", openErr, cleanErr)
			}
			if err := j.openDB(); err != nil {
				return fmt.Errorf("create fresh database after %v: %w", openErr, err)
			}
			return nil
		}
		return fmt.Errorf("restore database after %v: %w", openErr, err)
	}
	return nil
}

func (j *Journal) closeDB() error {
	if j.db == nil {
		return nil
	}
	err := j.db.Close()
	j.db = nil
	return err
}

func (j *Journal) resetDatabaseFiles() error {
	_ = j.closeDB()

	var firstErr error
	for _, path := range []string{j.file, j.file + "-wal", j.file + "-shm"} {
		if err := os.Remove(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			if firstErr == nil {
				firstErr = fmt.Errorf("remove %s: %w", filepath.Base(path), err)
			}
		}
	}
	return firstErr
}

func (j *Journal) restoreLatestBackup() error {
	base := filepath.Base(j.file)
	ext := filepath.Ext(base)
	backups, err := listBackups(j.backupDir, strings.TrimSuffix(base, ext), ext)
	if err != nil {
		return err
	}
	if len(backups) == 0 {
		return errNoBackups
	}

	latest := backups[len(backups)-1]
	if err := j.resetDatabaseFiles(); err != nil {
		return err
	}
	if err := copyFile(latest.path, j.file); err != nil {
		return fmt.Errorf("copy backup %s: %w", filepath.Base(latest.path), err)
	}
	return j.openDB()
}

func (j *Journal) ensureSchema() error {
	_, err := j.db.Exec(`CREATE TABLE IF NOT EXISTS transactions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		digest TEXT,
		kind TEXT NOT NULL,
		game_id TEXT,
		status TEXT NOT NULL,
		message TEXT,
		created_at TEXT NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("create transactions table: %w", err)
	}

	_, err = j.db.Exec(`CREATE TABLE IF NOT EXISTS games (
		game_id TEXT PRIMARY KEY,
		game_number INTEGER,
		red INTEGER,
		blue INTEGER,
		prize_pool INTEGER,
		ended_at TEXT NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("create games table: %w", err)
	}

	var mode string
	if err := j.db.QueryRow("PRAGMA journal_mode=WAL").Scan(&mode); err != nil {
		return fmt.Errorf("enable WAL: %w", err)
	}

	return nil
}

// RecordTx appends a transaction record. A zero CreatedAt is set to now.
func (j *Journal) RecordTx(ctx context.Context, rec TxRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	_, err := j.db.ExecContext(ctx, `INSERT INTO transactions (digest, kind, game_id, status, message, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		rec.Digest, rec.Kind, rec.GameID, rec.Status, rec.Message, formatTime(rec.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	j.notify()
	return nil
}

// RecentTx returns the latest n transactions, newest first.
func (j *Journal) RecentTx(ctx context.Context, n int) ([]TxRecord, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	rows, err := j.db.QueryContext(ctx, `SELECT id, digest, kind, game_id, status, message, created_at
		FROM transactions ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var out []TxRecord
	for rows.Next() {
		var (
			rec                           TxRecord
			digest, gameID, message, when sql.NullString
		)
		if err := rows.Scan(&rec.ID, &digest, &rec.Kind, &gameID, &rec.Status, &message, &when); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		rec.Digest = digest.String
		rec.GameID = gameID.String
		rec.Message = message.String
		rec.CreatedAt = parseTime(when.String)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// RecordGameEnd stores the final tally of a game. Recording the same game
// again overwrites the earlier tally.
func (j *Journal) RecordGameEnd(ctx context.Context, rec GameRecord) error {
	if rec.EndedAt.IsZero() {
		rec.EndedAt = time.Now()
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	_, err := j.db.ExecContext(ctx, `INSERT INTO games (game_id, game_number, red, blue, prize_pool, ended_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(game_id) DO UPDATE SET
			game_number = excluded.game_number,
			red = excluded.red,
			blue = excluded.blue,
			prize_pool = excluded.prize_pool,
			ended_at = excluded.ended_at`,
		rec.GameID, int64(rec.GameNumber), int64(rec.Red), int64(rec.Blue), int64(rec.PrizePool), formatTime(rec.EndedAt))
	if err != nil {
		return fmt.Errorf("record game: %w", err)
	}
	j.notify()
	return nil
}

// Games returns the latest n finished games, newest first.
func (j *Journal) Games(ctx context.Context, n int) ([]GameRecord, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	rows, err := j.db.QueryContext(ctx, `SELECT game_id, game_number, red, blue, prize_pool, ended_at
		FROM games ORDER BY ended_at DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("query games: %w", err)
	}
	defer rows.Close()

	var out []GameRecord
	for rows.Next() {
		var (
			rec                    GameRecord
			number, red, blue, pool sql.NullInt64
			when                   string
		)
		if err := rows.Scan(&rec.GameID, &number, &red, &blue, &pool, &when); err != nil {
			return nil, fmt.Errorf("scan game: %w", err)
		}
		rec.GameNumber = uint64(number.Int64)
		rec.Red = uint64(red.Int64)
		rec.Blue = uint64(blue.Int64)
		rec.PrizePool = uint64(pool.Int64)
		rec.EndedAt = parseTime(when)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// BackupCurrent writes a consistent copy of the journal to a timestamped
// file and prunes old backups beyond maxBackups.
func (j *Journal) BackupCurrent(maxBackups int) (string, error) {
	if maxBackups <= 0 {
		maxBackups = defaultMaxBackups
	}
	if err := os.MkdirAll(j.backupDir, 0o755); err != nil {
		return "", fmt.Errorf("ensure backup directory: %w", err)
	}

	base := filepath.Base(j.file)
	ext := filepath.Ext(base)
	prefix := strings.TrimSuffix(base, ext)

	timestamp := time.Now().Unix()
	var backupPath string
	for {
		backupPath = filepath.Join(j.backupDir, fmt.Sprintf("%s-%d%s", prefix, timestamp, ext))
		if _, err := os.Stat(backupPath); errors.Is(err, os.ErrNotExist) {
			break
		}
		timestamp++
	}

	j.mu.Lock()
	escaped := strings.ReplaceAll(backupPath, "'", "''")
	_, err := j.db.Exec(fmt.Sprintf("VACUUM INTO '%s'", escaped))
	j.mu.Unlock()
	if err != nil {
		os.Remove(backupPath)
		return "", fmt.Errorf("vacuum into backup: %w", err)
	}

	pruneBackups(j.backupDir, prefix, ext, maxBackups)
	return backupPath, nil
}

func listBackups(dir, prefix, ext string) ([]backupInfo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read backup directory: %w", err)
	}

	var backups []backupInfo
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()
		if !strings.HasPrefix(name, prefix+"-") || (ext != "" && !strings.HasSuffix(name, ext)) {
			continue
		}

		tsPart := strings.TrimPrefix(strings.TrimSuffix(name, ext), prefix+"-")
		ts, parseErr := strconv.ParseInt(tsPart, 10, 64)
		if parseErr != nil {
			info, statErr := entry.Info()
			if statErr != nil {
				continue
			}
			ts = info.ModTime().Unix()
		}

		backups = append(backups, backupInfo{path: filepath.Join(dir, name), timestamp: ts})
	}

	sort.Slice(backups, func(a, b int) bool {
		if backups[a].timestamp == backups[b].timestamp {
			return backups[a].path < backups[b].path
		}
		return backups[a].timestamp < backups[b].timestamp
	})
	return backups, nil
}

func pruneBackups(dir, prefix, ext string, maxBackups int) {
	backups, err := listBackups(dir, prefix, ext)
	if err != nil || len(backups) <= maxBackups {
		return
	}
	for i := 0; i < len(backups)-maxBackups; i++ {
		_ = os.Remove(backups[i].path)
	}
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(value string) time.Time {
	if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return ts
	}
	return time.Time{}
}
