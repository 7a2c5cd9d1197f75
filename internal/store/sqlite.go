// Package store persists pipeline runs in SQLite: one row per video, its
// chunks, and their embeddings, joined on chunk_index.
package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-crypt/x/blake2b"
	_ "modernc.org/sqlite"

	"github.com/alnah/go-vidindex/internal/chunk"
	vembed "github.com/alnah/go-vidindex/internal/embed"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Video is the stored state of one source video.
type Video struct {
	ID        string
	Source    string
	Language  string
	Duration  float64
	State     string
	Stage     string
	Message   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Run is everything a completed pipeline run persists.
type Run struct {
	VideoID    string
	Source     string
	Language   string
	Duration   float64
	State      string
	Model      string
	Chunks     []chunk.TextChunk
	Embeddings []vembed.Result
}

// StoredChunk is a chunk with the vector attached by chunk_index, if any.
type StoredChunk struct {
	chunk.TextChunk
	Model  string
	Vector []float32
	Tokens int
}

// VideoID derives a stable id from the absolute path of a source video.
func VideoID(absPath string) string {
	h, _ := blake2b.New(8, nil)
	h.Write([]byte(absPath))
	return hex.EncodeToString(h.Sum(nil))
}

// SQLite is the persistence store.
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLite opens or creates the database at path and applies pending
// migrations.
func OpenSQLite(path string) (*SQLite, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("db path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &SQLite{db: db, now: func() time.Time { return time.Now().UTC() }}
	if err := s.init(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// connPragmas are applied by the driver to every new connection.
var connPragmas = []string{"foreign_keys(1)", "journal_mode(WAL)", "busy_timeout(5000)"}

func dsn(path string) string {
	q := make([]string, len(connPragmas))
	for i, p := range connPragmas {
		q[i] = "_pragma=" + p
	}
	return path + "?" + strings.Join(q, "&")
}

// Close closes the database.
func (s *SQLite) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLite) init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	entries, err := migrationFiles.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	for _, entry := range entries {
		version := migrationVersion(entry.Name())
		if entry.IsDir() || version <= 0 {
			continue
		}
		var exists int
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations WHERE version = ?`, version).Scan(&exists); err != nil {
			return fmt.Errorf("check migration %s: %w", entry.Name(), err)
		}
		if exists > 0 {
			continue
		}
		content, err := migrationFiles.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}
		if _, err := s.db.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("apply migration %s: %w", entry.Name(), err)
		}
		if _, err := s.db.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES (?)`, version); err != nil {
			return fmt.Errorf("record migration %s: %w", entry.Name(), err)
		}
	}
	return nil
}

// migrationVersion extracts the leading integer of a migration file name
// ("001_init.sql" -> 1).
func migrationVersion(name string) int {
	end := strings.IndexFunc(name, func(r rune) bool { return r < '0' || r > '9' })
	if end < 0 {
		end = len(name)
	}
	n, _ := strconv.Atoi(name[:end])
	return n
}

// SetStatus records the state of a video, creating its row if needed.
func (s *SQLite) SetStatus(ctx context.Context, v Video) error {
	now := s.now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO videos (id, source, language, duration, state, stage, message, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			source=excluded.source,
			language=CASE WHEN excluded.language = '' THEN videos.language ELSE excluded.language END,
			duration=CASE WHEN excluded.duration = 0 THEN videos.duration ELSE excluded.duration END,
			state=excluded.state,
			stage=excluded.stage,
			message=excluded.message,
			updated_at=excluded.updated_at`,
		v.ID, v.Source, v.Language, v.Duration, v.State, v.Stage, v.Message, now, now,
	)
	if err != nil {
		return fmt.Errorf("set status of %s: %w", v.ID, err)
	}
	return nil
}

// SaveRun replaces the chunks and embeddings of a video in one transaction.
func (s *SQLite) SaveRun(ctx context.Context, r Run) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := s.now()
	if _, err = tx.ExecContext(ctx,
		`INSERT INTO videos (id, source, language, duration, state, stage, message, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, '', '', ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			source=excluded.source, language=excluded.language, duration=excluded.duration,
			state=excluded.state, stage='', message='', updated_at=excluded.updated_at`,
		r.VideoID, r.Source, r.Language, r.Duration, r.State, now, now,
	); err != nil {
		return fmt.Errorf("save video: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM chunks WHERE video_id = ?`, r.VideoID); err != nil {
		return fmt.Errorf("clear chunks: %w", err)
	}
	// Embeddings cascade from chunks; this covers databases created
	// before foreign keys were enforced.
	if _, err = tx.ExecContext(ctx, `DELETE FROM embeddings WHERE video_id = ?`, r.VideoID); err != nil {
		return fmt.Errorf("clear embeddings: %w", err)
	}

	for _, c := range r.Chunks {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO chunks (video_id, chunk_index, text, start_sec, end_sec, word_count, overlap)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			r.VideoID, c.Index, c.Text, c.Start, c.End, c.WordCount, c.Overlap,
		); err != nil {
			return fmt.Errorf("save chunk %d: %w", c.Index, err)
		}
	}
	for _, e := range r.Embeddings {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO embeddings (video_id, chunk_index, model, dims, vector, tokens)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			r.VideoID, e.ChunkIndex, r.Model, len(e.Vector), vembed.EncodeVector(e.Vector), e.Tokens,
		); err != nil {
			return fmt.Errorf("save embedding for chunk %d: %w", e.ChunkIndex, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Video returns the stored row for id.
func (s *SQLite) Video(ctx context.Context, id string) (Video, error) {
	var v Video
	err := s.db.QueryRowContext(ctx,
		`SELECT id, source, language, duration, state, stage, message, created_at, updated_at
		 FROM videos WHERE id = ?`, id,
	).Scan(&v.ID, &v.Source, &v.Language, &v.Duration, &v.State, &v.Stage, &v.Message, &v.CreatedAt, &v.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Video{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Video{}, err
	}
	return v, nil
}

// LoadChunks returns a video's chunks in index order, each joined with its
// embedding for model. Chunks without one have a nil Vector.
func (s *SQLite) LoadChunks(ctx context.Context, videoID, model string) ([]StoredChunk, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT c.chunk_index, c.text, c.start_sec, c.end_sec, c.word_count, c.overlap,
		        COALESCE(e.model, ''), e.vector, COALESCE(e.tokens, 0)
		 FROM chunks c
		 LEFT JOIN embeddings e
		   ON e.video_id = c.video_id AND e.chunk_index = c.chunk_index AND e.model = ?
		 WHERE c.video_id = ?
		 ORDER BY c.chunk_index ASC`,
		model, videoID,
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []StoredChunk
	for rows.Next() {
		var sc StoredChunk
		var blob []byte
		if err := rows.Scan(&sc.Index, &sc.Text, &sc.Start, &sc.End, &sc.WordCount, &sc.Overlap,
			&sc.Model, &blob, &sc.Tokens); err != nil {
			return nil, err
		}
		if blob != nil {
			if sc.Vector, err = vembed.DecodeVector(blob); err != nil {
				return nil, fmt.Errorf("chunk %d: %w", sc.Index, err)
			}
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}
