package db

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"path/filepath"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"
	_ "modernc.org/sqlite"

	"ragchat/internal/config"
	"ragchat/internal/helper"
	"ragchat/internal/models"
)

// ChunkRecord is one persisted chunk: content, provenance and embedding keyed by id
type ChunkRecord struct {
	bun.BaseModel `bun:"table:chunks,alias:c"`
	ID            string `bun:"id,pk"`
	Source        string `bun:"source,notnull"`
	Sequence      int    `bun:"sequence,notnull"`
	FileType      string `bun:"file_type,notnull"`
	Content       string `bun:"content,notnull"`
	Embedding     []byte `bun:"embedding,notnull"`
}

// NewRecord pairs a chunk with its embedding
func NewRecord(c models.Chunk, embedding []float32) ChunkRecord {
	return ChunkRecord{
		ID:        c.ID,
		Source:    c.Source,
		Sequence:  c.Sequence,
		FileType:  c.FileType,
		Content:   c.Content,
		Embedding: EncodeEmbedding(embedding),
	}
}

// Chunk returns the record without its embedding
func (r ChunkRecord) Chunk() models.Chunk {
	return models.Chunk{
		ID:       r.ID,
		Content:  r.Content,
		Source:   r.Source,
		Sequence: r.Sequence,
		FileType: r.FileType,
	}
}

func NewDB(sqldb *sql.DB, dialect string, debug bool) *bun.DB {
	var db *bun.DB
	if dialect == "postgres" {
		db = bun.NewDB(sqldb, pgdialect.New())
	} else {
		db = bun.NewDB(sqldb, sqlitedialect.New())
	}
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db
}

// ConnectDB opens the database selected by cfg.Driver
func ConnectDB(cfg *config.DatabaseConfig) (*bun.DB, error) {
	switch cfg.Driver {
	case "postgres":
		sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.DSN)))
		return NewDB(sqldb, "postgres", cfg.Debug), nil
	case "sqlite", "":
		if err := helper.CreateFolder(filepath.Dir(cfg.Path)); err != nil {
			return nil, err
		}
		sqldb, err := sql.Open("sqlite", "file:"+cfg.Path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite database: %w", err)
		}
		// single writer
		sqldb.SetMaxOpenConns(1)
		return NewDB(sqldb, "sqlite", cfg.Debug), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}
}

func InitDB(ctx context.Context, db *bun.DB) error {
	if _, err := db.NewCreateTable().Model((*ChunkRecord)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("failed to create chunks table: %w", err)
	}
	_, err := db.NewCreateIndex().
		Model((*ChunkRecord)(nil)).
		Index("chunks_source_idx").
		Column("source").
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create source index: %w", err)
	}
	return nil
}

func StoreChunks(ctx context.Context, db bun.IDB, records []ChunkRecord) error {
	if len(records) == 0 {
		return nil
	}
	_, err := db.NewInsert().Model(&records).Exec(ctx)
	return err
}

// ListChunks returns every record ordered by source and sequence
func ListChunks(ctx context.Context, db bun.IDB) ([]ChunkRecord, error) {
	var records []ChunkRecord
	err := db.NewSelect().
		Model(&records).
		Order("source ASC", "sequence ASC", "id ASC").
		Scan(ctx)
	return records, err
}

// SourceChunkIDs returns the ids of every chunk of source
func SourceChunkIDs(ctx context.Context, db bun.IDB, source string) ([]string, error) {
	var ids []string
	err := db.NewSelect().
		Model((*ChunkRecord)(nil)).
		Column("id").
		Where("source = ?", source).
		Scan(ctx, &ids)
	return ids, err
}

func DeleteSource(ctx context.Context, db bun.IDB, source string) (int64, error) {
	res, err := db.NewDelete().
		Model((*ChunkRecord)(nil)).
		Where("source = ?", source).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// delete every chunk
func DeleteAll(ctx context.Context, db bun.IDB) (int64, error) {
	res, err := db.NewDelete().
		Model((*ChunkRecord)(nil)).
		Where("1 = 1").
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// EncodeEmbedding packs a vector as little-endian float32 values
func EncodeEmbedding(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

func DecodeEmbedding(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("invalid embedding length %d", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v, nil
}
