package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/hirosystems/clarinet-sub000/internal/value"
)

// Block is the metadata of one committed block.
type Block struct {
	Height       uint64
	Hash         string
	ParentHash   string
	BurnHeight   uint64
	TenureHeight uint64
	Timestamp    uint64
	Epoch        string
	TxCount      int
}

// Write is one key change produced by a block. Deleted writes are
// recorded as tombstones so that reads at later heights miss the key.
type Write struct {
	Key     string
	Value   []byte
	Deleted bool
}

// TxRecord is a transaction receipt stored with its block. Record is
// canonical JSON built by the caller.
type TxRecord struct {
	Index  int
	ID     string
	Record []byte
}

// KV is a live key and its value.
type KV struct {
	Key   string
	Value []byte
}

// CommitBlock appends a block at tip+1 with its writes and receipts in a
// single transaction. The genesis block must have height 0.
func (s *Store) CommitBlock(ctx context.Context, b Block, writes []Write, txs []TxRecord) error {
	if int64(b.Height) != s.tip+1 {
		return fmt.Errorf("commit block %d on tip %d: %w", b.Height, s.tip, ErrInvalidHeight)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("commit block: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	_, err = tx.ExecContext(ctx, `
		INSERT INTO blocks
		(height, hash, parent_hash, burn_height, tenure_height, timestamp, epoch, tx_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		int64(b.Height),
		b.Hash,
		b.ParentHash,
		int64(b.BurnHeight),
		int64(b.TenureHeight),
		int64(b.Timestamp),
		b.Epoch,
		len(txs),
	)
	if err != nil {
		return fmt.Errorf("commit block: insert block: %w", err)
	}

	for _, w := range writes {
		var v any
		if !w.Deleted {
			v = nonNil(w.Value)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO kv_history (key, height, value) VALUES (?, ?, ?)`,
			[]byte(w.Key), int64(b.Height), v,
		); err != nil {
			return fmt.Errorf("commit block: write %q: %w", w.Key, err)
		}
	}

	for i, r := range txs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO block_txs (height, idx, tx_id, record) VALUES (?, ?, ?, ?)`,
			int64(b.Height), i, r.ID, string(r.Record),
		); err != nil {
			return fmt.Errorf("commit block: receipt %s: %w", r.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit block: %w", err)
	}

	s.tip = int64(b.Height)
	for _, w := range writes {
		if w.Deleted {
			s.cache.Add(w.Key, cacheEntry{})
		} else {
			s.cache.Add(w.Key, cacheEntry{value: cloneBytes(w.Value), ok: true})
		}
	}
	return nil
}

// Get reads a key at the tip.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if s.tip < 0 {
		return nil, false, nil
	}
	if cached, hit := s.cache.Get(key); hit {
		e := cached.(cacheEntry)
		return cloneBytes(e.value), e.ok, nil
	}
	v, ok, err := s.GetAt(ctx, key, uint64(s.tip))
	if err != nil {
		return nil, false, err
	}
	s.cache.Add(key, cacheEntry{value: cloneBytes(v), ok: ok})
	return v, ok, nil
}

// GetAt reads a key as it was after the block at height was committed.
func (s *Store) GetAt(ctx context.Context, key string, height uint64) ([]byte, bool, error) {
	var v sql.Null[[]byte]
	err := s.db.QueryRowContext(ctx, `
		SELECT value FROM kv_history
		WHERE key = ? AND height <= ?
		ORDER BY height DESC
		LIMIT 1
	`, []byte(key), int64(height)).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %q at %d: %w", key, height, err)
	}
	if !v.Valid {
		return nil, false, nil
	}
	return v.V, true, nil
}

// ReaderAt returns a read-only view of the state at height.
func (s *Store) ReaderAt(height uint64) Reader {
	return historicalReader{s: s, height: height}
}

type historicalReader struct {
	s      *Store
	height uint64
}

func (r historicalReader) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return r.s.GetAt(ctx, key, r.height)
}

// RollbackTo discards every block above height. The block at height
// becomes the tip; rolling back to the current tip is a no-op.
func (s *Store) RollbackTo(ctx context.Context, height uint64) error {
	if s.tip < 0 || int64(height) > s.tip {
		return fmt.Errorf("rollback to %d on tip %d: %w", height, s.tip, ErrInvalidHeight)
	}
	if int64(height) == s.tip {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("rollback: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	for _, stmt := range []string{
		`DELETE FROM kv_history WHERE height > ?`,
		`DELETE FROM block_txs WHERE height > ?`,
		`DELETE FROM blocks WHERE height > ?`,
	} {
		if _, err := tx.ExecContext(ctx, stmt, int64(height)); err != nil {
			return fmt.Errorf("rollback: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("rollback: %w", err)
	}

	s.tip = int64(height)
	s.cache.Purge()
	return nil
}

// Block returns the metadata of the block at height.
func (s *Store) Block(ctx context.Context, height uint64) (Block, error) {
	var (
		b                   Block
		h, burn, tenure, ts int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT height, hash, parent_hash, burn_height, tenure_height, timestamp, epoch, tx_count
		FROM blocks WHERE height = ?
	`, int64(height)).Scan(&h, &b.Hash, &b.ParentHash, &burn, &tenure, &ts, &b.Epoch, &b.TxCount)
	if errors.Is(err, sql.ErrNoRows) {
		return Block{}, fmt.Errorf("block %d: %w", height, ErrBlockNotFound)
	}
	if err != nil {
		return Block{}, fmt.Errorf("block %d: %w", height, err)
	}
	b.Height, b.BurnHeight, b.TenureHeight, b.Timestamp = uint64(h), uint64(burn), uint64(tenure), uint64(ts)
	return b, nil
}

// BlockByHash returns the metadata of the block with the given hash.
func (s *Store) BlockByHash(ctx context.Context, hash string) (Block, error) {
	var h int64
	err := s.db.QueryRowContext(ctx, `SELECT height FROM blocks WHERE hash = ?`, hash).Scan(&h)
	if errors.Is(err, sql.ErrNoRows) {
		return Block{}, fmt.Errorf("block %s: %w", hash, ErrBlockNotFound)
	}
	if err != nil {
		return Block{}, fmt.Errorf("block %s: %w", hash, err)
	}
	return s.Block(ctx, uint64(h))
}

// Transactions returns the receipts of the block at height in order.
func (s *Store) Transactions(ctx context.Context, height uint64) ([]TxRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT idx, tx_id, record FROM block_txs
		WHERE height = ?
		ORDER BY idx ASC
	`, int64(height))
	if err != nil {
		return nil, fmt.Errorf("transactions at %d: %w", height, err)
	}
	defer rows.Close()

	var out []TxRecord
	for rows.Next() {
		var (
			r      TxRecord
			record string
		)
		if err := rows.Scan(&r.Index, &r.ID, &record); err != nil {
			return nil, fmt.Errorf("transactions at %d: scan: %w", height, err)
		}
		r.Record = []byte(record)
		out = append(out, r)
	}
	return out, rows.Err()
}

// FindTransaction locates a receipt by transaction id.
func (s *Store) FindTransaction(ctx context.Context, id string) (uint64, TxRecord, error) {
	var (
		h      int64
		r      TxRecord
		record string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT height, idx, tx_id, record FROM block_txs WHERE tx_id = ?
	`, id).Scan(&h, &r.Index, &r.ID, &record)
	if err != nil {
		return 0, TxRecord{}, fmt.Errorf("find transaction %s: %w", id, err)
	}
	r.Record = []byte(record)
	return uint64(h), r, nil
}

// ScanPrefix returns the live keys starting with prefix at the tip,
// sorted by key.
func (s *Store) ScanPrefix(ctx context.Context, prefix string) ([]KV, error) {
	if s.tip < 0 {
		return nil, nil
	}
	return s.ScanPrefixAt(ctx, prefix, uint64(s.tip))
}

// ScanPrefixAt returns the live keys starting with prefix at height.
func (s *Store) ScanPrefixAt(ctx context.Context, prefix string, height uint64) ([]KV, error) {
	rng := util.BytesPrefix([]byte(prefix))
	var limit any
	if rng.Limit != nil {
		limit = rng.Limit
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT h.key, h.value FROM kv_history h
		WHERE h.key >= ? AND (? IS NULL OR h.key < ?)
		  AND h.height = (
			SELECT MAX(x.height) FROM kv_history x
			WHERE x.key = h.key AND x.height <= ?
		  )
		  AND h.value IS NOT NULL
		ORDER BY h.key ASC
	`, nonNil(rng.Start), limit, limit, int64(height))
	if err != nil {
		return nil, fmt.Errorf("scan %q: %w", prefix, err)
	}
	defer rows.Close()

	var out []KV
	for rows.Next() {
		var key, val []byte
		if err := rows.Scan(&key, &val); err != nil {
			return nil, fmt.Errorf("scan %q: %w", prefix, err)
		}
		out = append(out, KV{Key: string(key), Value: val})
	}
	return out, rows.Err()
}

// Digest hashes the full live state at the tip. Two stores that applied
// the same blocks have the same digest.
func (s *Store) Digest(ctx context.Context) (string, error) {
	kvs, err := s.ScanPrefix(ctx, "")
	if err != nil {
		return "", fmt.Errorf("digest: %w", err)
	}
	var buf []byte
	for _, kv := range kvs {
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(kv.Key)))
		buf = append(buf, kv.Key...)
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(kv.Value)))
		buf = append(buf, kv.Value...)
	}
	return value.HashWithDomain(value.DomainState, buf), nil
}

// nonNil keeps empty values distinct from NULL.
func nonNil(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}
