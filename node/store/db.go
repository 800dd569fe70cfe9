// Package store persists blocks outside the core. The chain itself
// never reads it; hosts use it to survive restarts and to serve blocks
// to peers.
package store

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
	bolt "go.etcd.io/bbolt"

	"github.com/Nie-Tianyi/rusty-coin/consensus"
)

var (
	bucketBlocks    = []byte("blocks_by_hash")
	bucketIndex     = []byte("block_index_by_hash")
	bucketCanonical = []byte("canonical_by_height")
)

// indexEntry is the per-block metadata row, CBOR-encoded.
type indexEntry struct {
	Height     uint64 `cbor:"1,keyasint"`
	PrevHash   []byte `cbor:"2,keyasint"`
	Difficulty uint32 `cbor:"3,keyasint"`
	TxCount    uint64 `cbor:"4,keyasint"`
}

type DB struct {
	db *bolt.DB
}

func Open(path string) (*DB, error) {
	bdb, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bbolt: %w", err)
	}
	d := &DB{db: bdb}
	if err := d.db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketBlocks, bucketIndex, bucketCanonical} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("create bucket %s: %w", string(b), err)
			}
		}
		return nil
	}); err != nil {
		_ = bdb.Close()
		return nil, err
	}
	return d, nil
}

func (d *DB) Close() error {
	return d.db.Close()
}

func heightKey(height uint64) []byte {
	var k [8]byte
	binary.BigEndian.PutUint64(k[:], height)
	return k[:]
}

// PutBlock stores the wire form of a block and marks it canonical at
// its height, truncating any stale canonical entries above it.
func (d *DB) PutBlock(block *consensus.Block) error {
	wire, err := consensus.EncodeBlock(nil, block)
	if err != nil {
		return err
	}
	entry, err := cbor.Marshal(indexEntry{
		Height:     block.Index,
		PrevHash:   block.PrevHash[:],
		Difficulty: block.Difficulty,
		TxCount:    uint64(len(block.Transactions)),
	})
	if err != nil {
		return err
	}

	return d.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketBlocks).Put(block.Hash[:], wire); err != nil {
			return err
		}
		if err := tx.Bucket(bucketIndex).Put(block.Hash[:], entry); err != nil {
			return err
		}
		canonical := tx.Bucket(bucketCanonical)
		if err := canonical.Put(heightKey(block.Index), block.Hash[:]); err != nil {
			return err
		}
		// A reorg may shorten the canonical chain; drop entries above.
		var stale [][]byte
		cur := canonical.Cursor()
		for k, _ := cur.Seek(heightKey(block.Index + 1)); k != nil; k, _ = cur.Next() {
			stale = append(stale, append([]byte(nil), k...))
		}
		for _, k := range stale {
			if err := canonical.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

// BlockByHash loads and decodes a stored block.
func (d *DB) BlockByHash(hash consensus.HashValue) (consensus.Block, bool, error) {
	var raw []byte
	err := d.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketBlocks).Get(hash[:])
		if v != nil {
			raw = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return consensus.Block{}, false, err
	}
	if raw == nil {
		return consensus.Block{}, false, nil
	}
	block, err := consensus.DecodeBlock(raw)
	if err != nil {
		return consensus.Block{}, false, err
	}
	return block, true, nil
}

// CanonicalHash returns the canonical block hash at a height.
func (d *DB) CanonicalHash(height uint64) (consensus.HashValue, bool, error) {
	var hash consensus.HashValue
	found := false
	err := d.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketCanonical).Get(heightKey(height))
		if len(v) == 32 {
			copy(hash[:], v)
			found = true
		}
		return nil
	})
	return hash, found, err
}

// BlockByHeight resolves the canonical hash at a height and loads it.
func (d *DB) BlockByHeight(height uint64) (consensus.Block, bool, error) {
	hash, ok, err := d.CanonicalHash(height)
	if err != nil || !ok {
		return consensus.Block{}, false, err
	}
	return d.BlockByHash(hash)
}

// TipHeight returns the highest canonical height, if any block exists.
func (d *DB) TipHeight() (uint64, bool, error) {
	var height uint64
	found := false
	err := d.db.View(func(tx *bolt.Tx) error {
		k, _ := tx.Bucket(bucketCanonical).Cursor().Last()
		if len(k) == 8 {
			height = binary.BigEndian.Uint64(k)
			found = true
		}
		return nil
	})
	return height, found, err
}

// SaveChain stores a whole block sequence as the canonical chain.
func (d *DB) SaveChain(blocks []consensus.Block) error {
	for i := range blocks {
		if err := d.PutBlock(&blocks[i]); err != nil {
			return err
		}
	}
	return nil
}

// LoadChain reads the canonical chain, genesis first. An empty store
// yields an empty slice.
func (d *DB) LoadChain() ([]consensus.Block, error) {
	tip, ok, err := d.TipHeight()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	out := make([]consensus.Block, 0, tip+1)
	for h := uint64(0); h <= tip; h++ {
		block, ok, err := d.BlockByHeight(h)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("canonical gap at height %d", h)
		}
		out = append(out, block)
	}
	return out, nil
}
