// Copyright © 2023-2024 Wei Shen <shenwei356@gmail.com>
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

// Package store keeps collections, genes in splits, and per-locus taxonomy
// of a project in a badger key/value database. Every table is a key prefix.
package store

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/pkg/errors"
)

// Table is the one-byte key prefix of a table.
type Table byte

const (
	TableMeta Table = iota + 1
	TableCollectionsInfo
	TableCollectionsBins
	TableCollectionsSplits
	TableGenesInSplits
	TableSCGTaxonomy
)

var tableNames = map[Table]string{
	TableMeta:              "self",
	TableCollectionsInfo:   "collections_info",
	TableCollectionsBins:   "collections_bins_info",
	TableCollectionsSplits: "collections_splits",
	TableGenesInSplits:     "genes_in_splits",
	TableSCGTaxonomy:       "scg_taxonomy",
}

func (t Table) String() string {
	if name, ok := tableNames[t]; ok {
		return name
	}
	return fmt.Sprintf("table(%d)", byte(t))
}

// separator of key parts
const sep byte = 0

var (
	// ErrNotFound means the key does not exist.
	ErrNotFound = errors.New("store: key not found")
	// ErrReadOnly means writing to a read-only store.
	ErrReadOnly = errors.New("store: read-only")
	// ErrNotWritable means the store stays locked by another process.
	ErrNotWritable = errors.New("store: not writable")
)

// Options contains options for opening a store.
type Options struct {
	ReadOnly bool

	// waiting for the lock held by another writer
	LockTimeout   time.Duration
	RetryInterval time.Duration
}

// DefaultOptions returns options for a writable store.
func DefaultOptions() Options {
	return Options{
		LockTimeout:   30 * time.Second,
		RetryInterval: 200 * time.Millisecond,
	}
}

// Store is a project database.
type Store struct {
	db       *badger.DB
	path     string
	readOnly bool
}

// Open opens or creates a store.
// A read-only store must exist.
// Opening a writable store locked by another process is retried with
// backoff until opt.LockTimeout, then ErrNotWritable is returned.
func Open(path string, opt Options) (*Store, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil
	opts.ReadOnly = opt.ReadOnly

	interval := opt.RetryInterval
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	deadline := time.Now().Add(opt.LockTimeout)

	var db *badger.DB
	var err error
	for {
		db, err = badger.Open(opts)
		if err == nil {
			break
		}
		if !isLockError(err) {
			return nil, errors.Wrapf(err, "fail to open store %s", path)
		}
		if opt.ReadOnly || !time.Now().Add(interval).Before(deadline) {
			return nil, errors.Wrapf(ErrNotWritable, "%s: %s", path, err)
		}
		time.Sleep(interval)
		if interval < 5*time.Second {
			interval *= 2
		}
	}

	return &Store{db: db, path: path, readOnly: opt.ReadOnly}, nil
}

func isLockError(err error) bool {
	return strings.Contains(err.Error(), "directory lock") ||
		strings.Contains(err.Error(), "resource temporarily unavailable")
}

// Path returns the directory of the store.
func (s *Store) Path() string { return s.path }

// ReadOnly tells if the store is read-only.
func (s *Store) ReadOnly() bool { return s.readOnly }

// Close closes the store.
func (s *Store) Close() error {
	return s.db.Close()
}

func prefixKey(table Table, parts ...string) []byte {
	n := 1
	for _, p := range parts {
		n += len(p) + 1
	}
	key := make([]byte, 0, n)
	key = append(key, byte(table))
	for i, p := range parts {
		if i > 0 {
			key = append(key, sep)
		}
		key = append(key, p...)
	}
	return key
}

// prefix of keys under the given parts, ending with a separator.
func prefixOf(table Table, parts ...string) []byte {
	if len(parts) == 0 {
		return []byte{byte(table)}
	}
	return append(prefixKey(table, parts...), sep)
}

// splitKey returns parts of a key with the table prefix removed.
func splitKey(key []byte) []string {
	if len(key) < 1 {
		return nil
	}
	items := bytes.Split(key[1:], []byte{sep})
	parts := make([]string, len(items))
	for i, item := range items {
		parts[i] = string(item)
	}
	return parts
}

// Get returns the value of a key.
func (s *Store) Get(table Table, parts ...string) ([]byte, error) {
	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(prefixKey(table, parts...))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return ErrNotFound
			}
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	return value, err
}

// Set stores one key/value pair in its own transaction.
func (s *Store) Set(table Table, value []byte, parts ...string) error {
	if s.readOnly {
		return ErrReadOnly
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(prefixKey(table, parts...), value)
	})
}

// Iterate calls fn for every key under the prefix made of parts,
// in key order. Key parts passed to fn exclude the prefix parts.
func (s *Store) Iterate(table Table, fn func(parts []string, value []byte) error, parts ...string) error {
	prefix := prefixOf(table, parts...)
	skip := len(parts)
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		var value []byte
		var err error
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			value, err = item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if err = fn(splitKey(item.Key())[skip:], value); err != nil {
				return err
			}
		}
		return nil
	})
}

// DeletePrefix deletes all keys under the prefix made of parts.
func (s *Store) DeletePrefix(table Table, bufferSize int, parts ...string) (int, error) {
	if s.readOnly {
		return 0, ErrReadOnly
	}
	prefix := prefixOf(table, parts...)

	keys := make([][]byte, 0, 1024)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	w, err := s.NewBatchWriter(bufferSize)
	if err != nil {
		return 0, err
	}
	for _, key := range keys {
		if err = w.deleteKey(key); err != nil {
			w.Discard()
			return 0, err
		}
	}
	return len(keys), w.Close()
}

// ------------------------------------------------------------------------

// BatchWriter buffers writes and commits every bufferSize of them
// as one transaction.
type BatchWriter struct {
	s    *Store
	size int
	txn  *badger.Txn

	n       int // writes in current transaction
	total   int
	commits int
}

// NewBatchWriter creates a BatchWriter.
func (s *Store) NewBatchWriter(bufferSize int) (*BatchWriter, error) {
	if s.readOnly {
		return nil, ErrReadOnly
	}
	if bufferSize < 1 {
		bufferSize = 1
	}
	return &BatchWriter{s: s, size: bufferSize, txn: s.db.NewTransaction(true)}, nil
}

// Set buffers a key/value pair.
func (w *BatchWriter) Set(table Table, value []byte, parts ...string) error {
	return w.write(prefixKey(table, parts...), value, false)
}

func (w *BatchWriter) deleteKey(key []byte) error {
	return w.write(key, nil, true)
}

func (w *BatchWriter) write(key, value []byte, del bool) error {
	if w.txn == nil {
		w.txn = w.s.db.NewTransaction(true)
	}

	op := func() error {
		if del {
			return w.txn.Delete(key)
		}
		return w.txn.Set(key, value)
	}

	err := op()
	if err == badger.ErrTxnTooBig {
		if err = w.Flush(); err != nil {
			return err
		}
		w.txn = w.s.db.NewTransaction(true)
		err = op()
	}
	if err != nil {
		return err
	}

	w.n++
	w.total++
	if w.n >= w.size {
		return w.Flush()
	}
	return nil
}

// Flush commits buffered writes.
func (w *BatchWriter) Flush() error {
	if w.txn == nil {
		return nil
	}
	if w.n == 0 {
		w.txn.Discard()
		w.txn = nil
		return nil
	}
	err := w.txn.Commit()
	w.txn = nil
	w.n = 0
	if err != nil {
		return err
	}
	w.commits++
	return nil
}

// Discard drops buffered writes.
func (w *BatchWriter) Discard() {
	if w.txn != nil {
		w.txn.Discard()
		w.txn = nil
	}
	w.n = 0
}

// Close flushes remaining writes.
func (w *BatchWriter) Close() error {
	return w.Flush()
}

// Total returns the number of writes.
func (w *BatchWriter) Total() int { return w.total }

// Commits returns the number of committed transactions.
func (w *BatchWriter) Commits() int { return w.commits }
