// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package pebble

import (
	"crypto/rand"
	"fmt"
	"testing"

	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/database/memdb"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

const batchSize = 100_000

func randBytes() []byte {
	b := make([]byte, 32)
	_, err := rand.Read(b)
	if err != nil {
		panic(err)
	}
	return b
}

func newTestDB(t *testing.T) *Database {
	db, err := New(t.TempDir(), NewDefaultConfig(), prometheus.NewRegistry())
	require.NoError(t, err)
	return db
}

func TestGetPutDelete(t *testing.T) {
	require := require.New(t)
	db := newTestDB(t)

	_, err := db.Get([]byte("missing"))
	require.ErrorIs(err, database.ErrNotFound)
	has, err := db.Has([]byte("missing"))
	require.NoError(err)
	require.False(has)

	require.NoError(db.Put([]byte("k"), []byte("v")))
	v, err := db.Get([]byte("k"))
	require.NoError(err)
	require.Equal([]byte("v"), v)
	has, err = db.Has([]byte("k"))
	require.NoError(err)
	require.True(has)

	require.NoError(db.Delete([]byte("k")))
	_, err = db.Get([]byte("k"))
	require.ErrorIs(err, database.ErrNotFound)
	require.NoError(db.Close())
}

func TestIteratorWithPrefix(t *testing.T) {
	require := require.New(t)
	db := newTestDB(t)

	for _, k := range []string{"a1", "b1", "b2", "b3", "c1"} {
		require.NoError(db.Put([]byte(k), []byte("v"+k)))
	}

	it := db.NewIteratorWithPrefix([]byte("b"))
	var keys []string
	for it.Next() {
		keys = append(keys, string(it.Key()))
		require.Equal("v"+string(it.Key()), string(it.Value()))
	}
	require.NoError(it.Error())
	it.Release()
	require.Equal([]string{"b1", "b2", "b3"}, keys)

	it = db.NewIteratorWithStartAndPrefix([]byte("b2"), []byte("b"))
	require.True(it.Next())
	require.Equal([]byte("b2"), it.Key())
	it.Release()

	// Open iterators are released on close
	it = db.NewIterator()
	require.True(it.Next())
	require.NoError(db.Close())
	require.False(it.Next())
	require.ErrorIs(it.Error(), database.ErrClosed)
	it.Release()

	it = db.NewIterator()
	require.False(it.Next())
	require.ErrorIs(it.Error(), database.ErrClosed)
}

func TestPrefixToUpperBound(t *testing.T) {
	require := require.New(t)
	require.Equal([]byte{0x02, 0x75}, prefixToUpperBound([]byte{0x02, 't'}))
	require.Equal([]byte{0x03}, prefixToUpperBound([]byte{0x02, 0xFF}))
	require.Nil(prefixToUpperBound([]byte{0xFF, 0xFF}))
	require.Nil(prefixToUpperBound(nil))
}

func TestBatch(t *testing.T) {
	require := require.New(t)
	db := newTestDB(t)
	require.NoError(db.Put([]byte("old"), []byte("1")))

	batch := db.NewBatch()
	require.NoError(batch.Put([]byte("a"), []byte("1")))
	require.NoError(batch.Put([]byte("b"), []byte("22")))
	require.NoError(batch.Delete([]byte("old")))
	require.Equal(1+1+1+2+3, batch.Size())

	// Nothing is visible before the batch is written.
	_, err := db.Get([]byte("a"))
	require.ErrorIs(err, database.ErrNotFound)

	require.NoError(batch.Write())
	v, err := db.Get([]byte("b"))
	require.NoError(err)
	require.Equal([]byte("22"), v)
	_, err = db.Get([]byte("old"))
	require.ErrorIs(err, database.ErrNotFound)

	mem := memdb.New()
	require.NoError(mem.Put([]byte("old"), []byte("1")))
	require.NoError(batch.Replay(mem))
	v, err = mem.Get([]byte("a"))
	require.NoError(err)
	require.Equal([]byte("1"), v)
	has, err := mem.Has([]byte("old"))
	require.NoError(err)
	require.False(has)

	batch.Reset()
	require.Zero(batch.Size())
	require.NoError(db.Close())
}

func TestReopen(t *testing.T) {
	require := require.New(t)
	dir := t.TempDir()

	db, err := New(dir, NewDefaultConfig(), prometheus.NewRegistry())
	require.NoError(err)
	require.NoError(db.Put([]byte("k"), []byte("v")))
	require.NoError(db.Close())
	require.ErrorIs(db.Close(), database.ErrClosed)
	_, err = db.Get([]byte("k"))
	require.ErrorIs(err, database.ErrClosed)

	db, err = New(dir, NewDefaultConfig(), prometheus.NewRegistry())
	require.NoError(err)
	v, err := db.Get([]byte("k"))
	require.NoError(err)
	require.Equal([]byte("v"), v)
	require.NoError(db.Close())
}

func TestDuplicateRegistration(t *testing.T) {
	r := prometheus.NewRegistry()
	db, err := New(t.TempDir(), NewDefaultConfig(), r)
	require.NoError(t, err)
	defer db.Close()

	_, err = New(t.TempDir(), NewDefaultConfig(), r)
	require.Error(t, err)
}

func BenchmarkBatchInsertion(b *testing.B) {
	for _, sync := range []bool{false, true} {
		b.Run(fmt.Sprintf("sync=%t", sync), func(b *testing.B) {
			b.StopTimer()
			cfg := NewDefaultConfig()
			cfg.Sync = sync
			db, err := New(b.TempDir(), cfg, prometheus.NewRegistry())
			if err != nil {
				b.Fatal(err)
			}

			keys := make([][]byte, batchSize)
			for i := 0; i < batchSize; i++ {
				keys[i] = randBytes()
			}

			b.StartTimer()
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				batch := db.NewBatch()
				for j := 0; j < batchSize; j++ {
					if err := batch.Put(keys[j], randBytes()); err != nil {
						b.Fatal(err)
					}
				}
				if err := batch.Write(); err != nil {
					b.Fatal(err)
				}
			}
			b.StopTimer()

			if err := db.Close(); err != nil {
				b.Fatal(err)
			}
		})
	}
}
