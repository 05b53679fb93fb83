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

package store

import (
	"math"

	"github.com/pkg/errors"
	"github.com/shenwei356/scgtax/scgtax/cmd/consensus"
	"github.com/shenwei356/scgtax/scgtax/cmd/taxon"
)

// RecordVersion is the version of encoded per-locus taxonomy.
const RecordVersion uint8 = 1

// ErrInvalidRecord means a value could not be decoded.
var ErrInvalidRecord = errors.New("store: invalid record")

// ErrRecordVersionMismatch means the record is written by another version.
var ErrRecordVersionMismatch = errors.New("store: record version mismatch")

// EncodeLocusConsensus serializes a locus call.
//
// Layout: 1 byte version, 8 bytes percent identity, 8 bytes bit score,
// then locus id, gene, representative accession and seven rank names,
// each as 2 bytes length followed by the bytes.
func EncodeLocusConsensus(c consensus.LocusConsensus) []byte {
	n := 17 + 2*(3+taxon.NumRanks) + len(c.LocusID) + len(c.Gene) + len(c.Representative)
	for _, name := range c.Ranks {
		n += len(name)
	}

	buf := make([]byte, 17, n)
	buf[0] = RecordVersion
	be.PutUint64(buf[1:9], math.Float64bits(c.PercentIdentity))
	be.PutUint64(buf[9:17], math.Float64bits(c.BitScore))

	buf = appendString(buf, c.LocusID)
	buf = appendString(buf, c.Gene)
	buf = appendString(buf, c.Representative)
	for _, name := range c.Ranks {
		buf = appendString(buf, name)
	}
	return buf
}

func appendString(buf []byte, s string) []byte {
	if len(s) > math.MaxUint16 {
		s = s[:math.MaxUint16]
	}
	buf = be.AppendUint16(buf, uint16(len(s)))
	return append(buf, s...)
}

// DecodeLocusConsensus deserializes a locus call.
func DecodeLocusConsensus(data []byte) (consensus.LocusConsensus, error) {
	var c consensus.LocusConsensus
	if len(data) < 17 {
		return c, ErrInvalidRecord
	}
	if data[0] != RecordVersion {
		return c, ErrRecordVersionMismatch
	}
	c.PercentIdentity = math.Float64frombits(be.Uint64(data[1:9]))
	c.BitScore = math.Float64frombits(be.Uint64(data[9:17]))
	c.Accession = consensus.ConsensusAccession

	data = data[17:]
	var ok bool
	if c.LocusID, data, ok = readString(data); !ok {
		return c, ErrInvalidRecord
	}
	if c.Gene, data, ok = readString(data); !ok {
		return c, ErrInvalidRecord
	}
	if c.Representative, data, ok = readString(data); !ok {
		return c, ErrInvalidRecord
	}
	for i := range c.Ranks {
		if c.Ranks[i], data, ok = readString(data); !ok {
			return c, ErrInvalidRecord
		}
	}
	if len(data) != 0 {
		return c, ErrInvalidRecord
	}
	return c, nil
}

func readString(data []byte) (string, []byte, bool) {
	if len(data) < 2 {
		return "", data, false
	}
	n := int(be.Uint16(data[:2]))
	data = data[2:]
	if len(data) < n {
		return "", data, false
	}
	return string(data[:n]), data[n:], true
}

// ------------------------------------------------------------------------

// ClearSCGTaxonomy removes all per-locus taxonomy and the run flag.
func (s *Store) ClearSCGTaxonomy(bufferSize int) (int, error) {
	n, err := s.DeletePrefix(TableSCGTaxonomy, bufferSize)
	if err != nil {
		return n, err
	}
	return n, s.SetMeta(MetaSCGTaxonomyRun, "0")
}

// SCGTaxonomyWriter persists locus calls in batches.
type SCGTaxonomyWriter struct {
	w *BatchWriter
}

// NewSCGTaxonomyWriter creates a writer committing every bufferSize calls.
func (s *Store) NewSCGTaxonomyWriter(bufferSize int) (*SCGTaxonomyWriter, error) {
	w, err := s.NewBatchWriter(bufferSize)
	if err != nil {
		return nil, err
	}
	return &SCGTaxonomyWriter{w: w}, nil
}

// Add buffers a locus call.
func (tw *SCGTaxonomyWriter) Add(c consensus.LocusConsensus) error {
	return tw.w.Set(TableSCGTaxonomy, EncodeLocusConsensus(c), c.Gene, c.LocusID)
}

// Close commits remaining calls and marks the run as done.
func (tw *SCGTaxonomyWriter) Close() error {
	if err := tw.w.Close(); err != nil {
		return err
	}
	return tw.w.s.SetMeta(MetaSCGTaxonomyRun, "1")
}

// Discard drops uncommitted calls.
func (tw *SCGTaxonomyWriter) Discard() { tw.w.Discard() }

// Total returns the number of calls added.
func (tw *SCGTaxonomyWriter) Total() int { return tw.w.Total() }

// Commits returns the number of committed transactions.
func (tw *SCGTaxonomyWriter) Commits() int { return tw.w.Commits() }

// SCGTaxonomyWasRun tells if per-locus taxonomy has been computed.
func (s *Store) SCGTaxonomyWasRun() (bool, error) {
	v, err := s.Meta(MetaSCGTaxonomyRun)
	return v == "1", err
}

// SCGTaxonomy returns all persisted locus calls, ordered by gene and locus.
func (s *Store) SCGTaxonomy() ([]consensus.LocusConsensus, error) {
	calls := make([]consensus.LocusConsensus, 0, 1024)
	err := s.Iterate(TableSCGTaxonomy, func(parts []string, value []byte) error {
		c, err := DecodeLocusConsensus(value)
		if err != nil {
			return err
		}
		calls = append(calls, c)
		return nil
	})
	return calls, err
}
