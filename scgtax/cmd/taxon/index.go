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

package taxon

import (
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/shenwei356/breader"
	"github.com/shenwei356/go-logging"
)

// UnknownAccession is the reserved accession mapping to the all-null vector.
const UnknownAccession = "unknown_accession"

// Index maps reference accessions to rank vectors.
type Index struct {
	m map[string]RankVector
}

// NewIndex creates an empty index.
func NewIndex() *Index {
	idx := &Index{m: make(map[string]RankVector, 1024)}
	idx.m[UnknownAccession] = RankVector{}
	return idx
}

// Add adds or replaces an entry.
func (idx *Index) Add(accession string, v RankVector) {
	if accession == UnknownAccession {
		return
	}
	idx.m[accession] = v
}

// Lookup returns the rank vector of an accession,
// unresolved accessions get the vector of UnknownAccession.
func (idx *Index) Lookup(accession string) RankVector {
	if v, ok := idx.m[accession]; ok {
		return v
	}
	return idx.m[UnknownAccession]
}

// Has tells if the accession is in the index.
func (idx *Index) Has(accession string) bool {
	_, ok := idx.m[accession]
	return ok && accession != UnknownAccession
}

// Len returns the number of accessions, the reserved one excluded.
func (idx *Index) Len() int {
	return len(idx.m) - 1
}

// Accessions returns sorted accessions.
func (idx *Index) Accessions() []string {
	accs := make([]string, 0, len(idx.m))
	for acc := range idx.m {
		if acc == UnknownAccession {
			continue
		}
		accs = append(accs, acc)
	}
	sort.Strings(accs)
	return accs
}

// ParseTaxonomy parses a rank-prefixed taxonomy string like
// "d__Bacteria;p__Proteobacteria;...;s__Acinetobacter baumannii_A".
// Segments with unknown rank letters or without "__" are returned in bad.
// Species names without an underscore are set to null.
func ParseTaxonomy(s string) (v RankVector, bad []string) {
	var letter, name string
	var i int
	for _, seg := range strings.Split(s, ";") {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			continue
		}
		i = strings.Index(seg, "__")
		if i < 0 {
			bad = append(bad, seg)
			continue
		}
		letter, name = seg[:i], seg[i+2:]
		if len(letter) != 1 {
			bad = append(bad, seg)
			continue
		}
		r, ok := RankOfLetter(letter[0])
		if !ok {
			bad = append(bad, seg)
			continue
		}
		if r == Species && !strings.Contains(name, "_") {
			name = ""
		}
		v[r] = name
	}
	return v, bad
}

type indexRecord struct {
	accession string
	ranks     RankVector
	bad       []string
	line      string
}

// LoadIndex reads a tab-delimited accession to taxonomy file.
// Blank lines and lines starting with "#" are ignored.
// Unknown rank letters and malformed lines are logged and skipped.
// The logger could be nil.
func LoadIndex(file string, threads int, logger *logging.Logger) (*Index, error) {
	if threads < 1 {
		threads = 1
	}
	fn := func(line string) (interface{}, bool, error) {
		line = strings.TrimRight(line, "\r\n")
		if line == "" || line[0] == '#' {
			return nil, false, nil
		}
		rec := &indexRecord{line: line}
		i := strings.IndexByte(line, '\t')
		if i < 0 {
			return rec, true, nil
		}
		rec.accession = strings.TrimSpace(line[:i])
		rec.ranks, rec.bad = ParseTaxonomy(line[i+1:])
		return rec, true, nil
	}

	reader, err := breader.NewBufferedReader(file, threads, 1000, fn)
	if err != nil {
		return nil, errors.Wrapf(err, "read taxonomy file: %s", file)
	}

	idx := NewIndex()
	var rec *indexRecord
	var data interface{}
	var nMalformed int
	for chunk := range reader.Ch {
		if chunk.Err != nil {
			return nil, errors.Wrapf(chunk.Err, "read taxonomy file: %s", file)
		}
		for _, data = range chunk.Data {
			rec = data.(*indexRecord)
			if rec.accession == "" {
				nMalformed++
				if logger != nil {
					logger.Warningf("malformed line in %s: %s", file, rec.line)
				}
				continue
			}
			if len(rec.bad) > 0 && logger != nil {
				logger.Warningf("unknown rank letter(s) for %s: %s", rec.accession, strings.Join(rec.bad, ", "))
			}
			idx.Add(rec.accession, rec.ranks)
		}
	}
	if nMalformed > 0 && logger != nil {
		logger.Warningf("%d malformed line(s) skipped in %s", nMalformed, file)
	}
	return idx, nil
}
