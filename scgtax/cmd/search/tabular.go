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

package search

import (
	"bufio"
	"bytes"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/shenwei356/scgtax/scgtax/cmd/consensus"
	"github.com/shenwei356/scgtax/scgtax/cmd/taxon"
	"github.com/twotwotwo/sorts"
)

// ParseTabular parses BLAST tabular output (outfmt 6) of a gene,
// and groups hits by query (locus id). Hits are annotated with the
// taxonomy of subject accessions, and sorted by bit score in
// descending order.
func ParseTabular(r io.Reader, gene string, idx *taxon.Index) (map[string][]consensus.Hit, error) {
	hits := make(map[string][]consensus.Hit, 64)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64<<10), 16<<20)

	var line string
	var items []string
	var pident, bitscore float64
	var err error
	var n int
	for scanner.Scan() {
		n++
		line = strings.TrimRight(scanner.Text(), "\r\n")
		if line == "" || strings.HasPrefix(line, "Query") {
			continue
		}
		items = strings.Split(line, "\t")
		if len(items) < 12 {
			return nil, errors.Errorf("%s: line %d: 12 columns expected, %d given", gene, n, len(items))
		}
		pident, err = strconv.ParseFloat(items[2], 64)
		if err != nil {
			return nil, errors.Wrapf(err, "%s: line %d: invalid percent identity", gene, n)
		}
		bitscore, err = strconv.ParseFloat(items[11], 64)
		if err != nil {
			return nil, errors.Wrapf(err, "%s: line %d: invalid bit score", gene, n)
		}

		hits[items[0]] = append(hits[items[0]], consensus.Hit{
			LocusID:         items[0],
			Gene:            gene,
			Accession:       items[1],
			PercentIdentity: pident,
			BitScore:        bitscore,
			Ranks:           idx.Lookup(items[1]),
		})
	}
	if err = scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "read search results of %s", gene)
	}

	for _, list := range hits {
		SortHits(list)
	}
	return hits, nil
}

// ParseTabularBytes is a shortcut of ParseTabular.
func ParseTabularBytes(data []byte, gene string, idx *taxon.Index) (map[string][]consensus.Hit, error) {
	return ParseTabular(bytes.NewReader(data), gene, idx)
}

type byBitScore []consensus.Hit

func (s byBitScore) Len() int      { return len(s) }
func (s byBitScore) Swap(i, j int) { s[i], s[j] = s[j], s[i] }
func (s byBitScore) Less(i, j int) bool {
	if s[i].BitScore != s[j].BitScore {
		return s[i].BitScore > s[j].BitScore
	}
	if s[i].PercentIdentity != s[j].PercentIdentity {
		return s[i].PercentIdentity > s[j].PercentIdentity
	}
	return s[i].Accession < s[j].Accession
}

// SortHits sorts hits by bit score (desc), percent identity (desc),
// and accession.
func SortHits(hits []consensus.Hit) {
	sorts.Quicksort(byBitScore(hits))
}
