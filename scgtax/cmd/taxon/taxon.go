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

// Package taxon provides the fixed seven-rank taxonomy used by scgtax,
// and an index mapping reference accessions to their rank vectors.
package taxon

import (
	"fmt"
	"strings"

	"github.com/zeebo/xxh3"
)

// Rank is one of the seven fixed taxonomic ranks, from the root.
type Rank uint8

const (
	Domain Rank = iota
	Phylum
	Class
	Order
	Family
	Genus
	Species
)

// NumRanks is the number of ranks of a RankVector.
const NumRanks = 7

var rankLetters = [NumRanks]byte{'d', 'p', 'c', 'o', 'f', 'g', 's'}

var rankNames = [NumRanks]string{
	"t_domain",
	"t_phylum",
	"t_class",
	"t_order",
	"t_family",
	"t_genus",
	"t_species",
}

// letter -> rank, 0xff for unknown letters
var letter2rank [256]uint8

func init() {
	for i := range letter2rank {
		letter2rank[i] = 0xff
	}
	for r, c := range rankLetters {
		letter2rank[c] = uint8(r)
	}
}

func (r Rank) String() string {
	if r >= NumRanks {
		return fmt.Sprintf("rank(%d)", uint8(r))
	}
	return rankNames[r]
}

// Letter returns the one-letter prefix used in taxonomy strings.
func (r Rank) Letter() byte {
	return rankLetters[r]
}

// RankOfLetter returns the rank of a taxonomy string prefix letter.
func RankOfLetter(c byte) (Rank, bool) {
	r := letter2rank[c]
	if r == 0xff {
		return 0, false
	}
	return Rank(r), true
}

// RankNames returns the column names of all ranks, from domain to species.
func RankNames() []string {
	names := make([]string, NumRanks)
	copy(names, rankNames[:])
	return names
}

// RankVector holds taxon names of the seven ranks, an empty string means null.
type RankVector [NumRanks]string

// Depth returns the number of leading non-null ranks.
func (v RankVector) Depth() int {
	for i, name := range v {
		if name == "" {
			return i
		}
	}
	return NumRanks
}

// Contiguous checks that no non-null rank follows a null one.
func (v RankVector) Contiguous() bool {
	d := v.Depth()
	for i := d; i < NumRanks; i++ {
		if v[i] != "" {
			return false
		}
	}
	return true
}

// IsNull tells if all ranks are null.
func (v RankVector) IsNull() bool {
	for _, name := range v {
		if name != "" {
			return false
		}
	}
	return true
}

// Truncate returns a copy with ranks at and after depth set to null.
func (v RankVector) Truncate(depth int) RankVector {
	if depth < 0 {
		depth = 0
	}
	for i := depth; i < NumRanks; i++ {
		v[i] = ""
	}
	return v
}

// String returns the rank-prefixed taxonomy string of non-null ranks,
// e.g., "d__Bacteria;p__Proteobacteria".
func (v RankVector) String() string {
	var sb strings.Builder
	first := true
	for i, name := range v {
		if name == "" {
			continue
		}
		if !first {
			sb.WriteByte(';')
		}
		sb.WriteByte(rankLetters[i])
		sb.WriteString("__")
		sb.WriteString(name)
		first = false
	}
	return sb.String()
}

// Fingerprint returns the hash of String().
// The rank prefixes keep concatenations from colliding across ranks.
func (v RankVector) Fingerprint() Fingerprint {
	return Fingerprint(xxh3.HashString(v.String()))
}

// Fingerprint is a fixed-size digest of a RankVector.
type Fingerprint uint64

// String returns a zero-padded hex string, so that lexical order of
// strings equals numeric order.
func (f Fingerprint) String() string {
	return fmt.Sprintf("%016x", uint64(f))
}
