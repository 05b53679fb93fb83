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

package consensus

import (
	"sort"

	"github.com/shenwei356/scgtax/scgtax/cmd/taxon"
)

// Mode is the estimation mode of a population call.
type Mode uint8

const (
	ModeGenome Mode = iota
	ModeMetagenome
)

func (m Mode) String() string {
	switch m {
	case ModeGenome:
		return "genome"
	case ModeMetagenome:
		return "metagenome"
	}
	return "unknown"
}

// LocusSupport is a locus call considered in a population call.
type LocusSupport struct {
	LocusConsensus
	Supporting bool
}

// PopulationCall is the taxonomic call of a population.
type PopulationCall struct {
	PopulationID   string
	Ranks          taxon.RankVector
	Fingerprint    taxon.Fingerprint
	TotalLoci      int
	SupportingLoci int
	Mode           Mode

	Loci []LocusSupport // sorted by locus id
}

// ReducePopulation votes for the most frequent rank vector among calls of
// loci from one population.
//
// Ties are broken by the depth of rank vectors (deeper first), and then
// by the hex string of fingerprints (smaller first), so the result does
// not depend on the order of calls.
// An empty list gives an all-null call with zero counts.
func ReducePopulation(id string, calls []LocusConsensus, mode Mode) PopulationCall {
	pc := PopulationCall{PopulationID: id, Mode: mode}
	if len(calls) == 0 {
		pc.Fingerprint = taxon.RankVector{}.Fingerprint()
		return pc
	}

	loci := make([]LocusSupport, len(calls))
	for i, c := range calls {
		loci[i] = LocusSupport{LocusConsensus: c}
	}
	sort.SliceStable(loci, func(i, j int) bool {
		if loci[i].LocusID == loci[j].LocusID {
			return loci[i].Gene < loci[j].Gene
		}
		return loci[i].LocusID < loci[j].LocusID
	})

	counts := make(map[taxon.Fingerprint]int, len(loci))
	reps := make(map[taxon.Fingerprint]taxon.RankVector, len(loci))
	fps := make([]taxon.Fingerprint, len(loci))
	var fp taxon.Fingerprint
	for i, l := range loci {
		fp = l.Ranks.Fingerprint()
		fps[i] = fp
		if _, ok := reps[fp]; !ok {
			reps[fp] = l.Ranks
		}
		counts[fp]++
	}

	var winner taxon.Fingerprint
	first := true
	for fp = range counts {
		if first || better(fp, winner, counts, reps) {
			winner = fp
			first = false
		}
	}

	pc.Ranks = reps[winner]
	pc.Fingerprint = winner
	pc.TotalLoci = len(loci)
	for i := range loci {
		if fps[i] == winner {
			loci[i].Supporting = true
			pc.SupportingLoci++
		}
	}
	pc.Loci = loci
	return pc
}

// better tells if fingerprint a beats b.
func better(a, b taxon.Fingerprint, counts map[taxon.Fingerprint]int,
	reps map[taxon.Fingerprint]taxon.RankVector) bool {
	if counts[a] != counts[b] {
		return counts[a] > counts[b]
	}
	da, db := reps[a].Depth(), reps[b].Depth()
	if da != db {
		return da > db
	}
	return a.String() < b.String()
}
