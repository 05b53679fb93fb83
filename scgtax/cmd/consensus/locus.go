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

// Package consensus reduces alignment hits of a locus to one taxonomic call,
// and calls of loci from one population to a population call.
package consensus

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/shenwei356/scgtax/scgtax/cmd/taxon"
)

// ErrNoHits means there's no hit to reduce.
var ErrNoHits = errors.New("consensus: no hits")

// ConsensusAccession is the accession of reduced calls.
const ConsensusAccession = "CONSENSUS"

// Hit is an alignment of a locus against one reference sequence.
type Hit struct {
	LocusID         string
	Gene            string
	Accession       string
	PercentIdentity float64
	BitScore        float64
	Ranks           taxon.RankVector
}

func (h Hit) String() string {
	return fmt.Sprintf("%s\t%s\t%s\t%.2f\t%.1f\t%s",
		h.LocusID, h.Gene, h.Accession, h.PercentIdentity, h.BitScore, h.Ranks)
}

// LocusConsensus is the taxonomic call of a locus.
type LocusConsensus struct {
	LocusID         string
	Gene            string
	Accession       string // always ConsensusAccession
	Representative  string // accession of the hit chosen to represent the call
	PercentIdentity float64
	BitScore        float64
	Ranks           taxon.RankVector
}

// ReduceHits computes the consensus of hits of a locus.
//
// Only hits with the maximum percent identity are considered.
// The call is resolved to the deepest rank d where these hits agree on
// one non-null name at every rank from domain to d, ranks deeper than d
// are set to null. The first of these hits (in input order) represents
// the call. If no rank is agreed upon, all ranks are null.
func ReduceHits(hits []Hit) (LocusConsensus, error) {
	if len(hits) == 0 {
		return LocusConsensus{}, ErrNoHits
	}

	maxIdent := hits[0].PercentIdentity
	for _, h := range hits[1:] {
		if h.PercentIdentity > maxIdent {
			maxIdent = h.PercentIdentity
		}
	}

	best := make([]*Hit, 0, len(hits))
	for i := range hits {
		if hits[i].PercentIdentity == maxIdent {
			best = append(best, &hits[i])
		}
	}

	depth := 0
	var name string
	var agree bool
	for r := 0; r < taxon.NumRanks; r++ {
		name = best[0].Ranks[r]
		if name == "" {
			break
		}
		agree = true
		for _, h := range best[1:] {
			if h.Ranks[r] != name {
				agree = false
				break
			}
		}
		if !agree {
			break
		}
		depth = r + 1
	}

	rep := best[0]
	return LocusConsensus{
		LocusID:         rep.LocusID,
		Gene:            rep.Gene,
		Accession:       ConsensusAccession,
		Representative:  rep.Accession,
		PercentIdentity: maxIdent,
		BitScore:        rep.BitScore,
		Ranks:           rep.Ranks.Truncate(depth),
	}, nil
}
