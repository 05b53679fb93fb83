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
	"fmt"
	"math/rand"
	"testing"

	"github.com/shenwei356/scgtax/scgtax/cmd/taxon"
)

func lineage(species string) taxon.RankVector {
	return taxon.RankVector{"Bacteria", "Proteobacteria", "Gammaproteobacteria",
		"Enterobacterales", "Enterobacteriaceae", "Escherichia", species}
}

func hit(acc string, ident float64, ranks taxon.RankVector) Hit {
	return Hit{LocusID: "7", Gene: "Ribosomal_L16", Accession: acc,
		PercentIdentity: ident, BitScore: ident * 2, Ranks: ranks}
}

func TestReduceHitsNoHits(t *testing.T) {
	_, err := ReduceHits(nil)
	if err != ErrNoHits {
		t.Errorf("expected ErrNoHits, returned %v", err)
	}
}

func TestReduceHitsDisagreeAtSpecies(t *testing.T) {
	hits := []Hit{
		hit("a", 100, lineage("Escherichia coli")),
		hit("b", 100, lineage("Escherichia fergusonii")),
	}
	c, err := ReduceHits(hits)
	if err != nil {
		t.Error(err)
		return
	}
	if c.Ranks[taxon.Species] != "" {
		t.Errorf("species should be null: %v", c.Ranks)
	}
	if c.Ranks.Depth() != 6 || c.Ranks[taxon.Genus] != "Escherichia" {
		t.Errorf("ranks should be filled through genus: %v", c.Ranks)
	}
	if c.Accession != ConsensusAccession || c.Representative != "a" {
		t.Errorf("unexpected accessions: %s, %s", c.Accession, c.Representative)
	}
	if c.LocusID != "7" || c.Gene != "Ribosomal_L16" {
		t.Errorf("unexpected locus: %s %s", c.LocusID, c.Gene)
	}
}

func TestReduceHitsSingle(t *testing.T) {
	ranks := lineage("Escherichia coli")
	c, err := ReduceHits([]Hit{hit("a", 97, ranks)})
	if err != nil {
		t.Error(err)
		return
	}
	if c.Ranks != ranks {
		t.Errorf("expected %v, returned %v", ranks, c.Ranks)
	}
	if c.PercentIdentity != 97 {
		t.Errorf("unexpected identity: %f", c.PercentIdentity)
	}
}

func TestReduceHitsNoAgreement(t *testing.T) {
	var arc taxon.RankVector
	arc[taxon.Domain] = "Archaea"
	c, err := ReduceHits([]Hit{
		hit("a", 99, lineage("Escherichia coli")),
		hit("b", 99, arc),
	})
	if err != nil {
		t.Error(err)
		return
	}
	if !c.Ranks.IsNull() {
		t.Errorf("ranks should be all null: %v", c.Ranks)
	}
}

func TestReduceHitsLowerIdentityIgnored(t *testing.T) {
	hits := []Hit{
		hit("a", 99.5, lineage("Escherichia coli")),
		hit("b", 99.5, lineage("Escherichia coli")),
	}
	c0, err := ReduceHits(hits)
	if err != nil {
		t.Error(err)
		return
	}

	var arc taxon.RankVector
	arc[taxon.Domain] = "Archaea"
	for i := 0; i < 10; i++ {
		hits = append(hits, hit(fmt.Sprintf("x%d", i), 90+float64(i)*0.5, arc))
		c, err := ReduceHits(hits)
		if err != nil {
			t.Error(err)
			return
		}
		if c != c0 {
			t.Errorf("a lower-identity hit changed the result: %v vs %v", c.Ranks, c0.Ranks)
		}
	}
}

func TestReduceHitsContiguity(t *testing.T) {
	// agreement at species but not at genus
	a := lineage("Escherichia coli")
	b := lineage("Escherichia coli")
	b[taxon.Genus] = "Shigella"
	c, err := ReduceHits([]Hit{hit("a", 100, a), hit("b", 100, b)})
	if err != nil {
		t.Error(err)
		return
	}
	if !c.Ranks.Contiguous() {
		t.Errorf("ranks should be contiguous: %v", c.Ranks)
	}
	if c.Ranks.Depth() != 5 {
		t.Errorf("expected depth 5, returned %d: %v", c.Ranks.Depth(), c.Ranks)
	}

	r := rand.New(rand.NewSource(11))
	names := []string{"A", "B", ""}
	for i := 0; i < 200; i++ {
		hits := make([]Hit, 1+r.Intn(4))
		for j := range hits {
			var v taxon.RankVector
			for k := range v {
				v[k] = names[r.Intn(len(names))]
			}
			hits[j] = hit(fmt.Sprintf("h%d", j), 100, v)
		}
		c, err := ReduceHits(hits)
		if err != nil {
			t.Error(err)
			return
		}
		if !c.Ranks.Contiguous() {
			t.Errorf("ranks should be contiguous: %v", c.Ranks)
		}
		for k := 0; k < c.Ranks.Depth(); k++ {
			for _, h := range hits {
				if h.Ranks[k] != c.Ranks[k] {
					t.Errorf("rank %d not supported by all hits: %v", k, c.Ranks)
				}
			}
		}
	}
}

func call(locus string, ranks taxon.RankVector) LocusConsensus {
	return LocusConsensus{LocusID: locus, Gene: "Ribosomal_S2", Accession: ConsensusAccession, Ranks: ranks}
}

func TestReducePopulationMajority(t *testing.T) {
	f1 := lineage("Escherichia coli")
	f2 := lineage("").Truncate(5)
	calls := []LocusConsensus{
		call("1", f1), call("2", f2), call("3", f1), call("4", f2), call("5", f1),
	}
	pc := ReducePopulation("bin_1", calls, ModeGenome)
	if pc.Ranks != f1 {
		t.Errorf("expected %v, returned %v", f1, pc.Ranks)
	}
	if pc.TotalLoci != 5 || pc.SupportingLoci != 3 {
		t.Errorf("unexpected counts: %d/%d", pc.SupportingLoci, pc.TotalLoci)
	}
	if pc.Fingerprint != f1.Fingerprint() {
		t.Errorf("unexpected fingerprint: %s", pc.Fingerprint)
	}
	var n int
	for _, l := range pc.Loci {
		if l.Supporting {
			n++
		}
	}
	if n != 3 {
		t.Errorf("expected 3 supporting loci, returned %d", n)
	}
}

func TestReducePopulationEmpty(t *testing.T) {
	pc := ReducePopulation("bin_2", nil, ModeGenome)
	if !pc.Ranks.IsNull() || pc.TotalLoci != 0 || pc.SupportingLoci != 0 {
		t.Errorf("unexpected call for empty input: %+v", pc)
	}
	if pc.PopulationID != "bin_2" {
		t.Errorf("unexpected population id: %s", pc.PopulationID)
	}
}

// Tied votes are resolved instead of aborting the run.
func TestReducePopulationTieBreak(t *testing.T) {
	deep := lineage("Escherichia coli")
	shallow := lineage("").Truncate(4)
	calls := []LocusConsensus{
		call("1", deep), call("2", shallow), call("3", shallow), call("4", deep),
	}

	pc0 := ReducePopulation("p", calls, ModeGenome)
	if pc0.Ranks != deep {
		t.Errorf("the deeper vector should win a tie: %v", pc0.Ranks)
	}
	if pc0.SupportingLoci != 2 {
		t.Errorf("expected 2 supporting loci, returned %d", pc0.SupportingLoci)
	}

	// equal depth, decided by fingerprint
	a := lineage("Escherichia coli")
	b := lineage("Escherichia albertii")
	want := a
	if b.Fingerprint().String() < a.Fingerprint().String() {
		want = b
	}
	calls = []LocusConsensus{call("1", a), call("2", b), call("3", b), call("4", a)}

	r := rand.New(rand.NewSource(1))
	for i := 0; i < 50; i++ {
		r.Shuffle(len(calls), func(i, j int) { calls[i], calls[j] = calls[j], calls[i] })
		pc := ReducePopulation("p", calls, ModeGenome)
		if pc.Ranks != want {
			t.Errorf("tie-break is not deterministic: %v", pc.Ranks)
		}
	}
}

func TestReducePopulationIdempotent(t *testing.T) {
	calls := []LocusConsensus{
		call("9", lineage("Escherichia coli")),
		call("10", lineage("")),
		call("11", lineage("Escherichia coli")),
	}
	pc1 := ReducePopulation("p", calls, ModeGenome)
	pc2 := ReducePopulation("p", calls, ModeGenome)
	if pc1.Ranks != pc2.Ranks || pc1.Fingerprint != pc2.Fingerprint ||
		pc1.SupportingLoci != pc2.SupportingLoci || pc1.TotalLoci != pc2.TotalLoci {
		t.Errorf("results differ: %+v vs %+v", pc1, pc2)
	}
	if calls[0].LocusID != "9" {
		t.Errorf("input should not be reordered")
	}
}
