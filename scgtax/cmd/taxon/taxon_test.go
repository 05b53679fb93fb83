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
	"os"
	"path/filepath"
	"testing"
)

var full = RankVector{"Bacteria", "Proteobacteria", "Gammaproteobacteria",
	"Pseudomonadales", "Moraxellaceae", "Acinetobacter", "Acinetobacter baumannii_A"}

func TestRankVector(t *testing.T) {
	if full.Depth() != NumRanks {
		t.Errorf("depth: expected %d, returned %d", NumRanks, full.Depth())
	}
	if !full.Contiguous() {
		t.Errorf("full vector should be contiguous")
	}

	v := full.Truncate(int(Genus))
	if v.Depth() != 5 || v[Genus] != "" || v[Species] != "" {
		t.Errorf("unexpected truncated vector: %v", v)
	}
	if full[Species] == "" {
		t.Errorf("Truncate should not modify the receiver")
	}

	var gap RankVector
	gap[Domain] = "Bacteria"
	gap[Class] = "Gammaproteobacteria"
	if gap.Contiguous() {
		t.Errorf("vector with a gap should not be contiguous")
	}
	if gap.Depth() != 1 {
		t.Errorf("depth: expected 1, returned %d", gap.Depth())
	}

	if !(RankVector{}).IsNull() {
		t.Errorf("zero vector should be null")
	}

	if s := full.Truncate(2).String(); s != "d__Bacteria;p__Proteobacteria" {
		t.Errorf("unexpected string: %s", s)
	}
}

func TestFingerprint(t *testing.T) {
	a := full
	b := full
	if a.Fingerprint() != b.Fingerprint() {
		t.Errorf("identical vectors should have equal fingerprints")
	}

	b[Species] = "Acinetobacter baumannii_B"
	if a.Fingerprint() == b.Fingerprint() {
		t.Errorf("different vectors should have different fingerprints")
	}

	// the same names at different ranks
	var c, d RankVector
	c[Domain], c[Phylum] = "X", "Y"
	d[Domain], d[Class] = "X", "Y"
	if c.Fingerprint() == d.Fingerprint() {
		t.Errorf("rank positions should be part of the fingerprint")
	}

	if s := Fingerprint(0xab).String(); s != "00000000000000ab" {
		t.Errorf("unexpected fingerprint string: %s", s)
	}
}

func TestParseTaxonomy(t *testing.T) {
	v, bad := ParseTaxonomy("d__Bacteria;p__Firmicutes;x__Weird;s__Bacillus")
	if len(bad) != 1 || bad[0] != "x__Weird" {
		t.Errorf("unexpected bad segments: %v", bad)
	}
	if v[Domain] != "Bacteria" || v[Phylum] != "Firmicutes" {
		t.Errorf("unexpected vector: %v", v)
	}
	if v[Species] != "" {
		t.Errorf("species without underscore should be null, got: %s", v[Species])
	}

	v, _ = ParseTaxonomy(full.String())
	if v != full {
		t.Errorf("expected %v, returned %v", full, v)
	}
}

func TestLoadIndex(t *testing.T) {
	file := filepath.Join(t.TempDir(), "ACCESSION_TO_TAXONOMY.txt")
	data := "# accession\ttaxonomy\n" +
		"GB_GCA_000001\t" + full.String() + "\n" +
		"GB_GCA_000002\td__Bacteria;p__Firmicutes;q__Oops;s__Bacillus\n" +
		"\n" +
		"broken line without tab\n" +
		"GB_GCA_000001\td__Archaea\n"
	if err := os.WriteFile(file, []byte(data), 0644); err != nil {
		t.Error(err)
		return
	}

	idx, err := LoadIndex(file, 2, nil)
	if err != nil {
		t.Error(err)
		return
	}

	if idx.Len() != 2 {
		t.Errorf("expected 2 accessions, returned %d", idx.Len())
	}

	// later lines win
	if v := idx.Lookup("GB_GCA_000001"); v[Domain] != "Archaea" || v.Depth() != 1 {
		t.Errorf("unexpected vector: %v", v)
	}

	v := idx.Lookup("GB_GCA_000002")
	if v[Phylum] != "Firmicutes" || v[Species] != "" {
		t.Errorf("unexpected vector: %v", v)
	}

	if v := idx.Lookup("no-such-accession"); !v.IsNull() {
		t.Errorf("unknown accession should map to the all-null vector: %v", v)
	}
	if idx.Has(UnknownAccession) {
		t.Errorf("reserved accession should not be reported")
	}
}
