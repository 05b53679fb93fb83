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
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/shenwei356/scgtax/scgtax/cmd/consensus"
	"github.com/shenwei356/scgtax/scgtax/cmd/taxon"
)

func openTemp(t *testing.T) (*Store, string) {
	dir := filepath.Join(t.TempDir(), "project.db")
	s, err := Open(dir, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	return s, dir
}

func TestKeys(t *testing.T) {
	key := prefixKey(TableCollectionsSplits, "c1", "bin_1", "split_1")
	parts := splitKey(key)
	if len(parts) != 3 || parts[0] != "c1" || parts[1] != "bin_1" || parts[2] != "split_1" {
		t.Errorf("unexpected parts: %v", parts)
	}

	// "c1" should not be a prefix of "c10"
	p := prefixOf(TableCollectionsSplits, "c1")
	if string(prefixKey(TableCollectionsSplits, "c10", "b")[:len(p)]) == string(p) {
		t.Errorf("prefix of c1 matches c10")
	}
}

func TestBatchWriter(t *testing.T) {
	s, _ := openTemp(t)
	defer s.Close()

	w, err := s.NewBatchWriter(1000)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 2500; i++ {
		if err = w.Set(TableGenesInSplits, emptyValue, "split", fmt.Sprintf("%05d", i)); err != nil {
			t.Fatal(err)
		}
	}
	if err = w.Close(); err != nil {
		t.Fatal(err)
	}
	if w.Commits() != 3 || w.Total() != 2500 {
		t.Errorf("expected 3 commits of 2500 writes, returned %d of %d", w.Commits(), w.Total())
	}

	m, err := s.LociInSplits([]string{"split"})
	if err != nil {
		t.Fatal(err)
	}
	if len(m["split"]) != 2500 {
		t.Errorf("expected 2500 loci, returned %d", len(m["split"]))
	}

	n, err := s.DeletePrefix(TableGenesInSplits, 1000, "split")
	if err != nil {
		t.Fatal(err)
	}
	if n != 2500 {
		t.Errorf("expected 2500 deleted keys, returned %d", n)
	}
}

func TestCollections(t *testing.T) {
	s, _ := openTemp(t)
	defer s.Close()

	bins := map[string][]string{
		"bin_1": {"s1", "s2"},
		"bin_2": {"s3"},
	}
	info, err := s.ImportCollection("CONCOCT", bins, map[string]string{"bin_1": "#000000"}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if info.NumBins != 2 || info.NumSplits != 3 {
		t.Errorf("unexpected info: %+v", info)
	}

	if _, err = s.ImportCollection("default", map[string][]string{"all": {"s1"}}, nil, 10); err != nil {
		t.Fatal(err)
	}

	infos, err := s.Collections()
	if err != nil {
		t.Fatal(err)
	}
	if len(infos) != 2 || infos[0].Name != "CONCOCT" || infos[1].Name != "default" {
		t.Errorf("unexpected collections: %+v", infos)
	}

	colors, err := s.CollectionColors("CONCOCT")
	if err != nil {
		t.Fatal(err)
	}
	if colors["bin_1"] != "#000000" || colors["bin_2"] != DefaultColor(1) {
		t.Errorf("unexpected colors: %v", colors)
	}

	splits, err := s.CollectionSplits("CONCOCT")
	if err != nil {
		t.Fatal(err)
	}
	if len(splits["bin_1"]) != 2 || len(splits["bin_2"]) != 1 {
		t.Errorf("unexpected splits: %v", splits)
	}

	// replacing
	if _, err = s.ImportCollection("CONCOCT", map[string][]string{"bin_3": {"s9"}}, nil, 10); err != nil {
		t.Fatal(err)
	}
	splits, _ = s.CollectionSplits("CONCOCT")
	if len(splits) != 1 || len(splits["bin_3"]) != 1 {
		t.Errorf("collection not replaced: %v", splits)
	}

	if err = s.DeleteCollection("default", 10); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := s.Collection("default"); ok {
		t.Errorf("collection not deleted")
	}

	if _, err = s.ImportCollection("", bins, nil, 10); err == nil {
		t.Errorf("empty name should be rejected")
	}
}

func TestGenesInSplits(t *testing.T) {
	s, _ := openTemp(t)
	defer s.Close()

	pairs := []SplitLocus{
		{"s2", "7"},
		{"s1", "1"},
		{"s1", "2"},
	}
	n, err := s.ImportGenesInSplits(pairs, 2)
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("expected 3 pairs, returned %d", n)
	}

	splits, err := s.AllSplits()
	if err != nil {
		t.Fatal(err)
	}
	if len(splits) != 2 || splits[0] != "s1" || splits[1] != "s2" {
		t.Errorf("unexpected splits: %v", splits)
	}

	m, err := s.LociInSplits([]string{"s1", "s3"})
	if err != nil {
		t.Fatal(err)
	}
	if len(m["s1"]) != 2 || len(m["s3"]) != 0 {
		t.Errorf("unexpected loci: %v", m)
	}
}

func TestRecord(t *testing.T) {
	c := consensus.LocusConsensus{
		LocusID:         "42",
		Gene:            "Ribosomal_L2",
		Accession:       consensus.ConsensusAccession,
		Representative:  "RS_GCF_000005845.2",
		PercentIdentity: 99.5,
		BitScore:        512,
		Ranks:           taxon.RankVector{"Bacteria", "Proteobacteria", "Gammaproteobacteria"},
	}
	data := EncodeLocusConsensus(c)
	c2, err := DecodeLocusConsensus(data)
	if err != nil {
		t.Fatal(err)
	}
	if c2 != c {
		t.Errorf("expected %+v, returned %+v", c, c2)
	}

	if _, err = DecodeLocusConsensus(data[:len(data)-1]); err != ErrInvalidRecord {
		t.Errorf("truncated record should be invalid: %v", err)
	}
	data[0] = 9
	if _, err = DecodeLocusConsensus(data); err != ErrRecordVersionMismatch {
		t.Errorf("version mismatch not detected: %v", err)
	}
}

func TestSCGTaxonomyAndReadOnly(t *testing.T) {
	s, dir := openTemp(t)

	w, err := s.NewSCGTaxonomyWriter(2)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		err = w.Add(consensus.LocusConsensus{
			LocusID:         fmt.Sprintf("%d", i),
			Gene:            "Ribosomal_S2",
			Accession:       consensus.ConsensusAccession,
			Representative:  "GB_GCA_1",
			PercentIdentity: 100,
			Ranks:           taxon.RankVector{"Bacteria"},
		})
		if err != nil {
			t.Fatal(err)
		}
	}
	if err = w.Close(); err != nil {
		t.Fatal(err)
	}
	if w.Commits() != 3 {
		t.Errorf("expected 3 commits, returned %d", w.Commits())
	}
	if err = s.SetMeta(MetaProjectName, "test"); err != nil {
		t.Fatal(err)
	}
	if err = s.Close(); err != nil {
		t.Fatal(err)
	}

	opt := DefaultOptions()
	opt.ReadOnly = true
	s, err = Open(dir, opt)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	ok, err := s.SCGTaxonomyWasRun()
	if err != nil || !ok {
		t.Errorf("run flag not set: %v", err)
	}
	calls, err := s.SCGTaxonomy()
	if err != nil {
		t.Fatal(err)
	}
	if len(calls) != 5 {
		t.Errorf("expected 5 calls, returned %d", len(calls))
	}
	name, _ := s.ProjectName()
	if name != "test" {
		t.Errorf("unexpected project name: %s", name)
	}

	if err = s.SetMeta(MetaProjectName, "x"); !errors.Is(err, ErrReadOnly) {
		t.Errorf("writing to a read-only store should fail: %v", err)
	}
	if _, err = s.NewBatchWriter(10); !errors.Is(err, ErrReadOnly) {
		t.Errorf("batch writer on a read-only store should fail: %v", err)
	}
}
