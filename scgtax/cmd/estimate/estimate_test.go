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

package estimate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shenwei356/scgtax/scgtax/cmd/collection"
	"github.com/shenwei356/scgtax/scgtax/cmd/config"
	"github.com/shenwei356/scgtax/scgtax/cmd/consensus"
	"github.com/shenwei356/scgtax/scgtax/cmd/refdata"
	"github.com/shenwei356/scgtax/scgtax/cmd/search"
	"github.com/shenwei356/scgtax/scgtax/cmd/store"
	"github.com/shenwei356/scgtax/scgtax/cmd/taxon"
)

var (
	ecoli = taxon.RankVector{"Bacteria", "Proteobacteria", "Gammaproteobacteria",
		"Enterobacterales", "Enterobacteriaceae", "Escherichia", "Escherichia coli"}
	bsub = taxon.RankVector{"Bacteria", "Firmicutes", "Bacilli",
		"Bacillales", "Bacillaceae", "Bacillus", "Bacillus subtilis"}
)

func call(locus, gene string, pident float64, ranks taxon.RankVector) consensus.LocusConsensus {
	return consensus.LocusConsensus{
		LocusID:         locus,
		Gene:            gene,
		Accession:       consensus.ConsensusAccession,
		PercentIdentity: pident,
		Ranks:           ranks,
	}
}

func newEstimator(t *testing.T, cfg config.Config, deps Deps) *Estimator {
	e, err := New(cfg, deps)
	if err != nil {
		t.Fatal(err)
	}
	if err = e.Load(); err != nil {
		t.Fatal(err)
	}
	return e
}

func TestStateTransition(t *testing.T) {
	e, err := New(config.Default(), Deps{})
	if err != nil {
		t.Fatal(err)
	}
	if _, err = e.Reduce(Request{}); !errors.Is(err, ErrStateTransition) {
		t.Errorf("reducing before loading should fail: %v", err)
	}
	if err = e.Load(); err != nil {
		t.Fatal(err)
	}
	if err = e.Load(); !errors.Is(err, ErrStateTransition) {
		t.Errorf("loading twice should fail: %v", err)
	}
	if err = e.UseCalls([]consensus.LocusConsensus{call("1", "Ribosomal_L2", 99, ecoli)}); err != nil {
		t.Fatal(err)
	}
	if e.State() != Searched {
		t.Errorf("unexpected state: %s", e.State())
	}
	if _, err = e.Reduce(Request{}); err != nil {
		t.Fatal(err)
	}
	if err = e.UseCalls(nil); !errors.Is(err, ErrStateTransition) {
		t.Errorf("going back to an earlier state should fail: %v", err)
	}
	if err = e.Finalize(); err != nil {
		t.Fatal(err)
	}
	if _, err = e.Reduce(Request{}); !errors.Is(err, ErrStateTransition) {
		t.Errorf("reducing after finalizing should fail: %v", err)
	}
}

func TestGenomeMode(t *testing.T) {
	e := newEstimator(t, config.Default(), Deps{ProjectName: "E_coli"})
	e.UseCalls([]consensus.LocusConsensus{
		call("1", "Ribosomal_L2", 99, ecoli),
		call("2", "Ribosomal_L3", 98, ecoli),
		call("3", "Ribosomal_L4", 100, ecoli.Truncate(int(taxon.Genus))),
		call("4", "Ribosomal_S2", 97, ecoli),
		call("5", "Ribosomal_S6", 95, bsub),
	})
	report, err := e.Reduce(Request{})
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Populations) != 1 {
		t.Fatalf("one population expected, returned %d", len(report.Populations))
	}
	p := report.Populations[0]
	if p.PopulationID != "E_coli" || p.Ranks != ecoli || p.TotalLoci != 5 || p.SupportingLoci != 3 {
		t.Errorf("unexpected call: %+v", p)
	}

	var buf bytes.Buffer
	if err = report.WriteTSV(&buf); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	header := "bin_name\ttotal_scgs\tsupporting_scgs\tt_domain\tt_phylum\tt_class\tt_order\tt_family\tt_genus\tt_species"
	if lines[0] != header {
		t.Errorf("unexpected header: %s", lines[0])
	}
	if lines[1] != "E_coli\t5\t3\t"+strings.Join(ecoli[:], "\t") {
		t.Errorf("unexpected row: %s", lines[1])
	}

	if _, err = report.Table(); err != nil {
		t.Error(err)
	}
	buf.Reset()
	if err = report.WriteDebug(&buf); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), consensus.ConsensusAccession) {
		t.Errorf("consensus row missing in debug output")
	}
}

func redundantCalls(nGenes int) []consensus.LocusConsensus {
	scgs := refdata.SCGs()
	calls := make([]consensus.LocusConsensus, 0, nGenes*2)
	for i := 0; i < nGenes; i++ {
		calls = append(calls,
			call(fmt.Sprintf("%d_a", i), scgs[i], 99, ecoli),
			call(fmt.Sprintf("%d_b", i), scgs[i], 99, bsub))
	}
	return calls
}

func TestRedundancy(t *testing.T) {
	// 5 of 22 SCGs occur twice
	e := newEstimator(t, config.Default(), Deps{})
	e.UseCalls(redundantCalls(5))
	_, err := e.Reduce(Request{})
	var re *RedundancyError
	if !errors.As(err, &re) {
		t.Fatalf("expected RedundancyError, returned %v", err)
	}
	if re.Redundant != 5 || re.Total != 22 {
		t.Errorf("unexpected error: %+v", re)
	}

	// 4 of 22
	e = newEstimator(t, config.Default(), Deps{})
	e.UseCalls(redundantCalls(4))
	if _, err = e.Reduce(Request{}); err != nil {
		t.Errorf("unexpected error: %s", err)
	}

	cfg := config.Default()
	cfg.JustDoIt = true
	e = newEstimator(t, cfg, Deps{})
	e.UseCalls(redundantCalls(5))
	report, err := e.Reduce(Request{})
	if err != nil {
		t.Fatalf("redundancy should be ignored with JustDoIt: %s", err)
	}
	// 5 vs 5, deeper wins and then the fingerprint
	p := report.Populations[0]
	if p.TotalLoci != 10 || p.SupportingLoci != 5 {
		t.Errorf("unexpected call: %+v", p)
	}
}

func TestMetagenomeMode(t *testing.T) {
	calls := []consensus.LocusConsensus{
		call("1", "Ribosomal_L2", 99, ecoli),
		call("2", "Ribosomal_L2", 98.5, bsub),
		call("3", "Ribosomal_L3", 100, ecoli),
		call("4", "Ribosomal_S2", 97, ecoli),
		call("5", "Ribosomal_S2", 95, bsub),
	}

	cfg := config.Default()
	cfg.MetagenomeMode = true
	e := newEstimator(t, cfg, Deps{})
	e.UseCalls(calls)

	if _, err := e.Reduce(Request{Collection: "CONCOCT"}); err == nil {
		t.Fatalf("expected AmbiguousModeError")
	} else {
		var ae *AmbiguousModeError
		if !errors.As(err, &ae) {
			t.Fatalf("expected AmbiguousModeError, returned %v", err)
		}
	}

	report, err := e.Reduce(Request{})
	if err != nil {
		t.Fatal(err)
	}
	// Ribosomal_L2 and Ribosomal_S2 both have 2 loci, ties are broken by name
	if report.SCG != "Ribosomal_L2" || len(report.Loci) != 2 {
		t.Errorf("unexpected SCG: %s (%d)", report.SCG, len(report.Loci))
	}
	rows := report.Rows()
	if rows[1][0] != "Ribosomal_L2_2" || rows[1][1] != "98.5" || rows[1][3] != "Firmicutes" {
		t.Errorf("unexpected row: %v", rows[1])
	}
	if h := report.Header(); h[0] != "scg_name" || h[1] != "percent_identity" || len(h) != 9 {
		t.Errorf("unexpected header: %v", h)
	}

	// user choice is honored
	cfg.SCGNameForMetagenomeMode = "Ribosomal_L3"
	e = newEstimator(t, cfg, Deps{})
	e.UseCalls(calls)
	report, err = e.Reduce(Request{})
	if err != nil {
		t.Fatal(err)
	}
	if report.SCG != "Ribosomal_L3" || len(report.Loci) != 1 || report.Loci[0].LocusID != "3" {
		t.Errorf("SCG chosen by user is not used: %s", report.SCG)
	}
}

func TestCollectionMode(t *testing.T) {
	s, err := store.Open(filepath.Join(t.TempDir(), "project.db"), store.DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	_, err = s.ImportGenesInSplits([]store.SplitLocus{
		{Split: "s1", Locus: "1"}, {Split: "s1", Locus: "2"},
		{Split: "s2", Locus: "3"}, {Split: "s3", Locus: "4"},
	}, 10)
	if err != nil {
		t.Fatal(err)
	}
	_, err = s.ImportCollection("CONCOCT", map[string][]string{
		"bin_1": {"s1", "s2"},
		"bin_2": {"s3"},
		"bin_3": {"s9"},
	}, nil, 10)
	if err != nil {
		t.Fatal(err)
	}

	e := newEstimator(t, config.Default(), Deps{Collections: collection.NewAdapter(s)})
	e.UseCalls([]consensus.LocusConsensus{
		call("1", "Ribosomal_L2", 99, ecoli),
		call("2", "Ribosomal_L3", 98, ecoli),
		call("3", "Ribosomal_L4", 100, bsub),
		call("4", "Ribosomal_S2", 97, bsub),
	})

	_, err = e.Reduce(Request{Collection: "CONCOCT", Groups: []string{"bin_1", "bin_7"}})
	var ee *collection.EmptySelectionError
	if !errors.As(err, &ee) || ee.Missing[0] != "bin_7" {
		t.Fatalf("expected EmptySelectionError naming bin_7, returned %v", err)
	}
	_, err = e.Reduce(Request{Collection: "MetaBAT"})
	var ne *collection.NotFoundError
	if !errors.As(err, &ne) {
		t.Fatalf("expected NotFoundError, returned %v", err)
	}

	report, err := e.Reduce(Request{Collection: "CONCOCT"})
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Populations) != 3 {
		t.Fatalf("expected 3 bins, returned %d", len(report.Populations))
	}
	b1, b2, b3 := report.Populations[0], report.Populations[1], report.Populations[2]
	if b1.PopulationID != "bin_1" || b1.TotalLoci != 3 || b1.SupportingLoci != 2 || b1.Ranks != ecoli {
		t.Errorf("unexpected call of bin_1: %+v", b1)
	}
	if b2.TotalLoci != 1 || b2.Ranks != bsub {
		t.Errorf("unexpected call of bin_2: %+v", b2)
	}
	if b3.TotalLoci != 0 || !b3.Ranks.IsNull() {
		t.Errorf("bin without loci should be all-null: %+v", b3)
	}

	// bin colors
	data, err := report.Table()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), store.DefaultColor(1)) {
		t.Errorf("color of bin_2 missing in table:\n%s", data)
	}
	var buf bytes.Buffer
	if err = report.WriteDebug(&buf); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "Hits for bin_1 ("+store.DefaultColor(0)+")") {
		t.Errorf("color of bin_1 missing in debug output:\n%s", buf.String())
	}
}

func TestCollectionModeLocusInTwoSplits(t *testing.T) {
	s, err := store.Open(filepath.Join(t.TempDir(), "project.db"), store.DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	_, err = s.ImportGenesInSplits([]store.SplitLocus{
		{Split: "s1", Locus: "1"}, {Split: "s2", Locus: "1"},
		{Split: "s2", Locus: "3"}, {Split: "s2", Locus: "5"},
	}, 10)
	if err != nil {
		t.Fatal(err)
	}
	_, err = s.ImportCollection("CONCOCT", map[string][]string{"bin_1": {"s1", "s2"}}, nil, 10)
	if err != nil {
		t.Fatal(err)
	}

	e := newEstimator(t, config.Default(), Deps{Collections: collection.NewAdapter(s)})
	e.UseCalls([]consensus.LocusConsensus{
		call("1", "Ribosomal_L2", 99, ecoli),
		call("3", "Ribosomal_L3", 98, bsub),
		call("5", "Ribosomal_L4", 100, bsub),
	})

	report, err := e.Reduce(Request{Collection: "CONCOCT"})
	if err != nil {
		t.Fatal(err)
	}
	b1 := report.Populations[0]
	if b1.TotalLoci != 3 || b1.SupportingLoci != 2 || b1.Ranks != bsub {
		t.Errorf("a locus in two splits should be counted once: %+v", b1)
	}
}

type fakeSearcher struct {
	hits map[string]string // gene -> tabular output
}

func (s *fakeSearcher) Search(ctx context.Context, db string, queries []byte) ([]byte, error) {
	gene := strings.TrimSuffix(filepath.Base(db), refdata.SearchDBExt)
	out, ok := s.hits[gene]
	if !ok {
		return nil, fmt.Errorf("search failed")
	}
	return []byte(out), nil
}

func TestSearch(t *testing.T) {
	layout, err := refdata.NewLayout(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	os.MkdirAll(layout.SearchDBDir(), 0755)
	for _, gene := range []string{"Ribosomal_L2", "Ribosomal_L3"} {
		os.WriteFile(layout.DatabasePath(gene), []byte("db"), 0644)
	}

	idx := taxon.NewIndex()
	idx.Add("A1", ecoli)
	idx.Add("A2", ecoli.Truncate(int(taxon.Genus)))
	idx.Add("B1", bsub)

	searcher := &fakeSearcher{hits: map[string]string{
		"Ribosomal_L2": "1\tA1\t99\t1\t1\t1\t1\t1\t1\t1\t1e-9\t300\n" +
			"1\tA2\t99\t1\t1\t1\t1\t1\t1\t1\t1e-9\t290\n" +
			"1\tB1\t80\t1\t1\t1\t1\t1\t1\t1\t1e-9\t200\n",
	}}

	var nResults int
	e := newEstimator(t, config.Default(), Deps{
		Layout:   layout,
		Index:    idx,
		Searcher: searcher,
		Progress: func(search.Result) { nResults++ },
	})

	queries := map[string][]search.Query{
		"Ribosomal_L2": {{LocusID: "1", Sequence: "MK"}},
		"Ribosomal_L3": {{LocusID: "2", Sequence: "MK"}},
	}
	if err = e.Search(context.Background(), queries); err != nil {
		t.Fatal(err)
	}
	if nResults != 2 {
		t.Errorf("expected 2 results, returned %d", nResults)
	}
	if f := e.FailedGenes(); len(f) != 1 || f[0] != "Ribosomal_L3" {
		t.Errorf("unexpected failed genes: %v", f)
	}
	calls := e.Calls()
	if len(calls) != 1 {
		t.Fatalf("expected 1 call, returned %d", len(calls))
	}
	if calls[0].Ranks != ecoli.Truncate(int(taxon.Genus)) || calls[0].Accession != consensus.ConsensusAccession {
		t.Errorf("unexpected call: %+v", calls[0])
	}
	if len(e.Hits("1")) != 3 {
		t.Errorf("raw hits should be kept")
	}

	var buf bytes.Buffer
	if err = WriteHits(&buf, e.Hits("1"), calls[0]); err != nil {
		t.Fatal(err)
	}

	w := &memWriter{}
	if err = e.Persist(w); err != nil {
		t.Fatal(err)
	}
	if len(w.calls) != 1 || !w.closed {
		t.Errorf("calls not persisted")
	}
}

// cancelingSearcher cancels the run when searching block.
type cancelingSearcher struct {
	fakeSearcher
	block  string
	cancel context.CancelFunc
}

func (s *cancelingSearcher) Search(ctx context.Context, db string, queries []byte) ([]byte, error) {
	if strings.TrimSuffix(filepath.Base(db), refdata.SearchDBExt) == s.block {
		s.cancel()
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return s.fakeSearcher.Search(ctx, db, queries)
}

func TestSearchCanceled(t *testing.T) {
	layout, err := refdata.NewLayout(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	os.MkdirAll(layout.SearchDBDir(), 0755)
	for _, gene := range []string{"Ribosomal_L2", "Ribosomal_L3"} {
		os.WriteFile(layout.DatabasePath(gene), []byte("db"), 0644)
	}

	idx := taxon.NewIndex()
	idx.Add("A1", ecoli)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	searcher := &cancelingSearcher{
		fakeSearcher: fakeSearcher{hits: map[string]string{
			"Ribosomal_L2": "1\tA1\t99\t1\t1\t1\t1\t1\t1\t1\t1e-9\t300\n",
		}},
		block:  "Ribosomal_L3",
		cancel: cancel,
	}

	e := newEstimator(t, config.Default(), Deps{Layout: layout, Index: idx, Searcher: searcher})
	err = e.Search(ctx, map[string][]search.Query{
		"Ribosomal_L2": {{LocusID: "1", Sequence: "MK"}},
		"Ribosomal_L3": {{LocusID: "2", Sequence: "MK"}},
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, returned %v", err)
	}

	calls := e.Calls()
	if len(calls) != 1 || calls[0].LocusID != "1" || calls[0].Ranks != ecoli {
		t.Fatalf("calls of genes done before cancellation should be kept: %+v", calls)
	}
	if f := e.FailedGenes(); len(f) != 0 {
		t.Errorf("canceled genes should not be reported as failed: %v", f)
	}

	report, err := e.Reduce(Request{})
	if err != nil {
		t.Fatal(err)
	}
	if p := report.Populations[0]; p.TotalLoci != 1 || p.Ranks != ecoli {
		t.Errorf("unexpected call: %+v", p)
	}
}

func TestSearchMissingDatabase(t *testing.T) {
	layout, _ := refdata.NewLayout(t.TempDir())
	e := newEstimator(t, config.Default(), Deps{
		Layout:   layout,
		Index:    taxon.NewIndex(),
		Searcher: &fakeSearcher{},
	})
	err := e.Search(context.Background(), map[string][]search.Query{
		"Ribosomal_L2": {{LocusID: "1", Sequence: "MK"}},
	})
	var me *refdata.MissingDataError
	if !errors.As(err, &me) || len(me.Files) != 1 {
		t.Errorf("expected MissingDataError, returned %v", err)
	}
}

type memWriter struct {
	calls  []consensus.LocusConsensus
	closed bool
}

func (w *memWriter) Add(c consensus.LocusConsensus) error {
	w.calls = append(w.calls, c)
	return nil
}

func (w *memWriter) Close() error {
	w.closed = true
	return nil
}

func TestReadQueries(t *testing.T) {
	file := filepath.Join(t.TempDir(), "scgs.fa")
	os.WriteFile(file, []byte(">1 Ribosomal_L2 contig_1\nMKLV\n>2 Ribosomal_L2\nMKAA\n>3 NotAnSCG\nMK\n>4 Ribosomal_S2\nMKKK\n"), 0644)

	queries, err := ReadQueries([]string{file}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(queries) != 2 || len(queries["Ribosomal_L2"]) != 2 || queries["Ribosomal_S2"][0].Sequence != "MKKK" {
		t.Errorf("unexpected queries: %v", queries)
	}

	os.WriteFile(file, []byte(">1\nMKLV\n"), 0644)
	if _, err = ReadQueries([]string{file}, nil); err == nil {
		t.Errorf("missing gene name should be reported")
	}

	os.WriteFile(file, []byte(">1 Ribosomal_L2\nMKLV\n>1 Ribosomal_L2\nMKLV\n"), 0644)
	if _, err = ReadQueries([]string{file}, nil); err == nil {
		t.Errorf("duplicated locus should be reported")
	}
}
