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

// Package estimate drives taxonomy estimation of genomes, bins of
// collections, and metagenomes from per-locus calls of single-copy core
// genes.
//
// An Estimator runs one estimation:
//
//	e, _ := estimate.New(cfg, deps)
//	e.Load()
//	e.Search(ctx, queries) // or e.UseCalls(stored)
//	report, _ := e.Reduce(req)
//	e.Finalize()
package estimate

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/shenwei356/go-logging"
	"github.com/shenwei356/scgtax/scgtax/cmd/collection"
	"github.com/shenwei356/scgtax/scgtax/cmd/config"
	"github.com/shenwei356/scgtax/scgtax/cmd/consensus"
	"github.com/shenwei356/scgtax/scgtax/cmd/refdata"
	"github.com/shenwei356/scgtax/scgtax/cmd/search"
	"github.com/shenwei356/scgtax/scgtax/cmd/taxon"
)

// AmbiguousModeError means metagenome mode is requested with a collection.
type AmbiguousModeError struct {
	Collection string
}

func (e *AmbiguousModeError) Error() string {
	return fmt.Sprintf("metagenome mode could not be used with a collection (%s): "+
		"bins of a collection are treated as genomes", e.Collection)
}

// RedundancyError means too many SCGs occur more than once for the input
// to represent a single genome.
type RedundancyError struct {
	Redundant int
	Total     int
	Max       float64
}

func (e *RedundancyError) Error() string {
	return fmt.Sprintf("too much redundancy of SCGs to assign taxonomy for a genome: "+
		"%d of %d SCGs (%.1f%%) occur more than once, maximum: %.1f%%. "+
		"try the metagenome mode (--metagenome-mode) or force it with --just-do-it",
		e.Redundant, e.Total, float64(e.Redundant)*100/float64(e.Total), e.Max*100)
}

// CallWriter persists locus calls.
type CallWriter interface {
	Add(c consensus.LocusConsensus) error
	Close() error
}

// Deps contains collaborators of an estimation run.
type Deps struct {
	Layout refdata.Layout

	// loaded from Layout in Load if nil and Searcher is given
	Index *taxon.Index

	// nil for estimation from stored calls
	Searcher search.Searcher

	// nil if no collections available
	Collections *collection.Adapter

	// project name used in genome and metagenome mode
	ProjectName string

	// called for every search result
	Progress func(search.Result)

	Logger *logging.Logger
}

// Request selects what to estimate.
type Request struct {
	Collection string
	Groups     []string // empty for all groups of the collection
}

// Estimator runs one estimation.
type Estimator struct {
	cfg  config.Config
	deps Deps

	state State

	hits        map[string][]consensus.Hit // locus id -> hits of fresh search
	calls       []consensus.LocusConsensus // sorted by locus id and gene
	failedGenes []string
}

// New creates an Estimator, options are validated.
func New(cfg config.Config, deps Deps) (*Estimator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.ProjectName == "" {
		deps.ProjectName = "Unknown"
	}
	return &Estimator{cfg: cfg, deps: deps}, nil
}

func (e *Estimator) infof(format string, args ...interface{}) {
	if e.deps.Logger != nil {
		e.deps.Logger.Infof(format, args...)
	}
}

func (e *Estimator) warningf(format string, args ...interface{}) {
	if e.deps.Logger != nil {
		e.deps.Logger.Warningf(format, args...)
	}
}

// Load loads the reference taxonomy index for a fresh search.
func (e *Estimator) Load() error {
	if err := e.advance(Loaded, Uninitialized); err != nil {
		return err
	}
	if e.deps.Searcher == nil || e.deps.Index != nil {
		return nil
	}

	if err := e.deps.Layout.Check(nil); err != nil {
		return err
	}
	idx, err := taxon.LoadIndex(e.deps.Layout.TaxonomyFile(), e.cfg.NumThreads, e.deps.Logger)
	if err != nil {
		return err
	}
	e.infof("%d accessions loaded from %s", idx.Len(), e.deps.Layout.TaxonomyFile())
	e.deps.Index = idx
	return nil
}

// Search aligns sequences of loci and computes the call of every locus.
// Databases of all genes are checked before searching.
// Genes failed to search are logged and skipped.
// If ctx is canceled, calls of finished genes are kept and the context
// error is returned.
func (e *Estimator) Search(ctx context.Context, queries map[string][]search.Query) error {
	if e.deps.Searcher == nil {
		return errors.New("no searcher given")
	}
	if err := e.advance(Searched, Loaded); err != nil {
		return err
	}

	genes := make([]string, 0, len(queries))
	for gene := range queries {
		genes = append(genes, gene)
	}
	sort.Strings(genes)
	missing, err := e.deps.Layout.MissingDatabases(genes)
	if err != nil {
		return err
	}
	if len(missing) > 0 {
		return &refdata.MissingDataError{Dir: e.deps.Layout.Dir, Files: missing}
	}

	pool := search.NewPool(ctx, search.PoolOptions{
		NumWorkers: e.cfg.NumWorkers,
		Layout:     e.deps.Layout,
		Index:      e.deps.Index,
		Searcher:   e.deps.Searcher,
		Logger:     e.deps.Logger,
	})
	tasks := search.NewTasks(queries)
	results, errRun := pool.Run(ctx, tasks, e.deps.Progress)

	var hits map[string][]consensus.Hit
	hits, e.failedGenes = search.Collect(results, e.deps.Logger)
	e.hits = hits

	calls := make([]consensus.LocusConsensus, 0, len(hits))
	var c consensus.LocusConsensus
	for _, list := range hits {
		c, err = consensus.ReduceHits(list)
		if err != nil { // no hits
			continue
		}
		calls = append(calls, c)
	}
	sortCalls(calls)
	e.calls = calls

	var nQueries int
	for _, qs := range queries {
		nQueries += len(qs)
	}
	e.infof("%d of %d loci have hits in %d gene(s)", len(calls), nQueries, len(tasks))

	return errRun
}

// UseCalls uses stored locus calls instead of a fresh search.
func (e *Estimator) UseCalls(calls []consensus.LocusConsensus) error {
	if err := e.advance(Searched, Loaded); err != nil {
		return err
	}
	e.calls = make([]consensus.LocusConsensus, len(calls))
	copy(e.calls, calls)
	sortCalls(e.calls)
	return nil
}

func sortCalls(calls []consensus.LocusConsensus) {
	sort.Slice(calls, func(i, j int) bool {
		if calls[i].LocusID == calls[j].LocusID {
			return calls[i].Gene < calls[j].Gene
		}
		return calls[i].LocusID < calls[j].LocusID
	})
}

// Calls returns locus calls, sorted by locus id.
func (e *Estimator) Calls() []consensus.LocusConsensus { return e.calls }

// Hits returns hits of a locus in a fresh search.
func (e *Estimator) Hits(locus string) []consensus.Hit { return e.hits[locus] }

// FailedGenes returns genes failed to search.
func (e *Estimator) FailedGenes() []string { return e.failedGenes }

// Persist writes all locus calls with w, which is closed after that.
func (e *Estimator) Persist(w CallWriter) error {
	if e.state != Searched {
		return errors.Wrapf(ErrStateTransition, "persisting in state %s", e.state)
	}
	for _, c := range e.calls {
		if err := w.Add(c); err != nil {
			return err
		}
	}
	return w.Close()
}

// Reduce computes population calls.
func (e *Estimator) Reduce(req Request) (*Report, error) {
	if e.state != Searched {
		return nil, errors.Wrapf(ErrStateTransition, "%s -> %s", e.state, Reduced)
	}
	if e.cfg.MetagenomeMode && req.Collection != "" {
		return nil, &AmbiguousModeError{Collection: req.Collection}
	}

	var report *Report
	var err error
	switch {
	case e.cfg.MetagenomeMode:
		report = e.reduceMetagenome()
	case req.Collection != "":
		report, err = e.reduceCollection(req)
	default:
		report, err = e.reduceGenome()
	}
	if err != nil {
		return nil, err
	}
	report.FailedGenes = e.failedGenes

	e.state = Reduced
	return report, nil
}

// Finalize ends the run.
func (e *Estimator) Finalize() error {
	return e.advance(Finalized, Searched, Reduced)
}

// ------------------------------------------------------------------------

// geneFrequencies counts loci of each gene, genes of the SCG vocabulary
// are all included.
func geneFrequencies(calls []consensus.LocusConsensus) map[string]int {
	freqs := make(map[string]int, len(refdata.SCGFastas))
	for scg := range refdata.SCGFastas {
		freqs[scg] = 0
	}
	for _, c := range calls {
		freqs[c.Gene]++
	}
	return freqs
}

// mostFrequentGene returns the gene with the most loci, ties are broken
// by gene name.
func mostFrequentGene(freqs map[string]int) (string, int) {
	var best string
	var max int
	first := true
	for gene, n := range freqs {
		if first || n > max || (n == max && gene < best) {
			best, max = gene, n
			first = false
		}
	}
	return best, max
}

// checkRedundancy returns a RedundancyError if the fraction of SCGs
// occurring more than once exceeds the threshold.
func checkRedundancy(freqs map[string]int, max float64) error {
	var redundant int
	for _, n := range freqs {
		if n > 1 {
			redundant++
		}
	}
	if len(freqs) == 0 {
		return nil
	}
	if float64(redundant)/float64(len(freqs)) > max {
		return &RedundancyError{Redundant: redundant, Total: len(freqs), Max: max}
	}
	return nil
}

func (e *Estimator) reduceGenome() (*Report, error) {
	if err := checkRedundancy(geneFrequencies(e.calls), e.cfg.MaxRedundancy); err != nil {
		if !e.cfg.JustDoIt {
			return nil, err
		}
		e.warningf("%s. continue as --just-do-it is given, but the result may not be reliable", err)
	}

	call := consensus.ReducePopulation(e.deps.ProjectName, e.calls, consensus.ModeGenome)
	return &Report{
		Mode:        consensus.ModeGenome,
		Title:       fmt.Sprintf("Estimated taxonomy for %q", e.deps.ProjectName),
		Populations: []consensus.PopulationCall{call},
	}, nil
}

func (e *Estimator) reduceCollection(req Request) (*Report, error) {
	if e.deps.Collections == nil {
		return nil, errors.New("no collections available")
	}
	m, err := e.deps.Collections.Select(req.Collection, req.Groups)
	if err != nil {
		return nil, err
	}
	loci, err := e.deps.Collections.Loci(m)
	if err != nil {
		return nil, err
	}

	byLocus := make(map[string][]consensus.LocusConsensus, len(e.calls))
	for _, c := range e.calls {
		byLocus[c.LocusID] = append(byLocus[c.LocusID], c)
	}

	report := &Report{
		Mode:       consensus.ModeGenome,
		Title:      fmt.Sprintf("Estimated taxonomy for collection %q", req.Collection),
		Collection: req.Collection,
		Colors:     m.Colors,
	}
	var nSplits int
	for _, g := range m.GroupNames() {
		nSplits += len(m.Groups[g])
		calls := make([]consensus.LocusConsensus, 0, len(loci[g]))
		for _, locus := range loci[g] {
			calls = append(calls, byLocus[locus]...)
		}
		report.Populations = append(report.Populations,
			consensus.ReducePopulation(g, calls, consensus.ModeGenome))
	}
	e.infof("%d splits of %d bins in collection %s recovered", nSplits, len(m.Groups), req.Collection)
	return report, nil
}

func (e *Estimator) reduceMetagenome() *Report {
	freqs := geneFrequencies(e.calls)
	best, nBest := mostFrequentGene(freqs)

	gene := best
	if e.cfg.SCGNameForMetagenomeMode != "" {
		gene = e.cfg.SCGNameForMetagenomeMode
		if n := freqs[gene]; n < nBest {
			e.warningf("%s is used as requested, while another SCG is observed more times: %s (%d) vs %s (%d)",
				gene, best, nBest, gene, n)
		}
	} else {
		e.infof("%s (%d loci) is automatically chosen to survey the metagenome, "+
			"you can change it with --scg-name-for-metagenome-mode", gene, nBest)
	}

	loci := make([]consensus.LocusConsensus, 0, freqs[gene])
	for _, c := range e.calls {
		if c.Gene == gene {
			loci = append(loci, c)
		}
	}
	return &Report{
		Mode:  consensus.ModeMetagenome,
		Title: fmt.Sprintf("Taxa in metagenome %q", e.deps.ProjectName),
		SCG:   gene,
		Loci:  loci,
	}
}

// SCGFrequencies returns "gene (n)" of genes with loci in descending order
// of counts.
func (e *Estimator) SCGFrequencies() string {
	freqs := geneFrequencies(e.calls)
	genes := make([]string, 0, len(freqs))
	for g, n := range freqs {
		if n > 0 {
			genes = append(genes, g)
		}
	}
	sort.Slice(genes, func(i, j int) bool {
		if freqs[genes[i]] == freqs[genes[j]] {
			return genes[i] < genes[j]
		}
		return freqs[genes[i]] > freqs[genes[j]]
	})
	items := make([]string, len(genes))
	for i, g := range genes {
		items[i] = fmt.Sprintf("%s (%d)", g, freqs[g])
	}
	return strings.Join(items, ", ")
}
