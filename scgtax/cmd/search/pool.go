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

// Package search aligns marker gene sequences against per-gene reference
// databases with a fixed pool of workers.
package search

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/shenwei356/go-logging"
	"github.com/shenwei356/scgtax/scgtax/cmd/consensus"
	"github.com/shenwei356/scgtax/scgtax/cmd/refdata"
	"github.com/shenwei356/scgtax/scgtax/cmd/taxon"
	"github.com/shenwei356/util/pathutil"
)

// Query is a marker gene sequence of a locus.
type Query struct {
	LocusID  string
	Sequence string
}

// Task contains all queries of a marker gene.
type Task struct {
	Gene    string
	Queries []Query
}

// FASTA returns queries in FASTA format.
func (t Task) FASTA() []byte {
	var buf bytes.Buffer
	for _, q := range t.Queries {
		buf.WriteByte('>')
		buf.WriteString(q.LocusID)
		buf.WriteByte('\n')
		buf.WriteString(q.Sequence)
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// NewTasks creates one task per gene, sorted by gene name,
// with queries sorted by locus id.
func NewTasks(queries map[string][]Query) []Task {
	tasks := make([]Task, 0, len(queries))
	for gene, qs := range queries {
		qs2 := make([]Query, len(qs))
		copy(qs2, qs)
		sort.Slice(qs2, func(i, j int) bool { return qs2[i].LocusID < qs2[j].LocusID })
		tasks = append(tasks, Task{Gene: gene, Queries: qs2})
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].Gene < tasks[j].Gene })
	return tasks
}

// Result is the search result of a task.
type Result struct {
	Gene    string
	Hits    map[string][]consensus.Hit // locus id -> hits
	Err     error
	Elapsed time.Duration
}

// MissingDatabaseError means the search database of a gene does not exist.
type MissingDatabaseError struct {
	Gene string
	Path string
}

func (e *MissingDatabaseError) Error() string {
	return fmt.Sprintf("search database of %s not found: %s", e.Gene, e.Path)
}

// PoolOptions contains options of a Pool.
type PoolOptions struct {
	NumWorkers int
	Layout     refdata.Layout
	Index      *taxon.Index
	Searcher   Searcher
	Logger     *logging.Logger
}

// Pool runs tasks with a fixed number of workers.
// Send tasks to InCh, close it after all tasks are sent, and call Wait
// after consuming OutCh in another goroutine.
type Pool struct {
	opt PoolOptions

	wg sync.WaitGroup

	InCh  chan Task
	OutCh chan Result
}

// NewPool starts the workers.
func NewPool(ctx context.Context, opt PoolOptions) *Pool {
	if opt.NumWorkers < 1 {
		opt.NumWorkers = 1
	}
	if opt.Index == nil {
		opt.Index = taxon.NewIndex()
	}
	p := &Pool{
		opt:   opt,
		InCh:  make(chan Task, opt.NumWorkers),
		OutCh: make(chan Result, opt.NumWorkers),
	}

	p.wg.Add(opt.NumWorkers)
	for i := 0; i < opt.NumWorkers; i++ {
		go func() {
			defer p.wg.Done()
			for task := range p.InCh {
				p.OutCh <- p.handle(ctx, task)
			}
		}()
	}
	return p
}

func (p *Pool) handle(ctx context.Context, task Task) Result {
	t := time.Now()
	r := Result{Gene: task.Gene}
	if err := ctx.Err(); err != nil {
		r.Err = err
		return r
	}

	db := p.opt.Layout.DatabasePath(task.Gene)
	ok, err := pathutil.Exists(db)
	if err != nil {
		r.Err = err
		return r
	}
	if !ok {
		r.Err = &MissingDatabaseError{Gene: task.Gene, Path: db}
		return r
	}

	out, err := p.opt.Searcher.Search(ctx, db, task.FASTA())
	if err != nil {
		// a process killed by cancellation reports the context error
		if ctxErr := ctx.Err(); ctxErr != nil {
			r.Err = ctxErr
		} else {
			r.Err = errors.Wrapf(err, "search %s", task.Gene)
		}
		return r
	}
	r.Hits, r.Err = ParseTabularBytes(out, task.Gene, p.opt.Index)
	r.Elapsed = time.Since(t)
	return r
}

// Wait waits all workers to finish and closes OutCh.
func (p *Pool) Wait() {
	p.wg.Wait()
	close(p.OutCh)
}

// Run sends all tasks to the pool and collects results in gene order.
// fn, if not nil, is called for each result as it arrives.
// If ctx is canceled, remaining tasks are not sent, and results
// collected so far, including genes failed before the cancellation,
// are returned along with the context error.
func (p *Pool) Run(ctx context.Context, tasks []Task, fn func(Result)) ([]Result, error) {
	go func() {
		defer close(p.InCh)
		for _, task := range tasks {
			select {
			case p.InCh <- task:
			case <-ctx.Done():
				return
			}
		}
	}()

	done := make(chan int)
	results := make([]Result, 0, len(tasks))
	go func() {
		for r := range p.OutCh {
			if fn != nil {
				fn(r)
			}
			results = append(results, r)
		}
		done <- 1
	}()

	p.Wait()
	<-done

	sort.Slice(results, func(i, j int) bool { return results[i].Gene < results[j].Gene })

	if err := ctx.Err(); err != nil {
		partial := results[:0]
		for _, r := range results {
			if !errors.Is(r.Err, err) {
				partial = append(partial, r)
			}
		}
		if p.opt.Logger != nil {
			p.opt.Logger.Warningf("search canceled, %d/%d gene(s) done", len(partial), len(tasks))
		}
		return partial, err
	}
	return results, nil
}

// Collect merges hits of all results into a locus id -> hits map,
// and returns names of failed genes. A locus hitting more than one
// gene keeps hits of the first gene in name order.
func Collect(results []Result, logger *logging.Logger) (map[string][]consensus.Hit, []string) {
	hits := make(map[string][]consensus.Hit, 1024)
	genes := make(map[string][]string, 8) // loci with multiple genes
	failed := make([]string, 0, 4)

	sorted := make([]Result, len(results))
	copy(sorted, results)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Gene < sorted[j].Gene })

	for _, r := range sorted {
		if r.Err != nil {
			failed = append(failed, r.Gene)
			if logger != nil {
				logger.Warningf("search failed for %s: %s", r.Gene, r.Err)
			}
			continue
		}
		for locus, list := range r.Hits {
			if len(list) == 0 {
				continue
			}
			if prev, ok := hits[locus]; ok {
				if _, ok = genes[locus]; !ok {
					genes[locus] = []string{prev[0].Gene}
				}
				genes[locus] = append(genes[locus], r.Gene)
				continue
			}
			hits[locus] = list
		}
	}

	if logger != nil && len(genes) > 0 {
		loci := make([]string, 0, len(genes))
		for locus := range genes {
			loci = append(loci, locus)
		}
		sort.Strings(loci)
		for _, locus := range loci {
			logger.Warningf("locus %s hits more than one SCG: %v, only %s is used",
				locus, genes[locus], genes[locus][0])
		}
	}
	return hits, failed
}
