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
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/shenwei356/bio/seqio/fastx"
	"github.com/shenwei356/go-logging"
	"github.com/shenwei356/scgtax/scgtax/cmd/refdata"
	"github.com/shenwei356/scgtax/scgtax/cmd/taxon"
	"github.com/shenwei356/xopen"
)

// Aligner builds search databases and searches against them.
type Aligner interface {
	Searcher
	MakeDB(ctx context.Context, fasta string, db string) error
}

// LowIdentity is the lowest percent identity between reference sequences
// of a taxon for an SCG.
type LowIdentity struct {
	Gene            string
	Rank            taxon.Rank
	Taxon           string // rank-prefixed lineage, e.g., "d__Bacteria;p__Firmicutes"
	Sequences       int
	PercentIdentity float64
}

// LowIdentOptions contains options of LowIdentities.
type LowIdentOptions struct {
	Genes      []string
	NumWorkers int
	TmpDir     string
	Index      *taxon.Index
	Logger     *logging.Logger
}

type identGroup struct {
	rank taxon.Rank
	name string
	seqs []int // indexes of sequences
}

type identJob struct {
	gene  string
	id    int
	group *identGroup
	fasta []byte
}

// LowIdentities aligns reference sequences of every taxon below the domain
// rank against themselves, and reports the lowest percent identity of each
// taxon and SCG. Taxa with a single sequence get 100. Reference sequences
// of unknown accessions are ignored.
func LowIdentities(ctx context.Context, layout refdata.Layout, opt LowIdentOptions, aligner Aligner) ([]LowIdentity, error) {
	if opt.NumWorkers < 1 {
		opt.NumWorkers = 1
	}
	if opt.Index == nil {
		return nil, errors.Errorf("taxonomy index needed")
	}
	tmpDir, err := os.MkdirTemp(opt.TmpDir, "scgtax-lowident-")
	if err != nil {
		return nil, errors.Wrap(err, "fail to create temporary directory")
	}
	defer os.RemoveAll(tmpDir)

	genes := make([]string, len(opt.Genes))
	copy(genes, opt.Genes)
	sort.Strings(genes)

	results := make([]LowIdentity, 0, 1024)
	for _, gene := range genes {
		if err = ctx.Err(); err != nil {
			return nil, err
		}
		list, err := lowIdentitiesOfGene(ctx, layout, gene, tmpDir, opt, aligner)
		if err != nil {
			return nil, err
		}
		results = append(results, list...)
	}
	return results, nil
}

func lowIdentitiesOfGene(ctx context.Context, layout refdata.Layout, gene string,
	tmpDir string, opt LowIdentOptions, aligner Aligner) ([]LowIdentity, error) {
	file := layout.FastaPath(gene)
	reader, err := fastx.NewReader(nil, file, "")
	if err != nil {
		return nil, errors.Wrapf(err, "read reference sequences of %s", gene)
	}

	ids := make([][]byte, 0, 1024)
	seqs := make([][]byte, 0, 1024)
	groups := make(map[string]*identGroup, 1024)
	var record *fastx.Record
	var acc, key string
	var v taxon.RankVector
	var nUnknown int
	for {
		record, err = reader.Read()
		if err != nil {
			if err == io.EOF {
				break
			}
			reader.Close()
			return nil, errors.Wrapf(err, "read reference sequences of %s", gene)
		}
		acc = string(record.ID)
		if !opt.Index.Has(acc) {
			nUnknown++
			continue
		}
		v = opt.Index.Lookup(acc)

		i := len(seqs)
		ids = append(ids, []byte(acc))
		seqs = append(seqs, append([]byte(nil), record.Seq.Seq...))

		for r := taxon.Phylum; r < taxon.NumRanks; r++ {
			if v[r] == "" {
				break
			}
			key = v.Truncate(int(r) + 1).String()
			g, ok := groups[key]
			if !ok {
				g = &identGroup{rank: r, name: key}
				groups[key] = g
			}
			g.seqs = append(g.seqs, i)
		}
	}
	reader.Close()

	if nUnknown > 0 && opt.Logger != nil {
		opt.Logger.Warningf("%s: %d reference sequence(s) of unknown accessions ignored", gene, nUnknown)
	}

	results := make([]LowIdentity, 0, len(groups))
	jobs := make([]identJob, 0, len(groups))
	for _, g := range groups {
		if len(g.seqs) < 2 {
			results = append(results, LowIdentity{Gene: gene, Rank: g.rank, Taxon: g.name,
				Sequences: len(g.seqs), PercentIdentity: 100})
			continue
		}
		var buf bytes.Buffer
		for _, i := range g.seqs {
			buf.WriteByte('>')
			buf.Write(ids[i])
			buf.WriteByte('\n')
			buf.Write(seqs[i])
			buf.WriteByte('\n')
		}
		jobs = append(jobs, identJob{gene: gene, group: g, fasta: buf.Bytes()})
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].group.name < jobs[j].group.name })
	for i := range jobs {
		jobs[i].id = i
	}

	if opt.Logger != nil {
		opt.Logger.Infof("  %s: aligning sequences of %d taxa", gene, len(jobs))
	}

	var mu sync.Mutex
	var firstErr error
	var wg sync.WaitGroup
	tokens := make(chan int, opt.NumWorkers)
	for _, job := range jobs {
		mu.Lock()
		stop := firstErr != nil
		mu.Unlock()
		if stop || ctx.Err() != nil {
			break
		}

		tokens <- 1
		wg.Add(1)
		go func(job identJob) {
			defer func() {
				wg.Done()
				<-tokens
			}()
			pident, err := selfAlign(ctx, tmpDir, job, aligner)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = errors.Wrapf(err, "align sequences of %s for %s", job.group.name, job.gene)
				}
				return
			}
			results = append(results, LowIdentity{Gene: job.gene, Rank: job.group.rank, Taxon: job.group.name,
				Sequences: len(job.group.seqs), PercentIdentity: pident})
		}(job)
	}
	wg.Wait()

	if err = ctx.Err(); err != nil {
		return nil, err
	}
	if firstErr != nil {
		return nil, firstErr
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Rank != results[j].Rank {
			return results[i].Rank < results[j].Rank
		}
		return results[i].Taxon < results[j].Taxon
	})
	return results, nil
}

// selfAlign builds a database of the sequences of a job, searches them
// against it, and returns the lowest percent identity of all hits.
func selfAlign(ctx context.Context, tmpDir string, job identJob, aligner Aligner) (float64, error) {
	prefix := filepath.Join(tmpDir, fmt.Sprintf("%s-%d", job.gene, job.id))
	fasta := prefix + ".faa"
	db := prefix + refdata.SearchDBExt
	defer func() {
		os.Remove(fasta)
		os.Remove(db)
	}()

	if err := os.WriteFile(fasta, job.fasta, 0644); err != nil {
		return 0, err
	}
	if err := aligner.MakeDB(ctx, fasta, db); err != nil {
		return 0, err
	}
	out, err := aligner.Search(ctx, db, job.fasta)
	if err != nil {
		return 0, err
	}
	return minPercentIdentity(out)
}

// minPercentIdentity returns the lowest value of the third column of
// tabular output, 100 for no hits.
func minPercentIdentity(data []byte) (float64, error) {
	low := 100.0
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 64<<10), 16<<20)
	var items []string
	var line string
	var n int
	for scanner.Scan() {
		n++
		line = strings.TrimRight(scanner.Text(), "\r\n")
		if line == "" {
			continue
		}
		items = strings.Split(line, "\t")
		if len(items) < 3 {
			return 0, errors.Errorf("line %d: 3 columns at least expected, %d given", n, len(items))
		}
		pident, err := strconv.ParseFloat(items[2], 64)
		if err != nil {
			return 0, errors.Wrapf(err, "line %d: invalid percent identity", n)
		}
		if pident < low {
			low = pident
		}
	}
	return low, scanner.Err()
}

// WriteLowIdentities writes results in tab-delimited format.
func WriteLowIdentities(file string, list []LowIdentity) error {
	outfh, err := xopen.Wopen(file)
	if err != nil {
		return errors.Wrap(err, file)
	}
	defer outfh.Close()

	fmt.Fprintf(outfh, "gene\trank\ttaxon\tsequences\tmin_pct_id\n")
	for _, r := range list {
		fmt.Fprintf(outfh, "%s\t%s\t%s\t%d\t%s\n", r.Gene, r.Rank, r.Taxon, r.Sequences,
			strconv.FormatFloat(r.PercentIdentity, 'f', -1, 64))
	}
	return nil
}
