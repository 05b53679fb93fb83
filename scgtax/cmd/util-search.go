// Copyright © 2020-2021 Wei Shen <shenwei356@gmail.com>
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

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/shenwei356/scgtax/scgtax/cmd/config"
	"github.com/shenwei356/scgtax/scgtax/cmd/estimate"
	"github.com/shenwei356/scgtax/scgtax/cmd/refdata"
	"github.com/shenwei356/scgtax/scgtax/cmd/search"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

// searchLoci reads SCG loci from FASTA files and searches them against
// reference databases. The returned estimator is ready for reducing or
// persisting. A non-nil error along with an estimator means the search
// was canceled and only calls of finished SCGs are kept.
func searchLoci(opt *Options, cfg config.Config, files []string, deps estimate.Deps, tmpBase string) (*estimate.Estimator, error) {
	if opt.Verbose || opt.Log2File {
		log.Infof("reading SCG loci from %d file(s) ...", len(files))
	}
	queries, err := estimate.ReadQueries(files, libLogger(opt))
	if err != nil {
		return nil, err
	}
	var nLoci int
	for _, qs := range queries {
		nLoci += len(qs)
	}
	if nLoci == 0 {
		return nil, fmt.Errorf("no loci of SCGs found in %d file(s)", len(files))
	}
	if opt.Verbose || opt.Log2File {
		log.Infof("%s loci of %d SCGs loaded", humanize.Comma(int64(nLoci)), len(queries))
	}

	layout, err := refdata.NewLayout(cfg.DataDir)
	if err != nil {
		return nil, err
	}

	tmpDir, err := os.MkdirTemp(tmpBase, "scgtax-")
	if err != nil {
		return nil, fmt.Errorf("fail to create temporary directory: %s", err)
	}
	defer os.RemoveAll(tmpDir)

	diamond := search.NewDiamond(cfg.Diamond)
	diamond.MaxTargetSeqs = cfg.MaxTargetSeqs
	diamond.Evalue = cfg.Evalue
	diamond.MinPctID = cfg.MinPctID
	diamond.Threads = cfg.NumThreads
	diamond.TmpDir = tmpDir

	// process bar
	var pbs *mpb.Progress
	var bar *mpb.Bar
	if opt.Verbose {
		pbs = mpb.New(mpb.WithWidth(40), mpb.WithOutput(os.Stderr))
		bar = pbs.AddBar(int64(len(queries)),
			mpb.PrependDecorators(
				decor.Name("searched SCGs: ", decor.WC{W: len("searched SCGs: "), C: decor.DindentRight}),
				decor.Name("", decor.WCSyncSpaceR),
				decor.CountersNoUnit("%d / %d", decor.WCSyncWidth),
			),
			mpb.AppendDecorators(
				decor.Name("ETA: ", decor.WC{W: len("ETA: ")}),
				decor.EwmaETA(decor.ET_STYLE_GO, 3),
				decor.OnComplete(decor.Name(""), ". done"),
			),
		)
		deps.Progress = func(r search.Result) {
			bar.EwmaIncrBy(1, r.Elapsed)
		}
	}

	deps.Layout = layout
	deps.Searcher = diamond
	deps.Logger = libLogger(opt)

	est, err := estimate.New(cfg, deps)
	if err != nil {
		return nil, err
	}
	if err = est.Load(); err != nil {
		return nil, err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errSearch := est.Search(ctx, queries)
	if pbs != nil {
		if !bar.Completed() {
			bar.Abort(false)
		}
		pbs.Wait()
	}
	if errSearch != nil && ctx.Err() == nil {
		return nil, errSearch
	}

	if failed := est.FailedGenes(); len(failed) > 0 {
		log.Warningf("%d SCG(s) failed to search: %v", len(failed), failed)
	}
	if opt.Verbose || opt.Log2File {
		log.Infof("SCGs of loci with hits: %s", est.SCGFrequencies())
	}
	return est, errSearch
}
