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
	"os"
	"os/signal"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/shenwei356/scgtax/scgtax/cmd/refdata"
	"github.com/shenwei356/scgtax/scgtax/cmd/search"
	"github.com/shenwei356/scgtax/scgtax/cmd/taxon"
	"github.com/spf13/cobra"
)

var lowidentCmd = &cobra.Command{
	Use:   "lowident",
	Short: "Compute the lowest percent identity of reference sequences per taxon",
	Long: `Compute the lowest percent identity of reference sequences per taxon

For each SCG in the reference data directory, reference sequences of
every taxon from phylum to species are aligned against each other with
DIAMOND, and the lowest percent identity is reported. Taxa with a single
sequence get 100.

Output (tab-delimited, default: MIN_PCT_ID_PER_TAXONOMIC_LEVEL.tsv in -d/--data-dir):

    gene,        SCG name
    rank,        taxonomic rank
    taxon,       rank-prefixed lineage
    sequences,   number of reference sequences
    min_pct_id,  lowest percent identity

`,
	Run: func(cmd *cobra.Command, args []string) {
		opt := getOptions(cmd)
		defer startLog(opt)()

		cfg := getConfig(cmd, opt)
		layout, err := refdata.NewLayout(cfg.DataDir)
		checkError(err)

		info, err := refdata.ReadInfo(layout.InfoFile())
		checkError(err)
		checkError(layout.Check(info.Genes))

		outFile := getFlagString(cmd, "out-file")
		if outFile == "" {
			outFile = layout.LowIdentFile()
		}
		checkOutFileAndLogFile(outFile, opt)

		if opt.Verbose || opt.Log2File {
			log.Infof("loading taxonomy from %s ...", layout.TaxonomyFile())
		}
		idx, err := taxon.LoadIndex(layout.TaxonomyFile(), opt.NumCPUs, libLogger(opt))
		checkError(err)
		if opt.Verbose || opt.Log2File {
			log.Infof("%s accessions loaded", humanize.Comma(int64(idx.Len())))
		}

		// all hits of all pairs
		diamond := search.NewDiamond(cfg.Diamond)
		diamond.MaxTargetSeqs = 0
		diamond.MinPctID = 0
		diamond.Evalue = cfg.Evalue
		diamond.Threads = cfg.NumThreads

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		list, err := search.LowIdentities(ctx, layout, search.LowIdentOptions{
			Genes:      info.Genes,
			NumWorkers: cfg.NumWorkers,
			TmpDir:     getFlagString(cmd, "tmp-dir"),
			Index:      idx,
			Logger:     libLogger(opt),
		}, diamond)
		checkError(err)

		checkError(search.WriteLowIdentities(outFile, list))
		if opt.Verbose || opt.Log2File {
			log.Infof("%s records of %d SCGs saved to %s", humanize.Comma(int64(len(list))), len(info.Genes), outFile)
		}
	},
}

func init() {
	RootCmd.AddCommand(lowidentCmd)

	lowidentCmd.Flags().StringP("data-dir", "d", refdata.DefaultDataDir,
		formatFlagUsage(`Reference data directory created by "scgtax setup".`))
	lowidentCmd.Flags().StringP("diamond", "", "diamond",
		formatFlagUsage(`Path of the DIAMOND binary.`))
	lowidentCmd.Flags().IntP("num-workers", "w", 1,
		formatFlagUsage(`Number of taxa aligned in parallel, each with -j/--threads threads.`))
	lowidentCmd.Flags().StringP("tmp-dir", "", "",
		formatFlagUsage(`Directory for temporary files (default: system temporary directory).`))
	lowidentCmd.Flags().StringP("out-file", "o", "",
		formatFlagUsage(`Out file, supports the ".gz" suffix (default: MIN_PCT_ID_PER_TAXONOMIC_LEVEL.tsv in -d/--data-dir).`))

	lowidentCmd.SetUsageTemplate(usageTemplate(""))
}
