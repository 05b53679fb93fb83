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

	"github.com/shenwei356/scgtax/scgtax/cmd/refdata"
	"github.com/shenwei356/scgtax/scgtax/cmd/search"
	"github.com/spf13/cobra"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Build the reference data directory from GTDB files",
	Long: `Build the reference data directory from GTDB files

Input:
  A directory containing files of a GTDB release, with these files
  (optionally compressed by gzip/xz/zstd) in any sub directories:
    - *_taxonomy.tsv: accession to GTDB taxonomy, for bacteria and archaea.
    - <marker>.faa: amino acid sequences of marker genes, e.g., PF00380.20.faa.

Output (in -d/--data-dir):
    ACCESSION_TO_TAXONOMY.txt   accession to taxonomy.
    SCG_SEARCH_DATABASES/       merged sequences and a DIAMOND database of each SCG.
    info.toml                   summary of the data directory.

Attention:
  1. DIAMOND is needed, set the path with --diamond if it's not in $PATH.
  2. An existing non-empty data directory is only overwritten with --reset.

`,
	Run: func(cmd *cobra.Command, args []string) {
		opt := getOptions(cmd)
		defer startLog(opt)()

		sourceDir := getFlagString(cmd, "source-dir")
		if sourceDir == "" {
			checkError(fmt.Errorf("flag -s/--source-dir needed"))
		}
		cfg := getConfig(cmd, opt)

		layout, err := refdata.NewLayout(cfg.DataDir)
		checkError(err)

		source := getFlagString(cmd, "source")
		if source == "" {
			source = cfg.RemoteURL
		}

		diamond := search.NewDiamond(cfg.Diamond)
		diamond.Threads = cfg.NumThreads

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if opt.Verbose || opt.Log2File {
			log.Infof("scgtax v%s", VERSION)
			log.Info("  https://github.com/shenwei356/scgtax")
			log.Info()
			log.Infof("building reference data directory %s from %s ...", layout.Dir, sourceDir)
		}

		info, err := refdata.Setup(ctx, layout, refdata.SetupOptions{
			SourceDir: sourceDir,
			Release:   getFlagString(cmd, "release"),
			Source:    source,
			Reset:     getFlagBool(cmd, "reset"),
			Threads:   opt.NumCPUs,
			Logger:    libLogger(opt),
		}, diamond)
		checkError(err)

		if opt.Verbose || opt.Log2File {
			log.Info(info)
			log.Infof("reference data saved to %s", layout.Dir)
		}
	},
}

func init() {
	RootCmd.AddCommand(setupCmd)

	setupCmd.Flags().StringP("data-dir", "d", refdata.DefaultDataDir,
		formatFlagUsage(`Output reference data directory.`))
	setupCmd.Flags().StringP("source-dir", "s", "",
		formatFlagUsage(`Directory of GTDB taxonomy files and marker gene sequences.`))
	setupCmd.Flags().StringP("release", "r", "",
		formatFlagUsage(`GTDB release, only recorded in info.toml.`))
	setupCmd.Flags().StringP("source", "", "",
		formatFlagUsage(`Source URL of the GTDB files, only recorded in info.toml (default: remote_url of the config).`))
	setupCmd.Flags().StringP("diamond", "", "diamond",
		formatFlagUsage(`Path of the DIAMOND binary.`))
	setupCmd.Flags().BoolP("reset", "", false,
		formatFlagUsage(`Remove the existing data directory.`))

	setupCmd.SetUsageTemplate(usageTemplate(""))
}
