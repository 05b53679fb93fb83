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
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/shenwei356/scgtax/scgtax/cmd/estimate"
	"github.com/shenwei356/scgtax/scgtax/cmd/refdata"
	"github.com/shenwei356/scgtax/scgtax/cmd/store"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Search SCG loci and store locus calls in a project database",
	Long: `Search SCG loci and store locus calls in a project database

Input:
  FASTA files of amino acid sequences of SCG loci, with headers like:

    >locus_id gene_name

  Gene names should be one of the 22 SCGs, e.g., Ribosomal_L2.
  Other genes are skipped.

Steps:
  1. Loci of each SCG are searched against the reference database of
     the SCG with DIAMOND, using -w/--num-workers SCGs in parallel.
  2. Hits of each locus with the best percent identity are reduced
     into a consensus taxonomy of the locus.
  3. Locus calls are saved in the project database, replacing previous
     ones, for "scgtax estimate -P".

`,
	Run: func(cmd *cobra.Command, args []string) {
		opt := getOptions(cmd)
		defer startLog(opt)()
		cfg := getConfig(cmd, opt)

		dbDir := getFlagString(cmd, "project-db")
		if dbDir == "" {
			checkError(fmt.Errorf("flag -P/--project-db needed"))
		}
		tmpDir := getFlagString(cmd, "tmp-dir")

		files := getFileListFromArgsAndFile(cmd, args, true, "infile-list", true)
		if opt.Verbose || opt.Log2File {
			if len(files) == 1 && isStdin(files[0]) {
				log.Info("no files given, reading from stdin")
			}
			log.Infof("scgtax v%s", VERSION)
			log.Info("  https://github.com/shenwei356/scgtax")
			log.Info()
		}

		// ---------------------------------------------------------------
		// the project database should be writable before searching

		s := openStore(dbDir, false)
		defer func() {
			checkError(s.Close())
		}()

		name, err := s.ProjectName()
		checkError(err)

		// ---------------------------------------------------------------
		// searching

		est, err := searchLoci(opt, cfg, files, estimate.Deps{ProjectName: name}, tmpDir)
		if est == nil {
			checkError(err)
		}
		if err != nil {
			checkError(fmt.Errorf("%s. locus calls of %d finished SCG(s) are not saved", err, len(est.Calls())))
		}

		// ---------------------------------------------------------------
		// saving

		if opt.Verbose || opt.Log2File {
			log.Infof("saving %s locus calls to %s ...", humanize.Comma(int64(len(est.Calls()))), dbDir)
		}
		n, err := s.ClearSCGTaxonomy(cfg.WriteBufferSize)
		checkError(err)
		if n > 0 && (opt.Verbose || opt.Log2File) {
			log.Infof("  %s previous locus calls removed", humanize.Comma(int64(n)))
		}

		w, err := s.NewSCGTaxonomyWriter(cfg.WriteBufferSize)
		checkError(err)
		if err = est.Persist(w); err != nil {
			w.Discard()
			checkError(err)
		}

		layout, err := refdata.NewLayout(cfg.DataDir)
		checkError(err)
		if info, err := refdata.ReadInfo(layout.InfoFile()); err == nil {
			checkError(s.SetMeta(store.MetaSCGTaxonomyData, info.Release))
		}

		checkError(est.Finalize())

		if opt.Verbose || opt.Log2File {
			log.Infof("  %s locus calls saved in %d transaction(s)", humanize.Comma(int64(w.Total())), w.Commits())
		}
	},
}

func init() {
	RootCmd.AddCommand(runCmd)

	runCmd.Flags().StringP("project-db", "P", "",
		formatFlagUsage(`Project database directory, created if not existing.`))
	runCmd.Flags().StringP("infile-list", "i", "",
		formatFlagUsage(`File of input files list (one file per line). If given, they are appended to files from CLI arguments.`))
	runCmd.Flags().StringP("tmp-dir", "", "",
		formatFlagUsage(`Directory for temporary files of DIAMOND (default: the system one).`))
	runCmd.Flags().IntP("write-buffer-size", "", 1000,
		formatFlagUsage(`Number of locus calls committed in one transaction.`))
	addSearchFlags(runCmd)

	runCmd.SetUsageTemplate(usageTemplate("-P <project.db> <scg_loci.faa> ..."))
}
