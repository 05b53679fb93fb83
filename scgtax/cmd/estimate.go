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
	"io"
	"os"

	"github.com/shenwei356/scgtax/scgtax/cmd/collection"
	"github.com/shenwei356/scgtax/scgtax/cmd/consensus"
	"github.com/shenwei356/scgtax/scgtax/cmd/estimate"
	"github.com/shenwei356/scgtax/scgtax/cmd/store"
	"github.com/spf13/cobra"
)

var estimateCmd = &cobra.Command{
	Use:   "estimate",
	Short: "Estimate taxonomy of genomes, bins of a collection, or metagenomes",
	Long: `Estimate taxonomy of genomes, bins of a collection, or metagenomes

Sources of locus calls:
  1. FASTA files of SCG loci given as positional arguments or via
     -i/--infile-list: loci are searched in this run.
  2. Otherwise, locus calls saved by "scgtax run" in -P/--project-db.

Modes:
  1. Genome mode (default): all loci are treated as from one genome,
     named after the project name or --population-name. Too many SCGs
     with multiple loci (--max-redundancy) indicate a mixture of genomes,
     use --just-do-it to continue anyway.
  2. Collection mode (-C/--collection-name): the taxonomy of each bin is
     estimated from loci in its splits. Bins can be limited with
     -b/--bin-id or -B/--bin-ids-file.
  3. Metagenome mode (-m/--metagenome-mode): loci of one SCG, the most
     frequent one or the one given by -S/--scg-name-for-metagenome-mode,
     are reported one by one.

Output columns (-o/--out-file):
  Genome and collection mode:
    bin_name, total_scgs, supporting_scgs, t_domain, ..., t_species
  Metagenome mode:
    scg_name, percent_identity, t_domain, ..., t_species

`,
	Run: func(cmd *cobra.Command, args []string) {
		opt := getOptions(cmd)
		defer startLog(opt)()
		cfg := getConfig(cmd, opt)

		dbDir := getFlagString(cmd, "project-db")
		collectionName := getFlagString(cmd, "collection-name")
		binID := getFlagString(cmd, "bin-id")
		binIDsFile := getFlagString(cmd, "bin-ids-file")
		populationName := getFlagString(cmd, "population-name")
		outFile := getFlagString(cmd, "out-file")
		debug := getFlagBool(cmd, "debug")
		tmpDir := getFlagString(cmd, "tmp-dir")

		if binID != "" && binIDsFile != "" {
			checkError(fmt.Errorf("flags -b/--bin-id and -B/--bin-ids-file are mutually exclusive"))
		}
		if (binID != "" || binIDsFile != "") && collectionName == "" {
			checkError(fmt.Errorf("flag -C/--collection-name needed when selecting bins"))
		}
		if collectionName != "" && dbDir == "" {
			checkError(fmt.Errorf("flag -P/--project-db needed in collection mode"))
		}
		if cfg.MetagenomeMode && collectionName != "" {
			checkError(&estimate.AmbiguousModeError{Collection: collectionName})
		}
		if outFile != "" {
			checkOutFileAndLogFile(outFile, opt)
		}

		var groups []string
		if binID != "" {
			groups = []string{binID}
		} else if binIDsFile != "" {
			var err error
			groups, err = collection.ReadGroupIDs(binIDsFile)
			checkError(err)
			if len(groups) == 0 {
				checkError(fmt.Errorf("no bin ids found in %s", binIDsFile))
			}
		}

		files := getFileListFromArgsAndFile(cmd, args, true, "infile-list", true)
		fresh := !(len(files) == 1 && isStdin(files[0])) || dbDir == ""

		// ---------------------------------------------------------------
		// project database, read-only

		var s *store.Store
		deps := estimate.Deps{ProjectName: populationName}
		if dbDir != "" {
			s = openStore(dbDir, true)
			defer s.Close()

			if deps.ProjectName == "" {
				name, err := s.ProjectName()
				checkError(err)
				deps.ProjectName = name
			}
			deps.Collections = collection.NewAdapter(s)
		}

		// ---------------------------------------------------------------
		// locus calls

		var est *estimate.Estimator
		var err error
		if fresh {
			if len(files) == 1 && isStdin(files[0]) && (opt.Verbose || opt.Log2File) {
				log.Info("no files given, reading from stdin")
			}
			est, err = searchLoci(opt, cfg, files, deps, tmpDir)
			if est == nil {
				checkError(err)
			}
			if err != nil {
				log.Warningf("%s. estimating with locus calls of %d finished SCG(s)", err, len(est.Calls()))
			}
		} else {
			wasRun, err := s.SCGTaxonomyWasRun()
			checkError(err)
			if !wasRun {
				checkError(fmt.Errorf("no locus calls found in %s, please run \"scgtax run\" first, or give FASTA files of SCG loci", dbDir))
			}
			calls, err := s.SCGTaxonomy()
			checkError(err)
			if opt.Verbose || opt.Log2File {
				log.Infof("%d locus calls loaded from %s", len(calls), dbDir)
			}

			deps.Logger = libLogger(opt)
			est, err = estimate.New(cfg, deps)
			checkError(err)
			checkError(est.Load())
			checkError(est.UseCalls(calls))
		}

		// ---------------------------------------------------------------
		// estimating

		report, err := est.Reduce(estimate.Request{Collection: collectionName, Groups: groups})
		checkError(err)
		checkError(est.Finalize())

		if len(report.FailedGenes) > 0 {
			log.Warningf("SCGs failed to search and not used: %v", report.FailedGenes)
		}

		if debug {
			if report.Mode == consensus.ModeMetagenome && fresh {
				for _, c := range report.Loci {
					checkError(estimate.WriteHits(os.Stderr, est.Hits(c.LocusID), c))
				}
			} else if report.Mode != consensus.ModeMetagenome {
				checkError(report.WriteDebug(os.Stderr))
			}
		}

		if !isStdout(outFile) {
			data, err := report.Table()
			checkError(err)
			fmt.Printf("%s\n%s", report.Title, data)
		}
		if outFile != "" {
			checkError(writeToFile(outFile, opt.CompressionLevel, func(w io.Writer) error {
				return report.WriteTSV(w)
			}))
			if !isStdout(outFile) && (opt.Verbose || opt.Log2File) {
				log.Infof("results saved to %s", outFile)
			}
		}
	},
}

func init() {
	RootCmd.AddCommand(estimateCmd)

	estimateCmd.Flags().StringP("project-db", "P", "",
		formatFlagUsage(`Project database directory, for collections or saved locus calls.`))
	estimateCmd.Flags().StringP("infile-list", "i", "",
		formatFlagUsage(`File of input files list (one file per line). If given, they are appended to files from CLI arguments.`))
	estimateCmd.Flags().StringP("tmp-dir", "", "",
		formatFlagUsage(`Directory for temporary files of DIAMOND (default: the system one).`))
	addSearchFlags(estimateCmd)

	estimateCmd.Flags().StringP("collection-name", "C", "",
		formatFlagUsage(`Collection name, for estimating taxonomy of bins.`))
	estimateCmd.Flags().StringP("bin-id", "b", "",
		formatFlagUsage(`Only estimate taxonomy of this bin of the collection.`))
	estimateCmd.Flags().StringP("bin-ids-file", "B", "",
		formatFlagUsage(`Only estimate taxonomy of bins in this file, one bin per line.`))
	estimateCmd.Flags().StringP("population-name", "N", "",
		formatFlagUsage(`Name of the genome or metagenome (default: the project name).`))

	estimateCmd.Flags().BoolP("metagenome-mode", "m", false,
		formatFlagUsage(`Treat input as a metagenome, and report loci of one SCG.`))
	estimateCmd.Flags().StringP("scg-name-for-metagenome-mode", "S", "",
		formatFlagUsage(`SCG used in metagenome mode (default: the most frequent one).`))
	estimateCmd.Flags().BoolP("just-do-it", "", false,
		formatFlagUsage(`Continue in genome mode even if too many SCGs have multiple loci.`))
	estimateCmd.Flags().Float64P("max-redundancy", "", 0.2,
		formatFlagUsage(`Maximum fraction of SCGs with multiple loci in genome mode.`))

	estimateCmd.Flags().StringP("out-file", "o", "",
		formatFlagUsage(`Tab-delimited out file, supports a ".gz" suffix ("-" for stdout, and the table is not printed).`))
	estimateCmd.Flags().BoolP("debug", "", false,
		formatFlagUsage(`Print locus calls of each bin, or hits of each locus in metagenome mode, to stderr.`))

	estimateCmd.SetUsageTemplate(usageTemplate("[-P <project.db>] [-C <collection>] [<scg_loci.faa> ...]"))
}
