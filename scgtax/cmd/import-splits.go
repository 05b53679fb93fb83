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
	"github.com/shenwei356/scgtax/scgtax/cmd/collection"
	"github.com/shenwei356/scgtax/scgtax/cmd/store"
	"github.com/spf13/cobra"
)

var importSplitsCmd = &cobra.Command{
	Use:   "import-splits",
	Short: "Import loci in splits into a project database",
	Long: `Import loci in splits into a project database

Input:
  A two-column tab-delimited file of split names and locus ids,
  one locus per line. Lines starting with "#" are ignored.

    contig_001_split_00001    1
    contig_001_split_00001    2
    contig_001_split_00002    3

  Locus ids should be the same as the ones in sequence headers
  of marker genes (">locus_id gene_name").

`,
	Run: func(cmd *cobra.Command, args []string) {
		opt := getOptions(cmd)
		defer startLog(opt)()
		cfg := getConfig(cmd, opt)

		dbDir := getFlagString(cmd, "project-db")
		if dbDir == "" {
			checkError(fmt.Errorf("flag -P/--project-db needed"))
		}
		files := getFileListFromArgsAndFile(cmd, args, true, "infile-list", true)
		if len(files) == 1 && isStdin(files[0]) {
			log.Warningf("no files given, reading from stdin")
		}
		projectName := getFlagString(cmd, "project-name")

		// ---------------------------------------------------------------

		s := openStore(dbDir, false)
		defer func() {
			checkError(s.Close())
		}()

		if getFlagBool(cmd, "reset") {
			n, err := s.DeletePrefix(store.TableGenesInSplits, cfg.WriteBufferSize)
			checkError(err)
			if opt.Verbose || opt.Log2File {
				log.Infof("%s existing split-locus pairs removed", humanize.Comma(int64(n)))
			}
		}

		var total int
		for _, file := range files {
			pairs, err := collection.ReadGenesInSplits(file)
			checkError(err)

			n, err := s.ImportGenesInSplits(pairs, cfg.WriteBufferSize)
			checkError(err)
			total += n

			if opt.Verbose || opt.Log2File {
				log.Infof("%s split-locus pairs imported from %s", humanize.Comma(int64(n)), file)
			}
		}

		if projectName != "" {
			checkError(s.SetMeta(store.MetaProjectName, projectName))
		}

		if opt.Verbose || opt.Log2File {
			name, err := s.ProjectName()
			checkError(err)
			log.Infof("%s split-locus pairs imported into project %s (%s)",
				humanize.Comma(int64(total)), name, dbDir)
		}
	},
}

func init() {
	RootCmd.AddCommand(importSplitsCmd)

	importSplitsCmd.Flags().StringP("project-db", "P", "",
		formatFlagUsage(`Project database directory, created if not existing.`))
	importSplitsCmd.Flags().StringP("project-name", "n", "",
		formatFlagUsage(`Project name, used as the population name in genome mode.`))
	importSplitsCmd.Flags().StringP("infile-list", "i", "",
		formatFlagUsage(`File of input files list (one file per line). If given, they are appended to files from CLI arguments.`))
	importSplitsCmd.Flags().BoolP("reset", "", false,
		formatFlagUsage(`Remove existing split-locus pairs before importing.`))
	importSplitsCmd.Flags().IntP("write-buffer-size", "", 1000,
		formatFlagUsage(`Number of records committed in one transaction.`))

	importSplitsCmd.SetUsageTemplate(usageTemplate("[-P <project.db>] [-n <name>] <splits.tsv> ..."))
}
