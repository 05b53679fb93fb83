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

	"github.com/shenwei356/scgtax/scgtax/cmd/collection"
	"github.com/spf13/cobra"
)

var importCollectionCmd = &cobra.Command{
	Use:   "import-collection",
	Short: "Import a collection of bins into a project database",
	Long: `Import a collection of bins into a project database

Input:
  1. A two-column tab-delimited file of split names and bin names.
  2. Optional, a two-column tab-delimited file of bin names and colors,
     bins without colors are assigned ones from a fixed palette.

  An existing collection with the same name is replaced.

`,
	Run: func(cmd *cobra.Command, args []string) {
		opt := getOptions(cmd)
		defer startLog(opt)()
		cfg := getConfig(cmd, opt)

		dbDir := getFlagString(cmd, "project-db")
		if dbDir == "" {
			checkError(fmt.Errorf("flag -P/--project-db needed"))
		}
		name := getFlagString(cmd, "collection-name")
		if name == "" {
			checkError(fmt.Errorf("flag -C/--collection-name needed"))
		}
		if len(args) != 1 {
			checkError(fmt.Errorf("one file of splits and bins needed"))
		}
		colorFile := getFlagString(cmd, "colors-file")

		// ---------------------------------------------------------------

		bins, err := collection.ReadCollection(args[0])
		checkError(err)
		if len(bins) == 0 {
			checkError(fmt.Errorf("no bins found in %s", args[0]))
		}

		var colors map[string]string
		if colorFile != "" {
			colors, err = collection.ReadColors(colorFile)
			checkError(err)
			for bin := range colors {
				if _, ok := bins[bin]; !ok {
					log.Warningf("bin in colors file but not in the collection: %s", bin)
				}
			}
		}

		s := openStore(dbDir, false)
		defer func() {
			checkError(s.Close())
		}()

		info, err := s.ImportCollection(name, bins, colors, cfg.WriteBufferSize)
		checkError(err)

		if opt.Verbose || opt.Log2File {
			log.Infof("collection %s imported: %d bins, %d splits", info.Name, info.NumBins, info.NumSplits)
		}
	},
}

func init() {
	RootCmd.AddCommand(importCollectionCmd)

	importCollectionCmd.Flags().StringP("project-db", "P", "",
		formatFlagUsage(`Project database directory, created if not existing.`))
	importCollectionCmd.Flags().StringP("collection-name", "C", "",
		formatFlagUsage(`Collection name.`))
	importCollectionCmd.Flags().StringP("colors-file", "", "",
		formatFlagUsage(`Two-column tab-delimited file of bin names and colors.`))
	importCollectionCmd.Flags().IntP("write-buffer-size", "", 1000,
		formatFlagUsage(`Number of records committed in one transaction.`))

	importCollectionCmd.SetUsageTemplate(usageTemplate("-P <project.db> -C <name> <splits2bins.tsv>"))
}
