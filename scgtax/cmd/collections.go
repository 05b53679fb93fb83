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
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/shenwei356/scgtax/scgtax/cmd/collection"
	"github.com/spf13/cobra"
	"github.com/tatsushid/go-prettytable"
)

var collectionsCmd = &cobra.Command{
	Use:   "collections",
	Short: "List collections in a project database",
	Long: `List collections in a project database

Columns:

    collection,  collection name
    bins,        number of bins
    splits,      number of splits

`,
	Run: func(cmd *cobra.Command, args []string) {
		opt := getOptions(cmd)

		dbDir := getFlagString(cmd, "project-db")
		if dbDir == "" {
			checkError(fmt.Errorf("flag -P/--project-db needed"))
		}
		outFile := getFlagString(cmd, "out-file")
		showColors := getFlagBool(cmd, "colors")

		s := openStore(dbDir, true)
		defer s.Close()

		adapter := collection.NewAdapter(s)
		infos, err := adapter.List()
		checkError(err)
		if len(infos) == 0 {
			log.Warningf("no collections found in %s", dbDir)
			return
		}

		tbl, err := prettytable.NewTable([]prettytable.Column{
			{Header: "collection"},
			{Header: "bins", AlignRight: true},
			{Header: "splits", AlignRight: true},
		}...)
		checkError(err)
		tbl.Separator = "  "
		for _, info := range infos {
			tbl.AddRow(info.Name, humanize.Comma(int64(info.NumBins)), humanize.Comma(int64(info.NumSplits)))
		}

		err = writeToFile(outFile, opt.CompressionLevel, func(w io.Writer) error {
			if _, err := w.Write(tbl.Bytes()); err != nil {
				return err
			}
			if !showColors {
				return nil
			}

			for _, info := range infos {
				colors, err := adapter.Colors(info.Name)
				if err != nil {
					return err
				}
				bins, err := adapter.Resolve(info.Name)
				if err != nil {
					return err
				}
				names := make([]string, 0, len(bins))
				for bin := range bins {
					names = append(names, bin)
				}
				sort.Strings(names)

				ctbl, err := prettytable.NewTable([]prettytable.Column{
					{Header: "bin"},
					{Header: "color"},
					{Header: "splits", AlignRight: true},
				}...)
				if err != nil {
					return err
				}
				ctbl.Separator = "  "
				for _, bin := range names {
					ctbl.AddRow(bin, colors[bin], len(bins[bin]))
				}
				fmt.Fprintf(w, "\ncollection: %s\n", info.Name)
				if _, err = w.Write(ctbl.Bytes()); err != nil {
					return err
				}
			}
			return nil
		})
		checkError(err)
	},
}

func init() {
	RootCmd.AddCommand(collectionsCmd)

	collectionsCmd.Flags().StringP("project-db", "P", "",
		formatFlagUsage(`Project database directory.`))
	collectionsCmd.Flags().StringP("out-file", "o", "-",
		formatFlagUsage(`Out file, supports and recommends a ".gz" suffix ("-" for stdout).`))
	collectionsCmd.Flags().BoolP("colors", "c", false,
		formatFlagUsage(`Also list bins and colors of each collection.`))

	collectionsCmd.SetUsageTemplate(usageTemplate("-P <project.db>"))
}
