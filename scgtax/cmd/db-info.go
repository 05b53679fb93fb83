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
	"github.com/shenwei356/scgtax/scgtax/cmd/refdata"
	"github.com/spf13/cobra"
	"github.com/tatsushid/go-prettytable"
)

var dbInfoCmd = &cobra.Command{
	Use:   "db-info",
	Short: "Print information of the reference data directory",
	Long: `Print information of the reference data directory

Columns:

    scg,        name of the single-copy core gene
    sequences,  number of reference sequences
    database,   whether the search database exists

`,
	Run: func(cmd *cobra.Command, args []string) {
		opt := getOptions(cmd)
		cfg := getConfig(cmd, opt)

		layout, err := refdata.NewLayout(cfg.DataDir)
		checkError(err)

		info, err := refdata.ReadInfo(layout.InfoFile())
		if err != nil {
			if err == refdata.ErrVersionMismatch {
				checkError(fmt.Errorf("reference data version mismatch, please rebuild it with \"scgtax setup --reset\""))
			}
			checkError(fmt.Errorf("%s. please run \"scgtax setup\" first", err))
		}

		missing, err := layout.MissingDatabases(info.Genes)
		checkError(err)
		isMissing := make(map[string]interface{}, len(missing))
		for _, file := range missing {
			isMissing[file] = struct{}{}
		}

		fmt.Printf("path:       %s\n", layout.Dir)
		fmt.Printf("version:    %d\n", info.Version)
		fmt.Printf("release:    %s\n", info.Release)
		fmt.Printf("source:     %s\n", info.Source)
		fmt.Printf("created:    %s\n", info.Created)
		fmt.Printf("accessions: %s\n", humanize.Comma(int64(info.Accessions)))
		fmt.Println()

		tbl, err := prettytable.NewTable([]prettytable.Column{
			{Header: "scg"},
			{Header: "sequences", AlignRight: true},
			{Header: "database"},
		}...)
		checkError(err)
		tbl.Separator = "  "

		var db string
		for _, row := range info.Table() {
			db = "ok"
			if _, ok := isMissing[layout.DatabasePath(row[0])]; ok {
				db = "missing"
			}
			tbl.AddRow(row[0], row[1], db)
		}
		fmt.Printf("%s", tbl.Bytes())

		for _, scg := range refdata.SCGs() {
			if !info.HasGene(scg) {
				log.Warningf("SCG not in the reference data: %s", scg)
			}
		}
	},
}

func init() {
	RootCmd.AddCommand(dbInfoCmd)

	dbInfoCmd.Flags().StringP("data-dir", "d", refdata.DefaultDataDir,
		formatFlagUsage(`Reference data directory created by "scgtax setup".`))

	dbInfoCmd.SetUsageTemplate(usageTemplate(""))
}
