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

package estimate

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shenwei356/scgtax/scgtax/cmd/consensus"
	"github.com/shenwei356/scgtax/scgtax/cmd/taxon"
	"github.com/tatsushid/go-prettytable"
)

// Report is the result of an estimation.
type Report struct {
	Mode       consensus.Mode
	Title      string
	Collection string

	// genome and collection mode
	Populations []consensus.PopulationCall
	Colors      map[string]string // bin colors in collection mode

	// metagenome mode
	SCG  string
	Loci []consensus.LocusConsensus

	FailedGenes []string
}

// Header returns column names of the tabular output.
func (r *Report) Header() []string {
	var cols []string
	if r.Mode == consensus.ModeMetagenome {
		cols = []string{"scg_name", "percent_identity"}
	} else {
		cols = []string{"bin_name", "total_scgs", "supporting_scgs"}
	}
	return append(cols, taxon.RankNames()...)
}

// Rows returns rows of the tabular output, null ranks are empty strings.
func (r *Report) Rows() [][]string {
	var rows [][]string
	if r.Mode == consensus.ModeMetagenome {
		rows = make([][]string, 0, len(r.Loci))
		for _, c := range r.Loci {
			row := []string{c.Gene + "_" + c.LocusID, formatIdentity(c.PercentIdentity)}
			rows = append(rows, append(row, c.Ranks[:]...))
		}
		return rows
	}

	rows = make([][]string, 0, len(r.Populations))
	for _, p := range r.Populations {
		row := []string{p.PopulationID, strconv.Itoa(p.TotalLoci), strconv.Itoa(p.SupportingLoci)}
		rows = append(rows, append(row, p.Ranks[:]...))
	}
	return rows
}

func formatIdentity(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// WriteTSV writes the tabular output.
func (r *Report) WriteTSV(w io.Writer) error {
	bw := bufio.NewWriter(w)
	bw.WriteString(strings.Join(r.Header(), "\t"))
	bw.WriteByte('\n')
	for _, row := range r.Rows() {
		bw.WriteString(strings.Join(row, "\t"))
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

// taxonomyText joins ranks with " / ", null ranks are empty.
func taxonomyText(v taxon.RankVector) string {
	return strings.Join(v[:], " / ")
}

// Table returns a pretty table for the console.
func (r *Report) Table() ([]byte, error) {
	var columns []prettytable.Column
	if r.Mode == consensus.ModeMetagenome {
		columns = []prettytable.Column{
			{Header: "scg"},
			{Header: "percent_identity", AlignRight: true},
			{Header: "taxonomy"},
		}
	} else {
		columns = []prettytable.Column{
			{Header: "bin"},
			{Header: "total_scgs", AlignRight: true},
			{Header: "supporting_scgs", AlignRight: true},
			{Header: "taxonomy"},
		}
		if r.Collection != "" {
			columns = append(columns, prettytable.Column{Header: "color"})
		}
	}
	tbl, err := prettytable.NewTable(columns...)
	if err != nil {
		return nil, err
	}
	tbl.Separator = "  "

	if r.Mode == consensus.ModeMetagenome {
		for _, c := range r.Loci {
			tbl.AddRow(c.Gene+"_"+c.LocusID, formatIdentity(c.PercentIdentity), taxonomyText(c.Ranks))
		}
	} else {
		for _, p := range r.Populations {
			if r.Collection != "" {
				tbl.AddRow(p.PopulationID, p.TotalLoci, p.SupportingLoci, taxonomyText(p.Ranks), r.Colors[p.PopulationID])
				continue
			}
			tbl.AddRow(p.PopulationID, p.TotalLoci, p.SupportingLoci, taxonomyText(p.Ranks))
		}
	}
	return tbl.Bytes(), nil
}

// WriteDebug lists locus calls considered for each population,
// and the consensus of the population in the last row.
func (r *Report) WriteDebug(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for _, p := range r.Populations {
		if color, ok := r.Colors[p.PopulationID]; ok {
			fmt.Fprintf(bw, "Hits for %s (%s)\n", p.PopulationID, color)
		} else {
			fmt.Fprintf(bw, "Hits for %s\n", p.PopulationID)
		}
		if len(p.Loci) == 0 {
			bw.WriteString("No hits\n\n")
			continue
		}

		tbl, err := prettytable.NewTable([]prettytable.Column{
			{Header: "scg"},
			{Header: "locus", AlignRight: true},
			{Header: "pct_id", AlignRight: true},
			{Header: "supporting"},
			{Header: "taxonomy"},
		}...)
		if err != nil {
			return err
		}
		tbl.Separator = "  "
		for _, l := range p.Loci {
			tbl.AddRow(l.Gene, l.LocusID, formatIdentity(l.PercentIdentity),
				strconv.FormatBool(l.Supporting), taxonomyText(l.Ranks))
		}
		tbl.AddRow(consensus.ConsensusAccession, "--", "--", "--", taxonomyText(p.Ranks))
		bw.Write(tbl.Bytes())
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

// WriteHits lists raw hits of a locus and its consensus.
func WriteHits(w io.Writer, hits []consensus.Hit, call consensus.LocusConsensus) error {
	tbl, err := prettytable.NewTable([]prettytable.Column{
		{Header: "pct_id", AlignRight: true},
		{Header: "bitscore", AlignRight: true},
		{Header: "accession"},
		{Header: "taxonomy"},
	}...)
	if err != nil {
		return err
	}
	tbl.Separator = "  "
	for _, h := range hits {
		tbl.AddRow(formatIdentity(h.PercentIdentity), strconv.FormatFloat(h.BitScore, 'f', -1, 64),
			h.Accession, taxonomyText(h.Ranks))
	}
	tbl.AddRow(formatIdentity(call.PercentIdentity), strconv.FormatFloat(call.BitScore, 'f', -1, 64),
		call.Accession, taxonomyText(call.Ranks))

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "Hits for locus %s (%s)\n", call.LocusID, call.Gene)
	bw.Write(tbl.Bytes())
	bw.WriteByte('\n')
	return bw.Flush()
}
