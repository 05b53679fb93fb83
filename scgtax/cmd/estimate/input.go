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
	"bytes"
	"io"

	"github.com/pkg/errors"
	"github.com/shenwei356/bio/seqio/fastx"
	"github.com/shenwei356/go-logging"
	"github.com/shenwei356/scgtax/scgtax/cmd/refdata"
	"github.com/shenwei356/scgtax/scgtax/cmd/search"
)

// ReadQueries reads marker gene sequences from FASTA files.
// The header should be ">locus_id gene_name ...".
// Genes out of the SCG vocabulary are skipped with a warning.
// A locus appearing twice with the same gene is an error.
func ReadQueries(files []string, logger *logging.Logger) (map[string][]search.Query, error) {
	queries := make(map[string][]search.Query, len(refdata.SCGFastas))
	seen := make(map[[2]string]struct{}, 1024)
	unknown := make(map[string]int, 4)

	var record *fastx.Record
	var fields [][]byte
	var locus, gene string
	for _, file := range files {
		reader, err := fastx.NewReader(nil, file, "")
		if err != nil {
			return nil, errors.Wrap(err, file)
		}
		for {
			record, err = reader.Read()
			if err != nil {
				if err == io.EOF {
					break
				}
				reader.Close()
				return nil, errors.Wrap(err, file)
			}

			fields = bytes.Fields(record.Name)
			if len(fields) < 2 {
				reader.Close()
				return nil, errors.Errorf("%s: gene name missing in header: %s", file, record.Name)
			}
			locus, gene = string(fields[0]), string(fields[1])

			if !refdata.IsSCG(gene) {
				unknown[gene]++
				continue
			}
			key := [2]string{locus, gene}
			if _, ok := seen[key]; ok {
				reader.Close()
				return nil, errors.Errorf("%s: duplicated locus %s of %s", file, locus, gene)
			}
			seen[key] = struct{}{}

			queries[gene] = append(queries[gene], search.Query{
				LocusID:  locus,
				Sequence: string(record.Seq.Seq),
			})
		}
		reader.Close()
	}

	if logger != nil {
		for gene, n := range unknown {
			logger.Warningf("%d sequence(s) of unknown SCG skipped: %s", n, gene)
		}
	}
	return queries, nil
}
