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

package refdata

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
	"github.com/shenwei356/util/pathutil"
)

// ErrVersionMismatch indicates mismatched version
var ErrVersionMismatch = errors.New("scgtax/refdata: version mismatch")

// InfoVersion is the version of the reference data directory.
const InfoVersion uint8 = 1

// Info is the meta data of a reference data directory.
type Info struct {
	Version    uint8    `toml:"version" comment:"version of the data directory"`
	Release    string   `toml:"release" comment:"GTDB release"`
	Source     string   `toml:"source"`
	Created    string   `toml:"created"`
	Accessions int      `toml:"accessions"`
	Genes      []string `toml:"genes"`
	Sequences  []int    `toml:"sequences" comment:"number of reference sequences of each gene"`
}

func (i Info) String() string {
	return fmt.Sprintf("scgtax reference data (v%d): release: %s, source: %s, #accessions: %d, #SCGs: %d",
		i.Version, i.Release, i.Source, i.Accessions, len(i.Genes))
}

// ReadInfo reads Info from a file.
func ReadInfo(file string) (Info, error) {
	info := Info{}

	data, err := os.ReadFile(file)
	if err != nil {
		return info, errors.Wrapf(err, "fail to read reference data info file: %s", file)
	}

	err = toml.Unmarshal(data, &info)
	if err != nil {
		return info, errors.Wrapf(err, "fail to unmarshal reference data info: %s", file)
	}

	if info.Version != InfoVersion {
		return info, ErrVersionMismatch
	}
	return info, nil
}

// WriteTo dumps Info to a file.
func (i Info) WriteTo(file string) (int, error) {
	data, err := toml.Marshal(i)
	if err != nil {
		return 0, errors.Wrap(err, "fail to marshal reference data info")
	}

	dir := filepath.Dir(file)
	dirExisted, err := pathutil.DirExists(dir)
	if err != nil {
		return 0, errors.Wrapf(err, "fail to write reference data info file: %s", file)
	}
	if !dirExisted {
		err = os.MkdirAll(dir, 0755)
		if err != nil {
			return 0, errors.Wrapf(err, "fail to write reference data info file: %s", file)
		}
	}

	w, err := os.Create(file)
	if err != nil {
		return 0, errors.Wrapf(err, "fail to write reference data info file: %s", file)
	}
	defer w.Close()

	n, err := w.Write(data)
	if err != nil {
		return 0, errors.Wrapf(err, "fail to write reference data info file: %s", file)
	}
	return n, nil
}

// Table returns gene names and reference sequence numbers, for reporting.
func (i Info) Table() [][2]string {
	rows := make([][2]string, 0, len(i.Genes))
	for j, g := range i.Genes {
		n := "-"
		if j < len(i.Sequences) {
			n = fmt.Sprintf("%d", i.Sequences[j])
		}
		rows = append(rows, [2]string{g, n})
	}
	return rows
}

// HasGene tells if the data directory contains the database of a gene.
func (i Info) HasGene(gene string) bool {
	for _, g := range i.Genes {
		if g == gene {
			return true
		}
	}
	return false
}
