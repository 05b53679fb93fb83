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

package collection

import (
	"bufio"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/shenwei356/scgtax/scgtax/cmd/store"
	"github.com/shenwei356/util/cliutil"
	"github.com/shenwei356/xopen"
)

// ReadCollection reads a two-column tab-delimited file of split and bin.
func ReadCollection(file string) (map[string][]string, error) {
	split2bin, err := cliutil.ReadKVs(file, false)
	if err != nil {
		return nil, errors.Wrapf(err, "read collection file: %s", file)
	}
	bins := make(map[string][]string, 64)
	for split, bin := range split2bin {
		if bin == "" {
			return nil, errors.Errorf("empty bin name for split %s in file: %s", split, file)
		}
		bins[bin] = append(bins[bin], split)
	}
	for _, splits := range bins {
		sort.Strings(splits)
	}
	return bins, nil
}

// ReadColors reads a two-column tab-delimited file of bin and color.
func ReadColors(file string) (map[string]string, error) {
	colors, err := cliutil.ReadKVs(file, false)
	if err != nil {
		return nil, errors.Wrapf(err, "read bin colors file: %s", file)
	}
	return colors, nil
}

// eachRecord calls fn for every non-empty and non-comment line.
func eachRecord(file string, fn func(line string) error) error {
	fh, err := xopen.Ropen(file)
	if err != nil {
		return errors.Wrapf(err, "read file: %s", file)
	}
	defer fh.Close()

	scanner := bufio.NewScanner(fh)
	scanner.Buffer(make([]byte, 64<<10), 16<<20)
	var line string
	for scanner.Scan() {
		line = strings.TrimRight(scanner.Text(), "\r\n")
		if line == "" || line[0] == '#' {
			continue
		}
		if err = fn(line); err != nil {
			return err
		}
	}
	if err = scanner.Err(); err != nil {
		return errors.Wrapf(err, "read file: %s", file)
	}
	return nil
}

// ReadGenesInSplits reads a two-column tab-delimited file of split and locus.
func ReadGenesInSplits(file string) ([]store.SplitLocus, error) {
	pairs := make([]store.SplitLocus, 0, 1024)
	err := eachRecord(file, func(line string) error {
		items := strings.Split(line, "\t")
		if len(items) < 2 {
			return errors.Errorf("two columns (split, locus) expected: %s", line)
		}
		pairs = append(pairs, store.SplitLocus{Split: items[0], Locus: items[1]})
		return nil
	})
	return pairs, err
}

// ReadGroupIDs reads group ids from the first column, duplicates removed.
func ReadGroupIDs(file string) ([]string, error) {
	ids := make([]string, 0, 64)
	seen := make(map[string]struct{}, 64)
	err := eachRecord(file, func(line string) error {
		id := strings.TrimSpace(strings.Split(line, "\t")[0])
		if id == "" {
			return nil
		}
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
		return nil
	})
	return ids, err
}
