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

package search

import (
	"bytes"
	"context"
	"os/exec"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Searcher aligns protein queries in FASTA format against a database
// and returns tabular (BLAST outfmt 6) output.
type Searcher interface {
	Search(ctx context.Context, db string, queries []byte) ([]byte, error)
}

// Diamond runs the DIAMOND aligner.
type Diamond struct {
	Bin string

	MaxTargetSeqs int
	Evalue        float64
	MinPctID      float64
	Threads       int

	TmpDir string
}

// NewDiamond returns a Diamond with default parameters.
func NewDiamond(bin string) *Diamond {
	if bin == "" {
		bin = "diamond"
	}
	return &Diamond{
		Bin:           bin,
		MaxTargetSeqs: 20,
		Evalue:        1e-05,
		MinPctID:      90,
		Threads:       1,
	}
}

func (d *Diamond) run(ctx context.Context, stdin []byte, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, d.Bin, args...)
	var stdout, stderr bytes.Buffer
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return nil, errors.Wrapf(err, "%s %s: %s", d.Bin, args[0], msg)
		}
		return nil, errors.Wrapf(err, "%s %s", d.Bin, args[0])
	}
	return stdout.Bytes(), nil
}

// Search runs blastp with queries from stdin.
func (d *Diamond) Search(ctx context.Context, db string, queries []byte) ([]byte, error) {
	args := []string{"blastp",
		"--db", db,
		"--outfmt", "6",
		"--max-target-seqs", strconv.Itoa(d.MaxTargetSeqs),
		"--evalue", strconv.FormatFloat(d.Evalue, 'g', -1, 64),
		"--id", strconv.FormatFloat(d.MinPctID, 'g', -1, 64),
		"--threads", strconv.Itoa(d.Threads),
		"--quiet",
	}
	if d.TmpDir != "" {
		args = append(args, "--tmpdir", d.TmpDir)
	}
	return d.run(ctx, queries, args...)
}

// MakeDB builds a database from a protein FASTA file.
func (d *Diamond) MakeDB(ctx context.Context, fasta string, db string) error {
	_, err := d.run(ctx, nil, "makedb",
		"--in", fasta,
		"--db", db,
		"--threads", strconv.Itoa(d.Threads),
		"--quiet",
	)
	return err
}

// Version returns the version of DIAMOND.
func (d *Diamond) Version(ctx context.Context) (string, error) {
	out, err := d.run(ctx, nil, "version")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
