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

// Package refdata describes the reference data directory:
// the SCG vocabulary, file layout, and database building.
package refdata

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
	"github.com/shenwei356/util/pathutil"
)

// DefaultRemoteURL is where GTDB releases are published.
const DefaultRemoteURL = "https://data.ace.uq.edu.au/public/gtdb/data/releases/latest/"

// DefaultDataDir is the default reference data directory.
const DefaultDataDir = "~/.scgtax/GTDB"

const (
	TaxonomyFile    = "ACCESSION_TO_TAXONOMY.txt"
	SearchDBDir     = "SCG_SEARCH_DATABASES"
	MSADir          = "MSA_OF_INDIVIDUAL_SCGs"
	InfoFile        = "info.toml"
	LowIdentFile    = "MIN_PCT_ID_PER_TAXONOMIC_LEVEL.tsv"
	SearchDBExt     = ".dmnd"
	taxonomySuffix  = "_taxonomy.tsv"
	referenceSuffix = ".faa"
)

// SCGFastas maps SCG names to GTDB marker gene files.
var SCGFastas = map[string][]string{
	"Ribosomal_S2":   {"ar122_TIGR01012.faa", "bac120_TIGR01011.faa"},
	"Ribosomal_S3_C": {"ar122_TIGR01008.faa", "bac120_TIGR01009.faa"},
	"Ribosomal_S6":   {"bac120_TIGR00166.faa"},
	"Ribosomal_S7":   {"ar122_TIGR01028.faa", "bac120_TIGR01029.faa"},
	"Ribosomal_S8":   {"ar122_PF00410.14.faa", "bac120_PF00410.14.faa"},
	"Ribosomal_S9":   {"ar122_TIGR03627.faa", "bac120_PF00380.14.faa"},
	"Ribosomal_S11":  {"ar122_TIGR03628.faa", "bac120_TIGR03632.faa"},
	"Ribosomal_S20p": {"bac120_TIGR00029.faa"},
	"Ribosomal_L1":   {"bac120_TIGR01169.faa", "ar122_PF00687.16.faa"},
	"Ribosomal_L2":   {"bac120_TIGR01171.faa"},
	"Ribosomal_L3":   {"ar122_TIGR03626.faa", "bac120_TIGR03625.faa"},
	"Ribosomal_L4":   {"bac120_TIGR03953.faa"},
	"Ribosomal_L6":   {"ar122_TIGR03653.faa", "bac120_TIGR03654.faa"},
	"Ribosomal_L9_C": {"bac120_TIGR00158.faa"},
	"Ribosomal_L13":  {"ar122_TIGR01077.faa", "bac120_TIGR01066.faa"},
	"Ribosomal_L16":  {"ar122_TIGR00279.faa", "bac120_TIGR01164.faa"},
	"Ribosomal_L17":  {"bac120_TIGR00059.faa"},
	"Ribosomal_L20":  {"bac120_TIGR01032.faa"},
	"Ribosomal_L21p": {"bac120_TIGR00061.faa"},
	"Ribosomal_L22":  {"ar122_TIGR01038.faa", "bac120_TIGR01044.faa"},
	"ribosomal_L24":  {"bac120_TIGR01079.faa", "ar122_TIGR01080.faa"},
	"Ribosomal_L27A": {"bac120_TIGR01071.faa"},
}

var scgs []string

func init() {
	scgs = make([]string, 0, len(SCGFastas))
	for scg := range SCGFastas {
		scgs = append(scgs, scg)
	}
	sort.Strings(scgs)
}

// SCGs returns the sorted names of SCGs used for taxonomy.
func SCGs() []string {
	names := make([]string, len(scgs))
	copy(names, scgs)
	return names
}

// IsSCG tells if a gene is one of the SCGs.
func IsSCG(gene string) bool {
	_, ok := SCGFastas[gene]
	return ok
}

// Layout locates files in a reference data directory.
type Layout struct {
	Dir string
}

// NewLayout creates a Layout, "~" is expanded.
func NewLayout(dir string) (Layout, error) {
	if dir == "" {
		dir = DefaultDataDir
	}
	dir, err := homedir.Expand(dir)
	if err != nil {
		return Layout{}, err
	}
	return Layout{Dir: filepath.Clean(dir)}, nil
}

func (l Layout) TaxonomyFile() string { return filepath.Join(l.Dir, TaxonomyFile) }
func (l Layout) SearchDBDir() string  { return filepath.Join(l.Dir, SearchDBDir) }
func (l Layout) MSADir() string       { return filepath.Join(l.Dir, MSADir) }
func (l Layout) InfoFile() string     { return filepath.Join(l.Dir, InfoFile) }
func (l Layout) LowIdentFile() string { return filepath.Join(l.Dir, LowIdentFile) }

// FastaPath returns the merged reference sequences of an SCG.
func (l Layout) FastaPath(gene string) string {
	return filepath.Join(l.Dir, SearchDBDir, gene)
}

// DatabasePath returns the search database of an SCG.
func (l Layout) DatabasePath(gene string) string {
	return filepath.Join(l.Dir, SearchDBDir, gene+SearchDBExt)
}

// MissingDataError lists reference files not found.
type MissingDataError struct {
	Dir   string
	Files []string
}

func (e *MissingDataError) Error() string {
	return fmt.Sprintf("%d reference file(s) missing in %s: %s. please run \"scgtax setup\" first",
		len(e.Files), e.Dir, strings.Join(e.Files, ", "))
}

// MissingDatabases returns search databases of genes not existing.
func (l Layout) MissingDatabases(genes []string) ([]string, error) {
	var missing []string
	for _, gene := range genes {
		file := l.DatabasePath(gene)
		ok, err := pathutil.Exists(file)
		if err != nil {
			return nil, errors.Wrapf(err, "error on checking search database: %s", file)
		}
		if !ok {
			missing = append(missing, file)
		}
	}
	return missing, nil
}

// Check checks if the taxonomy file and search databases of genes exist.
func (l Layout) Check(genes []string) error {
	missing, err := l.MissingDatabases(genes)
	if err != nil {
		return err
	}
	ok, err := pathutil.Exists(l.TaxonomyFile())
	if err != nil {
		return errors.Wrapf(err, "error on checking taxonomy file: %s", l.TaxonomyFile())
	}
	if !ok {
		missing = append([]string{l.TaxonomyFile()}, missing...)
	}
	if len(missing) > 0 {
		return &MissingDataError{Dir: l.Dir, Files: missing}
	}
	return nil
}
