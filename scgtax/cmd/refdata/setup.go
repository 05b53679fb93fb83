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
	"bufio"
	"context"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/iafan/cwalk"
	"github.com/pkg/errors"
	"github.com/shenwei356/bio/seqio/fastx"
	"github.com/shenwei356/go-logging"
	"github.com/shenwei356/util/pathutil"
	"github.com/shenwei356/xopen"
)

// DBMaker builds a search database from a FASTA file.
type DBMaker interface {
	MakeDB(ctx context.Context, fasta string, db string) error
}

// SetupOptions contains options for building a reference data directory.
type SetupOptions struct {
	// directory containing GTDB *_taxonomy.tsv files and marker gene .faa files
	SourceDir string
	Release   string
	Source    string
	Reset     bool
	Threads   int
	Logger    *logging.Logger
}

var reSourceFile = regexp.MustCompile(`(_taxonomy\.tsv|\.faa)(\.gz|\.xz|\.zst)?$`)

var reCompressionExt = regexp.MustCompile(`\.(gz|xz|zst)$`)

// Setup builds a reference data directory from local GTDB files:
// taxonomy files are concatenated into the accession to taxonomy file,
// marker gene files of each SCG are merged with gaps removed,
// and a search database is built for each SCG.
func Setup(ctx context.Context, layout Layout, opt SetupOptions, maker DBMaker) (Info, error) {
	var info Info
	logger := opt.Logger
	if opt.Threads < 1 {
		opt.Threads = 1
	}

	if err := prepareDir(layout.Dir, opt.Reset, logger); err != nil {
		return info, err
	}
	if err := os.MkdirAll(layout.SearchDBDir(), 0755); err != nil {
		return info, errors.Wrap(err, layout.SearchDBDir())
	}

	files, err := listFiles(opt.SourceDir, reSourceFile, opt.Threads)
	if err != nil {
		return info, errors.Wrapf(err, "scan source directory: %s", opt.SourceDir)
	}
	sort.Strings(files)

	taxFiles := make([]string, 0, 2)
	faaFiles := make(map[string]string, len(files))
	var base string
	for _, file := range files {
		base = reCompressionExt.ReplaceAllString(filepath.Base(file), "")
		if strings.HasSuffix(base, taxonomySuffix) {
			taxFiles = append(taxFiles, file)
		} else {
			faaFiles[base] = file
		}
	}
	if len(taxFiles) == 0 {
		return info, errors.Errorf("no *%s files found in %s", taxonomySuffix, opt.SourceDir)
	}

	// all marker gene files should be there before any work
	var missing []string
	for _, scg := range scgs {
		for _, f := range SCGFastas[scg] {
			if _, ok := faaFiles[f]; !ok {
				missing = append(missing, f)
			}
		}
	}
	if len(missing) > 0 {
		return info, errors.Errorf("%d marker gene file(s) missing in %s: %s",
			len(missing), opt.SourceDir, strings.Join(missing, ", "))
	}

	// taxonomy
	if logger != nil {
		logger.Infof("concatenating %d taxonomy file(s) ...", len(taxFiles))
	}
	info.Accessions, err = concatenateLines(layout.TaxonomyFile(), taxFiles)
	if err != nil {
		return info, err
	}

	// search databases
	info.Genes = make([]string, 0, len(scgs))
	info.Sequences = make([]int, 0, len(scgs))
	var n int
	for _, scg := range scgs {
		select {
		case <-ctx.Done():
			return info, ctx.Err()
		default:
		}

		sources := make([]string, 0, 2)
		for _, f := range SCGFastas[scg] {
			sources = append(sources, faaFiles[f])
		}

		n, err = mergeSequences(layout.FastaPath(scg), sources, logger)
		if err != nil {
			return info, errors.Wrapf(err, "merge reference sequences of %s", scg)
		}

		if logger != nil {
			logger.Infof("  building search database for %s (%d sequences) ...", scg, n)
		}
		err = maker.MakeDB(ctx, layout.FastaPath(scg), layout.DatabasePath(scg))
		if err != nil {
			return info, errors.Wrapf(err, "build search database of %s", scg)
		}

		info.Genes = append(info.Genes, scg)
		info.Sequences = append(info.Sequences, n)
	}

	info.Version = InfoVersion
	info.Release = opt.Release
	info.Source = opt.Source
	info.Created = time.Now().Format(time.RFC3339)

	_, err = info.WriteTo(layout.InfoFile())
	return info, err
}

func prepareDir(dir string, reset bool, logger *logging.Logger) error {
	existed, err := pathutil.DirExists(dir)
	if err != nil {
		return errors.Wrap(err, dir)
	}
	if existed {
		empty, err := pathutil.IsEmpty(dir)
		if err != nil {
			return errors.Wrap(err, dir)
		}
		if !empty {
			if !reset {
				return errors.Errorf("reference data directory not empty: %s, use --reset to overwrite", dir)
			}
			if logger != nil {
				logger.Infof("removing old reference data directory: %s", dir)
			}
			if err = os.RemoveAll(dir); err != nil {
				return err
			}
		}
	}
	return os.MkdirAll(dir, 0755)
}

func listFiles(path string, pattern *regexp.Regexp, threads int) ([]string, error) {
	files := make([]string, 0, 64)
	ch := make(chan string, threads)
	done := make(chan int)
	go func() {
		for file := range ch {
			files = append(files, file)
		}
		done <- 1
	}()

	cwalk.NumWorkers = threads
	err := cwalk.WalkWithSymlinks(path, func(_path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && pattern.MatchString(info.Name()) {
			ch <- filepath.Join(path, _path)
		}
		return nil
	})
	close(ch)
	<-done
	if err != nil {
		return nil, err
	}
	return files, nil
}

// concatenateLines writes non-empty lines of files to outFile,
// and returns the number of non-comment lines.
func concatenateLines(outFile string, files []string) (int, error) {
	outfh, err := xopen.Wopen(outFile)
	if err != nil {
		return 0, errors.Wrap(err, outFile)
	}
	defer outfh.Close()

	var n int
	for _, file := range files {
		fh, err := xopen.Ropen(file)
		if err != nil {
			return 0, errors.Wrap(err, file)
		}
		scanner := bufio.NewScanner(fh)
		scanner.Buffer(make([]byte, 0, 1<<16), 1<<24)
		var line string
		for scanner.Scan() {
			line = strings.TrimRight(scanner.Text(), "\r\n")
			if line == "" {
				continue
			}
			if line[0] != '#' {
				n++
			}
			outfh.WriteString(line)
			outfh.WriteString("\n")
		}
		err = scanner.Err()
		fh.Close()
		if err != nil {
			return 0, errors.Wrap(err, file)
		}
	}
	return n, nil
}

// mergeSequences writes sequences of files to outFile with alignment gaps
// removed, sequences composed of only gaps are skipped.
func mergeSequences(outFile string, files []string, logger *logging.Logger) (int, error) {
	outfh, err := xopen.Wopen(outFile)
	if err != nil {
		return 0, errors.Wrap(err, outFile)
	}
	defer outfh.Close()

	var n int
	var record *fastx.Record
	var s []byte
	for _, file := range files {
		var total, gapOnly int

		reader, err := fastx.NewReader(nil, file, "")
		if err != nil {
			return 0, errors.Wrap(err, file)
		}
		for {
			record, err = reader.Read()
			if err != nil {
				if err == io.EOF {
					break
				}
				reader.Close()
				return 0, errors.Wrap(err, file)
			}
			total++

			s = removeGaps(record.Seq.Seq)
			if len(s) == 0 {
				gapOnly++
				continue
			}

			outfh.WriteString(">")
			outfh.Write(record.Name)
			outfh.WriteString("\n")
			outfh.Write(s)
			outfh.WriteString("\n")
			n++
		}
		reader.Close()

		if gapOnly > 0 && logger != nil {
			logger.Infof("  %d of %d sequences in %s are all gaps and removed", gapOnly, total, filepath.Base(file))
		}
	}
	return n, nil
}

func removeGaps(s []byte) []byte {
	r := make([]byte, 0, len(s))
	for _, b := range s {
		if b == '-' || b == '.' {
			continue
		}
		r = append(r, b)
	}
	return r
}
