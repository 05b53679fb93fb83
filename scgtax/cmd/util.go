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

package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shenwei356/go-logging"
	"github.com/shenwei356/scgtax/scgtax/cmd/config"
	"github.com/shenwei356/scgtax/scgtax/cmd/store"
	"github.com/shenwei356/util/pathutil"
	"github.com/spf13/cobra"
	"github.com/twotwotwo/sorts"
)

// Options contains the global flags
type Options struct {
	NumCPUs int
	Verbose bool

	LogFile  string
	Log2File bool

	ConfigFile string

	Compress         bool
	CompressionLevel int
}

func getOptions(cmd *cobra.Command) *Options {
	threads := getFlagNonNegativeInt(cmd, "threads")
	if threads == 0 {
		threads = runtime.NumCPU()
	}

	sorts.MaxProcs = threads
	runtime.GOMAXPROCS(threads)

	logfile := getFlagString(cmd, "log")
	return &Options{
		NumCPUs: threads,
		Verbose: !getFlagBool(cmd, "quiet"),

		LogFile:  logfile,
		Log2File: logfile != "",

		ConfigFile: getFlagString(cmd, "config"),

		Compress:         true,
		CompressionLevel: -1,
	}
}

// getConfig loads the config file if given, and then overrides options
// with flags explicitly set in the command line.
func getConfig(cmd *cobra.Command, opt *Options) config.Config {
	var cfg config.Config
	var err error
	if opt.ConfigFile != "" {
		cfg, err = config.LoadFile(opt.ConfigFile)
		checkError(err)
	} else {
		cfg = config.Default()
		cfg.NumThreads = opt.NumCPUs
	}

	changed := func(flag string) bool {
		f := cmd.Flags().Lookup(flag)
		return f != nil && f.Changed
	}

	if changed("threads") {
		cfg.NumThreads = opt.NumCPUs
	}
	if changed("data-dir") {
		cfg.DataDir = getFlagString(cmd, "data-dir")
	}
	if changed("diamond") {
		cfg.Diamond = getFlagString(cmd, "diamond")
	}
	if changed("num-workers") {
		cfg.NumWorkers = getFlagInt(cmd, "num-workers")
	}
	if changed("max-target-seqs") {
		cfg.MaxTargetSeqs = getFlagInt(cmd, "max-target-seqs")
	}
	if changed("evalue") {
		cfg.Evalue = getFlagFloat64(cmd, "evalue")
	}
	if changed("min-pct-id") {
		cfg.MinPctID = getFlagFloat64(cmd, "min-pct-id")
	}
	if changed("write-buffer-size") {
		cfg.WriteBufferSize = getFlagInt(cmd, "write-buffer-size")
	}
	if changed("metagenome-mode") {
		cfg.MetagenomeMode = getFlagBool(cmd, "metagenome-mode")
	}
	if changed("scg-name-for-metagenome-mode") {
		cfg.SCGNameForMetagenomeMode = getFlagString(cmd, "scg-name-for-metagenome-mode")
	}
	if changed("just-do-it") {
		cfg.JustDoIt = getFlagBool(cmd, "just-do-it")
	}
	if changed("max-redundancy") {
		cfg.MaxRedundancy = getFlagFloat64(cmd, "max-redundancy")
	}

	checkError(cfg.Validate())
	return cfg
}

// addSearchFlags adds flags of options shared by searching commands.
func addSearchFlags(cmd *cobra.Command) {
	cfg := config.Default()
	cmd.Flags().StringP("data-dir", "d", cfg.DataDir,
		formatFlagUsage(`Reference data directory created by "scgtax setup".`))
	cmd.Flags().StringP("diamond", "", cfg.Diamond,
		formatFlagUsage(`Path of the DIAMOND binary.`))
	cmd.Flags().IntP("num-workers", "w", cfg.NumWorkers,
		formatFlagUsage(`Number of SCGs searched in parallel, each with -j/--threads threads.`))
	cmd.Flags().IntP("max-target-seqs", "", cfg.MaxTargetSeqs,
		formatFlagUsage(`Maximum number of hits of a locus.`))
	cmd.Flags().Float64P("evalue", "e", cfg.Evalue,
		formatFlagUsage(`Maximum e-value of hits.`))
	cmd.Flags().Float64P("min-pct-id", "p", cfg.MinPctID,
		formatFlagUsage(`Minimum percent identity of hits.`))
}

// openStore opens a project store, read-only or writable.
func openStore(path string, readOnly bool) *store.Store {
	if readOnly {
		ok, err := pathutil.DirExists(path)
		checkError(errors.Wrap(err, path))
		if !ok {
			checkError(fmt.Errorf("project database not found: %s", path))
		}
	}
	sopt := store.DefaultOptions()
	sopt.ReadOnly = readOnly
	s, err := store.Open(path, sopt)
	checkError(err)
	return s
}

// checkOutFileAndLogFile makes sure the output file is not the log file.
func checkOutFileAndLogFile(outFile string, opt *Options) {
	if !opt.Log2File || isStdout(outFile) {
		return
	}
	ro, err := filepath.Abs(outFile)
	if err != nil {
		checkError(fmt.Errorf("failed to check output file: %s", err))
	}
	rl, err := filepath.Abs(opt.LogFile)
	if err != nil {
		checkError(fmt.Errorf("failed to check log file: %s", err))
	}
	if ro == rl {
		checkError(fmt.Errorf("output file and log file should not be the same: %s", outFile))
	}
}

// startLog adds the log file and returns a function logging elapsed time
// and closing the log file.
func startLog(opt *Options) func() {
	var fhLog *os.File
	if opt.Log2File {
		fhLog = addLog(opt.LogFile, opt.Verbose)
	}
	timeStart := time.Now()
	return func() {
		if opt.Verbose || opt.Log2File {
			log.Info()
			log.Infof("elapsed time: %s", time.Since(timeStart))
			log.Info()
		}
		if opt.Log2File {
			fhLog.Close()
		}
	}
}

func isGzFile(file string) bool {
	return strings.HasSuffix(strings.ToLower(file), ".gz")
}

// libLogger returns the logger passed to library packages, nil for silence.
func libLogger(opt *Options) *logging.Logger {
	if opt.Verbose || opt.Log2File {
		return log
	}
	return nil
}
