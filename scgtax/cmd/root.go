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
	"os"
	"runtime"

	"github.com/spf13/cobra"
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "scgtax",
	Short: "Taxonomy estimation with single-copy core genes",
	Long: fmt.Sprintf(`
    Program: scgtax (Taxonomy estimation with Single-Copy core Genes)
    Version: v%s
Source code: https://github.com/shenwei356/scgtax

scgtax estimates taxonomy of genomes, bins of a collection, or metagenomes,
by searching amino acid sequences of 22 single-copy core genes (SCGs)
against GTDB reference sequences with DIAMOND.

Steps:
    1. scgtax setup             build the reference data directory.
    2. scgtax import-splits     import gene calls in splits into a project.
    3. scgtax import-collection import bins of a collection into a project.
    4. scgtax run               search SCG loci and store locus calls.
    5. scgtax estimate          estimate taxonomy of genomes, bins or metagenomes.

Others:
    scgtax lowident             lowest percent identity of reference sequences per taxon.

`, VERSION),
}

// Execute adds all child commands to the root command sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(-1)
	}
}

func init() {
	defaultThreads := runtime.NumCPU()

	RootCmd.PersistentFlags().IntP("threads", "j", defaultThreads, "number of CPUs to use")
	RootCmd.PersistentFlags().BoolP("quiet", "q", false, "do not print any verbose information")
	RootCmd.PersistentFlags().StringP("log", "", "", "log file")
	RootCmd.PersistentFlags().StringP("config", "", "", "YAML config file, options set in command line have higher priority")
}
