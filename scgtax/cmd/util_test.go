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
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/shenwei356/scgtax/scgtax/cmd/refdata"
	"github.com/shenwei356/xopen"
	"github.com/spf13/cobra"
)

func newTestCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().IntP("threads", "j", 2, "")
	cmd.Flags().BoolP("quiet", "q", true, "")
	cmd.Flags().StringP("log", "", "", "")
	cmd.Flags().StringP("config", "", "", "")
	addSearchFlags(cmd)
	return cmd
}

func TestGetConfig(t *testing.T) {
	cmd := newTestCommand()
	if err := cmd.Flags().Parse([]string{}); err != nil {
		t.Fatal(err)
	}
	opt := getOptions(cmd)
	cfg := getConfig(cmd, opt)
	if cfg.NumThreads != 2 {
		t.Errorf("num_threads: expected 2, returned %d", cfg.NumThreads)
	}
	if cfg.DataDir != refdata.DefaultDataDir {
		t.Errorf("data_dir: expected %s, returned %s", refdata.DefaultDataDir, cfg.DataDir)
	}
	if cfg.MinPctID != 90 {
		t.Errorf("min_pct_id: expected 90, returned %g", cfg.MinPctID)
	}

	file := filepath.Join(t.TempDir(), "scgtax.yaml")
	err := os.WriteFile(file, []byte("data_dir: /data/gtdb\nnum_workers: 4\nmin_pct_id: 95\n"), 0644)
	if err != nil {
		t.Fatal(err)
	}

	cmd = newTestCommand()
	err = cmd.Flags().Parse([]string{"--config", file, "-p", "97", "-j", "3"})
	if err != nil {
		t.Fatal(err)
	}
	opt = getOptions(cmd)
	cfg = getConfig(cmd, opt)

	if cfg.DataDir != "/data/gtdb" {
		t.Errorf("data_dir: expected /data/gtdb, returned %s", cfg.DataDir)
	}
	if cfg.NumWorkers != 4 {
		t.Errorf("num_workers: expected 4, returned %d", cfg.NumWorkers)
	}
	if cfg.MinPctID != 97 {
		t.Errorf("min_pct_id: flag should have higher priority, returned %g", cfg.MinPctID)
	}
	if cfg.NumThreads != 3 {
		t.Errorf("num_threads: expected 3, returned %d", cfg.NumThreads)
	}
	if cfg.Evalue != 1e-05 {
		t.Errorf("evalue: expected the default one, returned %g", cfg.Evalue)
	}
}

func TestWriteToFile(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"out.tsv", "sub/out.tsv.gz"} {
		file := filepath.Join(dir, name)
		err := writeToFile(file, -1, func(w io.Writer) error {
			_, err := w.Write([]byte("bin_name\tt_domain\nbin_1\tBacteria\n"))
			return err
		})
		if err != nil {
			t.Fatalf("%s: %s", name, err)
		}

		r, err := xopen.Ropen(file)
		if err != nil {
			t.Fatal(err)
		}
		data, err := io.ReadAll(r)
		r.Close()
		if err != nil {
			t.Fatal(err)
		}
		if string(data) != "bin_name\tt_domain\nbin_1\tBacteria\n" {
			t.Errorf("%s: unexpected content: %q", name, data)
		}
	}
}
