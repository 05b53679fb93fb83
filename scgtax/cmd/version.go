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
	"context"
	"fmt"
	"time"

	"github.com/shenwei356/scgtax/scgtax/cmd/search"
	"github.com/spf13/cobra"
)

// VERSION of scgtax
const VERSION = "0.1.0"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information and check DIAMOND",
	Long: `Print version information and check DIAMOND

`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("scgtax v%s\n", VERSION)

		bin := getFlagString(cmd, "diamond")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		v, err := search.NewDiamond(bin).Version(ctx)
		if err != nil {
			fmt.Printf("DIAMOND: not available (%s)\n", err)
			return
		}
		fmt.Printf("DIAMOND: %s\n", v)
	},
}

func init() {
	RootCmd.AddCommand(versionCmd)

	versionCmd.Flags().StringP("diamond", "", "diamond",
		formatFlagUsage(`Path of the DIAMOND binary.`))
}
