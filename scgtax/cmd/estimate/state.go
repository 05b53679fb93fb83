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
	"fmt"

	"github.com/pkg/errors"
)

// State is the stage of an estimation run.
type State uint8

const (
	Uninitialized State = iota
	Loaded
	Searched
	Reduced
	Finalized
)

var stateNames = [...]string{"UNINITIALIZED", "LOADED", "SEARCHED", "REDUCED", "FINALIZED"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}

// ErrStateTransition means a step is called out of order.
var ErrStateTransition = errors.New("estimate: invalid state transition")

// advance moves to a later state. from lists the states the step could
// start from.
func (e *Estimator) advance(to State, from ...State) error {
	for _, s := range from {
		if e.state == s && to > s {
			e.state = to
			return nil
		}
	}
	return errors.Wrapf(ErrStateTransition, "%s -> %s", e.state, to)
}

// State returns the current state.
func (e *Estimator) State() State { return e.state }
