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

// Package collection resolves named partitions of splits ("collections")
// into groups ("bins") and maps splits to the loci located in them.
package collection

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shenwei356/scgtax/scgtax/cmd/store"
)

// Source is where collections are read from. *store.Store satisfies it.
type Source interface {
	Collections() ([]store.CollectionInfo, error)
	Collection(name string) (store.CollectionInfo, bool, error)
	CollectionSplits(name string) (map[string][]string, error)
	CollectionColors(name string) (map[string]string, error)
	LociInSplits(splits []string) (map[string][]string, error)
}

// NotFoundError means the collection does not exist.
type NotFoundError struct {
	Kind      string
	Name      string
	Available []string
}

func (e *NotFoundError) Error() string {
	if len(e.Available) == 0 {
		return fmt.Sprintf("%s not found: %s. no %ss available", e.Kind, e.Name, e.Kind)
	}
	return fmt.Sprintf("%s not found: %s. available: %s", e.Kind, e.Name, strings.Join(e.Available, ", "))
}

// EmptySelectionError means some requested groups are absent,
// or the selection has no members at all.
type EmptySelectionError struct {
	Collection string
	Missing    []string
}

func (e *EmptySelectionError) Error() string {
	if len(e.Missing) == 0 {
		return fmt.Sprintf("nothing selected in collection %s", e.Collection)
	}
	return fmt.Sprintf("bin(s) not found in collection %s: %s", e.Collection, strings.Join(e.Missing, ", "))
}

// Membership is a read-only snapshot of a collection.
type Membership struct {
	Collection string
	Groups     map[string][]string // group -> sorted member splits
	Colors     map[string]string   // group -> color
}

// GroupNames returns sorted group names.
func (m *Membership) GroupNames() []string {
	names := make([]string, 0, len(m.Groups))
	for g := range m.Groups {
		names = append(names, g)
	}
	sort.Strings(names)
	return names
}

// Adapter reads collections from a Source.
type Adapter struct {
	src Source
}

// NewAdapter creates an Adapter.
func NewAdapter(src Source) *Adapter {
	return &Adapter{src: src}
}

// List returns summaries of all collections.
func (a *Adapter) List() ([]store.CollectionInfo, error) {
	return a.src.Collections()
}

func (a *Adapter) check(name string) error {
	_, ok, err := a.src.Collection(name)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	infos, err := a.src.Collections()
	if err != nil {
		return err
	}
	available := make([]string, len(infos))
	for i, info := range infos {
		available[i] = info.Name
	}
	return &NotFoundError{Kind: "collection", Name: name, Available: available}
}

// Resolve returns the member splits of all groups of a collection.
func (a *Adapter) Resolve(name string) (map[string][]string, error) {
	if err := a.check(name); err != nil {
		return nil, err
	}
	groups, err := a.src.CollectionSplits(name)
	if err != nil {
		return nil, err
	}
	for _, members := range groups {
		sort.Strings(members)
	}
	return groups, nil
}

// Colors returns group colors of a collection.
func (a *Adapter) Colors(name string) (map[string]string, error) {
	if err := a.check(name); err != nil {
		return nil, err
	}
	return a.src.CollectionColors(name)
}

// Select resolves a collection and keeps the given groups.
// Empty groups means all groups.
func (a *Adapter) Select(name string, groups []string) (*Membership, error) {
	all, err := a.Resolve(name)
	if err != nil {
		return nil, err
	}
	colors, err := a.src.CollectionColors(name)
	if err != nil {
		return nil, err
	}

	m := &Membership{Collection: name, Groups: all, Colors: colors}
	if len(groups) > 0 {
		m.Groups = make(map[string][]string, len(groups))
		m.Colors = make(map[string]string, len(groups))
		missing := make([]string, 0, 4)
		for _, g := range groups {
			members, ok := all[g]
			if !ok {
				missing = append(missing, g)
				continue
			}
			m.Groups[g] = members
			m.Colors[g] = colors[g]
		}
		if len(missing) > 0 {
			sort.Strings(missing)
			return nil, &EmptySelectionError{Collection: name, Missing: missing}
		}
	}

	var n int
	for _, members := range m.Groups {
		n += len(members)
	}
	if n == 0 {
		return nil, &EmptySelectionError{Collection: name}
	}
	return m, nil
}

// Loci maps each group to the sorted loci located in its member splits.
// A locus spanning more than one split of a group is listed once.
func (a *Adapter) Loci(m *Membership) (map[string][]string, error) {
	loci := make(map[string][]string, len(m.Groups))
	for g, splits := range m.Groups {
		m2, err := a.src.LociInSplits(splits)
		if err != nil {
			return nil, err
		}
		list := make([]string, 0, 64)
		for _, split := range splits {
			list = append(list, m2[split]...)
		}
		sort.Strings(list)
		loci[g] = uniqStrings(list)
	}
	return loci, nil
}

// uniqStrings removes duplicates of a sorted list in place.
func uniqStrings(list []string) []string {
	if len(list) < 2 {
		return list
	}
	j := 0
	for i := 1; i < len(list); i++ {
		if list[i] != list[j] {
			j++
			list[j] = list[i]
		}
	}
	return list[:j+1]
}
