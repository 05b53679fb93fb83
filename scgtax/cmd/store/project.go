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

package store

import (
	"encoding/binary"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// keys of the meta table
const (
	MetaProjectName     = "project_name"
	MetaSCGTaxonomyRun  = "scg_taxonomy_was_run"
	MetaSCGTaxonomyData = "scg_taxonomy_database_version"
)

// Meta returns a meta value, "" for absent keys.
func (s *Store) Meta(key string) (string, error) {
	v, err := s.Get(TableMeta, key)
	if err == ErrNotFound {
		return "", nil
	}
	return string(v), err
}

// SetMeta sets a meta value.
func (s *Store) SetMeta(key, value string) error {
	return s.Set(TableMeta, []byte(value), key)
}

// ProjectName returns the project name, "Unknown" if not set.
func (s *Store) ProjectName() (string, error) {
	name, err := s.Meta(MetaProjectName)
	if err != nil {
		return "", err
	}
	if name == "" {
		return "Unknown", nil
	}
	return name, nil
}

// ------------------------------------------------------------------------
// collections

// CollectionInfo summarizes a collection.
type CollectionInfo struct {
	Name      string
	NumBins   int
	NumSplits int
}

func encodeCollectionInfo(info CollectionInfo) []byte {
	buf := make([]byte, 8)
	be.PutUint32(buf[0:4], uint32(info.NumBins))
	be.PutUint32(buf[4:8], uint32(info.NumSplits))
	return buf
}

func decodeCollectionInfo(name string, data []byte) (CollectionInfo, error) {
	if len(data) != 8 {
		return CollectionInfo{}, ErrInvalidRecord
	}
	return CollectionInfo{
		Name:      name,
		NumBins:   int(be.Uint32(data[0:4])),
		NumSplits: int(be.Uint32(data[4:8])),
	}, nil
}

var be = binary.BigEndian

var emptyValue = []byte{}

// Collections returns summaries of all collections, sorted by name.
func (s *Store) Collections() ([]CollectionInfo, error) {
	infos := make([]CollectionInfo, 0, 8)
	err := s.Iterate(TableCollectionsInfo, func(parts []string, value []byte) error {
		info, err := decodeCollectionInfo(parts[0], value)
		if err != nil {
			return err
		}
		infos = append(infos, info)
		return nil
	})
	return infos, err
}

// Collection returns the summary of a collection.
func (s *Store) Collection(name string) (CollectionInfo, bool, error) {
	v, err := s.Get(TableCollectionsInfo, name)
	if err == ErrNotFound {
		return CollectionInfo{}, false, nil
	}
	if err != nil {
		return CollectionInfo{}, false, err
	}
	info, err := decodeCollectionInfo(name, v)
	return info, err == nil, err
}

// CollectionColors returns bin colors of a collection.
func (s *Store) CollectionColors(name string) (map[string]string, error) {
	colors := make(map[string]string, 64)
	err := s.Iterate(TableCollectionsBins, func(parts []string, value []byte) error {
		colors[parts[0]] = string(value)
		return nil
	}, name)
	return colors, err
}

// CollectionSplits returns sorted split names of each bin of a collection.
func (s *Store) CollectionSplits(name string) (map[string][]string, error) {
	bins := make(map[string][]string, 64)
	err := s.Iterate(TableCollectionsSplits, func(parts []string, value []byte) error {
		if len(parts) != 2 {
			return ErrInvalidRecord
		}
		bins[parts[0]] = append(bins[parts[0]], parts[1])
		return nil
	}, name)
	return bins, err
}

// validName checks names used as key parts.
func validName(kind, name string) error {
	if name == "" {
		return errors.Errorf("empty %s name", kind)
	}
	if strings.IndexByte(name, sep) >= 0 {
		return errors.Errorf("invalid %s name: %q", kind, name)
	}
	return nil
}

// ImportCollection stores a collection, an existing one with the same
// name is replaced. Bins without colors get generated ones.
func (s *Store) ImportCollection(name string, bins map[string][]string, colors map[string]string, bufferSize int) (CollectionInfo, error) {
	info := CollectionInfo{Name: name}
	if err := validName("collection", name); err != nil {
		return info, err
	}

	if err := s.DeleteCollection(name, bufferSize); err != nil {
		return info, err
	}

	binNames := make([]string, 0, len(bins))
	for bin := range bins {
		if err := validName("bin", bin); err != nil {
			return info, err
		}
		binNames = append(binNames, bin)
	}
	sort.Strings(binNames)

	w, err := s.NewBatchWriter(bufferSize)
	if err != nil {
		return info, err
	}
	for i, bin := range binNames {
		color, ok := colors[bin]
		if !ok || color == "" {
			color = DefaultColor(i)
		}
		if err = w.Set(TableCollectionsBins, []byte(color), name, bin); err != nil {
			w.Discard()
			return info, err
		}
		for _, split := range bins[bin] {
			if err = validName("split", split); err != nil {
				w.Discard()
				return info, err
			}
			if err = w.Set(TableCollectionsSplits, emptyValue, name, bin, split); err != nil {
				w.Discard()
				return info, err
			}
			info.NumSplits++
		}
	}
	info.NumBins = len(binNames)
	if err = w.Set(TableCollectionsInfo, encodeCollectionInfo(info), name); err != nil {
		w.Discard()
		return info, err
	}
	return info, w.Close()
}

// DeleteCollection removes a collection.
func (s *Store) DeleteCollection(name string, bufferSize int) error {
	if _, err := s.DeletePrefix(TableCollectionsSplits, bufferSize, name); err != nil {
		return err
	}
	if _, err := s.DeletePrefix(TableCollectionsBins, bufferSize, name); err != nil {
		return err
	}
	_, err := s.Get(TableCollectionsInfo, name)
	if err == ErrNotFound {
		return nil
	}
	if err != nil {
		return err
	}
	w, err := s.NewBatchWriter(1)
	if err != nil {
		return err
	}
	if err = w.deleteKey(prefixKey(TableCollectionsInfo, name)); err != nil {
		w.Discard()
		return err
	}
	return w.Close()
}

var palette = []string{
	"#1f77b4", "#ff7f0e", "#2ca02c", "#d62728", "#9467bd",
	"#8c564b", "#e377c2", "#7f7f7f", "#bcbd22", "#17becf",
}

// DefaultColor returns the i-th color of a fixed palette.
func DefaultColor(i int) string {
	if i < 0 {
		i = -i
	}
	return palette[i%len(palette)]
}

// ------------------------------------------------------------------------
// genes in splits

// SplitLocus is a locus located in a split.
type SplitLocus struct {
	Split string
	Locus string
}

// ImportGenesInSplits stores split-locus pairs.
func (s *Store) ImportGenesInSplits(pairs []SplitLocus, bufferSize int) (int, error) {
	w, err := s.NewBatchWriter(bufferSize)
	if err != nil {
		return 0, err
	}
	for _, p := range pairs {
		if err = validName("split", p.Split); err != nil {
			w.Discard()
			return 0, err
		}
		if err = validName("locus", p.Locus); err != nil {
			w.Discard()
			return 0, err
		}
		if err = w.Set(TableGenesInSplits, emptyValue, p.Split, p.Locus); err != nil {
			w.Discard()
			return 0, err
		}
	}
	return w.Total(), w.Close()
}

// LociInSplits returns loci of each split.
func (s *Store) LociInSplits(splits []string) (map[string][]string, error) {
	m := make(map[string][]string, len(splits))
	for _, split := range splits {
		err := s.Iterate(TableGenesInSplits, func(parts []string, value []byte) error {
			m[split] = append(m[split], parts[0])
			return nil
		}, split)
		if err != nil {
			return nil, err
		}
	}
	return m, nil
}

// AllSplits returns all split names with loci.
func (s *Store) AllSplits() ([]string, error) {
	splits := make([]string, 0, 1024)
	var last string
	err := s.Iterate(TableGenesInSplits, func(parts []string, value []byte) error {
		if len(splits) == 0 || parts[0] != last {
			splits = append(splits, parts[0])
			last = parts[0]
		}
		return nil
	})
	return splits, err
}
