// Package featio reads and writes feature maps and consensus maps as JSON.
// Files whose name ends in ".zst" are zstd compressed.
package featio

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/524D/mzlink/internal/grouping"
	"github.com/klauspost/compress/zstd"
)

// Format of output, if it ever changes we should still be able to parse
// output from old versions
const FormatVersion = "1.0"

const compressedExt = ".zst"

// ErrUnknownFormat means a file holds neither a feature map nor a
// consensus map
var ErrUnknownFormat = errors.New("featio: unknown file format")

// document is the layout of a file. A feature map has Elements, a
// consensus map has ColumnHeaders and Features. A feature map made from
// a consensus map keeps the ColumnHeaders of its sub-elements.
type document struct {
	FormatVersion string
	Name          string                       `json:",omitempty"`
	Elements      *[]grouping.Element          `json:",omitempty"`
	ColumnHeaders []grouping.ColumnHeader      `json:",omitempty"`
	Features      *[]grouping.ConsensusFeature `json:",omitempty"`
}

// MapName derives a map name from a file name, e.g. "run1" for
// "data/run1.json.zst"
func MapName(path string) string {
	name := filepath.Base(path)
	if compressed(name) {
		name = name[:len(name)-len(compressedExt)]
	}
	return strings.TrimSuffix(name, filepath.Ext(name))
}

func decode(r io.Reader) (document, error) {
	var doc document
	d := json.NewDecoder(r)
	if err := d.Decode(&doc); err != nil {
		return doc, err
	}
	return doc, nil
}

func encode(w io.Writer, doc *document) error {
	doc.FormatVersion = FormatVersion
	e := json.NewEncoder(w)
	e.SetIndent(``, `  `) // Make output easier to read for humans
	return e.Encode(doc)
}

// DecodeMap reads a map from r. When r holds a consensus map, every
// consensus feature becomes one element that carries its members as
// sub-elements. name is used when the file doesn't name the map.
func DecodeMap(r io.Reader, name string) (grouping.Map, error) {
	doc, err := decode(r)
	if err != nil {
		return grouping.Map{}, err
	}
	switch {
	case doc.Elements != nil:
		if doc.Name != "" {
			name = doc.Name
		}
		return grouping.Map{Name: name, Elements: *doc.Elements, ColumnHeaders: doc.ColumnHeaders}, nil
	case doc.Features != nil:
		cm := grouping.ConsensusMap{ColumnHeaders: doc.ColumnHeaders, Features: *doc.Features}
		return cm.AsMap(name), nil
	}
	return grouping.Map{}, ErrUnknownFormat
}

// DecodeConsensusMap reads a consensus map from r
func DecodeConsensusMap(r io.Reader) (grouping.ConsensusMap, error) {
	doc, err := decode(r)
	if err != nil {
		return grouping.ConsensusMap{}, err
	}
	if doc.Features == nil {
		return grouping.ConsensusMap{}, ErrUnknownFormat
	}
	return grouping.ConsensusMap{ColumnHeaders: doc.ColumnHeaders, Features: *doc.Features}, nil
}

// EncodeMap writes a feature map to w
func EncodeMap(w io.Writer, m grouping.Map) error {
	elements := m.Elements
	if elements == nil {
		elements = []grouping.Element{}
	}
	return encode(w, &document{Name: m.Name, Elements: &elements, ColumnHeaders: m.ColumnHeaders})
}

// EncodeConsensusMap writes a consensus map to w
func EncodeConsensusMap(w io.Writer, cm grouping.ConsensusMap) error {
	features := cm.Features
	if features == nil {
		features = []grouping.ConsensusFeature{}
	}
	return encode(w, &document{ColumnHeaders: cm.ColumnHeaders, Features: &features})
}

// ReadMap reads a feature map or consensus map file
func ReadMap(path string) (grouping.Map, error) {
	var m grouping.Map
	err := readFile(path, func(r io.Reader) error {
		var err error
		m, err = DecodeMap(r, MapName(path))
		return err
	})
	return m, err
}

// ReadConsensusMap reads a consensus map file
func ReadConsensusMap(path string) (grouping.ConsensusMap, error) {
	var cm grouping.ConsensusMap
	err := readFile(path, func(r io.Reader) error {
		var err error
		cm, err = DecodeConsensusMap(r)
		return err
	})
	return cm, err
}

// WriteMap writes a feature map file
func WriteMap(path string, m grouping.Map) error {
	return writeFile(path, func(w io.Writer) error { return EncodeMap(w, m) })
}

// WriteConsensusMap writes a consensus map file
func WriteConsensusMap(path string, cm grouping.ConsensusMap) error {
	return writeFile(path, func(w io.Writer) error { return EncodeConsensusMap(w, cm) })
}

func compressed(path string) bool {
	return strings.EqualFold(filepath.Ext(path), compressedExt)
}

func readFile(path string, fn func(io.Reader) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var r io.Reader = bufio.NewReader(f)
	if compressed(path) {
		dec, err := zstd.NewReader(r)
		if err != nil {
			return fmt.Errorf("failed to create zstd reader: %w", err)
		}
		defer dec.Close()
		r = dec
	}
	if err := fn(r); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

func writeFile(path string, fn func(io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	bufWriter := bufio.NewWriterSize(f, 1024*1024)
	if !compressed(path) {
		if err := fn(bufWriter); err != nil {
			return err
		}
		return bufWriter.Flush()
	}

	enc, err := zstd.NewWriter(bufWriter,
		zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		return fmt.Errorf("failed to create zstd writer: %w", err)
	}
	if err := fn(enc); err != nil {
		enc.Close()
		return err
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to close encoder: %w", err)
	}
	return bufWriter.Flush()
}
