// Copyright 2026 The Ecovisor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use file except in compliance with the License.
// You may obtain a copy of the license at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ecosystem

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// File is the content of one ecosystem file.
type File struct {
	Apps []App `json:"apps" yaml:"apps"`

	// Dir is the directory the file was loaded from.  Relative paths in
	// the apps are resolved against it.  It is not part of the encoding.
	Dir string `json:"-" yaml:"-"`
}

type Format int

const (
	FormatJS Format = iota
	FormatJSON
	FormatYAML
)

func (f Format) String() string {
	switch f {
	case FormatJS:
		return "js"
	case FormatJSON:
		return "json"
	case FormatYAML:
		return "yaml"
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

// ParseFormat maps a format name (as used on command lines and in query
// strings) to a Format.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(name) {
	case "js", "javascript", "cjs", "mjs":
		return FormatJS, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrBadFormat, name)
}

// FormatFromPath guesses the format from a file name's extension.
func FormatFromPath(path string) (Format, error) {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if ext == "" {
		return 0, fmt.Errorf("%w: %s has no extension", ErrBadFormat, path)
	}
	return ParseFormat(ext)
}

// Parse decodes an ecosystem file held in memory.  Keys the descriptor
// does not know (deploy sections and the like) are ignored.
func Parse(b []byte, f Format) (*File, error) {
	file := &File{}
	switch f {
	case FormatJS:
		v, e := parseJS(b)
		if e != nil {
			return nil, e
		}
		if _, ok := v.(map[string]interface{}); !ok {
			return nil, fmt.Errorf("%w: exported value is not an object", ErrSyntax)
		}
		// The JS value tree is plain data, so it goes through the JSON
		// decoder and picks up the same defaults and scalar handling.
		raw, e := json.Marshal(v)
		if e != nil {
			return nil, e
		}
		if e := json.Unmarshal(raw, file); e != nil {
			return nil, e
		}
	case FormatJSON:
		if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
			return nil, fmt.Errorf("%w: null is not an ecosystem", ErrSyntax)
		}
		if e := json.Unmarshal(b, file); e != nil {
			return nil, e
		}
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(b))
		if e := dec.Decode(file); e != nil && e != io.EOF {
			return nil, e
		}
	default:
		return nil, ErrBadFormat
	}
	return file, nil
}

func Decode(r io.Reader, f Format) (*File, error) {
	b, e := io.ReadAll(r)
	if e != nil {
		return nil, e
	}
	return Parse(b, f)
}

// Encode writes the file in the requested format.
func Encode(w io.Writer, file *File, f Format) error {
	switch f {
	case FormatJS:
		return encodeJS(w, file)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(file)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if e := enc.Encode(file); e != nil {
			return e
		}
		return enc.Close()
	}
	return ErrBadFormat
}

// Marshal is Encode into a byte slice.
func Marshal(file *File, f Format) ([]byte, error) {
	var buf bytes.Buffer
	if e := Encode(&buf, file, f); e != nil {
		return nil, e
	}
	return buf.Bytes(), nil
}

// Load reads and validates an ecosystem file, picking the format from the
// extension.
func Load(path string) (*File, error) {
	f, e := FormatFromPath(path)
	if e != nil {
		return nil, e
	}
	b, e := os.ReadFile(path)
	if e != nil {
		return nil, e
	}
	file, e := Parse(b, f)
	if e != nil {
		return nil, fmt.Errorf("%s: %w", path, e)
	}
	if file.Dir, e = filepath.Abs(filepath.Dir(path)); e != nil {
		return nil, e
	}
	if e := file.Validate(); e != nil {
		return nil, fmt.Errorf("%s: %w", path, e)
	}
	return file, nil
}

func (file *File) Validate() error {
	seen := make(map[string]bool, len(file.Apps))
	for i := range file.Apps {
		a := &file.Apps[i]
		if e := a.Validate(); e != nil {
			return e
		}
		if seen[a.Name] {
			return fmt.Errorf("%w: %s", ErrDuplicateApp, a.Name)
		}
		seen[a.Name] = true
	}
	return nil
}

// Find returns the app with the given name.
func (file *File) Find(name string) (App, bool) {
	for _, a := range file.Apps {
		if a.Name == name {
			return a, true
		}
	}
	return App{}, false
}

func (file *File) Equal(o *File) bool {
	if len(file.Apps) != len(o.Apps) {
		return false
	}
	for i := range file.Apps {
		if !file.Apps[i].Equal(o.Apps[i]) {
			return false
		}
	}
	return true
}
