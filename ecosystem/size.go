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
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Size is a memory amount as written in an ecosystem file, e.g. "1G",
// "512M", "200K" or a plain byte count.  The textual form is kept so that
// a file round-trips exactly; Bytes interprets it.  Multipliers are powers
// of 1024.  The empty Size means "no limit".
type Size string

var sizeUnits = map[string]int64{
	"":  1,
	"K": 1 << 10,
	"M": 1 << 20,
	"G": 1 << 30,
	"T": 1 << 40,
}

// Bytes returns the number of bytes the size denotes.  Zero is returned
// for the empty size.
func (s Size) Bytes() (int64, error) {
	str := strings.ToUpper(strings.TrimSpace(string(s)))
	if str == "" {
		return 0, nil
	}
	str = strings.TrimSuffix(str, "B")
	end := len(str)
	for end > 0 && (str[end-1] < '0' || str[end-1] > '9') {
		end--
	}
	mult, ok := sizeUnits[str[end:]]
	if !ok || end == 0 {
		return 0, fmt.Errorf("%w: %q", ErrBadSize, string(s))
	}
	n, e := strconv.ParseInt(str[:end], 10, 64)
	if e != nil || n < 0 {
		return 0, fmt.Errorf("%w: %q", ErrBadSize, string(s))
	}
	if n > (1<<63-1)/mult {
		return 0, fmt.Errorf("%w: %q overflows", ErrBadSize, string(s))
	}
	return n * mult, nil
}

// FormatSize renders a byte count using the largest unit that divides it
// evenly.
func FormatSize(n int64) Size {
	for _, u := range []string{"T", "G", "M", "K"} {
		m := sizeUnits[u]
		if n != 0 && n%m == 0 {
			return Size(strconv.FormatInt(n/m, 10) + u)
		}
	}
	return Size(strconv.FormatInt(n, 10))
}

// UnmarshalJSON accepts either a string or a bare number of bytes.
func (s *Size) UnmarshalJSON(b []byte) error {
	v, e := scalarText(b)
	if e != nil {
		return fmt.Errorf("%w: %v", ErrBadSize, e)
	}
	*s = Size(v)
	return nil
}

func (s *Size) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.ScalarNode {
		return fmt.Errorf("%w: line %d: not a scalar", ErrBadSize, n.Line)
	}
	*s = Size(n.Value)
	return nil
}
