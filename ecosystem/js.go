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
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/viant/parsly"
	"github.com/viant/parsly/matcher"
)

// The JS format is the data-only subset of JavaScript that ecosystem files
// are written in: an optional "module.exports =" (or "export default")
// followed by an object literal.  Comments, trailing commas, unquoted keys
// and single-quoted strings are all accepted.  Anything that would need a
// JavaScript engine to evaluate (calls, template strings, arithmetic) is a
// syntax error.

const (
	spaceCode = iota + 1
	objectOpenCode
	objectCloseCode
	arrayOpenCode
	arrayCloseCode
	colonCode
	commaCode
	semicolonCode
	assignCode
	dotCode
	stringCode
	numberCode
	identCode
)

var (
	spaceToken       = parsly.NewToken(spaceCode, "Whitespace", &spaceMatcher{})
	objectOpenToken  = parsly.NewToken(objectOpenCode, "{", matcher.NewByte('{'))
	objectCloseToken = parsly.NewToken(objectCloseCode, "}", matcher.NewByte('}'))
	arrayOpenToken   = parsly.NewToken(arrayOpenCode, "[", matcher.NewByte('['))
	arrayCloseToken  = parsly.NewToken(arrayCloseCode, "]", matcher.NewByte(']'))
	colonToken       = parsly.NewToken(colonCode, ":", matcher.NewByte(':'))
	commaToken       = parsly.NewToken(commaCode, ",", matcher.NewByte(','))
	semicolonToken   = parsly.NewToken(semicolonCode, ";", matcher.NewByte(';'))
	assignToken      = parsly.NewToken(assignCode, "=", matcher.NewByte('='))
	dotToken         = parsly.NewToken(dotCode, ".", matcher.NewByte('.'))
	stringToken      = parsly.NewToken(stringCode, "String", &stringMatcher{})
	numberToken      = parsly.NewToken(numberCode, "Number", &numberMatcher{})
	identToken       = parsly.NewToken(identCode, "Identifier", &identMatcher{})
)

// spaceMatcher matches a run of whitespace and comments.
type spaceMatcher struct{}

func (m *spaceMatcher) Match(cursor *parsly.Cursor) int {
	input, size := cursor.Input, cursor.InputSize
	i := cursor.Pos
	for i < size {
		switch c := input[i]; {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v':
			i++
		case c == '/' && i+1 < size && input[i+1] == '/':
			for i < size && input[i] != '\n' {
				i++
			}
		case c == '/' && i+1 < size && input[i+1] == '*':
			end := strings.Index(string(input[i+2:size]), "*/")
			if end < 0 {
				return 0
			}
			i += end + 4
		default:
			return i - cursor.Pos
		}
	}
	return i - cursor.Pos
}

// stringMatcher matches a single or double quoted string on one line.
type stringMatcher struct{}

func (m *stringMatcher) Match(cursor *parsly.Cursor) int {
	input, size, pos := cursor.Input, cursor.InputSize, cursor.Pos
	if pos >= size || (input[pos] != '\'' && input[pos] != '"') {
		return 0
	}
	quote := input[pos]
	for i := pos + 1; i < size; i++ {
		switch input[i] {
		case '\\':
			i++
		case '\n':
			return 0
		case quote:
			return i - pos + 1
		}
	}
	return 0
}

type numberMatcher struct{}

func (m *numberMatcher) Match(cursor *parsly.Cursor) int {
	input, size, pos := cursor.Input, cursor.InputSize, cursor.Pos
	i := pos
	if i < size && (input[i] == '-' || input[i] == '+') {
		i++
	}
	digits := func() int {
		n := 0
		for i < size && isDigit(input[i]) {
			i++
			n++
		}
		return n
	}
	if digits() == 0 {
		return 0
	}
	if i < size && input[i] == '.' {
		i++
		if digits() == 0 {
			return 0
		}
	}
	if i < size && (input[i] == 'e' || input[i] == 'E') {
		i++
		if i < size && (input[i] == '-' || input[i] == '+') {
			i++
		}
		if digits() == 0 {
			return 0
		}
	}
	if i < size && isIdentByte(input[i]) {
		// 1G and friends are not numbers.
		return 0
	}
	return i - pos
}

type identMatcher struct{}

func (m *identMatcher) Match(cursor *parsly.Cursor) int {
	input, size, pos := cursor.Input, cursor.InputSize, cursor.Pos
	if pos >= size || isDigit(input[pos]) || !isIdentByte(input[pos]) {
		return 0
	}
	i := pos + 1
	for i < size && isIdentByte(input[i]) {
		i++
	}
	return i - pos
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isIdentByte(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') ||
		isDigit(c) || c == '_' || c == '$'
}

type jsParser struct {
	cursor *parsly.Cursor
}

// parseJS returns the exported value as a tree of maps, slices, strings,
// json.Numbers, bools and nils.
func parseJS(b []byte) (interface{}, error) {
	p := &jsParser{cursor: parsly.NewCursor("ecosystem", b, 0)}
	if e := p.prologue(); e != nil {
		return nil, e
	}
	v, e := p.value()
	if e != nil {
		return nil, e
	}
	p.skipSpace()
	p.cursor.MatchOne(semicolonToken)
	p.skipSpace()
	if p.cursor.Pos < p.cursor.InputSize {
		return nil, p.errorf("unexpected content after value")
	}
	return v, nil
}

func (p *jsParser) skipSpace() {
	p.cursor.MatchOne(spaceToken)
}

func (p *jsParser) errorf(format string, v ...interface{}) error {
	return fmt.Errorf("%w: offset %d: %s", ErrSyntax, p.cursor.Pos,
		fmt.Sprintf(format, v...))
}

func (p *jsParser) expected(tokens ...*parsly.Token) error {
	return fmt.Errorf("%w: %v", ErrSyntax, p.cursor.NewError(tokens...))
}

func (p *jsParser) expect(tok *parsly.Token) error {
	p.skipSpace()
	if p.cursor.MatchOne(tok).Code != tok.Code {
		return p.expected(tok)
	}
	return nil
}

func (p *jsParser) expectIdent(name string) error {
	p.skipSpace()
	m := p.cursor.MatchOne(identToken)
	if m.Code != identCode {
		return p.expected(identToken)
	}
	if text := m.Text(p.cursor); text != name {
		return p.errorf("expected %q, found %q", name, text)
	}
	return nil
}

// prologue consumes "module.exports =" or "export default".  A bare value
// is accepted too.
func (p *jsParser) prologue() error {
	p.skipSpace()
	start := p.cursor.Pos
	m := p.cursor.MatchOne(identToken)
	if m.Code != identCode {
		return nil
	}
	switch m.Text(p.cursor) {
	case "module":
		if e := p.expect(dotToken); e != nil {
			return e
		}
		if e := p.expectIdent("exports"); e != nil {
			return e
		}
		return p.expect(assignToken)
	case "export":
		return p.expectIdent("default")
	}
	p.cursor.Pos = start
	return nil
}

func (p *jsParser) value() (interface{}, error) {
	p.skipSpace()
	m := p.cursor.MatchAny(objectOpenToken, arrayOpenToken, stringToken,
		numberToken, identToken)
	switch m.Code {
	case objectOpenCode:
		return p.object()
	case arrayOpenCode:
		return p.array()
	case stringCode:
		return unquoteJS(m.Text(p.cursor))
	case numberCode:
		return jsNumber(m.Text(p.cursor))
	case identCode:
		switch text := m.Text(p.cursor); text {
		case "true":
			return true, nil
		case "false":
			return false, nil
		case "null", "undefined":
			return nil, nil
		default:
			return nil, p.errorf("unsupported expression %q", text)
		}
	}
	return nil, p.expected(objectOpenToken, arrayOpenToken, stringToken,
		numberToken, identToken)
}

func (p *jsParser) object() (map[string]interface{}, error) {
	obj := map[string]interface{}{}
	for {
		p.skipSpace()
		var key string
		m := p.cursor.MatchAny(objectCloseToken, stringToken, identToken, numberToken)
		switch m.Code {
		case objectCloseCode:
			return obj, nil
		case stringCode:
			k, e := unquoteJS(m.Text(p.cursor))
			if e != nil {
				return nil, e
			}
			key = k
		case identCode, numberCode:
			key = m.Text(p.cursor)
		default:
			return nil, p.expected(objectCloseToken, stringToken, identToken)
		}
		if e := p.expect(colonToken); e != nil {
			return nil, e
		}
		v, e := p.value()
		if e != nil {
			return nil, e
		}
		obj[key] = v

		p.skipSpace()
		switch p.cursor.MatchAny(commaToken, objectCloseToken).Code {
		case commaCode:
		case objectCloseCode:
			return obj, nil
		default:
			return nil, p.expected(commaToken, objectCloseToken)
		}
	}
}

func (p *jsParser) array() ([]interface{}, error) {
	arr := []interface{}{}
	for {
		p.skipSpace()
		if p.cursor.MatchOne(arrayCloseToken).Code == arrayCloseCode {
			return arr, nil
		}
		v, e := p.value()
		if e != nil {
			return nil, e
		}
		arr = append(arr, v)

		p.skipSpace()
		switch p.cursor.MatchAny(commaToken, arrayCloseToken).Code {
		case commaCode:
		case arrayCloseCode:
			return arr, nil
		default:
			return nil, p.expected(commaToken, arrayCloseToken)
		}
	}
}

// jsNumber normalises a numeric literal into something JSON accepts.
func jsNumber(text string) (json.Number, error) {
	text = strings.TrimPrefix(text, "+")
	if n, e := strconv.ParseInt(text, 10, 64); e == nil {
		return json.Number(strconv.FormatInt(n, 10)), nil
	}
	f, e := strconv.ParseFloat(text, 64)
	if e != nil {
		return "", fmt.Errorf("%w: bad number %q", ErrSyntax, text)
	}
	return json.Number(strconv.FormatFloat(f, 'g', -1, 64)), nil
}

func unquoteJS(quoted string) (string, error) {
	body := quoted[1 : len(quoted)-1]
	if !strings.ContainsRune(body, '\\') {
		return body, nil
	}
	var b strings.Builder
	for i := 0; i < len(body); i++ {
		c := body[i]
		if c != '\\' {
			b.WriteByte(c)
			continue
		}
		i++
		if i >= len(body) {
			return "", fmt.Errorf("%w: dangling escape in %s", ErrSyntax, quoted)
		}
		switch c = body[i]; c {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case 'b':
			b.WriteByte('\b')
		case 'f':
			b.WriteByte('\f')
		case 'v':
			b.WriteByte('\v')
		case '0':
			b.WriteByte(0)
		case 'x', 'u':
			n := 2
			if c == 'u' {
				n = 4
			}
			if i+1+n > len(body) {
				return "", fmt.Errorf("%w: short escape in %s", ErrSyntax, quoted)
			}
			r, e := strconv.ParseUint(body[i+1:i+1+n], 16, 32)
			if e != nil {
				return "", fmt.Errorf("%w: bad escape in %s", ErrSyntax, quoted)
			}
			i += n
			// A surrogate pair spells one character in two escapes.
			if c == 'u' && utf16.IsSurrogate(rune(r)) &&
				i+6 < len(body) && body[i+1] == '\\' && body[i+2] == 'u' {
				if lo, e := strconv.ParseUint(body[i+3:i+7], 16, 32); e == nil {
					if pair := utf16.DecodeRune(rune(r), rune(lo)); pair != utf8.RuneError {
						b.WriteRune(pair)
						i += 6
						continue
					}
				}
			}
			b.WriteRune(rune(r))
		default:
			// \' \" \\ \/ and any other character stand for themselves.
			b.WriteByte(c)
		}
	}
	return b.String(), nil
}
