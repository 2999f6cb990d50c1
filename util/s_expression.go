// Copyright 2024 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

// Very basic S-expression parser.  Used for the text form of machine
// IR functions.  ';' starts a comment that runs to the end of the line.

package util

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode"
)

type SExpKindT int

const (
	SExpInt SExpKindT = iota
	SExpSymbol
	SExpList
)

type SExpT struct {
	Kind    SExpKindT
	Integer int64
	Symbol  string
	List    []*SExpT
	Line    int // where the expression starts
}

func (sexp *SExpT) String() string {
	switch sexp.Kind {
	case SExpInt:
		return strconv.FormatInt(sexp.Integer, 10)
	case SExpSymbol:
		return sexp.Symbol
	case SExpList:
		if len(sexp.List) == 0 {
			return "()"
		}
		var result strings.Builder
		result.WriteString("(")
		for i, s := range sexp.List {
			if 0 < i {
				result.WriteString(" ")
			}
			result.WriteString(s.String())
		}
		result.WriteString(")")
		return result.String()
	}
	panic("bad S-expression")
}

func (sexp *SExpT) IsSymbol(symbol string) bool {
	return sexp.Kind == SExpSymbol && sexp.Symbol == symbol
}

var errUnexpectedClose = errors.New("unexpected ')'")

// Returns all of the top-level expressions in 'data'.

func ParseSExps(data string) ([]*SExpT, error) {
	lexer := &sexpLexerT{reader: bufio.NewReader(strings.NewReader(data)), line: 1}
	result := []*SExpT{}
	for {
		sexp, err := lexer.parse(false)
		if err == io.EOF {
			return result, nil
		} else if err != nil {
			return nil, err
		}
		result = append(result, sexp)
	}
}

func ParseSExp(data string) (*SExpT, error) {
	sexps, err := ParseSExps(data)
	if err != nil {
		return nil, err
	}
	if len(sexps) != 1 {
		return nil, fmt.Errorf("expected one S-expression, found %d", len(sexps))
	}
	return sexps[0], nil
}

type sexpLexerT struct {
	reader *bufio.Reader
	line   int
}

// Reads one expression.  A ')' with 'inList' set ends the enclosing list
// and is reported as errUnexpectedClose, which the list reader consumes.

func (lexer *sexpLexerT) parse(inList bool) (*SExpT, error) {
	token, line, err := lexer.nextToken()
	if err != nil {
		if err == io.EOF && inList {
			return nil, fmt.Errorf("line %d: unterminated list", lexer.line)
		}
		return nil, err
	}
	switch {
	case token == "(":
		list := &SExpT{Kind: SExpList, Line: line}
		for {
			elt, err := lexer.parse(true)
			if err == errUnexpectedClose {
				return list, nil
			} else if err != nil {
				return nil, err
			}
			list.List = append(list.List, elt)
		}
	case token == ")":
		if inList {
			return nil, errUnexpectedClose
		}
		return nil, fmt.Errorf("line %d: %w", line, errUnexpectedClose)
	}
	i, err := strconv.ParseInt(token, 10, 64)
	if err == nil {
		return &SExpT{Kind: SExpInt, Integer: i, Line: line}, nil
	}
	return &SExpT{Kind: SExpSymbol, Symbol: token, Line: line}, nil
}

func (lexer *sexpLexerT) nextToken() (string, int, error) {
	var contents strings.Builder
	inComment := false
	for {
		c, _, err := lexer.reader.ReadRune()
		if err != nil {
			if contents.Len() != 0 {
				return contents.String(), lexer.line, nil
			}
			return "", lexer.line, err
		}
		if inComment {
			if c == '\n' {
				lexer.line += 1
				inComment = false
			}
			continue
		}
		if 0 < contents.Len() {
			if isSymbolConstituent(c) {
				contents.WriteRune(c)
				continue
			}
			lexer.reader.UnreadRune()
			return contents.String(), lexer.line, nil
		}
		switch {
		case c == '\n':
			lexer.line += 1
		case unicode.IsSpace(c):
		case c == ';':
			inComment = true
		case c == '(' || c == ')':
			return string(c), lexer.line, nil
		case isSymbolConstituent(c):
			contents.WriteRune(c)
		default:
			return "", lexer.line, fmt.Errorf("line %d: unrecognized s-expression character %s",
				lexer.line, strconv.QuoteRune(c))
		}
	}
}

func isSymbolConstituent(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || strings.ContainsRune(":_*&%$@=.-+<>!", r)
}
