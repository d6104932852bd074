package parser

import (
	"fmt"

	"github.com/leapstack-labs/leaptable/pkg/token"
)

// Position is re-exported from the token package.
type Position = token.Position

// ParseError represents a parsing error with position information.
type ParseError struct {
	Pos     Position
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at line %d, column %d: %s", e.Pos.Line, e.Pos.Column, e.Message)
}

// LexError represents a lexical analysis error.
type LexError struct {
	Pos     Position
	Message string
}

func (e *LexError) Error() string {
	return fmt.Sprintf("lexer error at line %d, column %d: %s", e.Pos.Line, e.Pos.Column, e.Message)
}

// Common error messages
const (
	ErrUnexpectedToken      = "unexpected token %s, expected %s"
	ErrUnterminatedString   = "unterminated string literal"
	ErrUnterminatedIdent    = "unterminated quoted identifier"
	ErrIllegalCharacter     = "illegal character %q"
	ErrExpectedExpression   = "expected expression, found %s"
	ErrExpectedPredicate    = "expected a predicate after %s"
	ErrInvalidTableName     = "invalid table name %q"
	ErrTrailingInput        = "unexpected %s after end of query"
	ErrInvalidPagination    = "LIMIT and OFFSET must be non-negative integers"
	ErrEmptyInput           = "empty query"
	ErrStarNotAllowed       = "* is only allowed alone in the select list or in COUNT(*)"
	ErrSetFunctionArguments = "%s takes exactly one argument"
)
