package naming

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidName is returned when a name does not follow the naming
// convention.
var ErrInvalidName = errors.New("invalid name")

// A Name is a hierarchical name that includes a series of tokens separated
// by dots, for example "M1.Segment[3]".
type Name struct {
	Tokens []Token
}

// Token is one dot-separated element of a name.
type Token struct {
	ElemName string
	Index    []int
}

// Parse parses a name string.
func Parse(s string) (Name, error) {
	parts := strings.Split(s, ".")
	name := Name{Tokens: make([]Token, len(parts))}

	for i, part := range parts {
		token, err := parseToken(part)
		if err != nil {
			return Name{}, err
		}

		name.Tokens[i] = token
	}

	return name, nil
}

func parseToken(s string) (Token, error) {
	if err := bracketsMustMatch(s); err != nil {
		return Token{}, err
	}

	segments := strings.Split(s, "[")
	token := Token{
		ElemName: segments[0],
		Index:    make([]int, 0, len(segments)-1),
	}

	for _, seg := range segments[1:] {
		if !strings.HasSuffix(seg, "]") {
			return Token{}, fmt.Errorf("%w: malformed index in %q",
				ErrInvalidName, s)
		}

		index, err := strconv.Atoi(strings.TrimSuffix(seg, "]"))
		if err != nil {
			return Token{}, fmt.Errorf("%w: index must be an integer in %q",
				ErrInvalidName, s)
		}

		token.Index = append(token.Index, index)
	}

	return token, nil
}

func bracketsMustMatch(s string) error {
	open := 0

	for _, c := range s {
		switch c {
		case '[':
			open++
		case ']':
			open--
			if open < 0 {
				return fmt.Errorf("%w: brackets must match in %q",
					ErrInvalidName, s)
			}
		}
	}

	if open != 0 {
		return fmt.Errorf("%w: brackets must match in %q", ErrInvalidName, s)
	}

	return nil
}

// Validate checks that a name follows the naming convention.
//  1. It is organized hierarchically: "A.B.C" is valid, "A.B.C." is not.
//  2. Individual elements are not empty: "A..B" is not valid.
//  3. Elements are capitalized CamelCase: "A.b" is not valid.
//  4. Elements in a series use square brackets: "Segment[3]".
func Validate(s string) error {
	name, err := Parse(s)
	if err != nil {
		return err
	}

	for _, token := range name.Tokens {
		if err := tokenMustBeValid(token); err != nil {
			return fmt.Errorf("name %q: %w", s, err)
		}
	}

	return nil
}

func tokenMustBeValid(token Token) error {
	if token.ElemName == "" {
		return fmt.Errorf("%w: element must not be empty", ErrInvalidName)
	}

	for _, c := range []string{"_", "\"", "'", "-", " "} {
		if strings.Contains(token.ElemName, c) {
			return fmt.Errorf("%w: element must not contain %q",
				ErrInvalidName, c)
		}
	}

	if token.ElemName[0] < 'A' || token.ElemName[0] > 'Z' {
		return fmt.Errorf("%w: element must start with a capital letter",
			ErrInvalidName)
	}

	return nil
}

// NameMustBeValid panics if the name does not follow the naming convention.
func NameMustBeValid(name string) {
	if err := Validate(name); err != nil {
		panic(err.Error())
	}
}

// BuildName builds a name from a parent name and an element name.
func BuildName(parentName, elementName string) string {
	if parentName == "" {
		return elementName
	}

	return parentName + "." + elementName
}

// BuildNameWithIndex builds a name from a parent name, an element name and an
// index.
func BuildNameWithIndex(parentName, elementName string, index int) string {
	return BuildName(parentName, elementName+"["+strconv.Itoa(index)+"]")
}
