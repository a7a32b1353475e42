// Package format validates report captions and extracts the 8-digit code
// they start with.
//
// Accepted shape:
//
//	[whitespace] DDDDDDDD " - " <non-whitespace>[free text...]
//
// The separator is exactly one space, a hyphen and one space. The remainder
// may span several lines. The strict variant additionally limits the
// remainder to letters, digits and spaces.
package format

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// CodeLen is the number of digits in a report code.
const CodeLen = 8

var (
	// \d and \s are ASCII-only in RE2, which is what we want here.
	inclusiveRe = regexp.MustCompile(`^\s*(\d{8}) - \S`)
	strictRe    = regexp.MustCompile(`^\s*(\d{8}) - [\p{L}\p{M}\p{N}][\p{L}\p{M}\p{N} ]*$`)
	codeOnlyRe  = regexp.MustCompile(`^\d{8}$`)
)

// Validator extracts codes from submission content. The zero value is the
// inclusive validator.
type Validator struct {
	Strict bool
}

// New returns a Validator; strict selects the letters/digits/spaces variant.
func New(strict bool) Validator {
	return Validator{Strict: strict}
}

// ExtractCode returns the code carried by content and true, or "" and false
// when content does not satisfy the grammar. It never fails.
func (v Validator) ExtractCode(content string) (string, bool) {
	if v.Strict {
		s := strings.TrimRight(norm.NFC.String(content), " \t\r\n")
		return match(strictRe, s)
	}
	return match(inclusiveRe, content)
}

// ExtractCode applies the inclusive grammar.
func ExtractCode(content string) (string, bool) {
	return Validator{}.ExtractCode(content)
}

// IsCode reports whether s is exactly one 8-digit code. The daily report
// uses it to ignore unrelated roster rows.
func IsCode(s string) bool {
	return codeOnlyRe.MatchString(s)
}

func match(re *regexp.Regexp, s string) (string, bool) {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	return m[1], true
}
