// Package utils provides small, generic helper functions used across
// different layers of the application. These utilities are independent
// of domain or business logic.
package utils

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// AtoiDefault converts a string to an int using strconv.Atoi.
// If the string is empty or cannot be parsed as an integer,
// it returns the provided default value instead.
//
// Example:
//
//	n := utils.AtoiDefault("42", 0) // returns 42
//	n = utils.AtoiDefault("", 10)   // returns 10
//	n = utils.AtoiDefault("x", 5)   // returns 5
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

var (
	slugStrip    = regexp.MustCompile(`[^\w\s-]`)
	slugSeparate = regexp.MustCompile(`[-\s]+`)

	// deaccent decomposes characters and drops combining marks, so
	// "Depósito" becomes "Deposito" before the ascii filter runs.
	deaccent = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
)

// Slugify converts an arbitrary string (typically a listing title in
// Spanish) into a lowercase ascii slug: accents stripped, punctuation
// dropped, whitespace runs collapsed to single hyphens.
//
// Example:
//
//	Slugify("Depto. 2 amb en Belgrano ¡a estrenar!") // "depto-2-amb-en-belgrano-a-estrenar"
func Slugify(s string) string {
	folded, _, err := transform.String(deaccent, s)
	if err != nil {
		folded = s
	}
	var b strings.Builder
	for _, r := range folded {
		if r < 128 {
			b.WriteRune(r)
		}
	}
	out := strings.ToLower(b.String())
	out = slugStrip.ReplaceAllString(out, "")
	out = slugSeparate.ReplaceAllString(out, "-")
	return strings.Trim(out, "-_")
}
