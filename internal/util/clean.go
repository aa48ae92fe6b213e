// Package util sanitizes uploaded document bytes before extraction.
package util

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	log "github.com/sirupsen/logrus"
)

const maxBinaryCheckBytes = 512

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Typographic and Windows-1252 leftovers normalized so chunk sizes and
// placeholder matching see plain markdown.
var charReplacementMap = map[string]string{
	"\u2018": "'", "\u2019": "'", "\u201C": "\"", "\u201D": "\"",
	"\u2013": "-", "\u2014": "--", "\u2026": "...", "\u00a0": " ",
	"\u0091": "'", "\u0092": "'", "\u0093": "\"", "\u0094": "\"",
}

// IsLikelyBinary reports whether the upload looks like a binary file
// (a NUL byte within the first 512 bytes).
func IsLikelyBinary(data []byte) bool {
	if len(data) > maxBinaryCheckBytes {
		data = data[:maxBinaryCheckBytes]
	}
	return bytes.Contains(data, []byte{0})
}

// CleanContent strips a UTF-8 BOM, repairs invalid UTF-8 and normalizes
// typographic characters. src names the document in log messages.
func CleanContent(data []byte, src string) (string, error) {
	data = bytes.TrimPrefix(data, utf8BOM)

	if !utf8.Valid(data) {
		log.Warnf("%s contains invalid UTF-8, replacing invalid sequences", src)
		data = bytes.ToValidUTF8(data, []byte(string(utf8.RuneError)))
	}

	str := string(data)
	for bad, good := range charReplacementMap {
		str = strings.ReplaceAll(str, bad, good)
	}

	if !utf8.ValidString(str) {
		return "", fmt.Errorf("invalid UTF-8 after cleaning: %s", src)
	}
	return str, nil
}
