package textutil

import (
	"errors"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// fileNameReplacer replaces filesystem-unsafe characters with safe alternatives.
var fileNameReplacer = strings.NewReplacer(
	"/", "-",
	"\\", "-",
	":", "-",
	"*", "-",
	"?", "",
	"\"", "",
	"<", "",
	">", "",
	"|", "",
)

// SanitizeFileName replaces filesystem-unsafe characters in a filename.
// Slashes, backslashes, colons, and asterisks become dashes; other unsafe
// characters are removed. The result is NFC-normalized and trimmed.
func SanitizeFileName(name string) string {
	name = strings.TrimSpace(norm.NFC.String(name))
	if name == "" {
		return ""
	}
	return strings.TrimSpace(fileNameReplacer.Replace(name))
}

// SanitizeOutputName validates a manifest output name and returns its NFC
// form. Output names double as local file names and remote object names, so
// separators, control characters, and dot segments are rejected rather than
// rewritten: a silent rewrite could merge two distinct records.
func SanitizeOutputName(name string) (string, error) {
	name = strings.TrimSpace(norm.NFC.String(name))
	switch name {
	case "":
		return "", errors.New("empty output name")
	case ".", "..":
		return "", errors.New("output name must not be a dot segment")
	}
	for _, r := range name {
		if r == '/' || r == '\\' {
			return "", errors.New("output name must not contain path separators")
		}
		if unicode.IsControl(r) {
			return "", errors.New("output name must not contain control characters")
		}
	}
	return name, nil
}

// ValidateGroupKey checks that key can name its source file unchanged. Keys
// become "<key>.mp4" in the raw directory and on rclone sources, so any key
// SanitizeFileName would rewrite is rejected: two such keys could share one
// file.
func ValidateGroupKey(key string) error {
	switch key {
	case "":
		return errors.New("empty group key")
	case ".", "..":
		return errors.New("group key must not be a dot segment")
	}
	for _, r := range key {
		if unicode.IsControl(r) {
			return errors.New("group key must not contain control characters")
		}
	}
	if SanitizeFileName(key) != key {
		return errors.New(`group key is not a valid file name (path separators, : * ? " < > |, or non-NFC text)`)
	}
	return nil
}
