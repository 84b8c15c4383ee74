package integrations

import (
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/icza/gox/stringsx"
	"github.com/kerbaras/readly/pkg/data"
	"golang.org/x/text/unicode/norm"
)

// MaxUniqueAttempts bounds the suffixes tried by GetUniquePath.
const MaxUniqueAttempts = 20

// ErrNamingExhausted is returned alongside the last candidate when every
// suffix was taken. Callers may proceed with that candidate.
var ErrNamingExhausted = errors.New("unique name attempts exhausted")

var (
	unsafeNameChars = strings.NewReplacer(
		"\\", "_", "/", "_", ":", "_", "*", "_", "<", "_",
		">", "_", "?", "_", "\"", "_", "|", "_",
	)
	whitespaceRun = regexp.MustCompile(`\s+`)
	trailingDots  = regexp.MustCompile(`\.+$`)
)

// GetUniquePath returns folder/name.ext, appending one more underscore to
// name while the candidate exists, up to MaxUniqueAttempts times.
func GetUniquePath(folder, name, ext string) (string, error) {
	return uniqueCandidate(folder, name, "."+ext)
}

// GetUniqueDir applies the GetUniquePath rule to a directory name.
func GetUniqueDir(folder, name string) (string, error) {
	return uniqueCandidate(folder, name, "")
}

func uniqueCandidate(folder, name, suffix string) (string, error) {
	filler := ""
	candidate := filepath.Join(folder, name+filler+suffix)
	for attempts := MaxUniqueAttempts; exists(candidate) && attempts > 0; attempts-- {
		filler += "_"
		candidate = filepath.Join(folder, name+filler+suffix)
	}
	if exists(candidate) {
		return candidate, ErrNamingExhausted
	}
	return candidate, nil
}

func exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

// CleanName makes a string usable as a file name on common filesystems.
func CleanName(name string) string {
	name = norm.NFC.String(name)
	name = unsafeNameChars.Replace(name)
	name = whitespaceRun.ReplaceAllString(name, " ")
	name = stringsx.Clean(name)
	return trailingDots.ReplaceAllString(name, "")
}

// ApplyPattern substitutes the literal words title, issue and date in
// pattern, in that order, then cleans the result. Substitution is plain
// substring replacement, so a value containing a later word is replaced too.
func ApplyPattern(pattern string, meta data.IssueMetadata) string {
	out := strings.ReplaceAll(pattern, "title", meta.Title)
	out = strings.ReplaceAll(out, "issue", meta.Issue)
	out = strings.ReplaceAll(out, "date", meta.Date)
	return CleanName(out)
}
