// Package artifacts manages the on-disk artifact tree: one directory per
// source domain and run timestamp, each holding an accident_info.json, plus
// the CSV export of the whole tree.
package artifacts

import (
	"crypto/md5"
	"encoding/hex"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
)

const InfoFileName = "accident_info.json"

var slugRe = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

// Slugify replaces every character outside [a-zA-Z0-9_-] with an underscore.
func Slugify(s string) string {
	return slugRe.ReplaceAllString(s, "_")
}

// Hash returns a short stable digest used for fallback directory names.
func Hash(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])[:10]
}

// OutDir creates and returns the artifact directory for one extraction run:
// baseDir/<domain-slug>/<timestamp>. The www. prefix is dropped from the
// domain; unparseable URLs fall back to a hash of the raw string.
func OutDir(baseDir, rawURL, stamp string) (string, error) {
	dir := filepath.Join(baseDir, domainSlug(rawURL), stamp)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", eris.Wrapf(err, "artifacts: create output dir %s", dir)
	}
	return dir, nil
}

func domainSlug(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return Hash(rawURL)
	}
	return Slugify(strings.TrimPrefix(u.Host, "www."))
}
