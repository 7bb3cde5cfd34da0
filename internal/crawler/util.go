package crawler

import (
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/JakeFAU/historic-sites-crawler/internal/hash/sha256"
)

var invalidFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

func safeBasename(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return sha256.HexString(raw)
	}
	host := invalidFilenameChars.ReplaceAllString(u.Hostname(), "_")
	p := strings.Trim(u.EscapedPath(), "/")
	if p == "" {
		p = "root"
	}
	p = invalidFilenameChars.ReplaceAllString(p, "_")
	return fmt.Sprintf("%s_%s_%s", host, p, sha256.Short(raw, 16))
}

// dumpPath is the blob path for a diagnostic page snapshot.
func dumpPath(prefix, rawURL string) string {
	name := safeBasename(rawURL) + ".html"
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return name
	}
	return path.Join(prefix, name)
}
