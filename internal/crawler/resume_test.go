package crawler

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterPending(t *testing.T) {
	t.Parallel()
	done := map[string]struct{}{"A": {}, "B": {}}

	items := FilterPending([]string{"A", "B", "C"}, done)
	require.Len(t, items, 1)
	assert.Equal(t, WorkItem{URL: "C", Index: 1, Total: 1}, items[0])
}

func TestFilterPendingKeepsOrderAndDropsDuplicates(t *testing.T) {
	t.Parallel()
	items := FilterPending([]string{"C", "A", "C", "B"}, nil)
	got := make([]string, 0, len(items))
	for _, it := range items {
		got = append(got, it.URL)
	}
	assert.Equal(t, []string{"C", "A", "B"}, got)
	assert.Equal(t, 3, items[2].Total)
}

func TestFilterPendingAllDone(t *testing.T) {
	t.Parallel()
	assert.Empty(t, FilterPending([]string{"A"}, map[string]struct{}{"A": {}}))
}

func TestFilterPendingMatchesUnnormalizedStoredKeys(t *testing.T) {
	t.Parallel()
	done := map[string]struct{}{
		"HTTPS://Sites.Example:443/sites/a#history": {},
		"not a url %zz":                              {},
	}
	items := FilterPending([]string{"https://sites.example/sites/a", "https://sites.example/sites/b"}, done)
	require.Len(t, items, 1)
	assert.Equal(t, "https://sites.example/sites/b", items[0].URL)
}

func TestDedupeLinksDropsIndexPage(t *testing.T) {
	t.Parallel()
	base, err := url.Parse("https://sites.example/list")
	require.NoError(t, err)

	got := dedupeLinks(base, []string{"list#top", "/#x", "/list", "/sites/a", "#top", "/sites/a#map"},
		"https://sites.example/", "https://sites.example/list")
	assert.Equal(t, []string{"https://sites.example/sites/a"}, got)
}

func TestResolveLink(t *testing.T) {
	t.Parallel()
	base, err := url.Parse("https://Sites.Example:443/list/index.html")
	require.NoError(t, err)

	tests := []struct {
		href string
		want string
		ok   bool
	}{
		{href: "/sites/a", want: "https://sites.example/sites/a", ok: true},
		{href: "b.html#history", want: "https://sites.example/list/b.html", ok: true},
		{href: "http://other.example:80/x", want: "http://other.example/x", ok: true},
		{href: "#top", ok: false},
		{href: "  ", ok: false},
		{href: "mailto:info@sites.example", ok: false},
		{href: "javascript:void(0)", ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.href, func(t *testing.T) {
			got, ok := ResolveLink(base, tt.href)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeURL(t *testing.T) {
	t.Parallel()
	got, err := NormalizeURL("HTTP://Example.COM:80/a#frag")
	require.NoError(t, err)
	assert.Equal(t, "http://example.com/a", got)
}

func TestDumpPath(t *testing.T) {
	t.Parallel()
	p := dumpPath("/dumps/", "https://sites.example/sites/b")
	assert.Regexp(t, `^dumps/sites\.example_sites_b_[0-9a-f]{16}\.html$`, p)
	assert.Regexp(t, `^sites\.example_root_`, dumpPath("", "https://sites.example/"))
}
