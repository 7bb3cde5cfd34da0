// Package crawler implements the resumable historic-sites pipeline: index
// discovery, resume filtering, detail page extraction with operator-gated
// challenge handling, and per-record persistence. Concrete browsers,
// stores and summarizers live in sibling packages and plug in through the
// interfaces declared here.
package crawler
