// Package operator lets a human clear verification challenges mid-crawl.
package operator

import (
	"bufio"
	"context"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/historic-sites-crawler/internal/crawler"
)

const bell = "\a"

// Resume hints shown to the operator, one per signal channel.
const (
	ConsoleHint = "press Enter in this terminal"
	HTTPHint    = "POST /operator/resume"
)

// Gate pauses the crawl until an operator signals that a challenge has been
// solved. Signals arrive from the console reader or the HTTP API.
type Gate struct {
	resume chan struct{}
	alert  io.Writer
	hint   string
	logger *zap.Logger
}

var _ crawler.Operator = (*Gate)(nil)

// NewGate builds a Gate that rings the terminal bell on alert and tells the
// operator how to resume. A nil writer defaults to stderr and an empty hint
// to ConsoleHint.
func NewGate(alert io.Writer, hint string, logger *zap.Logger) *Gate {
	if alert == nil {
		alert = os.Stderr
	}
	if strings.TrimSpace(hint) == "" {
		hint = ConsoleHint
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{
		resume: make(chan struct{}, 1),
		alert:  alert,
		hint:   hint,
		logger: logger,
	}
}

// Alert rings the bell and drops any resume signal sent before the
// challenge was seen.
func (g *Gate) Alert(_ context.Context, url string) {
	select {
	case <-g.resume:
	default:
	}
	_, _ = io.WriteString(g.alert, bell)
	g.logger.Warn("operator action required: solve the challenge in the browser, then "+g.hint,
		zap.String("url", url),
		zap.String("resume_with", g.hint),
	)
}

// AwaitResume blocks until Resume is called or ctx ends.
func (g *Gate) AwaitResume(ctx context.Context) error {
	select {
	case <-g.resume:
		g.logger.Info("operator resume received")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Resume signals the waiting crawl. It never blocks; repeated signals
// collapse into one.
func (g *Gate) Resume() {
	select {
	case g.resume <- struct{}{}:
	default:
	}
}

// ListenConsole resumes the gate for each line read from r until r is
// exhausted or ctx ends. It is meant to run in its own goroutine.
func (g *Gate) ListenConsole(ctx context.Context, r io.Reader) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			g.logger.Debug("console reader stopped", zap.Error(err))
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			g.logger.Debug("console input", zap.String("line", strings.TrimSpace(line)))
			g.Resume()
		}
	}
}
