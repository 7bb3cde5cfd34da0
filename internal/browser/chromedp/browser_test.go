package chromedpbrowser

import (
	"testing"
	"time"

	"github.com/chromedp/cdproto/page"
)

func TestIdleTrackerIgnoresSignalsBeforeInit(t *testing.T) {
	t.Parallel()

	tracker := newIdleTracker()
	ch := tracker.arm()
	tracker.captureEvent(&page.EventLifecycleEvent{Name: "networkIdle"})
	select {
	case <-ch:
		t.Fatal("idle from the previous document must not release the wait")
	default:
	}

	tracker.captureEvent(&page.EventLifecycleEvent{Name: "init"})
	tracker.captureEvent(&page.EventLifecycleEvent{Name: "load"})
	tracker.captureEvent(&page.EventLifecycleEvent{Name: "networkIdle"})
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("expected idle signal after init")
	}
}

func TestIdleTrackerRearmResets(t *testing.T) {
	t.Parallel()

	tracker := newIdleTracker()
	first := tracker.arm()
	tracker.observe("init")
	tracker.observe("networkIdle")
	tracker.observe("networkIdle")

	second := tracker.arm()
	tracker.observe("networkIdle")
	select {
	case <-second:
		t.Fatal("re-armed tracker must wait for a new document")
	default:
	}
	if len(first) != 1 {
		t.Fatalf("expected the first channel to hold one signal, got %d", len(first))
	}
}

func TestIdleTrackerIgnoresOtherEvents(t *testing.T) {
	t.Parallel()

	tracker := newIdleTracker()
	ch := tracker.arm()
	tracker.captureEvent(&page.EventFrameNavigated{})
	tracker.observe("init")
	tracker.observe("DOMContentLoaded")
	select {
	case <-ch:
		t.Fatal("unexpected idle signal")
	default:
	}
}

func TestNewDoesNotLaunchChrome(t *testing.T) {
	t.Parallel()

	b := New(Config{Headless: true, UserAgent: "sitecrawler-test"}, nil)
	if b.tab == nil || b.idle == nil {
		t.Fatal("expected tab context and idle tracker to be prepared")
	}
	if err := b.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}
