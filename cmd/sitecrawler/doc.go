// Package main hosts the sitecrawler entrypoint.
//
// Architecture overview:
//   - Discovery: the index page is loaded through the configured browser (chromedp by default, colly for
//     script-free sites) and every link matching extract.link_selector is resolved and deduplicated.
//   - Resume: links already present in the record store are dropped before any detail page is visited, so a
//     crashed or interrupted run picks up where it stopped.
//   - Extraction: detail pages are visited one at a time in a single tab, with a jittered 1-3s pause between
//     visits. Verification pages pause the run until the operator presses Enter (CLI) or calls
//     POST /operator/resume (serve mode).
//   - Persistence & fanout: each record is appended and flushed before the next visit. A Pub/Sub notification is
//     published per record when pubsub.topic_name is set, and the CSV output is uploaded to GCS at the end of a
//     run when storage.gcs_bucket is set.
//
// Quick checklist:
//   - Configure env vars: SITECRAWLER_CRAWLER_INDEX_URL is required; SITECRAWLER_SUMMARIZER_ENDPOINT enables
//     model summaries; SITECRAWLER_STORAGE_DRIVER selects csv, postgres or memory. A .env file in the working
//     directory is read first.
//   - Run once: go run ./cmd/sitecrawler -config config.yaml (exit status 1 on any run error).
//   - Serve: go run ./cmd/sitecrawler -serve, then GET /scrape to trigger a run.
package main
