package feed

import (
	"dmfeed/pkg/logger"
	"dmfeed/pkg/metrics"
)

// Reporter receives failures the feed handles locally: subscription and
// fetch errors, failed writes and best-effort side effects.
type Reporter interface {
	Report(op string, err error)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(op string, err error)

func (f ReporterFunc) Report(op string, err error) { f(op, err) }

type logReporter struct{}

func (logReporter) Report(op string, err error) {
	logger.Error("feed_operation_failed", "op", op, "error", err)
}

func (f *Feed) report(op string, err error) {
	metrics.FeedErrors.WithLabelValues(op).Inc()
	f.reporter.Report(op, err)
}
