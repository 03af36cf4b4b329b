package logger

import (
	"fmt"
	"log"
	"time"
)

// Logger receives progress events from the publish pipeline.
type Logger interface {
	Store(bundleID string, files int, size int64)
	Transaction(digest string, calls int)
	Retry(operation string, attempt int, delay time.Duration, err error)
	Warn(message string)
	Error(operation, target string, err error)
	Debug(message string)
}

// PublishLogger writes operation lines to stdout.
type PublishLogger struct {
	IsDryRun bool
	IsQuiet  bool
}

func (l *PublishLogger) prefix() string {
	if l.IsDryRun {
		return "(dryrun) "
	}
	return ""
}

func (l *PublishLogger) Store(bundleID string, files int, size int64) {
	if l.IsQuiet {
		return
	}
	fmt.Printf("%sstore: bundle %s (%d files, %d bytes)\n", l.prefix(), bundleID, files, size)
}

func (l *PublishLogger) Transaction(digest string, calls int) {
	if l.IsQuiet {
		return
	}
	fmt.Printf("%ssubmit: transaction %s (%d calls)\n", l.prefix(), digest, calls)
}

func (l *PublishLogger) Retry(operation string, attempt int, delay time.Duration, err error) {
	if l.IsQuiet {
		return
	}
	fmt.Printf("retry: %s attempt %d in %s: %v\n", operation, attempt, delay.Round(time.Millisecond), err)
}

func (l *PublishLogger) Warn(message string) {
	fmt.Printf("warning: %s\n", message)
}

func (l *PublishLogger) Error(operation, target string, err error) {
	log.Printf("error: %s %s: %v", operation, target, err)
}

func (l *PublishLogger) Debug(message string) {
	if !l.IsQuiet {
		fmt.Printf("debug: %s\n", message)
	}
}

// NullLogger discards all events.
type NullLogger struct{}

func (l *NullLogger) Store(bundleID string, files int, size int64) {}

func (l *NullLogger) Transaction(digest string, calls int) {}

func (l *NullLogger) Retry(operation string, attempt int, delay time.Duration, err error) {}

func (l *NullLogger) Warn(message string) {}

func (l *NullLogger) Error(operation, target string, err error) {}

func (l *NullLogger) Debug(message string) {}
