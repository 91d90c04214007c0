package observer

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"
)

var (
	infoColor    = color.New(color.FgBlue).SprintFunc()
	successColor = color.New(color.FgGreen).SprintFunc()
	warningColor = color.New(color.FgYellow).SprintFunc()
	errorColor   = color.New(color.FgRed).SprintFunc()
	alertColor   = color.New(color.FgRed, color.Bold).SprintFunc()
)

// ConsoleObserver prints a human readable progress trace
type ConsoleObserver struct {
	mu sync.Mutex
	w  io.Writer
}

// NewConsoleObserver creates a console observer writing to w
func NewConsoleObserver(w io.Writer) *ConsoleObserver {
	return &ConsoleObserver{w: w}
}

func (o *ConsoleObserver) printf(prefix string, format string, args ...interface{}) {
	fmt.Fprintf(o.w, "%s %s\n", prefix, fmt.Sprintf(format, args...))
}

// OnEvent prints one line per event
func (o *ConsoleObserver) OnEvent(ctx context.Context, event AnalysisEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()

	md := event.Metadata
	switch event.EventType {
	case AnalysisStarted:
		o.printf(infoColor("[*]"), "Analyzing %s", event.Source)
	case SourceResolved:
		o.printf(infoColor("[*]"), "Resolved source to %v", md["path"])
	case SourceResolveFailed:
		o.printf(errorColor("[-]"), "Could not resolve source: %s", event.ErrorMessage)
	case ImageDecoded:
		o.printf(successColor("[+]"), "Decoded %v image, %vx%v", md["format"], md["width"], md["height"])
	case DecodeFailed:
		o.printf(errorColor("[-]"), "Decode failed: %s", event.ErrorMessage)
	case MetadataExtracted:
		for _, key := range []string{"attributes_error", "exif_error", "tool_error"} {
			if msg, ok := md[key].(string); ok && msg != "" {
				o.printf(warningColor("[!]"), "%s", msg)
			}
		}
		o.printf(infoColor("[*]"), "Metadata: %v attributes, %v EXIF tags", md["attributes"], md["exif_tags"])
	case ScreenshotClassified:
		o.printf(infoColor("[*]"), "Screenshot check: %v (+%v)", md["label"], md["score"])
	case ForgeryScored:
		o.printf(infoColor("[*]"), "Editing heuristics: +%v", md["score"])
	case TransformCompleted:
		o.printf(successColor("[+]"), "%v done", md["transform"])
	case TransformFailed:
		o.printf(warningColor("[!]"), "%v failed: %s", md["transform"], event.ErrorMessage)
	case AnalysisCompleted:
		score, _ := md["total_score"].(int)
		prefix := successColor("[+]")
		if score >= 50 {
			prefix = alertColor("[!!!]")
		}
		o.printf(prefix, "Forgery probability: %d%% (%.2fs)", score, event.ProcessingTime.Seconds())
	case AnalysisFailed:
		o.printf(errorColor("[-]"), "Analysis failed: %s", event.ErrorMessage)
	}
}

// GetObserverName returns the observer name
func (o *ConsoleObserver) GetObserverName() string {
	return "console_observer"
}
