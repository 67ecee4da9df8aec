// Package debug gates verbose logging by category.
//
// Categories select what is logged (GREETINGS_DEBUG, comma separated);
// the log level selects how much (GREETINGS_LOG_LEVEL). A debug line is
// written only when its category is enabled and the level admits it:
//
//	debug.Log("streaming", "emission", "stream_id", id)
//
// Categories: transport, streaming, storage, auth, config, all.
// Levels: ERROR, WARN, INFO, DEBUG, TRACE.
package debug

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
	"unicode/utf8"
)

// LevelTrace sits below slog.LevelDebug. At TRACE every emission of a
// stream is logged.
const LevelTrace = slog.LevelDebug - 4

// Known lists the categories the server logs under.
var Known = []string{"transport", "streaming", "storage", "auth", "config"}

type categorySet map[string]bool

var enabled atomic.Pointer[categorySet]

func init() {
	set := parseCategories(os.Getenv("GREETINGS_DEBUG"))
	enabled.Store(&set)
}

// Init enables categories and installs the default slog handler. The
// GREETINGS_DEBUG and GREETINGS_LOG_LEVEL environment variables win over
// the configured values. format is "text" or "json".
func Init(configCategories, configLevel, format string) {
	set := parseCategories(envOr("GREETINGS_DEBUG", configCategories))
	enabled.Store(&set)

	level := ParseLevel(envOr("GREETINGS_LOG_LEVEL", configLevel))
	slog.SetDefault(slog.New(NewHandler(os.Stderr, format, level)))

	for cat := range set {
		if cat != "all" && !isKnown(cat) {
			slog.Warn("unknown debug category", "category", cat, "known", Known)
		}
	}
}

// NewHandler returns a text or JSON handler writing to w. TRACE records
// are labelled "TRACE" instead of "DEBUG-4".
func NewHandler(w io.Writer, format string, level slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key != slog.LevelKey {
				return a
			}
			if lvl, ok := a.Value.Any().(slog.Level); ok && lvl == LevelTrace {
				a.Value = slog.StringValue("TRACE")
			}
			return a
		},
	}
	if strings.EqualFold(strings.TrimSpace(format), "json") {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// Enabled reports whether category is switched on.
func Enabled(category string) bool {
	set := *enabled.Load()
	return set["all"] || set[category]
}

// Log writes a DEBUG record tagged with category.
func Log(category, msg string, args ...any) {
	logAt(slog.LevelDebug, category, msg, args)
}

// Trace writes a TRACE record tagged with category.
func Trace(category, msg string, args ...any) {
	logAt(LevelTrace, category, msg, args)
}

func logAt(level slog.Level, category, msg string, args []any) {
	if !Enabled(category) {
		return
	}
	logger := slog.Default()
	ctx := context.Background()
	if !logger.Enabled(ctx, level) {
		return
	}
	logger.Log(ctx, level, msg, append([]any{"debug", category}, args...)...)
}

// ParseLevel maps a level name to a slog.Level. Unknown names and the
// empty string mean INFO.
func ParseLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRACE":
		return LevelTrace
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Truncate shortens s to at most maxLen bytes plus "...", never cutting
// a UTF-8 sequence in half.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func isKnown(cat string) bool {
	for _, k := range Known {
		if k == cat {
			return true
		}
	}
	return false
}

func parseCategories(s string) categorySet {
	set := make(categorySet)
	for _, cat := range strings.Split(s, ",") {
		if cat = strings.ToLower(strings.TrimSpace(cat)); cat != "" {
			set[cat] = true
		}
	}
	return set
}
