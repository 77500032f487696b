package vision

import (
	"encoding/json"
	"log/slog"
	"regexp"
	"strings"
)

// Pre-compiled regular expressions. Compiling per parse is measurably
// slower and these run on every structured model response.
var (
	codeFenceStartRegex = regexp.MustCompile(`(?s)^` + "`" + `{3}(?:json)?\s*\n?([\s\S]*?)\n?` + "`" + `{3}\s*$`)
	codeFenceAnyRegex   = regexp.MustCompile(`(?s)` + "`" + `{3}(?:json)?\s*\n?([\s\S]*?)\n?` + "`" + `{3}`)

	trailingCommaRegex = regexp.MustCompile(`,(\s*[}\]])`)
	unquotedKeyRegex   = regexp.MustCompile(`([{,]\s*)([a-zA-Z_$][a-zA-Z0-9_$]*)\s*:`)

	objectRegex = regexp.MustCompile(`(?s)\{[\s\S]*\}`)
	arrayRegex  = regexp.MustCompile(`(?s)\[[\s\S]*\]`)
)

// ParseResult reports the outcome of one structured parse attempt.
// Result-style rather than error-style so callers can inspect the
// original text when deciding on a fallback.
type ParseResult[T any] struct {
	Success      bool
	Data         T
	Error        string
	OriginalText string
}

// Parse extracts a JSON value of type T from raw model output, working
// around the formatting quirks vision models produce even in strict-JSON
// mode: code fences, trailing commas, unquoted keys, prose around the
// payload.
//
// Strategy sequence:
//  1. Direct JSON parse
//  2. Strip code fences and retry
//  3. Fix trailing commas / unquoted keys and retry
//  4. Extract the first JSON object or array from mixed content and retry
func Parse[T any](text, context string) ParseResult[T] {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return parseError[T]("empty input", text, context)
	}

	if result, err := tryDirect[T](trimmed); err == nil {
		return ParseResult[T]{Success: true, Data: result, OriginalText: text}
	} else {
		slog.Debug("direct JSON parse failed, trying cleanup strategies",
			"error", err.Error(),
			"textPreview", truncate(text, 100),
			"context", context)
	}

	withoutFences := removeCodeFences(trimmed)
	if withoutFences != trimmed {
		if result, err := tryDirect[T](withoutFences); err == nil {
			return ParseResult[T]{Success: true, Data: result, OriginalText: text}
		}
	}

	cleaned := cleanupJSON(withoutFences)
	if result, err := tryDirect[T](cleaned); err == nil {
		return ParseResult[T]{Success: true, Data: result, OriginalText: text}
	}

	if extracted := extractJSON(cleaned); extracted != "" {
		if result, err := tryDirect[T](extracted); err == nil {
			return ParseResult[T]{Success: true, Data: result, OriginalText: text}
		}
	}

	return parseError[T]("all JSON parsing strategies failed", text, context)
}

// ParseOrDefault parses structured output and falls back to a default
// value when every strategy fails. Used for critique scores where a
// neutral fallback beats aborting the run.
func ParseOrDefault[T any](text string, fallback T, context string) T {
	result := Parse[T](text, context)
	if result.Success {
		return result.Data
	}
	slog.Debug("JSON parse failed, using fallback",
		"error", result.Error,
		"textPreview", truncate(text, 100),
		"context", context)
	return fallback
}

func tryDirect[T any](text string) (T, error) {
	var result T
	err := json.Unmarshal([]byte(text), &result)
	return result, err
}

// removeCodeFences strips markdown code fences from text
func removeCodeFences(text string) string {
	cleaned := codeFenceStartRegex.ReplaceAllString(text, "$1")
	if cleaned == text {
		cleaned = codeFenceAnyRegex.ReplaceAllString(text, "$1")
	}
	if strings.HasPrefix(cleaned, "`") && strings.HasSuffix(cleaned, "`") {
		cleaned = strings.TrimPrefix(cleaned, "`")
		cleaned = strings.TrimSuffix(cleaned, "`")
	}
	return strings.TrimSpace(cleaned)
}

// cleanupJSON fixes trailing commas and unquoted object keys. Single
// quotes are left alone - converting them would break valid JSON
// containing apostrophes.
func cleanupJSON(text string) string {
	cleaned := strings.TrimSpace(text)
	cleaned = trailingCommaRegex.ReplaceAllString(cleaned, "$1")
	cleaned = unquotedKeyRegex.ReplaceAllString(cleaned, `$1"$2":`)
	return strings.TrimSpace(cleaned)
}

// extractJSON pulls the first JSON object or array out of mixed content.
// The first-character check keeps an array from being mistaken for its
// first element.
func extractJSON(text string) string {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) > 0 {
		switch trimmed[0] {
		case '[':
			if match := arrayRegex.FindString(text); match != "" {
				return match
			}
		case '{':
			if match := objectRegex.FindString(text); match != "" {
				return match
			}
		}
	}
	if match := objectRegex.FindString(text); match != "" {
		return match
	}
	return arrayRegex.FindString(text)
}

func parseError[T any](message, text, context string) ParseResult[T] {
	var zero T
	if context != "" {
		message = context + ": " + message
	}
	return ParseResult[T]{Success: false, Data: zero, Error: message, OriginalText: text}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
