package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/lendhand/lendhand/internal/fault"
	"github.com/lendhand/lendhand/internal/geo"
	"github.com/lendhand/lendhand/internal/request"
	"github.com/lendhand/lendhand/internal/store"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Domain failure (lost an accept race, validation, ...)
	ExitCommandError = 2 // Command error (bad flags, missing config, broken db)
)

// ExitError carries a specific exit code out of a command.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error { return e.Err }

// NewExitError creates an ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error. Domain faults map to
// fixed codes so scripts can distinguish "lost the race" from "broken
// setup" without parsing messages.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	switch {
	case fault.IsValidation(err), fault.IsPreconditionFailed(err):
		return ExitFailure
	case fault.IsNotFound(err):
		return ExitCommandError
	}
	return ExitFailure
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // diagnostic output; defaults to Writer
	Verbose   bool
}

// CLIResponse is the standard JSON envelope for command output.
type CLIResponse struct {
	Status string    `json:"status"` // "ok" or "error"
	Data   any       `json:"data,omitempty"`
	Error  *CLIError `json:"error,omitempty"`
}

// CLIError is the error payload inside a CLIResponse.
type CLIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Success outputs a successful result in the configured format. In text
// mode, data's String/fmt rendering is printed as-is.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{Status: "ok", Data: data})
	}
	fmt.Fprintln(f.Writer, data)
	return nil
}

// Fail outputs err in the configured format and returns an error carrying
// its exit code.
func (f *OutputFormatter) Fail(err error) error {
	code := errorCode(err)
	if f.Format == "json" {
		_ = json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error:  &CLIError{Code: code, Message: err.Error()},
		})
	} else {
		fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, err.Error())
	}
	return WrapExitError(GetExitCode(err), code, err)
}

func (f *OutputFormatter) println(line string) {
	fmt.Fprintln(f.Writer, line)
}

// VerboseLog writes a diagnostic line when verbose mode is on. Diagnostics
// go to ErrWriter so JSON output stays parseable.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	w := f.ErrWriter
	if w == nil {
		w = f.Writer
	}
	fmt.Fprintf(w, format+"\n", args...)
}

// Error code constants, shared across commands.
const (
	ErrCodeGeneric      = "E001" // unknown error
	ErrCodeConfig       = "E002" // config missing or invalid
	ErrCodeStore        = "E003" // database unavailable
	ErrCodeValidation   = "E101" // rejected input
	ErrCodeNotFound     = "E102" // record does not exist
	ErrCodePrecondition = "E103" // stale precondition (lost an accept race)
)

func errorCode(err error) string {
	switch {
	case fault.IsValidation(err):
		return ErrCodeValidation
	case fault.IsNotFound(err):
		return ErrCodeNotFound
	case fault.IsPreconditionFailed(err):
		return ErrCodePrecondition
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) && exitErr.Code == ExitCommandError {
		return ErrCodeConfig
	}
	return ErrCodeGeneric
}

// FormatDistance renders meters the way the feed shows them: meters below
// a kilometer, one-decimal kilometers above.
func FormatDistance(meters float64) string {
	if meters < 1000 {
		return fmt.Sprintf("%.0f m", meters)
	}
	return fmt.Sprintf("%.1f km", meters/1000)
}

// RequestLine renders one feed row. The viewer's position, when known,
// adds the distance annotation.
func RequestLine(r store.Request, viewer *geo.Point) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s (%s)", r.Status, r.Title, r.Category)
	if r.OwnerName != "" {
		fmt.Fprintf(&b, " — %s", r.OwnerName)
	}
	if meters, ok := request.Distance(viewer, r); ok {
		fmt.Fprintf(&b, ", %s away", FormatDistance(meters))
	}
	fmt.Fprintf(&b, "  %s  id=%s", r.CreatedAt.Format("2006-01-02 15:04"), r.ID)
	return b.String()
}

// WriteRequestList renders a feed, one row per line, with an empty-feed
// placeholder.
func WriteRequestList(w io.Writer, reqs []store.Request, viewer *geo.Point) {
	if len(reqs) == 0 {
		fmt.Fprintln(w, "(no requests)")
		return
	}
	for _, r := range reqs {
		fmt.Fprintln(w, RequestLine(r, viewer))
	}
}

// MessageLine renders one chat message.
func MessageLine(m store.Message) string {
	return fmt.Sprintf("%s %s: %s", m.CreatedAt.Format("15:04"), m.SenderName, m.Text)
}

// NotificationLine renders one notification row.
func NotificationLine(n store.Notification) string {
	marker := "•"
	if n.Read {
		marker = " "
	}
	return fmt.Sprintf("%s %s — %s  %s  id=%s",
		marker, n.Title, n.Body, n.CreatedAt.Format("2006-01-02 15:04"), n.ID)
}

// eventTag names a live change in watch output.
func eventTag(t time.Time, label string) string {
	return fmt.Sprintf("%s %s", t.Format("15:04:05"), label)
}
