// Package diag is the compiler's error/warning sink (spec.md §6, §7):
// a per-session queue of formatted diagnostics, filtered by warning
// level and rendered in one of the two formats §6 names. It carries
// the counters the teacher repo keeps as package-level globals
// (cmd_local/compile/internal/gc/go.go's nerrors/nsavederrors/
// nsyntaxerrors) as fields of one session-scoped struct instead,
// since this library supports more than one concurrent session.
package diag

import (
	"fmt"
	"strings"
)

// Format selects an error-message rendering (spec.md §6).
type Format int

const (
	FormatDefault Format = iota // "Error N: <msg> in <name> (<col>,<line>)"
	FormatMS                    // "<name>(<line>): Error N: <msg>"
)

// Severity classifies a queued diagnostic.
type Severity int

const (
	SeverityWarning Severity = iota
	SeverityError
	SeverityFatal
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "Error"
	case SeverityFatal:
		return "Fatal"
	default:
		return "Warning"
	}
}

// Class groups a diagnostic by the taxonomy in spec.md §7.
type Class int

const (
	ClassLexical Class = iota
	ClassSyntactic
	ClassNameScope
	ClassType
	ClassControlFlow
	ClassWarning
)

// Message is one queued diagnostic.
type Message struct {
	Severity Severity
	Class    Class
	Code     int
	Text     string
	Unit     string // translation-unit name
	Line     int
	Col      int
	Level    int // warning level (0 for errors)
}

// Sink accumulates diagnostics for one compile session, mirroring the
// teacher's nerrors/nsavederrors/nsyntaxerrors counters but scoped per
// session instead of process-global.
type Sink struct {
	Format       Format
	WarningLevel int // 0..5, spec.md §6 set-option

	messages []Message

	errorCount   int
	warningCount int
	fatalCount   int
}

// NewSink creates a Sink with the default format and warning level 1.
func NewSink() *Sink {
	return &Sink{Format: FormatDefault, WarningLevel: 1}
}

// Errorf queues an error-class diagnostic. Errors are never filtered
// by warning level.
func (s *Sink) Errorf(class Class, unit string, line, col, code int, format string, args ...interface{}) {
	s.messages = append(s.messages, Message{
		Severity: SeverityError, Class: class, Code: code,
		Text: fmt.Sprintf(format, args...), Unit: unit, Line: line, Col: col,
	})
	s.errorCount++
}

// Warnf queues a warning-class diagnostic at the given level; it is
// dropped (not queued, not counted) if level exceeds the sink's
// configured WarningLevel.
func (s *Sink) Warnf(level int, unit string, line, col, code int, format string, args ...interface{}) {
	if level > s.WarningLevel {
		return
	}
	s.messages = append(s.messages, Message{
		Severity: SeverityWarning, Class: ClassWarning, Code: code,
		Text: fmt.Sprintf(format, args...), Unit: unit, Line: line, Col: col, Level: level,
	})
	s.warningCount++
}

// Fatal queues a fatal-class message. Callers are expected to stop
// compiling immediately after recording one (spec.md §4.12 "Failure
// semantics": a fatal consistency error invokes a registered fatal
// handler and aborts).
func (s *Sink) Fatal(unit string, line, col int, format string, args ...interface{}) {
	s.messages = append(s.messages, Message{
		Severity: SeverityFatal, Text: fmt.Sprintf(format, args...), Unit: unit, Line: line, Col: col,
	})
	s.fatalCount++
}

func (s *Sink) ErrorCount() int   { return s.errorCount }
func (s *Sink) WarningCount() int { return s.warningCount }
func (s *Sink) HasFatal() bool    { return s.fatalCount > 0 }

// Text renders all queued messages in the sink's configured Format,
// the stream consumed by the public get-error-text API (spec.md §6).
func (s *Sink) Text() string {
	var b strings.Builder
	for _, m := range s.messages {
		b.WriteString(s.render(m))
		b.WriteByte('\n')
	}
	return b.String()
}

func (s *Sink) render(m Message) string {
	sev := m.Severity.String()
	if m.Severity == SeverityWarning {
		sev = fmt.Sprintf("Warning(%d)", m.Level)
	}
	switch s.Format {
	case FormatMS:
		return fmt.Sprintf("%s(%d): %s %d: %s", m.Unit, m.Line, sev, m.Code, m.Text)
	default:
		return fmt.Sprintf("%s %d: %s in %s (%d,%d)", sev, m.Code, m.Text, m.Unit, m.Col, m.Line)
	}
}

// Messages returns the queued diagnostics in emission order.
func (s *Sink) Messages() []Message { return s.messages }

// Reset clears all queued messages and counters, used when a Session
// is freed and its VM handle is recycled.
func (s *Sink) Reset() {
	s.messages = nil
	s.errorCount, s.warningCount, s.fatalCount = 0, 0, 0
}
