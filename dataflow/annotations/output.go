package annotations

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// OutputFormatter formats events for human-readable display. The plan text
// inside an event is never colorized, so golden comparisons see identical
// bytes with or without a terminal.
type OutputFormatter struct {
	useColor bool
	writer   io.Writer
}

// NewOutputFormatter creates a formatter with color support detection.
func NewOutputFormatter(w io.Writer) *OutputFormatter {
	if w == nil {
		w = os.Stdout
	}
	useColor := false
	if f, ok := w.(*os.File); ok {
		useColor = isatty.IsTerminal(f.Fd())
	}
	return &OutputFormatter{useColor: useColor, writer: w}
}

// Handle implements Handler: prints events as they occur.
func (f *OutputFormatter) Handle(event Event) {
	output := f.Format(event)
	if output != "" {
		fmt.Fprintln(f.writer, output)
	}
}

// Format converts an event to its trace representation. Events with no
// trace form return "".
func (f *OutputFormatter) Format(event Event) string {
	switch event.Name {
	case TransformApplied:
		return fmt.Sprintf("%s %s:\n%s",
			f.colorize("Applied", color.FgGreen),
			event.Data["transform"],
			indentPlan(stringData(event, "plan")))

	case TransformNoChange:
		return fmt.Sprintf("%s: %s",
			f.colorize("No change", color.FgYellow),
			event.Data["transform"])

	case FixpointLimit:
		return fmt.Sprintf("%s: %s after %v iterations; convergence not proven",
			f.colorize("Fixpoint limit reached", color.FgRed),
			event.Data["transform"],
			event.Data["iterations"])

	case OptimizeFinal:
		return fmt.Sprintf("%s:\n%s",
			f.colorize("Final", color.FgGreen),
			indentPlan(stringData(event, "plan")))

	case OptimizeError:
		return fmt.Sprintf("%s %s: %v",
			f.colorize("✗", color.FgRed),
			event.Data["transform"],
			event.Data["error"])

	default:
		return ""
	}
}

func (f *OutputFormatter) colorize(s string, attr color.Attribute) string {
	if !f.useColor {
		return s
	}
	return color.New(attr).Sprint(s)
}

func stringData(event Event, key string) string {
	if s, ok := event.Data[key].(string); ok {
		return s
	}
	return ""
}

func indentPlan(plan string) string {
	plan = strings.TrimRight(plan, "\n")
	if plan == "" {
		return plan
	}
	lines := strings.Split(plan, "\n")
	for i, line := range lines {
		lines[i] = "  " + line
	}
	return strings.Join(lines, "\n")
}
