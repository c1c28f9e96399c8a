// Package reporter renders offline audit findings for humans.
package reporter

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"sql-gate/internal/model"
	"sql-gate/internal/scanner"
)

// ConsoleReporter prints per-file findings in a file:line format with
// severity-colored levels and a closing summary.
type ConsoleReporter struct {
	out     io.Writer
	verbose bool
}

func NewConsoleReporter(out io.Writer, verbose bool) *ConsoleReporter {
	return &ConsoleReporter{out: out, verbose: verbose}
}

// Report writes all findings and returns the number of statements at
// ERROR level, so callers can pick an exit code.
func (r *ConsoleReporter) Report(results []scanner.Result) int {
	errors := 0
	warnings := 0
	statements := 0

	for _, res := range results {
		if res.Err != nil {
			fmt.Fprintf(r.out, "%s: %s\n", res.Path, color.RedString("%v", res.Err))
			errors++
			continue
		}
		for _, f := range res.Findings {
			statements++
			node := f.Node
			switch node.ErrLevel {
			case model.SeverityError:
				errors++
			case model.SeverityWarning:
				warnings++
			default:
				if !r.verbose {
					continue
				}
			}

			loc := res.Path
			if f.Line > 0 {
				loc = fmt.Sprintf("%s:%d", res.Path, f.Line)
			}
			fmt.Fprintf(r.out, "%s: [%s] %s\n", loc, levelColor(node.ErrLevel).Sprint(node.ErrLevel), node.TypeString())
			fmt.Fprintf(r.out, "\t%s\n", color.CyanString(truncate(node.SQL, 120)))
			for _, msg := range node.Messages() {
				fmt.Fprintf(r.out, "\t%s\n", msg)
			}
		}
	}

	if errors == 0 && warnings == 0 {
		fmt.Fprintln(r.out, color.GreenString("Audit completed: %d statements, no issues.", statements))
	} else {
		fmt.Fprintf(r.out, "\nAudit completed: %d statements, %s, %s.\n",
			statements,
			color.RedString("%d errors", errors),
			color.YellowString("%d warnings", warnings))
	}
	return errors
}

func levelColor(s model.Severity) *color.Color {
	switch s {
	case model.SeverityError:
		return color.New(color.FgRed, color.Bold)
	case model.SeverityWarning:
		return color.New(color.FgYellow, color.Bold)
	}
	return color.New(color.FgWhite)
}

func truncate(s string, max int) string {
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
