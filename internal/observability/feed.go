// Package observability provides formatted terminal output for run status,
// preferences, and profile data.
package observability

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jonathan/autoapply-client/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of applications to display
	maxItemsToShow = 8
)

// Printer handles formatted human-facing output
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	lines := strings.Split(content, "\n")
	for _, line := range lines {
		// Truncate long lines
		if len(line) > boxWidth-4 {
			line = line[:boxWidth-7] + "..."
		}
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

func formatMillis(ms int64) string {
	if ms == 0 {
		return "-"
	}
	return time.UnixMilli(ms).Format("15:04:05")
}

// PrintSnapshot outputs a human-readable summary of a run snapshot.
func (p *Printer) PrintSnapshot(snap *types.RunSnapshot) {
	if snap == nil {
		p.printBox("RUN STATUS", "No run in progress.")
		return
	}

	var sb strings.Builder
	run := snap.Run

	sb.WriteString(fmt.Sprintf("Run:      %s\n", run.RunID))
	sb.WriteString(fmt.Sprintf("Status:   %s\n", run.Status))
	sb.WriteString(fmt.Sprintf("Started:  %s", formatMillis(run.StartedAtMillis())))
	if run.EndedAt != nil {
		sb.WriteString(fmt.Sprintf("   Ended: %s", formatMillis(*run.EndedAt)))
	}
	sb.WriteString("\n")
	if run.Counts != nil {
		sb.WriteString(fmt.Sprintf("Results:  %d total, %d success, %d failed\n",
			run.Counts.Total, run.Counts.Success, run.Counts.Failed))
	}

	if len(snap.Applications) > 0 {
		sb.WriteString("\nApplications:\n")
		count := min(len(snap.Applications), maxItemsToShow)
		for i := 0; i < count; i++ {
			app := snap.Applications[i]
			sb.WriteString(fmt.Sprintf("  • %s @ %s — %s", app.Title, app.Company, app.Status))
			if app.MatchScore != nil {
				sb.WriteString(fmt.Sprintf(" (%.2f)", *app.MatchScore))
			}
			sb.WriteString("\n")
			if app.Error != "" {
				sb.WriteString(fmt.Sprintf("    error: %s\n", app.Error))
			}
		}
		if len(snap.Applications) > maxItemsToShow {
			sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(snap.Applications)-maxItemsToShow))
		}
	}

	p.printBox("RUN STATUS", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintPreferences outputs the user's search preferences.
func (p *Printer) PrintPreferences(prefs *types.UserPreferences) {
	if prefs == nil {
		p.printBox("SEARCH PREFERENCES", "No preferences saved yet.")
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Keywords:   %s\n", prefs.Keywords))
	sb.WriteString(fmt.Sprintf("Locations:  %s\n", prefs.Locations))
	if prefs.MinSalary != nil {
		sb.WriteString(fmt.Sprintf("Min salary: %d\n", *prefs.MinSalary))
	}
	if prefs.RoleTags != "" {
		sb.WriteString(fmt.Sprintf("Role tags:  %s\n", prefs.RoleTags))
	}

	p.printBox("SEARCH PREFERENCES", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintProfile outputs a summary of the applicant profile.
func (p *Printer) PrintProfile(profile *types.UserProfile) {
	if profile == nil {
		p.printBox("PROFILE", "No profile yet. Run 'autoapply profile save' to create one.")
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Name:      %s\n", profile.FullName))
	sb.WriteString(fmt.Sprintf("Title:     %s\n", profile.ProfessionalTitle))
	sb.WriteString(fmt.Sprintf("Location:  %s\n", profile.Location))
	sb.WriteString(fmt.Sprintf("Skills:    %d technical, %d languages, %d frameworks\n",
		len(profile.TechnicalSkills), len(profile.ProgrammingLanguages), len(profile.Frameworks)))
	complete := "no"
	if profile.IsComplete {
		complete = "yes"
	}
	sb.WriteString(fmt.Sprintf("Complete:  %s   Updated: %s", complete, formatMillis(profile.UpdatedAt)))

	p.printBox("PROFILE", sb.String())
}
