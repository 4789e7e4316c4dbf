package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"

	"injectionfilter/internal/management"
	pkgerrors "injectionfilter/pkg/errors"
	"injectionfilter/pkg/health"
)

var (
	successColor = color.New(color.FgGreen, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	warningColor = color.New(color.FgYellow)
	headerColor  = color.New(color.FgBlue, color.Bold)
)

func checkOutput(format string) error {
	switch format {
	case outputText, outputYAML, outputJSON:
		return nil
	}
	return pkgerrors.ErrValidation.WithMessage("unsupported output format %q", format)
}

// encode writes v as YAML or JSON.
func encode(w io.Writer, format string, v interface{}) error {
	switch format {
	case outputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	default:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
}

func documents(filters []management.StoredFilter) []management.FilterDocument {
	docs := make([]management.FilterDocument, 0, len(filters))
	for _, sf := range filters {
		docs = append(docs, management.NewFilterDocument(sf))
	}
	return docs
}

func renderFilterTable(w io.Writer, filters []management.StoredFilter) {
	if len(filters) == 0 {
		warningColor.Fprintln(w, "No filters found")
		return
	}

	headerColor.Fprintln(w, "FILTERS")
	headerColor.Fprintln(w, strings.Repeat("=", 100))
	fmt.Fprintf(w, "%-38s %-30s %-8s %-8s\n", "ID", "Name", "Enabled", "Patterns")
	fmt.Fprintln(w, strings.Repeat("-", 100))

	for _, sf := range filters {
		fmt.Fprintf(w, "%-38s %-30s %-8s %-8d\n",
			truncate(sf.ID, 38), truncate(sf.Filter.Name, 30), formatBool(sf.Filter.Enabled), sf.Filter.PatternCount())
	}

	headerColor.Fprintln(w, strings.Repeat("=", 100))
}

func renderFilterDetails(w io.Writer, sf *management.StoredFilter) {
	f := sf.Filter

	headerColor.Fprintf(w, "Filter: %s\n", f.Name)
	printField(w, "Key", sf.Key)
	printField(w, "ID", sf.ID)
	if f.Description != "" {
		printField(w, "Description", f.Description)
	}
	printField(w, "Enabled", formatBool(f.Enabled))
	printField(w, "Patterns", fmt.Sprintf("%d", f.PatternCount()))

	for i, p := range f.Patterns() {
		fmt.Fprintf(w, "  [%d] %s (%s)\n", i, p.Name, formatBool(p.Enabled))
		fmt.Fprintf(w, "      %s\n", p.Expression)
		if p.Description != "" {
			fmt.Fprintf(w, "      # %s\n", p.Description)
		}
	}
}

func renderHealth(w io.Writer, h health.Health) {
	names := make([]string, 0, len(h.Checks))
	for name := range h.Checks {
		names = append(names, name)
	}
	sort.Strings(names)

	statusColor(h.Status).Fprintf(w, "Status: %s\n", h.Status)
	for _, name := range names {
		res := h.Checks[name]
		line := fmt.Sprintf("  %-16s %-10s %s", name, res.Status, res.Latency)
		if res.Optional {
			line += " (optional)"
		}
		if res.Message != "" {
			line += " " + res.Message
		}
		fmt.Fprintln(w, line)
	}
}

func statusColor(s health.Status) *color.Color {
	switch s {
	case health.StatusHealthy:
		return successColor
	case health.StatusDegraded:
		return warningColor
	default:
		return errorColor
	}
}

func printField(w io.Writer, label, value string) {
	fmt.Fprintf(w, "  %-12s %s\n", label+":", value)
}

func formatBool(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
