package report

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/olekukonko/tablewriter"

	"github.com/redactyl/promptscan/internal/types"
)

type PrintOptions struct {
	NoColor      bool
	Duration     time.Duration
	FilesScanned int
	// ShowValues prints matched text unmasked.
	ShowValues bool
}

var categoryStyles = map[types.Category]lipgloss.Style{
	types.CategoryAPIKey:             lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
	types.CategoryAWSCredentials:     lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
	types.CategoryDatabaseConnection: lipgloss.NewStyle().Foreground(lipgloss.Color("13")),
	types.CategoryGitHubToken:        lipgloss.NewStyle().Foreground(lipgloss.Color("12")),
	types.CategoryPrivateKey:         lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
}

// SortFindings orders findings by path, line and offset.
func SortFindings(findings []types.Finding) {
	sort.SliceStable(findings, func(i, j int) bool {
		a, b := findings[i], findings[j]
		if a.Path != b.Path {
			return a.Path < b.Path
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Start < b.Start
	})
}

// PrintText writes one line per finding, colouring the category unless
// NoColor is set.
func PrintText(w io.Writer, findings []types.Finding, opts PrintOptions) {
	SortFindings(findings)
	if len(findings) == 0 {
		fmt.Fprintln(w, "No secrets found ✅")
	} else {
		maxCat := 8
		for _, f := range findings {
			if l := len(f.Category); l > maxCat {
				maxCat = l
			}
		}
		fmt.Fprintf(w, "Findings: %d\n", len(findings))
		for _, f := range findings {
			cat := fmt.Sprintf("%-*s", maxCat, f.Category)
			if !opts.NoColor {
				cat = colorCategory(f.Category, cat)
			}
			fmt.Fprintf(w, "%s  %s  %s\n", cat, location(f), display(f, opts))
		}
	}
	printFooter(w, findings, opts)
}

// PrintTable renders findings as a bordered table.
func PrintTable(w io.Writer, findings []types.Finding, opts PrintOptions) {
	SortFindings(findings)
	if len(findings) == 0 {
		fmt.Fprintln(w, "No secrets found ✅")
	} else {
		table := tablewriter.NewWriter(w)
		table.Header("CATEGORY", "RULE", "LOCATION", "VALUE")
		for _, f := range findings {
			_ = table.Append([]string{string(f.Category), strconv.Itoa(f.Rule), location(f), display(f, opts)})
		}
		_ = table.Render()
	}
	printFooter(w, findings, opts)
}

func printFooter(w io.Writer, findings []types.Finding, opts PrintOptions) {
	if opts.Duration <= 0 && opts.FilesScanned <= 0 {
		return
	}
	counts := map[types.Category]int{}
	for _, f := range findings {
		counts[f.Category]++
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Findings: %d", len(findings))
	if len(counts) > 0 {
		cats := make([]string, 0, len(counts))
		for c := range counts {
			cats = append(cats, string(c))
		}
		sort.Strings(cats)
		fmt.Fprint(w, " (")
		for i, c := range cats {
			if i > 0 {
				fmt.Fprint(w, ", ")
			}
			fmt.Fprintf(w, "%s: %d", c, counts[types.Category(c)])
		}
		fmt.Fprint(w, ")")
	}
	fmt.Fprintln(w)
	if opts.Duration > 0 {
		fmt.Fprintf(w, "Scan duration: %.2fs\n", opts.Duration.Seconds())
	}
	if opts.FilesScanned > 0 {
		fmt.Fprintf(w, "Files scanned: %d\n", opts.FilesScanned)
	}
}

// WriteJSON writes v as indented JSON.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func location(f types.Finding) string {
	switch {
	case f.Path != "" && f.Line > 0:
		return fmt.Sprintf("%s:%d", f.Path, f.Line)
	case f.Path != "":
		return f.Path
	case f.Line > 0:
		return fmt.Sprintf("line %d", f.Line)
	default:
		return fmt.Sprintf("offset %d", f.Start)
	}
}

func display(f types.Finding, opts PrintOptions) string {
	if opts.ShowValues {
		return f.Match
	}
	return maskValue(f.Match)
}

func maskValue(s string) string {
	r := []rune(s)
	if len(r) <= 8 {
		return "********"
	}
	return string(r[:4]) + "…" + string(r[len(r)-4:])
}

func colorCategory(c types.Category, text string) string {
	if st, ok := categoryStyles[c]; ok {
		return st.Render(text)
	}
	return text
}
