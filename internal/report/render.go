package report

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/olekukonko/tablewriter"

	"github.com/redactyl/piiscan/internal/types"
)

type PrintOptions struct {
	NoColor      bool
	Duration     time.Duration
	FilesScanned int
	FilesSkipped int
	Remaining    *int
}

var (
	categoryStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	pathStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	dimStyle      = lipgloss.NewStyle().Faint(true)
	okStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
)

func paint(s string, st lipgloss.Style, noColor bool) string {
	if noColor {
		return s
	}
	return st.Render(s)
}

// PrintText writes one line per file and category, with masked samples.
func PrintText(w io.Writer, results []types.MatchResult, opts PrintOptions) {
	if len(results) == 0 {
		fmt.Fprintln(w, paint("No PII found ✅", okStyle, opts.NoColor))
	} else {
		maxCat := 8
		for _, r := range results {
			if l := len(r.Category); l > maxCat {
				maxCat = l
			}
		}
		fmt.Fprintf(w, "Matches: %d\n", len(results))
		for _, r := range results {
			cat := fmt.Sprintf("%-*s", maxCat, r.Category)
			fmt.Fprintf(w, "%s %s  x%d  %s\n",
				paint(cat, categoryStyle, opts.NoColor),
				paint(r.File, pathStyle, opts.NoColor),
				r.Count(),
				paint(sample(r.Occurrences), dimStyle, opts.NoColor))
		}
	}
	printFooter(w, results, opts)
}

// PrintTable renders results as a bordered table.
func PrintTable(w io.Writer, results []types.MatchResult, opts PrintOptions) {
	if len(results) == 0 {
		fmt.Fprintln(w, "No PII found ✅")
	} else {
		rows := make([][]string, 0, len(results))
		for _, r := range results {
			rows = append(rows, []string{r.Category, r.File, strconv.Itoa(r.Count()), sample(r.Occurrences)})
		}
		table := tablewriter.NewWriter(w)
		table.Header("CATEGORY", "FILE", "COUNT", "SAMPLE")
		_ = table.Bulk(rows)
		_ = table.Render()
	}
	printFooter(w, results, opts)
}

// PrintLanguages renders language shares, largest first.
func PrintLanguages(w io.Writer, stats types.LanguageStats) {
	if len(stats) == 0 {
		fmt.Fprintln(w, "No recognized source files")
		return
	}
	langs := make([]string, 0, len(stats))
	for l := range stats {
		langs = append(langs, l)
	}
	sort.Slice(langs, func(i, j int) bool {
		if stats[langs[i]] == stats[langs[j]] {
			return langs[i] < langs[j]
		}
		return stats[langs[i]] > stats[langs[j]]
	})
	table := tablewriter.NewWriter(w)
	table.Header("LANGUAGE", "SHARE")
	for _, l := range langs {
		_ = table.Append([]string{l, fmt.Sprintf("%.2f%%", stats[l])})
	}
	_ = table.Render()
}

func printFooter(w io.Writer, results []types.MatchResult, opts PrintOptions) {
	if opts.Duration <= 0 && opts.FilesScanned <= 0 && opts.Remaining == nil {
		return
	}
	total := 0
	cats := map[string]int{}
	for _, r := range results {
		total += r.Count()
		cats[r.Category] += r.Count()
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Occurrences: %d%s\n", total, breakdown(cats))
	if opts.Duration > 0 {
		fmt.Fprintf(w, "Scan duration: %.2fs\n", opts.Duration.Seconds())
	}
	if opts.FilesScanned > 0 {
		fmt.Fprintf(w, "Files scanned: %d\n", opts.FilesScanned)
	}
	if opts.FilesSkipped > 0 {
		fmt.Fprintf(w, "Files skipped: %d\n", opts.FilesSkipped)
	}
	if opts.Remaining != nil {
		fmt.Fprintf(w, "API budget remaining: %d\n", *opts.Remaining)
	}
}

func breakdown(cats map[string]int) string {
	if len(cats) == 0 {
		return ""
	}
	names := make([]string, 0, len(cats))
	for c := range cats {
		names = append(names, c)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, c := range names {
		parts[i] = fmt.Sprintf("%s: %d", c, cats[c])
	}
	return " (" + strings.Join(parts, ", ") + ")"
}

func sample(occ []string) string {
	if len(occ) == 0 {
		return ""
	}
	s := Mask(occ[0])
	if len(occ) > 1 {
		s += fmt.Sprintf(" (+%d)", len(occ)-1)
	}
	return s
}

// Mask hides all but the first and last two runes of s.
func Mask(s string) string {
	r := []rune(s)
	if len(r) <= 6 {
		return "******"
	}
	return string(r[:2]) + "…" + string(r[len(r)-2:])
}
