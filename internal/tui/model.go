package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/redactyl/piiscan/internal/report"
	"github.com/redactyl/piiscan/internal/types"
)

var (
	borderStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("240"))

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("6")).
			Bold(true).
			Padding(0, 1)

	keyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("7")).
			Bold(true)

	occurrenceStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))

	statusStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("236")).
			Foreground(lipgloss.Color("7"))

	popupStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("6")).
			Padding(1, 2)

	okStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
)

// Sort columns.
const (
	SortDefault  = ""
	SortCategory = "category"
	SortFile     = "file"
	SortCount    = "count"
)

// Group modes.
const (
	GroupNone       = "none"
	GroupByFile     = "file"
	GroupByCategory = "category"
)

const defaultStatus = "q: quit | ?: help | /: search | c: category | s: sort | gf/gc: group | b: baseline | r: rescan"

// Model is the results browser state.
type Model struct {
	table    table.Model
	viewport viewport.Model
	spinner  spinner.Model

	results      []types.MatchResult
	display      []types.MatchResult // results after filters and sort
	baselinedSet map[string]bool
	baselinePath string
	rescanFunc   func() ([]types.MatchResult, error)

	quitting bool
	ready    bool
	scanning bool
	showHelp bool
	reveal   bool // show raw occurrences in the detail pane
	width    int
	height   int

	statusMessage string

	searchMode     bool
	searchInput    textinput.Model
	searchQuery    string
	categoryFilter string

	sortColumn  string
	sortReverse bool

	groupMode      string
	expandedGroups map[string]bool
	grouped        []GroupedItem
	pendingKey     string
}

// GroupedItem is either a group header or one result row in grouped view.
type GroupedItem struct {
	IsGroup    bool
	GroupKey   string
	GroupCount int // occurrences across the group
	Result     *types.MatchResult
}

type resultsMsg []types.MatchResult

type statusMsg string

// NewModel builds a browser over results. rescanFunc may be nil.
func NewModel(results []types.MatchResult, rescanFunc func() ([]types.MatchResult, error)) Model {
	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "Category", Width: 20},
			{Title: "File", Width: 44},
			{Title: "Count", Width: 7},
			{Title: "Sample", Width: 24},
		}),
		table.WithFocused(true),
		table.WithHeight(10),
	)
	s := table.DefaultStyles()
	s.Header = lipgloss.NewStyle().
		Background(lipgloss.Color("235")).
		Foreground(lipgloss.Color("15")).
		Bold(true).
		Padding(0, 1)
	s.Selected = lipgloss.NewStyle().
		Foreground(lipgloss.Color("232")).
		Background(lipgloss.Color("208")).
		Bold(true)
	s.Cell = lipgloss.NewStyle().Padding(0, 1)
	t.SetStyles(s)

	sp := spinner.New()
	sp.Spinner = spinner.Line
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))

	ti := textinput.New()
	ti.Placeholder = "Search file or category..."
	ti.CharLimit = 100
	ti.Width = 50
	ti.Prompt = "/ "
	ti.PromptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))

	m := Model{
		table:          t,
		viewport:       viewport.New(80, 8),
		spinner:        sp,
		results:        results,
		baselinedSet:   map[string]bool{},
		rescanFunc:     rescanFunc,
		searchInput:    ti,
		groupMode:      GroupNone,
		expandedGroups: map[string]bool{},
		statusMessage:  defaultStatus,
	}
	m.applyFilters()
	return m
}

// NewModelWithBaseline marks occurrences listed in baseline. When path is
// set, "b" adds the selected result to that file.
func NewModelWithBaseline(results []types.MatchResult, baseline report.Baseline, path string, rescanFunc func() ([]types.MatchResult, error)) Model {
	m := NewModel(results, rescanFunc)
	for k, v := range baseline.Items {
		if v {
			m.baselinedSet[k] = true
		}
	}
	m.baselinePath = path
	m.rebuildTableRows()

	fresh, total := m.newCount(), m.totalCount()
	if total > 0 && fresh < total {
		m.statusMessage = fmt.Sprintf("%d new, %d baselined | %s", fresh, total-fresh, defaultStatus)
	}
	return m
}

func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// baselinedCount returns how many of r's occurrences are in the baseline.
func (m *Model) baselinedCount(r types.MatchResult) int {
	n := 0
	for _, o := range r.Occurrences {
		if m.baselinedSet[report.Fingerprint(r.File, r.Category, o)] {
			n++
		}
	}
	return n
}

func (m *Model) isBaselined(r types.MatchResult) bool {
	return len(r.Occurrences) > 0 && m.baselinedCount(r) == len(r.Occurrences)
}

func (m *Model) totalCount() int {
	n := 0
	for _, r := range m.results {
		n += r.Count()
	}
	return n
}

func (m *Model) newCount() int {
	n := 0
	for _, r := range m.results {
		n += r.Count() - m.baselinedCount(r)
	}
	return n
}

// categories lists the categories present, sorted.
func (m *Model) categories() []string {
	seen := map[string]bool{}
	var out []string
	for _, r := range m.results {
		if !seen[r.Category] {
			seen[r.Category] = true
			out = append(out, r.Category)
		}
	}
	sort.Strings(out)
	return out
}

func (m *Model) filtering() bool {
	return m.searchQuery != "" || m.categoryFilter != ""
}

// applyFilters recomputes the visible results from the search query, the
// category filter and the sort order.
func (m *Model) applyFilters() {
	q := strings.ToLower(m.searchQuery)
	m.display = m.display[:0:0]
	for _, r := range m.results {
		if m.categoryFilter != "" && r.Category != m.categoryFilter {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(r.File), q) && !strings.Contains(strings.ToLower(r.Category), q) {
			continue
		}
		m.display = append(m.display, r)
	}
	m.sortResults()
	if m.groupMode != GroupNone {
		m.buildGroups()
	}
	m.rebuildTableRows()
}

func (m *Model) clearFilters() {
	m.searchQuery = ""
	m.categoryFilter = ""
	m.searchInput.SetValue("")
	m.applyFilters()
}

func (m *Model) cycleCategoryFilter() {
	cats := m.categories()
	if len(cats) == 0 {
		return
	}
	next := cats[0]
	for i, c := range cats {
		if c == m.categoryFilter {
			if i == len(cats)-1 {
				next = ""
			} else {
				next = cats[i+1]
			}
			break
		}
	}
	m.categoryFilter = next
	m.applyFilters()
}

func (m *Model) cycleSortColumn() {
	switch m.sortColumn {
	case SortDefault:
		m.sortColumn = SortCategory
	case SortCategory:
		m.sortColumn = SortFile
	case SortFile:
		m.sortColumn = SortCount
	default:
		m.sortColumn = SortDefault
	}
	m.applyFilters()
}

func (m *Model) toggleSortReverse() {
	m.sortReverse = !m.sortReverse
	m.applyFilters()
}

func (m *Model) sortResults() {
	if m.sortColumn == SortDefault && !m.sortReverse {
		return
	}
	less := func(a, b types.MatchResult) bool { return false }
	switch m.sortColumn {
	case SortCategory:
		less = func(a, b types.MatchResult) bool {
			if a.Category != b.Category {
				return a.Category < b.Category
			}
			return a.File < b.File
		}
	case SortFile:
		less = func(a, b types.MatchResult) bool {
			if a.File != b.File {
				return a.File < b.File
			}
			return a.Category < b.Category
		}
	case SortCount:
		less = func(a, b types.MatchResult) bool { return a.Count() > b.Count() }
	}
	sort.SliceStable(m.display, func(i, j int) bool { return less(m.display[i], m.display[j]) })
	if m.sortReverse {
		for i, j := 0, len(m.display)-1; i < j; i, j = i+1, j-1 {
			m.display[i], m.display[j] = m.display[j], m.display[i]
		}
	}
}

func (m *Model) sortIndicator() string {
	if m.sortColumn == SortDefault && !m.sortReverse {
		return ""
	}
	col := m.sortColumn
	if col == SortDefault {
		col = "default"
	}
	dir := "asc"
	if m.sortReverse {
		dir = "desc"
	}
	return fmt.Sprintf("  [SORT: %s %s]", col, dir)
}

// setGroupMode switches grouping; selecting the active mode turns it off.
func (m *Model) setGroupMode(mode string) {
	m.expandedGroups = map[string]bool{}
	if m.groupMode == mode {
		m.groupMode = GroupNone
		m.grouped = nil
		m.rebuildTableRows()
		return
	}
	m.groupMode = mode
	m.buildGroups()
	for _, it := range m.grouped {
		m.expandedGroups[it.GroupKey] = true
	}
	m.buildGroups()
	m.rebuildTableRows()
}

func (m *Model) groupKey(r types.MatchResult) string {
	if m.groupMode == GroupByCategory {
		return r.Category
	}
	return r.File
}

func (m *Model) buildGroups() {
	if m.groupMode == GroupNone {
		m.grouped = nil
		return
	}
	groups := map[string][]int{}
	var order []string
	for i, r := range m.display {
		k := m.groupKey(r)
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], i)
	}
	m.grouped = nil
	for _, k := range order {
		count := 0
		for _, i := range groups[k] {
			count += m.display[i].Count()
		}
		m.grouped = append(m.grouped, GroupedItem{IsGroup: true, GroupKey: k, GroupCount: count})
		if !m.expandedGroups[k] {
			continue
		}
		for _, i := range groups[k] {
			m.grouped = append(m.grouped, GroupedItem{GroupKey: k, Result: &m.display[i]})
		}
	}
}

func (m *Model) toggleGroupExpansion() {
	if m.groupMode == GroupNone {
		return
	}
	idx := m.table.Cursor()
	if idx < 0 || idx >= len(m.grouped) {
		return
	}
	key := m.grouped[idx].GroupKey
	m.expandedGroups[key] = !m.expandedGroups[key]
	m.buildGroups()
	for i, it := range m.grouped {
		if it.IsGroup && it.GroupKey == key {
			idx = i
			break
		}
	}
	m.rebuildTableRows()
	m.table.SetCursor(idx)
}

func (m *Model) resultRow(r types.MatchResult, indent string) table.Row {
	cat := r.Category
	if m.isBaselined(r) {
		cat = "(b) " + cat
	}
	return table.Row{indent + cat, r.File, fmt.Sprintf("%d", r.Count()), sampleOf(r.Occurrences)}
}

func (m *Model) rebuildTableRows() {
	var rows []table.Row
	if m.groupMode != GroupNone {
		for _, it := range m.grouped {
			if it.IsGroup {
				marker := "[+]"
				if m.expandedGroups[it.GroupKey] {
					marker = "[-]"
				}
				rows = append(rows, table.Row{marker + " " + it.GroupKey, "", fmt.Sprintf("%d", it.GroupCount), ""})
				continue
			}
			rows = append(rows, m.resultRow(*it.Result, "  "))
		}
	} else {
		for _, r := range m.display {
			rows = append(rows, m.resultRow(r, ""))
		}
	}
	m.table.SetRows(rows)
	if c := m.table.Cursor(); c >= len(rows) {
		m.table.SetCursor(max(len(rows)-1, 0))
	}
	m.updateViewportContent()
}

// selected returns the result under the cursor, or nil on a group header.
func (m *Model) selected() *types.MatchResult {
	idx := m.table.Cursor()
	if m.groupMode != GroupNone {
		if idx < 0 || idx >= len(m.grouped) {
			return nil
		}
		return m.grouped[idx].Result
	}
	if idx < 0 || idx >= len(m.display) {
		return nil
	}
	return &m.display[idx]
}

// baselineSelected accepts every occurrence of the selected result and
// writes the baseline file.
func (m *Model) baselineSelected() {
	r := m.selected()
	if r == nil {
		m.statusMessage = "Select a result to baseline"
		return
	}
	if m.baselinePath == "" {
		m.statusMessage = "No baseline file configured"
		return
	}
	for _, o := range r.Occurrences {
		m.baselinedSet[report.Fingerprint(r.File, r.Category, o)] = true
	}
	if err := report.WriteBaseline(m.baselinePath, report.Baseline{Items: m.baselinedSet}); err != nil {
		m.statusMessage = fmt.Sprintf("Baseline error: %v", err)
		return
	}
	m.statusMessage = fmt.Sprintf("Baselined %d occurrences of %s in %s", r.Count(), r.Category, r.File)
	m.rebuildTableRows()
}

func (m *Model) rescan() tea.Cmd {
	fn := m.rescanFunc
	return func() tea.Msg {
		if fn == nil {
			return statusMsg("Rescan not available")
		}
		results, err := fn()
		if err != nil {
			return statusMsg(fmt.Sprintf("Scan error: %v", err))
		}
		return resultsMsg(results)
	}
}

func (m *Model) updateViewportContent() {
	var b strings.Builder
	if m.groupMode != GroupNone {
		idx := m.table.Cursor()
		if idx >= 0 && idx < len(m.grouped) && m.grouped[idx].IsGroup {
			it := m.grouped[idx]
			fmt.Fprintf(&b, "%s %s\n%s %d\n", keyStyle.Render("Group:"), it.GroupKey, keyStyle.Render("Occurrences:"), it.GroupCount)
			m.viewport.SetContent(b.String())
			return
		}
	}
	r := m.selected()
	if r == nil {
		m.viewport.SetContent("")
		return
	}
	fmt.Fprintf(&b, "%s %s\n", keyStyle.Render("Category:"), r.Category)
	fmt.Fprintf(&b, "%s %s\n", keyStyle.Render("File:"), r.File)
	fmt.Fprintf(&b, "%s %d (%d baselined)\n\n", keyStyle.Render("Occurrences:"), r.Count(), m.baselinedCount(*r))
	for i, o := range r.Occurrences {
		v := report.Mask(o)
		if m.reveal {
			v = o
		}
		line := fmt.Sprintf("%3d  %s", i+1, occurrenceStyle.Render(v))
		if m.baselinedSet[report.Fingerprint(r.File, r.Category, o)] {
			line += dimStyle.Render("  (baselined)")
		}
		b.WriteString(line + "\n")
	}
	m.viewport.SetContent(b.String())
	m.viewport.GotoTop()
}

func (m *Model) resize() {
	tableHeight := m.height/2 - 4
	if tableHeight < 3 {
		tableHeight = 3
	}
	m.table.SetHeight(tableHeight)
	m.table.SetWidth(m.width - 2)
	m.viewport.Width = m.width - 4
	m.viewport.Height = max(m.height-tableHeight-9, 3)
	m.updateViewportContent()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.ready = true
		m.resize()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case resultsMsg:
		m.scanning = false
		m.results = msg
		m.applyFilters()
		m.statusMessage = fmt.Sprintf("Rescan complete: %d results, %d new occurrences", len(m.results), m.newCount())
		return m, nil

	case statusMsg:
		m.scanning = false
		m.statusMessage = string(msg)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key == "ctrl+c" {
		m.quitting = true
		return m, tea.Quit
	}
	if m.showHelp {
		m.showHelp = false
		return m, nil
	}
	if m.scanning {
		return m, nil
	}
	if m.searchMode {
		switch key {
		case "enter":
			m.searchMode = false
			m.searchInput.Blur()
		case "esc":
			m.searchMode = false
			m.searchInput.Blur()
			m.searchQuery = ""
			m.searchInput.SetValue("")
			m.applyFilters()
		default:
			var cmd tea.Cmd
			m.searchInput, cmd = m.searchInput.Update(msg)
			m.searchQuery = m.searchInput.Value()
			m.applyFilters()
			return m, cmd
		}
		return m, nil
	}
	if m.pendingKey == "g" {
		m.pendingKey = ""
		switch key {
		case "f":
			m.setGroupMode(GroupByFile)
		case "c":
			m.setGroupMode(GroupByCategory)
		}
		return m, nil
	}

	switch key {
	case "q":
		m.quitting = true
		return m, tea.Quit
	case "?":
		m.showHelp = true
	case "/":
		m.searchMode = true
		cmd := m.searchInput.Focus()
		return m, cmd
	case "esc":
		m.clearFilters()
	case "c":
		m.cycleCategoryFilter()
	case "s":
		m.cycleSortColumn()
	case "S":
		m.toggleSortReverse()
	case "g":
		m.pendingKey = "g"
	case "enter", "tab":
		m.toggleGroupExpansion()
	case "u":
		m.reveal = !m.reveal
		m.updateViewportContent()
	case "b":
		m.baselineSelected()
	case "r":
		m.scanning = true
		cmd := tea.Batch(m.spinner.Tick, m.rescan())
		return m, cmd
	case "pgdown", "pgup", "ctrl+d", "ctrl+u":
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	default:
		var cmd tea.Cmd
		m.table, cmd = m.table.Update(msg)
		m.updateViewportContent()
		return m, cmd
	}
	return m, nil
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "Initializing..."
	}
	if m.scanning {
		box := popupStyle.Width(40).Align(lipgloss.Center).Render(fmt.Sprintf("%s  Rescanning...\n\nPlease wait", m.spinner.View()))
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
	}
	if m.showHelp {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, popupStyle.Render(helpText()))
	}

	var stats string
	if len(m.results) == 0 {
		stats = okStyle.Render("[OK] No matches found")
	} else {
		total, fresh := m.totalCount(), m.newCount()
		var filter string
		if m.filtering() {
			var parts []string
			if m.searchQuery != "" {
				parts = append(parts, fmt.Sprintf("search:'%s'", m.searchQuery))
			}
			if m.categoryFilter != "" {
				parts = append(parts, "category:"+m.categoryFilter)
			}
			filter = fmt.Sprintf("  [FILTER: %s]", strings.Join(parts, ", "))
		}
		stats = fmt.Sprintf("Results: %d/%d  |  Occurrences: %d  |  New: %d  |  Baselined: %d%s%s",
			len(m.display), len(m.results), total, fresh, total-fresh, filter, m.sortIndicator())
	}

	sections := []string{titleStyle.Render("piiscan"), stats}
	if m.searchMode {
		sections = append(sections, m.searchInput.View())
	}
	sections = append(sections,
		borderStyle.Render(m.table.View()),
		borderStyle.Width(m.width-2).Render(m.viewport.View()),
		statusStyle.Width(m.width).Render(m.statusMessage),
	)
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func helpText() string {
	rows := [][2]string{
		{"j/k, up/down", "move"},
		{"/", "search file or category"},
		{"c", "cycle category filter"},
		{"esc", "clear filters"},
		{"s / S", "cycle sort column / reverse"},
		{"gf / gc", "group by file / category"},
		{"enter, tab", "expand or collapse group"},
		{"u", "show or mask occurrences"},
		{"b", "baseline selected result"},
		{"r", "rescan"},
		{"pgup/pgdown", "scroll details"},
		{"q", "quit"},
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render("Keys") + "\n\n")
	for _, r := range rows {
		fmt.Fprintf(&b, "%-14s %s\n", keyStyle.Render(r[0]), r[1])
	}
	return b.String()
}

func sampleOf(occ []string) string {
	if len(occ) == 0 {
		return ""
	}
	s := report.Mask(occ[0])
	if len(occ) > 1 {
		s += fmt.Sprintf(" (+%d)", len(occ)-1)
	}
	return s
}
