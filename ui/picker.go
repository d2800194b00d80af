package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sahilm/fuzzy"
)

type pickerItem struct {
	ID     string
	Title  string
	Detail string
	Marked bool
}

type pickerAction int

const (
	pickerNone pickerAction = iota
	pickerChoose
	pickerClose
	pickerDelete
)

// picker is a filterable list used by the model, conversation and search overlays.
type picker struct {
	title     string
	items     []pickerItem
	filtered  []int
	cursor    int
	filter    textinput.Model
	filtering bool
	deletable bool
}

func newPicker(title string, items []pickerItem) picker {
	fi := textinput.New()
	fi.Prompt = "Filter: "
	fi.CharLimit = 64

	p := picker{title: title, items: items, filter: fi}
	p.applyFilter()
	return p
}

// applyFilter recomputes the visible items. An empty filter shows everything
// in original order; otherwise fuzzy match order is used.
func (p *picker) applyFilter() {
	query := strings.TrimSpace(p.filter.Value())
	filtered := make([]int, 0, len(p.items))
	if query == "" {
		for i := range p.items {
			filtered = append(filtered, i)
		}
	} else {
		targets := make([]string, len(p.items))
		for i, it := range p.items {
			targets[i] = it.Title + " " + it.Detail
		}
		for _, m := range fuzzy.Find(query, targets) {
			filtered = append(filtered, m.Index)
		}
	}
	p.filtered = filtered
	if p.cursor >= len(p.filtered) {
		p.cursor = max(len(p.filtered)-1, 0)
	}
}

func (p picker) visible() []pickerItem {
	out := make([]pickerItem, len(p.filtered))
	for i, idx := range p.filtered {
		out[i] = p.items[idx]
	}
	return out
}

func (p *picker) move(delta int) {
	if len(p.filtered) == 0 {
		p.cursor = 0
		return
	}
	p.cursor = (p.cursor + delta + len(p.filtered)) % len(p.filtered)
}

func (p picker) selected() (pickerItem, bool) {
	if len(p.filtered) == 0 {
		return pickerItem{}, false
	}
	return p.items[p.filtered[p.cursor]], true
}

func (p picker) Update(msg tea.KeyMsg) (picker, pickerAction, tea.Cmd) {
	if p.filtering {
		switch msg.String() {
		case "esc":
			p.filtering = false
			p.filter.Blur()
			p.filter.SetValue("")
			p.applyFilter()
			return p, pickerNone, nil
		case "enter":
			p.filtering = false
			p.filter.Blur()
			return p, pickerNone, nil
		case "up", "down":
		default:
			var cmd tea.Cmd
			p.filter, cmd = p.filter.Update(msg)
			p.applyFilter()
			return p, pickerNone, cmd
		}
	}

	switch msg.String() {
	case "esc", "q":
		return p, pickerClose, nil
	case "up", "k":
		p.move(-1)
	case "down", "j":
		p.move(1)
	case "/":
		p.filtering = true
		return p, pickerNone, p.filter.Focus()
	case "enter":
		if _, ok := p.selected(); ok {
			return p, pickerChoose, nil
		}
	case "ctrl+d", "d":
		if _, ok := p.selected(); ok && p.deletable {
			return p, pickerDelete, nil
		}
	}
	return p, pickerNone, nil
}

func (p picker) View(width, height int) string {
	modalWidth := min(70, max(width-10, 20))
	listHeight := max(height-12, 3)

	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(accentColor).
		Width(modalWidth).
		Align(lipgloss.Center).
		Render(p.title)

	items := p.visible()
	start := 0
	if p.cursor >= listHeight {
		start = p.cursor - listHeight + 1
	}
	end := min(start+listHeight, len(items))

	var lines []string
	if len(items) == 0 {
		lines = append(lines, DimStyle.Render("  (nothing here)"))
	}
	for i := start; i < end; i++ {
		it := items[i]
		mark := "  "
		if it.Marked {
			mark = "* "
		}
		text := truncate(it.Title, modalWidth/2)
		line := mark + padRight(text, modalWidth/2) + " " + DimStyle.Render(truncate(it.Detail, modalWidth/2-4))
		if i == p.cursor {
			line = SelectedStyle.Render("> ") + SelectedStyle.Render(stripANSI(line[2:]))
		}
		lines = append(lines, line)
	}
	if len(items) > listHeight {
		lines = append(lines, DimStyle.Render(fmt.Sprintf("  %d/%d", p.cursor+1, len(items))))
	}

	var filterLine string
	if p.filtering || p.filter.Value() != "" {
		filterLine = p.filter.View()
	}

	footerParts := []string{"j/k", "Navigate", "Enter", "Select", "/", "Filter"}
	if p.deletable {
		footerParts = append(footerParts, "d", "Delete")
	}
	footerParts = append(footerParts, "Esc", "Close")
	footer := lipgloss.NewStyle().
		Width(modalWidth).
		BorderTop(true).
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(dimColor).
		Render(FormatFooter(footerParts...))

	body := lipgloss.NewStyle().
		BorderTop(true).
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(dimColor).
		Width(modalWidth).
		Render(strings.Join(lines, "\n"))

	sections := []string{title, body}
	if filterLine != "" {
		sections = append(sections, filterLine)
	}
	sections = append(sections, footer)
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, strings.Join(sections, "\n"))
}
