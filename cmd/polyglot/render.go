package main

import (
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/glamour"
	"golang.org/x/term"
)

const maxCellRunes = 60

// renderMarkdown styles md for a terminal and prints it raw everywhere else, so
// piped output stays plain markdown.
func (c *CLI) renderMarkdown(md string) {
	file, ok := c.out.(*os.File)
	if !ok || !term.IsTerminal(int(file.Fd())) {
		fmt.Fprint(c.out, md)
		return
	}
	width := 100
	if w, _, err := term.GetSize(int(file.Fd())); err == nil && w > 0 {
		width = min(w-4, 140)
	}
	renderer, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(width))
	if err != nil {
		fmt.Fprint(c.out, md)
		return
	}
	rendered, err := renderer.Render(md)
	if err != nil {
		fmt.Fprint(c.out, md)
		return
	}
	fmt.Fprint(c.out, rendered)
}

type markdownTable struct {
	header []string
	rows   [][]string
}

func (t *markdownTable) add(cells ...string) {
	t.rows = append(t.rows, cells)
}

func (t markdownTable) String() string {
	var b strings.Builder
	writeRow := func(cells []string) {
		b.WriteString("|")
		for _, cell := range cells {
			b.WriteString(" " + tableCell(cell) + " |")
		}
		b.WriteString("\n")
	}
	writeRow(t.header)
	b.WriteString("|" + strings.Repeat("---|", len(t.header)) + "\n")
	for _, row := range t.rows {
		writeRow(row)
	}
	return b.String()
}

func tableCell(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	s = strings.ReplaceAll(s, "|", `\|`)
	if utf8.RuneCountInString(s) > maxCellRunes {
		runes := []rune(s)
		s = string(runes[:maxCellRunes-1]) + "…"
	}
	if s == "" {
		return "-"
	}
	return s
}
