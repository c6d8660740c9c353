// Package render turns controller state into terminal output.
package render

import (
	"fmt"
	"strings"

	"ctrlbx/app/dto"
	"ctrlbx/app/service/notify"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/rofleksey/meg"
)

// MaxCellRunes bounds the width of a single table cell.
const MaxCellRunes = 48

var (
	colorPrimary = lipgloss.Color("#7C3AED")
	colorAccent  = lipgloss.Color("#10B981")
	colorInfo    = lipgloss.Color("#06B6D4")
	colorWarning = lipgloss.Color("#F59E0B")
	colorError   = lipgloss.Color("#EF4444")
	colorMuted   = lipgloss.Color("#6B7280")

	titleStyle = lipgloss.NewStyle().
			Foreground(colorPrimary).
			Bold(true)

	headerStyle = lipgloss.NewStyle().
			Foreground(colorPrimary).
			Bold(true).
			Padding(0, 1)

	cellStyle = lipgloss.NewStyle().Padding(0, 1)

	mutedStyle = lipgloss.NewStyle().Foreground(colorMuted)
	labelStyle = lipgloss.NewStyle().Foreground(colorMuted).Width(18)

	noticeStyles = map[notify.Kind]lipgloss.Style{
		notify.KindSuccess: lipgloss.NewStyle().Foreground(colorAccent).Bold(true),
		notify.KindInfo:    lipgloss.NewStyle().Foreground(colorInfo),
		notify.KindWarning: lipgloss.NewStyle().Foreground(colorWarning),
		notify.KindError:   lipgloss.NewStyle().Foreground(colorError).Bold(true),
	}

	noticeIcons = map[notify.Kind]string{
		notify.KindSuccess: "✓",
		notify.KindInfo:    "i",
		notify.KindWarning: "!",
		notify.KindError:   "✗",
	}
)

func Title(text string) string {
	return titleStyle.Render(text)
}

func Muted(text string) string {
	return mutedStyle.Render(text)
}

// Table lays rows out under headers. Long cells are cut to MaxCellRunes.
func Table(headers []string, rows [][]string) string {
	if len(rows) == 0 {
		return Muted("Sin resultados")
	}

	trimmed := make([][]string, 0, len(rows))
	for _, row := range rows {
		cells := make([]string, len(row))
		for i, cell := range row {
			cells[i] = cut(cell)
		}
		trimmed = append(trimmed, cells)
	}

	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(mutedStyle).
		Headers(headers...).
		Rows(trimmed...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		String()
}

func cut(cell string) string {
	if len([]rune(cell)) <= MaxCellRunes {
		return cell
	}

	return meg.TrimSuffixToNRunes(cell, MaxCellRunes-1) + "…"
}

// Details renders label/value pairs, one per line.
func Details(pairs ...[2]string) string {
	lines := make([]string, 0, len(pairs))
	for _, p := range pairs {
		lines = append(lines, labelStyle.Render(p[0])+p[1])
	}

	return strings.Join(lines, "\n")
}

func Notice(notice notify.Notice) string {
	style, ok := noticeStyles[notice.Kind]
	if !ok {
		style = cellStyle
	}

	return style.Render(fmt.Sprintf("%s %s", noticeIcons[notice.Kind], notice.Message))
}

// Status colours ACTIVO/ACTIVA green and everything else red.
func Status(status string) string {
	switch status {
	case dto.StatusActive, dto.MasterkeyActive, "ONLINE":
		return lipgloss.NewStyle().Foreground(colorAccent).Render(status)
	case "":
		return Muted("-")
	default:
		return lipgloss.NewStyle().Foreground(colorError).Render(status)
	}
}

// Bar draws count as a horizontal bar scaled against peak.
func Bar(count, peak, width int) string {
	if peak <= 0 || count <= 0 {
		return ""
	}

	n := count * width / peak
	if n == 0 {
		n = 1
	}

	return lipgloss.NewStyle().Foreground(colorPrimary).Render(strings.Repeat("█", n))
}
