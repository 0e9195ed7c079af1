package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/tejashwikalptaru/saavntune/internal/adapter/session"
	"github.com/tejashwikalptaru/saavntune/internal/domain"
	"golang.org/x/term"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	artistStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	hintStyle   = lipgloss.NewStyle().Faint(true)
)

func getTermWidth() int {
	if width, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && width > 0 {
		return width
	}
	return 120
}

func newTable(out io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleLight)
	t.SetAllowedRowLength(getTermWidth())
	return t
}

// formatSeconds renders a duration in seconds as m:ss.
func formatSeconds(seconds int) string {
	if seconds <= 0 {
		return "-"
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}

func formatMillis(ms int64) string {
	d := time.Duration(ms) * time.Millisecond
	return formatSeconds(int(d.Seconds()))
}

// renderSongs prints songs as a numbered table. current marks a row (-1 for none).
func renderSongs(out io.Writer, songs []domain.Song, current int) {
	if len(songs) == 0 {
		_, _ = fmt.Fprintln(out, "No songs found")
		return
	}

	t := newTable(out)
	t.AppendHeader(table.Row{"#", "Title", "Artists", "Length"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
		{Number: 2, WidthMax: 48},
		{Number: 3, WidthMax: 40},
		{Number: 4, Align: text.AlignRight},
	})

	for i, s := range songs {
		marker := fmt.Sprintf("%d", i)
		row := table.Row{marker, s.Name, s.Artists, formatSeconds(s.Duration)}
		if i == current {
			row = table.Row{text.FgGreen.Sprint("▶ " + marker), text.FgGreen.Sprint(s.Name), s.Artists, formatSeconds(s.Duration)}
		}
		t.AppendRow(row)
	}
	t.Render()
}

func renderAlbums(out io.Writer, albums []domain.AlbumSummary) {
	if len(albums) == 0 {
		_, _ = fmt.Fprintln(out, "No albums found")
		return
	}

	t := newTable(out)
	t.AppendHeader(table.Row{"#", "Album", "ID"})
	for i, a := range albums {
		t.AppendRow(table.Row{i, a.Name, a.ID})
	}
	t.Render()
}

func renderNames(out io.Writer, header string, names []string) {
	if len(names) == 0 {
		_, _ = fmt.Fprintf(out, "No %s found\n", header)
		return
	}

	t := newTable(out)
	t.AppendHeader(table.Row{"#", header})
	for i, n := range names {
		t.AppendRow(table.Row{i, n})
	}
	t.Render()
}

// nowPlayingLine is the single status line shown while a session runs.
func nowPlayingLine(title, artist, status string, positionMs, durationMs int64) string {
	return fmt.Sprintf("%s %s %s  %s",
		statusStyle.Render("["+status+"]"),
		titleStyle.Render(title),
		artistStyle.Render("· "+artist),
		hintStyle.Render(formatMillis(positionMs)+" / "+formatMillis(durationMs)),
	)
}

func renderNowPlaying(out io.Writer, state domain.PlayerState) {
	title, artist := session.NowPlaying(state)
	_, _ = fmt.Fprintln(out, nowPlayingLine(title, artist, state.Status().String(), state.CurrentPosition, state.Duration))
}
