package bindforge

import (
	"fmt"
	"os"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"golang.org/x/term"
)

// runLogViewer shows build logs in a TUI, refreshing while a build is still
// writing. Without a TTY it degrades to dumping the newest log.
func runLogViewer(cfg *Config) int {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		logs := readAllBuildLogs(cfg)
		if len(logs) == 0 {
			fmt.Println("No build log yet. Run 'bindforge build <module>' to start a build.")
			return 0
		}
		fmt.Print(logs[0].content)
		return 0
	}

	app := tview.NewApplication()
	logs := readAllBuildLogs(cfg)
	activeIdx := 0

	header := tview.NewTextView().
		SetDynamicColors(true).
		SetWrap(false).
		SetTextAlign(tview.AlignLeft)
	header.SetBorder(true)
	header.SetTitle("bindforge Build Log Viewer")

	// SetDynamicColors(true) enables ANSI color code support
	logView := tview.NewTextView().
		SetDynamicColors(true).
		SetWrap(false).
		SetScrollable(true).
		SetChangedFunc(func() {
			app.Draw()
		})
	logView.SetBorder(true)

	footer := tview.NewTextView().
		SetDynamicColors(true).
		SetWrap(true).
		SetTextAlign(tview.AlignLeft)
	footer.SetBorder(true)
	footer.SetText("[gray]Press 'q' or Esc to quit | ← → (or h/l) to switch logs | ↑ ↓ to scroll | Home/End to jump[white]")

	flex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(header, 3, 0, false).
		AddItem(logView, 0, 1, true).
		AddItem(footer, 3, 0, false)

	render := func() {
		if len(logs) == 0 {
			header.SetText("[gray]No build logs found[white]")
			logView.SetText("No build log yet. Run 'bindforge build <module>' to start a build.")
			return
		}
		if activeIdx >= len(logs) {
			activeIdx = len(logs) - 1
		}
		entry := logs[activeIdx]
		header.SetText(fmt.Sprintf("[gray]Build Log %d/%d: %s (%s)[white]", activeIdx+1, len(logs), entry.module, entry.path))
		logView.Clear()
		// ANSIWriter converts ANSI escape sequences to tview color tags
		w := tview.ANSIWriter(logView)
		w.Write([]byte(entry.content))
		logView.ScrollToEnd()
	}

	flex.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyEsc, tcell.KeyCtrlQ:
			app.Stop()
			return nil
		case tcell.KeyLeft:
			if len(logs) > 0 {
				activeIdx = (activeIdx - 1 + len(logs)) % len(logs)
				render()
			}
			return nil
		case tcell.KeyRight:
			if len(logs) > 0 {
				activeIdx = (activeIdx + 1) % len(logs)
				render()
			}
			return nil
		case tcell.KeyHome:
			logView.ScrollToBeginning()
			return nil
		case tcell.KeyEnd:
			logView.ScrollToEnd()
			return nil
		case tcell.KeyUp:
			row, _ := logView.GetScrollOffset()
			if row > 0 {
				logView.ScrollTo(row-1, 0)
			}
			return nil
		case tcell.KeyDown:
			row, _ := logView.GetScrollOffset()
			logView.ScrollTo(row+1, 0)
			return nil
		case tcell.KeyRune:
			switch event.Rune() {
			case 'q':
				app.Stop()
				return nil
			case 'h':
				if len(logs) > 0 {
					activeIdx = (activeIdx - 1 + len(logs)) % len(logs)
					render()
				}
				return nil
			case 'l':
				if len(logs) > 0 {
					activeIdx = (activeIdx + 1) % len(logs)
					render()
				}
				return nil
			}
		}
		return event
	})

	// Refresh loop: re-read logs while a build appends to them. Only redraw
	// when the viewed content actually changed.
	prevContent := make(map[string]string)
	go func() {
		ticker := time.NewTicker(500 * time.Millisecond)
		defer ticker.Stop()
		for range ticker.C {
			fresh := readAllBuildLogs(cfg)
			app.QueueUpdateDraw(func() {
				var current string
				if activeIdx < len(logs) {
					current = logs[activeIdx].path
				}
				logs = fresh
				for i, entry := range logs {
					if entry.path == current {
						activeIdx = i
						break
					}
				}
				if activeIdx < len(logs) {
					entry := logs[activeIdx]
					if prevContent[entry.path] != entry.content {
						prevContent[entry.path] = entry.content
						render()
					}
				}
			})
		}
	}()

	app.SetRoot(flex, true).SetFocus(logView)
	render()

	if err := app.Run(); err != nil {
		fmt.Fprintln(os.Stderr, "logview:", err)
		return 1
	}
	return 0
}
