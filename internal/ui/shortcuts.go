package ui

import (
	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"

	"photogallery/internal/lightbox"
)

type shortcut struct {
	keys        string
	description string
}

var shortcuts = []shortcut{
	{"Ctrl+Q", "Quit"},
	{"Ctrl+O", "Add image"},
	{"Arrow Right", "Next image"},
	{"Arrow Left", "Previous image"},
	{"Esc", "Close the viewer"},
}

func (a *App) buildKeyboardShortcuts() {
	c := a.UI.MainWin.Canvas()

	c.AddShortcut(&desktop.CustomShortcut{
		KeyName:  fyne.KeyQ,
		Modifier: a.UI.mainModKey,
	}, func(_ fyne.Shortcut) { a.app.Quit() })
	c.AddShortcut(&desktop.CustomShortcut{
		KeyName:  fyne.KeyO,
		Modifier: a.UI.mainModKey,
	}, func(_ fyne.Shortcut) { a.showAddDialog() })

	c.SetOnTypedKey(a.typedKey)
}

// typedKey handles navigation keys. They only act while the viewer is open,
// except Escape which also dismisses dialogs.
func (a *App) typedKey(key *fyne.KeyEvent) {
	open := a.lightbox.Phase() == lightbox.Open
	switch key.Name {
	case fyne.KeyRight:
		if open {
			a.lightbox.Next()
		}
	case fyne.KeyLeft:
		if open {
			a.lightbox.Prev()
		}
	case fyne.KeyEscape:
		if open {
			a.lightbox.Close()
			return
		}
		if top := a.UI.MainWin.Canvas().Overlays().Top(); top != nil {
			top.Hide()
		}
	}
}

func (a *App) showShortcuts() {
	win := a.app.NewWindow("Keyboard Shortcuts")
	table := widget.NewTable(
		func() (int, int) { return len(shortcuts) + 1, 2 }, // +1 for header row
		func() fyne.CanvasObject {
			return widget.NewLabel("")
		},
		func(id widget.TableCellID, obj fyne.CanvasObject) {
			label := obj.(*widget.Label)
			isHeader := id.Row == 0
			label.TextStyle.Bold = isHeader
			switch {
			case isHeader && id.Col == 0:
				label.SetText("Description")
			case isHeader:
				label.SetText("Shortcut")
			case id.Col == 0:
				label.SetText(shortcuts[id.Row-1].description)
			default:
				label.SetText(shortcuts[id.Row-1].keys)
			}
		},
	)
	table.SetColumnWidth(0, 200)
	table.SetColumnWidth(1, 150)
	win.SetContent(table)
	win.Resize(fyne.NewSize(380, 260))
	win.Show()
}
