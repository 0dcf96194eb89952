package ui

import (
	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
)

const AppID = "io.scribblepad.app"

func NewApp() fyne.App {
	return app.NewWithID(AppID)
}

// RunApp shows the pad in a window and blocks until it closes.
func RunApp(a fyne.App, board *PadWidget, shareLink string) {
	win := a.NewWindow("Scribble")
	win.Resize(fyne.NewSize(1024, 768))

	toolbar := NewToolbar(board, win, shareLink)
	win.SetContent(container.NewBorder(toolbar, nil, nil, nil, board))
	win.ShowAndRun()
}
