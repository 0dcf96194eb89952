package ui

import (
	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
)

// NewToolbar builds the strip above the pad. The stroke style comes from
// configuration, so there is no colour or brush picker here.
func NewToolbar(board *PadWidget, win fyne.Window, shareLink string) fyne.CanvasObject {
	tb := widget.NewToolbar(
		widget.NewToolbarAction(theme.ContentClearIcon(), func() {
			if board.Pad() != nil {
				board.Pad().Clear()
			}
		}), // Clear
		widget.NewToolbarSeparator(),
		widget.NewToolbarAction(theme.DocumentSaveIcon(), func() {
			saveExport(board, win, exportPNG)
		}), // PNG
		widget.NewToolbarAction(theme.DocumentPrintIcon(), func() {
			saveExport(board, win, exportPDF)
		}), // PDF
	)

	items := []fyne.CanvasObject{tb, layout.NewSpacer()}
	if shareLink != "" {
		link := widget.NewLabel("Remote pad: " + shareLink)
		link.Selectable = true
		items = append(items, widget.NewSeparator(), link)
	}
	return container.NewHBox(items...)
}
