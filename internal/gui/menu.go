// Menu handler for application actions
package gui

import (
	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/widget"
	"github.com/sirupsen/logrus"

	imageio "droste-effect/internal/io"
)

// MenuHandler handles menu actions
type MenuHandler struct {
	window fyne.Window
	logger logrus.FieldLogger

	onOpen   func(path string)
	onRun    func()
	onCancel func()
}

func NewMenuHandler(window fyne.Window, logger logrus.FieldLogger) *MenuHandler {
	return &MenuHandler{window: window, logger: logger}
}

func (mh *MenuHandler) SetCallbacks(onOpen func(string), onRun, onCancel func()) {
	mh.onOpen = onOpen
	mh.onRun = onRun
	mh.onCancel = onCancel
}

func (mh *MenuHandler) GetMainMenu() *fyne.MainMenu {
	fileMenu := fyne.NewMenu("File",
		fyne.NewMenuItem("Open Image...", mh.OpenImage),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Exit", func() {
			mh.window.Close()
		}),
	)
	runMenu := fyne.NewMenu("Run",
		fyne.NewMenuItem("Start", func() {
			if mh.onRun != nil {
				mh.onRun()
			}
		}),
		fyne.NewMenuItem("Cancel", func() {
			if mh.onCancel != nil {
				mh.onCancel()
			}
		}),
	)
	helpMenu := fyne.NewMenu("Help",
		fyne.NewMenuItem("About", mh.showAbout),
	)
	return fyne.NewMainMenu(fileMenu, runMenu, helpMenu)
}

// OpenImage shows a file picker limited to decodable images.
func (mh *MenuHandler) OpenImage() {
	mh.logger.Debug("Opening file dialog for image selection")

	fileDialog := dialog.NewFileOpen(func(reader fyne.URIReadCloser, err error) {
		if err != nil {
			mh.logger.WithError(err).Error("File dialog failed")
			dialog.ShowError(err, mh.window)
			return
		}
		if reader == nil {
			mh.logger.Info("No image selected")
			return
		}
		path := reader.URI().Path()
		reader.Close()

		if mh.onOpen != nil {
			mh.onOpen(path)
		}
	}, mh.window)

	fileDialog.SetFilter(storage.NewExtensionFileFilter(imageio.GetSupportedFormats()))
	fileDialog.Show()
}

func (mh *MenuHandler) showAbout() {
	content := container.NewVBox(
		widget.NewLabel("Droste"),
		widget.NewSeparator(),
		widget.NewLabel("Recursively shrinks, rotates and pastes an image"),
		widget.NewLabel("into its own centre, and turns the iterations"),
		widget.NewLabel("into a time-lapse video."),
	)
	aboutDialog := dialog.NewCustom("About", "Close", content, mh.window)
	aboutDialog.Resize(fyne.NewSize(400, 220))
	aboutDialog.Show()
}
