// Package tray puts a status icon in the system tray with a small control
// menu, wrapping getlantern/systray.
package tray

import (
	"sync"

	"github.com/getlantern/systray"
	"go.viam.com/utils"
)

// item is one registered menu entry. A nil entry renders as a separator.
type item struct {
	title    string
	callback func()

	// Checkable entries carry their own state and toggle callback instead.
	checkable bool
	checked   bool
	onToggle  func(bool)

	menuItem *systray.MenuItem
}

// Tray owns the system tray icon and its menu. Entries are registered before
// Run; systray builds the menu on its own main-loop thread once running.
type Tray struct {
	title   string
	tooltip string

	mu         sync.Mutex
	items      []*item
	status     string
	statusItem *systray.MenuItem

	quitCh chan struct{}
}

// New returns a tray that will display the given title and tooltip.
func New(title, tooltip string) *Tray {
	return &Tray{
		title:   title,
		tooltip: tooltip,
		quitCh:  make(chan struct{}),
	}
}

// SetStatus updates the read-only status line at the top of the menu. Safe to
// call before Run; the text is applied once the menu exists.
func (t *Tray) SetStatus(status string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status = status
	if t.statusItem != nil {
		t.statusItem.SetTitle(status)
	}
}

// AddMenuItem registers a clickable entry and returns its id.
func (t *Tray) AddMenuItem(title string, callback func()) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.items = append(t.items, &item{title: title, callback: callback})
	return len(t.items) - 1
}

// AddCheckItem registers a checkable entry and returns its id. The callback
// receives the new state on every toggle.
func (t *Tray) AddCheckItem(title string, initial bool, onToggle func(bool)) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.items = append(t.items, &item{
		title:     title,
		checkable: true,
		checked:   initial,
		onToggle:  onToggle,
	})
	return len(t.items) - 1
}

// AddSeparator registers a separator.
func (t *Tray) AddSeparator() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.items = append(t.items, nil)
}

// SetItemChecked forces the checked state of a checkable entry without
// invoking its callback.
func (t *Tray) SetItemChecked(id int, checked bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if id < 0 || id >= len(t.items) {
		return
	}
	it := t.items[id]
	if it == nil || !it.checkable {
		return
	}
	it.checked = checked
	if it.menuItem == nil {
		return
	}
	if checked {
		it.menuItem.Check()
	} else {
		it.menuItem.Uncheck()
	}
}

// Run hands control to systray and blocks until Stop or a platform quit.
// Some platforms require this to be called from the main goroutine.
func (t *Tray) Run() {
	systray.Run(t.setup, func() { close(t.quitCh) })
}

// Stop tears the tray down and unblocks Run.
func (t *Tray) Stop() {
	systray.Quit()
}

// setup runs inside systray's ready callback and builds the menu.
func (t *Tray) setup() {
	systray.SetTitle(t.title)
	systray.SetTooltip(t.tooltip)
	systray.SetIcon(trayIcon())

	t.mu.Lock()
	defer t.mu.Unlock()

	status := t.status
	if status == "" {
		status = "starting"
	}
	t.statusItem = systray.AddMenuItem(status, "")
	t.statusItem.Disable()
	systray.AddSeparator()

	for _, it := range t.items {
		if it == nil {
			systray.AddSeparator()
			continue
		}
		if it.checkable {
			it.menuItem = systray.AddMenuItemCheckbox(it.title, "", it.checked)
			current := it
			utils.PanicCapturingGo(func() { t.toggleLoop(current) })
			continue
		}
		it.menuItem = systray.AddMenuItem(it.title, "")
		if it.callback != nil {
			current := it
			utils.PanicCapturingGo(func() { t.clickLoop(current) })
		}
	}
}

func (t *Tray) clickLoop(it *item) {
	for {
		select {
		case <-it.menuItem.ClickedCh:
			it.callback()
		case <-t.quitCh:
			return
		}
	}
}

func (t *Tray) toggleLoop(it *item) {
	for {
		select {
		case <-it.menuItem.ClickedCh:
			t.mu.Lock()
			it.checked = !it.checked
			checked := it.checked
			if checked {
				it.menuItem.Check()
			} else {
				it.menuItem.Uncheck()
			}
			t.mu.Unlock()
			if it.onToggle != nil {
				it.onToggle(checked)
			}
		case <-t.quitCh:
			return
		}
	}
}

// trayIcon builds a 16x16 32-bit ICO in memory. Every pixel is transparent;
// platforms that insist on an icon get a valid one without shipping an asset.
func trayIcon() []byte {
	icon := make([]byte, 1118)
	// ICONDIR: one image.
	copy(icon[0:6], []byte{0x00, 0x00, 0x01, 0x00, 0x01, 0x00})
	// ICONDIRENTRY: 16x16, 32bpp, 1096 data bytes at offset 22.
	copy(icon[6:22], []byte{
		0x10, 0x10, 0x00, 0x00, 0x01, 0x00, 0x20, 0x00,
		0x48, 0x04, 0x00, 0x00,
		0x16, 0x00, 0x00, 0x00,
	})
	// BITMAPINFOHEADER, with the height doubled for the AND mask.
	copy(icon[22:62], []byte{
		0x28, 0x00, 0x00, 0x00,
		0x10, 0x00, 0x00, 0x00,
		0x20, 0x00, 0x00, 0x00,
		0x01, 0x00,
		0x20, 0x00,
		0x00, 0x00, 0x00, 0x00,
		0x00, 0x04, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00,
	})
	// Pixel and mask bytes stay zero, fully transparent.
	return icon
}
