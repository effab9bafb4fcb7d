// Package tray provides system tray functionality using getlantern/systray.
package tray

import (
	"fmt"
	"sync"

	"actionreplay/internal/action"
	"actionreplay/internal/playback"

	"github.com/getlantern/systray"
)

// MenuItem represents a menu item
type MenuItem struct {
	ID       int
	Title    string
	Disabled bool
	Callback func()
	item     *systray.MenuItem
}

// Tray manages the system tray icon and menu
type Tray struct {
	mu      sync.Mutex
	items   []*MenuItem
	title   string
	onReady func()
	onExit  func()
	readyCh chan struct{}
	quitCh  chan struct{}

	statusID int
	groupIDs map[string]int
}

// Actions are the callbacks behind the playback menu
type Actions struct {
	Play func(g *action.Group)
	Stop func()
	Quit func()
}

// New creates a new system tray
func New(title, tooltip string) *Tray {
	t := &Tray{
		items:    make([]*MenuItem, 0),
		title:    title,
		readyCh:  make(chan struct{}),
		quitCh:   make(chan struct{}),
		statusID: -1,
		groupIDs: make(map[string]int),
	}

	t.onReady = func() {
		systray.SetTitle(title)
		systray.SetTooltip(tooltip)
		systray.SetIcon(getIcon())
		close(t.readyCh)
	}

	t.onExit = func() {
		close(t.quitCh)
	}

	return t
}

// NewPlaybackMenu builds the standard menu: a status line, one item per
// group, then Stop and Quit.
func NewPlaybackMenu(groups []*action.Group, a Actions) *Tray {
	t := New("Action Replay", "Action Replay: idle")
	t.statusID = t.addItem(&MenuItem{Title: "Idle", Disabled: true})
	t.AddSeparator()
	for _, g := range groups {
		id := t.AddMenuItem(fmt.Sprintf("Play %s", g.Name), func() {
			if a.Play != nil {
				a.Play(g)
			}
		})
		t.groupIDs[g.ID] = id
	}
	if len(groups) == 0 {
		t.addItem(&MenuItem{Title: "No groups found", Disabled: true})
	}
	t.AddSeparator()
	t.AddMenuItem("Stop", a.Stop)
	t.AddMenuItem("Quit", func() {
		if a.Quit != nil {
			a.Quit()
		}
		t.Stop()
	})
	return t
}

func (t *Tray) addItem(mi *MenuItem) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	mi.ID = len(t.items)
	t.items = append(t.items, mi)
	return mi.ID
}

// AddMenuItem adds a menu item to the tray
func (t *Tray) AddMenuItem(title string, callback func()) int {
	return t.addItem(&MenuItem{Title: title, Callback: callback})
}

// AddSeparator adds a separator to the menu
func (t *Tray) AddSeparator() {
	t.mu.Lock()
	t.items = append(t.items, nil) // nil indicates separator
	t.mu.Unlock()
}

func (t *Tray) menuItem(id int) *systray.MenuItem {
	t.mu.Lock()
	defer t.mu.Unlock()
	if id >= 0 && id < len(t.items) && t.items[id] != nil {
		return t.items[id].item
	}
	return nil
}

// SetItemChecked sets the checked state of a menu item
func (t *Tray) SetItemChecked(id int, checked bool) {
	if item := t.menuItem(id); item != nil {
		if checked {
			item.Check()
		} else {
			item.Uncheck()
		}
	}
}

// SetItemTitle renames a menu item
func (t *Tray) SetItemTitle(id int, title string) {
	if item := t.menuItem(id); item != nil {
		item.SetTitle(title)
	}
}

// Observe reflects playback events in the menu. It is safe to use as a
// playback observer.
func (t *Tray) Observe(ev playback.Event) {
	text := statusText(ev)
	if text == "" {
		return
	}
	t.SetItemTitle(t.statusID, text)
	systray.SetTooltip(t.title + ": " + text)

	t.mu.Lock()
	id, ok := t.groupIDs[ev.GroupID]
	t.mu.Unlock()
	if ok {
		t.SetItemChecked(id, ev.Kind != playback.EventFinished)
	}
}

// statusText describes an event for the status line; item events are too
// frequent to show.
func statusText(ev playback.Event) string {
	switch ev.Kind {
	case playback.EventStarted:
		return fmt.Sprintf("Playing %s", ev.GroupName)
	case playback.EventFinished:
		return fmt.Sprintf("%s: %s", ev.GroupName, ev.Result.Status)
	}
	return ""
}

// Run starts the tray event loop (blocks)
func (t *Tray) Run() {
	systray.Run(t.setupMenu, t.onExit)
}

// Done is closed when the tray loop exits
func (t *Tray) Done() <-chan struct{} {
	return t.quitCh
}

// setupMenu is called when systray is ready
func (t *Tray) setupMenu() {
	t.onReady()

	// Wait for ready signal
	<-t.readyCh

	t.mu.Lock()
	items := append([]*MenuItem(nil), t.items...)
	t.mu.Unlock()

	for _, menuItem := range items {
		if menuItem == nil {
			systray.AddSeparator()
			continue
		}
		item := systray.AddMenuItem(menuItem.Title, "")
		if menuItem.Disabled {
			item.Disable()
		}
		t.mu.Lock()
		menuItem.item = item
		t.mu.Unlock()

		// Handle clicks in goroutine
		if menuItem.Callback != nil {
			go func(mi *MenuItem) {
				for {
					select {
					case <-item.ClickedCh:
						mi.Callback()
					case <-t.quitCh:
						return
					}
				}
			}(menuItem)
		}
	}
}

// Stop stops the tray
func (t *Tray) Stop() {
	systray.Quit()
}

// getIcon returns a placeholder icon (valid 16x16 ICO)
func getIcon() []byte {
	// A valid 16x16 32-bit ICO file with correct size and DIB header
	icon := make([]byte, 1118)
	// ICO Header
	copy(icon[0:6], []byte{0x00, 0x00, 0x01, 0x00, 0x01, 0x00})
	// Icon Directory
	copy(icon[6:22], []byte{
		0x10, 0x10, 0x00, 0x00, 0x01, 0x00, 0x20, 0x00,
		0x48, 0x04, 0x00, 0x00, // Size: 1024 (pixels) + 40 (header) + 32 (mask) = 1096 bytes
		0x16, 0x00, 0x00, 0x00, // Offset
	})
	// DIB Header
	copy(icon[22:62], []byte{
		0x28, 0x00, 0x00, 0x00, // Size
		0x10, 0x00, 0x00, 0x00, // Width
		0x20, 0x00, 0x00, 0x00, // Height (16 * 2 for icon)
		0x01, 0x00, // Planes
		0x20, 0x00, // BPP
		0x00, 0x00, 0x00, 0x00, // Compression
		0x00, 0x04, 0x00, 0x00, // Image Size
		0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00,
	})
	// The rest (pixels and mask) can stay 0 for transparency
	return icon
}
