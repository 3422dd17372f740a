package ui

import tea "charm.land/bubbletea/v2"

// KeyAction is what a key press asks the browser to do.
type KeyAction string

const (
	ActionNone      KeyAction = ""
	ActionUp        KeyAction = "up"
	ActionDown      KeyAction = "down"
	ActionTop       KeyAction = "top"
	ActionBottom    KeyAction = "bottom"
	ActionOpen      KeyAction = "open"
	ActionBack      KeyAction = "back"
	ActionSearch    KeyAction = "search"
	ActionGroupBy   KeyAction = "group_by"
	ActionSnapshot  KeyAction = "snapshot"
	ActionLive      KeyAction = "live"
	ActionTheme     KeyAction = "theme"
	ActionInput     KeyAction = "input"
	ActionHelp      KeyAction = "help"
	ActionQuit      KeyAction = "quit"
	ActionForceQuit KeyAction = "force_quit"
	ActionReload    KeyAction = "reload"
)

// KeyBindings maps key strings, as reported by tea.KeyPressMsg.String, to
// actions in browse mode.
var KeyBindings = map[string]KeyAction{
	"k":      ActionUp,
	"up":     ActionUp,
	"j":      ActionDown,
	"down":   ActionDown,
	"g":      ActionTop,
	"home":   ActionTop,
	"G":      ActionBottom,
	"end":    ActionBottom,
	"enter":  ActionOpen,
	"l":      ActionOpen,
	"right":  ActionOpen,
	"esc":    ActionBack,
	"h":      ActionBack,
	"left":   ActionBack,
	"/":      ActionSearch,
	"b":      ActionGroupBy,
	"s":      ActionSnapshot,
	"L":      ActionLive,
	"t":      ActionTheme,
	"i":      ActionInput,
	"r":      ActionReload,
	"?":      ActionHelp,
	"f1":     ActionHelp,
	"q":      ActionQuit,
	"ctrl+c": ActionForceQuit,
}

// actionFor resolves a key press. ctrl+c is matched on the raw control code
// too, since some terminals deliver it that way.
func actionFor(msg tea.KeyPressMsg) KeyAction {
	if msg.Code == 0x03 {
		return ActionForceQuit
	}
	return KeyBindings[msg.String()]
}

// helpLines lists the bindings shown in the help overlay.
var helpLines = [][2]string{
	{"j/k, ↑/↓", "move"},
	{"g/G", "first / last"},
	{"enter, l", "open dashboard or panel"},
	{"esc, h", "back"},
	{"/", "search dashboards"},
	{"b", "cycle group by: mod, then each tag"},
	{"i", "set input (name=value)"},
	{"s", "freeze data as a snapshot"},
	{"L", "return to live data"},
	{"r", "reload the dashboard"},
	{"t", "next theme"},
	{"?", "toggle help"},
	{"q", "quit"},
}
