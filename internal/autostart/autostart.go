// Package autostart registers the tray service to start on login.
package autostart

import (
	"fmt"
	"os"
	"strings"
	"text/template"
)

// DefaultLabel identifies the login item
const DefaultLabel = "com.actionreplay.agent"

// Entry describes the program launched at login
type Entry struct {
	Label          string
	ExecutablePath string
	Args           []string
}

// Current returns an entry for this executable with args
func Current(args ...string) (Entry, error) {
	execPath, err := os.Executable()
	if err != nil {
		return Entry{}, fmt.Errorf("failed to get executable path: %w", err)
	}
	return Entry{Label: DefaultLabel, ExecutablePath: execPath, Args: args}, nil
}

var homeDir = os.UserHomeDir

const macLaunchAgentPlist = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
    <key>Label</key>
    <string>{{.Label}}</string>
    <key>ProgramArguments</key>
    <array>
        <string>{{.ExecutablePath}}</string>
{{- range .Args}}
        <string>{{.}}</string>
{{- end}}
    </array>
    <key>RunAtLoad</key>
    <true/>
    <key>KeepAlive</key>
    <false/>
</dict>
</plist>
`

const xdgDesktopEntry = `[Desktop Entry]
Type=Application
Name=Action Replay
Exec={{.Exec}}
X-GNOME-Autostart-enabled=true
NoDisplay=true
`

var (
	plistTmpl   = template.Must(template.New("plist").Parse(macLaunchAgentPlist))
	desktopTmpl = template.Must(template.New("desktop").Parse(xdgDesktopEntry))
)

func renderPlist(e Entry) (string, error) {
	var b strings.Builder
	if err := plistTmpl.Execute(&b, e); err != nil {
		return "", err
	}
	return b.String(), nil
}

func renderDesktop(e Entry) (string, error) {
	var b strings.Builder
	if err := desktopTmpl.Execute(&b, struct{ Exec string }{commandLine(e)}); err != nil {
		return "", err
	}
	return b.String(), nil
}

// commandLine joins the executable and args, quoting parts with spaces
func commandLine(e Entry) string {
	parts := make([]string, 0, len(e.Args)+1)
	for _, p := range append([]string{e.ExecutablePath}, e.Args...) {
		if strings.ContainsAny(p, " \t") {
			p = `"` + p + `"`
		}
		parts = append(parts, p)
	}
	return strings.Join(parts, " ")
}
