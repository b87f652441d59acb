package tray

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/getlantern/systray"
	"github.com/rs/zerolog"

	"github.com/petems/voiceflow/internal/app"
	"github.com/petems/voiceflow/internal/audio"
	"github.com/petems/voiceflow/internal/config"
	"github.com/petems/voiceflow/internal/logging"
	"github.com/petems/voiceflow/internal/stream"
	"github.com/petems/voiceflow/internal/whisper"
)

const (
	defaultTooltip = "Streaming voice dictation"
	maxTooltip     = 60
	stopTimeout    = 30 * time.Second
)

// Controller is what the menu drives
type Controller interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	IsRecording() bool
	ListDevices() ([]audio.AudioDevice, error)
	SetDevice(id string) error
	SetModel(model string) error
	Status() app.Status
	InjectSettings() config.InjectConfig
	SetCopyOnStop(enabled bool) error
}

type UI struct {
	app     Controller
	version string
	log     zerolog.Logger
	onQuit  func()
	ready   atomic.Bool

	// Menu items
	mStartStop *systray.MenuItem
	mDevices   *systray.MenuItem
	mModels    *systray.MenuItem
	mCopy      *systray.MenuItem
}

func New(ctl Controller, version string, log zerolog.Logger) *UI {
	return &UI{
		app:     ctl,
		version: version,
		log:     log.With().Str("component", "tray").Logger(),
	}
}

// Run blocks on the systray event loop. onQuit runs when the user quits.
func (u *UI) Run(onQuit func()) {
	u.onQuit = onQuit
	systray.Run(u.onReady, u.onExit)
}

// Quit ends Run from outside the menu (e.g. on a signal)
func (u *UI) Quit() {
	systray.Quit()
}

func (u *UI) onReady() {
	u.updateStatus("idle")
	systray.SetTooltip(defaultTooltip)

	u.mStartStop = systray.AddMenuItem("Start Dictation", "Start recording")
	systray.AddSeparator()

	u.mDevices = systray.AddMenuItem("Microphone", "Select audio device")
	u.buildDeviceMenu()

	u.mModels = systray.AddMenuItem("Model", "Select Whisper model")
	u.buildModelMenu()

	systray.AddSeparator()
	u.mCopy = systray.AddMenuItemCheckbox("Copy to Clipboard", "Copy the transcript when recording stops", u.app.InjectSettings().CopyOnStop)

	systray.AddSeparator()
	mLogs := systray.AddMenuItem("Open Logs", "View application logs")
	mAbout := systray.AddMenuItem("About", "About VoiceFlow")
	mQuit := systray.AddMenuItem("Quit", "Exit application")

	u.ready.Store(true)
	go u.handleEvents(mLogs, mAbout, mQuit)
}

func (u *UI) handleEvents(mLogs, mAbout, mQuit *systray.MenuItem) {
	for {
		select {
		case <-u.mStartStop.ClickedCh:
			u.toggleRecording()
		case <-u.mCopy.ClickedCh:
			u.toggleCopy()
		case <-mLogs.ClickedCh:
			u.openLogs()
		case <-mAbout.ClickedCh:
			u.showAbout()
		case <-mQuit.ClickedCh:
			systray.Quit()
			return
		}
	}
}

func (u *UI) toggleRecording() {
	if !u.app.IsRecording() {
		if err := u.app.Start(context.Background()); err != nil {
			u.log.Error().Err(err).Msg("Failed to start dictation")
			u.updateStatus("error")
		}
		return
	}

	// Stop waits for the last chunk; keep the menu responsive meanwhile
	u.mStartStop.Disable()
	go func() {
		defer u.mStartStop.Enable()
		ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
		defer cancel()
		if err := u.app.Stop(ctx); err != nil {
			u.log.Error().Err(err).Msg("Failed to stop dictation")
		}
	}()
}

// Handle follows pipeline events to keep the icon and tooltip current
func (u *UI) Handle(e stream.Event) {
	if !u.ready.Load() {
		return
	}
	if status, ok := statusForEvent(e); ok {
		u.updateStatus(status)
		switch status {
		case "recording":
			u.mStartStop.SetTitle("Stop Dictation")
		case "idle", "error":
			u.mStartStop.SetTitle("Start Dictation")
		}
	}
	if r, ok := e.(stream.ResultEvent); ok {
		systray.SetTooltip(tooltipFor(r.Text))
	}
}

func (u *UI) buildDeviceMenu() {
	devices, err := u.app.ListDevices()
	if err != nil {
		u.log.Error().Err(err).Msg("Failed to list audio devices")
		return
	}

	deviceItems := make(map[string]*systray.MenuItem)
	current := u.app.Status().DeviceID

	for _, dev := range devices {
		item := u.mDevices.AddSubMenuItem(dev.Name, "")
		if dev.ID == current || (current == "" && dev.Default) {
			item.Check()
		}
		deviceItems[dev.ID] = item

		go func(deviceID, deviceName string, menuItem *systray.MenuItem) {
			for range menuItem.ClickedCh {
				if err := u.app.SetDevice(deviceID); err != nil {
					u.log.Warn().Err(err).Str("device", deviceName).Msg("Device not changed")
					continue
				}
				checkOnly(deviceItems, deviceID)
				u.log.Info().Str("device", deviceName).Msg("Changed audio device")
			}
		}(dev.ID, dev.Name, item)
	}
}

func (u *UI) buildModelMenu() {
	modelItems := make(map[string]*systray.MenuItem)
	current := u.app.Status().Model

	for _, model := range whisper.Models() {
		item := u.mModels.AddSubMenuItem(model, "")
		if model == current {
			item.Check()
		}
		modelItems[model] = item

		go func(m string, menuItem *systray.MenuItem) {
			for range menuItem.ClickedCh {
				oldModel := u.app.Status().Model
				if err := u.app.SetModel(m); err != nil {
					u.log.Warn().Err(err).Str("model", m).Msg("Model not changed")
					continue
				}
				checkOnly(modelItems, m)
				u.log.Info().Str("from", oldModel).Str("to", m).Msg("Changed Whisper model")
			}
		}(model, item)
	}
}

func checkOnly(items map[string]*systray.MenuItem, key string) {
	for k, item := range items {
		if k == key {
			item.Check()
		} else {
			item.Uncheck()
		}
	}
}

func (u *UI) toggleCopy() {
	enabled := !u.app.InjectSettings().CopyOnStop
	if err := u.app.SetCopyOnStop(enabled); err != nil {
		u.log.Error().Err(err).Msg("Failed to save config")
	}
	if enabled {
		u.mCopy.Check()
	} else {
		u.mCopy.Uncheck()
	}
	u.log.Info().Bool("copy_on_stop", enabled).Msg("Changed clipboard setting")
}

func (u *UI) openLogs() {
	name, args := openCommand(runtime.GOOS, logging.LogPath())
	if err := exec.Command(name, args...).Start(); err != nil {
		u.log.Error().Err(err).Str("path", logging.LogPath()).Msg("Failed to open logs")
	}
}

func (u *UI) showAbout() {
	u.log.Info().Str("version", u.version).Msg("VoiceFlow streaming dictation")
	systray.SetTooltip(fmt.Sprintf("VoiceFlow %s", u.version))
}

func (u *UI) onExit() {
	if u.onQuit != nil {
		u.onQuit()
	}
}

// updateStatus sets the tray title with microphone emoji and status indicator
func (u *UI) updateStatus(status string) {
	systray.SetTitle(fmt.Sprintf("🎤 %s", emojiForStatus(status)))
}

// statusForEvent maps pipeline events onto tray states
func statusForEvent(e stream.Event) (string, bool) {
	switch e := e.(type) {
	case stream.StatusEvent:
		switch e.Status {
		case stream.StatusRecordingStarted:
			return "recording", true
		case stream.StatusRecordingStopped, stream.StatusProcessingLeftover:
			return "processing", true
		case stream.StatusTranscriptionComplete:
			return "idle", true
		}
	case stream.CaptureError:
		return "error", true
	}
	return "", false
}

// tooltipFor shows the tail of the latest result, which is what the user
// just said.
func tooltipFor(text string) string {
	if text == "" {
		return defaultTooltip
	}
	if utf8.RuneCountInString(text) <= maxTooltip {
		return text
	}
	runes := []rune(text)
	return "…" + string(runes[len(runes)-maxTooltip+1:])
}

func openCommand(goos, path string) (string, []string) {
	switch goos {
	case "darwin":
		return "open", []string{path}
	case "windows":
		return "cmd", []string{"/c", "start", "", path}
	default:
		return "xdg-open", []string{path}
	}
}

// emojiForStatus returns the appropriate status emoji
func emojiForStatus(status string) string {
	switch status {
	case "recording":
		return "🔴" // Red - recording
	case "processing":
		return "🟡" // Yellow - processing transcription
	case "idle":
		return "🟢" // Green - ready/idle
	case "error":
		return "⚪️" // White - error
	default:
		return "🟢" // Green - default to ready
	}
}

var _ Controller = (*app.App)(nil)
