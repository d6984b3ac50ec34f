// Package host runs a frontend.Session inside an ebiten window. Emulation,
// input, timers and rendering all happen on ebiten's update thread; only
// audio is pulled from another goroutine by oto.
package host

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/spf13/afero"
	"github.com/sqweek/dialog"

	emucore "github.com/user-none/emuframework/api"
	"github.com/user-none/emuframework/frontend"
	"github.com/user-none/emuframework/keyconfig"
	"github.com/user-none/emuframework/rdb"
	"github.com/user-none/emuframework/rewind"
	"github.com/user-none/emuframework/storage"
)

const maxPlayers = 2

// ErrNoContent is returned by Run when no path is given and the open
// dialog is cancelled.
var ErrNoContent = errors.New("no content selected")

// Options adjusts a Run.
type Options struct {
	// Region is "auto", "ntsc" or "pal". Empty means auto.
	Region string
	// Volume is the initial audio volume in [0, 2]. Zero mutes.
	Volume float64
}

// DefaultOptions returns auto region detection at normal volume.
func DefaultOptions() Options {
	return Options{Region: "auto", Volume: 1}
}

// Run opens path (asking with a file dialog when empty) and plays it until
// the window is closed. Settings are loaded from and saved to the system's
// data directory.
func Run(factory emucore.CoreFactory, path string, opts Options) error {
	info := factory.SystemInfo()

	region, force, err := emucore.ParseRegion(opts.Region)
	if err != nil {
		return err
	}

	base, err := storage.GetBaseDir(info.DataDirName)
	if err != nil {
		return err
	}
	dirs := storage.New(afero.NewOsFs(), base)
	if err := dirs.EnsureDirectories(); err != nil {
		return err
	}

	session := frontend.New(factory, dirs)
	session.ForceRegion(region, force)
	if err := session.LoadConfig(); err != nil {
		log.Printf("Config load failed: %v", err)
	}
	if ok, _ := afero.Exists(dirs.Fs(), dirs.GameDBPath()); ok {
		db, err := rdb.Load(dirs.Fs(), dirs.GameDBPath())
		if err != nil {
			log.Printf("Game database incomplete: %v", err)
		}
		session.SetGameDB(db)
	}

	if path == "" {
		path, err = openDialog(info)
		if err != nil {
			return err
		}
	}
	if err := session.LoadContent(path); err != nil {
		return err
	}

	r := newRunner(session, dirs, opts.Volume)
	defer r.close()

	ebiten.SetWindowTitle(fmt.Sprintf("%s - %s", session.ContentTitle(), info.ConsoleName))
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetWindowClosingHandled(true)
	ebiten.SetTPS(r.fps)

	winW, winH := windowSize(info, 3)
	ebiten.SetWindowSize(winW, winH)
	ebiten.SetWindowSizeLimits(winW/3, winH/3, -1, -1)

	err = ebiten.RunGame(r)
	if errors.Is(err, ebiten.Termination) {
		err = nil
	}
	return err
}

func openDialog(info emucore.SystemInfo) (string, error) {
	exts := make([]string, 0, len(info.Extensions)+4)
	for _, e := range info.Extensions {
		exts = append(exts, strings.TrimPrefix(e, "."))
	}
	exts = append(exts, "zip", "7z", "rar", "gz")

	path, err := dialog.File().
		Title("Open "+info.ConsoleName+" Content").
		Filter(info.Name, exts...).
		Load()
	if err != nil {
		if errors.Is(err, dialog.ErrCancelled) {
			return "", ErrNoContent
		}
		return "", err
	}
	return path, nil
}

// windowSize returns the initial window size at the given integer scale.
func windowSize(info emucore.SystemInfo, scale int) (int, int) {
	w := info.ScreenWidth
	if info.PixelAspectRatio > 0 {
		w = int(float64(w) * info.PixelAspectRatio)
	}
	return w * scale, info.MaxScreenHeight * scale
}

// runner implements ebiten.Game for one loaded session.
type runner struct {
	session  *frontend.Session
	renderer *FramebufferRenderer
	audio    *AudioPlayer
	keyboard *InputMapper
	pads     *InputMapper
	padP2    *InputMapper

	fps         int
	minBuffer   int
	maxBuffer   int
	fastForward int
	rewindHeld  int
	audioFrames []int16

	dirs      *storage.Dirs
	clipboard clipboardState

	// confirm receives the answer of an overwrite question asked off the
	// update thread.
	confirm chan confirmResult
	asking  bool

	// launchChoice receives the answer to the autosave launch question.
	// Emulation waits until it arrives.
	launchChoice chan bool
	awaiting     bool

	focus focusPauser
}

type confirmResult struct {
	slot      int
	overwrite bool
}

func newRunner(s *frontend.Session, dirs *storage.Dirs, volume float64) *runner {
	info := s.SystemInfo()
	keys := s.KeyConfigs()

	r := &runner{
		session:      s,
		dirs:         dirs,
		renderer:     NewFramebufferRenderer(info.PixelAspectRatio),
		keyboard:     NewInputMapper(resolveConfig(keys, keyconfig.MapKeyboard, DefaultKeyboardConfig(info.Buttons))),
		fps:          60,
		fastForward:  1,
		confirm:      make(chan confirmResult, 1),
		launchChoice: make(chan bool, 1),
		focus:        focusPauser{focused: true},
	}
	padCfg := resolveConfig(keys, keyconfig.MapGamepad, DefaultGamepadConfig(info.Buttons))
	r.pads = NewInputMapper(padCfg)
	r.padP2 = NewInputMapper(padCfg)

	var frame time.Duration
	if emu := s.Emulator(); emu != nil {
		t := emu.GetTiming()
		if t.FPS > 0 {
			r.fps = t.FPS
		}
		frame = t.FrameDuration()
	}
	r.minBuffer, r.maxBuffer = bufferThresholds(info.SampleRate, frame)

	audio, err := NewAudioPlayer(info.SampleRate, volume)
	if err != nil {
		log.Printf("Audio disabled: %v", err)
	} else {
		r.audio = audio
	}

	if saved, ok := s.Autosave().PendingLaunchChoice(); ok {
		r.askLaunchChoice(saved)
	}
	return r
}

// askLaunchChoice asks whether to continue from the autosave written at
// saved or start fresh.
func (r *runner) askLaunchChoice(saved time.Time) {
	r.awaiting = true
	go func() {
		ok := dialog.Message("Continue from the autosave of %s?", saved.Format("Jan 2 2006 15:04")).
			Title("Autosave").
			YesNo()
		r.launchChoice <- ok
	}()
}

// pollLaunchChoice applies the launch answer once it arrives and reports
// whether emulation may run.
func (r *runner) pollLaunchChoice() bool {
	if !r.awaiting {
		return true
	}
	select {
	case load := <-r.launchChoice:
		r.awaiting = false
		if err := r.session.ResolveAutosaveChoice(load); err != nil {
			log.Printf("Auto-load failed: %v", err)
		}
		return true
	default:
		return false
	}
}

// focusPauser pauses the session when the window loses focus and resumes it
// on return, unless the user paused it first.
type focusPauser struct {
	focused bool
	paused  bool
}

// update reports whether the session should be paused or resumed for the
// current focus.
func (f *focusPauser) update(focused, sessionPaused bool) (pause, resume bool) {
	if focused == f.focused {
		return false, false
	}
	f.focused = focused
	if !focused {
		if sessionPaused {
			return false, false
		}
		f.paused = true
		return true, false
	}
	if !f.paused {
		return false, false
	}
	f.paused = false
	return false, sessionPaused
}

// Update implements ebiten.Game.
func (r *runner) Update() error {
	if ebiten.IsWindowBeingClosed() {
		return ebiten.Termination
	}

	if !r.pollLaunchChoice() {
		return nil
	}

	switch pause, resume := r.focus.update(ebiten.IsFocused(), r.session.Paused()); {
	case pause:
		r.session.Pause()
	case resume:
		r.session.Start()
	}

	r.handleHotkeys()

	if r.session.Paused() || !r.session.Running() {
		return nil
	}

	if ebiten.IsKeyPressed(ebiten.KeyR) && r.session.Rewind().Enabled() {
		r.rewindHeld++
		r.stepRewind()
		return nil
	}
	r.rewindHeld = 0

	r.pollInput()
	r.runFrames()
	r.session.Poll()
	return nil
}

func (r *runner) handleHotkeys() {
	select {
	case res := <-r.confirm:
		r.asking = false
		if res.overwrite {
			r.saveSlot(res.slot)
		}
	default:
	}

	if inpututil.IsKeyJustPressed(ebiten.KeyF11) {
		ebiten.SetFullscreen(!ebiten.IsFullscreen())
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		if r.session.Paused() {
			r.session.Start()
		} else {
			r.session.Pause()
		}
		r.focus.paused = false
	}
	if !r.session.Running() {
		return
	}

	shift := ebiten.IsKeyPressed(ebiten.KeyShift)
	switch {
	case inpututil.IsKeyJustPressed(ebiten.KeyF1):
		r.requestSave()
	case inpututil.IsKeyJustPressed(ebiten.KeyF2) && shift:
		log.Printf("State slot: %s", frontend.StateSlotName(r.session.PreviousSlot()))
	case inpututil.IsKeyJustPressed(ebiten.KeyF2):
		log.Printf("State slot: %s", frontend.StateSlotName(r.session.NextSlot()))
	case inpututil.IsKeyJustPressed(ebiten.KeyF3):
		slot := r.session.StateSlot()
		if err := r.session.LoadStateWithSlot(slot); err != nil {
			log.Printf("Load state failed: %v", err)
		} else {
			log.Printf("Loaded state %s", frontend.StateSlotName(slot))
		}
	case inpututil.IsKeyJustPressed(ebiten.KeyF4):
		r.cycleFastForward()
	case inpututil.IsKeyJustPressed(ebiten.KeyF5):
		if err := r.session.Autosave().Save(); err != nil {
			log.Printf("Auto-save failed: %v", err)
		}
	case inpututil.IsKeyJustPressed(ebiten.KeyF12):
		r.screenshot(shift)
	}
}

// screenshot saves the current frame, or copies it to the clipboard when
// toClipboard is set.
func (r *runner) screenshot(toClipboard bool) {
	emu := r.session.Emulator()
	pixels, stride, height := emu.GetFramebuffer(), emu.GetFramebufferStride(), emu.GetActiveHeight()
	par := r.session.SystemInfo().PixelAspectRatio

	if toClipboard {
		data, err := EncodeScreenshot(pixels, stride, height, par)
		if err == nil {
			err = r.clipboard.CopyImage(data)
		}
		if err != nil {
			log.Printf("Screenshot copy failed: %v", err)
		}
		return
	}

	path, err := SaveScreenshot(r.dirs, r.session.Content().CRC32, pixels, stride, height, par, time.Now())
	if err != nil {
		log.Printf("Screenshot failed: %v", err)
		return
	}
	log.Printf("Screenshot saved to %s", path)
}

// requestSave saves to the selected slot, asking first when the slot is
// occupied and confirmation is enabled. The question runs on its own
// goroutine so the window keeps drawing.
func (r *runner) requestSave() {
	slot := r.session.StateSlot()
	if r.session.ShouldOverwriteExistingState() {
		r.saveSlot(slot)
		return
	}
	if r.asking {
		return
	}
	r.asking = true
	go func() {
		ok := dialog.Message("Overwrite state %s?", frontend.StateSlotName(slot)).
			Title("Save State").
			YesNo()
		r.confirm <- confirmResult{slot: slot, overwrite: ok}
	}()
}

func (r *runner) saveSlot(slot int) {
	if err := r.session.SaveStateWithSlot(slot); err != nil {
		log.Printf("Save state failed: %v", err)
		return
	}
	log.Printf("Saved state %s", frontend.StateSlotName(slot))
}

// cycleFastForward steps Off(1) -> 2x -> 3x -> Off(1).
func (r *runner) cycleFastForward() {
	r.fastForward = r.fastForward%3 + 1
	log.Printf("Fast forward: %dx", r.fastForward)
}

// stepRewind restores snapshots at a rate that grows with hold time and
// runs one frame so the restored state is shown.
func (r *runner) stepRewind() {
	if r.audio != nil {
		r.audio.ClearQueue()
	}
	if r.session.Rewind().Rewind(rewind.StepsForHold(r.rewindHeld)) == 0 {
		return
	}
	r.session.Emulator().RunFrame()
}

func (r *runner) pollInput() {
	emu := r.session.Emulator()

	p1 := r.keyboard.Buttons(keyboardPressed)
	ids := ebiten.AppendGamepadIDs(nil)
	if len(ids) > 0 {
		p1 |= r.pads.Buttons(gamepadPressed(ids[0]))
	}
	emu.SetInput(0, p1)

	if len(ids) > 1 && r.session.SystemInfo().Players >= maxPlayers {
		emu.SetInput(1, r.padP2.Buttons(gamepadPressed(ids[1])))
	}
}

func (r *runner) runFrames() {
	emu := r.session.Emulator()
	r.audioFrames = r.audioFrames[:0]
	for i := 0; i < r.fastForward; i++ {
		emu.RunFrame()
		r.audioFrames = append(r.audioFrames, emu.GetAudioSamples()...)
	}
	if r.audio == nil {
		return
	}

	// Pace against the audio device so its buffer neither starves nor grows.
	level := r.audio.BufferLevel()
	if level > r.maxBuffer {
		return
	}
	r.audio.QueueSamples(averageAudio(r.audioFrames, r.fastForward))
	if level < r.minBuffer && r.fastForward == 1 {
		emu.RunFrame()
		r.audio.QueueSamples(emu.GetAudioSamples())
	}
}

// Draw implements ebiten.Game.
func (r *runner) Draw(screen *ebiten.Image) {
	emu := r.session.Emulator()
	if emu == nil {
		return
	}
	r.renderer.DrawFramebuffer(screen, emu.GetFramebuffer(), emu.GetFramebufferStride(), emu.GetActiveHeight())
}

// Layout implements ebiten.Game.
func (r *runner) Layout(outsideWidth, outsideHeight int) (int, int) {
	s := 1.0
	if m := ebiten.Monitor(); m != nil {
		s = m.DeviceScaleFactor()
	}
	return int(float64(outsideWidth) * s), int(float64(outsideHeight) * s)
}

// close saves the autosave slot and settings, then releases audio.
func (r *runner) close() {
	r.session.CloseContent()
	if err := r.session.SaveConfig(); err != nil {
		log.Printf("Config save failed: %v", err)
	}
	if r.audio != nil {
		r.audio.Close()
	}
}
