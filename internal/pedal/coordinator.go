// Input Device Coordinator (spec §4.5): enumerates evdev-style input
// devices, hot-plug detects connects/disconnects, reads raw events on one
// goroutine per device, and dispatches either logical Actions (Dictation
// mode) or raw PedalEvents (Configuration mode).
//
// The enumeration/hot-plug watcher is new code: Dire Wolf never touches
// evdev (its inputs are radio audio and serial PTT lines), so this fills
// the gap the teacher's go.mod implies (jochenvg/go-udev is declared but
// never imported) but never exercises. Device probing and raw reads use
// golang.org/x/sys/unix (evdev.go); the funnel/resync/mode-switch state
// machine below is grounded on original_source/footPedal.hpp's
// FootPedalCoordinator (coordinatorLoop/footPedalLoop/deviceChange,
// eventFunnel, the DICTATION/CONFIGURATION mode constants).
package pedal

import (
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/jochenvg/go-udev"
	"github.com/mpharoah/openscribe/internal/logging"
)

// Mode is the coordinator's global dispatch mode (spec §4.5).
type Mode int

const (
	Dictation Mode = iota
	Configuration
)

const (
	probeRetries = 10
	probeDelay   = 10 * time.Millisecond
	watchPeriod  = 250 * time.Millisecond
	deviceWait   = 100 * time.Millisecond
)

var eventNodeName = regexp.MustCompile(`^event(0|[1-9][0-9]{0,8})$`)

// deviceHandle tracks one connected device's lifecycle.
type deviceHandle struct {
	name      string
	path      string
	protected bool
	f         *os.File
	stop      chan struct{}
	done      chan struct{}
}

// Coordinator is the Input Device Coordinator described in spec §4.5/§6.2.
type Coordinator struct {
	deviceDir string

	mu      sync.Mutex
	mode    Mode
	configs []*FootPedalConfiguration
	alive   bool
	resync  bool

	devices map[string]*deviceHandle

	eventFunnel sync.Mutex

	onAction     func(Action)
	onConnect    func(PedalInfo, string)
	onDisconnect func(string)
	onRawEvent   func(PedalEvent, string)

	stop chan struct{}
	wg   sync.WaitGroup
}

// New creates a Coordinator that watches deviceDir (typically /dev/input)
// for event<N> nodes.
func New(deviceDir string) *Coordinator {
	return &Coordinator{
		deviceDir: deviceDir,
		devices:   make(map[string]*deviceHandle),
	}
}

// Start begins watching the device directory in Dictation mode with
// initialConfigs, per spec §6.2. Returns false if the device directory
// cannot be watched at all; the coordinator still runs (with no devices)
// in that case. Loading persisted configurations from disk is the caller's
// responsibility (internal/pedalconf) before calling Start.
func (c *Coordinator) Start(
	onAction func(Action),
	onConnect func(PedalInfo, string),
	onDisconnect func(string),
	onRawEvent func(PedalEvent, string),
	initialConfigs []*FootPedalConfiguration,
) bool {
	c.mu.Lock()
	c.mode = Dictation
	c.configs = initialConfigs
	c.alive = true
	c.resync = true
	c.mu.Unlock()

	c.onAction = onAction
	c.onConnect = onConnect
	c.onDisconnect = onDisconnect
	c.onRawEvent = onRawEvent
	c.stop = make(chan struct{})

	ok := true
	if _, err := os.Stat(c.deviceDir); err != nil {
		logging.Warn("pedal coordinator: device directory unavailable", "dir", c.deviceDir, "err", err)
		ok = false
	}

	c.wg.Add(1)
	go c.coordinatorLoop()

	return ok
}

// Stop tears down every device thread, joins the coordinator thread, and
// returns once shutdown is complete (spec §5).
func (c *Coordinator) Stop() {
	c.mu.Lock()
	c.alive = false
	c.mu.Unlock()

	close(c.stop)
	c.wg.Wait()
}

// DictationMode switches to Dictation with newConfigs, waiting for the
// resulting resync to complete (spec §4.5's "callers switching modes must
// wait for a pending resync to complete").
func (c *Coordinator) DictationMode(newConfigs []*FootPedalConfiguration) {
	c.mu.Lock()
	c.mode = Dictation
	c.configs = newConfigs
	c.resync = true
	c.mu.Unlock()
	c.waitForResync()
}

// ConfigurationMode switches to Configuration mode, waiting for resync.
func (c *Coordinator) ConfigurationMode() {
	c.mu.Lock()
	c.mode = Configuration
	c.resync = true
	c.mu.Unlock()
	c.waitForResync()
}

// SyncDevices forces a full re-enumeration without changing mode.
func (c *Coordinator) SyncDevices() {
	c.mu.Lock()
	c.resync = true
	c.mu.Unlock()
	c.waitForResync()
}

func (c *Coordinator) waitForResync() {
	for {
		c.mu.Lock()
		pending := c.resync
		c.mu.Unlock()
		if !pending {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// coordinatorLoop is spec §5's coordinator thread: a bounded (<=250ms) wait
// so it observes resync promptly, supplemented by a go-udev netlink monitor
// for low-latency hot-plug notification.
func (c *Coordinator) coordinatorLoop() {
	defer c.wg.Done()

	udevEvents := c.startUdevMonitor()

	ticker := time.NewTicker(watchPeriod)
	defer ticker.Stop()

	for {
		c.mu.Lock()
		alive := c.alive
		resync := c.resync
		c.resync = false
		c.mu.Unlock()

		if !alive {
			c.teardownAllDevices()
			return
		}

		if resync {
			c.teardownAllDevices()
		}

		c.reconcile()

		select {
		case <-c.stop:
			c.teardownAllDevices()
			return
		case <-ticker.C:
		case <-udevEvents:
		}
	}
}

// startUdevMonitor subscribes to the "input" subsystem over netlink. On any
// failure it logs and returns a channel that never fires, falling back to
// the ticker's periodic poll.
func (c *Coordinator) startUdevMonitor() <-chan struct{} {
	out := make(chan struct{})

	u := udev.Udev{}
	mon := u.NewMonitorFromNetlink("udev")
	if err := mon.FilterAddMatchSubsystem("input"); err != nil {
		logging.Warn("pedal coordinator: udev filter failed, falling back to polling", "err", err)
		return out
	}

	deviceCh, err := mon.DeviceChan(c.stop)
	if err != nil {
		logging.Warn("pedal coordinator: udev monitor failed, falling back to polling", "err", err)
		return out
	}

	go func() {
		for range deviceCh {
			select {
			case out <- struct{}{}:
			case <-c.stop:
				return
			}
		}
	}()

	return out
}

// reconcile diffs the device directory's event<N> nodes against the
// currently tracked set (spec §4.5's Create/Delete handling).
func (c *Coordinator) reconcile() {
	entries, err := os.ReadDir(c.deviceDir)
	if err != nil {
		logging.Warn("pedal coordinator: cannot read device directory", "dir", c.deviceDir, "err", err)
		return
	}

	present := make(map[string]bool, len(entries))
	for _, ent := range entries {
		name := ent.Name()
		if !eventNodeName.MatchString(name) {
			continue
		}
		present[name] = true

		c.mu.Lock()
		_, tracked := c.devices[name]
		c.mu.Unlock()

		if !tracked {
			c.handleCreate(name)
		}
	}

	c.mu.Lock()
	var removed []string
	for name := range c.devices {
		if !present[name] {
			removed = append(removed, name)
		}
	}
	c.mu.Unlock()

	for _, name := range removed {
		c.handleDelete(name)
	}
}

func (c *Coordinator) handleCreate(name string) {
	path := filepath.Join(c.deviceDir, name)

	info, f, err := probeDevice(path)
	if err != nil {
		logging.Warn("pedal probe failed", "path", path, "err", err)
		return
	}

	if info.IsProtected {
		c.mu.Lock()
		c.devices[name] = &deviceHandle{name: name, path: path, protected: true}
		c.mu.Unlock()
		if c.onConnect != nil {
			c.onConnect(info, name)
		}
		return
	}

	if info.NumButtons() == 0 && info.NumAxes() == 0 {
		f.Close()
		return // not a foot pedal
	}

	dh := &deviceHandle{name: name, path: path, f: f, stop: make(chan struct{}), done: make(chan struct{})}
	c.mu.Lock()
	c.devices[name] = dh
	mode := c.mode
	conf := c.configForLocked(info)
	c.mu.Unlock()

	c.wg.Add(1)
	go c.deviceLoop(dh, info, conf, mode)

	if c.onConnect != nil {
		c.onConnect(info, name)
	}
}

func (c *Coordinator) handleDelete(name string) {
	c.mu.Lock()
	dh, ok := c.devices[name]
	delete(c.devices, name)
	c.mu.Unlock()

	if !ok {
		return
	}
	if dh.stop != nil {
		close(dh.stop)
		<-dh.done
	}
	if c.onDisconnect != nil {
		c.onDisconnect(name)
	}
}

func (c *Coordinator) teardownAllDevices() {
	c.mu.Lock()
	names := make([]string, 0, len(c.devices))
	for name := range c.devices {
		names = append(names, name)
	}
	c.mu.Unlock()

	for _, name := range names {
		c.handleDelete(name)
	}
}

// configForLocked finds the FootPedalConfiguration matching info's identity
// (spec §3's PedalInfo equality), or a fresh all-Noop configuration if none
// is on file yet. Must be called with c.mu held.
func (c *Coordinator) configForLocked(info PedalInfo) *FootPedalConfiguration {
	for _, conf := range c.configs {
		if conf.Info.Equal(info) {
			conf.Info = info // adopt the freshly probed code maps/ranges
			return conf
		}
	}
	return NewFootPedalConfiguration(info)
}

// deviceLoop is spec §4.5's per-device reader: one goroutine per connected
// device, reading raw events and either driving the Action Mapper
// (Dictation) or forwarding normalized PedalEvents (Configuration).
func (c *Coordinator) deviceLoop(dh *deviceHandle, info PedalInfo, conf *FootPedalConfiguration, mode Mode) {
	defer c.wg.Done()
	defer close(dh.done)
	defer dh.f.Close()

	state := NewDeviceState(conf)

	events := make(chan inputEvent, 16)
	readErr := make(chan error, 1)
	go func() {
		for {
			ev, err := readEvent(dh.f)
			if err != nil {
				readErr <- err
				return
			}
			if ev.Type == evKey || ev.Type == evAbs {
				select {
				case events <- ev:
				case <-dh.stop:
					return
				}
			}
		}
	}()

	for {
		select {
		case <-dh.stop:
			return
		case <-readErr:
			return
		case ev := <-events:
			c.dispatchRaw(dh.name, info, conf, state, mode, ev)
		case <-time.After(deviceWait):
			// Bounded wait so a stop/disconnect is observed promptly even
			// with no pedal activity.
		}
	}
}

func (c *Coordinator) dispatchRaw(name string, info PedalInfo, conf *FootPedalConfiguration, state *DeviceState, mode Mode, ev inputEvent) {
	switch mode {
	case Dictation:
		raw := toRawEvent(ev)
		codes := info.Buttons
		if raw.IsAxis {
			codes = info.Axes
		}
		idx, ok := codes[raw.Index]
		if !ok {
			return
		}
		raw.Index = idx // event code -> dense index, as HandleEvent expects
		actions := HandleEvent(conf, state, raw)
		if len(actions) == 0 || c.onAction == nil {
			return
		}

		c.eventFunnel.Lock()
		for _, a := range actions {
			c.onAction(a)
		}
		c.eventFunnel.Unlock()

	case Configuration:
		if c.onRawEvent == nil {
			return
		}
		pe, ok := toConfigurationEvent(info, ev)
		if ok {
			c.onRawEvent(pe, name)
		}
	}
}

// toRawEvent carries the raw event code in Index; dispatchRaw maps it to the
// device's dense button/axis index before calling HandleEvent.
func toRawEvent(ev inputEvent) RawEvent {
	if ev.Type == evAbs {
		return RawEvent{IsAxis: true, Index: ev.Code, Value: ev.Value}
	}
	return RawEvent{IsAxis: false, Index: ev.Code, IsPressed: ev.Value != 0}
}

func toConfigurationEvent(info PedalInfo, ev inputEvent) (PedalEvent, bool) {
	if ev.Type == evKey {
		idx, ok := info.Buttons[ev.Code]
		if !ok {
			return PedalEvent{}, false
		}
		return PedalEvent{IsAxis: false, Index: idx, IsPressed: ev.Value != 0}, true
	}

	idx, ok := info.Axes[ev.Code]
	if !ok {
		return PedalEvent{}, false
	}

	lo, hi := int32(0), int32(1)
	if int(idx) < len(info.AxisMin) && int(idx) < len(info.AxisMax) {
		lo, hi = info.AxisMin[idx], info.AxisMax[idx]
	}
	span := float64(hi - lo)
	norm := 0.0
	if span != 0 {
		norm = float64(ev.Value-lo) / span
	}

	return PedalEvent{IsAxis: true, Index: idx, NormalizedPosition: norm}, true
}

// probeDevice implements spec §4.5's probe protocol: open with permission
// retries, or fall back to a protected descriptor whose name comes from
// udev's device properties.
func probeDevice(path string) (PedalInfo, *os.File, error) {
	for attempt := 0; attempt < probeRetries; attempt++ {
		f, err := os.OpenFile(path, os.O_RDONLY, 0)
		if err == nil {
			buttons, axes, axisMin, axisMax, perr := probeCapabilities(f)
			if perr != nil {
				f.Close()
				return PedalInfo{}, nil, perr
			}

			return PedalInfo{
				Name:    deviceName(f),
				Buttons: buttons,
				Axes:    axes,
				AxisMin: axisMin,
				AxisMax: axisMax,
			}, f, nil
		}

		if !errors.Is(err, os.ErrPermission) {
			return PedalInfo{}, nil, err
		}
		time.Sleep(probeDelay)
	}

	return PedalInfo{Name: protectedDeviceName(path), IsProtected: true}, nil, nil
}

// protectedDeviceName looks up a human-readable name for a device this
// process could not open, via udev's enumeration rather than the file
// itself (spec §4.5: "name obtained via a separate enumeration channel,
// e.g. udev by serial; `_` converted to space").
func protectedDeviceName(path string) string {
	u := udev.Udev{}
	e := u.NewEnumerate()
	if err := e.AddMatchProperty("DEVNAME", path); err != nil {
		return filepath.Base(path)
	}

	devices, err := e.Devices()
	if err != nil || len(devices) == 0 {
		return filepath.Base(path)
	}

	serial := devices[0].PropertyValue("ID_SERIAL")
	if serial == "" {
		return filepath.Base(path)
	}
	return strings.ReplaceAll(serial, "_", " ")
}
