// Package interactive provides the interactive command-line interface
// for the rendercast controller.
package interactive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/chzyer/readline"

	"github.com/rendercast/rendercast-go/pkg/capability"
	"github.com/rendercast/rendercast-go/pkg/device"
	"github.com/rendercast/rendercast-go/pkg/discovery"
)

// commandTimeout bounds one interactive command.
const commandTimeout = 10 * time.Second

// Controller handles interactive mode for rendercast.
type Controller struct {
	rl *readline.Instance
	m  *discovery.Manager

	mu       sync.Mutex
	sessions map[string]*capability.LaunchSession // last launch per device id
}

// New creates a new interactive controller handler.
func New() (*Controller, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "rendercast> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	return &Controller{
		rl:       rl,
		sessions: make(map[string]*capability.LaunchSession),
	}, nil
}

// Stdout returns a writer that properly coordinates with the readline input.
// Use this for log output to avoid interfering with the command prompt.
func (c *Controller) Stdout() io.Writer {
	return c.rl.Stdout()
}

// Run starts the interactive command loop.
func (c *Controller) Run(ctx context.Context, cancel context.CancelFunc, m *discovery.Manager) {
	defer c.rl.Close()
	c.m = m

	c.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := c.rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			c.println("Exiting...")
			cancel()
			return
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		parts := strings.Fields(input)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "help", "?":
			c.printHelp()

		case "devices", "ls":
			c.cmdDevices()

		case "rescan":
			m.Rescan()
			c.println("Rescanning...")

		case "quit", "exit", "q":
			c.println("Exiting...")
			cancel()
			return

		default:
			c.dispatch(ctx, cmd, args)
		}
	}
}

// dispatch runs the commands that address one device.
func (c *Controller) dispatch(ctx context.Context, cmd string, args []string) {
	run, ok := deviceCommands[cmd]
	if !ok {
		c.printf("Unknown command: %s (type 'help' for commands)\n", cmd)
		return
	}
	if len(args) == 0 {
		c.printf("Usage: %s <device> ...\n", cmd)
		return
	}
	d, err := findDevice(c.m.CompatibleDevices(), args[0])
	if err != nil {
		c.printf("%v\n", err)
		return
	}

	cctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()
	if err := run(c, cctx, d, args[1:]); err != nil {
		c.printf("%s %s: %v\n", cmd, d.FriendlyName(), err)
	}
}

type deviceCommand func(c *Controller, ctx context.Context, d *device.ConnectableDevice, args []string) error

var deviceCommands = map[string]deviceCommand{
	"connect":    (*Controller).cmdConnect,
	"disconnect": (*Controller).cmdDisconnect,
	"volume":     (*Controller).cmdVolume,
	"vol":        (*Controller).cmdVolume,
	"mute":       (*Controller).cmdMute,
	"launch":     (*Controller).cmdLaunch,
	"apps":       (*Controller).cmdApps,
	"close":      (*Controller).cmdClose,
	"toast":      (*Controller).cmdToast,
	"play":       (*Controller).cmdPlay,
	"pause":      (*Controller).cmdPause,
	"stop":       (*Controller).cmdStop,
	"pin":        (*Controller).cmdPin,
}

func (c *Controller) printHelp() {
	c.println(`
rendercast Commands:
  Discovery:
    devices                       - List discovered devices
    rescan                        - Search the network again

  Connection:
    connect <device>              - Connect (and pair) a device
    disconnect <device>           - Disconnect a device
    pin <device> <code>           - Send the PIN shown on the TV

  Control:
    volume <device> [0-100|up|down] - Show or set the volume
    mute <device> [on|off]        - Show or set mute
    launch <device> <app-id|url>  - Launch an app or open a URL
    apps <device>                 - List installed apps
    close <device>                - Close the last launched app or media
    toast <device> <message>      - Show a notification
    play <device> [url [mime]]    - Resume playback or play a media URL
    pause <device>                - Pause playback
    stop <device>                 - Stop playback

  General:
    help                          - Show this help
    quit                          - Exit

  <device> is the number from 'devices', a device id (or prefix) or a name.`)
}

func (c *Controller) println(a ...any) {
	fmt.Fprintln(c.rl.Stdout(), a...)
}

func (c *Controller) printf(format string, a ...any) {
	fmt.Fprintf(c.rl.Stdout(), format, a...)
}

// cmdDevices handles the devices command.
func (c *Controller) cmdDevices() {
	devices := c.m.CompatibleDevices()
	if len(devices) == 0 {
		c.println("No devices found")
		return
	}

	c.printf("\nDevices (%d):\n", len(devices))
	c.println("-------------------------------------------")
	for idx, d := range devices {
		status := "not connected"
		if d.IsReady() {
			status = "ready"
		}
		c.printf("  %d. %s\n", idx+1, d.FriendlyName())
		c.printf("      ID: %s\n", d.ID())
		c.printf("      IP: %s\n", d.IPAddress())
		if model := d.ModelName(); model != "" {
			c.printf("      Model: %s %s\n", model, d.ModelNumber())
		}
		names := make([]string, 0)
		for _, s := range d.Services() {
			names = append(names, s.ServiceID())
		}
		c.printf("      Services: %s\n", strings.Join(names, ", "))
		c.printf("      Capabilities: %d\n", len(d.Capabilities()))
		c.printf("      Status: %s\n", status)
		c.printf("      Last seen: %s\n", d.LastSeen().Format("15:04:05"))
		c.println()
	}
}

func (c *Controller) cmdConnect(ctx context.Context, d *device.ConnectableDevice, _ []string) error {
	if d.IsReady() {
		c.printf("%s is already connected\n", d.FriendlyName())
		return nil
	}
	if err := d.Connect(ctx); err != nil {
		return err
	}
	c.printf("Connecting to %s...\n", d.FriendlyName())
	return nil
}

func (c *Controller) cmdDisconnect(_ context.Context, d *device.ConnectableDevice, _ []string) error {
	d.Disconnect()
	c.forgetSession(d)
	c.printf("Disconnected %s\n", d.FriendlyName())
	return nil
}

func (c *Controller) cmdVolume(ctx context.Context, d *device.ConnectableDevice, args []string) error {
	vc, err := d.VolumeControl()
	if err != nil {
		return err
	}
	if len(args) == 0 {
		v, err := vc.Volume(ctx)
		if err != nil {
			return err
		}
		c.printf("Volume: %d\n", int(v*100+0.5))
		return nil
	}
	switch strings.ToLower(args[0]) {
	case "up", "+":
		return vc.VolumeUp(ctx)
	case "down", "-":
		return vc.VolumeDown(ctx)
	}
	v, err := parseVolume(args[0])
	if err != nil {
		return err
	}
	return vc.SetVolume(ctx, v)
}

func (c *Controller) cmdMute(ctx context.Context, d *device.ConnectableDevice, args []string) error {
	vc, err := d.VolumeControl()
	if err != nil {
		return err
	}
	if len(args) == 0 {
		muted, err := vc.Mute(ctx)
		if err != nil {
			return err
		}
		c.printf("Muted: %t\n", muted)
		return nil
	}
	on, err := parseOnOff(args[0])
	if err != nil {
		return err
	}
	return vc.SetMute(ctx, on)
}

func (c *Controller) cmdLaunch(ctx context.Context, d *device.ConnectableDevice, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: launch <device> <app-id|url>")
	}
	l, err := d.Launcher()
	if err != nil {
		return err
	}
	var ls *capability.LaunchSession
	if isURL(args[0]) {
		ls, err = l.LaunchBrowser(ctx, args[0])
	} else {
		ls, err = l.LaunchApp(ctx, args[0], nil)
	}
	if err != nil {
		return err
	}
	c.rememberSession(d, ls)
	c.printf("Launched %s (session %s)\n", ls.AppID, ls.SessionID)
	return nil
}

func (c *Controller) cmdApps(ctx context.Context, d *device.ConnectableDevice, _ []string) error {
	l, err := d.Launcher()
	if err != nil {
		return err
	}
	apps, err := l.Apps(ctx)
	if err != nil {
		return err
	}
	c.printf("Apps (%d):\n", len(apps))
	for _, a := range apps {
		c.printf("  %-32s %s\n", a.ID, a.Name)
	}
	return nil
}

func (c *Controller) cmdClose(ctx context.Context, d *device.ConnectableDevice, _ []string) error {
	ls := c.forgetSession(d)
	if ls == nil {
		return errors.New("nothing launched")
	}
	return ls.Close(ctx)
}

func (c *Controller) cmdToast(ctx context.Context, d *device.ConnectableDevice, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: toast <device> <message>")
	}
	tc, err := d.ToastControl()
	if err != nil {
		return err
	}
	return tc.ShowToast(ctx, strings.Join(args, " "))
}

func (c *Controller) cmdPlay(ctx context.Context, d *device.ConnectableDevice, args []string) error {
	if len(args) == 0 {
		mc, err := d.MediaControl()
		if err != nil {
			return err
		}
		return mc.Play(ctx)
	}
	mp, err := d.MediaPlayer()
	if err != nil {
		return err
	}
	media := capability.MediaInfo{URL: args[0], MimeType: "video/mp4"}
	if len(args) > 1 {
		media.MimeType = args[1]
	}
	ls, err := mp.PlayMedia(ctx, media)
	if err != nil {
		return err
	}
	c.rememberSession(d, ls)
	return nil
}

func (c *Controller) cmdPause(ctx context.Context, d *device.ConnectableDevice, _ []string) error {
	mc, err := d.MediaControl()
	if err != nil {
		return err
	}
	return mc.Pause(ctx)
}

func (c *Controller) cmdStop(ctx context.Context, d *device.ConnectableDevice, _ []string) error {
	mc, err := d.MediaControl()
	if err != nil {
		return err
	}
	return mc.Stop(ctx)
}

// cmdPin sends the code to every service of the device; only the one
// waiting for a PIN accepts it.
func (c *Controller) cmdPin(_ context.Context, d *device.ConnectableDevice, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: pin <device> <code>")
	}
	var errs []error
	for _, s := range d.Services() {
		err := s.SendPairingKey(args[0])
		if err == nil {
			c.printf("PIN sent to %s\n", s.ServiceID())
			return nil
		}
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (c *Controller) rememberSession(d *device.ConnectableDevice, ls *capability.LaunchSession) {
	c.mu.Lock()
	c.sessions[d.ID()] = ls
	c.mu.Unlock()
}

func (c *Controller) forgetSession(d *device.ConnectableDevice) *capability.LaunchSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	ls := c.sessions[d.ID()]
	delete(c.sessions, d.ID())
	return ls
}

// findDevice resolves arg against devices: a 1-based list number, a device
// id or unique id prefix, or a friendly name.
func findDevice(devices []*device.ConnectableDevice, arg string) (*device.ConnectableDevice, error) {
	if n, err := strconv.Atoi(arg); err == nil {
		if n < 1 || n > len(devices) {
			return nil, fmt.Errorf("no device %d (have %d)", n, len(devices))
		}
		return devices[n-1], nil
	}

	var matches []*device.ConnectableDevice
	for _, d := range devices {
		if d.ID() == arg || strings.EqualFold(d.FriendlyName(), arg) {
			return d, nil
		}
		if strings.HasPrefix(d.ID(), arg) {
			matches = append(matches, d)
		}
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("unknown device %q", arg)
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("device %q is ambiguous (%d matches)", arg, len(matches))
	}
}

// parseVolume converts a 0..100 level to the 0..1 scale.
func parseVolume(s string) (float32, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 || n > 100 {
		return 0, fmt.Errorf("invalid volume %q (use 0-100)", s)
	}
	return float32(n) / 100, nil
}

func parseOnOff(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on", "true", "1", "yes":
		return true, nil
	case "off", "false", "0", "no":
		return false, nil
	}
	return false, fmt.Errorf("expected on or off, got %q", s)
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
