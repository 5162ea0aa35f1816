package sidebar

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"jinxcore/internal/config"
	"jinxcore/internal/observability"
	"jinxcore/internal/protocol"
)

// ObjectiveName identifies the single sidebar objective on every client.
const ObjectiveName = "jinx_sidebar"

// defaultSendTimeout applies when the config leaves SendTimeout unset.
const defaultSendTimeout = 2 * time.Second

// Client is a connected client that can receive encoded packets.
// Send must return once the packet is queued, the client is gone or ctx
// is done.
type Client interface {
	ID() string
	Send(ctx context.Context, packet []byte) error
}

// ClientSource lists the currently connected clients.
type ClientSource interface {
	Clients() []Client
}

// ConfigSource returns a snapshot of the live sidebar settings.
type ConfigSource interface {
	Sidebar() config.SidebarConfig
}

// DriverOptions wires the driver to its collaborators.
type DriverOptions struct {
	Clients   ClientSource
	Metrics   MetricsSource
	Config    ConfigSource
	Templates *TemplateStore
	Tracker   *Tracker // optional, a fresh tracker is created when nil
}

// TickReport summarizes one driver iteration.
type TickReport struct {
	State    string // "enabled", "disabled" or "idle"
	Clients  int
	Added    int
	Updated  int
	Removed  int
	Packets  int
	Failures int
}

// Driver periodically renders the sidebar and streams it to all clients.
// It runs on its own goroutine; Tick may also be called directly, and
// concurrent calls run one at a time.
type Driver struct {
	clients   ClientSource
	metrics   MetricsSource
	config    ConfigSource
	templates *TemplateStore
	tracker   *Tracker

	last      atomic.Pointer[Frame]
	stopping  atomic.Bool
	running   atomic.Bool
	wake      chan struct{}
	done      chan struct{}
	stopOnce  sync.Once

	tickMu    sync.Mutex
	lastState string
}

// NewDriver creates a driver. Nothing runs until Start.
func NewDriver(opts DriverOptions) *Driver {
	tracker := opts.Tracker
	if tracker == nil {
		tracker = NewTracker()
	}
	return &Driver{
		clients:   opts.Clients,
		metrics:   opts.Metrics,
		config:    opts.Config,
		templates: opts.Templates,
		tracker:   tracker,
		wake:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Tracker exposes the client state tracker.
func (d *Driver) Tracker() *Tracker {
	return d.tracker
}

// LastFrame returns the most recently broadcast frame, or nil when the
// sidebar is disabled or nothing was rendered yet.
func (d *Driver) LastFrame() *Frame {
	return d.last.Load()
}

// Start launches the driver loop.
func (d *Driver) Start() {
	if d.running.Swap(true) {
		return
	}
	go d.run()
	log.Println("📋 Sidebar driver started")
}

// Stop raises the shutdown flag and waits for the loop to exit. The loop
// finishes its current tick first.
func (d *Driver) Stop() {
	if !d.running.Load() {
		return
	}
	d.stopOnce.Do(func() {
		d.stopping.Store(true)
		close(d.wake)
	})
	<-d.done
	log.Println("🛑 Sidebar driver stopped")
}

func (d *Driver) run() {
	defer close(d.done)

	for {
		if d.stopping.Load() {
			return
		}

		cfg := d.config.Sidebar()
		d.Tick(context.Background(), cfg)

		timer := time.NewTimer(cfg.Interval())
		select {
		case <-timer.C:
		case <-d.wake:
			timer.Stop()
		}
	}
}

// Tick runs one iteration with the given settings.
func (d *Driver) Tick(ctx context.Context, cfg config.SidebarConfig) TickReport {
	d.tickMu.Lock()
	defer d.tickMu.Unlock()
	start := time.Now()

	var report TickReport
	if cfg.Enabled {
		report = d.tickEnabled(ctx, cfg)
	} else {
		report = d.tickDisabled(ctx, cfg)
	}

	if report.State != d.lastState && report.State != "idle" {
		log.Printf("📋 Sidebar %s (%d clients)", report.State, report.Clients)
		d.lastState = report.State
	}

	observability.RecordSidebarTick(report.State, time.Since(start))
	observability.UpdateSidebarTracked(d.tracker.Len())
	return report
}

// encodedFrame holds the packets shared by every client for one tick.
type encodedFrame struct {
	add     []byte
	update  []byte
	display []byte
	scores  [][]byte
}

func encodeFrame(f Frame) (*encodedFrame, error) {
	display := protocol.ObjectiveDisplay{Title: f.Title, Render: protocol.RenderInteger}

	var (
		enc encodedFrame
		err error
	)
	if enc.add, err = protocol.Marshal(protocol.AddObjective(ObjectiveName, display)); err != nil {
		return nil, err
	}
	if enc.update, err = protocol.Marshal(protocol.UpdateObjective(ObjectiveName, display)); err != nil {
		return nil, err
	}
	enc.display, err = protocol.Marshal(protocol.DisplayObjectivePacket{
		Slot:      protocol.SlotSidebar,
		Objective: ObjectiveName,
	})
	if err != nil {
		return nil, err
	}

	enc.scores = make([][]byte, 0, len(f.Lines))
	for _, line := range f.Lines {
		name := line.Text
		b, err := protocol.Marshal(protocol.ScorePacket{
			Entry:       line.Entry,
			Objective:   ObjectiveName,
			Score:       line.Score,
			DisplayName: &name,
		})
		if err != nil {
			return nil, fmt.Errorf("%s: %w", line.Entry, err)
		}
		enc.scores = append(enc.scores, b)
	}
	return &enc, nil
}

func (d *Driver) tickEnabled(ctx context.Context, cfg config.SidebarConfig) TickReport {
	clients := d.clients.Clients()
	if len(clients) == 0 {
		return TickReport{State: "idle"}
	}

	current := make(map[string]struct{}, len(clients))
	for _, c := range clients {
		current[c.ID()] = struct{}{}
	}
	d.tracker.Sync(current)

	var m Metrics
	if d.metrics != nil {
		m = d.metrics.Metrics()
	}
	frame := Render(d.templates.Load(cfg.Title), m)
	frame.RenderedAt = time.Now()

	enc, err := encodeFrame(frame)
	if err != nil {
		log.Printf("❌ Sidebar frame could not be encoded, skipping tick: %v", err)
		return TickReport{State: "enabled", Clients: len(clients)}
	}
	d.last.Store(&frame)

	results := d.fanOut(ctx, cfg, clients, func(ctx context.Context, c Client) deliveryResult {
		return d.deliver(ctx, c, d.tracker.ModeFor(c.ID()), enc)
	})

	report := TickReport{State: "enabled", Clients: len(clients)}
	for _, r := range results {
		if r.mode == ModeAdd {
			report.Added++
		} else {
			report.Updated++
		}
		report.Packets += r.packets
		if r.err != nil {
			report.Failures++
		}
	}
	return report
}

func (d *Driver) tickDisabled(ctx context.Context, cfg config.SidebarConfig) TickReport {
	clients := d.clients.Clients()

	remove, err := protocol.Marshal(protocol.RemoveObjective(ObjectiveName))
	if err != nil {
		log.Printf("❌ Sidebar remove packet could not be encoded: %v", err)
		return TickReport{State: "disabled", Clients: len(clients)}
	}

	results := d.fanOut(ctx, cfg, clients, func(ctx context.Context, c Client) deliveryResult {
		r := deliveryResult{}
		if r.err = d.send(ctx, c, "objective_remove", remove); r.err == nil {
			r.packets = 1
		}
		return r
	})

	d.tracker.Clear()
	d.last.Store(nil)

	report := TickReport{State: "disabled", Clients: len(clients)}
	for _, r := range results {
		report.Packets += r.packets
		if r.err != nil {
			report.Failures++
		} else {
			report.Removed++
		}
	}
	return report
}

type deliveryResult struct {
	mode    Mode
	packets int
	err     error
}

// fanOut runs fn for every client concurrently, each bounded by the send
// timeout, so one stalled client cannot hold up the others.
func (d *Driver) fanOut(ctx context.Context, cfg config.SidebarConfig, clients []Client, fn func(context.Context, Client) deliveryResult) []deliveryResult {
	timeout := cfg.SendTimeout
	if timeout <= 0 {
		timeout = defaultSendTimeout
	}

	results := make([]deliveryResult, len(clients))
	var wg sync.WaitGroup
	for i, c := range clients {
		wg.Add(1)
		go func(i int, c Client) {
			defer wg.Done()
			cctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			results[i] = fn(cctx, c)
			if err := results[i].err; err != nil {
				observability.RecordSidebarSendFailure()
				log.Printf("⚠️ Sidebar send to client %s failed: %v", c.ID(), err)
			}
		}(i, c)
	}
	wg.Wait()
	return results
}

// deliver sends the objective (plus the display slot on Add) followed by
// every score line, stopping at the first failure.
func (d *Driver) deliver(ctx context.Context, c Client, mode Mode, enc *encodedFrame) deliveryResult {
	r := deliveryResult{mode: mode}

	if mode == ModeAdd {
		if r.err = d.send(ctx, c, "objective_add", enc.add); r.err != nil {
			return r
		}
		r.packets++
		if r.err = d.send(ctx, c, "display", enc.display); r.err != nil {
			return r
		}
		r.packets++
	} else {
		if r.err = d.send(ctx, c, "objective_update", enc.update); r.err != nil {
			return r
		}
		r.packets++
	}

	for _, score := range enc.scores {
		if r.err = d.send(ctx, c, "score", score); r.err != nil {
			return r
		}
		r.packets++
	}
	return r
}

func (d *Driver) send(ctx context.Context, c Client, kind string, packet []byte) error {
	if err := c.Send(ctx, packet); err != nil {
		return fmt.Errorf("%s: %w", kind, err)
	}
	observability.RecordSidebarPacket(kind)
	return nil
}
