package sidebar

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"jinxcore/internal/config"
	"jinxcore/internal/protocol"
)

type fakeClient struct {
	id    string
	err   error
	block bool

	mu      sync.Mutex
	packets [][]byte
}

func (c *fakeClient) ID() string { return c.id }

func (c *fakeClient) Send(ctx context.Context, packet []byte) error {
	if c.block {
		<-ctx.Done()
		return ctx.Err()
	}
	if c.err != nil {
		return c.err
	}
	c.mu.Lock()
	c.packets = append(c.packets, packet)
	c.mu.Unlock()
	return nil
}

func (c *fakeClient) take() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.packets
	c.packets = nil
	return out
}

type fakeClients struct {
	mu      sync.Mutex
	clients []Client
}

func (f *fakeClients) Clients() []Client {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Client(nil), f.clients...)
}

func (f *fakeClients) set(clients ...Client) {
	f.mu.Lock()
	f.clients = clients
	f.mu.Unlock()
}

func decodeAll(t *testing.T, raw [][]byte) []protocol.Packet {
	t.Helper()
	out := make([]protocol.Packet, 0, len(raw))
	for i, b := range raw {
		p, err := protocol.Unmarshal(b)
		if err != nil {
			t.Fatalf("packet %d: %v", i, err)
		}
		out = append(out, p)
	}
	return out
}

func testConfig(enabled bool) config.SidebarConfig {
	return config.SidebarConfig{
		Enabled:           enabled,
		Title:             "Status",
		UpdateIntervalSec: 1,
		SendTimeout:       100 * time.Millisecond,
	}
}

func newTestDriver(t *testing.T, clients ClientSource) *Driver {
	t.Helper()
	return NewDriver(DriverOptions{
		Clients: clients,
		Metrics: MetricsFunc(func() Metrics {
			return Metrics{Online: 3, TPS: 19.87, Uptime: 65 * time.Second}
		}),
		Config:    config.NewLive(testConfig(true)),
		Templates: NewTemplateStore(t.TempDir()),
	})
}

func TestDriverFirstAndSecondTick(t *testing.T) {
	alice := &fakeClient{id: "alice"}
	src := &fakeClients{}
	src.set(alice)
	d := newTestDriver(t, src)

	report := d.Tick(context.Background(), testConfig(true))
	if report.State != "enabled" || report.Added != 1 || report.Packets != 5 {
		t.Fatalf("first tick report = %+v", report)
	}

	packets := decodeAll(t, alice.take())
	if len(packets) != 5 {
		t.Fatalf("first tick sent %d packets, want 5", len(packets))
	}

	obj, ok := packets[0].(protocol.ObjectivePacket)
	if !ok || obj.Mode() != protocol.ModeAdd || obj.Name() != ObjectiveName {
		t.Fatalf("packet 0 = %#v, want add objective", packets[0])
	}
	disp, _ := obj.Display()
	if disp.Title.Plain() != "Status" {
		t.Errorf("title = %q, want Status", disp.Title.Plain())
	}

	slot, ok := packets[1].(protocol.DisplayObjectivePacket)
	if !ok || slot.Slot != protocol.SlotSidebar || slot.Objective != ObjectiveName {
		t.Fatalf("packet 1 = %#v, want sidebar display", packets[1])
	}

	want := []struct {
		entry string
		score int32
		text  string
	}{
		{"line_0", 3, "Online: 3"},
		{"line_1", 2, "TPS: 19.87"},
		{"line_2", 1, "Uptime: 1m"},
	}
	for i, w := range want {
		sp, ok := packets[2+i].(protocol.ScorePacket)
		if !ok {
			t.Fatalf("packet %d = %#v, want score", 2+i, packets[2+i])
		}
		if sp.Entry != w.entry || sp.Score != w.score || sp.Objective != ObjectiveName {
			t.Errorf("score %d = %s/%d, want %s/%d", i, sp.Entry, sp.Score, w.entry, w.score)
		}
		if sp.DisplayName == nil || sp.DisplayName.Plain() != w.text {
			t.Errorf("score %d display = %v, want %q", i, sp.DisplayName, w.text)
		}
	}

	report = d.Tick(context.Background(), testConfig(true))
	if report.Updated != 1 || report.Added != 0 || report.Packets != 4 {
		t.Fatalf("second tick report = %+v", report)
	}
	packets = decodeAll(t, alice.take())
	if len(packets) != 4 {
		t.Fatalf("second tick sent %d packets, want 4", len(packets))
	}
	if obj, ok := packets[0].(protocol.ObjectivePacket); !ok || obj.Mode() != protocol.ModeUpdate {
		t.Errorf("second tick packet 0 = %#v, want update", packets[0])
	}
	for _, p := range packets[1:] {
		if _, ok := p.(protocol.DisplayObjectivePacket); ok {
			t.Error("display packet must only accompany add")
		}
	}

	if f := d.LastFrame(); f == nil || len(f.Lines) != 3 {
		t.Errorf("LastFrame = %+v", f)
	}
}

func TestDriverIdleWithoutClients(t *testing.T) {
	d := newTestDriver(t, &fakeClients{})
	report := d.Tick(context.Background(), testConfig(true))
	if report.State != "idle" || report.Packets != 0 {
		t.Errorf("report = %+v, want idle", report)
	}
	if d.LastFrame() != nil {
		t.Error("idle tick should not render")
	}
}

func TestDriverDisableRemovesEveryone(t *testing.T) {
	a, b := &fakeClient{id: "a"}, &fakeClient{id: "b"}
	src := &fakeClients{}
	src.set(a, b)
	d := newTestDriver(t, src)

	d.Tick(context.Background(), testConfig(true))
	a.take()
	b.take()

	report := d.Tick(context.Background(), testConfig(false))
	if report.State != "disabled" || report.Removed != 2 {
		t.Fatalf("report = %+v", report)
	}
	for _, c := range []*fakeClient{a, b} {
		packets := decodeAll(t, c.take())
		if len(packets) != 1 {
			t.Fatalf("%s got %d packets, want 1", c.id, len(packets))
		}
		obj, ok := packets[0].(protocol.ObjectivePacket)
		if !ok || obj.Mode() != protocol.ModeRemove || obj.Name() != ObjectiveName {
			t.Errorf("%s got %#v, want remove", c.id, packets[0])
		}
	}
	if d.Tracker().Len() != 0 {
		t.Errorf("tracker has %d clients after disable", d.Tracker().Len())
	}
	if d.LastFrame() != nil {
		t.Error("LastFrame should be cleared when disabled")
	}

	// Re-enabling starts over with Add.
	report = d.Tick(context.Background(), testConfig(true))
	if report.Added != 2 {
		t.Errorf("re-enable report = %+v, want 2 adds", report)
	}
}

func TestDriverRejoinGetsAdd(t *testing.T) {
	a, b := &fakeClient{id: "a"}, &fakeClient{id: "b"}
	src := &fakeClients{}
	src.set(a, b)
	d := newTestDriver(t, src)

	d.Tick(context.Background(), testConfig(true))
	src.set(b)
	d.Tick(context.Background(), testConfig(true))
	if d.Tracker().Tracked("a") {
		t.Fatal("departed client still tracked")
	}
	src.set(a, b)

	report := d.Tick(context.Background(), testConfig(true))
	if report.Added != 1 || report.Updated != 1 {
		t.Errorf("rejoin report = %+v, want 1 add and 1 update", report)
	}
}

// TestDriverIdleKeepsState verifies an empty client list leaves the tracker
// untouched.
func TestDriverIdleKeepsState(t *testing.T) {
	a := &fakeClient{id: "a"}
	src := &fakeClients{}
	src.set(a)
	d := newTestDriver(t, src)

	d.Tick(context.Background(), testConfig(true))
	src.set()
	if r := d.Tick(context.Background(), testConfig(true)); r.State != "idle" {
		t.Fatalf("report = %+v, want idle", r)
	}
	if !d.Tracker().Tracked("a") {
		t.Error("idle tick must not prune the tracker")
	}
}

func TestDriverIsolatesFailingClients(t *testing.T) {
	good := &fakeClient{id: "good"}
	broken := &fakeClient{id: "broken", err: errors.New("connection reset")}
	stalled := &fakeClient{id: "stalled", block: true}
	src := &fakeClients{}
	src.set(good, broken, stalled)
	d := newTestDriver(t, src)

	start := time.Now()
	report := d.Tick(context.Background(), testConfig(true))
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("tick took %v with a stalled client", elapsed)
	}
	if report.Failures != 2 {
		t.Errorf("Failures = %d, want 2", report.Failures)
	}
	if n := len(good.take()); n != 5 {
		t.Errorf("healthy client got %d packets, want 5", n)
	}
}

func TestDriverHonorsTemplateEdits(t *testing.T) {
	a := &fakeClient{id: "a"}
	src := &fakeClients{}
	src.set(a)
	d := newTestDriver(t, src)

	if err := d.templates.Save(Template{Title: "&6Gold", Lines: []string{"only %online%"}}); err != nil {
		t.Fatal(err)
	}
	d.Tick(context.Background(), testConfig(true))

	packets := decodeAll(t, a.take())
	if len(packets) != 3 {
		t.Fatalf("got %d packets, want add+display+1 score", len(packets))
	}
	sp := packets[2].(protocol.ScorePacket)
	if sp.Score != 1 || sp.DisplayName.Plain() != "only 3" {
		t.Errorf("score = %d %q", sp.Score, sp.DisplayName.Plain())
	}
}

func TestDriverStartStop(t *testing.T) {
	a := &fakeClient{id: "a"}
	src := &fakeClients{}
	src.set(a)
	d := newTestDriver(t, src)

	d.Start()
	deadline := time.Now().Add(2 * time.Second)
	for d.Tracker().Len() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if d.Tracker().Len() != 1 {
		t.Fatal("driver never ticked")
	}

	stopped := make(chan struct{})
	go func() {
		d.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}
	d.Stop()
}

func TestDriverConcurrentTicksStayOrdered(t *testing.T) {
	client := &fakeClient{id: "a"}
	d := newTestDriver(t, &fakeClients{clients: []Client{client}})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.Tick(context.Background(), testConfig(true))
		}()
	}
	wg.Wait()

	packets := decodeAll(t, client.take())
	first, ok := packets[0].(protocol.ObjectivePacket)
	if !ok || first.Mode() != protocol.ModeAdd {
		t.Fatalf("first packet = %#v, want objective add", packets[0])
	}
	adds := 0
	for _, p := range packets {
		if obj, ok := p.(protocol.ObjectivePacket); ok && obj.Mode() == protocol.ModeAdd {
			adds++
		}
	}
	if adds != 1 {
		t.Errorf("adds = %d, want 1", adds)
	}
}
