package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"jinxcore/internal/text"
	"jinxcore/internal/viewer"

	"github.com/gdamore/tcell/v2"
	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"
)

const (
	reconnectDelay = 2 * time.Second
	redrawInterval = 250 * time.Millisecond
)

type connState struct {
	mu        sync.Mutex
	connected bool
	lastErr   string
	packets   int
}

func (s *connState) set(connected bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = connected
	if err != nil {
		s.lastErr = err.Error()
	} else if connected {
		s.lastErr = ""
	}
}

func (s *connState) status() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.connected {
		return fmt.Sprintf("connected, %d packets", s.packets)
	}
	if s.lastErr != "" {
		return "disconnected: " + s.lastErr
	}
	return "connecting..."
}

// Viewer draws the sidebar a server streams to it.
type Viewer struct {
	screen tcell.Screen
	board  *viewer.Board
	chime  *viewer.Chime
	state  connState

	server string
	name   string

	redraw chan struct{}
	quit   chan struct{}
}

func joinURL(server, name string) (string, error) {
	u, err := url.Parse(server)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	u.RawQuery = url.Values{"name": {name}}.Encode()
	return u.String(), nil
}

func (v *Viewer) notify() {
	select {
	case v.redraw <- struct{}{}:
	default:
	}
}

// connectLoop joins the server and feeds every binary message to the board,
// reconnecting after a delay. A new connection starts from an empty board.
func (v *Viewer) connectLoop() {
	target, err := joinURL(v.server, v.name)
	if err != nil {
		v.state.set(false, err)
		v.notify()
		return
	}

	for {
		select {
		case <-v.quit:
			return
		default:
		}

		conn, _, err := websocket.DefaultDialer.Dial(target, nil)
		if err != nil {
			v.state.set(false, err)
			v.notify()
			select {
			case <-v.quit:
				return
			case <-time.After(reconnectDelay):
			}
			continue
		}

		v.board.Reset()
		v.state.set(true, nil)
		log.Printf("🔌 Connected to %s as %s", v.server, v.name)
		v.notify()

		done := make(chan struct{})
		go func() {
			select {
			case <-v.quit:
				conn.Close()
			case <-done:
			}
		}()

		err = v.readLoop(conn)
		close(done)
		conn.Close()
		log.Printf("🔌 Disconnected: %v", err)
		v.state.set(false, err)
		v.notify()
	}
}

func (v *Viewer) readLoop(conn *websocket.Conn) error {
	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if kind != websocket.BinaryMessage {
			continue
		}

		change, err := v.board.ApplyBytes(data)
		if err != nil {
			log.Printf("⚠️ Bad packet: %v", err)
			continue
		}
		v.state.mu.Lock()
		v.state.packets++
		v.state.mu.Unlock()

		v.chime.Notify(change)
		v.notify()
	}
}

func styleFor(seg text.Segment) tcell.Style {
	style := tcell.StyleDefault.Background(tcell.ColorBlack)
	c := text.White.RGBA()
	if seg.Colored {
		c = seg.Color.RGBA()
	}
	return style.Foreground(tcell.NewRGBColor(int32(c.R), int32(c.G), int32(c.B)))
}

func (v *Viewer) drawString(x, y int, s string, style tcell.Style) int {
	for _, r := range s {
		v.screen.SetContent(x, y, r, nil, style)
		x++
	}
	return x
}

func (v *Viewer) drawStyled(x, y int, t text.StyledText) int {
	for _, seg := range t {
		x = v.drawString(x, y, seg.Text, styleFor(seg))
	}
	return x
}

func (v *Viewer) draw() {
	v.screen.Clear()
	w, h := v.screen.Size()

	status := fmt.Sprintf(" %s @ %s | %s | q to quit ", v.name, v.server, v.state.status())
	v.drawString(0, h-1, status, tcell.StyleDefault.Foreground(tcell.ColorGray))

	view, ok := v.board.Sidebar()
	if !ok {
		msg := "no sidebar"
		v.drawString((w-len(msg))/2, h/2, msg, tcell.StyleDefault.Foreground(tcell.ColorGray))
		v.screen.Show()
		return
	}

	// Size the panel to the widest row, then pin it to the right edge and
	// center it vertically, where the game draws it.
	scoreOf := func(l viewer.Line) string { return fmt.Sprintf("%d", l.Score) }
	width := utf8.RuneCountInString(view.Title.Plain())
	for _, l := range view.Lines {
		if n := utf8.RuneCountInString(l.Text.Plain()) + 1 + len(scoreOf(l)); n > width {
			width = n
		}
	}
	width += 2
	height := len(view.Lines) + 1

	left := w - width - 1
	if left < 0 {
		left = 0
	}
	top := (h - height) / 2
	if top < 0 {
		top = 0
	}

	bg := tcell.StyleDefault.Background(tcell.ColorBlack)
	band := tcell.StyleDefault.Background(tcell.NewRGBColor(24, 24, 24))
	for y := top; y < top+height; y++ {
		style := bg
		if y == top {
			style = band
		}
		for x := left; x < left+width; x++ {
			v.screen.SetContent(x, y, ' ', nil, style)
		}
	}

	titleWidth := utf8.RuneCountInString(view.Title.Plain())
	v.drawStyled(left+(width-titleWidth)/2, top, view.Title)

	red := tcell.StyleDefault.Background(tcell.ColorBlack).Foreground(tcell.NewRGBColor(0xff, 0x55, 0x55))
	for i, l := range view.Lines {
		y := top + 1 + i
		v.drawStyled(left+1, y, l.Text)
		score := scoreOf(l)
		v.drawString(left+width-1-len(score), y, score, red)
	}

	v.screen.Show()
}

func (v *Viewer) handleInput(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		if ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC {
			return false
		}
		if ev.Key() == tcell.KeyRune && ev.Rune() == 'q' {
			return false
		}
	case *tcell.EventResize:
		v.screen.Sync()
	}
	return true
}

func (v *Viewer) run() {
	ticker := time.NewTicker(redrawInterval)
	defer ticker.Stop()

	eventChan := make(chan tcell.Event, 100)
	go func() {
		for {
			ev := v.screen.PollEvent()
			if ev == nil {
				return
			}
			eventChan <- ev
		}
	}()

	go v.connectLoop()
	v.draw()

	for {
		select {
		case ev := <-eventChan:
			if !v.handleInput(ev) {
				close(v.quit)
				return
			}
			v.draw()
		case <-v.redraw:
			v.draw()
		case <-ticker.C:
			v.draw()
		}
	}
}

func getEnvWithDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func main() {
	if err := godotenv.Load(".env"); err == nil {
		log.Println("✅ Loaded environment from .env")
	}

	server := flag.String("server", getEnvWithDefault("VIEWER_SERVER", "ws://localhost:8080"), "server base URL")
	name := flag.String("name", getEnvWithDefault("VIEWER_NAME", "Viewer"), "player name to join as")
	chimeOn := flag.Bool("chime", os.Getenv("VIEWER_CHIME") == "true", "chime when the sidebar appears or is removed")
	logPath := flag.String("log", getEnvWithDefault("VIEWER_LOG", ""), "log file (default: discard)")
	flag.Parse()

	// The screen owns the terminal; logs go to a file or nowhere.
	log.SetOutput(io.Discard)
	if *logPath != "" {
		f, err := os.OpenFile(*logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		log.SetOutput(f)
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	if err := screen.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}

	v := &Viewer{
		screen: screen,
		board:  viewer.NewBoard(),
		server: *server,
		name:   *name,
		redraw: make(chan struct{}, 1),
		quit:   make(chan struct{}),
	}

	if *chimeOn {
		chime, err := viewer.NewChime()
		if err != nil {
			// Non-fatal, the viewer works without sound
			log.Printf("Audio initialization failed: %v", err)
		}
		v.chime = chime
		defer chime.Close()
	}

	v.run()
	screen.Fini()
}
