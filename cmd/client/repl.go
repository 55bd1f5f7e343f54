package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/DoyleJ11/seabattle-client/internal/engine"
	"github.com/DoyleJ11/seabattle-client/internal/session"
	"github.com/DoyleJ11/seabattle-client/pkg/types"
)

var errUnknownCommand = errors.New("unknown command, type help")

const helpText = `Commands:
  create [NAME]           create a room and wait for an opponent
  join CODE [NAME]        join a room by its 6 character code
  ai [NAME]               play against the computer
  ready                   mark yourself ready in the room
  place X Y SIZE h|v      place a ship with its bow at (X, Y)
  auto                    let the server place the whole fleet
  finish                  submit the fleet
  attack X Y              fire at (X, Y) on the enemy board
  surrender               give up the current game
  leave                   leave the room
  restart                 start over with a fresh identity
  show                    print both boards
  log                     print the whole event log
  quit                    exit`

type driver interface {
	Do(ctx context.Context, cmd session.Command) session.Result
	View(ctx context.Context) (session.View, error)
	Feed() *session.Feed
	Subscribe(id string, outbox chan session.View)
	Unsubscribe(id string)
}

type repl struct {
	sess    driver
	name    string
	timeout time.Duration

	mu     sync.Mutex
	out    io.Writer
	cursor int
}

func newREPL(sess driver, out io.Writer, name string, timeout time.Duration) *repl {
	return &repl{sess: sess, out: out, name: name, timeout: timeout}
}

func (r *repl) printf(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, format, args...)
}

// flush prints feed entries the user has not seen yet.
func (r *repl) flush() {
	r.mu.Lock()
	defer r.mu.Unlock()
	entries, next := r.sess.Feed().Since(r.cursor)
	r.cursor = next
	for _, e := range entries {
		fmt.Fprintf(r.out, "  %s %s\n", e.Time.Format("15:04:05"), e.Text)
	}
}

// follow prints new feed entries whenever the session changes.
func (r *repl) follow(ctx context.Context) error {
	views := make(chan session.View, 16)
	r.sess.Subscribe("repl", views)
	defer r.sess.Unsubscribe("repl")
	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-views:
			if !ok {
				return nil
			}
			r.flush()
		}
	}
}

func (r *repl) run(ctx context.Context, lines <-chan string) error {
	r.printf("%s\n> ", helpText)
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			quit, err := r.exec(ctx, line)
			if err != nil {
				r.printf("error: %v\n", err)
			}
			if quit {
				return nil
			}
			r.printf("> ")
		}
	}
}

func (r *repl) exec(ctx context.Context, line string) (bool, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}
	switch strings.ToLower(fields[0]) {
	case "quit", "exit":
		return true, nil
	case "help", "?":
		r.printf("%s\n", helpText)
		return false, nil
	case "show":
		vctx, cancel := context.WithTimeout(ctx, r.timeout)
		defer cancel()
		v, err := r.sess.View(vctx)
		if err != nil {
			return false, err
		}
		r.mu.Lock()
		printBoards(r.out, v.Snapshot())
		r.mu.Unlock()
		return false, nil
	case "log":
		entries, _ := r.sess.Feed().Since(0)
		for _, e := range entries {
			r.printf("  %4d %s [%s] %s\n", e.Seq, e.Time.Format("15:04:05"), e.Kind, e.Text)
		}
		return false, nil
	}

	cmd, err := parseCommand(fields, r.name)
	if err != nil {
		return false, err
	}
	// the session bounds the network call itself; this only guards the reply
	dctx, cancel := context.WithTimeout(ctx, r.timeout+time.Second)
	defer cancel()
	res := r.sess.Do(dctx, cmd)
	if res.Err != nil {
		return false, res.Err
	}
	switch cmd.Type {
	case session.CmdCreateRoom:
		r.printf("Room code: %s (share it with your opponent)\n", res.RoomCode)
	case session.CmdStartAI:
		r.printf("Game %s started\n", res.GameID)
	}
	r.flush()
	return false, nil
}

func parseCommand(fields []string, defName string) (session.Command, error) {
	verb, args := strings.ToLower(fields[0]), fields[1:]
	name := func(rest []string) string {
		if len(rest) > 0 {
			return strings.Join(rest, " ")
		}
		return defName
	}
	noArgs := func(t session.CommandType) (session.Command, error) {
		if len(args) != 0 {
			return session.Command{}, fmt.Errorf("usage: %s", verb)
		}
		return session.Command{Type: t}, nil
	}

	switch verb {
	case "create":
		n := name(args)
		if n == "" {
			return session.Command{}, errors.New("usage: create NAME")
		}
		return session.Command{Type: session.CmdCreateRoom, Name: n}, nil
	case "join":
		if len(args) < 1 {
			return session.Command{}, errors.New("usage: join CODE [NAME]")
		}
		n := name(args[1:])
		if n == "" {
			return session.Command{}, errors.New("usage: join CODE NAME")
		}
		return session.Command{Type: session.CmdJoinRoom, Code: args[0], Name: n}, nil
	case "ai":
		n := name(args)
		if n == "" {
			return session.Command{}, errors.New("usage: ai NAME")
		}
		return session.Command{Type: session.CmdStartAI, Name: n}, nil
	case "place":
		if len(args) != 4 {
			return session.Command{}, errors.New("usage: place X Y SIZE h|v")
		}
		c, err := parseCell(args[0], args[1])
		if err != nil {
			return session.Command{}, err
		}
		size, err := strconv.Atoi(args[2])
		if err != nil {
			return session.Command{}, fmt.Errorf("bad size %q", args[2])
		}
		var horizontal bool
		switch strings.ToLower(args[3]) {
		case "h":
			horizontal = true
		case "v":
		default:
			return session.Command{}, fmt.Errorf("bad direction %q, want h or v", args[3])
		}
		return session.Command{Type: session.CmdPlaceShip, Cell: c, Size: size, Horizontal: horizontal}, nil
	case "attack", "fire":
		if len(args) != 2 {
			return session.Command{}, errors.New("usage: attack X Y")
		}
		c, err := parseCell(args[0], args[1])
		if err != nil {
			return session.Command{}, err
		}
		return session.Command{Type: session.CmdAttack, Cell: c}, nil
	case "ready":
		return noArgs(session.CmdSetReady)
	case "auto":
		return noArgs(session.CmdAutoPlace)
	case "finish":
		return noArgs(session.CmdFinishPlacement)
	case "surrender":
		return noArgs(session.CmdSurrender)
	case "leave":
		return noArgs(session.CmdLeaveRoom)
	case "restart":
		return noArgs(session.CmdRestart)
	}
	return session.Command{}, errUnknownCommand
}

func parseCell(xs, ys string) (engine.Cell, error) {
	x, err := strconv.Atoi(xs)
	if err != nil {
		return engine.Cell{}, fmt.Errorf("bad x %q", xs)
	}
	y, err := strconv.Atoi(ys)
	if err != nil {
		return engine.Cell{}, fmt.Errorf("bad y %q", ys)
	}
	return engine.Cell{X: x, Y: y}, nil
}

func printBoards(w io.Writer, s types.Snapshot) {
	room := "-"
	if s.Room != nil {
		room = s.Room.RoomCode
	}
	fmt.Fprintf(w, "room %s  role %s  phase %s  channel %s\n", room, orDash(s.Role), s.Phase, s.Channel)
	if s.Broken {
		fmt.Fprintln(w, "session is inconsistent, type restart")
	}
	if s.Phase == string(engine.PhaseFinished) {
		fmt.Fprintf(w, "winner: %s\n", orDash(s.Winner))
	}

	header := "   "
	for x := 0; x < engine.BoardSize; x++ {
		header += strconv.Itoa(x)
	}
	fmt.Fprintf(w, "   %-16s%s\n", "your fleet", "enemy waters")
	fmt.Fprintf(w, "%s   %s\n", header, header)
	for y := 0; y < engine.BoardSize; y++ {
		fmt.Fprintf(w, "%2d %s   %2d %s\n", y, s.OwnBoard.Rows[y], y, s.OpponentBoard.Rows[y])
	}

	if s.Phase == string(engine.PhasePlacement) {
		parts := make([]string, 0, len(s.Fleet.Ships))
		for _, q := range s.Fleet.Ships {
			parts = append(parts, fmt.Sprintf("%d-deck %d/%d", q.Size, q.Placed, q.Max))
		}
		fmt.Fprintf(w, "ships %d/%d: %s\n", s.Fleet.Placed, s.Fleet.Total, strings.Join(parts, ", "))
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
