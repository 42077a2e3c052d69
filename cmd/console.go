package main

import (
	"bufio"
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/attunefm/attune/internal/engine"
	"github.com/attunefm/attune/internal/models"
	"github.com/attunefm/attune/internal/session"
)

// console is the line-based control surface for playback and sessions.
// Transport commands go through the coordinator so role arbitration applies;
// peripheral settings (crossfade, sleep timer) act on the local engine and
// stay available to guests.
type console struct {
	r   *Runner
	eng *engine.Engine
	co  *session.Coordinator
}

func (c *console) run(ctx context.Context) error {
	c.r.writePlainln(`Type "help" for commands.`)

	scanner := bufio.NewScanner(c.r.input)
	for {
		if ctx.Err() != nil {
			return nil
		}
		c.r.writePlain("> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if quit := c.dispatch(fields[0], fields[1:]); quit {
			return nil
		}
	}
}

func (c *console) dispatch(cmd string, args []string) (quit bool) {
	var err error
	switch cmd {
	case "help", "h":
		c.help()
	case "status", "st":
		c.status()
	case "queue", "q":
		c.queue()
	case "p", "pause", "play":
		_, err = c.co.TogglePlayPause()
	case "next", "n":
		_, err = c.co.PlayNext()
	case "prev":
		_, err = c.co.PlayPrevious()
	case "seek":
		err = c.seek(args)
	case "goto":
		err = c.withIndex(args, c.co.PlayFrom)
	case "remove", "rm":
		err = c.withIndex(args, c.co.Remove)
	case "move", "mv":
		err = c.move(args)
	case "loop":
		err = c.loop()
	case "crossfade", "xfade":
		err = c.crossfade(args)
	case "sleep":
		err = c.sleep(args)
	case "suggest":
		err = c.suggest(args)
	case "requests":
		c.requests()
	case "accept":
		err = c.decideJoin(args, true)
	case "reject":
		err = c.decideJoin(args, false)
	case "suggestions":
		c.suggestions()
	case "yes":
		err = c.decideSuggestion(args, true)
	case "no":
		err = c.decideSuggestion(args, false)
	case "leave":
		err = c.co.LeaveSession()
	case "end":
		err = c.co.EndSession()
	case "quit", "exit":
		return true
	default:
		c.r.writePlainln("unknown command %q", cmd)
	}

	if err != nil {
		c.r.writePlainln("error: %v", err)
	}
	return false
}

func (c *console) help() {
	c.r.writePlainln(`playback:  play | next | prev | seek <secs> | goto <idx> | loop
queue:     queue | remove <idx> | move <from> <to> | suggest <id> <title>
settings:  crossfade on|off | sleep <mins>
session:   status | requests | accept <user> | reject <user>
           suggestions | yes <id> | no <id> | leave | end
quit to exit`)
}

func (c *console) status() {
	q, st := c.co.Snapshot()
	playing := "paused"
	if st.IsPlaying {
		playing = "playing"
	}

	var title string
	var total time.Duration
	if q.CurrentIndex >= 0 && q.CurrentIndex < len(q.Tracks) {
		track := q.Tracks[q.CurrentIndex]
		title = track.Title + " - " + track.Artist
		total = track.Duration
	}
	c.r.writePlainln("%s  %s  [%s]  loop=%s  fade=%s",
		playing, title, formatPosition(st.Position, total), q.LoopMode, st.CrossfadePhase)
}

func (c *console) queue() {
	q, _ := c.co.Snapshot()
	if len(q.Tracks) == 0 {
		c.r.writePlainln("queue is empty")
		return
	}
	for i, track := range q.Tracks {
		marker := "  "
		if i == q.CurrentIndex {
			marker = "▶ "
		}
		c.r.writePlainln("%s%2d  %s - %s", marker, i, track.Title, track.Artist)
	}
}

func (c *console) seek(args []string) error {
	if len(args) != 1 {
		c.r.writePlainln("usage: seek <secs>")
		return nil
	}
	secs, err := strconv.Atoi(args[0])
	if err != nil {
		return err
	}
	return c.co.Seek(time.Duration(secs) * time.Second)
}

func (c *console) withIndex(args []string, fn func(int) error) error {
	if len(args) != 1 {
		c.r.writePlainln("usage: <command> <index>")
		return nil
	}
	index, err := strconv.Atoi(args[0])
	if err != nil {
		return err
	}
	return fn(index)
}

func (c *console) move(args []string) error {
	if len(args) != 2 {
		c.r.writePlainln("usage: move <from> <to>")
		return nil
	}
	from, err := strconv.Atoi(args[0])
	if err != nil {
		return err
	}
	to, err := strconv.Atoi(args[1])
	if err != nil {
		return err
	}
	return c.co.Move(from, to)
}

func (c *console) loop() error {
	q, _ := c.co.Snapshot()
	next := models.NextLoopMode(q.LoopMode)
	if err := c.co.SetLoopMode(next); err != nil {
		return err
	}
	c.r.writePlainln("loop mode: %s", next)
	return nil
}

func (c *console) crossfade(args []string) error {
	if len(args) != 1 || (args[0] != "on" && args[0] != "off") {
		c.r.writePlainln("usage: crossfade on|off")
		return nil
	}
	cfg := c.r.config.Player
	c.eng.SetCrossfade(args[0] == "on",
		time.Duration(cfg.CrossfadeWindow)*time.Second,
		time.Duration(cfg.CrossfadeRamp)*time.Second)
	return nil
}

func (c *console) sleep(args []string) error {
	if len(args) != 1 {
		c.r.writePlainln("usage: sleep <mins> (0 cancels)")
		return nil
	}
	mins, err := strconv.Atoi(args[0])
	if err != nil {
		return err
	}
	c.eng.SetSleepTimer(time.Duration(mins) * time.Minute)
	return nil
}

func (c *console) suggest(args []string) error {
	if len(args) < 2 {
		c.r.writePlainln("usage: suggest <track-id> <title...>")
		return nil
	}
	track := models.Track{ID: args[0], Title: strings.Join(args[1:], " ")}
	return c.co.Suggest(track)
}

func (c *console) requests() {
	reqs := c.co.PendingJoinRequests()
	if len(reqs) == 0 {
		c.r.writePlainln("no pending join requests")
		return
	}
	for _, req := range reqs {
		c.r.writePlainln("%s  %s", req.UserID, req.DisplayName)
	}
}

func (c *console) decideJoin(args []string, approve bool) error {
	if len(args) != 1 {
		c.r.writePlainln("usage: accept|reject <user-id>")
		return nil
	}
	return c.co.DecideJoin(args[0], approve)
}

func (c *console) suggestions() {
	sugs := c.co.PendingSuggestions()
	if len(sugs) == 0 {
		c.r.writePlainln("no pending suggestions")
		return
	}
	for _, sug := range sugs {
		c.r.writePlainln("%s  %s (from %s)", sug.ID, sug.Track.Title, sug.SuggestedBy)
	}
}

func (c *console) decideSuggestion(args []string, accept bool) error {
	if len(args) != 1 {
		c.r.writePlainln("usage: yes|no <suggestion-id>")
		return nil
	}
	return c.co.DecideSuggestion(args[0], accept)
}
