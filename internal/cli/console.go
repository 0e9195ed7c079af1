package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/tejashwikalptaru/saavntune/internal/domain"
	"github.com/tejashwikalptaru/saavntune/internal/service"
)

const consoleHelp = `Commands while playing:
  p, pause          toggle play/pause
  play <#>          play queue entry #
  n, next           next song
  b, prev           previous song
  seek <pos>        jump to m:ss or seconds, +N/-N seeks relative
  add <query>       append the songs a query resolves to
  rm <#>            remove queue entry #
  mv <from> <to>    move a queue entry
  ls, queue         show the queue
  np                show the current song
  clear             empty the queue and stop
  q, quit           end the session`

var errUsage = errors.New("usage")

// console drives a running session from line-oriented input.
type console struct {
	controller *service.Controller
	resolver   *service.Resolver
	printer    *sessionPrinter
	quit       context.CancelFunc
}

func newConsole(controller *service.Controller, resolver *service.Resolver, printer *sessionPrinter, quit context.CancelFunc) *console {
	return &console{controller: controller, resolver: resolver, printer: printer, quit: quit}
}

// run executes commands read from in until in is exhausted or ctx ends.
func (c *console) run(ctx context.Context, in io.Reader) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	c.printer.printf("%s\n", hintStyle.Render("Type help for commands"))
	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if err := c.exec(ctx, line); err != nil {
				c.printer.printf("%s %s\n", hintStyle.Render("[error]"), domain.UserMessage(err))
			}
		}
	}
}

// exec runs a single command line.
func (c *console) exec(ctx context.Context, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	switch cmd {
	case "p", "pause", "play":
		if len(args) == 0 {
			c.controller.PlayPause()
			return nil
		}
		idx, err := c.queueIndex(args[0])
		if err != nil {
			return err
		}
		queue := c.controller.State().Queue
		c.controller.Play(queue[idx], queue)

	case "n", "next":
		c.controller.PlayNext()

	case "b", "prev", "previous":
		c.controller.PlayPrevious()

	case "seek":
		if len(args) != 1 {
			return fmt.Errorf("%w: seek <m:ss|seconds|+N|-N>", errUsage)
		}
		ms, relative, err := parsePosition(args[0])
		if err != nil {
			return err
		}
		if relative {
			c.controller.SeekBy(ms)
		} else {
			c.controller.SeekTo(ms)
		}

	case "add":
		if len(args) == 0 {
			return fmt.Errorf("%w: add <query>", errUsage)
		}
		songs, err := c.resolver.Resolve(ctx, strings.Join(args, " "))
		if err != nil {
			return err
		}
		before := len(c.controller.State().Queue)
		for _, s := range songs {
			c.controller.AddToQueue(s)
		}
		c.printer.printf("Added %d songs\n", len(c.controller.State().Queue)-before)

	case "rm":
		if len(args) != 1 {
			return fmt.Errorf("%w: rm <#>", errUsage)
		}
		idx, err := c.queueIndex(args[0])
		if err != nil {
			return err
		}
		c.controller.RemoveFromQueue(c.controller.State().Queue[idx])

	case "mv":
		if len(args) != 2 {
			return fmt.Errorf("%w: mv <from> <to>", errUsage)
		}
		from, err := c.queueIndex(args[0])
		if err != nil {
			return err
		}
		to, err := c.queueIndex(args[1])
		if err != nil {
			return err
		}
		c.controller.ReorderQueue(from, to)

	case "ls", "queue":
		state := c.controller.State()
		c.printer.render(func(out io.Writer) { renderSongs(out, state.Queue, state.CurrentIndex) })

	case "np":
		state := c.controller.State()
		c.printer.render(func(out io.Writer) { renderNowPlaying(out, state) })

	case "clear":
		c.controller.Clear()

	case "q", "quit", "exit":
		c.quit()

	case "help", "?":
		c.printer.printf("%s\n", consoleHelp)

	default:
		return fmt.Errorf("unknown command %q (type help)", cmd)
	}
	return nil
}

// queueIndex parses a queue position as shown by ls.
func (c *console) queueIndex(arg string) (int, error) {
	idx, err := strconv.Atoi(arg)
	if err != nil {
		return 0, fmt.Errorf("%q is not a queue position", arg)
	}
	if n := len(c.controller.State().Queue); idx < 0 || idx >= n {
		return 0, fmt.Errorf("queue position %d is out of range (queue has %d songs)", idx, n)
	}
	return idx, nil
}

// parsePosition reads "m:ss" or plain seconds. A leading sign makes the
// position relative to the current one.
func parsePosition(arg string) (ms int64, relative bool, err error) {
	sign := int64(1)
	switch {
	case strings.HasPrefix(arg, "+"):
		relative, arg = true, arg[1:]
	case strings.HasPrefix(arg, "-"):
		relative, sign, arg = true, -1, arg[1:]
	}

	minutes, seconds := "0", arg
	if m, s, ok := strings.Cut(arg, ":"); ok {
		minutes, seconds = m, s
	}
	mins, errM := strconv.ParseUint(minutes, 10, 32)
	secs, errS := strconv.ParseUint(seconds, 10, 32)
	if errM != nil || errS != nil || arg == "" {
		return 0, false, fmt.Errorf("%q is not a position (use m:ss or seconds)", arg)
	}

	return sign * int64(mins*60+secs) * 1000, relative, nil
}
