package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/trackfit/autobone/internal/dispatcher"
)

// parseCommand turns "name[:arg,...]" into an event for a registered
// command, e.g. "wait:process".
func parseCommand(d *dispatcher.Dispatcher, arg string) (dispatcher.Event, error) {
	name, rest, _ := strings.Cut(arg, ":")
	cmd, ok := d.Resolve(name)
	if !ok {
		return dispatcher.Event{}, fmt.Errorf("unknown command %q (want one of %s)", name, strings.Join(d.Aliases(), ", "))
	}
	e := dispatcher.Event{Command: cmd, Timestamp: time.Now()}
	if rest != "" {
		e.Args = strings.Split(rest, ",")
	}
	return e, nil
}

// runCommands dispatches each argument in order. Start commands return
// immediately, so a script waits explicitly: record wait:record save.
func (a *app) runCommands(ctx context.Context, args []string, out io.Writer) error {
	events := make([]dispatcher.Event, 0, len(args))
	for _, arg := range args {
		e, err := parseCommand(a.dispatch, arg)
		if err != nil {
			return err
		}
		events = append(events, e)
	}

	interrupted := make(chan struct{})
	defer close(interrupted)
	go func() {
		select {
		case <-ctx.Done():
			a.logger.Warn("Interrupted, stopping running processes")
			a.manager.CancelRecording()
			a.manager.Close()
		case <-interrupted:
		}
	}()

	for i, e := range events {
		if err := ctx.Err(); err != nil {
			return err
		}
		result, err := a.dispatch.Dispatch(e)
		if err != nil {
			return fmt.Errorf("%s: %w", args[i], err)
		}
		printResult(out, args[i], result)
	}
	return nil
}

func printResult(out io.Writer, name string, result any) {
	switch r := result.(type) {
	case map[string]string:
		keys := make([]string, 0, len(r))
		for k := range r {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(out, "%s: %s=%s\n", name, k, r[k])
		}
	case nil:
	default:
		fmt.Fprintf(out, "%s: %v\n", name, r)
	}
}
