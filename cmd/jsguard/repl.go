// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"github.com/aplane-algo/jsguard/internal/fsutil"
	"github.com/aplane-algo/jsguard/internal/reqctx"
	"github.com/aplane-algo/jsguard/internal/scripting"
	"github.com/aplane-algo/jsguard/internal/util"
)

const defaultAuditRows = 10

// errQuit ends the REPL loop.
var errQuit = errors.New("quit")

// session is the REPL state: the runner plus the request lines run in.
type session struct {
	runner scripting.Runner
	guard  *guard
	out    io.Writer

	req    reqctx.Request
	hasReq bool
}

func (s *session) prompt() string {
	p := "jsguard"
	if s.hasReq {
		p += " " + s.req.ID
		if s.req.Blocked {
			p += " [blocked]"
		}
	}
	return p + "> "
}

// handleLine runs one line of input: a meta command starting with ':' or
// JavaScript.
func (s *session) handleLine(ctx context.Context, line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	if strings.HasPrefix(line, ":") {
		return s.handleMeta(ctx, line[1:])
	}

	runCtx, cancel := runContext(ctx, s.req, s.hasReq)
	defer cancel()

	result, err := s.runner.RunContext(runCtx, line)
	if err != nil {
		_, _ = fmt.Fprintln(s.out, formatRunError(err))
		return nil
	}
	if !result.IsEmpty {
		_, _ = fmt.Fprintln(s.out, util.FormatResult(formatValue(result.Value)))
	}
	return nil
}

func (s *session) handleMeta(ctx context.Context, cmd string) error {
	fields := strings.Fields(cmd)
	if len(fields) == 0 {
		return fmt.Errorf("empty command (try :help)")
	}

	switch fields[0] {
	case "quit", "exit", "q":
		return errQuit

	case "help":
		_, _ = fmt.Fprint(s.out, replHelp)

	case "request":
		switch {
		case len(fields) == 1:
			s.req = reqctx.New(false)
		case fields[1] == "none":
			s.req, s.hasReq = reqctx.Request{}, false
			_, _ = fmt.Fprintln(s.out, util.FormatDim("no request"))
			return nil
		default:
			s.req = reqctx.Request{ID: fields[1]}
		}
		s.hasReq = true
		_, _ = fmt.Fprintln(s.out, util.FormatDim("request "+s.req.ID))

	case "block", "unblock":
		if !s.hasReq {
			s.req, s.hasReq = reqctx.New(false), true
		}
		s.req.Blocked = fields[0] == "block"
		_, _ = fmt.Fprintln(s.out, util.FormatDim(fmt.Sprintf("request %s blocked=%t", s.req.ID, s.req.Blocked)))

	case "policy":
		if s.guard == nil {
			return fmt.Errorf("no policy configured")
		}
		if err := s.guard.reload(); err != nil {
			return err
		}
		_, _ = fmt.Fprintln(s.out, util.FormatDim("policy reloaded from "+displayPath(s.guard.policyPath)))

	case "audit":
		if s.guard == nil {
			return fmt.Errorf("no audit store configured")
		}
		n := defaultAuditRows
		if len(fields) > 1 {
			v, err := strconv.Atoi(fields[1])
			if err != nil || v <= 0 {
				return fmt.Errorf("invalid row count %q", fields[1])
			}
			n = v
		}
		events, err := s.guard.recent(ctx, n)
		if err != nil {
			return err
		}
		for _, ev := range events {
			_, _ = fmt.Fprintf(s.out, "%s  %-12s %-14s %s  %s\n",
				ev.CreatedAt.Format("15:04:05.000"), ev.Verdict, ev.RequestID, shortHash(ev.SourceHash), ev.Message)
		}

	default:
		return fmt.Errorf("unknown command :%s (try :help)", fields[0])
	}
	return nil
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}

func displayPath(p string) string {
	if p == "" {
		return "(built-in default)"
	}
	return p
}

const replHelp = `Meta commands:
  :request [id|none]  run following lines in a request (fresh id if omitted)
  :block / :unblock   flag the current request as blocked or not
  :policy             reload the policy file
  :audit [n]          show the newest n audit events
  :quit               exit
Anything else is evaluated as JavaScript.
`

func startREPL(ctx context.Context, config util.Config, g *guard, req reqctx.Request, hasReq bool) int {
	runner, err := newRunner(config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	s := &session{runner: runner, guard: g, out: os.Stdout, req: req, hasReq: hasReq}

	if config.HistoryFile != "" {
		if err := fsutil.EnsureParent(config.HistoryFile); err == nil {
			_ = fsutil.TouchPrivate(config.HistoryFile) // Best-effort, readline creates it otherwise
		}
	}

	fmt.Println("jsguard - guarded JavaScript shell")
	fmt.Println("Type :help for commands or :quit to exit")

	rl, err := readline.NewEx(&readline.Config{
		Prompt:            s.prompt(),
		HistoryFile:       config.HistoryFile,
		HistoryLimit:      1000,
		InterruptPrompt:   "^C",
		EOFPrompt:         ":quit",
		HistorySearchFold: true,
	})
	if err != nil {
		fmt.Printf("Failed to create readline instance, falling back to basic input: %v\n", err)
		return startBasicREPL(ctx, s)
	}
	defer func() {
		_ = rl.Close() // Best-effort close, errors during shutdown not critical
	}()

	for {
		rl.SetPrompt(s.prompt())

		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				if len(line) == 0 {
					fmt.Println("Use :quit to exit")
				}
				continue
			}
			if errors.Is(err, io.EOF) {
				return 0
			}
			fmt.Printf("Error reading input: %v\n", err)
			continue
		}

		if err := s.handleLine(ctx, line); err != nil {
			if errors.Is(err, errQuit) {
				return 0
			}
			fmt.Println(util.FormatError("Error: " + err.Error()))
		}
	}
}

func startBasicREPL(ctx context.Context, s *session) int {
	fmt.Println("Running in basic mode (no history)")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print(s.prompt())
		if !scanner.Scan() {
			return 0
		}
		if err := s.handleLine(ctx, scanner.Text()); err != nil {
			if errors.Is(err, errQuit) {
				return 0
			}
			fmt.Printf("Error: %v\n", err)
		}
	}
}
