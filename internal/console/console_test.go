package console

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"agentloop/internal/executor"
)

func TestAsk(t *testing.T) {
	var out bytes.Buffer
	c := New(strings.NewReader("first\r\nsecond\nlast"), &out)

	for _, want := range []string{"first", "second", "last"} {
		got, err := c.Ask(context.Background(), "? ")
		if err != nil {
			t.Fatalf("Ask: %v", err)
		}
		if got != want {
			t.Errorf("got %q, want %q", got, want)
		}
	}
	if _, err := c.Ask(context.Background(), "? "); !errors.Is(err, io.EOF) {
		t.Errorf("expected io.EOF once input is exhausted, got %v", err)
	}
	if !strings.Contains(out.String(), "? ") {
		t.Errorf("prompt not written: %q", out.String())
	}
}

func TestAsk_CancelWhileBlocked(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	c := New(pr, io.Discard)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		_, err := c.Ask(ctx, "task? ")
		errc <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errc:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Ask did not return after cancellation")
	}

	// The line typed after the cancel is not lost: the next Ask reuses the
	// read that was already in flight.
	go func() { _, _ = io.WriteString(pw, "late answer\n") }()
	got, err := c.Ask(context.Background(), "again? ")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if got != "late answer" {
		t.Errorf("got %q, want %q", got, "late answer")
	}
}

func TestAsk_AlreadyCancelled(t *testing.T) {
	var out bytes.Buffer
	c := New(strings.NewReader("unused\n"), &out)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := c.Ask(ctx, "? "); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if out.Len() != 0 {
		t.Errorf("no prompt expected once cancelled, got %q", out.String())
	}
}

func TestConfirmRequiresYes(t *testing.T) {
	cases := map[string]bool{
		"yes":   true,
		"YES":   true,
		" yes ": true,
		"y":     false,
		"":      false,
		"no":    false,
		"yes!":  false,
	}
	for in, want := range cases {
		c := New(strings.NewReader(in+"\n"), io.Discard)
		got, err := c.Confirm(context.Background(), "ok? ")
		if err != nil {
			t.Fatalf("Confirm(%q): %v", in, err)
		}
		if got != want {
			t.Errorf("Confirm(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestShowPlan(t *testing.T) {
	var out bytes.Buffer
	New(strings.NewReader(""), &out).ShowPlan(executor.NewPlan("import os\nprint(1)"))

	s := out.String()
	for _, want := range []string{"Generated plan", "(code)", "import os", "print(1)"} {
		if !strings.Contains(s, want) {
			t.Errorf("plan display missing %q:\n%s", want, s)
		}
	}
	if strings.Contains(s, "\x1b[") {
		t.Errorf("expected no ANSI escapes when writing to a buffer:\n%q", s)
	}
}

func TestShowOutcome(t *testing.T) {
	t.Run("blocked", func(t *testing.T) {
		var out bytes.Buffer
		New(strings.NewReader(""), &out).ShowOutcome(&executor.Outcome{
			Blocked:     true,
			BlockReason: "blocked for safety: filesystem creation (matched \"mkfs\")",
		})
		if !strings.Contains(out.String(), "Blocked for safety") {
			t.Errorf("missing block notice: %s", out.String())
		}
	})

	t.Run("failure with output", func(t *testing.T) {
		var out bytes.Buffer
		New(strings.NewReader(""), &out).ShowOutcome(&executor.Outcome{
			Stdout:   "partial\n",
			Stderr:   "bad thing\n",
			ExitCode: 2,
		})
		s := out.String()
		for _, want := range []string{"Output:", "partial", "Errors:", "bad thing", "Exited with status 2"} {
			if !strings.Contains(s, want) {
				t.Errorf("missing %q in:\n%s", want, s)
			}
		}
	})

	t.Run("killed", func(t *testing.T) {
		var out bytes.Buffer
		New(strings.NewReader(""), &out).ShowOutcome(&executor.Outcome{Killed: true, KillReason: "timeout after 1s"})
		if !strings.Contains(out.String(), "timeout after 1s") {
			t.Errorf("missing kill reason: %s", out.String())
		}
	})
}
