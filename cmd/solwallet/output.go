package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/brojonat/solwallet/client"
	"github.com/itchyny/gojq"
	"github.com/urfave/cli/v2"
)

// newLogger writes diagnostics to stderr so stdout stays machine readable.
func newLogger(c *cli.Context) *slog.Logger {
	var level slog.Level
	switch c.String("log-level") {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	default:
		level = slog.LevelError
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func newClient(c *cli.Context) *client.Client {
	return client.NewClient(c.String("server-url"), nil, newLogger(c))
}

// signalContext is cancelled on interrupt so streaming commands exit cleanly.
func signalContext(c *cli.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
}

func jsonOutput(c *cli.Context) bool {
	return c.Bool("json") || c.String("jq") != ""
}

// compileJQ returns nil when no filter is set.
func compileJQ(expr string) (*gojq.Code, error) {
	if expr == "" {
		return nil, nil
	}
	query, err := gojq.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse jq filter %q: %w", expr, err)
	}
	code, err := gojq.Compile(query)
	if err != nil {
		return nil, fmt.Errorf("failed to compile jq filter %q: %w", expr, err)
	}
	return code, nil
}

// toJQInput round-trips v through JSON so gojq sees plain maps and slices.
func toJQInput(v interface{}) (interface{}, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// writeJQ runs code over v and writes each result on its own line. Strings
// are written raw, everything else as compact JSON.
func writeJQ(w io.Writer, code *gojq.Code, v interface{}) error {
	input, err := toJQInput(v)
	if err != nil {
		return fmt.Errorf("failed to prepare jq input: %w", err)
	}
	iter := code.Run(input)
	for {
		result, ok := iter.Next()
		if !ok {
			return nil
		}
		if err, ok := result.(error); ok {
			return fmt.Errorf("jq: %w", err)
		}
		if s, ok := result.(string); ok {
			fmt.Fprintln(w, s)
			continue
		}
		data, err := json.Marshal(result)
		if err != nil {
			return fmt.Errorf("jq: %w", err)
		}
		fmt.Fprintln(w, string(data))
	}
}

// printer renders command results as text, JSON, or through a jq filter.
type printer struct {
	out  io.Writer
	json bool
	code *gojq.Code
}

func newPrinter(c *cli.Context) (*printer, error) {
	code, err := compileJQ(c.String("jq"))
	if err != nil {
		return nil, err
	}
	return &printer{out: c.App.Writer, json: jsonOutput(c), code: code}, nil
}

// print writes v as JSON when requested, otherwise calls human.
func (p *printer) print(v interface{}, human func(w io.Writer)) error {
	if p.code != nil {
		return writeJQ(p.out, p.code, v)
	}
	if p.json {
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to encode output: %w", err)
		}
		fmt.Fprintln(p.out, string(data))
		return nil
	}
	human(p.out)
	return nil
}
