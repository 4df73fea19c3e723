// qrshare renders JSON documents as QR codes and reads them back.
//
// Commands:
//
//	qrshare encode [-o out.png] [--size N] [--level L] [--codec CT] [file]
//	qrshare decode [--codec CT] file.png
//	qrshare scan [--continuous [--interval D]] [--nats-url URL | --kafka-brokers B] dir|files...
//
// Payloads too large for a symbol can be kept in Redis with --redis; the
// symbol then carries a reference that decode resolves from the same
// server.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"

	"github.com/rbaliyan/qrshare"
	"github.com/rbaliyan/qrshare/idempotency"
	"github.com/rbaliyan/qrshare/offload"
	"github.com/rbaliyan/qrshare/payload"
)

// env carries the process streams so commands can run under test.
type env struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

type command struct {
	name    string
	summary string
	run     func(ctx context.Context, args []string, e *env) error
}

var commands = []command{
	{"encode", "render a JSON document as a QR code PNG", runEncode},
	{"decode", "read a QR code PNG and print the JSON document", runDecode},
	{"scan", "scan image frames until a QR code is found", runScan},
}

var errUsage = errors.New("usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	e := &env{stdin: os.Stdin, stdout: os.Stdout, stderr: os.Stderr}
	if err := run(ctx, os.Args[1:], e); err != nil {
		if !errors.Is(err, errUsage) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, e *env) error {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		printUsage(e.stderr)
		if len(args) == 0 {
			return errUsage
		}
		return nil
	}
	for _, c := range commands {
		if c.name == args[0] {
			err := c.run(ctx, args[1:], e)
			if errors.Is(err, pflag.ErrHelp) {
				return nil
			}
			return err
		}
	}
	printUsage(e.stderr)
	return fmt.Errorf("unknown command %q", args[0])
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: qrshare <command> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	for _, c := range commands {
		fmt.Fprintf(w, "  %-8s %s\n", c.name, c.summary)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, `Run "qrshare <command> --help" for the flags of a command.`)
}

// commonFlags are shared by every command.
type commonFlags struct {
	logLevel  string
	logFormat string
	codec     string
	redisAddr string
	ttl       time.Duration
}

func (c *commonFlags) add(fs *pflag.FlagSet) {
	fs.StringVar(&c.logLevel, "log-level", "warn", "log level: debug, info, warn or error")
	fs.StringVar(&c.logFormat, "log-format", "text", "log format: text or json")
	fs.StringVar(&c.codec, "codec", payload.Default().ContentType(),
		"payload content type, one of: "+strings.Join(payload.ContentTypes(), ", "))
	fs.StringVar(&c.redisAddr, "redis", "", "Redis address for payloads too large for one symbol")
	fs.DurationVar(&c.ttl, "ttl", qrshare.DefaultOffloadTTL, "how long offloaded payloads are kept")
}

// logger builds the command logger and installs it as the default.
func (c *commonFlags) logger(w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.logLevel)); err != nil {
		return nil, fmt.Errorf("invalid --log-level: %w", err)
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch c.logFormat {
	case "text":
		handler = slog.NewTextHandler(w, opts)
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		return nil, fmt.Errorf("invalid --log-format %q", c.logFormat)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger, nil
}

func (c *commonFlags) payloadCodec() (payload.Codec, error) {
	codec, ok := payload.Get(c.codec)
	if !ok {
		return nil, fmt.Errorf("unknown codec %q, have %s", c.codec, strings.Join(payload.ContentTypes(), ", "))
	}
	return codec, nil
}

// sharerOptions returns the options shared by encode and decode and a
// cleanup func that releases the store.
func (c *commonFlags) sharerOptions(logger *slog.Logger) ([]qrshare.Option, func(), error) {
	codec, err := c.payloadCodec()
	if err != nil {
		return nil, nil, err
	}
	opts := []qrshare.Option{qrshare.WithCodec(codec), qrshare.WithLogger(logger)}
	if c.redisAddr == "" {
		return opts, func() {}, nil
	}

	client := redis.NewClient(&redis.Options{Addr: c.redisAddr})
	store := offload.NewRedisStore(client)
	opts = append(opts, qrshare.WithStore(store, c.ttl))
	cleanup := func() {
		store.Close()
		client.Close()
	}
	return opts, cleanup, nil
}

// dedupStore returns the store that remembers published payloads for ttl:
// Redis when --redis is set, process memory otherwise.
func (c *commonFlags) dedupStore(ttl time.Duration) (idempotency.Store, func()) {
	if c.redisAddr == "" {
		store := idempotency.NewMemoryStore(ttl)
		return store, func() { store.Close() }
	}
	client := redis.NewClient(&redis.Options{Addr: c.redisAddr})
	store := idempotency.NewRedisStore(client, ttl)
	return store, func() {
		store.Close()
		client.Close()
	}
}
