package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/IBM/sarama"
	"github.com/nats-io/nats.go"
	"github.com/spf13/pflag"

	"github.com/rbaliyan/qrshare/relay"
	"github.com/rbaliyan/qrshare/scanner"
)

var errNoCode = errors.New("no QR code found")

var frameExts = []string{".png", ".jpg", ".jpeg"}

// framePaths expands directories into their image files, sorted by name.
func framePaths(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			paths = append(paths, arg)
			continue
		}
		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, err
		}
		var found []string
		for _, entry := range entries {
			if entry.IsDir() || !slices.Contains(frameExts, strings.ToLower(filepath.Ext(entry.Name()))) {
				continue
			}
			found = append(found, filepath.Join(arg, entry.Name()))
		}
		slices.Sort(found)
		paths = append(paths, found...)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no image frames in %s", strings.Join(args, ", "))
	}
	return paths, nil
}

// publisher connects to the relay backend selected by the flags, if any.
func publisher(natsURL string, brokers []string) (relay.Publisher, func(), error) {
	switch {
	case natsURL != "" && len(brokers) > 0:
		return nil, nil, errors.New("--nats-url and --kafka-brokers are exclusive")

	case natsURL != "":
		nc, err := nats.Connect(natsURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect nats: %w", err)
		}
		pub := relay.NewNATS(nc).WithFlush()
		return pub, func() { pub.Close(); nc.Close() }, nil

	case len(brokers) > 0:
		config := sarama.NewConfig()
		config.Producer.RequiredAcks = sarama.WaitForAll
		config.Producer.Return.Successes = true
		client, err := sarama.NewClient(brokers, config)
		if err != nil {
			return nil, nil, fmt.Errorf("connect kafka: %w", err)
		}
		pub, err := relay.NewKafkaFromClient(client)
		if err != nil {
			client.Close()
			return nil, nil, err
		}
		return pub, func() { pub.Close(); client.Close() }, nil
	}
	return nil, func() {}, nil
}

func runScan(ctx context.Context, args []string, e *env) error {
	var common commonFlags
	fs := pflag.NewFlagSet("scan", pflag.ContinueOnError)
	fs.SetOutput(e.stderr)
	common.add(fs)
	continuous := fs.Bool("continuous", false, "keep scanning after the first match and print every match")
	interval := fs.Duration("interval", scanner.DefaultScanInterval, "minimum time between two matches with --continuous")
	natsURL := fs.String("nats-url", "", "also publish the match to this NATS server")
	brokers := fs.StringSlice("kafka-brokers", nil, "also publish the match to these Kafka brokers")
	subject := fs.String("subject", "qrshare.scans", "NATS subject or Kafka topic for published matches")
	dedup := fs.Duration("dedup", 0, "skip publishing payloads already published within this window (uses --redis when set)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errors.New("scan needs a directory or image files")
	}

	logger, err := common.logger(e.stderr)
	if err != nil {
		return err
	}
	paths, err := framePaths(fs.Args())
	if err != nil {
		return err
	}
	pub, closePub, err := publisher(*natsURL, *brokers)
	if err != nil {
		return err
	}
	defer closePub()

	var forward scanner.Completion
	if pub != nil {
		relayOpts := []relay.ForwardOption{relay.WithLogger(logger)}
		if *dedup > 0 {
			store, closeStore := common.dedupStore(*dedup)
			defer closeStore()
			relayOpts = append(relayOpts, relay.WithDeduplication(store))
		}
		forward = relay.Forward(pub, *subject, relayOpts...)
	}

	if *continuous {
		return scanAll(ctx, e, logger, paths, forward, *interval)
	}

	found := make(chan scanner.Result, 1)
	complete := func(res scanner.Result, err error) {
		if err != nil {
			return
		}
		if forward != nil {
			forward(res, nil)
		}
		select {
		case found <- res:
		default:
		}
	}

	sess := scanner.New(scanner.Files(paths...), complete,
		scanner.WithVibrateOnSuccess(false),
		scanner.WithLogger(logger),
	)
	if err := sess.Start(ctx); err != nil {
		return err
	}
	defer sess.Stop()

	logger.Debug("scanning frames", "frames", len(paths), "session", sess.ID())
	ended := make(chan struct{})
	go func() {
		sess.Wait()
		close(ended)
	}()

	select {
	case res := <-found:
		return printMatch(e, logger, res)
	case <-ended:
		select {
		case res := <-found:
			return printMatch(e, logger, res)
		default:
			return errNoCode
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// scanAll runs a continuous session over every frame, printing and relaying
// each match that the interval lets through.
func scanAll(ctx context.Context, e *env, logger *slog.Logger, paths []string, forward scanner.Completion, interval time.Duration) error {
	var (
		matched  int
		printErr error
	)
	complete := func(res scanner.Result, err error) {
		if err != nil {
			return
		}
		matched++
		if forward != nil {
			forward(res, nil)
		}
		if perr := printMatch(e, logger, res); perr != nil && printErr == nil {
			printErr = perr
		}
	}

	sess := scanner.New(scanner.Files(paths...), complete,
		scanner.WithContinuous(true),
		scanner.WithScanInterval(interval),
		scanner.WithVibrateOnSuccess(false),
		scanner.WithLogger(logger),
	)
	if err := sess.Start(ctx); err != nil {
		return err
	}
	logger.Debug("scanning frames continuously", "frames", len(paths), "interval", interval)
	sess.Wait()

	switch {
	case printErr != nil:
		return printErr
	case ctx.Err() != nil:
		return ctx.Err()
	case matched == 0:
		return errNoCode
	}
	return nil
}

func printMatch(e *env, logger *slog.Logger, res scanner.Result) error {
	logger.Info("code found", "session", res.SessionID, "type", res.Type)
	_, err := fmt.Fprintln(e.stdout, res.Text)
	return err
}
