package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"

	"github.com/rbaliyan/qrshare"
	"github.com/rbaliyan/qrshare/qrcode"
)

func runEncode(ctx context.Context, args []string, e *env) error {
	var common commonFlags
	fs := pflag.NewFlagSet("encode", pflag.ContinueOnError)
	fs.SetOutput(e.stderr)
	common.add(fs)
	output := fs.StringP("output", "o", "qrcode.png", `output PNG file, "-" for stdout`)
	size := fs.Int("size", qrcode.DefaultSize, "image width and height in pixels")
	level := fs.String("level", "H", "error correction level: L, M, Q or H")
	border := fs.Bool("border", true, "draw the quiet zone around the symbol")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() > 1 {
		return fmt.Errorf("encode takes at most one input file")
	}

	logger, err := common.logger(e.stderr)
	if err != nil {
		return err
	}
	lvl, err := qrcode.ParseLevel(*level)
	if err != nil {
		return err
	}

	in := e.stdin
	if fs.NArg() == 1 && fs.Arg(0) != "-" {
		f, err := os.Open(fs.Arg(0))
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}
	data, err := io.ReadAll(in)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	// Input is always JSON; --codec only selects the payload encoding.
	doc, err := readDocument(data)
	if err != nil {
		return fmt.Errorf("input: %w", err)
	}
	codec, err := common.payloadCodec()
	if err != nil {
		return err
	}
	if !textual(codec) {
		doc = nativeNumbers(doc)
	}

	opts, cleanup, err := common.sharerOptions(logger)
	if err != nil {
		return err
	}
	defer cleanup()
	opts = append(opts, qrshare.WithQROptions(
		qrcode.WithLevel(lvl),
		qrcode.WithSize(*size),
		qrcode.WithBorder(*border),
	))

	png, err := qrshare.New[any](opts...).QRCode(ctx, doc)
	if err != nil {
		return err
	}

	if *output == "-" {
		_, err = e.stdout.Write(png)
		return err
	}
	if err := os.WriteFile(*output, png, 0o644); err != nil {
		return err
	}
	logger.Info("wrote QR code", "file", *output, "bytes", len(png))
	return nil
}
