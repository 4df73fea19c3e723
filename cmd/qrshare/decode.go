package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/rbaliyan/qrshare"
	"github.com/rbaliyan/qrshare/qrcode"
)

func runDecode(ctx context.Context, args []string, e *env) error {
	var common commonFlags
	fs := pflag.NewFlagSet("decode", pflag.ContinueOnError)
	fs.SetOutput(e.stderr)
	common.add(fs)
	tryHarder := fs.Bool("try-harder", false, "spend more time looking for the symbol")
	raw := fs.Bool("raw", false, "print the symbol text without decoding it")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("decode takes exactly one image file")
	}

	logger, err := common.logger(e.stderr)
	if err != nil {
		return err
	}

	f, err := os.Open(fs.Arg(0))
	if err != nil {
		return err
	}
	defer f.Close()

	var readerOpts []qrcode.ReaderOption
	if *tryHarder {
		readerOpts = append(readerOpts, qrcode.WithTryHarder())
	}
	text, err := qrcode.NewReader(readerOpts...).DecodeImage(f)
	if err != nil {
		return err
	}
	logger.Debug("read symbol", "file", fs.Arg(0), "bytes", len(text))
	if *raw {
		_, err = fmt.Fprintln(e.stdout, text)
		return err
	}

	opts, cleanup, err := common.sharerOptions(logger)
	if err != nil {
		return err
	}
	defer cleanup()

	codec, err := common.payloadCodec()
	if err != nil {
		return err
	}

	var out bytes.Buffer
	if textual(codec) {
		doc, err := qrshare.New[json.RawMessage](opts...).Import(ctx, text)
		if err != nil {
			return err
		}
		if err := json.Indent(&out, doc, "", "  "); err != nil {
			return err
		}
	} else {
		doc, err := qrshare.New[any](opts...).Import(ctx, text)
		if err != nil {
			return err
		}
		indented, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return err
		}
		out.Write(indented)
	}
	_, err = fmt.Fprintln(e.stdout, out.String())
	return err
}
