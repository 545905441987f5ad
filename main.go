package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"gvas-edit/config"
	"gvas-edit/convert"
	"gvas-edit/gvas"
	"gvas-edit/utils"
)

var (
	errUsage             = errors.New("usage")
	errRoundTripMismatch = errors.New("re-encoded save differs from the original")
)

const usageText = `usage: gvas-edit [-config file] <command> [arguments]

commands:
  dump <save>                              print the save as JSON
  get <save> <path>                        print one value as JSON
  set <save> <path> <json-value> <out>     replace one value and write the result
  import <json> <out>                      encode a JSON dump back into a save
  roundtrip <save>                         check that decode and encode are byte exact
`

type app struct {
	cfg  config.Config
	log  *slog.Logger
	opts gvas.DecodeOptions
	out  io.Writer
}

// loaded is a decoded save and, for compressed files, the envelope it came in.
type loaded struct {
	save     *gvas.SaveFile
	envelope *gvas.Envelope
	payload  []byte
}

func main() {
	configPath := flag.String("config", "", "TOML configuration file")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usageText) }
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	level, err := cfg.Level()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a := &app{
		cfg:  cfg,
		log:  logger,
		opts: gvas.DecodeOptions{Logger: logger, Hints: cfg.Hints, Verify: cfg.Verify},
		out:  os.Stdout,
	}
	if err := a.run(ctx, flag.Args()); err != nil {
		if errors.Is(err, errUsage) {
			flag.Usage()
			os.Exit(2)
		}
		logger.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func (a *app) run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	command, args := args[0], args[1:]
	switch {
	case command == "dump" && len(args) == 1:
		return a.dump(ctx, args[0])
	case command == "get" && len(args) == 2:
		return a.get(ctx, args[0], args[1])
	case command == "set" && len(args) == 4:
		return a.set(ctx, args[0], args[1], args[2], args[3])
	case command == "import" && len(args) == 2:
		return a.importJSON(args[0], args[1])
	case command == "roundtrip" && len(args) == 1:
		return a.roundtrip(ctx, args[0])
	}
	return errUsage
}

func dumpName(path string) string {
	filename := filepath.Base(path)
	return strings.TrimSuffix(filename, filepath.Ext(filename))
}

// read loads path and unpacks a compressed envelope when there is one.
func (a *app) read(path string) (*loaded, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", gvas.ErrIO, err)
	}

	result := &loaded{payload: data}
	switch gvas.Sniff(data) {
	case gvas.FormatCompressed:
		envelope, err := gvas.Decompress(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		a.log.Debug("decompressed", "file", path, "bytes", len(envelope.Payload))
		if err := utils.SaveToFile(a.cfg, dumpName(path), "decompressed", "bin", envelope.Payload); err != nil {
			a.log.Warn("debug dump failed", "error", err)
		}
		result.envelope = envelope
		result.payload = envelope.Payload
	case gvas.FormatUnknown:
		return nil, fmt.Errorf("%s: %w: not a GVAS save", path, gvas.ErrMalformedHeader)
	}
	return result, nil
}

func (a *app) open(ctx context.Context, path string) (*loaded, error) {
	result, err := a.read(path)
	if err != nil {
		return nil, err
	}
	result.save, err = gvas.ReadContext(ctx, result.payload, a.opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return result, nil
}

// write stores encoded GVAS data at path, inside the original envelope
// when the save came compressed.
func (a *app) write(l *loaded, data []byte, path string) error {
	if err := utils.SaveToFile(a.cfg, dumpName(path), "encoded", "bin", data); err != nil {
		a.log.Warn("debug dump failed", "error", err)
	}
	if l.envelope != nil {
		l.envelope.Payload = data
		packed, err := l.envelope.Compress()
		if err != nil {
			return err
		}
		data = packed
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("%w: %w", gvas.ErrIO, err)
	}
	return nil
}

func (a *app) dump(ctx context.Context, path string) error {
	l, err := a.open(ctx, path)
	if err != nil {
		return err
	}
	data, err := convert.ToJSON(l.save)
	if err != nil {
		return err
	}
	if err := utils.SaveToFile(a.cfg, dumpName(path), "save", "json", data); err != nil {
		a.log.Warn("debug dump failed", "error", err)
	}
	_, err = fmt.Fprintln(a.out, string(data))
	return err
}

func (a *app) get(ctx context.Context, path, property string) error {
	p, err := gvas.ParsePath(property)
	if err != nil {
		return err
	}
	l, err := a.open(ctx, path)
	if err != nil {
		return err
	}
	value, ok := l.save.Get(p)
	if !ok {
		return fmt.Errorf("%w: %s", gvas.ErrPathNotFound, p)
	}
	data, err := convert.MarshalValue(value)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(a.out, string(data))
	return err
}

func (a *app) set(ctx context.Context, path, property, value, out string) error {
	p, err := gvas.ParsePath(property)
	if err != nil {
		return err
	}
	v, err := convert.UnmarshalValue([]byte(value))
	if err != nil {
		return err
	}
	l, err := a.read(path)
	if err != nil {
		return err
	}

	session := gvas.NewSession(a.opts)
	if err := session.Open(ctx, l.payload); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if err := session.Set(p, v); err != nil {
		return err
	}
	data, err := session.Write()
	if err != nil {
		return err
	}
	return a.write(l, data, out)
}

func (a *app) importJSON(path, out string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: %w", gvas.ErrIO, err)
	}
	sf, err := convert.FromJSON(data)
	if err != nil {
		return err
	}
	encoded, err := sf.Write()
	if err != nil {
		return err
	}
	return a.write(&loaded{}, encoded, out)
}

func (a *app) roundtrip(ctx context.Context, path string) error {
	l, err := a.open(ctx, path)
	if err != nil {
		return err
	}
	data, err := l.save.Write()
	if err != nil {
		return err
	}
	if !bytes.Equal(data, l.payload) {
		offset := 0
		for offset < len(data) && offset < len(l.payload) && data[offset] == l.payload[offset] {
			offset++
		}
		return fmt.Errorf("%w: first difference at offset %d (%d vs %d bytes)", errRoundTripMismatch, offset, len(data), len(l.payload))
	}
	fmt.Fprintf(a.out, "ok: %d bytes, %d properties, %d diagnostics\n", len(data), l.save.Properties.Len(), len(l.save.Diagnostics))
	return nil
}
