package main

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"native-binder/client"
	"native-binder/codec"
	"native-binder/config"
	"native-binder/interop"
	"native-binder/logging"
	"native-binder/registry"
)

func runEncode(args []string, stdin io.Reader, stdout io.Writer) error {
	fs := newFlagSet("encode")
	from := fs.String("from", "json", "input format: json, yaml, cbor or msgpack")
	asHex := fs.Bool("hex", false, "write hex instead of raw bytes")
	if err := fs.Parse(args); err != nil {
		return err
	}
	f, err := interop.ParseFormat(*from)
	if err != nil {
		return err
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	wire, err := interop.ToWire(f, data)
	if err != nil {
		return err
	}
	if *asHex {
		_, err = fmt.Fprintln(stdout, hex.EncodeToString(wire))
		return err
	}
	_, err = stdout.Write(wire)
	return err
}

func runDecode(args []string, stdin io.Reader, stdout io.Writer) error {
	fs := newFlagSet("decode")
	to := fs.String("to", "json", "output format: json, yaml, cbor or msgpack")
	fromHex := fs.Bool("hex", false, "read hex instead of raw bytes")
	if err := fs.Parse(args); err != nil {
		return err
	}
	f, err := interop.ParseFormat(*to)
	if err != nil {
		return err
	}
	wire, err := readWire(stdin, *fromHex)
	if err != nil {
		return err
	}
	out, err := interop.FromWire(f, wire)
	if err != nil {
		return err
	}
	_, err = stdout.Write(out)
	return err
}

func runDiag(args []string, stdin io.Reader, stdout io.Writer) error {
	fs := newFlagSet("diag")
	fromHex := fs.Bool("hex", false, "read hex instead of raw bytes")
	if err := fs.Parse(args); err != nil {
		return err
	}
	wire, err := readWire(stdin, *fromHex)
	if err != nil {
		return err
	}
	dec := codec.NewDecoder(wire)
	for dec.More() {
		v, err := dec.Next()
		if err != nil {
			return err
		}
		single, err := codec.Encode(v)
		if err != nil {
			return err
		}
		notation, err := interop.Diagnose(single)
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, notation)
	}
	return nil
}

func runCall(args []string, stdin io.Reader, stdout io.Writer) error {
	fs := newFlagSet("call")
	configPath := fs.String("config", "", "TOML configuration file")
	showTiming := fs.Bool("timing", false, "print the handler timing reported by the callee")
	if err := fs.Parse(args); err != nil {
		return err
	}
	rest := fs.Args()
	if len(rest) < 2 || len(rest) > 3 {
		return fmt.Errorf("usage: binderctl call CHANNEL METHOD [ARGS-JSON]")
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	if *showTiming {
		cfg.Dispatch.Timing = true
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer logger.Sync()

	arguments := codec.Null()
	if len(rest) == 3 {
		arguments, err = interop.ToValue(interop.JSON, []byte(rest[2]))
		if err != nil {
			return fmt.Errorf("arguments: %w", err)
		}
	}

	b, err := newBridge(cfg, logger)
	if err != nil {
		return err
	}
	defer b.Close()

	result, timing, err := b.client.InvokeWithTiming(rest[0], rest[1], arguments)
	if err != nil {
		return describeCallError(err)
	}
	out, err := interop.FromValue(interop.JSON, result)
	if err != nil {
		return err
	}
	if _, err := stdout.Write(out); err != nil {
		return err
	}
	if *showTiming && !timing.IsNull() {
		fmt.Fprintf(stdout, "timing: %s\n", timing)
	}
	if live := b.heap.Live(); live != 0 {
		logger.Error("buffers leaked across the boundary", zap.Int("live", live))
	}
	return nil
}

func runVectors(args []string, stdin io.Reader, stdout io.Writer) error {
	fs := newFlagSet("vectors")
	if err := fs.Parse(args); err != nil {
		return err
	}
	vectors, err := codec.Vectors()
	if err != nil {
		return err
	}
	for _, v := range vectors {
		fmt.Fprintf(stdout, "%-28s %-40s %s\n", v.Name, v.Value, hex.EncodeToString(v.Bytes))
	}
	return nil
}

func runDiscover(args []string, stdin io.Reader, stdout io.Writer) error {
	fs := newFlagSet("discover")
	configPath := fs.String("config", "", "TOML configuration file with a [directory] section")
	timeout := fs.Duration("timeout", 5*time.Second, "lookup timeout")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: binderctl discover CHANNEL --config FILE")
	}
	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	if !cfg.Directory.Enabled() {
		return fmt.Errorf("no directory endpoints configured")
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer logger.Sync()

	dir, err := registry.NewEtcdDirectory(etcdConfig(cfg.Directory, logger))
	if err != nil {
		return err
	}
	defer dir.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	instances, err := dir.Discover(ctx, fs.Arg(0))
	if err != nil {
		return err
	}
	for _, inst := range instances {
		fmt.Fprintf(stdout, "%s\t%s\t%s\n", inst.Channel, inst.Process, inst.Version)
	}
	return nil
}

func loadConfig(path string) (config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

// readWire reads raw wire bytes, or hex text with whitespace ignored.
func readWire(r io.Reader, fromHex bool) ([]byte, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	if !fromHex {
		return data, nil
	}
	cleaned := strings.Join(strings.Fields(string(bytes.TrimSpace(data))), "")
	wire, err := hex.DecodeString(cleaned)
	if err != nil {
		return nil, fmt.Errorf("hex input: %w", err)
	}
	return wire, nil
}

func describeCallError(err error) error {
	ce, ok := err.(*client.CallError)
	if !ok || ce.Details.IsNull() {
		return err
	}
	return fmt.Errorf("%w\ndetails: %s", err, ce.Details)
}
