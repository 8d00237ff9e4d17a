// binderctl is a command-line companion for the native bridge. It converts
// between the wire format and JSON / YAML / CBOR / MessagePack, prints the
// conformance vectors, and performs calls against an in-process bridge.
//
//	binderctl encode [--from json] [--hex]      < input   > wire
//	binderctl decode [--to json] [--hex]        < wire    > output
//	binderctl diag   [--hex]                    < wire    > CBOR diagnostic notation
//	binderctl call   CHANNEL METHOD [ARGS-JSON] [--config file]
//	binderctl vectors
//	binderctl discover CHANNEL --config file
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"
)

type command struct {
	name    string
	summary string
	run     func(args []string, stdin io.Reader, stdout io.Writer) error
}

var commands = []command{
	{"encode", "convert JSON/YAML/CBOR/MessagePack on stdin to wire bytes", runEncode},
	{"decode", "convert wire bytes on stdin to JSON/YAML/CBOR/MessagePack", runDecode},
	{"diag", "print wire bytes on stdin in CBOR diagnostic notation", runDiag},
	{"call", "call a method on an in-process bridge serving the binder channel", runCall},
	{"vectors", "print the conformance vectors", runVectors},
	{"discover", "list processes advertising a channel in etcd", runDiscover},
}

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout io.Writer) error {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		printUsage(stdout)
		return nil
	}
	for _, c := range commands {
		if c.name == args[0] {
			return c.run(args[1:], stdin, stdout)
		}
	}
	printUsage(os.Stderr)
	return fmt.Errorf("unknown command %q", args[0])
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: binderctl <command> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	for _, c := range commands {
		fmt.Fprintf(w, "  %-9s %s\n", c.name, c.summary)
	}
}

// newFlagSet returns a flag set that reports errors instead of exiting.
func newFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet("binderctl "+name, pflag.ContinueOnError)
	fs.SortFlags = false
	return fs
}
