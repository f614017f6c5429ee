// Command filestore is a small end-to-end harness for the
// content-addressable backend: it stands in for the parts of the file
// server that, in production, issue these same calls over RPC
// (SPEC_FULL.md §2). It is not itself a server.
package main

import (
	"fmt"
	"os"

	"github.com/jessevdk/go-flags"
)

// cmd is embedded by every subcommand that opens a root (create, read,
// gc), the same way go-git's own cli embeds a shared base into each
// command struct. verify-pack works on standalone files and does not
// embed it.
type cmd struct {
	Directory string `short:"C" long:"directory" description:"game directory to open" default:"."`
	Config    string `long:"config" description:"TOML config file overriding cache/GC defaults"`
}

func (c cmd) dir() string {
	if c.Directory == "" {
		return "."
	}
	return c.Directory
}

type options struct{}

func main() {
	var opts options
	parser := flags.NewParser(&opts, flags.Default)
	parser.AddCommand("create", "Store a file under a path in the tree", "", &CmdCreate{})
	parser.AddCommand("read", "Print a file from the tree to stdout", "", &CmdRead{})
	parser.AddCommand("gc", "Run garbage collection to completion", "", &CmdGC{})
	parser.AddCommand("verify-pack", "Check an index/pack file pair for a given object", "", &CmdVerifyPack{})

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, "ERR:", err)
		os.Exit(1)
	}
}
