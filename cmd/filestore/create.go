package main

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
)

// CmdCreate stores a local file's content under a path in the root's
// current tree, creating any missing intermediate directories.
type CmdCreate struct {
	cmd

	Args struct {
		TreePath  string `positional-arg-name:"tree-path" required:"true"`
		LocalFile string `positional-arg-name:"local-file" required:"true"`
	} `positional-args:"yes"`
}

func (CmdCreate) Usage() string {
	return "create <tree-path> <local-file>"
}

func (c *CmdCreate) Execute(args []string) error {
	content, err := os.ReadFile(c.Args.LocalFile)
	if err != nil {
		return errors.Wrap(err, "read local file")
	}

	root, err := openRootWithConfig(c.dir(), c.Config)
	if err != nil {
		return errors.Wrap(err, "open root")
	}
	handler, err := root.CreateRootHandler()
	if err != nil {
		return errors.Wrap(err, "open root handler")
	}

	dirPath, name := splitDirAndName(c.Args.TreePath)
	target, err := resolveDir(handler, dirPath, true)
	if err != nil {
		return errors.Wrap(err, "resolve directory")
	}

	info, err := target.CreateFile(name, content)
	if err != nil {
		return errors.Wrap(err, "create file")
	}

	fmt.Printf("%s\t%s\n", info.ContentID, c.Args.TreePath)
	return nil
}
