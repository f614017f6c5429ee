package main

import (
	"os"

	"github.com/pkg/errors"
)

// CmdRead prints a tree file's content to stdout.
type CmdRead struct {
	cmd

	Args struct {
		TreePath string `positional-arg-name:"tree-path" required:"true"`
	} `positional-args:"yes"`
}

func (CmdRead) Usage() string {
	return "read <tree-path>"
}

func (c *CmdRead) Execute(args []string) error {
	root, err := openRootWithConfig(c.dir(), c.Config)
	if err != nil {
		return errors.Wrap(err, "open root")
	}
	handler, err := root.CreateRootHandler()
	if err != nil {
		return errors.Wrap(err, "open root handler")
	}

	dirPath, name := splitDirAndName(c.Args.TreePath)
	target, err := resolveDir(handler, dirPath, false)
	if err != nil {
		return errors.Wrap(err, "resolve directory")
	}

	content, err := target.GetFileByName(name)
	if err != nil {
		return errors.Wrap(err, "read file")
	}

	_, err = os.Stdout.Write(content)
	return err
}
