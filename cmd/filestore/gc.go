package main

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/planetscentral/filestore/ca"
	"github.com/planetscentral/filestore/config"
)

// CmdGC runs a sliced mark-and-sweep pass over the root to completion,
// keeping only what is reachable from the current master commit.
type CmdGC struct {
	cmd
}

func (CmdGC) Usage() string {
	return "gc"
}

func (c *CmdGC) Execute(args []string) error {
	cfg := config.Default()
	if c.Config != "" {
		loaded, err := config.Load(c.Config)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	root, err := openRootWithConfig(c.dir(), c.Config)
	if err != nil {
		return err
	}

	log := logrus.StandardLogger()
	gcol := ca.NewGarbageCollector(root.ObjectStore(), log)

	commitID, ok, err := root.GetMasterCommitId()
	if err != nil {
		return err
	}
	if ok {
		gcol.AddCommit(commitID)
	}

	// A live server would stop after cfg.GC.ObjectsPerCheck calls and
	// interleave other work; this one-shot CLI just drives both phases
	// to completion, logging progress at the same cadence a server
	// would yield at.
	for n := 0; gcol.CheckObject(); n++ {
		if n%cfg.GC.ObjectsPerCheck == 0 {
			log.WithField("to_check", gcol.NumObjectsToCheck()).Debug("gc: marking")
		}
	}
	for n := 0; gcol.RemoveGarbageObjects(); n++ {
		if n%cfg.GC.SubdirsPerSweepCall == 0 {
			log.WithField("removed", gcol.NumObjectsRemoved()).Debug("gc: sweeping")
		}
	}

	fmt.Printf("kept=%d removed=%d errors=%d\n",
		gcol.NumObjectsToKeep(), gcol.NumObjectsRemoved(), gcol.NumErrors())
	return nil
}
