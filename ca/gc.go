package ca

import (
	"encoding/hex"

	"github.com/emirpasic/gods/sets/treeset"
	"github.com/emirpasic/gods/utils"
	"github.com/sirupsen/logrus"

	"github.com/planetscentral/filestore/dirfs"
	"github.com/planetscentral/filestore/objectid"
)

func objectIDComparator(a, b interface{}) int {
	return objectid.Compare(a.(objectid.ObjectId), b.(objectid.ObjectId))
}

// GarbageCollector finds the transitive closure of objects reachable
// from a set of root commits, then sweeps every loose-object
// subdirectory for files outside that closure (spec.md §4.8).
//
// Reference counts are process-lifetime only, so objects created in an
// earlier run of the server are never cleaned up by UnlinkObject once
// they become unreachable — that's this type's job. It only cleans up;
// it does not try to detect or repair inconsistencies beyond logging
// them.
//
// Run it as: call AddCommit for every root to keep, call CheckObject
// until it returns false, then call RemoveGarbageObjects until it
// returns false. Each call does a bounded slice of work so a caller can
// interleave GC with live traffic. If the store changes between calls,
// the sequence stays safe to resume as long as AddCommit is called with
// the new master commit before the next call — in the worst case it
// leaves an object behind that a later full run will still catch.
// Objects created after marking and not reachable from a commit passed
// to AddCommit are swept.
type GarbageCollector struct {
	store *Store
	log   logrus.FieldLogger

	toKeep  *treeset.Set
	toCheck *treeset.Set

	nextPrefix int
	numRemoved int
	numErrors  int
}

// NewGarbageCollector creates a GarbageCollector over store. log may be
// nil, in which case collection proceeds silently.
func NewGarbageCollector(store *Store, log logrus.FieldLogger) *GarbageCollector {
	if log == nil {
		log = discardLogger()
	}
	return &GarbageCollector{
		store:   store,
		log:     log,
		toKeep:  treeset.NewWith(utils.Comparator(objectIDComparator)),
		toCheck: treeset.NewWith(utils.Comparator(objectIDComparator)),
	}
}

// AddCommit marks id (a CommitObject) and its tree as reachable.
func (g *GarbageCollector) AddCommit(id objectid.ObjectId) {
	if id.IsNil() {
		return
	}
	if g.toKeep.Contains(id) {
		return
	}
	g.toKeep.Add(id)

	treeID, err := g.store.GetCommitTreeID(id)
	if err != nil {
		g.log.WithField("object_id", id).WithError(err).Error("error resolving as commit, ignoring")
		g.numErrors++
		return
	}
	g.AddTree(treeID)
}

// AddTree marks id (a TreeObject) for later expansion by CheckObject,
// unless it is already known to be kept.
func (g *GarbageCollector) AddTree(id objectid.ObjectId) {
	if !g.toKeep.Contains(id) {
		g.toCheck.Add(id)
	}
}

// AddFile marks id (a DataObject) as reachable.
func (g *GarbageCollector) AddFile(id objectid.ObjectId) {
	g.toKeep.Add(id)
}

// CheckObject expands one pending tree, marking it and every entry it
// contains as reachable (files directly, subtrees by queuing them for a
// later CheckObject call). Returns false once nothing is left to check.
func (g *GarbageCollector) CheckObject() bool {
	values := g.toCheck.Values()
	if len(values) == 0 {
		return false
	}
	id := values[0].(objectid.ObjectId)
	g.toCheck.Remove(id)
	g.toKeep.Add(id)

	payload, err := g.store.GetObject(id, TreeObject)
	if err != nil {
		g.log.WithField("object_id", id).WithError(err).Error("error resolving as tree, ignoring")
		g.numErrors++
	} else {
		rest := payload
		for {
			e, ok := ParseDirectoryEntry(&rest)
			if !ok {
				break
			}
			switch e.Type {
			case dirfs.Unknown:
				g.log.WithFields(logrus.Fields{"object_id": id, "entry": e.Name}).
					Warn("unrecognized child element")
				g.AddFile(e.ID)
			case dirfs.File:
				g.AddFile(e.ID)
			case dirfs.Directory:
				g.AddTree(e.ID)
			}
		}
	}

	g.nextPrefix = 0
	return true
}

// RemoveGarbageObjects sweeps one of the 256 loose-object subdirectories
// per call, deleting any file not in the keep set. It refuses to run
// (returning false without doing anything) while CheckObject still has
// pending work, since that would mean deleting objects before the keep
// set is complete. Returns false once every subdirectory has been swept.
func (g *GarbageCollector) RemoveGarbageObjects() bool {
	if !g.toCheck.Empty() {
		return false
	}
	if g.nextPrefix >= 256 {
		return false
	}

	b := byte(g.nextPrefix)
	if sub, ok := g.store.SubdirectoryHandler(b); ok {
		if err := g.sweepSubdirectory(b, sub); err != nil {
			g.log.WithField("prefix", firstByteName(b)).WithError(err).Warn("error cleaning up")
		}
	}

	g.nextPrefix++
	return true
}

func (g *GarbageCollector) sweepSubdirectory(b byte, sub dirfs.Handler) error {
	var toDelete []string
	err := sub.ReadContent(dirfs.CallbackFunc(func(info dirfs.Info) {
		id, ok := idFromSubdirEntry(b, info)
		if !ok {
			g.log.WithFields(logrus.Fields{"prefix": firstByteName(b), "name": info.Name}).
				Warn("unrecognized file, ignoring")
			return
		}
		if !g.toKeep.Contains(id) {
			toDelete = append(toDelete, info.Name)
		}
	}))
	if err != nil {
		return err
	}

	for _, name := range toDelete {
		if err := sub.RemoveFile(name); err != nil {
			return err
		}
		g.numRemoved++
	}
	return nil
}

func idFromSubdirEntry(b byte, info dirfs.Info) (objectid.ObjectId, bool) {
	if info.Type != dirfs.File || len(info.Name) != 2*(objectid.Size-1) {
		return objectid.ObjectId{}, false
	}
	raw, err := hex.DecodeString(info.Name)
	if err != nil || len(raw) != objectid.Size-1 {
		return objectid.ObjectId{}, false
	}

	var id objectid.ObjectId
	id[0] = b
	copy(id[1:], raw)
	if id.ToHex()[2:] != info.Name {
		return objectid.ObjectId{}, false
	}
	return id, true
}

// NumObjectsToKeep reports how many objects have been confirmed reachable so far.
func (g *GarbageCollector) NumObjectsToKeep() int { return g.toKeep.Size() }

// NumObjectsToCheck reports how many trees are still queued for CheckObject.
func (g *GarbageCollector) NumObjectsToCheck() int { return g.toCheck.Size() }

// NumObjectsRemoved reports how many loose object files RemoveGarbageObjects has deleted.
func (g *GarbageCollector) NumObjectsRemoved() int { return g.numRemoved }

// NumErrors reports how many objects could not be resolved while
// walking the reachable set. A nonzero count means the store is
// guaranteed inconsistent; zero does not guarantee it is intact.
func (g *GarbageCollector) NumErrors() int { return g.numErrors }
