package persistence

// revertEntry remembers one recently seen checksum and the revision that
// produced it.
type revertEntry struct {
	checksum string
	revID    int64
}

// revertDetector identifies revert edits: a revision whose content checksum
// (sha1) matches one seen within the last radius revisions of the same page,
// other than the immediately preceding one (which would just be a null
// edit, not a revert). Grounded on the documented behavior of the `mw.lib
// .reverts` checksum-history detector referenced by the original
// diffs2persistence.py, which this package is not able to import directly
// since it has no Go port in the pack.
type revertDetector struct {
	radius  int
	entries []revertEntry
}

func newRevertDetector(radius int) *revertDetector {
	return &revertDetector{radius: radius}
}

// process records checksum/revID and reports the revision id of an earlier
// entry sharing the same checksum, if this revision reverts to one.
func (d *revertDetector) process(checksum string, revID int64) (revertedToID int64, isRevert bool) {
	d.rotate()

	skipped := 0

	for i := len(d.entries) - 1; i >= 0; i-- {
		if d.entries[i].checksum == checksum {
			if skipped > 0 {
				revertedToID = d.entries[i].revID
				isRevert = true
			}

			break
		}

		skipped++
	}

	d.remember(checksum, revID)

	return revertedToID, isRevert
}

// remember moves (or inserts) checksum to the most-recent position.
func (d *revertDetector) remember(checksum string, revID int64) {
	for i, e := range d.entries {
		if e.checksum == checksum {
			d.entries = append(d.entries[:i], d.entries[i+1:]...)

			break
		}
	}

	d.entries = append(d.entries, revertEntry{checksum: checksum, revID: revID})
}

// rotate trims history down to the configured radius before a lookup, so a
// match can only be found within the last `radius` distinct revisions.
func (d *revertDetector) rotate() {
	if d.radius <= 0 {
		return
	}

	for len(d.entries) > d.radius {
		d.entries = d.entries[1:]
	}
}
