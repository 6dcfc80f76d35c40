// Package session is the control surface over one capture-and-tag pipeline.
//
// A Session owns a location tracker, a frame source, a tag coordinator, and an
// upload sink for the duration of a run. Start brings them up in dependency
// order; Stop tears them down capture first, so every delivered frame is
// tagged before the upload queue is drained or discarded and the tracker is
// released last. Faults from any component surface as Events; none of them
// stop the process.
package session
