// Package tagging pairs captured frames with the most recent location fix.
//
// The Coordinator runs inline on the capture delivery goroutine. It reads the
// tracker's latest fix without blocking, decides whether that fix is stale
// relative to the frame's capture time, and hands the result to a Sink without
// waiting for the upload to happen. A fix that arrives after a frame was tagged
// never changes that frame's tag.
package tagging
