// Package capture drives a camera device and delivers frames one at a time.
//
// A Source owns a Device and a dedicated delivery goroutine. Frames reach the
// handler strictly in capture order, and the next frame is not read from the
// device until the previous handler call returns. Corrupt frames are dropped
// without consuming a sequence number; a device read failure halts delivery
// and is reported as ErrCaptureInterrupted until Start is called again.
//
// Capture modes (resolution, rate, pixel format) come from a Catalog made of
// the built-in modes plus optional YAML presets.
package capture
