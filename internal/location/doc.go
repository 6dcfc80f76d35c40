// Package location keeps the freshest GPS fix available to the rest of the
// pipeline.
//
// A Tracker owns one Provider (NMEA serial, gpsd, or a fixed position) and runs
// it on its own goroutine. Each fix replaces the previous one through an atomic
// pointer swap, so readers on the capture path never block and never observe a
// partially written fix.
package location
