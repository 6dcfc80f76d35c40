// Package preflight provides readiness checks for the device nodes, network
// endpoints, and directories fieldcam depends on.
//
// These checks run in two contexts:
//   - The daemon calls RunAll at startup and logs failures so an operator can
//     see a missing camera or unreachable gpsd before the first session.
//   - The CLI "fieldcam status" command renders the same results as a table.
//
// CheckDevice is also used directly by the capture and location backends to
// classify open failures as permission problems or missing hardware.
package preflight
