package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/mattn/go-isatty"

	"fieldcam/internal/api"
	"fieldcam/internal/daemonctl"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

const (
	statusLabelWidth = 16
	statusIndent     = "  "
)

func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	statusText := fmt.Sprintf("[%s]", statusKindLabel(kind))
	if message != "" {
		statusText += " " + message
	}
	base := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, label+":", statusText)
	if colorize {
		if color := statusKindColor(kind); color != "" {
			return color + base + ansiReset
		}
	}
	return base
}

func statusKindLabel(kind statusKind) string {
	switch kind {
	case statusOK:
		return "OK"
	case statusWarn:
		return "WARN"
	case statusError:
		return "ERROR"
	default:
		return "INFO"
	}
}

func statusKindColor(kind statusKind) string {
	switch kind {
	case statusOK:
		return ansiGreen
	case statusWarn:
		return ansiYellow
	case statusError:
		return ansiRed
	case statusInfo:
		return ansiBlue
	default:
		return ""
	}
}

func statusKindFromSeverity(severity daemonctl.Severity) statusKind {
	switch severity {
	case daemonctl.SeverityOK:
		return statusOK
	case daemonctl.SeverityWarn:
		return statusWarn
	case daemonctl.SeverityError:
		return statusError
	default:
		return statusInfo
	}
}

func renderSectionHeader(title string, colorize bool) []string {
	line := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	rule := strings.Repeat("-", len(line))
	if colorize {
		line = ansiBlue + line + ansiReset
		rule = ansiBlue + rule + ansiReset
	}
	return []string{line, rule}
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func sessionRows(st api.SessionStatus) [][]string {
	rows := [][]string{
		{"State", st.State},
		{"Mode", st.Mode},
		{"Staleness threshold", fmt.Sprintf("%d ms", st.StalenessThresholdMS)},
		{"Queue capacity", strconv.Itoa(st.QueueCapacity)},
	}
	if st.SessionID != "" {
		rows = append([][]string{{"Session", st.SessionID}}, rows...)
	}
	if st.StartedAt != "" {
		rows = append(rows, []string{"Started", st.StartedAt})
	}
	if st.StoppedAt != "" {
		rows = append(rows, []string{"Stopped", st.StoppedAt})
	}
	return rows
}

func counterRows(c api.Counters) [][]string {
	u := func(v uint64) string { return strconv.FormatUint(v, 10) }
	return [][]string{
		{"Frames captured", u(c.FramesCaptured)},
		{"Frames dropped", u(c.FramesDropped)},
		{"Fixes received", u(c.FixesReceived)},
		{"Frames tagged", u(c.FramesTagged)},
		{"Stale tags", u(c.StaleTags)},
		{"Without fix", u(c.NoFixTags)},
		{"Queue-full drops", u(c.QueueFullDrops)},
		{"Uploads sent", u(c.UploadsSent)},
		{"Uploads failed", u(c.UploadsFailed)},
		{"Uploads discarded", u(c.UploadsDiscarded)},
		{"Upload retries", u(c.UploadRetries)},
		{"Queue depth", strconv.Itoa(c.QueueDepth)},
	}
}

func ledgerRows(stats map[string]int) [][]string {
	keys := make([]string, 0, len(stats))
	for k := range stats {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	rows := make([][]string, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, []string{k, strconv.Itoa(stats[k])})
	}
	return rows
}
