package location

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"fieldcam/internal/config"
)

func sentence(body string) string {
	var sum byte
	for i := 0; i < len(body); i++ {
		sum ^= body[i]
	}
	return fmt.Sprintf("$%s*%02X", body, sum)
}

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-6 }

func TestNMEAParserGGAAndRMC(t *testing.T) {
	received := time.Unix(1_700_000_000, 0)
	var parser nmeaParser

	gga := sentence("GPGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,")
	fix, ok, err := parser.parse(gga, received)
	if err != nil || !ok {
		t.Fatalf("parse GGA: ok=%v err=%v", ok, err)
	}
	if !approx(fix.Latitude, 48+7.038/60) || !approx(fix.Longitude, 11+31.0/60) {
		t.Fatalf("unexpected coordinates: %+v", fix)
	}
	if !approx(fix.AccuracyM, 0.9*nominalUERE) {
		t.Fatalf("unexpected accuracy: %v", fix.AccuracyM)
	}
	if !fix.Timestamp.Equal(received) {
		t.Fatalf("expected receive timestamp, got %v", fix.Timestamp)
	}

	rmc := sentence("GNRMC,123520,A,3345.000,S,07030.000,W,022.4,084.4,230394,003.1,W")
	fix, ok, err = parser.parse(rmc, received)
	if err != nil || !ok {
		t.Fatalf("parse RMC: ok=%v err=%v", ok, err)
	}
	if !approx(fix.Latitude, -(33+45.0/60)) || !approx(fix.Longitude, -(70+30.0/60)) {
		t.Fatalf("unexpected southern/western coordinates: %+v", fix)
	}
	if !approx(fix.AccuracyM, 0.9*nominalUERE) {
		t.Fatalf("RMC should carry last HDOP accuracy, got %v", fix.AccuracyM)
	}
}

func TestNMEAParserSkipsInvalid(t *testing.T) {
	var parser nmeaParser
	now := time.Now()
	cases := []string{
		sentence("GPGGA,123519,4807.038,N,01131.000,E,0,00,,,M,,M,,"), // no fix quality
		sentence("GPRMC,123519,V,4807.038,N,01131.000,E,,,230394,,"),  // void status
		sentence("GPGSV,3,1,11,03,03,111,00"),                        // unrelated sentence
	}
	for _, line := range cases {
		if _, ok, _ := parser.parse(line, now); ok {
			t.Fatalf("expected %q to be skipped", line)
		}
	}

	bad := sentence("GPGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,")
	bad = bad[:len(bad)-2] + "00"
	if _, ok, err := parser.parse(bad, now); err == nil || ok {
		t.Fatalf("expected checksum error, got ok=%v err=%v", ok, err)
	}
	if _, ok, err := parser.parse("GPGGA,123519,4807.038,N", now); err == nil || ok {
		t.Fatalf("expected framing error, got ok=%v err=%v", ok, err)
	}
}

func TestNMEAProviderStreamsFixes(t *testing.T) {
	input := strings.Join([]string{
		"garbage line",
		sentence("GPGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,"),
		sentence("GPRMC,123519,A,4807.038,N,01131.000,E,022.4,084.4,230394,003.1,W"),
	}, "\r\n") + "\r\n"

	provider := &NMEAProvider{
		Device: "/dev/ttyFAKE",
		open: func(string) (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader(input)), nil
		},
	}
	if err := provider.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer provider.Close()

	var got []Fix
	err := provider.Run(context.Background(), func(f Fix) { got = append(got, f) })
	if err == nil {
		t.Fatal("expected end-of-stream error from serial reader")
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 fixes, got %d", len(got))
	}
}

func TestNMEAProviderMissingDeviceIsUnavailable(t *testing.T) {
	provider := &NMEAProvider{Device: filepath.Join(t.TempDir(), "ttyACM9")}
	err := provider.Open(context.Background())
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
}

func TestGPSDProviderReadsTPV(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	watchSeen := make(chan string, 1)
	hold := make(chan struct{})
	defer close(hold)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		fmt.Fprintln(conn, `{"class":"VERSION","release":"3.25"}`)
		buf := make([]byte, 256)
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		n, _ := conn.Read(buf)
		watchSeen <- string(buf[:n])
		fmt.Fprintln(conn, `{"class":"TPV","mode":1}`)
		fmt.Fprintln(conn, `{"class":"TPV","mode":3,"lat":51.5,"lon":-0.12,"epx":4.0,"epy":6.0}`)
		<-hold
	}()

	provider := &GPSDProvider{Addr: ln.Addr().String()}
	if err := provider.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer provider.Close()

	ctx, cancel := context.WithCancel(context.Background())
	fixes := make(chan Fix, 4)
	runDone := make(chan error, 1)
	go func() { runDone <- provider.Run(ctx, func(f Fix) { fixes <- f }) }()

	select {
	case line := <-watchSeen:
		if !strings.Contains(line, `"enable":true`) {
			t.Fatalf("unexpected watch command %q", line)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("gpsd never received WATCH")
	}
	select {
	case fix := <-fixes:
		if fix.Latitude != 51.5 || fix.Longitude != -0.12 || fix.AccuracyM != 6.0 {
			t.Fatalf("unexpected fix: %+v", fix)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected a fix from TPV report")
	}

	cancel()
	select {
	case err := <-runDone:
		if err != nil {
			t.Fatalf("Run after cancel: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}

func TestGPSDProviderRefusedIsUnavailable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	ln.Close()

	err = (&GPSDProvider{Addr: addr}).Open(context.Background())
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
}

func TestStaticProviderRestampsFix(t *testing.T) {
	ts := time.Unix(500, 0)
	provider := &StaticProvider{Latitude: 10, Longitude: 20, AccuracyM: 3, Interval: time.Hour, now: func() time.Time { return ts }}
	ctx, cancel := context.WithCancel(context.Background())
	var got Fix
	done := make(chan struct{})
	go func() {
		_ = provider.Run(ctx, func(f Fix) { got = f; cancel() })
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("static provider did not stop")
	}
	if got.Latitude != 10 || got.Longitude != 20 || !got.Timestamp.Equal(ts) {
		t.Fatalf("unexpected fix: %+v", got)
	}
}

func TestNewProviderSelectsBackend(t *testing.T) {
	cases := map[string]string{"nmea": "nmea", "gpsd": "gpsd", "static": "static"}
	for name, want := range cases {
		p, err := NewProvider(config.Location{Provider: name})
		if err != nil {
			t.Fatalf("NewProvider(%s): %v", name, err)
		}
		if p.Name() != want {
			t.Fatalf("NewProvider(%s) = %s", name, p.Name())
		}
	}
	if _, err := NewProvider(config.Location{Provider: "glonass"}); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}
