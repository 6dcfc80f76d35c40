package upload

import (
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"

	"fieldcam/internal/tagging"
)

// EnvelopeVersion is bumped on incompatible envelope changes.
const EnvelopeVersion = 1

// ContentType is the media type of an encoded envelope.
const ContentType = "application/cbor"

// Envelope is the wire form of a tagged frame.
type Envelope struct {
	Version    int        `cbor:"v"`
	TicketID   string     `cbor:"ticket"`
	SessionID  string     `cbor:"session,omitempty"`
	Seq        uint64     `cbor:"seq"`
	CapturedAt time.Time  `cbor:"captured_at"`
	Width      int        `cbor:"width"`
	Height     int        `cbor:"height"`
	Format     string     `cbor:"format"`
	HasFix     bool       `cbor:"has_fix"`
	Stale      bool       `cbor:"stale"`
	Latitude   float64    `cbor:"lat,omitempty"`
	Longitude  float64    `cbor:"lon,omitempty"`
	AccuracyM  float64    `cbor:"accuracy_m,omitempty"`
	FixTime    *time.Time `cbor:"fix_time,omitempty"`
	FixAgeMS   int64      `cbor:"fix_age_ms,omitempty"`
	Data       []byte     `cbor:"data"`
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.EncOptions{Time: cbor.TimeRFC3339Nano}.EncMode()
	if err != nil {
		panic(fmt.Sprintf("cbor enc mode: %v", err))
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("cbor dec mode: %v", err))
	}
}

// NewEnvelope builds the envelope for a tagged frame.
func NewEnvelope(ticketID string, tf tagging.TaggedFrame) Envelope {
	env := Envelope{
		Version:    EnvelopeVersion,
		TicketID:   ticketID,
		SessionID:  tf.SessionID,
		Seq:        tf.Frame.Seq,
		CapturedAt: tf.Frame.Timestamp.UTC(),
		Width:      tf.Frame.Width,
		Height:     tf.Frame.Height,
		Format:     tf.Frame.Format,
		Stale:      tf.Stale,
		Data:       tf.Frame.Data,
	}
	if tf.Fix != nil {
		fixTime := tf.Fix.Timestamp.UTC()
		env.HasFix = true
		env.Latitude = tf.Fix.Latitude
		env.Longitude = tf.Fix.Longitude
		env.AccuracyM = tf.Fix.AccuracyM
		env.FixTime = &fixTime
		env.FixAgeMS = tf.FixAge.Milliseconds()
	}
	return env
}

// Encode serialises a tagged frame as a CBOR envelope.
func Encode(ticketID string, tf tagging.TaggedFrame) ([]byte, error) {
	payload, err := encMode.Marshal(NewEnvelope(ticketID, tf))
	if err != nil {
		return nil, fmt.Errorf("encode envelope: %w", err)
	}
	return payload, nil
}

// Decode parses an envelope produced by Encode.
func Decode(payload []byte) (Envelope, error) {
	var env Envelope
	if err := decMode.Unmarshal(payload, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Version != EnvelopeVersion {
		return Envelope{}, fmt.Errorf("decode envelope: unsupported version %d", env.Version)
	}
	return env, nil
}
