// Package wire implements the binary frame format spoken on every
// websocket connection: one mode byte followed by a UTF-8 JSON body,
// gzip-compressed when the mode byte says so.
package wire

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Frame mode bytes. The mode is always the first byte of a frame.
const (
	ModeRaw  byte = 0
	ModeGzip byte = 1
)

// CompressThreshold is the minimum serialized size, in bytes, at which a
// frame is gzip-compressed. Tiny control messages (heartbeats) are not
// worth the compression overhead; larger broadcast payloads are.
const CompressThreshold = 200

// Decode failures. Each one is local to the frame that caused it: the
// session replies with an error frame and keeps going.
var (
	ErrEmptyFrame     = errors.New("wire: empty frame")
	ErrCorruptFrame   = errors.New("wire: corrupt compressed frame")
	ErrInvalidPayload = errors.New("wire: invalid frame payload")
)

// Encode serializes v to JSON and prefixes the mode byte. When compress is
// set and the serialized body reaches CompressThreshold, the body is
// gzip-compressed and the frame carries ModeGzip.
func Encode(v any, compress bool) ([]byte, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}

	if !compress || len(body) < CompressThreshold {
		frame := make([]byte, 0, len(body)+1)
		frame = append(frame, ModeRaw)
		return append(frame, body...), nil
	}

	var buf bytes.Buffer
	buf.WriteByte(ModeGzip)
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(body); err != nil {
		return nil, fmt.Errorf("compress frame: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("compress frame: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode reads the mode byte, decompresses the body if needed, and
// unmarshals the JSON object into out. Decode(Encode(x)) == x for either
// compress setting.
func Decode(frame []byte, out any) error {
	if len(frame) == 0 {
		return ErrEmptyFrame
	}

	body := frame[1:]
	switch frame[0] {
	case ModeRaw:
	case ModeGzip:
		zr, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return ErrCorruptFrame
		}
		body, err = io.ReadAll(zr)
		if err != nil {
			return ErrCorruptFrame
		}
		if err := zr.Close(); err != nil {
			return ErrCorruptFrame
		}
	default:
		return ErrInvalidPayload
	}

	if err := json.Unmarshal(body, out); err != nil {
		return ErrInvalidPayload
	}
	return nil
}
