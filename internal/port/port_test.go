package port

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"testing"
)

func TestWriteThenReadRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	out := New(nil, &buf)
	if err := out.WriteEvent(Event{Type: EvtAck, ReqID: "a", Data: Ack{For: "init", OK: true}}); err != nil {
		t.Fatalf("write: %v", err)
	}

	// read the raw frame back and compare its payload byte for byte
	in := New(&buf, nil)
	payload, err := in.readFrame()
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	want := `{"type":"ack","data":{"for":"init","ok":true},"req_id":"a"}`
	if string(payload) != want {
		t.Fatalf("payload %s", payload)
	}
}

func TestReadCommand(t *testing.T) {
	body := []byte(`{"type":"setSymbol","symbol":"BTC/USD","req_id":"r1"}`)
	var buf bytes.Buffer
	hdr := make([]byte, 4)
	binary.BigEndian.PutUint32(hdr, uint32(len(body)))
	buf.Write(hdr)
	buf.Write(body)

	cmd, err := New(&buf, nil).ReadCommand()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if cmd.Type != CmdSetSymbol || cmd.Symbol != "BTC/USD" || cmd.ReqID != "r1" {
		t.Fatalf("cmd %+v", cmd)
	}
}

func TestReadCommandSplitAcrossWrites(t *testing.T) {
	body := []byte(`{"type":"shutdown"}`)
	hdr := make([]byte, 4)
	binary.BigEndian.PutUint32(hdr, uint32(len(body)))

	pr, pw := io.Pipe()
	go func() {
		pw.Write(hdr[:2])
		pw.Write(hdr[2:])
		pw.Write(body[:5])
		pw.Write(body[5:])
		pw.Close()
	}()

	cmd, err := New(pr, nil).ReadCommand()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if cmd.Type != CmdShutdown {
		t.Fatalf("cmd %+v", cmd)
	}
}

func TestReadClosed(t *testing.T) {
	if _, err := New(bytes.NewReader(nil), nil).ReadCommand(); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestReadBadPayload(t *testing.T) {
	body := []byte(`{oops`)
	var buf bytes.Buffer
	hdr := make([]byte, 4)
	binary.BigEndian.PutUint32(hdr, uint32(len(body)))
	buf.Write(hdr)
	buf.Write(body)

	_, err := New(&buf, nil).ReadCommand()
	var bad *BadPayloadError
	if !errors.As(err, &bad) {
		t.Fatalf("expected BadPayloadError, got %v", err)
	}
}
