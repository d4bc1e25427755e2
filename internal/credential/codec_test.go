package credential

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func newTestCodec(t *testing.T) *Codec {
	t.Helper()
	c, err := NewCodec("test-secret")
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	return c
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	c := newTestCodec(t)
	p := TicketPayload{
		TicketID:     42,
		EventID:      7,
		BookingID:    1001,
		TicketNumber: "SUM7-K7PQ2X",
		Section:      "FLOOR",
		RowLabel:     "B",
		SeatNumber:   14,
		IssuedAt:     time.Now().UTC().Unix(),
	}
	cred, err := c.Encode(p)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !strings.HasPrefix(cred, "TG1.") {
		t.Fatalf("credential missing format prefix: %q", cred)
	}
	dec, err := c.Decode(cred)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if dec.Legacy {
		t.Fatal("round trip took the legacy path")
	}
	if dec.Payload == nil || *dec.Payload != p {
		t.Fatalf("payload mismatch: got %+v want %+v", dec.Payload, p)
	}
}

func TestEncodeIsNonDeterministic(t *testing.T) {
	c := newTestCodec(t)
	p := TicketPayload{TicketID: 1, EventID: 1, BookingID: 1, TicketNumber: "EV1-AAAA", IssuedAt: 1}
	a, err := c.Encode(p)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	b, err := c.Encode(p)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if a == b {
		t.Fatal("two encodings of the same payload are identical; nonce reuse?")
	}
}

func TestDecodeRejectsTamperedCredential(t *testing.T) {
	c := newTestCodec(t)
	cred, err := c.Encode(TicketPayload{TicketID: 9, EventID: 2, BookingID: 3, TicketNumber: "EV2-BBBB", IssuedAt: 1})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	// Flip a character in the ciphertext body.
	body := []byte(cred)
	i := len(body) - 2
	if body[i] == 'A' {
		body[i] = 'B'
	} else {
		body[i] = 'A'
	}
	_, err = c.Decode(string(body))
	var de *DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("expected DecodeError, got %v", err)
	}
}

func TestDecodeRejectsWrongKey(t *testing.T) {
	c := newTestCodec(t)
	other, err := NewCodec("a-different-secret")
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	cred, err := other.Encode(TicketPayload{TicketID: 5, EventID: 5, BookingID: 5, TicketNumber: "EV5-CCCC", IssuedAt: 1})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if _, err := c.Decode(cred); err == nil {
		t.Fatal("credential sealed under a different key decoded successfully")
	}
}

func TestDecodeLegacyTicketNumber(t *testing.T) {
	c := newTestCodec(t)
	dec, err := c.Decode("SUM42-K7PQ2X")
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !dec.Legacy {
		t.Fatal("expected legacy path")
	}
	if dec.TicketNumber != "SUM42-K7PQ2X" {
		t.Fatalf("ticket number = %q", dec.TicketNumber)
	}
	if dec.Payload != nil {
		t.Fatal("legacy decode must not carry a payload")
	}
}

func TestDecodeGarbage(t *testing.T) {
	c := newTestCodec(t)
	cases := []string{
		"",
		"   ",
		"not a credential",
		"TG1.%%%%",
		"TG1." + strings.Repeat("A", 8), // valid base64, too short for a nonce
		"sum42-k7pq2x",                  // lowercase never matches the legacy pattern
		"1234567890123456789",           // no separator
	}
	for _, in := range cases {
		_, err := c.Decode(in)
		var de *DecodeError
		if !errors.As(err, &de) {
			t.Errorf("Decode(%q): expected DecodeError, got %v", in, err)
		}
	}
}

func TestNewCodecEmptySecret(t *testing.T) {
	if _, err := NewCodec(""); !errors.Is(err, ErrEmptySecret) {
		t.Fatalf("expected ErrEmptySecret, got %v", err)
	}
}

func TestIsTicketNumber(t *testing.T) {
	if !IsTicketNumber("EV1-AAAA") {
		t.Fatal("EV1-AAAA should be a valid ticket number")
	}
	if IsTicketNumber("ev1-aaaa") || IsTicketNumber("EV1AAAA") || IsTicketNumber("E-A") {
		t.Fatal("malformed numbers accepted")
	}
}
