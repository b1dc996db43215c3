package protocol_test

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/momentics/hioload-gps/api"
	"github.com/momentics/hioload-gps/protocol"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	for _, n := range []int{0, 1, 125, 126, 65535, 65536} {
		payload := bytes.Repeat([]byte{'x'}, n)
		data, err := protocol.EncodeText(payload)
		if err != nil {
			t.Fatalf("len %d: encode: %v", n, err)
		}
		f, used, err := protocol.DecodeFrame(data)
		if err != nil {
			t.Fatalf("len %d: decode: %v", n, err)
		}
		if used != len(data) {
			t.Errorf("len %d: consumed %d of %d bytes", n, used, len(data))
		}
		if f.PayloadLen != uint64(n) || !bytes.Equal(f.Payload, payload) {
			t.Errorf("len %d: payload mismatch (got len %d)", n, f.PayloadLen)
		}
		if !f.Fin || f.Masked || !f.IsText() {
			t.Errorf("len %d: unexpected header %+v", n, f)
		}
	}
}

func TestEncodeLengthBoundaries(t *testing.T) {
	cases := []struct {
		n      int
		header int
		escape byte
	}{
		{0, 2, 0},
		{125, 2, 125},
		{126, 4, 126},
		{65535, 4, 126},
		{65536, 10, 127},
	}
	for _, tc := range cases {
		data, err := protocol.EncodeText(make([]byte, tc.n))
		if err != nil {
			t.Fatalf("len %d: %v", tc.n, err)
		}
		if got := len(data) - tc.n; got != tc.header {
			t.Errorf("len %d: header %d bytes, want %d", tc.n, got, tc.header)
		}
		if got := protocol.HeaderLen(tc.n); got != tc.header {
			t.Errorf("HeaderLen(%d) = %d, want %d", tc.n, got, tc.header)
		}
		if data[0] != 0x81 {
			t.Errorf("len %d: byte0 = %#x, want 0x81", tc.n, data[0])
		}
		if data[1] != tc.escape {
			t.Errorf("len %d: byte1 = %d, want %d", tc.n, data[1], tc.escape)
		}
		switch tc.header {
		case 4:
			if got := binary.BigEndian.Uint16(data[2:]); int(got) != tc.n {
				t.Errorf("len %d: 16-bit length %d", tc.n, got)
			}
		case 10:
			if got := binary.BigEndian.Uint64(data[2:]); int(got) != tc.n {
				t.Errorf("len %d: 64-bit length %d", tc.n, got)
			}
		}
	}
}

func TestDecodeMaskedPayload(t *testing.T) {
	data := []byte{0x81, 0x85, 0x01, 0x02, 0x03, 0x04, 0x01, 0x02, 0x03, 0x04, 0x05}
	f, used, err := protocol.DecodeFrame(data)
	if err != nil {
		t.Fatal(err)
	}
	if used != len(data) {
		t.Errorf("consumed %d, want %d", used, len(data))
	}
	if !f.Masked || f.MaskKey != [4]byte{1, 2, 3, 4} {
		t.Errorf("mask not recorded: %+v", f)
	}
	want := []byte{0x00, 0x00, 0x00, 0x00, 0x04}
	if !bytes.Equal(f.Payload, want) {
		t.Errorf("payload = %v, want %v", f.Payload, want)
	}
}

func TestDecodeRFCExamples(t *testing.T) {
	// RFC 6455 section 5.7
	cases := []struct {
		name string
		data []byte
		op   byte
		want string
	}{
		{"unmasked hello", []byte{0x81, 0x05, 0x48, 0x65, 0x6c, 0x6c, 0x6f}, protocol.OpcodeText, "Hello"},
		{"masked hello", []byte{0x81, 0x85, 0x37, 0xfa, 0x21, 0x3d, 0x7f, 0x9f, 0x4d, 0x51, 0x58}, protocol.OpcodeText, "Hello"},
		{"unmasked ping", []byte{0x89, 0x05, 0x48, 0x65, 0x6c, 0x6c, 0x6f}, protocol.OpcodePing, "Hello"},
		{"masked pong", []byte{0x8a, 0x85, 0x37, 0xfa, 0x21, 0x3d, 0x7f, 0x9f, 0x4d, 0x51, 0x58}, protocol.OpcodePong, "Hello"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f, _, err := protocol.DecodeFrame(tc.data)
			if err != nil {
				t.Fatal(err)
			}
			if f.Opcode != tc.op || f.Text() != tc.want {
				t.Errorf("got opcode %#x payload %q", f.Opcode, f.Payload)
			}
		})
	}
}

func TestDecodeReservedBits(t *testing.T) {
	f, _, err := protocol.DecodeFrame([]byte{0xF1, 0x00})
	if err != nil {
		t.Fatal(err)
	}
	if !f.Rsv1 || !f.Rsv2 || !f.Rsv3 || !f.Fin || f.Opcode != protocol.OpcodeText {
		t.Errorf("reserved bits not preserved: %+v", f)
	}
}

func TestDecodeTruncated(t *testing.T) {
	cases := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"one byte", []byte{0x81}},
		{"short 16-bit length", []byte{0x81, 126, 0x00}},
		{"short 64-bit length", []byte{0x81, 127, 0, 0, 0, 0}},
		{"short mask key", []byte{0x81, 0x85, 0x01, 0x02}},
		{"short payload", []byte{0x81, 0x05, 'H', 'e'}},
		{"short masked payload", []byte{0x81, 0x82, 1, 2, 3, 4, 0x00}},
		{"short extended payload", append([]byte{0x81, 126, 0x00, 0xC8}, make([]byte, 100)...)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f, used, err := protocol.DecodeFrame(tc.data)
			if f != nil || used != 0 {
				t.Fatalf("partial frame returned: %+v, %d", f, used)
			}
			if !errors.Is(err, protocol.ErrIncomplete) {
				t.Fatalf("err = %v, want ErrIncomplete", err)
			}
			if !errors.Is(err, api.ErrDecode) {
				t.Errorf("err %v does not match api.ErrDecode", err)
			}
			var de *protocol.DecodeError
			if !errors.As(err, &de) || de.Have != len(tc.data) {
				t.Errorf("DecodeError not populated: %#v", err)
			}
		})
	}
}

func TestDecodeTooLarge(t *testing.T) {
	hdr := []byte{0x81, 127, 0x80, 0, 0, 0, 0, 0, 0, 0}
	if _, _, err := protocol.DecodeFrame(hdr); !errors.Is(err, protocol.ErrFrameTooLarge) {
		t.Errorf("msb length: err = %v, want ErrFrameTooLarge", err)
	}

	data, _ := protocol.EncodeText(make([]byte, 200))
	_, _, err := protocol.DecodeFrameLimit(data[:4], 100)
	if !errors.Is(err, protocol.ErrFrameTooLarge) {
		t.Errorf("limit: err = %v, want ErrFrameTooLarge", err)
	}
	var de *protocol.DecodeError
	if !errors.As(err, &de) || de.Need != uint64(len(data)) {
		t.Errorf("limit: want Need = whole frame (%d), got %#v", len(data), err)
	}

	masked, _ := protocol.MaskFrame(protocol.OpcodeText, make([]byte, 200), [4]byte{1, 2, 3, 4})
	if _, _, err := protocol.DecodeFrameLimit(masked, 100); !errors.As(err, &de) || de.Need != uint64(len(masked)) {
		t.Errorf("masked limit: want Need = %d, got %#v", len(masked), err)
	}
	if _, _, err := protocol.DecodeFrameLimit(data, 200); err != nil {
		t.Errorf("limit at size: %v", err)
	}
}

func TestDecodeBackToBack(t *testing.T) {
	a, _ := protocol.MaskFrame(protocol.OpcodeText, []byte("first"), [4]byte{9, 8, 7, 6})
	b := protocol.GeneratePing()
	stream := append(append([]byte{}, a...), b...)

	f1, n1, err := protocol.DecodeFrame(stream)
	if err != nil {
		t.Fatal(err)
	}
	f2, n2, err := protocol.DecodeFrame(stream[n1:])
	if err != nil {
		t.Fatal(err)
	}
	if f1.Text() != "first" || !f2.IsPing() || n1+n2 != len(stream) {
		t.Errorf("got %q / %#x, consumed %d+%d of %d", f1.Payload, f2.Opcode, n1, n2, len(stream))
	}
}

func TestDecodeDoesNotAliasInput(t *testing.T) {
	data := []byte{0x81, 0x02, 'O', 'K'}
	f, _, err := protocol.DecodeFrame(data)
	if err != nil {
		t.Fatal(err)
	}
	data[2] = 'X'
	if f.Text() != "OK" {
		t.Errorf("payload aliases input buffer: %q", f.Payload)
	}
}

func TestMaskFrameRoundTrip(t *testing.T) {
	key := [4]byte{0xDE, 0xAD, 0xBE, 0xEF}
	payload := []byte("32,1681593747,44.8159745,20.4601243")
	data, err := protocol.MaskFrame(protocol.OpcodeText, payload, key)
	if err != nil {
		t.Fatal(err)
	}
	if data[1]&protocol.MaskBit == 0 {
		t.Fatal("mask bit not set")
	}
	if bytes.Contains(data, payload) {
		t.Error("payload sent in clear")
	}
	f, _, err := protocol.DecodeFrame(data)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(f.Payload, payload) {
		t.Errorf("payload = %q", f.Payload)
	}
}

func TestEncodeControlTooLarge(t *testing.T) {
	if _, err := protocol.EncodeFrame(protocol.OpcodePing, make([]byte, 126)); !errors.Is(err, protocol.ErrControlTooLarge) {
		t.Errorf("err = %v, want ErrControlTooLarge", err)
	}
	if _, err := protocol.EncodeFrame(protocol.OpcodePing, make([]byte, 125)); err != nil {
		t.Errorf("125 byte ping: %v", err)
	}
}

func TestControlFrames(t *testing.T) {
	cases := []struct {
		name string
		gen  func() []byte
		want []byte
	}{
		{"ping", protocol.GeneratePing, []byte{0x89, 0x00}},
		{"pong", protocol.GeneratePong, []byte{0x8A, 0x00}},
		{"close", protocol.GenerateClose, []byte{0x88, 0x00}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			first := tc.gen()
			if !bytes.Equal(first, tc.want) {
				t.Fatalf("got %#v, want %#v", first, tc.want)
			}
			first[0] = 0
			if again := tc.gen(); !bytes.Equal(again, tc.want) {
				t.Errorf("generator shares state: %#v", again)
			}
		})
	}
}

func TestOpcodePredicates(t *testing.T) {
	for op := byte(0); op <= 0xF; op++ {
		text, ping, pong, cls := protocol.IsText(op), protocol.IsPing(op), protocol.IsPong(op), protocol.IsClose(op)
		count := 0
		for _, b := range []bool{text, ping, pong, cls} {
			if b {
				count++
			}
		}
		switch op {
		case 0x1:
			if !text || count != 1 {
				t.Errorf("%#x: want only IsText", op)
			}
		case 0x8:
			if !cls || count != 1 {
				t.Errorf("%#x: want only IsClose", op)
			}
		case 0x9:
			if !ping || count != 1 {
				t.Errorf("%#x: want only IsPing", op)
			}
		case 0xA:
			if !pong || count != 1 {
				t.Errorf("%#x: want only IsPong", op)
			}
		default:
			if count != 0 {
				t.Errorf("%#x: no predicate should hold", op)
			}
		}

		f := protocol.Frame{Opcode: op}
		if f.IsText() != text || f.IsPing() != ping || f.IsPong() != pong || f.IsClose() != cls {
			t.Errorf("%#x: method predicates disagree", op)
		}
	}
}
