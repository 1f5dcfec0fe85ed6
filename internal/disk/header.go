// Package disk implements the CKD (Count-Key-Data) disk image engine: the
// on-disk track layout, the rotational byte stream, and the seek/attach/
// format operations a 2311/2314-class drive exposes to its control unit.
//
// The cylinder buffer is a plain []byte owned by Disk; every access goes
// through an offset index, never a carried pointer.
package disk

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Magic is the 8-byte ASCII signature at offset 0 of every CKD image.
const Magic = "CKD_P370"

// HeaderSize is the fixed size of the image header, padded with zeros.
const HeaderSize = 512

// Header is the bit-exact 512-byte image header. All multi-byte integers
// are little-endian.
type Header struct {
	Heads      uint32 // heads per cylinder
	TrackSize  uint32 // rounded up to 512
	DeviceType byte   // e.g. 0x11 (2311), 0x14 (2314)
	FileSeq    byte   // always 0 in this implementation
	HighCyl    uint16 // highest cylinder number
}

// ErrBadMagic is returned by DecodeHeader when the magic bytes don't match.
var ErrBadMagic = errors.New("disk: bad or missing CKD_P370 magic")

// RoundUp512 rounds n up to the next multiple of 512.
func RoundUp512(n uint32) uint32 {
	if n%512 == 0 {
		return n
	}
	return (n/512 + 1) * 512
}

// EncodeHeader renders h as the 512-byte on-disk header.
func EncodeHeader(h Header) []byte {
	buf := make([]byte, HeaderSize)
	copy(buf[0:8], Magic)
	binary.LittleEndian.PutUint32(buf[8:12], h.Heads)
	binary.LittleEndian.PutUint32(buf[12:16], h.TrackSize)
	buf[16] = h.DeviceType
	buf[17] = h.FileSeq
	binary.LittleEndian.PutUint16(buf[18:20], h.HighCyl)
	// bytes 20..512 remain zero (reserved)
	return buf
}

// DecodeHeader parses a 512-byte header, validating the magic.
func DecodeHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, fmt.Errorf("disk: header too short: %d bytes", len(buf))
	}
	if string(buf[0:8]) != Magic {
		return Header{}, ErrBadMagic
	}
	return Header{
		Heads:      binary.LittleEndian.Uint32(buf[8:12]),
		TrackSize:  binary.LittleEndian.Uint32(buf[12:16]),
		DeviceType: buf[16],
		FileSeq:    buf[17],
		HighCyl:    binary.LittleEndian.Uint16(buf[18:20]),
	}, nil
}

// FileSize returns the total expected file length for a header: the 512
// byte header plus heads * (cyls+1) * tracksize.
func (h Header) FileSize() int64 {
	return int64(HeaderSize) + int64(h.Heads)*(int64(h.HighCyl)+1)*int64(h.TrackSize)
}

// IPL1 is the literal 28-byte IPL1 record payload: the 4-byte EBCDIC
// "IPL1" key followed by the 24-byte bootstrap PSW/CCW data.
var IPL1 = []byte{
	0xC9, 0xD7, 0xD3, 0xF1, 0x00, 0x06, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x0F, 0x03, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00,
}

// IPL2Key is the literal 4-byte key of the IPL2 record.
var IPL2Key = []byte{0xC9, 0xD7, 0xD3, 0xF2}

// VOL1 is the literal 84-byte volume label record: "VOL1" (EBCDIC, key)
// + "VOL1" + 6-byte volume id "111111" (EBCDIC) + CCHHR + 25 EBCDIC
// blanks + "SIMH" (EBCDIC) + EBCDIC blanks padding to 84 bytes.
var VOL1 = buildVOL1()

func buildVOL1() []byte {
	const ebcdicBlank = 0x40
	b := make([]byte, 0, 84)
	b = append(b, 0xE5, 0xD6, 0xD3, 0xF1, 0xE5, 0xD6, 0xD3, 0xF1)
	b = append(b, 0xF1, 0xF1, 0xF1, 0xF1, 0xF1, 0xF1) // volume id "111111"
	b = append(b, 0x40, 0x00, 0x00, 0x00, 0x01, 0x01) // CCHHR
	for range 25 {
		b = append(b, ebcdicBlank)
	}
	b = append(b, 0xE2, 0xC9, 0xD4, 0xC8) // "SIMH"
	for len(b) < 84 {
		b = append(b, ebcdicBlank)
	}
	return b[:84]
}
