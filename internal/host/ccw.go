// Package host implements the host-side channel program representation:
// Channel Command Words, the Channel Address Word, the Channel Status
// Word, sense data, and a reference driver that walks a CCW chain against
// a control unit the way a real channel would.
//
// Field layouts follow the S/370 channel convention: 24-bit storage
// addresses, big-endian counts, the CSW stored at absolute location 0x40
// and the CAW fetched from 0x48.
package host

import "encoding/binary"

// CCW opcodes the 2844 control unit honours: the seek family, the
// read/write HA/R0/CKD/KD set, and Search-ID, plus the channel-level
// pseudo-ops (TIC) and housekeeping commands (Nop, Sense, Set File Mask).
const (
	CmdWriteData     = 0x01
	CmdReadData      = 0x02
	CmdNOP           = 0x03
	CmdSense         = 0x04
	CmdSeek          = 0x07
	CmdTIC           = 0x08 // Transfer In Channel, a chaining-only pseudo-op
	CmdRecalibrate   = 0x0B
	CmdReadBackward  = 0x0C
	CmdReadCount     = 0x12
	CmdRestore       = 0x13
	CmdWriteR0       = 0x15
	CmdReadR0        = 0x16
	CmdWriteHA       = 0x19
	CmdReadHA        = 0x1A
	CmdWriteCKD      = 0x1D
	CmdReadKD        = 0x1E
	CmdSetFileMask   = 0x1F
	CmdSearchIDEqual = 0x39
)

// CCW flag bits (byte offset 4, bit 0 = MSB).
const (
	FlagCD   = 0x80 // chain data
	FlagCC   = 0x40 // chain command
	FlagSLI  = 0x20 // suppress length indication
	FlagSkip = 0x10 // skip (no data transfer to storage)
	FlagPCI  = 0x08 // program-controlled interruption
	FlagIDA  = 0x04 // indirect data addressing
)

// CCW is one 8-byte Channel Command Word.
type CCW struct {
	Opcode byte
	Addr   uint32 // 24-bit storage address (top byte unused)
	Flags  byte
	Count  uint16
}

// DecodeCCW parses an 8-byte channel command word.
func DecodeCCW(buf []byte) CCW {
	addr := uint32(buf[1])<<16 | uint32(buf[2])<<8 | uint32(buf[3])
	return CCW{
		Opcode: buf[0],
		Addr:   addr,
		Flags:  buf[4],
		Count:  binary.BigEndian.Uint16(buf[6:8]),
	}
}

// Encode renders c back to its 8-byte wire form.
func (c CCW) Encode() []byte {
	buf := make([]byte, 8)
	buf[0] = c.Opcode
	buf[1] = byte(c.Addr >> 16)
	buf[2] = byte(c.Addr >> 8)
	buf[3] = byte(c.Addr)
	buf[4] = c.Flags
	buf[5] = 0
	binary.BigEndian.PutUint16(buf[6:8], c.Count)
	return buf
}

func (c CCW) Chained() bool        { return c.Flags&(FlagCD|FlagCC) != 0 }
func (c CCW) ChainsData() bool     { return c.Flags&FlagCD != 0 }
func (c CCW) ChainsCommand() bool  { return c.Flags&FlagCC != 0 }
func (c CCW) Skip() bool           { return c.Flags&FlagSkip != 0 }
func (c CCW) SuppressLength() bool { return c.Flags&FlagSLI != 0 }

// CAW is the Channel Address Word: the 24-bit address of the first CCW,
// plus a protection key in its high nibble.
type CAW struct {
	Key  byte
	Addr uint32
}

// CAWOffset is the fixed absolute location the CAW is fetched from.
const CAWOffset = 0x48

// DecodeCAW parses a 4-byte Channel Address Word.
func DecodeCAW(buf []byte) CAW {
	return CAW{
		Key:  buf[0] >> 4,
		Addr: uint32(buf[1])<<16 | uint32(buf[2])<<8 | uint32(buf[3]),
	}
}

func (c CAW) Encode() []byte {
	buf := make([]byte, 4)
	buf[0] = c.Key << 4
	buf[1] = byte(c.Addr >> 16)
	buf[2] = byte(c.Addr >> 8)
	buf[3] = byte(c.Addr)
	return buf
}

// CSW device-status bits (byte offset 4 of the 8-byte CSW).
const (
	StatusAttention      = 0x80
	StatusStatusModifier = 0x40
	StatusControlUnitEnd = 0x20
	StatusBusy           = 0x10
	StatusChannelEnd     = 0x08
	StatusDeviceEnd      = 0x04
	StatusUnitCheck      = 0x02
	StatusUnitException  = 0x01
)

// CSW channel-status bits (byte offset 5).
const (
	ChanProgramCheck    = 0x80
	ChanProtectionCheck = 0x40
	ChanDataCheck       = 0x20
	ChanControlCheck    = 0x10
	ChanInterfaceCheck  = 0x08
	ChanChainingCheck   = 0x04
	ChanIncorrectLength = 0x02
)

// CSW is the Channel Status Word. Count is the residual: the CCW count
// minus the bytes actually transferred.
type CSW struct {
	Key     byte
	Addr    uint32 // last CCW address + 8
	Status  byte   // device status
	Channel byte   // channel status
	Count   uint16 // residual count
}

// CSWOffset is the fixed absolute location the CSW is stored at.
const CSWOffset = 0x40

// Encode renders the CSW to its bit-exact 8-byte form.
func (c CSW) Encode() []byte {
	buf := make([]byte, 8)
	buf[0] = c.Key << 4
	buf[1] = byte(c.Addr >> 16)
	buf[2] = byte(c.Addr >> 8)
	buf[3] = byte(c.Addr)
	buf[4] = c.Status
	buf[5] = c.Channel
	binary.BigEndian.PutUint16(buf[6:8], c.Count)
	return buf
}

// DecodeCSW parses an 8-byte Channel Status Word.
func DecodeCSW(buf []byte) CSW {
	return CSW{
		Key:     buf[0] >> 4,
		Addr:    uint32(buf[1])<<16 | uint32(buf[2])<<8 | uint32(buf[3]),
		Status:  buf[4],
		Channel: buf[5],
		Count:   binary.BigEndian.Uint16(buf[6:8]),
	}
}

// Sense byte 0 bits (bit 0 = MSB).
const (
	SenseCommandReject   = 0x80
	SenseInterventionReq = 0x40
	SenseBusOutParity    = 0x20
	SenseEquipmentCheck  = 0x10
	SenseDataCheck       = 0x08
	SenseOverrun         = 0x04
	SenseTrackCondCheck  = 0x02
	SenseSeekCheck       = 0x01
)

// Sense byte 1 bits.
const (
	Sense1EndOfCyl      = 0x20
	Sense1NoRecordFound = 0x08
	Sense1FileProtected = 0x04
)

// Sense is the 6-byte sense block returned by the Sense command: two flag
// bytes, then the address of the last Home Address passed under the head.
type Sense [6]byte

func (s *Sense) Set(bit byte)       { s[0] |= bit }
func (s Sense) Has(bit byte) bool   { return s[0]&bit != 0 }
func (s *Sense) Set1(bit byte)      { s[1] |= bit }
func (s Sense) Has1(bit byte) bool  { return s[1]&bit != 0 }
func (s *Sense) Clear()             { *s = Sense{} }

// SetLastHA records the cylinder, head, and record number of the most
// recent Home Address field in bytes 2-4; byte 5 stays reserved.
func (s *Sense) SetLastHA(cyl, head, rec byte) {
	s[2], s[3], s[4] = cyl, head, rec
}
