package disk

import (
	"bufio"
	"fmt"
	"io"
	"os"
)

// Rate is the number of sub-ticks ("bus ticks") that elapse per emitted byte
// on a 2311/2314-class spindle.
const Rate = 13

// AMSentinel is the address-mark byte the read channel resynchronises on.
const AMSentinel = 0xAA

// positionState enumerates where within a revolution the head currently
// sits: the index area, a content field (HA, count, key, data), or one of
// the synthetic gaps between them.
type positionState int

const (
	posIndex positionState = iota
	posHA
	posGap1
	posCount0
	posAM
	posCount1
	posKey
	posGap2
	posGap3
	posData
	posEnd
	posUnknown
)

func (s positionState) String() string {
	switch s {
	case posIndex:
		return "Index"
	case posHA:
		return "HA"
	case posGap1:
		return "Gap1"
	case posCount0:
		return "Count0"
	case posAM:
		return "AM"
	case posCount1:
		return "Count1"
	case posKey:
		return "Key"
	case posGap2:
		return "Gap2"
	case posGap3:
		return "Gap3"
	case posData:
		return "Data"
	case posEnd:
		return "End"
	default:
		return "Unknown"
	}
}

// synthetic inter-record gap byte sequences. These are never stored in the
// image file; the engine generates them on the fly between real content
// fields, and tpos (the cursor into the real track buffer) does not move
// while one is being emitted.
var (
	gapIndexToHA = []byte{0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0xFF, 0x0E}
	gapSync      = []byte{0xCC, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0xFF, 0x0E}
	gapAM        = []byte{0xCC, 0xFF, 0xFF, 0xFF, 0xFF, 0x00, 0x00, 0x00, 0x00, 0xFF, AMSentinel, AMSentinel, 0x0E}
)

// AttachResult reports the outcome of Attach.
type AttachResult int

const (
	Attached AttachResult = iota
	WasFormatted
	Failed
)

// Disk is one attached CKD drive: a backing file, a one-cylinder buffer
// mirroring it, and the rotational byte-stream state machine that the
// control unit reads and writes one byte at a time.
type Disk struct {
	path string
	file *os.File
	hdr  Header

	cylBuf       []byte // heads * tracksize, the currently loaded cylinder
	curCylLoaded int    // which cylinder cylBuf mirrors, -1 if none
	dirty        bool

	// seek/position register state, driven by drive.Interface
	cyl, ncyl int
	head      int
	dir       byte // 0 = in, 1 = out
	diff      byte
	attn      bool
	selected  bool
	writeGate bool
	readGate  bool
	eraseGate bool

	// rotation
	rate    int
	subtick int
	bpt     int
	cpos    int

	state       positionState
	count       int
	gapBuf      []byte
	gapAfter    positionState
	countBytes  [8]byte
	recNum      int
	klen, dlen  int
	ckSum       [2]byte
	amSearch    bool
	tpos        int
}

// Attach opens path, validating an existing image or formatting a fresh
// one. heads/cyls/trackSize/devType/ipl are only consulted when the file
// must be formatted (missing, or init is requested).
func Attach(path string, heads uint32, cyls uint16, trackSize uint32, devType byte, init bool, ipl bool) (*Disk, AttachResult, error) {
	existing, err := os.ReadFile(path)
	if err == nil && len(existing) >= HeaderSize && string(existing[:8]) == Magic && !init {
		hdr, err := DecodeHeader(existing)
		if err != nil {
			return nil, Failed, err
		}
		want := hdr.FileSize()
		if int64(len(existing)) != want {
			return nil, Failed, fmt.Errorf("disk: %s: size %d does not match header (want %d)", path, len(existing), want)
		}
		f, err := os.OpenFile(path, os.O_RDWR, 0o644)
		if err != nil {
			return nil, Failed, err
		}
		d := &Disk{
			path:         path,
			file:         f,
			hdr:          hdr,
			curCylLoaded: -1,
			rate:         Rate,
			bpt:          int(hdr.TrackSize),
			state:        posIndex,
		}
		if err := d.loadCylinder(0); err != nil {
			f.Close()
			return nil, Failed, err
		}
		return d, Attached, nil
	}

	if err := Format(path, heads, cyls, trackSize, devType, ipl); err != nil {
		return nil, Failed, err
	}
	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		return nil, Failed, err
	}
	hdr, err := DecodeHeader(mustHeaderBytes(f))
	if err != nil {
		f.Close()
		return nil, Failed, err
	}
	d := &Disk{
		path:         path,
		file:         f,
		hdr:          hdr,
		curCylLoaded: -1,
		rate:         Rate,
		bpt:          int(hdr.TrackSize),
		state:        posIndex,
	}
	if err := d.loadCylinder(0); err != nil {
		f.Close()
		return nil, Failed, err
	}
	return d, WasFormatted, nil
}

func mustHeaderBytes(f *os.File) []byte {
	buf := make([]byte, HeaderSize)
	if _, err := f.ReadAt(buf, 0); err != nil {
		return buf
	}
	return buf
}

// Detach flushes any dirty cylinder buffer and closes the backing file.
func (d *Disk) Detach() error {
	if d.dirty {
		if err := d.flushCylinder(); err != nil {
			return err
		}
	}
	return d.file.Close()
}

// Format writes a fresh header and every (cyl, head) track to path,
// overwriting it if it exists. trackSize is rounded up to a 512-byte
// multiple and must be large enough to hold the largest track (cylinder 0,
// head 0, with the IPL records if ipl is set).
func Format(path string, heads uint32, cyls uint16, trackSize uint32, devType byte, ipl bool) error {
	ts := RoundUp512(trackSize)
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	hdr := Header{Heads: heads, TrackSize: ts, DeviceType: devType, FileSeq: 0, HighCyl: cyls}
	if _, err := w.Write(EncodeHeader(hdr)); err != nil {
		return err
	}
	for c := 0; c <= int(cyls); c++ {
		for h := 0; h < int(heads); h++ {
			track, err := buildTrack(c, h, ts, ipl && c == 0 && h == 0)
			if err != nil {
				return err
			}
			if _, err := w.Write(track); err != nil {
				return err
			}
		}
	}
	return w.Flush()
}

func buildTrack(cyl, head int, trackSize uint32, withIPL bool) ([]byte, error) {
	buf := make([]byte, trackSize)
	off := 0
	buf[off] = 0x00
	off++
	off += putBE16(buf[off:], uint16(cyl))
	off += putBE16(buf[off:], uint16(head))

	var err error
	off, err = writeRecord(buf, off, cyl, head, 0, nil, make([]byte, 8))
	if err != nil {
		return nil, err
	}
	if withIPL {
		off, err = writeRecord(buf, off, cyl, head, 1, IPL1[:4], IPL1[4:])
		if err != nil {
			return nil, err
		}
		off, err = writeRecord(buf, off, cyl, head, 2, IPL2Key, make([]byte, 144))
		if err != nil {
			return nil, err
		}
		off, err = writeRecord(buf, off, cyl, head, 3, VOL1[:4], VOL1[4:])
		if err != nil {
			return nil, err
		}
	}
	if off+4 > len(buf) {
		return nil, fmt.Errorf("disk: track size %d too small for cyl %d head %d", trackSize, cyl, head)
	}
	buf[off], buf[off+1], buf[off+2], buf[off+3] = 0xFF, 0xFF, 0xFF, 0xFF
	return buf, nil
}

func writeRecord(buf []byte, off, cyl, head, recno int, key, data []byte) (int, error) {
	need := off + 8 + len(key) + len(data)
	if need > len(buf) {
		return off, fmt.Errorf("disk: track buffer too small: need %d, have %d", need, len(buf))
	}
	off += putBE16(buf[off:], uint16(cyl))
	off += putBE16(buf[off:], uint16(head))
	buf[off] = byte(recno)
	off++
	buf[off] = byte(len(key))
	off++
	off += putBE16(buf[off:], uint16(len(data)))
	off += copy(buf[off:], key)
	off += copy(buf[off:], data)
	return off, nil
}

func putBE16(b []byte, v uint16) int {
	b[0] = byte(v >> 8)
	b[1] = byte(v)
	return 2
}

func (d *Disk) loadCylinder(cyl int) error {
	trackSize := int64(d.hdr.TrackSize)
	heads := int64(d.hdr.Heads)
	cylBytes := heads * trackSize
	offset := int64(HeaderSize) + int64(cyl)*cylBytes
	buf := make([]byte, cylBytes)
	if _, err := d.file.ReadAt(buf, offset); err != nil && err != io.EOF {
		return err
	}
	d.cylBuf = buf
	d.curCylLoaded = cyl
	d.dirty = false
	return nil
}

func (d *Disk) flushCylinder() error {
	if d.curCylLoaded < 0 {
		return nil
	}
	trackSize := int64(d.hdr.TrackSize)
	heads := int64(d.hdr.Heads)
	cylBytes := heads * trackSize
	offset := int64(HeaderSize) + int64(d.curCylLoaded)*cylBytes
	if _, err := d.file.WriteAt(d.cylBuf, offset); err != nil {
		return err
	}
	d.dirty = false
	return nil
}

// Cyl reports the drive's current (settled) cylinder.
func (d *Disk) Cyl() int { return d.cyl }

// Head reports the currently selected head.
func (d *Disk) Head() int { return d.head }

// Attn reports whether a seek-complete (or other attention) condition is
// pending.
func (d *Disk) Attn() bool { return d.attn }

// ClearAttn acknowledges the pending attention condition.
func (d *Disk) ClearAttn() { d.attn = false }

// Selected reports whether this drive is currently addressed (FT bit 7).
func (d *Disk) Selected() bool { return d.selected }

// SetSelected latches the drive-select bit (FT bit 7).
func (d *Disk) SetSelected(sel bool) { d.selected = sel }

// Control applies the "control" FC sub-command bits.
func (d *Disk) Control(writeGate, readGate, headReset, eraseGate, selectHead, returnHome, headAdvance bool) {
	d.writeGate = writeGate
	d.readGate = readGate
	d.eraseGate = eraseGate
	if headReset {
		d.head = 0
	}
	if returnHome {
		d.ncyl = 0
	}
	if headAdvance {
		d.head++
	}
}

// SetCylinderTarget loads the seek target cylinder (the "set cylinder" FC
// sub-command).
func (d *Disk) SetCylinderTarget(ncyl int) { d.ncyl = ncyl }

// SetHeadAndSign loads the head number and seek direction (the "set
// head+sign" FC sub-command).
func (d *Disk) SetHeadAndSign(head int, dir byte) {
	d.head = head
	d.dir = dir
}

// SetDifference loads the seek delta (the "set difference" FC sub-command).
func (d *Disk) SetDifference(diff byte) { d.diff = diff }

// StartSeek returns the target cylinder and leaves it to the caller (the
// drive.Interface, which owns tick timing) to schedule CompleteSeek roughly
// 50 ticks later.
func (d *Disk) StartSeek() int { return d.ncyl }

// CompleteSeek fires when the scheduled seek event lands: cyl becomes ncyl
// and the drive raises attention.
func (d *Disk) CompleteSeek() {
	d.cyl = d.ncyl
	d.attn = true
}

// RequestAddressMarkSearch arms am_search: the next AM sentinel encountered
// raises the am flag and is consumed (reported as "no data this tick").
func (d *Disk) RequestAddressMarkSearch() { d.amSearch = true }

// Step advances rotation by one sub-tick without returning any data; every
// Rate-th call is a transfer tick that moves one byte-time, including the
// position-state machine. It is safe to call while de-selected: the disk
// keeps rotating and its position state keeps advancing whether or not a
// host is actively transferring, the same way a real spindle does; ix
// reports an index pulse on wrap. Callers step it directly; sim.Clock does
// not step disks.
func (d *Disk) Step() (ix bool) {
	_, _, ix, _ = d.advance(false, 0)
	return ix
}

func (d *Disk) tick() (isTransferTick, indexPulse bool) {
	d.subtick++
	if d.subtick < d.rate {
		return false, false
	}
	d.subtick = 0
	d.cpos++
	if d.cpos > d.bpt {
		d.cpos = 0
		d.state = posIndex
		d.count = 0
		d.tpos = d.headOffset()
		return true, true
	}
	return true, false
}

func (d *Disk) headOffset() int {
	return d.head * int(d.hdr.TrackSize)
}

func (d *Disk) maybeReloadCylinder() error {
	if d.curCylLoaded == d.cyl {
		return nil
	}
	if d.dirty {
		if err := d.flushCylinder(); err != nil {
			return err
		}
	}
	return d.loadCylinder(d.cyl)
}

// ReadByte advances one sub-tick and, on a transfer tick (every Rate-th
// call), returns the next byte of the rotational stream. valid is false during gaps, during
// AM-search suppression, and on sub-rate ticks.
func (d *Disk) ReadByte() (data byte, am bool, ix bool, valid bool) {
	return d.advance(false, 0)
}

// WriteByte is the write-side counterpart of ReadByte: in is stored into
// the track buffer (marking it dirty) wherever ReadByte would have returned
// a content byte.
func (d *Disk) WriteByte(in byte) (am bool, ix bool, valid bool) {
	_, am, ix, valid = d.advance(true, in)
	return
}

// advance is the shared tick-then-transfer step underlying Step, ReadByte,
// and WriteByte: it always advances rotation, and on a transfer tick also
// advances the position-state machine (reloading the cylinder buffer first
// if the drive has settled on a new one).
func (d *Disk) advance(write bool, in byte) (data byte, am bool, ix bool, valid bool) {
	transfer, pulse := d.tick()
	ix = pulse
	if !transfer {
		return 0, false, ix, false
	}
	if err := d.maybeReloadCylinder(); err != nil {
		return 0, false, ix, false
	}
	data, am, valid = d.transferState(write, in)
	return
}

func (d *Disk) transferState(write bool, in byte) (data byte, am bool, valid bool) {
	switch d.state {
	case posIndex:
		return d.stepGap(gapIndexToHA, posHA)
	case posGap1, posGap2, posGap3:
		return d.stepGap(d.gapBuf, d.gapAfter)
	case posAM:
		return d.stepAMGap()
	case posHA:
		return d.stepField(5, write, in)
	case posCount0, posCount1:
		return d.stepField(8, write, in)
	case posKey:
		return d.stepField(d.klen, write, in)
	case posData:
		return d.stepField(d.dlen, write, in)
	case posEnd:
		return 0, false, false
	default:
		return 0, false, false
	}
}

func (d *Disk) stepGap(buf []byte, after positionState) (byte, bool, bool) {
	b := buf[d.count]
	d.count++
	if d.count == len(buf) {
		d.state = after
		d.count = 0
	}
	return b, false, true
}

func (d *Disk) stepAMGap() (byte, bool, bool) {
	b := gapAM[d.count]
	am := false
	valid := true
	if b == AMSentinel {
		am = true
		if d.amSearch {
			d.amSearch = false
			valid = false
		}
	}
	d.count++
	if d.count == len(gapAM) {
		d.state = posCount1
		d.count = 0
	}
	return b, am, valid
}

func (d *Disk) stepField(fieldLen int, write bool, in byte) (byte, bool, bool) {
	if d.count == 0 {
		d.ckSum = [2]byte{0xFF, 0xFF}
	}
	if d.count < fieldLen {
		pos := d.tpos
		var b byte
		if write {
			b = in
			d.cylBuf[pos] = b
			d.dirty = true
		} else {
			b = d.cylBuf[pos]
		}
		if d.state == posCount0 || d.state == posCount1 {
			d.countBytes[d.count] = b
		}
		if d.count%2 == 0 {
			d.ckSum[0] ^= b
		} else {
			d.ckSum[1] ^= b
		}
		d.tpos++
		d.count++
		return b, false, true
	}
	if d.count == fieldLen {
		d.count++
		return d.ckSum[0], false, true
	}
	b := d.ckSum[1]
	d.count = 0
	d.afterField()
	return b, false, true
}

func (d *Disk) afterField() {
	switch d.state {
	case posHA:
		d.enterGap(gapSync, posGap1, posCount0)
	case posCount0, posCount1:
		d.finishCount()
	case posKey:
		d.enterGap(gapSync, posGap2, posData)
	case posData:
		d.enterGap(gapAM, posAM, posCount1)
	}
}

func (d *Disk) finishCount() {
	cylHi, cylLo := d.countBytes[0], d.countBytes[1]
	headHi, headLo := d.countBytes[2], d.countBytes[3]
	if cylHi == 0xFF && cylLo == 0xFF && headHi == 0xFF && headLo == 0xFF {
		d.state = posEnd
		d.count = 0
		return
	}
	d.recNum = int(d.countBytes[4])
	d.klen = int(d.countBytes[5])
	d.dlen = int(uint16(d.countBytes[6])<<8 | uint16(d.countBytes[7]))
	if d.klen == 0 {
		d.enterGap(gapSync, posGap3, posData)
		return
	}
	d.state = posKey
	d.count = 0
}

// enterGap sets the position state to label (a named gap state for
// observability) while recording the real gap table and the state to land
// in once it is exhausted.
func (d *Disk) enterGap(buf []byte, label, after positionState) {
	d.gapBuf = buf
	d.gapAfter = after
	d.state = label
	d.count = 0
}

// StateName reports the current rotational position state, for debugging.
func (d *Disk) StateName() string { return d.state.String() }

// CurrentKeyLen and CurrentDataLen report the key/data lengths of whichever
// record is currently under the head, valid once its count field has been
// read.
func (d *Disk) CurrentKeyLen() int  { return d.klen }
func (d *Disk) CurrentDataLen() int { return d.dlen }
func (d *Disk) CurrentRecNum() int  { return d.recNum }
