// Package drive implements DriveInterface (C2): the thin decode layer that
// turns FT (function tag) / FC (function code) bus commands into mutations
// on the attached disk's seek and gate registers. All rotational and
// positional state lives in internal/disk; this package only knows how to
// read FT/FC bytes the way a real 2841-class control unit's drive interface
// would.
package drive

import (
	"ckd2844/internal/disk"
	"ckd2844/internal/sim"
	"ckd2844/mask"
)

// Seek completion delay in ticks.
const seekDelayTicks = 50

// FT mode bits. FT bit 7 (the LSB, mask.I8) must be set to address this
// drive at all; bits 0-4 (mask.I1..I5) select which mode FC is interpreted
// under. Exactly one of the mode bits is expected to be set alongside the
// select bit on any one SetTags call.
const (
	FTControl        = 0x80 // bit0: control (write/read gate, seek, gates)
	FTSetCylinder    = 0x40 // bit1: FC carries an 8-bit track number
	FTSetHeadAndSign = 0x20 // bit2: FC carries direction + head number
	FTSetDifference  = 0x10 // bit3: FC carries the seek delta
	FTHeadAdvance    = 0x08 // bit4: pulse head-advance, FC unused
	FTSelect         = 0x01 // bit7: select this drive (mandatory)
)

// FC sub-bits under the control mode (FTControl).
const (
	FCWriteGate   = 0x80
	FCReadGate    = 0x40
	FCStartSeek   = 0x20
	FCHeadReset   = 0x10
	FCEraseGate   = 0x08
	FCSelectHead  = 0x04
	FCReturnHome  = 0x02
	FCHeadAdvance = 0x01
)

// Interface is one drive's FT/FC decode layer, wired to its disk and to the
// shared clock for seek-completion scheduling.
type Interface struct {
	disk  *disk.Disk
	clock *sim.Clock
}

// New wires a drive interface to its disk and the simulation clock used to
// schedule seek completion.
func New(d *disk.Disk, clock *sim.Clock) *Interface {
	return &Interface{disk: d, clock: clock}
}

// SetTags decodes one FT/FC bus command: FT bit 7 selects this drive, and
// whichever of FT bits 0-4 is set picks how FC is interpreted. A command
// with the select bit clear is ignored, matching a real drive attachment
// that only latches FT/FC when addressed.
func (i *Interface) SetTags(ft, fc byte) {
	i.disk.SetSelected(mask.IsSet(ft, mask.I8))
	if !i.disk.Selected() {
		return
	}
	switch {
	case ft&FTControl != 0:
		i.disk.Control(
			fc&FCWriteGate != 0,
			fc&FCReadGate != 0,
			fc&FCHeadReset != 0,
			fc&FCEraseGate != 0,
			fc&FCSelectHead != 0,
			fc&FCReturnHome != 0,
			fc&FCHeadAdvance != 0,
		)
		if fc&FCStartSeek != 0 {
			i.disk.StartSeek()
			i.clock.Schedule(seekDelayTicks, i.disk.CompleteSeek)
		}
	case ft&FTSetCylinder != 0:
		i.disk.SetCylinderTarget(int(fc))
	case ft&FTSetHeadAndSign != 0:
		head := int(mask.Last(fc, mask.I4))
		dir := byte(0)
		if mask.IsSet(fc, mask.I1) {
			dir = 1
		}
		i.disk.SetHeadAndSign(head, dir)
	case ft&FTSetDifference != 0:
		i.disk.SetDifference(fc)
	case ft&FTHeadAdvance != 0:
		i.disk.Control(false, false, false, false, false, false, true)
	}
}

// CurCyl reports the drive's current settled cylinder.
func (i *Interface) CurCyl() int { return i.disk.Cyl() }

// CheckAttn reports and does not clear the drive's pending attention
// condition.
func (i *Interface) CheckAttn() bool { return i.disk.Attn() }

// ClearAttn acknowledges the drive's pending attention condition.
func (i *Interface) ClearAttn() { i.disk.ClearAttn() }

// Step advances rotation by one sub-tick (see disk.Disk.Step). The control
// unit calls it in a loop while spinning to a rotational position state.
func (i *Interface) Step() { i.disk.Step() }

// Disk exposes the underlying disk for the control unit's byte-level
// Read/Write CCWs.
func (i *Interface) Disk() *disk.Disk { return i.disk }
