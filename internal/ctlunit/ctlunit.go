// Package ctlunit implements the storage control unit: the channel-protocol
// sequencing and CKD command dispatch that sit between a host channel
// program and the attached drives. The selection handshake runs directly
// against the shared channel bus; register state (OP, DW, ER, IG, ST) lives
// in the ROS engine's register bank, and every command dispatch cycles the
// embedded microprogram through that engine before the command-specific
// handler drives the drive's byte pipe.
package ctlunit

import (
	"errors"
	"fmt"

	"ckd2844/internal/bus"
	"ckd2844/internal/drive"
	"ckd2844/internal/host"
	"ckd2844/internal/ros"
	"ckd2844/internal/sim"
)

// maxSpinBytes bounds how many drive steps (sub-ticks, disk.Rate per
// byte-time) ControlUnit will spin a drive looking for a rotational
// position state before giving up with a no-record-found indication; set
// well past two full revolutions at the smallest plausible track size.
const maxSpinBytes = 1 << 20

// ErrNoRecordFound is returned (with the no-record-found sense bit already
// set) when a search for a rotational position state runs past
// maxSpinBytes. seekTo also returns it, with the seek-check sense bit set
// instead, when a seek does not complete within maxSpinBytes clock ticks.
var ErrNoRecordFound = errors.New("ctlunit: record not found")

// IG channel-control latch bits: write-gate, operational-in, read-gate,
// queue (stacked status pending), poll-enable, status-in,
// present-device-end, address-in.
const (
	igBitWriteGate     = 0x01
	igBitOperationalIn = 0x02
	igBitReadGate      = 0x04
	igBitQueue         = 0x08
	igBitPollEnable    = 0x10
	igBitStatusIn      = 0x20
	igBitPresentDE     = 0x40
	igBitAddressIn     = 0x80
)

// ER error-latch bits: address-out seen, bus-out parity error, short-busy.
const (
	erBitAddrOutSeen = 0x02
	erBitBusParity   = 0x04
	erBitShortBusy   = 0x08
)

// ControlUnit sequences one channel's worth of CCW execution across its
// attached drives.
type ControlUnit struct {
	Bus    *bus.Bus
	Engine *ros.Engine
	Clock  *sim.Clock

	drives    map[byte]*drive.Interface
	fileMask  byte
	sense     host.Sense
	formatted map[*drive.Interface]bool
}

// New returns a ControlUnit with its own register bank and bus, with the
// embedded microprogram ROM loaded into its engine ready to cycle, sharing
// clock with the drives it will be attached to.
func New(clock *sim.Clock) (*ControlUnit, error) {
	program, err := ros.LoadROM()
	if err != nil {
		return nil, fmt.Errorf("ctlunit: loading microprogram: %w", err)
	}
	engine := ros.NewEngine()
	engine.Load(program)
	return &ControlUnit{
		Bus:       &bus.Bus{},
		Engine:    engine,
		Clock:     clock,
		drives:    make(map[byte]*drive.Interface),
		formatted: make(map[*drive.Interface]bool),
	}, nil
}

// AttachDrive registers a drive at the given device address.
func (cu *ControlUnit) AttachDrive(addr byte, d *drive.Interface) {
	cu.drives[addr] = d
}

// Sense returns the last sense block latched by Execute.
func (cu *ControlUnit) Sense() host.Sense { return cu.sense }

// pulse latches opcode into OP, refreshes the engine's condition inputs
// from the bus, and runs the loaded microprogram from its entry point, the
// way the hardware re-exercises its ROS on every command rather than
// leaving it an idle register file. The embedded program is a short
// power-on diagnostic (see internal/ros/microprogram.rom); a full
// opcode-dispatch microprogram would branch on OP itself, which the
// diagnostic does not attempt.
func (cu *ControlUnit) pulse(opcode byte) {
	cu.Engine.Regs[ros.OP] = opcode
	cu.Engine.BusOut = cu.Bus.BusOut.Data
	cu.Engine.Cond.OperationalOut = cu.Bus.Out.OperationalOut
	cu.Engine.Cond.AddressOut = cu.Bus.Out.AddressOut
	cu.Engine.Cond.CommandOut = cu.Bus.Out.CommandOut
	cu.Engine.Cond.ServiceOut = cu.Bus.Out.ServiceOut
	cu.Engine.Cond.SuppressOut = cu.Bus.Out.SuppressOut
	cu.Engine.Cond.SelectOut = cu.Bus.Out.SelectOut
	cu.Engine.WX = 0
	for i := 0; i < len(cu.Engine.Program); i++ {
		if err := cu.Engine.Cycle(); err != nil {
			break
		}
	}
}

// beginSelection runs the initial-selection handshake: it drives
// Address-Out/Select-Out on the bus with the device address, and either
// answers with Operational-In + Address-In (selection proceeds) or, if a
// stacked status is pending (the IG queue latch), with the short-busy
// response -- Status-In carrying the retained status, the short-busy error
// latch set, and Operational-In never raised.
func (cu *ControlUnit) beginSelection(addr byte) (busy bool) {
	cu.Bus.SetOut(bus.OutTags{OperationalOut: true, AddressOut: true, SelectOut: true}, addr)
	if cu.Bus.BusOut.Valid() {
		cu.Engine.Cond.BusParityOK = true
	} else {
		cu.Engine.Cond.BusParityOK = false
		cu.Engine.Regs[ros.ER] |= erBitBusParity
	}
	if cu.Engine.Regs[ros.IG]&igBitQueue != 0 {
		cu.Bus.RaiseIn(bus.InTags{StatusIn: true}, cu.Engine.Regs[ros.DW])
		cu.Engine.Regs[ros.ER] |= erBitShortBusy
		return true
	}
	cu.Engine.Regs[ros.ER] |= erBitAddrOutSeen
	cu.Bus.RaiseIn(bus.InTags{OperationalIn: true, AddressIn: true}, addr)
	cu.Engine.Cond.OperationalIn = true
	cu.Engine.Cond.AddressIn = true
	cu.Engine.Regs[ros.IG] |= igBitOperationalIn | igBitAddressIn
	cu.Bus.In.RequestIn = false
	cu.Engine.Cond.RequestIn = false
	return false
}

// endSelection drops the tags a selection raised, but leaves Request-In
// alone: it is a device-initiated polling signal independent of the
// selection it outlives, consumed only by the next beginSelection that
// reselects the device.
func (cu *ControlUnit) endSelection() {
	cu.Bus.SetOut(bus.OutTags{}, 0)
	cu.Bus.In.OperationalIn = false
	cu.Bus.In.AddressIn = false
	cu.Bus.In.StatusIn = false
	cu.Bus.In.ServiceIn = false
	cu.Engine.Cond.OperationalIn = false
	cu.Engine.Cond.AddressIn = false
	cu.Engine.Cond.StatusIn = false
	cu.Engine.Regs[ros.IG] &^= igBitOperationalIn | igBitAddressIn
}

// presentStatus raises Status-In with the final status byte, latching it
// into DW the way the hardware holds ending status for the channel to
// accept or stack.
func (cu *ControlUnit) presentStatus(status byte) {
	cu.Engine.Regs[ros.DW] = status
	cu.Bus.RaiseIn(bus.InTags{StatusIn: true}, status)
	cu.Engine.Cond.StatusIn = true
}

// setGate and clearGate route the IG read-/write-gate update through the
// engine rather than poking the register directly, so setting the write
// gate raises the internal service request the way a real IG write does.
func (cu *ControlUnit) setGate(gate byte) {
	cu.Engine.Step(ros.Seal(ros.Microinstruction{CA: ros.IG, CB: ros.CBLiteral, CK: gate, CC: ros.CCOr, CD: ros.IG}))
}

func (cu *ControlUnit) clearGate(gate byte) {
	cu.Engine.Step(ros.Seal(ros.Microinstruction{CA: ros.IG, CB: ros.CBLiteral, CK: gate, CV: 1, CC: ros.CCAnd, CD: ros.IG}))
}

// serviceByte runs one Service-In/Service-Out handshake for a single data
// byte. On a read the assembled byte sits in DR, goes out on bus-in under
// Service-In, and the microprogram's read of DR fires TR1; on a write the
// unit raises Service-In to ask for data, the host answers Service-Out
// with the byte on bus-out, and the microprogram's read of IH latches it
// into DR, firing TR1. TR1 ("data taken") drops Service-In and rearms the
// cycle either way. The returned byte is the one that crossed the bus.
func (cu *ControlUnit) serviceByte(b byte, write bool) byte {
	if write {
		cu.Bus.RaiseIn(bus.InTags{ServiceIn: true}, 0)
		cu.Engine.Cond.ServiceIn = true
		cu.Engine.SvcReq = false
		cu.Bus.Out.ServiceOut = true
		cu.Bus.BusOut = bus.NewWord(b)
		cu.Engine.Cond.ServiceOut = true
		cu.Engine.BusOut = b
		cu.Engine.Step(ros.Seal(ros.Microinstruction{CA: ros.IH, CC: ros.CCOr, CD: ros.DR}))
		b = cu.Engine.Regs[ros.DR]
	} else {
		cu.Engine.Regs[ros.DR] = b
		cu.Bus.RaiseIn(bus.InTags{ServiceIn: true}, b)
		cu.Engine.Cond.ServiceIn = true
		cu.Bus.Out.ServiceOut = true
		cu.Engine.Cond.ServiceOut = true
		cu.Engine.Step(ros.Seal(ros.Microinstruction{CA: ros.DR, CC: ros.CCOr, CD: ros.Zero}))
	}
	if cu.Engine.TakeTR1() {
		cu.Bus.In.ServiceIn = false
		cu.Engine.Cond.ServiceIn = false
	}
	cu.Bus.Out.ServiceOut = false
	cu.Engine.Cond.ServiceOut = false
	return b
}

// Execute runs one CCW against the drive at addr, reading/writing storage
// through mem, and returns the resulting CSW. It sequences the selection
// handshake around the command dispatch, so a stacked-status device
// answers short-busy without ever reaching a drive.
func (cu *ControlUnit) Execute(addr byte, ccw host.CCW, mem []byte) (host.CSW, error) {
	if cu.beginSelection(addr) {
		return host.CSW{Status: host.StatusBusy | host.StatusStatusModifier}, nil
	}
	defer cu.endSelection()

	cu.pulse(ccw.Opcode)

	d, ok := cu.drives[addr]
	if !ok {
		cu.sense.Set(host.SenseInterventionReq)
		csw := host.CSW{
			Status:  host.StatusUnitCheck | host.StatusChannelEnd | host.StatusDeviceEnd,
			Channel: host.ChanInterfaceCheck,
		}
		cu.presentStatus(csw.Status)
		return csw, fmt.Errorf("ctlunit: no drive at address %#x", addr)
	}

	csw, err := cu.dispatch(d, ccw, mem)
	cu.presentStatus(csw.Status)
	return csw, err
}

// dispatch runs ccw's opcode against the already-selected drive d.
func (cu *ControlUnit) dispatch(d *drive.Interface, ccw host.CCW, mem []byte) (host.CSW, error) {
	switch ccw.Opcode {
	case host.CmdSeek:
		return cu.execSeek(d, ccw, mem)
	case host.CmdRecalibrate, host.CmdRestore:
		return cu.seekTo(d, ccw, 0, 0)
	case host.CmdSetFileMask:
		if int(ccw.Addr)+1 <= len(mem) {
			cu.fileMask = mem[ccw.Addr]
		}
		return okCSW(ccw), nil
	case host.CmdReadHA:
		return cu.readHA(d, ccw, mem)
	case host.CmdWriteHA:
		return cu.writeHA(d, ccw, mem)
	case host.CmdReadCount:
		return cu.readCount(d, ccw, mem)
	case host.CmdReadR0:
		return cu.readR0(d, ccw, mem)
	case host.CmdWriteR0:
		return cu.writeR0(d, ccw, mem)
	case host.CmdReadKD:
		return cu.readKeyAndData(d, ccw, mem)
	case host.CmdReadData:
		return cu.transfer(d, ccw, mem, "Data", int(ccw.Count), false)
	case host.CmdReadBackward:
		return cu.readBackward(d, ccw, mem)
	case host.CmdWriteData, host.CmdWriteCKD:
		if !cu.formatted[d] {
			cu.sense.Set(host.SenseCommandReject)
			return host.CSW{Status: host.StatusUnitCheck, Count: ccw.Count}, fmt.Errorf("ctlunit: write data without a preceding Write HA")
		}
		return cu.transfer(d, ccw, mem, "Data", int(ccw.Count), true)
	case host.CmdSearchIDEqual:
		return cu.searchIDEqual(d, ccw, mem)
	case host.CmdSense:
		n := len(cu.sense)
		if int(ccw.Count) < n {
			n = int(ccw.Count)
		}
		if int(ccw.Addr)+n > len(mem) {
			n = len(mem) - int(ccw.Addr)
		}
		cu.setGate(igBitReadGate)
		for i := 0; i < n; i++ {
			mem[int(ccw.Addr)+i] = cu.serviceByte(cu.sense[i], false)
		}
		cu.clearGate(igBitReadGate)
		return host.CSW{Status: host.StatusChannelEnd | host.StatusDeviceEnd, Count: residual(ccw.Count, n)}, nil
	case host.CmdNOP:
		return okCSW(ccw), nil
	default:
		cu.sense.Set(host.SenseCommandReject)
		return host.CSW{Status: host.StatusUnitCheck | host.StatusChannelEnd | host.StatusDeviceEnd, Count: ccw.Count}, fmt.Errorf("ctlunit: unsupported opcode %#x", ccw.Opcode)
	}
}

// okCSW ends an immediate command: channel end + device end, with the full
// CCW count left as the residual since nothing was transferred.
func okCSW(ccw host.CCW) host.CSW {
	return host.CSW{Status: host.StatusChannelEnd | host.StatusDeviceEnd, Count: ccw.Count}
}

// residual clamps count-minus-transferred at zero.
func residual(count uint16, n int) uint16 {
	if n >= int(count) {
		return 0
	}
	return count - uint16(n)
}

// execSeek decodes the six-byte BBCCHH seek argument and drives the FT/FC
// sequence a real seek issues: select, set cylinder, set head+sign, then a
// control pulse with the start-seek bit. Cylinders on 2311/2314-class
// drives fit in a byte, so only the low cylinder byte is meaningful.
func (cu *ControlUnit) execSeek(d *drive.Interface, ccw host.CCW, mem []byte) (host.CSW, error) {
	if int(ccw.Addr)+6 > len(mem) {
		cu.sense.Set(host.SenseSeekCheck)
		return host.CSW{Status: host.StatusUnitCheck, Count: ccw.Count}, fmt.Errorf("ctlunit: seek address data out of range")
	}
	b := mem[ccw.Addr : ccw.Addr+6]
	return cu.seekTo(d, ccw, b[3], b[5])
}

// seekTo moves d to (cyl, head), waiting out the scheduled seek-completion
// event, and raises Request-In for the device-end polling path.
func (cu *ControlUnit) seekTo(d *drive.Interface, ccw host.CCW, cyl, head byte) (host.CSW, error) {
	cu.formatted[d] = false
	d.SetTags(drive.FTSelect|drive.FTSetCylinder, cyl)
	d.SetTags(drive.FTSelect|drive.FTSetHeadAndSign, head)
	d.SetTags(drive.FTSelect|drive.FTControl, drive.FCStartSeek)

	for i := 0; i < maxSpinBytes && !d.CheckAttn(); i++ {
		cu.Clock.Advance(noopStepper{})
	}
	if !d.CheckAttn() {
		cu.sense.Set(host.SenseSeekCheck)
		return host.CSW{Status: host.StatusUnitCheck | host.StatusChannelEnd | host.StatusDeviceEnd, Count: ccw.Count}, ErrNoRecordFound
	}
	// Seek complete: the drive asks for reselection to present its
	// device-end status.
	cu.Bus.RaiseIn(bus.InTags{RequestIn: true}, 0)
	cu.Engine.Cond.Attention = true
	d.ClearAttn()
	return okCSW(ccw), nil
}

type noopStepper struct{}

func (noopStepper) Step() {}

// spinToState advances d one sub-tick at a time until its disk reports
// being in state name, bounded by maxSpinBytes.
func (cu *ControlUnit) spinToState(d *drive.Interface, name string) error {
	for i := 0; i < maxSpinBytes; i++ {
		if d.Disk().StateName() == name {
			return nil
		}
		d.Step()
	}
	cu.sense.Set1(host.Sense1NoRecordFound)
	return ErrNoRecordFound
}

func (cu *ControlUnit) readHA(d *drive.Interface, ccw host.CCW, mem []byte) (host.CSW, error) {
	csw, err := cu.transfer(d, ccw, mem, "HA", 5, false)
	if err == nil && int(ccw.Addr)+5 <= len(mem) {
		cu.sense.SetLastHA(mem[ccw.Addr+2], mem[ccw.Addr+4], 0)
	}
	return csw, err
}

func (cu *ControlUnit) writeHA(d *drive.Interface, ccw host.CCW, mem []byte) (host.CSW, error) {
	csw, err := cu.transfer(d, ccw, mem, "HA", 5, true)
	if err == nil {
		cu.formatted[d] = true
		if int(ccw.Addr)+5 <= len(mem) {
			cu.sense.SetLastHA(mem[ccw.Addr+2], mem[ccw.Addr+4], 0)
		}
	}
	return csw, err
}

func (cu *ControlUnit) transfer(d *drive.Interface, ccw host.CCW, mem []byte, state string, n int, write bool) (host.CSW, error) {
	if err := cu.spinToState(d, state); err != nil {
		return host.CSW{Status: host.StatusUnitCheck | host.StatusChannelEnd | host.StatusDeviceEnd, Count: ccw.Count}, err
	}
	if int(ccw.Addr)+n > len(mem) {
		n = len(mem) - int(ccw.Addr)
	}
	count := cu.copyField(d, mem, int(ccw.Addr), n, write)
	return host.CSW{Status: host.StatusChannelEnd | host.StatusDeviceEnd, Count: residual(ccw.Count, count)}, nil
}

// readBackward reads the same physical data-field bytes a forward read
// would, but delivers them to storage in reverse order, the way the
// channel's backward-read tag sequencing does without the drive actually
// spinning in reverse.
func (cu *ControlUnit) readBackward(d *drive.Interface, ccw host.CCW, mem []byte) (host.CSW, error) {
	if err := cu.spinToState(d, "Data"); err != nil {
		return host.CSW{Status: host.StatusUnitCheck | host.StatusChannelEnd | host.StatusDeviceEnd, Count: ccw.Count}, err
	}
	n := int(ccw.Count)
	forward := make([]byte, 0, n)
	cu.setGate(igBitReadGate)
	for len(forward) < n {
		b, _, _, valid := d.Disk().ReadByte()
		if valid {
			forward = append(forward, cu.serviceByte(b, false))
		}
	}
	cu.clearGate(igBitReadGate)
	if int(ccw.Addr)+n > len(mem) {
		n = len(mem) - int(ccw.Addr)
	}
	for i := 0; i < n; i++ {
		mem[int(ccw.Addr)+i] = forward[len(forward)-1-i]
	}
	return host.CSW{Status: host.StatusChannelEnd | host.StatusDeviceEnd, Count: residual(ccw.Count, n)}, nil
}

// spinToCount lands the drive on whichever count field comes around first.
func (cu *ControlUnit) spinToCount(d *drive.Interface) error {
	for i := 0; i < maxSpinBytes; i++ {
		s := d.Disk().StateName()
		if s == "Count0" || s == "Count1" {
			return nil
		}
		d.Step()
	}
	cu.sense.Set1(host.Sense1NoRecordFound)
	return ErrNoRecordFound
}

func (cu *ControlUnit) readCount(d *drive.Interface, ccw host.CCW, mem []byte) (host.CSW, error) {
	if err := cu.spinToCount(d); err != nil {
		return host.CSW{Status: host.StatusUnitCheck | host.StatusChannelEnd | host.StatusDeviceEnd, Count: ccw.Count}, err
	}
	n := 8
	if int(ccw.Addr)+n > len(mem) {
		n = len(mem) - int(ccw.Addr)
	}
	count := cu.copyField(d, mem, int(ccw.Addr), n, false)
	return host.CSW{Status: host.StatusChannelEnd | host.StatusDeviceEnd, Count: residual(ccw.Count, count)}, nil
}

// skipField consumes n byte-stream bytes without transferring them. A
// whole count field is 10: eight content bytes plus the two running
// checksum bytes, after which the drive has latched the record's key and
// data lengths.
func (cu *ControlUnit) skipField(d *drive.Interface, n int) {
	for i := 0; i < n; i++ {
		for {
			_, _, _, valid := d.Disk().ReadByte()
			if valid {
				break
			}
		}
	}
}

// readR0 positions on the track descriptor record (the first count field
// after index) and transfers its data area.
func (cu *ControlUnit) readR0(d *drive.Interface, ccw host.CCW, mem []byte) (host.CSW, error) {
	if err := cu.spinToState(d, "Count0"); err != nil {
		return host.CSW{Status: host.StatusUnitCheck | host.StatusChannelEnd | host.StatusDeviceEnd, Count: ccw.Count}, err
	}
	cu.skipField(d, 10)
	dlen := d.Disk().CurrentDataLen()
	if err := cu.spinToState(d, "Data"); err != nil {
		return host.CSW{Status: host.StatusUnitCheck | host.StatusChannelEnd | host.StatusDeviceEnd, Count: ccw.Count}, err
	}
	n := dlen
	if int(ccw.Count) < n {
		n = int(ccw.Count)
	}
	if int(ccw.Addr)+n > len(mem) {
		n = len(mem) - int(ccw.Addr)
	}
	count := cu.copyField(d, mem, int(ccw.Addr), n, false)
	return host.CSW{Status: host.StatusChannelEnd | host.StatusDeviceEnd, Count: residual(ccw.Count, count)}, nil
}

// writeR0 rewrites the track descriptor record's data area. Like the other
// format writes it is only legal in a sequence that began with Write HA.
func (cu *ControlUnit) writeR0(d *drive.Interface, ccw host.CCW, mem []byte) (host.CSW, error) {
	if !cu.formatted[d] {
		cu.sense.Set(host.SenseCommandReject)
		return host.CSW{Status: host.StatusUnitCheck, Count: ccw.Count}, fmt.Errorf("ctlunit: write R0 without a preceding Write HA")
	}
	if err := cu.spinToState(d, "Count0"); err != nil {
		return host.CSW{Status: host.StatusUnitCheck | host.StatusChannelEnd | host.StatusDeviceEnd, Count: ccw.Count}, err
	}
	cu.skipField(d, 10)
	dlen := d.Disk().CurrentDataLen()
	if err := cu.spinToState(d, "Data"); err != nil {
		return host.CSW{Status: host.StatusUnitCheck | host.StatusChannelEnd | host.StatusDeviceEnd, Count: ccw.Count}, err
	}
	n := dlen
	if int(ccw.Count) < n {
		n = int(ccw.Count)
	}
	if int(ccw.Addr)+n > len(mem) {
		n = len(mem) - int(ccw.Addr)
	}
	count := cu.copyField(d, mem, int(ccw.Addr), n, true)
	return host.CSW{Status: host.StatusChannelEnd | host.StatusDeviceEnd, Count: residual(ccw.Count, count)}, nil
}

func (cu *ControlUnit) readKeyAndData(d *drive.Interface, ccw host.CCW, mem []byte) (host.CSW, error) {
	if err := cu.spinToCount(d); err != nil {
		return host.CSW{Status: host.StatusUnitCheck | host.StatusChannelEnd | host.StatusDeviceEnd, Count: ccw.Count}, err
	}
	cu.skipField(d, 10)
	klen := d.Disk().CurrentKeyLen()
	dlen := d.Disk().CurrentDataLen()

	off := int(ccw.Addr)
	total := 0
	if klen > 0 {
		if err := cu.spinToState(d, "Key"); err != nil {
			return host.CSW{Status: host.StatusUnitCheck, Count: ccw.Count}, err
		}
		total += cu.copyField(d, mem, off+total, klen, false)
	}
	if err := cu.spinToState(d, "Data"); err != nil {
		return host.CSW{Status: host.StatusUnitCheck, Count: ccw.Count}, err
	}
	total += cu.copyField(d, mem, off+total, dlen, false)
	return host.CSW{Status: host.StatusChannelEnd | host.StatusDeviceEnd, Count: residual(ccw.Count, total)}, nil
}

// copyField moves n field bytes between the drive's byte pipe and host
// storage, one service cycle per byte: on a write each byte crosses the
// bus before the serdes slot it lands in comes around; on a read each
// byte comes off the disk first and is then presented under Service-In.
func (cu *ControlUnit) copyField(d *drive.Interface, mem []byte, off, n int, write bool) int {
	if off+n > len(mem) {
		n = len(mem) - off
	}
	gate := byte(igBitReadGate)
	if write {
		gate = igBitWriteGate
	}
	cu.setGate(gate)
	count := 0
	for count < n {
		if write {
			b := cu.serviceByte(mem[off+count], true)
			for {
				_, _, valid := d.Disk().WriteByte(b)
				if valid {
					break
				}
			}
			count++
		} else {
			b, _, _, valid := d.Disk().ReadByte()
			if !valid {
				continue
			}
			mem[off+count] = cu.serviceByte(b, false)
			count++
		}
	}
	cu.clearGate(gate)
	return count
}

func (cu *ControlUnit) searchIDEqual(d *drive.Interface, ccw host.CCW, mem []byte) (host.CSW, error) {
	if err := cu.spinToState(d, "Count1"); err != nil {
		return host.CSW{Status: host.StatusUnitCheck | host.StatusChannelEnd | host.StatusDeviceEnd, Count: ccw.Count}, err
	}
	if int(ccw.Addr)+5 > len(mem) {
		cu.sense.Set(host.SenseCommandReject)
		return host.CSW{Status: host.StatusUnitCheck, Count: ccw.Count}, fmt.Errorf("ctlunit: search argument out of range")
	}
	want := mem[ccw.Addr : ccw.Addr+5]
	// The five argument bytes cross the bus one service cycle each and are
	// compared against the ID field coming off the disk as it passes.
	equal := true
	cu.setGate(igBitWriteGate)
	for i := 0; i < 5; i++ {
		var fromDisk byte
		for {
			b, _, _, valid := d.Disk().ReadByte()
			if valid {
				fromDisk = b
				break
			}
		}
		if cu.serviceByte(want[i], true) != fromDisk {
			equal = false
		}
	}
	cu.clearGate(igBitWriteGate)
	cu.skipField(d, 3)
	status := byte(host.StatusChannelEnd | host.StatusDeviceEnd)
	if equal {
		status |= host.StatusStatusModifier
	}
	return host.CSW{Status: status}, nil
}
