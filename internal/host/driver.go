package host

import "fmt"

// Executor runs one CCW against a device address and returns the resulting
// CSW. ControlUnit.Execute satisfies this; Driver takes it as a plain func
// value so this package never has to import internal/ctlunit (which
// imports this one for CCW/CSW).
type Executor func(addr byte, ccw CCW, mem []byte) (CSW, error)

// maxChainLength guards against a runaway TIC loop in a malformed channel
// program.
const maxChainLength = 4096

// Driver walks a CCW chain starting at a CAW the way a real channel would:
// fetch, execute, and follow CC/TIC chaining until an unchained CCW
// completes or an error status ends the chain. On termination the final
// CSW is stored at absolute location 0x40 of the program's storage.
type Driver struct {
	Exec Executor
}

// NewDriver returns a Driver bound to exec.
func NewDriver(exec Executor) *Driver {
	return &Driver{Exec: exec}
}

// Run executes the channel program addressed by caw against mem, which
// represents host storage (CCWs and data both live in it, at their CAW/CCW-
// specified offsets). addr is the target device address.
func (drv *Driver) Run(addr byte, caw CAW, mem []byte) (CSW, error) {
	ccwAddr := caw.Addr
	var last CSW
	for i := 0; i < maxChainLength; i++ {
		if int(ccwAddr)+8 > len(mem) {
			last.Channel |= ChanProgramCheck
			drv.store(last, mem)
			return last, fmt.Errorf("host: CCW address %#x out of range", ccwAddr)
		}
		ccw := DecodeCCW(mem[ccwAddr : ccwAddr+8])
		if ccw.Opcode == CmdTIC {
			ccwAddr = ccw.Addr
			continue
		}
		csw, err := drv.Exec(addr, ccw, mem)
		csw.Addr = ccwAddr + 8
		if csw.Count != 0 && !ccw.SuppressLength() && !immediate(ccw.Opcode) {
			csw.Channel |= ChanIncorrectLength
		}
		last = csw
		if err != nil {
			drv.store(last, mem)
			return csw, err
		}
		if csw.Status&(StatusUnitCheck|StatusUnitException) != 0 {
			drv.store(last, mem)
			return csw, nil
		}
		if !ccw.ChainsCommand() {
			drv.store(last, mem)
			return csw, nil
		}
		ccwAddr += 8
	}
	drv.store(last, mem)
	return last, fmt.Errorf("host: channel program exceeded %d CCWs (possible TIC loop)", maxChainLength)
}

// RunFromStorage fetches the CAW from its fixed location 0x48 and runs the
// program it addresses.
func (drv *Driver) RunFromStorage(addr byte, mem []byte) (CSW, error) {
	if len(mem) < CAWOffset+4 {
		return CSW{}, fmt.Errorf("host: storage too small to hold a CAW at %#x", CAWOffset)
	}
	return drv.Run(addr, DecodeCAW(mem[CAWOffset:CAWOffset+4]), mem)
}

// immediate reports whether op completes without a storage data transfer;
// such commands end CE+DE with the count untouched and never raise
// Incorrect-Length, whatever their residual.
func immediate(op byte) bool {
	switch op {
	case CmdNOP, CmdSeek, CmdRecalibrate, CmdRestore, CmdSetFileMask:
		return true
	}
	return false
}

// store writes the terminating CSW to its fixed location, when the
// program's storage is large enough to have one.
func (drv *Driver) store(csw CSW, mem []byte) {
	if len(mem) >= CSWOffset+8 {
		copy(mem[CSWOffset:CSWOffset+8], csw.Encode())
	}
}
