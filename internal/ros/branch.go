package ros

// chSource resolves the X6 branch-bit source: constants, ST-bit samples,
// the OP low bit, the out-tag lines, and the live ALU carry. Value 8 is
// the jump-table override and never reaches here as a condition
// (nextAddress intercepts it); it reads as constant 0 for completeness.
func (e *Engine) chSource(ch byte) bool {
	switch ch {
	case 0:
		return false
	case 1:
		return true
	case 2:
		return e.Regs[ST]&STEndOfTrack != 0
	case 3:
		return e.Regs[ST]&STDataMove != 0
	case 4:
		return e.Regs[ST]&STCarry != 0
	case 5:
		return e.Regs[ST]&STOpInProgress != 0
	case 6:
		return e.Regs[ST]&STEnd != 0
	case 7:
		return e.Regs[OP]&0x01 != 0
	case 8:
		return false
	case 9:
		return e.Cond.CommandOut
	case 10:
		return e.Cond.ServiceOut
	case 11:
		return e.Cond.SuppressOut
	case 12:
		return e.Cond.OperationalOut
	case 13:
		return e.Cond.AddressOut
	case 14:
		return e.Cond.SelectOut
	default:
		return e.carryOut
	}
}

// clSource resolves the X7 branch-bit source: the selection-outcome
// latches (SELTO, SORSP), the index pulse, the D==0 test, the in-tag and
// drive signals, and the bus parity check.
func (e *Engine) clSource(cl byte) bool {
	switch cl {
	case 0:
		return false
	case 1:
		return true
	case 2:
		return e.Cond.Selto
	case 3:
		return e.Cond.Sorsp
	case 4:
		return e.Cond.Index
	case 5:
		return !e.dNotZero
	case 6:
		return e.dNotZero
	case 7:
		return e.Cond.ServiceIn
	case 8:
		return e.Cond.StatusIn
	case 9:
		return e.Cond.RequestIn
	case 10:
		return e.Cond.Attention
	case 11:
		return e.Cond.AddressMark
	case 12:
		return e.Cond.BusParityOK
	case 13:
		return !e.Cond.BusParityOK
	case 14:
		return e.Cond.OperationalIn
	default:
		return e.TR1
	}
}
