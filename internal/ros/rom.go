package ros

import (
	_ "embed"
	"fmt"
	"strconv"
	"strings"
)

// romSource is the microprogram ROM image, shipped as an embedded static
// resource. It is a text encoding so each word can carry its own four
// parity bits for LoadROM to verify, the way a hardware ROS load does.
//
//go:embed microprogram.rom
var romSource string

// ErrROMParity reports that a ROM line's stored parity bits do not match
// its content -- the simulated equivalent of a ROS parity error detected at
// microprogram load time.
type ErrROMParity struct{ Line int }

func (e ErrROMParity) Error() string {
	return fmt.Sprintf("ros: microprogram line %d fails parity check", e.Line)
}

// LoadROM parses the embedded microprogram and verifies every line's
// parity bits before returning it, so a corrupted ROM is caught at load
// time rather than silently misbehaving the first time it branches.
func LoadROM() ([]Microinstruction, error) {
	return parseROM(romSource)
}

func parseROM(src string) ([]Microinstruction, error) {
	var program []Microinstruction
	lineNo := 0
	for _, line := range strings.Split(src, "\n") {
		lineNo++
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 15 {
			return nil, fmt.Errorf("ros: microprogram line %d: expected 15 fields, got %d", lineNo, len(fields))
		}
		vals := make([]byte, 11)
		for i := 0; i < 11; i++ {
			n, err := strconv.ParseUint(fields[i], 0, 8)
			if err != nil {
				return nil, fmt.Errorf("ros: microprogram line %d: field %d: %w", lineNo, i, err)
			}
			vals[i] = byte(n)
		}
		m := Microinstruction{
			CA: Reg(vals[0]), CB: vals[1],
			CK: vals[2],
			CH: vals[3], CL: vals[4],
			CN: vals[5], CD: Reg(vals[6]),
			CV: vals[7], CC: vals[8], CS: vals[9], BP: vals[10],
			PA: fields[11] != "0",
			PS: fields[12] != "0",
			PN: fields[13] != "0",
			PC: fields[14] != "0",
		}
		if !VerifyParity(m) {
			return nil, ErrROMParity{Line: lineNo}
		}
		program = append(program, m)
	}
	return program, nil
}
