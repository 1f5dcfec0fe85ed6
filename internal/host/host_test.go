package host

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCCWRoundTrip(t *testing.T) {
	c := CCW{Opcode: CmdReadKD, Addr: 0x001234, Flags: FlagCC, Count: 80}
	got := DecodeCCW(c.Encode())
	assert.Equal(t, c, got)
	assert.True(t, got.ChainsCommand())
	assert.False(t, got.ChainsData())
}

func TestCAWRoundTrip(t *testing.T) {
	c := CAW{Key: 0x3, Addr: 0x004000}
	got := DecodeCAW(c.Encode())
	assert.Equal(t, c, got)
}

func TestCSWRoundTrip(t *testing.T) {
	c := CSW{Key: 0x1, Addr: 0x005008, Status: StatusChannelEnd | StatusDeviceEnd, Channel: ChanIncorrectLength, Count: 40}
	got := DecodeCSW(c.Encode())
	assert.Equal(t, c, got)
}

func TestSenseBits(t *testing.T) {
	var s Sense
	assert.False(t, s.Has(SenseCommandReject))
	s.Set(SenseCommandReject)
	assert.True(t, s.Has(SenseCommandReject))
	s.Set1(Sense1NoRecordFound)
	assert.True(t, s.Has1(Sense1NoRecordFound))
	s.SetLastHA(0x10, 0x05, 0x00)
	assert.Equal(t, byte(0x10), s[2])
	assert.Equal(t, byte(0x05), s[3])
	s.Clear()
	assert.False(t, s.Has(SenseCommandReject))
	assert.Equal(t, byte(0), s[2])
}

func TestDriverChainsCommands(t *testing.T) {
	mem := make([]byte, 128)
	copy(mem[64:72], CCW{Opcode: CmdNOP, Flags: FlagCC}.Encode())
	copy(mem[72:80], CCW{Opcode: CmdNOP}.Encode())

	var executed []byte
	exec := func(addr byte, ccw CCW, m []byte) (CSW, error) {
		executed = append(executed, ccw.Opcode)
		return CSW{Status: StatusChannelEnd | StatusDeviceEnd}, nil
	}
	drv := NewDriver(exec)
	csw, err := drv.Run(0, CAW{Addr: 64}, mem)
	assert.NoError(t, err)
	assert.Equal(t, []byte{CmdNOP, CmdNOP}, executed)
	assert.Equal(t, byte(StatusChannelEnd|StatusDeviceEnd), csw.Status)
	assert.Equal(t, uint32(80), csw.Addr)
}

func TestDriverStoresFinalCSW(t *testing.T) {
	mem := make([]byte, 128)
	copy(mem[64:72], CCW{Opcode: CmdNOP, Count: 1}.Encode())

	exec := func(addr byte, ccw CCW, m []byte) (CSW, error) {
		return CSW{Status: StatusChannelEnd | StatusDeviceEnd, Count: ccw.Count}, nil
	}
	drv := NewDriver(exec)
	csw, err := drv.Run(0, CAW{Addr: 64}, mem)
	require.NoError(t, err)

	stored := DecodeCSW(mem[CSWOffset : CSWOffset+8])
	assert.Equal(t, csw, stored)
	assert.Equal(t, byte(0x0C), stored.Status)
	assert.Equal(t, uint16(1), stored.Count)
	// Nop is an immediate command, so its residual never raises
	// Incorrect-Length.
	assert.Zero(t, stored.Channel&ChanIncorrectLength)
}

func TestDriverFlagsIncorrectLength(t *testing.T) {
	mem := make([]byte, 128)
	copy(mem[64:72], CCW{Opcode: CmdReadData, Count: 10}.Encode())

	exec := func(addr byte, ccw CCW, m []byte) (CSW, error) {
		return CSW{Status: StatusChannelEnd | StatusDeviceEnd, Count: 2}, nil
	}
	drv := NewDriver(exec)
	csw, err := drv.Run(0, CAW{Addr: 64}, mem)
	require.NoError(t, err)
	assert.NotZero(t, csw.Channel&ChanIncorrectLength)
}

func TestDriverSLISuppressesIncorrectLength(t *testing.T) {
	mem := make([]byte, 128)
	copy(mem[64:72], CCW{Opcode: CmdReadData, Flags: FlagSLI, Count: 10}.Encode())

	exec := func(addr byte, ccw CCW, m []byte) (CSW, error) {
		return CSW{Status: StatusChannelEnd | StatusDeviceEnd, Count: 2}, nil
	}
	drv := NewDriver(exec)
	csw, err := drv.Run(0, CAW{Addr: 64}, mem)
	require.NoError(t, err)
	assert.Zero(t, csw.Channel&ChanIncorrectLength)
}

func TestDriverStopsOnUnitCheck(t *testing.T) {
	mem := make([]byte, 128)
	copy(mem[64:72], CCW{Opcode: CmdReadData, Flags: FlagCC}.Encode())

	calls := 0
	exec := func(addr byte, ccw CCW, m []byte) (CSW, error) {
		calls++
		return CSW{Status: StatusUnitCheck}, nil
	}
	drv := NewDriver(exec)
	_, _ = drv.Run(0, CAW{Addr: 64}, mem)
	assert.Equal(t, 1, calls)
}

func TestDriverFollowsTIC(t *testing.T) {
	mem := make([]byte, 128)
	copy(mem[64:72], CCW{Opcode: CmdTIC, Addr: 80}.Encode())
	copy(mem[80:88], CCW{Opcode: CmdNOP}.Encode())

	var executed []byte
	exec := func(addr byte, ccw CCW, m []byte) (CSW, error) {
		executed = append(executed, ccw.Opcode)
		return CSW{Status: StatusChannelEnd | StatusDeviceEnd}, nil
	}
	drv := NewDriver(exec)
	_, err := drv.Run(0, CAW{Addr: 64}, mem)
	assert.NoError(t, err)
	assert.Equal(t, []byte{CmdNOP}, executed)
}

func TestRunFromStorageFetchesCAW(t *testing.T) {
	mem := make([]byte, 128)
	copy(mem[CAWOffset:CAWOffset+4], CAW{Addr: 96}.Encode())
	copy(mem[96:104], CCW{Opcode: CmdNOP}.Encode())

	var executed []byte
	exec := func(addr byte, ccw CCW, m []byte) (CSW, error) {
		executed = append(executed, ccw.Opcode)
		return CSW{Status: StatusChannelEnd | StatusDeviceEnd}, nil
	}
	drv := NewDriver(exec)
	_, err := drv.RunFromStorage(0, mem)
	require.NoError(t, err)
	assert.Equal(t, []byte{CmdNOP}, executed)
}
