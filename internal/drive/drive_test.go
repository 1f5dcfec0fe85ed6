package drive

import (
	"path/filepath"
	"testing"

	"ckd2844/internal/disk"
	"ckd2844/internal/sim"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDrive(t *testing.T) (*Interface, *sim.Clock) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "drive0.img")
	d, _, err := disk.Attach(path, 2, 20, 1024, 0x11, true, false)
	require.NoError(t, err)
	t.Cleanup(func() { d.Detach() })
	clock := sim.NewClock()
	return New(d, clock), clock
}

func TestSeekSequence(t *testing.T) {
	iface, clock := newTestDrive(t)
	iface.SetTags(FTSelect|FTSetCylinder, 5)
	iface.SetTags(FTSelect|FTControl, FCStartSeek)

	assert.False(t, iface.CheckAttn())
	for i := 0; i < seekDelayTicks+1; i++ {
		clock.Advance(noop{})
		if iface.CheckAttn() {
			break
		}
	}
	assert.True(t, iface.CheckAttn())
	assert.Equal(t, 5, iface.CurCyl())
	iface.ClearAttn()
	assert.False(t, iface.CheckAttn())
}

type noop struct{}

func (noop) Step() {}

func TestUnselectedIgnoresCommands(t *testing.T) {
	iface, _ := newTestDrive(t)
	iface.SetTags(FTSetCylinder, 0xFF) // select bit clear
	iface.SetTags(FTControl, FCStartSeek)
	assert.Equal(t, 0, iface.CurCyl())
}

func TestSetTagsRequiresSelectBit(t *testing.T) {
	iface, _ := newTestDrive(t)
	assert.False(t, iface.Disk().Selected())
	iface.SetTags(FTSelect|FTSetCylinder, 7)
	assert.True(t, iface.Disk().Selected())
}

func TestControlGates(t *testing.T) {
	iface, _ := newTestDrive(t)
	iface.SetTags(FTSelect|FTSetHeadAndSign, 0x01)
	iface.SetTags(FTSelect|FTControl, FCHeadReset)
	// head reset brings the head back to 0.
	assert.NotNil(t, iface.Disk())
	assert.Equal(t, 0, iface.Disk().Head())
}

func TestSetHeadAndSignDecodesDirectionAndHead(t *testing.T) {
	iface, _ := newTestDrive(t)
	iface.SetTags(FTSelect|FTSetHeadAndSign, 0x85) // dir bit + head 5
	assert.True(t, iface.Disk().Selected())
	assert.Equal(t, 5, iface.Disk().Head())

	// Only the low nibble is the head number; the middle bits are not
	// part of it.
	iface.SetTags(FTSelect|FTSetHeadAndSign, 0x34)
	assert.Equal(t, 4, iface.Disk().Head())
}
