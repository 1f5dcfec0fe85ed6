// Package bus implements ChannelBus, the shared bus-and-tag interconnect
// between a HostChannel and the devices attached to it (ControlUnit, in this
// system).
//
// A Bus has no memory of its own -- it is a set of wires. Components are
// connected to a Bus by holding a pointer to it: every device computes the
// in-tags it wants held high and the host computes the out-tags, and the
// Bus combines them each tick.
package bus

import "ckd2844/mask"

// OutTags are driven host -> device.
type OutTags struct {
	OperationalOut bool
	AddressOut     bool
	CommandOut     bool
	ServiceOut     bool
	SuppressOut    bool
	HoldOut        bool
	SelectOut      bool
}

// InTags are driven device -> host. SelectIn is Select-Out propagated along
// the daisy chain when no device in front of this one claims it. In this
// single-device model the control unit claims every selection (it answers
// with OperationalIn, or with StatusIn on the short-busy path), so nothing
// raises SelectIn.
type InTags struct {
	OperationalIn bool
	AddressIn     bool
	StatusIn      bool
	ServiceIn     bool
	RequestIn     bool
	SelectIn      bool
}

// Word is a 9-bit bus transfer: 8 data bits plus an odd-parity bit.
type Word struct {
	Data   byte
	Parity bool
}

// NewWord builds a Word with correct odd parity for data.
func NewWord(data byte) Word {
	return Word{Data: data, Parity: mask.OddParity(data)}
}

// Valid reports whether the word's parity bit is consistent with its data,
// i.e. whether the transfer is not a bus-parity error.
func (w Word) Valid() bool {
	return mask.CheckParity(w.Data, w.Parity)
}

// Bus is the shared record carrying bidirectional tag lines and the two
// 9-bit parallel buses. It is passed by pointer through each device's step
// function in tick order; nothing here owns a goroutine or a lock; the
// single-threaded tick loop (internal/sim) is the only synchronization.
type Bus struct {
	Out    OutTags
	In     InTags
	BusOut Word // host -> device data
	BusIn  Word // device -> host data
}

// Reset clears every tag and data line, as happens on a channel reset
// (Operational-Out dropped for one tick).
func (b *Bus) Reset() {
	*b = Bus{}
}

// SetOut lets the host drive its out-tags and bus-out word for this tick.
func (b *Bus) SetOut(tags OutTags, data byte) {
	b.Out = tags
	b.BusOut = NewWord(data)
}

// RaiseIn ORs a device's desired in-tags onto the bus -- the wired-OR
// convention on the in side. Call once per device per tick; with a single
// attached control unit this reduces to a direct assignment.
func (b *Bus) RaiseIn(tags InTags, data byte) {
	b.In.OperationalIn = b.In.OperationalIn || tags.OperationalIn
	b.In.AddressIn = b.In.AddressIn || tags.AddressIn
	b.In.StatusIn = b.In.StatusIn || tags.StatusIn
	b.In.ServiceIn = b.In.ServiceIn || tags.ServiceIn
	b.In.RequestIn = b.In.RequestIn || tags.RequestIn
	b.In.SelectIn = b.In.SelectIn || tags.SelectIn
	if tags.OperationalIn || tags.AddressIn || tags.StatusIn || tags.ServiceIn {
		b.BusIn = NewWord(data)
	}
}

// ClearIn drops every in-tag; called at the start of each tick before
// devices raise the ones they want, and unconditionally on channel reset.
func (b *Bus) ClearIn() {
	b.In = InTags{}
}
