// Package itu describes the SH-1 integrated timer-pulse unit (ITU) and
// provides register access to it, real or simulated.
package itu

import "fmt"

// Register addresses. TCNT and GRA are 16 bit, the rest 8 bit.
const (
	TSTR uint32 = 0x05ffff00 // timer start register, shared by all channels

	TCR0  uint32 = 0x05ffff04 // channel 0 control
	TIOR0 uint32 = 0x05ffff05 // channel 0 I/O control
	TIER0 uint32 = 0x05ffff06 // channel 0 interrupt enable
	TSR0  uint32 = 0x05ffff07 // channel 0 status
	TCNT0 uint32 = 0x05ffff08 // channel 0 counter
	GRA0  uint32 = 0x05ffff0a // channel 0 general register A
	GRB0  uint32 = 0x05ffff0c // channel 0 general register B
)

// CounterBits is the width of TCNT and the general registers.
const CounterBits = 16

// TCR bits
const (
	TCR_DIV1 uint8 = 0 << 0 // TPSC: internal clock phi
	TCR_DIV2 uint8 = 1 << 0 // phi/2
	TCR_DIV4 uint8 = 2 << 0 // phi/4
	TCR_DIV8 uint8 = 3 << 0 // phi/8
	TCR_TPSC uint8 = 7 << 0
	TCR_CGRA uint8 = 1 << 5 // CCLR=01: TCNT cleared by GRA compare match
	TCR_CGRB uint8 = 2 << 5 // CCLR=10: TCNT cleared by GRB compare match
	TCR_CCLR uint8 = 3 << 5
)

// TIER bits
const (
	TIER_IMIEA uint8 = 1 << 0 // GRA compare match interrupt enable
	TIER_IMIEB uint8 = 1 << 1
	TIER_OVIE  uint8 = 1 << 2
)

// TSR bits
const (
	TSR_IMFA  uint8 = 1 << 0 // GRA compare match flag
	TSR_IMFB  uint8 = 1 << 1
	TSR_OVF   uint8 = 1 << 2
	TSR_FLAGS uint8 = TSR_IMFA | TSR_IMFB | TSR_OVF
)

// TSTR bits
const TSTR_STR0 uint8 = 1 << 0 // channel 0 counting

// DividerBits returns the TPSC bits selecting div.
func DividerBits(div uint32) (uint8, error) {
	switch div {
	case 1:
		return TCR_DIV1, nil
	case 2:
		return TCR_DIV2, nil
	case 4:
		return TCR_DIV4, nil
	case 8:
		return TCR_DIV8, nil
	}
	return 0, fmt.Errorf("itu: no prescaler setting for divider %d", div)
}

// dividerOf is the inverse of DividerBits for the internal clock settings.
func dividerOf(tcr uint8) uint64 {
	switch tcr & TCR_TPSC {
	case TCR_DIV2:
		return 2
	case TCR_DIV4:
		return 4
	case TCR_DIV8:
		return 8
	}
	return 1
}

// AckMode is how a status flag is acknowledged.
type AckMode uint8

const (
	// AckWrite0 clears a flag by writing 0 to it after reading it set
	// (read-modify-write, SH-1 behaviour).
	AckWrite0 AckMode = iota
	// AckWrite1 clears a flag by writing 1 to it; 0 bits are ignored.
	AckWrite1
)

func (m AckMode) String() string {
	switch m {
	case AckWrite0:
		return "w0c"
	case AckWrite1:
		return "w1c"
	default:
		return "unknown"
	}
}

// ParseAckMode converts a config name to an AckMode.
func ParseAckMode(s string) (AckMode, error) {
	switch s {
	case "", "w0c":
		return AckWrite0, nil
	case "w1c":
		return AckWrite1, nil
	}
	return 0, fmt.Errorf("itu: unknown ack mode %q", s)
}
