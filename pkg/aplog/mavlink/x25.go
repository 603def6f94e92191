package mavlink

// crcX25 is the CRC-16/MCRF4XX accumulator MAVLink frames are checksummed
// with. The seed is 0xFFFF; the per-message CRC_EXTRA byte is folded in last.
type crcX25 uint16

func newCRC() crcX25 { return 0xFFFF }

func (c *crcX25) accumulate(b byte) {
	tmp := b ^ byte(*c&0xFF)
	tmp ^= tmp << 4
	*c = (*c >> 8) ^ (crcX25(tmp) << 8) ^ (crcX25(tmp) << 3) ^ (crcX25(tmp) >> 4)
}

func (c *crcX25) accumulateBytes(p []byte) {
	for _, b := range p {
		c.accumulate(b)
	}
}

func (c crcX25) sum() uint16 { return uint16(c) }
