package res

import "fmt"

// ID is a packed 0xPPTTEEEE resource identifier. Equality is by the raw
// value; Package reports the library placeholder 0 as 2.
type ID uint32

func NewID(pkg, typ, entry int) ID {
	return ID(uint32(pkg&0xff)<<24 | uint32(typ&0xff)<<16 | uint32(entry&0xffff))
}

func (id ID) Package() int {
	if p := int(id >> 24); p != 0 {
		return p
	}
	return 2
}

func (id ID) Type() int {
	return int((id >> 16) & 0xff)
}

func (id ID) Entry() int {
	return int(id & 0xffff)
}

func (id ID) String() string {
	return fmt.Sprintf("0x%08x", uint32(id))
}
