package compiler

import (
	"errors"
	"fmt"

	"github.com/sowmyaramapatruni/zeek/zam"
)

// ErrDuplicateSlot is returned by AddToFrame when the identifier already
// occupies a frame slot.
var ErrDuplicateSlot = errors.New("identifier already has a frame slot")

// AddToFrame appends a new frame slot for id and returns its index. Slot
// indices are dense and assigned in insertion order.
func (c *Compiler) AddToFrame(id *zam.ID) (int, error) {
	if _, ok := c.frameLayout1[id]; ok {
		return 0, fmt.Errorf("%w: %s", ErrDuplicateSlot, id.Name)
	}
	slot := len(c.frameDenizens)
	c.frameDenizens = append(c.frameDenizens, id)
	c.frameLayout1[id] = slot
	return slot, nil
}

// HasFrameSlot reports whether id has been assigned a frame slot.
func (c *Compiler) HasFrameSlot(id *zam.ID) bool {
	_, ok := c.frameLayout1[id]
	return ok
}

// FrameSlot returns the slot assigned to id.
func (c *Compiler) FrameSlot(id *zam.ID) (int, bool) {
	slot, ok := c.frameLayout1[id]
	return slot, ok
}

// FrameSize returns the number of slots in the unoptimized layout.
func (c *Compiler) FrameSize() int {
	return len(c.frameDenizens)
}

// classifyManaged returns the slots whose identifier's type requires
// explicit lifetime management, in slot order.
func (c *Compiler) classifyManaged() []int {
	var managed []int
	for slot, id := range c.frameDenizens {
		if zam.IsManagedType(id.Type) {
			managed = append(managed, slot)
		}
	}
	return managed
}
