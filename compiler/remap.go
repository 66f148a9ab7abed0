package compiler

import "github.com/sowmyaramapatruni/zeek/zam"

// liveRange is the span of provisional instructions over which a frame
// slot's identifier is referenced. The span is textual (min to max
// occurrence), widened to cover every loop it overlaps, which is
// conservative across back-edges.
type liveRange struct {
	first, last int
	used        bool
}

// remapFrame coalesces identifiers with disjoint live ranges into shared
// frame slots, rewriting slot operands throughout the instruction stream
// and producing the sharing descriptors the finalizer later projects onto
// the compacted numbering. Globals are never coalesced: they stay resident
// for the whole body.
func (c *Compiler) remapFrame() {
	n := len(c.frameDenizens)
	if n == 0 || len(c.insts1) == 0 {
		return
	}

	ranges := make([]liveRange, n)

	for _, g := range c.globalsI {
		ranges[g.Slot] = liveRange{first: 0, last: len(c.insts1) - 1, used: true}
	}

	for idx, inst := range c.insts1 {
		if !inst.Live {
			continue
		}
		roles := inst.Op.SlotRoles()
		for k, role := range roles {
			if role == zam.RoleNone {
				continue
			}
			s := inst.SlotOperand(k)
			if s < 0 || s >= n {
				continue
			}
			r := &ranges[s]
			if !r.used {
				*r = liveRange{first: idx, last: idx, used: true}
			} else {
				if idx < r.first {
					r.first = idx
				}
				if idx > r.last {
					r.last = idx
				}
			}
		}
	}

	// A range overlapping a loop [head, back-edge] covers the whole loop.
	for widened := true; widened; {
		widened = false
		for idx, inst := range c.insts1 {
			if t := inst.Target; inst.Live && t != nil && t != c.pendingInst && t.InstNum < idx {
				for s := range ranges {
					if r := &ranges[s]; r.used && r.first <= idx && r.last >= t.InstNum &&
						(r.first > t.InstNum || r.last < idx) {
						r.first, r.last = min(r.first, t.InstNum), max(r.last, idx)
						widened = true
					}
				}
			}
		}
	}

	type slotGroup struct {
		slots       []int
		first, last int
		managed     bool
		shareable   bool
	}

	var groups []*slotGroup
	newSlot := make([]int, n)

	for s := 0; s < n; s++ {
		id := c.frameDenizens[s]
		managed := zam.IsManagedType(id.Type)
		shareable := ranges[s].used && id.Kind != zam.KindGlobal

		placed := false
		if shareable {
			for gi, g := range groups {
				if g.shareable && g.managed == managed &&
					(ranges[s].first > g.last || ranges[s].last < g.first) {
					g.slots = append(g.slots, s)
					if ranges[s].first < g.first {
						g.first = ranges[s].first
					}
					if ranges[s].last > g.last {
						g.last = ranges[s].last
					}
					newSlot[s] = gi
					placed = true
					break
				}
			}
		}

		if !placed {
			groups = append(groups, &slotGroup{
				slots:     []int{s},
				first:     ranges[s].first,
				last:      ranges[s].last,
				managed:   managed,
				shareable: shareable,
			})
			newSlot[s] = len(groups) - 1
		}
	}

	// Rewrite slot operands to the coalesced numbering. Dead instructions
	// are rewritten too, to keep the diagnostic listings in one namespace.
	for _, inst := range c.insts1 {
		roles := inst.Op.SlotRoles()
		for k, role := range roles {
			if role == zam.RoleNone {
				continue
			}
			s := inst.SlotOperand(k)
			if s >= 0 && s < n {
				inst.SetSlotOperand(k, newSlot[s])
			}
		}
	}

	for i := range c.globalsI {
		c.globalsI[i].Slot = newSlot[c.globalsI[i].Slot]
	}

	c.managedSlotsI = nil
	for gi, g := range groups {
		if g.managed {
			c.managedSlotsI = append(c.managedSlotsI, gi)
		}
	}

	for _, g := range groups {
		info := zam.FrameSharingInfo{IsManaged: g.managed}
		scopeEnd := 0
		for _, s := range g.slots {
			info.IDs = append(info.IDs, c.frameDenizens[s])
			if ranges[s].used {
				info.IDStart = append(info.IDStart, ranges[s].first)
				if ranges[s].last+1 > scopeEnd {
					scopeEnd = ranges[s].last + 1
				}
			} else {
				info.IDStart = append(info.IDStart, 0)
			}
		}
		info.ScopeEnd = scopeEnd
		c.sharedFrameDenizens = append(c.sharedFrameDenizens, info)
	}
}
