package compiler

// computeLoopLevels discovers loops from back-edges and labels every
// instruction with the nesting depth of the innermost loop enclosing it.
// Discovery is post-order over the provisional instruction stream: the
// first back-edge to an instruction marks it as a loop start; later
// back-edges to the same instruction extend the loop past its previous
// tail.
func (c *Compiler) computeLoopLevels() {
	for i, inst := range c.insts1 {
		t := inst.Target
		if t != nil && t != c.pendingInst && t.InstNum < i {
			j := t.InstNum

			if !t.LoopStart {
				// Loop is newly discovered.
				t.LoopStart = true
			} else {
				// We're extending an existing loop. Find its current end.
				depth := t.LoopDepth
				for j < i && c.insts1[j].LoopDepth == depth {
					j++
				}

				if c.insts1[j].LoopDepth != depth-1 {
					c.reporter.InternalError(
						"inconsistent loop depth %d at instruction %d",
						c.insts1[j].LoopDepth, j)
					return
				}
			}

			// Run from j's current position to i, bumping the loop depth.
			for j <= i {
				c.insts1[j].LoopDepth++
				j++
			}
		}

		// Secondary targets always refer forward.
		if inst.Target2 != nil && inst.Target2 != c.pendingInst &&
			inst.Target2.InstNum <= i {
			c.reporter.InternalError(
				"backward secondary branch target at instruction %d", i)
		}
	}
}
