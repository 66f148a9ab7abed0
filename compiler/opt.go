package compiler

import "github.com/sowmyaramapatruni/zeek/zam"

// maxOptPasses bounds the rewrite fixpoint iteration.
const maxOptPasses = 32

// optimizeInsts marks dead instructions non-live and threads branch
// chains. The live flag is monotone: once cleared it is never set again
// during finalization.
func (c *Compiler) optimizeInsts() {
	if len(c.insts1) == 0 {
		return
	}

	for pass := 0; pass < maxOptPasses; pass++ {
		changed := c.foldBranchChains()
		if c.removeSelfAssigns() {
			changed = true
		}
		if c.removeDeadCode() {
			changed = true
		}
		if c.removeRedundantJumps() {
			changed = true
		}
		if !changed {
			break
		}
	}

	c.remapFrame()

	// Slot sharing can leave copies of the form "slotX = slotX"; retire
	// them, along with anything that only they reached.
	if c.removeSelfAssigns() {
		c.removeDeadCode()
	}
}

// foldBranchChains threads branches whose target is an unconditional
// branch directly to the end of the chain.
func (c *Compiler) foldBranchChains() bool {
	changed := false
	for _, inst := range c.insts1 {
		if !inst.Live {
			continue
		}
		if inst.Target != nil {
			if t := c.threadTarget(inst.Target); t != inst.Target {
				inst.Target = t
				changed = true
			}
		}
		if inst.Target2 != nil {
			if t := c.threadTarget(inst.Target2); t != inst.Target2 {
				inst.Target2 = t
				changed = true
			}
		}
	}
	return changed
}

func (c *Compiler) threadTarget(t *zam.InstI) *zam.InstI {
	seen := make(map[*zam.InstI]bool)
	for t.IsForwarder() && t.Target != nil && !seen[t] {
		seen[t] = true
		t = t.Target
	}
	return t
}

// removeSelfAssigns retires copies of the form "slotX = slotX".
func (c *Compiler) removeSelfAssigns() bool {
	changed := false
	for _, inst := range c.insts1 {
		if inst.Live && inst.Op == zam.OpAssignVV && inst.V1 == inst.V2 {
			inst.Live = false
			changed = true
		}
	}
	return changed
}

// removeDeadCode retires instructions that no control path reaches.
// Retired instructions are transparent: execution that would fall through
// them continues at the next surviving instruction.
func (c *Compiler) removeDeadCode() bool {
	n := len(c.insts1)
	if n == 0 {
		return false
	}

	reached := make([]bool, n)
	var work []int

	push := func(i int) {
		if i >= 0 && i < n && !reached[i] {
			reached[i] = true
			work = append(work, i)
		}
	}

	push(0)

	for len(work) > 0 {
		i := work[len(work)-1]
		work = work[:len(work)-1]
		inst := c.insts1[i]

		if !inst.Live {
			push(i + 1)
			continue
		}

		if !inst.Op.IsTerminal() {
			push(i + 1)
		}

		if inst.Target != nil && inst.Target != c.pendingInst {
			push(inst.Target.InstNum)
		}
		if inst.Target2 != nil && inst.Target2 != c.pendingInst {
			push(inst.Target2.InstNum)
		}

		for _, t := range c.caseTargets(inst) {
			if t != c.pendingInst {
				push(t.InstNum)
			}
		}
	}

	changed := false
	for i, inst := range c.insts1 {
		if inst.Live && !reached[i] {
			inst.Live = false
			changed = true
		}
	}
	return changed
}

// caseTargets returns the case-table targets of a switch instruction.
func (c *Compiler) caseTargets(inst *zam.InstI) []*zam.InstI {
	var targets []*zam.InstI
	switch inst.Op {
	case zam.OpSwitchI:
		for _, t := range c.intCasesI[inst.V2] {
			targets = append(targets, t)
		}
	case zam.OpSwitchU:
		for _, t := range c.uintCasesI[inst.V2] {
			targets = append(targets, t)
		}
	case zam.OpSwitchD:
		for _, t := range c.doubleCasesI[inst.V2] {
			targets = append(targets, t)
		}
	case zam.OpSwitchS:
		for _, t := range c.strCasesI[inst.V2] {
			targets = append(targets, t)
		}
	}
	return targets
}

// removeRedundantJumps retires unconditional branches whose target is the
// instruction that would execute next anyway.
func (c *Compiler) removeRedundantJumps() bool {
	changed := false
	for i, inst := range c.insts1 {
		if !inst.Live || !inst.IsForwarder() || inst.Target == nil {
			continue
		}

		next := c.nextLive(i)
		if inst.Target == c.pendingInst {
			if next == nil {
				inst.Live = false
				changed = true
			}
			continue
		}
		if inst.Target.Live && inst.Target == next {
			inst.Live = false
			changed = true
		}
	}
	return changed
}

// nextLive returns the first live instruction after index i, or nil if
// none survives.
func (c *Compiler) nextLive(i int) *zam.InstI {
	for j := i + 1; j < len(c.insts1); j++ {
		if c.insts1[j].Live {
			return c.insts1[j]
		}
	}
	return nil
}

// findLiveTarget follows chains of retired forwarding branches until it
// reaches a live instruction, or the pending pseudo-instruction for chains
// that run off the end of the function. A cycle of retired forwarders is a
// diagnostic error.
func (c *Compiler) findLiveTarget(t *zam.InstI) *zam.InstI {
	seen := make(map[*zam.InstI]bool)

	for t != c.pendingInst && !t.Live {
		if seen[t] {
			c.reporter.InternalError(
				"cycle of retired branch forwarders at instruction %d", t.InstNum)
			return c.pendingInst
		}
		seen[t] = true

		switch {
		case t.IsForwarder() && t.Target != nil:
			t = t.Target
		case t.InstNum+1 < len(c.insts1):
			t = c.insts1[t.InstNum+1]
		default:
			return c.pendingInst
		}
	}

	return t
}
