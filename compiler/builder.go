package compiler

import "github.com/sowmyaramapatruni/zeek/zam"

// NewInst appends a provisional instruction and returns it.
func (c *Compiler) NewInst(op zam.Op, vs ...int) *zam.InstI {
	inst := zam.NewInstI(op, vs...)
	c.insts1 = append(c.insts1, inst)
	return inst
}

// NewInstC appends a provisional instruction carrying a constant operand.
func (c *Compiler) NewInstC(op zam.Op, cval zam.Value, vs ...int) *zam.InstI {
	inst := c.NewInst(op, vs...)
	inst.C = cval
	return inst
}

// GoTo emits an unconditional branch with an as-yet unresolved target.
func (c *Compiler) GoTo() *zam.InstI {
	inst := c.NewInst(zam.OpGoTo)
	inst.TargetSlot = 1
	return inst
}

// GoToTarget emits an unconditional branch to target.
func (c *Compiler) GoToTarget(target *zam.InstI) *zam.InstI {
	inst := c.NewInst(zam.OpGoTo)
	inst.SetTarget(target, 1)
	return inst
}

// PendingInst returns the trailing pseudo-instruction that stands in for
// "end of function" as a branch label, allocating it on first use. It is
// never part of the instruction stream and is retired by the finalizer.
func (c *Compiler) PendingInst() *zam.InstI {
	if c.pendingInst == nil {
		c.pendingInst = zam.NewInstI(zam.OpNop)
	}
	return c.pendingInst
}

// NumInsts returns the number of provisional instructions emitted so far.
func (c *Compiler) NumInsts() int {
	return len(c.insts1)
}

// InstAt returns the provisional instruction at index i.
func (c *Compiler) InstAt(i int) *zam.InstI {
	return c.insts1[i]
}

// LoadParam allocates the parameter's frame slot and emits the instruction
// that loads the incoming argument into it.
func (c *Compiler) LoadParam(id *zam.ID, paramIdx int) {
	slot, err := c.AddToFrame(id)
	if err != nil {
		c.reporter.InternalError("loading parameter %s: %v", id.Name, err)
		return
	}
	c.NewInst(zam.OpLoadParam, slot, paramIdx)
}

// LoadGlobal emits the instruction that loads a global's current value into
// its frame slot, and returns that slot.
func (c *Compiler) LoadGlobal(id *zam.ID) int {
	idx, ok := c.globalIDToInfo[id]
	if !ok {
		c.reporter.InternalError("load of unregistered global %s", id.Name)
		return 0
	}
	slot := c.globalsI[idx].Slot
	c.NewInst(zam.OpLoadGlobal, slot, idx)
	return slot
}

// StoreGlobal emits the instruction that writes a global's frame slot back
// to the global store.
func (c *Compiler) StoreGlobal(id *zam.ID) {
	idx, ok := c.globalIDToInfo[id]
	if !ok {
		c.reporter.InternalError("store of unregistered global %s", id.Name)
		return
	}
	c.NewInst(zam.OpStoreGlobal, idx, c.globalsI[idx].Slot)
}

// SyncGlobals emits the instruction that writes all modified globals back
// to the global store.
func (c *Compiler) SyncGlobals() {
	c.NewInst(zam.OpSyncGlobals)
}

// NewLoopIterSlot reserves a loop-iteration slot and returns its index.
func (c *Compiler) NewLoopIterSlot() int {
	n := c.numIters
	c.numIters++
	return n
}

// PushBreaks opens a new scope for pending break sites. One is pushed at
// the entry to each loop or switch, and at the entry to a hook body.
func (c *Compiler) PushBreaks() {
	c.breaks = append(c.breaks, nil)
}

// PushNexts opens a new scope for pending next sites.
func (c *Compiler) PushNexts() {
	c.nexts = append(c.nexts, nil)
}

// PushFallThroughs opens a new scope for pending fallthrough sites.
func (c *Compiler) PushFallThroughs() {
	c.fallthroughs = append(c.fallthroughs, nil)
}

// PushCatches opens a new scope for pending inline-return sites.
func (c *Compiler) PushCatches() {
	c.catches = append(c.catches, nil)
}

// Break emits the branch for a "break" statement and records it as a
// pending fix-up site in the innermost break scope. With no enclosing
// scope, the residual entry is diagnosed at finalization.
func (c *Compiler) Break() *zam.InstI {
	if len(c.breaks) == 0 {
		c.breaks = append(c.breaks, nil)
	}
	return c.pendingSite(&c.breaks)
}

// Next emits the branch for a "next" statement.
func (c *Compiler) Next() *zam.InstI {
	if len(c.nexts) == 0 {
		c.nexts = append(c.nexts, nil)
	}
	return c.pendingSite(&c.nexts)
}

// FallThrough emits the branch for a "fallthrough" statement.
func (c *Compiler) FallThrough() *zam.InstI {
	if len(c.fallthroughs) == 0 {
		c.fallthroughs = append(c.fallthroughs, nil)
	}
	return c.pendingSite(&c.fallthroughs)
}

// CatchReturn emits the branch for an inlined function's return.
func (c *Compiler) CatchReturn() *zam.InstI {
	if len(c.catches) == 0 {
		c.catches = append(c.catches, nil)
	}
	return c.pendingSite(&c.catches)
}

func (c *Compiler) pendingSite(stack *[][]int) *zam.InstI {
	inst := c.GoTo()
	top := len(*stack) - 1
	(*stack)[top] = append((*stack)[top], len(c.insts1)-1)
	return inst
}

// ResolveBreaks pops the innermost break scope, pointing every pending
// site at target.
func (c *Compiler) ResolveBreaks(target *zam.InstI) {
	c.resolveSites(&c.breaks, target)
}

// ResolveNexts pops the innermost next scope.
func (c *Compiler) ResolveNexts(target *zam.InstI) {
	c.resolveSites(&c.nexts, target)
}

// ResolveFallThroughs pops the innermost fallthrough scope.
func (c *Compiler) ResolveFallThroughs(target *zam.InstI) {
	c.resolveSites(&c.fallthroughs, target)
}

// ResolveCatches pops the innermost inline-return scope.
func (c *Compiler) ResolveCatches(target *zam.InstI) {
	c.resolveSites(&c.catches, target)
}

func (c *Compiler) resolveSites(stack *[][]int, target *zam.InstI) {
	if len(*stack) == 0 {
		c.reporter.InternalError("resolving an empty fix-up scope")
		return
	}
	top := len(*stack) - 1
	for _, idx := range (*stack)[top] {
		c.insts1[idx].SetTarget(target, 1)
	}
	*stack = (*stack)[:top]
}

// AddIntCases registers a switch case table and returns the index a switch
// instruction uses to refer to it.
func (c *Compiler) AddIntCases(cm zam.CaseMapI[int64]) int {
	c.intCasesI = append(c.intCasesI, cm)
	return len(c.intCasesI) - 1
}

// AddUIntCases registers an unsigned case table.
func (c *Compiler) AddUIntCases(cm zam.CaseMapI[uint64]) int {
	c.uintCasesI = append(c.uintCasesI, cm)
	return len(c.uintCasesI) - 1
}

// AddDoubleCases registers a floating-point case table.
func (c *Compiler) AddDoubleCases(cm zam.CaseMapI[float64]) int {
	c.doubleCasesI = append(c.doubleCasesI, cm)
	return len(c.doubleCasesI) - 1
}

// AddStrCases registers a string case table.
func (c *Compiler) AddStrCases(cm zam.CaseMapI[string]) int {
	c.strCasesI = append(c.strCasesI, cm)
	return len(c.strCasesI) - 1
}
