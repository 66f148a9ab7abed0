package compiler

import "github.com/sowmyaramapatruni/zeek/zam"

// Compiler lowers one reduced function body to an executable ZAM body. A
// Compiler instance is single-use: construct one per function, call
// CompileBody once, discard it. Compiling nested function literals takes a
// fresh instance per literal.
type Compiler struct {
	fn       zam.Func
	pf       Profile
	body     Stmt
	ud       UseDefs
	reducer  Reducer
	reporter Reporter
	opts     *Options

	// Unoptimized frame layout, built in insertion order.
	frameDenizens []*zam.ID
	frameLayout1  map[*zam.ID]int

	insts1      []*zam.InstI
	insts2      []*zam.InstI
	pendingInst *zam.InstI

	// Stacks of pending fix-up sites (indexes into insts1), one vector
	// per nesting level of the corresponding construct.
	breaks       [][]int
	nexts        [][]int
	fallthroughs [][]int
	catches      [][]int

	globalsI       []zam.GlobalInfo
	globalIDToInfo map[*zam.ID]int
	managedSlotsI  []int

	numIters     int
	nonRecursive bool

	// Frame-sharing descriptors: the remapper's output in provisional
	// numbering, and the finalizer's projection onto the compacted
	// numbering.
	sharedFrameDenizens      []zam.FrameSharingInfo
	sharedFrameDenizensFinal []zam.FrameSharingInfo

	// Abstract case tables, one entry per switch statement.
	intCasesI    []zam.CaseMapI[int64]
	uintCasesI   []zam.CaseMapI[uint64]
	doubleCasesI []zam.CaseMapI[float64]
	strCasesI    []zam.CaseMapI[string]

	compiled bool
}

// New constructs a compiler for one function and runs frame
// initialization: global slots, parameter loads, and local slots are all
// allocated before statement lowering begins.
func New(fn zam.Func, pf Profile, body Stmt, ud UseDefs, rd Reducer,
	rep Reporter, opts *Options) *Compiler {
	if rep == nil {
		rep = NewDiagReporter()
	}
	if opts == nil {
		opts = &Options{}
	}
	c := &Compiler{
		fn:             fn,
		pf:             pf,
		body:           body,
		ud:             ud,
		reducer:        rd,
		reporter:       rep,
		opts:           opts,
		frameLayout1:   make(map[*zam.ID]int),
		globalIDToInfo: make(map[*zam.ID]int),
	}
	c.init()
	return c
}

// Reporter returns the compiler's error sink.
func (c *Compiler) Reporter() Reporter {
	return c.reporter
}

func (c *Compiler) init() {
	var uds UsageSet
	if c.ud != nil && c.ud.HasUsage(c.body) {
		uds = c.ud.GetUsage(c.body)
	}

	// Globals first, recording (identifier, slot) in first-seen order.
	for _, g := range c.pf.Globals() {
		slot, err := c.AddToFrame(g)
		if err != nil {
			c.reporter.InternalError("allocating global %s: %v", g.Name, err)
			continue
		}
		c.globalIDToInfo[g] = len(c.globalsI)
		c.globalsI = append(c.globalsI, zam.GlobalInfo{ID: g, Slot: slot})
	}

	// Parameters in declaration order. Used parameters get a load
	// instruction; either way a slot is allocated.
	for i, p := range c.fn.Params() {
		if uds != nil && uds.HasID(p) {
			c.LoadParam(p, i)
		} else if _, err := c.AddToFrame(p); err != nil {
			c.reporter.InternalError("allocating parameter %s: %v", p.Name, err)
		}
	}

	// Locals (including temporaries) in first-seen order. Skip those
	// already added as parameters.
	for _, l := range c.pf.Locals() {
		if !c.HasFrameSlot(l) {
			if _, err := c.AddToFrame(l); err != nil {
				c.reporter.InternalError("allocating local %s: %v", l.Name, err)
			}
		}
	}

	// Slots holding values we do explicit memory management on when
	// (re)assigning.
	c.managedSlotsI = c.classifyManaged()

	c.nonRecursive = c.pf.NonRecursive()
}

// CompileBody lowers the function body and finalizes it into an executable
// ZAM body. It returns nil if any error was reported, including errors
// reported during earlier statement lowering.
func (c *Compiler) CompileBody() *zam.Body {
	if c.compiled {
		c.reporter.InternalError("function body compiled twice")
		return nil
	}
	c.compiled = true

	if c.fn.Flavor() == zam.FlavorHook {
		c.PushBreaks()
	}

	c.body.Lower(c)

	if c.reporter.Errors() > 0 {
		return nil
	}

	if !c.body.EndsInReturn() {
		c.SyncGlobals()
	}

	if len(c.breaks) > 0 {
		if len(c.breaks) > 1 {
			c.reporter.InternalError("unbalanced break scopes at finalization")
			return nil
		}

		if c.fn.Flavor() == zam.FlavorHook {
			// Rewrite the breaks: in a hook, a top-level break is a
			// structured early return.
			for _, b := range c.breaks[0] {
				c.insts1[b] = zam.NewInstI(zam.OpHookBreakX)
			}
		} else {
			c.reporter.Error(`"break" used without an enclosing "for" or "switch"`)
		}
	}

	if len(c.nexts) > 0 {
		c.reporter.Error(`"next" used without an enclosing "for"`)
	}

	if len(c.fallthroughs) > 0 {
		c.reporter.Error(`"fallthrough" used without an enclosing "switch"`)
	}

	if len(c.catches) > 0 {
		c.reporter.InternalError("untargeted inline return")
	}

	if c.reporter.Errors() > 0 {
		return nil
	}

	// Make sure we have a (pseudo-)instruction at the end so we can use
	// it as a branch label.
	if c.pendingInst == nil {
		c.pendingInst = zam.NewInstI(zam.OpNop)
	}

	// Concretize instruction numbers in insts1 so we can easily move
	// through the code.
	for i, inst := range c.insts1 {
		inst.InstNum = i
	}

	// Compute which instructions are inside loops.
	c.computeLoopLevels()

	if !c.opts.NoZAMOpt {
		c.optimizeInsts()
	}

	// Move branches to dead code forward to their successor live code.
	for _, inst := range c.insts1 {
		if !inst.Live {
			continue
		}

		if inst.Target == nil {
			continue
		}

		inst.Target = c.findLiveTarget(inst.Target)

		if inst.Target2 != nil {
			inst.Target2 = c.findLiveTarget(inst.Target2)
		}
	}

	// Case-table entries are instruction references too; resolve them to
	// live code the same way.
	forwardCaseTables(c, c.intCasesI)
	forwardCaseTables(c, c.uintCasesI)
	forwardCaseTables(c, c.doubleCasesI)
	forwardCaseTables(c, c.strCasesI)

	// Construct the final program with the dead code eliminated and
	// branches resolved.

	// Make sure we don't include the empty pending-instruction.
	c.pendingInst.Live = false

	// Maps insts1 instructions to where they are in insts2. Dead
	// instructions map to -1.
	inst1ToInst2 := make([]int, 0, len(c.insts1))

	for _, inst := range c.insts1 {
		if inst.Live {
			inst1ToInst2 = append(inst1ToInst2, len(c.insts2))
			c.insts2 = append(c.insts2, inst)
		} else {
			inst1ToInst2 = append(inst1ToInst2, -1)
		}
	}

	// Re-concretize instruction numbers, and concretize branches.
	for i, inst := range c.insts2 {
		inst.InstNum = i
	}

	// A branch to the pending pseudo-instruction encodes one past the
	// end of the final vector.
	c.pendingInst.InstNum = len(c.insts2)

	for _, inst := range c.insts2 {
		if inst.Target != nil {
			c.retargetBranch(inst, inst.Target, inst.TargetSlot)

			if inst.Target2 != nil {
				c.retargetBranch(inst, inst.Target2, inst.Target2Slot)
			}
		}
	}

	c.finalizeSharedFrame(inst1ToInst2)

	// Create concretized versions of any case tables.
	intCases := concretizeSwitchTables(c.intCasesI)
	uintCases := concretizeSwitchTables(c.uintCasesI)
	doubleCases := concretizeSwitchTables(c.doubleCasesI)
	strCases := concretizeSwitchTables(c.strCasesI)

	c.pendingInst = nil

	if c.reporter.Errors() > 0 {
		return nil
	}

	zb := zam.NewBody(c.fn.Name(), c.fn, c.sharedFrameDenizensFinal,
		c.managedSlotsI, c.globalsI, c.numIters, c.nonRecursive,
		intCases, uintCases, doubleCases, strCases)
	if err := zb.SetInsts(c.insts2); err != nil {
		c.reporter.InternalError("installing instructions: %v", err)
		return nil
	}

	return zb
}

// finalizeSharedFrame projects the frame-sharing descriptors onto the
// compacted instruction numbering. With no remapping computed, it
// synthesizes one singleton group per original frame slot.
func (c *Compiler) finalizeSharedFrame(inst1ToInst2 []int) {
	if len(c.sharedFrameDenizens) > 0 { // update
		for _, info := range c.sharedFrameDenizens {
			for j := range info.IDStart {
				// The identifier's origination instruction can have been
				// optimized away if slot sharing left it of the form
				// "slotX = slotX". Look forward for the next surviving
				// instruction.
				start := info.IDStart[j]
				for start < len(c.insts1) && inst1ToInst2[start] == -1 {
					start++
				}

				if start >= len(c.insts1) {
					c.reporter.InternalError(
						"live range of %s starts beyond the end of the code",
						info.IDs[j].Name)
					return
				}

				info.IDStart[j] = inst1ToInst2[start]
			}

			// Project the end of the group's range as well.
			end := info.ScopeEnd
			for end > 0 && inst1ToInst2[end-1] == -1 {
				end--
			}
			if end == 0 {
				info.ScopeEnd = 0
			} else {
				info.ScopeEnd = inst1ToInst2[end-1] + 1
			}

			c.sharedFrameDenizensFinal = append(c.sharedFrameDenizensFinal, info)
		}
	} else { // create
		for _, id := range c.frameDenizens {
			info := zam.FrameSharingInfo{
				IDs:      []*zam.ID{id},
				IDStart:  []int{0},
				ScopeEnd: len(c.insts2),

				// Unused at runtime in this mode.
				IsManaged: false,
			}
			c.sharedFrameDenizensFinal = append(c.sharedFrameDenizensFinal, info)
		}
	}
}

func (c *Compiler) retargetBranch(inst, target *zam.InstI, slot int) {
	if err := zam.RetargetBranch(inst, target, slot); err != nil {
		c.reporter.InternalError("%v", err)
	}
}

// forwardCaseTables redirects case-table targets that were retired by the
// optimizer to their surviving successors.
func forwardCaseTables[T zam.CaseKey](c *Compiler, tables []zam.CaseMapI[T]) {
	for _, cm := range tables {
		for v, targ := range cm {
			if !targ.Live {
				cm[v] = c.findLiveTarget(targ)
			}
		}
	}
}

// concretizeSwitchTables translates case-table values from provisional
// instruction references to final instruction numbers.
func concretizeSwitchTables[T zam.CaseKey](abstract []zam.CaseMapI[T]) zam.CaseMaps[T] {
	concrete := make(zam.CaseMaps[T], 0, len(abstract))
	for _, targs := range abstract {
		cm := make(zam.CaseMap[T], len(targs))
		for v, targ := range targs {
			cm[v] = targ.InstNum
		}
		concrete = append(concrete, cm)
	}
	return concrete
}
