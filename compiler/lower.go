package compiler

import (
	"fmt"
	"go/ast"
	"go/constant"
	"go/parser"
	"go/token"
	"go/types"
	"os"

	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/ssa/ssautil"

	"github.com/sowmyaramapatruni/zeek/zam"
)

// The SSA front-end adapts a Go function, in go/ssa form, to the compiler's
// collaborator contracts and lowers a supported subset of SSA instructions
// through the builder. It exists so the back-end can be driven end-to-end
// from real source; anything outside the subset is reported as an error.

// CompileGoFile parses and type-checks a single Go source file (no
// imports), builds SSA for it, and compiles every top-level function body
// to a ZAM body.
func CompileGoFile(filename string, src []byte, opts *Options, rep Reporter) (map[string]*zam.Body, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, filename, src, parser.SkipObjectResolution)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filename, err)
	}

	pkg := types.NewPackage(file.Name.Name, file.Name.Name)
	ssaPkg, _, err := ssautil.BuildPackage(&types.Config{}, fset, pkg,
		[]*ast.File{file}, ssa.SanityCheckFunctions)
	if err != nil {
		return nil, fmt.Errorf("typecheck %s: %w", filename, err)
	}

	if rep == nil {
		rep = NewDiagReporter()
	}

	bodies := make(map[string]*zam.Body)
	for name, m := range ssaPkg.Members {
		fn, ok := m.(*ssa.Function)
		if !ok || len(fn.Blocks) == 0 || name == "init" {
			continue
		}

		// Each function compiles against its own reporter so one failing
		// body does not poison the rest of the file.
		fnRep := NewDiagReporter()
		body := CompileSSAFunc(fn, opts, fnRep)
		for _, msg := range fnRep.Messages() {
			rep.Error("%s", msg)
		}
		for _, msg := range fnRep.InternalErrors() {
			rep.InternalError("%s", msg)
		}
		if body != nil {
			bodies[name] = body
		}
	}
	return bodies, nil
}

// CompileSSAFunc compiles one SSA function to a ZAM body. It returns nil
// if any error was reported.
func CompileSSAFunc(fn *ssa.Function, opts *Options, rep Reporter) *zam.Body {
	if rep == nil {
		rep = NewDiagReporter()
	}
	sf := newSSAFunc(fn)
	c := New(sf, sf, &ssaBody{sf: sf}, sf, nil, rep, opts)
	body := c.CompileBody()
	if opts != nil && opts.DumpCode {
		c.Dump(os.Stdout)
	}
	return body
}

// ssaFunc adapts an ssa.Function to the zam.Func, Profile, and UseDefs
// contracts.
type ssaFunc struct {
	fn *ssa.Function

	params  []*zam.ID
	locals  []*zam.ID
	globals []*zam.ID

	valueID  map[ssa.Value]*zam.ID
	globalID map[*ssa.Global]*zam.ID

	recursive bool
}

func newSSAFunc(fn *ssa.Function) *ssaFunc {
	sf := &ssaFunc{
		fn:       fn,
		valueID:  make(map[ssa.Value]*zam.ID),
		globalID: make(map[*ssa.Global]*zam.ID),
	}

	for _, p := range fn.Params {
		id := &zam.ID{Name: p.Name(), Kind: zam.KindParam, Type: goTypeToZAM(p.Type())}
		sf.valueID[p] = id
		sf.params = append(sf.params, id)
	}

	var rands []*ssa.Value
	for _, b := range fn.Blocks {
		for _, instr := range b.Instrs {
			// Register globals and constants appearing as operands.
			rands = instr.Operands(rands[:0])
			for _, rp := range rands {
				switch v := (*rp).(type) {
				case *ssa.Global:
					sf.registerGlobal(v)
				case *ssa.Const:
					sf.registerValue(v, zam.KindTemp, v.Type())
				}
			}

			if call, ok := instr.(*ssa.Call); ok {
				if callee, ok := call.Call.Value.(*ssa.Function); ok && callee == fn {
					sf.recursive = true
				}
			}

			v, ok := instr.(ssa.Value)
			if !ok || v.Name() == "" {
				continue
			}
			if alloc, ok := instr.(*ssa.Alloc); ok {
				sf.registerValue(v, zam.KindLocal, deref(alloc.Type()))
				continue
			}
			sf.registerValue(v, zam.KindTemp, v.Type())
		}
	}

	return sf
}

func (sf *ssaFunc) registerValue(v ssa.Value, kind zam.IDKind, t types.Type) *zam.ID {
	if id, ok := sf.valueID[v]; ok {
		return id
	}
	name := v.Name()
	if c, ok := v.(*ssa.Const); ok {
		name = fmt.Sprintf("c.%d:%s", len(sf.locals), c.Value)
	}
	id := &zam.ID{Name: name, Kind: kind, Type: goTypeToZAM(t)}
	sf.valueID[v] = id
	sf.locals = append(sf.locals, id)
	return id
}

func (sf *ssaFunc) registerGlobal(g *ssa.Global) *zam.ID {
	if id, ok := sf.globalID[g]; ok {
		return id
	}
	id := &zam.ID{Name: g.Name(), Kind: zam.KindGlobal, Type: goTypeToZAM(deref(g.Type()))}
	sf.globalID[g] = id
	sf.globals = append(sf.globals, id)
	return id
}

// zam.Func.
func (sf *ssaFunc) Name() string           { return sf.fn.Name() }
func (sf *ssaFunc) Flavor() zam.FuncFlavor { return zam.FlavorFunction }
func (sf *ssaFunc) Params() []*zam.ID      { return sf.params }

// Profile.
func (sf *ssaFunc) Globals() []*zam.ID { return sf.globals }
func (sf *ssaFunc) Locals() []*zam.ID  { return sf.locals }
func (sf *ssaFunc) NonRecursive() bool { return !sf.recursive }

// UseDefs.
func (sf *ssaFunc) HasUsage(Stmt) bool { return true }
func (sf *ssaFunc) GetUsage(Stmt) UsageSet {
	used := make(ssaUsage)
	for _, p := range sf.fn.Params {
		if refs := p.Referrers(); refs != nil && len(*refs) > 0 {
			used[sf.valueID[p]] = true
		}
	}
	return used
}

type ssaUsage map[*zam.ID]bool

func (u ssaUsage) HasID(id *zam.ID) bool { return u[id] }

// ssaBody drives lowering of the function's blocks.
type ssaBody struct {
	sf *ssaFunc
}

func (b *ssaBody) EndsInReturn() bool {
	blocks := b.sf.fn.Blocks
	last := blocks[len(blocks)-1]
	if len(last.Instrs) == 0 {
		return false
	}
	_, ok := last.Instrs[len(last.Instrs)-1].(*ssa.Return)
	return ok
}

func (b *ssaBody) Lower(c *Compiler) {
	lo := &ssaLowerer{
		c:          c,
		sf:         b.sf,
		blockStart: make(map[*ssa.BasicBlock]int),
	}
	lo.lower()
}

// ssaPatch defers a branch target until every block's position is known.
type ssaPatch struct {
	inst   *zam.InstI
	slot   int
	target *ssa.BasicBlock
	second bool
}

type ssaLowerer struct {
	c          *Compiler
	sf         *ssaFunc
	blockStart map[*ssa.BasicBlock]int
	patches    []ssaPatch
}

func (lo *ssaLowerer) lower() {
	for _, block := range lo.sf.fn.Blocks {
		lo.blockStart[block] = lo.c.NumInsts()
		for _, instr := range block.Instrs {
			lo.lowerInstr(instr)
		}
	}

	for _, p := range lo.patches {
		target := lo.targetInst(p.target)
		if p.second {
			p.inst.SetTarget2(target, p.slot)
		} else {
			p.inst.SetTarget(target, p.slot)
		}
	}
}

// targetInst maps a block to the instruction its branches land on; a block
// at the very end of the stream maps to the pending pseudo-instruction.
func (lo *ssaLowerer) targetInst(b *ssa.BasicBlock) *zam.InstI {
	idx := lo.blockStart[b]
	if idx >= lo.c.NumInsts() {
		return lo.c.PendingInst()
	}
	return lo.c.InstAt(idx)
}

func (lo *ssaLowerer) lowerInstr(instr ssa.Instruction) {
	switch instr := instr.(type) {
	case *ssa.Phi:
		// Handled by the phi moves emitted in each predecessor.
	case *ssa.Alloc:
		// The slot was allocated during initialization; the address is
		// implicit.
		if instr.Heap {
			lo.unsupported(instr)
		}
	case *ssa.BinOp:
		lo.lowerBinOp(instr)
	case *ssa.UnOp:
		lo.lowerUnOp(instr)
	case *ssa.Store:
		lo.lowerStore(instr)
	case *ssa.If:
		lo.lowerIf(instr)
	case *ssa.Jump:
		lo.lowerJump(instr)
	case *ssa.Return:
		lo.lowerReturn(instr)
	default:
		lo.unsupported(instr)
	}
}

func (lo *ssaLowerer) unsupported(instr ssa.Instruction) {
	lo.c.Reporter().Error("%s: unsupported in %s: %v",
		lo.sf.fn.Prog.Fset.Position(instr.Pos()), lo.sf.fn.Name(), instr)
}

// slotOf returns the frame slot of an SSA value, materializing constants
// into their temporary slots at the point of use.
func (lo *ssaLowerer) slotOf(v ssa.Value) int {
	if cv, ok := v.(*ssa.Const); ok {
		slot := lo.idSlot(lo.sf.valueID[cv])
		lo.c.NewInstC(zam.OpAssignVC, constValue(cv), slot)
		return slot
	}
	if g, ok := v.(*ssa.Global); ok {
		return lo.c.LoadGlobal(lo.sf.globalID[g])
	}
	return lo.idSlot(lo.sf.valueID[v])
}

func (lo *ssaLowerer) idSlot(id *zam.ID) int {
	if id == nil {
		lo.c.Reporter().InternalError("%s: value with no identifier", lo.sf.fn.Name())
		return 0
	}
	slot, ok := lo.c.FrameSlot(id)
	if !ok {
		lo.c.Reporter().InternalError("%s: identifier %s has no frame slot",
			lo.sf.fn.Name(), id.Name)
		return 0
	}
	return slot
}

func constValue(c *ssa.Const) zam.Value {
	t, ok := c.Type().Underlying().(*types.Basic)
	if !ok {
		return zam.Value{}
	}
	switch {
	case t.Info()&types.IsBoolean != 0:
		return zam.BoolVal(constant.BoolVal(c.Value))
	case t.Info()&types.IsUnsigned != 0:
		u, _ := constant.Uint64Val(c.Value)
		return zam.UIntVal(u)
	case t.Info()&types.IsInteger != 0:
		i, _ := constant.Int64Val(c.Value)
		return zam.IntVal(i)
	case t.Info()&types.IsFloat != 0:
		d, _ := constant.Float64Val(c.Value)
		return zam.DoubleVal(d)
	case t.Info()&types.IsString != 0:
		return zam.StringVal(constant.StringVal(c.Value))
	}
	return zam.Value{}
}

var intBinOps = map[token.Token]zam.Op{
	token.ADD: zam.OpAddII, token.SUB: zam.OpSubII, token.MUL: zam.OpMulII,
	token.QUO: zam.OpDivII, token.REM: zam.OpModII,
	token.EQL: zam.OpEqII, token.NEQ: zam.OpNeII,
	token.LSS: zam.OpLtII, token.LEQ: zam.OpLeII,
	token.GTR: zam.OpLtII, token.GEQ: zam.OpLeII, // operands swapped
}

var doubleBinOps = map[token.Token]zam.Op{
	token.ADD: zam.OpAddDD, token.SUB: zam.OpSubDD, token.MUL: zam.OpMulDD,
	token.QUO: zam.OpDivDD,
	token.EQL: zam.OpEqDD, token.NEQ: zam.OpNeDD,
	token.LSS: zam.OpLtDD, token.LEQ: zam.OpLeDD,
	token.GTR: zam.OpLtDD, token.GEQ: zam.OpLeDD,
}

var stringBinOps = map[token.Token]zam.Op{
	token.ADD: zam.OpCatSS,
	token.EQL: zam.OpEqSS, token.NEQ: zam.OpNeSS,
}

func (lo *ssaLowerer) lowerBinOp(instr *ssa.BinOp) {
	var ops map[token.Token]zam.Op
	switch goTypeToZAM(instr.X.Type()) {
	case zam.TypeInt, zam.TypeCount, zam.TypeBool:
		ops = intBinOps
	case zam.TypeDouble:
		ops = doubleBinOps
	case zam.TypeString:
		ops = stringBinOps
	}

	op, ok := ops[instr.Op]
	if !ok {
		lo.unsupported(instr)
		return
	}

	x := lo.slotOf(instr.X)
	y := lo.slotOf(instr.Y)
	if instr.Op == token.GTR || instr.Op == token.GEQ {
		x, y = y, x
	}
	dst := lo.idSlot(lo.sf.valueID[instr])
	lo.c.NewInst(op, dst, x, y)
}

func (lo *ssaLowerer) lowerUnOp(instr *ssa.UnOp) {
	dst := lo.idSlot(lo.sf.valueID[instr])

	switch instr.Op {
	case token.SUB:
		op := zam.OpNegI
		if goTypeToZAM(instr.X.Type()) == zam.TypeDouble {
			op = zam.OpNegD
		}
		lo.c.NewInst(op, dst, lo.slotOf(instr.X))
	case token.NOT:
		lo.c.NewInst(zam.OpNotI, dst, lo.slotOf(instr.X))
	case token.MUL:
		// Load through an Alloc or Global address.
		switch x := instr.X.(type) {
		case *ssa.Global:
			src := lo.c.LoadGlobal(lo.sf.globalID[x])
			lo.c.NewInst(zam.OpAssignVV, dst, src)
		case *ssa.Alloc:
			lo.c.NewInst(zam.OpAssignVV, dst, lo.idSlot(lo.sf.valueID[x]))
		default:
			lo.unsupported(instr)
		}
	default:
		lo.unsupported(instr)
	}
}

func (lo *ssaLowerer) lowerStore(instr *ssa.Store) {
	switch addr := instr.Addr.(type) {
	case *ssa.Global:
		gid := lo.sf.globalID[addr]
		gslot := lo.idSlot(gid)
		lo.assignTo(gslot, instr.Val)
		lo.c.StoreGlobal(gid)
	case *ssa.Alloc:
		lo.assignTo(lo.idSlot(lo.sf.valueID[addr]), instr.Val)
	default:
		lo.unsupported(instr)
	}
}

// assignTo moves an SSA value into dst, folding constant sources into a
// direct constant assignment.
func (lo *ssaLowerer) assignTo(dst int, v ssa.Value) {
	if cv, ok := v.(*ssa.Const); ok {
		lo.c.NewInstC(zam.OpAssignVC, constValue(cv), dst)
		return
	}
	lo.c.NewInst(zam.OpAssignVV, dst, lo.slotOf(v))
}

func (lo *ssaLowerer) lowerIf(instr *ssa.If) {
	cond := lo.slotOf(instr.Cond)
	thisBlock := instr.Block()
	trueBlock := thisBlock.Succs[0]
	falseBlock := thisBlock.Succs[1]

	if !blockHasPhis(trueBlock) && !blockHasPhis(falseBlock) {
		j := lo.c.NewInst(zam.OpJumpTrue, cond)
		lo.patches = append(lo.patches, ssaPatch{inst: j, slot: 2, target: trueBlock})

		g := lo.c.GoTo()
		lo.patches = append(lo.patches, ssaPatch{inst: g, slot: 1, target: falseBlock})
		return
	}

	// Phis present: each path gets its own move block.
	//
	//	jmp-true cond -> truePath
	//	[false phi moves]
	//	goto falseBlock
	// truePath:
	//	[true phi moves]
	//	goto trueBlock
	j := lo.c.NewInst(zam.OpJumpTrue, cond)

	lo.emitPhiMoves(thisBlock, falseBlock)
	g := lo.c.GoTo()
	lo.patches = append(lo.patches, ssaPatch{inst: g, slot: 1, target: falseBlock})

	truePath := lo.c.NumInsts()
	lo.emitPhiMoves(thisBlock, trueBlock)
	g = lo.c.GoTo()
	lo.patches = append(lo.patches, ssaPatch{inst: g, slot: 1, target: trueBlock})

	j.SetTarget(lo.c.InstAt(truePath), 2)
}

func (lo *ssaLowerer) lowerJump(instr *ssa.Jump) {
	target := instr.Block().Succs[0]
	lo.emitPhiMoves(instr.Block(), target)
	g := lo.c.GoTo()
	lo.patches = append(lo.patches, ssaPatch{inst: g, slot: 1, target: target})
}

func (lo *ssaLowerer) lowerReturn(instr *ssa.Return) {
	switch len(instr.Results) {
	case 0:
		lo.c.NewInst(zam.OpReturn)
	case 1:
		lo.c.NewInst(zam.OpReturnV, lo.slotOf(instr.Results[0]))
	default:
		lo.unsupported(instr)
	}
}

// emitPhiMoves emits the moves for the phis of block `to` along the edge
// from block `from`.
func (lo *ssaLowerer) emitPhiMoves(from, to *ssa.BasicBlock) {
	edgeIdx := -1
	for i, pred := range to.Preds {
		if pred == from {
			edgeIdx = i
			break
		}
	}
	if edgeIdx < 0 {
		return
	}

	for _, instr := range to.Instrs {
		phi, ok := instr.(*ssa.Phi)
		if !ok {
			break // phis are always at the start of a block
		}
		lo.assignTo(lo.idSlot(lo.sf.valueID[phi]), phi.Edges[edgeIdx])
	}
}

func blockHasPhis(b *ssa.BasicBlock) bool {
	if len(b.Instrs) == 0 {
		return false
	}
	_, ok := b.Instrs[0].(*ssa.Phi)
	return ok
}

func goTypeToZAM(t types.Type) zam.Type {
	basic, ok := t.Underlying().(*types.Basic)
	if !ok {
		return zam.TypeAny
	}
	switch {
	case basic.Info()&types.IsBoolean != 0:
		return zam.TypeBool
	case basic.Info()&types.IsUnsigned != 0:
		return zam.TypeCount
	case basic.Info()&types.IsInteger != 0:
		return zam.TypeInt
	case basic.Info()&types.IsFloat != 0:
		return zam.TypeDouble
	case basic.Info()&types.IsString != 0:
		return zam.TypeString
	}
	return zam.TypeAny
}

func deref(t types.Type) types.Type {
	if p, ok := t.Underlying().(*types.Pointer); ok {
		return p.Elem()
	}
	return t
}
