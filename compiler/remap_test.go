package compiler

import (
	"testing"

	"github.com/sowmyaramapatruni/zeek/zam"
)

func frameGroupOf(frame []zam.FrameSharingInfo, id *zam.ID) int {
	for i, info := range frame {
		for _, member := range info.IDs {
			if member == id {
				return i
			}
		}
	}
	return -1
}

func TestDisjointLocalsShareASlot(t *testing.T) {
	a := local("a", zam.TypeInt)
	x := local("x", zam.TypeInt)
	b := local("b", zam.TypeInt)
	y := local("y", zam.TypeInt)

	// a's last use is instruction 1; b first appears at instruction 2.
	body := &stmtFunc{
		lower: func(c *Compiler) {
			c.NewInstC(zam.OpAssignVC, zam.IntVal(1), 0)  // a = 1
			c.NewInst(zam.OpAddII, 1, 0, 0)               // x = a + a
			c.NewInstC(zam.OpAssignVC, zam.IntVal(2), 2)  // b = 2
			c.NewInst(zam.OpAddII, 3, 2, 2)               // y = b + b
			c.NewInst(zam.OpReturnV, 3)                   // return y
		},
		endsRet: true,
	}

	pf := &testProfile{locals: []*zam.ID{a, x, b, y}, nonRecursive: true}
	c, rep := newTestCompiler(nil, pf, body, nil)
	zb := c.CompileBody()
	if zb == nil {
		t.Fatalf("compile failed: %v", rep.Messages())
	}

	frame := zb.Frame()
	if len(frame) >= c.FrameSize() {
		t.Fatalf("frame groups = %d, want fewer than %d original slots", len(frame), c.FrameSize())
	}

	ga, gb := frameGroupOf(frame, a), frameGroupOf(frame, b)
	if ga < 0 || gb < 0 {
		t.Fatal("a or b missing from the sharing descriptors")
	}
	if ga != gb {
		t.Errorf("a in group %d, b in group %d; want shared", ga, gb)
	}

	// Starts and scope ends are final instruction indexes, in range.
	for gi, info := range frame {
		for j, start := range info.IDStart {
			if start < 0 || start > len(zb.Insts()) {
				t.Errorf("group %d id %d: start %d out of range", gi, j, start)
			}
		}
		if info.ScopeEnd > len(zb.Insts()) {
			t.Errorf("group %d: scope end %d out of range", gi, info.ScopeEnd)
		}
	}
}

func TestOverlappingLocalsDoNotShare(t *testing.T) {
	a := local("a", zam.TypeInt)
	b := local("b", zam.TypeInt)

	body := &stmtFunc{
		lower: func(c *Compiler) {
			c.NewInstC(zam.OpAssignVC, zam.IntVal(1), 0) // a = 1
			c.NewInstC(zam.OpAssignVC, zam.IntVal(2), 1) // b = 2
			c.NewInst(zam.OpAddII, 0, 0, 1)              // a = a + b
			c.NewInst(zam.OpReturnV, 0)
		},
		endsRet: true,
	}

	pf := &testProfile{locals: []*zam.ID{a, b}, nonRecursive: true}
	c, rep := newTestCompiler(nil, pf, body, nil)
	zb := c.CompileBody()
	if zb == nil {
		t.Fatalf("compile failed: %v", rep.Messages())
	}

	frame := zb.Frame()
	if frameGroupOf(frame, a) == frameGroupOf(frame, b) {
		t.Error("overlapping locals coalesced into one slot")
	}
}

func TestGlobalsNeverCoalesced(t *testing.T) {
	g := &zam.ID{Name: "g", Kind: zam.KindGlobal, Type: zam.TypeInt}
	a := local("a", zam.TypeInt)

	body := &stmtFunc{
		lower: func(c *Compiler) {
			c.NewInstC(zam.OpAssignVC, zam.IntVal(1), 1) // a = 1
			c.NewInst(zam.OpReturnV, 1)
		},
		endsRet: true,
	}

	pf := &testProfile{globals: []*zam.ID{g}, locals: []*zam.ID{a}, nonRecursive: true}
	c, rep := newTestCompiler(nil, pf, body, nil)
	zb := c.CompileBody()
	if zb == nil {
		t.Fatalf("compile failed: %v", rep.Messages())
	}

	frame := zb.Frame()
	gg := frameGroupOf(frame, g)
	if gg < 0 {
		t.Fatal("global missing from sharing descriptors")
	}
	if len(frame[gg].IDs) != 1 {
		t.Errorf("global shares a slot with %d other identifiers", len(frame[gg].IDs)-1)
	}
	if zb.Globals()[0].Slot != gg {
		t.Errorf("global slot = %d, want group %d", zb.Globals()[0].Slot, gg)
	}
}

func TestManagedAndUnmanagedNeverShare(t *testing.T) {
	s := local("s", zam.TypeString)
	n := local("n", zam.TypeInt)

	// Disjoint ranges, but differing managedness keeps them apart.
	body := &stmtFunc{
		lower: func(c *Compiler) {
			c.NewInstC(zam.OpAssignVC, zam.StringVal("x"), 0) // s = "x"
			c.NewInstC(zam.OpAssignVC, zam.IntVal(1), 1)      // n = 1
			c.NewInst(zam.OpReturnV, 1)
		},
		endsRet: true,
	}

	pf := &testProfile{locals: []*zam.ID{s, n}, nonRecursive: true}
	c, rep := newTestCompiler(nil, pf, body, nil)
	zb := c.CompileBody()
	if zb == nil {
		t.Fatalf("compile failed: %v", rep.Messages())
	}

	frame := zb.Frame()
	gs, gn := frameGroupOf(frame, s), frameGroupOf(frame, n)
	if gs == gn {
		t.Error("managed and unmanaged identifiers share a slot")
	}
	if !frame[gs].IsManaged {
		t.Error("string group not marked managed")
	}

	found := false
	for _, slot := range zb.ManagedSlots() {
		if slot == gs {
			found = true
		}
	}
	if !found {
		t.Errorf("managed slots %v missing group %d", zb.ManagedSlots(), gs)
	}
}

func TestRemapRewritesOperands(t *testing.T) {
	a := local("a", zam.TypeInt)
	b := local("b", zam.TypeInt)

	var add *zam.InstI
	body := &stmtFunc{
		lower: func(c *Compiler) {
			c.NewInstC(zam.OpAssignVC, zam.IntVal(1), 0) // a = 1
			c.NewInst(zam.OpAddII, 1, 0, 0)              // b = a + a (a dead after)
			add = c.NewInst(zam.OpAddII, 1, 1, 1)        // b = b + b
			c.NewInst(zam.OpReturnV, 1)
		},
		endsRet: true,
	}

	pf := &testProfile{locals: []*zam.ID{a, b}, nonRecursive: true}
	c, rep := newTestCompiler(nil, pf, body, nil)
	zb := c.CompileBody()
	if zb == nil {
		t.Fatalf("compile failed: %v", rep.Messages())
	}

	// However the remapper numbered the groups, every slot operand must
	// refer to an existing group.
	for _, inst := range zb.Insts() {
		roles := inst.Op.SlotRoles()
		for k, role := range roles {
			if role == zam.RoleNone {
				continue
			}
			if s := inst.SlotOperand(k); s < 0 || s >= len(zb.Frame()) {
				t.Errorf("inst %d: slot operand %d out of range", inst.InstNum, s)
			}
		}
	}
	_ = add
}
