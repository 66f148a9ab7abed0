package zam

import "testing"

func TestOpcodeString(t *testing.T) {
	if OpNop.String() != "nop" {
		t.Errorf("OpNop: got %q, want %q", OpNop.String(), "nop")
	}
	if OpHookBreakX.String() != "hook-break-x" {
		t.Errorf("OpHookBreakX: got %q", OpHookBreakX.String())
	}
	if OpNeSS.String() != "ne-ss" {
		t.Errorf("OpNeSS: got %q", OpNeSS.String())
	}
	for op := Op(0); int(op) < NumOps; op++ {
		if op.String() == "???" {
			t.Errorf("opcode %d has no name", op)
		}
	}
}

func TestOpcodeClassification(t *testing.T) {
	tests := []struct {
		op        Op
		branch    bool
		forwarder bool
		terminal  bool
	}{
		{OpNop, false, false, false},
		{OpGoTo, true, true, true},
		{OpJumpTrue, true, false, false},
		{OpJumpFalse, true, false, false},
		{OpSwitchI, true, false, true},
		{OpReturn, false, false, true},
		{OpReturnV, false, false, true},
		{OpHookBreakX, false, false, true},
		{OpAssignVV, false, false, false},
		{OpAddII, false, false, false},
	}

	for _, tt := range tests {
		if got := tt.op.IsBranch(); got != tt.branch {
			t.Errorf("%s.IsBranch = %v, want %v", tt.op, got, tt.branch)
		}
		if got := tt.op.IsForwarder(); got != tt.forwarder {
			t.Errorf("%s.IsForwarder = %v, want %v", tt.op, got, tt.forwarder)
		}
		if got := tt.op.IsTerminal(); got != tt.terminal {
			t.Errorf("%s.IsTerminal = %v, want %v", tt.op, got, tt.terminal)
		}
	}
}

func TestNewInstI(t *testing.T) {
	inst := NewInstI(OpAddII, 1, 2, 3)
	if !inst.Live {
		t.Error("new instruction should be live")
	}
	if inst.V1 != 1 || inst.V2 != 2 || inst.V3 != 3 || inst.V4 != 0 {
		t.Errorf("operands = %d %d %d %d", inst.V1, inst.V2, inst.V3, inst.V4)
	}
}

func TestRetargetBranch(t *testing.T) {
	target := NewInstI(OpNop)
	target.InstNum = 7

	for slot := 1; slot <= 4; slot++ {
		inst := NewInstI(OpGoTo)
		if err := RetargetBranch(inst, target, slot); err != nil {
			t.Fatalf("slot %d: %v", slot, err)
		}
		if got := inst.SlotOperand(slot - 1); got != 7 {
			t.Errorf("slot %d: operand = %d, want 7", slot, got)
		}
	}

	if err := RetargetBranch(NewInstI(OpGoTo), target, 0); err == nil {
		t.Error("slot 0: expected an error")
	}
	if err := RetargetBranch(NewInstI(OpGoTo), target, 5); err == nil {
		t.Error("slot 5: expected an error")
	}
}

func TestIsManagedType(t *testing.T) {
	managed := []Type{TypeString, TypeTable, TypeRecord, TypeVector, TypeAny}
	unmanaged := []Type{TypeVoid, TypeInt, TypeCount, TypeBool, TypeDouble}

	for _, typ := range managed {
		if !IsManagedType(typ) {
			t.Errorf("%s should be managed", typ)
		}
	}
	for _, typ := range unmanaged {
		if IsManagedType(typ) {
			t.Errorf("%s should not be managed", typ)
		}
	}
}

func TestBodySetInstsOnce(t *testing.T) {
	b := NewBody("f", nil, nil, nil, nil, 0, true, nil, nil, nil, nil)
	if err := b.SetInsts(nil); err != nil {
		t.Fatalf("first SetInsts: %v", err)
	}
	if err := b.SetInsts(nil); err == nil {
		t.Error("second SetInsts should fail")
	}
}

func TestDisasm(t *testing.T) {
	frame := []*ID{
		{Name: "x", Kind: KindLocal, Type: TypeInt},
		{Name: "y", Kind: KindLocal, Type: TypeInt},
	}

	add := NewInstI(OpAddII, 0, 1, 1)
	if got := add.Disasm(frame); got != "add-ii 0 (x) 1 (y) 1 (y)" {
		t.Errorf("Disasm = %q", got)
	}

	target := NewInstI(OpReturn)
	target.InstNum = 3
	g := NewInstI(OpGoTo)
	g.SetTarget(target, 1)
	if got := g.Disasm(nil); got != "goto -> 3" {
		t.Errorf("Disasm = %q", got)
	}

	assign := NewInstI(OpAssignVC, 0)
	assign.C = IntVal(42)
	if got := assign.Disasm(nil); got != "assign-vc 0 42" {
		t.Errorf("Disasm = %q", got)
	}
}

func TestValueString(t *testing.T) {
	tests := []struct {
		val  Value
		want string
	}{
		{IntVal(-3), "-3"},
		{UIntVal(9), "9"},
		{DoubleVal(2.5), "2.5"},
		{BoolVal(true), "1"},
		{StringVal("hi"), `"hi"`},
	}
	for _, tt := range tests {
		if got := tt.val.String(); got != tt.want {
			t.Errorf("%v.String() = %q, want %q", tt.val, got, tt.want)
		}
	}
}
