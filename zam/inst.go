package zam

import (
	"fmt"
	"strings"
)

// InstI is a provisional instruction: the unit emitted by statement
// lowering, mutated by optimization, and compacted into the executable
// body by the finalizer.
type InstI struct {
	Op             Op
	V1, V2, V3, V4 int
	C              Value // constant operand, for OpAssignVC

	// Branch targets. A target may refer to the trailing pending
	// pseudo-instruction, which stands in for "end of function".
	// TargetSlot / Target2Slot identify which operand field receives the
	// resolved address (1..4).
	Target      *InstI
	Target2     *InstI
	TargetSlot  int
	Target2Slot int

	InstNum   int
	LoopDepth int
	LoopStart bool // at least one back-edge targets this instruction
	Live      bool
}

// NewInstI creates a live provisional instruction with up to four operands.
func NewInstI(op Op, vs ...int) *InstI {
	inst := &InstI{Op: op, Live: true}
	switch len(vs) {
	case 4:
		inst.V4 = vs[3]
		fallthrough
	case 3:
		inst.V3 = vs[2]
		fallthrough
	case 2:
		inst.V2 = vs[1]
		fallthrough
	case 1:
		inst.V1 = vs[0]
	}
	return inst
}

// SetTarget records the primary branch target and the operand field that
// will receive its resolved address.
func (i *InstI) SetTarget(target *InstI, slot int) {
	i.Target = target
	i.TargetSlot = slot
}

// SetTarget2 records the secondary branch target.
func (i *InstI) SetTarget2(target *InstI, slot int) {
	i.Target2 = target
	i.Target2Slot = slot
}

// IsForwarder returns true if this instruction is a pure forwarding branch.
func (i *InstI) IsForwarder() bool {
	return i.Op.IsForwarder()
}

// SlotOperand returns operand field k (0-based).
func (i *InstI) SlotOperand(k int) int {
	switch k {
	case 0:
		return i.V1
	case 1:
		return i.V2
	case 2:
		return i.V3
	default:
		return i.V4
	}
}

// SetSlotOperand overwrites operand field k (0-based).
func (i *InstI) SetSlotOperand(k, v int) {
	switch k {
	case 0:
		i.V1 = v
	case 1:
		i.V2 = v
	case 2:
		i.V3 = v
	default:
		i.V4 = v
	}
}

// RetargetBranch writes the final instruction number of target into the
// operand field of inst identified by slot.
func RetargetBranch(inst *InstI, target *InstI, slot int) error {
	switch slot {
	case 1:
		inst.V1 = target.InstNum
	case 2:
		inst.V2 = target.InstNum
	case 3:
		inst.V3 = target.InstNum
	case 4:
		inst.V4 = target.InstNum
	default:
		return fmt.Errorf("bad branch operand slot %d for %s", slot, inst.Op)
	}
	return nil
}

// Disasm formats the instruction for diagnostic listings. When frame is
// non-nil, slot operands are annotated with the identifier occupying the
// slot in the original layout.
func (i *InstI) Disasm(frame []*ID) string {
	parts := []string{i.Op.String()}
	roles := i.Op.SlotRoles()
	vs := [4]int{i.V1, i.V2, i.V3, i.V4}

	for k := 0; k < 4; k++ {
		switch {
		case i.Target != nil && i.TargetSlot == k+1:
			parts = append(parts, fmt.Sprintf("-> %d", i.Target.InstNum))
		case i.Target2 != nil && i.Target2Slot == k+1:
			parts = append(parts, fmt.Sprintf("-> %d", i.Target2.InstNum))
		case roles[k] != RoleNone:
			if frame != nil && vs[k] >= 0 && vs[k] < len(frame) {
				parts = append(parts, fmt.Sprintf("%d (%s)", vs[k], frame[vs[k]].Name))
			} else {
				parts = append(parts, fmt.Sprintf("%d", vs[k]))
			}
		}
	}

	if i.Op == OpAssignVC {
		parts = append(parts, i.C.String())
	}

	return strings.Join(parts, " ")
}

func (i *InstI) String() string {
	return i.Disasm(nil)
}
