package zam

import "errors"

// FuncFlavor distinguishes how a function participates in the event engine.
type FuncFlavor int

const (
	FlavorFunction FuncFlavor = iota
	FlavorEvent
	FlavorHook
)

// Func is the function object a body is compiled from.
type Func interface {
	Name() string
	Flavor() FuncFlavor
	Params() []*ID
}

// GlobalInfo pairs a global identifier with its frame slot.
type GlobalInfo struct {
	ID   *ID
	Slot int
}

// FrameSharingInfo describes one group of identifiers coalesced into a
// shared frame slot: the identifiers in the group, the instruction index at
// which each identifier's live range begins, and one past the last
// instruction of the group's live range.
type FrameSharingInfo struct {
	IDs       []*ID
	IDStart   []int
	ScopeEnd  int
	IsManaged bool
}

// CaseKey constrains the key types a switch case table can be indexed by.
type CaseKey interface {
	~int64 | ~uint64 | ~float64 | ~string
}

// CaseMapI maps case values to provisional instruction targets.
type CaseMapI[T CaseKey] map[T]*InstI

// CaseMap is the concretized form: case values map to final instruction
// numbers.
type CaseMap[T CaseKey] map[T]int

// CaseMaps collects the case tables of all switches of one key type.
type CaseMaps[T CaseKey] []CaseMap[T]

// Body is the immutable product of compiling one function: the final
// instruction vector together with the frame metadata the interpreter
// needs to execute it.
type Body struct {
	name string
	fn   Func

	frame        []FrameSharingInfo
	managedSlots []int
	globals      []GlobalInfo
	numIters     int
	nonRecursive bool

	intCases    CaseMaps[int64]
	uintCases   CaseMaps[uint64]
	doubleCases CaseMaps[float64]
	strCases    CaseMaps[string]

	insts    []*InstI
	instsSet bool
}

// NewBody assembles a body from the finalizer's results. The instruction
// vector is installed separately with SetInsts so the body is immutable
// once assembly completes.
func NewBody(name string, fn Func, frame []FrameSharingInfo, managedSlots []int,
	globals []GlobalInfo, numIters int, nonRecursive bool,
	intCases CaseMaps[int64], uintCases CaseMaps[uint64],
	doubleCases CaseMaps[float64], strCases CaseMaps[string]) *Body {
	return &Body{
		name:         name,
		fn:           fn,
		frame:        frame,
		managedSlots: managedSlots,
		globals:      globals,
		numIters:     numIters,
		nonRecursive: nonRecursive,
		intCases:     intCases,
		uintCases:    uintCases,
		doubleCases:  doubleCases,
		strCases:     strCases,
	}
}

// SetInsts installs the final instruction vector. It may be called once.
func (b *Body) SetInsts(insts []*InstI) error {
	if b.instsSet {
		return errors.New("instruction vector already installed")
	}
	b.insts = insts
	b.instsSet = true
	return nil
}

func (b *Body) Name() string              { return b.name }
func (b *Body) Func() Func                { return b.fn }
func (b *Body) Insts() []*InstI           { return b.insts }
func (b *Body) Frame() []FrameSharingInfo { return b.frame }
func (b *Body) ManagedSlots() []int       { return b.managedSlots }
func (b *Body) Globals() []GlobalInfo     { return b.globals }
func (b *Body) NumIters() int             { return b.numIters }
func (b *Body) NonRecursive() bool        { return b.nonRecursive }

func (b *Body) IntCases() CaseMaps[int64]      { return b.intCases }
func (b *Body) UIntCases() CaseMaps[uint64]    { return b.uintCases }
func (b *Body) DoubleCases() CaseMaps[float64] { return b.doubleCases }
func (b *Body) StrCases() CaseMaps[string]     { return b.strCases }
