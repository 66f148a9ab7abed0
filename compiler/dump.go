package compiler

import (
	"fmt"
	"io"
	"slices"

	"github.com/logrusorgru/aurora"
	"github.com/mileusna/conditional"

	"github.com/sowmyaramapatruni/zeek/zam"
)

// Dump prints the frame layouts and the instruction listings: the full
// provisional stream, the surviving intermediary code with its dead/loop
// annotations, and the final code, followed by the case tables. Dump never
// mutates compiler state and may be called before or after CompileBody.
func (c *Compiler) Dump(w io.Writer) {
	remappedFrame := !c.opts.NoZAMOpt

	fmt.Fprintln(w, aurora.Bold(conditional.String(remappedFrame, "Original frame:", "Frame:")))
	for slot, id := range c.frameDenizens {
		fmt.Fprintf(w, "frame[%d] = %s\n", slot, id.Name)
	}

	if remappedFrame && len(c.sharedFrameDenizens) > 0 {
		fmt.Fprintln(w, aurora.Bold("Final frame:"))
		for i, info := range c.sharedFrameDenizens {
			fmt.Fprintf(w, "frame2[%d] =", i)
			for _, id := range info.IDs {
				fmt.Fprintf(w, " %s", id.Name)
			}
			fmt.Fprintln(w)
		}
	}

	if len(c.insts2) > 0 {
		fmt.Fprintln(w, aurora.Bold("Pre-removal of dead code:"))
	}
	for i, inst := range c.insts1 {
		c.dumpInst(w, i, inst, true)
	}

	if len(c.insts2) > 0 {
		fmt.Fprintln(w, aurora.Bold("Final intermediary code:"))
	}
	for i, inst := range c.insts2 {
		c.dumpInst(w, i, inst, true)
	}

	if len(c.insts2) > 0 {
		fmt.Fprintln(w, aurora.Bold("Final code:"))
	}
	for i, inst := range c.insts2 {
		c.dumpInst(w, i, inst, false)
	}

	dumpCases(w, c.intCasesI, "int")
	dumpCases(w, c.uintCasesI, "uint")
	dumpCases(w, c.doubleCasesI, "double")
	dumpCases(w, c.strCasesI, "str")
}

func (c *Compiler) dumpInst(w io.Writer, i int, inst *zam.InstI, annotated bool) {
	if !annotated {
		fmt.Fprintf(w, "%d: %s\n", i, inst.Disasm(c.frameDenizens))
		return
	}

	marks := ""
	if !inst.Live {
		marks += aurora.Red(" (dead)").String()
	}
	if inst.LoopDepth > 0 {
		marks += aurora.Cyan(fmt.Sprintf(" (loop %d)", inst.LoopDepth)).String()
	}
	fmt.Fprintf(w, "%d%s: %s\n", i, marks, inst.Disasm(c.frameDenizens))
}

func dumpCases[T zam.CaseKey](w io.Writer, cases []zam.CaseMapI[T], typeName string) {
	for i, cm := range cases {
		fmt.Fprintf(w, "%s switch table #%d:", typeName, i)

		keys := make([]T, 0, len(cm))
		for k := range cm {
			keys = append(keys, k)
		}
		slices.Sort(keys)

		for _, k := range keys {
			fmt.Fprintf(w, " %v->%d", k, cm[k].InstNum)
		}
		fmt.Fprintln(w)
	}
}
