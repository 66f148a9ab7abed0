package compiler

import (
	"errors"
	"testing"

	"github.com/sowmyaramapatruni/zeek/zam"
)

func TestAddToFrameAssignsDenseSlots(t *testing.T) {
	c, _ := newTestCompiler(nil, nil, &stmtFunc{}, nil)

	ids := []*zam.ID{
		local("a", zam.TypeInt),
		local("b", zam.TypeString),
		local("c", zam.TypeDouble),
	}
	for i, id := range ids {
		slot, err := c.AddToFrame(id)
		if err != nil {
			t.Fatalf("AddToFrame(%s): %v", id.Name, err)
		}
		if slot != i {
			t.Errorf("AddToFrame(%s) = %d, want %d", id.Name, slot, i)
		}
		if !c.HasFrameSlot(id) {
			t.Errorf("HasFrameSlot(%s) = false after add", id.Name)
		}
	}
	if c.FrameSize() != len(ids) {
		t.Errorf("FrameSize = %d, want %d", c.FrameSize(), len(ids))
	}
}

func TestAddToFrameDuplicate(t *testing.T) {
	c, _ := newTestCompiler(nil, nil, &stmtFunc{}, nil)

	id := local("x", zam.TypeInt)
	if _, err := c.AddToFrame(id); err != nil {
		t.Fatalf("first add: %v", err)
	}
	_, err := c.AddToFrame(id)
	if !errors.Is(err, ErrDuplicateSlot) {
		t.Errorf("second add: err = %v, want ErrDuplicateSlot", err)
	}
}

func TestClassifyManaged(t *testing.T) {
	tests := []struct {
		typ     zam.Type
		managed bool
	}{
		{zam.TypeInt, false},
		{zam.TypeCount, false},
		{zam.TypeBool, false},
		{zam.TypeDouble, false},
		{zam.TypeString, true},
		{zam.TypeTable, true},
		{zam.TypeRecord, true},
		{zam.TypeVector, true},
		{zam.TypeAny, true},
	}

	c, _ := newTestCompiler(nil, nil, &stmtFunc{}, nil)
	var want []int
	for i, tt := range tests {
		id := local(tt.typ.String(), tt.typ)
		if _, err := c.AddToFrame(id); err != nil {
			t.Fatal(err)
		}
		if tt.managed {
			want = append(want, i)
		}
	}

	got := c.classifyManaged()
	if len(got) != len(want) {
		t.Fatalf("managed = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("managed = %v, want %v", got, want)
		}
	}
}
