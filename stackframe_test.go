package fastspec

import "testing"

func TestStackFrameManagerLocalsRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		types []PrimType
	}{
		{name: "single int64", types: []PrimType{TypeInt64}},
		{name: "mixed widths", types: []PrimType{TypeInt32, TypeInt64, TypeDouble, TypeInt32}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			mgr := NewStackFrameManager(0)
			before := mgr.bump

			for _, ty := range tc.types {
				mgr.PushLocal(ty)
			}
			for i := len(tc.types) - 1; i >= 0; i-- {
				mgr.PopLocal(tc.types[i])
			}

			if mgr.bump != before {
				t.Fatalf("push_local/pop_local round trip left bump at %d, want %d", mgr.bump, before)
			}
		})
	}
}

func TestStackFrameManagerOffsetsAreAligned(t *testing.T) {
	mgr := NewStackFrameManager(1) // base = argsAreaSize(1) = 16
	off1 := mgr.PushLocal(TypeInt32)
	off2 := mgr.PushLocal(TypeDouble)

	if off1%4 != 0 {
		t.Fatalf("int32 local at offset %d isn't 4-byte aligned", off1)
	}
	if off2%8 != 0 {
		t.Fatalf("double local at offset %d isn't 8-byte aligned", off2)
	}
	if off2 < off1+4 {
		t.Fatalf("second local at %d overlaps first local (%d, width 4)", off2, off1)
	}
}

func TestStackFrameManagerForceSpillAll(t *testing.T) {
	mgr := NewStackFrameManager(0)
	mgr.PushTemp(TypeInt64)
	mgr.PushTemp(TypeInt64)

	if _, ok := mgr.PopTemp(TypeInt64); ok {
		t.Fatalf("pop_temp before any spill reported spilled=true")
	}
	mgr.PushTemp(TypeInt64) // put it back for the spill test below

	mgr.ForceSpillAll()

	for i := 0; i < 2; i++ {
		off, ok := mgr.PopTemp(TypeInt64)
		if !ok {
			t.Fatalf("pop_temp after ForceSpillAll reported spilled=false")
		}
		if off == 0 {
			t.Fatalf("spilled temp got the return-value slot's offset")
		}
	}
}

func TestSelectStackframeCategoryMonotonic(t *testing.T) {
	prev := -1
	for _, sz := range []int{1, 16, 17, 64, 1000, 100000} {
		cat := SelectStackframeCategory(sz)
		if StackframeCategorySize(cat) < sz {
			t.Fatalf("category %d (size %d) doesn't cover requested size %d", cat, StackframeCategorySize(cat), sz)
		}
		if cat < prev {
			t.Fatalf("SelectStackframeCategory(%d) = %d is smaller than a previous, smaller request's category %d", sz, cat, prev)
		}
		prev = cat
	}
}

func TestSelectStackframeCategoryOverflow(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected a panic requesting more than the largest category")
		}
	}()
	SelectStackframeCategory(StackframeCategorySize(numStackframeCategories-1) + 1)
}
