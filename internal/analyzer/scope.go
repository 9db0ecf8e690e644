package analyzer

// frame tracks the local-slot allocator and upvalue table for one fn*
// arity body (spec §4.3: "each frame has a local-slot array... and a
// reference to its bytecode unit and upvalues"). Nested let*/loop*
// blocks share their enclosing fn's frame; only fn* introduces a new one.
type frame struct {
	parent   *frame
	nextSlot int

	upvalues     []UpvalueDescriptor
	upvalueSlots map[string]int // name -> index already assigned in upvalues, memoized
}

func newFrame(parent *frame) *frame {
	return &frame{parent: parent, upvalueSlots: make(map[string]int)}
}

func (f *frame) allocSlot() int {
	s := f.nextSlot
	f.nextSlot++
	return s
}

// resetLocals starts a fresh local-slot count for a new arity body while
// keeping this frame's accumulated upvalues intact: a multi-arity fn* is
// one closure object with one upvalue array shared by every arity, even
// though each arity's local-slot array is sized and numbered
// independently (spec §4.3: one fn_val per closure, one body per arity).
func (f *frame) resetLocals(startSlot int) {
	f.nextSlot = startSlot
}

// scope is one lexical binding (a let*/loop*/fn* parameter), chained to
// its enclosing scope. Resolution walks this chain first within the
// current frame, then crosses into enclosing frames to build upvalues.
type scope struct {
	parent *scope
	frame  *frame
	name   string
	slot   int
}

func pushLocal(parent *scope, fr *frame, name string) (*scope, int) {
	slot := fr.allocSlot()
	return &scope{parent: parent, frame: fr, name: name, slot: slot}, slot
}

// resolveLocalOrUpvalue looks up name starting at sc within curFrame's
// own locals, crossing frame boundaries as needed and registering
// flattened upvalue descriptors along the way. It returns
// (isLocal, slotOrUpvalIndex, found).
func resolveLocalOrUpvalue(sc *scope, curFrame *frame, name string) (isLocal bool, index int, found bool) {
	return resolveIn(sc, curFrame, name)
}

func resolveIn(sc *scope, fr *frame, name string) (bool, int, bool) {
	for s := sc; s != nil && s.frame == fr; s = s.parent {
		if s.name == name {
			return true, s.slot, true
		}
	}
	// Not bound directly in fr. Find the nearest enclosing scope node
	// whose frame is fr's parent (or further up), then recurse.
	var outer *scope
	for s := sc; s != nil; s = s.parent {
		if s.frame != fr {
			outer = s
			break
		}
	}
	if fr.parent == nil || outer == nil {
		return false, 0, false
	}
	if idx, ok := fr.upvalueSlots[name]; ok {
		return false, idx, true
	}
	parentIsLocal, parentIndex, ok := resolveIn(outer, fr.parent, name)
	if !ok {
		return false, 0, false
	}
	idx := len(fr.upvalues)
	fr.upvalues = append(fr.upvalues, UpvalueDescriptor{FromParentLocal: parentIsLocal, Index: parentIndex})
	fr.upvalueSlots[name] = idx
	return false, idx, true
}
