package model

// Interner assigns a dense LocalID to every distinct CompoundID seen during
// a run. One canonical interned identifier per compound avoids re-deriving
// identity strings and keeps lookup-key and matched-key forms from drifting
// apart.
//
// Not safe for concurrent use; each unit loop owns its own table.
type Interner struct {
	byID  map[CompoundID]LocalID
	byIdx []CompoundID
}

// NewInterner creates an empty interning table.
func NewInterner() *Interner {
	return &Interner{byID: make(map[CompoundID]LocalID)}
}

// Intern returns the LocalID for id, assigning the next dense one if unseen.
func (in *Interner) Intern(id CompoundID) LocalID {
	if lid, ok := in.byID[id]; ok {
		return lid
	}
	lid := LocalID(len(in.byIdx))
	in.byID[id] = lid
	in.byIdx = append(in.byIdx, id)
	return lid
}

// Lookup returns the LocalID for id without assigning one.
func (in *Interner) Lookup(id CompoundID) (LocalID, bool) {
	lid, ok := in.byID[id]
	return lid, ok
}

// Resolve maps a LocalID back to its CompoundID.
func (in *Interner) Resolve(lid LocalID) CompoundID {
	return in.byIdx[lid]
}

// Len returns the number of interned compounds.
func (in *Interner) Len() int {
	return len(in.byIdx)
}
