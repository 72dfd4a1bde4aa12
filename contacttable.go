package glasstokey

// contactTable is an open-addressed hash map specialized to ContactKey,
// per spec.md §4.2. Power-of-two capacity, linear probing, tombstones, and
// a Murmur-style finalizer as the hash function. The engine churns
// thousands of inserts/removes per second across active fingers, so this
// avoids the allocator pressure of a general-purpose map[ContactKey]*T.
type contactTable struct {
	keys      []ContactKey
	values    []*ContactState
	state     []slotState // empty, occupied, tombstone
	count     int
	tombstone int
	mask      uint64
}

type slotState uint8

const (
	slotEmpty slotState = iota
	slotOccupied
	slotTombstone
)

const contactTableMinCapacity = 16

func newContactTable() *contactTable {
	t := &contactTable{}
	t.resize(contactTableMinCapacity)
	return t
}

// murmurFinalizer is the 64-bit finalizer mix from MurmurHash3, used here
// purely as a fast, well-distributed bit mixer for ContactKey.
func murmurFinalizer(k uint64) uint64 {
	k ^= k >> 33
	k *= 0xff51afd7ed558ccd
	k ^= k >> 33
	k *= 0xc4ceb9fe1a85ec53
	k ^= k >> 33
	return k
}

func (t *contactTable) resize(newCap int) {
	old := *t
	t.keys = make([]ContactKey, newCap)
	t.values = make([]*ContactState, newCap)
	t.state = make([]slotState, newCap)
	t.mask = uint64(newCap - 1)
	t.count = 0
	t.tombstone = 0

	for i, s := range old.state {
		if s == slotOccupied {
			t.insert(old.keys[i], old.values[i])
		}
	}
}

func (t *contactTable) probe(key ContactKey) int {
	idx := murmurFinalizer(uint64(key)) & t.mask
	firstTombstone := -1
	for {
		switch t.state[idx] {
		case slotEmpty:
			if firstTombstone != -1 {
				return firstTombstone
			}
			return int(idx)
		case slotTombstone:
			if firstTombstone == -1 {
				firstTombstone = int(idx)
			}
		case slotOccupied:
			if t.keys[idx] == key {
				return int(idx)
			}
		}
		idx = (idx + 1) & t.mask
	}
}

// loadFactorNumerator/Denominator trigger growth at 70% occupancy
// (including tombstones, so churn doesn't degrade probe length).
const (
	loadFactorNumerator   = 7
	loadFactorDenominator = 10
)

func (t *contactTable) maybeGrow() {
	if (t.count+t.tombstone)*loadFactorDenominator >= len(t.keys)*loadFactorNumerator {
		t.resize(len(t.keys) * 2)
	}
}

// insert adds or replaces the entry for key.
func (t *contactTable) insert(key ContactKey, value *ContactState) {
	t.maybeGrow()
	idx := t.probe(key)
	if t.state[idx] != slotOccupied {
		if t.state[idx] == slotTombstone {
			t.tombstone--
		}
		t.count++
	}
	t.keys[idx] = key
	t.values[idx] = value
	t.state[idx] = slotOccupied
}

// get returns the entry for key, or (nil, false).
func (t *contactTable) get(key ContactKey) (*ContactState, bool) {
	idx := murmurFinalizer(uint64(key)) & t.mask
	for {
		switch t.state[idx] {
		case slotEmpty:
			return nil, false
		case slotOccupied:
			if t.keys[idx] == key {
				return t.values[idx], true
			}
		}
		idx = (idx + 1) & t.mask
	}
}

// remove deletes the entry for key, if present.
func (t *contactTable) remove(key ContactKey) {
	idx := murmurFinalizer(uint64(key)) & t.mask
	for {
		switch t.state[idx] {
		case slotEmpty:
			return
		case slotOccupied:
			if t.keys[idx] == key {
				t.state[idx] = slotTombstone
				t.values[idx] = nil
				t.count--
				t.tombstone++
				return
			}
		}
		idx = (idx + 1) & t.mask
	}
}

// forEach visits every live entry. fn must not insert/remove into the table.
func (t *contactTable) forEach(fn func(ContactKey, *ContactState)) {
	for i, s := range t.state {
		if s == slotOccupied {
			fn(t.keys[i], t.values[i])
		}
	}
}

// len reports the number of live entries.
func (t *contactTable) len() int { return t.count }

// clearPreservingCapacity empties the table without shrinking its backing
// arrays, for the hot reset() path.
func (t *contactTable) clearPreservingCapacity() {
	for i := range t.state {
		t.state[i] = slotEmpty
		t.values[i] = nil
	}
	t.count = 0
	t.tombstone = 0
}
