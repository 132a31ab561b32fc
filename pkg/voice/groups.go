package voice

// group holds the per-polyphony-group configuration and live counters
// described in spec.md §3.
type group struct {
	limit            int
	stealingPriority StealingPriorityMode
	playMode         PlayMode
	monoFeatures     MonoFeature
	used             int
}

// groupRegistry maps opaque group ids to their configuration. Group 0
// always exists from construction (spec.md §3).
type groupRegistry struct {
	groups map[PolyGroup]*group
}

func newGroupRegistry(maxVoiceCount int) *groupRegistry {
	r := &groupRegistry{groups: make(map[PolyGroup]*group, 4)}
	r.guarantee(0, maxVoiceCount)
	return r
}

// guarantee materializes groupID with default configuration if it does
// not already exist, per spec.md §3's "materialized on first reference".
func (r *groupRegistry) guarantee(id PolyGroup, defaultLimit int) *group {
	if g, ok := r.groups[id]; ok {
		return g
	}
	g := &group{
		limit:            defaultLimit,
		stealingPriority: Oldest,
		playMode:         PolyVoices,
	}
	r.groups[id] = g
	return g
}

func (r *groupRegistry) get(id PolyGroup) (*group, bool) {
	g, ok := r.groups[id]
	return g, ok
}

// sumUsed returns the sum of every group's used count, which must equal
// the slot table's total used count (I2 in spec.md §3).
func (r *groupRegistry) sumUsed() int {
	n := 0
	for _, g := range r.groups {
		n += g.used
	}
	return n
}
