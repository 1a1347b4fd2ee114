package encounter

import (
	"fmt"

	"github.com/google/uuid"
)

// tickIndex maps wall clock bucket ticks to output slots while merging. Ticks
// only ever grow; a jump past the next expected tick collapses into a single
// empty slot instead of padding the real gap. Overlapping input is located by
// scanning from the cursor, which mostly moves forward.
type tickIndex struct {
	ticks  []int64
	cursor int
}

func (x *tickIndex) slot(tick int64) int {
	n := len(x.ticks)
	if n == 0 {
		x.ticks = append(x.ticks, tick)
		x.cursor = 0
		return 0
	}
	last := x.ticks[n-1]
	if tick > last {
		if tick != last+BucketSeconds {
			x.ticks = append(x.ticks, last+BucketSeconds)
		}
		x.ticks = append(x.ticks, tick)
		x.cursor = len(x.ticks) - 1
		return x.cursor
	}

	c := min(x.cursor, n-1)
	for c > 0 && x.ticks[c] > tick {
		c--
	}
	for c < n-1 && x.ticks[c] < tick {
		c++
	}
	x.cursor = c
	return c
}

// firstTick is the wall clock tick of bucket zero.
func (e *Encounter) firstTick() int64 {
	s := e.StartedAt.Unix()
	return s - int64(e.StartedAt.Second()%BucketSeconds)
}

// bucketCount is the number of buckets the encounter spans.
func (e *Encounter) bucketCount() int {
	n := e.Bucket(e.UpdatedAt) + 1
	for _, p := range append([]*Participant{e.Adversary}, e.participants...) {
		n = max(n, len(p.Buckets.Damage), len(p.Buckets.Heal), len(p.Buckets.InboundMelee), len(p.Buckets.InboundHeal))
	}
	return n
}

// Merge combines finished encounters ordered by start time into one Merged
// encounter. The adversary is named name, or after the first encounter's
// adversary when name is empty. Unsorted or active input panics.
func Merge(name string, encounters ...*Encounter) *Encounter {
	return merge(uuid.NewString(), name, Merged, encounters)
}

func merge(id, name string, status Status, encounters []*Encounter) *Encounter {
	if len(encounters) == 0 {
		panic("encounter: merge of no encounters")
	}
	for i, e := range encounters {
		if !e.Finished() {
			panic(fmt.Sprintf("encounter: merge of active encounter %s", e.ID))
		}
		if i > 0 && e.StartedAt.Before(encounters[i-1].StartedAt) {
			panic(fmt.Sprintf("encounter: merge out of order, %s starts before %s", e.ID, encounters[i-1].ID))
		}
	}

	first := encounters[0]
	if name == "" {
		name = first.Adversary.Name
	}
	out := New(name, first.StartedAt,
		WithID(id),
		WithZone(first.Zone),
		WithScope(first.Scope),
		WithServer(first.Server),
		WithActor(first.Actor),
	)
	out.Adversary.Class, out.Adversary.Level = first.Adversary.Class, first.Adversary.Level

	var idx tickIndex
	for _, e := range encounters {
		out.Members = append(out.Members, e.ID)
		out.touch(e.UpdatedAt)

		tick := e.firstTick()
		slot := make([]int, e.bucketCount())
		for i := range slot {
			slot[i] = idx.slot(tick + int64(i*BucketSeconds))
		}

		mergeParticipant(out.Adversary, e.Adversary, slot)
		for _, p := range e.participants {
			mergeParticipant(out.participant(p.Name), p, slot)
		}
	}

	out.Finish(status)
	return out
}

func mergeParticipant(dst, src *Participant, slot []int) {
	dst.absorb(src, "", slot)
	dst.absorbDefense(src, slot)
	dst.Buffs = append(dst.Buffs, src.Buffs...)
	if dst.PetOwner == "" {
		dst.PetOwner = src.PetOwner
	}
	if dst.Class == "" {
		dst.Class = src.Class
	}
	dst.Level = max(dst.Level, src.Level)
}
