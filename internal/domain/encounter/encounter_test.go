package encounter

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/fightlog/internal/domain/model"
)

// t0 sits three seconds past a six second boundary.
var t0 = time.Date(2026, 3, 1, 20, 15, 9, 0, time.UTC)

func at(sec int) model.Header { return model.Header{At: t0.Add(time.Duration(sec) * time.Second)} }

func hit(sec int, src, tgt string, amount int64) model.Hit {
	return model.Hit{Header: at(sec), Source: src, Target: tgt, Amount: amount, Category: "slash"}
}

func TestBuckets(t *testing.T) {
	Convey("Given an encounter started off a bucket boundary", t, func() {
		e := New("M1", t0)

		Convey("When two actors hit across the first boundary", func() {
			e.AddHit(hit(0, "P1", "M1", 100))
			e.AddHit(hit(1, "P1", "M1", 50))
			e.AddHit(hit(3, "P1", "M1", 21))
			e.AddHit(hit(4, "P2", "M1", 35))
			e.Finish(Killed)

			Convey("Then buckets should align to the wall clock", func() {
				p1, _ := e.Participant("P1")
				p2, _ := e.Participant("P2")
				So(p1.Buckets.Damage, ShouldResemble, []int64{150, 21})
				So(p2.Buckets.Damage, ShouldResemble, []int64{0, 35})
				So(e.Adversary.Buckets.InboundMelee, ShouldResemble, []int64{150, 56})
			})
		})

		Convey("When a timestamp precedes the start", func() {
			So(e.Bucket(t0.Add(-time.Minute)), ShouldEqual, 0)
		})
	})
}

func TestAddHit(t *testing.T) {
	Convey("Given an active encounter", t, func() {
		e := New("a gnoll", t0, WithZone("Crushbone"), WithScope(Group))

		Convey("When an ally hits the adversary", func() {
			e.AddHit(hit(0, "P1", "a gnoll", 200))

			Convey("Then outbound and inbound sides should both update", func() {
				p1, ok := e.Participant("P1")
				So(ok, ShouldBeTrue)
				So(p1.OutboundHitSum, ShouldEqual, 200)
				So(p1.OutboundHitCount, ShouldEqual, 1)
				So(e.Adversary.InboundHitSum, ShouldEqual, 200)
				So(e.DamageTaken(), ShouldEqual, 200)
				So(len(e.Participants()), ShouldEqual, 1)
				So(e.Has("P1"), ShouldBeTrue)
				So(e.Has("a gnoll"), ShouldBeTrue)
			})
		})

		Convey("When special attacks land", func() {
			e.AddHit(model.Hit{Header: at(0), Source: "P1", Target: "a gnoll", Amount: 90, Category: "pierce", Modifiers: model.ModRiposte})
			e.AddHit(model.Hit{Header: at(1), Source: "P1", Target: "a gnoll", Amount: 500, Category: "archery", Modifiers: model.ModHeadshot | model.ModCritical})

			Convey("Then they should be relabeled and crits tallied", func() {
				p1, _ := e.Participant("P1")
				r, ok := p1.Hit("riposte")
				So(ok, ShouldBeTrue)
				So(r.Sum, ShouldEqual, 90)
				_, ok = p1.Hit("pierce")
				So(ok, ShouldBeFalse)
				hs, ok := p1.Hit("headshot")
				So(ok, ShouldBeTrue)
				So(hs.CritCount, ShouldEqual, 1)
				So(hs.CritSum, ShouldEqual, 500)
				So(hs.Max, ShouldEqual, 500)
			})
		})

		Convey("When a strikethrough lands on an ally", func() {
			e.AddHit(model.Hit{Header: at(0), Source: "a gnoll", Target: "P1", Amount: 40, Category: "crush", Modifiers: model.ModStrikethrough})
			e.AddHit(model.Hit{Header: at(1), Source: "a gnoll", Target: "P1", Amount: 40, Category: "crush", Modifiers: model.ModStrikethrough | model.ModRiposte})

			Convey("Then only the non-riposte one should synthesize an unknown defense", func() {
				p1, _ := e.Participant("P1")
				d, ok := p1.Defense("unknown")
				So(ok, ShouldBeTrue)
				So(d.Count, ShouldEqual, 1)
				So(p1.InboundMissCount, ShouldEqual, 0)
				So(p1.Buckets.InboundMelee, ShouldResemble, []int64{80})
			})
		})

		Convey("When a spell hits", func() {
			e.AddHit(model.Hit{Header: at(0), Source: "P1", Target: "a gnoll", Amount: 300, Category: "spell", Spell: "Ice Comet", Modifiers: model.ModTwincast})
			e.MarkCritical(model.Hit{Header: at(0), Source: "P1", Target: "a gnoll", Amount: 300, Category: "spell", Spell: "Ice Comet"})

			Convey("Then the spell aggregate should carry twin and crit counts", func() {
				p1, _ := e.Participant("P1")
				sp, ok := p1.Spell("Ice Comet", SpellDamage)
				So(ok, ShouldBeTrue)
				So(sp.Count, ShouldEqual, 1)
				So(sp.TwinCount, ShouldEqual, 1)
				So(sp.CritCount, ShouldEqual, 1)
				hs, _ := p1.Hit("spell")
				So(hs.Count, ShouldEqual, 1)
				So(hs.CritCount, ShouldEqual, 1)
			})

			Convey("And spell damage should not count as inbound melee", func() {
				So(e.Adversary.Buckets.InboundMelee, ShouldBeEmpty)
			})
		})

		Convey("When the encounter is finished", func() {
			e.AddHit(hit(0, "P1", "a gnoll", 10))
			e.Finish(Killed)

			Convey("Then further mutation should panic", func() {
				So(func() { e.AddHit(hit(1, "P1", "a gnoll", 10)) }, ShouldPanic)
				So(func() { e.Finish(TimedOut) }, ShouldPanic)
			})
		})

		Convey("When finishing with Active", func() {
			So(func() { e.Finish(Active) }, ShouldPanic)
		})
	})
}

func TestAddMiss(t *testing.T) {
	Convey("Given an active encounter", t, func() {
		e := New("a gnoll", t0)

		Convey("When melee and spell misses land", func() {
			e.AddMiss(model.Miss{Header: at(0), Source: "a gnoll", Target: "P1", Category: "parry"})
			e.AddMiss(model.Miss{Header: at(1), Source: "a gnoll", Target: "P1", Category: "dodge"})
			e.AddMiss(model.Miss{Header: at(2), Source: "P2", Target: "a gnoll", Category: "resist", Spell: "Ice Comet"})

			Convey("Then melee misses count as defenses and spell misses as resists", func() {
				p1, _ := e.Participant("P1")
				So(p1.InboundMissCount, ShouldEqual, 2)
				d, _ := p1.Defense("parry")
				So(d.Count, ShouldEqual, 1)

				p2, _ := e.Participant("P2")
				sp, ok := p2.Spell("Ice Comet", SpellDamage)
				So(ok, ShouldBeTrue)
				So(sp.ResistCount, ShouldEqual, 1)
				So(e.Adversary.InboundMissCount, ShouldEqual, 0)
				So(e.Adversary.Defenses, ShouldBeEmpty)
			})
		})
	})
}

func TestAddHeal(t *testing.T) {
	Convey("Given an active encounter", t, func() {
		e := New("M1", t0)
		e.AddHit(hit(0, "P1", "M1", 100))

		Convey("When an actor heals itself", func() {
			e.AddHeal(model.Heal{Header: at(1), Source: "P1", Target: "P1", Amount: 201, Gross: 250, Spell: "Light Healing"})

			Convey("Then inbound and outbound healing should each count once", func() {
				p1, _ := e.Participant("P1")
				So(p1.InboundHealSum, ShouldEqual, 201)
				So(p1.OutboundHealSum, ShouldEqual, 201)
				So(p1.OutboundGrossHealSum, ShouldEqual, 250)
				ht, ok := p1.HealTarget("P1")
				So(ok, ShouldBeTrue)
				So(ht.Count, ShouldEqual, 1)
			})
		})

		Convey("When a heal has no spell", func() {
			e.AddHeal(model.Heal{Header: at(1), Source: "P1", Target: "P1", Amount: 30, Gross: 30})

			Convey("Then it should be keyed as a lifetap", func() {
				p1, _ := e.Participant("P1")
				sp, ok := p1.Spell("Lifetap", SpellHeal)
				So(ok, ShouldBeTrue)
				So(sp.Sum, ShouldEqual, 30)
			})
		})

		Convey("When the adversary is healed", func() {
			e.AddHeal(model.Heal{Header: at(1), Source: "M2", Target: "M1", Amount: 500, Gross: 500})

			Convey("Then the heal should be ignored", func() {
				So(e.Adversary.InboundHealSum, ShouldEqual, 0)
				_, ok := e.Participant("M2")
				So(ok, ShouldBeFalse)
			})
		})

		Convey("When a heal has no source", func() {
			e.AddHeal(model.Heal{Header: at(1), Target: "P1", Amount: 12, Gross: 12})

			Convey("Then only the target should update", func() {
				p1, _ := e.Participant("P1")
				So(p1.InboundHealSum, ShouldEqual, 12)
				So(p1.OutboundHealSum, ShouldEqual, 0)
			})
		})
	})
}

func TestFinish(t *testing.T) {
	Convey("Given an encounter with a pet, a tank and a bystander", t, func() {
		e := New("a gnoll", t0)
		e.AddHit(hit(0, "Aldar", "a gnoll", 100))
		e.AddHit(hit(1, "Aldar`s warder", "a gnoll", 60))
		e.AddHit(model.Hit{Header: at(3), Source: "Aldar`s warder", Target: "a gnoll", Amount: 20, Category: "bite"})
		e.AddHit(hit(2, "a gnoll", "Aldar`s warder", 45))
		e.AddHit(hit(3, "Cyra", "a gnoll", 100))
		e.AddCast(model.Cast{Header: at(4), Source: "Dorn", Spell: "Shield of Words", Type: model.CastBegin})
		e.Touch("Aldar`s warder").PetOwner = "Aldar"

		e.Finish(Killed)

		Convey("Then the pet's damage should fold into its owner under pet keys", func() {
			aldar, _ := e.Participant("Aldar")
			So(aldar.OutboundHitSum, ShouldEqual, 180)
			ps, ok := aldar.Hit("pet:slash")
			So(ok, ShouldBeTrue)
			So(ps.Sum, ShouldEqual, 60)
			pb, ok := aldar.Hit("pet:bite")
			So(ok, ShouldBeTrue)
			So(pb.Sum, ShouldEqual, 20)
			So(aldar.Buckets.Damage, ShouldResemble, []int64{160, 20})
		})

		Convey("And the pet should keep only its tanking data", func() {
			pet, ok := e.Participant("Aldar`s warder")
			So(ok, ShouldBeTrue)
			So(pet.OutboundHitSum, ShouldEqual, 0)
			So(pet.Hits, ShouldBeEmpty)
			So(pet.InboundHitSum, ShouldEqual, 45)
		})

		Convey("And participants should sort by damage then name", func() {
			ps := e.Participants()
			So(ps[0].Name, ShouldEqual, "Aldar")
			So(ps[1].Name, ShouldEqual, "Cyra")
			So(ps[2].Name, ShouldEqual, "Aldar`s warder")
		})

		Convey("And the bystander should be pruned", func() {
			_, ok := e.Participant("Dorn")
			So(ok, ShouldBeFalse)
			So(len(e.Participants()), ShouldEqual, 3)
		})

		Convey("And hit categories should sort by sum", func() {
			aldar, _ := e.Participant("Aldar")
			So(aldar.Hits[0].Category, ShouldEqual, "slash")
			So(aldar.Hits[1].Category, ShouldEqual, "pet:slash")
			So(aldar.TopHit, ShouldResemble, Top{Name: "slash", Sum: 100})
			So(e.Status, ShouldEqual, Killed)
		})
	})

	Convey("Given defenses recorded out of check order", t, func() {
		e := New("a gnoll", t0)
		e.AddMiss(model.Miss{Header: at(0), Source: "a gnoll", Target: "P1", Category: "dodge"})
		e.AddMiss(model.Miss{Header: at(0), Source: "a gnoll", Target: "P1", Category: "parry"})
		e.AddMiss(model.Miss{Header: at(0), Source: "a gnoll", Target: "P1", Category: "parry"})
		e.AddMiss(model.Miss{Header: at(0), Source: "a gnoll", Target: "P1", Category: "miss"})
		e.AddHit(hit(1, "a gnoll", "P1", 10))
		e.AddHit(hit(1, "a gnoll", "P1", 10))
		e.Finish(TimedOut)

		Convey("Then attempts should be rebuilt in canonical order", func() {
			p1, _ := e.Participant("P1")
			So(len(p1.Defenses), ShouldEqual, 3)
			So(p1.Defenses[0].Category, ShouldEqual, "miss")
			So(p1.Defenses[0].Attempts, ShouldEqual, 6)
			So(p1.Defenses[1].Category, ShouldEqual, "parry")
			So(p1.Defenses[1].Attempts, ShouldEqual, 5)
			So(p1.Defenses[2].Category, ShouldEqual, "dodge")
			So(p1.Defenses[2].Attempts, ShouldEqual, 3)
		})
	})

	Convey("Given heal targets and spells", t, func() {
		e := New("a gnoll", t0)
		e.AddHit(hit(0, "Bren", "a gnoll", 5))
		e.AddHeal(model.Heal{Header: at(1), Source: "Bren", Target: "Aldar", Amount: 0, Gross: 300, Spell: "Complete Heal"})
		e.AddHeal(model.Heal{Header: at(1), Source: "Bren", Target: "Cyra", Amount: 100, Gross: 100, Spell: "Remedy"})
		e.AddHeal(model.Heal{Header: at(2), Source: "Bren", Target: "Dorn", Amount: 250, Gross: 250, Spell: "Remedy"})
		e.AddHit(model.Hit{Header: at(2), Source: "Bren", Target: "a gnoll", Amount: 50, Category: "spell", Spell: "Smite"})
		e.Finish(Killed)

		Convey("Then zero heal targets should be dropped and the rest sorted", func() {
			bren, _ := e.Participant("Bren")
			So(len(bren.HealTargets), ShouldEqual, 2)
			So(bren.HealTargets[0].Target, ShouldEqual, "Dorn")
			So(bren.HealTargets[1].Target, ShouldEqual, "Cyra")
			_, ok := bren.HealTarget("Aldar")
			So(ok, ShouldBeFalse)
		})

		Convey("And spells should sort damage first then by sum", func() {
			bren, _ := e.Participant("Bren")
			So(bren.Spells[0].Name, ShouldEqual, "Smite")
			So(bren.Spells[1].Name, ShouldEqual, "Remedy")
			So(bren.Spells[2].Name, ShouldEqual, "Complete Heal")
			So(bren.TopHeal, ShouldResemble, Top{Name: "Remedy", Sum: 350})
		})
	})
}
