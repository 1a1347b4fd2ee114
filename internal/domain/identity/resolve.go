package identity

// ResolveAdversary decides which of a and b is the adversary in an exchange
// between them, reclassifying both sides as a side effect. It returns false
// when the pair cannot be resolved yet: self interaction, a missing name, two
// unknown actors, or a same-side pair no tie-break rule can split.
func (r *Registry) ResolveAdversary(a, b string) (string, bool) {
	a, _ = NormalizeName(a)
	b, _ = NormalizeName(b)
	if a == "" || b == "" || a == b {
		return "", false
	}
	ca, cb := r.Classify(a), r.Classify(b)

	switch {
	case ca.Classification == cb.Classification && ca.Classification != Unknown:
		adv, ok := tieBreak(ca, cb)
		if !ok {
			return "", false
		}
		ally := ca
		if adv == ca {
			ally = cb
		}
		adv.Classification = Adversary
		ally.Classification = Ally
		return adv.Name, true
	case ca.Classification == Ally || cb.Classification == Adversary:
		ca.Classification = Ally
		cb.Classification = Adversary
		return cb.Name, true
	case cb.Classification == Ally || ca.Classification == Adversary:
		ca.Classification = Adversary
		cb.Classification = Ally
		return ca.Name, true
	default:
		return "", false
	}
}

// tieBreak picks the adversary among two actors currently on the same side.
// Rules apply in order: a lone non-player, then the more recent ally damage,
// then the side never damaged by an ally.
func tieBreak(a, b *Character) (*Character, bool) {
	if a.IsPlayer != b.IsPlayer {
		if a.IsPlayer {
			return b, true
		}
		return a, true
	}

	aSeen, bSeen := !a.LastAllyDamage.IsZero(), !b.LastAllyDamage.IsZero()
	switch {
	case aSeen && bSeen:
		switch {
		case a.LastAllyDamage.After(b.LastAllyDamage):
			return a, true
		case b.LastAllyDamage.After(a.LastAllyDamage):
			return b, true
		}
	case aSeen:
		return b, true
	case bSeen:
		return a, true
	}
	return nil, false
}
