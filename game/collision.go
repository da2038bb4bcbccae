package game

import (
	"math"

	"knibbles-server/config"
	"knibbles-server/logger"
	"knibbles-server/physics"
)

// resolveCollisions runs once per tick after the movement pass. It evaluates
// every unordered player pair with single-pass first-eaten-wins semantics: a
// player removed earlier in the pass is skipped for subsequent comparisons
// and nothing is re-evaluated within the same tick.
func (r *Room) resolveCollisions() {
	ids := make([]string, 0, len(r.Players))
	for id := range r.Players {
		ids = append(ids, id)
	}

	for i := 0; i < len(ids); i++ {
		a, ok := r.Players[ids[i]]
		if !ok {
			continue
		}
		for j := i + 1; j < len(ids); j++ {
			b, ok := r.Players[ids[j]]
			if !ok {
				continue
			}
			if !physics.CirclesOverlap(a.Pos.X, a.Pos.Y, a.Radius, b.Pos.X, b.Pos.Y, b.Radius) {
				continue
			}
			// Only one branch may execute per pair. The strict margin makes
			// the two directions mutually exclusive, but guard it anyway.
			if a.Radius > b.Radius*config.EatMargin {
				r.eat(a, b)
			} else if b.Radius > a.Radius*config.EatMargin {
				r.eat(b, a)
				break // a is gone; stop comparing it
			}
			// Near-equal sizes bounce off with no effect.
		}
	}

	r.resolveKnibbleCollisions()
}

// eat consumes victim: the eater grows by a fraction of the victim's radius,
// takes its rounded radius as score, and the victim leaves both the entity
// and connection maps.
func (r *Room) eat(eater, victim *Player) {
	eater.Radius += math.Round(victim.Radius * config.EatGrowthFraction)
	eater.Score += int(math.Round(victim.Radius))
	delete(r.Players, victim.ID)
	delete(r.participants, victim.ID)

	logger.Log.Infof("room %s: %s ate %s (radius %.1f, score %d)", r.ID, eater.ID, victim.ID, eater.Radius, eater.Score)
	r.BroadcastAll(mustMarshal(playerEatenMessage{
		Type:     MsgPlayerEaten,
		RoomID:   r.ID,
		EaterID:  eater.ID,
		VictimID: victim.ID,
	}))
}

// resolveKnibbleCollisions feeds overlapping players. A knibble is consumed
// by at most one player per tick; the scan breaks out as soon as it is gone.
func (r *Room) resolveKnibbleCollisions() {
	for id, k := range r.Knibbles {
		for _, p := range r.Players {
			if !physics.CirclesOverlap(p.Pos.X, p.Pos.Y, p.Radius, k.Pos.X, k.Pos.Y, k.Radius) {
				continue
			}
			p.Radius += config.KnibbleGrowth
			p.Score += config.KnibbleScore
			delete(r.Knibbles, id)
			break
		}
	}
}
