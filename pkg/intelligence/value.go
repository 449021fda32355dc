package intelligence

import (
	"math"
	"time"

	"github.com/agoralabs/debatemem/pkg/storage"
)

// ValueScorer computes the retention value of stored turns.
//
// The value combines three signals:
//   - Recency: how far behind the session's current turn the record sits,
//     so a single-sitting debate still distinguishes early from late turns
//   - Relevance: cosine similarity against a reference embedding
//     (typically the session topic or the debate motion)
//   - Role importance: configurable per-role weight, so moderator rulings
//     outlive filler exchanges
//
// Each signal is clamped to [0,1] before weighting, so the final score is
// also in [0,1].
//
// Example usage:
//
//	scorer := NewValueScorer(nil)
//	score := scorer.Score(record, topicEmbedding, currentTurn, time.Now())
type ValueScorer struct {
	// recencyWeight, relevanceWeight, and roleWeight sum to 1.0.
	recencyWeight   float64
	relevanceWeight float64
	roleWeight      float64

	// maxTurnDistance is the turn distance at which recency reaches zero.
	maxTurnDistance int

	// decayHalfLife, when set, switches recency to wall-clock exponential
	// decay instead of turn distance. Useful for sessions spanning days.
	decayHalfLife time.Duration

	// roleImportance maps debate roles to importance in [0,1]. Roles
	// missing from the map score 0.5.
	roleImportance map[string]float64
}

// ValueScorerConfig tunes a ValueScorer. Zero values take defaults.
type ValueScorerConfig struct {
	RecencyWeight   float64
	RelevanceWeight float64
	RoleWeight      float64

	// MaxTurnDistance is the recency horizon in turns. Default 100.
	MaxTurnDistance int

	// DecayHalfLife switches recency to wall-clock decay when set. The
	// default (zero) keeps turn-distance recency.
	DecayHalfLife time.Duration

	RoleImportance map[string]float64
}

// NewValueScorer creates a value scorer. A nil config uses the defaults:
// weights 0.4/0.4/0.2, a 100-turn recency horizon, and moderator turns rated
// above debater turns.
func NewValueScorer(cfg *ValueScorerConfig) *ValueScorer {
	s := &ValueScorer{
		recencyWeight:   0.4,
		relevanceWeight: 0.4,
		roleWeight:      0.2,
		maxTurnDistance: 100,
		roleImportance: map[string]float64{
			"moderator": 1.0,
			"proponent": 0.8,
			"opponent":  0.8,
			"system":    0.6,
		},
	}

	if cfg != nil {
		if cfg.RecencyWeight > 0 || cfg.RelevanceWeight > 0 || cfg.RoleWeight > 0 {
			s.recencyWeight = cfg.RecencyWeight
			s.relevanceWeight = cfg.RelevanceWeight
			s.roleWeight = cfg.RoleWeight
		}
		if cfg.MaxTurnDistance > 0 {
			s.maxTurnDistance = cfg.MaxTurnDistance
		}
		if cfg.DecayHalfLife > 0 {
			s.decayHalfLife = cfg.DecayHalfLife
		}
		if cfg.RoleImportance != nil {
			s.roleImportance = cfg.RoleImportance
		}
	}

	return s
}

// Score computes the retention value of a record against the session's
// current turn counter.
//
// referenceEmbedding anchors the relevance signal; when nil, relevance
// contributes its weight at full strength so value reduces to recency plus
// role importance. now only matters when wall-clock decay is configured.
func (s *ValueScorer) Score(rec *storage.Record, referenceEmbedding []float64, currentTurn int, now time.Time) float64 {
	recency := s.recencyScore(rec, currentTurn, now)

	relevance := 1.0
	if referenceEmbedding != nil {
		relevance = clamp01(CosineSimilarity(rec.Embedding, referenceEmbedding))
	}

	roleScore, ok := s.roleImportance[rec.Role]
	if !ok {
		roleScore = 0.5
	}

	value := s.recencyWeight*recency +
		s.relevanceWeight*relevance +
		s.roleWeight*clamp01(roleScore)

	return clamp01(value)
}

// recencyScore is linear in turn distance: a record maxTurnDistance turns
// behind the counter scores 0. With a configured half-life it decays by
// wall-clock age instead.
func (s *ValueScorer) recencyScore(rec *storage.Record, currentTurn int, now time.Time) float64 {
	if s.decayHalfLife > 0 {
		age := now.Sub(rec.CreatedAt)
		if age <= 0 {
			return 1.0
		}
		halfLives := float64(age) / float64(s.decayHalfLife)
		return clamp01(math.Exp2(-halfLives))
	}

	turnsAgo := currentTurn - rec.TurnIndex
	if turnsAgo <= 0 {
		return 1.0
	}
	return clamp01(1.0 - float64(turnsAgo)/float64(s.maxTurnDistance))
}

func clamp01(v float64) float64 {
	return math.Max(0.0, math.Min(1.0, v))
}
