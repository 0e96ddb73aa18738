package achievement

// Rarity is the tier assigned to an achievement from its global unlock
// percentage.
type Rarity string

const (
	RarityRare     Rarity = "rare"
	RaritySemiRare Rarity = "semi-rare"
	RarityMain     Rarity = "main"
)

// Classifier assigns rarity tiers. SemiRarityThreshold only applies when
// TrophyMode is enabled.
type Classifier struct {
	RarityThreshold     float64
	SemiRarityThreshold float64
	TrophyMode          bool
}

func (c Classifier) Classify(percent float64) Rarity {
	if percent <= c.RarityThreshold {
		return RarityRare
	}
	if c.TrophyMode && percent <= c.SemiRarityThreshold {
		return RaritySemiRare
	}
	return RarityMain
}
