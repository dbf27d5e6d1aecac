// Package reward implements the façade of business operations the
// orchestrator exposes over the chain adapter's submission pipeline:
// awarding XP, minting achievements, and the administrative role/rate
// operations those depend on.
package reward

import "github.com/ethereum/go-ethereum/crypto"

// Activity is the XP-earning action being rewarded, ordinal-mapped to the
// contract's enum.
type Activity uint8

const (
	LessonCompletion Activity = iota
	DatasetContribution
	DailyPractice
	QuizCompletion
	AchievementEarned
)

func (a Activity) String() string {
	switch a {
	case LessonCompletion:
		return "LessonCompletion"
	case DatasetContribution:
		return "DatasetContribution"
	case DailyPractice:
		return "DailyPractice"
	case QuizCompletion:
		return "QuizCompletion"
	case AchievementEarned:
		return "AchievementEarned"
	default:
		return "Unknown"
	}
}

// Tier is an achievement level, ordinal-mapped to the contract's enum.
type Tier uint8

const (
	Beginner Tier = iota
	Intermediate
	Advanced
	Expert
	Master
)

func (t Tier) String() string {
	switch t {
	case Beginner:
		return "Beginner"
	case Intermediate:
		return "Intermediate"
	case Advanced:
		return "Advanced"
	case Expert:
		return "Expert"
	case Master:
		return "Master"
	default:
		return "Unknown"
	}
}

// tierThresholds maps each tier to the minimum cumulative XP required to
// qualify for it, highest tier first so TierForXP can return on first match.
var tierThresholds = []struct {
	tier      Tier
	threshold uint64
}{
	{Master, 2000},
	{Expert, 1000},
	{Advanced, 750},
	{Intermediate, 500},
	{Beginner, 100},
}

// TierForXP returns the highest tier whose threshold is at most totalXP. ok
// is false when totalXP qualifies for no tier at all.
func TierForXP(totalXP uint64) (tier Tier, ok bool) {
	for _, t := range tierThresholds {
		if totalXP >= t.threshold {
			return t.tier, true
		}
	}
	return 0, false
}

// MinterRole and AdminRole are the two AccessControl roles the façade
// checks before mutating contract state. MinterRole is keccak256 of its
// name per the contract's role-hashing convention; AdminRole is the
// AccessControl zero-role.
var (
	MinterRole = crypto.Keccak256Hash([]byte("MINTER_ROLE"))
	AdminRole  = [32]byte{}
)
