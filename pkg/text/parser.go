// Package text maps free-form listener utterances onto session actions.
package text

import (
	"muze/internal/core"
	"muze/pkg/fuzzy"
)

const (
	// MinCommandSimilarity is the fuzzy score a whole utterance needs to match a phrase
	MinCommandSimilarity = 0.8
)

type phrase struct {
	text   string
	action core.Action
}

// phrases are checked in order, so more specific phrases come first. Phrases are
// normalized text: "don't" arrives as "don t".
var phrases = []phrase{
	{"add to playlist", core.ActionAddSong},
	{"add to my playlist", core.ActionAddSong},
	{"save this song", core.ActionAddSong},
	{"save song", core.ActionAddSong},
	{"save this", core.ActionAddSong},
	{"add song", core.ActionAddSong},

	{"don t dance", core.ActionLessDancey},
	{"dont dance", core.ActionLessDancey},
	{"do not dance", core.ActionLessDancey},
	{"less dancey", core.ActionLessDancey},
	{"less danceable", core.ActionLessDancey},
	{"calm down", core.ActionLessDancey},
	{"more dancey", core.ActionMoreDancey},
	{"more danceable", core.ActionMoreDancey},

	{"more electric", core.ActionMoreElectric},
	{"more electronic", core.ActionMoreElectric},
	{"less acoustic", core.ActionMoreElectric},
	{"more acoustic", core.ActionMoreAcoustic},
	{"less electric", core.ActionMoreAcoustic},
	{"less electronic", core.ActionMoreAcoustic},

	{"more obscure", core.ActionMoreObscure},
	{"less popular", core.ActionMoreObscure},
	{"less known", core.ActionMoreObscure},
	{"more popular", core.ActionMorePopular},
	{"less obscure", core.ActionMorePopular},
	{"mainstream", core.ActionMorePopular},

	{"less happy", core.ActionSadder},
	{"more sad", core.ActionSadder},
	{"sadder", core.ActionSadder},
	{"sad", core.ActionSadder},
	{"more happy", core.ActionHappier},
	{"happier", core.ActionHappier},
	{"cheer up", core.ActionHappier},

	{"something like this", core.ActionSimilar},
	{"more like this", core.ActionSimilar},
	{"similar", core.ActionSimilar},

	{"surprise me", core.ActionRandom},
	{"something random", core.ActionRandom},
	{"random", core.ActionRandom},

	{"dance", core.ActionMoreDancey},
	{"play", core.ActionPlay},
	{"start", core.ActionPlay},
}

type Parser struct {
	normalizer *fuzzy.Normalizer
}

func NewParser() *Parser {
	return &Parser{normalizer: fuzzy.NewNormalizer()}
}

// ParseCommand returns the action named by utterance. Exact phrases win over fuzzy matches.
func (p *Parser) ParseCommand(utterance string) (core.Action, bool) {
	text := p.normalizer.NormalizeUtterance(utterance)
	if text == "" {
		return core.ActionUnknown, false
	}

	for _, ph := range phrases {
		if p.normalizer.ContainsPhrase(text, ph.text) {
			return ph.action, true
		}
	}

	return p.closestCommand(text)
}

// closestCommand fuzzy-matches the whole utterance against every phrase.
func (p *Parser) closestCommand(text string) (core.Action, bool) {
	best := core.ActionUnknown
	bestScore := 0.0

	for _, ph := range phrases {
		score := p.normalizer.CalculateSimilarity(text, ph.text)
		if score > bestScore {
			best, bestScore = ph.action, score
		}
	}

	if bestScore < MinCommandSimilarity {
		return core.ActionUnknown, false
	}
	return best, true
}
