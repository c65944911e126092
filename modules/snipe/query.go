package snipe

import (
	"sort"

	"remark-bot/pkg/remark"
)

// ChannelCandidates filters a store snapshot down to the histories whose
// latest state belongs to conversationID and is still inside the snipe
// window, ascending by the latest state's ChangedAt.
func ChannelCandidates(
	snapshot map[string]remark.MessageHistory,
	policy ExpiryPolicy,
	conversationID string,
) []remark.MessageHistory {
	candidates := make([]remark.MessageHistory, 0, len(snapshot))
	for _, history := range snapshot {
		latest, found := history.Latest()
		if !found {
			continue
		}
		if latest.Conversation.ID != conversationID {
			continue
		}
		if policy.Expired(latest, 0) {
			continue
		}
		candidates = append(candidates, history)
	}

	sort.Slice(candidates, func(i, j int) bool {
		left, _ := candidates[i].Latest()
		right, _ := candidates[j].Latest()
		if left.ChangedAt.Equal(right.ChangedAt) {
			return left.Message.ID < right.Message.ID
		}

		return left.ChangedAt.Before(right.ChangedAt)
	})

	return candidates
}

// ExcludeAuthor drops candidates whose latest state was authored by authorID.
// An empty author id keeps the input unchanged.
func ExcludeAuthor(candidates []remark.MessageHistory, authorID string) []remark.MessageHistory {
	if authorID == "" {
		return candidates
	}

	kept := make([]remark.MessageHistory, 0, len(candidates))
	for _, history := range candidates {
		latest, found := history.Latest()
		if !found {
			continue
		}
		if latest.Author.ID == authorID {
			continue
		}
		kept = append(kept, history)
	}

	return kept
}

// SelectByIndex picks one candidate by 1-based recency index: index 1 is the
// most recently changed candidate. Out-of-range indexes clamp to the nearest
// bound; only an empty candidate list reports not found.
func SelectByIndex(candidates []remark.MessageHistory, index int) (remark.MessageHistory, bool) {
	if len(candidates) == 0 {
		return nil, false
	}

	if index < 1 {
		index = 1
	}
	if index > len(candidates) {
		index = len(candidates)
	}

	return candidates[len(candidates)-index], true
}
