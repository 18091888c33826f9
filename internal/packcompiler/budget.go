package packcompiler

// identityTokenOverhead is the fixed token cost reserved for identity
// prose when present (§4.5 step 8).
const identityTokenOverhead = 150

// charsPerToken is the rough token estimator used throughout: 4 characters
// per token.
const charsPerToken = 4

// enforceTokenBudget trims each layer to its share of maxTokens after
// reserving identityTokenOverhead: 25% session, 35% knowledge, 40%
// long-term. Priority order follows §4.5: identity > session > knowledge >
// long-term.
func enforceTokenBudget(session []ScoredMemory, knowledge []ScoredKnowledge, longTerm []ScoredMemory, identity *IdentitySummary, maxTokens int) ([]ScoredMemory, []ScoredKnowledge, []ScoredMemory) {
	identityTokens := 0
	if identity != nil {
		identityTokens = identityTokenOverhead
	}
	remaining := maxTokens - identityTokens

	sessionBudget := int(float64(remaining) * 0.25)
	knowledgeBudget := int(float64(remaining) * 0.35)
	longTermBudget := int(float64(remaining) * 0.40)

	return trimMemoriesToBudget(session, sessionBudget),
		trimKnowledgeToBudget(knowledge, knowledgeBudget),
		trimMemoriesToBudget(longTerm, longTermBudget)
}

func trimMemoriesToBudget(memories []ScoredMemory, budget int) []ScoredMemory {
	var trimmed []ScoredMemory
	used := 0
	for _, m := range memories {
		est := len(m.Memory.Summary) / charsPerToken
		if used+est > budget {
			break
		}
		trimmed = append(trimmed, m)
		used += est
	}
	return trimmed
}

func trimKnowledgeToBudget(items []ScoredKnowledge, budget int) []ScoredKnowledge {
	var trimmed []ScoredKnowledge
	used := 0
	for _, k := range items {
		est := len(k.Knowledge.Content) / charsPerToken
		if used+est > budget {
			break
		}
		trimmed = append(trimmed, k)
		used += est
	}
	return trimmed
}

// estimateTokens sums the same 4-chars-per-token estimate over everything
// the pack ended up including, plus identity overhead (§4.5 step 9).
func estimateTokens(session []ScoredMemory, knowledge []ScoredKnowledge, longTerm []ScoredMemory, identity *IdentitySummary) int {
	total := 0
	for _, m := range session {
		total += len(m.Memory.Summary) / charsPerToken
	}
	for _, k := range knowledge {
		total += len(k.Knowledge.Content) / charsPerToken
	}
	for _, m := range longTerm {
		total += len(m.Memory.Summary) / charsPerToken
	}
	if identity != nil {
		total += identityTokenOverhead
	}
	return total
}
