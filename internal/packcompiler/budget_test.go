package packcompiler

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/scrypster/ltam/pkg/types"
)

func memWithSummary(s string) ScoredMemory {
	return ScoredMemory{Memory: types.Memory{Summary: s}}
}

func knowledgeWithContent(s string) ScoredKnowledge {
	return ScoredKnowledge{Knowledge: types.Knowledge{Content: s}}
}

func TestTrimMemoriesToBudget_StopsAtOverflow(t *testing.T) {
	memories := []ScoredMemory{
		memWithSummary(strings.Repeat("a", 40)), // 10 tokens
		memWithSummary(strings.Repeat("b", 40)), // 10 tokens
		memWithSummary(strings.Repeat("c", 40)), // 10 tokens
	}
	trimmed := trimMemoriesToBudget(memories, 15)
	assert.Len(t, trimmed, 1)
}

func TestTrimMemoriesToBudget_KeepsAllWithinBudget(t *testing.T) {
	memories := []ScoredMemory{memWithSummary("short"), memWithSummary("also short")}
	trimmed := trimMemoriesToBudget(memories, 1000)
	assert.Len(t, trimmed, 2)
}

func TestTrimKnowledgeToBudget_StopsAtOverflow(t *testing.T) {
	items := []ScoredKnowledge{
		knowledgeWithContent(strings.Repeat("a", 40)),
		knowledgeWithContent(strings.Repeat("b", 40)),
	}
	trimmed := trimKnowledgeToBudget(items, 10)
	assert.Len(t, trimmed, 1)
}

func TestEnforceTokenBudget_SplitsRemainingAfterIdentityOverhead(t *testing.T) {
	session := []ScoredMemory{memWithSummary(strings.Repeat("s", 4000))}
	knowledge := []ScoredKnowledge{knowledgeWithContent(strings.Repeat("k", 4000))}
	longTerm := []ScoredMemory{memWithSummary(strings.Repeat("l", 4000))}
	identity := &IdentitySummary{Name: "Aria"}

	gotSession, gotKnowledge, gotLongTerm := enforceTokenBudget(session, knowledge, longTerm, identity, 2000)

	// remaining = 2000 - 150 = 1850; session budget = 462 tokens = 1848 chars,
	// less than the 4000-char summary, so it gets dropped entirely.
	assert.Len(t, gotSession, 0)
	assert.Len(t, gotKnowledge, 0)
	assert.Len(t, gotLongTerm, 0)
}

func TestEnforceTokenBudget_NoIdentityOverheadWhenNil(t *testing.T) {
	session := []ScoredMemory{memWithSummary("tiny")}
	gotSession, _, _ := enforceTokenBudget(session, nil, nil, nil, 2000)
	assert.Len(t, gotSession, 1)
}

func TestEstimateTokens_IncludesIdentityOverheadOnlyWhenPresent(t *testing.T) {
	session := []ScoredMemory{memWithSummary(strings.Repeat("a", 40))}
	withoutIdentity := estimateTokens(session, nil, nil, nil)
	withIdentity := estimateTokens(session, nil, nil, &IdentitySummary{Name: "Aria"})
	assert.Equal(t, 10, withoutIdentity)
	assert.Equal(t, 10+identityTokenOverhead, withIdentity)
}
