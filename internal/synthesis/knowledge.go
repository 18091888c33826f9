package synthesis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/scrypster/ltam/internal/apperr"
	"github.com/scrypster/ltam/pkg/types"
)

// Bounds and caps the knowledge-extraction node enforces on each parsed
// item before it reaches persistence (§4.6). Exact numbers are not named by
// the spec; these are the values this port settled on — see DESIGN.md.
const (
	minKnowledgeContentLen     = 10
	maxKnowledgeContentLen     = 2000
	maxKnowledgeSummaryLen     = 280
	maxKnowledgeItemsPerMemory = 10
	defaultKnowledgeTopic      = "general"
)

// Skip reasons the knowledge-synthesis pipeline can report, matching the
// node shapes in original_source's knowledge_synthesis/state.py.
const (
	SkipInvalidMemory = "invalid_memory"
	SkipNoExtractions = "no_extractions"
)

// DedupPolicy selects how persist_knowledge reconciles newly extracted
// items against knowledge already linked to the source memory.
type DedupPolicy string

const (
	// DedupReplace deletes existing knowledge linked to this memory first,
	// then inserts the new items. The default: a memory re-synthesized (by
	// a dream merge, say) should not accumulate stale knowledge forever.
	DedupReplace DedupPolicy = "replace"
	// DedupSkip aborts the persist step entirely if any knowledge is
	// already linked to this memory.
	DedupSkip DedupPolicy = "skip"
	// DedupAppend always inserts, regardless of what is already linked.
	DedupAppend DedupPolicy = "append"
)

// knowledgeItem is one element of the LLM extraction node's JSON array
// response.
type knowledgeItem struct {
	KnowledgeType string `json:"knowledge_type"`
	Content       string `json:"content"`
	Summary       string `json:"summary"`
	Topic         string `json:"topic"`
}

// KnowledgeResult is what the knowledge-synthesis pipeline reports back to
// its caller (a direct caller, or the auto-knowledge Hook).
type KnowledgeResult struct {
	KnowledgeIDs []string
	CreatedCount int
	DeletedCount int
	SkipReason   string
}

// KnowledgeSynthesizer runs the three linear nodes: fetch_memory ->
// synthesize_knowledge -> persist_knowledge.
type KnowledgeSynthesizer struct {
	store  Store
	llm    LLM
	policy DedupPolicy
}

// NewKnowledgeSynthesizer builds a KnowledgeSynthesizer. An empty policy
// defaults to DedupReplace.
func NewKnowledgeSynthesizer(s Store, llm LLM, policy DedupPolicy) *KnowledgeSynthesizer {
	if policy == "" {
		policy = DedupReplace
	}
	return &KnowledgeSynthesizer{store: s, llm: llm, policy: policy}
}

// Trigger adapts KnowledgeSynthesizer to the Hook interface so it can be
// wired directly into a MemorySynthesizer for tests that don't need the
// fire-and-forget detachment internal/hooks.AutoKnowledge provides.
func (k *KnowledgeSynthesizer) Trigger(memoryID string) {
	_, _ = k.Synthesize(context.Background(), memoryID)
}

// Synthesize runs fetch_memory -> synthesize_knowledge -> persist_knowledge
// for one memory.
func (k *KnowledgeSynthesizer) Synthesize(ctx context.Context, memoryID string) (KnowledgeResult, error) {
	mem, err := k.store.GetMemory(ctx, memoryID, false)
	if err != nil {
		return KnowledgeResult{SkipReason: SkipInvalidMemory}, nil
	}

	items, err := k.extract(ctx, mem)
	if err != nil {
		return KnowledgeResult{}, err
	}
	if len(items) == 0 {
		return KnowledgeResult{SkipReason: SkipNoExtractions}, nil
	}

	return k.persist(ctx, mem, items)
}

// extract runs the synthesize_knowledge node: call the LLM for a JSON array
// of extracted items, then validate each one individually. An individually
// invalid item is dropped, not fatal; the whole call only fails if the LLM
// round trip itself fails or returns unparsable JSON.
func (k *KnowledgeSynthesizer) extract(ctx context.Context, mem *types.Memory) ([]knowledgeItem, error) {
	prompt := extractionPrompt(mem)

	raw, err := k.llm.Call(ctx, prompt, 0.3, 1024)
	if err != nil {
		return nil, apperr.Wrap(apperr.Transient, "synthesis: synthesize_knowledge call failed: "+err.Error())
	}

	var parsed []knowledgeItem
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &parsed); err != nil {
		return nil, apperr.Wrap(apperr.Transient, "synthesis: synthesize_knowledge response not a JSON array: "+err.Error())
	}

	valid := make([]knowledgeItem, 0, len(parsed))
	for _, item := range parsed {
		if !validKnowledgeItem(item) {
			continue
		}
		if item.Topic == "" {
			item.Topic = defaultKnowledgeTopic
		}
		valid = append(valid, item)
		if len(valid) == maxKnowledgeItemsPerMemory {
			break
		}
	}
	return valid, nil
}

func validKnowledgeItem(item knowledgeItem) bool {
	if item.KnowledgeType == "" || item.Content == "" {
		return false
	}
	if !types.IsValidKnowledgeType(types.KnowledgeType(item.KnowledgeType)) {
		return false
	}
	if len(item.Content) < minKnowledgeContentLen || len(item.Content) > maxKnowledgeContentLen {
		return false
	}
	if len(item.Summary) > maxKnowledgeSummaryLen {
		return false
	}
	return true
}

// persist runs the persist_knowledge node, applying the configured
// DedupPolicy and writing one KnowledgeAuditLog row per create/delete.
func (k *KnowledgeSynthesizer) persist(ctx context.Context, mem *types.Memory, items []knowledgeItem) (KnowledgeResult, error) {
	existing, err := k.store.ListKnowledgeBySourceMemory(ctx, mem.ID)
	if err != nil {
		return KnowledgeResult{}, err
	}

	result := KnowledgeResult{}

	switch k.policy {
	case DedupSkip:
		if len(existing) > 0 {
			return KnowledgeResult{SkipReason: "dedup_skip_existing"}, nil
		}
	case DedupReplace:
		for _, old := range existing {
			if err := k.store.SoftDeleteKnowledge(ctx, old.ID); err != nil {
				return KnowledgeResult{}, err
			}
			if err := k.auditDelete(ctx, old, mem.ID); err != nil {
				return KnowledgeResult{}, err
			}
			result.DeletedCount++
		}
	case DedupAppend:
		// no deletion
	}

	for _, item := range items {
		know := &types.Knowledge{
			ID:             uuid.New().String(),
			AnimaID:        mem.AnimaID,
			Type:           types.KnowledgeType(item.KnowledgeType),
			Topic:          item.Topic,
			Content:        item.Content,
			Summary:        item.Summary,
			Confidence:     0.7,
			SourceType:     types.SourceInternal,
			SourceMemoryID: mem.ID,
		}
		if err := k.store.CreateKnowledge(ctx, know); err != nil {
			return KnowledgeResult{}, err
		}
		if err := k.auditCreate(ctx, know); err != nil {
			return KnowledgeResult{}, err
		}
		result.KnowledgeIDs = append(result.KnowledgeIDs, know.ID)
		result.CreatedCount++
	}

	return result, nil
}

func (k *KnowledgeSynthesizer) auditCreate(ctx context.Context, know *types.Knowledge) error {
	after, err := json.Marshal(know)
	if err != nil {
		return err
	}
	return k.store.CreateKnowledgeAudit(ctx, &types.KnowledgeAuditLog{
		ID:          uuid.New().String(),
		KnowledgeID: know.ID,
		Action:      types.AuditCreate,
		SourceType:  "memory",
		SourceID:    know.SourceMemoryID,
		After:       after,
		Trigger:     "knowledge_synthesis",
		CreatedAt:   time.Now().UTC(),
	})
}

func (k *KnowledgeSynthesizer) auditDelete(ctx context.Context, old types.Knowledge, memoryID string) error {
	before, err := json.Marshal(old)
	if err != nil {
		return err
	}
	return k.store.CreateKnowledgeAudit(ctx, &types.KnowledgeAuditLog{
		ID:          uuid.New().String(),
		KnowledgeID: old.ID,
		Action:      types.AuditDelete,
		SourceType:  "memory",
		SourceID:    memoryID,
		Before:      before,
		Trigger:     "knowledge_synthesis",
		CreatedAt:   time.Now().UTC(),
	})
}

// extractionPrompt renders the memory (and, eventually, its linked source
// events) into the prompt the extraction node sends.
func extractionPrompt(mem *types.Memory) string {
	var b strings.Builder
	b.WriteString("Extract durable knowledge items from the memory below. ")
	b.WriteString("Respond with a JSON array of objects: ")
	b.WriteString(`{"knowledge_type": "FACT|CONCEPT|METHOD|PRINCIPLE|EXPERIENCE", "content": string, "summary": string, "topic": string}.` + "\n\n")
	fmt.Fprintf(&b, "Summary: %s\nContent: %s\n", mem.Summary, mem.Content)
	return b.String()
}
