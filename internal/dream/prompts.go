package dream

import (
	"fmt"
	"strings"

	"github.com/scrypster/ltam/pkg/types"
)

// mergeDecision is the parsed form of Deep Sleep's merge-confirmation
// response: {"should_merge": bool, "merged_summary": string, "importance":
// number, "confidence": number, "reasoning": string}.
type mergeDecision struct {
	ShouldMerge   bool
	MergedSummary string
	Importance    float64
	Confidence    float64
	Reasoning     string
}

// reviewDecision is one entry of Deep Sleep's review-batch response array:
// {"index": int, "action": "KEEP"|"UPDATE"|"SPLIT"|"DELETE", "new_summary"?,
// "new_importance"?, "new_confidence"?, "split_into"?, "reasoning": string}.
type reviewDecision struct {
	Index         int
	Action        string
	NewSummary    *string
	NewImportance *float64
	NewConfidence *float64
	SplitInto     []string
	Reasoning     string
}

func identitySection(b *strings.Builder, identity *types.Identity) {
	if identity == nil {
		return
	}
	b.WriteString("Identity lens:\n")
	if identity.Name != "" {
		fmt.Fprintf(b, "Name: %s\n", identity.Name)
	}
	if identity.PersonalityType != "" {
		fmt.Fprintf(b, "Personality: %s\n", identity.PersonalityType)
	}
	if identity.CommunicationStyle != "" {
		fmt.Fprintf(b, "Communication style: %s\n", identity.CommunicationStyle)
	}
	b.WriteString("\n")
}

func knowledgeSection(b *strings.Builder, knowledge []types.Knowledge) {
	if len(knowledge) == 0 {
		return
	}
	b.WriteString("Known facts (avoid reintroducing these as new information):\n")
	for _, k := range knowledge {
		if k.Summary != "" {
			fmt.Fprintf(b, "- %s\n", k.Summary)
		} else {
			fmt.Fprintf(b, "- %s\n", k.Content)
		}
	}
	b.WriteString("\n")
}

// buildMergePrompt asks whether a candidate group of memories is genuinely
// redundant and, if so, for a single unified summary.
func buildMergePrompt(memories []types.Memory, identity *types.Identity, knowledge []types.Knowledge) string {
	var b strings.Builder
	b.WriteString("The following memories were flagged as possibly redundant. ")
	b.WriteString("Decide whether they describe the same underlying fact or event and should be merged into one memory.\n\n")
	identitySection(&b, identity)
	knowledgeSection(&b, knowledge)
	b.WriteString("Candidate memories:\n")
	for i, m := range memories {
		fmt.Fprintf(&b, "%d. %s\n", i+1, m.Summary)
	}
	b.WriteString("\nRespond with a single JSON object: ")
	b.WriteString(`{"should_merge": bool, "merged_summary": string, "importance": number 0-1, "confidence": number 0-1, "reasoning": string}.` + "\n")
	b.WriteString("If they should not be merged, set should_merge to false and leave the other fields at reasonable defaults.\n")
	return b.String()
}

// buildReviewPrompt asks for a curation decision (KEEP/UPDATE/SPLIT/DELETE)
// for each memory in a batch, indexed against the batch order.
func buildReviewPrompt(memories []types.Memory, identity *types.Identity, knowledge []types.Knowledge) string {
	var b strings.Builder
	b.WriteString("Review the following memories through the identity lens below. For each, decide whether to keep it as is, ")
	b.WriteString("update its summary or scores, split it into distinct memories, or delete it as noise that doesn't serve the identity's purpose.\n\n")
	identitySection(&b, identity)
	knowledgeSection(&b, knowledge)
	b.WriteString("Memories to review:\n")
	for i, m := range memories {
		fmt.Fprintf(&b, "%d. %s\n", i, m.Summary)
	}
	b.WriteString("\nRespond with a single JSON object {\"decisions\": [...]}, one decision per memory, each entry: ")
	b.WriteString(`{"index": int, "action": "KEEP"|"UPDATE"|"SPLIT"|"DELETE", "new_summary": string|null, "new_importance": number|null, "new_confidence": number|null, "split_into": [string, ...]|null, "reasoning": string}.` + "\n")
	b.WriteString("index must match the 0-based position above. Only include fields relevant to the chosen action.\n")
	return b.String()
}

func parseMergeResponse(raw map[string]interface{}) (mergeDecision, error) {
	var d mergeDecision
	shouldMerge, _ := raw["should_merge"].(bool)
	d.ShouldMerge = shouldMerge
	d.MergedSummary, _ = raw["merged_summary"].(string)
	d.Importance = floatField(raw, "importance", 0.5)
	d.Confidence = floatField(raw, "confidence", 0.5)
	d.Reasoning, _ = raw["reasoning"].(string)
	if d.ShouldMerge && d.MergedSummary == "" {
		return d, fmt.Errorf("dream: merge response missing merged_summary")
	}
	return d, nil
}

func parseReviewResponse(raw []interface{}) ([]reviewDecision, error) {
	decisions := make([]reviewDecision, 0, len(raw))
	for _, item := range raw {
		obj, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		var d reviewDecision
		idx, _ := obj["index"].(float64)
		d.Index = int(idx)
		action, _ := obj["action"].(string)
		d.Action = strings.ToUpper(strings.TrimSpace(action))
		if s, ok := obj["new_summary"].(string); ok && s != "" {
			d.NewSummary = &s
		}
		if v, ok := optionalFloat(obj, "new_importance"); ok {
			d.NewImportance = &v
		}
		if v, ok := optionalFloat(obj, "new_confidence"); ok {
			d.NewConfidence = &v
		}
		if raw, ok := obj["split_into"].([]interface{}); ok {
			for _, s := range raw {
				if str, ok := s.(string); ok && str != "" {
					d.SplitInto = append(d.SplitInto, str)
				}
			}
		}
		d.Reasoning, _ = obj["reasoning"].(string)
		if d.Action == "" {
			continue
		}
		decisions = append(decisions, d)
	}
	if len(decisions) == 0 {
		return nil, fmt.Errorf("dream: review response contained no usable decisions")
	}
	return decisions, nil
}

func floatField(raw map[string]interface{}, key string, def float64) float64 {
	if v, ok := optionalFloat(raw, key); ok {
		return v
	}
	return def
}

func optionalFloat(raw map[string]interface{}, key string) (float64, bool) {
	v, ok := raw[key]
	if !ok || v == nil {
		return 0, false
	}
	f, ok := v.(float64)
	return f, ok
}
