package packcompiler

import (
	"fmt"
	"strings"
)

// FormatIdentityProse renders an anima's identity as ~70-100 tokens of
// natural-language prose for system-prompt injection (§4.11). selfReflection
// is the free-form self_reflection tree; any section missing its required
// keys is silently omitted rather than rendered with placeholder text.
func FormatIdentityProse(name, personalityType, communicationStyle string, selfReflection map[string]interface{}) string {
	var parts []string
	self := selfReflection
	if self == nil {
		self = map[string]interface{}{}
	}

	being := subMap(self, "being")
	essence := str(being, "essence")
	nature := str(being, "nature")

	switch {
	case name != "" && personalityType != "" && essence != "":
		parts = append(parts, fmt.Sprintf("Your name is %s. You are %s %s — %s.", name, article(personalityType), personalityType, essence))
	case name != "" && personalityType != "":
		parts = append(parts, fmt.Sprintf("Your name is %s. You are %s %s.", name, article(personalityType), personalityType))
	case name != "":
		parts = append(parts, fmt.Sprintf("Your name is %s.", name))
	case personalityType != "" && essence != "":
		parts = append(parts, fmt.Sprintf("You are %s %s — %s.", article(personalityType), personalityType, essence))
	case personalityType != "":
		parts = append(parts, fmt.Sprintf("You are %s %s.", article(personalityType), personalityType))
	}

	purpose := subMap(self, "purpose")
	primaryPurpose := str(purpose, "primary")
	switch {
	case nature != "" && primaryPurpose != "":
		parts = append(parts, fmt.Sprintf("As %s, your purpose is to %s.", lowerFirst(nature), lowerFirst(primaryPurpose)))
	case nature != "":
		parts = append(parts, fmt.Sprintf("You are %s.", lowerFirst(nature)))
	case primaryPurpose != "":
		parts = append(parts, fmt.Sprintf("Your purpose is to %s.", lowerFirst(primaryPurpose)))
	}

	principles := subMap(self, "principles")
	starred := strSlice(principles, "starred")
	active := strSlice(principles, "active")
	switch {
	case len(starred) > 0 && len(active) > 0:
		otherActive := excludeAndCap(active, starred, 3)
		if len(otherActive) > 0 {
			parts = append(parts, fmt.Sprintf("You hold %s as non-negotiable principles, also valuing %s.",
				joinOxford(starred, "and"), joinOxford(otherActive, "and")))
		} else {
			parts = append(parts, fmt.Sprintf("You hold %s as non-negotiable principles.", joinOxford(starred, "and")))
		}
	case len(starred) > 0:
		parts = append(parts, fmt.Sprintf("You hold %s as non-negotiable principles.", joinOxford(starred, "and")))
	case len(active) > 0:
		parts = append(parts, fmt.Sprintf("You value %s.", joinOxford(capSlice(active, 5), "and")))
	}

	philosophy := subMap(self, "philosophy")
	ethics := str(philosophy, "ethics")
	if ethics != "" || philosophy["epistemology"] != nil {
		var philParts []string
		if ethics != "" {
			philParts = append(philParts, fmt.Sprintf("a %s", ethics))
		}
		if ep, ok := philosophy["epistemology"].(map[string]interface{}); ok {
			label := epistemologyLabel(floatOr(ep, "x", 0), floatOr(ep, "y", 0))
			if label != "" {
				philParts = append(philParts, fmt.Sprintf("%s tendencies", label))
			}
		}
		if len(philParts) > 0 {
			parts = append(parts, fmt.Sprintf("Philosophically, you're %s.", strings.Join(philParts, " with ")))
		}
	}

	if rel := subMap(self, "relational"); len(rel) > 0 {
		if sentence := formatRelational(rel); sentence != "" {
			parts = append(parts, sentence)
		}
	}

	arc := subMap(self, "arc")
	if phase := str(arc, "current"); phase != "" {
		parts = append(parts, fmt.Sprintf("You're currently in your %s phase.", phase))
	}

	if communicationStyle != "" && len(parts) == 0 {
		parts = append(parts, fmt.Sprintf("Your communication style is %s.", communicationStyle))
	}

	return strings.Join(parts, " ")
}

// formatRelational groups roles by person so the same name is never
// addressed twice ("Phil is your owner and creator" instead of two
// sentences).
func formatRelational(relational map[string]interface{}) string {
	var order []string
	personRoles := map[string][]string{}
	for role, raw := range relational {
		person, ok := raw.(string)
		if !ok || person == "" {
			continue
		}
		formattedRole := strings.ReplaceAll(role, "_", " ")
		if _, seen := personRoles[person]; !seen {
			order = append(order, person)
		}
		personRoles[person] = append(personRoles[person], formattedRole)
	}

	var relParts []string
	for _, person := range order {
		roles := personRoles[person]
		if len(roles) == 1 {
			relParts = append(relParts, fmt.Sprintf("%s is your %s", person, roles[0]))
		} else {
			relParts = append(relParts, fmt.Sprintf("%s is your %s", person, joinOxford(roles, "and")))
		}
	}
	if len(relParts) == 0 {
		return ""
	}
	return joinOxford(relParts, "and") + "."
}

// epistemologyLabel maps 2D epistemology coordinates (x: skeptic↔idealist,
// y: empiricist↔rationalist, both in [-1,1]) to a qualitative label.
func epistemologyLabel(x, y float64) string {
	magnitude := x
	if magnitude < 0 {
		magnitude = -magnitude
	}
	if ay := absf(y); ay > magnitude {
		magnitude = ay
	}
	if magnitude < 0.2 {
		return "epistemological centrist"
	}

	var xLabel, yLabel string
	switch {
	case x < -0.3:
		xLabel = "skeptical"
	case x > 0.3:
		xLabel = "idealist"
	}
	switch {
	case y < -0.3:
		yLabel = "empiricist"
	case y > 0.3:
		yLabel = "rationalist"
	}

	switch {
	case xLabel != "" && yLabel != "":
		return xLabel + " " + yLabel
	case xLabel != "":
		return xLabel
	case yLabel != "":
		return yLabel
	default:
		return "balanced epistemology"
	}
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// article returns "an" when word begins with a vowel, "a" otherwise.
func article(word string) string {
	if word == "" {
		return "a"
	}
	switch word[0] {
	case 'A', 'E', 'I', 'O', 'U', 'a', 'e', 'i', 'o', 'u':
		return "an"
	default:
		return "a"
	}
}

// lowerFirst lowercases the first rune unless the second rune is also
// upper-case, which signals an acronym ("AI", "LLM") that should be left
// alone.
func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	if len(r) > 1 && r[1] >= 'A' && r[1] <= 'Z' {
		return s
	}
	if r[0] >= 'A' && r[0] <= 'Z' {
		r[0] += 'a' - 'A'
	}
	return string(r)
}

// joinOxford joins items with commas and a trailing conjunction: "a", "a
// and b", "a, b, and c".
func joinOxford(items []string, conjunction string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	case 2:
		return fmt.Sprintf("%s %s %s", items[0], conjunction, items[1])
	default:
		return fmt.Sprintf("%s, %s %s", strings.Join(items[:len(items)-1], ", "), conjunction, items[len(items)-1])
	}
}

func excludeAndCap(items, exclude []string, max int) []string {
	excluded := make(map[string]bool, len(exclude))
	for _, e := range exclude {
		excluded[e] = true
	}
	var out []string
	for _, item := range items {
		if excluded[item] {
			continue
		}
		out = append(out, item)
		if len(out) == max {
			break
		}
	}
	return out
}

func capSlice(items []string, max int) []string {
	if len(items) <= max {
		return items
	}
	return items[:max]
}

func subMap(m map[string]interface{}, key string) map[string]interface{} {
	if m == nil {
		return nil
	}
	if v, ok := m[key].(map[string]interface{}); ok {
		return v
	}
	return nil
}

func str(m map[string]interface{}, key string) string {
	if m == nil {
		return ""
	}
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func strSlice(m map[string]interface{}, key string) []string {
	if m == nil {
		return nil
	}
	raw, ok := m[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func floatOr(m map[string]interface{}, key string, fallback float64) float64 {
	if m == nil {
		return fallback
	}
	switch v := m[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return fallback
	}
}
