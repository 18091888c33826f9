package types

import "time"

// Anima is the logical owner of all memory state: every Event, Memory,
// Knowledge item, Identity, and config row is ultimately scoped to one
// Anima, which in turn belongs to exactly one user and one organization.
type Anima struct {
	ID          string                 `json:"id"`
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`

	UserID string `json:"user_id"`
	OrgID  string `json:"org_id"`

	IsDormant      bool      `json:"is_dormant"`
	LastActivityAt time.Time `json:"last_activity_at"`

	// Timezone is an IANA zone name used only by the identity prose
	// formatter's flavor text; it never changes any scoring computation,
	// which is always UTC per §4.1.
	Timezone string `json:"timezone,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	IsDeleted bool       `json:"is_deleted"`
}

// CascadeCounts reports how many rows were touched per table by a cascade
// soft-delete or restore of an Anima.
type CascadeCounts struct {
	IOConfigs        int `json:"io_configs"`
	SynthesisConfigs int `json:"synthesis_configs"`
	Identities       int `json:"identities"`
	Knowledge        int `json:"knowledge"`
	Memories         int `json:"memories"`
	Events           int `json:"events"`
	MemoryEventLinks int `json:"memory_event_links"`
	Animas           int `json:"animas"`
}
