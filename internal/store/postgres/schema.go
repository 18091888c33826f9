// Package postgres provides a PostgreSQL implementation of the store
// contract, backed by lib/pq and pgvector-go.
package postgres

// Schema is the full set of CREATE TABLE / CREATE INDEX statements. Every
// statement is idempotent (IF NOT EXISTS) so Open can run it unconditionally
// on every startup.
const Schema = `
CREATE TABLE IF NOT EXISTS animas (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	description TEXT,
	metadata JSONB,
	user_id TEXT NOT NULL,
	org_id TEXT NOT NULL,
	is_dormant BOOLEAN NOT NULL DEFAULT FALSE,
	last_activity_at TIMESTAMPTZ,
	timezone TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	is_deleted BOOLEAN NOT NULL DEFAULT FALSE
);
CREATE INDEX IF NOT EXISTS idx_animas_user ON animas(user_id) WHERE NOT is_deleted;
CREATE INDEX IF NOT EXISTS idx_animas_org ON animas(org_id) WHERE NOT is_deleted;

CREATE TABLE IF NOT EXISTS events (
	id TEXT PRIMARY KEY,
	anima_id TEXT NOT NULL REFERENCES animas(id),
	type TEXT NOT NULL,
	role TEXT,
	author TEXT,
	content TEXT NOT NULL,
	summary TEXT,
	occurred_at TIMESTAMPTZ NOT NULL,
	session_id TEXT,
	metadata JSONB,
	source_uri TEXT,
	dedupe_key TEXT,
	importance DOUBLE PRECISION,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
	UNIQUE(anima_id, dedupe_key)
);
CREATE INDEX IF NOT EXISTS idx_events_anima_time ON events(anima_id, occurred_at) WHERE NOT is_deleted;
CREATE INDEX IF NOT EXISTS idx_events_session ON events(anima_id, session_id) WHERE NOT is_deleted;

CREATE TABLE IF NOT EXISTS memories (
	id TEXT PRIMARY KEY,
	anima_id TEXT NOT NULL REFERENCES animas(id),
	content TEXT NOT NULL,
	summary TEXT,
	importance DOUBLE PRECISION,
	confidence DOUBLE PRECISION,
	state TEXT NOT NULL DEFAULT 'active',
	recency_score DOUBLE PRECISION,
	decay_score DOUBLE PRECISION,
	time_start TIMESTAMPTZ,
	time_end TIMESTAMPTZ,
	metadata JSONB,
	embedding vector(1536),
	embedding_model TEXT,
	access_count INTEGER NOT NULL DEFAULT 0,
	last_accessed_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	is_deleted BOOLEAN NOT NULL DEFAULT FALSE
);
CREATE INDEX IF NOT EXISTS idx_memories_anima_time ON memories(anima_id, time_start, time_end) WHERE NOT is_deleted;
CREATE INDEX IF NOT EXISTS idx_memories_anima_state ON memories(anima_id, state) WHERE NOT is_deleted;

CREATE TABLE IF NOT EXISTS memory_events (
	id TEXT PRIMARY KEY,
	memory_id TEXT NOT NULL REFERENCES memories(id),
	event_id TEXT NOT NULL REFERENCES events(id),
	link_strength DOUBLE PRECISION,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE(memory_id, event_id)
);
CREATE INDEX IF NOT EXISTS idx_memory_events_memory ON memory_events(memory_id);
CREATE INDEX IF NOT EXISTS idx_memory_events_event ON memory_events(event_id);

CREATE TABLE IF NOT EXISTS knowledge (
	id TEXT PRIMARY KEY,
	anima_id TEXT NOT NULL REFERENCES animas(id),
	type TEXT NOT NULL,
	topic TEXT,
	content TEXT NOT NULL,
	summary TEXT,
	confidence DOUBLE PRECISION NOT NULL DEFAULT 0.5,
	source_type TEXT NOT NULL,
	source_memory_id TEXT,
	embedding vector(1536),
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	is_deleted BOOLEAN NOT NULL DEFAULT FALSE
);
CREATE INDEX IF NOT EXISTS idx_knowledge_anima_type ON knowledge(anima_id, type) WHERE NOT is_deleted;
CREATE INDEX IF NOT EXISTS idx_knowledge_source_memory ON knowledge(source_memory_id) WHERE NOT is_deleted;

CREATE TABLE IF NOT EXISTS knowledge_audit_log (
	id TEXT PRIMARY KEY,
	knowledge_id TEXT NOT NULL,
	action TEXT NOT NULL,
	source_type TEXT NOT NULL,
	source_id TEXT,
	before JSONB,
	after JSONB,
	change_summary TEXT,
	trigger TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_knowledge_audit_knowledge ON knowledge_audit_log(knowledge_id, created_at);

CREATE TABLE IF NOT EXISTS synthesis_configs (
	id TEXT NOT NULL,
	anima_id TEXT PRIMARY KEY REFERENCES animas(id),
	time_weight DOUBLE PRECISION NOT NULL,
	event_weight DOUBLE PRECISION NOT NULL,
	token_weight DOUBLE PRECISION NOT NULL,
	threshold DOUBLE PRECISION NOT NULL,
	llm_temperature DOUBLE PRECISION NOT NULL,
	llm_max_tokens INTEGER NOT NULL,
	scheduler_interval_hours DOUBLE PRECISION NOT NULL,
	last_synthesis_check_at TIMESTAMPTZ,
	cost_tracking JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS io_configs (
	id TEXT NOT NULL,
	anima_id TEXT PRIMARY KEY REFERENCES animas(id),
	read_settings JSONB NOT NULL DEFAULT '{}',
	write_settings JSONB NOT NULL DEFAULT '{}',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS identities (
	id TEXT NOT NULL,
	anima_id TEXT PRIMARY KEY REFERENCES animas(id),
	name TEXT,
	personality_type TEXT,
	communication_style TEXT,
	self_reflection JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS memory_packs (
	id TEXT PRIMARY KEY,
	anima_id TEXT NOT NULL REFERENCES animas(id),
	query TEXT,
	preset TEXT NOT NULL,
	session_memory_count INTEGER NOT NULL DEFAULT 0,
	knowledge_count INTEGER NOT NULL DEFAULT 0,
	long_term_memory_count INTEGER NOT NULL DEFAULT 0,
	token_count INTEGER NOT NULL DEFAULT 0,
	max_tokens INTEGER NOT NULL DEFAULT 0,
	content JSONB NOT NULL,
	compiled_at TIMESTAMPTZ NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_packs_anima_compiled ON memory_packs(anima_id, compiled_at DESC);

CREATE TABLE IF NOT EXISTS dream_sessions (
	id TEXT PRIMARY KEY,
	anima_id TEXT NOT NULL REFERENCES animas(id),
	status TEXT NOT NULL,
	trigger TEXT NOT NULL,
	triggering_user TEXT,
	memories_reviewed INTEGER NOT NULL DEFAULT 0,
	memories_created INTEGER NOT NULL DEFAULT 0,
	memories_modified INTEGER NOT NULL DEFAULT 0,
	memories_archived INTEGER NOT NULL DEFAULT 0,
	memories_deleted INTEGER NOT NULL DEFAULT 0,
	summary TEXT,
	error_message TEXT,
	config_snapshot JSONB,
	started_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	completed_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_dream_sessions_anima ON dream_sessions(anima_id, started_at DESC);
CREATE UNIQUE INDEX IF NOT EXISTS idx_dream_sessions_one_running ON dream_sessions(anima_id) WHERE status = 'RUNNING';

CREATE TABLE IF NOT EXISTS dream_actions (
	id TEXT PRIMARY KEY,
	session_id TEXT NOT NULL REFERENCES dream_sessions(id),
	action_type TEXT NOT NULL,
	phase TEXT NOT NULL,
	source_memory_ids JSONB NOT NULL,
	result_memory_ids JSONB,
	before_state JSONB,
	after_state JSONB,
	reasoning TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_dream_actions_session ON dream_actions(session_id, created_at);

CREATE TABLE IF NOT EXISTS api_keys (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	name TEXT NOT NULL,
	description TEXT,
	key_hash TEXT NOT NULL,
	prefix TEXT NOT NULL UNIQUE,
	last_used_at TIMESTAMPTZ,
	request_count BIGINT NOT NULL DEFAULT 0,
	active BOOLEAN NOT NULL DEFAULT TRUE,
	expires_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	is_deleted BOOLEAN NOT NULL DEFAULT FALSE
);
CREATE INDEX IF NOT EXISTS idx_api_keys_user ON api_keys(user_id) WHERE NOT is_deleted;
`

// RLSPolicies enables row-level security and installs the per-table
// predicate every tenant-scoped table consults against the
// "app.current_user" transaction-local setting a tenancy.Session establishes
// at BEGIN. Applied separately from Schema because it requires superuser or
// table-owner privilege that a shared staging database may not grant —
// Open logs and continues on failure rather than treating it as fatal, the
// same degrade-and-continue posture the base schema takes with pgvector.
const RLSPolicies = `
ALTER TABLE animas ENABLE ROW LEVEL SECURITY;
DROP POLICY IF EXISTS tenant_isolation ON animas;
CREATE POLICY tenant_isolation ON animas
	USING (user_id = current_setting('app.current_user', true));

ALTER TABLE events ENABLE ROW LEVEL SECURITY;
DROP POLICY IF EXISTS tenant_isolation ON events;
CREATE POLICY tenant_isolation ON events
	USING (anima_id IN (SELECT id FROM animas WHERE user_id = current_setting('app.current_user', true)));

ALTER TABLE memories ENABLE ROW LEVEL SECURITY;
DROP POLICY IF EXISTS tenant_isolation ON memories;
CREATE POLICY tenant_isolation ON memories
	USING (anima_id IN (SELECT id FROM animas WHERE user_id = current_setting('app.current_user', true)));

ALTER TABLE knowledge ENABLE ROW LEVEL SECURITY;
DROP POLICY IF EXISTS tenant_isolation ON knowledge;
CREATE POLICY tenant_isolation ON knowledge
	USING (anima_id IN (SELECT id FROM animas WHERE user_id = current_setting('app.current_user', true)));
`
