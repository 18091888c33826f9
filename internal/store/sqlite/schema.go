// Package sqlite provides a modernc.org/sqlite-backed implementation of the
// store contract, used for local/offline development in place of
// postgres. It trades pgvector's native cosine-distance operator and
// postgres row-level security for application-level filtering — acceptable
// for a single-process test backend, never intended for multi-tenant
// production use.
package sqlite

const schema = `
PRAGMA foreign_keys = ON;

CREATE TABLE IF NOT EXISTS animas (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	description TEXT,
	metadata TEXT,
	user_id TEXT NOT NULL,
	org_id TEXT NOT NULL,
	is_dormant INTEGER NOT NULL DEFAULT 0,
	last_activity_at DATETIME,
	timezone TEXT,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	is_deleted INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_animas_user ON animas(user_id);

CREATE TABLE IF NOT EXISTS events (
	id TEXT PRIMARY KEY,
	anima_id TEXT NOT NULL,
	type TEXT NOT NULL,
	role TEXT,
	author TEXT,
	content TEXT NOT NULL,
	summary TEXT,
	occurred_at DATETIME NOT NULL,
	session_id TEXT,
	metadata TEXT,
	source_uri TEXT,
	dedupe_key TEXT,
	importance REAL,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	is_deleted INTEGER NOT NULL DEFAULT 0,
	UNIQUE(anima_id, dedupe_key)
);
CREATE INDEX IF NOT EXISTS idx_events_anima_time ON events(anima_id, occurred_at);

CREATE TABLE IF NOT EXISTS memories (
	id TEXT PRIMARY KEY,
	anima_id TEXT NOT NULL,
	content TEXT NOT NULL,
	summary TEXT,
	importance REAL,
	confidence REAL,
	state TEXT NOT NULL DEFAULT 'active',
	recency_score REAL,
	decay_score REAL,
	time_start DATETIME,
	time_end DATETIME,
	metadata TEXT,
	embedding TEXT,
	embedding_model TEXT,
	access_count INTEGER NOT NULL DEFAULT 0,
	last_accessed_at DATETIME,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	is_deleted INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_memories_anima_state ON memories(anima_id, state);

CREATE TABLE IF NOT EXISTS memory_events (
	id TEXT PRIMARY KEY,
	memory_id TEXT NOT NULL,
	event_id TEXT NOT NULL,
	link_strength REAL,
	created_at DATETIME NOT NULL,
	UNIQUE(memory_id, event_id)
);

CREATE TABLE IF NOT EXISTS knowledge (
	id TEXT PRIMARY KEY,
	anima_id TEXT NOT NULL,
	type TEXT NOT NULL,
	topic TEXT,
	content TEXT NOT NULL,
	summary TEXT,
	confidence REAL NOT NULL DEFAULT 0.5,
	source_type TEXT NOT NULL,
	source_memory_id TEXT,
	embedding TEXT,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	is_deleted INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_knowledge_anima_type ON knowledge(anima_id, type);
CREATE INDEX IF NOT EXISTS idx_knowledge_source_memory ON knowledge(source_memory_id);

CREATE TABLE IF NOT EXISTS knowledge_audit_log (
	id TEXT PRIMARY KEY,
	knowledge_id TEXT NOT NULL,
	action TEXT NOT NULL,
	source_type TEXT NOT NULL,
	source_id TEXT,
	before TEXT,
	after TEXT,
	change_summary TEXT,
	trigger TEXT NOT NULL,
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_knowledge_audit_knowledge ON knowledge_audit_log(knowledge_id);

CREATE TABLE IF NOT EXISTS synthesis_configs (
	id TEXT NOT NULL,
	anima_id TEXT PRIMARY KEY,
	time_weight REAL NOT NULL,
	event_weight REAL NOT NULL,
	token_weight REAL NOT NULL,
	threshold REAL NOT NULL,
	llm_temperature REAL NOT NULL,
	llm_max_tokens INTEGER NOT NULL,
	scheduler_interval_hours REAL NOT NULL,
	last_synthesis_check_at DATETIME,
	cost_tracking TEXT,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS io_configs (
	id TEXT NOT NULL,
	anima_id TEXT PRIMARY KEY,
	read_settings TEXT,
	write_settings TEXT,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS identities (
	id TEXT NOT NULL,
	anima_id TEXT PRIMARY KEY,
	name TEXT,
	personality_type TEXT,
	communication_style TEXT,
	self_reflection TEXT,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS memory_packs (
	id TEXT PRIMARY KEY,
	anima_id TEXT NOT NULL,
	query TEXT,
	preset TEXT NOT NULL,
	session_memory_count INTEGER NOT NULL DEFAULT 0,
	knowledge_count INTEGER NOT NULL DEFAULT 0,
	long_term_memory_count INTEGER NOT NULL DEFAULT 0,
	token_count INTEGER NOT NULL DEFAULT 0,
	max_tokens INTEGER NOT NULL DEFAULT 0,
	content TEXT NOT NULL,
	compiled_at DATETIME NOT NULL,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_packs_anima_compiled ON memory_packs(anima_id, compiled_at);

CREATE TABLE IF NOT EXISTS dream_sessions (
	id TEXT PRIMARY KEY,
	anima_id TEXT NOT NULL,
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
	config_snapshot TEXT,
	started_at DATETIME NOT NULL,
	completed_at DATETIME,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_dream_sessions_anima ON dream_sessions(anima_id, started_at);
CREATE UNIQUE INDEX IF NOT EXISTS idx_dream_sessions_one_running ON dream_sessions(anima_id) WHERE status = 'RUNNING';

CREATE TABLE IF NOT EXISTS dream_actions (
	id TEXT PRIMARY KEY,
	session_id TEXT NOT NULL,
	action_type TEXT NOT NULL,
	phase TEXT NOT NULL,
	source_memory_ids TEXT NOT NULL,
	result_memory_ids TEXT,
	before_state TEXT,
	after_state TEXT,
	reasoning TEXT,
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_dream_actions_session ON dream_actions(session_id);

CREATE TABLE IF NOT EXISTS api_keys (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	name TEXT NOT NULL,
	description TEXT,
	key_hash TEXT NOT NULL,
	prefix TEXT NOT NULL UNIQUE,
	last_used_at DATETIME,
	request_count INTEGER NOT NULL DEFAULT 0,
	active INTEGER NOT NULL DEFAULT 1,
	expires_at DATETIME,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	is_deleted INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_api_keys_user ON api_keys(user_id);
`
