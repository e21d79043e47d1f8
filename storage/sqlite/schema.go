package sqlite

import (
	"fmt"
)

const (
	sourcesTable    = "sources"
	rawContentTable = "raw_content"
	quotesTable     = "quotes"
	nodesTable      = "nodes"
	edgesTable      = "edges"
	linksTable      = "quote_node_links"
	ideasTable      = "ideas"
)

const schema = `
CREATE TABLE IF NOT EXISTS sources (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	owner_id    TEXT NOT NULL,
	type        TEXT NOT NULL,
	url         TEXT NOT NULL DEFAULT '',
	metadata    TEXT,
	created_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS raw_content (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	owner_id      TEXT NOT NULL,
	source_id     INTEGER NOT NULL REFERENCES sources(id),
	text_content  TEXT NOT NULL,
	checksum      INTEGER NOT NULL,
	created_at    TEXT NOT NULL,
	processed_at  TEXT
);

CREATE TABLE IF NOT EXISTS quotes (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	owner_id        TEXT NOT NULL,
	raw_content_id  INTEGER NOT NULL REFERENCES raw_content(id),
	text            TEXT NOT NULL,
	start_index     INTEGER,
	end_index       INTEGER,
	sentiment       TEXT NOT NULL DEFAULT '',
	emotions        TEXT,
	is_suggestion   INTEGER NOT NULL DEFAULT 1,
	reviewed_by     TEXT NOT NULL DEFAULT '',
	reviewed_at     TEXT,
	created_at      TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS nodes (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	owner_id        TEXT NOT NULL,
	raw_content_id  INTEGER REFERENCES raw_content(id),
	type            TEXT NOT NULL,
	label           TEXT NOT NULL,
	description     TEXT NOT NULL DEFAULT '',
	embedding       BLOB,
	is_suggestion   INTEGER NOT NULL DEFAULT 1,
	reviewed_by     TEXT NOT NULL DEFAULT '',
	reviewed_at     TEXT,
	created_at      TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS edges (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	owner_id        TEXT NOT NULL,
	raw_content_id  INTEGER REFERENCES raw_content(id),
	from_node_id    INTEGER NOT NULL REFERENCES nodes(id),
	to_node_id      INTEGER NOT NULL REFERENCES nodes(id),
	type            TEXT NOT NULL,
	description     TEXT NOT NULL DEFAULT '',
	is_suggestion   INTEGER NOT NULL DEFAULT 1,
	reviewed_by     TEXT NOT NULL DEFAULT '',
	reviewed_at     TEXT,
	created_at      TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS quote_node_links (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	owner_id        TEXT NOT NULL,
	raw_content_id  INTEGER REFERENCES raw_content(id),
	quote_id        INTEGER NOT NULL REFERENCES quotes(id),
	node_id         INTEGER NOT NULL REFERENCES nodes(id),
	type            TEXT NOT NULL,
	is_suggestion   INTEGER NOT NULL DEFAULT 1,
	reviewed_by     TEXT NOT NULL DEFAULT '',
	reviewed_at     TEXT,
	created_at      TEXT NOT NULL,
	UNIQUE(quote_id, node_id)
);

CREATE TABLE IF NOT EXISTS ideas (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	owner_id    TEXT NOT NULL,
	node_id     INTEGER REFERENCES nodes(id),
	quote_id    INTEGER REFERENCES quotes(id),
	text        TEXT NOT NULL,
	type        TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL,
	metadata    TEXT,
	created_at  TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sources_owner ON sources(owner_id);
CREATE INDEX IF NOT EXISTS idx_raw_content_owner ON raw_content(owner_id, source_id);
CREATE INDEX IF NOT EXISTS idx_quotes_owner ON quotes(owner_id, raw_content_id);
CREATE INDEX IF NOT EXISTS idx_nodes_owner ON nodes(owner_id, raw_content_id);
CREATE INDEX IF NOT EXISTS idx_nodes_type ON nodes(owner_id, type);
CREATE INDEX IF NOT EXISTS idx_edges_owner ON edges(owner_id, raw_content_id);
CREATE INDEX IF NOT EXISTS idx_links_owner ON quote_node_links(owner_id, raw_content_id);
CREATE INDEX IF NOT EXISTS idx_ideas_owner ON ideas(owner_id, status);
`

func (s *Store) migrate() error {
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
