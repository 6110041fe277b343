package migrations

func init() {
	Register(Migration{
		ID:          "0001",
		Revises:     "",
		Description: "Initial schema",
		Up: []string{
			// Inbox items - raw captured text waiting for conversion
			`CREATE TABLE IF NOT EXISTS inbox_items (
				id TEXT PRIMARY KEY,
				raw_text TEXT NOT NULL,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL,
				converted INTEGER NOT NULL DEFAULT 0,
				conversion_run_id TEXT,
				tags_json TEXT NOT NULL DEFAULT '[]'
			)`,

			// Tasting notes - the structured wine records
			`CREATE TABLE IF NOT EXISTS tasting_notes (
				id TEXT PRIMARY KEY,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL,
				status TEXT NOT NULL DEFAULT 'draft',
				source TEXT NOT NULL DEFAULT 'manual',
				template_version TEXT NOT NULL DEFAULT '1.0',
				inbox_item_id TEXT,
				producer TEXT NOT NULL DEFAULT '',
				cuvee TEXT NOT NULL DEFAULT '',
				vintage INTEGER,
				country TEXT NOT NULL DEFAULT '',
				region TEXT NOT NULL DEFAULT '',
				grapes_json TEXT NOT NULL DEFAULT '[]',
				color TEXT,
				score_total INTEGER NOT NULL DEFAULT 0,
				quality_band TEXT,
				tags_json TEXT NOT NULL DEFAULT '[]',
				note_json TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS ix_tasting_notes_inbox_item_id ON tasting_notes(inbox_item_id)`,
			`CREATE INDEX IF NOT EXISTS ix_tasting_notes_producer ON tasting_notes(producer)`,
			`CREATE INDEX IF NOT EXISTS ix_tasting_notes_vintage ON tasting_notes(vintage)`,
			`CREATE INDEX IF NOT EXISTS ix_tasting_notes_country ON tasting_notes(country)`,
			`CREATE INDEX IF NOT EXISTS ix_tasting_notes_region ON tasting_notes(region)`,
			`CREATE INDEX IF NOT EXISTS ix_tasting_notes_score_total ON tasting_notes(score_total)`,

			// Conversion runs - audit of every inbox item conversion attempt
			`CREATE TABLE IF NOT EXISTS conversion_runs (
				id TEXT PRIMARY KEY,
				inbox_item_id TEXT NOT NULL,
				created_at TEXT NOT NULL,
				parser TEXT NOT NULL,
				parser_version TEXT NOT NULL,
				input_hash TEXT NOT NULL,
				raw_input TEXT NOT NULL,
				parsed_json TEXT,
				success INTEGER NOT NULL DEFAULT 0,
				error_message TEXT,
				repair_attempts INTEGER NOT NULL DEFAULT 0,
				resulting_note_id TEXT
			)`,
			`CREATE INDEX IF NOT EXISTS ix_conversion_runs_inbox_item_id ON conversion_runs(inbox_item_id)`,

			// Note revisions - snapshot audit trail for edited notes
			`CREATE TABLE IF NOT EXISTS note_revisions (
				id TEXT PRIMARY KEY,
				tasting_note_id TEXT NOT NULL,
				revision_number INTEGER NOT NULL,
				created_at TEXT NOT NULL,
				changed_fields_json TEXT NOT NULL DEFAULT '[]',
				previous_snapshot TEXT NOT NULL,
				new_snapshot TEXT NOT NULL,
				change_reason TEXT NOT NULL DEFAULT ''
			)`,
			`CREATE INDEX IF NOT EXISTS ix_note_revisions_tasting_note_id ON note_revisions(tasting_note_id)`,
		},
		Down: []string{
			`DROP INDEX ix_note_revisions_tasting_note_id`,
			`DROP TABLE note_revisions`,
			`DROP INDEX ix_conversion_runs_inbox_item_id`,
			`DROP TABLE conversion_runs`,
			`DROP INDEX ix_tasting_notes_score_total`,
			`DROP INDEX ix_tasting_notes_region`,
			`DROP INDEX ix_tasting_notes_country`,
			`DROP INDEX ix_tasting_notes_vintage`,
			`DROP INDEX ix_tasting_notes_producer`,
			`DROP INDEX ix_tasting_notes_inbox_item_id`,
			`DROP TABLE tasting_notes`,
			`DROP TABLE inbox_items`,
		},
	})
}
