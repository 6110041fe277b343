package migrations

func init() {
	Register(Migration{
		ID:          "0003",
		Revises:     "0002",
		Description: "Add calibration notes for personal scoring scale",
		Up: []string{
			// One row per score level; examples holds a JSON array of wine
			// names that exemplify the level
			`CREATE TABLE IF NOT EXISTS calibration_notes (
				id TEXT PRIMARY KEY,
				score_value INTEGER NOT NULL,
				description TEXT NOT NULL,
				examples TEXT NOT NULL DEFAULT '[]',
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS ix_calibration_notes_score_value ON calibration_notes(score_value)`,
		},
		Down: []string{
			// Index first, then the table
			`DROP INDEX ix_calibration_notes_score_value`,
			`DROP TABLE calibration_notes`,
		},
	})
}
