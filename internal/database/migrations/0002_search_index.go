package migrations

func init() {
	Register(Migration{
		ID:          "0002",
		Revises:     "0001",
		Description: "Add full-text search for tasting notes",
		Up: []string{
			// FTS5 virtual table, kept in sync with tasting_notes via triggers
			`CREATE VIRTUAL TABLE IF NOT EXISTS tasting_notes_fts USING fts5(
				note_id UNINDEXED,
				producer,
				cuvee,
				region,
				country,
				grapes,
				nose_notes,
				palate_notes,
				conclusion,
				tags
			)`,

			`CREATE TRIGGER IF NOT EXISTS tasting_notes_fts_insert
			AFTER INSERT ON tasting_notes
			BEGIN
				INSERT INTO tasting_notes_fts(
					note_id, producer, cuvee, region, country, grapes,
					nose_notes, palate_notes, conclusion, tags
				)
				SELECT
					NEW.id,
					NEW.producer,
					NEW.cuvee,
					NEW.region,
					NEW.country,
					NEW.grapes_json,
					json_extract(NEW.note_json, '$.nose_notes'),
					json_extract(NEW.note_json, '$.palate_notes'),
					json_extract(NEW.note_json, '$.conclusion'),
					NEW.tags_json;
			END`,

			`CREATE TRIGGER IF NOT EXISTS tasting_notes_fts_update
			AFTER UPDATE ON tasting_notes
			BEGIN
				DELETE FROM tasting_notes_fts WHERE note_id = OLD.id;
				INSERT INTO tasting_notes_fts(
					note_id, producer, cuvee, region, country, grapes,
					nose_notes, palate_notes, conclusion, tags
				)
				SELECT
					NEW.id,
					NEW.producer,
					NEW.cuvee,
					NEW.region,
					NEW.country,
					NEW.grapes_json,
					json_extract(NEW.note_json, '$.nose_notes'),
					json_extract(NEW.note_json, '$.palate_notes'),
					json_extract(NEW.note_json, '$.conclusion'),
					NEW.tags_json;
			END`,

			`CREATE TRIGGER IF NOT EXISTS tasting_notes_fts_delete
			AFTER DELETE ON tasting_notes
			BEGIN
				DELETE FROM tasting_notes_fts WHERE note_id = OLD.id;
			END`,

			// Backfill existing rows
			`INSERT INTO tasting_notes_fts(
				note_id, producer, cuvee, region, country, grapes,
				nose_notes, palate_notes, conclusion, tags
			)
			SELECT
				id,
				producer,
				cuvee,
				region,
				country,
				grapes_json,
				json_extract(note_json, '$.nose_notes'),
				json_extract(note_json, '$.palate_notes'),
				json_extract(note_json, '$.conclusion'),
				tags_json
			FROM tasting_notes`,
		},
		Down: []string{
			`DROP TRIGGER IF EXISTS tasting_notes_fts_delete`,
			`DROP TRIGGER IF EXISTS tasting_notes_fts_update`,
			`DROP TRIGGER IF EXISTS tasting_notes_fts_insert`,
			`DROP TABLE IF EXISTS tasting_notes_fts`,
		},
	})
}
