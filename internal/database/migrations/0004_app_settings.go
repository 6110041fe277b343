package migrations

func init() {
	Register(Migration{
		ID:          "0004",
		Revises:     "0003",
		Description: "Add app configuration and maintenance log",
		Up: []string{
			// Singleton table - only one row with id=1, enforced in
			// application code (SQLite has no suitable CHECK here)
			`CREATE TABLE IF NOT EXISTS app_configuration (
				id INTEGER PRIMARY KEY,
				license_key TEXT,
				license_validated_at TEXT,
				subscription_tier TEXT NOT NULL DEFAULT 'free',
				tier_expires_at TEXT,
				email TEXT,
				machine_id TEXT,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,

			// Audit table for maintenance tasks (reindex, backup, restore)
			`CREATE TABLE IF NOT EXISTS maintenance_log (
				id TEXT PRIMARY KEY,
				task_name TEXT NOT NULL,
				started_at TEXT NOT NULL,
				completed_at TEXT,
				status TEXT NOT NULL DEFAULT 'pending',
				details_json TEXT NOT NULL DEFAULT '{}',
				error_message TEXT
			)`,
			`CREATE INDEX IF NOT EXISTS ix_maintenance_log_task_name ON maintenance_log(task_name)`,
			`CREATE INDEX IF NOT EXISTS ix_maintenance_log_status ON maintenance_log(status)`,
			`CREATE INDEX IF NOT EXISTS ix_maintenance_log_started_at ON maintenance_log(started_at)`,

			// Default free tier configuration
			`INSERT OR IGNORE INTO app_configuration (id, subscription_tier, created_at, updated_at)
			VALUES (1, 'free', datetime('now'), datetime('now'))`,
		},
		Down: []string{
			`DROP INDEX ix_maintenance_log_started_at`,
			`DROP INDEX ix_maintenance_log_status`,
			`DROP INDEX ix_maintenance_log_task_name`,
			`DROP TABLE maintenance_log`,
			`DROP TABLE app_configuration`,
		},
	})
}
