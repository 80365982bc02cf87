package depot

// schema 建表语句，两种方言通用
var schema = []string{
	`CREATE TABLE IF NOT EXISTS rolling_stock (
		serial            TEXT PRIMARY KEY,
		kind              TEXT NOT NULL,
		type_designation  TEXT NOT NULL,
		manufacturer      TEXT NOT NULL,
		construction_date TEXT NOT NULL,
		empty_weight      INTEGER NOT NULL,
		length            INTEGER NOT NULL,
		max_passengers    INTEGER NOT NULL,
		max_goods         INTEGER NOT NULL,
		drive_type        TEXT NOT NULL DEFAULT '',
		tractive_power    INTEGER NOT NULL DEFAULT 0,
		category          TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS trains (
		id         TEXT PRIMARY KEY,
		version    BIGINT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	// serial 唯一，同一车辆在库中也只能属于一列列车
	`CREATE TABLE IF NOT EXISTS composition (
		train_id TEXT NOT NULL REFERENCES trains(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		serial   TEXT NOT NULL UNIQUE REFERENCES rolling_stock(serial),
		PRIMARY KEY (train_id, position)
	)`,
}
