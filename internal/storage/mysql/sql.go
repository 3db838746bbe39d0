package mysql

const insertRunSQL = `
INSERT INTO reconcile_runs
  (id, destination, template_path, output_path, offers_total, offers_written,
   offers_skipped, blocks_created, success, message, started_at, finished_at)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
  output_path    = VALUES(output_path),
  offers_written = VALUES(offers_written),
  offers_skipped = VALUES(offers_skipped),
  blocks_created = VALUES(blocks_created),
  success        = VALUES(success),
  message        = VALUES(message),
  finished_at    = VALUES(finished_at)
`

// Rows are appended as "(?,?,?,?,?)" groups; reason is capped by the column.
const insertMissesPrefix = "INSERT INTO reconcile_misses\n  (run_id, hotel, aggregator, offer_date, reason)\nVALUES "

// -----------------------------------------------------------------------------
// READ QUERIES
// -----------------------------------------------------------------------------

const runColumns = `
  id, destination, template_path, output_path, offers_total, offers_written,
  offers_skipped, blocks_created, success, message, started_at, finished_at
`

// Newest first; served by idx_runs_started.
const listRunsSQL = `SELECT` + runColumns + `FROM reconcile_runs
ORDER BY started_at DESC, id DESC
LIMIT ?`

const getRunSQL = `SELECT` + runColumns + `FROM reconcile_runs WHERE id = ?`

const listMissesSQL = `
SELECT run_id, hotel, aggregator, offer_date, reason
FROM reconcile_misses
WHERE run_id = ?
ORDER BY id
LIMIT ?`
