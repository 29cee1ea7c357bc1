package model

// Record is an immutable snapshot of one measured operation.
// Field order matches the column order of exported result files.
type Record struct {
	// Session-scoped run identifier
	RunID string `parquet:"run_id" json:"run_id"`
	// Seed used for the random workload
	RandomSeed int64 `parquet:"random_seed" json:"random_seed"`
	// Zero-based flush counter, strictly increasing per recorder
	IterationNumber int64 `parquet:"iteration_number" json:"iteration_number"`
	// Operation kind, persisted as its integer code
	OpType OpType `parquet:"op_type" json:"op_type"`
	// Size of the database when the phase started
	InitialDBSize int64 `parquet:"initial_db_size" json:"initial_db_size"`
	TableName     string `parquet:"table_name" json:"table_name"`
	TableSchema   string `parquet:"table_schema" json:"table_schema"`
	// Number of keys read or written by the operation
	NumKeysTouched int64 `parquet:"num_keys_touched" json:"num_keys_touched"`
	// Latency in seconds
	Latency float64 `parquet:"latency" json:"latency"`
	// Disk sizes in bytes, supplied by the caller
	DiskSizeBefore int64 `parquet:"disk_size_before" json:"disk_size_before"`
	DiskSizeAfter  int64 `parquet:"disk_size_after" json:"disk_size_after"`
	// Query text including rendered arguments
	SQLQuery string `parquet:"sql_query" json:"sql_query"`
}
