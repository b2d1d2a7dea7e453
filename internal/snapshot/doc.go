// Package snapshot persists the node states of a scenario graph and
// restores source values from them.
//
// Stores are selected by URL:
//
//	file:///var/lib/derive     JSON files in a directory
//	mem://                     in-memory, for tests and dry runs
//	s3://bucket/prefix         S3 objects, credentials from the AWS default chain
//	redis://host:6379/0        redis keys
//
// Snapshots are keyed by scenario name.
package snapshot
