package repository

import "database/sql"

// querier is satisfied by both *sql.DB and *sql.Tx, so repository methods
// can run standalone or inside a caller-owned transaction.
type querier interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	Query(query string, args ...interface{}) (*sql.Rows, error)
	QueryRow(query string, args ...interface{}) *sql.Row
}

// pick returns the transaction when one is supplied, the pooled connection
// otherwise.
func pick(db *sql.DB, tx *sql.Tx) querier {
	if tx != nil {
		return tx
	}
	return db
}
