// Package repository implements sqlite persistence for the voucher domain.
// Every write method accepts an optional *sql.Tx so the commit procedure can
// run all inserts inside one transaction; a nil tx falls back to the pool.
package repository

import "database/sql"

// queryer is satisfied by both *sql.DB and *sql.Tx
type queryer interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

func pick(db *sql.DB, tx *sql.Tx) queryer {
	if tx != nil {
		return tx
	}
	return db
}
