// Package repo holds helpers shared by the GORM repositories.
package repo

import "gorm.io/gorm"

// Session picks the handle a repository clone should run on: the transaction
// when one is open, the base connection otherwise. Keeps every repository's
// WithTx nil-safe without repeating the check.
func Session(base, tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return base
}
