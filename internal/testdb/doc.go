//go:build integration

// Package testdb provides helpers for tests that need a real PostgreSQL
// database. Tests call ShouldSkipDatabaseTest first and skip when no
// DATABASE_URL is configured.
//
//	func TestSomething(t *testing.T) {
//	    if testdb.ShouldSkipDatabaseTest() {
//	        t.Skip("DATABASE_URL not set - skipping integration test")
//	    }
//	    db := testdb.GetTestDBWithT(t)
//	    testdb.WithTx(t, db, func(t *testing.T, tx *sql.Tx) {
//	        // work inside a transaction that is rolled back afterwards
//	    })
//	}
package testdb
