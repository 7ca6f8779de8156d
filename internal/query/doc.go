// Package query compiles node-independent statements into parameterised SQL
// for one node's table.
//
// The three nodes store the same columns under different table names
// (dim_title, dim_title_f1, dim_title_f2), so a Statement is compiled per
// node at call time. Every value is bound as a parameter; only the table name
// is interpolated, and it must be a plain identifier.
//
// Every SELECT carries an ORDER BY so repeated reads return rows in a stable
// order regardless of which node answers.
//
// The generated SQL is portable across MySQL and SQLite: REPLACE INTO for
// upserts, CASE for conditional sums.
package query
