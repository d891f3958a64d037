// SPDX-License-Identifier: MIT

// Package sqlgen compiles table definitions and record descriptors into SQL
// for SQLite, PostgreSQL and MySQL.
//
// Statements come back as a PreparedStatement holding the SQL text and its
// bind values in placeholder order. Multi-record inserts are supported;
// updates and deletes address exactly one record through its keys.
package sqlgen
