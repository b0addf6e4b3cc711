// Package pgstore implements the goAccounts user, role and room stores on
// PostgreSQL through database/sql and the pgx stdlib driver. Schema changes
// ship as embedded goose migrations applied by [Migrate].
package pgstore
