// Package adapters lets the engine run statements on pgx pools, database/sql handles and sqlx handles
// through one DBAdapter interface.
package adapters
