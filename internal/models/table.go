// Package models provides data model definitions for the sync engine.
package models

// TableName identifies a synchronized entity table.
// The set is closed: only these tables participate in sync.
type TableName string

const (
	TableMembers        TableName = "members"
	TableIncomeRecords  TableName = "income_records"
	TableExpenseRecords TableName = "expense_records"
	TableCashAccounts   TableName = "cash_accounts"
	TableDuesRecords    TableName = "dues_records"
)

// AllTables returns every synchronized table in a stable order.
func AllTables() []TableName {
	return []TableName{
		TableMembers,
		TableIncomeRecords,
		TableExpenseRecords,
		TableCashAccounts,
		TableDuesRecords,
	}
}

// Valid reports whether t is a known synchronized table.
func (t TableName) Valid() bool {
	switch t {
	case TableMembers, TableIncomeRecords, TableExpenseRecords,
		TableCashAccounts, TableDuesRecords:
		return true
	default:
		return false
	}
}
