package types

// TransactionWindow is a rolling-window subtotal with the records behind it.
type TransactionWindow struct {
	Total        float64       `json:"total"`
	Transactions []Transaction `json:"transactions"`
}

// DashboardSummary is the aggregated view returned by GET /dashboard.
type DashboardSummary struct {
	TotalBalance       float64           `json:"totalBalance"`
	TotalIncome        float64           `json:"totalIncome"`
	TotalExpense       float64           `json:"totalExpense"`
	ExpenseLast30Days  TransactionWindow `json:"expenseLast30Days"`
	IncomeLast60Days   TransactionWindow `json:"incomeLast60Days"`
	RecentTransactions []Transaction     `json:"recentTransactions"`
}
