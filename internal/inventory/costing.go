package inventory

import "github.com/meridian-erp/meridian-erp/internal/accounting/journals"

// The builders below translate costing results into balanced journal line
// pairs for the posting engine. Costing and posting run inside the same
// outer transaction as the triggering document.

// ReceiptLines debits the inventory asset and credits the offset account
// (accounts payable for bills) for the value received.
func ReceiptLines(m StockMovement, amountDesc string, inventoryAccount, offsetAccount string) []journals.PostingLineInput {
	amount := m.Qty.Mul(m.UnitCost).Round(2)
	return []journals.PostingLineInput{
		{AccountCode: inventoryAccount, Debit: amount, Description: amountDesc},
		{AccountCode: offsetAccount, Credit: amount, Description: amountDesc},
	}
}

// IssueLines recognises cost of goods sold against the inventory asset.
func IssueLines(issue Issue, desc string, cogsAccount, inventoryAccount string) []journals.PostingLineInput {
	return []journals.PostingLineInput{
		{AccountCode: cogsAccount, Debit: issue.COGSAmount, Description: desc},
		{AccountCode: inventoryAccount, Credit: issue.COGSAmount, Description: desc},
	}
}

// AdjustmentLines books a stock correction against the adjustment account.
// Gains debit inventory; losses credit it.
func AdjustmentLines(adj Adjustment, desc string, inventoryAccount, adjustmentAccount string) []journals.PostingLineInput {
	if adj.Movement.Direction == DirectionIn {
		return []journals.PostingLineInput{
			{AccountCode: inventoryAccount, Debit: adj.Amount, Description: desc},
			{AccountCode: adjustmentAccount, Credit: adj.Amount, Description: desc},
		}
	}
	return []journals.PostingLineInput{
		{AccountCode: adjustmentAccount, Debit: adj.Amount, Description: desc},
		{AccountCode: inventoryAccount, Credit: adj.Amount, Description: desc},
	}
}
