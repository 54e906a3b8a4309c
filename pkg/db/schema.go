// Package db provides SQLite persistence for the organization ledger.
package db

// Schema defines the SQL statements to create database tables.
// Monetary columns hold integer minor units (cents); quantities and unit
// prices are decimal strings evaluated only by the billing engine.
const Schema = `
-- Accounts table
-- One row per bank account or cash box; balance is mutated only by the account store
CREATE TABLE IF NOT EXISTS accounts (
    id TEXT PRIMARY KEY,
    organization_id TEXT NOT NULL,
    name TEXT NOT NULL,
    type TEXT NOT NULL CHECK (type IN ('BANK', 'CASH_BOX')),
    currency TEXT NOT NULL,
    opening_balance INTEGER NOT NULL DEFAULT 0 CHECK (opening_balance >= 0),
    balance INTEGER NOT NULL DEFAULT 0 CHECK (balance >= 0),
    is_active INTEGER NOT NULL DEFAULT 1,
    is_default INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_accounts_org
    ON accounts(organization_id);

CREATE UNIQUE INDEX IF NOT EXISTS idx_accounts_org_default
    ON accounts(organization_id) WHERE is_default = 1;

-- Expenses table
-- PENDING rows are obligations; paid_amount is what has left source_account_id
CREATE TABLE IF NOT EXISTS expenses (
    id TEXT PRIMARY KEY,
    organization_id TEXT NOT NULL,
    number TEXT NOT NULL,
    project_id TEXT,
    category TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    expense_date TEXT NOT NULL,             -- YYYY-MM-DD
    amount INTEGER NOT NULL CHECK (amount > 0),
    paid_amount INTEGER NOT NULL DEFAULT 0 CHECK (paid_amount >= 0 AND paid_amount <= amount),
    status TEXT NOT NULL CHECK (status IN ('PENDING', 'COMPLETED', 'CANCELLED')),
    source_account_id TEXT REFERENCES accounts(id),
    source_type TEXT NOT NULL CHECK (source_type IN ('MANUAL', 'PAYROLL', 'EXPENSE_RUN')),
    source_id TEXT,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_expenses_org_status
    ON expenses(organization_id, status);

CREATE INDEX IF NOT EXISTS idx_expenses_account
    ON expenses(source_account_id, status);

-- Incoming payments table
CREATE TABLE IF NOT EXISTS payments (
    id TEXT PRIMARY KEY,
    organization_id TEXT NOT NULL,
    number TEXT NOT NULL,
    project_id TEXT,
    client_name TEXT NOT NULL DEFAULT '',
    description TEXT NOT NULL DEFAULT '',
    payment_date TEXT NOT NULL,
    amount INTEGER NOT NULL CHECK (amount > 0),
    status TEXT NOT NULL CHECK (status IN ('PENDING', 'COMPLETED', 'CANCELLED')),
    account_id TEXT NOT NULL REFERENCES accounts(id),
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_payments_account
    ON payments(account_id, status);

-- Subcontract payments table (outgoing)
CREATE TABLE IF NOT EXISTS subcontract_payments (
    id TEXT PRIMARY KEY,
    organization_id TEXT NOT NULL,
    number TEXT NOT NULL,
    subcontract_id TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    payment_date TEXT NOT NULL,
    amount INTEGER NOT NULL CHECK (amount > 0),
    status TEXT NOT NULL CHECK (status IN ('PENDING', 'COMPLETED', 'CANCELLED')),
    account_id TEXT NOT NULL REFERENCES accounts(id),
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_subcontract_payments_account
    ON subcontract_payments(account_id, status);

-- Transfers table
CREATE TABLE IF NOT EXISTS transfers (
    id TEXT PRIMARY KEY,
    organization_id TEXT NOT NULL,
    number TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    transfer_date TEXT NOT NULL,
    amount INTEGER NOT NULL CHECK (amount > 0),
    status TEXT NOT NULL CHECK (status IN ('PENDING', 'COMPLETED', 'CANCELLED')),
    from_account_id TEXT NOT NULL REFERENCES accounts(id),
    to_account_id TEXT NOT NULL REFERENCES accounts(id),
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    CHECK (from_account_id <> to_account_id)
);

CREATE INDEX IF NOT EXISTS idx_transfers_from
    ON transfers(from_account_id, status);

CREATE INDEX IF NOT EXISTS idx_transfers_to
    ON transfers(to_account_id, status);

-- Run population sources (owned by the HR and finance modules, read-only here)
CREATE TABLE IF NOT EXISTS employees (
    id TEXT PRIMARY KEY,
    organization_id TEXT NOT NULL,
    name TEXT NOT NULL,
    basic_salary INTEGER NOT NULL DEFAULT 0,
    allowances INTEGER NOT NULL DEFAULT 0,
    deductions INTEGER NOT NULL DEFAULT 0,
    is_active INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS recurring_expenses (
    id TEXT PRIMARY KEY,
    organization_id TEXT NOT NULL,
    description TEXT NOT NULL,
    category TEXT NOT NULL,
    amount INTEGER NOT NULL CHECK (amount > 0),
    is_active INTEGER NOT NULL DEFAULT 1,
    is_one_time INTEGER NOT NULL DEFAULT 0,
    start_date TEXT NOT NULL,               -- YYYY-MM-DD
    end_date TEXT                           -- YYYY-MM-DD, NULL = open ended
);

-- Payroll runs
CREATE TABLE IF NOT EXISTS payroll_runs (
    id TEXT PRIMARY KEY,
    organization_id TEXT NOT NULL,
    number TEXT NOT NULL,
    month TEXT NOT NULL,                    -- YYYY-MM
    status TEXT NOT NULL CHECK (status IN ('DRAFT', 'POSTED', 'CANCELLED')),
    total_basic INTEGER NOT NULL DEFAULT 0,
    total_allowances INTEGER NOT NULL DEFAULT 0,
    total_deductions INTEGER NOT NULL DEFAULT 0,
    total_net INTEGER NOT NULL DEFAULT 0,
    item_count INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS payroll_run_items (
    id TEXT PRIMARY KEY,
    run_id TEXT NOT NULL REFERENCES payroll_runs(id) ON DELETE CASCADE,
    employee_id TEXT NOT NULL,
    employee_name TEXT NOT NULL,
    basic_salary INTEGER NOT NULL,
    allowances INTEGER NOT NULL,
    deductions INTEGER NOT NULL,
    net_salary INTEGER NOT NULL,
    expense_id TEXT REFERENCES expenses(id)
);

CREATE INDEX IF NOT EXISTS idx_payroll_run_items_run
    ON payroll_run_items(run_id);

-- Recurring-expense runs
CREATE TABLE IF NOT EXISTS expense_runs (
    id TEXT PRIMARY KEY,
    organization_id TEXT NOT NULL,
    number TEXT NOT NULL,
    month TEXT NOT NULL,                    -- YYYY-MM
    status TEXT NOT NULL CHECK (status IN ('DRAFT', 'APPROVED', 'CANCELLED')),
    total_amount INTEGER NOT NULL DEFAULT 0,
    item_count INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS expense_run_items (
    id TEXT PRIMARY KEY,
    run_id TEXT NOT NULL REFERENCES expense_runs(id) ON DELETE CASCADE,
    recurring_expense_id TEXT NOT NULL,
    description TEXT NOT NULL,
    category TEXT NOT NULL,
    amount INTEGER NOT NULL,
    expense_id TEXT REFERENCES expenses(id)
);

CREATE INDEX IF NOT EXISTS idx_expense_run_items_run
    ON expense_run_items(run_id);

-- Invoices and credit notes
CREATE TABLE IF NOT EXISTS invoices (
    id TEXT PRIMARY KEY,
    organization_id TEXT NOT NULL,
    number TEXT NOT NULL,
    kind TEXT NOT NULL CHECK (kind IN ('INVOICE', 'CREDIT_NOTE')),
    status TEXT NOT NULL CHECK (status IN ('DRAFT', 'ISSUED', 'CANCELLED')),
    client_name TEXT NOT NULL,
    quotation_id TEXT,
    original_invoice_id TEXT REFERENCES invoices(id),
    discount_percent TEXT NOT NULL,
    vat_percent TEXT NOT NULL,
    subtotal INTEGER NOT NULL,
    discount_amount INTEGER NOT NULL,
    vat_amount INTEGER NOT NULL,
    total_amount INTEGER NOT NULL,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS invoice_items (
    id TEXT PRIMARY KEY,
    invoice_id TEXT NOT NULL REFERENCES invoices(id) ON DELETE CASCADE,
    position INTEGER NOT NULL,
    description TEXT NOT NULL,
    quantity TEXT NOT NULL,
    unit_price TEXT NOT NULL,
    line_total INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_invoice_items_invoice
    ON invoice_items(invoice_id, position);

-- Quotations
CREATE TABLE IF NOT EXISTS quotations (
    id TEXT PRIMARY KEY,
    organization_id TEXT NOT NULL,
    number TEXT NOT NULL,
    status TEXT NOT NULL CHECK (status IN ('DRAFT', 'CONVERTED', 'CANCELLED')),
    client_name TEXT NOT NULL,
    discount_percent TEXT NOT NULL,
    vat_percent TEXT NOT NULL,
    subtotal INTEGER NOT NULL,
    discount_amount INTEGER NOT NULL,
    vat_amount INTEGER NOT NULL,
    total_amount INTEGER NOT NULL,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS quotation_items (
    id TEXT PRIMARY KEY,
    quotation_id TEXT NOT NULL REFERENCES quotations(id) ON DELETE CASCADE,
    position INTEGER NOT NULL,
    description TEXT NOT NULL,
    quantity TEXT NOT NULL,
    unit_price TEXT NOT NULL,
    line_total INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_quotation_items_quotation
    ON quotation_items(quotation_id, position);
`

// InitializeSchema initializes the database schema.
// It creates all tables if they don't exist.
func InitializeSchema(conn *Connection) error {
	if _, err := conn.db.Exec(Schema); err != nil {
		return err
	}
	return nil
}
