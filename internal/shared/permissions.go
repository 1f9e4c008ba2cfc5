package shared

// Administrative permissions.
const (
	PermAdminManageUsers       = "admin.manage_users"
	PermAdminManagePermissions = "admin.manage_permissions"
	PermAdminViewAuditLogs     = "admin.view_audit_logs"
	PermAdminManageSuppliers   = "admin.manage_suppliers"
)

// Inventory permissions.
const (
	PermInventoryView         = "inventory.view"
	PermInventoryReceive      = "inventory.receive"
	PermInventoryAdjust       = "inventory.adjust"
	PermInventoryIssue        = "inventory.issue"
	PermInventoryRequestIssue = "inventory.request_issue"
	PermInventoryApproveIssue = "inventory.approve_issue"
)

// Job card permissions.
const (
	PermJobCardView   = "jobcard.view"
	PermJobCardCreate = "jobcard.create"
	PermJobCardEdit   = "jobcard.edit"
	PermJobCardClose  = "jobcard.close"
)

// Report permissions.
const (
	PermReportsViewStock    = "reports.view_stock"
	PermReportsViewMovement = "reports.view_movement"
	PermReportsViewJobCards = "reports.view_jobcards"
)

// PermissionSeed describes a catalogue entry installed by the seed script.
type PermissionSeed struct {
	Key         string
	Description string
	Module      string
	Category    string
}

// Catalog returns the built-in permission catalogue in module order.
func Catalog() []PermissionSeed {
	return []PermissionSeed{
		{PermAdminManageUsers, "Create, activate and deactivate users", "admin", "administration"},
		{PermAdminManagePermissions, "Manage the permission catalogue and user grants", "admin", "administration"},
		{PermAdminViewAuditLogs, "View and export the audit log", "admin", "administration"},
		{PermAdminManageSuppliers, "Create and edit suppliers", "admin", "procurement"},
		{PermInventoryView, "View stock levels and batches", "inventory", "stock"},
		{PermInventoryReceive, "Receive stock into stores", "inventory", "stock"},
		{PermInventoryAdjust, "Adjust stock quantities", "inventory", "stock"},
		{PermInventoryIssue, "Issue parts to job cards", "inventory", "issue"},
		{PermInventoryRequestIssue, "Request a parts issue", "inventory", "issue"},
		{PermInventoryApproveIssue, "Approve parts issue requests", "inventory", "issue"},
		{PermJobCardView, "View job cards", "jobcard", "maintenance"},
		{PermJobCardCreate, "Open job cards", "jobcard", "maintenance"},
		{PermJobCardEdit, "Edit open job cards", "jobcard", "maintenance"},
		{PermJobCardClose, "Close and sign off job cards", "jobcard", "maintenance"},
		{PermReportsViewStock, "View stock reports", "reports", "reporting"},
		{PermReportsViewMovement, "View stock movement reports", "reports", "reporting"},
		{PermReportsViewJobCards, "View job card reports", "reports", "reporting"},
	}
}
