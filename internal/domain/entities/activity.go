package entities

import "time"

// ActivityType identifies the kind of event recorded in the activity log.
type ActivityType string

// Activity types.
const (
	ActivityTransactionCreate ActivityType = "transaction_create"
	ActivityTransactionUpdate ActivityType = "transaction_update"
	ActivityTransactionDelete ActivityType = "transaction_delete"

	ActivityClientCreate ActivityType = "client_create"
	ActivityClientUpdate ActivityType = "client_update"
	ActivityClientDelete ActivityType = "client_delete"

	ActivityProviderCreate ActivityType = "provider_create"
	ActivityProviderUpdate ActivityType = "provider_update"
	ActivityProviderDelete ActivityType = "provider_delete"

	ActivityEmployeeCreate ActivityType = "employee_create"
	ActivityEmployeeUpdate ActivityType = "employee_update"
	ActivityEmployeeDelete ActivityType = "employee_delete"

	ActivityLeadCreate       ActivityType = "lead_create"
	ActivityLeadUpdate       ActivityType = "lead_update"
	ActivityLeadDelete       ActivityType = "lead_delete"
	ActivityLeadStatusChange ActivityType = "lead_status_change"

	ActivityInvoiceCreate       ActivityType = "invoice_create"
	ActivityInvoiceUpdate       ActivityType = "invoice_update"
	ActivityInvoiceDelete       ActivityType = "invoice_delete"
	ActivityInvoiceStatusChange ActivityType = "invoice_status_change"

	ActivityMeetingCreate ActivityType = "meeting_create"
	ActivityMeetingUpdate ActivityType = "meeting_update"
	ActivityMeetingDelete ActivityType = "meeting_delete"

	ActivityConfigUpdate ActivityType = "config_update"

	ActivityUserLogin  ActivityType = "user_login"
	ActivityUserLogout ActivityType = "user_logout"
	ActivityDataSync   ActivityType = "data_sync"
	ActivityDataExport ActivityType = "data_export"
	ActivityDataImport ActivityType = "data_import"
)

// DefaultActivityLabel is used for types without a label.
const DefaultActivityLabel = "Activity recorded"

var activityLabels = map[ActivityType]string{
	ActivityTransactionCreate: "Transaction created",
	ActivityTransactionUpdate: "Transaction updated",
	ActivityTransactionDelete: "Transaction deleted",

	ActivityClientCreate: "Client added",
	ActivityClientUpdate: "Client updated",
	ActivityClientDelete: "Client deleted",

	ActivityProviderCreate: "Provider added",
	ActivityProviderUpdate: "Provider updated",
	ActivityProviderDelete: "Provider deleted",

	ActivityEmployeeCreate: "Employee added",
	ActivityEmployeeUpdate: "Employee updated",
	ActivityEmployeeDelete: "Employee deleted",

	ActivityLeadCreate:       "Lead created",
	ActivityLeadUpdate:       "Lead updated",
	ActivityLeadDelete:       "Lead deleted",
	ActivityLeadStatusChange: "Lead status changed",

	ActivityInvoiceCreate:       "Invoice created",
	ActivityInvoiceUpdate:       "Invoice updated",
	ActivityInvoiceDelete:       "Invoice deleted",
	ActivityInvoiceStatusChange: "Invoice status changed",

	ActivityMeetingCreate: "Meeting scheduled",
	ActivityMeetingUpdate: "Meeting updated",
	ActivityMeetingDelete: "Meeting deleted",

	ActivityConfigUpdate: "Settings updated",

	ActivityUserLogin:  "Signed in",
	ActivityUserLogout: "Signed out",
	ActivityDataSync:   "Data synchronized",
	ActivityDataExport: "Data exported",
	ActivityDataImport: "Data imported",
}

// Label returns the human-readable description for the type.
func (t ActivityType) Label() string {
	if l, ok := activityLabels[t]; ok {
		return l
	}
	return DefaultActivityLabel
}

// IsValid reports whether t is a known activity type.
func (t ActivityType) IsValid() bool {
	_, ok := activityLabels[t]
	return ok
}

// ActivityTypes returns every known activity type.
func ActivityTypes() []ActivityType {
	out := make([]ActivityType, 0, len(activityLabels))
	for _, types := range activityCategories {
		out = append(out, types...)
	}
	return out
}

// Activity categories used by the log filters.
const (
	CategoryTransactions = "transactions"
	CategoryClients      = "clients"
	CategoryProviders    = "providers"
	CategoryEmployees    = "employees"
	CategoryLeads        = "leads"
	CategoryInvoices     = "invoices"
	CategoryMeetings     = "meetings"
	CategoryConfig       = "config"
	CategorySystem       = "system"
)

var activityCategories = map[string][]ActivityType{
	CategoryTransactions: {ActivityTransactionCreate, ActivityTransactionUpdate, ActivityTransactionDelete},
	CategoryClients:      {ActivityClientCreate, ActivityClientUpdate, ActivityClientDelete},
	CategoryProviders:    {ActivityProviderCreate, ActivityProviderUpdate, ActivityProviderDelete},
	CategoryEmployees:    {ActivityEmployeeCreate, ActivityEmployeeUpdate, ActivityEmployeeDelete},
	CategoryLeads:        {ActivityLeadCreate, ActivityLeadUpdate, ActivityLeadDelete, ActivityLeadStatusChange},
	CategoryInvoices:     {ActivityInvoiceCreate, ActivityInvoiceUpdate, ActivityInvoiceDelete, ActivityInvoiceStatusChange},
	CategoryMeetings:     {ActivityMeetingCreate, ActivityMeetingUpdate, ActivityMeetingDelete},
	CategorySystem: {
		ActivityUserLogin, ActivityUserLogout, ActivityDataSync,
		ActivityDataExport, ActivityDataImport, ActivityConfigUpdate,
	},
}

// CategoryTypes returns the activity types of a category; nil for unknown categories.
// The config category is the single config_update type, which system also covers.
func CategoryTypes(category string) []ActivityType {
	if category == CategoryConfig {
		return []ActivityType{ActivityConfigUpdate}
	}
	return activityCategories[category]
}

// ActivityEntry is one event in the activity log.
type ActivityEntry struct {
	ID          string         `json:"id"`
	UserID      string         `json:"userId,omitempty"`
	Type        ActivityType   `json:"type"`
	Description string         `json:"description"`
	Details     map[string]any `json:"details"`
	EntityType  string         `json:"entityType,omitempty"`
	EntityID    string         `json:"entityId,omitempty"`
	EntityName  string         `json:"entityName,omitempty"`
	Metadata    map[string]any `json:"metadata"`
	Timestamp   time.Time      `json:"timestamp"`
	CreatedAt   string         `json:"createdAt"`
	IsLocal     bool           `json:"isLocal,omitempty"`
}

// EventTime returns Timestamp, falling back to CreatedAt when the timestamp
// has not been assigned yet.
func (e ActivityEntry) EventTime() time.Time {
	if !e.Timestamp.IsZero() {
		return e.Timestamp
	}
	t, err := time.Parse(time.RFC3339Nano, e.CreatedAt)
	if err != nil {
		return time.Time{}
	}
	return t
}

// ActivityData carries the optional fields of a new activity entry.
type ActivityData struct {
	Description string
	Details     map[string]any
	EntityType  string
	EntityID    string
	EntityName  string
	Metadata    map[string]any
}
