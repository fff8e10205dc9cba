package entities

// ExportFormatVersion is the version tag written into export documents.
const ExportFormatVersion = "1.0"

// ExportDocument is the transferable backup form of a dataset.
// Version here is the export format, not the sync version.
type ExportDocument struct {
	Transactions []Record       `json:"transactions"`
	Clients      []Record       `json:"clients"`
	Providers    []Record       `json:"providers"`
	Employees    []Record       `json:"employees"`
	Leads        []Record       `json:"leads"`
	Invoices     []Record       `json:"invoices"`
	Meetings     []Record       `json:"meetings"`
	Config       map[string]any `json:"config"`
	ExportedAt   string         `json:"exportedAt"`
	Version      string         `json:"version"`
}
