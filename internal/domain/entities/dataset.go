package entities

import "fmt"

// Collection names recognized in a dataset.
const (
	CollectionTransactions = "transactions"
	CollectionClients      = "clients"
	CollectionProviders    = "providers"
	CollectionEmployees    = "employees"
	CollectionLeads        = "leads"
	CollectionInvoices     = "invoices"
	CollectionMeetings     = "meetings"
)

// CollectionNames lists every dataset collection in wire order.
var CollectionNames = []string{
	CollectionTransactions,
	CollectionClients,
	CollectionProviders,
	CollectionEmployees,
	CollectionLeads,
	CollectionInvoices,
	CollectionMeetings,
}

// Dataset is one user's full set of collections plus configuration,
// versioned as a unit.
type Dataset struct {
	Transactions []Record       `json:"transactions"`
	Clients      []Record       `json:"clients"`
	Providers    []Record       `json:"providers"`
	Employees    []Record       `json:"employees"`
	Leads        []Record       `json:"leads"`
	Invoices     []Record       `json:"invoices"`
	Meetings     []Record       `json:"meetings"`
	Config       map[string]any `json:"config"`

	// Version is the upload stamp in Unix milliseconds. Zero means never uploaded.
	Version int64 `json:"version"`
}

// NewDataset returns an empty, well-shaped dataset.
func NewDataset() *Dataset {
	ds := &Dataset{}
	ds.Normalize()
	return ds
}

// IsValidCollection reports whether name is a known collection.
func IsValidCollection(name string) bool {
	for _, c := range CollectionNames {
		if c == name {
			return true
		}
	}
	return false
}

// Normalize defaults every missing collection to empty and config to an empty map.
func (d *Dataset) Normalize() {
	for _, name := range CollectionNames {
		p := d.slot(name)
		if *p == nil {
			*p = []Record{}
		}
	}
	if d.Config == nil {
		d.Config = map[string]any{}
	}
}

// Collection returns the records of the named collection.
func (d *Dataset) Collection(name string) ([]Record, error) {
	p := d.slot(name)
	if p == nil {
		return nil, fmt.Errorf("unknown collection %q", name)
	}
	return *p, nil
}

// SetCollection replaces the records of the named collection.
func (d *Dataset) SetCollection(name string, records []Record) error {
	p := d.slot(name)
	if p == nil {
		return fmt.Errorf("unknown collection %q", name)
	}
	*p = records
	return nil
}

// Clone returns a copy whose collections and config can be mutated independently.
func (d *Dataset) Clone() *Dataset {
	if d == nil {
		return nil
	}
	out := &Dataset{Version: d.Version}
	for _, name := range CollectionNames {
		src := *d.slot(name)
		if src == nil {
			continue
		}
		dst := make([]Record, len(src))
		for i, r := range src {
			dst[i] = r.Clone()
		}
		*out.slot(name) = dst
	}
	if d.Config != nil {
		out.Config = make(map[string]any, len(d.Config))
		for k, v := range d.Config {
			out.Config[k] = v
		}
	}
	return out
}

// Len returns the total number of records across all collections.
func (d *Dataset) Len() int {
	n := 0
	for _, name := range CollectionNames {
		n += len(*d.slot(name))
	}
	return n
}

// DuplicateIDs returns, per collection, the ids that occur more than once.
func (d *Dataset) DuplicateIDs() map[string][]string {
	dups := make(map[string][]string)
	for _, name := range CollectionNames {
		seen := make(map[string]int)
		for _, r := range *d.slot(name) {
			id := r.ID()
			if id == "" {
				continue
			}
			seen[id]++
			if seen[id] == 2 {
				dups[name] = append(dups[name], id)
			}
		}
	}
	return dups
}

func (d *Dataset) slot(name string) *[]Record {
	switch name {
	case CollectionTransactions:
		return &d.Transactions
	case CollectionClients:
		return &d.Clients
	case CollectionProviders:
		return &d.Providers
	case CollectionEmployees:
		return &d.Employees
	case CollectionLeads:
		return &d.Leads
	case CollectionInvoices:
		return &d.Invoices
	case CollectionMeetings:
		return &d.Meetings
	default:
		return nil
	}
}
