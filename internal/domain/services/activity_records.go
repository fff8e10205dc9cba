package services

import (
	"context"
	"fmt"

	"github.com/ersonp/bookspace/internal/domain/entities"
)

// RecordAction is a mutation of a dataset record.
type RecordAction string

// Record actions.
const (
	ActionCreate       RecordAction = "create"
	ActionUpdate       RecordAction = "update"
	ActionDelete       RecordAction = "delete"
	ActionStatusChange RecordAction = "status_change"
)

// recordKind describes how records of one collection appear in the log.
type recordKind struct {
	entityType   string
	nameFields   []string
	fallbackName string
	details      func(rec entities.Record) map[string]any
	statusChange bool
}

var recordKinds = map[string]recordKind{
	entities.CollectionTransactions: {
		entityType:   "transaction",
		nameFields:   []string{"concepto"},
		fallbackName: "Transaction",
		details: func(r entities.Record) map[string]any {
			return map[string]any{"tipo": r["tipo"], "monto": r["monto"], "categoria": r["cat"]}
		},
	},
	entities.CollectionClients:   {entityType: "client", nameFields: []string{"nombre"}, fallbackName: "Client"},
	entities.CollectionProviders: {entityType: "provider", nameFields: []string{"nombre"}, fallbackName: "Provider"},
	entities.CollectionEmployees: {entityType: "employee", nameFields: []string{"nombre"}, fallbackName: "Employee"},
	entities.CollectionLeads: {
		entityType:   "lead",
		nameFields:   []string{"nombre", "venue"},
		fallbackName: "Lead",
		details: func(r entities.Record) map[string]any {
			return map[string]any{"estado": r["estado"], "fuente": r["fuente"]}
		},
		statusChange: true,
	},
	entities.CollectionInvoices: {
		entityType: "invoice",
		nameFields: []string{"numero"},
		details: func(r entities.Record) map[string]any {
			return map[string]any{"estado": r["estado"], "total": r["total"]}
		},
		statusChange: true,
	},
	entities.CollectionMeetings: {
		entityType:   "meeting",
		nameFields:   []string{"titulo"},
		fallbackName: "Meeting",
		details: func(r entities.Record) map[string]any {
			return map[string]any{"fecha": r["fecha"], "hora": r["hora"]}
		},
	},
}

// RecordActivityType maps a collection and action to its activity type.
// Unknown actions count as updates; status changes exist only for leads
// and invoices.
func RecordActivityType(collection string, action RecordAction) (entities.ActivityType, error) {
	kind, ok := recordKinds[collection]
	if !ok {
		return "", &entities.ValidationError{Field: "collection", Message: fmt.Sprintf("unknown collection %q", collection)}
	}
	switch action {
	case ActionCreate, ActionUpdate, ActionDelete:
	case ActionStatusChange:
		if !kind.statusChange {
			action = ActionUpdate
		}
	default:
		action = ActionUpdate
	}
	return entities.ActivityType(kind.entityType + "_" + string(action)), nil
}

// LogRecord records a create, update or delete of a dataset record.
func (s *ActivityService) LogRecord(ctx context.Context, collection string, action RecordAction, rec entities.Record) (entities.ActivityEntry, error) {
	return s.logRecord(ctx, collection, action, rec, nil)
}

// LogStatusChange records a lead or invoice status transition.
func (s *ActivityService) LogStatusChange(ctx context.Context, collection string, rec entities.Record, oldStatus string) (entities.ActivityEntry, error) {
	return s.logRecord(ctx, collection, ActionStatusChange, rec, oldStatus)
}

func (s *ActivityService) logRecord(ctx context.Context, collection string, action RecordAction, rec entities.Record, oldStatus any) (entities.ActivityEntry, error) {
	typ, err := RecordActivityType(collection, action)
	if err != nil {
		return entities.ActivityEntry{}, err
	}
	kind := recordKinds[collection]

	data := entities.ActivityData{
		EntityType: kind.entityType,
		EntityID:   rec.ID(),
		EntityName: recordName(kind, rec),
	}
	if kind.details != nil {
		data.Details = kind.details(rec)
		if kind.statusChange {
			data.Details["oldStatus"] = oldStatus
		}
	}
	return s.Log(ctx, typ, data), nil
}

// LogConfig records a settings change.
func (s *ActivityService) LogConfig(ctx context.Context, config map[string]any) entities.ActivityEntry {
	name := "Settings"
	if v, ok := config["empresa"].(string); ok && v != "" {
		name = v
	}
	return s.Log(ctx, entities.ActivityConfigUpdate, entities.ActivityData{EntityType: "config", EntityName: name})
}

// LogSystem records a session or data-transfer event. subject names the
// user for login and logout and is ignored otherwise.
func (s *ActivityService) LogSystem(ctx context.Context, typ entities.ActivityType, subject string) (entities.ActivityEntry, error) {
	var data entities.ActivityData
	switch typ {
	case entities.ActivityUserLogin:
		data = entities.ActivityData{EntityType: "user", EntityName: subject, Description: "Signed in: " + subject}
	case entities.ActivityUserLogout:
		data = entities.ActivityData{EntityType: "user", EntityName: subject, Description: "Signed out: " + subject}
	case entities.ActivityDataSync:
		data.Description = "Data synchronized with the cloud"
	case entities.ActivityDataExport:
		data.Description = "Data exported to a JSON file"
	case entities.ActivityDataImport:
		data.Description = "Data imported from a JSON file"
	default:
		return entities.ActivityEntry{}, &entities.ValidationError{Field: "type", Message: fmt.Sprintf("%q is not a system event", typ)}
	}
	return s.Log(ctx, typ, data), nil
}

func recordName(kind recordKind, rec entities.Record) string {
	for _, f := range kind.nameFields {
		if v, ok := rec[f].(string); ok && v != "" {
			return v
		}
	}
	if kind.fallbackName != "" {
		return kind.fallbackName
	}
	id := rec.ID()
	if len(id) > 8 {
		id = id[:8]
	}
	return "Invoice " + id
}
