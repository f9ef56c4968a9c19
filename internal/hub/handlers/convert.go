package handlers

import (
	"github.com/openrace/fieldsync/internal/models"
	"github.com/openrace/fieldsync/pkg/api"
)

// Conversions between the wire format and domain models. The wire Record is
// a flat union; these pick out the fields each entity type actually uses.

func referenceFromRecord(rec api.Record, deviceID string) *models.ReferenceEntity {
	return &models.ReferenceEntity{
		UID:          rec.UID,
		Type:         models.EntityType(rec.Type),
		ParentUID:    rec.ParentUID,
		Name:         rec.Name,
		OriginDevice: deviceID,
		CreatedAt:    rec.CreatedAt,
		UpdatedAt:    rec.UpdatedAt,
	}
}

func caseFromRecord(rec api.Record, deviceID string) *models.Case {
	return &models.Case{
		UID:          rec.UID,
		RaceUID:      rec.RaceUID,
		LocationUID:  rec.LocationUID,
		Bib:          rec.Bib,
		Description:  rec.Description,
		Decision:     rec.Decision,
		DecidedBy:    rec.DecidedBy,
		OccurredAt:   rec.OccurredAt,
		OriginDevice: deviceID,
		CreatedAt:    rec.CreatedAt,
		UpdatedAt:    rec.UpdatedAt,
	}
}

func reportFromRecord(rec api.Record, deviceID string) *models.Report {
	return &models.Report{
		UID:          rec.UID,
		CaseUID:      rec.CaseUID,
		Author:       rec.Author,
		Body:         rec.Body,
		ObservedAt:   rec.ObservedAt,
		OriginDevice: deviceID,
		CreatedAt:    rec.CreatedAt,
		UpdatedAt:    rec.UpdatedAt,
	}
}

func recordFromReference(e *models.ReferenceEntity) api.Record {
	return api.Record{
		UID:       e.UID,
		Type:      string(e.Type),
		ParentUID: e.ParentUID,
		Name:      e.Name,
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}
}
