package models

// EntityType identifies one syncable entity type.
type EntityType string

// Syncable entity types. Competition through entry are reference data:
// created once, copied outward, never deduplicated. Case and report are
// operational data: created concurrently on multiple devices and reconciled
// by the hub's deduplication engine.
const (
	TypeCompetition EntityType = "competition"
	TypeStage       EntityType = "stage"
	TypeRace        EntityType = "race"
	TypeLocation    EntityType = "location"
	TypeAthlete     EntityType = "athlete"
	TypeEntry       EntityType = "entry"
	TypeCase        EntityType = "case"
	TypeReport      EntityType = "report"
)

// SyncOrder lists every entity type in dependency order. A later type may
// reference an earlier type by UID, so uploads must happen in this order for
// the hub to resolve references at commit time.
var SyncOrder = []EntityType{
	TypeCompetition,
	TypeStage,
	TypeRace,
	TypeLocation,
	TypeAthlete,
	TypeEntry,
	TypeCase,
	TypeReport,
}

// parentTypes maps each reference type to the type its ParentUID must point
// to. Competition is the root and has no parent.
var parentTypes = map[EntityType]EntityType{
	TypeStage:    TypeCompetition,
	TypeRace:     TypeStage,
	TypeLocation: TypeCompetition,
	TypeAthlete:  TypeCompetition,
	TypeEntry:    TypeRace,
}

// Rank returns the position of the type in SyncOrder. Unknown types rank
// after every known type.
func (t EntityType) Rank() int {
	for i, st := range SyncOrder {
		if st == t {
			return i
		}
	}
	return len(SyncOrder)
}

// Valid reports whether t is a known syncable entity type.
func (t EntityType) Valid() bool {
	return t.Rank() < len(SyncOrder)
}

// Operational reports whether t is operational data subject to deduplication.
func (t EntityType) Operational() bool {
	return t == TypeCase || t == TypeReport
}

// ParentType returns the required parent type for a reference entity and
// whether the type requires a parent at all.
func (t EntityType) ParentType() (EntityType, bool) {
	p, ok := parentTypes[t]
	return p, ok
}
