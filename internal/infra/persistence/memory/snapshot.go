package memory

import (
	"fmt"

	"agrilog/pkg/domain"
)

// Snapshot captures a point-in-time clone of the store state.
type Snapshot struct {
	Users        map[string]User        `json:"users"`
	CropTypes    map[string]CropType    `json:"crop_types"`
	Fields       map[string]Field       `json:"fields"`
	Cultivations map[string]Cultivation `json:"cultivations"`
	Treatments   map[string]Treatment   `json:"treatments"`
}

// Buckets names the snapshot sections persisted by durable backends, in write order.
var Buckets = []string{"users", "crop_types", "fields", "cultivations", "treatments"}

// Bucket returns a pointer to the map backing the named bucket, suitable for
// json.Marshal and json.Unmarshal.
func (s *Snapshot) Bucket(name string) (any, error) {
	switch name {
	case "users":
		return &s.Users, nil
	case "crop_types":
		return &s.CropTypes, nil
	case "fields":
		return &s.Fields, nil
	case "cultivations":
		return &s.Cultivations, nil
	case "treatments":
		return &s.Treatments, nil
	}
	return nil, fmt.Errorf("unknown snapshot bucket %q", name)
}

func snapshotFromMemoryState(state memoryState) Snapshot {
	cloned := state.clone()
	return Snapshot{
		Users:        cloned.users,
		CropTypes:    cloned.cropTypes,
		Fields:       cloned.fields,
		Cultivations: cloned.cultivations,
		Treatments:   cloned.treatments,
	}
}

func memoryStateFromSnapshot(s Snapshot) memoryState {
	state := newMemoryState()
	for k, v := range s.Users {
		state.users[k] = v
	}
	for k, v := range s.CropTypes {
		state.cropTypes[k] = v
	}
	for k, v := range s.Fields {
		state.fields[k] = cloneField(v)
	}
	for k, v := range s.Cultivations {
		state.cultivations[k] = cloneCultivation(v)
	}
	for k, v := range s.Treatments {
		state.treatments[k] = cloneTreatment(v)
	}
	return state
}

// migrateSnapshot repairs snapshots written by older builds or edited by hand:
// map keys win over embedded ids, missing defaults are filled in, dangling
// references are cleared and orphaned treatments are dropped.
func migrateSnapshot(snapshot Snapshot) Snapshot {
	if snapshot.Users == nil {
		snapshot.Users = map[string]User{}
	}
	if snapshot.CropTypes == nil {
		snapshot.CropTypes = map[string]CropType{}
	}
	if snapshot.Fields == nil {
		snapshot.Fields = map[string]Field{}
	}
	if snapshot.Cultivations == nil {
		snapshot.Cultivations = map[string]Cultivation{}
	}
	if snapshot.Treatments == nil {
		snapshot.Treatments = map[string]Treatment{}
	}

	for id, user := range snapshot.Users {
		user.ID = id
		snapshot.Users[id] = user
	}
	for id, crop := range snapshot.CropTypes {
		crop.ID = id
		snapshot.CropTypes[id] = crop
	}
	for id, field := range snapshot.Fields {
		field.ID = id
		if field.SoilClass == "" {
			field.SoilClass = domain.DefaultSoilClass
		}
		if field.OwnerID != nil {
			if _, ok := snapshot.Users[*field.OwnerID]; !ok {
				field.OwnerID = nil
			}
		}
		snapshot.Fields[id] = field
	}
	for id, cultivation := range snapshot.Cultivations {
		cultivation.ID = id
		if cultivation.Status == "" {
			cultivation.Status = domain.CultivationInProgress
		}
		if cultivation.FieldID != nil {
			if _, ok := snapshot.Fields[*cultivation.FieldID]; !ok {
				cultivation.FieldID = nil
			}
		}
		if cultivation.CropTypeID != nil {
			if _, ok := snapshot.CropTypes[*cultivation.CropTypeID]; !ok {
				cultivation.CropTypeID = nil
			}
		}
		if cultivation.OwnerID != nil {
			if _, ok := snapshot.Users[*cultivation.OwnerID]; !ok {
				cultivation.OwnerID = nil
			}
		}
		snapshot.Cultivations[id] = cultivation
	}
	for id, treatment := range snapshot.Treatments {
		if _, ok := snapshot.Fields[treatment.FieldID]; !ok {
			delete(snapshot.Treatments, id)
			continue
		}
		treatment.ID = id
		if treatment.CultivationID != nil {
			if _, ok := snapshot.Cultivations[*treatment.CultivationID]; !ok {
				treatment.CultivationID = nil
			}
		}
		snapshot.Treatments[id] = treatment
	}
	return snapshot
}

// ExportState clones the current store state for external persistence.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotFromMemoryState(s.state)
}

// ImportState replaces the store state with the provided snapshot.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = memoryStateFromSnapshot(migrateSnapshot(snapshot))
}
