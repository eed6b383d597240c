package lightbake

import (
	"fmt"
	"reflect"
	"slices"
	"sync"
)

type EntityId uint64
type set[T comparable] map[T]struct{}

// Ecs stores entities as bags of components keyed by component type.
// Bake scenes are small and static, so there is no archetype machinery here;
// entity ids are handed out monotonically and iteration is sorted by id so
// a seeded bake always visits lights in the same order.
type Ecs struct {
	entities map[EntityId]map[reflect.Type]any // values are pointers to components

	idGeneratorLock sync.Mutex
	entityIdCounter EntityId
}

func MakeEcs() Ecs {
	return Ecs{
		entities:        make(map[EntityId]map[reflect.Type]any),
		entityIdCounter: EntityId(0),
	}
}

func (ecs *Ecs) addEntity(components ...any) EntityId {
	entityId := ecs.nextEntityId()
	return ecs.insertEntity(entityId, components...)
}

func (ecs *Ecs) insertEntity(entityId EntityId, components ...any) EntityId {
	bag, ok := ecs.entities[entityId]
	if !ok {
		bag = make(map[reflect.Type]any)
		ecs.entities[entityId] = bag
	}
	for _, component := range components {
		componentType, ptr := normalizeComponent(component)
		bag[componentType] = ptr
	}
	return entityId
}

func (ecs *Ecs) addComponents(entityId EntityId, components ...any) {
	if _, ok := ecs.entities[entityId]; !ok {
		return
	}
	ecs.insertEntity(entityId, components...)
}

func (ecs *Ecs) removeComponents(entityId EntityId, components ...any) {
	bag, ok := ecs.entities[entityId]
	if !ok {
		return
	}
	for _, component := range components {
		componentType, _ := normalizeComponent(component)
		delete(bag, componentType)
	}
}

func (ecs *Ecs) removeEntity(entityId EntityId) {
	delete(ecs.entities, entityId)
}

func (ecs *Ecs) componentsOf(entityId EntityId) []any {
	bag, ok := ecs.entities[entityId]
	if !ok {
		return nil
	}
	var res []any
	for _, ptr := range bag {
		res = append(res, reflect.ValueOf(ptr).Elem().Interface())
	}
	return res
}

// sortedEntityIds returns every live entity id in ascending order.
func (ecs *Ecs) sortedEntityIds() []EntityId {
	ids := make([]EntityId, 0, len(ecs.entities))
	for eid := range ecs.entities {
		ids = append(ids, eid)
	}
	slices.Sort(ids)
	return ids
}

func (ecs *Ecs) nextEntityId() EntityId {
	ecs.idGeneratorLock.Lock()
	defer ecs.idGeneratorLock.Unlock()

	id := ecs.entityIdCounter
	ecs.entityIdCounter += 1

	return id
}

// normalizeComponent accepts a component struct or a pointer to one and
// returns the struct type plus a pointer to heap storage for it.
func normalizeComponent(component any) (reflect.Type, any) {
	componentType := reflect.TypeOf(component)
	if componentType.Kind() == reflect.Pointer {
		if componentType.Elem().Kind() != reflect.Struct {
			panic(fmt.Errorf("expected Component to be a struct or a pointer to a struct, got %s", componentType.Kind()))
		}
		return componentType.Elem(), component
	}
	if componentType.Kind() != reflect.Struct {
		panic(fmt.Errorf("expected Component to be a struct or a pointer to a struct, got %s", componentType.Kind()))
	}
	ptr := reflect.New(componentType)
	ptr.Elem().Set(reflect.ValueOf(component))
	return componentType, ptr.Interface()
}
