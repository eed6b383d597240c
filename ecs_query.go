package lightbake

import (
	"reflect"
)

// Queries iterate entities that carry every requested component type.
// Passing a component value in `optionals` relaxes that requirement for its
// type: matching entities without it are still visited and receive nil.
// Iteration is in ascending entity-id order.
type Query1[A any] struct{ ecs *Ecs }
type Query2[A, B any] struct{ ecs *Ecs }
type Query3[A, B, C any] struct{ ecs *Ecs }
type Query4[A, B, C, D any] struct{ ecs *Ecs }

func MakeQuery1[A any](cmd *Commands) Query1[A]             { return Query1[A]{ecs: cmd.app.ecs} }
func MakeQuery2[A, B any](cmd *Commands) Query2[A, B]       { return Query2[A, B]{ecs: cmd.app.ecs} }
func MakeQuery3[A, B, C any](cmd *Commands) Query3[A, B, C] { return Query3[A, B, C]{ecs: cmd.app.ecs} }
func MakeQuery4[A, B, C, D any](cmd *Commands) Query4[A, B, C, D] {
	return Query4[A, B, C, D]{ecs: cmd.app.ecs}
}

func (q Query1[A]) Map(m func(EntityId, *A) bool, optionals ...any) {
	opt := identifyOptionals(optionals...)
	for _, entityId := range q.ecs.sortedEntityIds() {
		bag := q.ecs.entities[entityId]
		a, ok := lookupComponent[A](bag, opt)
		if !ok {
			continue
		}
		if !m(entityId, a) {
			return
		}
	}
}

func (q Query2[A, B]) Map(m func(EntityId, *A, *B) bool, optionals ...any) {
	opt := identifyOptionals(optionals...)
	for _, entityId := range q.ecs.sortedEntityIds() {
		bag := q.ecs.entities[entityId]
		a, okA := lookupComponent[A](bag, opt)
		if !okA {
			continue
		}
		b, okB := lookupComponent[B](bag, opt)
		if !okB {
			continue
		}
		if !m(entityId, a, b) {
			return
		}
	}
}

func (q Query3[A, B, C]) Map(m func(EntityId, *A, *B, *C) bool, optionals ...any) {
	opt := identifyOptionals(optionals...)
	for _, entityId := range q.ecs.sortedEntityIds() {
		bag := q.ecs.entities[entityId]
		a, okA := lookupComponent[A](bag, opt)
		if !okA {
			continue
		}
		b, okB := lookupComponent[B](bag, opt)
		if !okB {
			continue
		}
		c, okC := lookupComponent[C](bag, opt)
		if !okC {
			continue
		}
		if !m(entityId, a, b, c) {
			return
		}
	}
}

func (q Query4[A, B, C, D]) Map(m func(EntityId, *A, *B, *C, *D) bool, optionals ...any) {
	opt := identifyOptionals(optionals...)
	for _, entityId := range q.ecs.sortedEntityIds() {
		bag := q.ecs.entities[entityId]
		a, okA := lookupComponent[A](bag, opt)
		if !okA {
			continue
		}
		b, okB := lookupComponent[B](bag, opt)
		if !okB {
			continue
		}
		c, okC := lookupComponent[C](bag, opt)
		if !okC {
			continue
		}
		d, okD := lookupComponent[D](bag, opt)
		if !okD {
			continue
		}
		if !m(entityId, a, b, c, d) {
			return
		}
	}
}

// lookupComponent resolves one component pointer from an entity's bag.
// The bool is false only when the component is required and absent.
func lookupComponent[T any](bag map[reflect.Type]any, opt set[reflect.Type]) (*T, bool) {
	var zero T
	componentType := reflect.TypeOf(zero)
	if boxed, ok := bag[componentType]; ok {
		return boxed.(*T), true
	}
	if _, optional := opt[componentType]; optional {
		return nil, true
	}
	return nil, false
}

func identifyOptionals(components ...any) set[reflect.Type] {
	res := make(set[reflect.Type])
	for _, c := range components {
		componentType := reflect.TypeOf(c)
		if componentType.Kind() == reflect.Pointer {
			componentType = componentType.Elem()
		}
		res[componentType] = struct{}{}
	}
	return res
}
