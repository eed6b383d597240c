package lightbake

import (
	"github.com/go-gl/mathgl/mgl32"
)

// TransformComponent is the entity's world-space transform.
type TransformComponent struct {
	Position mgl32.Vec3
	Rotation mgl32.Quat
	Scale    mgl32.Vec3
}

// LocalTransformComponent is a transform relative to the Parent entity.
type LocalTransformComponent struct {
	Position mgl32.Vec3
	Rotation mgl32.Quat
	Scale    mgl32.Vec3
}

type Parent struct {
	Entity EntityId
}

type HierarchyModule struct{}

func (HierarchyModule) Install(app *App, cmd *Commands) {
	// Baked lights are parented to the surfaces they sit on; one propagation
	// pass after the bake settles their world transforms.
	app.UseSystem(
		System(TransformHierarchySystem).
			InStage(Report),
	)
}

// TransformHierarchySystem recomputes world transforms of parented entities
// from their locals. Multiple passes settle deeper hierarchies.
func TransformHierarchySystem(cmd *Commands) {
	for pass := 0; pass < 8; pass++ {
		changed := false
		MakeQuery3[LocalTransformComponent, Parent, TransformComponent](cmd).Map(func(eid EntityId, local *LocalTransformComponent, parent *Parent, world *TransformComponent) bool {
			parentWorld := worldTransformOf(cmd, parent.Entity)
			if parentWorld == nil {
				return true
			}

			// Propagate components directly to preserve scale signs (reflections)
			// WorldPos = ParentPos + ParentRot * (ParentScale * LocalPos)
			scaledLocalPos := mgl32.Vec3{
				local.Position.X() * parentWorld.Scale.X(),
				local.Position.Y() * parentWorld.Scale.Y(),
				local.Position.Z() * parentWorld.Scale.Z(),
			}
			newPos := parentWorld.Position.Add(parentWorld.Rotation.Rotate(scaledLocalPos))

			// WorldRot = ParentRot * LocalRot
			newRot := parentWorld.Rotation.Mul(local.Rotation).Normalize()

			// WorldScale = ParentScale * LocalScale
			newScale := mgl32.Vec3{
				parentWorld.Scale.X() * local.Scale.X(),
				parentWorld.Scale.Y() * local.Scale.Y(),
				parentWorld.Scale.Z() * local.Scale.Z(),
			}

			if newPos != world.Position || newRot != world.Rotation || newScale != world.Scale {
				world.Position = newPos
				world.Rotation = newRot
				world.Scale = newScale
				changed = true
			}
			return true
		})
		if !changed {
			break
		}
	}
}

func worldTransformOf(cmd *Commands, eid EntityId) *TransformComponent {
	for _, c := range cmd.GetAllComponents(eid) {
		if tr, ok := c.(TransformComponent); ok {
			return &tr
		}
	}
	return nil
}

// localToParent expresses a world-space pose relative to a parent transform,
// so that the hierarchy propagation above reproduces the same world pose.
func localToParent(parent TransformComponent, worldPos mgl32.Vec3, worldRot mgl32.Quat) LocalTransformComponent {
	invRot := parent.Rotation.Inverse()
	offset := invRot.Rotate(worldPos.Sub(parent.Position))
	return LocalTransformComponent{
		Position: mgl32.Vec3{
			safeDiv(offset.X(), parent.Scale.X()),
			safeDiv(offset.Y(), parent.Scale.Y()),
			safeDiv(offset.Z(), parent.Scale.Z()),
		},
		Rotation: invRot.Mul(worldRot).Normalize(),
		Scale: mgl32.Vec3{
			safeDiv(1, parent.Scale.X()),
			safeDiv(1, parent.Scale.Y()),
			safeDiv(1, parent.Scale.Z()),
		},
	}
}

func safeDiv(a, b float32) float32 {
	if b == 0 {
		return a
	}
	return a / b
}
