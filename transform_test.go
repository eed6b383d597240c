package lightbake

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransformHierarchy_PropagatesFromParent(t *testing.T) {
	app := NewAppBuilder().Build()
	cmd := app.Commands()

	parent := cmd.AddEntity(&TransformComponent{
		Position: mgl32.Vec3{10, 0, 0},
		Rotation: mgl32.QuatRotate(float32(math.Pi/2), mgl32.Vec3{0, 1, 0}),
		Scale:    mgl32.Vec3{2, 2, 2},
	})
	child := cmd.AddEntity(
		&TransformComponent{Rotation: mgl32.QuatIdent(), Scale: mgl32.Vec3{1, 1, 1}},
		&LocalTransformComponent{
			Position: mgl32.Vec3{1, 0, 0},
			Rotation: mgl32.QuatIdent(),
			Scale:    mgl32.Vec3{1, 1, 1},
		},
		&Parent{Entity: parent},
	)
	app.FlushCommands()

	TransformHierarchySystem(cmd)

	world := worldTransformOf(cmd, child)
	require.NotNil(t, world)
	// Local +X, doubled by parent scale, swung onto -Z by the parent's yaw.
	assertVec3InDelta(t, mgl32.Vec3{10, 0, -2}, world.Position)
	assertVec3InDelta(t, mgl32.Vec3{2, 2, 2}, world.Scale)
}

func TestTransformHierarchy_SettlesDeepChains(t *testing.T) {
	app := NewAppBuilder().Build()
	cmd := app.Commands()

	root := cmd.AddEntity(&TransformComponent{
		Position: mgl32.Vec3{1, 0, 0},
		Rotation: mgl32.QuatIdent(),
		Scale:    mgl32.Vec3{1, 1, 1},
	})
	prev := root
	var leaf EntityId
	for i := 0; i < 5; i++ {
		leaf = cmd.AddEntity(
			&TransformComponent{Rotation: mgl32.QuatIdent(), Scale: mgl32.Vec3{1, 1, 1}},
			&LocalTransformComponent{
				Position: mgl32.Vec3{1, 0, 0},
				Rotation: mgl32.QuatIdent(),
				Scale:    mgl32.Vec3{1, 1, 1},
			},
			&Parent{Entity: prev},
		)
		prev = leaf
	}
	app.FlushCommands()

	TransformHierarchySystem(cmd)

	world := worldTransformOf(cmd, leaf)
	require.NotNil(t, world)
	assertVec3InDelta(t, mgl32.Vec3{6, 0, 0}, world.Position)
}

func TestTransformHierarchy_MissingParentLeavesChildAlone(t *testing.T) {
	app := NewAppBuilder().Build()
	cmd := app.Commands()

	child := cmd.AddEntity(
		&TransformComponent{Position: mgl32.Vec3{3, 3, 3}, Rotation: mgl32.QuatIdent(), Scale: mgl32.Vec3{1, 1, 1}},
		&LocalTransformComponent{Rotation: mgl32.QuatIdent(), Scale: mgl32.Vec3{1, 1, 1}},
		&Parent{Entity: EntityId(4096)},
	)
	app.FlushCommands()

	TransformHierarchySystem(cmd)

	world := worldTransformOf(cmd, child)
	require.NotNil(t, world)
	assertVec3InDelta(t, mgl32.Vec3{3, 3, 3}, world.Position)
}

// localToParent must be the exact inverse of the propagation pass: expressing
// a world pose locally and propagating it again lands on the same pose.
func TestLocalToParentRoundtrip(t *testing.T) {
	parents := []TransformComponent{
		{Position: mgl32.Vec3{0, 0, 0}, Rotation: mgl32.QuatIdent(), Scale: mgl32.Vec3{1, 1, 1}},
		{Position: mgl32.Vec3{5, -2, 1}, Rotation: mgl32.QuatRotate(0.7, mgl32.Vec3{0, 1, 0}), Scale: mgl32.Vec3{2, 2, 2}},
		{Position: mgl32.Vec3{-3, 8, 0}, Rotation: mgl32.QuatRotate(1.2, mgl32.Vec3{1, 0, 0}.Normalize()), Scale: mgl32.Vec3{1, 3, 0.5}},
	}
	worldPos := mgl32.Vec3{1.5, 0.2, -4}
	worldRot := mgl32.QuatRotate(0.3, mgl32.Vec3{0, 0, 1})

	for _, parent := range parents {
		local := localToParent(parent, worldPos, worldRot)

		scaledLocal := mgl32.Vec3{
			local.Position.X() * parent.Scale.X(),
			local.Position.Y() * parent.Scale.Y(),
			local.Position.Z() * parent.Scale.Z(),
		}
		rebuiltPos := parent.Position.Add(parent.Rotation.Rotate(scaledLocal))
		rebuiltRot := parent.Rotation.Mul(local.Rotation).Normalize()

		assertVec3InDelta(t, worldPos, rebuiltPos)
		assert.InDelta(t, 1, math.Abs(float64(rebuiltRot.Dot(worldRot.Normalize()))), 1e-4)
	}
}

func TestSafeDiv(t *testing.T) {
	assert.Equal(t, float32(2), safeDiv(4, 2))
	assert.Equal(t, float32(4), safeDiv(4, 0))
}
