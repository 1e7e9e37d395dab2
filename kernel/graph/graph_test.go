package graph

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/edgeops/converge/kernel/model"
)

func buildState(t *testing.T, decls ...*model.Declaration) *model.DesiredState {
	t.Helper()
	state := &model.DesiredState{Environment: "test", Resources: decls}
	require.NoError(t, state.Validate())
	return state
}

func serviceDecl(name string, after ...model.ResourceId) *model.Declaration {
	return &model.Declaration{Name: name, Spec: &model.ServiceUnitSpec{Running: true}, After: after}
}

func serviceId(name string) model.ResourceId {
	return model.ResourceId{Kind: model.KindServiceUnit, Name: name}
}

func TestBuild_TopoOrder(t *testing.T) {
	// web after api, api after db. Declared out of order on purpose.
	state := buildState(t,
		serviceDecl("web", serviceId("api")),
		serviceDecl("api", serviceId("db")),
		serviceDecl("db"),
	)

	g, err := Build(state)
	require.NoError(t, err)

	order := g.TopoOrder()
	require.Equal(t, []model.ResourceId{serviceId("db"), serviceId("api"), serviceId("web")}, order)
}

func TestBuild_TopoOrder_DeclarationTieBreak(t *testing.T) {
	// No edges at all: the order is exactly declaration order, every run.
	state := buildState(t,
		serviceDecl("charlie"),
		serviceDecl("alpha"),
		serviceDecl("bravo"),
	)

	g, err := Build(state)
	require.NoError(t, err)

	expected := []model.ResourceId{serviceId("charlie"), serviceId("alpha"), serviceId("bravo")}
	for i := 0; i < 10; i++ {
		require.Equal(t, expected, g.TopoOrder())
	}
}

func TestBuild_CycleWitness(t *testing.T) {
	state := buildState(t,
		serviceDecl("a", serviceId("b")),
		serviceDecl("b", serviceId("a")),
	)

	_, err := Build(state)
	require.Error(t, err)
	require.ErrorIs(t, err, model.ErrCyclicDependency)

	var cycleErr *model.CycleError
	require.ErrorAs(t, err, &cycleErr)
	require.NotEmpty(t, cycleErr.Path)
	// The witness path closes on itself.
	require.Equal(t, cycleErr.Path[0], cycleErr.Path[len(cycleErr.Path)-1])
}

func TestBuild_SelfCycleThroughChain(t *testing.T) {
	state := buildState(t,
		serviceDecl("a", serviceId("c")),
		serviceDecl("b", serviceId("a")),
		serviceDecl("c", serviceId("b")),
	)

	_, err := Build(state)
	require.ErrorIs(t, err, model.ErrCyclicDependency)
}

func TestPrerequisites(t *testing.T) {
	state := buildState(t,
		serviceDecl("db"),
		serviceDecl("cache"),
		serviceDecl("api", serviceId("db"), serviceId("cache")),
	)

	g, err := Build(state)
	require.NoError(t, err)

	require.Equal(t, []model.ResourceId{serviceId("db"), serviceId("cache")}, g.Prerequisites(serviceId("api")))
	require.Empty(t, g.Prerequisites(serviceId("db")))
	require.Empty(t, g.Prerequisites(serviceId("unknown")))
}

func TestDependents_Transitive(t *testing.T) {
	state := buildState(t,
		serviceDecl("db"),
		serviceDecl("api", serviceId("db")),
		serviceDecl("web", serviceId("api")),
		serviceDecl("batch", serviceId("db")),
		serviceDecl("standalone"),
	)

	g, err := Build(state)
	require.NoError(t, err)

	require.Equal(t,
		[]model.ResourceId{serviceId("api"), serviceId("web"), serviceId("batch")},
		g.Dependents(serviceId("db")))
	require.Equal(t, []model.ResourceId{serviceId("web")}, g.Dependents(serviceId("api")))
	require.Empty(t, g.Dependents(serviceId("standalone")))
}
