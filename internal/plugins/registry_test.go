package plugins

import (
	"context"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roost/internal/template"
)

// fakeInstance satisfies Instance for registry tests.
type fakeInstance struct {
	id    string
	state State
}

func (f *fakeInstance) ID() string             { return f.id }
func (f *fakeInstance) Type() Type             { return TypeProcess }
func (f *fakeInstance) State() State           { return f.state }
func (f *fakeInstance) Definition() Definition { return Definition{ID: DefinitionIDOf(f.id)} }
func (f *fakeInstance) Start(ctx context.Context, tc *template.Context) error {
	f.state = StateRunning
	return nil
}
func (f *fakeInstance) Stop() error {
	f.state = StateStopped
	return nil
}
func (f *fakeInstance) CheckHealth(ctx context.Context) bool          { return true }
func (f *fakeInstance) SetStateChangeCallback(cb StateChangeCallback) {}

func TestRegisterDefinitionRejectsEmptyID(t *testing.T) {
	r := NewRegistry()
	assert.Error(t, r.RegisterDefinition(Definition{}))
}

func TestDefinitionsKeepRegistrationOrder(t *testing.T) {
	r := NewRegistry()

	for _, id := range []string{"charlie", "alpha", "bravo"} {
		require.NoError(t, r.RegisterDefinition(Definition{ID: id, Type: TypeProcess}))
	}

	var ids []string
	for _, def := range r.Definitions() {
		ids = append(ids, def.ID)
	}
	assert.Equal(t, []string{"charlie", "alpha", "bravo"}, ids)
}

func TestRegisterDefinitionReplacesInPlace(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.RegisterDefinition(Definition{ID: "alpha", Executable: "a"}))
	require.NoError(t, r.RegisterDefinition(Definition{ID: "bravo", Executable: "b"}))
	require.NoError(t, r.RegisterDefinition(Definition{ID: "alpha", Executable: "a2"}))

	defs := r.Definitions()
	require.Len(t, defs, 2)
	assert.Equal(t, "alpha", defs[0].ID)
	assert.Equal(t, "a2", defs[0].Executable, "replacement must keep original position")
	assert.Equal(t, "bravo", defs[1].ID)
}

func TestGetDefinitionReturnsCopy(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.RegisterDefinition(Definition{
		ID:        "alpha",
		Arguments: []string{"--flag"},
	}))

	def, ok := r.GetDefinition("alpha")
	require.True(t, ok)
	def.Arguments[0] = "--mutated"

	again, _ := r.GetDefinition("alpha")
	assert.Equal(t, "--flag", again.Arguments[0])
}

func TestRegisterInstanceFirstWins(t *testing.T) {
	r := NewRegistry()

	first := &fakeInstance{id: "p1"}
	second := &fakeInstance{id: "p1"}

	got, loaded := r.RegisterInstance(first)
	assert.False(t, loaded)
	assert.Same(t, first, got.(*fakeInstance))

	got, loaded = r.RegisterInstance(second)
	assert.True(t, loaded, "second registration must report already-present")
	assert.Same(t, first, got.(*fakeInstance), "existing instance wins")
}

func TestRemoveInstance(t *testing.T) {
	r := NewRegistry()
	r.RegisterInstance(&fakeInstance{id: "p1"})

	r.RemoveInstance("p1")
	_, ok := r.GetInstance("p1")
	assert.False(t, ok)

	// Removing again is a no-op.
	r.RemoveInstance("p1")
}

func TestGetInstancesByDefinitionID(t *testing.T) {
	r := NewRegistry()

	r.RegisterInstance(&fakeInstance{id: "appium"})
	r.RegisterInstance(&fakeInstance{id: "appium:serial-1"})
	r.RegisterInstance(&fakeInstance{id: "appium:serial-2"})
	r.RegisterInstance(&fakeInstance{id: "appium-extra"})
	r.RegisterInstance(&fakeInstance{id: "other:serial-1"})

	matches := r.GetInstancesByDefinitionID("appium")
	var ids []string
	for _, inst := range matches {
		ids = append(ids, inst.ID())
	}
	sort.Strings(ids)
	assert.Equal(t, []string{"appium", "appium:serial-1", "appium:serial-2"}, ids)
}

func TestConcurrentRegisterInstanceSingleWinner(t *testing.T) {
	r := NewRegistry()

	var wg sync.WaitGroup
	winners := make([]bool, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, loaded := r.RegisterInstance(&fakeInstance{id: "p1"})
			winners[n] = !loaded
		}(i)
	}
	wg.Wait()

	count := 0
	for _, won := range winners {
		if won {
			count++
		}
	}
	assert.Equal(t, 1, count, "exactly one concurrent registration may win")
}

func TestInstanceIDHelpers(t *testing.T) {
	assert.Equal(t, "appium", InstanceID("appium", ""))
	assert.Equal(t, "appium:serial-1", InstanceID("appium", "serial-1"))
	assert.Equal(t, "appium", DefinitionIDOf("appium:serial-1"))
	assert.Equal(t, "appium", DefinitionIDOf("appium"))
}
