package g3registry

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sabouaram/g3edge/internal/stat"
)

type fakeNode struct {
	name stat.NodeName
	id   stat.Id
}

func (f fakeNode) Name() stat.NodeName { return f.name }
func (f fakeNode) Id() stat.Id         { return f.id }

func TestRegistryStoreGetReplace(t *testing.T) {
	r := New[fakeNode]()

	n1 := fakeNode{name: "direct", id: stat.NextId()}
	prev, had := r.Store(n1)
	require.False(t, had)
	require.Zero(t, prev.id)

	got, ok := r.Get("direct")
	require.True(t, ok)
	require.Equal(t, n1, got)

	n2 := fakeNode{name: "direct", id: stat.NextId()}
	prev, had = r.Store(n2)
	require.True(t, had)
	require.Equal(t, n1, prev)

	got, ok = r.Get("direct")
	require.True(t, ok)
	require.Equal(t, n2, got)
}

func TestRegistryDeleteAndWalk(t *testing.T) {
	r := New[fakeNode]()
	r.Store(fakeNode{name: "a", id: stat.NextId()})
	r.Store(fakeNode{name: "b", id: stat.NextId()})

	require.Equal(t, 2, r.Len())

	seen := map[stat.NodeName]bool{}
	r.Walk(func(name stat.NodeName, node fakeNode) bool {
		seen[name] = true
		return true
	})
	require.Len(t, seen, 2)

	removed, ok := r.Delete("a")
	require.True(t, ok)
	require.Equal(t, stat.NodeName("a"), removed.name)
	require.Equal(t, 1, r.Len())
}

func TestCheckAcyclicDetectsCycle(t *testing.T) {
	deps := map[stat.NodeName][]stat.NodeName{
		"primary": {"standby"},
		"standby": {"primary"},
	}
	err := CheckAcyclic([]stat.NodeName{"primary", "standby"}, func(n stat.NodeName) []stat.NodeName {
		return deps[n]
	})
	require.Error(t, err)
}

func TestCheckAcyclicAcceptsDag(t *testing.T) {
	deps := map[stat.NodeName][]stat.NodeName{
		"failover": {"primary", "standby"},
		"primary":  nil,
		"standby":  nil,
	}
	err := CheckAcyclic([]stat.NodeName{"failover", "primary", "standby"}, func(n stat.NodeName) []stat.NodeName {
		return deps[n]
	})
	require.NoError(t, err)
}
