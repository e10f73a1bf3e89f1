package scenario

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuild_CartesianProduct(t *testing.T) {
	groups := []Group{
		{Name: "hydrology", Size: 2},
		{Name: "demand", Size: 3},
	}
	grid, err := Build(groups, nil)
	require.NoError(t, err)
	require.Equal(t, 6, grid.Len())
	require.Equal(t, []int{0, 0}, grid.Indices()[0].IndicesPerGroup)
	require.Equal(t, []int{1, 2}, grid.Indices()[5].IndicesPerGroup)
}

func TestBuild_Subset(t *testing.T) {
	groups := []Group{
		{Name: "hydrology", Size: 5, Subset: []int{0, 4}},
	}
	grid, err := Build(groups, nil)
	require.NoError(t, err)
	require.Equal(t, 2, grid.Len())
}

func TestBuild_ExplicitCombinations(t *testing.T) {
	groups := []Group{
		{Name: "a", Size: 3},
		{Name: "b", Size: 3},
	}
	grid, err := Build(groups, [][]int{{0, 0}, {1, 2}})
	require.NoError(t, err)
	require.Equal(t, 2, grid.Len())
	require.Equal(t, []int{1, 2}, grid.Indices()[1].IndicesPerGroup)
}

func TestBuild_InvalidGroup(t *testing.T) {
	_, err := Build([]Group{{Name: "a", Size: 0}}, nil)
	require.Error(t, err)
}

func TestBuild_CombinationWrongLength(t *testing.T) {
	groups := []Group{{Name: "a", Size: 2}, {Name: "b", Size: 2}}
	_, err := Build(groups, [][]int{{0}})
	require.Error(t, err)
}

func TestGrid_Label(t *testing.T) {
	groups := []Group{{Name: "a", Size: 2, Labels: []string{"dry", "wet"}}}
	grid, err := Build(groups, nil)
	require.NoError(t, err)
	require.Equal(t, "wet", grid.Label(0, 1))
	require.Equal(t, "3", grid.Label(5, 3))
}
