package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hirosystems/clarinet-sub000/internal/value"
)

func specs(pairs ...string) []ContractSpec {
	out := make([]ContractSpec, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, ContractSpec{Name: pairs[i], Source: pairs[i+1]})
	}
	return out
}

func ids(t *testing.T, contracts []ContractSpec) map[string]value.Principal {
	t.Helper()
	deployer := value.PrincipalFromSeed(value.VersionTestnetSingleSig, "deployer")
	out := map[string]value.Principal{}
	for _, c := range contracts {
		p, err := value.ContractPrincipal(deployer, c.Name)
		require.NoError(t, err)
		out[c.Name] = p
	}
	return out
}

func TestDeploymentOrder(t *testing.T) {
	leaf := "(define-read-only (get-x) (ok u7))"
	tests := []struct {
		name      string
		contracts []ContractSpec
		want      []int
	}{
		{
			name:      "independent contracts keep their order",
			contracts: specs("a", leaf, "b", leaf, "c", leaf),
			want:      []int{0, 1, 2},
		},
		{
			name:      "caller after callee",
			contracts: specs("a", "(define-public (f) (contract-call? .b get-x))", "b", leaf),
			want:      []int{1, 0},
		},
		{
			name: "chain",
			contracts: specs(
				"a", "(define-public (f) (contract-call? .b g))",
				"b", "(define-public (g) (contract-call? .c get-x))",
				"c", leaf,
			),
			want: []int{2, 1, 0},
		},
		{
			name: "trait definitions first",
			contracts: specs(
				"impl", "(impl-trait .traits.getter)\n(define-read-only (get-x) (ok u1))",
				"traits", "(define-trait getter ((get-x () (response uint uint))))",
			),
			want: []int{1, 0},
		},
		{
			name:      "self and external references are ignored",
			contracts: specs("a", "(define-public (f) (begin (contract-call? .a g) (contract-call? .external h)))", "b", leaf),
			want:      []int{0, 1},
		},
		{
			name:      "unparsable source has no dependencies",
			contracts: specs("a", "(define-public (f)", "b", "(define-public (g) (contract-call? .a f))"),
			want:      []int{0, 1},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			order, err := deploymentOrder(tt.contracts, ids(t, tt.contracts))
			require.NoError(t, err)
			assert.Equal(t, tt.want, order)
		})
	}
}

func TestDeploymentOrder_PrincipalLiteral(t *testing.T) {
	contracts := specs("a", "", "b", "(define-read-only (get-x) (ok u7))")
	idMap := ids(t, contracts)
	contracts[0].Source = "(define-public (f) (contract-call? " + idMap["b"].String() + " get-x))"

	order, err := deploymentOrder(contracts, idMap)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 0}, order)
}

func TestDeploymentOrder_Cycle(t *testing.T) {
	contracts := specs(
		"a", "(define-public (f) (contract-call? .b g))",
		"b", "(define-public (g) (contract-call? .c h))",
		"c", "(define-public (h) (contract-call? .a f))",
	)
	_, err := deploymentOrder(contracts, ids(t, contracts))
	require.Error(t, err)

	var cycle *DependencyCycleError
	require.ErrorAs(t, err, &cycle)
	assert.Equal(t, []string{"a", "b", "c", "a"}, cycle.Path)
	assert.Equal(t, "dependency cycle: a → b → c → a", err.Error())
}

func TestTarjanSCC(t *testing.T) {
	graph := dependencyGraph{
		"a": {"b"},
		"b": {"a"},
		"c": {"a"},
		"d": {},
	}
	sccs := tarjanSCC(graph, []string{"a", "b", "c", "d"})
	assert.Equal(t, [][]string{{"a", "b"}, {"c"}, {"d"}}, sccs)
}
