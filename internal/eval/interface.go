package eval

import (
	"github.com/hirosystems/clarinet-sub000/internal/value"
)

// ContractInterface is the published shape of a contract: the function
// signatures other contracts and clients may rely on.
type ContractInterface struct {
	Functions         []FunctionInterface `json:"functions"`
	Variables         []VariableInterface `json:"variables"`
	Maps              []MapInterface      `json:"maps"`
	FungibleTokens    []TokenInterface    `json:"fungible_tokens"`
	NonFungibleTokens []NFTInterface      `json:"non_fungible_tokens"`
	ImplementedTraits []string            `json:"implemented_traits"`
	Epoch             string              `json:"epoch"`
	ClarityVersion    string              `json:"clarity_version"`
}

// FunctionInterface describes one function.
type FunctionInterface struct {
	Name   string         `json:"name"`
	Access Access         `json:"access"`
	Args   []ArgInterface `json:"args"`
}

// ArgInterface describes one argument.
type ArgInterface struct {
	Name string              `json:"name"`
	Type value.TypeSignature `json:"type"`
}

// VariableInterface describes a data-var or a constant.
type VariableInterface struct {
	Name   string              `json:"name"`
	Type   value.TypeSignature `json:"type"`
	Access string              `json:"access"` // "variable" or "constant"
}

// MapInterface describes a map.
type MapInterface struct {
	Name  string              `json:"name"`
	Key   value.TypeSignature `json:"key"`
	Value value.TypeSignature `json:"value"`
}

// TokenInterface names a fungible token.
type TokenInterface struct {
	Name string `json:"name"`
}

// NFTInterface describes a non-fungible token.
type NFTInterface struct {
	Name string              `json:"name"`
	Type value.TypeSignature `json:"type"`
}

// Interface extracts the published interface. Constants have no declared
// type, so callers pass the type of each stored constant value.
func (c *Contract) Interface(constTypes map[string]value.TypeSignature) *ContractInterface {
	ci := &ContractInterface{
		Functions:         []FunctionInterface{},
		Variables:         []VariableInterface{},
		Maps:              []MapInterface{},
		FungibleTokens:    []TokenInterface{},
		NonFungibleTokens: []NFTInterface{},
		ImplementedTraits: []string{},
		Epoch:             string(c.Epoch),
		ClarityVersion:    c.Epoch.ClarityVersion(),
	}
	for _, name := range c.functionOrder {
		fn := c.Functions[name]
		fi := FunctionInterface{Name: fn.Name, Access: fn.Access, Args: []ArgInterface{}}
		for _, p := range fn.Params {
			fi.Args = append(fi.Args, ArgInterface{Name: p.Name, Type: p.Type})
		}
		ci.Functions = append(ci.Functions, fi)
	}
	for _, name := range c.constOrder {
		ci.Variables = append(ci.Variables, VariableInterface{Name: name, Type: constTypes[name], Access: "constant"})
	}
	for _, name := range c.varOrder {
		ci.Variables = append(ci.Variables, VariableInterface{Name: name, Type: c.Vars[name].Type, Access: "variable"})
	}
	for _, name := range c.mapOrder {
		m := c.Maps[name]
		ci.Maps = append(ci.Maps, MapInterface{Name: name, Key: m.Key, Value: m.Value})
	}
	for _, name := range c.ftOrder {
		ci.FungibleTokens = append(ci.FungibleTokens, TokenInterface{Name: name})
	}
	for _, name := range c.nftOrder {
		ci.NonFungibleTokens = append(ci.NonFungibleTokens, NFTInterface{Name: name, Type: c.NFTs[name].Asset})
	}
	for _, ref := range c.Implements {
		ci.ImplementedTraits = append(ci.ImplementedTraits, ref.String())
	}
	return ci
}
