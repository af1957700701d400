package eval

import (
	"fmt"

	"github.com/hirosystems/clarinet-sub000/internal/value"
)

// Epoch is a named set of runtime rules.
type Epoch string

const (
	Epoch20  Epoch = "2.0"
	Epoch205 Epoch = "2.05"
	Epoch21  Epoch = "2.1"
	Epoch22  Epoch = "2.2"
	Epoch23  Epoch = "2.3"
	Epoch24  Epoch = "2.4"
	Epoch25  Epoch = "2.5"
	Epoch30  Epoch = "3.0"
	Epoch31  Epoch = "3.1"
)

// Epochs lists every epoch in activation order.
var Epochs = []Epoch{Epoch20, Epoch205, Epoch21, Epoch22, Epoch23, Epoch24, Epoch25, Epoch30, Epoch31}

func (e Epoch) index() int {
	for i, x := range Epochs {
		if x == e {
			return i
		}
	}
	return -1
}

// AtLeast reports whether e activates no earlier than o.
func (e Epoch) AtLeast(o Epoch) bool {
	return e.index() >= o.index()
}

// ParseEpoch validates an epoch name.
func ParseEpoch(s string) (Epoch, error) {
	e := Epoch(s)
	if e.index() < 0 {
		return "", fmt.Errorf("unknown epoch %q", s)
	}
	return e, nil
}

// ClarityVersion returns the language version contracts deployed in e
// use.
func (e Epoch) ClarityVersion() string {
	switch {
	case e.AtLeast(Epoch30):
		return "Clarity3"
	case e.AtLeast(Epoch21):
		return "Clarity2"
	}
	return "Clarity1"
}

// Environment is the chain context of one top-level call.
type Environment struct {
	Sender       value.Principal // tx-sender; also the initial contract-caller
	BlockHeight  uint64          // height of the block being built
	TenureHeight uint64
	BurnHeight   uint64
	Timestamp    uint64
	Epoch        Epoch
	ChainID      uint32
	Mainnet      bool
}
