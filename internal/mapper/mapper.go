// Package mapper turns decoded bridge events into the counterpart-chain call
// that settles them.
package mapper

import (
	"math/big"
	"sort"
	"strings"

	"github.com/devblac/warden/internal/bridge"
	"github.com/ethereum/go-ethereum/common"
)

// Alias lists for each logical argument, tried in order.
var (
	tokenAliases     = []string{"token", "_token", "underlying_token", "underlyingToken", "_underlying_token"}
	recipientAliases = []string{"recipient", "_recipient", "to", "_to"}
	amountAliases    = []string{"amount", "_amount", "value", "_value"}
	fromAliases      = []string{"from", "_from", "frm"}
	toAliases        = []string{"to", "_to"}
)

type rule struct {
	chain     bridge.Role
	event     string
	functions []string
	build     func(m *Mapper, ev bridge.RawEvent) (*bridge.ActionDescriptor, error)
}

var rules = []rule{
	{chain: bridge.Source, event: "Deposit", functions: []string{"wrap"}, build: mapDeposit},
	{chain: bridge.Destination, event: "Unwrap", functions: []string{"withdraw"}, build: mapUnwrap},
	{chain: bridge.Source, event: "Transfer", functions: []string{"withdraw", "mint"}, build: mapTransfer},
	{chain: bridge.Destination, event: "Transfer", functions: []string{"withdraw", "mint"}, build: mapTransfer},
}

// Mapper holds the bridge contract addresses needed by the escrow rule and any
// configured where guards. It carries no mutable state.
type Mapper struct {
	bridges map[bridge.Role]common.Address
	guards  map[bridge.Role][]Predicate
}

// New builds a mapper. bridges holds each chain's bridge contract address;
// where holds optional guard expressions per chain.
func New(bridges map[bridge.Role]common.Address, where map[bridge.Role][]string) (*Mapper, error) {
	m := &Mapper{
		bridges: map[bridge.Role]common.Address{},
		guards:  map[bridge.Role][]Predicate{},
	}
	for role, addr := range bridges {
		m.bridges[role] = addr
	}
	for role, exprs := range where {
		preds, err := CompilePredicates(exprs)
		if err != nil {
			return nil, err
		}
		m.guards[role] = preds
	}
	return m, nil
}

// Map returns the action for ev, or nil when ev is not a bridge event the
// warden acts on. Events whose shape does not fit return a mapping error.
func (m *Mapper) Map(ev bridge.RawEvent) (*bridge.ActionDescriptor, error) {
	r, ok := lookup(ev.ID.Chain, ev.Name)
	if !ok {
		return nil, nil
	}
	if ev.Err != nil {
		return nil, bridge.MappingErrorf("%s %s: %v", ev.Name, ev.ID, ev.Err)
	}
	for _, guard := range m.guards[ev.ID.Chain] {
		pass, err := guard(ev.Args)
		if err != nil {
			return nil, bridge.MappingErrorf("%s %s: guard: %v", ev.Name, ev.ID, err)
		}
		if !pass {
			return nil, nil
		}
	}
	action, err := r.build(m, ev)
	if err != nil || action == nil {
		return nil, err
	}
	action.IdempotencyKey = ev.ID
	return action, nil
}

// Functions lists the target functions that watching events on chain may call,
// sorted and without duplicates.
func Functions(chain bridge.Role, events []string) []string {
	seen := map[string]struct{}{}
	for _, name := range events {
		if r, ok := lookup(chain, name); ok {
			for _, fn := range r.functions {
				seen[fn] = struct{}{}
			}
		}
	}
	out := make([]string, 0, len(seen))
	for fn := range seen {
		out = append(out, fn)
	}
	sort.Strings(out)
	return out
}

// Supported reports whether a rule exists for name on chain.
func Supported(chain bridge.Role, name string) bool {
	_, ok := lookup(chain, name)
	return ok
}

func lookup(chain bridge.Role, name string) (rule, bool) {
	for _, r := range rules {
		if r.chain == chain && r.event == name {
			return r, true
		}
	}
	return rule{}, false
}

// Deposit(token, recipient, amount) -> wrap(token, recipient, amount)
func mapDeposit(_ *Mapper, ev bridge.RawEvent) (*bridge.ActionDescriptor, error) {
	token, err := addressArg(ev, "token", tokenAliases)
	if err != nil {
		return nil, err
	}
	recipient, err := addressArg(ev, "recipient", recipientAliases)
	if err != nil {
		return nil, err
	}
	amount, err := amountArg(ev, "amount", amountAliases)
	if err != nil {
		return nil, err
	}
	return &bridge.ActionDescriptor{
		Target:   bridge.Destination,
		Function: "wrap",
		Args:     []any{token, recipient, amount},
	}, nil
}

// Unwrap(underlying_token, to, amount) -> withdraw(underlying_token, to, amount).
// wrapped_token and frm may be present and are not needed.
func mapUnwrap(_ *Mapper, ev bridge.RawEvent) (*bridge.ActionDescriptor, error) {
	token, err := addressArg(ev, "underlying_token", tokenAliases)
	if err != nil {
		return nil, err
	}
	to, err := addressArg(ev, "to", recipientAliases)
	if err != nil {
		return nil, err
	}
	amount, err := amountArg(ev, "amount", amountAliases)
	if err != nil {
		return nil, err
	}
	return &bridge.ActionDescriptor{
		Target:   bridge.Source,
		Function: "withdraw",
		Args:     []any{token, to, amount},
	}, nil
}

// Transfer(from, to, value) out of escrow -> withdraw(to, value); into escrow
// -> mint(from, value). Transfers not touching the bridge are ignored.
func mapTransfer(m *Mapper, ev bridge.RawEvent) (*bridge.ActionDescriptor, error) {
	bridgeAddr, ok := m.bridges[ev.ID.Chain]
	if !ok || bridgeAddr == (common.Address{}) {
		return nil, nil
	}
	from, err := addressArg(ev, "from", fromAliases)
	if err != nil {
		return nil, err
	}
	to, err := addressArg(ev, "to", toAliases)
	if err != nil {
		return nil, err
	}
	value, err := amountArg(ev, "value", amountAliases)
	if err != nil {
		return nil, err
	}

	target := ev.ID.Chain.Counterpart()
	switch bridgeAddr {
	case from:
		return &bridge.ActionDescriptor{Target: target, Function: "withdraw", Args: []any{to, value}}, nil
	case to:
		return &bridge.ActionDescriptor{Target: target, Function: "mint", Args: []any{from, value}}, nil
	default:
		return nil, nil
	}
}

func pick(ev bridge.RawEvent, logical string, aliases []string) (any, error) {
	for _, name := range aliases {
		if v, ok := ev.Args[name]; ok {
			return v, nil
		}
	}
	return nil, bridge.MappingErrorf("%s %s: missing argument %s (tried %s)", ev.Name, ev.ID, logical, strings.Join(aliases, ", "))
}

func addressArg(ev bridge.RawEvent, logical string, aliases []string) (common.Address, error) {
	v, err := pick(ev, logical, aliases)
	if err != nil {
		return common.Address{}, err
	}
	addr, err := coerceAddress(v)
	if err != nil {
		return common.Address{}, bridge.MappingErrorf("%s %s: argument %s: %v", ev.Name, ev.ID, logical, err)
	}
	return addr, nil
}

func amountArg(ev bridge.RawEvent, logical string, aliases []string) (*big.Int, error) {
	v, err := pick(ev, logical, aliases)
	if err != nil {
		return nil, err
	}
	n, err := coerceAmount(v)
	if err != nil {
		return nil, bridge.MappingErrorf("%s %s: argument %s: %v", ev.Name, ev.ID, logical, err)
	}
	if n.Sign() < 0 {
		return nil, bridge.MappingErrorf("%s %s: argument %s is negative", ev.Name, ev.ID, logical)
	}
	return n, nil
}
