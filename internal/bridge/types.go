package bridge

import (
	"fmt"
	"math/big"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Role identifies one of the two ledgers the warden bridges.
type Role int

const (
	Source Role = iota
	Destination
)

// Roles lists both roles in a stable order.
var Roles = []Role{Source, Destination}

func (r Role) String() string {
	switch r {
	case Source:
		return "source"
	case Destination:
		return "destination"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

// Counterpart returns the other ledger.
func (r Role) Counterpart() Role {
	if r == Source {
		return Destination
	}
	return Source
}

// Valid reports whether r is one of the two known roles.
func (r Role) Valid() bool {
	return r == Source || r == Destination
}

// ParseRole parses "source" or "destination". Anything else is a config error.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "source":
		return Source, nil
	case "destination":
		return Destination, nil
	default:
		return 0, ConfigErrorf("invalid chain role %q", s)
	}
}

// DefaultWindowSize is the trailing window scanned per pass.
const DefaultWindowSize uint64 = 5

// BlockWindow is an inclusive range of block heights.
type BlockWindow struct {
	From uint64
	To   uint64
}

// NewWindow builds the trailing window ending at to, clamped at zero.
func NewWindow(to, size uint64) BlockWindow {
	from := uint64(0)
	if to > size {
		from = to - size
	}
	return BlockWindow{From: from, To: to}
}

// Contains reports whether h lies inside the window.
func (w BlockWindow) Contains(h uint64) bool {
	return h >= w.From && h <= w.To
}

func (w BlockWindow) String() string {
	return fmt.Sprintf("[%d,%d]", w.From, w.To)
}

// EventID is the stable identity of a log: (chain, block, log index).
type EventID struct {
	Chain    Role
	Block    uint64
	LogIndex uint
}

func (id EventID) String() string {
	return fmt.Sprintf("%s:%d:%d", id.Chain, id.Block, id.LogIndex)
}

// Less orders identities by (block, log index).
func (id EventID) Less(other EventID) bool {
	if id.Block != other.Block {
		return id.Block < other.Block
	}
	return id.LogIndex < other.LogIndex
}

// ParseEventID parses the String form of an EventID.
func ParseEventID(s string) (EventID, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return EventID{}, fmt.Errorf("invalid event id %q", s)
	}
	role, err := ParseRole(parts[0])
	if err != nil {
		return EventID{}, err
	}
	block, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		return EventID{}, fmt.Errorf("invalid event id %q: %w", s, err)
	}
	idx, err := strconv.ParseUint(parts[2], 10, 32)
	if err != nil {
		return EventID{}, fmt.Errorf("invalid event id %q: %w", s, err)
	}
	return EventID{Chain: role, Block: block, LogIndex: uint(idx)}, nil
}

// RawEvent is a decoded contract log.
type RawEvent struct {
	ID        EventID
	Contract  common.Address
	Name      string
	TxHash    common.Hash
	BlockHash common.Hash
	Args      map[string]any
	// Err is set when the log could not be decoded against its ABI.
	Err error
}

// SortEvents orders events ascending by (block, log index).
func SortEvents(events []RawEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].ID.Less(events[j].ID)
	})
}

// ActionDescriptor is a contract call to perform on the target chain.
type ActionDescriptor struct {
	Target         Role
	Function       string
	Args           []any
	IdempotencyKey EventID
}

// SubmissionStatus tracks a submitted action.
type SubmissionStatus string

const (
	StatusPending   SubmissionStatus = "pending"
	StatusConfirmed SubmissionStatus = "confirmed"
	StatusFailed    SubmissionStatus = "failed"
)

// Handled reports whether a record in this status blocks resubmission.
func (s SubmissionStatus) Handled() bool {
	return s == StatusPending || s == StatusConfirmed
}

// SubmissionRecord links an event identity to the transaction that acted on it.
type SubmissionRecord struct {
	Key       EventID
	TxHash    common.Hash
	Status    SubmissionStatus
	Target    Role
	Function  string
	Nonce     uint64
	SourceTx  common.Hash
	CreatedAt time.Time
	UpdatedAt time.Time
}

// FeeHint is the fee level suggested by a node.
type FeeHint struct {
	GasPrice *big.Int
}
