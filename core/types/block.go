package types

import (
	"fmt"
	"io"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
)

// BlockDate locates a block in the leader schedule. Dates are totally
// ordered: first by epoch, then by slot within the epoch.
type BlockDate struct {
	Epoch uint32 `json:"epoch" gencodec:"required"`
	Slot  uint32 `json:"slot"  gencodec:"required"`
}

// Cmp compares two dates, returning -1 if d is earlier than other, 0 if
// they are equal, and +1 if d is later.
func (d BlockDate) Cmp(other BlockDate) int {
	switch {
	case d.Epoch < other.Epoch:
		return -1
	case d.Epoch > other.Epoch:
		return 1
	case d.Slot < other.Slot:
		return -1
	case d.Slot > other.Slot:
		return 1
	default:
		return 0
	}
}

// After reports whether d is strictly later than other.
func (d BlockDate) After(other BlockDate) bool {
	return d.Cmp(other) > 0
}

func (d BlockDate) String() string {
	return fmt.Sprintf("%d.%d", d.Epoch, d.Slot)
}

// Header represents a block header in the Vidar chain.
type Header struct {
	ParentHash  common.Hash `json:"parentHash"  gencodec:"required"`
	ChainLength uint64      `json:"chainLength" gencodec:"required"`
	Date        BlockDate   `json:"date"        gencodec:"required"`
	ContentRoot common.Hash `json:"contentRoot" gencodec:"required"`

	// Signature is the block leader's signature over the header signing
	// data. It is carried on the wire and into storage; verification is
	// the consensus engine's concern.
	Signature []byte `json:"signature"`
}

// Hash returns the block hash of the header, which is the keccak256 hash
// of its RLP encoding.
func (h *Header) Hash() common.Hash {
	return rlpHash(h)
}

// CopyHeader creates a deep copy of a block header.
func CopyHeader(h *Header) *Header {
	cpy := *h
	if len(h.Signature) > 0 {
		cpy.Signature = make([]byte, len(h.Signature))
		copy(cpy.Signature, h.Signature)
	}
	return &cpy
}

func rlpHash(x interface{}) common.Hash {
	data, err := rlp.EncodeToBytes(x)
	if err != nil {
		panic(err)
	}
	return crypto.Keccak256Hash(data)
}

// Fragment is an opaque ledger entry carried in a block body. Its
// interpretation belongs to the ledger, not the chain plumbing.
type Fragment []byte

// Body is the data section of a block.
type Body struct {
	Fragments []Fragment
}

// Block represents an entire block in the Vidar chain.
type Block struct {
	header *Header
	body   Body

	// cache of the header hash
	hash atomic.Value
}

// "external" block encoding used for RLP
type extblock struct {
	Header    *Header
	Fragments []Fragment
}

// NewBlock creates a new block. The input header and body are copied,
// changes to them afterwards do not affect the block.
func NewBlock(header *Header, body *Body) *Block {
	b := &Block{header: CopyHeader(header)}
	if body != nil && len(body.Fragments) > 0 {
		b.body.Fragments = make([]Fragment, len(body.Fragments))
		for i, frag := range body.Fragments {
			cpy := make(Fragment, len(frag))
			copy(cpy, frag)
			b.body.Fragments[i] = cpy
		}
	}
	return b
}

// EncodeRLP implements rlp.Encoder
func (b *Block) EncodeRLP(w io.Writer) error {
	return rlp.Encode(w, &extblock{
		Header:    b.header,
		Fragments: b.body.Fragments,
	})
}

// DecodeRLP implements rlp.Decoder
func (b *Block) DecodeRLP(s *rlp.Stream) error {
	var eb extblock
	if err := s.Decode(&eb); err != nil {
		return err
	}
	b.header, b.body.Fragments = eb.Header, eb.Fragments
	return nil
}

// Header returns a copy of the block header.
func (b *Block) Header() *Header { return CopyHeader(b.header) }

// Body returns the non-header content of the block.
func (b *Block) Body() *Body { return &Body{Fragments: b.body.Fragments} }

func (b *Block) ParentHash() common.Hash { return b.header.ParentHash }
func (b *Block) ChainLength() uint64     { return b.header.ChainLength }
func (b *Block) Date() BlockDate         { return b.header.Date }

// Hash returns the keccak256 hash of b's header. The hash is computed on
// the first call and cached thereafter.
func (b *Block) Hash() common.Hash {
	if hash := b.hash.Load(); hash != nil {
		return hash.(common.Hash)
	}
	h := b.header.Hash()
	b.hash.Store(h)
	return h
}
