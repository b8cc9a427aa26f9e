package base

// TokenCategory is the closed set of token kinds a TokenDecoder can emit.
type TokenCategory uint8

const (
	CategoryFiller           TokenCategory = 0
	CategoryStructure        TokenCategory = 1
	CategoryString           TokenCategory = 2
	CategoryUnicodeCodePoint TokenCategory = 3
	CategoryLiteral          TokenCategory = 4
	CategoryNumber           TokenCategory = 5
)

// Token is a 64-bit record packed as (value:46 signed, continued:1,
// length:16), per spec.md §3. Bit layout, LSB first: length occupies bits
// [0,16), continued occupies bit 16, value occupies bits [17,63) sign
// extended; bit 63 is always zero. Length is the byte length of the token in
// the source; continued==1 means the next token continues the same logical
// entity (e.g. a string split across multiple tokens because it didn't fit
// in one destination slot).
//
// The 46-bit value field always carries a 4-bit TokenCategory in its top
// bits (enough for the six-member closed set), leaving a 42-bit payload
// whose interpretation depends on the category: "simple" tokens (structure)
// split the payload as (major:22, minor:20); everything else (filler,
// string, unicode code point, literal, number) uses a flat 21-bit detail,
// matching spec.md §3's "(major:22, minor:21) or a flat (base_category:8,
// base_detail:21)" description, generalized so the category is always
// recoverable without knowing the token's kind in advance.
type Token uint64

const (
	tokenLengthBits   = 16
	tokenLengthMask   = 1<<tokenLengthBits - 1
	tokenContinuedBit = tokenLengthBits
	tokenValueShift   = tokenLengthBits + 1
	tokenValueBits    = 46

	tokenCategoryBits = 4
	tokenPayloadBits  = tokenValueBits - tokenCategoryBits // 42
)

// NewToken constructs a token from a signed 46-bit value, a continuation
// flag, and a byte length (0..65535). Most callers should use
// NewStructureToken or NewDetailToken instead, which fill in Value for them.
func NewToken(value int64, continued bool, length uint16) Token {
	v := uint64(value) & (1<<tokenValueBits - 1)
	var c uint64
	if continued {
		c = 1
	}
	return Token(v<<tokenValueShift | c<<tokenContinuedBit | uint64(length)&tokenLengthMask)
}

// Length returns the token's byte length in the source.
func (t Token) Length() uint16 { return uint16(t & tokenLengthMask) }

// Continued reports whether the next token continues the same logical
// entity (e.g. a long string split across tokens).
func (t Token) Continued() bool { return (t>>tokenContinuedBit)&1 != 0 }

// Value returns the sign-extended 46-bit value field.
func (t Token) Value() int64 {
	v := uint64(t) >> tokenValueShift
	const signBit = uint64(1) << (tokenValueBits - 1)
	if v&signBit != 0 {
		v |= ^(uint64(1)<<tokenValueBits - 1)
	}
	return int64(v)
}

func (t Token) unsignedValue() uint64 {
	return uint64(t.Value()) & (1<<tokenValueBits - 1)
}

// Category returns the token's category, decodable regardless of how the
// rest of the payload is laid out.
func (t Token) Category() TokenCategory {
	return TokenCategory(t.unsignedValue() >> tokenPayloadBits)
}

func (t Token) payload() uint64 {
	return t.unsignedValue() & (1<<tokenPayloadBits - 1)
}

func newCategorizedToken(cat TokenCategory, payload uint64, continued bool, length uint16) Token {
	v := (uint64(cat)&(1<<tokenCategoryBits-1))<<tokenPayloadBits | payload&(1<<tokenPayloadBits-1)
	return NewToken(int64(v), continued, length)
}

// NewStructureToken builds a CategoryStructure token from a (major, minor)
// pair: major names the structural operation (push/pop list, push/pop dict,
// comma, colon, ...), minor carries an auxiliary count or sub-kind.
func NewStructureToken(major, minor int32, continued bool, length uint16) Token {
	payload := (uint64(uint32(major))&(1<<22-1))<<20 | uint64(uint32(minor))&(1<<20-1)
	return newCategorizedToken(CategoryStructure, payload, continued, length)
}

// StructureMajorMinor splits a CategoryStructure token's payload back into
// (major, minor). The result is meaningless for any other category.
func (t Token) StructureMajorMinor() (major, minor int32) {
	p := t.payload()
	minor = int32(p & (1<<20 - 1))
	major = int32((p >> 20) & (1<<22 - 1))
	return major, minor
}

// NewDetailToken builds a token of the given category with a flat 21-bit
// detail payload, used by filler, string, unicode-code-point, literal, and
// number tokens.
func NewDetailToken(cat TokenCategory, detail int32, continued bool, length uint16) Token {
	payload := uint64(uint32(detail)) & (1<<21 - 1)
	return newCategorizedToken(cat, payload, continued, length)
}

// UnsignedDetail returns the flat 21-bit detail payload without sign
// extension, for categories whose natural range exceeds a signed 21-bit
// interpretation -- a decoded Unicode code point (up to 0x10FFFF, which
// sign-extended Detail() would misread as negative once it reaches
// 0x100000) is the one user in this repository. Meaningless for
// CategoryStructure tokens.
func (t Token) UnsignedDetail() uint32 {
	return uint32(t.payload() & (1<<21 - 1))
}

// Detail returns the flat, sign-extended 21-bit detail payload. Meaningless
// for CategoryStructure tokens; use StructureMajorMinor for those.
func (t Token) Detail() int32 {
	v := t.payload() & (1<<21 - 1)
	const signBit = uint64(1) << 20
	if v&signBit != 0 {
		v |= ^(uint64(1)<<21 - 1)
	}
	return int32(v)
}

// TokenBuffer is the token-element analogue of IoBuffer: identical cursor
// shape (ri, wi, pos, closed) but elements are 64-bit Tokens rather than
// bytes. Compaction shifts tokens, not bytes.
type TokenBuffer struct {
	Data   []Token
	RI, WI int
	Pos    uint64
	Closed bool
}

func (b *TokenBuffer) Readable() []Token { return b.Data[b.RI:b.WI] }

func (b *TokenBuffer) Writable() []Token { return b.Data[b.WI:] }

func (b *TokenBuffer) MarkRead(n int) { b.RI += n }

func (b *TokenBuffer) MarkWritten(n int) { b.WI += n }

func (b *TokenBuffer) Position() uint64 { return b.Pos + uint64(b.RI) }

func (b *TokenBuffer) Compact() {
	n := copy(b.Data, b.Data[b.RI:b.WI])
	b.Pos += uint64(b.RI)
	b.RI = 0
	b.WI = n
}

func (b *TokenBuffer) NeedRead() Status {
	if b.RI < b.WI {
		return OK
	}
	if b.Closed {
		return ErrNotEnoughData
	}
	return SuspensionShortRead
}

func (b *TokenBuffer) NeedWrite() Status {
	hi := len(b.Data)
	if b.Closed {
		hi = b.WI
	}
	if b.WI < hi {
		return OK
	}
	return SuspensionShortWrite
}
