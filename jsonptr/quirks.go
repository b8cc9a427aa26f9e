package jsonptr

// Quirk bits, per spec.md §4.5's "eighteen boolean quirks". May only be set
// before the first decode call; SetQuirkEnabled reports
// base.ErrBadCallSequence after that, like gif, gzip and zlib.
// Several of these loosen RFC 8259 in ways jsonc/json5-flavored inputs rely
// on; none are enabled by default.
const (
	QuirkAllowAsciiControlCodes uint32 = 1 << iota
	QuirkAllowBackslashA
	QuirkAllowBackslashCapitalU
	QuirkAllowBackslashE
	QuirkAllowBackslashNewline
	QuirkAllowBackslashQuestionMark
	QuirkAllowBackslashSingleQuote
	QuirkAllowBackslashV
	QuirkAllowBackslashX
	QuirkAllowBackslashZero
	QuirkAllowBlockComments
	QuirkAllowLineComments
	QuirkAllowTrailingCommas
	QuirkAllowInfNanNumbers
	QuirkAllowLeadingAsciiRecordSeparator
	QuirkAllowLeadingUnicodeByteOrderMark
	QuirkAllowTrailingNewline
	QuirkReplaceInvalidUnicode
)

func (d *Decoder) quirkEnabled(q uint32) bool { return d.quirks&q != 0 }
