package buffer

// Version identifies the string library. It is printed by the accumulator at startup.
const Version = "0.9"

// Text is the read side of a text buffer
type Text interface {
	Len() int
	String() string
	Contains(sub string) bool
}
