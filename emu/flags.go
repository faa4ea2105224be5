package emu

import "strings"

// Flag is one bit of SREG.
type Flag uint8

// Status flags.
const (
	FlagC Flag = 1 << iota
	FlagZ
	FlagN
	FlagV
	FlagS
	FlagH
	FlagT
	FlagI
)

const flagLetters = "CZNVSHTI"

func (f Flag) String() string {
	for i := 0; i < 8; i++ {
		if f == 1<<i {
			return flagLetters[i : i+1]
		}
	}
	return "?"
}

// Flags is a partial update of SREG: the flags it affects and the values
// it gives them.
type Flags struct {
	mask  uint8
	value uint8
}

// With returns f with flag set to the given value.
func (f Flags) With(flag Flag, set bool) Flags {
	f.mask |= uint8(flag)
	if set {
		f.value |= uint8(flag)
	} else {
		f.value &^= uint8(flag)
	}
	return f
}

// Get returns the value of a flag and whether f affects it.
func (f Flags) Get(flag Flag) (set, ok bool) {
	return f.value&uint8(flag) != 0, f.mask&uint8(flag) != 0
}

// Affects reports whether f changes a flag.
func (f Flags) Affects(flag Flag) bool {
	return f.mask&uint8(flag) != 0
}

// Apply merges the update into an SREG value.
func (f Flags) Apply(sreg uint8) uint8 {
	return sreg&^f.mask | f.value&f.mask
}

// String renders the affected flags, upper case when set, e.g. "zNc".
func (f Flags) String() string {
	var b strings.Builder
	for i := 7; i >= 0; i-- {
		flag := Flag(1 << i)
		if !f.Affects(flag) {
			continue
		}
		l := flagLetters[i : i+1]
		if v, _ := f.Get(flag); !v {
			l = strings.ToLower(l)
		}
		b.WriteString(l)
	}
	return b.String()
}

// FormatSREG renders SREG as "ITHSVNZC" with clear flags as '-'.
func FormatSREG(sreg uint8) string {
	out := []byte("--------")
	for i := 0; i < 8; i++ {
		if sreg&(1<<i) != 0 {
			out[7-i] = flagLetters[i]
		}
	}
	return string(out)
}
