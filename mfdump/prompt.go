package main

import (
	"fmt"
	"os"

	"golang.org/x/term"
)

// confirmWrite asks on the terminal before a balance write. Without a
// terminal on stdin there is nobody to ask, so the write is refused.
func confirmWrite(uid string, current uint16, target int) bool {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		fmt.Fprintf(os.Stderr, "confirm_writes is set but stdin is not a terminal; not writing\n")
		return false
	}

	fmt.Printf("Card %s: change balance %d -> %d cents? [y/N] ", uid, current, target)

	// Put stdin into raw mode
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error setting raw mode: %v\r\n", err)
		return false
	}
	defer term.Restore(fd, oldState)

	buf := make([]byte, 1)
	if _, err := os.Stdin.Read(buf); err != nil {
		fmt.Printf("\r\n")
		return false
	}
	fmt.Printf("%c\r\n", printable(buf[0]))
	return buf[0] == 'y' || buf[0] == 'Y'
}

func printable(b byte) byte {
	if b < 0x20 || b > 0x7E {
		return ' '
	}
	return b
}
