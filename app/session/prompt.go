package session

import (
	"bufio"
	"fmt"
	"io"
)

// StdPrompter asks the user on the terminal and blocks until Enter is pressed.
// Reader and writer are injectable for tests.
type StdPrompter struct {
	In  io.Reader
	Out io.Writer

	reader *bufio.Reader
}

// Confirm prints the message and waits for Enter
func (p *StdPrompter) Confirm(msg string) {
	if p.reader == nil {
		p.reader = bufio.NewReader(p.In)
	}
	fmt.Fprintf(p.Out, "%s\npress Enter to continue...", msg)
	if _, err := p.reader.ReadString('\n'); err != nil {
		fmt.Fprintln(p.Out) // stdin closed, nothing to wait for
	}
}
