package diag

import "fmt"

type Code uint16

const (
	UnknownCode Code = 0

	// Directive syntax
	DirMalformed Code = 1001

	// Resolution
	ResFetch  Code = 2001
	ResLocal  Code = 2002
	ResDecode Code = 2003
)

var codeTitles = map[Code]string{
	UnknownCode:  "Unknown problem",
	DirMalformed: "Problem with comment format",
	ResFetch:     "Trouble loading image",
	ResLocal:     "Trouble loading image",
	ResDecode:    "Trouble loading image",
}

// ID returns the stable identifier, e.g. MEM1001.
func (c Code) ID() string {
	return fmt.Sprintf("MEM%04d", uint16(c))
}

func (c Code) String() string {
	return c.ID()
}

// Title returns the short heading used in front of diagnostic messages.
func (c Code) Title() string {
	if t, ok := codeTitles[c]; ok {
		return t
	}
	return codeTitles[UnknownCode]
}
