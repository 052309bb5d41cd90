package chronicle

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Dump renders chronicle bytes as text, one entry per line, for golden
// files and the CLI. Undecodable input is rendered as its error.
func Dump(data []byte) string {
	c, err := Decode(data)
	if err != nil {
		return fmt.Sprintf("error %v\n", err)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "entries %d\n", c.Len())
	fmt.Fprintf(&sb, "header %s %s\n", c.Kind(), hex.EncodeToString(c.Header))
	for _, v := range c.Versions {
		fmt.Fprintf(&sb, "version %s stamp=%d %s\n", Token(v[0]), stampOf(v), hex.EncodeToString(v))
	}
	return sb.String()
}
