package sqlite3

import (
	"fmt"
	"reflect"
	"strings"
)

// fieldString renders a struct's exported-looking fields as "Name: value"
// lines, one per field. Grounded on the teacher's primitiveStructString
// (utils.go), kept for the same purpose: ad-hoc debug/-v CLI output, not
// machine-readable serialisation.
func fieldString(d any) string {
	var buf strings.Builder
	v := reflect.ValueOf(d)
	if v.Kind() == reflect.Pointer {
		v = v.Elem()
	}
	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		name := t.Field(i).Name
		if !t.Field(i).IsExported() {
			continue
		}
		fmt.Fprintf(&buf, "%s: %v\n", name, v.Field(i).Interface())
	}
	return buf.String()
}

func (h *Header) String() string {
	return fieldString(h)
}

func (h *btreePageHeader) String() string {
	return fieldString(h)
}

func (c *parsedLeafCell) String() string {
	return fmt.Sprintf("rowID: %d\ndeclaredSize: %d\ninlineBytes: %d\noverflowPage: %d\n",
		c.rowID, c.declaredSize, len(c.inline), c.overflowPage)
}
