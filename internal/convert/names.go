package convert

// GDF only understands a fixed vocabulary; anything missing here is dropped.
var blockNames = map[string]string{
	"momentum/x": "Bx",
	"momentum/y": "By",
	"momentum/z": "Bz",
	"position/x": "x",
	"position/y": "y",
	"position/z": "z",
	"id":         "ID",
	"charge":     "q",
	"weighting":  "nmacro",
	"mass":       "m",
}

const (
	blockVar    = "var"
	blockTime   = "time"
	blockRMacro = "rmacro"
)

// BlockName maps a record (and axis, for vector records) to its GDF block name.
func BlockName(record, axis string) (string, bool) {
	key := record
	if axis != "" {
		key = record + "/" + axis
	}
	name, ok := blockNames[key]
	return name, ok
}
