package bson

const (
	kindFloat         = 0x01
	kindString        = 0x02
	kindDocument      = 0x03
	kindArray         = 0x04
	kindBinary        = 0x05
	kindObjectId      = 0x07
	kindBool          = 0x08
	kindDateTime      = 0x09
	kindNull          = 0x0A
	kindRegexp        = 0x0B
	kindCode          = 0x0D
	kindSymbol        = 0x0E
	kindCodeWithScope = 0x0F
	kindInt32         = 0x10
	kindTimestamp     = 0x11
	kindInt64         = 0x12
	kindMinValue      = 0xFF
	kindMaxValue      = 0x7F
)

var kindNames = map[byte]string{
	kindFloat:         "float",
	kindString:        "string",
	kindDocument:      "document",
	kindArray:         "array",
	kindBinary:        "binary",
	kindObjectId:      "objectId",
	kindBool:          "bool",
	kindDateTime:      "dateTime",
	kindNull:          "null",
	kindRegexp:        "regexp",
	kindCode:          "code",
	kindSymbol:        "symbol",
	kindCodeWithScope: "codeWithScope",
	kindInt32:         "int32",
	kindTimestamp:     "timestamp",
	kindInt64:         "int64",
	kindMinValue:      "minValue",
	kindMaxValue:      "maxValue",
}
