// Package packstream implements the PackStream binary serialization
// format: a self-describing marker-byte-prefixed encoding for the
// boltwire.Value sum type, version-gated for temporal/spatial and
// graph variants.
package packstream

// Marker bytes: the first byte of every encoded value, classifying its
// kind and, for small forms, its size.
const (
	markerNull  byte = 0xC0
	markerFalse byte = 0xC2
	markerTrue  byte = 0xC3
	markerFloat byte = 0xC1

	markerInt8  byte = 0xC8
	markerInt16 byte = 0xC9
	markerInt32 byte = 0xCA
	markerInt64 byte = 0xCB

	tinyIntPosMax   = 0x7F // inclusive, tiny-int positive range top
	tinyIntNegStart = 0xF0 // tiny-int negative range, -16..-1 as 0xF0..0xFF

	tinyStringMin byte = 0x80
	tinyStringMax byte = 0x8F
	markerString8  byte = 0xD0
	markerString16 byte = 0xD1
	markerString32 byte = 0xD2

	tinyListMin byte = 0x90
	tinyListMax byte = 0x9F
	markerList8  byte = 0xD4
	markerList16 byte = 0xD5
	markerList32 byte = 0xD6

	tinyMapMin byte = 0xA0
	tinyMapMax byte = 0xAF
	markerMap8  byte = 0xD8
	markerMap16 byte = 0xD9
	markerMap32 byte = 0xDA

	tinyStructMin byte = 0xB0
	tinyStructMax byte = 0xBF
	markerStruct8  byte = 0xDC
	markerStruct16 byte = 0xDD
)

// Struct signatures identify the kind of struct that follows a
// struct marker byte.
const (
	SigDate                   byte = 0x44
	SigDuration               byte = 0x45
	SigDateTimeWithZoneOffset byte = 0x46
	SigTimeWithZoneOffset     byte = 0x54
	SigPoint2D                byte = 0x58
	SigPoint3D                byte = 0x59
	SigLocalDateTime          byte = 0x64
	SigDateTimeWithZoneID     byte = 0x66
	SigLocalTime              byte = 0x74
	SigNode                   byte = 0x4E
	SigRelationship           byte = 0x52
	SigUnboundRelationship    byte = 0x72
	SigPath                   byte = 0x50
)

// maxUint32Size is the largest collection size this format can
// represent (a 32-bit unsigned length field).
const maxUint32Size = 0xFFFFFFFF

// maxStructFields is the largest struct field count (a 16-bit field).
const maxStructFields = 0xFFFF
