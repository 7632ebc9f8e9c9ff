// Package polyline decodes Google encoded polylines into coordinate sequences.
package polyline

import (
	"errors"
	"fmt"
	"strconv"
)

const (
	precisionScale   = 1e5
	characterOffset  = 63
	chunkMask        = 0x1f
	continuationBit  = 0x20
	chunkBitWidth    = 5
	maxVarintShift   = 30
	minimumCharacter = '?'
	maximumCharacter = '~'
)

// ErrMalformed indicates the encoded string is not a valid polyline.
var ErrMalformed = errors.New("polyline.malformed")

// Point is a single latitude/longitude pair in degrees.
type Point struct {
	Lat float64
	Lon float64
}

// MarshalJSON renders the point as a [lat, lon] pair, the shape map layers consume.
func (point Point) MarshalJSON() ([]byte, error) {
	encoded := make([]byte, 0, 32)
	encoded = append(encoded, '[')
	encoded = strconv.AppendFloat(encoded, point.Lat, 'f', -1, 64)
	encoded = append(encoded, ',')
	encoded = strconv.AppendFloat(encoded, point.Lon, 'f', -1, 64)
	return append(encoded, ']'), nil
}

// DecodeError reports where decoding failed.
type DecodeError struct {
	Offset int
	Reason string
}

func (decodeErr *DecodeError) Error() string {
	return fmt.Sprintf("%s: %s at offset %d", ErrMalformed.Error(), decodeErr.Reason, decodeErr.Offset)
}

// Unwrap lets callers match ErrMalformed with errors.Is.
func (decodeErr *DecodeError) Unwrap() error {
	return ErrMalformed
}

// Decode converts an encoded polyline into its ordered points.
// An empty string decodes to an empty slice.
func Decode(encoded string) ([]Point, error) {
	points := make([]Point, 0, len(encoded)/4)
	var latitude, longitude int64
	offset := 0
	for offset < len(encoded) {
		latitudeDelta, next, err := decodeValue(encoded, offset)
		if err != nil {
			return nil, err
		}
		if next >= len(encoded) {
			return nil, &DecodeError{Offset: next, Reason: "latitude without longitude"}
		}
		longitudeDelta, after, err := decodeValue(encoded, next)
		if err != nil {
			return nil, err
		}
		latitude += latitudeDelta
		longitude += longitudeDelta
		points = append(points, Point{
			Lat: float64(latitude) / precisionScale,
			Lon: float64(longitude) / precisionScale,
		})
		offset = after
	}
	return points, nil
}

// decodeValue reads one zig-zag encoded varint starting at offset.
func decodeValue(encoded string, offset int) (int64, int, error) {
	var result int64
	shift := uint(0)
	for position := offset; position < len(encoded); position++ {
		character := encoded[position]
		if character < minimumCharacter || character > maximumCharacter {
			return 0, position, &DecodeError{Offset: position, Reason: fmt.Sprintf("invalid character %q", character)}
		}
		chunk := int64(character - characterOffset)
		result |= (chunk & chunkMask) << shift
		if chunk&continuationBit == 0 {
			if result&1 != 0 {
				return ^(result >> 1), position + 1, nil
			}
			return result >> 1, position + 1, nil
		}
		shift += chunkBitWidth
		if shift > maxVarintShift {
			return 0, position, &DecodeError{Offset: position, Reason: "value overflow"}
		}
	}
	return 0, len(encoded), &DecodeError{Offset: len(encoded), Reason: "truncated value"}
}
