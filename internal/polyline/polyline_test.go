package polyline

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	gopolyline "github.com/twpayne/go-polyline"
)

const coordinateTolerance = 1e-5

func TestDecodeReferenceExample(t *testing.T) {
	t.Parallel()

	points, err := Decode("_p~iF~ps|U_ulLnnqC_mqNvxq`@")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := []Point{
		{Lat: 38.5, Lon: -120.2},
		{Lat: 40.7, Lon: -120.95},
		{Lat: 43.252, Lon: -126.453},
	}
	assertPointsClose(t, expected, points)
}

func TestDecodeEmptyString(t *testing.T) {
	t.Parallel()

	points, err := Decode("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(points) != 0 {
		t.Fatalf("expected no points, got %d", len(points))
	}
}

func TestDecodeRoundTrip(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name   string
		coords [][]float64
	}{
		{name: "single", coords: [][]float64{{45.37557, -75.75013}}},
		{name: "ottawa loop", coords: [][]float64{
			{45.37557, -75.75013},
			{45.38012, -75.74411},
			{45.38544, -75.73002},
			{45.37557, -75.75013},
		}},
		{name: "hemispheres", coords: [][]float64{
			{-33.86785, 151.20732},
			{0, 0},
			{89.99999, -179.99999},
			{-89.99999, 179.99999},
		}},
	}

	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			encoded := string(gopolyline.EncodeCoords(testCase.coords))
			points, err := Decode(encoded)
			if err != nil {
				t.Fatalf("decode %q: %v", encoded, err)
			}
			expected := make([]Point, 0, len(testCase.coords))
			for _, coord := range testCase.coords {
				expected = append(expected, Point{Lat: coord[0], Lon: coord[1]})
			}
			assertPointsClose(t, expected, points)
		})
	}
}

func TestDecodeMalformedInput(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		encoded string
	}{
		{name: "continuation never clears", encoded: "_p~iF~ps|U_"},
		{name: "latitude without longitude", encoded: "_p~iF"},
		{name: "invalid character", encoded: "_p~iF ps|U"},
		{name: "overflow", encoded: "~~~~~~~~~~?"},
	}

	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			points, err := Decode(testCase.encoded)
			if !errors.Is(err, ErrMalformed) {
				t.Fatalf("expected ErrMalformed, got %v", err)
			}
			if points != nil {
				t.Fatalf("expected nil points on failure, got %v", points)
			}
			var decodeErr *DecodeError
			if !errors.As(err, &decodeErr) {
				t.Fatalf("expected *DecodeError, got %T", err)
			}
		})
	}
}

func TestPointMarshalsAsPair(t *testing.T) {
	t.Parallel()

	encoded, err := json.Marshal([]Point{{Lat: 45.37557, Lon: -75.75013}})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(encoded) != "[[45.37557,-75.75013]]" {
		t.Fatalf("unexpected encoding %s", encoded)
	}
}

func assertPointsClose(t *testing.T, expected []Point, actual []Point) {
	t.Helper()
	if len(expected) != len(actual) {
		t.Fatalf("expected %d points, got %d", len(expected), len(actual))
	}
	for index := range expected {
		if math.Abs(expected[index].Lat-actual[index].Lat) > coordinateTolerance ||
			math.Abs(expected[index].Lon-actual[index].Lon) > coordinateTolerance {
			t.Fatalf("point %d: expected %v, got %v", index, expected[index], actual[index])
		}
	}
}
