package sample

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromLine(t *testing.T) {
	line := "0,2.069,38.409,40190,1474,1046.349,180,18345710," +
		"101920.61,83937.5,0.5,2.65E+12,4.216,3.331,0.490"

	s, err := FromLine(line)
	require.NoError(t, err)

	assert.InDelta(t, 0.0, s.NepIndex, 1e-9)
	assert.InDelta(t, 2.069, s.YE, 1e-9)
	assert.InDelta(t, 38.409, s.NepTb, 1e-9)
	assert.InDelta(t, 40190.0, s.NepTOF, 1e-9)
	assert.InDelta(t, 1474.0, s.NepSumArray, 1e-9)
	assert.InDelta(t, 1046.349, s.NepPeakArray, 1e-9)
	assert.InDelta(t, 180.0, s.NepDArray, 1e-9)
	assert.InDelta(t, 18345710.0, s.YETOF, 1e-9)
	assert.InDelta(t, 101920.61, s.YESize, 1e-9)
	assert.InDelta(t, 83937.5, s.YEMean, 1e-9)
	assert.InDelta(t, 0.5, s.YEMedian, 1e-9)
	assert.Equal(t, 2.65e12, s.YEV)
	assert.InDelta(t, 4.216, s.YETe, 1e-9)
	assert.InDelta(t, 3.331, s.YETc, 1e-9)
	assert.InDelta(t, 0.490, s.AF, 1e-9)
}

func TestFromLine_ScientificNotation(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		expected float64
	}{
		{"large exponent", "0,0,0,0,0,0,0,0,0,0,0,2.65E+12,0,0,0", 2.65e12},
		{"small exponent", "0,0,0,0,0,0,0,0,0,0,0,1.5E-6,0,0,0", 1.5e-6},
		{"trailing newline", "0,0,0,0,0,0,0,0,0,0,0,3e2,0,0,0\r\n", 300},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s, err := FromLine(tc.line)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, s.YEV)
		})
	}
}

func TestFromLine_Errors(t *testing.T) {
	_, err := FromLine("1,2,3")
	assert.ErrorContains(t, err, "expected 15")

	_, err = FromLine("0,0,x,0,0,0,0,0,0,0,0,0,0,0,0")
	assert.ErrorContains(t, err, "Nep_Tb")
}

func TestSample_Vector(t *testing.T) {
	s := Sample{
		NepIndex: 999, YE: 888,
		NepTb: 1, NepTOF: 2, NepSumArray: 3, NepPeakArray: 4, NepDArray: 5,
		YETOF: 6, YESize: 7, YEMean: 8, YEMedian: 9, YEV: 10, YETe: 11, YETc: 12, AF: 13,
	}

	v := s.Vector()

	require.Len(t, v, NumFeatures)
	for i := range v {
		assert.Equal(t, float64(i+1), v[i])
	}
	assert.NotContains(t, v, 999.0)
	assert.NotContains(t, v, 888.0)
}

func TestSample_AppendVectorReusesBuffer(t *testing.T) {
	buf := make([]float64, 0, NumFeatures)
	a := Sample{NepTb: 1}.AppendVector(buf[:0])
	b := Sample{NepTb: 2}.AppendVector(buf[:0])

	assert.Same(t, &a[0], &b[0])
	assert.Equal(t, 2.0, a[0])
}

func TestSample_Values(t *testing.T) {
	s, err := FromLine("0,1,2,3,4,5,6,7,8,9,10,11,12,13,14")
	require.NoError(t, err)

	values := s.Values()
	require.Len(t, values, NumColumns)
	for i, v := range values {
		assert.Equal(t, float64(i), v)
	}
	assert.Equal(t, values[2:], s.Vector())
}

func TestSample_StringRoundTrip(t *testing.T) {
	s, err := FromLine("0,2.069,38.409,40190,1474,1046.349,180,18345710,101920.61,83937.5,0.5,2.65E+12,4.216,3.331,0.1")
	require.NoError(t, err)

	again, err := FromLine(s.String())
	require.NoError(t, err)
	assert.Equal(t, s, again)
}

func TestReadCSV(t *testing.T) {
	doc := strings.Join(Columns, ",") + "\n" +
		"0,1,2,3,4,5,6,7,8,9,10,11,12,13,14\n" +
		"1,2,3,4,5,6,7,8,9,10,11,12,13,14,15\n" +
		"2,3,4,5,6,7,8,9,10,11,12,13,14,15,16\n"

	samples, err := ReadCSV(strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, samples, 3)

	assert.Equal(t, 0.0, samples[0].NepIndex)
	assert.Equal(t, 1.0, samples[0].YE)
	assert.Equal(t, 14.0, samples[0].AF)
	assert.Equal(t, 1.0, samples[1].NepIndex)
	assert.Equal(t, 2.0, samples[1].YE)
	assert.Equal(t, 2.0, samples[2].NepIndex)
	assert.Equal(t, 16.0, samples[2].AF)
}

func TestReadCSV_EmptyAndHeaderOnly(t *testing.T) {
	samples, err := ReadCSV(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, samples)

	samples, err = ReadCSV(strings.NewReader(strings.Join(Columns, ",") + "\n"))
	require.NoError(t, err)
	assert.Empty(t, samples)
}

func TestReadCSV_BadRow(t *testing.T) {
	doc := strings.Join(Columns, ",") + "\n" + "0,1,2\n"

	_, err := ReadCSV(strings.NewReader(doc))
	assert.ErrorContains(t, err, "row 1")
}
