package annotation

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBBoxValidate(t *testing.T) {
	tests := []struct {
		name string
		box  BBox
		ok   bool
	}{
		{"inside", NewBBox(0.5, 0.5, 0.2, 0.2), true},
		{"edge center", NewBBox(0, 1, 0.1, 0.1), true},
		{"zero width", NewBBox(0.5, 0.5, 0, 0.2), false},
		{"negative height", NewBBox(0.5, 0.5, 0.2, -0.1), false},
		{"center outside", NewBBox(1.2, 0.5, 0.1, 0.1), false},
		{"nan", NewBBox(math.NaN(), 0.5, 0.1, 0.1), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.box.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidGeometry)
			}
		})
	}
}

func TestClampCenterKeepsBoxInside(t *testing.T) {
	b := NewBBox(5, -3, 0.2, 0.4).ClampCenter()
	assert.InDelta(t, 0.9, b.CX, 1e-12)
	assert.InDelta(t, 0.2, b.CY, 1e-12)

	b = NewBBox(0.5, 0.5, 0.2, 0.4).ClampCenter()
	assert.Equal(t, NewBBox(0.5, 0.5, 0.2, 0.4), b)
}

func TestApproxEqual(t *testing.T) {
	a := NewBBox(0.4, 0.4375, 0.4, 0.375)
	assert.True(t, a.ApproxEqual(NewBBox(0.4004, 0.4375, 0.4, 0.3749), 1e-3))
	assert.False(t, a.ApproxEqual(NewBBox(0.41, 0.4375, 0.4, 0.375), 1e-3))
}

func TestAnnotationJSONContract(t *testing.T) {
	a := Annotation{Class: 2, BBox: NewBBox(0.5, 0.25, 0.1, 0.2)}

	data, err := json.Marshal(a)
	require.NoError(t, err)
	assert.JSONEq(t, `{"class":2,"bbox":[0.5,0.25,0.1,0.2]}`, string(data))

	var back Annotation
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, a, back)

	assert.Error(t, json.Unmarshal([]byte(`{"class":1,"bbox":[0.1,0.2]}`), &back))
}

func TestCloneIsIndependent(t *testing.T) {
	src := []Annotation{{Class: 1, BBox: NewBBox(0.5, 0.5, 0.1, 0.1)}}
	dst := Clone(src)
	dst[0].Class = 7
	assert.Equal(t, 1, src[0].Class)
	assert.Nil(t, Clone(nil))
}

func TestFormatLine(t *testing.T) {
	a := Annotation{Class: 3, BBox: NewBBox(0.4, 0.4375, 0.4, 0.375)}
	assert.Equal(t, "3 0.4 0.4375 0.4 0.375", FormatLine(a))
}

func TestLabelsRoundTrip(t *testing.T) {
	anns := []Annotation{
		{Class: 0, BBox: NewBBox(0.1, 0.2, 0.05, 0.06)},
		{Class: 4, BBox: NewBBox(1.0/3, 2.0/3, 0.125, 0.5)},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteLabels(&buf, anns))
	assert.Equal(t, 2, strings.Count(buf.String(), "\n"))

	back, err := ReadLabels(&buf)
	require.NoError(t, err)
	assert.Equal(t, anns, back)
}

func TestReadLabelsReportsLine(t *testing.T) {
	_, err := ReadLabels(strings.NewReader("0 0.5 0.5 0.1 0.1\n\n1 0.5 nope 0.1 0.1\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 3")
}
