package virtual

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/gray-logic-driver/internal/authority"
	"github.com/nerrad567/gray-logic-driver/internal/driver"
)

var _ driver.Capability = (*Driver)(nil)

func TestReadWrite(t *testing.T) {
	ctx := context.Background()
	d := New()
	require.NoError(t, d.Initialize(ctx))

	device := authority.Device{ID: 11, Name: "meter-1", ProfileID: 100}
	point := authority.Point{ID: 21, Name: "voltage", Type: driver.TypeFloat, RW: authority.RWReadWrite}
	pointInfo := map[string]driver.AttributeInfo{
		AttrOffset:   {Value: "3", Type: driver.TypeInt},
		AttrMultiple: {Value: "0.5", Type: driver.TypeFloat},
	}

	v, err := d.Read(ctx, nil, pointInfo, device, point)
	require.NoError(t, err)
	assert.Equal(t, "0", v)

	ok, err := d.Write(ctx, nil, pointInfo, device, driver.AttributeInfo{Value: "230.5", Type: driver.TypeFloat})
	require.NoError(t, err)
	assert.True(t, ok)

	v, err = d.Read(ctx, nil, pointInfo, device, point)
	require.NoError(t, err)
	assert.Equal(t, "230.5", v)

	other := authority.Device{ID: 12}
	v, err = d.Read(ctx, nil, pointInfo, other, point)
	require.NoError(t, err)
	assert.Equal(t, "0", v, "registers are per device")
}

func TestWrite_BooleanAndString(t *testing.T) {
	ctx := context.Background()
	d := New()
	device := authority.Device{ID: 1}
	pointInfo := map[string]driver.AttributeInfo{AttrOffset: {Value: "0", Type: driver.TypeInt}}

	ok, err := d.Write(ctx, nil, pointInfo, device, driver.AttributeInfo{Value: "true", Type: driver.TypeBoolean})
	require.NoError(t, err)
	assert.True(t, ok)

	v, err := d.Read(ctx, nil, pointInfo, device, authority.Point{Type: driver.TypeBoolean})
	require.NoError(t, err)
	assert.Equal(t, "true", v)

	ok, err = d.Write(ctx, nil, pointInfo, device, driver.AttributeInfo{Value: "hello", Type: driver.TypeString})
	require.NoError(t, err)
	assert.False(t, ok, "string writes are not supported")
}

func TestErrors(t *testing.T) {
	ctx := context.Background()
	d := New()

	_, err := d.Read(ctx, nil, map[string]driver.AttributeInfo{}, authority.Device{}, authority.Point{})
	assert.ErrorIs(t, err, driver.ErrMissingAttribute)

	offline := map[string]driver.AttributeInfo{AttrOffline: {Value: "true", Type: driver.TypeBoolean}}
	pointInfo := map[string]driver.AttributeInfo{AttrOffset: {Value: "1", Type: driver.TypeInt}}
	_, err = d.Read(ctx, offline, pointInfo, authority.Device{}, authority.Point{})
	assert.ErrorIs(t, err, driver.ErrTransport)

	zero := map[string]driver.AttributeInfo{
		AttrOffset:   {Value: "1", Type: driver.TypeInt},
		AttrMultiple: {Value: "0", Type: driver.TypeFloat},
	}
	_, err = d.Read(ctx, nil, zero, authority.Device{}, authority.Point{})
	assert.ErrorIs(t, err, driver.ErrAttributeType)
}

func TestSchedule(t *testing.T) {
	d := New()
	for range 3 {
		require.NoError(t, d.Schedule(context.Background()))
	}
	assert.Equal(t, 3, d.Ticks())
}
